package emit

import (
	"encoding/binary"
	"fmt"

	"anvil/internal/metadata"
)

// Body stream layout. A body small enough is prefixed with a one-byte
// tiny header; everything else gets a twelve-byte fat header aligned to
// four bytes. The first four bytes of the stream are reserved so that
// offset zero always means "no body".

const (
	bodyStreamReserve = 4

	tinyHeaderFormat = 0x02
	tinyMaxCodeSize  = 63
	tinyMaxStack     = 8

	fatHeaderFormat   = 0x03
	fatHeaderSize     = 12
	fatFlagInitLocals = 0x10
	fatSizeInWords    = 3

	defaultMaxStack = 8
)

type bodyLayout struct {
	fat     bool
	padding int
	offset  uint32 // header start within the stream
}

func isTinyBody(b *MethodBody) bool {
	return len(b.Code) <= tinyMaxCodeSize &&
		b.MaxStack <= tinyMaxStack &&
		b.LocalSig.IsNil() &&
		!b.InitLocals
}

// assignBodyAddresses walks the type's methods in declaration order and
// fixes each body's stream offset. The cursor starts past the reserved
// prefix and advances by padding, header and code size. Layout decisions
// made here must match writeBodies exactly.
func (t *TypeBuilder) assignBodyAddresses(cursor *uint32) {
	for _, m := range t.methods {
		b := m.body
		if b == nil {
			continue
		}
		layout := bodyLayout{fat: !isTinyBody(b)}
		if layout.fat {
			if rem := int(*cursor) % 4; rem != 0 {
				layout.padding = 4 - rem
			}
		}
		*cursor += uint32(layout.padding)
		layout.offset = *cursor
		headerSize := 1
		if layout.fat {
			headerSize = fatHeaderSize
		}
		*cursor += uint32(headerSize) + uint32(len(b.Code))
		m.bodyLayout = layout
		m.hasLayout = true
	}
}

type bodyStream struct {
	buf []byte
}

func newBodyStream() *bodyStream {
	return &bodyStream{buf: make([]byte, bodyStreamReserve)}
}

// writeBodies emits each assigned body: token fixups are patched through
// the map, the header is encoded and the method row's body offset is
// recorded against its final row number.
func (t *TypeBuilder) writeBodies(tm *TokenMap, bs *bodyStream, s *metadata.Sink) error {
	for _, m := range t.methods {
		b := m.body
		if b == nil {
			continue
		}
		if !m.hasLayout {
			return fmt.Errorf("method %s.%s: body written before address assignment: %w", t.name, m.name, ErrInvalidOperation)
		}
		code := make([]byte, len(b.Code))
		copy(code, b.Code)
		for _, off := range b.TokenFixups {
			if err := tm.PatchTokenBytes(code[off : off+4]); err != nil {
				return fmt.Errorf("method %s.%s fixup at %d: %w", t.name, m.name, off, err)
			}
		}

		layout := m.bodyLayout
		for i := 0; i < layout.padding; i++ {
			bs.buf = append(bs.buf, 0)
		}
		if got := uint32(len(bs.buf)); got != layout.offset {
			return fmt.Errorf("method %s.%s: body landed at %d, assigned %d: %w", t.name, m.name, got, layout.offset, ErrInvalidOperation)
		}
		if layout.fat {
			bs.appendFatHeader(b, len(code))
		} else {
			bs.buf = append(bs.buf, byte(tinyHeaderFormat|len(code)<<2))
		}
		bs.buf = append(bs.buf, code...)

		mapped, err := tm.MappedHandle(m.virtual)
		if err != nil {
			return fmt.Errorf("method %s.%s: %w", t.name, m.name, err)
		}
		if err := s.SetMethodBodyOffset(mapped.Row(), layout.offset); err != nil {
			return fmt.Errorf("method %s.%s: %w", t.name, m.name, err)
		}
	}
	return nil
}

func (bs *bodyStream) appendFatHeader(b *MethodBody, codeSize int) {
	flags := uint16(fatHeaderFormat) | uint16(fatSizeInWords)<<12
	if b.InitLocals {
		flags |= fatFlagInitLocals
	}
	maxStack := b.MaxStack
	if maxStack < defaultMaxStack {
		maxStack = defaultMaxStack
	}
	var localTok uint32
	if !b.LocalSig.IsNil() {
		localTok = b.LocalSig.Token()
	}
	var hdr [fatHeaderSize]byte
	binary.LittleEndian.PutUint16(hdr[0:2], flags)
	binary.LittleEndian.PutUint16(hdr[2:4], uint16(maxStack))
	binary.LittleEndian.PutUint32(hdr[4:8], uint32(codeSize))
	binary.LittleEndian.PutUint32(hdr[8:12], localTok)
	bs.buf = append(bs.buf, hdr[:]...)
}
