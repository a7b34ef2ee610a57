package emit

import (
	"encoding/binary"
	"fmt"

	"anvil/internal/handle"
)

// TokenMap translates provisional field/method identities to final row
// numbers. Each slot is populated exactly once, during the owning type's
// write pass; afterwards everything holding a provisional handle reads
// through it.
type TokenMap struct {
	fields  []uint32
	methods []uint32
}

func newTokenMap(fieldCount, methodCount uint32) *TokenMap {
	return &TokenMap{
		fields:  make([]uint32, fieldCount),
		methods: make([]uint32, methodCount),
	}
}

func (tm *TokenMap) setField(virtual, real uint32) error {
	if virtual == 0 || int(virtual) > len(tm.fields) {
		return fmt.Errorf("provisional field row %d out of range: %w", virtual, ErrInvalidArgument)
	}
	if tm.fields[virtual-1] != 0 {
		return fmt.Errorf("provisional field row %d mapped twice: %w", virtual, ErrInvalidOperation)
	}
	tm.fields[virtual-1] = real
	return nil
}

func (tm *TokenMap) setMethod(virtual, real uint32) error {
	if virtual == 0 || int(virtual) > len(tm.methods) {
		return fmt.Errorf("provisional method row %d out of range: %w", virtual, ErrInvalidArgument)
	}
	if tm.methods[virtual-1] != 0 {
		return fmt.Errorf("provisional method row %d mapped twice: %w", virtual, ErrInvalidOperation)
	}
	tm.methods[virtual-1] = real
	return nil
}

// MappedHandle resolves a reference to its final handle. Final handles
// map to themselves; provisional ones look up the real row recorded
// during the owning type's write pass.
func (tm *TokenMap) MappedHandle(r handle.Ref) (handle.Handle, error) {
	switch h := r.(type) {
	case handle.Handle:
		return h, nil
	case handle.Virtual:
		var real uint32
		switch h.Table() {
		case handle.TableFieldDef:
			if int(h.Row()) <= len(tm.fields) {
				real = tm.fields[h.Row()-1]
			}
		case handle.TableMethodDef:
			if int(h.Row()) <= len(tm.methods) {
				real = tm.methods[h.Row()-1]
			}
		}
		if real == 0 {
			return handle.Handle{}, fmt.Errorf("unmapped provisional handle %s: %w", h, ErrInvalidOperation)
		}
		return handle.New(h.Table(), real), nil
	default:
		return handle.Handle{}, fmt.Errorf("unknown reference kind %T: %w", r, ErrInvalidArgument)
	}
}

// MappedToken resolves a raw token: FieldDef and MethodDef tokens are
// provisional during a build and translate through the map, everything
// else is returned unchanged.
func (tm *TokenMap) MappedToken(tok uint32) (uint32, error) {
	h := handle.FromToken(tok)
	switch h.Table() {
	case handle.TableFieldDef, handle.TableMethodDef:
		mapped, err := tm.MappedHandle(asVirtual(h))
		if err != nil {
			return 0, err
		}
		return mapped.Token(), nil
	default:
		return tok, nil
	}
}

func asVirtual(h handle.Handle) handle.Virtual {
	if h.Table() == handle.TableFieldDef {
		return handle.NewVirtualField(h.Row())
	}
	return handle.NewVirtualMethod(h.Row())
}

// PatchTokenBytes rewrites a raw little-endian token embedded in a
// method-body byte stream in place. span must be exactly four bytes of
// the containing stream.
func (tm *TokenMap) PatchTokenBytes(span []byte) error {
	if len(span) != 4 {
		return fmt.Errorf("token span of %d bytes: %w", len(span), ErrInvalidArgument)
	}
	tok := binary.LittleEndian.Uint32(span)
	mapped, err := tm.MappedToken(tok)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(span, mapped)
	return nil
}
