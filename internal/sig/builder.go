package sig

import (
	"fmt"
	"sync"
)

// Builder is a reusable scratch buffer for composing one signature or
// blob. Builders are borrowed through WithBuilder; a nested WithBuilder
// call inside an outer composition borrows a distinct builder, so the
// buffer can never be reentered. Using a builder after its scope has
// returned panics.
type Builder struct {
	buf  []byte
	held bool
}

var builderPool = sync.Pool{
	New: func() any { return &Builder{buf: make([]byte, 0, 64)} },
}

// WithBuilder borrows a scratch builder for the duration of fn and
// releases it on every exit path, including panics.
func WithBuilder(fn func(*Builder) error) error {
	b := builderPool.Get().(*Builder)
	b.buf = b.buf[:0]
	b.held = true
	defer func() {
		b.held = false
		builderPool.Put(b)
	}()
	return fn(b)
}

func (b *Builder) ensureHeld() {
	if !b.held {
		panic("sig: use of a released scratch builder")
	}
}

// Reset rewinds the builder without releasing its storage.
func (b *Builder) Reset() {
	b.ensureHeld()
	b.buf = b.buf[:0]
}

// Len returns the number of bytes written so far.
func (b *Builder) Len() int {
	b.ensureHeld()
	return len(b.buf)
}

// AppendByte writes one raw byte.
func (b *Builder) AppendByte(c byte) {
	b.ensureHeld()
	b.buf = append(b.buf, c)
}

// AppendBytes writes raw bytes.
func (b *Builder) AppendBytes(p []byte) {
	b.ensureHeld()
	b.buf = append(b.buf, p...)
}

// AppendSignature writes a completed signature into the buffer.
func (b *Builder) AppendSignature(s Signature) {
	b.ensureHeld()
	b.buf = s.AppendTo(b.buf)
}

// AppendCompressedUint writes v in the variable-length unsigned form:
// one byte up to 0x7F, two bytes (high bits 10) up to 0x3FFF, four bytes
// (high bits 11) up to 0x1FFFFFFF. Larger values fail with ErrOverflow.
func (b *Builder) AppendCompressedUint(v uint32) error {
	b.ensureHeld()
	switch {
	case v <= 0x7F:
		b.buf = append(b.buf, byte(v))
	case v <= 0x3FFF:
		b.buf = append(b.buf, 0x80|byte(v>>8), byte(v))
	case v <= 0x1FFFFFFF:
		b.buf = append(b.buf, 0xC0|byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
	default:
		return fmt.Errorf("unsigned value 0x%X: %w", v, ErrOverflow)
	}
	return nil
}

// AppendCompressedInt writes v in the signed variable-length form: the
// sign bit is rotated into the least significant bit, then the same
// width selection applies.
func (b *Builder) AppendCompressedInt(v int32) error {
	b.ensureHeld()
	sign := uint32(0)
	if v < 0 {
		sign = 1
	}
	switch {
	case v >= -0x40 && v <= 0x3F:
		u := (uint32(v)&0x3F)<<1 | sign
		b.buf = append(b.buf, byte(u))
	case v >= -0x2000 && v <= 0x1FFF:
		u := (uint32(v)&0x1FFF)<<1 | sign
		b.buf = append(b.buf, 0x80|byte(u>>8), byte(u))
	case v >= -0x10000000 && v <= 0x0FFFFFFF:
		u := (uint32(v)&0x0FFFFFFF)<<1 | sign
		b.buf = append(b.buf, 0xC0|byte(u>>24), byte(u>>16), byte(u>>8), byte(u))
	default:
		return fmt.Errorf("signed value %d: %w", v, ErrOverflow)
	}
	return nil
}

// maxCompactParamPos is the largest generic-parameter position written in
// the single-byte compact form. Positions beyond it use the wide forms so
// the compact byte always has its high bit clear.
const maxCompactParamPos = 126

// appendParamPosition writes a generic-parameter position: compact single
// byte for positions up to 126, the wide compressed forms from 127 on.
// Both decode through the standard compressed-unsigned reader.
func (b *Builder) appendParamPosition(pos uint32) error {
	b.ensureHeld()
	switch {
	case pos <= maxCompactParamPos:
		b.buf = append(b.buf, byte(pos))
	case pos <= 0x3FFF:
		b.buf = append(b.buf, 0x80|byte(pos>>8), byte(pos))
	case pos <= 0x1FFFFFFF:
		b.buf = append(b.buf, 0xC0|byte(pos>>24), byte(pos>>16), byte(pos>>8), byte(pos))
	default:
		return fmt.Errorf("generic-parameter position 0x%X: %w", pos, ErrOverflow)
	}
	return nil
}

// Finish freezes the current bytes into a Signature and rewinds the
// builder for reuse.
func (b *Builder) Finish() Signature {
	b.ensureHeld()
	s := FromBytes(b.buf)
	b.buf = b.buf[:0]
	return s
}

// FinishBytes freezes the current bytes into a fresh slice for raw blob
// use and rewinds the builder.
func (b *Builder) FinishBytes() []byte {
	b.ensureHeld()
	out := make([]byte, len(b.buf))
	copy(out, b.buf)
	b.buf = b.buf[:0]
	return out
}

// DecodeCompressedUint reads one compressed unsigned integer from the
// front of b, returning the value and the number of bytes consumed.
func DecodeCompressedUint(b []byte) (uint32, int, error) {
	if len(b) == 0 {
		return 0, 0, fmt.Errorf("empty input: %w", ErrInvalidArgument)
	}
	switch {
	case b[0]&0x80 == 0:
		return uint32(b[0]), 1, nil
	case b[0]&0xC0 == 0x80:
		if len(b) < 2 {
			return 0, 0, fmt.Errorf("truncated two-byte integer: %w", ErrInvalidArgument)
		}
		return uint32(b[0]&0x3F)<<8 | uint32(b[1]), 2, nil
	case b[0]&0xE0 == 0xC0:
		if len(b) < 4 {
			return 0, 0, fmt.Errorf("truncated four-byte integer: %w", ErrInvalidArgument)
		}
		v := uint32(b[0]&0x1F)<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
		return v, 4, nil
	default:
		return 0, 0, fmt.Errorf("invalid length prefix 0x%02X: %w", b[0], ErrInvalidArgument)
	}
}

// DecodeCompressedInt reads one compressed signed integer from the front
// of b, reversing the sign rotation.
func DecodeCompressedInt(b []byte) (int32, int, error) {
	u, n, err := DecodeCompressedUint(b)
	if err != nil {
		return 0, 0, err
	}
	v := int32(u >> 1)
	if u&1 != 0 {
		// restore the sign bits for the payload width
		switch n {
		case 1:
			v |= ^int32(0x3F)
		case 2:
			v |= ^int32(0x1FFF)
		default:
			v |= ^int32(0x0FFFFFFF)
		}
	}
	return v, n, nil
}
