// Package sig builds and inspects binary type signatures.
//
// A Signature is an immutable byte sequence whose leading byte tags its
// shape. Equality and hashing are pure byte equality; every semantically
// equal signature is produced through one canonical encoding path, so the
// byte comparison is sufficient.
package sig

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument reports a nil handle, a negative position or an
	// empty required list, detected before any mutation.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrInvalidOperation reports a structurally impossible request, such
	// as composing from a by-reference signature.
	ErrInvalidOperation = errors.New("invalid operation")
	// ErrOverflow reports a compressed-integer value outside the
	// encodable range.
	ErrOverflow = errors.New("compressed integer overflow")
	// ErrNoResolver reports a nominal type reached without a resolver
	// callback in place.
	ErrNoResolver = fmt.Errorf("no nominal-type resolver: %w", ErrInvalidOperation)
)

// Element codes for composite shapes. Primitive codes live in host.
const (
	elemPtr         = 0x0F
	elemByRef       = 0x10
	elemValueType   = 0x11
	elemClass       = 0x12
	elemVar         = 0x13
	elemArray       = 0x14
	elemGenericInst = 0x15
	elemSZArray     = 0x1D
	elemMVar        = 0x1E
)

// Calling-convention tag bytes used by member signatures.
const (
	CallDefault      byte = 0x00
	CallVarArg       byte = 0x05
	TagField         byte = 0x06
	TagLocals        byte = 0x07
	TagProperty      byte = 0x08
	CallGeneric      byte = 0x10
	CallHasThis      byte = 0x20
	CallExplicitThis byte = 0x40
	// Sentinel separates fixed parameters from vararg extras.
	Sentinel byte = 0x41
)

const inlineMax = 7

// Signature is an immutable encoded type/member shape. The zero value is
// the empty signature. Encodings of up to seven bytes are packed inline;
// longer ones live on the heap. The split is invisible to equality: two
// Signatures are equal exactly when their byte sequences are.
type Signature struct {
	// packed holds the length in the low byte and the content in the
	// upper bytes when the encoding fits inline.
	packed uint64
	heap   string
}

// FromBytes copies raw signature bytes into a Signature value.
func FromBytes(b []byte) Signature {
	if len(b) <= inlineMax {
		var p uint64
		for i := len(b) - 1; i >= 0; i-- {
			p = p<<8 | uint64(b[i])
		}
		return Signature{packed: p<<8 | uint64(len(b))}
	}
	return Signature{heap: string(b)}
}

// Len returns the number of encoded bytes.
func (s Signature) Len() int {
	if s.heap != "" {
		return len(s.heap)
	}
	return int(s.packed & 0xFF)
}

// IsZero reports the empty signature.
func (s Signature) IsZero() bool { return s.packed == 0 && s.heap == "" }

// ByteAt returns the encoded byte at index i. It panics when i is out of
// range, like a slice access.
func (s Signature) ByteAt(i int) byte {
	if s.heap != "" {
		return s.heap[i]
	}
	n := int(s.packed & 0xFF)
	if i < 0 || i >= n {
		panic(fmt.Sprintf("sig: byte index %d out of range [0..%d)", i, n))
	}
	return byte(s.packed >> (8 * (i + 1)))
}

// FirstByte returns the leading tag byte, or zero for the empty signature.
func (s Signature) FirstByte() byte {
	if s.Len() == 0 {
		return 0
	}
	return s.ByteAt(0)
}

// Bytes returns a fresh copy of the encoded bytes.
func (s Signature) Bytes() []byte {
	return s.AppendTo(make([]byte, 0, s.Len()))
}

// AppendTo appends the encoded bytes to dst and returns the result.
func (s Signature) AppendTo(dst []byte) []byte {
	if s.heap != "" {
		return append(dst, s.heap...)
	}
	n := int(s.packed & 0xFF)
	p := s.packed >> 8
	for i := 0; i < n; i++ {
		dst = append(dst, byte(p))
		p >>= 8
	}
	return dst
}

func (s Signature) String() string {
	return fmt.Sprintf("sig(% X)", s.Bytes())
}
