package sig

import (
	"fmt"

	"anvil/internal/handle"
)

// IsPrimitive reports whether the signature is a single built-in type
// code.
func (s Signature) IsPrimitive() bool {
	if s.Len() != 1 {
		return false
	}
	b := s.FirstByte()
	return (b >= 0x01 && b <= 0x0E) || b == 0x18 || b == 0x19 || b == 0x1C
}

// classifyingTag returns the tag byte used for class/value-type
// classification, unwrapping one level of generic instantiation.
func (s Signature) classifyingTag() byte {
	tag := s.FirstByte()
	if tag == elemGenericInst && s.Len() > 1 {
		return s.ByteAt(1)
	}
	return tag
}

// IsClass reports a reference-type signature, including instantiations of
// one.
func (s Signature) IsClass() bool { return s.classifyingTag() == elemClass }

// IsValueType reports a value-type signature, including instantiations of
// one.
func (s Signature) IsValueType() bool { return s.classifyingTag() == elemValueType }

// IsByRef reports a by-reference signature.
func (s Signature) IsByRef() bool { return s.FirstByte() == elemByRef }

// IsPointer reports an unmanaged pointer signature.
func (s Signature) IsPointer() bool { return s.FirstByte() == elemPtr }

// IsSZArray reports a single-dimension zero-based array signature.
func (s Signature) IsSZArray() bool { return s.FirstByte() == elemSZArray }

// IsArray reports any array signature.
func (s Signature) IsArray() bool {
	tag := s.FirstByte()
	return tag == elemArray || tag == elemSZArray
}

// IsGenericInst reports a generic-instantiation signature.
func (s Signature) IsGenericInst() bool { return s.FirstByte() == elemGenericInst }

// IsGenericParam reports a generic type or method parameter signature.
func (s Signature) IsGenericParam() bool {
	tag := s.FirstByte()
	return tag == elemVar || tag == elemMVar
}

// ClassOrValueTypeHandle decodes the nominal handle of a class,
// value-type or instantiation-of-either signature.
func (s Signature) ClassOrValueTypeHandle() (handle.Handle, error) {
	raw := s.Bytes()
	if len(raw) > 0 && raw[0] == elemGenericInst {
		raw = raw[1:]
	}
	if len(raw) < 2 || (raw[0] != elemClass && raw[0] != elemValueType) {
		return handle.Handle{}, fmt.Errorf("signature is not class or value-type shaped: %w", ErrInvalidOperation)
	}
	coded, _, err := DecodeCompressedUint(raw[1:])
	if err != nil {
		return handle.Handle{}, err
	}
	h, err := handle.FromTypeDefOrRef(coded)
	if err != nil {
		return handle.Handle{}, fmt.Errorf("%v: %w", err, ErrInvalidOperation)
	}
	return h, nil
}
