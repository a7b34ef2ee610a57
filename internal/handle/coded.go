package handle

import "fmt"

// Coded indexes pack a table selector into the low bits of a row number.
// They are what signatures and sorted tables (InterfaceImpl, GenericParam)
// compare and store instead of full tokens.

// TypeDefOrRef encodes a TypeDef/TypeRef/TypeSpec handle as a coded index:
// row shifted left by two, low bits selecting the table.
func TypeDefOrRef(h Handle) (uint32, error) {
	switch h.Table() {
	case TableTypeDef:
		return h.Row() << 2, nil
	case TableTypeRef:
		return h.Row()<<2 | 1, nil
	case TableTypeSpec:
		return h.Row()<<2 | 2, nil
	default:
		return 0, fmt.Errorf("cannot encode %s as a type coded index", h)
	}
}

// FromTypeDefOrRef decodes a coded index produced by TypeDefOrRef.
func FromTypeDefOrRef(v uint32) (Handle, error) {
	row := v >> 2
	switch v & 3 {
	case 0:
		return New(TableTypeDef, row), nil
	case 1:
		return New(TableTypeRef, row), nil
	case 2:
		return New(TableTypeSpec, row), nil
	default:
		return Handle{}, fmt.Errorf("invalid type coded index tag in 0x%X", v)
	}
}

// MethodDefOrRef encodes a MethodDef/MemberRef handle as a coded index:
// row shifted left by one, low bit selecting the table.
func MethodDefOrRef(h Handle) (uint32, error) {
	switch h.Table() {
	case TableMethodDef:
		return h.Row() << 1, nil
	case TableMemberRef:
		return h.Row()<<1 | 1, nil
	default:
		return 0, fmt.Errorf("cannot encode %s as a method coded index", h)
	}
}

// TypeOrMethodDef encodes a generic-parameter owner as a coded index:
// row shifted left by one, low bit set for methods.
func TypeOrMethodDef(h Handle) (uint32, error) {
	switch h.Table() {
	case TableTypeDef:
		return h.Row() << 1, nil
	case TableMethodDef:
		return h.Row()<<1 | 1, nil
	default:
		return 0, fmt.Errorf("cannot encode %s as a generic-parameter owner", h)
	}
}
