package sig

import (
	"fmt"

	"anvil/internal/handle"
	"anvil/internal/host"
)

// Resolver maps a nominal host type to its metadata handle. The metadata
// authority supplies one pointing back at itself.
type Resolver func(host.Type) (handle.Handle, error)

// FromType encodes a host type description, recursing through arrays,
// pointers, by-reference wrappers, constructed generics and generic
// parameters. Nominal types fall back to the resolver; reaching one with
// a nil resolver fails with ErrNoResolver.
func FromType(t host.Type, resolve Resolver) (Signature, error) {
	if t == nil {
		return Signature{}, fmt.Errorf("nil type description: %w", ErrInvalidArgument)
	}
	if code, ok := t.Primitive(); ok {
		return ForPrimitive(code), nil
	}
	switch {
	case t.IsByRef():
		elem, err := FromType(t.Elem(), resolve)
		if err != nil {
			return Signature{}, err
		}
		return elem.AsByRef()
	case t.IsPointer():
		elem, err := FromType(t.Elem(), resolve)
		if err != nil {
			return Signature{}, err
		}
		return elem.AsPointer()
	case t.IsSZArray():
		elem, err := FromType(t.Elem(), resolve)
		if err != nil {
			return Signature{}, err
		}
		return elem.AsSZArray()
	case t.IsArray():
		elem, err := FromType(t.Elem(), resolve)
		if err != nil {
			return Signature{}, err
		}
		return elem.MakeArray(t.ArrayRank(), nil, nil)
	case t.IsGenericParameter():
		if t.OnMethod() {
			return ForGenericMethodParam(t.ParamPosition())
		}
		return ForGenericTypeParam(t.ParamPosition())
	case t.IsConstructedGeneric():
		def, err := FromType(t.GenericDefinition(), resolve)
		if err != nil {
			return Signature{}, err
		}
		hostArgs := t.GenericArguments()
		args := make([]Signature, len(hostArgs))
		for i, a := range hostArgs {
			if args[i], err = FromType(a, resolve); err != nil {
				return Signature{}, err
			}
		}
		return def.WithGenericArgs(args)
	}
	if resolve == nil {
		return Signature{}, fmt.Errorf("type %s: %w", t.Name(), ErrNoResolver)
	}
	h, err := resolve(t)
	if err != nil {
		return Signature{}, err
	}
	if t.IsValueType() {
		return ForValueType(h)
	}
	return ForClass(h)
}
