package emit

import (
	"fmt"

	"anvil/internal/handle"
	"anvil/internal/host"
	"anvil/internal/metadata"
	"anvil/internal/sig"
)

// HandleForType returns the memoized handle of a host type. Nominal
// external types intern a reference row against their assembly scope
// (nested types resolve their containing type recursively). Composite
// shapes, generic parameters and constructed generics intern a
// composite-type entry built from their signature. By-reference types
// are rejected outright.
func (a *Authority) HandleForType(t host.Type) (handle.Handle, error) {
	if t == nil {
		return handle.Handle{}, fmt.Errorf("nil type description: %w", ErrInvalidArgument)
	}
	if t.IsByRef() {
		return handle.Handle{}, fmt.Errorf("a by-reference type has no handle: %w", ErrInvalidArgument)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.handleForTypeLocked(t)
}

func (a *Authority) handleForTypeLocked(t host.Type) (handle.Handle, error) {
	if h, ok := a.typeHandles[t]; ok {
		return h, nil
	}
	h, err := a.buildTypeHandleLocked(t)
	if err != nil {
		return handle.Handle{}, err
	}
	a.typeHandles[t] = h
	return h, nil
}

func (a *Authority) buildTypeHandleLocked(t host.Type) (handle.Handle, error) {
	if isComposite(t) {
		s, err := a.signatureForTypeLocked(t, false)
		if err != nil {
			return handle.Handle{}, err
		}
		return a.handleForSignatureLocked(s)
	}

	// nominal type: reference row against its defining scope
	var scope handle.Handle
	if outer := t.Declaring(); outer != nil {
		var err error
		if scope, err = a.handleForTypeLocked(outer); err != nil {
			return handle.Handle{}, err
		}
	} else {
		var err error
		if scope, err = a.assemblyRefLocked(t.Assembly()); err != nil {
			return handle.Handle{}, err
		}
	}
	row := a.sink.AddTypeRef(metadata.TypeRef{
		Scope: scope.Token(),
		Name:  a.sink.AddString(t.Name()),
		Space: a.sink.AddString(t.Namespace()),
	})
	return handle.New(handle.TableTypeRef, row), nil
}

func isComposite(t host.Type) bool {
	if _, ok := t.Primitive(); ok {
		return true
	}
	return t.IsPointer() || t.IsArray() || t.IsGenericParameter() || t.IsConstructedGeneric()
}

func (a *Authority) assemblyRefLocked(id host.AssemblyIdent) (handle.Handle, error) {
	if id.Name == "" {
		return handle.Handle{}, fmt.Errorf("type has neither declaring type nor assembly scope: %w", ErrInvalidArgument)
	}
	if h, ok := a.asmRefs[id]; ok {
		return h, nil
	}
	row := a.sink.AddAssemblyRef(metadata.AssemblyRef{
		Name:  a.sink.AddString(id.Name),
		Major: uint32(id.Major),
		Minor: uint32(id.Minor),
		Build: uint32(id.Build),
		Rev:   uint32(id.Rev),
	})
	h := handle.New(handle.TableAssemblyRef, row)
	a.asmRefs[id] = h
	return h, nil
}

// SignatureForType returns the memoized signature of a host type. With
// forceInstantiation set, an open generic-type reference is coerced into
// its own self-instantiation, for receiver, field and parameter types
// that must not reference the open definition.
func (a *Authority) SignatureForType(t host.Type, forceInstantiation bool) (sig.Signature, error) {
	if t == nil {
		return sig.Signature{}, fmt.Errorf("nil type description: %w", ErrInvalidArgument)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.signatureForTypeLocked(t, forceInstantiation)
}

func (a *Authority) signatureForTypeLocked(t host.Type, force bool) (sig.Signature, error) {
	key := typeSigKey{t: t, force: force}
	if s, ok := a.typeSigs[key]; ok {
		return s, nil
	}
	s, err := sig.FromType(t, func(nominal host.Type) (handle.Handle, error) {
		return a.handleForTypeLocked(nominal)
	})
	if err != nil {
		return sig.Signature{}, err
	}
	if force && t.IsGenericDefinition() {
		if s, err = s.WithOwnParamsAsGenericArgs(t.GenericArity()); err != nil {
			return sig.Signature{}, err
		}
	}
	a.typeSigs[key] = s
	return s, nil
}

// HandleForSignature resolves a signature back to a handle: class and
// value-type signatures decode directly, core-registered primitives map
// to their defining type, everything else interns a composite-type
// entry.
func (a *Authority) HandleForSignature(s sig.Signature) (handle.Handle, error) {
	if s.IsZero() {
		return handle.Handle{}, fmt.Errorf("empty signature: %w", ErrInvalidArgument)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.handleForSignatureLocked(s)
}

func (a *Authority) handleForSignatureLocked(s sig.Signature) (handle.Handle, error) {
	if !s.IsGenericInst() && (s.IsClass() || s.IsValueType()) {
		return s.ClassOrValueTypeHandle()
	}
	if s.IsPrimitive() {
		if h, ok := a.coreTypes[host.Primitive(s.FirstByte())]; ok {
			return h, nil
		}
	}
	if h, ok := a.specHandles[s]; ok {
		return h, nil
	}
	blob, err := a.sink.AddSignature(s)
	if err != nil {
		return handle.Handle{}, err
	}
	row := a.sink.AddTypeSpec(metadata.TypeSpec{Sig: blob})
	h := handle.New(handle.TableTypeSpec, row)
	a.specHandles[s] = h
	return h, nil
}
