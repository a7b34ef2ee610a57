package emit

import (
	"fmt"

	"anvil/internal/handle"
	"anvil/internal/host"
	"anvil/internal/metadata"
	"anvil/internal/sig"
)

// HandleForField resolves an external field reference. With a zero
// instantiatedType the reference is interned against the field's
// declaring type; otherwise the field belongs to an open generic type and
// is referenced against that one closed instantiation, which needs its
// own reference row per instantiation.
func (a *Authority) HandleForField(f host.Field, instantiatedType handle.Handle) (handle.Handle, error) {
	if f == nil {
		return handle.Handle{}, fmt.Errorf("nil field description: %w", ErrInvalidArgument)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if !instantiatedType.IsNil() {
		return a.memberRefOnInstantiationLocked(f, instantiatedType)
	}
	if h, ok := a.fieldHandles[f]; ok {
		return h, nil
	}
	h, err := a.plainMemberRefLocked(f)
	if err != nil {
		return handle.Handle{}, err
	}
	a.fieldHandles[f] = h
	return h, nil
}

// HandleForMethod resolves an external method reference. Three cases:
// a plain member interns one reference row and registers its stack
// effect; a constructed generic method resolves its open definition and
// interns a generic-instantiation entry, reusing an existing one
// byte-for-byte; a member of an open generic type referenced against a
// closed instantiation is cached per (member, instantiation) pair.
func (a *Authority) HandleForMethod(m host.Method, instantiatedType handle.Handle) (handle.Handle, error) {
	if m == nil {
		return handle.Handle{}, fmt.Errorf("nil method description: %w", ErrInvalidArgument)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.handleForMethodLocked(m, instantiatedType)
}

func (a *Authority) handleForMethodLocked(m host.Method, instantiatedType handle.Handle) (handle.Handle, error) {
	if m.IsConstructedGeneric() {
		def, err := a.handleForMethodLocked(m.GenericDefinition(), instantiatedType)
		if err != nil {
			return handle.Handle{}, err
		}
		hostArgs := m.GenericArguments()
		if len(hostArgs) == 0 {
			return handle.Handle{}, fmt.Errorf("constructed generic method %s has no arguments: %w", m.Name(), ErrInvalidArgument)
		}
		sigs, err := a.argumentSigsLocked(hostArgs)
		if err != nil {
			return handle.Handle{}, err
		}
		key, err := NewInstKey(def, sigs)
		if err != nil {
			return handle.Handle{}, err
		}
		return a.internInstantiationLocked(key)
	}
	if !instantiatedType.IsNil() {
		return a.memberRefOnInstantiationLocked(m, instantiatedType)
	}
	if h, ok := a.methodHandles[m]; ok {
		return h, nil
	}
	h, err := a.plainMemberRefLocked(m)
	if err != nil {
		return handle.Handle{}, err
	}
	a.methodHandles[m] = h
	a.effects.record(h.Token(), methodEffect(m))
	return h, nil
}

// plainMemberRefLocked interns a reference row for a member against its
// own declaring type.
func (a *Authority) plainMemberRefLocked(m host.Member) (handle.Handle, error) {
	parent, err := a.handleForTypeLocked(m.Declaring())
	if err != nil {
		return handle.Handle{}, err
	}
	blob, err := a.memberBlobLocked(m)
	if err != nil {
		return handle.Handle{}, err
	}
	row := a.sink.AddMemberRef(metadata.MemberRef{
		Parent: parent.Token(),
		Name:   a.sink.AddString(m.Name()),
		Sig:    blob,
	})
	return handle.New(handle.TableMemberRef, row), nil
}

// memberRefOnInstantiationLocked interns a reference row for a member of
// an open generic type against one closed instantiation of it. Each
// distinct instantiation needs its own row, so the cache key is the
// (member, instantiation) pair.
func (a *Authority) memberRefOnInstantiationLocked(m host.Member, inst handle.Handle) (handle.Handle, error) {
	if inst.Table() != handle.TableTypeSpec {
		return handle.Handle{}, fmt.Errorf("instantiation handle %s is not a composite-type entry: %w", inst, ErrInvalidArgument)
	}
	if m.Declaring() == nil || m.Declaring().GenericArity() == 0 {
		return handle.Handle{}, fmt.Errorf("member %s does not belong to a generic type: %w", m.Name(), ErrInvalidOperation)
	}
	key := memberInstKey{member: m, inst: inst}
	if h, ok := a.memberInst[key]; ok {
		return h, nil
	}
	blob, err := a.memberBlobLocked(m)
	if err != nil {
		return handle.Handle{}, err
	}
	row := a.sink.AddMemberRef(metadata.MemberRef{
		Parent: inst.Token(),
		Name:   a.sink.AddString(m.Name()),
		Sig:    blob,
	})
	h := handle.New(handle.TableMemberRef, row)
	a.memberInst[key] = h
	if method, ok := m.(host.Method); ok {
		a.effects.record(h.Token(), methodEffect(method))
	}
	return h, nil
}

// memberBlobLocked builds and caches the signature blob of an external
// member.
func (a *Authority) memberBlobLocked(m host.Member) (uint32, error) {
	if blob, ok := a.memberBlobs[m]; ok {
		return blob, nil
	}
	var blob uint32
	switch mm := m.(type) {
	case host.Field:
		s, err := a.fieldSigLocked(mm.FieldType())
		if err != nil {
			return 0, err
		}
		if blob, err = a.sink.AddSignature(s); err != nil {
			return 0, err
		}
	case host.Method:
		s, err := a.methodSigLocked(methodShape{
			hasThis:      mm.HasThis(),
			explicitThis: mm.ExplicitThis(),
			varArg:       mm.IsVarArg(),
			genericArity: mm.GenericArity(),
			receiver:     mm.Declaring(),
			ret:          mm.ReturnType(),
			params:       mm.ParamTypes(),
			extras:       mm.ExtraVarArgTypes(),
		})
		if err != nil {
			return 0, err
		}
		if blob, err = a.sink.AddSignature(s); err != nil {
			return 0, err
		}
	default:
		return 0, fmt.Errorf("unknown member kind %T: %w", m, ErrInvalidArgument)
	}
	a.memberBlobs[m] = blob
	return blob, nil
}

func (a *Authority) argumentSigsLocked(args []host.Type) ([]sig.Signature, error) {
	out := make([]sig.Signature, len(args))
	for i, t := range args {
		s, err := a.signatureForTypeLocked(t, true)
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}

// methodEffect derives the operand-stack effect of a call from the
// method shape.
func methodEffect(m host.Method) StackEffect {
	pops := len(m.ParamTypes()) + len(m.ExtraVarArgTypes())
	if m.HasThis() {
		pops++
	}
	pushes := 1
	if code, ok := m.ReturnType().Primitive(); ok && code == host.PrimVoid {
		pushes = 0
	}
	return StackEffect{Pushes: pushes, Pops: pops, HasReceiver: m.HasThis()}
}
