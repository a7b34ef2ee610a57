package emit

import (
	"fmt"

	"anvil/internal/handle"
	"anvil/internal/host"
	"anvil/internal/metadata"
	"anvil/internal/sig"
)

// Eager signature construction for locally defined members. Each returns
// the signature and its interned blob offset.

func (a *Authority) localFieldSig(t host.Type) (sig.Signature, uint32, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	s, err := a.fieldSigLocked(t)
	if err != nil {
		return sig.Signature{}, 0, err
	}
	blob, err := a.sink.AddSignature(s)
	if err != nil {
		return sig.Signature{}, 0, err
	}
	return s, blob, nil
}

func (a *Authority) localMethodSig(shape methodShape) (sig.Signature, uint32, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	s, err := a.methodSigLocked(shape)
	if err != nil {
		return sig.Signature{}, 0, err
	}
	blob, err := a.sink.AddSignature(s)
	if err != nil {
		return sig.Signature{}, 0, err
	}
	return s, blob, nil
}

func (a *Authority) localPropertySig(hasThis bool, t host.Type, params []host.Type) (uint32, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	s, err := a.propertySigLocked(hasThis, t, params)
	if err != nil {
		return 0, err
	}
	return a.sink.AddSignature(s)
}

// HandleForLocalField resolves a locally defined field. Without an
// instantiation it is the field's provisional identity; against a closed
// instantiation of the declaring generic type it interns a reference row
// cached per (field, instantiation) pair.
func (a *Authority) HandleForLocalField(f *FieldBuilder, instantiatedType handle.Handle) (handle.Ref, error) {
	if f == nil {
		return nil, fmt.Errorf("nil field builder: %w", ErrInvalidArgument)
	}
	if instantiatedType.IsNil() {
		return f.virtual, nil
	}
	return a.localMemberRef(f, f.owner, f.name, f.blob, instantiatedType)
}

// HandleForLocalMethod resolves a locally defined method, like
// HandleForLocalField. Reference rows created for an instantiation
// inherit the method's stack effect.
func (a *Authority) HandleForLocalMethod(m *MethodBuilder, instantiatedType handle.Handle) (handle.Ref, error) {
	if m == nil {
		return nil, fmt.Errorf("nil method builder: %w", ErrInvalidArgument)
	}
	if instantiatedType.IsNil() {
		return m.virtual, nil
	}
	h, err := a.localMemberRef(m, m.owner, m.name, m.blob, instantiatedType)
	if err != nil {
		return nil, err
	}
	a.effects.inherit(h.Token(), m.virtual.Token())
	return h, nil
}

func (a *Authority) localMemberRef(member any, owner *TypeBuilder, name string, blob uint32, inst handle.Handle) (handle.Handle, error) {
	if owner.GenericArity() == 0 {
		return handle.Handle{}, fmt.Errorf("declaring type %s is not generic: %w", owner.Name(), ErrInvalidOperation)
	}
	if inst.Table() != handle.TableTypeSpec {
		return handle.Handle{}, fmt.Errorf("instantiation handle %s is not a composite-type entry: %w", inst, ErrInvalidArgument)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	key := localInstKey{member: member, inst: inst}
	if h, ok := a.localInst[key]; ok {
		return h, nil
	}
	row := a.sink.AddMemberRef(metadata.MemberRef{
		Parent: inst.Token(),
		Name:   a.sink.AddString(name),
		Sig:    blob,
	})
	h := handle.New(handle.TableMemberRef, row)
	a.localInst[key] = h
	return h, nil
}

// LocalsHandle interns a local-variable signature blob as a
// free-standing signature row, memoized by content.
func (a *Authority) LocalsHandle(locals []sig.Signature) (handle.Handle, error) {
	blob, err := localsBlob(locals)
	if err != nil {
		return handle.Handle{}, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if h, ok := a.localSigs[string(blob)]; ok {
		return h, nil
	}
	off, err := a.sink.AddBlob(blob)
	if err != nil {
		return handle.Handle{}, err
	}
	row := a.sink.AddStandAloneSig(metadata.StandAloneSig{Sig: off})
	h := handle.New(handle.TableStandAloneSig, row)
	a.localSigs[string(blob)] = h
	return h, nil
}
