package emit

import (
	"fmt"

	"anvil/internal/host"
	"anvil/internal/sig"
)

// Member signature shapes. All member types are encoded with
// forceInstantiation set, so an open generic type used as a field,
// receiver or parameter type becomes its own self-instantiation.

func (a *Authority) fieldSigLocked(t host.Type) (sig.Signature, error) {
	typeSig, err := a.signatureForTypeLocked(t, true)
	if err != nil {
		return sig.Signature{}, err
	}
	var out sig.Signature
	err = sig.WithBuilder(func(b *sig.Builder) error {
		b.AppendByte(sig.TagField)
		b.AppendSignature(typeSig)
		out = b.Finish()
		return nil
	})
	return out, err
}

type methodShape struct {
	hasThis      bool
	explicitThis bool
	varArg       bool
	genericArity int
	receiver     host.Type // encoded only with explicitThis
	ret          host.Type
	params       []host.Type
	extras       []host.Type // vararg extras, after the sentinel
}

func (a *Authority) methodSigLocked(m methodShape) (sig.Signature, error) {
	if m.ret == nil {
		return sig.Signature{}, fmt.Errorf("nil return type: %w", ErrInvalidArgument)
	}
	if m.explicitThis && m.receiver == nil {
		return sig.Signature{}, fmt.Errorf("explicit receiver without receiver type: %w", ErrInvalidArgument)
	}
	if len(m.extras) > 0 && !m.varArg {
		return sig.Signature{}, fmt.Errorf("extra argument types on a non-vararg method: %w", ErrInvalidArgument)
	}

	conv := sig.CallDefault
	if m.varArg {
		conv = sig.CallVarArg
	}
	if m.hasThis {
		conv |= sig.CallHasThis
	}
	if m.explicitThis {
		conv |= sig.CallExplicitThis
	}
	if m.genericArity > 0 {
		conv |= sig.CallGeneric
	}

	retSig, err := a.signatureForTypeLocked(m.ret, true)
	if err != nil {
		return sig.Signature{}, err
	}
	paramSigs := make([]sig.Signature, 0, len(m.params)+len(m.extras)+1)
	if m.explicitThis {
		recv, err := a.signatureForTypeLocked(m.receiver, true)
		if err != nil {
			return sig.Signature{}, err
		}
		paramSigs = append(paramSigs, recv)
	}
	for _, p := range m.params {
		ps, err := a.signatureForTypeLocked(p, true)
		if err != nil {
			return sig.Signature{}, err
		}
		paramSigs = append(paramSigs, ps)
	}
	sentinelAt := len(paramSigs)
	for _, p := range m.extras {
		ps, err := a.signatureForTypeLocked(p, true)
		if err != nil {
			return sig.Signature{}, err
		}
		paramSigs = append(paramSigs, ps)
	}

	var out sig.Signature
	err = sig.WithBuilder(func(b *sig.Builder) error {
		b.AppendByte(conv)
		if m.genericArity > 0 {
			if err := b.AppendCompressedUint(uint32(m.genericArity)); err != nil {
				return err
			}
		}
		if err := b.AppendCompressedUint(uint32(len(paramSigs))); err != nil {
			return err
		}
		b.AppendSignature(retSig)
		for i, ps := range paramSigs {
			if len(m.extras) > 0 && i == sentinelAt {
				b.AppendByte(sig.Sentinel)
			}
			b.AppendSignature(ps)
		}
		out = b.Finish()
		return nil
	})
	return out, err
}

func (a *Authority) propertySigLocked(hasThis bool, t host.Type, params []host.Type) (sig.Signature, error) {
	if t == nil {
		return sig.Signature{}, fmt.Errorf("nil property type: %w", ErrInvalidArgument)
	}
	conv := sig.TagProperty
	if hasThis {
		conv |= sig.CallHasThis
	}
	typeSig, err := a.signatureForTypeLocked(t, true)
	if err != nil {
		return sig.Signature{}, err
	}
	paramSigs := make([]sig.Signature, len(params))
	for i, p := range params {
		if paramSigs[i], err = a.signatureForTypeLocked(p, true); err != nil {
			return sig.Signature{}, err
		}
	}
	var out sig.Signature
	err = sig.WithBuilder(func(b *sig.Builder) error {
		b.AppendByte(conv)
		if err := b.AppendCompressedUint(uint32(len(paramSigs))); err != nil {
			return err
		}
		b.AppendSignature(typeSig)
		for _, ps := range paramSigs {
			b.AppendSignature(ps)
		}
		out = b.Finish()
		return nil
	})
	return out, err
}

// localsBlob encodes a local-variable signature blob.
func localsBlob(locals []sig.Signature) ([]byte, error) {
	if len(locals) == 0 {
		return nil, fmt.Errorf("empty locals list: %w", ErrInvalidArgument)
	}
	var out []byte
	err := sig.WithBuilder(func(b *sig.Builder) error {
		b.AppendByte(sig.TagLocals)
		if err := b.AppendCompressedUint(uint32(len(locals))); err != nil {
			return err
		}
		for _, l := range locals {
			if l.IsZero() {
				return fmt.Errorf("empty local signature: %w", ErrInvalidArgument)
			}
			b.AppendSignature(l)
		}
		out = b.FinishBytes()
		return nil
	})
	return out, err
}
