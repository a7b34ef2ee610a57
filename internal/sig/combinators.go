package sig

import (
	"fmt"

	"fortio.org/safecast"

	"anvil/internal/handle"
	"anvil/internal/host"
)

// ForPrimitive returns the one-byte signature of a built-in type.
func ForPrimitive(code host.Primitive) Signature {
	return FromBytes([]byte{byte(code)})
}

// ForClass encodes a reference-type handle.
func ForClass(h handle.Handle) (Signature, error) {
	return forNominal(elemClass, h)
}

// ForValueType encodes a value-type handle.
func ForValueType(h handle.Handle) (Signature, error) {
	return forNominal(elemValueType, h)
}

func forNominal(tag byte, h handle.Handle) (Signature, error) {
	if h.IsNil() {
		return Signature{}, fmt.Errorf("nil type handle: %w", ErrInvalidArgument)
	}
	coded, err := handle.TypeDefOrRef(h)
	if err != nil {
		return Signature{}, fmt.Errorf("%v: %w", err, ErrInvalidArgument)
	}
	var out Signature
	err = WithBuilder(func(b *Builder) error {
		b.AppendByte(tag)
		if err := b.AppendCompressedUint(coded); err != nil {
			return err
		}
		out = b.Finish()
		return nil
	})
	return out, err
}

// ForGenericTypeParam encodes a generic type parameter by position.
func ForGenericTypeParam(pos int) (Signature, error) {
	return forParam(elemVar, pos)
}

// ForGenericMethodParam encodes a generic method parameter by position.
func ForGenericMethodParam(pos int) (Signature, error) {
	return forParam(elemMVar, pos)
}

func forParam(tag byte, pos int) (Signature, error) {
	if pos < 0 {
		return Signature{}, fmt.Errorf("generic-parameter position %d: %w", pos, ErrInvalidArgument)
	}
	var out Signature
	err := WithBuilder(func(b *Builder) error {
		b.AppendByte(tag)
		if err := b.appendParamPosition(uint32(pos)); err != nil {
			return err
		}
		out = b.Finish()
		return nil
	})
	return out, err
}

// AsByRef wraps the signature as a by-reference type. A by-reference
// signature cannot be wrapped again.
func (s Signature) AsByRef() (Signature, error) {
	return s.wrap(elemByRef)
}

// AsPointer wraps the signature as an unmanaged pointer type.
func (s Signature) AsPointer() (Signature, error) {
	return s.wrap(elemPtr)
}

// AsSZArray wraps the signature as a single-dimension zero-based array.
func (s Signature) AsSZArray() (Signature, error) {
	return s.wrap(elemSZArray)
}

func (s Signature) wrap(tag byte) (Signature, error) {
	if s.IsZero() {
		return Signature{}, fmt.Errorf("empty element signature: %w", ErrInvalidArgument)
	}
	if s.IsByRef() {
		return Signature{}, fmt.Errorf("a by-reference signature cannot be an element: %w", ErrInvalidOperation)
	}
	out := make([]byte, 0, s.Len()+1)
	out = append(out, tag)
	return FromBytes(s.AppendTo(out)), nil
}

// AsArray wraps the signature as a rank-one general array with no
// declared lengths or lower bounds.
func (s Signature) AsArray() (Signature, error) {
	return s.MakeArray(1, nil, nil)
}

// MakeArray wraps the signature as a general array of the given rank.
// lengths and lowerBounds may be shorter than rank but never longer.
func (s Signature) MakeArray(rank int, lengths []int, lowerBounds []int) (Signature, error) {
	if s.IsZero() {
		return Signature{}, fmt.Errorf("empty element signature: %w", ErrInvalidArgument)
	}
	if rank <= 0 {
		return Signature{}, fmt.Errorf("array rank %d: %w", rank, ErrInvalidArgument)
	}
	if len(lengths) > rank {
		return Signature{}, fmt.Errorf("%d lengths for rank %d: %w", len(lengths), rank, ErrInvalidArgument)
	}
	if len(lowerBounds) > rank {
		return Signature{}, fmt.Errorf("%d lower bounds for rank %d: %w", len(lowerBounds), rank, ErrInvalidArgument)
	}
	if s.IsByRef() {
		return Signature{}, fmt.Errorf("a by-reference signature cannot be an element: %w", ErrInvalidOperation)
	}
	var out Signature
	err := WithBuilder(func(b *Builder) error {
		b.AppendByte(elemArray)
		b.AppendSignature(s)
		rank32, err := safecast.Conv[uint32](rank)
		if err != nil {
			return fmt.Errorf("array rank %d: %w", rank, ErrOverflow)
		}
		if err := b.AppendCompressedUint(rank32); err != nil {
			return err
		}
		if err := b.AppendCompressedUint(uint32(len(lengths))); err != nil {
			return err
		}
		for _, n := range lengths {
			n32, err := safecast.Conv[uint32](n)
			if err != nil {
				return fmt.Errorf("array length %d: %w", n, ErrOverflow)
			}
			if err := b.AppendCompressedUint(n32); err != nil {
				return err
			}
		}
		if err := b.AppendCompressedUint(uint32(len(lowerBounds))); err != nil {
			return err
		}
		for _, n := range lowerBounds {
			n32, err := safecast.Conv[int32](n)
			if err != nil {
				return fmt.Errorf("array lower bound %d: %w", n, ErrOverflow)
			}
			if err := b.AppendCompressedInt(n32); err != nil {
				return err
			}
		}
		out = b.Finish()
		return nil
	})
	return out, err
}

// WithGenericArgs closes a class or value-type signature over the given
// argument signatures.
func (s Signature) WithGenericArgs(args []Signature) (Signature, error) {
	if len(args) == 0 {
		return Signature{}, fmt.Errorf("empty generic-argument list: %w", ErrInvalidArgument)
	}
	if tag := s.FirstByte(); tag != elemClass && tag != elemValueType {
		return Signature{}, fmt.Errorf("receiver is not class or value-type tagged: %w", ErrInvalidOperation)
	}
	var out Signature
	err := WithBuilder(func(b *Builder) error {
		b.AppendByte(elemGenericInst)
		b.AppendSignature(s)
		if err := b.AppendCompressedUint(uint32(len(args))); err != nil {
			return err
		}
		for _, a := range args {
			if a.IsZero() {
				return fmt.Errorf("empty generic-argument signature: %w", ErrInvalidArgument)
			}
			b.AppendSignature(a)
		}
		out = b.Finish()
		return nil
	})
	return out, err
}

// WithOwnParamsAsGenericArgs closes an open generic type over its own n
// type parameters, yielding the self-instantiation.
func (s Signature) WithOwnParamsAsGenericArgs(n int) (Signature, error) {
	if n <= 0 {
		return Signature{}, fmt.Errorf("generic arity %d: %w", n, ErrInvalidArgument)
	}
	if tag := s.FirstByte(); tag != elemClass && tag != elemValueType {
		return Signature{}, fmt.Errorf("receiver is not class or value-type tagged: %w", ErrInvalidOperation)
	}
	var out Signature
	err := WithBuilder(func(b *Builder) error {
		b.AppendByte(elemGenericInst)
		b.AppendSignature(s)
		if err := b.AppendCompressedUint(uint32(n)); err != nil {
			return err
		}
		for i := 0; i < n; i++ {
			b.AppendByte(elemVar)
			if err := b.appendParamPosition(uint32(i)); err != nil {
				return err
			}
		}
		out = b.Finish()
		return nil
	})
	return out, err
}
