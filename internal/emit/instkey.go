package emit

import (
	"fmt"

	"anvil/internal/handle"
	"anvil/internal/sig"
)

// methodInstTag leads a generic-method instantiation blob.
const methodInstTag byte = 0x0A

// InstKey identifies one generic-method instantiation: the defining
// handle plus the encoded argument signatures. It doubles as the
// instantiation signature blob and as the deduplication key. Two keys are
// equal exactly when their defining handles are identical and their
// encoded arguments are byte-for-byte equal.
type InstKey struct {
	def  handle.Ref
	blob string
}

// NewInstKey encodes the argument list for the given defining handle.
func NewInstKey(def handle.Ref, args []sig.Signature) (InstKey, error) {
	if def == nil || def.IsNil() {
		return InstKey{}, fmt.Errorf("nil defining handle: %w", ErrInvalidArgument)
	}
	if len(args) == 0 {
		return InstKey{}, fmt.Errorf("empty instantiation argument list: %w", ErrInvalidArgument)
	}
	var blob []byte
	err := sig.WithBuilder(func(b *sig.Builder) error {
		b.AppendByte(methodInstTag)
		if err := b.AppendCompressedUint(uint32(len(args))); err != nil {
			return err
		}
		for _, a := range args {
			if a.IsZero() {
				return fmt.Errorf("empty argument signature: %w", ErrInvalidArgument)
			}
			b.AppendSignature(a)
		}
		blob = b.FinishBytes()
		return nil
	})
	if err != nil {
		return InstKey{}, err
	}
	return InstKey{def: def, blob: string(blob)}, nil
}

// Def returns the defining handle.
func (k InstKey) Def() handle.Ref { return k.def }

// Blob returns the encoded instantiation signature.
func (k InstKey) Blob() []byte { return []byte(k.blob) }

// IsZero reports an unset key.
func (k InstKey) IsZero() bool { return k.def == nil }
