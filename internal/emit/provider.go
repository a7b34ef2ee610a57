package emit

import (
	"fmt"

	"anvil/internal/handle"
	"anvil/internal/host"
	"anvil/internal/metadata"
	"anvil/internal/sig"
)

// TokenSource is the surface an instruction encoder consumes while
// assembling method bodies: raw tokens for the entities it references,
// locals interning and stack-effect queries. Tokens for locally defined
// fields and methods are provisional until the session finishes; the
// encoder records their offsets as fixups.
type TokenSource interface {
	TypeToken(t host.Type) (uint32, error)
	FieldToken(f host.Field) (uint32, error)
	MethodToken(m host.Method) (uint32, error)
	StringToken(s string) (uint32, error)
	LocalsToken(locals []sig.Signature) (uint32, error)

	// StackEffectFor keys the effect by callee alone. Every call-shaped
	// opcode currently consumes the recorded effect unchanged; an opcode
	// whose delta diverges from its callee's (tail calls, newobj) would
	// need the opcode threaded through here.
	StackEffectFor(tok uint32) StackEffect

	IsProvisionalToken(tok uint32) bool
}

var _ TokenSource = (*Authority)(nil)

// TypeToken returns the raw token of a type's handle.
func (a *Authority) TypeToken(t host.Type) (uint32, error) {
	h, err := a.HandleForType(t)
	if err != nil {
		return 0, err
	}
	return h.Token(), nil
}

// FieldToken returns the raw token of a field reference, without an
// instantiated owner context.
func (a *Authority) FieldToken(f host.Field) (uint32, error) {
	h, err := a.HandleForField(f, handle.Handle{})
	if err != nil {
		return 0, err
	}
	return h.Token(), nil
}

// MethodToken returns the raw token of a method reference, without an
// instantiated owner context.
func (a *Authority) MethodToken(m host.Method) (uint32, error) {
	h, err := a.HandleForMethod(m, handle.Handle{})
	if err != nil {
		return 0, err
	}
	return h.Token(), nil
}

// StringToken interns a user string and returns its token.
func (a *Authority) StringToken(s string) (uint32, error) {
	if s == "" {
		return 0, fmt.Errorf("empty user string: %w", ErrInvalidArgument)
	}
	var off uint32
	if err := a.WithSink(func(sink *metadata.Sink) error {
		var err error
		off, err = sink.AddUserString(s)
		return err
	}); err != nil {
		return 0, err
	}
	return uint32(handle.TableUserString)<<24 | off, nil
}

// LocalsToken interns a local-variable signature and returns the token
// of its standalone-signature row.
func (a *Authority) LocalsToken(locals []sig.Signature) (uint32, error) {
	h, err := a.LocalsHandle(locals)
	if err != nil {
		return 0, err
	}
	return h.Token(), nil
}

// IsProvisionalToken reports whether a token still names a provisional
// row that the finished session's token map must translate.
func (a *Authority) IsProvisionalToken(tok uint32) bool {
	switch handle.Table(tok >> 24) {
	case handle.TableFieldDef, handle.TableMethodDef:
		return true
	default:
		return false
	}
}
