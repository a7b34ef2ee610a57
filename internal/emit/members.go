package emit

import (
	"fmt"

	"anvil/internal/handle"
	"anvil/internal/host"
	"anvil/internal/metadata"
	"anvil/internal/sig"
)

// FieldBuilder accumulates one field declaration: attributes, eagerly
// built signature, provisional identity and an optional literal value.
type FieldBuilder struct {
	owner   *TypeBuilder
	name    string
	flags   FieldAttrs
	typ     host.Type
	sig     sig.Signature
	blob    uint32
	virtual handle.Virtual

	constElem byte
	constBlob uint32
	hasConst  bool
}

// Ref returns the field's provisional identity.
func (f *FieldBuilder) Ref() handle.Virtual { return f.virtual }

// Name returns the declared field name.
func (f *FieldBuilder) Name() string { return f.name }

// Signature returns the eagerly built field signature.
func (f *FieldBuilder) Signature() sig.Signature { return f.sig }

// SetLiteralValue attaches the constant value of a literal field. The
// raw bytes are the value's binary encoding; code tags its type.
func (f *FieldBuilder) SetLiteralValue(code host.Primitive, raw []byte) error {
	if f.flags&FieldLiteral == 0 {
		return fmt.Errorf("field %s is not literal: %w", f.name, ErrInvalidOperation)
	}
	var blob uint32
	err := f.owner.a.WithSink(func(s *metadata.Sink) error {
		var err error
		blob, err = s.AddBlob(raw)
		return err
	})
	if err != nil {
		return err
	}
	f.constElem = byte(code)
	f.constBlob = blob
	f.hasConst = true
	return nil
}

// MethodBody is one method's executable payload. Raw bodies carry the
// byte offsets of embedded provisional tokens; the token map patches
// them before emission.
type MethodBody struct {
	Code        []byte
	MaxStack    int
	LocalSig    handle.Handle // StandAloneSig handle, nil for no locals
	TokenFixups []int
	InitLocals  bool
}

// MethodBuilder accumulates one method declaration: attributes, eagerly
// built signature, provisional identity, named parameters, generic
// parameter slots and an optional body.
type MethodBuilder struct {
	owner   *TypeBuilder
	name    string
	flags   MethodAttrs
	sig     sig.Signature
	blob    uint32
	virtual handle.Virtual

	paramCount int
	params     map[int]paramInfo
	gparams    []genericParamSlot

	body       *MethodBody
	bodyLayout bodyLayout
	hasLayout  bool
}

type paramInfo struct {
	name  string
	flags ParamAttrs
}

// Ref returns the method's provisional identity.
func (m *MethodBuilder) Ref() handle.Virtual { return m.virtual }

// Name returns the declared method name.
func (m *MethodBuilder) Name() string { return m.name }

// Signature returns the eagerly built method signature.
func (m *MethodBuilder) Signature() sig.Signature { return m.sig }

// SetParamName names one parameter. seq is the 1-based parameter index;
// only named parameters produce parameter rows.
func (m *MethodBuilder) SetParamName(seq int, name string, flags ParamAttrs) error {
	if seq < 1 || seq > m.paramCount {
		return fmt.Errorf("parameter index %d of %d: %w", seq, m.paramCount, ErrInvalidArgument)
	}
	if name == "" {
		return fmt.Errorf("empty parameter name: %w", ErrInvalidArgument)
	}
	if _, ok := m.params[seq]; ok {
		return fmt.Errorf("parameter %d already named: %w", seq, ErrInvalidOperation)
	}
	m.params[seq] = paramInfo{name: name, flags: flags}
	return nil
}

// SetGenericParam fills one of the method's generic-parameter slots.
// Slots are pre-sized at definition and may be filled in any order, but
// each only once.
func (m *MethodBuilder) SetGenericParam(pos int, name string, flags GenericParamAttrs, constraints []handle.Handle) error {
	return fillGenericParamSlot(m.gparams, pos, name, flags, constraints)
}

// SetMethodBody attaches the executable payload. Abstract and P/Invoke
// methods cannot have one.
func (m *MethodBuilder) SetMethodBody(body MethodBody) error {
	if m.flags&MethodAbstract != 0 {
		return fmt.Errorf("abstract method %s cannot have a body: %w", m.name, ErrInvalidOperation)
	}
	if m.flags&MethodPInvoke != 0 {
		return fmt.Errorf("p/invoke method %s cannot have a body: %w", m.name, ErrInvalidOperation)
	}
	if len(body.Code) == 0 {
		return fmt.Errorf("empty method body: %w", ErrInvalidArgument)
	}
	for _, off := range body.TokenFixups {
		if off < 0 || off+4 > len(body.Code) {
			return fmt.Errorf("token fixup offset %d outside body of %d bytes: %w", off, len(body.Code), ErrInvalidArgument)
		}
	}
	if body.MaxStack < 0 {
		return fmt.Errorf("negative max stack: %w", ErrInvalidArgument)
	}
	m.body = &body
	return nil
}

// PropertyBuilder accumulates one property declaration and its accessor
// wiring.
type PropertyBuilder struct {
	owner  *TypeBuilder
	name   string
	flags  PropertyAttrs
	blob   uint32
	getter *MethodBuilder
	setter *MethodBuilder
}

// SetGetter wires the property's get accessor.
func (p *PropertyBuilder) SetGetter(m *MethodBuilder) error {
	if m == nil || m.owner != p.owner {
		return fmt.Errorf("getter must be a method of the same type: %w", ErrInvalidArgument)
	}
	p.getter = m
	return nil
}

// SetSetter wires the property's set accessor.
func (p *PropertyBuilder) SetSetter(m *MethodBuilder) error {
	if m == nil || m.owner != p.owner {
		return fmt.Errorf("setter must be a method of the same type: %w", ErrInvalidArgument)
	}
	p.setter = m
	return nil
}

// EventBuilder accumulates one event declaration and its accessor
// wiring.
type EventBuilder struct {
	owner    *TypeBuilder
	name     string
	flags    EventAttrs
	typeCode uint32 // type coded index of the event's delegate type
	adder    *MethodBuilder
	remover  *MethodBuilder
}

// SetAdder wires the event's add accessor.
func (e *EventBuilder) SetAdder(m *MethodBuilder) error {
	if m == nil || m.owner != e.owner {
		return fmt.Errorf("adder must be a method of the same type: %w", ErrInvalidArgument)
	}
	e.adder = m
	return nil
}

// SetRemover wires the event's remove accessor.
func (e *EventBuilder) SetRemover(m *MethodBuilder) error {
	if m == nil || m.owner != e.owner {
		return fmt.Errorf("remover must be a method of the same type: %w", ErrInvalidArgument)
	}
	e.remover = m
	return nil
}

type genericParamSlot struct {
	name        string
	flags       GenericParamAttrs
	constraints []handle.Handle
	set         bool
}

func fillGenericParamSlot(slots []genericParamSlot, pos int, name string, flags GenericParamAttrs, constraints []handle.Handle) error {
	if pos < 0 || pos >= len(slots) {
		return fmt.Errorf("generic-parameter position %d of %d: %w", pos, len(slots), ErrInvalidArgument)
	}
	if name == "" {
		return fmt.Errorf("empty generic-parameter name: %w", ErrInvalidArgument)
	}
	if slots[pos].set {
		return fmt.Errorf("generic-parameter slot %d already filled: %w", pos, ErrInvalidOperation)
	}
	for _, c := range constraints {
		if c.IsNil() {
			return fmt.Errorf("nil constraint handle: %w", ErrInvalidArgument)
		}
	}
	slots[pos] = genericParamSlot{name: name, flags: flags, constraints: constraints, set: true}
	return nil
}
