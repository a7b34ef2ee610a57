package emit

import (
	"fmt"

	"anvil/internal/handle"
	"anvil/internal/host"
)

// TypeBuilder owns one type under construction: its parent, interfaces,
// generic-parameter slots, member builders and explicit override links.
// A type builder is driven by one producer goroutine at a time; anything
// crossing type boundaries goes through the authority.
type TypeBuilder struct {
	a *Authority
	h handle.Handle

	name  string
	space string
	flags TypeAttrs

	parent     handle.Handle
	interfaces []handle.Handle
	gparams    []genericParamSlot

	fields  []*FieldBuilder
	methods []*MethodBuilder
	props   []*PropertyBuilder
	events  []*EventBuilder

	overrides  []overrideLink
	overridden map[uint32]bool
}

type overrideLink struct {
	decl handle.Ref
	impl handle.Ref
}

// Handle returns the type's final TypeDef handle, known from creation
// because types are written in definition order.
func (t *TypeBuilder) Handle() handle.Handle { return t.h }

// Name returns the declared type name.
func (t *TypeBuilder) Name() string { return t.name }

// IsInterface reports whether the type is declared as an interface.
func (t *TypeBuilder) IsInterface() bool { return t.flags&TypeInterface != 0 }

// GenericArity returns the number of generic-parameter slots.
func (t *TypeBuilder) GenericArity() int { return len(t.gparams) }

// SetParent records the base type. Interfaces cannot have one.
func (t *TypeBuilder) SetParent(parent handle.Handle) error {
	if t.IsInterface() {
		return fmt.Errorf("interface %s cannot have a parent: %w", t.name, ErrInvalidOperation)
	}
	if parent.IsNil() {
		return fmt.Errorf("nil parent handle: %w", ErrInvalidArgument)
	}
	if _, err := handle.TypeDefOrRef(parent); err != nil {
		return fmt.Errorf("%v: %w", err, ErrInvalidArgument)
	}
	t.parent = parent
	return nil
}

// AddInterface records one implemented interface. Duplicates collapse.
func (t *TypeBuilder) AddInterface(iface handle.Handle) error {
	if iface.IsNil() {
		return fmt.Errorf("nil interface handle: %w", ErrInvalidArgument)
	}
	if _, err := handle.TypeDefOrRef(iface); err != nil {
		return fmt.Errorf("%v: %w", err, ErrInvalidArgument)
	}
	for _, have := range t.interfaces {
		if have == iface {
			return nil
		}
	}
	t.interfaces = append(t.interfaces, iface)
	return nil
}

// SetGenericParam fills one generic-parameter slot by position. Slots
// are pre-sized at type definition and may be filled in any order, each
// once.
func (t *TypeBuilder) SetGenericParam(pos int, name string, flags GenericParamAttrs, constraints []handle.Handle) error {
	return fillGenericParamSlot(t.gparams, pos, name, flags, constraints)
}

// SetOverride links an inherited or interface declaration to the method
// implementing it here. Each declaration can be implemented once.
func (t *TypeBuilder) SetOverride(decl, impl handle.Ref) error {
	if decl == nil || decl.IsNil() || impl == nil || impl.IsNil() {
		return fmt.Errorf("nil override handle: %w", ErrInvalidArgument)
	}
	if t.overridden[decl.Token()] {
		return fmt.Errorf("declaration %s already has an implementation: %w", decl, ErrInvalidOperation)
	}
	if t.overridden == nil {
		t.overridden = make(map[uint32]bool, 4)
	}
	t.overridden[decl.Token()] = true
	t.overrides = append(t.overrides, overrideLink{decl: decl, impl: impl})
	return nil
}

func validateFieldAttrs(name string, typ host.Type, flags FieldAttrs) error {
	if name == "" {
		return fmt.Errorf("empty field name: %w", ErrInvalidArgument)
	}
	if typ == nil {
		return fmt.Errorf("field %s: nil type: %w", name, ErrInvalidArgument)
	}
	if flags&FieldPInvoke != 0 {
		return fmt.Errorf("field %s: p/invoke fields: %w", name, ErrUnsupported)
	}
	if flags&FieldHasRVA != 0 {
		return fmt.Errorf("field %s: field data (RVA): %w", name, ErrUnsupported)
	}
	if flags&FieldHasMarshal != 0 {
		return fmt.Errorf("field %s: field marshaling: %w", name, ErrUnsupported)
	}
	if flags&FieldLiteral != 0 && flags&FieldStatic == 0 {
		return fmt.Errorf("field %s: literal requires static: %w", name, ErrInvalidArgument)
	}
	return nil
}

// DefineField declares a field. The signature is built eagerly; the
// returned builder carries the field's provisional identity.
func (t *TypeBuilder) DefineField(name string, typ host.Type, flags FieldAttrs) (*FieldBuilder, error) {
	if err := validateFieldAttrs(name, typ, flags); err != nil {
		return nil, err
	}
	s, blob, err := t.a.localFieldSig(typ)
	if err != nil {
		return nil, err
	}
	f := &FieldBuilder{
		owner:   t,
		name:    name,
		flags:   flags,
		typ:     typ,
		sig:     s,
		blob:    blob,
		virtual: t.a.NextVirtualFieldHandle(),
	}
	t.fields = append(t.fields, f)
	return f, nil
}

func (t *TypeBuilder) validateMethodAttrs(name string, ret host.Type, flags MethodAttrs) error {
	if name == "" {
		return fmt.Errorf("empty method name: %w", ErrInvalidArgument)
	}
	if ret == nil {
		return fmt.Errorf("method %s: nil return type: %w", name, ErrInvalidArgument)
	}
	if flags&MethodPInvoke != 0 {
		return fmt.Errorf("method %s: p/invoke methods: %w", name, ErrUnsupported)
	}
	if flags&MethodVirtual != 0 && flags&MethodStatic != 0 {
		return fmt.Errorf("method %s: virtual and static are mutually exclusive: %w", name, ErrInvalidArgument)
	}
	if flags&(MethodFinal|MethodAbstract) != 0 && flags&MethodVirtual == 0 {
		return fmt.Errorf("method %s: final and abstract require virtual: %w", name, ErrInvalidArgument)
	}
	if t.IsInterface() && flags&MethodStatic == 0 && flags&MethodAbstract == 0 {
		return fmt.Errorf("method %s: an interface instance method must be static or abstract: %w", name, ErrInvalidArgument)
	}
	return nil
}

// DefineMethod declares a method. Validation happens before the
// provisional method counter advances; the signature is built eagerly.
func (t *TypeBuilder) DefineMethod(name string, flags MethodAttrs, genericArity int, ret host.Type, params ...host.Type) (*MethodBuilder, error) {
	if err := t.validateMethodAttrs(name, ret, flags); err != nil {
		return nil, err
	}
	if genericArity < 0 {
		return nil, fmt.Errorf("method %s: generic arity %d: %w", name, genericArity, ErrInvalidArgument)
	}
	s, blob, err := t.a.localMethodSig(methodShape{
		hasThis:      flags&MethodStatic == 0,
		genericArity: genericArity,
		ret:          ret,
		params:       params,
	})
	if err != nil {
		return nil, err
	}
	m := &MethodBuilder{
		owner:      t,
		name:       name,
		flags:      flags,
		sig:        s,
		blob:       blob,
		virtual:    t.a.NextVirtualMethodHandle(),
		paramCount: len(params),
		params:     make(map[int]paramInfo, len(params)),
		gparams:    make([]genericParamSlot, genericArity),
	}
	t.methods = append(t.methods, m)
	return m, nil
}

// DefineConstructor declares an instance constructor.
func (t *TypeBuilder) DefineConstructor(flags MethodAttrs, params ...host.Type) (*MethodBuilder, error) {
	if flags&(MethodStatic|MethodVirtual|MethodAbstract|MethodFinal) != 0 {
		return nil, fmt.Errorf("constructor of %s: illegal attribute combination: %w", t.name, ErrInvalidArgument)
	}
	if t.IsInterface() {
		return nil, fmt.Errorf("interface %s cannot have a constructor: %w", t.name, ErrInvalidOperation)
	}
	voidRet := host.PrimitiveType(host.PrimVoid)
	flags |= MethodSpecialName | MethodRTSpecial
	s, blob, err := t.a.localMethodSig(methodShape{
		hasThis: true,
		ret:     voidRet,
		params:  params,
	})
	if err != nil {
		return nil, err
	}
	m := &MethodBuilder{
		owner:      t,
		name:       ".ctor",
		flags:      flags,
		sig:        s,
		blob:       blob,
		virtual:    t.a.NextVirtualMethodHandle(),
		paramCount: len(params),
		params:     make(map[int]paramInfo, len(params)),
	}
	t.methods = append(t.methods, m)
	return m, nil
}

// DefineProperty declares a property; accessors are wired on the
// returned builder.
func (t *TypeBuilder) DefineProperty(name string, static bool, typ host.Type, params ...host.Type) (*PropertyBuilder, error) {
	if name == "" {
		return nil, fmt.Errorf("empty property name: %w", ErrInvalidArgument)
	}
	blob, err := t.a.localPropertySig(!static, typ, params)
	if err != nil {
		return nil, err
	}
	p := &PropertyBuilder{owner: t, name: name, blob: blob}
	t.props = append(t.props, p)
	return p, nil
}

// DefineEvent declares an event of the given delegate type; accessors
// are wired on the returned builder.
func (t *TypeBuilder) DefineEvent(name string, typ host.Type) (*EventBuilder, error) {
	if name == "" {
		return nil, fmt.Errorf("empty event name: %w", ErrInvalidArgument)
	}
	if typ == nil {
		return nil, fmt.Errorf("event %s: nil type: %w", name, ErrInvalidArgument)
	}
	h, err := t.a.HandleForType(typ)
	if err != nil {
		return nil, err
	}
	coded, err := handle.TypeDefOrRef(h)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, ErrInvalidArgument)
	}
	e := &EventBuilder{owner: t, name: name, typeCode: coded}
	t.events = append(t.events, e)
	return e, nil
}
