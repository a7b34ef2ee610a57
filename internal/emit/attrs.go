package emit

// TypeAttrs are the declaration flags of a type.
type TypeAttrs uint32

const (
	TypePublic    TypeAttrs = 0x0001
	TypeInterface TypeAttrs = 0x0020
	TypeAbstract  TypeAttrs = 0x0080
	TypeSealed    TypeAttrs = 0x0100
)

// FieldAttrs are the declaration flags of a field.
type FieldAttrs uint16

const (
	FieldPrivate  FieldAttrs = 0x0001
	FieldPublic   FieldAttrs = 0x0006
	FieldStatic   FieldAttrs = 0x0010
	FieldInitOnly FieldAttrs = 0x0020
	FieldLiteral  FieldAttrs = 0x0040

	// Excluded capabilities; defining a field with one of these fails
	// with ErrUnsupported.
	FieldHasRVA     FieldAttrs = 0x0100
	FieldHasMarshal FieldAttrs = 0x1000
	FieldPInvoke    FieldAttrs = 0x2000
)

// MethodAttrs are the declaration flags of a method.
type MethodAttrs uint16

const (
	MethodPrivate     MethodAttrs = 0x0001
	MethodPublic      MethodAttrs = 0x0006
	MethodStatic      MethodAttrs = 0x0010
	MethodFinal       MethodAttrs = 0x0020
	MethodVirtual     MethodAttrs = 0x0040
	MethodAbstract    MethodAttrs = 0x0400
	MethodSpecialName MethodAttrs = 0x0800
	MethodRTSpecial   MethodAttrs = 0x1000

	// Excluded capability.
	MethodPInvoke MethodAttrs = 0x2000
)

// ParamAttrs are the declaration flags of a named parameter.
type ParamAttrs uint16

const (
	ParamIn  ParamAttrs = 0x0001
	ParamOut ParamAttrs = 0x0002
)

// PropertyAttrs are the declaration flags of a property.
type PropertyAttrs uint16

// EventAttrs are the declaration flags of an event.
type EventAttrs uint16

// GenericParamAttrs are the flags of a generic-parameter slot.
type GenericParamAttrs uint16

const (
	GenericParamCovariant               GenericParamAttrs = 0x0001
	GenericParamContravariant           GenericParamAttrs = 0x0002
	GenericParamReferenceTypeConstraint GenericParamAttrs = 0x0004
	GenericParamValueTypeConstraint     GenericParamAttrs = 0x0008
	GenericParamDefaultCtorConstraint   GenericParamAttrs = 0x0010
)

// Semantics codes for MethodSemantics rows.
const (
	semSetter  uint32 = 0x0001
	semGetter  uint32 = 0x0002
	semAdder   uint32 = 0x0008
	semRemover uint32 = 0x0010
)
