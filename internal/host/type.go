// Package host describes the compiler frontend's view of types and members
// to the emission engine. The engine never inspects frontend objects through
// reflection; everything it needs is behind these interfaces.
package host

// Primitive is the wire element code of a built-in type.
type Primitive byte

const (
	PrimVoid    Primitive = 0x01
	PrimBool    Primitive = 0x02
	PrimChar    Primitive = 0x03
	PrimInt8    Primitive = 0x04
	PrimUint8   Primitive = 0x05
	PrimInt16   Primitive = 0x06
	PrimUint16  Primitive = 0x07
	PrimInt32   Primitive = 0x08
	PrimUint32  Primitive = 0x09
	PrimInt64   Primitive = 0x0A
	PrimUint64  Primitive = 0x0B
	PrimFloat32 Primitive = 0x0C
	PrimFloat64 Primitive = 0x0D
	PrimString  Primitive = 0x0E
	PrimIntPtr  Primitive = 0x18
	PrimUintPtr Primitive = 0x19
	PrimObject  Primitive = 0x1C
)

// Type is one frontend type as seen by the emission engine.
//
// Exactly one of the Is* shape predicates holds for a composite type;
// nominal types answer false to all of them. Elem is meaningful only for
// by-ref, pointer and array types; the generic queries only for
// constructed generics, generic definitions and generic parameters.
type Type interface {
	// Primitive returns the built-in element code, if this type is one.
	Primitive() (Primitive, bool)

	IsByRef() bool
	IsPointer() bool
	// IsSZArray reports a single-dimension zero-based array; IsArray
	// reports any array shape, including that one.
	IsArray() bool
	IsSZArray() bool
	ArrayRank() int

	IsGenericParameter() bool
	// OnMethod distinguishes a method generic parameter from a type one;
	// meaningful only when IsGenericParameter.
	OnMethod() bool
	ParamPosition() int

	IsConstructedGeneric() bool
	IsGenericDefinition() bool
	GenericArity() int
	GenericArguments() []Type
	GenericDefinition() Type

	Elem() Type

	// Nominal identity, used when interning reference rows.
	Name() string
	Namespace() string
	IsValueType() bool
	// Declaring returns the containing type for nested types, nil
	// otherwise.
	Declaring() Type
	// Assembly names the defining scope of a top-level external type.
	Assembly() AssemblyIdent
}

// AssemblyIdent identifies an external assembly scope.
type AssemblyIdent struct {
	Name  string
	Major uint16
	Minor uint16
	Build uint16
	Rev   uint16
}

// Member is the common surface of frontend fields and methods.
type Member interface {
	Name() string
	Declaring() Type
}

// Field describes an external field.
type Field interface {
	Member
	FieldType() Type
}

// Method describes an external method or constructor.
type Method interface {
	Member
	HasThis() bool
	ExplicitThis() bool
	IsVarArg() bool
	// GenericArity is the number of generic parameters on the method
	// definition itself, zero for non-generic methods.
	GenericArity() int
	ReturnType() Type
	ParamTypes() []Type
	// ExtraVarArgTypes are the optional extra argument types of one
	// vararg call site, appended after the sentinel.
	ExtraVarArgTypes() []Type

	// Constructed generic methods expose their open definition and
	// argument list.
	IsConstructedGeneric() bool
	GenericDefinition() Method
	GenericArguments() []Type
}
