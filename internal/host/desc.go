package host

// Concrete Type/Member model. Frontends with their own type representation
// implement the interfaces directly; this model serves the declarative CLI
// frontend and tests.

type kind uint8

const (
	kindPrimitive kind = iota
	kindNamed
	kindByRef
	kindPointer
	kindSZArray
	kindArray
	kindTypeParam
	kindMethodParam
	kindInst
)

// TypeDesc is a ready-made Type implementation.
type TypeDesc struct {
	k         kind
	prim      Primitive
	name      string
	namespace string
	valueType bool
	arity     int
	declaring *TypeDesc
	asm       AssemblyIdent
	elem      *TypeDesc
	rank      int
	def       *TypeDesc
	args      []Type
	pos       int
}

// PrimitiveType returns the descriptor of a built-in type.
func PrimitiveType(p Primitive) *TypeDesc {
	return &TypeDesc{k: kindPrimitive, prim: p}
}

// NamedType describes a top-level nominal type in an external assembly.
func NamedType(asm AssemblyIdent, namespace, name string, valueType bool, arity int) *TypeDesc {
	return &TypeDesc{k: kindNamed, asm: asm, namespace: namespace, name: name, valueType: valueType, arity: arity}
}

// NestedType describes a nominal type declared inside another one.
func NestedType(outer *TypeDesc, name string, valueType bool, arity int) *TypeDesc {
	return &TypeDesc{k: kindNamed, declaring: outer, name: name, valueType: valueType, arity: arity}
}

// ByRefTo wraps a type as a by-reference type.
func ByRefTo(elem *TypeDesc) *TypeDesc { return &TypeDesc{k: kindByRef, elem: elem} }

// PointerTo wraps a type as an unmanaged pointer type.
func PointerTo(elem *TypeDesc) *TypeDesc { return &TypeDesc{k: kindPointer, elem: elem} }

// SZArrayOf wraps a type as a single-dimension zero-based array.
func SZArrayOf(elem *TypeDesc) *TypeDesc { return &TypeDesc{k: kindSZArray, elem: elem} }

// ArrayOf wraps a type as a general array of the given rank.
func ArrayOf(elem *TypeDesc, rank int) *TypeDesc {
	return &TypeDesc{k: kindArray, elem: elem, rank: rank}
}

// TypeParam describes a generic type parameter by position.
func TypeParam(pos int) *TypeDesc { return &TypeDesc{k: kindTypeParam, pos: pos} }

// MethodParam describes a generic method parameter by position.
func MethodParam(pos int) *TypeDesc { return &TypeDesc{k: kindMethodParam, pos: pos} }

// Instantiate closes a generic definition over the given arguments.
func Instantiate(def *TypeDesc, args ...Type) *TypeDesc {
	return &TypeDesc{k: kindInst, def: def, args: args, valueType: def.valueType}
}

func (t *TypeDesc) Primitive() (Primitive, bool) {
	if t.k == kindPrimitive {
		return t.prim, true
	}
	return 0, false
}

func (t *TypeDesc) IsByRef() bool   { return t.k == kindByRef }
func (t *TypeDesc) IsPointer() bool { return t.k == kindPointer }
func (t *TypeDesc) IsArray() bool   { return t.k == kindSZArray || t.k == kindArray }
func (t *TypeDesc) IsSZArray() bool { return t.k == kindSZArray }

func (t *TypeDesc) ArrayRank() int {
	if t.k == kindSZArray {
		return 1
	}
	return t.rank
}

func (t *TypeDesc) IsGenericParameter() bool {
	return t.k == kindTypeParam || t.k == kindMethodParam
}

func (t *TypeDesc) OnMethod() bool     { return t.k == kindMethodParam }
func (t *TypeDesc) ParamPosition() int { return t.pos }

func (t *TypeDesc) IsConstructedGeneric() bool { return t.k == kindInst }

func (t *TypeDesc) IsGenericDefinition() bool {
	return t.k == kindNamed && t.arity > 0
}

func (t *TypeDesc) GenericArity() int {
	if t.k == kindInst {
		return t.def.arity
	}
	return t.arity
}

func (t *TypeDesc) GenericArguments() []Type { return t.args }

func (t *TypeDesc) GenericDefinition() Type {
	if t.def == nil {
		return nil
	}
	return t.def
}

func (t *TypeDesc) Elem() Type {
	if t.elem == nil {
		return nil
	}
	return t.elem
}

func (t *TypeDesc) Name() string      { return t.name }
func (t *TypeDesc) Namespace() string { return t.namespace }
func (t *TypeDesc) IsValueType() bool { return t.valueType }

func (t *TypeDesc) Declaring() Type {
	if t.declaring == nil {
		return nil
	}
	return t.declaring
}

func (t *TypeDesc) Assembly() AssemblyIdent { return t.asm }

// FieldDesc is a ready-made Field implementation.
type FieldDesc struct {
	name      string
	declaring Type
	typ       Type
}

// MakeField describes an external field.
func MakeField(declaring Type, name string, typ Type) *FieldDesc {
	return &FieldDesc{name: name, declaring: declaring, typ: typ}
}

func (f *FieldDesc) Name() string    { return f.name }
func (f *FieldDesc) Declaring() Type { return f.declaring }
func (f *FieldDesc) FieldType() Type { return f.typ }

// MethodDesc is a ready-made Method implementation.
type MethodDesc struct {
	name         string
	declaring    Type
	hasThis      bool
	explicitThis bool
	varArg       bool
	arity        int
	ret          Type
	params       []Type
	extras       []Type
	def          *MethodDesc
	args         []Type
}

// MakeMethod describes an external method. ret may not be nil; use the
// void primitive for methods without a result.
func MakeMethod(declaring Type, name string, hasThis bool, ret Type, params ...Type) *MethodDesc {
	return &MethodDesc{name: name, declaring: declaring, hasThis: hasThis, ret: ret, params: params}
}

// MakeGenericMethod describes an external generic method definition.
func MakeGenericMethod(declaring Type, name string, hasThis bool, arity int, ret Type, params ...Type) *MethodDesc {
	return &MethodDesc{name: name, declaring: declaring, hasThis: hasThis, arity: arity, ret: ret, params: params}
}

// InstantiateMethod closes a generic method definition over the given
// arguments.
func InstantiateMethod(def *MethodDesc, args ...Type) *MethodDesc {
	return &MethodDesc{
		name:      def.name,
		declaring: def.declaring,
		hasThis:   def.hasThis,
		arity:     def.arity,
		ret:       def.ret,
		params:    def.params,
		def:       def,
		args:      args,
	}
}

// WithExtraVarArgs returns a vararg call-site view of the method.
func (m *MethodDesc) WithExtraVarArgs(extras ...Type) *MethodDesc {
	dup := *m
	dup.varArg = true
	dup.extras = extras
	return &dup
}

func (m *MethodDesc) Name() string             { return m.name }
func (m *MethodDesc) Declaring() Type          { return m.declaring }
func (m *MethodDesc) HasThis() bool            { return m.hasThis }
func (m *MethodDesc) ExplicitThis() bool       { return m.explicitThis }
func (m *MethodDesc) IsVarArg() bool           { return m.varArg }
func (m *MethodDesc) GenericArity() int        { return m.arity }
func (m *MethodDesc) ReturnType() Type         { return m.ret }
func (m *MethodDesc) ParamTypes() []Type       { return m.params }
func (m *MethodDesc) ExtraVarArgTypes() []Type { return m.extras }

func (m *MethodDesc) IsConstructedGeneric() bool { return m.def != nil }

func (m *MethodDesc) GenericDefinition() Method {
	if m.def == nil {
		return nil
	}
	return m.def
}

func (m *MethodDesc) GenericArguments() []Type { return m.args }
