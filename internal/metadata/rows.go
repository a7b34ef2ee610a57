// Package metadata is the append-only table and heap sink the emission
// engine writes into, plus the binary image layout produced from it.
package metadata

import (
	"fmt"

	"fortio.org/safecast"
)

// Row structs mirror the table columns one-to-one. All columns are stored
// as uint32 cells; narrow flag fields keep their semantic width in the
// comments.

// TypeRef references a type defined in another scope.
type TypeRef struct {
	Scope uint32 // token: AssemblyRef, or TypeRef for nested types
	Name  uint32 // string heap
	Space uint32 // string heap
}

// TypeDef declares a type in this module.
type TypeDef struct {
	Flags      uint32
	Name       uint32 // string heap
	Space      uint32 // string heap
	Extends    uint32 // type coded index, 0 for none
	FieldList  uint32 // first owned FieldDef row
	MethodList uint32 // first owned MethodDef row
}

// FieldDef declares a field of the preceding TypeDef.
type FieldDef struct {
	Flags uint32 // uint16 semantics
	Name  uint32 // string heap
	Sig   uint32 // blob heap
}

// MethodDef declares a method of the preceding TypeDef.
type MethodDef struct {
	BodyOffset uint32 // offset into the body stream, 0 for no body
	ImplFlags  uint32 // uint16 semantics
	Flags      uint32 // uint16 semantics
	Name       uint32 // string heap
	Sig        uint32 // blob heap
	ParamList  uint32 // first owned ParamDef row
}

// ParamDef names one parameter of the preceding MethodDef.
type ParamDef struct {
	Flags uint32 // uint16 semantics
	Seq   uint32 // 1-based parameter index, uint16 semantics
	Name  uint32 // string heap
}

// MemberRef references a member defined elsewhere.
type MemberRef struct {
	Parent uint32 // token: TypeRef, TypeDef or TypeSpec
	Name   uint32 // string heap
	Sig    uint32 // blob heap
}

// TypeSpec interns a composite type signature.
type TypeSpec struct {
	Sig uint32 // blob heap
}

// MethodSpec interns one generic-method instantiation.
type MethodSpec struct {
	Method uint32 // method coded index
	Inst   uint32 // blob heap
}

// InterfaceImpl records one implemented interface of a TypeDef.
type InterfaceImpl struct {
	Class uint32 // TypeDef row
	Iface uint32 // type coded index
}

// MethodImpl records an explicit override.
type MethodImpl struct {
	Class uint32 // TypeDef row
	Body  uint32 // method coded index
	Decl  uint32 // method coded index
}

// Property declares a property of a TypeDef.
type Property struct {
	Flags uint32 // uint16 semantics
	Name  uint32 // string heap
	Sig   uint32 // blob heap
}

// PropertyMap links a TypeDef to its first Property row.
type PropertyMap struct {
	Parent       uint32 // TypeDef row
	PropertyList uint32
}

// Event declares an event of a TypeDef.
type Event struct {
	Flags uint32 // uint16 semantics
	Name  uint32 // string heap
	Type  uint32 // type coded index
}

// EventMap links a TypeDef to its first Event row.
type EventMap struct {
	Parent    uint32 // TypeDef row
	EventList uint32
}

// MethodSemantics wires an accessor method to a property or event.
type MethodSemantics struct {
	Semantics uint32 // uint16 semantics: getter/setter/adder/remover
	Method    uint32 // MethodDef row
	Assoc     uint32 // token: Property or Event
}

// Constant records the literal value of a field.
type Constant struct {
	Type   uint32 // element code of the value, uint8 semantics
	Parent uint32 // token: FieldDef
	Value  uint32 // blob heap
}

// AssemblyRef names an external assembly scope.
type AssemblyRef struct {
	Name  uint32 // string heap
	Major uint32 // uint16 semantics
	Minor uint32
	Build uint32
	Rev   uint32
}

// StandAloneSig interns a free-standing signature blob (locals).
type StandAloneSig struct {
	Sig uint32 // blob heap
}

// GenericParam declares one generic parameter of a type or method.
type GenericParam struct {
	Number uint32 // zero-based position, uint16 semantics
	Flags  uint32 // uint16 semantics
	Owner  uint32 // owner coded index
	Name   uint32 // string heap
}

// GenericParamConstraint records one constraint of a GenericParam row.
type GenericParamConstraint struct {
	Owner      uint32 // GenericParam row
	Constraint uint32 // type coded index
}

// Sink accumulates table rows and heap entries for one module under
// construction. It is not synchronized; the metadata authority guards it.
type Sink struct {
	strings     heap
	blobs       heap
	userStrings heap

	typeRefs      []TypeRef
	typeDefs      []TypeDef
	fields        []FieldDef
	methods       []MethodDef
	params        []ParamDef
	memberRefs    []MemberRef
	typeSpecs     []TypeSpec
	methodSpecs   []MethodSpec
	ifaceImpls    []InterfaceImpl
	methodImpls   []MethodImpl
	properties    []Property
	propertyMaps  []PropertyMap
	events        []Event
	eventMaps     []EventMap
	semantics     []MethodSemantics
	constants     []Constant
	assemblyRefs  []AssemblyRef
	standAlone    []StandAloneSig
	genericParams []GenericParam
	gpConstraints []GenericParamConstraint
}

// NewSink returns an empty sink with initialized heaps.
func NewSink() *Sink {
	s := &Sink{}
	s.strings.init()
	s.blobs.init()
	s.userStrings.init()
	return s
}

func addRow[T any](rows *[]T, r T) uint32 {
	*rows = append(*rows, r)
	n, err := safecast.Conv[uint32](len(*rows))
	if err != nil {
		panic(fmt.Errorf("table row count overflow: %w", err))
	}
	return n
}

// Add* appends one row and returns its 1-based row number.

func (s *Sink) AddTypeRef(r TypeRef) uint32     { return addRow(&s.typeRefs, r) }
func (s *Sink) AddTypeDef(r TypeDef) uint32     { return addRow(&s.typeDefs, r) }
func (s *Sink) AddFieldDef(r FieldDef) uint32   { return addRow(&s.fields, r) }
func (s *Sink) AddMethodDef(r MethodDef) uint32 { return addRow(&s.methods, r) }
func (s *Sink) AddParamDef(r ParamDef) uint32   { return addRow(&s.params, r) }
func (s *Sink) AddMemberRef(r MemberRef) uint32 { return addRow(&s.memberRefs, r) }
func (s *Sink) AddTypeSpec(r TypeSpec) uint32   { return addRow(&s.typeSpecs, r) }
func (s *Sink) AddMethodSpec(r MethodSpec) uint32 {
	return addRow(&s.methodSpecs, r)
}
func (s *Sink) AddInterfaceImpl(r InterfaceImpl) uint32 {
	return addRow(&s.ifaceImpls, r)
}
func (s *Sink) AddMethodImpl(r MethodImpl) uint32 { return addRow(&s.methodImpls, r) }
func (s *Sink) AddProperty(r Property) uint32     { return addRow(&s.properties, r) }
func (s *Sink) AddPropertyMap(r PropertyMap) uint32 {
	return addRow(&s.propertyMaps, r)
}
func (s *Sink) AddEvent(r Event) uint32       { return addRow(&s.events, r) }
func (s *Sink) AddEventMap(r EventMap) uint32 { return addRow(&s.eventMaps, r) }
func (s *Sink) AddMethodSemantics(r MethodSemantics) uint32 {
	return addRow(&s.semantics, r)
}
func (s *Sink) AddConstant(r Constant) uint32 { return addRow(&s.constants, r) }
func (s *Sink) AddAssemblyRef(r AssemblyRef) uint32 {
	return addRow(&s.assemblyRefs, r)
}
func (s *Sink) AddStandAloneSig(r StandAloneSig) uint32 {
	return addRow(&s.standAlone, r)
}
func (s *Sink) AddGenericParam(r GenericParam) uint32 {
	return addRow(&s.genericParams, r)
}
func (s *Sink) AddGenericParamConstraint(r GenericParamConstraint) uint32 {
	return addRow(&s.gpConstraints, r)
}

// Row-count queries, used to compute first-row positions before writes.

func (s *Sink) TypeRefCount() int      { return len(s.typeRefs) }
func (s *Sink) TypeDefCount() int      { return len(s.typeDefs) }
func (s *Sink) FieldCount() int        { return len(s.fields) }
func (s *Sink) MethodCount() int       { return len(s.methods) }
func (s *Sink) ParamCount() int        { return len(s.params) }
func (s *Sink) MemberRefCount() int    { return len(s.memberRefs) }
func (s *Sink) TypeSpecCount() int     { return len(s.typeSpecs) }
func (s *Sink) MethodSpecCount() int   { return len(s.methodSpecs) }
func (s *Sink) PropertyCount() int     { return len(s.properties) }
func (s *Sink) EventCount() int        { return len(s.events) }
func (s *Sink) AssemblyRefCount() int  { return len(s.assemblyRefs) }
func (s *Sink) GenericParamCount() int { return len(s.genericParams) }

// SetMethodBodyOffset patches the body offset of a MethodDef row once the
// body stream position is known.
func (s *Sink) SetMethodBodyOffset(row uint32, offset uint32) error {
	if row == 0 || int(row) > len(s.methods) {
		return fmt.Errorf("method row %d out of range", row)
	}
	s.methods[row-1].BodyOffset = offset
	return nil
}

// MethodRow returns a copy of one MethodDef row, for tests and inspect.
func (s *Sink) MethodRow(row uint32) (MethodDef, bool) {
	if row == 0 || int(row) > len(s.methods) {
		return MethodDef{}, false
	}
	return s.methods[row-1], true
}

// TypeDefRow returns a copy of one TypeDef row.
func (s *Sink) TypeDefRow(row uint32) (TypeDef, bool) {
	if row == 0 || int(row) > len(s.typeDefs) {
		return TypeDef{}, false
	}
	return s.typeDefs[row-1], true
}

// FieldRow returns a copy of one FieldDef row.
func (s *Sink) FieldRow(row uint32) (FieldDef, bool) {
	if row == 0 || int(row) > len(s.fields) {
		return FieldDef{}, false
	}
	return s.fields[row-1], true
}

// ParamRows returns a copy of the parameter table, for tests.
func (s *Sink) ParamRows() []ParamDef {
	out := make([]ParamDef, len(s.params))
	copy(out, s.params)
	return out
}

// GenericParamRows returns a copy of the generic-parameter table, for
// tests.
func (s *Sink) GenericParamRows() []GenericParam {
	out := make([]GenericParam, len(s.genericParams))
	copy(out, s.genericParams)
	return out
}
