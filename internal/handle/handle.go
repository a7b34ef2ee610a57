package handle

import "fmt"

// Table identifies one metadata table. The numeric values are the table
// tags that appear in the high byte of a token.
type Table uint8

const (
	TableNone                   Table = 0x00
	TableTypeRef                Table = 0x01
	TableTypeDef                Table = 0x02
	TableFieldDef               Table = 0x04
	TableMethodDef              Table = 0x06
	TableParamDef               Table = 0x08
	TableInterfaceImpl          Table = 0x09
	TableMemberRef              Table = 0x0A
	TableConstant               Table = 0x0B
	TableStandAloneSig          Table = 0x11
	TableEventMap               Table = 0x12
	TableEvent                  Table = 0x14
	TablePropertyMap            Table = 0x15
	TableProperty               Table = 0x17
	TableMethodSemantics        Table = 0x18
	TableMethodImpl             Table = 0x19
	TableTypeSpec               Table = 0x1B
	TableAssemblyRef            Table = 0x23
	TableGenericParam           Table = 0x2A
	TableMethodSpec             Table = 0x2B
	TableGenericParamConstraint Table = 0x2C

	// TableUserString is a pseudo table for user-string heap tokens.
	TableUserString Table = 0x70
)

// String returns a short table name for diagnostics and inspect output.
func (t Table) String() string {
	switch t {
	case TableNone:
		return "none"
	case TableTypeRef:
		return "TypeRef"
	case TableTypeDef:
		return "TypeDef"
	case TableFieldDef:
		return "FieldDef"
	case TableMethodDef:
		return "MethodDef"
	case TableParamDef:
		return "ParamDef"
	case TableInterfaceImpl:
		return "InterfaceImpl"
	case TableMemberRef:
		return "MemberRef"
	case TableConstant:
		return "Constant"
	case TableStandAloneSig:
		return "StandAloneSig"
	case TableEventMap:
		return "EventMap"
	case TableEvent:
		return "Event"
	case TablePropertyMap:
		return "PropertyMap"
	case TableProperty:
		return "Property"
	case TableMethodSemantics:
		return "MethodSemantics"
	case TableMethodImpl:
		return "MethodImpl"
	case TableTypeSpec:
		return "TypeSpec"
	case TableAssemblyRef:
		return "AssemblyRef"
	case TableGenericParam:
		return "GenericParam"
	case TableMethodSpec:
		return "MethodSpec"
	case TableGenericParamConstraint:
		return "GenericParamConstraint"
	case TableUserString:
		return "UserString"
	default:
		return fmt.Sprintf("table(0x%02X)", uint8(t))
	}
}

// Ref is either a final Handle or a provisional Virtual identity.
// Only a Handle can be serialized into a table cell; a Virtual must pass
// through a TokenMap first.
type Ref interface {
	Table() Table
	Row() uint32
	Token() uint32
	IsNil() bool
	sealedRef()
}

// Handle references one row of one metadata table. The zero value is the
// nil handle.
type Handle struct {
	table Table
	row   uint32
}

// New builds a final handle for a known row.
func New(table Table, row uint32) Handle {
	return Handle{table: table, row: row}
}

// FromToken splits a 32-bit token into its table tag and row.
func FromToken(tok uint32) Handle {
	return Handle{table: Table(tok >> 24), row: tok & 0x00FFFFFF}
}

// Table reports which table the handle points into.
func (h Handle) Table() Table { return h.table }

// Row returns the 1-based row number.
func (h Handle) Row() uint32 { return h.row }

// Token packs the handle into the external token form: table tag in the
// high byte, row in the low three bytes.
func (h Handle) Token() uint32 { return uint32(h.table)<<24 | h.row }

// IsNil reports whether the handle references no row at all.
func (h Handle) IsNil() bool { return h.table == TableNone && h.row == 0 }

func (h Handle) String() string {
	return fmt.Sprintf("%s:%d", h.table, h.row)
}

func (Handle) sealedRef() {}

// Virtual is a provisional FieldDef/MethodDef identity assigned at
// definition time, before final row layout is known. It carries the same
// token shape as a Handle but is a distinct type so it cannot be written
// into a table cell by accident.
type Virtual struct {
	table Table
	row   uint32
}

// NewVirtualField builds a provisional FieldDef identity.
func NewVirtualField(row uint32) Virtual {
	return Virtual{table: TableFieldDef, row: row}
}

// NewVirtualMethod builds a provisional MethodDef identity.
func NewVirtualMethod(row uint32) Virtual {
	return Virtual{table: TableMethodDef, row: row}
}

// Table reports which table the identity belongs to.
func (v Virtual) Table() Table { return v.table }

// Row returns the 1-based provisional row number.
func (v Virtual) Row() uint32 { return v.row }

// Token packs the provisional identity into token form. Tokens built from
// a Virtual are placeholders and must be patched before emission.
func (v Virtual) Token() uint32 { return uint32(v.table)<<24 | v.row }

// IsNil reports whether the identity was never assigned.
func (v Virtual) IsNil() bool { return v.row == 0 }

func (v Virtual) String() string {
	return fmt.Sprintf("%s:v%d", v.table, v.row)
}

func (Virtual) sealedRef() {}
