package metadata

import (
	"encoding/binary"
	"fmt"

	"anvil/internal/handle"
)

// Binary image container layout:
//
//	magic "ANVL" | format version u16 | reserved u16 | module-name string offset u32
//	row counts: one u32 per table, in tableOrder
//	table payloads in tableOrder, little-endian u32 cells
//	string heap     u32 size + bytes
//	blob heap       u32 size + bytes
//	user-string heap u32 size + bytes
//	method-body stream u32 size + bytes

var Magic = [4]byte{'A', 'N', 'V', 'L'}

const FormatVersion uint16 = 1

// tableOrder fixes the serialization order of the tables.
var tableOrder = []handle.Table{
	handle.TableTypeDef,
	handle.TableTypeRef,
	handle.TableFieldDef,
	handle.TableMethodDef,
	handle.TableParamDef,
	handle.TableMemberRef,
	handle.TableTypeSpec,
	handle.TableMethodSpec,
	handle.TableInterfaceImpl,
	handle.TableMethodImpl,
	handle.TableProperty,
	handle.TablePropertyMap,
	handle.TableEvent,
	handle.TableEventMap,
	handle.TableMethodSemantics,
	handle.TableConstant,
	handle.TableAssemblyRef,
	handle.TableStandAloneSig,
	handle.TableGenericParam,
	handle.TableGenericParamConstraint,
}

// columnCount gives the number of u32 cells per row of each table.
var columnCount = map[handle.Table]int{
	handle.TableTypeDef:                6,
	handle.TableTypeRef:                3,
	handle.TableFieldDef:               3,
	handle.TableMethodDef:              6,
	handle.TableParamDef:               3,
	handle.TableMemberRef:              3,
	handle.TableTypeSpec:               1,
	handle.TableMethodSpec:             2,
	handle.TableInterfaceImpl:          2,
	handle.TableMethodImpl:             3,
	handle.TableProperty:               3,
	handle.TablePropertyMap:            2,
	handle.TableEvent:                  3,
	handle.TableEventMap:               2,
	handle.TableMethodSemantics:        3,
	handle.TableConstant:               3,
	handle.TableAssemblyRef:            5,
	handle.TableStandAloneSig:          1,
	handle.TableGenericParam:           4,
	handle.TableGenericParamConstraint: 2,
}

type imageWriter struct {
	buf []byte
}

func (w *imageWriter) u16(v uint16) {
	w.buf = binary.LittleEndian.AppendUint16(w.buf, v)
}

func (w *imageWriter) u32(v uint32) {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, v)
}

func (w *imageWriter) cells(vs ...uint32) {
	for _, v := range vs {
		w.u32(v)
	}
}

func (w *imageWriter) sized(b []byte) {
	w.u32(uint32(len(b)))
	w.buf = append(w.buf, b...)
}

func (s *Sink) rowCount(t handle.Table) uint32 {
	switch t {
	case handle.TableTypeDef:
		return uint32(len(s.typeDefs))
	case handle.TableTypeRef:
		return uint32(len(s.typeRefs))
	case handle.TableFieldDef:
		return uint32(len(s.fields))
	case handle.TableMethodDef:
		return uint32(len(s.methods))
	case handle.TableParamDef:
		return uint32(len(s.params))
	case handle.TableMemberRef:
		return uint32(len(s.memberRefs))
	case handle.TableTypeSpec:
		return uint32(len(s.typeSpecs))
	case handle.TableMethodSpec:
		return uint32(len(s.methodSpecs))
	case handle.TableInterfaceImpl:
		return uint32(len(s.ifaceImpls))
	case handle.TableMethodImpl:
		return uint32(len(s.methodImpls))
	case handle.TableProperty:
		return uint32(len(s.properties))
	case handle.TablePropertyMap:
		return uint32(len(s.propertyMaps))
	case handle.TableEvent:
		return uint32(len(s.events))
	case handle.TableEventMap:
		return uint32(len(s.eventMaps))
	case handle.TableMethodSemantics:
		return uint32(len(s.semantics))
	case handle.TableConstant:
		return uint32(len(s.constants))
	case handle.TableAssemblyRef:
		return uint32(len(s.assemblyRefs))
	case handle.TableStandAloneSig:
		return uint32(len(s.standAlone))
	case handle.TableGenericParam:
		return uint32(len(s.genericParams))
	case handle.TableGenericParamConstraint:
		return uint32(len(s.gpConstraints))
	default:
		return 0
	}
}

func (s *Sink) writeTable(w *imageWriter, t handle.Table) {
	switch t {
	case handle.TableTypeDef:
		for _, r := range s.typeDefs {
			w.cells(r.Flags, r.Name, r.Space, r.Extends, r.FieldList, r.MethodList)
		}
	case handle.TableTypeRef:
		for _, r := range s.typeRefs {
			w.cells(r.Scope, r.Name, r.Space)
		}
	case handle.TableFieldDef:
		for _, r := range s.fields {
			w.cells(r.Flags, r.Name, r.Sig)
		}
	case handle.TableMethodDef:
		for _, r := range s.methods {
			w.cells(r.BodyOffset, r.ImplFlags, r.Flags, r.Name, r.Sig, r.ParamList)
		}
	case handle.TableParamDef:
		for _, r := range s.params {
			w.cells(r.Flags, r.Seq, r.Name)
		}
	case handle.TableMemberRef:
		for _, r := range s.memberRefs {
			w.cells(r.Parent, r.Name, r.Sig)
		}
	case handle.TableTypeSpec:
		for _, r := range s.typeSpecs {
			w.cells(r.Sig)
		}
	case handle.TableMethodSpec:
		for _, r := range s.methodSpecs {
			w.cells(r.Method, r.Inst)
		}
	case handle.TableInterfaceImpl:
		for _, r := range s.ifaceImpls {
			w.cells(r.Class, r.Iface)
		}
	case handle.TableMethodImpl:
		for _, r := range s.methodImpls {
			w.cells(r.Class, r.Body, r.Decl)
		}
	case handle.TableProperty:
		for _, r := range s.properties {
			w.cells(r.Flags, r.Name, r.Sig)
		}
	case handle.TablePropertyMap:
		for _, r := range s.propertyMaps {
			w.cells(r.Parent, r.PropertyList)
		}
	case handle.TableEvent:
		for _, r := range s.events {
			w.cells(r.Flags, r.Name, r.Type)
		}
	case handle.TableEventMap:
		for _, r := range s.eventMaps {
			w.cells(r.Parent, r.EventList)
		}
	case handle.TableMethodSemantics:
		for _, r := range s.semantics {
			w.cells(r.Semantics, r.Method, r.Assoc)
		}
	case handle.TableConstant:
		for _, r := range s.constants {
			w.cells(r.Type, r.Parent, r.Value)
		}
	case handle.TableAssemblyRef:
		for _, r := range s.assemblyRefs {
			w.cells(r.Name, r.Major, r.Minor, r.Build, r.Rev)
		}
	case handle.TableStandAloneSig:
		for _, r := range s.standAlone {
			w.cells(r.Sig)
		}
	case handle.TableGenericParam:
		for _, r := range s.genericParams {
			w.cells(r.Number, r.Flags, r.Owner, r.Name)
		}
	case handle.TableGenericParamConstraint:
		for _, r := range s.gpConstraints {
			w.cells(r.Owner, r.Constraint)
		}
	}
}

// EmitImage serializes the collected tables, heaps and body stream into
// the final binary image.
func (s *Sink) EmitImage(moduleName string, bodies []byte) ([]byte, error) {
	if moduleName == "" {
		return nil, fmt.Errorf("empty module name")
	}
	nameOff := s.AddString(moduleName)

	w := &imageWriter{buf: make([]byte, 0, 4096)}
	w.buf = append(w.buf, Magic[:]...)
	w.u16(FormatVersion)
	w.u16(0)
	w.u32(nameOff)
	for _, t := range tableOrder {
		w.u32(s.rowCount(t))
	}
	for _, t := range tableOrder {
		s.writeTable(w, t)
	}
	w.sized(s.strings.data)
	w.sized(s.blobs.data)
	w.sized(s.userStrings.data)
	w.sized(bodies)
	return w.buf, nil
}
