package emit

import (
	"fmt"
	"sort"

	"anvil/internal/handle"
	"anvil/internal/metadata"
)

// Per-type write pass. Row positions become real here: the first field
// and method rows are computed from the current table sizes, members are
// written in declaration order, and every provisional identity is
// recorded in the token map.
func (t *TypeBuilder) writeMetadata(tm *TokenMap) error {
	return t.a.WithSink(func(s *metadata.Sink) error {
		firstField := uint32(s.FieldCount()) + 1
		firstMethod := uint32(s.MethodCount()) + 1

		var extends uint32
		if !t.parent.IsNil() {
			var err error
			if extends, err = handle.TypeDefOrRef(t.parent); err != nil {
				return fmt.Errorf("type %s: %v: %w", t.name, err, ErrInvalidOperation)
			}
		}
		row := s.AddTypeDef(metadata.TypeDef{
			Flags:      uint32(t.flags),
			Name:       s.AddString(t.name),
			Space:      s.AddString(t.space),
			Extends:    extends,
			FieldList:  firstField,
			MethodList: firstMethod,
		})
		if row != t.h.Row() {
			return fmt.Errorf("type %s written as row %d, defined as row %d: %w", t.name, row, t.h.Row(), ErrInvalidOperation)
		}

		if err := t.writeInterfaces(s, row); err != nil {
			return err
		}
		if err := t.writeFields(s, tm); err != nil {
			return err
		}
		if err := t.writeMethods(s, tm); err != nil {
			return err
		}
		if err := t.writeProperties(s, tm, row); err != nil {
			return err
		}
		if err := t.writeEvents(s, tm, row); err != nil {
			return err
		}
		return t.writeOverrides(s, tm, row)
	})
}

// writeInterfaces emits the implemented interfaces sorted by coded-index
// value, the ordering the table requires.
func (t *TypeBuilder) writeInterfaces(s *metadata.Sink, typeRow uint32) error {
	coded := make([]uint32, 0, len(t.interfaces))
	for _, iface := range t.interfaces {
		c, err := handle.TypeDefOrRef(iface)
		if err != nil {
			return fmt.Errorf("type %s: %v: %w", t.name, err, ErrInvalidOperation)
		}
		coded = append(coded, c)
	}
	sort.Slice(coded, func(i, j int) bool { return coded[i] < coded[j] })
	for _, c := range coded {
		s.AddInterfaceImpl(metadata.InterfaceImpl{Class: typeRow, Iface: c})
	}
	return nil
}

func (t *TypeBuilder) writeFields(s *metadata.Sink, tm *TokenMap) error {
	for _, f := range t.fields {
		real := s.AddFieldDef(metadata.FieldDef{
			Flags: uint32(f.flags),
			Name:  s.AddString(f.name),
			Sig:   f.blob,
		})
		if err := tm.setField(f.virtual.Row(), real); err != nil {
			return fmt.Errorf("field %s.%s: %w", t.name, f.name, err)
		}
		if f.hasConst {
			s.AddConstant(metadata.Constant{
				Type:   uint32(f.constElem),
				Parent: handle.New(handle.TableFieldDef, real).Token(),
				Value:  f.constBlob,
			})
		}
	}
	return nil
}

func (t *TypeBuilder) writeMethods(s *metadata.Sink, tm *TokenMap) error {
	for _, m := range t.methods {
		paramFirst := uint32(s.ParamCount()) + 1
		real := s.AddMethodDef(metadata.MethodDef{
			Flags:     uint32(m.flags),
			Name:      s.AddString(m.name),
			Sig:       m.blob,
			ParamList: paramFirst,
		})
		if err := tm.setMethod(m.virtual.Row(), real); err != nil {
			return fmt.Errorf("method %s.%s: %w", t.name, m.name, err)
		}
		seqs := make([]int, 0, len(m.params))
		for seq := range m.params {
			seqs = append(seqs, seq)
		}
		sort.Ints(seqs)
		for _, seq := range seqs {
			p := m.params[seq]
			s.AddParamDef(metadata.ParamDef{
				Flags: uint32(p.flags),
				Seq:   uint32(seq),
				Name:  s.AddString(p.name),
			})
		}
	}
	return nil
}

// writeProperties emits the property map row only if the type declares
// at least one property, then the property rows and accessor semantics.
func (t *TypeBuilder) writeProperties(s *metadata.Sink, tm *TokenMap, typeRow uint32) error {
	if len(t.props) == 0 {
		return nil
	}
	s.AddPropertyMap(metadata.PropertyMap{
		Parent:       typeRow,
		PropertyList: uint32(s.PropertyCount()) + 1,
	})
	for _, p := range t.props {
		prow := s.AddProperty(metadata.Property{
			Flags: uint32(p.flags),
			Name:  s.AddString(p.name),
			Sig:   p.blob,
		})
		assoc := handle.New(handle.TableProperty, prow).Token()
		if err := writeSemantics(s, tm, semGetter, p.getter, assoc); err != nil {
			return fmt.Errorf("property %s.%s: %w", t.name, p.name, err)
		}
		if err := writeSemantics(s, tm, semSetter, p.setter, assoc); err != nil {
			return fmt.Errorf("property %s.%s: %w", t.name, p.name, err)
		}
	}
	return nil
}

func (t *TypeBuilder) writeEvents(s *metadata.Sink, tm *TokenMap, typeRow uint32) error {
	if len(t.events) == 0 {
		return nil
	}
	s.AddEventMap(metadata.EventMap{
		Parent:    typeRow,
		EventList: uint32(s.EventCount()) + 1,
	})
	for _, e := range t.events {
		erow := s.AddEvent(metadata.Event{
			Flags: uint32(e.flags),
			Name:  s.AddString(e.name),
			Type:  e.typeCode,
		})
		assoc := handle.New(handle.TableEvent, erow).Token()
		if err := writeSemantics(s, tm, semAdder, e.adder, assoc); err != nil {
			return fmt.Errorf("event %s.%s: %w", t.name, e.name, err)
		}
		if err := writeSemantics(s, tm, semRemover, e.remover, assoc); err != nil {
			return fmt.Errorf("event %s.%s: %w", t.name, e.name, err)
		}
	}
	return nil
}

func writeSemantics(s *metadata.Sink, tm *TokenMap, sem uint32, accessor *MethodBuilder, assoc uint32) error {
	if accessor == nil {
		return nil
	}
	mapped, err := tm.MappedHandle(accessor.virtual)
	if err != nil {
		return err
	}
	s.AddMethodSemantics(metadata.MethodSemantics{
		Semantics: sem,
		Method:    mapped.Row(),
		Assoc:     assoc,
	})
	return nil
}

func (t *TypeBuilder) writeOverrides(s *metadata.Sink, tm *TokenMap, typeRow uint32) error {
	for _, link := range t.overrides {
		decl, err := tm.MappedHandle(link.decl)
		if err != nil {
			return fmt.Errorf("type %s override: %w", t.name, err)
		}
		impl, err := tm.MappedHandle(link.impl)
		if err != nil {
			return fmt.Errorf("type %s override: %w", t.name, err)
		}
		declCoded, err := handle.MethodDefOrRef(decl)
		if err != nil {
			return fmt.Errorf("type %s: %v: %w", t.name, err, ErrInvalidOperation)
		}
		implCoded, err := handle.MethodDefOrRef(impl)
		if err != nil {
			return fmt.Errorf("type %s: %v: %w", t.name, err, ErrInvalidOperation)
		}
		s.AddMethodImpl(metadata.MethodImpl{Class: typeRow, Body: implCoded, Decl: declCoded})
	}
	return nil
}

// genericParamEntry is one collected descriptor, sortable by owner coded
// index then position.
type genericParamEntry struct {
	ownerCoded  uint32
	number      uint32
	flags       GenericParamAttrs
	name        string
	constraints []handle.Handle
}

// collectGenericParams gathers the descriptors of one type and its
// methods once their final handles are known. Unfilled or unnamed slots
// fail here: an unnamed generic parameter is not a meaningful entity in
// the output format.
func (t *TypeBuilder) collectGenericParams(tm *TokenMap) ([]genericParamEntry, error) {
	var out []genericParamEntry
	appendOwner := func(owner handle.Handle, slots []genericParamSlot, what string) error {
		coded, err := handle.TypeOrMethodDef(owner)
		if err != nil {
			return fmt.Errorf("%s: %v: %w", what, err, ErrInvalidOperation)
		}
		for pos, slot := range slots {
			if !slot.set {
				return fmt.Errorf("%s: generic-parameter slot %d was never named: %w", what, pos, ErrInvalidOperation)
			}
			out = append(out, genericParamEntry{
				ownerCoded:  coded,
				number:      uint32(pos),
				flags:       slot.flags,
				name:        slot.name,
				constraints: slot.constraints,
			})
		}
		return nil
	}
	if err := appendOwner(t.h, t.gparams, "type "+t.name); err != nil {
		return nil, err
	}
	for _, m := range t.methods {
		if len(m.gparams) == 0 {
			continue
		}
		mapped, err := tm.MappedHandle(m.virtual)
		if err != nil {
			return nil, fmt.Errorf("method %s.%s: %w", t.name, m.name, err)
		}
		if err := appendOwner(mapped, m.gparams, "method "+t.name+"."+m.name); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// writeGenericParams emits the globally collected generic-parameter
// rows, sorted by owner coded index then position, with their constraint
// rows following each parameter.
func writeGenericParams(s *metadata.Sink, entries []genericParamEntry) error {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].ownerCoded != entries[j].ownerCoded {
			return entries[i].ownerCoded < entries[j].ownerCoded
		}
		return entries[i].number < entries[j].number
	})
	for _, e := range entries {
		row := s.AddGenericParam(metadata.GenericParam{
			Number: e.number,
			Flags:  uint32(e.flags),
			Owner:  e.ownerCoded,
			Name:   s.AddString(e.name),
		})
		for _, c := range e.constraints {
			coded, err := handle.TypeDefOrRef(c)
			if err != nil {
				return fmt.Errorf("generic parameter %s: %v: %w", e.name, err, ErrInvalidOperation)
			}
			s.AddGenericParamConstraint(metadata.GenericParamConstraint{
				Owner:      row,
				Constraint: coded,
			})
		}
	}
	return nil
}

// writeMethodSpecs emits the deduplicated generic-method instantiations
// in intern order; the intern index of each key is its final row number.
func (a *Authority) writeMethodSpecs(tm *TokenMap) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i, key := range a.instKeys {
		def, err := tm.MappedHandle(key.Def())
		if err != nil {
			return fmt.Errorf("instantiation %d: %w", i+1, err)
		}
		coded, err := handle.MethodDefOrRef(def)
		if err != nil {
			return fmt.Errorf("instantiation %d: %v: %w", i+1, err, ErrInvalidOperation)
		}
		blob, err := a.sink.AddBlob(key.Blob())
		if err != nil {
			return err
		}
		row := a.sink.AddMethodSpec(metadata.MethodSpec{Method: coded, Inst: blob})
		if row != uint32(i+1) {
			return fmt.Errorf("instantiation written as row %d, interned as %d: %w", row, i+1, ErrInvalidOperation)
		}
	}
	return nil
}
