package emit

import (
	"testing"

	"anvil/internal/handle"
	"anvil/internal/host"
	"anvil/internal/metadata"
	"anvil/internal/sig"
)

func TestExternalFieldHandleMemoized(t *testing.T) {
	s := newTestSession(t)
	a := s.Authority()
	owner := host.NamedType(testAsm, "Sys", "Math", false, 0)
	f := host.MakeField(owner, "PI", host.PrimitiveType(host.PrimFloat64))

	first, err := a.HandleForField(f, handle.Handle{})
	if err != nil {
		t.Fatalf("HandleForField: %v", err)
	}
	if first.Table() != handle.TableMemberRef {
		t.Fatalf("field resolved to %v, want a MemberRef", first)
	}
	second, err := a.HandleForField(f, handle.Handle{})
	if err != nil {
		t.Fatalf("HandleForField again: %v", err)
	}
	if first != second {
		t.Errorf("handles differ: %v vs %v", first, second)
	}
	if err := a.WithSink(func(sink *metadata.Sink) error {
		if n := sink.MemberRefCount(); n != 1 {
			t.Errorf("MemberRefCount = %d, want 1", n)
		}
		return nil
	}); err != nil {
		t.Fatal(err)
	}
}

func TestConstructedGenericMethodDedup(t *testing.T) {
	s := newTestSession(t)
	a := s.Authority()
	owner := host.NamedType(testAsm, "Sys", "Seq", false, 0)
	voidType := host.PrimitiveType(host.PrimVoid)
	def := host.MakeGenericMethod(owner, "Lift", false, 1, voidType, host.MethodParam(0))

	// Two independently constructed closings over the same argument.
	int32Type := host.PrimitiveType(host.PrimInt32)
	first, err := a.HandleForMethod(host.InstantiateMethod(def, int32Type), handle.Handle{})
	if err != nil {
		t.Fatalf("HandleForMethod: %v", err)
	}
	second, err := a.HandleForMethod(host.InstantiateMethod(def, int32Type), handle.Handle{})
	if err != nil {
		t.Fatalf("HandleForMethod again: %v", err)
	}
	if first != second {
		t.Errorf("instantiation handles differ: %v vs %v", first, second)
	}
	if first.Table() != handle.TableMethodSpec {
		t.Errorf("instantiation resolved to %v, want a MethodSpec", first)
	}

	other, err := a.HandleForMethod(host.InstantiateMethod(def, host.PrimitiveType(host.PrimString)), handle.Handle{})
	if err != nil {
		t.Fatalf("HandleForMethod other args: %v", err)
	}
	if other == first {
		t.Error("different argument lists share an instantiation handle")
	}

	// The open definition itself interned exactly one reference row.
	if err := a.WithSink(func(sink *metadata.Sink) error {
		if n := sink.MemberRefCount(); n != 1 {
			t.Errorf("MemberRefCount = %d, want 1", n)
		}
		return nil
	}); err != nil {
		t.Fatal(err)
	}
}

func TestMemberRefPerInstantiation(t *testing.T) {
	s := newTestSession(t)
	a := s.Authority()
	listDef := host.NamedType(testAsm, "Sys", "List", false, 1)
	voidType := host.PrimitiveType(host.PrimVoid)
	add := host.MakeMethod(listDef, "Add", true, voidType, host.TypeParam(0))

	intList, err := a.HandleForType(host.Instantiate(listDef, host.PrimitiveType(host.PrimInt32)))
	if err != nil {
		t.Fatalf("HandleForType int list: %v", err)
	}
	strList, err := a.HandleForType(host.Instantiate(listDef, host.PrimitiveType(host.PrimString)))
	if err != nil {
		t.Fatalf("HandleForType string list: %v", err)
	}
	if intList.Table() != handle.TableTypeSpec || strList.Table() != handle.TableTypeSpec {
		t.Fatalf("instantiations resolved to %v and %v, want composite-type entries", intList, strList)
	}

	onInt, err := a.HandleForMethod(add, intList)
	if err != nil {
		t.Fatalf("HandleForMethod on int list: %v", err)
	}
	onStr, err := a.HandleForMethod(add, strList)
	if err != nil {
		t.Fatalf("HandleForMethod on string list: %v", err)
	}
	if onInt == onStr {
		t.Error("one reference row serves two instantiations")
	}

	// Repeats hit the (member, instantiation) cache.
	again, err := a.HandleForMethod(add, intList)
	if err != nil {
		t.Fatal(err)
	}
	if again != onInt {
		t.Errorf("repeat resolved to %v, want %v", again, onInt)
	}
	if err := a.WithSink(func(sink *metadata.Sink) error {
		if n := sink.MemberRefCount(); n != 2 {
			t.Errorf("MemberRefCount = %d, want 2", n)
		}
		return nil
	}); err != nil {
		t.Fatal(err)
	}
}

func TestMemberRefOnNonGenericTypeFails(t *testing.T) {
	s := newTestSession(t)
	a := s.Authority()
	plain := host.NamedType(testAsm, "Sys", "Text", false, 0)
	m := host.MakeMethod(plain, "Trim", true, host.PrimitiveType(host.PrimString))

	inst, err := a.HandleForType(host.SZArrayOf(host.PrimitiveType(host.PrimInt32)))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := a.HandleForMethod(m, inst); err == nil {
		t.Fatal("member of a non-generic type was resolved against an instantiation")
	}
}

func TestVarArgCallSite(t *testing.T) {
	s := newTestSession(t)
	a := s.Authority()
	owner := host.NamedType(testAsm, "Sys", "Console", false, 0)
	voidType := host.PrimitiveType(host.PrimVoid)
	base := host.MakeMethod(owner, "Format", false, voidType, host.PrimitiveType(host.PrimString))
	call := base.WithExtraVarArgs(host.PrimitiveType(host.PrimInt32), host.PrimitiveType(host.PrimInt32))

	baseHandle, err := a.HandleForMethod(base, handle.Handle{})
	if err != nil {
		t.Fatalf("HandleForMethod base: %v", err)
	}
	callHandle, err := a.HandleForMethod(call, handle.Handle{})
	if err != nil {
		t.Fatalf("HandleForMethod vararg view: %v", err)
	}
	if baseHandle == callHandle {
		t.Error("vararg call site shares the fixed-arity reference row")
	}

	effect := a.StackEffectFor(callHandle.Token())
	if effect.Pops != 3 || effect.Pushes != 0 {
		t.Errorf("vararg effect = %+v, want pops 3, pushes 0", effect)
	}
}

func TestLocalsHandleInterning(t *testing.T) {
	s := newTestSession(t)
	a := s.Authority()
	locals := []sig.Signature{
		sig.ForPrimitive(host.PrimInt32),
		sig.ForPrimitive(host.PrimString),
	}

	first, err := a.LocalsHandle(locals)
	if err != nil {
		t.Fatalf("LocalsHandle: %v", err)
	}
	if first.Table() != handle.TableStandAloneSig {
		t.Fatalf("locals resolved to %v, want a free-standing signature", first)
	}
	second, err := a.LocalsHandle([]sig.Signature{
		sig.ForPrimitive(host.PrimInt32),
		sig.ForPrimitive(host.PrimString),
	})
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Errorf("identical locals interned twice: %v vs %v", first, second)
	}

	other, err := a.LocalsHandle([]sig.Signature{sig.ForPrimitive(host.PrimBool)})
	if err != nil {
		t.Fatal(err)
	}
	if other == first {
		t.Error("different locals share a signature row")
	}
}

func TestGenericParamRowsSortedByOwner(t *testing.T) {
	s := newTestSession(t)
	ta, err := s.DefineType("", "Plain", TypePublic, 0)
	if err != nil {
		t.Fatal(err)
	}
	voidType := host.PrimitiveType(host.PrimVoid)
	for _, name := range []string{"A", "B"} {
		if _, err := ta.DefineMethod(name, MethodPublic|MethodStatic, 0, voidType); err != nil {
			t.Fatal(err)
		}
	}
	// Method row 3; its owner coded index lands above the type's.
	m, err := ta.DefineMethod("C", MethodPublic|MethodStatic, 2, voidType)
	if err != nil {
		t.Fatal(err)
	}
	if err := m.SetGenericParam(0, "U", 0, nil); err != nil {
		t.Fatal(err)
	}
	if err := m.SetGenericParam(1, "V", 0, nil); err != nil {
		t.Fatal(err)
	}
	tb, err := s.DefineType("", "Box", TypePublic, 1)
	if err != nil {
		t.Fatal(err)
	}
	if err := tb.SetGenericParam(0, "T", 0, nil); err != nil {
		t.Fatal(err)
	}

	if _, err := s.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if err := s.Authority().WithSink(func(sink *metadata.Sink) error {
		rows := sink.GenericParamRows()
		if len(rows) != 3 {
			t.Fatalf("%d generic-parameter rows, want 3", len(rows))
		}
		// Box (TypeDef row 2) codes to 4; method C (row 3) to 7.
		wantOwners := []uint32{4, 7, 7}
		wantNumbers := []uint32{0, 0, 1}
		for i, row := range rows {
			if row.Owner != wantOwners[i] || row.Number != wantNumbers[i] {
				t.Errorf("row %d = owner %d number %d, want owner %d number %d",
					i+1, row.Owner, row.Number, wantOwners[i], wantNumbers[i])
			}
		}
		return nil
	}); err != nil {
		t.Fatal(err)
	}
}
