package handle

import "testing"

func TestTokenRoundTrip(t *testing.T) {
	cases := []Handle{
		New(TableTypeDef, 1),
		New(TableTypeRef, 0xFFFFFF),
		New(TableMethodSpec, 42),
		{},
	}
	for _, h := range cases {
		got := FromToken(h.Token())
		if got != h {
			t.Errorf("FromToken(Token(%v)) = %v", h, got)
		}
	}
}

func TestNilHandle(t *testing.T) {
	var zero Handle
	if !zero.IsNil() {
		t.Error("zero handle should be nil")
	}
	if New(TableTypeDef, 1).IsNil() {
		t.Error("non-zero handle reported nil")
	}

	var v Virtual
	if !v.IsNil() {
		t.Error("zero virtual should be nil")
	}
	if NewVirtualField(1).IsNil() {
		t.Error("assigned virtual reported nil")
	}
}

func TestVirtualIsDistinctFromHandle(t *testing.T) {
	v := NewVirtualMethod(3)
	h := New(TableMethodDef, 3)
	if v.Token() != h.Token() {
		t.Fatalf("virtual and final tokens differ: 0x%08X vs 0x%08X", v.Token(), h.Token())
	}
	// Same token shape, but the types keep them apart as Refs.
	var r Ref = v
	if _, ok := r.(Handle); ok {
		t.Fatal("a Virtual must not assert as a Handle")
	}
}

func TestTypeDefOrRef(t *testing.T) {
	cases := []struct {
		h    Handle
		want uint32
	}{
		{New(TableTypeDef, 5), 5 << 2},
		{New(TableTypeRef, 5), 5<<2 | 1},
		{New(TableTypeSpec, 5), 5<<2 | 2},
	}
	for _, tc := range cases {
		got, err := TypeDefOrRef(tc.h)
		if err != nil {
			t.Fatalf("TypeDefOrRef(%v): %v", tc.h, err)
		}
		if got != tc.want {
			t.Errorf("TypeDefOrRef(%v) = 0x%X, want 0x%X", tc.h, got, tc.want)
		}
		back, err := FromTypeDefOrRef(got)
		if err != nil {
			t.Fatalf("FromTypeDefOrRef(0x%X): %v", got, err)
		}
		if back != tc.h {
			t.Errorf("FromTypeDefOrRef(0x%X) = %v, want %v", got, back, tc.h)
		}
	}
	if _, err := TypeDefOrRef(New(TableMethodDef, 1)); err == nil {
		t.Error("MethodDef accepted as a type coded index")
	}
}

func TestMethodDefOrRef(t *testing.T) {
	got, err := MethodDefOrRef(New(TableMethodDef, 7))
	if err != nil || got != 7<<1 {
		t.Errorf("MethodDef = (0x%X, %v), want 0x%X", got, err, 7<<1)
	}
	got, err = MethodDefOrRef(New(TableMemberRef, 7))
	if err != nil || got != 7<<1|1 {
		t.Errorf("MemberRef = (0x%X, %v), want 0x%X", got, err, 7<<1|1)
	}
	if _, err := MethodDefOrRef(New(TableTypeDef, 1)); err == nil {
		t.Error("TypeDef accepted as a method coded index")
	}
}

func TestTypeOrMethodDef(t *testing.T) {
	got, err := TypeOrMethodDef(New(TableTypeDef, 9))
	if err != nil || got != 9<<1 {
		t.Errorf("TypeDef owner = (0x%X, %v), want 0x%X", got, err, 9<<1)
	}
	got, err = TypeOrMethodDef(New(TableMethodDef, 9))
	if err != nil || got != 9<<1|1 {
		t.Errorf("MethodDef owner = (0x%X, %v), want 0x%X", got, err, 9<<1|1)
	}
	if _, err := TypeOrMethodDef(New(TableTypeSpec, 1)); err == nil {
		t.Error("TypeSpec accepted as a generic-parameter owner")
	}
}
