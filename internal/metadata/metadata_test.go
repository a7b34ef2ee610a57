package metadata

import (
	"bytes"
	"testing"

	"anvil/internal/handle"
	"anvil/internal/sig"
)

func TestStringHeapInterning(t *testing.T) {
	s := NewSink()
	if off := s.AddString(""); off != 0 {
		t.Errorf("empty string at offset %d, want 0", off)
	}
	a := s.AddString("alpha")
	b := s.AddString("beta")
	if a == 0 || b == 0 || a == b {
		t.Fatalf("offsets alpha=%d beta=%d", a, b)
	}
	if again := s.AddString("alpha"); again != a {
		t.Errorf("re-interned alpha at %d, first at %d", again, a)
	}
	got, ok := s.StringAt(a)
	if !ok || got != "alpha" {
		t.Errorf("StringAt(%d) = (%q, %v)", a, got, ok)
	}
}

func TestBlobHeapInterning(t *testing.T) {
	s := NewSink()
	off, err := s.AddBlob(nil)
	if err != nil || off != 0 {
		t.Fatalf("empty blob = (%d, %v), want (0, nil)", off, err)
	}
	payload := []byte{0x06, 0x08}
	a, err := s.AddBlob(payload)
	if err != nil {
		t.Fatal(err)
	}
	again, err := s.AddBlob([]byte{0x06, 0x08})
	if err != nil {
		t.Fatal(err)
	}
	if again != a {
		t.Errorf("re-interned blob at %d, first at %d", again, a)
	}
	got, ok := s.BlobAt(a)
	if !ok || !bytes.Equal(got, payload) {
		t.Errorf("BlobAt(%d) = (% X, %v)", a, got, ok)
	}
}

func TestSignatureInterning(t *testing.T) {
	s := NewSink()
	fieldSig := sig.FromBytes([]byte{sig.TagField, 0x08})
	a, err := s.AddSignature(fieldSig)
	if err != nil {
		t.Fatal(err)
	}
	b, err := s.AddSignature(sig.FromBytes([]byte{sig.TagField, 0x08}))
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Errorf("equal signatures interned at %d and %d", a, b)
	}
}

func TestAddRowNumbering(t *testing.T) {
	s := NewSink()
	r1 := s.AddTypeRef(TypeRef{Name: s.AddString("A")})
	r2 := s.AddTypeRef(TypeRef{Name: s.AddString("B")})
	if r1 != 1 || r2 != 2 {
		t.Fatalf("rows = %d, %d, want 1, 2", r1, r2)
	}
	if s.TypeRefCount() != 2 {
		t.Fatalf("TypeRefCount = %d", s.TypeRefCount())
	}
}

func TestSetMethodBodyOffset(t *testing.T) {
	s := NewSink()
	row := s.AddMethodDef(MethodDef{Name: s.AddString("m")})
	if err := s.SetMethodBodyOffset(row, 16); err != nil {
		t.Fatal(err)
	}
	def, ok := s.MethodRow(row)
	if !ok || def.BodyOffset != 16 {
		t.Fatalf("MethodRow(%d) = (%+v, %v)", row, def, ok)
	}
	if err := s.SetMethodBodyOffset(99, 16); err == nil {
		t.Error("out-of-range row accepted")
	}
}

func TestImageRoundTrip(t *testing.T) {
	s := NewSink()
	nameOff := s.AddString("Counter")
	s.AddTypeDef(TypeDef{Flags: 0x101, Name: nameOff, FieldList: 1, MethodList: 1})
	s.AddFieldDef(FieldDef{Flags: 0x6, Name: s.AddString("count"), Sig: 1})
	s.AddFieldDef(FieldDef{Flags: 0x6, Name: s.AddString("step"), Sig: 1})
	s.AddMethodDef(MethodDef{Flags: 0x6, Name: s.AddString(".ctor"), ParamList: 1})
	if _, err := s.AddUserString("hello"); err != nil {
		t.Fatal(err)
	}

	bodies := []byte{0, 0, 0, 0, 0x0A, 0x2A}
	raw, err := s.EmitImage("demo", bodies)
	if err != nil {
		t.Fatal(err)
	}

	img, err := ReadImage(raw)
	if err != nil {
		t.Fatal(err)
	}
	if img.ModuleName != "demo" {
		t.Errorf("module name %q", img.ModuleName)
	}
	if img.FormatVersion != FormatVersion {
		t.Errorf("format version %d", img.FormatVersion)
	}
	if got := img.Counts[handle.TableTypeDef]; got != 1 {
		t.Errorf("TypeDef count %d, want 1", got)
	}
	if got := img.Counts[handle.TableFieldDef]; got != 2 {
		t.Errorf("FieldDef count %d, want 2", got)
	}
	if got := img.Counts[handle.TableMethodDef]; got != 1 {
		t.Errorf("MethodDef count %d, want 1", got)
	}
	if got := img.Counts[handle.TableTypeSpec]; got != 0 {
		t.Errorf("TypeSpec count %d, want 0", got)
	}
	if !bytes.Equal(img.Bodies, bodies) {
		t.Errorf("bodies % X, want % X", img.Bodies, bodies)
	}
	if name, ok := img.StringAt(nameOff); !ok || name != "Counter" {
		t.Errorf("StringAt(%d) = (%q, %v)", nameOff, name, ok)
	}
}

func TestReadImageRejectsGarbage(t *testing.T) {
	if _, err := ReadImage([]byte("not an image")); err == nil {
		t.Error("bad magic accepted")
	}
	s := NewSink()
	raw, err := s.EmitImage("m", nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ReadImage(raw[:len(raw)-3]); err == nil {
		t.Error("truncated image accepted")
	}
}
