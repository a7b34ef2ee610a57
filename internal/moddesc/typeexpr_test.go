package moddesc

import (
	"strings"
	"testing"

	"anvil/internal/host"
)

var exprAsm = host.AssemblyIdent{Name: "corelib", Major: 4}

// exprLookup resolves every nominal reference against a single fake
// assembly so the parser can be exercised in isolation.
func exprLookup(alias, namespace, name string, arity int) (*host.TypeDesc, error) {
	return host.NamedType(exprAsm, namespace, name, false, arity), nil
}

func TestParsePrimitives(t *testing.T) {
	for name, want := range primitiveNames {
		got, err := ParseTypeExpr(name, exprLookup)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		prim, ok := got.Primitive()
		if !ok || prim != want {
			t.Errorf("%s parsed to %v", name, got)
		}
	}
}

func TestParseSuffixes(t *testing.T) {
	got, err := ParseTypeExpr("int32[]", exprLookup)
	if err != nil {
		t.Fatal(err)
	}
	if !got.IsSZArray() {
		t.Errorf("int32[] did not parse to a vector")
	}

	got, err = ParseTypeExpr("int32[2]", exprLookup)
	if err != nil {
		t.Fatal(err)
	}
	if !got.IsArray() || got.IsSZArray() || got.ArrayRank() != 2 {
		t.Errorf("int32[2] parsed wrong: array=%v rank=%d", got.IsArray(), got.ArrayRank())
	}

	got, err = ParseTypeExpr("int32*", exprLookup)
	if err != nil {
		t.Fatal(err)
	}
	if !got.IsPointer() {
		t.Errorf("int32* did not parse to a pointer")
	}

	// Suffixes stack left to right.
	got, err = ParseTypeExpr("int32[][]", exprLookup)
	if err != nil {
		t.Fatal(err)
	}
	elem, ok := got.Elem().(*host.TypeDesc)
	if !ok || !elem.IsSZArray() {
		t.Errorf("int32[][] element is not itself a vector")
	}
}

func TestParseByRef(t *testing.T) {
	got, err := ParseTypeExpr("ref int32", exprLookup)
	if err != nil {
		t.Fatal(err)
	}
	if !got.IsByRef() {
		t.Fatalf("ref int32 did not parse to a byref")
	}
	if prim, ok := got.Elem().(*host.TypeDesc); !ok {
		t.Fatal("byref element is not a descriptor")
	} else if p, ok := prim.Primitive(); !ok || p != host.PrimInt32 {
		t.Errorf("byref element = %v", prim)
	}
}

func TestParseGenericPositions(t *testing.T) {
	got, err := ParseTypeExpr("!0", exprLookup)
	if err != nil {
		t.Fatal(err)
	}
	if !got.IsGenericParameter() || got.OnMethod() || got.ParamPosition() != 0 {
		t.Errorf("!0 parsed wrong: %v", got)
	}

	got, err = ParseTypeExpr("!!1", exprLookup)
	if err != nil {
		t.Fatal(err)
	}
	if !got.IsGenericParameter() || !got.OnMethod() || got.ParamPosition() != 1 {
		t.Errorf("!!1 parsed wrong: %v", got)
	}
}

func TestParseQualifiedAndAliased(t *testing.T) {
	got, err := ParseTypeExpr("Demo.Counter", exprLookup)
	if err != nil {
		t.Fatal(err)
	}
	if got.Namespace() != "Demo" || got.Name() != "Counter" {
		t.Errorf("got %s.%s", got.Namespace(), got.Name())
	}

	got, err = ParseTypeExpr("core:Sys.Text", exprLookup)
	if err != nil {
		t.Fatal(err)
	}
	if got.Namespace() != "Sys" || got.Name() != "Text" {
		t.Errorf("got %s.%s", got.Namespace(), got.Name())
	}
}

func TestParseGenericInstantiation(t *testing.T) {
	got, err := ParseTypeExpr("Demo.Box<int32, string[]>", exprLookup)
	if err != nil {
		t.Fatal(err)
	}
	if !got.IsConstructedGeneric() {
		t.Fatal("not a constructed generic")
	}
	args := got.GenericArguments()
	if len(args) != 2 {
		t.Fatalf("%d arguments", len(args))
	}
	if p, ok := args[0].(*host.TypeDesc).Primitive(); !ok || p != host.PrimInt32 {
		t.Errorf("first argument = %v", args[0])
	}
	if !args[1].(*host.TypeDesc).IsSZArray() {
		t.Errorf("second argument = %v", args[1])
	}
}

func TestParseErrors(t *testing.T) {
	bad := []string{
		"",
		"int32>",
		"Demo.Box<int32",
		"int32[0]",
		"!x",
		"core:",
	}
	for _, expr := range bad {
		if _, err := ParseTypeExpr(expr, exprLookup); err == nil {
			t.Errorf("%q: expected an error", expr)
		}
	}
}

func TestParseRejectsTrailingInput(t *testing.T) {
	_, err := ParseTypeExpr("int32 junk", exprLookup)
	if err == nil || !strings.Contains(err.Error(), "trailing") {
		t.Fatalf("got %v", err)
	}
}
