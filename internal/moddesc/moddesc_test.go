package moddesc

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"anvil/internal/handle"
	"anvil/internal/metadata"
	"anvil/internal/observ"
)

func writeDescriptor(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, DescriptorFile)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write descriptor: %v", err)
	}
	return path
}

func TestFindWalksUp(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, DescriptorFile)
	if err := os.WriteFile(path, []byte("[module]\nname = \"x\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	nested := filepath.Join(dir, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}

	found, ok, err := Find(nested)
	if err != nil {
		t.Fatal(err)
	}
	if !ok || found != path {
		t.Errorf("Find = %q, %v; want %q", found, ok, path)
	}
}

func TestLoadRejectsMissingModuleName(t *testing.T) {
	path := writeDescriptor(t, "[[type]]\nname = \"A\"\n")
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "[module]") {
		t.Fatalf("got %v", err)
	}
}

func TestLoadRejectsDuplicateType(t *testing.T) {
	path := writeDescriptor(t, `
[module]
name = "demo"

[[type]]
name = "A"
namespace = "N"

[[type]]
name = "A"
namespace = "N"
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "duplicate type") {
		t.Fatalf("got %v", err)
	}
}

func TestLoadRejectsDuplicateAssemblyAlias(t *testing.T) {
	path := writeDescriptor(t, `
[module]
name = "demo"

[[assembly]]
alias = "core"
name = "corelib"

[[assembly]]
alias = "core"
name = "other"
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "duplicate assembly alias") {
		t.Fatalf("got %v", err)
	}
}

func TestLoadRejectsNonStaticConst(t *testing.T) {
	path := writeDescriptor(t, `
[module]
name = "demo"

[[type]]
name = "A"

[[type.field]]
name = "f"
type = "int32"
const = 1
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "const requires static") {
		t.Fatalf("got %v", err)
	}
}

func TestLoadRejectsAccessorlessProperty(t *testing.T) {
	path := writeDescriptor(t, `
[module]
name = "demo"

[[type]]
name = "A"

[[type.property]]
name = "P"
type = "int32"
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "getter or a setter") {
		t.Fatalf("got %v", err)
	}
}

const buildFixture = `
[module]
name = "demo"

[[assembly]]
alias = "core"
name = "corelib"
major = 4

[[type]]
name = "Counter"
namespace = "Demo"
public = true
sealed = true
extends = "core:Sys.Object"

[[type.field]]
name = "value"
type = "int32"

[[type.field]]
name = "Limit"
type = "int32"
public = true
static = true
const = 100

[[type.method]]
constructor = true
public = true
params = ["int32"]
param_names = ["start"]

[[type.method]]
name = "get_Value"
public = true
returns = "int32"

[[type.property]]
name = "Value"
type = "int32"
getter = "get_Value"

[[type]]
name = "Box"
namespace = "Demo"
public = true
generics = ["T"]

[[type.field]]
name = "item"
type = "!0"

[[type.method]]
name = "Swap"
public = true
returns = "!0"
params = ["!0"]
`

func TestBuildEndToEnd(t *testing.T) {
	path := writeDescriptor(t, buildFixture)
	desc, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	res, err := Build(desc, observ.NewTimer())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	img, err := metadata.ReadImage(res.Image)
	if err != nil {
		t.Fatalf("ReadImage: %v", err)
	}
	if img.ModuleName != "demo" {
		t.Errorf("module name %q", img.ModuleName)
	}
	checks := map[handle.Table]uint32{
		handle.TableTypeDef:      2,
		handle.TableFieldDef:     3,
		handle.TableMethodDef:    3,
		handle.TableParamDef:     1,
		handle.TableProperty:     1,
		handle.TablePropertyMap:  1,
		handle.TableConstant:     1,
		handle.TableGenericParam: 1,
		handle.TableTypeRef:      1,
		handle.TableAssemblyRef:  1,
	}
	for table, want := range checks {
		if got := img.Counts[table]; got != want {
			t.Errorf("%s rows = %d, want %d", table, got, want)
		}
	}
}

func TestLoadRejectsFixupWithoutBody(t *testing.T) {
	path := writeDescriptor(t, `
[module]
name = "demo"

[[type]]
name = "A"

[[type.method]]
name = "M"

[[type.method.fixup]]
offset = 0
method = "M"
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "fixups without a body") {
		t.Fatalf("got %v", err)
	}
}

func TestBuildMethodBodyWithFixup(t *testing.T) {
	path := writeDescriptor(t, `
[module]
name = "demo"

[[type]]
name = "Prog"
public = true

[[type.method]]
name = "Target"
public = true
static = true
body = "2a"

[[type.method]]
name = "Caller"
public = true
static = true
body = "28000000002a"
max_stack = 1

[[type.method.fixup]]
offset = 1
method = "Target"
`)
	desc, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	res, err := Build(desc, observ.NewTimer())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	img, err := metadata.ReadImage(res.Image)
	if err != nil {
		t.Fatalf("ReadImage: %v", err)
	}

	// Reserved prefix, Target's one-byte body behind a tiny header,
	// then Caller's six-byte body behind its own tiny header.
	want := []byte{
		0, 0, 0, 0,
		0x06, 0x2A,
		0x1A, 0x28, 0x01, 0x00, 0x00, 0x06, 0x2A,
	}
	if len(img.Bodies) != len(want) {
		t.Fatalf("body stream of %d bytes, want %d", len(img.Bodies), len(want))
	}
	for i := range want {
		if img.Bodies[i] != want[i] {
			t.Fatalf("body stream % X, want % X", img.Bodies, want)
		}
	}
}

func TestBuildRejectsUnknownAlias(t *testing.T) {
	path := writeDescriptor(t, `
[module]
name = "demo"

[[type]]
name = "A"
extends = "nope:Sys.Object"
`)
	desc, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, err := Build(desc, observ.NewTimer()); err == nil || !strings.Contains(err.Error(), "unknown assembly alias") {
		t.Fatalf("got %v", err)
	}
}

func TestBuildRejectsUnknownLocalType(t *testing.T) {
	path := writeDescriptor(t, `
[module]
name = "demo"

[[type]]
name = "A"

[[type.field]]
name = "f"
type = "Missing.Thing"
`)
	desc, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, err := Build(desc, observ.NewTimer()); err == nil || !strings.Contains(err.Error(), "unknown type") {
		t.Fatalf("got %v", err)
	}
}
