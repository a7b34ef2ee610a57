// Package moddesc loads declarative module descriptions from TOML and
// drives the emission engine with them. It is the file-based frontend of
// the anvil CLI; programmatic frontends talk to the engine directly.
package moddesc

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// DescriptorFile is the canonical file name looked up by Find.
const DescriptorFile = "anvil.toml"

// Descriptor is one parsed module description together with its origin.
type Descriptor struct {
	Path   string
	Root   string
	Config Config
}

// Config mirrors the TOML schema.
type Config struct {
	Module     ModuleConfig     `toml:"module"`
	Assemblies []AssemblyConfig `toml:"assembly"`
	Types      []TypeConfig     `toml:"type"`
}

type ModuleConfig struct {
	Name string `toml:"name"`
}

// AssemblyConfig names an external assembly that type expressions may
// reference by its alias.
type AssemblyConfig struct {
	Alias string `toml:"alias"`
	Name  string `toml:"name"`
	Major int    `toml:"major"`
	Minor int    `toml:"minor"`
	Build int    `toml:"build"`
	Rev   int    `toml:"rev"`
}

type TypeConfig struct {
	Name       string   `toml:"name"`
	Namespace  string   `toml:"namespace"`
	Public     bool     `toml:"public"`
	Sealed     bool     `toml:"sealed"`
	Abstract   bool     `toml:"abstract"`
	Interface  bool     `toml:"interface"`
	ValueType  bool     `toml:"value_type"`
	Extends    string   `toml:"extends"`
	Implements []string `toml:"implements"`
	Generics   []string `toml:"generics"`

	Fields     []FieldConfig    `toml:"field"`
	Methods    []MethodConfig   `toml:"method"`
	Properties []PropertyConfig `toml:"property"`
}

type FieldConfig struct {
	Name     string `toml:"name"`
	Type     string `toml:"type"`
	Public   bool   `toml:"public"`
	Static   bool   `toml:"static"`
	ReadOnly bool   `toml:"readonly"`
	Const    *int64 `toml:"const"` // int32 literal value, implies static
}

type MethodConfig struct {
	Name        string   `toml:"name"`
	Public      bool     `toml:"public"`
	Static      bool     `toml:"static"`
	Virtual     bool     `toml:"virtual"`
	Abstract    bool     `toml:"abstract"`
	Constructor bool     `toml:"constructor"`
	Returns     string   `toml:"returns"`
	Params      []string `toml:"params"`
	ParamNames  []string `toml:"param_names"`
	Generics    []string `toml:"generics"`

	Body       string        `toml:"body"` // raw instruction bytes, hex
	MaxStack   int           `toml:"max_stack"`
	InitLocals bool          `toml:"init_locals"`
	Fixups     []FixupConfig `toml:"fixup"`
}

// FixupConfig marks a four-byte token slot inside a method body. The
// named method must belong to the same type; its token is patched in
// before emission.
type FixupConfig struct {
	Offset int    `toml:"offset"`
	Method string `toml:"method"`
}

type PropertyConfig struct {
	Name   string `toml:"name"`
	Type   string `toml:"type"`
	Static bool   `toml:"static"`
	Getter string `toml:"getter"` // name of an already declared method
	Setter string `toml:"setter"`
}

// Find walks up from startDir looking for the descriptor file.
func Find(startDir string) (string, bool, error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, DescriptorFile)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

// Load parses and validates one descriptor file.
func Load(path string) (*Descriptor, error) {
	cfg, err := loadConfig(path)
	if err != nil {
		return nil, err
	}
	return &Descriptor{
		Path:   path,
		Root:   filepath.Dir(path),
		Config: cfg,
	}, nil
}

func loadConfig(path string) (Config, error) {
	var cfg Config
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if !meta.IsDefined("module") {
		return Config{}, fmt.Errorf("%s: missing [module]", path)
	}
	if !meta.IsDefined("module", "name") || strings.TrimSpace(cfg.Module.Name) == "" {
		return Config{}, fmt.Errorf("%s: missing [module].name", path)
	}
	if err := validateConfig(path, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validateConfig(path string, cfg *Config) error {
	seenAsm := make(map[string]bool, len(cfg.Assemblies))
	for i, asm := range cfg.Assemblies {
		if strings.TrimSpace(asm.Alias) == "" {
			return fmt.Errorf("%s: assembly %d: missing alias", path, i+1)
		}
		if strings.TrimSpace(asm.Name) == "" {
			return fmt.Errorf("%s: assembly %q: missing name", path, asm.Alias)
		}
		if seenAsm[asm.Alias] {
			return fmt.Errorf("%s: duplicate assembly alias %q", path, asm.Alias)
		}
		seenAsm[asm.Alias] = true
	}
	seenType := make(map[string]bool, len(cfg.Types))
	for _, typ := range cfg.Types {
		if strings.TrimSpace(typ.Name) == "" {
			return fmt.Errorf("%s: type with empty name", path)
		}
		full := typ.Namespace + "." + typ.Name
		if seenType[full] {
			return fmt.Errorf("%s: duplicate type %q", path, full)
		}
		seenType[full] = true
		if err := validateType(path, &typ); err != nil {
			return err
		}
	}
	return nil
}

func validateType(path string, typ *TypeConfig) error {
	if typ.Interface && typ.Extends != "" {
		return fmt.Errorf("%s: interface %q cannot extend a type", path, typ.Name)
	}
	for _, f := range typ.Fields {
		if strings.TrimSpace(f.Name) == "" {
			return fmt.Errorf("%s: type %q: field with empty name", path, typ.Name)
		}
		if strings.TrimSpace(f.Type) == "" {
			return fmt.Errorf("%s: field %q: missing type", path, f.Name)
		}
		if f.Const != nil && !f.Static {
			return fmt.Errorf("%s: field %q: const requires static", path, f.Name)
		}
	}
	for _, m := range typ.Methods {
		if !m.Constructor && strings.TrimSpace(m.Name) == "" {
			return fmt.Errorf("%s: type %q: method with empty name", path, typ.Name)
		}
		if len(m.ParamNames) > len(m.Params) {
			return fmt.Errorf("%s: method %q: more param_names than params", path, m.Name)
		}
		if m.Body == "" && len(m.Fixups) > 0 {
			return fmt.Errorf("%s: method %q: fixups without a body", path, m.Name)
		}
		if m.Body != "" && m.Abstract {
			return fmt.Errorf("%s: method %q: abstract methods have no body", path, m.Name)
		}
		for _, fx := range m.Fixups {
			if fx.Offset < 0 {
				return fmt.Errorf("%s: method %q: negative fixup offset", path, m.Name)
			}
			if strings.TrimSpace(fx.Method) == "" {
				return fmt.Errorf("%s: method %q: fixup without a target method", path, m.Name)
			}
		}
	}
	for _, p := range typ.Properties {
		if strings.TrimSpace(p.Name) == "" {
			return fmt.Errorf("%s: type %q: property with empty name", path, typ.Name)
		}
		if strings.TrimSpace(p.Type) == "" {
			return fmt.Errorf("%s: property %q: missing type", path, p.Name)
		}
		if p.Getter == "" && p.Setter == "" {
			return fmt.Errorf("%s: property %q: needs a getter or a setter", path, p.Name)
		}
	}
	return nil
}
