package moddesc

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"golang.org/x/sync/errgroup"

	"anvil/internal/emit"
	"anvil/internal/host"
	"anvil/internal/observ"
)

// builder carries the state of one descriptor-driven emission.
type builder struct {
	desc    *Descriptor
	session *emit.Session

	assemblies map[string]host.AssemblyIdent
	localDescs map[string]*host.TypeDesc // qualified name -> bound description
	localTypes map[string]*emit.TypeBuilder
}

// Build turns a loaded descriptor into a packed image. Types are
// declared sequentially so that their rows follow descriptor order, then
// populated concurrently, one goroutine per type.
func Build(desc *Descriptor, timer *observ.Timer) (*emit.Result, error) {
	session, err := emit.NewSession(desc.Config.Module.Name)
	if err != nil {
		return nil, err
	}
	b := &builder{
		desc:       desc,
		session:    session,
		assemblies: make(map[string]host.AssemblyIdent, len(desc.Config.Assemblies)),
		localDescs: make(map[string]*host.TypeDesc, len(desc.Config.Types)),
		localTypes: make(map[string]*emit.TypeBuilder, len(desc.Config.Types)),
	}
	for _, asm := range desc.Config.Assemblies {
		b.assemblies[asm.Alias] = host.AssemblyIdent{
			Name:  asm.Name,
			Major: uint16(asm.Major),
			Minor: uint16(asm.Minor),
			Build: uint16(asm.Build),
			Rev:   uint16(asm.Rev),
		}
	}

	span := timer.Begin("declare")
	if err := b.declareTypes(); err != nil {
		return nil, err
	}
	span.End(fmt.Sprintf("%d types", len(desc.Config.Types)))

	span = timer.Begin("populate")
	var g errgroup.Group
	for i := range desc.Config.Types {
		typ := &desc.Config.Types[i]
		g.Go(func() error {
			if err := b.populateType(typ); err != nil {
				return fmt.Errorf("type %s: %w", typ.Name, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	span.End("")

	span = timer.Begin("finish")
	result, err := session.Finish()
	if err != nil {
		return nil, err
	}
	span.End(fmt.Sprintf("%d bytes", len(result.Image)))
	return result, nil
}

func qualified(namespace, name string) string {
	if namespace == "" {
		return name
	}
	return namespace + "." + name
}

// declareTypes creates every type builder and binds a host description
// for it, so type expressions can mention descriptor types freely.
func (b *builder) declareTypes() error {
	localAsm := host.AssemblyIdent{Name: b.desc.Config.Module.Name}
	for i := range b.desc.Config.Types {
		typ := &b.desc.Config.Types[i]
		tb, err := b.session.DefineType(typ.Namespace, typ.Name, typeFlags(typ), len(typ.Generics))
		if err != nil {
			return fmt.Errorf("type %s: %w", typ.Name, err)
		}
		td := host.NamedType(localAsm, typ.Namespace, typ.Name, typ.ValueType, len(typ.Generics))
		if err := b.session.BindType(td, tb); err != nil {
			return fmt.Errorf("type %s: %w", typ.Name, err)
		}
		full := qualified(typ.Namespace, typ.Name)
		b.localDescs[full] = td
		b.localTypes[full] = tb
	}
	return nil
}

func typeFlags(typ *TypeConfig) emit.TypeAttrs {
	var flags emit.TypeAttrs
	if typ.Public {
		flags |= emit.TypePublic
	}
	if typ.Sealed {
		flags |= emit.TypeSealed
	}
	if typ.Abstract || typ.Interface {
		flags |= emit.TypeAbstract
	}
	if typ.Interface {
		flags |= emit.TypeInterface
	}
	return flags
}

// lookup resolves one nominal reference from a type expression.
func (b *builder) lookup(alias, namespace, name string, arity int) (*host.TypeDesc, error) {
	if alias == "" {
		full := qualified(namespace, name)
		td, ok := b.localDescs[full]
		if !ok {
			return nil, fmt.Errorf("unknown type %q", full)
		}
		if td.GenericArity() != arity {
			return nil, fmt.Errorf("type %q takes %d generic arguments, got %d", full, td.GenericArity(), arity)
		}
		return td, nil
	}
	ident, ok := b.assemblies[alias]
	if !ok {
		return nil, fmt.Errorf("unknown assembly alias %q", alias)
	}
	// External types are treated as reference types; value types from
	// other assemblies must be wrapped in a local descriptor type.
	return host.NamedType(ident, namespace, name, false, arity), nil
}

func (b *builder) parseType(expr string) (*host.TypeDesc, error) {
	return ParseTypeExpr(expr, b.lookup)
}

func (b *builder) populateType(typ *TypeConfig) error {
	tb := b.localTypes[qualified(typ.Namespace, typ.Name)]
	for pos, name := range typ.Generics {
		if err := tb.SetGenericParam(pos, name, 0, nil); err != nil {
			return err
		}
	}
	if typ.Extends != "" {
		parentType, err := b.parseType(typ.Extends)
		if err != nil {
			return err
		}
		parent, err := b.session.Authority().HandleForType(parentType)
		if err != nil {
			return err
		}
		if err := tb.SetParent(parent); err != nil {
			return err
		}
	}
	for _, expr := range typ.Implements {
		ifaceType, err := b.parseType(expr)
		if err != nil {
			return err
		}
		iface, err := b.session.Authority().HandleForType(ifaceType)
		if err != nil {
			return err
		}
		if err := tb.AddInterface(iface); err != nil {
			return err
		}
	}
	for i := range typ.Fields {
		if err := b.addField(tb, &typ.Fields[i]); err != nil {
			return fmt.Errorf("field %s: %w", typ.Fields[i].Name, err)
		}
	}
	methods := make(map[string]*emit.MethodBuilder, len(typ.Methods))
	for i := range typ.Methods {
		mb, err := b.addMethod(tb, &typ.Methods[i])
		if err != nil {
			return fmt.Errorf("method %s: %w", typ.Methods[i].Name, err)
		}
		methods[typ.Methods[i].Name] = mb
	}
	// Bodies are set after every method of the type exists, so fixups
	// can point at methods declared later in the file.
	for i := range typ.Methods {
		m := &typ.Methods[i]
		if m.Body == "" {
			continue
		}
		if err := setMethodBody(methods[m.Name], m, methods); err != nil {
			return fmt.Errorf("method %s: %w", m.Name, err)
		}
	}
	for i := range typ.Properties {
		if err := b.addProperty(tb, &typ.Properties[i], methods); err != nil {
			return fmt.Errorf("property %s: %w", typ.Properties[i].Name, err)
		}
	}
	return nil
}

func (b *builder) addField(tb *emit.TypeBuilder, f *FieldConfig) error {
	typ, err := b.parseType(f.Type)
	if err != nil {
		return err
	}
	flags := emit.FieldPrivate
	if f.Public {
		flags = emit.FieldPublic
	}
	if f.Static {
		flags |= emit.FieldStatic
	}
	if f.ReadOnly {
		flags |= emit.FieldInitOnly
	}
	if f.Const != nil {
		flags |= emit.FieldLiteral
	}
	fb, err := tb.DefineField(f.Name, typ, flags)
	if err != nil {
		return err
	}
	if f.Const != nil {
		var raw [4]byte
		binary.LittleEndian.PutUint32(raw[:], uint32(int32(*f.Const)))
		if err := fb.SetLiteralValue(host.PrimInt32, raw[:]); err != nil {
			return err
		}
	}
	return nil
}

func (b *builder) addMethod(tb *emit.TypeBuilder, m *MethodConfig) (*emit.MethodBuilder, error) {
	params := make([]host.Type, 0, len(m.Params))
	for _, expr := range m.Params {
		p, err := b.parseType(expr)
		if err != nil {
			return nil, err
		}
		params = append(params, p)
	}

	var flags emit.MethodAttrs
	if m.Public {
		flags |= emit.MethodPublic
	} else {
		flags |= emit.MethodPrivate
	}
	if m.Static {
		flags |= emit.MethodStatic
	}
	if m.Virtual || m.Abstract {
		flags |= emit.MethodVirtual
	}
	if m.Abstract {
		flags |= emit.MethodAbstract
	}

	var mb *emit.MethodBuilder
	var err error
	if m.Constructor {
		mb, err = tb.DefineConstructor(flags, params...)
	} else {
		retExpr := m.Returns
		if retExpr == "" {
			retExpr = "void"
		}
		var ret *host.TypeDesc
		ret, err = b.parseType(retExpr)
		if err != nil {
			return nil, err
		}
		mb, err = tb.DefineMethod(m.Name, flags, len(m.Generics), ret, params...)
	}
	if err != nil {
		return nil, err
	}
	for pos, name := range m.Generics {
		if err := mb.SetGenericParam(pos, name, 0, nil); err != nil {
			return nil, err
		}
	}
	for i, name := range m.ParamNames {
		if name == "" {
			continue
		}
		if err := mb.SetParamName(i+1, name, 0); err != nil {
			return nil, err
		}
	}
	return mb, nil
}

// setMethodBody decodes the hex body, patches each fixup slot with the
// provisional token of its target, and records the slot offsets so the
// finish pass rewrites them to final tokens.
func setMethodBody(mb *emit.MethodBuilder, m *MethodConfig, methods map[string]*emit.MethodBuilder) error {
	code, err := hex.DecodeString(m.Body)
	if err != nil {
		return fmt.Errorf("body is not valid hex: %w", err)
	}
	fixups := make([]int, 0, len(m.Fixups))
	for _, fx := range m.Fixups {
		target, ok := methods[fx.Method]
		if !ok {
			return fmt.Errorf("fixup target %q is not a method of this type", fx.Method)
		}
		if fx.Offset+4 > len(code) {
			return fmt.Errorf("fixup at %d overruns the %d-byte body", fx.Offset, len(code))
		}
		binary.LittleEndian.PutUint32(code[fx.Offset:fx.Offset+4], target.Ref().Token())
		fixups = append(fixups, fx.Offset)
	}
	return mb.SetMethodBody(emit.MethodBody{
		Code:        code,
		MaxStack:    m.MaxStack,
		InitLocals:  m.InitLocals,
		TokenFixups: fixups,
	})
}

func (b *builder) addProperty(tb *emit.TypeBuilder, p *PropertyConfig, methods map[string]*emit.MethodBuilder) error {
	typ, err := b.parseType(p.Type)
	if err != nil {
		return err
	}
	pb, err := tb.DefineProperty(p.Name, p.Static, typ)
	if err != nil {
		return err
	}
	if p.Getter != "" {
		mb, ok := methods[p.Getter]
		if !ok {
			return fmt.Errorf("unknown getter method %q", p.Getter)
		}
		if err := pb.SetGetter(mb); err != nil {
			return err
		}
	}
	if p.Setter != "" {
		mb, ok := methods[p.Setter]
		if !ok {
			return fmt.Errorf("unknown setter method %q", p.Setter)
		}
		if err := pb.SetSetter(mb); err != nil {
			return err
		}
	}
	return nil
}
