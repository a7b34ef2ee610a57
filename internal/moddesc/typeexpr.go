package moddesc

import (
	"fmt"
	"strconv"
	"strings"

	"anvil/internal/host"
)

// Type expressions are the compact textual form used by descriptor
// files:
//
//	int32              primitive
//	string[]           single-dimension array
//	int32*             unmanaged pointer
//	ref int32          by-reference (parameter position only)
//	!0  !!1            generic type / method parameter by position
//	Demo.Counter       type declared in the same descriptor
//	core:Sys.Text      type from the assembly aliased "core"
//	Demo.Box<int32>    generic instantiation
//	int32[2]           array of the given rank

var primitiveNames = map[string]host.Primitive{
	"void":    host.PrimVoid,
	"bool":    host.PrimBool,
	"char":    host.PrimChar,
	"int8":    host.PrimInt8,
	"uint8":   host.PrimUint8,
	"int16":   host.PrimInt16,
	"uint16":  host.PrimUint16,
	"int32":   host.PrimInt32,
	"uint32":  host.PrimUint32,
	"int64":   host.PrimInt64,
	"uint64":  host.PrimUint64,
	"float32": host.PrimFloat32,
	"float64": host.PrimFloat64,
	"string":  host.PrimString,
	"intptr":  host.PrimIntPtr,
	"uintptr": host.PrimUintPtr,
	"object":  host.PrimObject,
}

// lookupNamed resolves a nominal reference. alias is empty for types
// declared in the same descriptor.
type lookupNamed func(alias, namespace, name string, arity int) (*host.TypeDesc, error)

type typeParser struct {
	input  string
	pos    int
	lookup lookupNamed
}

// ParseTypeExpr parses one type expression against the given resolver.
func ParseTypeExpr(expr string, lookup lookupNamed) (*host.TypeDesc, error) {
	p := &typeParser{input: strings.TrimSpace(expr), lookup: lookup}
	t, err := p.parseType()
	if err != nil {
		return nil, fmt.Errorf("type expression %q: %w", expr, err)
	}
	p.skipSpace()
	if p.pos != len(p.input) {
		return nil, fmt.Errorf("type expression %q: trailing input at %d", expr, p.pos)
	}
	return t, nil
}

func (p *typeParser) parseType() (*host.TypeDesc, error) {
	p.skipSpace()
	if p.consumeWord("ref") {
		inner, err := p.parseType()
		if err != nil {
			return nil, err
		}
		return host.ByRefTo(inner), nil
	}
	base, err := p.parseBase()
	if err != nil {
		return nil, err
	}
	return p.parseSuffixes(base)
}

func (p *typeParser) parseBase() (*host.TypeDesc, error) {
	if p.consume("!!") {
		pos, err := p.parseNumber()
		if err != nil {
			return nil, err
		}
		return host.MethodParam(pos), nil
	}
	if p.consume("!") {
		pos, err := p.parseNumber()
		if err != nil {
			return nil, err
		}
		return host.TypeParam(pos), nil
	}

	ident := p.parseIdent()
	if ident == "" {
		return nil, fmt.Errorf("expected a type name at %d", p.pos)
	}
	var alias string
	if p.consume(":") {
		alias = ident
		ident = p.parseIdent()
		if ident == "" {
			return nil, fmt.Errorf("expected a type name after %q:", alias)
		}
	}

	if alias == "" && !strings.Contains(ident, ".") {
		if prim, ok := primitiveNames[ident]; ok {
			return host.PrimitiveType(prim), nil
		}
	}

	var args []host.Type
	if p.consume("<") {
		for {
			arg, err := p.parseType()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			p.skipSpace()
			if p.consume(",") {
				continue
			}
			if p.consume(">") {
				break
			}
			return nil, fmt.Errorf("expected ',' or '>' at %d", p.pos)
		}
	}

	namespace, name := splitQualified(ident)
	def, err := p.lookup(alias, namespace, name, len(args))
	if err != nil {
		return nil, err
	}
	if len(args) > 0 {
		return host.Instantiate(def, args...), nil
	}
	return def, nil
}

func (p *typeParser) parseSuffixes(t *host.TypeDesc) (*host.TypeDesc, error) {
	for {
		switch {
		case p.consume("[]"):
			t = host.SZArrayOf(t)
		case p.consume("["):
			rank, err := p.parseNumber()
			if err != nil {
				return nil, err
			}
			if !p.consume("]") {
				return nil, fmt.Errorf("expected ']' at %d", p.pos)
			}
			if rank < 1 {
				return nil, fmt.Errorf("array rank %d", rank)
			}
			t = host.ArrayOf(t, rank)
		case p.consume("*"):
			t = host.PointerTo(t)
		default:
			return t, nil
		}
	}
}

func (p *typeParser) skipSpace() {
	for p.pos < len(p.input) && p.input[p.pos] == ' ' {
		p.pos++
	}
}

func (p *typeParser) consume(tok string) bool {
	if strings.HasPrefix(p.input[p.pos:], tok) {
		p.pos += len(tok)
		return true
	}
	return false
}

// consumeWord matches a keyword followed by a space.
func (p *typeParser) consumeWord(word string) bool {
	rest := p.input[p.pos:]
	if strings.HasPrefix(rest, word+" ") {
		p.pos += len(word) + 1
		return true
	}
	return false
}

func (p *typeParser) parseIdent() string {
	start := p.pos
	for p.pos < len(p.input) {
		c := p.input[p.pos]
		if c == '_' || c == '.' ||
			(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') ||
			(c >= '0' && c <= '9' && p.pos > start) {
			p.pos++
			continue
		}
		break
	}
	return p.input[start:p.pos]
}

func (p *typeParser) parseNumber() (int, error) {
	start := p.pos
	for p.pos < len(p.input) && p.input[p.pos] >= '0' && p.input[p.pos] <= '9' {
		p.pos++
	}
	if p.pos == start {
		return 0, fmt.Errorf("expected a number at %d", start)
	}
	n, err := strconv.Atoi(p.input[start:p.pos])
	if err != nil {
		return 0, err
	}
	return n, nil
}

func splitQualified(ident string) (namespace, name string) {
	if i := strings.LastIndexByte(ident, '.'); i >= 0 {
		return ident[:i], ident[i+1:]
	}
	return "", ident
}
