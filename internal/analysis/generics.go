package analysis

import (
	"maps"
	"slices"
	"strings"

	"github.com/715d/reflectcheck/internal/symbols"
)

// GenericsMap maps the generic parameter names of a type definition to the
// types bound to them. A GenericsMap is immutable; With and Merge return
// modified copies. The zero value is an empty map.
type GenericsMap struct {
	m map[string]*symbols.Type
}

// BindGenerics builds the map of a bound generic type: each declared
// parameter of t's definition maps to the corresponding supplied argument.
// Arguments that are themselves type parameters are not concrete and produce
// no entry. Non-generic or unbound types yield an empty map.
func BindGenerics(t *symbols.Type) GenericsMap {
	if t == nil || len(t.TypeArgs) == 0 {
		return GenericsMap{}
	}
	params := t.Unbound().TypeParams
	m := make(map[string]*symbols.Type, len(params))
	for i, p := range params {
		if i >= len(t.TypeArgs) {
			break
		}
		arg := t.TypeArgs[i]
		if arg == nil || arg.IsTypeParameter() {
			continue
		}
		m[p.Name] = arg
	}
	return GenericsMap{m: m}
}

// Lookup returns the type bound to the parameter name.
func (g GenericsMap) Lookup(name string) (*symbols.Type, bool) {
	t, ok := g.m[name]
	return t, ok
}

// Len returns the number of bound parameters.
func (g GenericsMap) Len() int { return len(g.m) }

// Names returns the bound parameter names in sorted order.
func (g GenericsMap) Names() []string {
	return slices.Sorted(maps.Keys(g.m))
}

// With returns a copy of g with name bound to t.
func (g GenericsMap) With(name string, t *symbols.Type) GenericsMap {
	m := make(map[string]*symbols.Type, len(g.m)+1)
	maps.Copy(m, g.m)
	m[name] = t
	return GenericsMap{m: m}
}

// Merge returns a copy of g overridden by every entry of over.
func (g GenericsMap) Merge(over GenericsMap) GenericsMap {
	if over.Len() == 0 {
		return g
	}
	if g.Len() == 0 {
		return over
	}
	m := make(map[string]*symbols.Type, len(g.m)+len(over.m))
	maps.Copy(m, g.m)
	maps.Copy(m, over.m)
	return GenericsMap{m: m}
}

func (g GenericsMap) String() string {
	var b strings.Builder
	b.WriteByte('{')
	for i, name := range g.Names() {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(name)
		b.WriteString(": ")
		b.WriteString(g.m[name].Display())
	}
	b.WriteByte('}')
	return b.String()
}
