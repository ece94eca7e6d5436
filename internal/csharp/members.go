package csharp

import (
	"slices"

	"github.com/715d/reflectcheck/internal/symbols"
)

// basesOf returns the declared base class and interfaces of t with the type
// arguments of t substituted.
func (idx *Index) basesOf(t *symbols.Type) []*symbols.Type {
	switch t.Kind {
	case symbols.KindTypeParameter:
		if c, ok := t.Param.Constraint.(*symbols.Type); ok && c != nil {
			return []*symbols.Type{c}
		}
		return nil
	case symbols.KindUnknown, symbols.KindArray, symbols.KindNullable, symbols.KindDynamic:
		return nil
	}
	d := idx.declOf(t)
	if d == nil || len(d.bases) == 0 {
		return nil
	}
	out := make([]*symbols.Type, len(d.bases))
	for i, b := range d.bases {
		out[i] = bindContainer(b, t)
	}
	return out
}

// bindContainer substitutes the type parameters of the definition of owner
// in t with the type arguments owner carries.
func bindContainer(t, owner *symbols.Type) *symbols.Type {
	if owner == nil || len(owner.TypeArgs) == 0 {
		return t
	}
	def := owner.Unbound()
	bound, _ := symbols.Substitute(t, func(p *symbols.TypeParam) *symbols.Type {
		if !p.Method && p.Owner == def && p.Index < len(owner.TypeArgs) {
			return owner.TypeArgs[p.Index]
		}
		return nil
	})
	return bound
}

// lookupMember finds the members named name declared by t or, failing that,
// by its base types, breadth first. It returns the constructed type
// declaring them.
func (idx *Index) lookupMember(t *symbols.Type, name string, keep func(*member) bool) (*symbols.Type, []*member) {
	if t == nil {
		return nil, nil
	}
	seen := make(map[*symbols.Type]bool)
	queue := []*symbols.Type{t}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.Kind != symbols.KindTypeParameter {
			if seen[cur.Unbound()] {
				continue
			}
			seen[cur.Unbound()] = true
		}
		if d := idx.declOf(cur); d != nil {
			var found []*member
			for _, m := range d.byName[name] {
				if keep(m) {
					found = append(found, m)
				}
			}
			if len(found) > 0 {
				return cur, found
			}
		}
		queue = append(queue, idx.basesOf(cur)...)
	}
	return nil, nil
}

func isMethod(m *member) bool { return m.invocable() }

func isValue(m *member) bool {
	return m.kind == symbols.MemberOther && m.typ != nil
}

// instantiate returns the type of member m accessed through owner with
// explicit method type arguments. The result is Unknown when it still
// depends on a method type parameter that was not supplied.
func (idx *Index) instantiate(m *member, owner *symbols.Type, typeArgs []*symbols.Type) *symbols.Type {
	if m.result != nil {
		return m.result(owner, typeArgs)
	}
	if m.typ == nil {
		return symbols.Unknown
	}
	t := bindContainer(m.typ, owner)
	if m.sig == nil || len(m.sig.TypeParams) == 0 {
		return t
	}
	t, open := symbols.Substitute(t, func(p *symbols.TypeParam) *symbols.Type {
		if !p.Method {
			return nil
		}
		i := slices.IndexFunc(m.sig.TypeParams, func(q *symbols.TypeParam) bool { return symbols.SameParam(p, q) })
		if i >= 0 && i < len(typeArgs) {
			return typeArgs[i]
		}
		return nil
	})
	if open && t.Mentions(func(p *symbols.TypeParam) bool { return p.Method }) {
		return symbols.Unknown
	}
	return t
}

// pickOverload returns the first method taking argc arguments, or the first
// method when none does.
func pickOverload(ms []*member, argc int) *member {
	for _, m := range ms {
		if m.sig == nil && m.result != nil {
			return m
		}
		if m.sig != nil && len(m.sig.Params) == argc {
			return m
		}
	}
	return ms[0]
}

// memberDecls lists the members of d for the oracle.
func (d *typeDecl) memberDecls() []symbols.MemberDecl {
	out := make([]symbols.MemberDecl, len(d.members))
	for i, m := range d.members {
		out[i] = symbols.MemberDecl{Kind: m.kind, Name: m.name, Node: m}
	}
	return out
}
