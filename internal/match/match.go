// Package match searches a target type's declared members for one that is
// compatible with a requested signature.
package match

import (
	"fmt"

	"github.com/715d/reflectcheck/internal/analysis"
	"github.com/715d/reflectcheck/internal/symbols"
)

// Verdict is the result of matching a requested signature.
type Verdict int

const (
	// NotFound means the target's declaration has no compatible member.
	NotFound Verdict = iota

	// Found means a compatible member exists.
	Found

	// NoSource means the target has no source declaration to search, e.g. a
	// type known only from referenced assemblies.
	NoSource
)

func (v Verdict) String() string {
	switch v {
	case NotFound:
		return "not-found"
	case Found:
		return "found"
	case NoSource:
		return "no-source"
	default:
		return fmt.Sprintf("match.Verdict(%d)", int(v))
	}
}

// Matcher checks requested signatures against declarations obtained from an
// oracle. It holds no mutable state; the same input always yields the same
// verdict.
type Matcher struct {
	oracle symbols.Oracle
}

// New returns a matcher backed by oracle.
func New(oracle symbols.Oracle) *Matcher {
	return &Matcher{oracle: oracle}
}

// Match reports whether sig's target declares a compatible member.
func (m *Matcher) Match(sig *analysis.RequestedSignature) (Verdict, error) {
	_, v, err := m.Find(sig)
	return v, err
}

// Find returns the first compatible member of sig's target in declaration
// order. Candidates are not ranked.
func (m *Matcher) Find(sig *analysis.RequestedSignature) (*analysis.MemberCandidate, Verdict, error) {
	candidates, ok, err := m.Candidates(sig.Target)
	if err != nil {
		return nil, NotFound, err
	}
	if !ok {
		return nil, NoSource, nil
	}

	var constraints *analysis.GenericsMap
	for _, c := range candidates {
		if c.Name != sig.Name || len(c.Params) != len(sig.Args) {
			continue
		}
		if constraints == nil {
			cm := m.constraintMap(c.Container)
			constraints = &cm
		}
		if m.accepts(sig, c, *constraints) {
			return c, Found, nil
		}
	}
	return nil, NotFound, nil
}

// Candidates returns the methods and constructors declared by the
// definition of t, in declaration order. ok is false when t has no source
// declaration.
func (m *Matcher) Candidates(t *symbols.Type) ([]*analysis.MemberCandidate, bool, error) {
	members, ok := m.oracle.Members(t.Unbound())
	if !ok {
		return nil, false, nil
	}
	candidates := make([]*analysis.MemberCandidate, 0, len(members))
	for _, d := range members {
		if d.Kind != symbols.MemberMethod && d.Kind != symbols.MemberConstructor {
			continue
		}
		decl, ok := m.oracle.DeclaredSignature(d)
		if !ok || decl == nil {
			return nil, true, fmt.Errorf("signature of %s.%s: %w", t.Unbound().QualifiedName(), d.Name, symbols.ErrOracle)
		}
		candidates = append(candidates, analysis.NewMemberCandidate(decl))
	}
	return candidates, true, nil
}

// constraintMap maps each generic parameter of container that has a
// constraint clause to the constraint's type.
func (m *Matcher) constraintMap(container *symbols.Type) analysis.GenericsMap {
	var g analysis.GenericsMap
	for _, p := range container.Unbound().TypeParams {
		if c, ok := m.oracle.ConstraintType(p); ok && c != nil {
			g = g.With(p.Name, c)
		}
	}
	return g
}

func (m *Matcher) accepts(sig *analysis.RequestedSignature, c *analysis.MemberCandidate, constraints analysis.GenericsMap) bool {
	for i, formal := range c.Params {
		if !m.position(sig, c, constraints, sig.Args[i], formal) {
			return false
		}
	}
	return true
}

// position checks one argument against one formal parameter.
func (m *Matcher) position(sig *analysis.RequestedSignature, c *analysis.MemberCandidate, constraints analysis.GenericsMap, arg, formal *symbols.Type) bool {
	if formal == nil || formal.Kind == symbols.KindUnknown {
		return true
	}
	if arg != nil && arg.Kind == symbols.KindUnknown {
		return true
	}

	switch {
	case formal.IsTypeParameter() && c.OwnsParam(formal.Param):
		// Indirect calls never supply method type arguments, so the
		// argument must satisfy the parameter's own constraint.
		bound, ok := m.oracle.ConstraintType(formal.Param)
		if !ok || bound == nil {
			return true
		}
		formal = bound

	case formal.IsTypeParameter():
		bound, ok := sig.Generics.Lookup(formal.Param.Name)
		if !ok {
			bound, ok = constraints.Lookup(formal.Param.Name)
		}
		if !ok {
			// Unconstrained parameters accept anything.
			return true
		}
		formal = bound

	case formal.Mentions(func(*symbols.TypeParam) bool { return true }):
		inst, open := symbols.Substitute(formal, func(p *symbols.TypeParam) *symbols.Type {
			if c.OwnsParam(p) {
				return nil
			}
			t, _ := sig.Generics.Lookup(p.Name)
			return t
		})
		if open {
			return true
		}
		formal = inst
	}

	return m.assignable(arg, formal)
}

// assignable reports whether an argument of type arg can be passed for
// formal. A nil arg is the null literal.
func (m *Matcher) assignable(arg, formal *symbols.Type) bool {
	if arg == nil {
		return formal.IsReferenceType()
	}
	return symbols.Identical(arg, formal) || m.oracle.Convertible(arg, formal)
}
