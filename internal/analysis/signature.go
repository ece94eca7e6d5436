// Package analysis provides the requested-signature and member-candidate
// values compared by the member matcher.
package analysis

import (
	"slices"
	"strings"

	"github.com/715d/reflectcheck/internal/symbols"
)

// RequestedSignature is the member an indirect call site claims to invoke.
// It is built once per call site and never mutated afterwards.
type RequestedSignature struct {
	// Name is the qualified member name, e.g. "ConsoleApp1.Test.M".
	// Constructors use the target's simple name as member.
	Name string

	// Target is the generic definition of the type the call operates on.
	Target *symbols.Type

	// Args are the static types of the supplied arguments in order.
	// A nil entry stands for an untyped null literal.
	Args []*symbols.Type

	// Generics binds the target's generic parameters to the type arguments
	// supplied by the call.
	Generics GenericsMap

	// Constructor reports whether the call constructs Target.
	Constructor bool
}

// NewMethodSignature returns the requested signature for calling method on
// target. target may be a bound generic; its arguments populate Generics.
func NewMethodSignature(target *symbols.Type, method string, args []*symbols.Type) *RequestedSignature {
	return &RequestedSignature{
		Name:     QualifiedMemberName(target, method),
		Target:   target.Unbound(),
		Args:     args,
		Generics: BindGenerics(target),
	}
}

// NewConstructorSignature returns the requested signature for constructing
// target with args.
func NewConstructorSignature(target *symbols.Type, args []*symbols.Type) *RequestedSignature {
	return &RequestedSignature{
		Name:        ConstructorName(target),
		Target:      target.Unbound(),
		Args:        args,
		Generics:    BindGenerics(target),
		Constructor: true,
	}
}

// Member returns the unqualified member name.
func (s *RequestedSignature) Member() string {
	return SimpleName(s.Name)
}

// Equal reports whether s and o request the same member: equal names,
// pairwise identical argument types and the same target definition.
func (s *RequestedSignature) Equal(o *RequestedSignature) bool {
	if s == nil || o == nil {
		return s == o
	}
	if s.Name != o.Name || s.Target.Unbound() != o.Target.Unbound() {
		return false
	}
	return slices.EqualFunc(s.Args, o.Args, func(a, b *symbols.Type) bool {
		if a == nil || b == nil {
			return a == b
		}
		return symbols.Identical(a, b)
	})
}

// String renders the signature as "Name(arg, null, ...)".
func (s *RequestedSignature) String() string {
	var b strings.Builder
	b.Grow(len(s.Name) + 16*len(s.Args))
	b.WriteString(s.Name)
	b.WriteByte('(')
	for i, a := range s.Args {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(a.Display())
	}
	b.WriteByte(')')
	return b.String()
}

// MemberCandidate is a declared method or constructor of a target type that
// may satisfy a RequestedSignature.
type MemberCandidate struct {
	// Name is built with the same rule as RequestedSignature.Name.
	Name string

	// Params are the declared formal parameter types.
	Params []*symbols.Type

	// TypeParams are the candidate's own generic parameters.
	TypeParams []*symbols.TypeParam

	// Container is the definition of the declaring type.
	Container *symbols.Type

	// Constructor reports whether the candidate is a constructor.
	Constructor bool
}

// NewMemberCandidate builds a candidate from a declared signature.
func NewMemberCandidate(sig *symbols.Signature) *MemberCandidate {
	c := &MemberCandidate{
		Params:      sig.Params,
		TypeParams:  sig.TypeParams,
		Container:   sig.Container.Unbound(),
		Constructor: sig.Constructor,
	}
	if sig.Constructor {
		c.Name = ConstructorName(sig.Container)
	} else {
		c.Name = QualifiedMemberName(sig.Container, sig.Name)
	}
	return c
}

// IsGeneric reports whether the candidate declares its own type parameters.
func (c *MemberCandidate) IsGeneric() bool {
	return len(c.TypeParams) > 0
}

// OwnsParam reports whether p is declared by the candidate itself rather
// than by its containing type.
func (c *MemberCandidate) OwnsParam(p *symbols.TypeParam) bool {
	if p == nil || !p.Method {
		return false
	}
	return slices.ContainsFunc(c.TypeParams, func(q *symbols.TypeParam) bool {
		return symbols.SameParam(p, q)
	})
}

// ContainerParam reports whether p is declared by the candidate's
// containing type.
func (c *MemberCandidate) ContainerParam(p *symbols.TypeParam) bool {
	if p == nil || p.Method {
		return false
	}
	return slices.ContainsFunc(c.Container.TypeParams, func(q *symbols.TypeParam) bool {
		return symbols.SameParam(p, q)
	})
}

func (c *MemberCandidate) String() string {
	var b strings.Builder
	b.WriteString(c.Name)
	b.WriteByte('(')
	for i, p := range c.Params {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(p.Display())
	}
	b.WriteByte(')')
	return b.String()
}
