// Package symbolstest provides an in-memory symbols.Oracle for tests of the
// verification core.
package symbolstest

import (
	"fmt"
	"strconv"

	"github.com/715d/reflectcheck/internal/symbols"
)

// Oracle is a hand-built symbol table. Expressions carry their static type
// in Expr.Node and type references carry the referenced type in
// TypeRef.Node. An expression or reference without a type is unresolvable.
type Oracle struct {
	Object *symbols.Type
	Int    *symbols.Type
	Long   *symbols.Type
	String *symbols.Type
	Bool   *symbols.Type
	System *symbols.Type // System.Type

	members     map[*symbols.Type][]symbols.MemberDecl
	bases       map[*symbols.Type][]*symbols.Type
	conversions map[[2]*symbols.Type]bool
	constraints map[*symbols.TypeParam]*symbols.Type
}

// New returns an oracle preloaded with a few built-in types.
func New() *Oracle {
	o := &Oracle{
		members:     make(map[*symbols.Type][]symbols.MemberDecl),
		bases:       make(map[*symbols.Type][]*symbols.Type),
		conversions: make(map[[2]*symbols.Type]bool),
		constraints: make(map[*symbols.TypeParam]*symbols.Type),
	}
	o.Object = &symbols.Type{Kind: symbols.KindClass, Namespace: "System", Name: "Object", Keyword: "object"}
	o.Int = &symbols.Type{Kind: symbols.KindStruct, Namespace: "System", Name: "Int32", Keyword: "int"}
	o.Long = &symbols.Type{Kind: symbols.KindStruct, Namespace: "System", Name: "Int64", Keyword: "long"}
	o.String = &symbols.Type{Kind: symbols.KindClass, Namespace: "System", Name: "String", Keyword: "string"}
	o.Bool = &symbols.Type{Kind: symbols.KindStruct, Namespace: "System", Name: "Boolean", Keyword: "bool"}
	o.System = &symbols.Type{Kind: symbols.KindClass, Namespace: "System", Name: "Type"}
	o.Convert(o.Int, o.Long)
	return o
}

// Declare returns a new source-declared type definition with the given
// generic parameters.
func (o *Oracle) Declare(kind symbols.TypeKind, ns, name string, params ...string) *symbols.Type {
	t := &symbols.Type{Kind: kind, Namespace: ns, Name: name, Decl: name}
	for i, p := range params {
		t.TypeParams = append(t.TypeParams, &symbols.TypeParam{Name: p, Index: i, Owner: t})
	}
	o.members[t] = nil
	return t
}

// Class is Declare for classes.
func (o *Oracle) Class(ns, name string, params ...string) *symbols.Type {
	return o.Declare(symbols.KindClass, ns, name, params...)
}

// Extern returns a type with no source declaration.
func (o *Oracle) Extern(ns, name string) *symbols.Type {
	return &symbols.Type{Kind: symbols.KindClass, Namespace: ns, Name: name}
}

// Param returns a use of the i-th generic parameter of def.
func Param(def *symbols.Type, i int) *symbols.Type {
	return symbols.NewTypeParamType(def.TypeParams[i])
}

// Ctor declares a constructor of owner.
func (o *Oracle) Ctor(owner *symbols.Type, params ...*symbols.Type) *symbols.Signature {
	return o.add(owner, &symbols.Signature{Name: owner.Name, Constructor: true, Container: owner, Params: params})
}

// Method declares a method of owner.
func (o *Oracle) Method(owner *symbols.Type, name string, params ...*symbols.Type) *symbols.Signature {
	return o.add(owner, &symbols.Signature{Name: name, Container: owner, Params: params})
}

// GenericMethod declares a method of owner with its own type parameters.
// build receives the uses of those parameters and returns the formal list.
func (o *Oracle) GenericMethod(owner *symbols.Type, name string, typeParams []string, build func(params []*symbols.Type) []*symbols.Type) *symbols.Signature {
	sig := &symbols.Signature{Name: name, Container: owner}
	uses := make([]*symbols.Type, len(typeParams))
	for i, p := range typeParams {
		tp := &symbols.TypeParam{Name: p, Index: i, Method: true, Owner: owner}
		sig.TypeParams = append(sig.TypeParams, tp)
		uses[i] = symbols.NewTypeParamType(tp)
	}
	sig.Params = build(uses)
	return o.add(owner, sig)
}

// Field declares a non-invocable member of owner.
func (o *Oracle) Field(owner *symbols.Type, name string) {
	o.members[owner] = append(o.members[owner], symbols.MemberDecl{Kind: symbols.MemberOther, Name: name})
}

func (o *Oracle) add(owner *symbols.Type, sig *symbols.Signature) *symbols.Signature {
	kind := symbols.MemberMethod
	if sig.Constructor {
		kind = symbols.MemberConstructor
	}
	o.members[owner] = append(o.members[owner], symbols.MemberDecl{Kind: kind, Name: sig.Name, Node: sig})
	return sig
}

// Extend records base as a base class or interface of derived.
func (o *Oracle) Extend(derived, base *symbols.Type) {
	o.bases[derived] = append(o.bases[derived], base)
}

// Convert records an implicit conversion from one type to another.
func (o *Oracle) Convert(from, to *symbols.Type) {
	o.conversions[[2]*symbols.Type{from, to}] = true
}

// Constrain records c as the constraint type of p.
func (o *Oracle) Constrain(p *symbols.TypeParam, c *symbols.Type) {
	p.Constraint = c
	o.constraints[p] = c
}

// Value returns an expression of static type t.
func Value(t *symbols.Type) *symbols.Expr {
	return &symbols.Expr{Kind: symbols.ExprIdentifier, Text: "v", Node: t}
}

// Unresolved returns an expression the oracle cannot type.
func Unresolved(text string) *symbols.Expr {
	return &symbols.Expr{Kind: symbols.ExprIdentifier, Text: text}
}

// StringLit returns the string literal expression "s".
func (o *Oracle) StringLit(s string) *symbols.Expr {
	return &symbols.Expr{Kind: symbols.ExprStringLiteral, Text: strconv.Quote(s), Node: o.String}
}

// IntLit returns an integer literal expression.
func (o *Oracle) IntLit(n int) *symbols.Expr {
	return &symbols.Expr{Kind: symbols.ExprLiteral, Text: strconv.Itoa(n), Node: o.Int}
}

// Null returns the null literal.
func Null() *symbols.Expr {
	return &symbols.Expr{Kind: symbols.ExprNullLiteral, Text: "null"}
}

// TypeOf returns typeof(t). A nil t yields an unresolvable operand.
func (o *Oracle) TypeOf(t *symbols.Type) *symbols.Expr {
	text := "T"
	if t != nil {
		text = t.Display()
	}
	return &symbols.Expr{
		Kind:    symbols.ExprTypeOf,
		Text:    "typeof(" + text + ")",
		Operand: Ref(t),
		Node:    o.System,
	}
}

// Ref returns a type reference to t.
func Ref(t *symbols.Type) symbols.TypeRef {
	if t == nil {
		return symbols.TypeRef{Text: "?"}
	}
	return symbols.TypeRef{Text: t.Display(), Node: t}
}

// Call returns the invocation recv.member(args...).
func Call(recv, member string, args ...*symbols.Expr) *symbols.Expr {
	return &symbols.Expr{Kind: symbols.ExprInvocation, Text: fmt.Sprintf("%s.%s(...)", recv, member), Member: member, Args: args}
}

// Access returns the member access recv.member.
func Access(recv, member string) *symbols.Expr {
	return &symbols.Expr{Kind: symbols.ExprMemberAccess, Text: recv + "." + member, Member: member}
}

// ExprType implements symbols.Oracle.
func (o *Oracle) ExprType(e *symbols.Expr) (*symbols.Type, bool) {
	if e == nil {
		return nil, false
	}
	if e.Kind == symbols.ExprNullLiteral {
		return nil, true
	}
	t, ok := e.Node.(*symbols.Type)
	return t, ok && t != nil
}

// ResolveType implements symbols.Oracle.
func (o *Oracle) ResolveType(ref symbols.TypeRef) (*symbols.Type, bool) {
	t, ok := ref.Node.(*symbols.Type)
	return t, ok && t != nil
}

// Members implements symbols.Oracle.
func (o *Oracle) Members(t *symbols.Type) ([]symbols.MemberDecl, bool) {
	m, ok := o.members[t.Unbound()]
	return m, ok
}

// DeclaredSignature implements symbols.Oracle.
func (o *Oracle) DeclaredSignature(d symbols.MemberDecl) (*symbols.Signature, bool) {
	sig, ok := d.Node.(*symbols.Signature)
	return sig, ok
}

// Convertible implements symbols.Oracle: identity, registered conversions,
// anything to object, and base chains by definition.
func (o *Oracle) Convertible(from, to *symbols.Type) bool {
	if symbols.Identical(from, to) || to == o.Object || o.conversions[[2]*symbols.Type{from, to}] {
		return true
	}
	seen := make(map[*symbols.Type]bool)
	var walk func(t *symbols.Type) bool
	walk = func(t *symbols.Type) bool {
		def := t.Unbound()
		if seen[def] {
			return false
		}
		seen[def] = true
		for _, b := range o.bases[def] {
			if b.Unbound() == to.Unbound() || walk(b) {
				return true
			}
		}
		return false
	}
	return walk(from)
}

// ConstraintType implements symbols.Oracle.
func (o *Oracle) ConstraintType(p *symbols.TypeParam) (*symbols.Type, bool) {
	c, ok := o.constraints[p]
	return c, ok
}

var _ symbols.Oracle = (*Oracle)(nil)
