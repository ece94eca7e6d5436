// Package symbols defines the type model, the call-site syntax view and the
// symbol resolution oracle shared by the verification core and its hosts.
package symbols

import (
	"fmt"
	"strings"
)

// TypeKind classifies a Type.
type TypeKind int

const (
	KindUnknown TypeKind = iota // the host could not determine the type
	KindClass
	KindStruct
	KindInterface
	KindEnum
	KindDelegate
	KindTypeParameter
	KindArray
	KindNullable // Nullable<T> written as T?
	KindDynamic
)

var kindNames = []string{
	"unknown",
	"class",
	"struct",
	"interface",
	"enum",
	"delegate",
	"type-parameter",
	"array",
	"nullable",
	"dynamic",
}

func (k TypeKind) String() string {
	if i := int(k); i >= 0 && i < len(kindNames) {
		return kindNames[i]
	}
	return fmt.Sprintf("symbols.TypeKind(%d)", k)
}

// TypeParam is a generic parameter declared on a type or on a method.
type TypeParam struct {
	// Name is the declared name, e.g. "T".
	Name string

	// Index is the position within the declaring parameter list.
	Index int

	// Method reports whether the parameter is declared by a method rather
	// than by the containing type.
	Method bool

	// Owner is the definition of the type declaring the parameter, or the
	// type containing the declaring method.
	Owner *Type

	// Constraint is a host handle for the constraint clause, nil when the
	// parameter has none.
	Constraint any
}

// Type is a type as seen by the oracle. Definitions are created once by the
// host; constructed types point at their definition and carry arguments.
type Type struct {
	Kind TypeKind

	// Namespace is the dotted container path: namespace plus enclosing types.
	Namespace string

	// Name is the simple name without arity, e.g. "List".
	Name string

	// Keyword is the language alias for built-in types, e.g. "int".
	Keyword string

	// TypeParams are the declared generic parameters of a definition.
	TypeParams []*TypeParam

	// TypeArgs are the supplied arguments of a constructed generic type.
	TypeArgs []*Type

	// Definition is the unbound form; nil means the type is its own definition.
	Definition *Type

	// Elem is the element type of arrays and nullables.
	Elem *Type

	// Param is set for KindTypeParameter.
	Param *TypeParam

	// Decl is a host handle to the declaration, nil for metadata-only types.
	Decl any
}

// Unknown is the shared placeholder for types the host cannot compute.
var Unknown = &Type{Kind: KindUnknown, Name: "?"}

// Unbound returns the generic definition of t.
func (t *Type) Unbound() *Type {
	if t == nil {
		return nil
	}
	if t.Definition != nil {
		return t.Definition
	}
	return t
}

// IsTypeParameter reports whether t is a use of a generic parameter.
func (t *Type) IsTypeParameter() bool {
	return t != nil && t.Kind == KindTypeParameter
}

// IsGeneric reports whether t is a generic definition or a constructed type.
func (t *Type) IsGeneric() bool {
	return t != nil && (len(t.TypeArgs) > 0 || len(t.Unbound().TypeParams) > 0)
}

// IsReferenceType reports whether values of t can be null.
// Nullable value types are value types.
func (t *Type) IsReferenceType() bool {
	if t == nil {
		return false
	}
	switch t.Kind {
	case KindClass, KindInterface, KindDelegate, KindArray, KindDynamic:
		return true
	case KindUnknown:
		// Unknown types are treated leniently by every consumer.
		return true
	default:
		return false
	}
}

// QualifiedName renders the definition name with namespace and declared
// type parameters, e.g. "ConsoleApp1.Test<T, T2>".
func (t *Type) QualifiedName() string {
	if t == nil {
		return ""
	}
	def := t.Unbound()
	var b strings.Builder
	b.Grow(64)
	if def.Namespace != "" {
		b.WriteString(def.Namespace)
		b.WriteByte('.')
	}
	b.WriteString(def.Name)
	if len(def.TypeParams) > 0 {
		b.WriteByte('<')
		for i, p := range def.TypeParams {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(p.Name)
		}
		b.WriteByte('>')
	}
	return b.String()
}

// Display renders t the way it appears in source, using keywords for
// built-in types and type arguments for constructed types.
func (t *Type) Display() string {
	if t == nil {
		return "null"
	}
	switch t.Kind {
	case KindArray:
		return t.Elem.Display() + "[]"
	case KindNullable:
		return t.Elem.Display() + "?"
	case KindTypeParameter:
		return t.Name
	}
	if t.Keyword != "" {
		return t.Keyword
	}
	var b strings.Builder
	if t.Namespace != "" {
		b.WriteString(t.Namespace)
		b.WriteByte('.')
	}
	b.WriteString(t.Name)
	switch {
	case len(t.TypeArgs) > 0:
		b.WriteByte('<')
		for i, a := range t.TypeArgs {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(a.Display())
		}
		b.WriteByte('>')
	case len(t.TypeParams) > 0:
		b.WriteByte('<')
		for i, p := range t.TypeParams {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(p.Name)
		}
		b.WriteByte('>')
	}
	return b.String()
}

func (t *Type) String() string { return t.Display() }

// Identical reports whether a and b denote the same type. Definitions are
// compared by identity, constructed types structurally.
func Identical(a, b *Type) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil || a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindUnknown:
		return false
	case KindDynamic:
		return true
	case KindTypeParameter:
		return SameParam(a.Param, b.Param)
	case KindArray, KindNullable:
		return Identical(a.Elem, b.Elem)
	}
	if a.Unbound() != b.Unbound() {
		return false
	}
	if len(a.TypeArgs) != len(b.TypeArgs) {
		return false
	}
	for i := range a.TypeArgs {
		if !Identical(a.TypeArgs[i], b.TypeArgs[i]) {
			return false
		}
	}
	return true
}

// SameParam reports whether p and q are the same declared generic parameter.
func SameParam(p, q *TypeParam) bool {
	if p == q {
		return true
	}
	if p == nil || q == nil {
		return false
	}
	return p.Owner == q.Owner && p.Method == q.Method && p.Index == q.Index && p.Name == q.Name
}

// NewTypeParamType returns the type denoting a use of p.
func NewTypeParamType(p *TypeParam) *Type {
	return &Type{Kind: KindTypeParameter, Name: p.Name, Param: p}
}

// Construct returns def instantiated with args.
func Construct(def *Type, args []*Type) *Type {
	def = def.Unbound()
	if len(args) == 0 {
		return def
	}
	return &Type{
		Kind:       def.Kind,
		Namespace:  def.Namespace,
		Name:       def.Name,
		Keyword:    def.Keyword,
		TypeArgs:   args,
		Definition: def,
		Decl:       def.Decl,
	}
}

// ArrayOf returns the single-dimensional array type of elem.
func ArrayOf(elem *Type) *Type {
	return &Type{Kind: KindArray, Name: "Array", Elem: elem}
}

// NullableOf returns elem? for a value type elem.
func NullableOf(elem *Type) *Type {
	return &Type{Kind: KindNullable, Namespace: "System", Name: "Nullable", Elem: elem}
}

// Mentions reports whether any type parameter used in t satisfies match.
func (t *Type) Mentions(match func(*TypeParam) bool) bool {
	if t == nil {
		return false
	}
	switch t.Kind {
	case KindTypeParameter:
		return match(t.Param)
	case KindArray, KindNullable:
		return t.Elem.Mentions(match)
	}
	for _, a := range t.TypeArgs {
		if a.Mentions(match) {
			return true
		}
	}
	return false
}

// Substitute replaces type parameter uses in t by calling repl. repl returns
// nil to keep a parameter unchanged. The second result reports whether any
// parameter was left unreplaced.
func Substitute(t *Type, repl func(*TypeParam) *Type) (*Type, bool) {
	if t == nil {
		return nil, false
	}
	switch t.Kind {
	case KindTypeParameter:
		if r := repl(t.Param); r != nil {
			return r, false
		}
		return t, true
	case KindArray:
		elem, open := Substitute(t.Elem, repl)
		return ArrayOf(elem), open
	case KindNullable:
		elem, open := Substitute(t.Elem, repl)
		return NullableOf(elem), open
	}
	if len(t.TypeArgs) == 0 {
		return t, false
	}
	args := make([]*Type, len(t.TypeArgs))
	var open bool
	for i, a := range t.TypeArgs {
		var o bool
		args[i], o = Substitute(a, repl)
		open = open || o
	}
	return Construct(t.Unbound(), args), open
}
