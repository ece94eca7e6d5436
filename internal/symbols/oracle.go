package symbols

import "errors"

// MemberKind classifies a member declaration.
type MemberKind int

const (
	MemberOther MemberKind = iota
	MemberMethod
	MemberConstructor
)

// MemberDecl is a host handle to a member declaration of a type.
type MemberDecl struct {
	Kind MemberKind

	// Name is the declared name; constructors carry the type's simple name.
	Name string

	// Node is the host declaration handle.
	Node any
}

// Signature is the declared signature of a method or constructor.
type Signature struct {
	// Name is the declared member name; constructors use the type name.
	Name string

	// Constructor reports whether the member is a constructor.
	Constructor bool

	// Container is the definition of the declaring type.
	Container *Type

	// Params are the formal parameter types in order.
	Params []*Type

	// TypeParams are the member's own generic parameters.
	TypeParams []*TypeParam
}

// Oracle answers static type and declaration questions for one compilation
// unit. Implementations must be free of observable side effects; the core
// may call any method any number of times.
type Oracle interface {
	// ExprType returns the static type of e. A nil type with ok set means an
	// untyped literal such as null.
	ExprType(e *Expr) (t *Type, ok bool)

	// ResolveType returns the type referenced by ref.
	ResolveType(ref TypeRef) (*Type, bool)

	// Members returns the method, constructor and other member declarations
	// of the definition of t in declaration order. ok is false when no source
	// declaration is available for t.
	Members(t *Type) (members []MemberDecl, ok bool)

	// DeclaredSignature returns the signature declared by d.
	DeclaredSignature(d MemberDecl) (*Signature, bool)

	// Convertible reports whether a value of type from can be used where to
	// is expected: identity, or an implicit conversion.
	Convertible(from, to *Type) bool

	// ConstraintType returns the type named in p's constraint clause.
	ConstraintType(p *TypeParam) (*Type, bool)
}

// ErrOracle marks an oracle that returned no answer where the call shape
// guarantees one.
var ErrOracle = errors.New("symbol oracle returned no result")
