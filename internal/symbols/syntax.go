package symbols

import "fmt"

// ExprKind is the syntactic shape of an argument expression.
type ExprKind int

const (
	ExprOther         ExprKind = iota // any shape the extractor does not inspect
	ExprStringLiteral                 // "M", @"M"
	ExprNullLiteral                   // null
	ExprLiteral                       // 42, 'c', true, 1.5
	ExprTypeOf                        // typeof(T)
	ExprInvocation                    // X.Create(a, b)
	ExprMemberAccess                  // X.Empty
	ExprIdentifier                    // name
)

var exprKindNames = []string{
	"other",
	"string-literal",
	"null-literal",
	"literal",
	"typeof",
	"invocation",
	"member-access",
	"identifier",
}

func (k ExprKind) String() string {
	if i := int(k); i >= 0 && i < len(exprKindNames) {
		return exprKindNames[i]
	}
	return fmt.Sprintf("symbols.ExprKind(%d)", k)
}

// TypeRef is a reference to a type written in source.
type TypeRef struct {
	// Text is the source text, used for messages.
	Text string

	// Node is the host syntax handle passed back to the oracle.
	Node any
}

// Expr is the extractor's view of an argument expression.
type Expr struct {
	Kind ExprKind

	// Text is the source text.
	Text string

	// Operand is the type written inside typeof(...).
	Operand TypeRef

	// Member is the last accessed member name of an invocation or member
	// access, e.g. "Create" for ParamList.Create(a).
	Member string

	// Args are the arguments of an invocation.
	Args []*Expr

	// Node is the host syntax handle passed back to the oracle.
	Node any
}

// Span locates a call site in a source file. Lines and columns are 1-based.
type Span struct {
	File      string
	Line      int
	Column    int
	EndLine   int
	EndColumn int
	Offset    int
	EndOffset int
}

func (s Span) String() string {
	return fmt.Sprintf("%s:%d:%d", s.File, s.Line, s.Column)
}

// CallSite is a method invocation or object construction handed to the
// verification core by a host.
type CallSite struct {
	// Callee is the fully-qualified name of the resolved callee, e.g.
	// "Remotion.Mixins.ObjectFactory.Create". Constructors are named
	// Type.Type.
	Callee string

	// Generic reports whether the call supplied explicit type arguments.
	Generic bool

	// TypeArgs are the explicit type arguments of a generic call, or the type
	// arguments of the constructed type for object creation.
	TypeArgs []TypeRef

	// Receiver is the instance expression of an instance call, if any.
	Receiver *Expr

	// Args are the call arguments in source order.
	Args []*Expr

	Span Span
}

// Key returns the classifier lookup key: the callee name, suffixed with "<>"
// when the call is generic.
func (s *CallSite) Key() string {
	if s.Generic {
		return s.Callee + "<>"
	}
	return s.Callee
}
