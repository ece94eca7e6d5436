// Package extract builds the requested signature of an indirect call site.
package extract

import (
	"fmt"
	"strings"

	"github.com/715d/reflectcheck/internal/analysis"
	"github.com/715d/reflectcheck/internal/pattern"
	"github.com/715d/reflectcheck/internal/symbols"
)

// ShapeError reports an argument combination the indirection API does not
// support, e.g. two parameter lists. It indicates either unsupported real
// usage or a defect and is surfaced as an internal error.
type ShapeError struct {
	Pattern pattern.Kind
	Reason  string
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("%s: %s", e.Pattern, e.Reason)
}

func shapef(k pattern.Kind, format string, args ...any) error {
	return &ShapeError{Pattern: k, Reason: fmt.Sprintf(format, args...)}
}

// Result is the outcome of a successful extraction: either a signature or
// the reason the call site cannot be analyzed statically.
type Result struct {
	Signature *analysis.RequestedSignature

	// Unanalyzable is set when a literal the idiom requires is a runtime
	// value instead.
	Unanalyzable string
}

// Analyzable reports whether r carries a signature.
func (r Result) Analyzable() bool {
	return r.Signature != nil
}

func unanalyzable(format string, args ...any) (Result, error) {
	return Result{Unanalyzable: fmt.Sprintf(format, args...)}, nil
}

func found(sig *analysis.RequestedSignature) (Result, error) {
	return Result{Signature: sig}, nil
}

// Extractor extracts requested signatures using an oracle. It holds no
// mutable state.
type Extractor struct {
	oracle symbols.Oracle
}

// New returns an extractor backed by oracle.
func New(oracle symbols.Oracle) *Extractor {
	return &Extractor{oracle: oracle}
}

// Extract builds the requested signature of site classified as p.
func (x *Extractor) Extract(site *symbols.CallSite, p pattern.Pattern) (Result, error) {
	switch p.Kind {
	case pattern.DirectConstruction:
		return x.directConstruction(site)
	case pattern.NamedMemberInvocation:
		return x.namedInvocation(site, p)
	case pattern.FactoryCreateWithType:
		return x.factoryWithType(site, p)
	case pattern.FactoryCreateWithGenericType, pattern.ManagedObjectConstructWithGenericType:
		return x.factoryWithGeneric(site, p)
	case pattern.MockConstruction:
		return x.mockConstruction(site)
	case pattern.MockProtectedSetup:
		return x.mockProtectedSetup(site)
	default:
		return Result{}, fmt.Errorf("extract: call site %s is not an indirection", site.Callee)
	}
}

// Activator.CreateInstance(typeof(T), args...)
func (x *Extractor) directConstruction(site *symbols.CallSite) (Result, error) {
	if len(site.Args) == 0 {
		return Result{}, shapef(pattern.DirectConstruction, "missing type argument")
	}
	target, reason := x.typeLiteral(site.Args[0])
	if reason != "" {
		return unanalyzable("%s", reason)
	}
	args, err := x.argTypes(site.Args[1:])
	if err != nil {
		return Result{}, err
	}
	return found(analysis.NewConstructorSignature(target, args))
}

// PrivateInvoke.Invoke*Method(typeof(T) or instance, "Name", args...)
func (x *Extractor) namedInvocation(site *symbols.CallSite, p pattern.Pattern) (Result, error) {
	if len(site.Args) < 2 {
		return Result{}, shapef(p.Kind, "expected a target and a member name, got %d arguments", len(site.Args))
	}

	var target *symbols.Type
	switch first := site.Args[0]; {
	case first.Kind == symbols.ExprTypeOf:
		var reason string
		if target, reason = x.typeLiteral(first); reason != "" {
			return unanalyzable("%s", reason)
		}
	case p.Static:
		return unanalyzable("static target %s is not a typeof expression", first.Text)
	default:
		t, ok := x.oracle.ExprType(first)
		if !ok || !concrete(t) {
			return unanalyzable("static type of instance %s is not known", first.Text)
		}
		target = t
	}

	name, ok := literalString(site.Args[1])
	if !ok {
		return unanalyzable("member name %s is not a string literal", site.Args[1].Text)
	}

	args, err := x.argTypes(site.Args[2:])
	if err != nil {
		return Result{}, err
	}
	return found(analysis.NewMethodSignature(target, name, args))
}

// ObjectFactory.Create(typeof(T)[, ParamList]) and
// LifetimeService.NewObject(tx, typeof(T)[, ParamList])
func (x *Extractor) factoryWithType(site *symbols.CallSite, p pattern.Pattern) (Result, error) {
	if len(site.Args) <= p.Leading {
		return Result{}, shapef(p.Kind, "missing type argument")
	}
	rest := site.Args[p.Leading:]
	if len(rest) > 2 {
		return Result{}, shapef(p.Kind, "called with %d arguments after the type, expected at most one parameter list", len(rest)-1)
	}

	target, reason := x.typeLiteral(rest[0])
	if reason != "" {
		return unanalyzable("%s", reason)
	}

	var exprs []*symbols.Expr
	if len(rest) == 2 {
		var err error
		if exprs, err = paramList(p.Kind, rest[1]); err != nil {
			return Result{}, err
		}
	}
	args, err := x.argTypes(exprs)
	if err != nil {
		return Result{}, err
	}
	return found(analysis.NewConstructorSignature(target, args))
}

// ObjectFactory.Create<T>([ParamList]) and DomainObject.NewObject<T>([ParamList])
func (x *Extractor) factoryWithGeneric(site *symbols.CallSite, p pattern.Pattern) (Result, error) {
	target, res, err := x.typeArgument(site, p.Kind)
	if target == nil {
		return res, err
	}
	if len(site.Args) > 1 {
		return Result{}, shapef(p.Kind, "called with %d arguments, expected at most one parameter list", len(site.Args))
	}

	var exprs []*symbols.Expr
	if len(site.Args) == 1 {
		if exprs, err = paramList(p.Kind, site.Args[0]); err != nil {
			return Result{}, err
		}
	}
	args, err := x.argTypes(exprs)
	if err != nil {
		return Result{}, err
	}
	return found(analysis.NewConstructorSignature(target, args))
}

// new Mock<T>([MockBehavior, ]args...)
func (x *Extractor) mockConstruction(site *symbols.CallSite) (Result, error) {
	target, res, err := x.typeArgument(site, pattern.MockConstruction)
	if target == nil {
		return res, err
	}

	exprs := site.Args
	if len(exprs) > 0 {
		if t, ok := x.oracle.ExprType(exprs[0]); ok && t != nil && t.Unbound().QualifiedName() == "Moq.MockBehavior" {
			exprs = exprs[1:]
		}
	}
	if target.Kind == symbols.KindInterface && len(exprs) == 0 {
		return unanalyzable("mock of interface %s has no constructor", target.Display())
	}

	args, err := x.argTypes(exprs)
	if err != nil {
		return Result{}, err
	}
	return found(analysis.NewConstructorSignature(target, args))
}

// mock.Protected().Setup("Name", args...)
func (x *Extractor) mockProtectedSetup(site *symbols.CallSite) (Result, error) {
	if site.Receiver == nil {
		return Result{}, shapef(pattern.MockProtectedSetup, "setup call has no receiver")
	}
	if len(site.Args) == 0 {
		return Result{}, shapef(pattern.MockProtectedSetup, "missing member name")
	}

	recv, ok := x.oracle.ExprType(site.Receiver)
	if !ok || !concrete(recv) {
		return unanalyzable("type of mock %s is not known", site.Receiver.Text)
	}
	if len(recv.TypeArgs) != 1 {
		return Result{}, shapef(pattern.MockProtectedSetup, "receiver %s does not carry exactly one mocked type", recv.Display())
	}
	target := recv.TypeArgs[0]
	if !concrete(target) {
		return unanalyzable("mocked type %s is not known", target.Display())
	}

	name, ok := literalString(site.Args[0])
	if !ok {
		return unanalyzable("member name %s is not a string literal", site.Args[0].Text)
	}

	args, err := x.argTypes(site.Args[1:])
	if err != nil {
		return Result{}, err
	}
	return found(analysis.NewMethodSignature(target, name, args))
}

// typeLiteral resolves the operand of a typeof expression. A non-empty
// reason means the target cannot be determined statically.
func (x *Extractor) typeLiteral(e *symbols.Expr) (*symbols.Type, string) {
	if e.Kind != symbols.ExprTypeOf {
		return nil, fmt.Sprintf("type %s is not a typeof expression", e.Text)
	}
	t, ok := x.oracle.ResolveType(e.Operand)
	if !ok || !concrete(t) {
		return nil, fmt.Sprintf("cannot resolve type %s", e.Operand.Text)
	}
	return t, ""
}

// typeArgument resolves the single type argument of a generic call. A nil
// type means extraction ends with the returned result and error.
func (x *Extractor) typeArgument(site *symbols.CallSite, k pattern.Kind) (*symbols.Type, Result, error) {
	if len(site.TypeArgs) != 1 {
		return nil, Result{}, shapef(k, "expected exactly one type argument, got %d", len(site.TypeArgs))
	}
	t, ok := x.oracle.ResolveType(site.TypeArgs[0])
	if !ok || !concrete(t) {
		res, _ := unanalyzable("cannot resolve type argument %s", site.TypeArgs[0].Text)
		return nil, res, nil
	}
	return t, Result{}, nil
}

// argTypes resolves the static types of argument expressions. A null
// literal yields a nil entry.
func (x *Extractor) argTypes(exprs []*symbols.Expr) ([]*symbols.Type, error) {
	if len(exprs) == 0 {
		return nil, nil
	}
	types := make([]*symbols.Type, len(exprs))
	for i, e := range exprs {
		t, ok := x.oracle.ExprType(e)
		if !ok {
			return nil, fmt.Errorf("argument %d (%s): %w", i, e.Text, symbols.ErrOracle)
		}
		types[i] = t
	}
	return types, nil
}

// paramList unpacks a ParamList.Empty or ParamList.Create(...) argument.
func paramList(k pattern.Kind, e *symbols.Expr) ([]*symbols.Expr, error) {
	switch {
	case e.Member == "Empty" && (e.Kind == symbols.ExprMemberAccess || e.Kind == symbols.ExprInvocation):
		return nil, nil
	case e.Member == "Create" && e.Kind == symbols.ExprInvocation:
		return e.Args, nil
	default:
		return nil, shapef(k, "parameter list %s must be ParamList.Empty or ParamList.Create(...)", e.Text)
	}
}

// literalString returns the value of a string literal expression without
// its quotes.
func literalString(e *symbols.Expr) (string, bool) {
	if e.Kind != symbols.ExprStringLiteral {
		return "", false
	}
	s := strings.TrimPrefix(e.Text, "@")
	s = strings.TrimPrefix(s, `"`)
	s = strings.TrimSuffix(s, `"`)
	return s, true
}

// concrete reports whether t names a real type that can serve as target.
func concrete(t *symbols.Type) bool {
	return t != nil && t.Kind != symbols.KindUnknown && t.Kind != symbols.KindTypeParameter && t.Kind != symbols.KindDynamic
}
