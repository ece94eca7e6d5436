package extract

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/715d/reflectcheck/internal/pattern"
	"github.com/715d/reflectcheck/internal/symbols"
	"github.com/715d/reflectcheck/internal/symbols/symbolstest"
)

type fixture struct {
	o     *symbolstest.Oracle
	test  *symbols.Type
	iface *symbols.Type
	box   *symbols.Type
	x     *Extractor
}

func newFixture() *fixture {
	o := symbolstest.New()
	f := &fixture{
		o:     o,
		test:  o.Class("ConsoleApp1", "Test"),
		iface: o.Declare(symbols.KindInterface, "ConsoleApp1", "ITest"),
		box:   o.Class("ConsoleApp1", "Box", "T"),
	}
	f.x = New(o)
	return f
}

func extract(t *testing.T, f *fixture, site *symbols.CallSite, p pattern.Pattern) Result {
	t.Helper()
	res, err := f.x.Extract(site, p)
	require.NoError(t, err)
	return res
}

func TestDirectConstruction(t *testing.T) {
	f := newFixture()
	p := pattern.Pattern{Kind: pattern.DirectConstruction}

	res := extract(t, f, &symbols.CallSite{Args: []*symbols.Expr{f.o.TypeOf(f.test), f.o.StringLit("a"), symbolstest.Null()}}, p)
	require.True(t, res.Analyzable())
	sig := res.Signature
	require.Equal(t, "ConsoleApp1.Test.Test", sig.Name)
	require.True(t, sig.Constructor)
	require.Same(t, f.test, sig.Target)
	require.Equal(t, []*symbols.Type{f.o.String, nil}, sig.Args)

	res = extract(t, f, &symbols.CallSite{Args: []*symbols.Expr{symbolstest.Value(f.o.System)}}, p)
	require.False(t, res.Analyzable())
	require.Contains(t, res.Unanalyzable, "not a typeof expression")

	_, err := f.x.Extract(&symbols.CallSite{}, p)
	var shape *ShapeError
	require.ErrorAs(t, err, &shape)
}

func TestDirectConstructionOfBoundGeneric(t *testing.T) {
	f := newFixture()
	bound := symbols.Construct(f.box, []*symbols.Type{f.o.Int})

	res := extract(t, f, &symbols.CallSite{Args: []*symbols.Expr{f.o.TypeOf(bound)}}, pattern.Pattern{Kind: pattern.DirectConstruction})
	require.True(t, res.Analyzable())
	require.Same(t, f.box, res.Signature.Target)
	got, ok := res.Signature.Generics.Lookup("T")
	require.True(t, ok)
	require.Same(t, f.o.Int, got)
}

func TestTypeOfTypeParameterIsUnanalyzable(t *testing.T) {
	f := newFixture()
	res := extract(t, f, &symbols.CallSite{Args: []*symbols.Expr{f.o.TypeOf(symbolstest.Param(f.box, 0))}}, pattern.Pattern{Kind: pattern.DirectConstruction})
	require.False(t, res.Analyzable())

	res = extract(t, f, &symbols.CallSite{Args: []*symbols.Expr{f.o.TypeOf(nil)}}, pattern.Pattern{Kind: pattern.DirectConstruction})
	require.False(t, res.Analyzable())
}

func TestNamedInvocation(t *testing.T) {
	f := newFixture()

	tests := []struct {
		name         string
		pattern      pattern.Pattern
		args         []*symbols.Expr
		wantName     string
		wantArgs     int
		unanalyzable bool
	}{
		{
			name:     "type literal",
			pattern:  pattern.Pattern{Kind: pattern.NamedMemberInvocation, Static: true},
			args:     []*symbols.Expr{f.o.TypeOf(f.test), f.o.StringLit("M"), f.o.IntLit(1)},
			wantName: "ConsoleApp1.Test.M",
			wantArgs: 1,
		},
		{
			name:     "instance uses static type",
			pattern:  pattern.Pattern{Kind: pattern.NamedMemberInvocation},
			args:     []*symbols.Expr{symbolstest.Value(f.test), f.o.StringLit("M")},
			wantName: "ConsoleApp1.Test.M",
		},
		{
			name:     "verbatim string name",
			pattern:  pattern.Pattern{Kind: pattern.NamedMemberInvocation, NonPublic: true},
			args:     []*symbols.Expr{symbolstest.Value(f.test), {Kind: symbols.ExprStringLiteral, Text: `@"M"`}},
			wantName: "ConsoleApp1.Test.M",
		},
		{
			name:         "name from variable",
			pattern:      pattern.Pattern{Kind: pattern.NamedMemberInvocation},
			args:         []*symbols.Expr{symbolstest.Value(f.test), symbolstest.Value(f.o.String)},
			unanalyzable: true,
		},
		{
			name:         "static call with instance",
			pattern:      pattern.Pattern{Kind: pattern.NamedMemberInvocation, Static: true},
			args:         []*symbols.Expr{symbolstest.Value(f.test), f.o.StringLit("M")},
			unanalyzable: true,
		},
		{
			name:         "instance of unknown type",
			pattern:      pattern.Pattern{Kind: pattern.NamedMemberInvocation},
			args:         []*symbols.Expr{symbolstest.Value(symbols.Unknown), f.o.StringLit("M")},
			unanalyzable: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := extract(t, f, &symbols.CallSite{Args: tt.args}, tt.pattern)
			if tt.unanalyzable {
				require.False(t, res.Analyzable())
				require.NotEmpty(t, res.Unanalyzable)
				return
			}
			require.True(t, res.Analyzable())
			require.Equal(t, tt.wantName, res.Signature.Name)
			require.Len(t, res.Signature.Args, tt.wantArgs)
			require.False(t, res.Signature.Constructor)
		})
	}
}

func TestNamedInvocationTooFewArguments(t *testing.T) {
	f := newFixture()
	_, err := f.x.Extract(&symbols.CallSite{Args: []*symbols.Expr{f.o.TypeOf(f.test)}}, pattern.Pattern{Kind: pattern.NamedMemberInvocation})
	var shape *ShapeError
	require.ErrorAs(t, err, &shape)
	require.Equal(t, pattern.NamedMemberInvocation, shape.Pattern)
}

func TestUnresolvedArgumentIsOracleError(t *testing.T) {
	f := newFixture()
	_, err := f.x.Extract(&symbols.CallSite{Args: []*symbols.Expr{f.o.TypeOf(f.test), symbolstest.Unresolved("x")}}, pattern.Pattern{Kind: pattern.DirectConstruction})
	require.ErrorIs(t, err, symbols.ErrOracle)
}

func TestFactoryWithType(t *testing.T) {
	f := newFixture()
	p := pattern.Pattern{Kind: pattern.FactoryCreateWithType}

	tests := []struct {
		name      string
		pattern   pattern.Pattern
		args      []*symbols.Expr
		wantArgs  []*symbols.Type
		wantShape bool
	}{
		{
			name:    "type only",
			pattern: p,
			args:    []*symbols.Expr{f.o.TypeOf(f.test)},
		},
		{
			name:    "empty list",
			pattern: p,
			args:    []*symbols.Expr{f.o.TypeOf(f.test), symbolstest.Access("ParamList", "Empty")},
		},
		{
			name:    "empty list invoked",
			pattern: p,
			args:    []*symbols.Expr{f.o.TypeOf(f.test), symbolstest.Call("ParamList", "Empty")},
		},
		{
			name:     "created list",
			pattern:  p,
			args:     []*symbols.Expr{f.o.TypeOf(f.test), symbolstest.Call("ParamList", "Create", f.o.StringLit("a"), f.o.IntLit(1))},
			wantArgs: []*symbols.Type{f.o.String, f.o.Int},
		},
		{
			name:     "leading transaction argument",
			pattern:  pattern.Pattern{Kind: pattern.FactoryCreateWithType, Leading: 1},
			args:     []*symbols.Expr{symbolstest.Null(), f.o.TypeOf(f.test), symbolstest.Call("ParamList", "Create", f.o.IntLit(1))},
			wantArgs: []*symbols.Type{f.o.Int},
		},
		{
			name:      "unknown wrapper",
			pattern:   p,
			args:      []*symbols.Expr{f.o.TypeOf(f.test), symbolstest.Call("ParamList", "Of", f.o.IntLit(1))},
			wantShape: true,
		},
		{
			name:      "create without invocation",
			pattern:   p,
			args:      []*symbols.Expr{f.o.TypeOf(f.test), symbolstest.Access("ParamList", "Create")},
			wantShape: true,
		},
		{
			name:      "two wrappers",
			pattern:   p,
			args:      []*symbols.Expr{f.o.TypeOf(f.test), symbolstest.Access("ParamList", "Empty"), symbolstest.Access("ParamList", "Empty")},
			wantShape: true,
		},
		{
			name:      "missing type after leading",
			pattern:   pattern.Pattern{Kind: pattern.FactoryCreateWithType, Leading: 1},
			args:      []*symbols.Expr{symbolstest.Null()},
			wantShape: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := f.x.Extract(&symbols.CallSite{Args: tt.args}, tt.pattern)
			if tt.wantShape {
				var shape *ShapeError
				require.ErrorAs(t, err, &shape)
				return
			}
			require.NoError(t, err)
			require.True(t, res.Analyzable())
			require.Equal(t, "ConsoleApp1.Test.Test", res.Signature.Name)
			require.Equal(t, tt.wantArgs, res.Signature.Args)
		})
	}
}

func TestFactoryWithGeneric(t *testing.T) {
	f := newFixture()

	for _, kind := range []pattern.Kind{pattern.FactoryCreateWithGenericType, pattern.ManagedObjectConstructWithGenericType} {
		t.Run(kind.String(), func(t *testing.T) {
			p := pattern.Pattern{Kind: kind}

			res := extract(t, f, &symbols.CallSite{
				Generic:  true,
				TypeArgs: []symbols.TypeRef{symbolstest.Ref(f.test)},
				Args:     []*symbols.Expr{symbolstest.Call("ParamList", "Create", f.o.StringLit("a"))},
			}, p)
			require.True(t, res.Analyzable())
			require.Equal(t, "ConsoleApp1.Test.Test", res.Signature.Name)
			require.Equal(t, []*symbols.Type{f.o.String}, res.Signature.Args)

			res = extract(t, f, &symbols.CallSite{Generic: true, TypeArgs: []symbols.TypeRef{symbolstest.Ref(f.test)}}, p)
			require.True(t, res.Analyzable())
			require.Empty(t, res.Signature.Args)

			res = extract(t, f, &symbols.CallSite{Generic: true, TypeArgs: []symbols.TypeRef{symbolstest.Ref(symbolstest.Param(f.box, 0))}}, p)
			require.False(t, res.Analyzable())

			var shape *ShapeError
			_, err := f.x.Extract(&symbols.CallSite{
				Generic:  true,
				TypeArgs: []symbols.TypeRef{symbolstest.Ref(f.test)},
				Args:     []*symbols.Expr{symbolstest.Access("ParamList", "Empty"), symbolstest.Access("ParamList", "Empty")},
			}, p)
			require.ErrorAs(t, err, &shape)

			_, err = f.x.Extract(&symbols.CallSite{Generic: true, TypeArgs: []symbols.TypeRef{symbolstest.Ref(f.test), symbolstest.Ref(f.test)}}, p)
			require.ErrorAs(t, err, &shape)
		})
	}
}

func TestMockConstruction(t *testing.T) {
	f := newFixture()
	p := pattern.Pattern{Kind: pattern.MockConstruction}

	res := extract(t, f, &symbols.CallSite{
		Generic:  true,
		TypeArgs: []symbols.TypeRef{symbolstest.Ref(f.test)},
		Args:     []*symbols.Expr{f.o.StringLit("foo"), f.o.IntLit(3)},
	}, p)
	require.True(t, res.Analyzable())
	require.Equal(t, "ConsoleApp1.Test.Test", res.Signature.Name)
	require.Equal(t, []*symbols.Type{f.o.String, f.o.Int}, res.Signature.Args)

	behavior := &symbols.Type{Kind: symbols.KindEnum, Namespace: "Moq", Name: "MockBehavior"}
	res = extract(t, f, &symbols.CallSite{
		Generic:  true,
		TypeArgs: []symbols.TypeRef{symbolstest.Ref(f.test)},
		Args:     []*symbols.Expr{symbolstest.Value(behavior), f.o.IntLit(3)},
	}, p)
	require.True(t, res.Analyzable())
	require.Equal(t, []*symbols.Type{f.o.Int}, res.Signature.Args, "mock behavior is not a constructor argument")

	res = extract(t, f, &symbols.CallSite{Generic: true, TypeArgs: []symbols.TypeRef{symbolstest.Ref(f.iface)}}, p)
	require.False(t, res.Analyzable())
	assert.Contains(t, res.Unanalyzable, "interface")
}

func TestMockProtectedSetup(t *testing.T) {
	f := newFixture()
	p := pattern.Pattern{Kind: pattern.MockProtectedSetup}
	protected := f.o.Extern("Moq.Protected", "IProtectedMock")
	protected.TypeParams = []*symbols.TypeParam{{Name: "TMock", Owner: protected}}
	mock := symbols.Construct(protected, []*symbols.Type{f.test})

	res := extract(t, f, &symbols.CallSite{
		Receiver: symbolstest.Value(mock),
		Args:     []*symbols.Expr{f.o.StringLit("M"), f.o.IntLit(1)},
	}, p)
	require.True(t, res.Analyzable())
	require.Equal(t, "ConsoleApp1.Test.M", res.Signature.Name)
	require.Equal(t, []*symbols.Type{f.o.Int}, res.Signature.Args)

	res = extract(t, f, &symbols.CallSite{
		Receiver: symbolstest.Unresolved("mock"),
		Args:     []*symbols.Expr{f.o.StringLit("M")},
	}, p)
	require.False(t, res.Analyzable())

	res = extract(t, f, &symbols.CallSite{
		Receiver: symbolstest.Value(mock),
		Args:     []*symbols.Expr{symbolstest.Value(f.o.String)},
	}, p)
	require.False(t, res.Analyzable())

	var shape *ShapeError
	_, err := f.x.Extract(&symbols.CallSite{
		Receiver: symbolstest.Value(f.test),
		Args:     []*symbols.Expr{f.o.StringLit("M")},
	}, p)
	require.ErrorAs(t, err, &shape)

	_, err = f.x.Extract(&symbols.CallSite{Args: []*symbols.Expr{f.o.StringLit("M")}}, p)
	require.ErrorAs(t, err, &shape)
}

func TestNotAnIndirection(t *testing.T) {
	f := newFixture()
	_, err := f.x.Extract(&symbols.CallSite{Callee: "System.Console.WriteLine"}, pattern.None)
	require.Error(t, err)
	var shape *ShapeError
	require.False(t, errors.As(err, &shape))
}
