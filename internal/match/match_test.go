package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/715d/reflectcheck/internal/analysis"
	"github.com/715d/reflectcheck/internal/symbols"
	"github.com/715d/reflectcheck/internal/symbols/symbolstest"
)

func args(types ...*symbols.Type) []*symbols.Type { return types }

func TestConstructorScenarios(t *testing.T) {
	o := symbolstest.New()
	test := o.Class("ConsoleApp1", "Test")
	o.Ctor(test)
	m := New(o)

	v, err := m.Match(analysis.NewConstructorSignature(test, nil))
	require.NoError(t, err)
	require.Equal(t, Found, v, "parameterless constructor")

	v, err = m.Match(analysis.NewConstructorSignature(test, args(o.String)))
	require.NoError(t, err)
	require.Equal(t, NotFound, v, "extra string argument")
}

func TestMethodScenarios(t *testing.T) {
	o := symbolstest.New()
	test := o.Class("ConsoleApp1", "Test")
	o.Method(test, "M", o.Int)
	m := New(o)

	tests := []struct {
		name string
		sig  *analysis.RequestedSignature
		want Verdict
	}{
		{name: "exact", sig: analysis.NewMethodSignature(test, "M", args(o.Int)), want: Found},
		{name: "extra argument", sig: analysis.NewMethodSignature(test, "M", args(o.Int, o.String)), want: NotFound},
		{name: "missing argument", sig: analysis.NewMethodSignature(test, "M", nil), want: NotFound},
		{name: "wrong type", sig: analysis.NewMethodSignature(test, "M", args(o.String)), want: NotFound},
		{name: "null for value type", sig: analysis.NewMethodSignature(test, "M", args(nil)), want: NotFound},
		{name: "unknown name", sig: analysis.NewMethodSignature(test, "N", args(o.Int)), want: NotFound},
		{name: "constructor is not a method", sig: analysis.NewMethodSignature(test, "Test", nil), want: NotFound},
		{name: "unknown argument type", sig: analysis.NewMethodSignature(test, "M", args(symbols.Unknown)), want: Found},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := m.Match(tt.sig)
			require.NoError(t, err)
			require.Equal(t, tt.want, v)
		})
	}
}

func TestNullArguments(t *testing.T) {
	o := symbolstest.New()
	test := o.Class("ConsoleApp1", "Test")
	o.Method(test, "Ref", o.String)
	o.Method(test, "Val", o.Int)
	o.Method(test, "Opt", symbols.NullableOf(o.Int))
	m := New(o)

	v, err := m.Match(analysis.NewMethodSignature(test, "Ref", args(nil)))
	require.NoError(t, err)
	assert.Equal(t, Found, v)

	v, err = m.Match(analysis.NewMethodSignature(test, "Val", args(nil)))
	require.NoError(t, err)
	assert.Equal(t, NotFound, v)

	v, err = m.Match(analysis.NewMethodSignature(test, "Opt", args(nil)))
	require.NoError(t, err)
	assert.Equal(t, NotFound, v, "nullable value types are value types")
}

func TestConversions(t *testing.T) {
	o := symbolstest.New()
	base := o.Class("ConsoleApp1", "Test2")
	derived := o.Class("ConsoleApp1", "DerivedTest")
	o.Extend(derived, base)
	test := o.Class("ConsoleApp1", "Test")
	o.Method(test, "TakesBase", base)
	o.Method(test, "TakesLong", o.Long)
	o.Method(test, "TakesObject", o.Object)
	m := New(o)

	for _, tc := range []struct {
		method string
		arg    *symbols.Type
		want   Verdict
	}{
		{"TakesBase", derived, Found},
		{"TakesBase", o.String, NotFound},
		{"TakesLong", o.Int, Found},
		{"TakesObject", o.Int, Found},
		{"TakesObject", derived, Found},
	} {
		v, err := m.Match(analysis.NewMethodSignature(test, tc.method, args(tc.arg)))
		require.NoError(t, err)
		assert.Equal(t, tc.want, v, "%s(%s)", tc.method, tc.arg.Display())
	}
}

func TestConstrainedGenericParameter(t *testing.T) {
	o := symbolstest.New()
	base := o.Class("ConsoleApp1", "Test2")
	derived := o.Class("ConsoleApp1", "DerivedTest")
	second := o.Class("ConsoleApp1", "SecondDerivedTest")
	o.Extend(derived, base)
	o.Extend(second, derived)

	test := o.Class("ConsoleApp1", "Test", "T", "T2")
	o.Constrain(test.TypeParams[0], derived)
	o.Ctor(test, o.String, o.Int)
	o.Method(test, "TestMethod", symbolstest.Param(test, 0))
	m := New(o)

	// new Test<T, T2>(...) inside the class binds nothing concrete.
	open := symbols.Construct(test, []*symbols.Type{symbolstest.Param(test, 0), symbolstest.Param(test, 1)})

	tests := []struct {
		name string
		arg  *symbols.Type
		want Verdict
	}{
		{name: "constraint type", arg: derived, want: Found},
		{name: "subtype of constraint", arg: second, want: Found},
		{name: "unrelated type", arg: o.String, want: NotFound},
		{name: "base of constraint", arg: base, want: NotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := m.Match(analysis.NewMethodSignature(open, "TestMethod", args(tt.arg)))
			require.NoError(t, err)
			require.Equal(t, tt.want, v)
		})
	}
}

func TestBoundGenericParameter(t *testing.T) {
	o := symbolstest.New()
	test := o.Class("ConsoleApp1", "Test", "T")
	o.Ctor(test, o.String, o.Int)
	o.Method(test, "TestMethod", symbolstest.Param(test, 0))
	m := New(o)

	bound := symbols.Construct(test, []*symbols.Type{o.String})

	v, err := m.Match(analysis.NewMethodSignature(bound, "TestMethod", args(o.String)))
	require.NoError(t, err)
	require.Equal(t, Found, v)

	v, err = m.Match(analysis.NewMethodSignature(bound, "TestMethod", args(o.Int)))
	require.NoError(t, err)
	require.Equal(t, NotFound, v, "binding takes precedence over the absent constraint")

	v, err = m.Match(analysis.NewMethodSignature(test, "TestMethod", args(o.Int)))
	require.NoError(t, err)
	require.Equal(t, Found, v, "unconstrained parameters accept anything")
}

func TestMockConstructionScenario(t *testing.T) {
	o := symbolstest.New()
	test := o.Class("ConsoleApp1", "Test")
	o.Ctor(test, o.String, o.Int)
	m := New(o)

	v, err := m.Match(analysis.NewConstructorSignature(test, args(o.String, o.Int)))
	require.NoError(t, err)
	require.Equal(t, Found, v)

	v, err = m.Match(analysis.NewConstructorSignature(test, args(o.String, o.Int, o.Int)))
	require.NoError(t, err)
	require.Equal(t, NotFound, v)
}

func TestMethodTypeParameters(t *testing.T) {
	o := symbolstest.New()
	test := o.Class("ConsoleApp1", "Test")
	shape := o.Class("ConsoleApp1", "Shape")
	circle := o.Class("ConsoleApp1", "Circle")
	o.Extend(circle, shape)
	o.GenericMethod(test, "Put", []string{"U"}, func(p []*symbols.Type) []*symbols.Type {
		return []*symbols.Type{p[0], o.Int}
	})
	draw := o.GenericMethod(test, "Draw", []string{"S"}, func(p []*symbols.Type) []*symbols.Type {
		return []*symbols.Type{p[0]}
	})
	o.Constrain(draw.TypeParams[0], shape)
	m := New(o)

	tests := []struct {
		name string
		sig  *analysis.RequestedSignature
		want Verdict
	}{
		{"unconstrained accepts anything", analysis.NewMethodSignature(test, "Put", args(o.String, o.Int)), Found},
		{"non-generic positions are still checked", analysis.NewMethodSignature(test, "Put", args(o.String, o.String)), NotFound},
		{"constraint satisfied by derived type", analysis.NewMethodSignature(test, "Draw", args(circle)), Found},
		{"constraint satisfied by itself", analysis.NewMethodSignature(test, "Draw", args(shape)), Found},
		{"constraint violated", analysis.NewMethodSignature(test, "Draw", args(o.String)), NotFound},
		{"null for class constraint", analysis.NewMethodSignature(test, "Draw", args(nil)), Found},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := m.Match(tt.sig)
			require.NoError(t, err)
			assert.Equal(t, tt.want, v)
		})
	}
}

func TestNestedGenericFormals(t *testing.T) {
	o := symbolstest.New()
	list := o.Class("System.Collections.Generic", "List", "E")
	test := o.Class("ConsoleApp1", "Test", "T")
	o.Method(test, "AddAll", symbols.Construct(list, []*symbols.Type{symbolstest.Param(test, 0)}))
	m := New(o)

	bound := symbols.Construct(test, []*symbols.Type{o.Int})
	listOfInt := symbols.Construct(list, []*symbols.Type{o.Int})
	listOfString := symbols.Construct(list, []*symbols.Type{o.String})

	v, err := m.Match(analysis.NewMethodSignature(bound, "AddAll", args(listOfInt)))
	require.NoError(t, err)
	require.Equal(t, Found, v)

	v, err = m.Match(analysis.NewMethodSignature(bound, "AddAll", args(listOfString)))
	require.NoError(t, err)
	require.Equal(t, NotFound, v)

	v, err = m.Match(analysis.NewMethodSignature(test, "AddAll", args(listOfString)))
	require.NoError(t, err)
	require.Equal(t, Found, v, "unbound parameters inside a formal are satisfied")
}

func TestFirstMatchWins(t *testing.T) {
	o := symbolstest.New()
	test := o.Class("ConsoleApp1", "Test")
	o.Field(test, "M")
	first := o.Method(test, "M", o.Object)
	o.Method(test, "M", o.String)
	m := New(o)

	c, v, err := m.Find(analysis.NewMethodSignature(test, "M", args(o.String)))
	require.NoError(t, err)
	require.Equal(t, Found, v)
	require.Equal(t, first.Params, c.Params)
}

func TestNoSource(t *testing.T) {
	o := symbolstest.New()
	stack := o.Extern("System.Collections", "Stack")
	m := New(o)

	v, err := m.Match(analysis.NewConstructorSignature(stack, args(o.String)))
	require.NoError(t, err)
	require.Equal(t, NoSource, v)
}

func TestMissingDeclaredSignatureIsOracleError(t *testing.T) {
	o := &brokenOracle{Oracle: symbolstest.New()}
	test := o.Class("ConsoleApp1", "Test")
	o.Ctor(test)

	_, err := New(o).Match(analysis.NewConstructorSignature(test, nil))
	require.ErrorIs(t, err, symbols.ErrOracle)
}

type brokenOracle struct {
	*symbolstest.Oracle
}

func (*brokenOracle) DeclaredSignature(symbols.MemberDecl) (*symbols.Signature, bool) {
	return nil, false
}

func TestMatchIsIdempotent(t *testing.T) {
	o := symbolstest.New()
	test := o.Class("ConsoleApp1", "Test", "T")
	o.Constrain(test.TypeParams[0], o.String)
	o.Method(test, "M", symbolstest.Param(test, 0), o.Int)
	m := New(o)

	sigs := []*analysis.RequestedSignature{
		analysis.NewMethodSignature(test, "M", args(o.String, o.Int)),
		analysis.NewMethodSignature(test, "M", args(o.Int, o.Int)),
		analysis.NewMethodSignature(test, "M", args(nil, o.Int)),
	}
	for _, sig := range sigs {
		first, err := m.Match(sig)
		require.NoError(t, err)
		for range 5 {
			again, err := m.Match(sig)
			require.NoError(t, err)
			require.Equal(t, first, again, sig.String())
		}
	}
}

func TestCandidates(t *testing.T) {
	o := symbolstest.New()
	test := o.Class("ConsoleApp1", "Test")
	o.Ctor(test)
	o.Field(test, "Count")
	o.Method(test, "Run")
	m := New(o)

	cs, ok, err := m.Candidates(test)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, cs, 2)
	require.Equal(t, "ConsoleApp1.Test.Test", cs[0].Name)
	require.Equal(t, "ConsoleApp1.Test.Run", cs[1].Name)
}

func TestVerdictString(t *testing.T) {
	require.Equal(t, "found", Found.String())
	require.Equal(t, "no-source", NoSource.String())
	require.Equal(t, "match.Verdict(9)", Verdict(9).String())
}
