package verify

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/715d/reflectcheck/internal/pattern"
	"github.com/715d/reflectcheck/internal/symbols"
	"github.com/715d/reflectcheck/internal/symbols/symbolstest"
)

const (
	activator     = "System.Activator.CreateInstance"
	invokePublic  = "Remotion.Development.UnitTesting.PrivateInvoke.InvokePublicMethod"
	objectFactory = "Remotion.Mixins.ObjectFactory.Create"
)

func newOracle() (*symbolstest.Oracle, *symbols.Type) {
	o := symbolstest.New()
	test := o.Class("ConsoleApp1", "Test")
	o.Ctor(test)
	o.Method(test, "M", o.Int)
	o.Method(test, "Run")
	return o, test
}

func TestCheck(t *testing.T) {
	o, test := newOracle()
	c := NewChecker(pattern.NewClassifier())

	tests := []struct {
		name string
		site *symbols.CallSite
		want Verdict
	}{
		{
			name: "ordinary call",
			site: &symbols.CallSite{Callee: "System.Console.WriteLine", Args: []*symbols.Expr{o.StringLit("x")}},
			want: NotApplicable,
		},
		{
			name: "construction matches",
			site: &symbols.CallSite{Callee: activator, Args: []*symbols.Expr{o.TypeOf(test)}},
			want: Match,
		},
		{
			name: "construction with extra argument",
			site: &symbols.CallSite{Callee: activator, Args: []*symbols.Expr{o.TypeOf(test), o.StringLit("a")}},
			want: NoMatch,
		},
		{
			name: "invocation matches",
			site: &symbols.CallSite{Callee: invokePublic, Args: []*symbols.Expr{symbolstest.Value(test), o.StringLit("M"), o.IntLit(1)}},
			want: Match,
		},
		{
			name: "invocation with extra argument",
			site: &symbols.CallSite{Callee: invokePublic, Args: []*symbols.Expr{symbolstest.Value(test), o.StringLit("M"), o.IntLit(1), o.StringLit("a")}},
			want: NoMatch,
		},
		{
			name: "member name from variable never reports",
			site: &symbols.CallSite{Callee: invokePublic, Args: []*symbols.Expr{symbolstest.Value(test), symbolstest.Value(o.String), o.StringLit("a")}},
			want: Unanalyzable,
		},
		{
			name: "target without source",
			site: &symbols.CallSite{Callee: activator, Args: []*symbols.Expr{o.TypeOf(o.Extern("System.Collections", "Stack")), o.IntLit(1)}},
			want: Unanalyzable,
		},
		{
			name: "malformed parameter list",
			site: &symbols.CallSite{Callee: objectFactory, Args: []*symbols.Expr{o.TypeOf(test), symbolstest.Call("ParamList", "Of")}},
			want: InternalError,
		},
		{
			name: "unresolvable argument",
			site: &symbols.CallSite{Callee: activator, Args: []*symbols.Expr{o.TypeOf(test), symbolstest.Unresolved("x")}},
			want: InternalError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := c.Check(tt.site, o)
			require.Equal(t, tt.want, out.Verdict, "reason=%q err=%v", out.Reason, out.Err)
			require.Equal(t, tt.want == NoMatch || tt.want == InternalError, out.Reported())
		})
	}
}

func TestCheckNoMatchCarriesTarget(t *testing.T) {
	o, test := newOracle()
	c := NewChecker(pattern.NewClassifier())

	out := c.Check(&symbols.CallSite{Callee: invokePublic, Args: []*symbols.Expr{o.TypeOf(test), o.StringLit("Rn")}}, o)
	require.Equal(t, NoMatch, out.Verdict)
	require.Same(t, test, out.Target())
	require.Equal(t, []string{"Test", "M", "Run"}, out.Members)
}

func TestCheckErrors(t *testing.T) {
	o, test := newOracle()
	c := NewChecker(pattern.NewClassifier())

	out := c.Check(&symbols.CallSite{Callee: objectFactory, Args: []*symbols.Expr{o.TypeOf(test), symbolstest.Call("ParamList", "Of")}}, o)
	require.Equal(t, InternalError, out.Verdict)
	assert.True(t, IsShapeError(out.Err))

	out = c.Check(&symbols.CallSite{Callee: activator, Args: []*symbols.Expr{o.TypeOf(test), symbolstest.Unresolved("x")}}, o)
	require.Equal(t, InternalError, out.Verdict)
	assert.ErrorIs(t, out.Err, ErrOracle)
	assert.False(t, IsShapeError(out.Err))
}

type panickyOracle struct {
	*symbolstest.Oracle
}

func (*panickyOracle) Members(*symbols.Type) ([]symbols.MemberDecl, bool) {
	panic("index corrupted")
}

func TestCheckRecoversPanics(t *testing.T) {
	o, test := newOracle()
	bad := &panickyOracle{Oracle: o}
	c := NewChecker(pattern.NewClassifier())

	out := c.Check(&symbols.CallSite{Callee: activator, Args: []*symbols.Expr{o.TypeOf(test)}}, bad)
	require.Equal(t, InternalError, out.Verdict)
	var perr *PanicError
	require.ErrorAs(t, out.Err, &perr)
	require.Equal(t, "index corrupted", perr.Value)
	require.NotEmpty(t, perr.Stack)
	require.Equal(t, pattern.DirectConstruction, out.Pattern.Kind)

	// A failure at one site does not affect the next.
	out = c.Check(&symbols.CallSite{Callee: activator, Args: []*symbols.Expr{o.TypeOf(test)}}, o)
	require.Equal(t, Match, out.Verdict)
}

func TestCheckConcurrent(t *testing.T) {
	o, test := newOracle()
	c := NewChecker(pattern.NewClassifier())
	sites := []*symbols.CallSite{
		{Callee: activator, Args: []*symbols.Expr{o.TypeOf(test)}},
		{Callee: activator, Args: []*symbols.Expr{o.TypeOf(test), o.StringLit("a")}},
		{Callee: invokePublic, Args: []*symbols.Expr{symbolstest.Value(test), o.StringLit("M"), o.IntLit(1)}},
	}
	want := []Verdict{Match, NoMatch, Match}

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i, s := range sites {
				assert.Equal(t, want[i], c.Check(s, o).Verdict)
			}
		}()
	}
	wg.Wait()
}

func TestVerdictString(t *testing.T) {
	require.Equal(t, "no-match", NoMatch.String())
	require.Equal(t, "verify.Verdict(7)", Verdict(7).String())
}
