// Package verify runs the classify, extract and match steps for a single
// call site and isolates failures to that call site.
package verify

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/715d/reflectcheck/internal/analysis"
	"github.com/715d/reflectcheck/internal/extract"
	"github.com/715d/reflectcheck/internal/match"
	"github.com/715d/reflectcheck/internal/pattern"
	"github.com/715d/reflectcheck/internal/symbols"
)

// Verdict is the outcome category of verifying one call site.
type Verdict int

const (
	// NotApplicable means the call is not an indirection.
	NotApplicable Verdict = iota

	// Unanalyzable means the call depends on a runtime value and is outside
	// what can be checked statically.
	Unanalyzable

	// Match means a compatible member exists.
	Match

	// NoMatch means no declared member is compatible with the call.
	NoMatch

	// InternalError means verification failed; Outcome.Err holds the cause.
	InternalError
)

var verdictNames = [...]string{"not-applicable", "unanalyzable", "match", "no-match", "internal-error"}

func (v Verdict) String() string {
	if v >= 0 && int(v) < len(verdictNames) {
		return verdictNames[v]
	}
	return fmt.Sprintf("verify.Verdict(%d)", int(v))
}

// ErrOracle marks oracle results missing where the call shape guarantees
// them.
var ErrOracle = symbols.ErrOracle

// PanicError is a panic recovered while verifying a call site.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Outcome is the result of verifying one call site.
type Outcome struct {
	Verdict Verdict
	Pattern pattern.Pattern

	// Signature is set once extraction succeeded.
	Signature *analysis.RequestedSignature

	// Members lists the member names declared by the target, set for NoMatch.
	Members []string

	// Reason explains an Unanalyzable verdict.
	Reason string

	// Err is the cause of an InternalError verdict.
	Err error
}

// Target returns the target type of the call, or nil before extraction.
func (o Outcome) Target() *symbols.Type {
	if o.Signature == nil {
		return nil
	}
	return o.Signature.Target
}

// Reported reports whether the outcome produces a finding.
func (o Outcome) Reported() bool {
	return o.Verdict == NoMatch || o.Verdict == InternalError
}

// Checker verifies call sites. It is immutable and safe for concurrent use.
type Checker struct {
	classifier *pattern.Classifier
}

// NewChecker returns a checker using classifier.
func NewChecker(classifier *pattern.Classifier) *Checker {
	return &Checker{classifier: classifier}
}

// Check verifies site using oracle. Check never panics; failures of any kind
// become an InternalError outcome.
func (c *Checker) Check(site *symbols.CallSite, oracle symbols.Oracle) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = Outcome{
				Verdict: InternalError,
				Pattern: out.Pattern,
				Err:     &PanicError{Value: r, Stack: debug.Stack()},
			}
			slog.Debug("verification panicked", "site", site.Span, "panic", r)
		}
	}()

	out.Pattern = c.classifier.Classify(site)
	if !out.Pattern.Applies() {
		return out
	}

	res, err := extract.New(oracle).Extract(site, out.Pattern)
	if err != nil {
		return fail(out, fmt.Errorf("extract %s: %w", site.Callee, err))
	}
	if !res.Analyzable() {
		out.Verdict = Unanalyzable
		out.Reason = res.Unanalyzable
		slog.Debug("call site not analyzable", "site", site.Span, "pattern", out.Pattern, "reason", res.Unanalyzable)
		return out
	}
	out.Signature = res.Signature

	m := match.New(oracle)
	verdict, err := m.Match(res.Signature)
	if err != nil {
		return fail(out, fmt.Errorf("match %s: %w", res.Signature, err))
	}

	switch verdict {
	case match.Found:
		out.Verdict = Match
	case match.NoSource:
		out.Verdict = Unanalyzable
		out.Reason = fmt.Sprintf("no source declaration for %s", res.Signature.Target.QualifiedName())
		slog.Debug("target has no source", "site", site.Span, "target", res.Signature.Target.QualifiedName())
	default:
		out.Verdict = NoMatch
		out.Members = memberNames(m, res.Signature)
	}
	return out
}

func fail(out Outcome, err error) Outcome {
	out.Verdict = InternalError
	out.Err = err
	slog.Debug("verification failed", "pattern", out.Pattern, "error", err)
	return out
}

// memberNames returns the distinct member names declared by the target of
// sig, for suggestions.
func memberNames(m *match.Matcher, sig *analysis.RequestedSignature) []string {
	candidates, _, err := m.Candidates(sig.Target)
	if err != nil {
		return nil
	}
	seen := make(map[string]bool, len(candidates))
	var names []string
	for _, c := range candidates {
		name := analysis.SimpleName(c.Name)
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	return names
}

// IsShapeError reports whether err stems from an unsupported call shape.
func IsShapeError(err error) bool {
	var shape *extract.ShapeError
	return errors.As(err, &shape)
}
