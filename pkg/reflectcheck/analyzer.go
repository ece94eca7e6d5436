package reflectcheck

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"slices"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/715d/reflectcheck/internal/csharp"
	"github.com/715d/reflectcheck/internal/pattern"
	"github.com/715d/reflectcheck/internal/symbols"
	"github.com/715d/reflectcheck/internal/verify"
	"github.com/715d/reflectcheck/pkg/suppress"
)

// AnalyzerOptions holds configuration options for the analyzer.
type AnalyzerOptions struct {
	SkipGenerated  bool // Skip files with generated code markers.
	InternalErrors bool // Report call sites the verifier failed on.

	// Patterns are additional indirect-call idioms keyed by callee.
	Patterns map[string]PatternConfig
}

// DefaultOptions returns the options the command line starts from.
func DefaultOptions() AnalyzerOptions {
	return AnalyzerOptions{SkipGenerated: true, InternalErrors: true}
}

// Analyzer orchestrates parsing, indexing and call-site verification. An
// Analyzer must not run concurrent Analyze calls.
type Analyzer struct {
	suppressions *suppress.Checker
	checker      *verify.Checker
	opts         AnalyzerOptions
}

// NewAnalyzer creates a new analyzer with the given options.
func NewAnalyzer(opts AnalyzerOptions) (*Analyzer, error) {
	extra, err := compilePatterns(opts.Patterns)
	if err != nil {
		return nil, fmt.Errorf("compile patterns: %w", err)
	}
	return &Analyzer{
		suppressions: suppress.NewChecker(),
		checker:      verify.NewChecker(pattern.NewClassifier().With(extra)),
		opts:         opts,
	}, nil
}

// fileResult holds the findings and counters of one file.
type fileResult struct {
	findings     []Finding
	sites        int
	indirections int
	unanalyzable int
}

// Analyze verifies every indirect call in sources.
func (a *Analyzer) Analyze(ctx context.Context, sources []Source) (*Result, error) {
	if len(sources) == 0 {
		return nil, fmt.Errorf("no sources provided")
	}
	start := time.Now()

	files, err := csharp.Parse(ctx, sources)
	if err != nil {
		return nil, fmt.Errorf("parse sources: %w", err)
	}
	defer func() {
		for _, f := range files {
			f.Close()
		}
	}()

	a.loadSuppressions(files)

	idx, err := csharp.Build(ctx, files)
	if err != nil {
		return nil, fmt.Errorf("index declarations: %w", err)
	}

	// Each worker writes only its own slot.
	results := make([]fileResult, len(files))
	var skipped atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, f := range files {
		if a.opts.SkipGenerated && f.Generated {
			slog.Debug("skipping generated file", "file", f.Path)
			skipped.Add(1)
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = a.analyzeFile(idx.Model(f))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	r := &Result{}
	r.Stats.Files = len(files)
	r.Stats.SkippedFiles = int(skipped.Load())
	for _, fr := range results {
		r.Findings = append(r.Findings, fr.findings...)
		r.Stats.CallSites += fr.sites
		r.Stats.Indirections += fr.indirections
		r.Stats.Unanalyzable += fr.unanalyzable
	}
	a.checkSuppressions(r)
	sortFindings(r.Findings)
	r.Stats.Duration = time.Since(start)

	slog.Debug("analysis completed",
		"files", r.Stats.Files,
		"call_sites", r.Stats.CallSites,
		"indirections", r.Stats.Indirections,
		"findings", r.Stats.Findings,
		"dur", r.Stats.Duration)
	return r, nil
}

func (a *Analyzer) analyzeFile(m *csharp.Model) fileResult {
	var r fileResult
	path := m.File().Path

	sites, err := collectSites(m)
	if err != nil {
		slog.Warn("collecting call sites failed", "file", path, "error", err)
		if a.opts.InternalErrors {
			pos := Position{File: path, Line: 1, Column: 1}
			r.findings = append(r.findings, Finding{
				Rule:     RuleInternalError.ID,
				Name:     RuleInternalError.Name,
				Message:  RuleInternalError.Message(err.Error()),
				Position: pos,
				End:      pos,
			})
		}
		return r
	}

	r.sites = len(sites)
	for _, site := range sites {
		out := a.checker.Check(site, m)
		if out.Pattern.Applies() {
			r.indirections++
		}
		switch out.Verdict {
		case verify.Unanalyzable:
			r.unanalyzable++
		case verify.NoMatch:
			r.findings = append(r.findings, wrongParameters(site, out))
		case verify.InternalError:
			slog.Debug("call site verification failed", "site", site.Span, "error", out.Err)
			if a.opts.InternalErrors {
				r.findings = append(r.findings, internalError(site, out))
			}
		}
	}
	return r
}

// collectSites isolates host failures to the file being analyzed.
func collectSites(m *csharp.Model) (sites []*symbols.CallSite, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &verify.PanicError{Value: r}
		}
	}()
	return m.CallSites(), nil
}

func newFinding(rule Rule, arg string, site *symbols.CallSite, out verify.Outcome) Finding {
	return Finding{
		Rule:     rule.ID,
		Name:     rule.Name,
		Message:  rule.Message(arg),
		Pattern:  out.Pattern.String(),
		Callee:   site.Callee,
		Position: Position{File: site.Span.File, Line: site.Span.Line, Column: site.Span.Column},
		End:      Position{File: site.Span.File, Line: site.Span.EndLine, Column: site.Span.EndColumn},
	}
}

func wrongParameters(site *symbols.CallSite, out verify.Outcome) Finding {
	f := newFinding(RuleWrongParameters, out.Target().Name, site, out)
	f.Signature = out.Signature.String()
	if !out.Signature.Constructor {
		f.Suggestion = suggest(out.Signature.Member(), out.Members)
	}
	return f
}

func internalError(site *symbols.CallSite, out verify.Outcome) Finding {
	f := newFinding(RuleInternalError, out.Err.Error(), site, out)
	if out.Signature != nil {
		f.Signature = out.Signature.String()
	}
	return f
}

// loadSuppressions loads suppression comments from all files.
func (a *Analyzer) loadSuppressions(files []*csharp.File) {
	a.suppressions.Clear()
	for _, f := range files {
		comments := make([]suppress.Comment, len(f.Comments))
		for i, c := range f.Comments {
			comments[i] = suppress.Comment{Line: c.Line, Text: c.Text}
		}
		a.suppressions.Load(f.Path, comments)
	}
}

// checkSuppressions marks suppressed findings and counts the rest.
func (a *Analyzer) checkSuppressions(r *Result) {
	for i := range r.Findings {
		f := &r.Findings[i]
		f.Suppressed, f.SuppressReason = a.suppressions.IsSuppressed(f.Position.File, f.Position.Line)
		if f.Suppressed {
			r.Stats.Suppressed++
		} else {
			r.Stats.Findings++
		}
	}
}

func sortFindings(findings []Finding) {
	slices.SortFunc(findings, func(a, b Finding) int {
		return cmp.Or(
			cmp.Compare(a.Position.File, b.Position.File),
			cmp.Compare(a.Position.Line, b.Position.Line),
			cmp.Compare(a.Position.Column, b.Position.Column),
			cmp.Compare(a.Rule, b.Rule),
		)
	})
}
