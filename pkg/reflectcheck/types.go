// Package reflectcheck verifies indirect calls in C# sources: reflection,
// factory construction and mock setup calls that name a member by string or
// pass constructor arguments separately.
package reflectcheck

import (
	"fmt"
	"time"

	"github.com/715d/reflectcheck/internal/csharp"
)

// Source is a C# file to analyze.
type Source = csharp.Source

// Rule identifies a kind of finding.
type Rule struct {
	ID     string
	Name   string
	format string
}

var (
	// RuleWrongParameters reports indirect calls no declared member accepts.
	RuleWrongParameters = Rule{ID: "RC0001", Name: "wrong-parameters", format: "no member of '%s' matches the supplied arguments"}

	// RuleInternalError reports call sites the verifier failed on.
	RuleInternalError = Rule{ID: "RC0900", Name: "internal-error", format: "internal error while verifying call: %s"}
)

// Message formats the rule message for arg.
func (r Rule) Message(arg string) string {
	return fmt.Sprintf(r.format, arg)
}

// Position is a 1-based location in a source file.
type Position struct {
	File   string `json:"file"`
	Line   int    `json:"line"`
	Column int    `json:"column"`
}

func (p Position) String() string {
	return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Column)
}

// Finding is a reported call site.
type Finding struct {
	Rule    string `json:"rule"`
	Name    string `json:"name"`
	Message string `json:"message"`

	// Pattern is the indirect-call idiom the call site was classified as.
	Pattern string `json:"pattern"`
	Callee  string `json:"callee"`

	// Signature is the requested member, empty when extraction failed.
	Signature string `json:"signature,omitempty"`

	// Suggestion is a declared member with a similar name when the
	// requested name does not exist.
	Suggestion string `json:"suggestion,omitempty"`

	Position Position `json:"position"`
	End      Position `json:"end"`

	Suppressed     bool   `json:"suppressed"`
	SuppressReason string `json:"suppress_reason,omitempty"`
}

// Stats summarizes an analysis run.
type Stats struct {
	Files        int           `json:"files"`
	SkippedFiles int           `json:"skipped_files"`
	CallSites    int           `json:"call_sites"`
	Indirections int           `json:"indirections"`
	Unanalyzable int           `json:"unanalyzable"`
	Findings     int           `json:"findings"`
	Suppressed   int           `json:"suppressed"`
	Duration     time.Duration `json:"duration"`
}

// Result is the outcome of an analysis run.
type Result struct {
	Findings []Finding `json:"findings"`
	Stats    Stats     `json:"stats"`
}

// Reported returns the findings that are not suppressed.
func (r *Result) Reported() []Finding {
	var out []Finding
	for _, f := range r.Findings {
		if !f.Suppressed {
			out = append(out, f)
		}
	}
	return out
}
