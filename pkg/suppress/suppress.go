// Package suppress implements comment-based suppression of reflectcheck
// findings in C# sources.
package suppress

import (
	"maps"
	"regexp"
	"strings"
)

// Linter is the name suppression directives refer to.
const Linter = "reflectcheck"

// Comment is a source comment with its 1-based starting line.
type Comment struct {
	Line int
	Text string
}

// Checker handles nolint and reflectcheck:ignore comment suppression. A
// directive suppresses findings on its own line and on the line after it.
type Checker struct {
	// suppressions maps file and line to suppression reason
	suppressions map[position]string
}

type position struct {
	file string
	line int
}

// Suppression represents a parsed suppression directive.
type Suppression struct {
	Line   int
	Reason string
	Type   SuppressionType
}

// SuppressionType represents different types of suppression comments.
type SuppressionType int

const (
	// SuppressionNolint represents // nolint:reflectcheck comments.
	SuppressionNolint SuppressionType = iota

	// SuppressionIgnore represents // reflectcheck:ignore comments.
	SuppressionIgnore
)

// Suppression patterns for different comment styles.
var (
	// nolintPattern matches //nolint:reflectcheck comments
	nolintPattern = regexp.MustCompile(`^//\s*nolint:reflectcheck(?:\s+//\s*(.+))?\s*$`)

	// ignorePattern matches //reflectcheck:ignore comments
	ignorePattern = regexp.MustCompile(`^//\s*reflectcheck:ignore(?:\s+(.+))?$`)

	// genericNolintPattern matches //nolint comments without specific linter
	genericNolintPattern = regexp.MustCompile(`^//\s*nolint(?:\s|$)`)

	// nolintWithMultipleRules matches nolint with multiple comma-separated rules
	nolintWithMultipleRules = regexp.MustCompile(`^//\s*nolint:([^/]+)`)
)

// NewChecker creates a new suppression checker.
func NewChecker() *Checker {
	return &Checker{
		suppressions: make(map[position]string),
	}
}

// Load records the suppression directives among the comments of file.
// Block comments are matched as if written with //.
func (sc *Checker) Load(file string, comments []Comment) {
	for _, c := range comments {
		s := ParseComment(c)
		if s == nil {
			continue
		}
		reason := s.Reason
		if reason == "" {
			reason = "suppressed"
		}
		sc.suppressions[position{file, s.Line}] = reason
	}
}

// ParseComment parses a comment to check if it's a suppression directive.
func ParseComment(c Comment) *Suppression {
	text := normalize(c.Text)

	if matches := nolintPattern.FindStringSubmatch(text); matches != nil {
		return &Suppression{
			Line:   c.Line,
			Reason: strings.TrimSpace(matches[1]),
			Type:   SuppressionNolint,
		}
	}

	if matches := ignorePattern.FindStringSubmatch(text); matches != nil {
		return &Suppression{
			Line:   c.Line,
			Reason: strings.TrimSpace(matches[1]),
			Type:   SuppressionIgnore,
		}
	}

	if genericNolintPattern.MatchString(text) {
		return &Suppression{
			Line: c.Line,
			Type: SuppressionNolint,
		}
	}

	if matches := nolintWithMultipleRules.FindStringSubmatch(text); len(matches) > 1 {
		for rule := range strings.SplitSeq(matches[1], ",") {
			if strings.TrimSpace(rule) != Linter {
				continue
			}
			// Extract reason if present.
			reason := ""
			if idx := strings.Index(text[2:], "//"); idx >= 0 {
				reason = strings.TrimSpace(text[2+idx+2:])
			}
			return &Suppression{
				Line:   c.Line,
				Reason: reason,
				Type:   SuppressionNolint,
			}
		}
	}

	return nil
}

// normalize rewrites a /* */ comment into // form and trims trailing space.
func normalize(text string) string {
	text = strings.TrimSpace(text)
	if rest, ok := strings.CutPrefix(text, "/*"); ok {
		rest = strings.TrimSuffix(rest, "*/")
		text = "//" + strings.TrimSpace(rest)
	}
	return text
}

// IsSuppressed reports whether a finding starting at line of file is
// suppressed, and why.
func (sc *Checker) IsSuppressed(file string, line int) (bool, string) {
	if reason, exists := sc.suppressions[position{file, line}]; exists {
		return true, reason
	}
	if reason, exists := sc.suppressions[position{file, line - 1}]; exists {
		return true, reason
	}
	return false, ""
}

// Len returns the number of loaded directives.
func (sc *Checker) Len() int {
	return len(sc.suppressions)
}

// Clear clears all suppressions.
func (sc *Checker) Clear() {
	sc.suppressions = make(map[position]string)
}

func (sc *Checker) getAllSuppressions() map[position]string {
	result := make(map[position]string)
	maps.Copy(result, sc.suppressions)
	return result
}
