package analysis

import (
	"strings"

	"github.com/715d/reflectcheck/internal/symbols"
)

// QualifiedMemberName returns the comparison name of member declared on
// container: the qualified definition name of container followed by the
// member name, e.g. "ConsoleApp1.Test<T, T2>.TestMethod".
func QualifiedMemberName(container *symbols.Type, member string) string {
	if container == nil {
		return member
	}
	qualified := container.Unbound().QualifiedName()

	var builder strings.Builder
	builder.Grow(len(qualified) + 1 + len(member))
	builder.WriteString(qualified)
	builder.WriteByte('.')
	builder.WriteString(member)
	return builder.String()
}

// ConstructorName returns the comparison name of a constructor of container.
// Constructors are named after their type rather than ".ctor", so that
// constructors and methods share one naming rule.
func ConstructorName(container *symbols.Type) string {
	if container == nil {
		return ""
	}
	return QualifiedMemberName(container, container.Unbound().Name)
}

// SimpleName returns the last dotted segment of a qualified member name,
// ignoring dots inside type argument lists.
func SimpleName(qualified string) string {
	depth := 0
	for i := len(qualified) - 1; i >= 0; i-- {
		switch qualified[i] {
		case '>':
			depth++
		case '<':
			depth--
		case '.':
			if depth == 0 {
				return qualified[i+1:]
			}
		}
	}
	return qualified
}
