// Package pattern classifies call sites into the indirect-call idioms the
// verifier understands.
package pattern

import (
	"fmt"
	"strings"
)

// Kind is an indirect-call idiom.
type Kind int

const (
	NotAnIndirection Kind = iota
	DirectConstruction
	NamedMemberInvocation
	FactoryCreateWithType
	FactoryCreateWithGenericType
	ManagedObjectConstructWithGenericType
	MockConstruction
	MockProtectedSetup
)

var kindNames = [...]string{
	NotAnIndirection:                      "not-an-indirection",
	DirectConstruction:                    "direct-construction",
	NamedMemberInvocation:                 "named-member-invocation",
	FactoryCreateWithType:                 "factory-create-with-type",
	FactoryCreateWithGenericType:          "factory-create-with-generic-type",
	ManagedObjectConstructWithGenericType: "managed-object-construct-with-generic-type",
	MockConstruction:                      "mock-construction",
	MockProtectedSetup:                    "mock-protected-setup",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("pattern.Kind(%d)", int(k))
}

// ParseKind returns the kind named s.
func ParseKind(s string) (Kind, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	for k, name := range kindNames {
		if name == s {
			return Kind(k), nil
		}
	}
	return NotAnIndirection, fmt.Errorf("unknown call pattern %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	if k < 0 || int(k) >= len(kindNames) {
		return nil, fmt.Errorf("invalid call pattern %d", int(k))
	}
	return []byte(kindNames[k]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Pattern is a classified call site idiom together with its variant data.
type Pattern struct {
	Kind Kind

	// Static marks named invocations of static members. The type must then
	// be given as a type literal.
	Static bool

	// NonPublic marks named invocations that target non-public members.
	NonPublic bool

	// Leading is the number of arguments preceding the type literal, e.g.
	// the transaction argument of LifetimeService.NewObject.
	Leading int
}

// None is the pattern of ordinary calls.
var None = Pattern{Kind: NotAnIndirection}

// Applies reports whether the call site is an indirection.
func (p Pattern) Applies() bool {
	return p.Kind != NotAnIndirection
}

// Constructs reports whether the pattern requests a constructor.
func (p Pattern) Constructs() bool {
	switch p.Kind {
	case DirectConstruction, FactoryCreateWithType, FactoryCreateWithGenericType,
		ManagedObjectConstructWithGenericType, MockConstruction:
		return true
	default:
		return false
	}
}

func (p Pattern) String() string {
	if p.Kind != NamedMemberInvocation && p.Leading == 0 {
		return p.Kind.String()
	}
	var b strings.Builder
	b.WriteString(p.Kind.String())
	if p.Static {
		b.WriteString(" static")
	}
	if p.NonPublic {
		b.WriteString(" non-public")
	}
	if p.Leading > 0 {
		fmt.Fprintf(&b, " leading=%d", p.Leading)
	}
	return b.String()
}
