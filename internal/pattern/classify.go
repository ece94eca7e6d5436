package pattern

import (
	"maps"
	"slices"

	"github.com/715d/reflectcheck/internal/symbols"
)

// GenericSuffix marks callee keys of calls that supply type arguments.
const GenericSuffix = "<>"

const privateInvoke = "Remotion.Development.UnitTesting.PrivateInvoke."

var builtin = map[string]Pattern{
	"System.Activator.CreateInstance": {Kind: DirectConstruction},

	privateInvoke + "InvokePublicMethod":          {Kind: NamedMemberInvocation},
	privateInvoke + "InvokeNonPublicMethod":       {Kind: NamedMemberInvocation, NonPublic: true},
	privateInvoke + "InvokePublicStaticMethod":    {Kind: NamedMemberInvocation, Static: true},
	privateInvoke + "InvokeNonPublicStaticMethod": {Kind: NamedMemberInvocation, Static: true, NonPublic: true},

	"Remotion.Mixins.ObjectFactory.Create":                                       {Kind: FactoryCreateWithType},
	"Remotion.Mixins.ObjectFactory.Create<>":                                     {Kind: FactoryCreateWithGenericType},
	"Remotion.Data.DomainObjects.DomainImplementation.LifetimeService.NewObject": {Kind: FactoryCreateWithType, Leading: 1},
	"Remotion.Data.DomainObjects.DomainObject.NewObject<>":                       {Kind: ManagedObjectConstructWithGenericType},

	"Moq.Mock.Mock<>":                      {Kind: MockConstruction},
	"Moq.Protected.IProtectedMock.Setup":   {Kind: MockProtectedSetup},
	"Moq.Protected.IProtectedMock.Setup<>": {Kind: MockProtectedSetup},
}

// Classifier maps callee keys to patterns by exact lookup. A Classifier is
// immutable and safe for concurrent use.
type Classifier struct {
	table map[string]Pattern
}

// NewClassifier returns a classifier with the built-in table.
func NewClassifier() *Classifier {
	return &Classifier{table: builtin}
}

// With returns a classifier extended with extra entries. Extra entries
// override built-in ones with the same key.
func (c *Classifier) With(extra map[string]Pattern) *Classifier {
	if len(extra) == 0 {
		return c
	}
	table := make(map[string]Pattern, len(c.table)+len(extra))
	maps.Copy(table, c.table)
	maps.Copy(table, extra)
	return &Classifier{table: table}
}

// Lookup classifies a callee by its fully-qualified name.
func (c *Classifier) Lookup(callee string, generic bool) Pattern {
	key := callee
	if generic {
		key += GenericSuffix
	}
	if p, ok := c.table[key]; ok {
		return p
	}
	return None
}

// Classify classifies a call site.
func (c *Classifier) Classify(site *symbols.CallSite) Pattern {
	return c.Lookup(site.Callee, site.Generic)
}

// Keys returns the known callee keys in sorted order.
func (c *Classifier) Keys() []string {
	return slices.Sorted(maps.Keys(c.table))
}
