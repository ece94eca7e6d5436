package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/715d/reflectcheck/internal/symbols"
)

func TestNewMethodSignature(t *testing.T) {
	def := genericDef("ConsoleApp1", "Test", "T", "T2")
	bound := symbols.Construct(def, []*symbols.Type{symbols.NewTypeParamType(def.TypeParams[0]), stringType})

	sig := NewMethodSignature(bound, "TestMethod", []*symbols.Type{intType, nil})

	require.Equal(t, "ConsoleApp1.Test<T, T2>.TestMethod", sig.Name)
	require.Same(t, def, sig.Target)
	require.Equal(t, "TestMethod", sig.Member())
	require.False(t, sig.Constructor)

	_, ok := sig.Generics.Lookup("T")
	require.False(t, ok, "type parameter arguments are not concrete bindings")
	got, ok := sig.Generics.Lookup("T2")
	require.True(t, ok)
	require.Same(t, stringType, got)

	require.Equal(t, "ConsoleApp1.Test<T, T2>.TestMethod(int, null)", sig.String())
}

func TestNewConstructorSignature(t *testing.T) {
	test := &symbols.Type{Kind: symbols.KindClass, Namespace: "ConsoleApp1", Name: "Test"}
	sig := NewConstructorSignature(test, nil)

	require.Equal(t, "ConsoleApp1.Test.Test", sig.Name)
	require.True(t, sig.Constructor)
	require.Zero(t, sig.Generics.Len())
	require.Equal(t, "ConsoleApp1.Test.Test()", sig.String())
}

func TestRequestedSignatureEqual(t *testing.T) {
	test := &symbols.Type{Kind: symbols.KindClass, Namespace: "ConsoleApp1", Name: "Test"}
	other := &symbols.Type{Kind: symbols.KindClass, Namespace: "ConsoleApp1", Name: "Test"}

	a := NewMethodSignature(test, "M", []*symbols.Type{intType, nil})

	assert.True(t, a.Equal(NewMethodSignature(test, "M", []*symbols.Type{intType, nil})))
	assert.False(t, a.Equal(NewMethodSignature(test, "M", []*symbols.Type{intType, stringType})), "null differs from string")
	assert.False(t, a.Equal(NewMethodSignature(test, "M", []*symbols.Type{intType})), "arity differs")
	assert.False(t, a.Equal(NewMethodSignature(test, "N", []*symbols.Type{intType, nil})), "name differs")
	assert.False(t, a.Equal(NewMethodSignature(other, "M", []*symbols.Type{intType, nil})), "target identity differs")
	assert.False(t, a.Equal(nil))
}

func TestMemberCandidate(t *testing.T) {
	def := genericDef("N", "Box", "T")
	method := &symbols.TypeParam{Name: "U", Index: 0, Method: true, Owner: def}

	ctor := NewMemberCandidate(&symbols.Signature{
		Name:        "Box",
		Constructor: true,
		Container:   def,
		Params:      []*symbols.Type{symbols.NewTypeParamType(def.TypeParams[0])},
	})
	require.Equal(t, "N.Box<T>.Box", ctor.Name)
	require.True(t, ctor.Constructor)
	require.False(t, ctor.IsGeneric())
	require.Equal(t, "N.Box<T>.Box(T)", ctor.String())

	put := NewMemberCandidate(&symbols.Signature{
		Name:       "Put",
		Container:  def,
		Params:     []*symbols.Type{symbols.NewTypeParamType(method), intType},
		TypeParams: []*symbols.TypeParam{method},
	})
	require.Equal(t, "N.Box<T>.Put", put.Name)
	require.True(t, put.IsGeneric())
	require.True(t, put.OwnsParam(method))
	require.False(t, put.OwnsParam(def.TypeParams[0]))
	require.True(t, put.ContainerParam(def.TypeParams[0]))
	require.False(t, put.ContainerParam(method))
}
