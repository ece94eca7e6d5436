package analysis

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/715d/reflectcheck/internal/symbols"
)

func TestBindGenerics(t *testing.T) {
	def := genericDef("N", "Pair", "A", "B")

	tests := []struct {
		name  string
		typ   *symbols.Type
		names []string
	}{
		{name: "nil", typ: nil},
		{name: "definition", typ: def},
		{
			name:  "fully bound",
			typ:   symbols.Construct(def, []*symbols.Type{intType, stringType}),
			names: []string{"A", "B"},
		},
		{
			name:  "partially open",
			typ:   symbols.Construct(def, []*symbols.Type{symbols.NewTypeParamType(def.TypeParams[0]), stringType}),
			names: []string{"B"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := BindGenerics(tt.typ)
			require.Len(t, g.Names(), len(tt.names))
			if len(tt.names) > 0 {
				require.Equal(t, tt.names, g.Names())
			}
		})
	}
}

func TestGenericsMapIsImmutable(t *testing.T) {
	base := GenericsMap{}.With("T", intType)
	derived := base.With("T", stringType).With("U", intType)

	got, _ := base.Lookup("T")
	require.Same(t, intType, got)
	require.Equal(t, 1, base.Len())

	got, _ = derived.Lookup("T")
	require.Same(t, stringType, got)
	require.Equal(t, 2, derived.Len())
}

func TestGenericsMapMerge(t *testing.T) {
	constraints := GenericsMap{}.With("T", stringType).With("U", stringType)
	requested := GenericsMap{}.With("T", intType)

	merged := constraints.Merge(requested)
	got, _ := merged.Lookup("T")
	require.Same(t, intType, got, "requested bindings override constraints")
	got, _ = merged.Lookup("U")
	require.Same(t, stringType, got)

	got, _ = constraints.Lookup("T")
	require.Same(t, stringType, got)
	require.Equal(t, "{T: int, U: string}", merged.String())
}
