package reflectcheck

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSuggest(t *testing.T) {
	members := []string{"Test", "TestMethod", "Compute", "Dispose"}
	tests := []struct {
		name string
		want string
	}{
		{"TestMethd", "TestMethod"},
		{"Comptue", "Compute"},
		{"TestMethod", ""},
		{"Unrelated", ""},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, suggest(tt.name, members))
		})
	}
}
