package evaluation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeAccess struct {
	all   bool
	store string
}

func (f fakeAccess) CanViewAllStores() bool { return f.all }
func (f fakeAccess) StoreScope() string     { return f.store }

func TestScopeToSession(t *testing.T) {
	records := filterFixture()

	tests := []struct {
		name   string
		access Access
		want   []string
	}{
		{name: "admin sees all", access: fakeAccess{all: true}, want: []string{"Ana", "Bruno", "Carla", "Davi", "Eva"}},
		{name: "store user", access: fakeAccess{store: "Carioca"}, want: []string{"Ana", "Bruno"}},
		{name: "store user without store", access: fakeAccess{}, want: []string{}},
		{name: "no session", access: nil, want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, names(ScopeToSession(records, tt.access)))
		})
	}
}
