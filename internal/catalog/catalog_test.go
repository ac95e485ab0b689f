package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog(t *testing.T) {
	c := Default()
	require.NotNil(t, c)
	assert.Greater(t, c.Len(), 10)

	item, ok := c.Lookup("/mascots/food/burger.png")
	require.True(t, ok)
	assert.Equal(t, GroupFood, item.Group)
	assert.True(t, item.Default)

	for _, g := range c.Groups() {
		assert.True(t, g.IsValid(), "group %s", g)
	}
}

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name  string
		items []Item
	}{
		{"empty", nil},
		{"blank id", []Item{{ID: " ", Group: GroupFood}}},
		{"unknown group", []Item{{ID: "a", Group: "pets"}}},
		{"duplicate id", []Item{{ID: "a", Group: GroupFood}, {ID: "a", Group: GroupHome}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.items)
			require.ErrorIs(t, err, ErrInvalidCatalog)
		})
	}
}

func TestQueriesPreserveOrder(t *testing.T) {
	c := MustNew([]Item{
		{ID: "h1", Group: GroupHome},
		{ID: "f1", Group: GroupFood},
		{ID: "h2", Group: GroupHome},
	})

	assert.Equal(t, []Group{GroupHome, GroupFood}, c.Groups())
	assert.Equal(t, []Item{{ID: "h1", Group: GroupHome}, {ID: "h2", Group: GroupHome}}, c.InGroup(GroupHome))
	assert.Empty(t, c.InGroup(GroupSavings))
	assert.Equal(t, []Item{{ID: "h2", Group: GroupHome}, {ID: "f1", Group: GroupFood}}, c.Resolve([]string{"h2", "gone", "f1"}))
	assert.False(t, c.Contains("gone"))

	items := c.Items()
	items[0].ID = "mutated"
	assert.True(t, c.Contains("h1"), "Items must return a copy")
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	doc := "items:\n  - id: a\n    group: food\n    default: true\n  - id: b\n    group: savings\n"
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, c.Len())

	c, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().Len(), c.Len())

	_, err = LoadFile(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)

	_, err = Parse([]byte("items: [oops"))
	require.ErrorIs(t, err, ErrInvalidCatalog)
}
