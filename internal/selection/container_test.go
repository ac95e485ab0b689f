package selection

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salvadanaio/internal/catalog"
)

func testCatalog(n int) *catalog.Catalog {
	items := make([]catalog.Item, n)
	for i := range items {
		g := catalog.GroupFood
		if i%2 == 1 {
			g = catalog.GroupHome
		}
		items[i] = catalog.Item{ID: fmt.Sprintf("i%d", i+1), Group: g}
	}
	return catalog.MustNew(items)
}

func TestContainerRemoveBlockedAtMinimum(t *testing.T) {
	c := NewContainer(testCatalog(12))
	c.Replace(ids(MinSelected))

	res := c.Remove("i1")

	assert.False(t, res.Changed)
	assert.Equal(t, ids(MinSelected), res.Resulting)
	assert.True(t, c.IsMinReached())
}

func TestContainerSelectBlockedAtMaximum(t *testing.T) {
	c := NewContainer(testCatalog(12))
	c.Replace(ids(MaxSelected))

	res := c.Select("i11")
	assert.False(t, res.Changed)
	assert.True(t, c.IsMaxReached())
	assert.Equal(t, ids(MaxSelected), c.Selected())

	res = c.Remove("i1")
	require.True(t, res.Changed)

	res = c.Select("i11")
	require.True(t, res.Changed)
	assert.Equal(t, []string{"i2", "i3", "i4", "i5", "i6", "i7", "i8", "i9", "i10", "i11"}, res.Resulting)
}

func TestContainerSelectIsIdempotent(t *testing.T) {
	c := NewContainer(testCatalog(12))
	c.Replace(ids(7))

	res := c.Select("i3")

	assert.False(t, res.Changed)
	assert.Equal(t, ids(7), res.Resulting)
	assert.False(t, c.IsMaxReached(), "caller distinguishes already-selected from capacity")
}

func TestContainerRemoveNonMember(t *testing.T) {
	c := NewContainer(testCatalog(12))
	c.Replace(ids(8))

	res := c.Remove("i12")
	assert.False(t, res.Changed)
	assert.Equal(t, ids(8), res.Resulting)
}

func TestContainerQueries(t *testing.T) {
	c := NewContainer(testCatalog(12))
	c.Replace([]string{"i2", "i1", "i3", "i4", "i5", "i6"})

	assert.True(t, c.IsSelected("i2"))
	assert.False(t, c.IsSelected("i7"))
	assert.Equal(t, Summary{Current: 6, Min: MinSelected, Max: MaxSelected}, c.CountSummary())

	food := c.EffectiveSetFor(catalog.GroupFood)
	require.Len(t, food, 3)
	assert.Equal(t, "i1", food[0].ID)
	assert.Equal(t, "i3", food[1].ID)

	home := c.ComplementFor(catalog.GroupHome)
	var got []string
	for _, it := range home {
		got = append(got, it.ID)
	}
	assert.Equal(t, []string{"i8", "i10", "i12"}, got)
}

func TestContainerResultDoesNotAlias(t *testing.T) {
	c := NewContainer(testCatalog(12))
	c.Replace(ids(7))
	res := c.Select("i8")
	res.Resulting[0] = "mutated"
	assert.Equal(t, "i1", c.Selected()[0])
}

func TestContainerConcurrentMutationsKeepBounds(t *testing.T) {
	c := NewContainer(testCatalog(40))
	c.Replace(ids(MinSelected))

	var wg sync.WaitGroup
	for i := 1; i <= 40; i++ {
		wg.Add(2)
		go func(id string) {
			defer wg.Done()
			c.Select(id)
		}(fmt.Sprintf("i%d", i))
		go func(id string) {
			defer wg.Done()
			c.Remove(id)
		}(fmt.Sprintf("i%d", 41-i))
	}
	wg.Wait()

	require.NoError(t, ValidateCount(c.Selected()))
}
