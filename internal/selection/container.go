package selection

import (
	"slices"
	"sync"

	"salvadanaio/internal/catalog"
)

// Result is the outcome of a Select or Remove call.
type Result struct {
	Changed   bool
	Resulting []string
}

// Summary describes the current selection size against its bounds.
type Summary struct {
	Current int `json:"current"`
	Min     int `json:"min"`
	Max     int `json:"max"`
}

// Container owns one selection set. Every mutation is checked against the
// rules under the lock, so concurrent callers never act on a stale set.
type Container struct {
	mu      sync.RWMutex
	catalog *catalog.Catalog
	ids     []string
}

// NewContainer returns an empty container over c.
func NewContainer(c *catalog.Catalog) *Container {
	return &Container{catalog: c}
}

// Replace overwrites the held set. Only bootstrap calls this.
func (c *Container) Replace(ids []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ids = slices.Clone(ids)
}

// Select appends id when the rules allow it.
func (c *Container) Select(id string) Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !CanSelect(c.ids, id) {
		return Result{Resulting: slices.Clone(c.ids)}
	}
	c.ids = append(c.ids, id)
	return Result{Changed: true, Resulting: slices.Clone(c.ids)}
}

// Remove drops id when the minimum bound allows it. Removing an id that is
// not selected reports no change.
func (c *Container) Remove(id string) Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !CanRemove(c.ids) {
		return Result{Resulting: slices.Clone(c.ids)}
	}
	i := slices.Index(c.ids, id)
	if i < 0 {
		return Result{Resulting: slices.Clone(c.ids)}
	}
	c.ids = slices.Delete(slices.Clone(c.ids), i, i+1)
	return Result{Changed: true, Resulting: slices.Clone(c.ids)}
}

// Selected returns a copy of the current set.
func (c *Container) Selected() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.ids)
}

func (c *Container) IsSelected(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Contains(c.ids, id)
}

// EffectiveSetFor returns the selected items of group g in selection order.
func (c *Container) EffectiveSetFor(g catalog.Group) []catalog.Item {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []catalog.Item
	for _, it := range c.catalog.Resolve(c.ids) {
		if it.Group == g {
			out = append(out, it)
		}
	}
	return out
}

// ComplementFor returns the items of group g that are not selected, in
// catalog order.
func (c *Container) ComplementFor(g catalog.Group) []catalog.Item {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []catalog.Item
	for _, it := range c.catalog.InGroup(g) {
		if !slices.Contains(c.ids, it.ID) {
			out = append(out, it)
		}
	}
	return out
}

func (c *Container) CountSummary() Summary {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Summary{Current: len(c.ids), Min: MinSelected, Max: MaxSelected}
}

func (c *Container) IsMaxReached() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.ids) >= MaxSelected
}

func (c *Container) IsMinReached() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.ids) <= MinSelected
}
