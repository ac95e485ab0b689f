// Package catalog holds the fixed, ordered list of category mascot images a
// user can pick from. The catalog is loaded once at startup and never mutated.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalogYAML []byte

// Group is one of the fixed expense categories a mascot belongs to.
type Group string

const (
	GroupFood          Group = "food"
	GroupTransport     Group = "transport"
	GroupHome          Group = "home"
	GroupHealth        Group = "health"
	GroupLeisure       Group = "leisure"
	GroupShopping      Group = "shopping"
	GroupSubscriptions Group = "subscriptions"
	GroupSavings       Group = "savings"
)

var knownGroups = []Group{
	GroupFood, GroupTransport, GroupHome, GroupHealth,
	GroupLeisure, GroupShopping, GroupSubscriptions, GroupSavings,
}

// ErrInvalidCatalog is returned when catalog data fails validation.
var ErrInvalidCatalog = errors.New("invalid catalog")

// IsValid reports whether g is one of the known groups.
func (g Group) IsValid() bool {
	for _, k := range knownGroups {
		if g == k {
			return true
		}
	}
	return false
}

func (g Group) String() string { return string(g) }

// KnownGroups returns every group in display order.
func KnownGroups() []Group {
	return append([]Group(nil), knownGroups...)
}

// Item is a single selectable mascot image.
type Item struct {
	ID      string `yaml:"id" json:"id"`
	Group   Group  `yaml:"group" json:"group"`
	Default bool   `yaml:"default" json:"default"`
}

// Catalog is an ordered, read-only list of items.
type Catalog struct {
	items []Item
	index map[string]int
}

type catalogFile struct {
	Items []Item `yaml:"items"`
}

// New builds a catalog from items, validating ids and groups.
func New(items []Item) (*Catalog, error) {
	c := &Catalog{
		items: make([]Item, 0, len(items)),
		index: make(map[string]int, len(items)),
	}
	var problems []string
	for i, it := range items {
		it.ID = strings.TrimSpace(it.ID)
		switch {
		case it.ID == "":
			problems = append(problems, fmt.Sprintf("item %d: empty id", i))
			continue
		case !it.Group.IsValid():
			problems = append(problems, fmt.Sprintf("item %q: unknown group %q", it.ID, it.Group))
			continue
		}
		if _, dup := c.index[it.ID]; dup {
			problems = append(problems, fmt.Sprintf("item %q: duplicate id", it.ID))
			continue
		}
		c.index[it.ID] = len(c.items)
		c.items = append(c.items, it)
	}
	if len(problems) > 0 {
		return nil, fmt.Errorf("%w:\n- %s", ErrInvalidCatalog, strings.Join(problems, "\n- "))
	}
	if len(c.items) == 0 {
		return nil, fmt.Errorf("%w: no items", ErrInvalidCatalog)
	}
	return c, nil
}

// MustNew is New for compiled-in data and tests.
func MustNew(items []Item) *Catalog {
	c, err := New(items)
	if err != nil {
		panic(err)
	}
	return c
}

// Parse decodes a YAML catalog document.
func Parse(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: decode yaml: %v", ErrInvalidCatalog, err)
	}
	return New(f.Items)
}

// LoadFile reads a YAML catalog from disk.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}
	return Parse(data)
}

// Default returns the compiled-in catalog.
func Default() *Catalog {
	c, err := Parse(defaultCatalogYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded catalog: %v", err))
	}
	return c
}

// Load returns the catalog at path, or the compiled-in one when path is empty.
func Load(path string) (*Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}
	return LoadFile(path)
}

// Items returns a copy of the items in catalog order.
func (c *Catalog) Items() []Item {
	return append([]Item(nil), c.items...)
}

// Len returns the number of items.
func (c *Catalog) Len() int { return len(c.items) }

// Lookup returns the item with the given id.
func (c *Catalog) Lookup(id string) (Item, bool) {
	i, ok := c.index[id]
	if !ok {
		return Item{}, false
	}
	return c.items[i], true
}

// Contains reports whether id names a catalog item.
func (c *Catalog) Contains(id string) bool {
	_, ok := c.index[id]
	return ok
}

// InGroup returns the items of g in catalog order.
func (c *Catalog) InGroup(g Group) []Item {
	var out []Item
	for _, it := range c.items {
		if it.Group == g {
			out = append(out, it)
		}
	}
	return out
}

// Groups returns the groups that have at least one item, in first-seen order.
func (c *Catalog) Groups() []Group {
	seen := make(map[Group]struct{})
	var out []Group
	for _, it := range c.items {
		if _, ok := seen[it.Group]; ok {
			continue
		}
		seen[it.Group] = struct{}{}
		out = append(out, it.Group)
	}
	return out
}

// Resolve maps ids to items, skipping ids the catalog does not know.
func (c *Catalog) Resolve(ids []string) []Item {
	out := make([]Item, 0, len(ids))
	for _, id := range ids {
		if it, ok := c.Lookup(id); ok {
			out = append(out, it)
		}
	}
	return out
}
