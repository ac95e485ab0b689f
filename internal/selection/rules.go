// Package selection enforces the cardinality rules for a user's chosen
// category mascots and holds the working selection for one editing session.
package selection

import (
	"errors"
	"slices"

	"salvadanaio/internal/catalog"
)

// Bounds for the number of selected mascots.
const (
	MinSelected = 6
	MaxSelected = 10
)

var (
	ErrBelowMinimum = errors.New("selection below minimum")
	ErrAboveMaximum = errors.New("selection above maximum")
)

// CanSelect reports whether candidate may be appended to current.
func CanSelect(current []string, candidate string) bool {
	if slices.Contains(current, candidate) {
		return false
	}
	return len(current) < MaxSelected
}

// CanRemove reports whether one identifier may be removed from current.
// Membership of the target is not checked here.
func CanRemove(current []string) bool {
	return len(current) > MinSelected
}

// ValidateCount returns ErrBelowMinimum or ErrAboveMaximum when ids falls
// outside the allowed range.
func ValidateCount(ids []string) error {
	switch {
	case len(ids) < MinSelected:
		return ErrBelowMinimum
	case len(ids) > MaxSelected:
		return ErrAboveMaximum
	}
	return nil
}

// DeriveDefaults returns the default selection for items: every preferred
// default in catalog order, padded with non-defaults up to MinSelected, then
// truncated to MaxSelected.
func DeriveDefaults(items []catalog.Item) []string {
	out := make([]string, 0, MaxSelected)
	for _, it := range items {
		if it.Default {
			out = append(out, it.ID)
		}
	}
	if len(out) < MinSelected {
		for _, it := range items {
			if len(out) >= MinSelected {
				break
			}
			if it.Default || slices.Contains(out, it.ID) {
				continue
			}
			out = append(out, it.ID)
		}
	}
	if len(out) > MaxSelected {
		out = out[:MaxSelected]
	}
	return out
}

// Sanitize drops identifiers unknown to c and repeated identifiers, keeping
// the first occurrence order.
func Sanitize(c *catalog.Catalog, ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if !c.Contains(id) {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
