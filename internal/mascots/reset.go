package mascots

import (
	"context"
	"fmt"

	"salvadanaio/internal/notify"
	"salvadanaio/internal/preferences"
)

// Reset forgets the subject's selection: the stored record is deleted, any
// open session is closed and the change event is published so displays fall
// back to the defaults.
func Reset(ctx context.Context, gw preferences.Gateway, reg *Registry, bus *notify.Bus, subject Subject) error {
	persist := subject.Persistable() && gw != nil
	// Delete before dropping so a request racing the reset bootstraps from
	// the empty store, and again after, since closing the session flushes
	// its queued writes.
	if persist {
		if err := gw.Delete(ctx, subject.UserID, preferences.KindCategoryMascots); err != nil {
			return fmt.Errorf("delete preference: %w", err)
		}
	}
	if reg != nil && reg.Drop(subject) && persist {
		if err := gw.Delete(ctx, subject.UserID, preferences.KindCategoryMascots); err != nil {
			return fmt.Errorf("delete preference: %w", err)
		}
	}
	if bus != nil {
		bus.Publish(subject.Event())
	}
	return nil
}
