package mascots

import (
	"context"
	"errors"

	"salvadanaio/internal/catalog"
	applog "salvadanaio/internal/log"
	"salvadanaio/internal/preferences"
	"salvadanaio/internal/selection"
)

// Source tells where a reconciled selection came from.
type Source string

const (
	SourceDefaults Source = "defaults"
	SourceStored   Source = "stored"
)

// Reconcile turns whatever is stored for userID into a selection that
// satisfies the cardinality bounds. It never fails: anything it cannot use
// (no identity, no record, store errors, malformed or undersized values)
// yields the catalog defaults.
func Reconcile(ctx context.Context, c *catalog.Catalog, gw preferences.Gateway, userID string, logger *applog.Logger) ([]string, Source) {
	if logger == nil {
		logger = applog.Discard()
	}
	defaults := func() ([]string, Source) {
		return selection.DeriveDefaults(c.Items()), SourceDefaults
	}

	if userID == "" || gw == nil {
		return defaults()
	}

	rec, err := gw.Read(ctx, userID, preferences.KindCategoryMascots)
	switch {
	case errors.Is(err, preferences.ErrNotFound):
		return defaults()
	case err != nil:
		logger.WarnContext(ctx, "Preference read failed, using defaults",
			applog.FieldUserID, userID,
			applog.FieldOperation, applog.OpBootstrap,
			applog.FieldError, err)
		return defaults()
	}

	ids, err := preferences.DecodeMascots(rec.Value)
	if err != nil {
		logger.WarnContext(ctx, "Stored preference is malformed, using defaults",
			applog.FieldUserID, userID,
			applog.FieldError, err)
		return defaults()
	}

	ids = selection.Sanitize(c, ids)
	if errors.Is(selection.ValidateCount(ids), selection.ErrBelowMinimum) {
		logger.InfoContext(ctx, "Stored selection below minimum, using defaults",
			applog.FieldUserID, userID,
			applog.FieldCount, len(ids))
		return defaults()
	}
	if len(ids) > selection.MaxSelected {
		ids = ids[:selection.MaxSelected]
	}
	return ids, SourceStored
}
