package sheets

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"salvadanaio/internal/preferences"
)

func cell(row []any, i int) string {
	if i >= len(row) || row[i] == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(row[i]))
}

// findRow returns the 1-based sheet row holding (userID, kind), or 0.
// Cleared rows and the optional header row never match.
func findRow(values [][]any, userID string, kind preferences.Kind) int {
	for i, row := range values {
		if cell(row, 0) == userID && cell(row, 1) == string(kind) {
			return i + 1
		}
	}
	return 0
}

func parseRow(row []any) (preferences.Record, error) {
	ts, err := time.Parse(time.RFC3339Nano, cell(row, 3))
	if err != nil {
		return preferences.Record{}, fmt.Errorf("%w: updated_at: %v", preferences.ErrMalformedPreference, err)
	}
	return preferences.Record{
		UserID:    cell(row, 0),
		Kind:      preferences.Kind(cell(row, 1)),
		Value:     json.RawMessage(cell(row, 2)),
		UpdatedAt: ts,
	}, nil
}

func formatRow(r preferences.Record) []any {
	return []any{r.UserID, string(r.Kind), string(r.Value), r.UpdatedAt.UTC().Format(time.RFC3339Nano)}
}
