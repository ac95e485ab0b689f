// Package preferences stores one record per (user, preference kind). The
// gateway adapters never look inside a record's value; shape and invariant
// checks belong to the caller.
package preferences

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Kind names a family of preference records.
type Kind string

// KindCategoryMascots holds a user's selected category mascot images.
const KindCategoryMascots Kind = "category_mascots"

var (
	// ErrNotFound is returned by Read when no record exists.
	ErrNotFound = errors.New("preference not found")
	// ErrUnauthorized is returned when no caller identity was supplied.
	ErrUnauthorized = errors.New("unauthorized: no user identity")
	// ErrStoreUnavailable wraps connectivity and backend failures.
	ErrStoreUnavailable = errors.New("preference store unavailable")
	// ErrMalformedPreference is returned when a stored value has the wrong shape.
	ErrMalformedPreference = errors.New("malformed preference value")
)

// Record is the persisted form of one preference.
type Record struct {
	UserID    string          `json:"-"`
	Kind      Kind            `json:"preferenceKind"`
	Value     json.RawMessage `json:"value"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// Gateway is the keyed upsert/read/delete contract implemented by every store.
type Gateway interface {
	// Read returns ErrNotFound when the record is absent.
	Read(ctx context.Context, userID string, kind Kind) (Record, error)
	// Write creates or wholesale replaces the record value and bumps UpdatedAt.
	Write(ctx context.Context, userID string, kind Kind, value json.RawMessage) (Record, error)
	// Delete removes the record; deleting an absent record is not an error.
	Delete(ctx context.Context, userID string, kind Kind) error
}

// CheckKey validates the record key shared by all adapters.
func CheckKey(userID string, kind Kind) error {
	if strings.TrimSpace(userID) == "" {
		return ErrUnauthorized
	}
	if strings.TrimSpace(string(kind)) == "" {
		return fmt.Errorf("empty preference kind")
	}
	return nil
}

// Unavailable wraps err so callers can match ErrStoreUnavailable.
func Unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}

// MascotsValue is the value stored under KindCategoryMascots.
type MascotsValue struct {
	SelectedIdentifiers []string `json:"selectedIdentifiers"`
}

// EncodeMascots serialises ids as a MascotsValue.
func EncodeMascots(ids []string) (json.RawMessage, error) {
	if ids == nil {
		ids = []string{}
	}
	raw, err := json.Marshal(MascotsValue{SelectedIdentifiers: ids})
	if err != nil {
		return nil, fmt.Errorf("encode mascots value: %w", err)
	}
	return raw, nil
}

// DecodeMascots parses a stored value defensively: it must be a JSON object
// whose selectedIdentifiers field is an array of non-empty strings.
func DecodeMascots(raw json.RawMessage) ([]string, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, fmt.Errorf("%w: empty value", ErrMalformedPreference)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPreference, err)
	}
	list, ok := fields["selectedIdentifiers"]
	if !ok || bytes.Equal(bytes.TrimSpace(list), []byte("null")) {
		return nil, fmt.Errorf("%w: missing selectedIdentifiers", ErrMalformedPreference)
	}
	var ids []string
	if err := json.Unmarshal(list, &ids); err != nil {
		return nil, fmt.Errorf("%w: selectedIdentifiers: %v", ErrMalformedPreference, err)
	}
	for i, id := range ids {
		if strings.TrimSpace(id) == "" {
			return nil, fmt.Errorf("%w: empty identifier at %d", ErrMalformedPreference, i)
		}
	}
	return ids, nil
}
