// Package sqlite persists preference records in a local SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"salvadanaio/internal/preferences"
)

const timeLayout = time.RFC3339Nano

// Store is the SQLite preferences.Gateway.
type Store struct {
	db  *sqlx.DB
	now func() time.Time
}

var _ preferences.Gateway = (*Store)(nil)

type row struct {
	UserID    string `db:"user_id"`
	Kind      string `db:"preference_kind"`
	Value     string `db:"value"`
	UpdatedAt string `db:"updated_at"`
}

// Open creates the database directory, runs migrations and returns a ready store.
func Open(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	if err := RunMigrations(dbPath); err != nil {
		return nil, err
	}

	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite serialises writers; one connection avoids SQLITE_BUSY under load.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable wal: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Read(ctx context.Context, userID string, kind preferences.Kind) (preferences.Record, error) {
	if err := preferences.CheckKey(userID, kind); err != nil {
		return preferences.Record{}, err
	}

	var r row
	err := s.db.GetContext(ctx, &r,
		`SELECT user_id, preference_kind, value, updated_at
		   FROM user_preferences
		  WHERE user_id = ? AND preference_kind = ?`, userID, string(kind))
	if errors.Is(err, sql.ErrNoRows) {
		return preferences.Record{}, preferences.ErrNotFound
	}
	if err != nil {
		return preferences.Record{}, preferences.Unavailable("read preference", err)
	}
	return r.record()
}

func (s *Store) Write(ctx context.Context, userID string, kind preferences.Kind, value json.RawMessage) (preferences.Record, error) {
	if err := preferences.CheckKey(userID, kind); err != nil {
		return preferences.Record{}, err
	}

	r := row{
		UserID:    userID,
		Kind:      string(kind),
		Value:     string(value),
		UpdatedAt: s.now().UTC().Format(timeLayout),
	}
	_, err := s.db.NamedExecContext(ctx,
		`INSERT INTO user_preferences (user_id, preference_kind, value, updated_at)
		 VALUES (:user_id, :preference_kind, :value, :updated_at)
		 ON CONFLICT (user_id, preference_kind)
		 DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`, r)
	if err != nil {
		return preferences.Record{}, preferences.Unavailable("write preference", err)
	}
	return r.record()
}

func (s *Store) Delete(ctx context.Context, userID string, kind preferences.Kind) error {
	if err := preferences.CheckKey(userID, kind); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM user_preferences WHERE user_id = ? AND preference_kind = ?`, userID, string(kind))
	if err != nil {
		return preferences.Unavailable("delete preference", err)
	}
	return nil
}

func (r row) record() (preferences.Record, error) {
	ts, err := time.Parse(timeLayout, r.UpdatedAt)
	if err != nil {
		return preferences.Record{}, fmt.Errorf("%w: updated_at %q: %v", preferences.ErrMalformedPreference, r.UpdatedAt, err)
	}
	return preferences.Record{
		UserID:    r.UserID,
		Kind:      preferences.Kind(r.Kind),
		Value:     json.RawMessage(r.Value),
		UpdatedAt: ts,
	}, nil
}
