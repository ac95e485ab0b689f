// Package sheets stores preference records as rows of a Google Sheets tab:
// user_id | preference_kind | value (JSON) | updated_at (RFC 3339).
package sheets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"salvadanaio/internal/preferences"
)

// Config selects the spreadsheet and the service account used to reach it.
type Config struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsJSON string
	CredentialsFile string
}

// Client is the Google Sheets preferences.Gateway.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
	now           func() time.Time

	// Serialises read-modify-write cycles issued by this process.
	mu sync.Mutex
}

var _ preferences.Gateway = (*Client)(nil)

// New creates a Sheets client using service account credentials.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	sheetName := strings.TrimSpace(cfg.SheetName)
	if sheetName == "" {
		sheetName = "Preferences"
	}

	svc, err := newSheetsService(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return newClient(svc, cfg.SpreadsheetID, sheetName), nil
}

func newClient(svc *gsheet.Service, spreadsheetID, sheetName string) *Client {
	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
		now:           time.Now,
	}
}

func newSheetsService(ctx context.Context, cfg Config) (*gsheet.Service, error) {
	credentialsJSON := []byte(strings.TrimSpace(cfg.CredentialsJSON))
	if len(credentialsJSON) == 0 {
		path := strings.TrimSpace(cfg.CredentialsFile)
		if path == "" {
			path = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
		}
		if path == "" {
			return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = data
	}

	slog.InfoContext(ctx, "Creating Google Sheets service",
		"credentials_size", len(credentialsJSON),
		"scope", gsheet.SpreadsheetsScope)

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return svc, nil
}

func (c *Client) tableRange() string {
	return fmt.Sprintf("%s!A:D", c.sheetName)
}

func (c *Client) rowRange(n int) string {
	return fmt.Sprintf("%s!A%d:D%d", c.sheetName, n, n)
}

func (c *Client) rows(ctx context.Context) ([][]any, error) {
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, c.tableRange()).Context(ctx).Do()
	if err != nil {
		return nil, preferences.Unavailable("read sheet "+c.sheetName, err)
	}
	return resp.Values, nil
}

func (c *Client) Read(ctx context.Context, userID string, kind preferences.Kind) (preferences.Record, error) {
	if err := preferences.CheckKey(userID, kind); err != nil {
		return preferences.Record{}, err
	}
	values, err := c.rows(ctx)
	if err != nil {
		return preferences.Record{}, err
	}
	n := findRow(values, userID, kind)
	if n == 0 {
		return preferences.Record{}, preferences.ErrNotFound
	}
	return parseRow(values[n-1])
}

func (c *Client) Write(ctx context.Context, userID string, kind preferences.Kind, value json.RawMessage) (preferences.Record, error) {
	if err := preferences.CheckKey(userID, kind); err != nil {
		return preferences.Record{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	values, err := c.rows(ctx)
	if err != nil {
		return preferences.Record{}, err
	}

	rec := preferences.Record{UserID: userID, Kind: kind, Value: value, UpdatedAt: c.now().UTC()}
	vr := &gsheet.ValueRange{Values: [][]any{formatRow(rec)}}

	if n := findRow(values, userID, kind); n > 0 {
		_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, c.rowRange(n), vr).
			ValueInputOption("RAW").Context(ctx).Do()
	} else {
		_, err = c.svc.Spreadsheets.Values.Append(c.spreadsheetID, c.tableRange(), vr).
			ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	}
	if err != nil {
		return preferences.Record{}, preferences.Unavailable("write sheet "+c.sheetName, err)
	}
	return rec, nil
}

func (c *Client) Delete(ctx context.Context, userID string, kind preferences.Kind) error {
	if err := preferences.CheckKey(userID, kind); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	values, err := c.rows(ctx)
	if err != nil {
		return err
	}
	n := findRow(values, userID, kind)
	if n == 0 {
		return nil
	}
	_, err = c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, c.rowRange(n), &gsheet.ClearValuesRequest{}).
		Context(ctx).Do()
	if err != nil {
		return preferences.Unavailable("clear sheet row", err)
	}
	return nil
}
