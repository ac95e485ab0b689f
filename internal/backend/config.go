package backend

import (
	"fmt"

	"salvadanaio/internal/config"
)

// Config holds configuration for backend creation
type Config struct {
	Type   BackendType
	Notify NotifyType

	// SQLite specific
	SQLiteDBPath string

	// Google Sheets specific
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string

	// Relay specific
	AMQPURL      string
	AMQPExchange string
	RedisAddr    string
	RedisChannel string
}

// BackendType represents the type of preference store
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	SheetsBackend BackendType = "sheets"
	MemoryBackend BackendType = "memory"
)

func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, SheetsBackend, MemoryBackend:
		return true
	default:
		return false
	}
}

// NotifyType represents the relay transport
type NotifyType string

const (
	NoNotify    NotifyType = "none"
	AMQPNotify  NotifyType = "amqp"
	RedisNotify NotifyType = "redis"
)

func (nt NotifyType) String() string {
	return string(nt)
}

func (nt NotifyType) IsValid() bool {
	switch nt {
	case NoNotify, AMQPNotify, RedisNotify:
		return true
	default:
		return false
	}
}

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	cfg := Config{
		Type:   BackendType(appConfig.DataBackend),
		Notify: NotifyType(appConfig.NotifyBackend),

		SQLiteDBPath: appConfig.SQLiteDBPath,

		GoogleSpreadsheetID:      appConfig.GoogleSpreadsheetID,
		GoogleSheetName:          appConfig.GooglePreferencesSheetName,
		GoogleServiceAccountJSON: appConfig.GoogleServiceAccountJSON,
		GoogleServiceAccountFile: appConfig.GoogleServiceAccountFile,

		AMQPURL:      appConfig.AMQPURL,
		AMQPExchange: appConfig.AMQPExchange,
		RedisAddr:    appConfig.RedisAddr,
		RedisChannel: appConfig.RedisChannel,
	}
	if cfg.Notify == "" {
		cfg.Notify = NoNotify
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}
	if !c.Notify.IsValid() {
		return fmt.Errorf("invalid notify type: %s", c.Notify)
	}

	switch c.Type {
	case SQLiteBackend:
		if c.SQLiteDBPath == "" {
			return fmt.Errorf("SQLite database path is required for sqlite backend")
		}
	case SheetsBackend:
		if c.GoogleSpreadsheetID == "" {
			return fmt.Errorf("Google Spreadsheet ID is required for sheets backend")
		}
	}

	switch c.Notify {
	case AMQPNotify:
		if c.AMQPURL == "" || c.AMQPExchange == "" {
			return fmt.Errorf("AMQP URL and exchange are required for amqp relay")
		}
	case RedisNotify:
		if c.RedisAddr == "" {
			return fmt.Errorf("Redis address is required for redis relay")
		}
	}

	return nil
}

// GetBackendTypeStrings returns all valid backend type strings
func GetBackendTypeStrings() []string {
	types := []BackendType{SQLiteBackend, SheetsBackend, MemoryBackend}
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = t.String()
	}
	return out
}
