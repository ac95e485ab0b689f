package backend

import (
	"context"
	"fmt"

	"salvadanaio/internal/amqp"
	applog "salvadanaio/internal/log"
	"salvadanaio/internal/notify/redis"
	"salvadanaio/internal/preferences/memory"
	"salvadanaio/internal/preferences/sheets"
	"salvadanaio/internal/preferences/sqlite"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *applog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *applog.Logger) Factory {
	if logger == nil {
		logger = applog.Discard()
	}
	return &DefaultFactory{
		logger: logger.WithComponent(applog.ComponentBackend),
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if !config.Type.IsValid() {
		return nil, fmt.Errorf("invalid backend type: %s", config.Type)
	}

	switch config.Type {
	case SQLiteBackend:
		return f.createSQLiteBackend(config)
	case SheetsBackend:
		return f.createSheetsBackend(ctx, config)
	case MemoryBackend:
		return f.createMemoryBackend()
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSQLiteBackend(config Config) (*BackendResult, error) {
	store, err := sqlite.Open(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite store: %w", err)
	}

	f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)

	return &BackendResult{
		Gateway: store,
		Cleanup: store.Close,
	}, nil
}

func (f *DefaultFactory) createSheetsBackend(ctx context.Context, config Config) (*BackendResult, error) {
	client, err := sheets.New(ctx, sheets.Config{
		SpreadsheetID:   config.GoogleSpreadsheetID,
		SheetName:       config.GoogleSheetName,
		CredentialsJSON: config.GoogleServiceAccountJSON,
		CredentialsFile: config.GoogleServiceAccountFile,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}

	f.logger.Info("Initialized Google Sheets backend",
		"spreadsheet_id", config.GoogleSpreadsheetID,
		"sheet_name", config.GoogleSheetName)

	return &BackendResult{
		Gateway: client,
		Cleanup: func() error { return nil },
	}, nil
}

func (f *DefaultFactory) createMemoryBackend() (*BackendResult, error) {
	f.logger.Info("Initialized memory backend")

	return &BackendResult{
		Gateway: memory.New(),
		Cleanup: func() error { return nil },
	}, nil
}

// CreateTransport implements Factory.CreateTransport. It returns a nil
// Transport for NoNotify.
func (f *DefaultFactory) CreateTransport(ctx context.Context, config Config) (*TransportResult, error) {
	switch config.Notify {
	case NoNotify, "":
		return &TransportResult{Cleanup: func() error { return nil }}, nil
	case AMQPNotify:
		client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, f.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize AMQP relay: %w", err)
		}
		f.logger.Info("Initialized AMQP relay", "exchange", config.AMQPExchange)
		return &TransportResult{Transport: client, Cleanup: client.Close}, nil
	case RedisNotify:
		t, err := redis.New(ctx, config.RedisAddr, config.RedisChannel, f.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Redis relay: %w", err)
		}
		f.logger.Info("Initialized Redis relay", "addr", config.RedisAddr, "channel", config.RedisChannel)
		return &TransportResult{Transport: t, Cleanup: t.Close}, nil
	default:
		return nil, fmt.Errorf("unsupported notify type: %s", config.Notify)
	}
}
