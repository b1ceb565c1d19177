// Package backend selects and builds the remote store, account directory and
// session storage for the configured data backend.
package backend

import (
	"context"
	"fmt"

	"agrogestion/internal/log"
	"agrogestion/internal/session"
	"agrogestion/internal/store/memory"
	"agrogestion/internal/store/postgres"
	"agrogestion/internal/store/sheets"
	"agrogestion/internal/store/sqlite"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.Nop()
	}
	return &DefaultFactory{
		logger: logger.WithComponent(log.ComponentBackend),
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SQLiteBackend:
		return f.createSQLiteBackend(ctx, config)
	case PostgresBackend:
		return f.createPostgresBackend(ctx, config)
	case SheetsBackend:
		return f.createSheetsBackend(ctx, config)
	case MemoryBackend:
		return f.createMemoryBackend(ctx, config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSQLiteBackend(ctx context.Context, config Config) (*BackendResult, error) {
	repo, err := sqlite.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	f.logger.InfoContext(ctx, "Initialized SQLite backend", "db_path", config.SQLiteDBPath)

	return &BackendResult{
		Expenses: repo,
		Users:    repo,
		Sessions: repo.KV(),
		Cleanup:  repo.Close,
	}, nil
}

func (f *DefaultFactory) createPostgresBackend(ctx context.Context, config Config) (*BackendResult, error) {
	db, err := postgres.Open(ctx, config.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}
	sessions, err := f.sessionStorage(config)
	if err != nil {
		db.Close()
		return nil, err
	}
	repo := postgres.NewRepository(db)

	f.logger.InfoContext(ctx, "Initialized PostgreSQL backend")

	return &BackendResult{
		Expenses: repo,
		Users:    repo,
		Sessions: sessions,
		Cleanup:  db.Close,
	}, nil
}

func (f *DefaultFactory) createSheetsBackend(ctx context.Context, config Config) (*BackendResult, error) {
	cli, err := sheets.New(ctx, sheets.Config{
		SpreadsheetID:      config.GoogleSpreadsheetID,
		SheetName:          config.GoogleSheetName,
		ServiceAccountFile: config.GoogleServiceAccountFile,
		ServiceAccountJSON: config.GoogleServiceAccountJSON,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}
	accounts, err := sqlite.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize account directory: %w", err)
	}

	f.logger.InfoContext(ctx, "Initialized Google Sheets backend",
		"sheet", config.GoogleSheetName,
		"accounts_db", config.SQLiteDBPath)

	return &BackendResult{
		Expenses: cli,
		Users:    accounts,
		Sessions: accounts.KV(),
		Cleanup:  accounts.Close,
	}, nil
}

func (f *DefaultFactory) createMemoryBackend(ctx context.Context, config Config) (*BackendResult, error) {
	sessions, err := f.sessionStorage(config)
	if err != nil {
		return nil, err
	}

	f.logger.InfoContext(ctx, "Initialized memory backend", "session_dir", config.SessionDir)

	return &BackendResult{
		Expenses: memory.New(),
		Users:    memory.NewUsers(),
		Sessions: sessions,
	}, nil
}

func (f *DefaultFactory) sessionStorage(config Config) (session.Storage, error) {
	if config.SessionDir == "" {
		return session.NewMemoryStorage(), nil
	}
	fs, err := session.NewFileStorage(config.SessionDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize session storage: %w", err)
	}
	return fs, nil
}
