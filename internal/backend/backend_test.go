package backend

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"agrogestion/internal/config"
	"agrogestion/internal/core"
	"agrogestion/internal/session"
	"agrogestion/internal/store/sqlite"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{"memory", Config{Type: MemoryBackend}, ""},
		{"unknown", Config{Type: "mongo"}, "invalid backend type"},
		{"sqlite without path", Config{Type: SQLiteBackend}, "SQLite database path"},
		{"postgres without dsn", Config{Type: PostgresBackend}, "PostgreSQL DSN"},
		{"sheets without id", Config{Type: SheetsBackend}, "Spreadsheet ID"},
		{"sheets without credentials", Config{Type: SheetsBackend, GoogleSpreadsheetID: "x"}, "GoogleServiceAccount"},
		{"sheets without account db", Config{Type: SheetsBackend, GoogleSpreadsheetID: "x", GoogleServiceAccountJSON: "{}"}, "account directory"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("want error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestFromAppConfig(t *testing.T) {
	if _, err := FromAppConfig(nil); err == nil {
		t.Fatal("expected error for nil config")
	}
	if _, err := FromAppConfig(&config.Config{DataBackend: "nope"}); err == nil {
		t.Fatal("expected error for unknown backend")
	}
	got, err := FromAppConfig(&config.Config{DataBackend: "postgres", PostgresDSN: "postgres://x", SessionDir: "/tmp/s"})
	if err != nil {
		t.Fatalf("FromAppConfig: %v", err)
	}
	if got.Type != PostgresBackend || got.PostgresDSN != "postgres://x" || got.SessionDir != "/tmp/s" {
		t.Fatalf("unexpected config: %+v", got)
	}
}

func TestGetBackendTypeStrings(t *testing.T) {
	got := strings.Join(GetBackendTypeStrings(), ",")
	if got != "memory,sqlite,postgres,sheets" {
		t.Fatalf("GetBackendTypeStrings() = %s", got)
	}
}

func TestCreateMemoryBackend(t *testing.T) {
	dir := t.TempDir()
	res, err := NewFactory(nil).CreateBackend(context.Background(), Config{Type: MemoryBackend, SessionDir: dir})
	if err != nil {
		t.Fatalf("CreateBackend: %v", err)
	}
	defer res.Close()

	if _, ok := res.Sessions.(*session.FileStorage); !ok {
		t.Fatalf("expected file session storage, got %T", res.Sessions)
	}
	if got, err := res.Expenses.ListByOwner(context.Background(), "u1"); err != nil || len(got) != 0 {
		t.Fatalf("fresh store: %v, %v", got, err)
	}
}

func TestCreateSQLiteBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agro.db")
	res, err := NewFactory(nil).CreateBackend(context.Background(), Config{Type: SQLiteBackend, SQLiteDBPath: path})
	if err != nil {
		t.Fatalf("CreateBackend: %v", err)
	}
	defer res.Close()

	if _, ok := res.Sessions.(*sqlite.KV); !ok {
		t.Fatalf("expected sqlite kv session storage, got %T", res.Sessions)
	}
	e := core.Expense{
		ID: "e1", UserID: "u1", Description: "Gasoil", Amount: core.Money{Cents: 100},
		Category: core.CategoryCombustible, Date: "2024-01-02", Month: 1, Year: 2024,
	}
	if err := res.Expenses.Upsert(context.Background(), e); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
}

func TestCreateBackend_Invalid(t *testing.T) {
	if _, err := NewFactory(nil).CreateBackend(context.Background(), Config{Type: SQLiteBackend}); err == nil {
		t.Fatal("expected validation error")
	}
}
