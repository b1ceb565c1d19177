package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"agrogestion/internal/config"
	"agrogestion/internal/log"
)

func TestSetupLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := SetupLogger("warn", &buf)

	logger.Info("hidden")
	logger.Warn("shown", log.FieldOwnerID, "u1")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info should be filtered at warn level:\n%s", out)
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, "owner_id=u1") {
		t.Fatalf("warn record missing:\n%s", out)
	}
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("AGRO_TEST_FROM_FILE=fichero\nAGRO_TEST_PRESET=fichero\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("AGRO_TEST_PRESET", "entorno")
	t.Cleanup(func() { os.Unsetenv("AGRO_TEST_FROM_FILE") })

	LoadEnvFile(path)

	if got := os.Getenv("AGRO_TEST_FROM_FILE"); got != "fichero" {
		t.Fatalf("variable from file = %q", got)
	}
	if got := os.Getenv("AGRO_TEST_PRESET"); got != "entorno" {
		t.Fatalf("environment should win over the file, got %q", got)
	}

	LoadEnvFile(filepath.Join(t.TempDir(), "missing.env"))
}

func TestLoadAndValidateConfig(t *testing.T) {
	t.Setenv("DATA_BACKEND", "memory")
	t.Setenv("JWT_SECRET", "short")
	if _, err := LoadAndValidateConfig(); err == nil || !strings.Contains(err.Error(), "JWT_SECRET") {
		t.Fatalf("expected JWT_SECRET error, got %v", err)
	}

	t.Setenv("JWT_SECRET", "0123456789abcdef0123")
	cfg, err := LoadAndValidateConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DataBackend != "memory" {
		t.Fatalf("unexpected backend %q", cfg.DataBackend)
	}
}

func TestOpenBackend_Memory(t *testing.T) {
	cfg := &config.Config{DataBackend: "memory", SessionDir: t.TempDir()}
	res, err := OpenBackend(context.Background(), log.Nop(), cfg)
	if err != nil {
		t.Fatalf("OpenBackend: %v", err)
	}
	defer res.Close()
	if res.Expenses == nil || res.Users == nil || res.Sessions == nil {
		t.Fatalf("incomplete backend: %+v", res)
	}

	if _, err := OpenBackend(context.Background(), log.Nop(), &config.Config{DataBackend: "floppy"}); err == nil {
		t.Fatal("expected an error for an unknown backend")
	}
}

func TestGracefulShutdown_ParentCancel(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	cleaned := make(chan struct{})
	ctx, done := GracefulShutdown(parent, log.Nop(), time.Second, func(ctx context.Context) {
		if _, ok := ctx.Deadline(); !ok {
			t.Error("cleanup context should carry the shutdown timeout")
		}
		close(cleaned)
	})

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown did not complete")
	}
	<-cleaned
	if ctx.Err() == nil {
		t.Fatal("returned context should be cancelled")
	}
	WaitForShutdown(ctx, done)
}
