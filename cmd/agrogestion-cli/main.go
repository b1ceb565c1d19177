package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"agrogestion/internal/auth"
	"agrogestion/internal/cli"
	"agrogestion/internal/ledger"
	"agrogestion/internal/log"
	"agrogestion/internal/session"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cli.LoadEnvFile()
	// Diagnostics go to stderr so command output stays clean.
	logger := cli.SetupLogger(envOr("LOG_LEVEL", "warn"), os.Stderr).WithComponent(log.ComponentCLI)
	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	res, err := cli.OpenBackend(ctx, logger, cfg)
	if err != nil {
		logger.Error("Backend initialization failed", log.FieldError, err)
		return 1
	}
	defer res.Close()

	provider := auth.NewLocalProvider(res.Users, auth.LocalConfig{
		Secret:        []byte(cfg.JWTSecret),
		TokenTTL:      cfg.TokenTTL,
		ResetTokenTTL: cfg.ResetTokenTTL,
		Logger:        logger,
	})
	app := &cli.App{
		Auth: auth.NewContext(provider, session.New(res.Sessions, logger), logger),
		Expenses: ledger.NewService(res.Expenses, ledger.Config{
			Timeout: cfg.RemoteTimeout,
			Logger:  logger,
		}),
		Out:    os.Stdout,
		Now:    time.Now,
		Logger: logger,
	}

	if err := app.Run(ctx, args); err != nil {
		if !errors.Is(err, cli.ErrUsage) || len(args) > 0 {
			cli.PrintError(os.Stderr, err)
		}
		return 1
	}
	return 0
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
