package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"agrogestion/internal/amqp"
	"agrogestion/internal/auth"
	"agrogestion/internal/cache"
	"agrogestion/internal/cli"
	"agrogestion/internal/config"
	apphttp "agrogestion/internal/http"
	"agrogestion/internal/ledger"
	"agrogestion/internal/log"
)

func main() {
	cli.LoadEnvFile()
	cfg := config.Load()
	logger := cli.SetupLogger(cfg.LogLevel, os.Stdout)
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	if err := run(logger, cfg); err != nil {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}

func run(logger *log.Logger, cfg *config.Config) error {
	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	res, err := cli.OpenBackend(startCtx, logger, cfg)
	cancelStart()
	if err != nil {
		return err
	}
	defer func() {
		if err := res.Close(); err != nil {
			logger.Warn("Backend cleanup failed", log.FieldError, err)
		}
	}()

	provider := auth.NewLocalProvider(res.Users, auth.LocalConfig{
		Secret:        []byte(cfg.JWTSecret),
		TokenTTL:      cfg.TokenTTL,
		ResetTokenTTL: cfg.ResetTokenTTL,
		Logger:        logger,
	})

	summaries := cache.NewSummaries(cfg.SummaryCacheSize, cfg.SummaryCacheTTL)
	caches := cache.NewManager(logger)
	caches.Register(summaries)
	caches.StartCleanup(time.Minute)
	defer caches.Stop()

	hub := apphttp.NewHub(logger)
	notifiers := ledger.Notifiers{summaries, hub}

	var broker *amqp.Client
	if cfg.AMQPURL != "" {
		broker, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			// Changes still reach local caches; peers just miss them.
			logger.Warn("AMQP unavailable, change events stay local", log.FieldError, err)
			broker = nil
		} else {
			defer broker.Close()
			notifiers = append(notifiers, broker)
		}
	}

	expenses := ledger.NewService(res.Expenses, ledger.Config{
		Timeout:  cfg.RemoteTimeout,
		Notifier: notifiers,
		Logger:   logger,
	})

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Auth:      provider,
		Expenses:  expenses,
		Summaries: summaries,
		Events:    hub,
		Logger:    logger,
	})
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, done := cli.GracefulShutdown(context.Background(), logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting agrogestion server",
			"port", cfg.Port,
			"backend", cfg.DataBackend,
			"amqp", broker != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if broker != nil {
		g.Go(func() error {
			err := broker.ConsumeChanges(gctx, peerChanges(logger, broker, summaries, hub))
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}
	g.Go(func() error {
		shutdownOnFailure(ctx, gctx, srv, 5*time.Second)
		return nil
	})

	err = g.Wait()
	select {
	case <-ctx.Done():
		<-done
	default:
	}
	return err
}

type shutdowner interface {
	Shutdown(ctx context.Context) error
}

// shutdownOnFailure waits for gctx and stops srv when a group member failed.
// A signal cancels ctx as well; GracefulShutdown drains that case.
func shutdownOnFailure(ctx, gctx context.Context, srv shutdowner, timeout time.Duration) {
	<-gctx.Done()
	if ctx.Err() != nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

// peerChanges applies changes published by other processes to the local
// summary cache and event stream. Our own changes were applied already.
func peerChanges(logger *log.Logger, broker *amqp.Client, summaries *cache.Summaries, hub *apphttp.Hub) func(context.Context, *amqp.ChangeMessage) error {
	local := ledger.Notifiers{summaries, hub}
	logger = logger.WithComponent(log.ComponentAMQP)
	return func(ctx context.Context, msg *amqp.ChangeMessage) error {
		if broker.IsOwn(msg) {
			return nil
		}
		logger.DebugContext(ctx, "Applying peer change",
			log.FieldOperation, msg.Op,
			log.FieldExpenseID, msg.ExpenseID,
			log.FieldOwnerID, msg.OwnerID)
		return local.Notify(ctx, msg.Change())
	}
}
