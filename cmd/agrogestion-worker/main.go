package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"strings"
	"time"

	"agrogestion/internal/amqp"
	"agrogestion/internal/cli"
	"agrogestion/internal/log"
	"agrogestion/internal/store/sheets"
	"agrogestion/internal/worker"
)

func main() {
	resync := flag.String("resync", "", "comma-separated owner ids to reconcile before consuming")
	flag.Parse()

	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), os.Stdout)
	cfg := cli.MustLoadConfig(logger)
	if err := cfg.ValidateMirror(); err != nil {
		logger.Error("Mirror configuration invalid", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Starting agrogestion-worker", "backend", cfg.DataBackend, "queue", cfg.MirrorQueue)

	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	res, err := cli.OpenBackend(startCtx, logger, cfg)
	if err != nil {
		cancelStart()
		logger.Error("Failed to open primary store", log.FieldError, err)
		os.Exit(1)
	}
	defer res.Close()

	mirrorStore, err := sheets.New(startCtx, sheets.Config{
		SpreadsheetID:      cfg.GoogleSpreadsheetID,
		SheetName:          cfg.GoogleSheetName,
		ServiceAccountFile: cfg.GoogleServiceAccountFile,
		ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
	})
	cancelStart()
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Google Sheets mirror initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)

	broker, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.MirrorQueue, logger)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer broker.Close()

	mirror := worker.NewMirror(res.Expenses, mirrorStore, logger)
	ctx, done := cli.GracefulShutdown(context.Background(), logger, 30*time.Second, nil)

	for _, owner := range strings.Split(*resync, ",") {
		if owner = strings.TrimSpace(owner); owner == "" {
			continue
		}
		if _, err := mirror.Resync(ctx, owner); err != nil {
			// Keep going; the consumer still picks up new changes.
			logger.Error("Startup resync failed", log.FieldOwnerID, owner, log.FieldError, err)
		}
	}

	if err := broker.ConsumeChanges(ctx, mirror.HandleChange); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", log.FieldError, err)
	}
	cli.WaitForShutdown(ctx, done)
}
