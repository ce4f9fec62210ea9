package main

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"moneywise/internal/amqp"
	"moneywise/internal/cli"
	"moneywise/internal/config"
	"moneywise/internal/ledger"
	"moneywise/internal/log"
	"moneywise/internal/sheets"
	gsheet "moneywise/internal/sheets/google"
	sheetsmemory "moneywise/internal/sheets/memory"
	"moneywise/internal/worker"
)

func main() {
	os.Exit(run())
}

// run returns the process exit code so that deferred closes always run.
func run() int {
	cli.LoadEnvFile()

	cfg, err := cli.LoadConfig((*config.Config).Validate)
	if err != nil {
		slog.Error("Configuration validation failed", log.FieldError, err.Error())
		return 1
	}
	logger := cli.SetupLogger(cfg, log.ComponentWorker)
	logger.Info("Starting moneywise-worker",
		"backend", cfg.DataBackend,
		"queue", cfg.AMQPQueue,
		"auto_repair", cfg.WorkerAutoRepair)

	ctx, stop := cli.SignalContext(context.Background())
	defer stop()

	res, err := cli.OpenStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to open store", log.FieldError, err.Error())
		return 1
	}
	defer res.Cleanup()

	var journal sheets.Journal
	if cfg.JournalEnabled() {
		client, err := gsheet.New(ctx, gsheet.Config{
			SpreadsheetID:      cfg.GoogleSpreadsheetID,
			SheetName:          cfg.JournalSheetName,
			ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
			ServiceAccountFile: cfg.GoogleServiceAccountFile,
		})
		if err != nil {
			logger.Error("Failed to initialize Google Sheets journal", log.FieldError, err.Error())
			return 1
		}
		logger.Info("Google Sheets journal initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
		journal = client
	} else {
		logger.Info("Google Sheets disabled - journaling to memory")
		journal = sheetsmemory.New()
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err.Error())
		return 1
	}
	defer amqpClient.Close()

	jw := worker.NewJournalWorker(res.Store,
		ledger.NewAuditor(res.Store, cfg.AuditConcurrency),
		journal,
		worker.Options{AutoRepair: cfg.WorkerAutoRepair})

	err = amqpClient.ConsumeEvents(ctx, jw.HandleEvent)
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Event consumption failed", log.FieldError, err.Error())
		return 1
	}
	logger.Info("Worker stopped")
	return 0
}
