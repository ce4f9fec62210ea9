package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"moneywise/internal/amqp"
	"moneywise/internal/auth"
	"moneywise/internal/budget"
	"moneywise/internal/cache"
	"moneywise/internal/cli"
	"moneywise/internal/config"
	"moneywise/internal/core"
	apphttp "moneywise/internal/http"
	"moneywise/internal/ledger"
	"moneywise/internal/log"
)

func main() {
	os.Exit(run())
}

// run returns the process exit code; it returns instead of exiting so that
// every deferred close runs.
func run() int {
	cli.LoadEnvFile()

	cfg, err := cli.LoadConfig((*config.Config).ValidateServer)
	if err != nil {
		slog.Error("Configuration validation failed", log.FieldError, err.Error())
		return 1
	}
	logger := cli.SetupLogger(cfg, log.ComponentApp)
	logger.Info("Starting moneywise",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"allow_overdraft", cfg.AllowOverdraft)

	ctx, stop := cli.SignalContext(context.Background())
	defer stop()

	res, err := cli.OpenStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to open store", log.FieldError, err.Error())
		return 1
	}
	defer res.Cleanup()

	statusCache := cache.NewLRUCache[core.MonthBudget](cfg.BudgetCacheSize, cfg.BudgetCacheTTL)
	caches := cache.NewManager()
	caches.Register(statusCache)
	caches.StartCleanup(cfg.BudgetCacheTTL)
	defer caches.Stop()

	budgets := budget.New(res.Store, statusCache)
	notifiers := []ledger.Notifier{budgets}

	// Event publishing is best-effort; the API stays up without a broker.
	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Warn("AMQP unavailable, ledger events will not be published",
			log.FieldComponent, log.ComponentAMQP,
			log.FieldError, err.Error())
	} else {
		defer amqpClient.Close()
		notifiers = append(notifiers, amqp.NewNotifier(amqpClient))
	}

	svc := ledger.New(res.Store, ledger.Config{AllowOverdraft: cfg.AllowOverdraft}, notifiers...)

	server := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Store:              res.Store,
		Ledger:             svc,
		Auditor:            ledger.NewAuditor(res.Store, cfg.AuditConcurrency),
		Budgets:            budgets,
		Verifier:           auth.NewVerifier(cfg.JWTSecret),
		Logger:             logger.WithComponent(log.ComponentHTTP),
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server", "timeout", cfg.ShutdownTimeout)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	start := time.Now()
	if err := g.Wait(); err != nil {
		logger.Error("Server stopped with error", log.FieldError, err.Error())
		return 1
	}
	logger.Info("Server exited", "uptime", time.Since(start).Round(time.Second))
	return 0
}
