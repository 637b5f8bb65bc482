// camt54d is the long-running import daemon: it polls every configured
// watch folder, imports new CAMT.054 files, reconciles them against the
// ledger and serves the HTTP API.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/bankfeedhq/camt54-sync-backend/internal/adapters/ledger/memory"
	"github.com/bankfeedhq/camt54-sync-backend/internal/adapters/ledger/postgres"
	"github.com/bankfeedhq/camt54-sync-backend/internal/api"
	"github.com/bankfeedhq/camt54-sync-backend/internal/application/importer"
	"github.com/bankfeedhq/camt54-sync-backend/internal/application/reconcile"
	"github.com/bankfeedhq/camt54-sync-backend/internal/domain/ledger"
	"github.com/bankfeedhq/camt54-sync-backend/internal/domain/recon"
	"github.com/bankfeedhq/camt54-sync-backend/internal/events"
	"github.com/bankfeedhq/camt54-sync-backend/internal/events/kafka"
	"github.com/bankfeedhq/camt54-sync-backend/internal/infrastructure/config"
	"github.com/bankfeedhq/camt54-sync-backend/internal/infrastructure/logging"
	"github.com/bankfeedhq/camt54-sync-backend/internal/infrastructure/storage"
)

func main() {
	configFile := flag.String("config", "", "Configuration file path")
	serveAPI := flag.Bool("api", true, "Serve the HTTP API")
	flag.Parse()

	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := loadConfig(*configFile)
	logger := logging.NewLoggerWithSystem(cfg.Observability.Logging, "camt54d")
	slog.SetDefault(logger)

	repo, err := storage.New(cfg.Storage.DatabasePath)
	if err != nil {
		logger.Error("failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer repo.Close()

	ledgerStore, docStore, closeLedger, err := openLedger(cfg.Ledger)
	if err != nil {
		logger.Error("failed to connect to ledger", "error", err)
		os.Exit(1)
	}
	defer closeLedger()

	var publisher events.Publisher = events.NopPublisher{}
	if cfg.Events.Enabled {
		kp := kafka.NewPublisher(cfg.Events.Brokers, cfg.Events.Topic)
		defer kp.Close()
		publisher = kp
		logger.Info("event publishing enabled", "brokers", cfg.Events.Brokers, "topic", cfg.Events.Topic)
	}

	matcher := recon.NewMatcher(ledgerStore, docStore)
	orchestrator := reconcile.NewOrchestrator(matcher, repo, logger)
	imp := importer.New(repo, orchestrator, publisher, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *serveAPI {
		server := api.NewServer(cfg, repo, imp, logger)
		go func() {
			if err := server.Start(ctx); err != nil {
				logger.Error("api server stopped", "error", err)
				stop()
			}
		}()
	}

	logger.Info("daemon started",
		"configs", len(cfg.Imports),
		"poll_interval", cfg.PollInterval.Std().String())

	runAll(ctx, imp, cfg, logger)

	ticker := time.NewTicker(cfg.PollInterval.Std())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down")
			return
		case <-ticker.C:
			runAll(ctx, imp, cfg, logger)
		}
	}
}

func runAll(ctx context.Context, imp *importer.Importer, cfg *config.Config, logger *slog.Logger) {
	for _, ic := range cfg.Imports {
		result, err := imp.ProcessConfiguration(ctx, ic)
		if err != nil {
			logger.Error("import run failed", "config", ic.Name, "error", err)
			continue
		}
		if result.FilesFound > 0 {
			logger.Info("import run finished",
				"config", ic.Name,
				"found", result.FilesFound,
				"processed", result.FilesProcessed,
				"failed", result.FilesFailed)
		}
	}
}

func loadConfig(path string) *config.Config {
	if path != "" {
		cfg, err := config.Load(path)
		if err != nil {
			slog.Error("failed to load configuration", "path", path, "error", err)
			os.Exit(1)
		}
		return cfg
	}
	return config.LoadOrEnv()
}

// openLedger connects the configured ledger backend. The memory driver is
// for local development and tests only.
func openLedger(cfg config.LedgerConfig) (ledger.LedgerStore, ledger.DocumentStore, func(), error) {
	switch cfg.Driver {
	case "postgres":
		store, err := postgres.Open(cfg.DSN)
		if err != nil {
			return nil, nil, nil, err
		}
		return store, store, func() { store.Close() }, nil
	default:
		store := memory.NewStore()
		return store, store, func() {}, nil
	}
}
