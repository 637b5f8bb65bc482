// camt54-api serves the HTTP API standalone, without the polling daemon.
// Imports can still be triggered manually through the API.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/bankfeedhq/camt54-sync-backend/internal/adapters/ledger/memory"
	"github.com/bankfeedhq/camt54-sync-backend/internal/adapters/ledger/postgres"
	"github.com/bankfeedhq/camt54-sync-backend/internal/api"
	"github.com/bankfeedhq/camt54-sync-backend/internal/application/importer"
	"github.com/bankfeedhq/camt54-sync-backend/internal/application/reconcile"
	"github.com/bankfeedhq/camt54-sync-backend/internal/domain/ledger"
	"github.com/bankfeedhq/camt54-sync-backend/internal/domain/recon"
	"github.com/bankfeedhq/camt54-sync-backend/internal/infrastructure/config"
	"github.com/bankfeedhq/camt54-sync-backend/internal/infrastructure/logging"
	"github.com/bankfeedhq/camt54-sync-backend/internal/infrastructure/storage"
)

func main() {
	configFile := flag.String("config", "", "Configuration file path")
	flag.Parse()

	_ = godotenv.Load()

	cfg := loadConfig(*configFile)
	logger := logging.NewLoggerWithSystem(cfg.Observability.Logging, "api")
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

	matcher := recon.NewMatcher(ledgerStore, docStore)
	orchestrator := reconcile.NewOrchestrator(matcher, repo, logger)
	imp := importer.New(repo, orchestrator, nil, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := api.NewServer(cfg, repo, imp, logger)
	if err := server.Start(ctx); err != nil {
		logger.Error("api server stopped", "error", err)
		os.Exit(1)
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
