// camt54-import runs a one-shot import: either a single file or one full
// pass over a configuration's watch folder. Useful for backfills and for
// testing a configuration before enabling the daemon.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/bankfeedhq/camt54-sync-backend/internal/adapters/ledger/memory"
	"github.com/bankfeedhq/camt54-sync-backend/internal/adapters/ledger/postgres"
	"github.com/bankfeedhq/camt54-sync-backend/internal/application/importer"
	"github.com/bankfeedhq/camt54-sync-backend/internal/application/reconcile"
	"github.com/bankfeedhq/camt54-sync-backend/internal/domain/ledger"
	"github.com/bankfeedhq/camt54-sync-backend/internal/domain/recon"
	"github.com/bankfeedhq/camt54-sync-backend/internal/infrastructure/config"
	"github.com/bankfeedhq/camt54-sync-backend/internal/infrastructure/logging"
	"github.com/bankfeedhq/camt54-sync-backend/internal/infrastructure/storage"
)

func main() {
	var (
		configFile = flag.String("config", "", "Configuration file path")
		importName = flag.String("name", "", "Import configuration name (required)")
		file       = flag.String("file", "", "Import a single file instead of scanning the watch folder")
		verbose    = flag.Bool("verbose", false, "Enable verbose logging")
	)
	flag.Parse()

	_ = godotenv.Load()

	cfg := loadConfig(*configFile)
	if *verbose {
		cfg.Observability.Logging.Level = "debug"
	}
	logger := logging.NewLoggerWithSystem(cfg.Observability.Logging, "import")
	slog.SetDefault(logger)

	if *importName == "" {
		fmt.Fprintln(os.Stderr, "usage: camt54-import -name <config> [-file <path>]")
		flag.PrintDefaults()
		os.Exit(2)
	}

	ic, ok := cfg.ImportByName(*importName)
	if !ok {
		logger.Error("unknown import configuration", "name", *importName)
		os.Exit(1)
	}

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

	ctx := context.Background()

	if *file != "" {
		if err := imp.ProcessFile(ctx, ic, *file); err != nil {
			logger.Error("import failed", "file", *file, "error", err)
			os.Exit(1)
		}
		logger.Info("import finished", "file", *file)
		return
	}

	result, err := imp.ProcessConfiguration(ctx, ic)
	if err != nil {
		logger.Error("import run failed", "config", ic.Name, "error", err)
		os.Exit(1)
	}
	logger.Info("import run finished",
		"config", ic.Name,
		"found", result.FilesFound,
		"processed", result.FilesProcessed,
		"failed", result.FilesFailed)
	if result.FilesFailed > 0 {
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
