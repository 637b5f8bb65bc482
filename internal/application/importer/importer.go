// Package importer drives the CAMT.054 file import pipeline: it discovers
// files in watch folders, decodes them into statements, persists them,
// optionally reconciles their lines against the ledger and files the
// processed inputs away.
package importer

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/bankfeedhq/camt54-sync-backend/internal/adapters/camt"
	"github.com/bankfeedhq/camt54-sync-backend/internal/application/reconcile"
	"github.com/bankfeedhq/camt54-sync-backend/internal/domain/statement"
	"github.com/bankfeedhq/camt54-sync-backend/internal/events"
	"github.com/bankfeedhq/camt54-sync-backend/internal/infrastructure/config"
	"github.com/bankfeedhq/camt54-sync-backend/internal/infrastructure/storage"
)

// Importer processes CAMT.054 files according to import configurations.
type Importer struct {
	repo      storage.Repository
	recon     *reconcile.Orchestrator
	publisher events.Publisher
	logger    *slog.Logger
	now       func() time.Time // swappable in tests
}

// New builds an Importer. The publisher may be nil; events are then skipped.
func New(repo storage.Repository, recon *reconcile.Orchestrator, publisher events.Publisher, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Importer{
		repo:      repo,
		recon:     recon,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// Result summarizes one ProcessConfiguration run.
type Result struct {
	FilesFound     int
	FilesProcessed int
	FilesFailed    int
}

// ProcessConfiguration scans the watch folder of cfg and processes every
// matching file. A failing file is logged and moved aside; it never stops
// the remaining files.
func (i *Importer) ProcessConfiguration(ctx context.Context, cfg config.ImportConfig) (Result, error) {
	var result Result

	if !cfg.Active {
		i.logger.Debug("skipping inactive configuration", "config", cfg.Name)
		return result, nil
	}

	info, err := os.Stat(cfg.WatchFolder)
	if err != nil {
		return result, fmt.Errorf("watch folder %q not accessible: %w", cfg.WatchFolder, err)
	}
	if !info.IsDir() {
		return result, fmt.Errorf("watch folder %q is not a directory", cfg.WatchFolder)
	}

	files, err := i.discoverFiles(cfg)
	if err != nil {
		return result, err
	}
	result.FilesFound = len(files)

	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if err := i.ProcessFile(ctx, cfg, path); err != nil {
			result.FilesFailed++
			i.logger.Error("file import failed",
				"config", cfg.Name,
				"file", path,
				"error", err)
			continue
		}
		result.FilesProcessed++
	}

	return result, nil
}

// discoverFiles lists files in the watch folder matching the configured
// pattern, recursing into subfolders when configured.
func (i *Importer) discoverFiles(cfg config.ImportConfig) ([]string, error) {
	pattern := cfg.FilePattern
	if pattern == "" {
		pattern = "*.xml"
	}

	var files []string
	if cfg.ProcessSubfolders {
		err := filepath.WalkDir(cfg.WatchFolder, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			ok, err := filepath.Match(pattern, d.Name())
			if err != nil {
				return err
			}
			if ok {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to walk watch folder: %w", err)
		}
		return files, nil
	}

	matches, err := filepath.Glob(filepath.Join(cfg.WatchFolder, pattern))
	if err != nil {
		return nil, fmt.Errorf("invalid file pattern %q: %w", pattern, err)
	}
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil || info.IsDir() {
			continue
		}
		files = append(files, m)
	}
	return files, nil
}

// ProcessFile imports a single CAMT.054 file: it records an import log,
// decodes the file into statements, saves them, reconciles when configured
// and finally moves (or deletes) the input.
func (i *Importer) ProcessFile(ctx context.Context, cfg config.ImportConfig, path string) error {
	started := i.now()

	log := &storage.ImportLog{
		ID:         uuid.New().String(),
		ConfigName: cfg.Name,
		Filename:   filepath.Base(path),
		FilePath:   path,
		State:      storage.StateProcessing,
	}
	if info, err := os.Stat(path); err == nil {
		log.FileSize = info.Size()
	}
	if err := i.repo.CreateImportLog(ctx, log); err != nil {
		return fmt.Errorf("failed to create import log: %w", err)
	}

	err := i.importFile(ctx, cfg, path, log)

	log.ProcessingMS = i.now().Sub(started).Milliseconds()
	if err != nil {
		log.State = storage.StateError
		log.Message = "import failed"
		log.ErrorDetails = err.Error()
	} else {
		log.State = storage.StateSuccess
		log.Message = fmt.Sprintf("imported %d statement(s), %d transaction(s), %d reconciled",
			log.StatementsCreated, log.TransactionsImported, log.TransactionsReconciled)
	}
	if uerr := i.repo.UpdateImportLog(ctx, log); uerr != nil {
		i.logger.Error("failed to finalize import log", "log_id", log.ID, "error", uerr)
	}

	if merr := i.fileAway(cfg, path, err == nil); merr != nil {
		i.logger.Error("failed to move processed file", "file", path, "error", merr)
	}

	i.publishOutcome(log)

	return err
}

// importFile does the decode / persist / reconcile work and fills the
// counters on log.
func (i *Importer) importFile(ctx context.Context, cfg config.ImportConfig, path string, log *storage.ImportLog) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	if !camt.Sniff(data) {
		return camt.ErrNotCAMT054
	}

	notifications, err := camt.Decode(data)
	if err != nil {
		return fmt.Errorf("failed to decode file: %w", err)
	}
	if len(notifications) == 0 {
		return fmt.Errorf("file contains no notifications")
	}

	statements := i.buildStatements(cfg, filepath.Base(path), notifications)
	for _, st := range statements {
		if err := i.repo.SaveStatement(ctx, st); err != nil {
			return fmt.Errorf("failed to save statement %s: %w", st.Name, err)
		}
		log.StatementsCreated++
		log.TransactionsImported += len(st.Lines)
	}

	if cfg.AutoReconcile && i.recon != nil {
		tally := i.recon.ReconcileStatements(ctx, statements, cfg.ReconcileMethod)
		log.TransactionsReconciled = tally.LinesReconciled
	}

	return nil
}

// buildStatements turns decoded notifications into one statement per
// notification, carrying the configured journal and company.
func (i *Importer) buildStatements(cfg config.ImportConfig, filename string, notifications []camt.Notification) []*statement.Statement {
	imported := i.now().UTC()
	statements := make([]*statement.Statement, 0, len(notifications))
	for _, n := range notifications {
		name := filename
		if n.ID != "" {
			name = fmt.Sprintf("%s (%s)", filename, n.ID)
		}
		st := &statement.Statement{
			ID:         uuid.New().String(),
			Name:       name,
			JournalID:  cfg.JournalID,
			CompanyID:  cfg.CompanyID,
			ImportedAt: imported,
		}
		for _, e := range n.Entries {
			st.Lines = append(st.Lines, statement.Line{
				ID:           uuid.New().String(),
				StatementID:  st.ID,
				Amount:       e.Amount,
				Currency:     e.Currency,
				Reference:    e.Reference,
				Counterparty: e.Counterparty,
				CompanyID:    cfg.CompanyID,
				BookingDate:  e.BookingDate,
			})
		}
		statements = append(statements, st)
	}
	return statements
}

// fileAway moves the processed file to the processed or error folder, or
// deletes it when the configuration says so. A missing destination folder
// is created on demand.
func (i *Importer) fileAway(cfg config.ImportConfig, path string, success bool) error {
	if success && cfg.DeleteAfterProcessing {
		return os.Remove(path)
	}

	dest := cfg.ErrorFolder
	if success {
		dest = cfg.ProcessedFolder
	}
	if dest == "" {
		// No destination configured: leave the file where it is.
		return nil
	}
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return err
	}

	target := filepath.Join(dest, filepath.Base(path))
	if _, err := os.Stat(target); err == nil {
		// Avoid clobbering a previous run's output.
		target = filepath.Join(dest, fmt.Sprintf("%d_%s", i.now().UnixNano(), filepath.Base(path)))
	}
	return os.Rename(path, target)
}

func (i *Importer) publishOutcome(log *storage.ImportLog) {
	event := events.FileProcessed{
		LogID:                  log.ID,
		ConfigName:             log.ConfigName,
		Filename:               log.Filename,
		State:                  log.State,
		StatementsCreated:      log.StatementsCreated,
		TransactionsImported:   log.TransactionsImported,
		TransactionsReconciled: log.TransactionsReconciled,
		ProcessedAt:            i.now().UTC(),
	}
	if err := i.publisher.Publish(events.TopicFileProcessed, event); err != nil {
		i.logger.Error("failed to publish event", "log_id", log.ID, "error", err)
	}
}

// Retry re-processes the file referenced by a failed import log. The file
// must still exist at its recorded path (typically the error folder).
func (i *Importer) Retry(ctx context.Context, cfg config.ImportConfig, logID string) error {
	log, err := i.repo.GetImportLog(ctx, logID)
	if err != nil {
		return err
	}
	if log.State != storage.StateError {
		return fmt.Errorf("log %s is in state %q, only error logs can be retried", logID, log.State)
	}

	path := log.FilePath
	if _, err := os.Stat(path); err != nil {
		// The failed file was moved to the error folder.
		alt := filepath.Join(cfg.ErrorFolder, log.Filename)
		if _, aerr := os.Stat(alt); aerr != nil {
			return fmt.Errorf("original file not found: %w", err)
		}
		path = alt
	}

	return i.ProcessFile(ctx, cfg, path)
}
