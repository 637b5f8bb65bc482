package storage

import (
	"context"

	"github.com/bankfeedhq/camt54-sync-backend/internal/domain/recon"
	"github.com/bankfeedhq/camt54-sync-backend/internal/domain/statement"
)

// Repository defines the complete storage interface. Keeping it an interface
// allows swapping implementations and makes testing with fakes easy.
type Repository interface {
	ImportLogRepository
	StatementRepository
	Close() error
}

// ImportLogRepository tracks file processing attempts.
type ImportLogRepository interface {
	// CreateImportLog inserts a new log record (normally in StateProcessing).
	CreateImportLog(ctx context.Context, log *ImportLog) error

	// UpdateImportLog persists the final state, counts and message of a log.
	UpdateImportLog(ctx context.Context, log *ImportLog) error

	// GetImportLog retrieves one log by id.
	GetImportLog(ctx context.Context, id string) (*ImportLog, error)

	// ListImportLogs returns logs newest first, honoring the filters.
	ListImportLogs(ctx context.Context, filters LogFilters) ([]*ImportLog, error)

	// GetStats returns aggregate statistics over all logs.
	GetStats(ctx context.Context) (*Stats, error)
}

// StatementRepository persists imported statements and their lines.
type StatementRepository interface {
	// SaveStatement inserts a statement with all its lines.
	SaveStatement(ctx context.Context, st *statement.Statement) error

	// GetStatement retrieves a statement with its lines.
	GetStatement(ctx context.Context, id string) (*statement.Statement, error)

	// MarkLineReconciled flips a line's reconciled flag and records the
	// matched entry and the strategy that found it.
	MarkLineReconciled(ctx context.Context, lineID, entryID string, strategy recon.Strategy) error
}
