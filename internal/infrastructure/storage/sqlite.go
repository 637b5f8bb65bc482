package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/bankfeedhq/camt54-sync-backend/internal/domain/recon"
	"github.com/bankfeedhq/camt54-sync-backend/internal/domain/statement"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// Storage is the SQLite-backed Repository implementation.
type Storage struct {
	db *sql.DB
}

var _ Repository = (*Storage)(nil)

// New opens (or creates) the SQLite database at dbPath and applies
// any pending migrations.
func New(dbPath string) (*Storage, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec(`PRAGMA foreign_keys = ON`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s := &Storage{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the underlying database handle.
func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) CreateImportLog(ctx context.Context, log *ImportLog) error {
	now := time.Now().UTC()
	if log.CreatedAt.IsZero() {
		log.CreatedAt = now
	}
	log.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO import_logs (
			id, config_name, filename, file_path, file_size, state, message,
			error_details, statements_created, transactions_imported,
			transactions_reconciled, processing_ms, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		log.ID, log.ConfigName, log.Filename, log.FilePath, log.FileSize,
		log.State, log.Message, log.ErrorDetails, log.StatementsCreated,
		log.TransactionsImported, log.TransactionsReconciled, log.ProcessingMS,
		log.CreatedAt, log.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create import log: %w", err)
	}
	return nil
}

func (s *Storage) UpdateImportLog(ctx context.Context, log *ImportLog) error {
	log.UpdatedAt = time.Now().UTC()

	res, err := s.db.ExecContext(ctx, `
		UPDATE import_logs SET
			state = ?, message = ?, error_details = ?, statements_created = ?,
			transactions_imported = ?, transactions_reconciled = ?,
			processing_ms = ?, updated_at = ?
		WHERE id = ?`,
		log.State, log.Message, log.ErrorDetails, log.StatementsCreated,
		log.TransactionsImported, log.TransactionsReconciled, log.ProcessingMS,
		log.UpdatedAt, log.ID)
	if err != nil {
		return fmt.Errorf("failed to update import log: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Storage) GetImportLog(ctx context.Context, id string) (*ImportLog, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, config_name, filename, file_path, file_size, state, message,
			error_details, statements_created, transactions_imported,
			transactions_reconciled, processing_ms, created_at, updated_at
		FROM import_logs WHERE id = ?`, id)

	log, err := scanImportLog(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get import log: %w", err)
	}
	return log, nil
}

func (s *Storage) ListImportLogs(ctx context.Context, filters LogFilters) ([]*ImportLog, error) {
	query := `
		SELECT id, config_name, filename, file_path, file_size, state, message,
			error_details, statements_created, transactions_imported,
			transactions_reconciled, processing_ms, created_at, updated_at
		FROM import_logs WHERE 1=1`
	var args []any

	if filters.ConfigName != "" {
		query += ` AND config_name = ?`
		args = append(args, filters.ConfigName)
	}
	if filters.State != "" {
		query += ` AND state = ?`
		args = append(args, filters.State)
	}

	limit := filters.Limit
	if limit <= 0 {
		limit = 50
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list import logs: %w", err)
	}
	defer rows.Close()

	var logs []*ImportLog
	for rows.Next() {
		log, err := scanImportLog(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan import log: %w", err)
		}
		logs = append(logs, log)
	}
	return logs, rows.Err()
}

func (s *Storage) GetStats(ctx context.Context) (*Stats, error) {
	var stats Stats
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN state = 'success' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN state = 'error' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN state = 'processing' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(statements_created), 0),
			COALESCE(SUM(transactions_imported), 0),
			COALESCE(SUM(transactions_reconciled), 0)
		FROM import_logs`).Scan(
		&stats.TotalFiles, &stats.SuccessCount, &stats.ErrorCount,
		&stats.ProcessingCount, &stats.StatementsCreated,
		&stats.TransactionsImported, &stats.TransactionsReconciled)
	if err != nil {
		return nil, fmt.Errorf("failed to get stats: %w", err)
	}
	return &stats, nil
}

func (s *Storage) SaveStatement(ctx context.Context, st *statement.Statement) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO statements (id, name, journal_id, company_id, imported_at)
		VALUES (?, ?, ?, ?, ?)`,
		st.ID, st.Name, st.JournalID, st.CompanyID, st.ImportedAt)
	if err != nil {
		return fmt.Errorf("failed to insert statement: %w", err)
	}

	for i := range st.Lines {
		l := &st.Lines[i]
		_, err = tx.ExecContext(ctx, `
			INSERT INTO statement_lines (
				id, statement_id, amount, currency, reference, counterparty,
				company_id, reconciled, booking_date
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			l.ID, st.ID, l.Amount.String(), l.Currency, l.Reference,
			l.Counterparty, l.CompanyID, boolToInt(l.Reconciled), l.BookingDate)
		if err != nil {
			return fmt.Errorf("failed to insert statement line: %w", err)
		}
	}

	err = tx.Commit()
	return err
}

func (s *Storage) GetStatement(ctx context.Context, id string) (*statement.Statement, error) {
	var st statement.Statement
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, journal_id, company_id, imported_at
		FROM statements WHERE id = ?`, id).Scan(
		&st.ID, &st.Name, &st.JournalID, &st.CompanyID, &st.ImportedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get statement: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, statement_id, amount, currency, reference, counterparty,
			company_id, reconciled, booking_date
		FROM statement_lines WHERE statement_id = ? ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get statement lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			l        statement.Line
			amount   string
			reconInt int
		)
		if err := rows.Scan(&l.ID, &l.StatementID, &amount, &l.Currency,
			&l.Reference, &l.Counterparty, &l.CompanyID, &reconInt,
			&l.BookingDate); err != nil {
			return nil, fmt.Errorf("failed to scan statement line: %w", err)
		}
		l.Amount, err = decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("invalid stored amount %q: %w", amount, err)
		}
		l.Reconciled = reconInt != 0
		st.Lines = append(st.Lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *Storage) MarkLineReconciled(ctx context.Context, lineID, entryID string, strategy recon.Strategy) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE statement_lines
		SET reconciled = 1, matched_entry_id = ?, strategy = ?
		WHERE id = ?`,
		entryID, string(strategy), lineID)
	if err != nil {
		return fmt.Errorf("failed to mark line reconciled: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanImportLog(row scanner) (*ImportLog, error) {
	var log ImportLog
	err := row.Scan(
		&log.ID, &log.ConfigName, &log.Filename, &log.FilePath, &log.FileSize,
		&log.State, &log.Message, &log.ErrorDetails, &log.StatementsCreated,
		&log.TransactionsImported, &log.TransactionsReconciled,
		&log.ProcessingMS, &log.CreatedAt, &log.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &log, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
