// Package postgres implements the ledger store contracts against a Postgres
// ledger database. The ledger is an external system of record; this adapter
// only queries open items and performs the conditional settlement update.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/lib/pq"

	"github.com/bankfeedhq/camt54-sync-backend/internal/domain/ledger"
)

// Store is a database/sql backed ledger store.
type Store struct {
	db *sql.DB
}

// Open connects to the ledger database.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open ledger database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping ledger database: %w", err)
	}
	return &Store{db: db}, nil
}

// NewStore wraps an existing connection pool.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// FindOpen returns unreconciled entries matching the filter, ordered by id
// for a stable natural order.
func (s *Store) FindOpen(ctx context.Context, filter ledger.EntryFilter) ([]ledger.OpenLedgerEntry, error) {
	query := strings.Builder{}
	query.WriteString(`SELECT id, account_type, residual, reconciled, document_id, counterparty, company_id
	FROM ledger_entries WHERE reconciled = false`)

	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.CompanyID != "" {
		query.WriteString(" AND company_id = " + arg(filter.CompanyID))
	}
	if filter.Counterparty != "" {
		query.WriteString(" AND counterparty = " + arg(filter.Counterparty))
	}
	if filter.HasResidual {
		query.WriteString(" AND residual = " + arg(filter.Residual.String()))
	}
	if len(filter.AccountTypes) > 0 {
		placeholders := make([]string, len(filter.AccountTypes))
		for i, t := range filter.AccountTypes {
			placeholders[i] = arg(string(t))
		}
		query.WriteString(" AND account_type IN (" + strings.Join(placeholders, ", ") + ")")
	}
	query.WriteString(" ORDER BY id")

	rows, err := s.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("query open entries: %w", err)
	}
	defer rows.Close()

	var entries []ledger.OpenLedgerEntry
	for rows.Next() {
		var e ledger.OpenLedgerEntry
		var documentID, counterparty sql.NullString
		if err := rows.Scan(&e.ID, &e.AccountType, &e.Residual, &e.Reconciled, &documentID, &counterparty, &e.CompanyID); err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		e.DocumentID = documentID.String
		e.Counterparty = counterparty.String
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// FindByReference returns posted documents carrying the reference, each with
// its sub-lines in document order.
func (s *Store) FindByReference(ctx context.Context, reference, companyID string) ([]ledger.Document, error) {
	const query = `SELECT id, reference, status, payment_status, company_id
	FROM documents WHERE reference = $1 AND company_id = $2 ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, reference, companyID)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	var docs []ledger.Document
	for rows.Next() {
		var d ledger.Document
		if err := rows.Scan(&d.ID, &d.Reference, &d.Status, &d.PaymentStatus, &d.CompanyID); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range docs {
		lines, err := s.documentLines(ctx, docs[i].ID)
		if err != nil {
			return nil, err
		}
		docs[i].Lines = lines
	}
	return docs, nil
}

func (s *Store) documentLines(ctx context.Context, documentID string) ([]ledger.OpenLedgerEntry, error) {
	const query = `SELECT id, account_type, residual, reconciled, document_id, counterparty, company_id
	FROM ledger_entries WHERE document_id = $1 ORDER BY line_no`

	rows, err := s.db.QueryContext(ctx, query, documentID)
	if err != nil {
		return nil, fmt.Errorf("query document lines: %w", err)
	}
	defer rows.Close()

	var lines []ledger.OpenLedgerEntry
	for rows.Next() {
		var e ledger.OpenLedgerEntry
		var docID, counterparty sql.NullString
		if err := rows.Scan(&e.ID, &e.AccountType, &e.Residual, &e.Reconciled, &docID, &counterparty, &e.CompanyID); err != nil {
			return nil, fmt.Errorf("scan document line: %w", err)
		}
		e.DocumentID = docID.String
		e.Counterparty = counterparty.String
		lines = append(lines, e)
	}
	return lines, rows.Err()
}

// Settle flips the entry to reconciled and records the settlement link in a
// single transaction. The UPDATE is conditional on reconciled = false, so a
// concurrent settle of the same entry affects zero rows and loses.
func (s *Store) Settle(ctx context.Context, lineID, entryID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin settle: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx,
		`UPDATE ledger_entries SET reconciled = true WHERE id = $1 AND reconciled = false`, entryID)
	if err != nil {
		return fmt.Errorf("settle entry: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		err = ledger.ErrAlreadySettled
		return err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO settlements (entry_id, line_id, settled_at) VALUES ($1, $2, now())`, entryID, lineID)
	if err != nil {
		return fmt.Errorf("record settlement link: %w", err)
	}

	err = tx.Commit()
	return err
}

var (
	_ ledger.LedgerStore   = (*Store)(nil)
	_ ledger.DocumentStore = (*Store)(nil)
)
