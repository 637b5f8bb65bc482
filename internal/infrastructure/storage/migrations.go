package storage

import (
	"database/sql"
	"fmt"
)

// Migration represents a database schema migration.
type Migration struct {
	Version int
	Name    string
	Up      func(*sql.Tx) error
}

// allMigrations defines all migrations in order.
var allMigrations = []Migration{
	{
		Version: 1,
		Name:    "import_logs",
		Up:      migration001ImportLogs,
	},
	{
		Version: 2,
		Name:    "statements",
		Up:      migration002Statements,
	},
}

// runMigrations executes all pending migrations.
func (s *Storage) runMigrations() error {
	if err := s.ensureMigrationsTable(); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := s.getAppliedMigrations()
	if err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}

	for _, migration := range allMigrations {
		if applied[migration.Version] {
			continue
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction for migration %d: %w", migration.Version, err)
		}

		if err := migration.Up(tx); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d (%s) failed: %w", migration.Version, migration.Name, err)
		}

		if _, err := tx.Exec(`INSERT INTO schema_migrations (version, name) VALUES (?, ?)`,
			migration.Version, migration.Name); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}

func (s *Storage) ensureMigrationsTable() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`)
	return err
}

func (s *Storage) getAppliedMigrations() (map[int]bool, error) {
	rows, err := s.db.Query(`SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

func migration001ImportLogs(tx *sql.Tx) error {
	_, err := tx.Exec(`
	CREATE TABLE import_logs (
		id TEXT PRIMARY KEY,
		config_name TEXT NOT NULL,
		filename TEXT NOT NULL,
		file_path TEXT,
		file_size INTEGER DEFAULT 0,
		state TEXT NOT NULL DEFAULT 'processing',
		message TEXT,
		error_details TEXT,
		statements_created INTEGER DEFAULT 0,
		transactions_imported INTEGER DEFAULT 0,
		transactions_reconciled INTEGER DEFAULT 0,
		processing_ms INTEGER DEFAULT 0,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);
	CREATE INDEX idx_import_logs_config ON import_logs(config_name);
	CREATE INDEX idx_import_logs_state ON import_logs(state);
	`)
	return err
}

func migration002Statements(tx *sql.Tx) error {
	_, err := tx.Exec(`
	CREATE TABLE statements (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		journal_id TEXT,
		company_id TEXT NOT NULL,
		imported_at TIMESTAMP NOT NULL
	);
	CREATE TABLE statement_lines (
		id TEXT PRIMARY KEY,
		statement_id TEXT NOT NULL REFERENCES statements(id),
		amount TEXT NOT NULL,
		currency TEXT,
		reference TEXT,
		counterparty TEXT,
		company_id TEXT NOT NULL,
		reconciled INTEGER NOT NULL DEFAULT 0,
		matched_entry_id TEXT,
		strategy TEXT,
		booking_date TIMESTAMP
	);
	CREATE INDEX idx_statement_lines_statement ON statement_lines(statement_id);
	CREATE INDEX idx_statement_lines_reconciled ON statement_lines(reconciled);
	`)
	return err
}
