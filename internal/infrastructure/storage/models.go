package storage

import "time"

// Log states mirror the lifecycle of one file import attempt.
const (
	StateProcessing = "processing"
	StateSuccess    = "success"
	StateError      = "error"
	StateWarning    = "warning"
)

// ImportLog is the audit record of one CAMT.054 file processing attempt.
type ImportLog struct {
	ID                     string    `json:"id"`
	ConfigName             string    `json:"config_name"`
	Filename               string    `json:"filename"`
	FilePath               string    `json:"file_path"`
	FileSize               int64     `json:"file_size"`
	State                  string    `json:"state"`
	Message                string    `json:"message"`
	ErrorDetails           string    `json:"error_details,omitempty"`
	StatementsCreated      int       `json:"statements_created"`
	TransactionsImported   int       `json:"transactions_imported"`
	TransactionsReconciled int       `json:"transactions_reconciled"`
	ProcessingMS           int64     `json:"processing_ms"`
	CreatedAt              time.Time `json:"created_at"`
	UpdatedAt              time.Time `json:"updated_at"`
}

// Stats aggregates import history for the API.
type Stats struct {
	TotalFiles             int `json:"total_files"`
	SuccessCount           int `json:"success_count"`
	ErrorCount             int `json:"error_count"`
	ProcessingCount        int `json:"processing_count"`
	StatementsCreated      int `json:"statements_created"`
	TransactionsImported   int `json:"transactions_imported"`
	TransactionsReconciled int `json:"transactions_reconciled"`
}

// LogFilters narrows ListImportLogs results.
type LogFilters struct {
	ConfigName string // empty = all
	State      string // empty = all
	Limit      int    // 0 = default 50
}
