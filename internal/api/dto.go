package api

import (
	"time"

	"github.com/bankfeedhq/camt54-sync-backend/internal/domain/statement"
	"github.com/bankfeedhq/camt54-sync-backend/internal/infrastructure/config"
)

// ConfigResponse is the API view of one import configuration. Folder paths
// stay server-side; they are operational detail, not dashboard data.
type ConfigResponse struct {
	Name            string `json:"name"`
	Active          bool   `json:"active"`
	JournalID       string `json:"journal_id"`
	CompanyID       string `json:"company_id"`
	AutoReconcile   bool   `json:"auto_reconcile"`
	ReconcileMethod string `json:"reconcile_method"`
	FilePattern     string `json:"file_pattern"`
}

// RunResponse reports one manually triggered import run.
type RunResponse struct {
	Config         string `json:"config"`
	FilesFound     int    `json:"files_found"`
	FilesProcessed int    `json:"files_processed"`
	FilesFailed    int    `json:"files_failed"`
}

// StatementResponse is the API view of one imported statement.
type StatementResponse struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	JournalID  string         `json:"journal_id"`
	CompanyID  string         `json:"company_id"`
	ImportedAt time.Time      `json:"imported_at"`
	Lines      []LineResponse `json:"lines"`
}

// LineResponse is the API view of one statement line.
type LineResponse struct {
	ID           string    `json:"id"`
	Amount       string    `json:"amount"`
	Currency     string    `json:"currency"`
	Reference    string    `json:"reference,omitempty"`
	Counterparty string    `json:"counterparty,omitempty"`
	Reconciled   bool      `json:"reconciled"`
	BookingDate  time.Time `json:"booking_date"`
}

func toConfigResponse(ic config.ImportConfig) ConfigResponse {
	return ConfigResponse{
		Name:            ic.Name,
		Active:          ic.Active,
		JournalID:       ic.JournalID,
		CompanyID:       ic.CompanyID,
		AutoReconcile:   ic.AutoReconcile,
		ReconcileMethod: string(ic.ReconcileMethod),
		FilePattern:     ic.FilePattern,
	}
}

func toStatementResponse(st *statement.Statement) StatementResponse {
	resp := StatementResponse{
		ID:         st.ID,
		Name:       st.Name,
		JournalID:  st.JournalID,
		CompanyID:  st.CompanyID,
		ImportedAt: st.ImportedAt,
		Lines:      make([]LineResponse, 0, len(st.Lines)),
	}
	for _, l := range st.Lines {
		resp.Lines = append(resp.Lines, LineResponse{
			ID:           l.ID,
			Amount:       l.Amount.String(),
			Currency:     l.Currency,
			Reference:    l.Reference,
			Counterparty: l.Counterparty,
			Reconciled:   l.Reconciled,
			BookingDate:  l.BookingDate,
		})
	}
	return resp
}
