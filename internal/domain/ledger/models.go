// Package ledger defines the open-item ledger entities the reconciliation
// engine matches against, and the store contracts an external ledger system
// must satisfy. The engine only reads these entities; settlement is the one
// mutation, and it is owned by the store.
package ledger

import (
	"github.com/shopspring/decimal"
)

// AccountType classifies an open ledger entry.
type AccountType string

const (
	AccountReceivable AccountType = "receivable"
	AccountPayable    AccountType = "payable"
)

// DocumentStatus is the posting state of an owning document (invoice, bill).
type DocumentStatus string

const (
	DocumentDraft  DocumentStatus = "draft"
	DocumentPosted DocumentStatus = "posted"
)

// PaymentStatus tracks how much of a document has been paid.
type PaymentStatus string

const (
	PaymentNotPaid PaymentStatus = "not_paid"
	PaymentPartial PaymentStatus = "partial"
	PaymentPaid    PaymentStatus = "paid"
)

// OpenLedgerEntry is one outstanding receivable or payable line.
// Residual is the magnitude still owed and is never negative.
type OpenLedgerEntry struct {
	ID           string
	AccountType  AccountType
	Residual     decimal.Decimal
	Reconciled   bool
	DocumentID   string
	Counterparty string
	CompanyID    string
}

// Document is an owning accounting document (typically an invoice) with its
// receivable/payable sub-lines in the document's own order.
type Document struct {
	ID            string
	Reference     string
	Status        DocumentStatus
	PaymentStatus PaymentStatus
	CompanyID     string
	Lines         []OpenLedgerEntry
}

// FirstOpenLine returns the document's first unreconciled receivable/payable
// sub-line, in document order. The second return is false when none is open.
func (d Document) FirstOpenLine() (OpenLedgerEntry, bool) {
	for _, l := range d.Lines {
		if l.Reconciled {
			continue
		}
		if l.AccountType != AccountReceivable && l.AccountType != AccountPayable {
			continue
		}
		return l, true
	}
	return OpenLedgerEntry{}, false
}

// EntryFilter is a conjunction of predicates for FindOpen. Zero values mean
// "no constraint" except CompanyID, which callers must always set: queries
// never cross company scope.
type EntryFilter struct {
	AccountTypes []AccountType
	Residual     decimal.Decimal // magnitude; compared exactly
	HasResidual  bool            // Residual participates only when true
	Counterparty string
	CompanyID    string
}
