// Package statement holds the imported bank statement entities produced by
// the CAMT.054 import pipeline and consumed by the reconciliation engine.
package statement

import (
	"time"

	"github.com/shopspring/decimal"
)

// Statement is one imported bank statement.
type Statement struct {
	ID         string
	Name       string // usually the source filename
	JournalID  string
	CompanyID  string
	ImportedAt time.Time
	Lines      []Line
}

// Line is one bank transaction line of an imported statement.
//
// Reconciled is monotonic: the engine only ever flips it false -> true.
// Unreconciling is a manual, external operation.
type Line struct {
	ID           string
	StatementID  string
	Amount       decimal.Decimal // signed; negative = money out
	Currency     string
	Reference    string // bank-supplied, free-form, may be empty
	Counterparty string // resolved partner identifier, may be empty
	CompanyID    string
	Reconciled   bool
	BookingDate  time.Time
}

// UnreconciledLines returns every unreconciled line across the given
// statements, preserving statement and line order.
func UnreconciledLines(statements []Statement) []Line {
	var lines []Line
	for _, st := range statements {
		for _, l := range st.Lines {
			if !l.Reconciled {
				lines = append(lines, l)
			}
		}
	}
	return lines
}
