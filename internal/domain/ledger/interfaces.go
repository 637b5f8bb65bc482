package ledger

import (
	"context"
	"errors"
)

// ErrAlreadySettled is returned by Settle when the target entry was settled
// by someone else first. Callers treat it as a lost race, not a fault.
var ErrAlreadySettled = errors.New("ledger entry already settled")

// LedgerStore is the query/settlement contract of the external ledger.
//
// FindOpen returns unreconciled entries matching the filter, in the store's
// natural order. Settle links a bank transaction line to an entry and flips
// the entry's reconciled flag; it must be an atomic conditional update
// (reconciled=false -> true) so that two concurrent settles of the same entry
// cannot both succeed, and the loser gets ErrAlreadySettled.
type LedgerStore interface {
	FindOpen(ctx context.Context, filter EntryFilter) ([]OpenLedgerEntry, error)
	Settle(ctx context.Context, lineID, entryID string) error
}

// DocumentStore looks up owning documents by their bank-visible reference.
// Results come back in the store's natural order; the reconciliation engine
// relies on that order rather than re-ranking.
type DocumentStore interface {
	FindByReference(ctx context.Context, reference, companyID string) ([]Document, error)
}
