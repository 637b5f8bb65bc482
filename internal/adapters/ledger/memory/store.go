// Package memory is an in-memory implementation of the ledger store
// contracts. It backs tests and the default wiring when no external ledger
// database is configured.
package memory

import (
	"context"
	"sync"

	"github.com/bankfeedhq/camt54-sync-backend/internal/domain/ledger"
)

// Store holds open ledger entries and documents in memory. It is safe for
// concurrent use; Settle is a conditional flip under the store lock, so two
// racing settles of one entry cannot both win.
type Store struct {
	mu        sync.Mutex
	entries   []*ledger.OpenLedgerEntry
	documents []*ledger.Document
	links     map[string]string // entryID -> lineID
}

// NewStore creates an empty in-memory ledger.
func NewStore() *Store {
	return &Store{links: make(map[string]string)}
}

// AddEntry registers an open ledger entry.
func (s *Store) AddEntry(entry ledger.OpenLedgerEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := entry
	s.entries = append(s.entries, &e)
}

// AddDocument registers a document. Its sub-lines are also visible to
// FindOpen so that settling through a document settles the shared entry.
func (s *Store) AddDocument(doc ledger.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := doc
	d.Lines = make([]ledger.OpenLedgerEntry, len(doc.Lines))
	copy(d.Lines, doc.Lines)
	s.documents = append(s.documents, &d)
}

// FindOpen returns unreconciled entries matching the filter, in insertion
// order. Copies are returned so callers cannot mutate store state.
func (s *Store) FindOpen(_ context.Context, filter ledger.EntryFilter) ([]ledger.OpenLedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []ledger.OpenLedgerEntry
	for _, e := range s.allEntriesLocked() {
		if e.Reconciled || !matches(*e, filter) {
			continue
		}
		result = append(result, *e)
	}
	return result, nil
}

// FindByReference returns documents with the given reference and company, in
// insertion order.
func (s *Store) FindByReference(_ context.Context, reference, companyID string) ([]ledger.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []ledger.Document
	for _, d := range s.documents {
		if d.Reference != reference || d.CompanyID != companyID {
			continue
		}
		result = append(result, *d)
	}
	return result, nil
}

// Settle flips the entry's reconciled flag and records the line link. The
// flip is conditional: an already-settled entry yields ErrAlreadySettled and
// no second link.
func (s *Store) Settle(_ context.Context, lineID, entryID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.allEntriesLocked() {
		if e.ID != entryID {
			continue
		}
		if e.Reconciled {
			return ledger.ErrAlreadySettled
		}
		e.Reconciled = true
		s.links[entryID] = lineID
		return nil
	}
	return ledger.ErrAlreadySettled
}

// LinkedLine reports which bank line settled the given entry.
func (s *Store) LinkedLine(entryID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lineID, ok := s.links[entryID]
	return lineID, ok
}

// allEntriesLocked iterates standalone entries then document sub-lines.
// Caller must hold s.mu.
func (s *Store) allEntriesLocked() []*ledger.OpenLedgerEntry {
	all := make([]*ledger.OpenLedgerEntry, 0, len(s.entries))
	all = append(all, s.entries...)
	for _, d := range s.documents {
		for i := range d.Lines {
			all = append(all, &d.Lines[i])
		}
	}
	return all
}

func matches(e ledger.OpenLedgerEntry, f ledger.EntryFilter) bool {
	if f.CompanyID != "" && e.CompanyID != f.CompanyID {
		return false
	}
	if f.Counterparty != "" && e.Counterparty != f.Counterparty {
		return false
	}
	if f.HasResidual && !e.Residual.Equal(f.Residual) {
		return false
	}
	if len(f.AccountTypes) > 0 {
		ok := false
		for _, t := range f.AccountTypes {
			if e.AccountType == t {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}

// Compile-time checks: Store satisfies both ledger contracts.
var (
	_ ledger.LedgerStore   = (*Store)(nil)
	_ ledger.DocumentStore = (*Store)(nil)
)
