// Package recon implements the reconciliation matching engine: the policy
// that decides, for one unreconciled bank transaction line, which open
// ledger entry (if any) it settles.
//
// The engine is deliberately precision-over-recall: the amount-based
// strategies only match when exactly one candidate exists. An ambiguous
// result (two open entries with the same residual) is a no-match, never an
// arbitrary pick.
//
// Example usage:
//
//	m := recon.NewMatcher(entries, documents)
//	outcome, err := m.Match(ctx, line, recon.StrategySmartMatch)
//	if outcome.Matched {
//		// line was settled against outcome.EntryID
//	}
package recon

import (
	"context"
	"errors"

	"github.com/bankfeedhq/camt54-sync-backend/internal/domain/ledger"
	"github.com/bankfeedhq/camt54-sync-backend/internal/domain/statement"
)

// ErrLineReconciled reports a caller error: Match was handed a line that is
// already reconciled. Callers must filter these out first.
var ErrLineReconciled = errors.New("line is already reconciled")

// Outcome is the result of one matching attempt. No-match is a normal
// outcome, not an error.
type Outcome struct {
	LineID   string
	Matched  bool
	EntryID  string // set only when Matched
	Strategy Strategy
}

// Matcher finds and settles at most one ledger entry per bank line.
type Matcher struct {
	entries   ledger.LedgerStore
	documents ledger.DocumentStore
}

// NewMatcher creates a matcher over the given ledger collaborators.
func NewMatcher(entries ledger.LedgerStore, documents ledger.DocumentStore) *Matcher {
	return &Matcher{entries: entries, documents: documents}
}

// Match runs one strategy against one line. On a match the settlement has
// already happened when Match returns; on no-match nothing was mutated.
// Errors are query/transport failures only.
func (m *Matcher) Match(ctx context.Context, line statement.Line, strategy Strategy) (Outcome, error) {
	if line.Reconciled {
		return Outcome{}, ErrLineReconciled
	}

	switch strategy {
	case StrategyExactMatch:
		return m.exactMatch(ctx, line)
	case StrategyReferenceMatch:
		return m.referenceMatch(ctx, line)
	case StrategyPartnerAmount:
		return m.partnerAmount(ctx, line)
	case StrategySmartMatch:
		return m.smartMatch(ctx, line)
	default:
		return Outcome{}, errors.New("unknown strategy: " + string(strategy))
	}
}

// exactMatch settles against the single open receivable/payable whose
// residual magnitude equals the line amount. Zero or several candidates is a
// no-match.
func (m *Matcher) exactMatch(ctx context.Context, line statement.Line) (Outcome, error) {
	candidates, err := m.entries.FindOpen(ctx, ledger.EntryFilter{
		AccountTypes: []ledger.AccountType{ledger.AccountReceivable, ledger.AccountPayable},
		Residual:     line.Amount.Abs(),
		HasResidual:  true,
		CompanyID:    line.CompanyID,
	})
	if err != nil {
		return Outcome{}, err
	}
	if len(candidates) != 1 {
		return m.noMatch(line, StrategyExactMatch), nil
	}
	return m.settle(ctx, line, candidates[0].ID, StrategyExactMatch)
}

// referenceMatch walks documents carrying the line's reference, in the
// store's natural order, and settles the first whose first open sub-line has
// the right residual magnitude.
//
// Only the first open sub-line of each document is considered; a later
// sub-line with a matching amount is ignored. That limitation is inherited
// behavior and kept on purpose.
func (m *Matcher) referenceMatch(ctx context.Context, line statement.Line) (Outcome, error) {
	if line.Reference == "" {
		return m.noMatch(line, StrategyReferenceMatch), nil
	}

	docs, err := m.documents.FindByReference(ctx, line.Reference, line.CompanyID)
	if err != nil {
		return Outcome{}, err
	}

	want := line.Amount.Abs()
	for _, doc := range docs {
		if doc.Status != ledger.DocumentPosted {
			continue
		}
		if doc.PaymentStatus != ledger.PaymentNotPaid && doc.PaymentStatus != ledger.PaymentPartial {
			continue
		}
		entry, ok := doc.FirstOpenLine()
		if !ok || !entry.Residual.Equal(want) {
			continue
		}
		return m.settle(ctx, line, entry.ID, StrategyReferenceMatch)
	}
	return m.noMatch(line, StrategyReferenceMatch), nil
}

// partnerAmount is exactMatch narrowed to the line's counterparty. Requires
// a resolved counterparty and, again, exactly one candidate.
func (m *Matcher) partnerAmount(ctx context.Context, line statement.Line) (Outcome, error) {
	if line.Counterparty == "" {
		return m.noMatch(line, StrategyPartnerAmount), nil
	}

	candidates, err := m.entries.FindOpen(ctx, ledger.EntryFilter{
		AccountTypes: []ledger.AccountType{ledger.AccountReceivable, ledger.AccountPayable},
		Residual:     line.Amount.Abs(),
		HasResidual:  true,
		Counterparty: line.Counterparty,
		CompanyID:    line.CompanyID,
	})
	if err != nil {
		return Outcome{}, err
	}
	if len(candidates) != 1 {
		return m.noMatch(line, StrategyPartnerAmount), nil
	}
	return m.settle(ctx, line, candidates[0].ID, StrategyPartnerAmount)
}

// smartMatch chains the strategies strongest-signal first: a confirmed
// reference beats counterparty+amount, which beats a bare amount match.
func (m *Matcher) smartMatch(ctx context.Context, line statement.Line) (Outcome, error) {
	outcome, err := m.referenceMatch(ctx, line)
	if err != nil || outcome.Matched {
		return outcome, err
	}

	outcome, err = m.partnerAmount(ctx, line)
	if err != nil || outcome.Matched {
		return outcome, err
	}

	return m.exactMatch(ctx, line)
}

// settle performs the match side effect. A settle failure means the entry
// was taken concurrently (or the store refused the link); the line is left
// unmatched for this pass and a later run will re-query fresh state.
func (m *Matcher) settle(ctx context.Context, line statement.Line, entryID string, strategy Strategy) (Outcome, error) {
	if err := m.entries.Settle(ctx, line.ID, entryID); err != nil {
		return m.noMatch(line, strategy), nil
	}
	return Outcome{
		LineID:   line.ID,
		Matched:  true,
		EntryID:  entryID,
		Strategy: strategy,
	}, nil
}

func (m *Matcher) noMatch(line statement.Line, strategy Strategy) Outcome {
	return Outcome{LineID: line.ID, Strategy: strategy}
}
