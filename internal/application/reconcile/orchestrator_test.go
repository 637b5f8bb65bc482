package reconcile

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ledgermem "github.com/bankfeedhq/camt54-sync-backend/internal/adapters/ledger/memory"
	"github.com/bankfeedhq/camt54-sync-backend/internal/domain/ledger"
	"github.com/bankfeedhq/camt54-sync-backend/internal/domain/recon"
	"github.com/bankfeedhq/camt54-sync-backend/internal/domain/statement"
)

func money(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func testStatement(amounts ...string) *statement.Statement {
	st := &statement.Statement{ID: "st1", CompanyID: "co-a"}
	for i, a := range amounts {
		st.Lines = append(st.Lines, statement.Line{
			ID:        "line" + string(rune('1'+i)),
			Amount:    money(a),
			CompanyID: "co-a",
		})
	}
	return st
}

func seededStore(amounts ...string) *ledgermem.Store {
	store := ledgermem.NewStore()
	for i, a := range amounts {
		store.AddEntry(ledger.OpenLedgerEntry{
			ID:          "entry" + string(rune('1'+i)),
			AccountType: ledger.AccountReceivable,
			Residual:    money(a),
			CompanyID:   "co-a",
		})
	}
	return store
}

// erringMatcher fails for one specific line and delegates the rest.
type erringMatcher struct {
	inner      LineMatcher
	failLineID string
}

func (e *erringMatcher) Match(ctx context.Context, line statement.Line, strategy recon.Strategy) (recon.Outcome, error) {
	if line.ID == e.failLineID {
		return recon.Outcome{}, errors.New("query timed out")
	}
	return e.inner.Match(ctx, line, strategy)
}

// recordingRepo captures MarkLineReconciled calls.
type recordingRepo struct {
	marked map[string]string // lineID -> entryID
	err    error
}

func (r *recordingRepo) MarkLineReconciled(_ context.Context, lineID, entryID string, _ recon.Strategy) error {
	if r.err != nil {
		return r.err
	}
	if r.marked == nil {
		r.marked = make(map[string]string)
	}
	r.marked[lineID] = entryID
	return nil
}

func TestReconcileStatements_MatchesAndPersists(t *testing.T) {
	store := seededStore("10.00", "20.00")
	matcher := recon.NewMatcher(store, store)
	repo := &recordingRepo{}
	o := NewOrchestrator(matcher, repo, nil)

	st := testStatement("-10.00", "-20.00")
	tally := o.ReconcileStatements(context.Background(), []*statement.Statement{st}, recon.StrategyExactMatch)

	assert.Equal(t, 2, tally.LinesConsidered)
	assert.Equal(t, 2, tally.LinesReconciled)
	assert.Len(t, tally.Outcomes, 2)
	assert.True(t, st.Lines[0].Reconciled)
	assert.True(t, st.Lines[1].Reconciled)
	assert.Equal(t, "entry1", repo.marked["line1"])
	assert.Equal(t, "entry2", repo.marked["line2"])
}

func TestReconcileStatements_SecondPassIsNoOp(t *testing.T) {
	store := seededStore("10.00")
	matcher := recon.NewMatcher(store, store)
	o := NewOrchestrator(matcher, nil, nil)

	st := testStatement("10.00")
	batch := []*statement.Statement{st}

	first := o.ReconcileStatements(context.Background(), batch, recon.StrategyExactMatch)
	require.Equal(t, 1, first.LinesReconciled)

	second := o.ReconcileStatements(context.Background(), batch, recon.StrategyExactMatch)
	assert.Equal(t, 0, second.LinesConsidered)
	assert.Equal(t, 0, second.LinesReconciled)
}

func TestReconcileStatements_IsolatesPerLineFailures(t *testing.T) {
	store := seededStore("1.00", "2.00", "3.00", "4.00", "5.00")
	matcher := &erringMatcher{
		inner:      recon.NewMatcher(store, store),
		failLineID: "line3",
	}
	o := NewOrchestrator(matcher, nil, nil)

	st := testStatement("1.00", "2.00", "3.00", "4.00", "5.00")
	tally := o.ReconcileStatements(context.Background(), []*statement.Statement{st}, recon.StrategyExactMatch)

	// Line 3's failure costs only line 3.
	assert.Equal(t, 5, tally.LinesConsidered)
	assert.Equal(t, 4, tally.LinesReconciled)
	assert.False(t, st.Lines[2].Reconciled)
	for _, i := range []int{0, 1, 3, 4} {
		assert.True(t, st.Lines[i].Reconciled, "line %d", i+1)
	}
}

func TestReconcileStatements_RepoFailureDoesNotUndoMatch(t *testing.T) {
	store := seededStore("10.00")
	matcher := recon.NewMatcher(store, store)
	repo := &recordingRepo{err: errors.New("disk full")}
	o := NewOrchestrator(matcher, repo, nil)

	st := testStatement("10.00")
	tally := o.ReconcileStatements(context.Background(), []*statement.Statement{st}, recon.StrategyExactMatch)

	assert.Equal(t, 1, tally.LinesReconciled)
	assert.True(t, st.Lines[0].Reconciled)
}

func TestReconcileStatements_TwoLinesCannotShareOneEntry(t *testing.T) {
	// Both lines want the single 10.00 entry; processing is sequential, so
	// the first consumes it and the second sees nothing left.
	store := seededStore("10.00")
	matcher := recon.NewMatcher(store, store)
	o := NewOrchestrator(matcher, nil, nil)

	st := testStatement("10.00", "10.00")
	tally := o.ReconcileStatements(context.Background(), []*statement.Statement{st}, recon.StrategyExactMatch)

	assert.Equal(t, 2, tally.LinesConsidered)
	assert.Equal(t, 1, tally.LinesReconciled)
}
