// Package reconcile applies the matching engine across imported statements.
//
// The orchestrator owns batch semantics: it walks every unreconciled line,
// isolates per-line failures so one bad line cannot abort the batch, and
// aggregates a tally for the import log.
package reconcile

import (
	"context"
	"log/slog"

	"github.com/bankfeedhq/camt54-sync-backend/internal/domain/recon"
	"github.com/bankfeedhq/camt54-sync-backend/internal/domain/statement"
)

// LineMatcher is the engine contract the orchestrator drives. Satisfied by
// *recon.Matcher.
type LineMatcher interface {
	Match(ctx context.Context, line statement.Line, strategy recon.Strategy) (recon.Outcome, error)
}

// LineRepository persists the reconciled flag of matched lines. Optional;
// when nil, only the in-memory statements are updated.
type LineRepository interface {
	MarkLineReconciled(ctx context.Context, lineID, entryID string, strategy recon.Strategy) error
}

// Tally aggregates one reconciliation batch. Outcomes carry the per-line
// detail long enough for the caller to log it.
type Tally struct {
	LinesConsidered int
	LinesReconciled int
	Outcomes        []recon.Outcome
}

// Orchestrator runs reconciliation over statement batches.
type Orchestrator struct {
	matcher LineMatcher
	repo    LineRepository
	logger  *slog.Logger
}

// NewOrchestrator creates an orchestrator. repo may be nil.
func NewOrchestrator(matcher LineMatcher, repo LineRepository, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{matcher: matcher, repo: repo, logger: logger}
}

// ReconcileStatements matches every unreconciled line across the given
// statements, sequentially, with the selected strategy.
//
// Per-line failures are logged and counted as unmatched; no error escapes.
// Lines already flagged reconciled are skipped, which makes a repeat run over
// the same statements a no-op.
func (o *Orchestrator) ReconcileStatements(ctx context.Context, statements []*statement.Statement, strategy recon.Strategy) Tally {
	var tally Tally

	for _, st := range statements {
		for i := range st.Lines {
			line := &st.Lines[i]
			if line.Reconciled {
				continue
			}
			tally.LinesConsidered++

			outcome, err := o.matcher.Match(ctx, *line, strategy)
			if err != nil {
				o.logger.Warn("error reconciling line",
					"line_id", line.ID,
					"statement_id", st.ID,
					"error", err,
				)
				tally.Outcomes = append(tally.Outcomes, recon.Outcome{LineID: line.ID, Strategy: strategy})
				continue
			}

			tally.Outcomes = append(tally.Outcomes, outcome)
			if !outcome.Matched {
				continue
			}

			line.Reconciled = true
			tally.LinesReconciled++

			if o.repo != nil {
				if err := o.repo.MarkLineReconciled(ctx, line.ID, outcome.EntryID, outcome.Strategy); err != nil {
					// The ledger side is already settled; losing the local
					// flag is recoverable on the next import pass.
					o.logger.Error("failed to persist reconciled flag",
						"line_id", line.ID,
						"entry_id", outcome.EntryID,
						"error", err,
					)
				}
			}
		}
	}

	return tally
}
