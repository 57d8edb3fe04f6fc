package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/fixturekit/internal/canon"
	"github.com/roach88/fixturekit/internal/resolver"
	"github.com/roach88/fixturekit/internal/runner"
)

// WriteRun stores a finished report: the run row, every result and every
// closure, in one transaction. Writing the same run twice is a no-op.
func (s *Store) WriteRun(ctx context.Context, report *runner.Report) (err error) {
	digest, err := canon.RunDigest(report)
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write run: begin: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	counts := report.Counts()
	res, err := tx.ExecContext(ctx, `
		INSERT INTO runs
		(id, started_at, finished_at, digest, aborted, degraded, ok, total,
		 passed, failed, expected_failures, unexpected_passes, errors, skipped)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		report.RunID,
		formatTime(report.StartedAt),
		formatTime(report.FinishedAt),
		digest,
		boolInt(report.Aborted),
		boolInt(report.Degraded()),
		boolInt(report.OK()),
		len(report.Results),
		counts[runner.OutcomePassed],
		counts[runner.OutcomeFailed],
		counts[runner.OutcomeExpectedFailure],
		counts[runner.OutcomeUnexpectedPass],
		counts[runner.OutcomeError],
		counts[runner.OutcomeSkipped],
	)
	if err != nil {
		return fmt.Errorf("write run %s: %w", report.RunID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return tx.Commit()
	}

	for _, r := range report.Results {
		if err := writeResult(ctx, tx, report.RunID, r); err != nil {
			return err
		}
	}
	for i, c := range report.Closures {
		if err := writeClosure(ctx, tx, report.RunID, i, c); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write run %s: commit: %w", report.RunID, err)
	}
	return nil
}

func writeResult(ctx context.Context, tx *sql.Tx, runID string, r *runner.Result) error {
	id, err := canon.ResultID(runID, r)
	if err != nil {
		return fmt.Errorf("write result %s: %w", r.ID(), err)
	}
	markers, err := marshalStrings(r.Case.Markers.Names())
	if err != nil {
		return fmt.Errorf("write result %s: %w", r.ID(), err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO results
		(id, run_id, seq, test_id, outcome, attempts, duration_ns, reason, error, markers, output)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		id,
		runID,
		r.Seq,
		r.ID(),
		string(r.Outcome),
		r.Attempts,
		int64(r.Duration),
		r.Reason,
		r.Diagnostic(),
		markers,
		r.Output,
	)
	if err != nil {
		return fmt.Errorf("write result %s: %w", r.ID(), err)
	}
	return nil
}

func writeClosure(ctx context.Context, tx *sql.Tx, runID string, ordinal int, c resolver.ClosureReport) error {
	messages := make([]string, len(c.Errors))
	for i, e := range c.Errors {
		messages[i] = e.Error()
	}
	encoded, err := marshalStrings(messages)
	if err != nil {
		return fmt.Errorf("write closure %s: %w", c.Activation, err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO closures (run_id, ordinal, scope, activation, torn_down, errors)
		VALUES (?, ?, ?, ?, ?, ?)
	`, runID, ordinal, string(c.Activation.Scope), c.Activation.Key, c.TornDown, encoded)
	if err != nil {
		return fmt.Errorf("write closure %s: %w", c.Activation, err)
	}
	return nil
}
