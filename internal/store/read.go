package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/fixturekit/internal/runner"
)

const runColumns = `id, started_at, finished_at, digest, aborted, degraded, ok, total,
	passed, failed, expected_failures, unexpected_passes, errors, skipped`

const resultColumns = `id, run_id, seq, test_id, outcome, attempts, duration_ns, reason, error, markers, output`

// ListRuns returns up to limit runs, newest first. A limit of zero or less
// returns every run.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+runColumns+`
		FROM runs
		ORDER BY started_at DESC, id COLLATE BINARY ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []RunSummary{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ReadRun returns one run, or ErrNotFound.
func (s *Store) ReadRun(ctx context.Context, id string) (RunSummary, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return RunSummary{}, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	return run, err
}

// ReadResults returns the results of a run in execution order.
func (s *Store) ReadResults(ctx context.Context, runID string) ([]ResultRecord, error) {
	return s.queryResults(ctx, `
		SELECT `+resultColumns+`
		FROM results
		WHERE run_id = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, runID)
}

// TestHistory returns the results of one test across runs, newest run
// first.
func (s *Store) TestHistory(ctx context.Context, testID string, limit int) ([]ResultRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	return s.queryResults(ctx, `
		SELECT r.id, r.run_id, r.seq, r.test_id, r.outcome, r.attempts, r.duration_ns,
		       r.reason, r.error, r.markers, r.output
		FROM results r
		JOIN runs ON runs.id = r.run_id
		WHERE r.test_id = ?
		ORDER BY runs.started_at DESC, r.run_id COLLATE BINARY ASC
		LIMIT ?
	`, testID, limit)
}

// ReadClosures returns the closed activations of a run in closing order.
func (s *Store) ReadClosures(ctx context.Context, runID string) ([]ClosureRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, ordinal, scope, activation, torn_down, errors
		FROM closures
		WHERE run_id = ?
		ORDER BY ordinal ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query closures: %w", err)
	}
	defer rows.Close()

	closures := []ClosureRecord{}
	for rows.Next() {
		var c ClosureRecord
		var errs string
		if err := rows.Scan(&c.RunID, &c.Ordinal, &c.Scope, &c.Activation, &c.TornDown, &errs); err != nil {
			return nil, fmt.Errorf("scan closure: %w", err)
		}
		if c.Errors, err = unmarshalStrings(errs); err != nil {
			return nil, err
		}
		closures = append(closures, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate closures: %w", err)
	}
	return closures, nil
}

func (s *Store) queryResults(ctx context.Context, query string, args ...any) ([]ResultRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	results := []ResultRecord{}
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate results: %w", err)
	}
	return results, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (RunSummary, error) {
	var (
		run                     RunSummary
		started, finished       string
		aborted, degraded, ok   int
		passed, failed, xfail   int
		xpass, errored, skipped int
	)
	err := row.Scan(&run.ID, &started, &finished, &run.Digest, &aborted, &degraded, &ok, &run.Total,
		&passed, &failed, &xfail, &xpass, &errored, &skipped)
	if errors.Is(err, sql.ErrNoRows) {
		return RunSummary{}, err
	}
	if err != nil {
		return RunSummary{}, fmt.Errorf("scan run: %w", err)
	}

	if run.StartedAt, err = parseTime(started); err != nil {
		return RunSummary{}, err
	}
	if run.FinishedAt, err = parseTime(finished); err != nil {
		return RunSummary{}, err
	}
	run.Aborted = aborted != 0
	run.Degraded = degraded != 0
	run.OK = ok != 0
	run.Counts = map[runner.Outcome]int{
		runner.OutcomePassed:          passed,
		runner.OutcomeFailed:          failed,
		runner.OutcomeExpectedFailure: xfail,
		runner.OutcomeUnexpectedPass:  xpass,
		runner.OutcomeError:           errored,
		runner.OutcomeSkipped:         skipped,
	}
	return run, nil
}

func scanResult(row scanner) (ResultRecord, error) {
	var (
		r        ResultRecord
		outcome  string
		duration int64
		markers  string
	)
	err := row.Scan(&r.ID, &r.RunID, &r.Seq, &r.TestID, &outcome, &r.Attempts, &duration,
		&r.Reason, &r.Error, &markers, &r.Output)
	if err != nil {
		return ResultRecord{}, fmt.Errorf("scan result: %w", err)
	}
	if r.Outcome, err = runner.ParseOutcome(outcome); err != nil {
		return ResultRecord{}, fmt.Errorf("result %s: %w", r.ID, err)
	}
	r.Duration = time.Duration(duration)
	if r.Markers, err = unmarshalStrings(markers); err != nil {
		return ResultRecord{}, err
	}
	return r, nil
}
