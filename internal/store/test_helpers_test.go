package store

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/fixturekit/internal/fixture"
	"github.com/roach88/fixturekit/internal/marker"
	"github.com/roach88/fixturekit/internal/resolver"
	"github.com/roach88/fixturekit/internal/runner"
	"github.com/roach88/fixturekit/internal/testcase"
)

// createTestStore creates a store in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "history.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

var epoch = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

// createTestReport builds a report with a passing, a failing and an
// expected-failure result, and one class activation whose teardown
// failed.
func createTestReport(runID string, startedAt time.Time) *runner.Report {
	class := resolver.ActivationKey{Scope: fixture.ScopeClass, Key: "fixture10::TestMainPage1"}
	teardownErr := &resolver.TeardownError{Fixture: "browser", Activation: class, Err: errors.New("quit: session gone")}

	mk := func(seq int64, name string, outcome runner.Outcome, err error, markers ...marker.Marker) *runner.Result {
		return &runner.Result{
			Seq:      seq,
			Case:     &testcase.Case{ID: "fixture10::TestMainPage1::" + name, Name: name, Markers: markers},
			Outcome:  outcome,
			Err:      err,
			Attempts: 1,
			Duration: time.Duration(seq) * time.Millisecond,
		}
	}

	last := mk(9, "join_now", runner.OutcomeExpectedFailure, errors.New("no such element"), marker.XFail("no button"))
	last.Reason = "no button"
	last.TeardownErrors = []*resolver.TeardownError{teardownErr}

	return &runner.Report{
		RunID:      runID,
		StartedAt:  startedAt,
		FinishedAt: startedAt.Add(2 * time.Second),
		Results: []*runner.Result{
			mk(3, "banner", runner.OutcomePassed, nil, marker.Tag("smoke")),
			mk(6, "elements", runner.OutcomeFailed, errors.New("ASSERTION_FAILED: expected 15, got 10")),
			last,
		},
		Closures: []resolver.ClosureReport{
			{Activation: class, TornDown: 1, Errors: []*resolver.TeardownError{teardownErr}},
			{Activation: resolver.ActivationKey{Scope: fixture.ScopeProcess}, TornDown: 1},
		},
	}
}
