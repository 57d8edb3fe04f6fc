package store

import (
	"time"

	"github.com/roach88/fixturekit/internal/runner"
)

// RunSummary is one row of runs.
type RunSummary struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time

	// Digest hashes the selected tests and their outcomes.
	Digest string

	Aborted  bool
	Degraded bool
	OK       bool

	Total  int
	Counts map[runner.Outcome]int
}

// Duration is the wall time of the run.
func (r RunSummary) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Status mirrors runner.Report.Status for a stored run.
func (r RunSummary) Status() string {
	switch {
	case r.Aborted:
		return "aborted"
	case r.Degraded:
		return "degraded"
	case !r.OK:
		return "failed"
	default:
		return "ok"
	}
}

// ResultRecord is one row of results.
type ResultRecord struct {
	ID       string
	RunID    string
	Seq      int64
	TestID   string
	Outcome  runner.Outcome
	Attempts int
	Duration time.Duration
	Reason   string

	// Error is the rendered diagnostic, teardown errors included.
	Error string

	Markers []string
	Output  string
}

// ClosureRecord is one row of closures.
type ClosureRecord struct {
	RunID      string
	Ordinal    int
	Scope      string
	Activation string
	TornDown   int
	Errors     []string
}
