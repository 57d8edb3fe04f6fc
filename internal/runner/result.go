package runner

import (
	"errors"
	"time"

	"github.com/roach88/fixturekit/internal/resolver"
	"github.com/roach88/fixturekit/internal/testcase"
)

// Result is the immutable record of one test case.
type Result struct {
	// Seq orders results against fixture events of the same run.
	Seq int64

	Case    *testcase.Case
	Outcome Outcome

	// Err is the failure behind a failed, expected-failure or error
	// outcome. Nil otherwise.
	Err error

	// Reason explains a skip, an expected failure or an unexpected pass.
	Reason string

	// Attempts counts executions, reruns included.
	Attempts int

	Duration time.Duration

	// Output is what the body logged through T.Logf on its last attempt.
	Output string

	// States is the state history of the last attempt.
	States []State

	// TeardownErrors are raised while closing activations that ended with
	// this test. They never change Outcome.
	TeardownErrors []*resolver.TeardownError
}

// ID returns the case ID.
func (r *Result) ID() string {
	return r.Case.ID
}

// Diagnostic renders the failure and any teardown errors.
func (r *Result) Diagnostic() string {
	errs := make([]error, 0, 1+len(r.TeardownErrors))
	if r.Err != nil {
		errs = append(errs, r.Err)
	}
	for _, te := range r.TeardownErrors {
		errs = append(errs, te)
	}
	if err := errors.Join(errs...); err != nil {
		return err.Error()
	}
	return ""
}

// Report summarizes a run.
type Report struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time

	Results []*Result

	// Closures lists every activation closed during the run that ran at
	// least one teardown, in closing order.
	Closures []resolver.ClosureReport

	// Aborted is set when the run stopped early because its context ended.
	Aborted bool
}

// Counts returns the number of results per outcome.
func (r *Report) Counts() map[Outcome]int {
	counts := make(map[Outcome]int, len(Outcomes))
	for _, res := range r.Results {
		counts[res.Outcome]++
	}
	return counts
}

// Degraded reports whether any teardown failed, function-scoped ones
// included.
func (r *Report) Degraded() bool {
	for _, c := range r.Closures {
		if !c.OK() {
			return true
		}
	}
	for _, res := range r.Results {
		if len(res.TeardownErrors) > 0 {
			return true
		}
	}
	return false
}

// Status summarizes the report as one word: aborted, degraded, failed or
// ok.
func (r *Report) Status() string {
	switch {
	case r.Aborted:
		return "aborted"
	case r.Degraded():
		return "degraded"
	case !r.OK():
		return "failed"
	default:
		return "ok"
	}
}

// OK reports whether the run succeeded: no failed or error outcome, no
// teardown error, and not aborted.
func (r *Report) OK() bool {
	if r.Aborted || r.Degraded() {
		return false
	}
	for _, res := range r.Results {
		if res.Outcome.Bad() {
			return false
		}
	}
	return true
}

// Failures returns the results with a failed or error outcome.
func (r *Report) Failures() []*Result {
	var out []*Result
	for _, res := range r.Results {
		if res.Outcome.Bad() {
			out = append(out, res)
		}
	}
	return out
}

// Duration is the wall time of the run.
func (r *Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
