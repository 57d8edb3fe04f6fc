package runner

import "fmt"

// Outcome is the classified result of one test case.
type Outcome string

const (
	OutcomePassed          Outcome = "passed"
	OutcomeFailed          Outcome = "failed"
	OutcomeExpectedFailure Outcome = "expected-failure"
	OutcomeUnexpectedPass  Outcome = "unexpected-pass"
	OutcomeError           Outcome = "error"
	OutcomeSkipped         Outcome = "skipped"
)

// Outcomes lists every outcome in report order.
var Outcomes = []Outcome{
	OutcomePassed,
	OutcomeFailed,
	OutcomeExpectedFailure,
	OutcomeUnexpectedPass,
	OutcomeError,
	OutcomeSkipped,
}

// ParseOutcome validates an outcome name.
func ParseOutcome(s string) (Outcome, error) {
	for _, o := range Outcomes {
		if string(o) == s {
			return o, nil
		}
	}
	return "", fmt.Errorf("unknown outcome %q", s)
}

// Bad reports whether the outcome fails the run.
func (o Outcome) Bad() bool {
	return o == OutcomeFailed || o == OutcomeError
}
