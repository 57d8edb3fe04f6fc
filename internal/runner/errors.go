package runner

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/go-cmp/cmp"
)

// AssertionError reports an assertion that did not hold inside a test
// body.
type AssertionError struct {
	// Messages are the failures recorded through T.Errorf, in order.
	Messages []string

	// Expected and Actual are set by Expect.
	Expected any
	Actual   any

	// Diff is a cmp.Diff of Expected and Actual (-expected +actual).
	Diff string
}

func (e *AssertionError) Error() string {
	var b strings.Builder
	b.WriteString("ASSERTION_FAILED")
	if e.Expected != nil || e.Actual != nil {
		fmt.Fprintf(&b, ": expected %v, got %v", e.Expected, e.Actual)
	}
	for _, m := range e.Messages {
		b.WriteString(": ")
		b.WriteString(strings.TrimSpace(m))
	}
	return b.String()
}

// Expect returns an AssertionError when actual differs from expected.
func Expect(expected, actual any, msg ...string) error {
	if cmp.Equal(expected, actual) {
		return nil
	}
	return &AssertionError{
		Messages: msg,
		Expected: expected,
		Actual:   actual,
		Diff:     cmp.Diff(expected, actual),
	}
}

// IsAssertionError reports whether err is an assertion failure.
func IsAssertionError(err error) bool {
	var ae *AssertionError
	return errors.As(err, &ae)
}

// TimeoutError is recorded when a body exceeds Options.Timeout.
type TimeoutError struct {
	TestID  string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("TIMEOUT: %s exceeded %s", e.TestID, e.Timeout)
}

// PanicError wraps a value recovered from a test body.
type PanicError struct {
	Value any
	Stack string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}
