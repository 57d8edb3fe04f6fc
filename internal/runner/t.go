package runner

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"

	"github.com/roach88/fixturekit/internal/resolver"
	"github.com/roach88/fixturekit/internal/testcase"
)

// failNow is the panic value FailNow unwinds the body with.
type failNow struct{}

// caseT is the testcase.T handed to a body.
type caseT struct {
	ctx  context.Context
	id   string
	args map[string]any
	vals resolver.Values

	mu       sync.Mutex
	failed   bool
	messages []string
	output   strings.Builder
}

var _ testcase.T = (*caseT)(nil)

func newCaseT(ctx context.Context, c *testcase.Case, vals resolver.Values) *caseT {
	return &caseT{ctx: ctx, id: c.ID, args: c.Args, vals: vals}
}

func (t *caseT) Errorf(format string, args ...any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failed = true
	t.messages = append(t.messages, fmt.Sprintf(format, args...))
}

func (t *caseT) FailNow() {
	t.mu.Lock()
	t.failed = true
	t.mu.Unlock()
	panic(failNow{})
}

func (t *caseT) Failed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.failed
}

func (t *caseT) Logf(format string, args ...any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(&t.output, format, args...)
	if !strings.HasSuffix(format, "\n") {
		t.output.WriteByte('\n')
	}
}

func (t *caseT) Helper() {}

func (t *caseT) Name() string {
	return t.id
}

func (t *caseT) Context() context.Context {
	return t.ctx
}

// Value returns a direct parameter, or else a fixture value. Asking for a
// name the test did not declare fails the test.
func (t *caseT) Value(name string) any {
	if v, ok := t.args[name]; ok {
		return v
	}
	if v, ok := t.vals[name]; ok {
		return v
	}
	t.Errorf("%s does not declare %q", t.id, name)
	t.FailNow()
	return nil
}

// Output returns the captured log lines.
func (t *caseT) Output() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.output.String()
}

// run executes body and returns its failure, nil when it passed.
func (t *caseT) run(body testcase.Body) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			if _, ok := rec.(failNow); ok {
				err = t.failure()
				return
			}
			err = &PanicError{Value: rec, Stack: string(debug.Stack())}
		}
	}()

	if bodyErr := body(t); bodyErr != nil {
		if recorded := t.failure(); recorded != nil {
			if ae, ok := bodyErr.(*AssertionError); ok {
				// The body may share ae across calls; merge into a copy.
				merged := *ae
				merged.Messages = append(recorded.(*AssertionError).Messages, ae.Messages...)
				return &merged
			}
		}
		return bodyErr
	}
	return t.failure()
}

func (t *caseT) failure() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.failed {
		return nil
	}
	if len(t.messages) == 0 {
		return &AssertionError{Messages: []string{"test failed with no failure message"}}
	}
	msgs := make([]string, len(t.messages))
	copy(msgs, t.messages)
	return &AssertionError{Messages: msgs}
}
