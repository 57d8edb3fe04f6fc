// Package runner executes test cases sequentially and classifies their
// outcomes.
//
// For each case the runner resolves fixtures, runs the body with the
// resolved values, classifies the outcome against the case's markers and
// then closes every scope activation that ends with the case. Activations
// end after the last selected case that runs in them, so a class-scoped
// fixture is torn down right after the last test of its class.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/fixturekit/internal/fixture"
	"github.com/roach88/fixturekit/internal/logger"
	"github.com/roach88/fixturekit/internal/marker"
	"github.com/roach88/fixturekit/internal/resolver"
	"github.com/roach88/fixturekit/internal/testcase"
)

// Options controls execution.
type Options struct {
	// Reruns re-executes failed tests up to this many extra times. Expected
	// failures and errors are not rerun.
	Reruns int

	// Timeout bounds each body. Zero means no limit.
	Timeout time.Duration

	// Markers, when set, is consulted instead of Case.Markers.
	Markers marker.Table
}

// Runner executes cases. It is not safe for concurrent use.
type Runner struct {
	resolver *resolver.Resolver
	opts     Options
	reporter Reporter
	ids      IDGenerator
	now      func() time.Time
	log      *slog.Logger
}

// Option configures a Runner.
type Option func(r *Runner)

// WithReporter sets the progress reporter.
func WithReporter(rep Reporter) Option {
	return func(r *Runner) { r.reporter = rep }
}

// WithIDGenerator sets the run ID generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(r *Runner) { r.ids = g }
}

// WithNow sets the wall clock used for timestamps and durations.
func WithNow(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// WithLogger sets the logger. Without it the context logger is used.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) { r.log = l }
}

// New creates a runner over a resolver.
func New(res *resolver.Resolver, opts Options, options ...Option) *Runner {
	r := &Runner{
		resolver: res,
		opts:     opts,
		reporter: NopReporter{},
		ids:      UUIDv7Generator{},
		now:      time.Now,
	}
	for _, o := range options {
		o(r)
	}
	return r
}

// Run executes cases in order. Per-test failures are recorded in the
// report; the returned error is non-nil only when ctx ended before every
// case ran. Every live activation is closed before Run returns.
func (r *Runner) Run(ctx context.Context, cases []*testcase.Case) (*Report, error) {
	report := &Report{RunID: r.ids.Generate(), StartedAt: r.now()}
	log := r.logger(ctx).With("run", report.RunID)
	r.reporter.RunStarted(report.RunID, cases)
	log.Info("run started", "tests", len(cases))

	last := lastUse(cases)

	var runErr error
	for i, c := range cases {
		if err := ctx.Err(); err != nil {
			report.Aborted = true
			runErr = fmt.Errorf("run aborted before %s: %w", c.ID, err)
			break
		}

		res := r.runCase(ctx, c)
		report.Results = append(report.Results, res)

		for _, scope := range fixture.Scopes[1:] {
			key := resolver.KeyFor(scope, c, 0)
			if last[key] != i {
				continue
			}
			r.closeActivation(ctx, report, res, key)
		}

		r.reporter.TestFinished(res)
		log.Info("test finished", "test", c.ID, "outcome", res.Outcome, "attempts", res.Attempts)
	}

	for _, key := range r.resolver.Active() {
		r.closeActivation(ctx, report, nil, key)
	}

	report.FinishedAt = r.now()
	counts := report.Counts()
	log.Info("run finished",
		"passed", counts[OutcomePassed],
		"failed", counts[OutcomeFailed],
		"errors", counts[OutcomeError],
		"degraded", report.Degraded(),
	)
	r.reporter.RunFinished(report)
	return report, runErr
}

// lastUse maps each class, module and process activation to the index of
// the last case that runs in it.
func lastUse(cases []*testcase.Case) map[resolver.ActivationKey]int {
	last := make(map[resolver.ActivationKey]int)
	for i, c := range cases {
		for _, scope := range fixture.Scopes[1:] {
			last[resolver.KeyFor(scope, c, 0)] = i
		}
	}
	return last
}

func (r *Runner) closeActivation(ctx context.Context, report *Report, res *Result, key resolver.ActivationKey) {
	closure := r.resolver.Close(ctx, key)
	if closure.TornDown == 0 {
		return
	}
	report.Closures = append(report.Closures, closure)
	if res != nil {
		res.TeardownErrors = append(res.TeardownErrors, closure.Errors...)
	}
	r.reporter.ScopeClosed(closure)
}

func (r *Runner) markers(c *testcase.Case) marker.Set {
	if r.opts.Markers != nil {
		return r.opts.Markers.Get(c.ID)
	}
	return c.Markers
}

func (r *Runner) runCase(ctx context.Context, c *testcase.Case) *Result {
	r.reporter.TestStarted(c)
	start := r.now()
	markers := r.markers(c)
	res := &Result{Case: c}

	if skip, ok := markers.Get(marker.NameSkip); ok {
		m := newMachine()
		m.must(StateSkipped)
		m.must(StateTornDown)
		res.Outcome = OutcomeSkipped
		res.Reason = skip.Reason
		res.States = m.History()
		res.Seq = r.resolver.Clock().Next()
		return res
	}

	xfail, expectFail := markers.Get(marker.NameXFail)

	for attempt := 0; attempt <= r.opts.Reruns; attempt++ {
		res.Attempts = attempt + 1
		a := r.attempt(ctx, c, attempt)
		res.Outcome, res.Err, res.Reason = classify(a, xfail, expectFail)
		res.Output = a.output
		res.States = a.machine.History()
		res.TeardownErrors = append(res.TeardownErrors, a.closure.Errors...)

		if res.Outcome != OutcomeFailed || ctx.Err() != nil {
			break
		}
		if attempt < r.opts.Reruns {
			r.logger(ctx).Info("rerunning failed test", "test", c.ID, "attempt", attempt+2)
		}
	}

	res.Duration = r.now().Sub(start)
	res.Seq = r.resolver.Clock().Next()
	return res
}

// attemptResult is what one execution of a case produced.
type attemptResult struct {
	machine    *Machine
	resolveErr error
	bodyErr    error
	output     string
	closure    resolver.ClosureReport
}

func (r *Runner) attempt(ctx context.Context, c *testcase.Case, attempt int) attemptResult {
	a := attemptResult{machine: newMachine()}
	log := r.logger(ctx).With("test", c.ID, "attempt", attempt+1)

	a.machine.must(StateResolving)
	log.Debug("resolving fixtures", "fixtures", c.Fixtures)
	vals, err := r.resolver.Resolve(ctx, c, attempt)
	if err != nil {
		a.resolveErr = err
		a.machine.must(StateError)
	} else {
		a.machine.must(StateExecuting)
		log.Debug("executing body")
		a.output, a.bodyErr = r.execute(ctx, c, vals)

		switch {
		case interrupted(a.bodyErr):
			a.machine.must(StateError)
		case a.bodyErr != nil:
			a.machine.must(StateFailed)
		default:
			a.machine.must(StatePassed)
		}
	}

	// Function-scope instances created this attempt are released even when
	// resolution failed part way.
	a.closure = r.resolver.Close(ctx, resolver.KeyFor(fixture.ScopeFunction, c, attempt))
	a.machine.must(StateTornDown)
	log.Debug("torn down", "teardowns", a.closure.TornDown, "teardown_errors", len(a.closure.Errors))
	return a
}

// execute runs the body on its own goroutine so a timeout can be
// observed. Only one body runs at a time unless a timed-out body ignores
// its context.
func (r *Runner) execute(ctx context.Context, c *testcase.Case, vals resolver.Values) (string, error) {
	var (
		bodyCtx context.Context
		cancel  context.CancelFunc
	)
	if r.opts.Timeout > 0 {
		bodyCtx, cancel = context.WithTimeout(ctx, r.opts.Timeout)
	} else {
		bodyCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	t := newCaseT(bodyCtx, c, vals)
	done := make(chan error, 1)
	go func() {
		done <- t.run(c.Body)
	}()

	err := awaitBody(bodyCtx, done)
	// A body that returns because its deadline passed still timed out.
	if ctx.Err() == nil && errors.Is(bodyCtx.Err(), context.DeadlineExceeded) && err != nil {
		err = &TimeoutError{TestID: c.ID, Timeout: r.opts.Timeout}
	}
	return t.Output(), err
}

// awaitBody waits for the body's result or for ctx to end. A result that
// is already in done wins over a cancellation seen at the same moment.
func awaitBody(ctx context.Context, done <-chan error) error {
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		select {
		case err := <-done:
			return err
		default:
			return ctx.Err()
		}
	}
}

// classify maps an attempt to an outcome, honoring the xfail marker.
func classify(a attemptResult, xfail marker.Marker, expectFail bool) (Outcome, error, string) {
	if a.resolveErr != nil {
		return OutcomeError, a.resolveErr, ""
	}
	if a.bodyErr != nil {
		if interrupted(a.bodyErr) {
			return OutcomeError, a.bodyErr, ""
		}
		if expectFail {
			return OutcomeExpectedFailure, a.bodyErr, xfail.Reason
		}
		return OutcomeFailed, a.bodyErr, ""
	}
	if expectFail {
		if xfail.Strict {
			return OutcomeFailed, errors.New("XPASS(strict): test marked xfail passed"), xfail.Reason
		}
		return OutcomeUnexpectedPass, nil, xfail.Reason
	}
	return OutcomePassed, nil, ""
}

// interrupted reports whether the body was stopped by a timeout or by the
// run's context rather than failing on its own.
func interrupted(err error) bool {
	var timeout *TimeoutError
	return errors.As(err, &timeout) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

func (r *Runner) logger(ctx context.Context) *slog.Logger {
	if r.log != nil {
		return r.log
	}
	return logger.Component(ctx, "runner")
}
