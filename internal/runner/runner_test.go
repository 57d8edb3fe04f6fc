package runner

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/roach88/fixturekit/internal/fixture"
	"github.com/roach88/fixturekit/internal/logger"
	"github.com/roach88/fixturekit/internal/marker"
	"github.com/roach88/fixturekit/internal/resolver"
	"github.com/roach88/fixturekit/internal/testcase"
	"github.com/roach88/fixturekit/internal/testutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type journal struct {
	steps []string
}

func (j *journal) add(format string, args ...any) {
	j.steps = append(j.steps, fmt.Sprintf(format, args...))
}

func (j *journal) yield(name string, value any) fixture.Provider {
	return fixture.Yield(func(req *fixture.Request) (any, fixture.Teardown, error) {
		j.add("setup %s", name)
		return value, func() error {
			j.add("teardown %s", name)
			return nil
		}, nil
	})
}

func run(t *testing.T, opts Options, modules ...*testcase.Module) *Report {
	t.Helper()
	report, err := runWith(t, context.Background(), opts, nil, modules...)
	require.NoError(t, err)
	return report
}

func runWith(t *testing.T, ctx context.Context, opts Options, rep Reporter, modules ...*testcase.Module) (*Report, error) {
	t.Helper()
	reg := fixture.NewRegistry()
	cases, err := testcase.NewRegistry(reg).Discover(modules...)
	require.NoError(t, err)

	res := resolver.New(reg, resolver.WithLogger(logger.Discard()))
	options := []Option{WithLogger(logger.Discard()), WithIDGenerator(testutil.NewFixedRunIDs("run-1"))}
	if rep != nil {
		options = append(options, WithReporter(rep))
	}
	return New(res, opts, options...).Run(ctx, cases)
}

func sum(xs []int) int {
	total := 0
	for _, x := range xs {
		total += x
	}
	return total
}

func numbersModule(values []int) *testcase.Module {
	m := testcase.NewModule("numbers")
	m.Fixture(fixture.Definition{Name: "numbers", Provider: fixture.Constant(values)})
	m.Test("sum_is_fifteen", func(t testcase.T) error {
		return Expect(15, sum(t.Value("numbers").([]int)), "sum(numbers)")
	}, "numbers")
	return m
}

func TestRun_NumbersPass(t *testing.T) {
	report := run(t, Options{}, numbersModule([]int{1, 2, 3, 4, 5}))

	require.Len(t, report.Results, 1)
	res := report.Results[0]
	assert.Equal(t, OutcomePassed, res.Outcome)
	assert.NoError(t, res.Err)
	assert.True(t, report.OK())
	assert.Equal(t, "run-1", report.RunID)
	assert.Equal(t, []State{StatePending, StateResolving, StateExecuting, StatePassed, StateTornDown}, res.States)
}

func TestRun_NumbersFail(t *testing.T) {
	report := run(t, Options{}, numbersModule([]int{1, 2, 3, 4}))

	res := report.Results[0]
	assert.Equal(t, OutcomeFailed, res.Outcome)
	var ae *AssertionError
	require.ErrorAs(t, res.Err, &ae)
	assert.Equal(t, 15, ae.Expected)
	assert.Equal(t, 10, ae.Actual)
	assert.Contains(t, res.Diagnostic(), "expected 15, got 10")
	assert.False(t, report.OK())
	assert.Len(t, report.Failures(), 1)
}

func TestRun_TestifyInsideBody(t *testing.T) {
	m := testcase.NewModule("testify")
	m.Test("test_assert", func(t testcase.T) error {
		assert.Equal(t, 15, 10)
		return nil
	})
	m.Test("test_require", func(t testcase.T) error {
		require.True(t, false, "stop here")
		panic("unreachable")
	})

	report := run(t, Options{}, m)
	for _, res := range report.Results {
		assert.Equal(t, OutcomeFailed, res.Outcome, res.Case.ID)
		assert.True(t, IsAssertionError(res.Err))
	}
	assert.Contains(t, report.Results[0].Diagnostic(), "Not equal")
	assert.Contains(t, report.Results[1].Diagnostic(), "stop here")
}

func TestRun_XFail(t *testing.T) {
	fail := func(testcase.T) error { return Expect(1, 2) }
	pass := func(testcase.T) error { return nil }

	m := testcase.NewModule("xfail")
	m.Test("test_fails", fail).Mark(marker.XFail("join_now was removed"))
	m.Test("test_passes", pass).Mark(marker.XFail("join_now was removed"))
	m.Test("test_strict", pass).Mark(marker.StrictXFail(""))

	report := run(t, Options{}, m)
	require.Len(t, report.Results, 3)

	assert.Equal(t, OutcomeExpectedFailure, report.Results[0].Outcome)
	assert.Equal(t, "join_now was removed", report.Results[0].Reason)
	assert.Error(t, report.Results[0].Err)

	assert.Equal(t, OutcomeUnexpectedPass, report.Results[1].Outcome)
	assert.NoError(t, report.Results[1].Err)

	assert.Equal(t, OutcomeFailed, report.Results[2].Outcome)
	assert.Contains(t, report.Results[2].Err.Error(), "XPASS(strict)")

	counts := report.Counts()
	assert.Equal(t, 1, counts[OutcomeExpectedFailure])
	assert.Equal(t, 1, counts[OutcomeUnexpectedPass])
	assert.False(t, report.OK())
}

func TestRun_UnexpectedPassIsNotAFailure(t *testing.T) {
	m := testcase.NewModule("xpass")
	m.Test("test_passes", func(testcase.T) error { return nil }).Mark(marker.XFail(""))

	report := run(t, Options{}, m)
	assert.Equal(t, OutcomeUnexpectedPass, report.Results[0].Outcome)
	assert.True(t, report.OK())
}

func TestRun_SkipDoesNotResolve(t *testing.T) {
	j := &journal{}
	m := testcase.NewModule("skip")
	m.Fixture(fixture.Definition{Name: "browser", Provider: j.yield("browser", "drv")})
	m.Test("test_skipped", func(testcase.T) error {
		j.add("body")
		return nil
	}, "browser").Mark(marker.Skip("no windows runner"))

	report := run(t, Options{}, m)
	res := report.Results[0]
	assert.Equal(t, OutcomeSkipped, res.Outcome)
	assert.Equal(t, "no windows runner", res.Reason)
	assert.Empty(t, j.steps)
	assert.Equal(t, []State{StatePending, StateSkipped, StateTornDown}, res.States)
	assert.True(t, report.OK())
}

func TestRun_ResolutionErrorIsLocal(t *testing.T) {
	j := &journal{}
	m := testcase.NewModule("resolve")
	m.Fixture(fixture.Definition{Name: "link", Provider: j.yield("link", "https://demoqa.com/")})
	m.Fixture(fixture.Definition{
		Name:     "browser",
		Requires: []string{"link"},
		Provider: fixture.Yield(func(*fixture.Request) (any, fixture.Teardown, error) {
			return nil, nil, errors.New("chromedriver missing")
		}),
	})
	m.Test("test_broken", func(testcase.T) error {
		j.add("body broken")
		return nil
	}, "browser")
	m.Test("test_sibling", func(testcase.T) error {
		j.add("body sibling")
		return nil
	})

	report := run(t, Options{}, m)
	require.Len(t, report.Results, 2)

	broken := report.Results[0]
	assert.Equal(t, OutcomeError, broken.Outcome)
	assert.True(t, resolver.IsResolutionError(broken.Err))
	assert.Equal(t, []State{StatePending, StateResolving, StateError, StateTornDown}, broken.States)

	assert.Equal(t, OutcomePassed, report.Results[1].Outcome)
	assert.Equal(t, []string{"setup link", "teardown link", "body sibling"}, j.steps)
}

func TestRun_BodyFailureStillTearsDown(t *testing.T) {
	j := &journal{}
	m := testcase.NewModule("cleanup")
	m.Fixture(fixture.Definition{Name: "browser", Provider: j.yield("browser", "drv")})
	m.Test("test_panics", func(testcase.T) error {
		j.add("body")
		panic("element not interactable")
	}, "browser")

	report := run(t, Options{}, m)
	res := report.Results[0]
	assert.Equal(t, OutcomeFailed, res.Outcome)
	var pe *PanicError
	require.ErrorAs(t, res.Err, &pe)
	assert.Equal(t, "element not interactable", pe.Value)
	assert.Equal(t, []string{"setup browser", "body", "teardown browser"}, j.steps)
}

func TestRun_TeardownErrorKeepsOutcome(t *testing.T) {
	m := testcase.NewModule("degraded")
	cls := m.Class("TestA")
	cls.Fixture(fixture.Definition{
		Name:  "browser",
		Scope: fixture.ScopeClass,
		Provider: fixture.Yield(func(*fixture.Request) (any, fixture.Teardown, error) {
			return "drv", func() error { return errors.New("quit: session deleted") }, nil
		}),
	})
	cls.Test("test_1", func(testcase.T) error { return nil }, "browser")
	cls.Test("test_2", func(testcase.T) error { return nil }, "browser")

	report := run(t, Options{}, m)
	require.Len(t, report.Results, 2)
	assert.Equal(t, OutcomePassed, report.Results[0].Outcome)
	assert.Equal(t, OutcomePassed, report.Results[1].Outcome)

	assert.Empty(t, report.Results[0].TeardownErrors)
	require.Len(t, report.Results[1].TeardownErrors, 1)
	assert.Contains(t, report.Results[1].Diagnostic(), "session deleted")

	assert.True(t, report.Degraded())
	assert.False(t, report.OK())
	require.Len(t, report.Closures, 1)
	assert.Equal(t, resolver.ActivationKey{Scope: fixture.ScopeClass, Key: "degraded::TestA"}, report.Closures[0].Activation)
}

func TestRun_TwoClassesEachWithOwnBrowser(t *testing.T) {
	j := &journal{}
	m := testcase.NewModule("fixture3")
	body := func(name string) testcase.Body {
		return func(t testcase.T) error {
			j.add("body %s uses %v", name, t.Value("browser"))
			return nil
		}
	}

	a := m.Class("TestFirst")
	a.Fixture(fixture.Definition{Name: "browser", Scope: fixture.ScopeClass, Provider: j.yield("browser A", "A")})
	a.Test("test_1", body("A1"), "browser")
	a.Test("test_2", body("A2"), "browser")

	b := m.Class("TestSecond")
	b.Fixture(fixture.Definition{Name: "browser", Scope: fixture.ScopeClass, Provider: j.yield("browser B", "B")})
	b.Test("test_1", body("B1"), "browser")

	report := run(t, Options{}, m)
	assert.True(t, report.OK())
	assert.Equal(t, []string{
		"setup browser A",
		"body A1 uses A",
		"body A2 uses A",
		"teardown browser A",
		"setup browser B",
		"body B1 uses B",
		"teardown browser B",
	}, j.steps)
	assert.Len(t, report.Closures, 2)
}

func TestRun_SelectionMovesClosure(t *testing.T) {
	j := &journal{}
	m := testcase.NewModule("sel")
	m.Fixture(fixture.Definition{Name: "shared", Scope: fixture.ScopeModule, Provider: j.yield("shared", 1)})
	m.Test("test_a", func(testcase.T) error { j.add("a"); return nil }, "shared")
	m.Test("test_b", func(testcase.T) error { j.add("b"); return nil }, "shared").Mark(marker.Tag("slow"))

	reg := fixture.NewRegistry()
	cases, err := testcase.NewRegistry(reg).Discover(m)
	require.NoError(t, err)
	selected := testcase.Filter(cases, testcase.MarkerPredicate(marker.MustParseExpr("not slow")))

	res := resolver.New(reg, resolver.WithLogger(logger.Discard()))
	report, err := New(res, Options{}, WithLogger(logger.Discard())).Run(context.Background(), selected)
	require.NoError(t, err)

	require.Len(t, report.Results, 1)
	assert.Equal(t, []string{"setup shared", "a", "teardown shared"}, j.steps)
}

func TestRun_Reruns(t *testing.T) {
	j := &journal{}
	calls := 0
	m := testcase.NewModule("rerun")
	m.Fixture(fixture.Definition{Name: "page", Provider: j.yield("page", "p")})
	m.Test("test_flaky", func(testcase.T) error {
		calls++
		j.add("attempt %d", calls)
		if calls < 3 {
			return Expect("ok", "flaky")
		}
		return nil
	}, "page")

	report := run(t, Options{Reruns: 3}, m)
	res := report.Results[0]
	assert.Equal(t, OutcomePassed, res.Outcome)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, []string{
		"setup page", "attempt 1", "teardown page",
		"setup page", "attempt 2", "teardown page",
		"setup page", "attempt 3", "teardown page",
	}, j.steps)
}

func TestRun_RerunsExhausted(t *testing.T) {
	calls := 0
	m := testcase.NewModule("rerun")
	m.Test("test_broken", func(testcase.T) error {
		calls++
		return Expect(1, 2)
	})
	m.Test("test_xfail", func(testcase.T) error {
		calls++
		return Expect(1, 2)
	}).Mark(marker.XFail(""))

	report := run(t, Options{Reruns: 2}, m)
	assert.Equal(t, OutcomeFailed, report.Results[0].Outcome)
	assert.Equal(t, 3, report.Results[0].Attempts)
	assert.Equal(t, 1, report.Results[1].Attempts)
	assert.Equal(t, 4, calls)
}

func TestRun_Timeout(t *testing.T) {
	j := &journal{}
	m := testcase.NewModule("timeout")
	m.Fixture(fixture.Definition{Name: "browser", Provider: j.yield("browser", "drv")})
	m.Test("test_hangs", func(t testcase.T) error {
		<-t.Context().Done()
		return t.Context().Err()
	}, "browser")

	report := run(t, Options{Timeout: 20 * time.Millisecond}, m)
	res := report.Results[0]
	assert.Equal(t, OutcomeError, res.Outcome)
	var te *TimeoutError
	require.ErrorAs(t, res.Err, &te)
	assert.Equal(t, []string{"setup browser", "teardown browser"}, j.steps)
}

func TestRun_CancelledContext(t *testing.T) {
	j := &journal{}
	m := testcase.NewModule("cancel")
	m.Fixture(fixture.Definition{Name: "shared", Scope: fixture.ScopeProcess, Provider: j.yield("shared", 1)})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Test("test_first", func(testcase.T) error {
		cancel()
		return nil
	}, "shared")
	m.Test("test_never", func(testcase.T) error {
		j.add("never")
		return nil
	}, "shared")

	report, err := runWith(t, ctx, Options{}, nil, m)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, report.Aborted)
	assert.False(t, report.OK())
	assert.Len(t, report.Results, 1)
	assert.Equal(t, []string{"setup shared", "teardown shared"}, j.steps)
}

func TestRun_LogfCapturesOutput(t *testing.T) {
	m := testcase.NewModule("output")
	m.Test("test_logs", func(t testcase.T) error {
		t.Logf("opened %s", "https://demoqa.com/")
		return nil
	})
	report := run(t, Options{}, m)
	assert.Equal(t, "opened https://demoqa.com/\n", report.Results[0].Output)
}

func TestRun_UndeclaredValueFails(t *testing.T) {
	m := testcase.NewModule("undeclared")
	m.Test("test_reads", func(t testcase.T) error {
		_ = t.Value("browser")
		return nil
	})
	report := run(t, Options{}, m)
	assert.Equal(t, OutcomeFailed, report.Results[0].Outcome)
	assert.Contains(t, report.Results[0].Diagnostic(), `"browser"`)
}

func TestRun_DirectParams(t *testing.T) {
	m := testcase.NewModule("direct")
	m.Test("test_double", func(t testcase.T) error {
		return Expect(t.Value("want"), 2*t.Value("n").(int))
	}, "n", "want").Parametrize("n, want", []any{[]any{1, 2}, []any{2, 4}, []any{3, 7}})

	report := run(t, Options{}, m)
	require.Len(t, report.Results, 3)
	assert.Equal(t, OutcomePassed, report.Results[0].Outcome)
	assert.Equal(t, OutcomePassed, report.Results[1].Outcome)
	assert.Equal(t, OutcomeFailed, report.Results[2].Outcome)
	assert.Equal(t, "direct::test_double[3-7]", report.Results[2].ID())
}

func TestRun_MarkerTableOverridesCase(t *testing.T) {
	m := testcase.NewModule("table")
	m.Test("test_fails", func(testcase.T) error { return Expect(1, 2) })

	reg := fixture.NewRegistry()
	cases, err := testcase.NewRegistry(reg).Discover(m)
	require.NoError(t, err)

	table := marker.Table{}
	table.Add("table::test_fails", marker.XFail("tracked upstream"))

	res := resolver.New(reg, resolver.WithLogger(logger.Discard()))
	report, err := New(res, Options{Markers: table}, WithLogger(logger.Discard())).Run(context.Background(), cases)
	require.NoError(t, err)
	assert.Equal(t, OutcomeExpectedFailure, report.Results[0].Outcome)
}

type recordingReporter struct {
	NopReporter
	events []string
}

func (r *recordingReporter) RunStarted(id string, cases []*testcase.Case) {
	r.events = append(r.events, fmt.Sprintf("run %s %d", id, len(cases)))
}

func (r *recordingReporter) TestStarted(c *testcase.Case) {
	r.events = append(r.events, "start "+c.ID)
}

func (r *recordingReporter) TestFinished(res *Result) {
	r.events = append(r.events, fmt.Sprintf("finish %s %s", res.ID(), res.Outcome))
}

func (r *recordingReporter) ScopeClosed(rep resolver.ClosureReport) {
	r.events = append(r.events, "close "+rep.Activation.String())
}

func (r *recordingReporter) RunFinished(*Report) {
	r.events = append(r.events, "done")
}

func TestRun_ReporterEvents(t *testing.T) {
	j := &journal{}
	m := testcase.NewModule("events")
	cls := m.Class("TestA")
	cls.Fixture(fixture.Definition{Name: "browser", Scope: fixture.ScopeClass, Provider: j.yield("browser", "drv")})
	cls.Test("test_1", func(testcase.T) error { return nil }, "browser")

	rec := &recordingReporter{}
	_, err := runWith(t, context.Background(), Options{}, Reporters{rec, NopReporter{}}, m)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"run run-1 1",
		"start events::TestA::test_1",
		"close class events::TestA",
		"finish events::TestA::test_1 passed",
		"done",
	}, rec.events)
}

func TestMachine_RejectsInvalidTransitions(t *testing.T) {
	m := newMachine()
	assert.Error(t, m.advance(StateExecuting))
	require.NoError(t, m.advance(StateResolving))
	require.NoError(t, m.advance(StateExecuting))
	require.NoError(t, m.advance(StatePassed))
	assert.Error(t, m.advance(StateFailed), "terminal outcome is immutable")
	require.NoError(t, m.advance(StateTornDown))
	assert.Error(t, m.advance(StatePending))
	assert.Panics(t, func() { m.must(StateResolving) })
}

func TestParseOutcome(t *testing.T) {
	o, err := ParseOutcome("expected-failure")
	require.NoError(t, err)
	assert.Equal(t, OutcomeExpectedFailure, o)
	_, err = ParseOutcome("flaky")
	assert.Error(t, err)
	assert.True(t, OutcomeError.Bad())
	assert.False(t, OutcomeUnexpectedPass.Bad())
}

func TestReport_Status(t *testing.T) {
	assert.Equal(t, "ok", (&Report{}).Status())
	assert.Equal(t, "aborted", (&Report{Aborted: true}).Status())

	failed := &Report{Results: []*Result{{Outcome: OutcomeFailed}}}
	assert.Equal(t, "failed", failed.Status())

	fnTeardown := &Report{Results: []*Result{{
		Outcome:        OutcomePassed,
		TeardownErrors: []*resolver.TeardownError{{Fixture: "browser", Err: errors.New("quit")}},
	}}}
	assert.True(t, fnTeardown.Degraded())
	assert.Equal(t, "degraded", fnTeardown.Status())
}

func TestRun_TimestampsFromClock(t *testing.T) {
	epoch := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := testutil.NewStepClock(epoch, time.Second)

	m := testcase.NewModule("mod")
	m.Test("a", func(testcase.T) error { return nil })
	m.Test("b", func(testcase.T) error { return nil })

	reg := fixture.NewRegistry()
	cases, err := testcase.NewRegistry(reg).Discover(m)
	require.NoError(t, err)

	res := resolver.New(reg, resolver.WithLogger(logger.Discard()))
	report, err := New(res, Options{}, WithLogger(logger.Discard()), WithNow(clock.Now)).Run(context.Background(), cases)
	require.NoError(t, err)

	assert.Equal(t, epoch, report.StartedAt)
	assert.True(t, report.FinishedAt.After(report.StartedAt))
	assert.Zero(t, report.Duration()%time.Second)
	for _, r := range report.Results {
		assert.Zero(t, r.Duration%time.Second)
	}
}
