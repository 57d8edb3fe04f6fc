package resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fixturekit/internal/fixture"
	"github.com/roach88/fixturekit/internal/logger"
	"github.com/roach88/fixturekit/internal/testcase"
)

func noop(testcase.T) error { return nil }

// journal records lifecycle steps in order.
type journal struct {
	steps []string
	n     int
}

func (j *journal) add(format string, args ...any) {
	j.steps = append(j.steps, fmt.Sprintf(format, args...))
}

// counted is a yield provider that records setup and teardown with an
// instance number.
func (j *journal) counted(name string) fixture.Provider {
	return fixture.Yield(func(req *fixture.Request) (any, fixture.Teardown, error) {
		j.n++
		id := fmt.Sprintf("%s#%d", name, j.n)
		j.add("setup %s", id)
		return id, func() error {
			j.add("teardown %s", id)
			return nil
		}, nil
	})
}

func discover(t *testing.T, modules ...*testcase.Module) (*fixture.Registry, []*testcase.Case) {
	t.Helper()
	reg := fixture.NewRegistry()
	cases, err := testcase.NewRegistry(reg).Discover(modules...)
	require.NoError(t, err)
	return reg, cases
}

func newResolver(reg *fixture.Registry, opts ...Option) *Resolver {
	return New(reg, append([]Option{WithLogger(logger.Discard())}, opts...)...)
}

func TestResolve_FunctionScopeNeverShared(t *testing.T) {
	j := &journal{}
	m := testcase.NewModule("mod")
	m.Fixture(fixture.Definition{Name: "page", Provider: j.counted("page")})
	m.Test("test_a", noop, "page")
	m.Test("test_b", noop, "page")

	reg, cases := discover(t, m)
	r := newResolver(reg)
	ctx := context.Background()

	var got []any
	for _, c := range cases {
		vals, err := r.Resolve(ctx, c, 0)
		require.NoError(t, err)
		got = append(got, vals["page"])
		j.add("body %s", c.Name)
		report := r.Close(ctx, KeyFor(fixture.ScopeFunction, c, 0))
		assert.True(t, report.OK())
		assert.Equal(t, 1, report.TornDown)
	}

	assert.NotEqual(t, got[0], got[1])
	assert.Equal(t, []string{
		"setup page#1", "body test_a", "teardown page#1",
		"setup page#2", "body test_b", "teardown page#2",
	}, j.steps)
}

func TestResolve_ClassScopeSharedOnce(t *testing.T) {
	j := &journal{}
	m := testcase.NewModule("mod")
	cls := m.Class("TestA")
	cls.Fixture(fixture.Definition{Name: "browser", Scope: fixture.ScopeClass, Provider: j.counted("browser")})
	cls.Test("test_1", noop, "browser")
	cls.Test("test_2", noop, "browser")
	cls.Test("test_3", noop, "browser")

	reg, cases := discover(t, m)
	r := newResolver(reg)
	ctx := context.Background()

	for _, c := range cases {
		vals, err := r.Resolve(ctx, c, 0)
		require.NoError(t, err)
		assert.Equal(t, "browser#1", vals["browser"])
	}

	key := KeyFor(fixture.ScopeClass, cases[0], 0)
	assert.Equal(t, ActivationKey{Scope: fixture.ScopeClass, Key: "mod::TestA"}, key)
	assert.True(t, r.Live(key))

	report := r.Close(ctx, key)
	assert.Equal(t, 1, report.TornDown)
	assert.False(t, r.Live(key))
	assert.Equal(t, []string{"setup browser#1", "teardown browser#1"}, j.steps)

	// Closing twice runs nothing.
	assert.Equal(t, 0, r.Close(ctx, key).TornDown)
}

func TestResolve_FailureBeforeYieldHasNoTeardown(t *testing.T) {
	j := &journal{}
	calls := 0
	m := testcase.NewModule("mod")
	m.Fixture(fixture.Definition{Name: "link", Scope: fixture.ScopeProcess, Provider: j.counted("link")})
	m.Fixture(fixture.Definition{
		Name:     "browser",
		Scope:    fixture.ScopeModule,
		Requires: []string{"link"},
		Provider: fixture.Yield(func(req *fixture.Request) (any, fixture.Teardown, error) {
			calls++
			return nil, nil, errors.New("driver not installed")
		}),
	})
	m.Test("test_a", noop, "browser")
	m.Test("test_b", noop, "browser")

	reg, cases := discover(t, m)
	r := newResolver(reg)
	ctx := context.Background()

	_, err := r.Resolve(ctx, cases[0], 0)
	var re *FixtureResolutionError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "mod::browser", re.Fixture)
	assert.Equal(t, "mod::test_a", re.TestID)
	assert.False(t, re.Cached)
	assert.True(t, IsResolutionError(err))

	_, err = r.Resolve(ctx, cases[1], 0)
	require.ErrorAs(t, err, &re)
	assert.True(t, re.Cached)
	assert.Equal(t, 1, calls)

	reports := r.CloseAll(ctx)
	var torn int
	for _, rep := range reports {
		torn += rep.TornDown
	}
	// Only the successfully provided link is released.
	assert.Equal(t, 1, torn)
	assert.Equal(t, []string{"setup link#1", "teardown link#1"}, j.steps)
}

func TestResolve_PanicInProvider(t *testing.T) {
	m := testcase.NewModule("mod")
	m.Fixture(fixture.Definition{Name: "boom", Provider: fixture.Value(func(*fixture.Request) (any, error) {
		panic("kaboom")
	})})
	m.Test("test_a", noop, "boom")

	reg, cases := discover(t, m)
	_, err := newResolver(reg).Resolve(context.Background(), cases[0], 0)

	var pe *PanicError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "kaboom", pe.Value)
}

func TestClose_ReverseOrderAndAggregation(t *testing.T) {
	j := &journal{}
	failing := func(name string) fixture.Provider {
		return fixture.Yield(func(*fixture.Request) (any, fixture.Teardown, error) {
			j.add("setup %s", name)
			return name, func() error {
				j.add("teardown %s", name)
				return fmt.Errorf("%s quit failed", name)
			}, nil
		})
	}

	m := testcase.NewModule("mod")
	m.Fixture(fixture.Definition{Name: "first", Provider: failing("first")})
	m.Fixture(fixture.Definition{Name: "second", Provider: j.counted("second")})
	m.Fixture(fixture.Definition{Name: "third", Provider: failing("third")})
	m.Test("test_a", noop, "first", "second", "third")

	reg, cases := discover(t, m)
	r := newResolver(reg)
	ctx := context.Background()

	_, err := r.Resolve(ctx, cases[0], 0)
	require.NoError(t, err)

	report := r.Close(ctx, KeyFor(fixture.ScopeFunction, cases[0], 0))
	assert.Equal(t, 3, report.TornDown)
	require.Len(t, report.Errors, 2)
	assert.Equal(t, "mod::third", report.Errors[0].Fixture)
	assert.Equal(t, "mod::first", report.Errors[1].Fixture)
	assert.True(t, IsTeardownError(report.Err()))
	assert.Contains(t, report.Err().Error(), "first quit failed")

	assert.Equal(t, []string{
		"setup first", "setup second#1", "setup third",
		"teardown third", "teardown second#1", "teardown first",
	}, j.steps)
}

func TestClose_TeardownPanicIsCollected(t *testing.T) {
	m := testcase.NewModule("mod")
	m.Fixture(fixture.Definition{Name: "bad", Provider: fixture.Yield(func(*fixture.Request) (any, fixture.Teardown, error) {
		return 1, func() error { panic("teardown panic") }, nil
	})})
	m.Test("test_a", noop, "bad")

	reg, cases := discover(t, m)
	r := newResolver(reg)
	ctx := context.Background()
	_, err := r.Resolve(ctx, cases[0], 0)
	require.NoError(t, err)

	report := r.Close(ctx, KeyFor(fixture.ScopeFunction, cases[0], 0))
	require.Len(t, report.Errors, 1)
	var pe *PanicError
	assert.ErrorAs(t, report.Errors[0], &pe)
}

func TestResolve_IndirectAndFixtureParams(t *testing.T) {
	m := testcase.NewModule("indirect")
	m.Fixture(fixture.Definition{
		Name:   "x",
		Params: fixture.Params("a"),
		Provider: fixture.Value(func(req *fixture.Request) (any, error) {
			return strings.Repeat(req.ParamValue().(string), 3), nil
		}),
	})
	m.Fixture(fixture.Definition{
		Name: "y",
		Provider: fixture.Value(func(req *fixture.Request) (any, error) {
			return strings.Repeat(req.ParamValue().(string), 2), nil
		}),
	})
	m.Test("test_indirect", noop, "x", "y").
		Parametrize("y", []any{"b"}, testcase.Indirect())

	reg, cases := discover(t, m)
	require.Len(t, cases, 1)

	vals, err := newResolver(reg).Resolve(context.Background(), cases[0], 0)
	require.NoError(t, err)
	assert.Equal(t, "aaa", vals["x"])
	assert.Equal(t, "bb", vals["y"])
}

func TestResolve_ParamsGetSeparateInstances(t *testing.T) {
	j := &journal{}
	m := testcase.NewModule("mod")
	m.Fixture(fixture.Definition{
		Name:   "browser",
		Scope:  fixture.ScopeModule,
		Params: fixture.Params("chrome", "firefox"),
		Provider: fixture.Yield(func(req *fixture.Request) (any, fixture.Teardown, error) {
			name := req.ParamValue().(string)
			j.add("setup %s", name)
			return name, func() error { j.add("teardown %s", name); return nil }, nil
		}),
	})
	m.Test("test_a", noop, "browser")
	m.Test("test_b", noop, "browser")

	reg, cases := discover(t, m)
	require.Len(t, cases, 4)
	r := newResolver(reg)
	ctx := context.Background()

	for _, c := range cases {
		vals, err := r.Resolve(ctx, c, 0)
		require.NoError(t, err)
		assert.Equal(t, c.ParamID, vals["browser"])
	}
	r.CloseAll(ctx)
	assert.Equal(t, []string{"setup chrome", "setup firefox", "teardown firefox", "teardown chrome"}, j.steps)
}

func TestResolve_OverrideReachesShadowed(t *testing.T) {
	m := testcase.NewModule("mod")
	m.Fixture(fixture.Definition{
		Name:     "user",
		Requires: []string{"user"},
		Provider: fixture.Value(func(req *fixture.Request) (any, error) {
			return "admin:" + req.MustValue("user").(string), nil
		}),
	})
	m.Test("test_a", noop, "user")

	reg := fixture.NewRegistry()
	require.NoError(t, reg.Register(fixture.Definition{Name: "user", Scope: fixture.ScopeProcess, Provider: fixture.Constant("alice")}))
	cases, err := testcase.NewRegistry(reg).Discover(m)
	require.NoError(t, err)

	vals, err := newResolver(reg).Resolve(context.Background(), cases[0], 0)
	require.NoError(t, err)
	assert.Equal(t, "admin:alice", vals["user"])
}

func TestResolve_FinalizersAndDeclaredTeardown(t *testing.T) {
	j := &journal{}
	m := testcase.NewModule("mod")
	m.Fixture(fixture.Definition{
		Name: "browser",
		Provider: fixture.Yield(func(req *fixture.Request) (any, fixture.Teardown, error) {
			req.AddFinalizer(func() error { j.add("finalizer"); return nil })
			return "drv", func() error { j.add("yield teardown"); return nil }, nil
		}),
		Teardown: func(v any) error {
			j.add("declared teardown %v", v)
			return nil
		},
	})
	m.Fixture(fixture.Definition{
		Name: "plain",
		Provider: fixture.Value(func(req *fixture.Request) (any, error) {
			return "value", nil
		}),
	})
	m.Test("test_a", noop, "browser", "plain")

	reg, cases := discover(t, m)
	r := newResolver(reg)
	ctx := context.Background()
	_, err := r.Resolve(ctx, cases[0], 0)
	require.NoError(t, err)

	report := r.Close(ctx, KeyFor(fixture.ScopeFunction, cases[0], 0))
	assert.Equal(t, 3, report.TornDown)
	assert.Equal(t, []string{"declared teardown drv", "yield teardown", "finalizer"}, j.steps)
}

func TestResolve_FinalizerRunsAfterFailedSetup(t *testing.T) {
	j := &journal{}
	m := testcase.NewModule("mod")
	m.Fixture(fixture.Definition{
		Name: "half",
		Provider: fixture.Yield(func(req *fixture.Request) (any, fixture.Teardown, error) {
			req.AddFinalizer(func() error { j.add("release tmpdir"); return nil })
			return nil, func() error { j.add("never"); return nil }, errors.New("port in use")
		}),
	})
	m.Test("test_a", noop, "half")

	reg, cases := discover(t, m)
	r := newResolver(reg)
	ctx := context.Background()
	_, err := r.Resolve(ctx, cases[0], 0)
	require.Error(t, err)

	r.Close(ctx, KeyFor(fixture.ScopeFunction, cases[0], 0))
	assert.Equal(t, []string{"release tmpdir"}, j.steps)
}

func TestResolve_RequestCarriesConfigAndTest(t *testing.T) {
	m := testcase.NewModule("mod")
	m.Fixture(fixture.Definition{
		Name: "link",
		Provider: fixture.Value(func(req *fixture.Request) (any, error) {
			return req.Config.BaseURL + "#" + req.TestID, nil
		}),
	})
	m.Test("test_a", noop, "link")

	reg, cases := discover(t, m)
	vals, err := newResolver(reg).Resolve(context.Background(), cases[0], 0)
	require.NoError(t, err)
	assert.Equal(t, "https://demoqa.com/#mod::test_a", vals["link"])
}

func TestResolve_AttemptsUseSeparateActivations(t *testing.T) {
	j := &journal{}
	m := testcase.NewModule("mod")
	m.Fixture(fixture.Definition{Name: "page", Provider: j.counted("page")})
	m.Test("test_a", noop, "page")

	reg, cases := discover(t, m)
	r := newResolver(reg)
	ctx := context.Background()

	v0, err := r.Resolve(ctx, cases[0], 0)
	require.NoError(t, err)
	v1, err := r.Resolve(ctx, cases[0], 1)
	require.NoError(t, err)
	assert.NotEqual(t, v0["page"], v1["page"])
}

func TestCloseAll_NarrowestFirst(t *testing.T) {
	j := &journal{}
	m := testcase.NewModule("mod")
	m.Fixture(fixture.Definition{Name: "proc", Scope: fixture.ScopeProcess, Provider: j.counted("proc")})
	m.Fixture(fixture.Definition{Name: "mod", Scope: fixture.ScopeModule, Provider: j.counted("mod")})
	m.Fixture(fixture.Definition{Name: "cls", Scope: fixture.ScopeClass, Provider: j.counted("cls")})
	m.Fixture(fixture.Definition{Name: "fn", Provider: j.counted("fn")})
	m.Test("test_a", noop, "proc", "mod", "cls", "fn")

	reg, cases := discover(t, m)
	r := newResolver(reg)
	ctx := context.Background()
	_, err := r.Resolve(ctx, cases[0], 0)
	require.NoError(t, err)

	assert.Equal(t, KeysFor(cases[0], 0), r.Active())
	reports := r.CloseAll(ctx)
	require.Len(t, reports, 4)
	assert.Equal(t, []string{
		"setup proc#1", "setup mod#2", "setup cls#3", "setup fn#4",
		"teardown fn#4", "teardown cls#3", "teardown mod#2", "teardown proc#1",
	}, j.steps)
	assert.Empty(t, r.Active())
}

func TestObserver_ReceivesOrderedEvents(t *testing.T) {
	var events []Event
	m := testcase.NewModule("mod")
	m.Fixture(fixture.Definition{Name: "shared", Scope: fixture.ScopeModule, Provider: fixture.Constant(1)})
	m.Test("test_a", noop, "shared")
	m.Test("test_b", noop, "shared")

	reg, cases := discover(t, m)
	r := newResolver(reg, WithObserver(ObserverFunc(func(e Event) { events = append(events, e) })))
	ctx := context.Background()
	for _, c := range cases {
		_, err := r.Resolve(ctx, c, 0)
		require.NoError(t, err)
	}
	r.CloseAll(ctx)

	require.Len(t, events, 2)
	assert.Equal(t, EventSetup, events[0].Kind)
	assert.Equal(t, EventReuse, events[1].Kind)
	assert.Equal(t, int64(1), events[0].Seq)
	assert.Equal(t, int64(2), events[1].Seq)
	assert.Equal(t, int64(2), r.Clock().Current())
}
