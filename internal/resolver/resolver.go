// Package resolver materializes the fixtures a test requires and owns
// their lifetimes.
//
// Instances live in scope activations (see KeyFor). An activation is
// created the first time a test needs one of its fixtures and lives until
// Close is called for it; the runner closes activations after the last
// test that runs in them. Closing runs the pending teardowns in reverse
// acquisition order and keeps going past failures.
package resolver

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/roach88/fixturekit/internal/config"
	"github.com/roach88/fixturekit/internal/fixture"
	"github.com/roach88/fixturekit/internal/logger"
	"github.com/roach88/fixturekit/internal/testcase"
)

// Values maps requested fixture names to their values for one test.
type Values map[string]any

// EventKind classifies resolver events.
type EventKind string

const (
	EventSetup    EventKind = "setup"
	EventReuse    EventKind = "reuse"
	EventTeardown EventKind = "teardown"
)

// Event describes one fixture lifecycle step.
type Event struct {
	Seq        int64
	Kind       EventKind
	Fixture    string
	Scope      fixture.Scope
	Activation ActivationKey
	TestID     string
	Duration   time.Duration
	Err        error
}

// Observer receives fixture events as they happen.
type Observer interface {
	FixtureEvent(e Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(e Event)

// FixtureEvent calls f(e).
func (f ObserverFunc) FixtureEvent(e Event) {
	f(e)
}

// Resolver resolves fixtures for tests. It is used by one goroutine at a
// time; the runner executes tests sequentially.
type Resolver struct {
	reg       *fixture.Registry
	cfg       *config.Config
	log       *slog.Logger
	clock     *Clock
	observers []Observer

	active map[ActivationKey]*activation
	order  []ActivationKey
}

// Option configures a Resolver.
type Option func(r *Resolver)

// WithConfig sets the configuration handed to providers.
func WithConfig(cfg *config.Config) Option {
	return func(r *Resolver) { r.cfg = cfg }
}

// WithLogger sets the logger. Without it the context logger is used.
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) { r.log = l }
}

// WithObserver adds an event observer.
func WithObserver(o Observer) Option {
	return func(r *Resolver) { r.observers = append(r.observers, o) }
}

// WithClock sets the clock events are stamped from.
func WithClock(c *Clock) Option {
	return func(r *Resolver) { r.clock = c }
}

// New creates a resolver over a validated registry.
func New(reg *fixture.Registry, opts ...Option) *Resolver {
	r := &Resolver{
		reg:    reg,
		cfg:    config.Default(),
		clock:  NewClock(),
		active: make(map[ActivationKey]*activation),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Clock returns the resolver's clock.
func (r *Resolver) Clock() *Clock {
	return r.clock
}

// Resolve provides every fixture c requires, reusing live instances of
// wider scopes. attempt distinguishes reruns of the same case.
//
// On failure the returned values hold what was resolved before the failing
// fixture. Instances created before the failure stay owned by their
// activations and are released when those close.
func (r *Resolver) Resolve(ctx context.Context, c *testcase.Case, attempt int) (Values, error) {
	values := make(Values, len(c.Fixtures))
	provided := make(map[*fixture.Definition]any)

	for _, name := range c.Fixtures {
		def, err := r.reg.LookupFrom(name, c.Visibility())
		if err != nil {
			return values, &FixtureResolutionError{Fixture: name, TestID: c.ID, Err: err}
		}
		v, err := r.provide(ctx, c, attempt, def, provided)
		if err != nil {
			return values, err
		}
		values[name] = v
	}
	return values, nil
}

func (r *Resolver) provide(ctx context.Context, c *testcase.Case, attempt int, def *fixture.Definition, provided map[*fixture.Definition]any) (any, error) {
	if v, ok := provided[def]; ok {
		return v, nil
	}

	key := KeyFor(def.Scope, c, attempt)
	act := r.activation(key)

	var param *fixture.Param
	if p, ok := c.Param(def); ok {
		param = &p
	}
	ikey := instanceKey(def, param)

	if inst, ok := act.instances[ikey]; ok {
		provided[def] = inst.value
		r.emit(Event{Kind: EventReuse, Fixture: def.Key(), Scope: def.Scope, Activation: key, TestID: c.ID})
		return inst.value, nil
	}
	if err, ok := act.failures[ikey]; ok {
		return nil, &FixtureResolutionError{Fixture: def.Key(), TestID: c.ID, Cached: true, Err: err}
	}

	deps := make(map[string]any, len(def.Requires))
	for _, name := range def.Requires {
		dep, err := r.reg.Dependency(def, name)
		if err != nil {
			return nil, newResolutionError(def, c.ID, err)
		}
		v, err := r.provide(ctx, c, attempt, dep, provided)
		if err != nil {
			return nil, err
		}
		deps[name] = v
	}

	log := r.logger(ctx).With("fixture", def.Key(), "scope", def.Scope)
	req := fixture.NewRequest(ctx, def, deps)
	req.TestID = c.ID
	req.Param = param
	req.Config = r.cfg
	req.Logger = log

	start := time.Now()
	value, teardown, err := callProvider(def.Provider, req)
	elapsed := time.Since(start)

	// Finalizers registered before a failure still own resources.
	for _, fin := range req.Finalizers() {
		act.push(def.Key(), fin)
	}

	if err != nil {
		if key.Scope != fixture.ScopeFunction {
			act.failures[ikey] = err
		}
		log.Debug("fixture setup failed", "test", c.ID, "error", err)
		r.emit(Event{Kind: EventSetup, Fixture: def.Key(), Scope: def.Scope, Activation: key, TestID: c.ID, Duration: elapsed, Err: err})
		return nil, newResolutionError(def, c.ID, err)
	}

	act.push(def.Key(), teardown)
	if def.Teardown != nil {
		release := def.Teardown
		act.push(def.Key(), func() error { return release(value) })
	}
	if teardown == nil && def.Teardown == nil && len(req.Finalizers()) == 0 && !fixture.DeclaresTeardown(def.Provider) {
		log.Debug("return-style fixture registered no teardown")
	}

	act.instances[ikey] = &instance{def: def, param: param, value: value}
	provided[def] = value

	log.Debug("fixture provided", "test", c.ID, "activation", key.String())
	r.emit(Event{Kind: EventSetup, Fixture: def.Key(), Scope: def.Scope, Activation: key, TestID: c.ID, Duration: elapsed})
	return value, nil
}

// Close ends an activation: its teardowns run in reverse acquisition
// order, each exactly once, continuing past failures. Closing an
// activation that is not live returns an empty report.
func (r *Resolver) Close(ctx context.Context, key ActivationKey) ClosureReport {
	report := ClosureReport{Activation: key}
	act, ok := r.active[key]
	if !ok {
		return report
	}
	delete(r.active, key)
	for i, k := range r.order {
		if k == key {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}

	log := r.logger(ctx)
	for i := len(act.teardowns) - 1; i >= 0; i-- {
		p := act.teardowns[i]
		start := time.Now()
		err := callTeardown(p.fn)
		report.TornDown++

		ev := Event{Kind: EventTeardown, Fixture: p.fixture, Scope: key.Scope, Activation: key, Duration: time.Since(start)}
		if err != nil {
			te := &TeardownError{Fixture: p.fixture, Activation: key, Err: err}
			report.Errors = append(report.Errors, te)
			ev.Err = te
			log.Warn("fixture teardown failed", "fixture", p.fixture, "activation", key.String(), "error", err)
		}
		r.emit(ev)
	}
	if report.TornDown > 0 {
		log.Debug("activation closed", "activation", key.String(), "teardowns", report.TornDown)
	}
	return report
}

// CloseAll closes every live activation, narrowest scope first and, within
// a scope, most recently created first.
func (r *Resolver) CloseAll(ctx context.Context) []ClosureReport {
	keys := r.Active()
	var reports []ClosureReport
	for _, key := range keys {
		reports = append(reports, r.Close(ctx, key))
	}
	return reports
}

// Active returns the live activations in the order CloseAll closes them.
func (r *Resolver) Active() []ActivationKey {
	keys := make([]ActivationKey, len(r.order))
	for i, k := range r.order {
		keys[len(keys)-1-i] = k
	}
	sort.SliceStable(keys, func(i, j int) bool {
		return keys[j].Scope.Wider(keys[i].Scope)
	})
	return keys
}

// Live reports whether an activation holds instances or pending teardowns.
func (r *Resolver) Live(key ActivationKey) bool {
	_, ok := r.active[key]
	return ok
}

func (r *Resolver) activation(key ActivationKey) *activation {
	act, ok := r.active[key]
	if !ok {
		act = newActivation(key)
		r.active[key] = act
		r.order = append(r.order, key)
	}
	return act
}

func (r *Resolver) emit(e Event) {
	e.Seq = r.clock.Next()
	for _, o := range r.observers {
		o.FixtureEvent(e)
	}
}

func (r *Resolver) logger(ctx context.Context) *slog.Logger {
	if r.log != nil {
		return r.log
	}
	return logger.Component(ctx, "resolver")
}

func callProvider(p fixture.Provider, req *fixture.Request) (value any, td fixture.Teardown, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			value, td, err = nil, nil, &PanicError{Value: rec}
		}
	}()
	return p.Provide(req)
}

func callTeardown(fn fixture.Teardown) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = &PanicError{Value: rec}
		}
	}()
	return fn()
}
