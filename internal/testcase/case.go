// Package testcase enumerates test cases, their fixture requirements and
// their markers.
//
// Tests are declared with Module builders, discovered into an ordered
// sequence of Cases (parametrization expanded), filtered by marker
// expressions or name patterns, and grouped by class and module so the
// resolver knows where scope activations end.
package testcase

import (
	"context"

	"github.com/roach88/fixturekit/internal/fixture"
	"github.com/roach88/fixturekit/internal/marker"
)

// T is the handle a test body receives. It satisfies the TestingT
// interfaces of testify's assert and require packages.
type T interface {
	// Errorf records a failure and lets the body continue.
	Errorf(format string, args ...any)

	// FailNow stops the body. The test is reported as failed.
	FailNow()

	// Failed reports whether a failure was recorded.
	Failed() bool

	// Logf appends to the test's captured output.
	Logf(format string, args ...any)

	// Helper is a no-op kept for testify.
	Helper()

	// Name returns the test ID.
	Name() string

	// Context is cancelled when the test times out.
	Context() context.Context

	// Value returns an injected value: a direct parameter or a fixture.
	Value(name string) any
}

// Body is the test procedure. A returned error or a recorded failure
// fails the test.
type Body func(t T) error

// Case is one executable test: a declared test with one combination of
// parameters selected.
type Case struct {
	// ID is unique within a run: "module::Class::name[params]".
	ID string

	// Name is the declared test name.
	Name string

	Module string
	Class  string

	// Fixtures lists the fixture names to resolve, autouse first, then in
	// declaration order. Direct parameters are not listed.
	Fixtures []string

	// Args holds direct parameter values by argument name.
	Args map[string]any

	// Params holds the selected param of every parametrized fixture in the
	// case's closure, keyed by fixture.Definition.Key.
	Params map[string]fixture.Param

	// ParamID is the bracketed suffix of ID, empty when not parametrized.
	ParamID string

	Markers marker.Set
	Body    Body
}

// Visibility returns the grouping path fixtures are looked up from.
func (c *Case) Visibility() string {
	return fixture.VisibilityPath(c.Module, c.Class)
}

// Param returns the selected param for a fixture definition.
func (c *Case) Param(def *fixture.Definition) (fixture.Param, bool) {
	p, ok := c.Params[def.Key()]
	return p, ok
}

func (c *Case) String() string {
	return c.ID
}
