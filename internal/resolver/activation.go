package resolver

import (
	"errors"
	"fmt"

	"github.com/roach88/fixturekit/internal/fixture"
	"github.com/roach88/fixturekit/internal/testcase"
)

// ActivationKey identifies one activation of a scope: the lifetime of the
// instances shared by a single function call, class, module or the whole
// process.
type ActivationKey struct {
	Scope fixture.Scope
	Key   string
}

func (k ActivationKey) String() string {
	if k.Key == "" {
		return string(k.Scope)
	}
	return fmt.Sprintf("%s %s", k.Scope, k.Key)
}

// KeyFor returns the activation of scope that c runs in. Each attempt of a
// rerun test gets its own function activation. Tests declared outside any
// class share a class activation per module.
func KeyFor(scope fixture.Scope, c *testcase.Case, attempt int) ActivationKey {
	switch scope.Normalize() {
	case fixture.ScopeClass:
		return ActivationKey{Scope: fixture.ScopeClass, Key: c.Module + "::" + c.Class}
	case fixture.ScopeModule:
		return ActivationKey{Scope: fixture.ScopeModule, Key: c.Module}
	case fixture.ScopeProcess:
		return ActivationKey{Scope: fixture.ScopeProcess}
	default:
		return ActivationKey{Scope: fixture.ScopeFunction, Key: fmt.Sprintf("%s#%d", c.ID, attempt)}
	}
}

// KeysFor returns every activation c runs in, narrowest first.
func KeysFor(c *testcase.Case, attempt int) []ActivationKey {
	keys := make([]ActivationKey, len(fixture.Scopes))
	for i, s := range fixture.Scopes {
		keys[i] = KeyFor(s, c, attempt)
	}
	return keys
}

type instance struct {
	def   *fixture.Definition
	param *fixture.Param
	value any
}

type pending struct {
	fixture string
	fn      fixture.Teardown
}

// activation owns the live instances of one scope activation and the
// teardowns acquired for them.
type activation struct {
	key       ActivationKey
	instances map[string]*instance
	failures  map[string]error
	teardowns []pending
}

func newActivation(key ActivationKey) *activation {
	return &activation{
		key:       key,
		instances: make(map[string]*instance),
		failures:  make(map[string]error),
	}
}

func (a *activation) push(name string, fn fixture.Teardown) {
	if fn != nil {
		a.teardowns = append(a.teardowns, pending{fixture: name, fn: fn})
	}
}

// instanceKey distinguishes the instances of a parametrized fixture.
func instanceKey(def *fixture.Definition, param *fixture.Param) string {
	if param == nil {
		return def.Key()
	}
	return def.Key() + "[" + param.ID + "]"
}

// ClosureReport describes the closing of one activation.
type ClosureReport struct {
	Activation ActivationKey

	// TornDown counts the teardowns that ran, failed ones included.
	TornDown int

	Errors []*TeardownError
}

// OK reports whether every teardown succeeded.
func (r ClosureReport) OK() bool {
	return len(r.Errors) == 0
}

// Err joins the teardown errors, nil when there were none.
func (r ClosureReport) Err() error {
	errs := make([]error, len(r.Errors))
	for i, e := range r.Errors {
		errs[i] = e
	}
	return errors.Join(errs...)
}
