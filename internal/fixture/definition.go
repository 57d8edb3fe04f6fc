package fixture

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/roach88/fixturekit/internal/config"
)

// Teardown releases a fixture instance. It is invoked exactly once by the
// scope that owns the instance.
type Teardown func() error

// Provider materializes a fixture value.
//
// Providing is a two-phase acquisition: Provide returns the value together
// with an optional teardown handle. The owning scope invokes the handle when
// it closes, on every exit path. A provider that fails returns a non-nil
// error and its teardown handle is discarded.
type Provider interface {
	Provide(req *Request) (any, Teardown, error)
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc func(req *Request) (any, Teardown, error)

// Provide calls f(req).
func (f ProviderFunc) Provide(req *Request) (any, Teardown, error) {
	return f(req)
}

// Yield builds a suspension-style provider: setup runs, the value is handed
// to the consumer, and the returned teardown resumes once the scope ends.
func Yield(fn func(req *Request) (any, Teardown, error)) Provider {
	return ProviderFunc(fn)
}

// returning marks providers that hand back a value and never declare a
// teardown of their own.
type returning struct {
	fn func(req *Request) (any, error)
}

func (r returning) Provide(req *Request) (any, Teardown, error) {
	v, err := r.fn(req)
	return v, nil, err
}

// Value builds a return-style provider. Any cleanup a return-style provider
// needs must go through Request.AddFinalizer or Definition.Teardown; code
// placed after the return is never reached.
func Value(fn func(req *Request) (any, error)) Provider {
	return returning{fn: fn}
}

// Constant provides the same value to every request.
func Constant(v any) Provider {
	return Value(func(*Request) (any, error) { return v, nil })
}

// DeclaresTeardown reports whether p can hand back a teardown handle.
// Return-style providers cannot.
func DeclaresTeardown(p Provider) bool {
	_, ok := p.(returning)
	return !ok
}

// Param is one value of a parametrized fixture.
type Param struct {
	ID    string
	Value any
}

// Params builds a parameter list, using the formatted value as ID.
func Params(values ...any) []Param {
	params := make([]Param, len(values))
	for i, v := range values {
		params[i] = Param{ID: fmt.Sprint(v), Value: v}
	}
	return params
}

// Definition declares a named fixture.
type Definition struct {
	// Name is the identifier tests request the fixture by.
	Name string

	// Scope is the instance lifetime. Empty means function.
	Scope Scope

	// Provider materializes the value.
	Provider Provider

	// Params, when non-empty, parametrizes the fixture: every test that
	// uses it runs once per param.
	Params []Param

	// Requires names fixtures whose values the provider reads through
	// Request.Value. Requiring the fixture's own name reaches the
	// definition it shadows.
	Requires []string

	// Autouse makes every test that can see the fixture use it.
	Autouse bool

	// Teardown is a separately declared release step, run with the
	// provided value when the owning scope closes.
	Teardown func(value any) error

	// Visibility is the grouping path the fixture was declared in:
	// "" for global, "module" or "module::Class". Set by the registry
	// builders; narrower declarations shadow wider ones.
	Visibility string
}

// Key uniquely identifies a definition across visibilities.
func (d *Definition) Key() string {
	if d.Visibility == "" {
		return d.Name
	}
	return d.Visibility + "::" + d.Name
}

// VisibilityPath builds the grouping path for a module and optional class.
func VisibilityPath(module, class string) string {
	if class == "" {
		return module
	}
	return module + "::" + class
}

// visibleFrom reports whether a fixture declared at vis can be seen from path.
func visibleFrom(vis, path string) bool {
	if vis == "" || vis == path {
		return true
	}
	return strings.HasPrefix(path, vis+"::")
}

// Request is the provider's view of the fixture being resolved.
type Request struct {
	ctx        context.Context
	values     map[string]any
	finalizers []Teardown

	// Fixture is the definition being provided.
	Fixture *Definition

	// TestID identifies the test that triggered the setup.
	TestID string

	// Param is the selected parameter, nil when the fixture is not
	// parametrized directly or indirectly.
	Param *Param

	// Config is the run configuration.
	Config *config.Config

	// Logger is scoped to the fixture.
	Logger *slog.Logger
}

// NewRequest builds a request carrying the values of required fixtures.
func NewRequest(ctx context.Context, def *Definition, values map[string]any) *Request {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Request{
		ctx:     ctx,
		values:  values,
		Fixture: def,
		Logger:  slog.Default(),
	}
}

// Context returns the context of the resolution.
func (r *Request) Context() context.Context {
	return r.ctx
}

// Value returns the value of a required fixture.
func (r *Request) Value(name string) (any, bool) {
	v, ok := r.values[name]
	return v, ok
}

// MustValue returns the value of a required fixture and panics when the
// fixture was not declared in Requires.
func (r *Request) MustValue(name string) any {
	v, ok := r.values[name]
	if !ok {
		panic(fmt.Sprintf("fixture %q does not require %q", r.Fixture.Name, name))
	}
	return v
}

// ParamValue returns the selected param value, or nil.
func (r *Request) ParamValue() any {
	if r.Param == nil {
		return nil
	}
	return r.Param.Value
}

// AddFinalizer registers cleanup that runs when the owning scope closes,
// after teardowns acquired later.
func (r *Request) AddFinalizer(fn Teardown) {
	r.finalizers = append(r.finalizers, fn)
}

// Finalizers returns the finalizers registered so far, in registration order.
func (r *Request) Finalizers() []Teardown {
	return r.finalizers
}
