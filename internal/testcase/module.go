package testcase

import (
	"strings"

	"github.com/roach88/fixturekit/internal/fixture"
	"github.com/roach88/fixturekit/internal/marker"
)

// Module declares the fixtures, classes and tests of one test module.
// Items keep their declaration order.
type Module struct {
	name     string
	fixtures []fixture.Definition
	items    []item
}

// item is either a module-level test or a class.
type item struct {
	test  *Decl
	class *Class
}

// NewModule starts a module declaration.
func NewModule(name string) *Module {
	return &Module{name: name}
}

// Name returns the module name.
func (m *Module) Name() string {
	return m.name
}

// Fixture declares a fixture visible to every test of the module.
func (m *Module) Fixture(def fixture.Definition) *Module {
	def.Visibility = m.name
	m.fixtures = append(m.fixtures, def)
	return m
}

// Class declares a test class.
func (m *Module) Class(name string) *Class {
	c := &Class{module: m, name: name}
	m.items = append(m.items, item{class: c})
	return c
}

// Test declares a module-level test. args names the fixtures and direct
// parameters the body reads.
func (m *Module) Test(name string, body Body, args ...string) *Decl {
	d := newDecl(name, body, args)
	m.items = append(m.items, item{test: d})
	return d
}

// Class groups tests and class-visible fixtures.
type Class struct {
	module   *Module
	name     string
	fixtures []fixture.Definition
	tests    []*Decl
	markers  marker.Set
}

// Name returns the class name.
func (c *Class) Name() string {
	return c.name
}

// Fixture declares a fixture visible only to the class.
func (c *Class) Fixture(def fixture.Definition) *Class {
	def.Visibility = fixture.VisibilityPath(c.module.name, c.name)
	c.fixtures = append(c.fixtures, def)
	return c
}

// Mark applies markers to every test of the class.
func (c *Class) Mark(markers ...marker.Marker) *Class {
	c.markers = append(c.markers, markers...)
	return c
}

// Test declares a test method.
func (c *Class) Test(name string, body Body, args ...string) *Decl {
	d := newDecl(name, body, args)
	c.tests = append(c.tests, d)
	return d
}

// Decl is a declared test before parametrization is expanded.
type Decl struct {
	name    string
	body    Body
	args    []string
	markers marker.Set
	params  []parametrization
}

func newDecl(name string, body Body, args []string) *Decl {
	return &Decl{name: name, body: body, args: args}
}

// Mark attaches markers to the test.
func (d *Decl) Mark(markers ...marker.Marker) *Decl {
	d.markers = append(d.markers, markers...)
	return d
}

// ParamOption configures a Parametrize call.
type ParamOption func(p *parametrization)

// Indirect routes the named arguments to the fixtures of the same name
// instead of injecting them. The fixture reads the raw value through
// fixture.Request.Param. With no names every argument is indirect.
func Indirect(names ...string) ParamOption {
	return func(p *parametrization) {
		if len(names) == 0 {
			names = p.argnames
		}
		for _, n := range names {
			p.indirect[n] = true
		}
	}
}

// IDs overrides the generated parameter IDs.
func IDs(ids ...string) ParamOption {
	return func(p *parametrization) {
		p.ids = ids
	}
}

// Parametrize runs the test once per entry of values. argnames is a
// comma-separated list; with more than one name every value must be a
// []any of matching length.
func (d *Decl) Parametrize(argnames string, values []any, opts ...ParamOption) *Decl {
	p := parametrization{
		argnames: splitArgnames(argnames),
		values:   values,
		indirect: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(&p)
	}
	d.params = append(d.params, p)
	return d
}

type parametrization struct {
	argnames []string
	values   []any
	indirect map[string]bool
	ids      []string
}

func splitArgnames(s string) []string {
	var names []string
	for _, part := range strings.Split(s, ",") {
		if n := strings.TrimSpace(part); n != "" {
			names = append(names, n)
		}
	}
	return names
}
