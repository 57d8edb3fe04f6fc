package testcase

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/roach88/fixturekit/internal/fixture"
	"github.com/roach88/fixturekit/internal/marker"
)

// Registry enumerates test cases and owns the fixture registry and marker
// table they are declared against.
type Registry struct {
	Fixtures *fixture.Registry
	Markers  marker.Table

	cases []*Case
	ids   map[string]int
}

// NewRegistry creates a registry. Global fixtures may be registered on
// fixtures before Discover is called.
func NewRegistry(fixtures *fixture.Registry) *Registry {
	if fixtures == nil {
		fixtures = fixture.NewRegistry()
	}
	return &Registry{
		Fixtures: fixtures,
		Markers:  marker.Table{},
		ids:      make(map[string]int),
	}
}

// Discover registers the fixtures of every module, validates the fixture
// graph and expands each declared test into cases.
//
// Cases come back grouped by module then class, each group in declaration
// order. Configuration errors abort discovery and are returned together.
func (r *Registry) Discover(modules ...*Module) ([]*Case, error) {
	var errs []error
	for _, m := range modules {
		for _, def := range m.fixtures {
			errs = append(errs, r.Fixtures.Register(def))
		}
		for _, it := range m.items {
			if it.class == nil {
				continue
			}
			for _, def := range it.class.fixtures {
				errs = append(errs, r.Fixtures.Register(def))
			}
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	if err := r.Fixtures.Validate(); err != nil {
		return nil, err
	}

	var discovered []*Case
	for _, m := range modules {
		for _, it := range m.items {
			if it.test != nil {
				cases, err := r.expand(m.name, "", nil, it.test)
				errs = append(errs, err)
				discovered = append(discovered, cases...)
				continue
			}
			for _, d := range it.class.tests {
				cases, err := r.expand(m.name, it.class.name, it.class.markers, d)
				errs = append(errs, err)
				discovered = append(discovered, cases...)
			}
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	r.cases = append(r.cases, discovered...)
	return discovered, nil
}

// Cases returns every case discovered so far.
func (r *Registry) Cases() []*Case {
	out := make([]*Case, len(r.cases))
	copy(out, r.cases)
	return out
}

// Mark attaches markers to a discovered case and records them in the
// marker table.
func (r *Registry) Mark(c *Case, markers ...marker.Marker) {
	r.Markers.Add(c.ID, markers...)
	c.Markers = r.Markers.Get(c.ID)
}

// ApplyManifest attaches the markers of a manifest to every discovered case.
func (r *Registry) ApplyManifest(m *marker.Manifest) {
	ids := make([]string, len(r.cases))
	for i, c := range r.cases {
		ids[i] = c.ID
	}
	r.Markers.Merge(m.Table(ids))
	for _, c := range r.cases {
		c.Markers = r.Markers.Get(c.ID)
	}
}

// choice is one selected entry of a parametrization.
type choice struct {
	id       string
	direct   map[string]any
	indirect map[string]fixture.Param // by argument name
	fixtures map[string]fixture.Param // by definition key
}

func (r *Registry) expand(module, class string, classMarkers marker.Set, d *Decl) ([]*Case, error) {
	path := fixture.VisibilityPath(module, class)
	baseID := path + "::" + d.name

	if d.body == nil {
		return nil, &DeclarationError{TestID: baseID, Message: "body is required"}
	}

	dims, direct, indirect, err := d.dimensions(baseID)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(d.args))
	seen := make(map[string]bool)
	for _, def := range r.Fixtures.Autouse(path) {
		if !seen[def.Name] && !direct[def.Name] {
			seen[def.Name] = true
			names = append(names, def.Name)
		}
	}
	for _, arg := range d.args {
		if !seen[arg] && !direct[arg] {
			seen[arg] = true
			names = append(names, arg)
		}
	}

	for _, name := range names {
		if _, err := r.Fixtures.LookupFrom(name, path); err != nil {
			return nil, &fixture.FixtureNotFoundError{Name: name, RequiredBy: "test " + baseID}
		}
	}
	closure, err := r.Fixtures.Closure(path, names)
	if err != nil {
		return nil, err
	}

	indirectKeys := make(map[string]string, len(indirect))
	for name := range indirect {
		def, err := r.Fixtures.LookupFrom(name, path)
		if err != nil {
			return nil, err
		}
		indirectKeys[name] = def.Key()
	}

	// Fixture-level params multiply the cases unless the test feeds the
	// fixture indirectly.
	for _, def := range closure {
		if len(def.Params) == 0 || indirect[def.Name] && indirectKeys[def.Name] == def.Key() {
			continue
		}
		var dim []choice
		for _, p := range def.Params {
			dim = append(dim, choice{
				id:       p.ID,
				fixtures: map[string]fixture.Param{def.Key(): p},
			})
		}
		dims = append(dims, dim)
	}

	markers := append(append(marker.Set{}, classMarkers...), d.markers...)

	var cases []*Case
	for _, combo := range product(dims) {
		c := &Case{
			Name:     d.name,
			Module:   module,
			Class:    class,
			Fixtures: names,
			Args:     make(map[string]any),
			Params:   make(map[string]fixture.Param),
			Body:     d.body,
		}
		var ids []string
		for _, ch := range combo {
			ids = append(ids, ch.id)
			for k, v := range ch.direct {
				c.Args[k] = v
			}
			for name, p := range ch.indirect {
				c.Params[indirectKeys[name]] = p
			}
			for key, p := range ch.fixtures {
				c.Params[key] = p
			}
		}
		c.ParamID = strings.Join(ids, "-")
		c.ID = r.uniqueID(baseID, c.ParamID)

		r.Markers.Add(c.ID, markers...)
		c.Markers = r.Markers.Get(c.ID)
		cases = append(cases, c)
	}
	return cases, nil
}

// dimensions validates the parametrizations of d and turns each into a
// list of choices. It also reports which argument names are direct and
// which are indirect.
func (d *Decl) dimensions(testID string) ([][]choice, map[string]bool, map[string]bool, error) {
	declared := make(map[string]bool, len(d.args))
	for _, a := range d.args {
		declared[a] = true
	}
	direct := make(map[string]bool)
	indirect := make(map[string]bool)

	var dims [][]choice
	for _, p := range d.params {
		if len(p.argnames) == 0 {
			return nil, nil, nil, &DeclarationError{TestID: testID, Message: "parametrize needs at least one argument name"}
		}
		if len(p.values) == 0 {
			return nil, nil, nil, &DeclarationError{TestID: testID, Message: fmt.Sprintf("empty parameter set for %s", strings.Join(p.argnames, ","))}
		}
		if p.ids != nil && len(p.ids) != len(p.values) {
			return nil, nil, nil, &DeclarationError{TestID: testID, Message: fmt.Sprintf("%d ids for %d values", len(p.ids), len(p.values))}
		}
		for _, n := range p.argnames {
			if !declared[n] {
				return nil, nil, nil, &DeclarationError{TestID: testID, Message: fmt.Sprintf("parametrized argument %q is not declared", n)}
			}
			if direct[n] || indirect[n] {
				return nil, nil, nil, &DeclarationError{TestID: testID, Message: fmt.Sprintf("argument %q parametrized twice", n)}
			}
		}
		for n := range p.indirect {
			if !contains(p.argnames, n) {
				return nil, nil, nil, &DeclarationError{TestID: testID, Message: fmt.Sprintf("indirect argument %q is not parametrized", n)}
			}
		}
		for _, n := range p.argnames {
			if p.indirect[n] {
				indirect[n] = true
			} else {
				direct[n] = true
			}
		}

		var dim []choice
		for i, v := range p.values {
			tuple := []any{v}
			if len(p.argnames) > 1 {
				t, ok := v.([]any)
				if !ok || len(t) != len(p.argnames) {
					return nil, nil, nil, &DeclarationError{TestID: testID, Message: fmt.Sprintf("value %d must be a tuple of %d", i, len(p.argnames))}
				}
				tuple = t
			}

			ch := choice{direct: make(map[string]any), indirect: make(map[string]fixture.Param)}
			var parts []string
			for j, n := range p.argnames {
				id := paramID(n, i, tuple[j])
				parts = append(parts, id)
				if p.indirect[n] {
					ch.indirect[n] = fixture.Param{ID: id, Value: tuple[j]}
				} else {
					ch.direct[n] = tuple[j]
				}
			}
			ch.id = strings.Join(parts, "-")
			if p.ids != nil {
				ch.id = p.ids[i]
				for n, prm := range ch.indirect {
					prm.ID = p.ids[i]
					ch.indirect[n] = prm
				}
			}
			dim = append(dim, ch)
		}
		dims = append(dims, dim)
	}
	return dims, direct, indirect, nil
}

func (r *Registry) uniqueID(base, paramID string) string {
	id := base
	if paramID != "" {
		id = base + "[" + paramID + "]"
	}
	n := r.ids[id]
	r.ids[id] = n + 1
	if n == 0 {
		return id
	}
	if paramID == "" {
		return fmt.Sprintf("%s[%d]", base, n)
	}
	return fmt.Sprintf("%s[%s%d]", base, paramID, n)
}

// paramID renders scalar values; anything else is named after its
// argument and position.
func paramID(argname string, i int, v any) string {
	if v == nil {
		return "None"
	}
	switch reflect.ValueOf(v).Kind() {
	case reflect.String, reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return fmt.Sprint(v)
	default:
		return fmt.Sprintf("%s%d", argname, i)
	}
}

// product returns the cartesian product of dims, first dimension outermost.
// No dimensions yields a single empty combination.
func product(dims [][]choice) [][]choice {
	combos := [][]choice{{}}
	for _, dim := range dims {
		var next [][]choice
		for _, prefix := range combos {
			for _, ch := range dim {
				combo := make([]choice, len(prefix), len(prefix)+1)
				copy(combo, prefix)
				next = append(next, append(combo, ch))
			}
		}
		combos = next
	}
	return combos
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
