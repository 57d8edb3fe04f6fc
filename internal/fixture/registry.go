package fixture

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Registry holds fixture definitions keyed by name and visibility.
//
// The registry is populated during discovery and is read-only afterwards;
// it is not safe for concurrent registration.
type Registry struct {
	byName map[string][]*Definition
	order  []*Definition
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string][]*Definition)}
}

// Register adds a fixture definition.
// Returns DuplicateFixtureError if the name is already declared with the
// same visibility; narrower visibilities may shadow wider ones.
func (r *Registry) Register(def Definition) error {
	if def.Name == "" {
		return &InvalidDefinitionError{Message: "name is required"}
	}
	if def.Provider == nil {
		return &InvalidDefinitionError{Name: def.Name, Message: "provider is required"}
	}
	scope, err := ParseScope(string(def.Scope))
	if err != nil {
		return &InvalidDefinitionError{Name: def.Name, Message: err.Error()}
	}
	def.Scope = scope

	seen := make(map[string]bool, len(def.Params))
	for _, p := range def.Params {
		if seen[p.ID] {
			return &InvalidDefinitionError{Name: def.Name, Message: fmt.Sprintf("duplicate param id %q", p.ID)}
		}
		seen[p.ID] = true
	}

	for _, existing := range r.byName[def.Name] {
		if existing.Visibility == def.Visibility {
			return &DuplicateFixtureError{Name: def.Name, Visibility: def.Visibility}
		}
	}

	d := def
	r.byName[def.Name] = append(r.byName[def.Name], &d)
	r.order = append(r.order, &d)
	return nil
}

// Lookup returns the globally visible definition of name.
func (r *Registry) Lookup(name string) (*Definition, error) {
	return r.LookupFrom(name, "")
}

// LookupFrom returns the nearest definition of name visible from path.
func (r *Registry) LookupFrom(name, path string) (*Definition, error) {
	var best *Definition
	for _, d := range r.byName[name] {
		if !visibleFrom(d.Visibility, path) {
			continue
		}
		if best == nil || len(d.Visibility) > len(best.Visibility) {
			best = d
		}
	}
	if best == nil {
		return nil, &FixtureNotFoundError{Name: name}
	}
	return best, nil
}

// Dependency resolves a name listed in def.Requires.
// A fixture requiring its own name reaches the definition it shadows.
func (r *Registry) Dependency(def *Definition, name string) (*Definition, error) {
	if name != def.Name {
		dep, err := r.LookupFrom(name, def.Visibility)
		if err != nil {
			return nil, &FixtureNotFoundError{Name: name, RequiredBy: "fixture " + def.Key()}
		}
		return dep, nil
	}

	var best *Definition
	for _, d := range r.byName[name] {
		if len(d.Visibility) >= len(def.Visibility) || !visibleFrom(d.Visibility, def.Visibility) {
			continue
		}
		if best == nil || len(d.Visibility) > len(best.Visibility) {
			best = d
		}
	}
	if best == nil {
		return nil, &FixtureNotFoundError{Name: name, RequiredBy: "fixture " + def.Key() + " (override)"}
	}
	return best, nil
}

// Autouse returns the autouse fixtures visible from path, widest scope
// first and then in registration order.
func (r *Registry) Autouse(path string) []*Definition {
	var defs []*Definition
	for _, d := range r.order {
		if !d.Autouse || !visibleFrom(d.Visibility, path) {
			continue
		}
		// Skip if shadowed by a nearer declaration of the same name.
		if nearest, err := r.LookupFrom(d.Name, path); err == nil && nearest != d {
			continue
		}
		defs = append(defs, d)
	}
	sort.SliceStable(defs, func(i, j int) bool {
		return defs[i].Scope.Wider(defs[j].Scope)
	})
	return defs
}

// Closure returns the definitions needed to provide names from path,
// dependencies before dependents, each definition once.
func (r *Registry) Closure(path string, names []string) ([]*Definition, error) {
	var out []*Definition
	seen := make(map[*Definition]bool)

	var visit func(def *Definition) error
	visit = func(def *Definition) error {
		if seen[def] {
			return nil
		}
		seen[def] = true
		for _, name := range def.Requires {
			dep, err := r.Dependency(def, name)
			if err != nil {
				return err
			}
			if err := visit(dep); err != nil {
				return err
			}
		}
		out = append(out, def)
		return nil
	}

	for _, name := range names {
		def, err := r.LookupFrom(name, path)
		if err != nil {
			return nil, err
		}
		if err := visit(def); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Definitions returns every definition in registration order.
func (r *Registry) Definitions() []*Definition {
	out := make([]*Definition, len(r.order))
	copy(out, r.order)
	return out
}

// Len returns the number of registered definitions.
func (r *Registry) Len() int {
	return len(r.order)
}

// Validate checks the registry before any test runs: every requirement
// must resolve, requirements may not narrow the scope, and the dependency
// graph must be acyclic. All problems are reported together.
func (r *Registry) Validate() error {
	var errs []error
	graph := make(dependencyGraph, len(r.order))

	for _, def := range r.order {
		key := def.Key()
		graph[key] = []string{}
		for _, name := range def.Requires {
			dep, err := r.Dependency(def, name)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			if dep.Scope.Normalize().rank() < def.Scope.Normalize().rank() {
				errs = append(errs, &ScopeMismatchError{
					Fixture:    key,
					Scope:      def.Scope,
					Dependency: dep.Key(),
					DepScope:   dep.Scope,
				})
			}
			graph[key] = append(graph[key], dep.Key())
		}
	}

	for _, path := range findCycles(graph) {
		errs = append(errs, &CyclicDependencyError{Path: path})
	}

	return errors.Join(errs...)
}

// String renders one line per definition in registration order.
func (r *Registry) String() string {
	var b strings.Builder
	for _, d := range r.order {
		fmt.Fprintf(&b, "%s (%s)", d.Key(), d.Scope)
		if len(d.Params) > 0 {
			fmt.Fprintf(&b, " params=%d", len(d.Params))
		}
		if d.Autouse {
			b.WriteString(" autouse")
		}
		b.WriteString("\n")
	}
	return b.String()
}
