package testcase

import "github.com/roach88/fixturekit/internal/fixture"

// Group is a contiguous run of cases sharing a module and class.
type Group struct {
	Module string
	Class  string
	Cases  []*Case
}

// Path returns the group's visibility path.
func (g Group) Path() string {
	return fixture.VisibilityPath(g.Module, g.Class)
}

// Groups splits cases into contiguous groups, preserving order.
func Groups(cases []*Case) []Group {
	var groups []Group
	for _, c := range cases {
		n := len(groups)
		if n > 0 && groups[n-1].Module == c.Module && groups[n-1].Class == c.Class {
			groups[n-1].Cases = append(groups[n-1].Cases, c)
			continue
		}
		groups = append(groups, Group{Module: c.Module, Class: c.Class, Cases: []*Case{c}})
	}
	return groups
}
