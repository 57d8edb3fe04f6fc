// Package marker attaches declarative metadata to tests.
//
// Markers never alter a test body. The executor consults two of them:
// "xfail" (the test is expected to fail) and "skip" (the test is not run).
// Every other marker is an opaque tag used only for selection, e.g.
// "smoke" or "win10".
package marker

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Recognized marker names.
const (
	NameXFail = "xfail"
	NameSkip  = "skip"
)

// Marker is a tag attached to a test.
type Marker struct {
	Name   string            `yaml:"name" json:"name"`
	Reason string            `yaml:"reason,omitempty" json:"reason,omitempty"`
	Strict bool              `yaml:"strict,omitempty" json:"strict,omitempty"`
	Args   map[string]string `yaml:"args,omitempty" json:"args,omitempty"`
}

// Tag builds a selection-only marker.
func Tag(name string) Marker {
	return Marker{Name: name}
}

// XFail marks a test as expected to fail. An unexpected pass is reported
// as an anomaly, not a failure.
func XFail(reason string) Marker {
	return Marker{Name: NameXFail, Reason: reason}
}

// StrictXFail marks a test as expected to fail; an unexpected pass fails.
func StrictXFail(reason string) Marker {
	return Marker{Name: NameXFail, Reason: reason, Strict: true}
}

// Skip marks a test as not to be run.
func Skip(reason string) Marker {
	return Marker{Name: NameSkip, Reason: reason}
}

func (m Marker) String() string {
	if m.Reason == "" {
		return m.Name
	}
	return fmt.Sprintf("%s(%q)", m.Name, m.Reason)
}

// Set is the markers of one test, in application order.
type Set []Marker

// Has reports whether a marker with name is present.
func (s Set) Has(name string) bool {
	_, ok := s.Get(name)
	return ok
}

// Get returns the first marker with name.
func (s Set) Get(name string) (Marker, bool) {
	for _, m := range s {
		if m.Name == name {
			return m, true
		}
	}
	return Marker{}, false
}

// Names returns the distinct marker names, sorted.
func (s Set) Names() []string {
	seen := make(map[string]bool, len(s))
	var names []string
	for _, m := range s {
		if !seen[m.Name] {
			seen[m.Name] = true
			names = append(names, m.Name)
		}
	}
	sort.Strings(names)
	return names
}

func (s Set) String() string {
	parts := make([]string, len(s))
	for i, m := range s {
		parts[i] = m.String()
	}
	return strings.Join(parts, ", ")
}

// Table maps test IDs to their markers. It is populated at registration
// time and consulted when outcomes are classified.
type Table map[string]Set

// Add appends markers to a test.
func (t Table) Add(id string, markers ...Marker) {
	t[id] = append(t[id], markers...)
}

// Get returns the markers of a test.
func (t Table) Get(id string) Set {
	return t[id]
}

// Merge adds every entry of other to t.
func (t Table) Merge(other Table) {
	for id, set := range other {
		t.Add(id, set...)
	}
}

// UnknownMarkerError is returned in strict mode for unregistered markers.
type UnknownMarkerError struct {
	Name   string
	TestID string
}

func (e *UnknownMarkerError) Error() string {
	return fmt.Sprintf("unknown marker %q on %s (register it or disable strict markers)", e.Name, e.TestID)
}

// Known is the set of registered marker names.
type Known map[string]bool

// NewKnown registers the given names plus the recognized ones.
func NewKnown(names ...string) Known {
	k := Known{NameXFail: true, NameSkip: true}
	for _, n := range names {
		k[n] = true
	}
	return k
}

// Check verifies every marker in the table is registered.
func (k Known) Check(t Table) error {
	ids := make([]string, 0, len(t))
	for id := range t {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var errs []error
	for _, id := range ids {
		for _, m := range t[id] {
			if !k[m.Name] {
				errs = append(errs, &UnknownMarkerError{Name: m.Name, TestID: id})
			}
		}
	}
	return errors.Join(errs...)
}
