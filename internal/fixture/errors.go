package fixture

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode categorizes fixture errors.
type ErrorCode string

const (
	// ErrCodeDuplicate indicates a name registered twice with the same visibility.
	ErrCodeDuplicate ErrorCode = "DUPLICATE_FIXTURE"

	// ErrCodeNotFound indicates a requested fixture has no visible definition.
	ErrCodeNotFound ErrorCode = "FIXTURE_NOT_FOUND"

	// ErrCodeCycle indicates a fixture depends on itself.
	ErrCodeCycle ErrorCode = "CYCLIC_DEPENDENCY"

	// ErrCodeScopeMismatch indicates a fixture requires a narrower-scoped one.
	ErrCodeScopeMismatch ErrorCode = "SCOPE_MISMATCH"

	// ErrCodeInvalid indicates a malformed definition.
	ErrCodeInvalid ErrorCode = "INVALID_FIXTURE"
)

// DuplicateFixtureError is returned by Register when the name is already
// declared in the same visibility.
type DuplicateFixtureError struct {
	Name       string
	Visibility string
}

func (e *DuplicateFixtureError) Error() string {
	return fmt.Sprintf("%s: fixture %q already registered in %s", ErrCodeDuplicate, e.Name, describeVisibility(e.Visibility))
}

// FixtureNotFoundError is returned when no definition of Name is visible.
type FixtureNotFoundError struct {
	Name string
	// RequiredBy is the test or fixture that asked for it.
	RequiredBy string
}

func (e *FixtureNotFoundError) Error() string {
	if e.RequiredBy != "" {
		return fmt.Sprintf("%s: fixture %q not found (required by %s)", ErrCodeNotFound, e.Name, e.RequiredBy)
	}
	return fmt.Sprintf("%s: fixture %q not found", ErrCodeNotFound, e.Name)
}

// CyclicDependencyError is returned when fixture requirements form a cycle.
type CyclicDependencyError struct {
	// Path is the cycle: ["a", "b", "a"].
	Path []string
}

func (e *CyclicDependencyError) Error() string {
	return fmt.Sprintf("%s: %s", ErrCodeCycle, strings.Join(e.Path, " → "))
}

// ScopeMismatchError is returned when a fixture requires a fixture that
// does not live as long as it does.
type ScopeMismatchError struct {
	Fixture    string
	Scope      Scope
	Dependency string
	DepScope   Scope
}

func (e *ScopeMismatchError) Error() string {
	return fmt.Sprintf("%s: %s-scoped fixture %q requires %s-scoped fixture %q",
		ErrCodeScopeMismatch, e.Scope, e.Fixture, e.DepScope, e.Dependency)
}

// InvalidDefinitionError is returned for definitions missing required fields.
type InvalidDefinitionError struct {
	Name    string
	Message string
}

func (e *InvalidDefinitionError) Error() string {
	return fmt.Sprintf("%s: fixture %q: %s", ErrCodeInvalid, e.Name, e.Message)
}

// IsConfigError reports whether err is a configuration-time fixture error.
// Configuration errors are fatal to a run and reported before any test executes.
func IsConfigError(err error) bool {
	var (
		dup *DuplicateFixtureError
		nf  *FixtureNotFoundError
		cyc *CyclicDependencyError
		sm  *ScopeMismatchError
		inv *InvalidDefinitionError
	)
	return errors.As(err, &dup) || errors.As(err, &nf) || errors.As(err, &cyc) ||
		errors.As(err, &sm) || errors.As(err, &inv)
}

// IsCycleError reports whether err is a cyclic dependency error.
func IsCycleError(err error) bool {
	var cyc *CyclicDependencyError
	return errors.As(err, &cyc)
}

func describeVisibility(vis string) string {
	if vis == "" {
		return "global visibility"
	}
	return fmt.Sprintf("%q", vis)
}
