package resolver

import (
	"errors"
	"fmt"

	"github.com/roach88/fixturekit/internal/fixture"
)

// FixtureResolutionError is returned when a provider fails during setup.
// The test that triggered it reports an error outcome; siblings continue.
type FixtureResolutionError struct {
	// Fixture is the key of the definition whose provider failed.
	Fixture string

	// TestID is the test being resolved.
	TestID string

	// Cached is set when the failure was recorded by an earlier test of
	// the same activation and setup was not attempted again.
	Cached bool

	Err error
}

func (e *FixtureResolutionError) Error() string {
	if e.Cached {
		return fmt.Sprintf("RESOLUTION_FAILED: fixture %q for %s (cached): %v", e.Fixture, e.TestID, e.Err)
	}
	return fmt.Sprintf("RESOLUTION_FAILED: fixture %q for %s: %v", e.Fixture, e.TestID, e.Err)
}

func (e *FixtureResolutionError) Unwrap() error {
	return e.Err
}

// TeardownError is raised while releasing a fixture instance. It is
// attached to the closure report of the owning activation and never
// changes the outcome of a test.
type TeardownError struct {
	Fixture    string
	Activation ActivationKey
	Err        error
}

func (e *TeardownError) Error() string {
	return fmt.Sprintf("TEARDOWN_FAILED: fixture %q in %s: %v", e.Fixture, e.Activation, e.Err)
}

func (e *TeardownError) Unwrap() error {
	return e.Err
}

// PanicError wraps a value recovered from a provider or teardown.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// IsResolutionError reports whether err is a fixture resolution error.
func IsResolutionError(err error) bool {
	var re *FixtureResolutionError
	return errors.As(err, &re)
}

// IsTeardownError reports whether err contains a teardown error.
func IsTeardownError(err error) bool {
	var te *TeardownError
	return errors.As(err, &te)
}

func newResolutionError(def *fixture.Definition, testID string, err error) *FixtureResolutionError {
	return &FixtureResolutionError{Fixture: def.Key(), TestID: testID, Err: err}
}
