package fixture

import "fmt"

// Scope defines how long a fixture instance lives and who shares it.
type Scope string

const (
	// ScopeFunction creates a fresh instance for every test (default).
	ScopeFunction Scope = "function"

	// ScopeClass shares one instance across the tests of a class.
	// Tests declared outside any class share the module-level grouping.
	ScopeClass Scope = "class"

	// ScopeModule shares one instance across every test of a module.
	ScopeModule Scope = "module"

	// ScopeProcess shares one instance for the whole run.
	ScopeProcess Scope = "process"
)

// Scopes lists every scope from narrowest to widest.
// Closing activations walks this order so narrower scopes tear down first.
var Scopes = []Scope{ScopeFunction, ScopeClass, ScopeModule, ScopeProcess}

// ParseScope validates a scope name.
// Empty defaults to function; "session" is accepted as an alias for process.
func ParseScope(s string) (Scope, error) {
	switch Scope(s) {
	case "":
		return ScopeFunction, nil
	case ScopeFunction, ScopeClass, ScopeModule, ScopeProcess:
		return Scope(s), nil
	case "session":
		return ScopeProcess, nil
	default:
		return "", fmt.Errorf("invalid scope %q: must be function, class, module, or process", s)
	}
}

// rank orders scopes by lifetime. Unknown scopes rank as function.
func (s Scope) rank() int {
	switch s {
	case ScopeClass:
		return 1
	case ScopeModule:
		return 2
	case ScopeProcess:
		return 3
	default:
		return 0
	}
}

// Wider reports whether s outlives other.
func (s Scope) Wider(other Scope) bool {
	return s.rank() > other.rank()
}

// Normalize returns the scope with the default applied.
func (s Scope) Normalize() Scope {
	if s == "" {
		return ScopeFunction
	}
	return s
}
