package testcase

import "fmt"

// DeclarationError reports a malformed test declaration, found during
// discovery before any test runs.
type DeclarationError struct {
	TestID  string
	Message string
}

func (e *DeclarationError) Error() string {
	return fmt.Sprintf("INVALID_TEST: %s: %s", e.TestID, e.Message)
}
