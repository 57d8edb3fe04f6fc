package runner

import "github.com/google/uuid"

// IDGenerator produces run IDs.
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 run IDs, so listing runs
// by ID lists them by start time.
type UUIDv7Generator struct{}

// Generate returns a new hyphenated UUIDv7.
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}
