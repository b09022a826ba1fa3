package pipeline

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel kinds for pipeline signals.
var (
	// ErrDuplicate is a control-flow signal, not a failure: the event
	// was already processed inside the dedup window. Callers treat it
	// as success with a no-op marker.
	ErrDuplicate = errors.New("duplicate event")
)

// ValidationError reports the specific required fields that were
// missing or invalid. It is terminal and never retried.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("missing or invalid required fields: %s", strings.Join(e.Fields, ", "))
}

// NewValidationError creates a ValidationError naming the offending fields.
func NewValidationError(fields ...string) *ValidationError {
	return &ValidationError{Fields: fields}
}
