package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors returned by DatabaseHandle implementations so the
// executor can classify driver failures without importing the driver.
var (
	// ErrResourceExists signals a duplicate-resource error from the
	// target: the check-then-act loser treats this as a skip, not a
	// failure
	ErrResourceExists = errors.New("resource already exists")

	// ErrIndexConflict signals an index that exists under the same name
	// with a different key specification
	ErrIndexConflict = errors.New("index exists with a different specification")

	// ErrChangeNotFound signals that no audit record matches a
	// (changeId, connectionURI) lookup
	ErrChangeNotFound = errors.New("changeId not found")
)

// FieldError describes one offending field in a rejected payload
type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// ValidationError rejects a malformed or unsafe request before any
// execution. It enumerates every offending field, not just the first.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = fmt.Sprintf("%s: %s", f.Field, f.Reason)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Add appends one offending field
func (e *ValidationError) Add(field, reason string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Reason: reason})
}

// HasErrors reports whether any field was rejected
func (e *ValidationError) HasErrors() bool { return len(e.Fields) > 0 }

// ConfigurationError rejects a call at the boundary: disallowed
// connection target or missing required configuration. Fatal for the
// call, never audited.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Reason
}
