package compositor

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when no stored item matches the supplied field values.
	ErrNotFound = errors.New("keyloom: no matching item found")

	// ErrConditionalWriteFailed is returned when a duplicate-prevention guard
	// rejects a write. The item already exists under the same composite key.
	ErrConditionalWriteFailed = errors.New("keyloom: conditional write failed, item already exists")

	// ErrUnknownIndexRole is returned when an index is constructed with an
	// unrecognized role.
	ErrUnknownIndexRole = errors.New("keyloom: unknown index role")

	// ErrInvalidSchema is returned when an index or table definition is
	// internally inconsistent (missing separator, unnamed secondary index, ...).
	ErrInvalidSchema = errors.New("keyloom: invalid schema")
)

// MissingFieldError is returned when a key template references a field that is
// absent from the supplied value map.
type MissingFieldError struct {
	Field    string
	Template string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("keyloom: missing value for field %q in template %q", e.Field, e.Template)
}

// ReverseParseMismatchError is returned when a stored key string does not
// match the literal segments of the template it is being decoded against.
type ReverseParseMismatchError struct {
	Actual   string
	Template string
	Literal  string
}

func (e *ReverseParseMismatchError) Error() string {
	return fmt.Sprintf("keyloom: value %q does not match template %q at literal %q", e.Actual, e.Template, e.Literal)
}
