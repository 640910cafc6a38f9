package stable

import (
	"errors"
	"fmt"
)

var (
	// ErrTypeConflict is matched by errors returned from the Set methods
	// when the key already holds a value of a different kind.
	ErrTypeConflict = errors.New("stable: type conflict")

	// ErrTooDeep is returned by Export and Populate when tables nest
	// deeper than maxNestDepth (a reference cycle always does).
	ErrTooDeep = errors.New("stable: nesting too deep")
)

// ConflictError reports a set that was refused because the key already
// holds a value of another kind. The key is left unchanged.
type ConflictError struct {
	Key  Key
	Have Kind
	Want Kind
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("stable: can't set %s with type %s (holds %s)", e.Key, e.Want, e.Have)
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrTypeConflict
}

// UnsupportedValueError is returned by Populate for Go values that have no
// table kind.
type UnsupportedValueError struct {
	Key   Key
	Value any
}

func (e *UnsupportedValueError) Error() string {
	return fmt.Sprintf("stable: unsupported value type %T at %s", e.Value, e.Key)
}

// contractViolation is the panic payload for caller errors the table
// can't continue under: mismatched typed getters, negative indices,
// retaining a released table, over-release and teardown during a read.
type contractViolation string

func (c contractViolation) Error() string {
	return "stable: " + string(c)
}
