package storage

import (
	"errors"
	"fmt"
)

var (
	// ErrCorrupt marks a collection file that exists but cannot be parsed
	ErrCorrupt = errors.New("corrupt collection file")

	// ErrLockTimeout is returned when the collection lock cannot be taken in time
	ErrLockTimeout = errors.New("timed out acquiring collection lock")

	// ErrDuplicateID is returned when an insert reuses an existing _id
	ErrDuplicateID = errors.New("duplicate document id")
)

// CorruptError reports a backing file that is present but unparsable.
// It matches both ErrCorrupt and the underlying decode error.
type CorruptError struct {
	Path string
	Err  error
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("failed to parse collection file %s: %v", e.Path, e.Err)
}

func (e *CorruptError) Unwrap() []error {
	return []error{ErrCorrupt, e.Err}
}
