package common

import (
	"errors"
	"fmt"
)

var (
	// ErrIO reports a failure to open or read the source stream. It is fatal
	// and nothing is emitted.
	ErrIO = errors.New("mkimport: i/o failure")

	// ErrDecompressionFailed reports a corrupt or unsupported compressed stream.
	ErrDecompressionFailed = fmt.Errorf("%w: decompression failed", ErrIO)

	// ErrFormat reports content that is structurally invalid for the selected
	// dialect. It is fatal for the file and nothing is emitted.
	ErrFormat = errors.New("mkimport: invalid format")

	// ErrResourceLimit reports that the elapsed time budget or row limit was
	// reached. Work done so far is kept.
	ErrResourceLimit = errors.New("mkimport: resource limit exceeded")

	// ErrExecution reports that the sink rejected a statement.
	ErrExecution = errors.New("mkimport: statement execution failed")

	// ErrUnknownDriver is returned when no dialect is registered under a name.
	ErrUnknownDriver = errors.New("mkimport: unknown driver")
)

// StatementError records one statement the sink rejected.
type StatementError struct {
	Index     int // zero-based position in submission order
	Statement string
	Err       error
}

func (e *StatementError) Error() string {
	return fmt.Sprintf("statement %d failed: %v", e.Index, e.Err)
}

// Unwrap exposes both ErrExecution and the sink's error to errors.Is.
func (e *StatementError) Unwrap() []error {
	return []error{ErrExecution, e.Err}
}

// FormatError wraps err as ErrFormat unless it already is one of the fatal
// pipeline errors.
func FormatError(what string, err error) error {
	if errors.Is(err, ErrFormat) || errors.Is(err, ErrIO) {
		return fmt.Errorf("%s: %w", what, err)
	}
	return fmt.Errorf("%w: %s: %v", ErrFormat, what, err)
}
