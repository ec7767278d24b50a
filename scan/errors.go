package scan

import (
	"errors"
	"fmt"
)

// Error classes. Concrete errors wrap one of these and are matched with errors.Is.
var (
	// ErrUserInput means the scan could not start from the given coordinate.
	ErrUserInput = errors.New("invalid scan input")
	// ErrUnsupportedElement marks a recoverable dead end in the circuit.
	ErrUnsupportedElement = errors.New("unsupported element")
	// ErrMalformedIdiom means a recognized command idiom failed to parse.
	ErrMalformedIdiom = errors.New("malformed command idiom")
	// ErrPackageConflict means the target package already exists.
	ErrPackageConflict = errors.New("package already exists")
	// ErrSinkIO wraps persistence failures.
	ErrSinkIO = errors.New("package sink failure")
	// ErrContract means a cell is missing an attribute its kind requires.
	ErrContract = errors.New("cell attribute contract violated")
	// ErrCellAccess wraps failures of the cell accessor itself.
	ErrCellAccess = errors.New("cell access failure")
	// ErrCanceled is reported when a scan is aborted before the worklist drained.
	ErrCanceled = errors.New("scan canceled")
)

// MalformedIdiomError describes a trigger command that matched an idiom
// prefix but could not be parsed.
type MalformedIdiomError struct {
	At      Coordinate
	Command string
	Reason  string
}

func (e *MalformedIdiomError) Error() string {
	return fmt.Sprintf("malformed command at %s: %s: %q", e.At, e.Reason, e.Command)
}

func (e *MalformedIdiomError) Unwrap() error { return ErrMalformedIdiom }

// sinkErr wraps err as a sink failure, keeping the underlying cause.
func sinkErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrSinkIO, op, err)
}

// cellErr wraps err as a cell accessor failure at c.
func cellErr(c Coordinate, err error) error {
	return fmt.Errorf("%w at %s: %w", ErrCellAccess, c, err)
}

// IsFatal reports whether err must abort a scan.
func IsFatal(err error) bool {
	return err != nil && !errors.Is(err, ErrUnsupportedElement)
}
