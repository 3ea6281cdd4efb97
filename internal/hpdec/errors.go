package hpdec

import (
	"errors"
	"fmt"
)

// Causes carried by FormatError, one per validation stage.
const (
	CauseFormat     = "invalid file format"
	CauseDimensions = "invalid dimensions"
	CausePixel      = "invalid pixel data"
)

var (
	// ErrFormat matches every *FormatError via errors.Is.
	ErrFormat = errors.New("hpdec: malformed input")
	// ErrIO matches every *IOError via errors.Is.
	ErrIO = errors.New("hpdec: i/o failure")
)

// FormatError is a structural violation of the HPDEC format.
type FormatError struct {
	// Cause names the check that failed (CauseFormat, CauseDimensions or
	// CausePixel).
	Cause string
	// Index is the 0-based pixel record that failed, or -1.
	Index int
	// Err is the underlying parse error, if any.
	Err error
}

func (e *FormatError) Error() string {
	msg := "hpdec: " + e.Cause
	if e.Index >= 0 {
		msg += fmt.Sprintf(" at pixel %d", e.Index)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FormatError) Unwrap() error { return e.Err }

func (e *FormatError) Is(target error) bool { return target == ErrFormat }

func formatErr(cause string, err error) *FormatError {
	return &FormatError{Cause: cause, Index: -1, Err: err}
}

// IOError reports that a stream could not be opened, read, written or
// closed.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	if e.Path == "" {
		return "hpdec: " + e.Op + ": " + e.Err.Error()
	}
	return "hpdec: " + e.Op + " " + e.Path + ": " + e.Err.Error()
}

func (e *IOError) Unwrap() error { return e.Err }

func (e *IOError) Is(target error) bool { return target == ErrIO }
