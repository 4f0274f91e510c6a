package resource

import (
	"errors"
	"fmt"
)

// Code classifies a verification error. Codes are themselves errors so
// callers can test with errors.Is(err, resource.ErrLookupFailure).
type Code string

func (c Code) Error() string { return string(c) }

const (
	ErrUnsupportedKind   Code = "UnsupportedKind"
	ErrMissingArgument   Code = "MissingArgument"
	ErrLookupFailure     Code = "LookupFailure"
	ErrInspectionFailure Code = "InspectionFailure"
	ErrNoExpectations    Code = "NoExpectations"
)

// Error is a failure tied to one resource and, where known, one attribute
// or argument.
type Error struct {
	Code      Code
	Ref       Ref
	Attribute string
	Err       error
}

func (e *Error) Error() string {
	target := e.Ref.String()
	if e.Attribute != "" {
		target += " " + e.Attribute
	}
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Code, target)
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, target, e.Err)
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Code}
	}
	return []error{e.Code, e.Err}
}

// CodeOf extracts the Code of err, or "" if err carries none.
func CodeOf(err error) Code {
	var re *Error
	if errors.As(err, &re) {
		return re.Code
	}
	var c Code
	if errors.As(err, &c) {
		return c
	}
	return ""
}
