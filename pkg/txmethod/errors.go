package txmethod

import (
	"errors"
	"fmt"
)

// ErrInvalidArgument is returned for malformed construction or call arguments.
var ErrInvalidArgument = errors.New("txmethod: invalid argument")

// InvalidArgumentError describes which argument was rejected and what was received.
type InvalidArgumentError struct {
	Arg    string
	Reason string
	Got    any
}

func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("txmethod: invalid argument %s: %s, got %s", e.Arg, e.Reason, describe(e.Got))
}

func (e *InvalidArgumentError) Unwrap() error {
	return ErrInvalidArgument
}

func invalidArgument(arg, reason string, got any) error {
	return &InvalidArgumentError{Arg: arg, Reason: reason, Got: got}
}

func describe(v any) string {
	if v == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%T(%v)", v, v)
}
