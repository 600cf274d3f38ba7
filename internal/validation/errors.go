// internal/validation/errors.go
package validation

import (
	"errors"
	"fmt"
)

// Error is a semantic validation failure: a blacklisted title, a price below
// the minimum, a missing required attribute. Errors of this type abort the
// call in both strict and lenient mode.
type Error struct {
	message string
}

func (e *Error) Error() string {
	return e.message
}

func errorf(format string, args ...interface{}) *Error {
	return &Error{message: fmt.Sprintf(format, args...)}
}

// IsInvalid reports whether err is a validation rejection (as opposed to a
// store fault or any other failure).
func IsInvalid(err error) bool {
	var vErr *Error
	return errors.As(err, &vErr)
}

// mismatchError is a basic type or format failure: a non-string where a
// string is expected, an unparseable number or timestamp. In lenient mode
// these downgrade to a dropped attribute plus a warning; in strict mode they
// surface as a validation Error.
type mismatchError struct {
	message string
}

func (e *mismatchError) Error() string {
	return e.message
}

func mismatchf(format string, args ...interface{}) *mismatchError {
	return &mismatchError{message: fmt.Sprintf(format, args...)}
}

func isMismatch(err error) bool {
	var mErr *mismatchError
	return errors.As(err, &mErr)
}

// Warning records one attribute dropped in lenient mode.
type Warning struct {
	Attribute string
	Message   string
}

func (w Warning) String() string {
	return fmt.Sprintf("skipping %q attribute with invalid data (%s)", w.Attribute, w.Message)
}
