package rules

import (
	"errors"
	"fmt"
)

// ErrNotApplicable is returned by a handler that was given a subevent of a
// kind it does not operate on. It is a soft failure: callers skip the
// behavior and keep going.
var ErrNotApplicable = errors.New("handler not applicable to subevent")

// NotApplicable wraps ErrNotApplicable with the handler and subevent kind.
func NotApplicable(handlerID, subeventKind string) error {
	return fmt.Errorf("%s on %q: %w", handlerID, subeventKind, ErrNotApplicable)
}

// IsNotApplicable reports whether err is, or wraps, ErrNotApplicable.
func IsNotApplicable(err error) bool {
	return errors.Is(err, ErrNotApplicable)
}

// TypeMismatchError reports a document whose discriminant field does not
// carry the identifier of the handler processing it.
type TypeMismatchError struct {
	// Field is the discriminant field: "condition", "function" or "subevent".
	Field string

	// Expected is the handler's identifier.
	Expected string

	// Actual is the value found in the document, empty when absent.
	Actual string
}

func (e *TypeMismatchError) Error() string {
	if e.Actual == "" {
		return fmt.Sprintf("%s mismatch: expected %q, field missing", e.Field, e.Expected)
	}
	return fmt.Sprintf("%s mismatch: expected %q, got %q", e.Field, e.Expected, e.Actual)
}

// IsTypeMismatch reports whether err is, or wraps, a TypeMismatchError.
func IsTypeMismatch(err error) bool {
	var tm *TypeMismatchError
	return errors.As(err, &tm)
}

// UnknownHandlerError reports a lookup for an unregistered identifier.
type UnknownHandlerError struct {
	Family string
	ID     string
}

func (e *UnknownHandlerError) Error() string {
	return fmt.Sprintf("unknown %s handler %q", e.Family, e.ID)
}

// IsUnknownHandler reports whether err is, or wraps, an UnknownHandlerError.
func IsUnknownHandler(err error) bool {
	var uh *UnknownHandlerError
	return errors.As(err, &uh)
}
