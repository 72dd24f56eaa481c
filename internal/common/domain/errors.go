// Package domain holds the error taxonomy and small value types shared by every
// aggregate in the adoption service.
package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a domain failure. Transport layers map kinds to status codes;
// nothing should ever classify an error by inspecting its message.
type ErrorKind string

const (
	KindNotFound     ErrorKind = "NOT_FOUND"
	KindValidation   ErrorKind = "INVALID_REQUEST"
	KindConflict     ErrorKind = "CONFLICT"
	KindForbidden    ErrorKind = "FORBIDDEN"
	KindInvalidState ErrorKind = "INVALID_STATE"
	KindUnauthorized ErrorKind = "UNAUTHORIZED"
)

// Error is the tagged error produced by aggregates, repositories and services.
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string
	// Fields carries per-field messages, keyed by the offending input (e.g. a pet id).
	Fields map[string]string
}

func (e *Error) Error() string {
	return e.Message
}

// NewNotFoundError reports that an entity with the given identifier does not exist.
func NewNotFoundError(entity, id string) *Error {
	return &Error{
		Kind:    KindNotFound,
		Code:    KindNotFound.String(),
		Message: fmt.Sprintf("%s with id %s not found", entity, id),
	}
}

// NewValidationError reports malformed or unacceptable input.
func NewValidationError(message string) *Error {
	return &Error{Kind: KindValidation, Code: KindValidation.String(), Message: message}
}

// NewFieldValidationError is NewValidationError with per-field details.
func NewFieldValidationError(message string, fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Code: KindValidation.String(), Message: message, Fields: fields}
}

// NewConflictError reports a write that collided with existing state.
func NewConflictError(message string) *Error {
	return &Error{Kind: KindConflict, Code: KindConflict.String(), Message: message}
}

// CodeConcurrentModification marks a Conflict caused by contention (a busy lock or a stale
// version) rather than by the data itself. Retrying the operation may succeed.
const CodeConcurrentModification = "CONCURRENT_MODIFICATION"

// NewConcurrentModificationError reports that another operation got to the same entity
// first.
func NewConcurrentModificationError(message string) *Error {
	return &Error{Kind: KindConflict, Code: CodeConcurrentModification, Message: message}
}

// NewOverpaymentError reports a payment that would push the paid amount above the total.
func NewOverpaymentError(excessCents int64) *Error {
	return &Error{
		Kind:    KindConflict,
		Code:    "OVERPAYMENT",
		Message: fmt.Sprintf("payment exceeds the outstanding balance by %s", FormatCents(excessCents)),
		Fields:  map[string]string{"excess": FormatCents(excessCents)},
	}
}

// NewForbiddenError reports an authenticated caller acting outside its rights.
func NewForbiddenError(message string) *Error {
	return &Error{Kind: KindForbidden, Code: KindForbidden.String(), Message: message}
}

// NewUnauthorizedError reports missing or invalid credentials.
func NewUnauthorizedError(message string) *Error {
	return &Error{Kind: KindUnauthorized, Code: KindUnauthorized.String(), Message: message}
}

// NewInvalidStateError reports an operation not allowed from the entity's current state.
func NewInvalidStateError(from, to string) *Error {
	return &Error{
		Kind:    KindInvalidState,
		Code:    KindInvalidState.String(),
		Message: fmt.Sprintf("cannot transition from %s to %s", from, to),
	}
}

func (k ErrorKind) String() string { return string(k) }

// KindOf returns the kind of the first *Error in err's chain, or "" if there is none.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

// IsRetryable reports whether err is a contention failure that may succeed when retried.
func IsRetryable(err error) bool {
	de, ok := AsError(err)
	return ok && de.Code == CodeConcurrentModification
}

// AsError unwraps err into a *Error.
func AsError(err error) (*Error, bool) {
	var de *Error
	ok := errors.As(err, &de)
	return de, ok
}
