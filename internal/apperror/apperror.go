// Package apperror classifies workflow failures into the kinds the API
// surfaces to clients: validation, authorization, state, not_found and
// infrastructure.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindValidation     Kind = "validation"
	KindAuthorization  Kind = "authorization"
	KindState          Kind = "state"
	KindNotFound       Kind = "not_found"
	KindInfrastructure Kind = "infrastructure"
)

// Error carries enough detail for a client to render an actionable message.
type Error struct {
	Kind     Kind
	Field    string
	Current  string
	Expected string
	Message  string
	Err      error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Field != "" {
		msg = e.Field + ": " + msg
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func Validation(field, format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Field: field, Message: fmt.Sprintf(format, args...)}
}

func Forbidden(format string, args ...interface{}) *Error {
	return &Error{Kind: KindAuthorization, Message: fmt.Sprintf(format, args...)}
}

// State reports an illegal transition together with the observed and required state.
func State(current, expected, format string, args ...interface{}) *Error {
	return &Error{Kind: KindState, Current: current, Expected: expected, Message: fmt.Sprintf(format, args...)}
}

func NotFound(entity, id string) *Error {
	return &Error{Kind: KindNotFound, Field: entity, Message: fmt.Sprintf("%s %s not found", entity, id)}
}

// Internal wraps a data-store or other infrastructure failure.
func Internal(err error, format string, args ...interface{}) *Error {
	return &Error{Kind: KindInfrastructure, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf classifies err. Unclassified errors are infrastructure errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInfrastructure
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// HTTPStatus maps a kind to the response status code.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuthorization:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindState:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
