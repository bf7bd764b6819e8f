// Package errs holds the error taxonomy shared by the session core, the
// dispatcher and the HTTP handlers.
package errs

import (
	"errors"
	"net/http"

	"github.com/Vasu1712/listenparty-backend/internal/models"
)

// Kinds. Match with errors.Is.
var (
	ErrValidation   = errors.New("validation failed")
	ErrConflict     = errors.New("conflict")
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("permission denied")
	ErrUnauthorized = errors.New("unauthorized")
	ErrUpstream     = errors.New("upstream failure")
)

// GenericMessage is what callers see for upstream failures.
const GenericMessage = "Something went wrong."

// Error is a classified failure with a message safe to show to the caller.
type Error struct {
	Kind   error
	Msg    string
	Fields []models.FieldError
	Err    error
}

func (e *Error) Error() string {
	msg := e.Kind.Error()
	if e.Msg != "" {
		msg += ": " + e.Msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func Validation(msg string, fields ...models.FieldError) error {
	return &Error{Kind: ErrValidation, Msg: msg, Fields: fields}
}

func Conflict(msg string) error { return &Error{Kind: ErrConflict, Msg: msg} }

func NotFound(msg string) error { return &Error{Kind: ErrNotFound, Msg: msg} }

func Forbidden(msg string) error { return &Error{Kind: ErrForbidden, Msg: msg} }

// Upstream wraps a collaborator failure. The cause is logged, never shown.
func Upstream(err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return &Error{Kind: ErrUpstream, Err: err}
}

// Public returns the message and field errors that may be sent to the caller.
func Public(err error) (string, []models.FieldError) {
	var e *Error
	if !errors.As(err, &e) || errors.Is(e.Kind, ErrUpstream) {
		return GenericMessage, nil
	}
	if e.Msg == "" {
		return e.Kind.Error(), e.Fields
	}
	return e.Msg, e.Fields
}

// HTTPStatus maps an error kind to a response code.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrUpstream):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
