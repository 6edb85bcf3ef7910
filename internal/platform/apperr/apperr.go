// Package apperr defines the error taxonomy shared by the aggregation
// services and the mapping of those errors onto HTTP responses.
package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// Kind classifies a failure.
type Kind string

const (
	NetworkFailure       Kind = "network_failure"
	UpstreamServiceError Kind = "upstream_service_error"
	EmptyResult          Kind = "empty_result"
	ParseFailure         Kind = "parse_failure"
	Invalid              Kind = "invalid"
)

// Error implements error. Kind values themselves satisfy errors.Is, so
// callers can write errors.Is(err, apperr.EmptyResult).
func (k Kind) Error() string { return string(k) }

// Error is a classified failure produced by one operation.
type Error struct {
	Kind      Kind
	Op        string
	Message   string
	Status    int // upstream HTTP status, when known
	Retryable bool
	Err       error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Op == "" {
		return fmt.Sprintf("%s: %s", e.Kind, msg)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error of the same kind or a bare Kind.
func (e *Error) Is(target error) bool {
	switch t := target.(type) {
	case Kind:
		return e.Kind == t
	case *Error:
		return e.Kind == t.Kind
	}
	return false
}

// ErrSuperseded is returned to a caller whose in-flight operation was
// cancelled by a newer call under the same key.
var ErrSuperseded = fmt.Errorf("superseded by a newer request: %w", context.Canceled)

func Network(op string, err error) *Error {
	return &Error{Kind: NetworkFailure, Op: op, Retryable: true, Err: err}
}

func Upstream(op string, status int, msg string) *Error {
	return &Error{Kind: UpstreamServiceError, Op: op, Status: status, Message: msg, Retryable: true}
}

func Empty(op, msg string) *Error {
	return &Error{Kind: EmptyResult, Op: op, Message: msg}
}

func Parse(op string, err error) *Error {
	return &Error{Kind: ParseFailure, Op: op, Err: err}
}

func InvalidInput(op, msg string) *Error {
	return &Error{Kind: Invalid, Op: op, Message: msg}
}

// IsSuperseded reports whether err stems from a call that was cancelled
// by a newer one. Such errors are expected and are not failures.
func IsSuperseded(err error) bool {
	return errors.Is(err, ErrSuperseded)
}

// IsRetryable reports whether the caller may retry the operation as-is.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// Response is the uniform JSON envelope returned by the API.
type Response struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	Kind      Kind        `json:"kind,omitempty"`
	Retryable bool        `json:"retryable,omitempty"`
}

// OK wraps data in a success envelope.
func OK(data interface{}) Response {
	return Response{Success: true, Data: data}
}

// SupersededHeader marks responses to requests that lost to a newer one.
const SupersededHeader = "X-Superseded"

// HTTPStatus maps an error onto the status code the API answers with.
func HTTPStatus(err error) int {
	var e *Error
	switch {
	case IsSuperseded(err):
		return http.StatusNoContent
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &e):
		switch e.Kind {
		case Invalid:
			return http.StatusBadRequest
		case EmptyResult:
			return http.StatusNotFound
		case ParseFailure:
			return http.StatusUnprocessableEntity
		case NetworkFailure, UpstreamServiceError:
			return http.StatusBadGateway
		}
	}
	return http.StatusInternalServerError
}

// Write renders err as an envelope on the echo context.
func Write(c echo.Context, err error) error {
	status := HTTPStatus(err)
	if status == http.StatusNoContent {
		c.Response().Header().Set(SupersededHeader, "true")
		return c.NoContent(status)
	}
	resp := Response{Success: false, Error: err.Error(), Retryable: IsRetryable(err)}
	var e *Error
	if errors.As(err, &e) {
		resp.Kind = e.Kind
	}
	return c.JSON(status, resp)
}

// FromValidation converts validator failures into an Invalid error naming
// each rejected field.
func FromValidation(op string, err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return InvalidInput(op, err.Error())
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s must satisfy %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		} else {
			parts = append(parts, fmt.Sprintf("%s must satisfy %s", fe.Field(), fe.Tag()))
		}
	}
	return InvalidInput(op, strings.Join(parts, "; "))
}
