package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

// Code classifies a failure for HTTP mapping, metrics and retry decisions.
type Code string

const (
	// CodeValidation covers bad quantities, malformed carts, unknown statuses
	// and admission failures such as MOQ violations.
	CodeValidation Code = "VALIDATION_ERROR"
	// CodeForbidden is an actor acting on an order or participation it does
	// not own.
	CodeForbidden Code = "FORBIDDEN"
	// CodeNotFound is an unknown or inactive item, order or participation.
	CodeNotFound Code = "NOT_FOUND"
	// CodeWriteConflict is a lost optimistic-concurrency race on a group
	// order. The aggregator retries it; clients may replay the request.
	CodeWriteConflict Code = "WRITE_CONFLICT"
	// CodeStateConflict is a write the order's status no longer allows.
	CodeStateConflict Code = "STATE_CONFLICT"
	// CodeIdempotency is an Idempotency-Key reused with a different body.
	CodeIdempotency Code = "IDEMPOTENCY_KEY_REUSED"
	CodeInternal    Code = "INTERNAL_ERROR"
	// CodeDependency is a database or Redis failure.
	CodeDependency Code = "DEPENDENCY_ERROR"
)

// Metadata is the transport policy for a Code. ClientMessage reports whether
// the error's own message is safe to show instead of PublicMessage.
type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	ClientMessage  bool
	DetailsAllowed bool
}

var metadataByCode = map[Code]Metadata{
	CodeValidation:    {HTTPStatus: http.StatusBadRequest, PublicMessage: "validation failed", ClientMessage: true, DetailsAllowed: true},
	CodeForbidden:     {HTTPStatus: http.StatusForbidden, PublicMessage: "access denied", ClientMessage: true},
	CodeNotFound:      {HTTPStatus: http.StatusNotFound, PublicMessage: "resource not found", ClientMessage: true, DetailsAllowed: true},
	CodeWriteConflict: {HTTPStatus: http.StatusConflict, Retryable: true, PublicMessage: "concurrent update detected, retry the request"},
	CodeStateConflict: {HTTPStatus: http.StatusUnprocessableEntity, PublicMessage: "state transition disallowed", ClientMessage: true, DetailsAllowed: true},
	CodeIdempotency:   {HTTPStatus: http.StatusConflict, PublicMessage: "idempotency key reused", ClientMessage: true, DetailsAllowed: true},
	CodeInternal:      {HTTPStatus: http.StatusInternalServerError, Retryable: true, PublicMessage: "internal server error"},
	CodeDependency:    {HTTPStatus: http.StatusServiceUnavailable, Retryable: true, PublicMessage: "dependency unavailable", DetailsAllowed: true},
}

// MetadataFor returns the policy for code; unknown codes are treated as
// internal errors.
func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}

type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Wrap(code Code, err error, message string) *Error {
	if err == nil {
		return New(code, message)
	}
	return &Error{code: code, message: message, cause: err}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

func (e *Error) WithDetails(details any) *Error {
	if e == nil {
		return nil
	}
	e.details = details
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

func As(err error) *Error {
	if err == nil {
		return nil
	}
	var typed *Error
	if stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// CodeOf returns the code carried by err, or CodeInternal for untyped errors.
func CodeOf(err error) Code {
	if typed := As(err); typed != nil {
		return typed.Code()
	}
	return CodeInternal
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.Code() == code
}

// IsWriteConflict reports whether err is a retryable concurrent-write collision.
// Only write conflicts are retried by callers; dependency and internal errors
// are retryable at the HTTP level but are not safe to replay in-process.
func IsWriteConflict(err error) bool {
	return IsCode(err, CodeWriteConflict)
}
