package core

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies a failure so the API layer can pick an HTTP status
// without inspecting error strings.
type ErrorKind string

const (
	KindValidation    ErrorKind = "validation"    // bad or missing input, client fault
	KindNotFound      ErrorKind = "not_found"     // record absent or out of tenant scope
	KindConfiguration ErrorKind = "configuration" // required config missing, operator fault
	KindUpstream      ErrorKind = "upstream"      // downstream service returned failure
	KindTimeout       ErrorKind = "timeout"       // downstream call exceeded deadline
	KindStorage       ErrorKind = "storage"       // datastore call failed
)

// AppError carries a kind alongside the message and an optional cause.
type AppError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

func newError(kind ErrorKind, err error, format string, args ...any) *AppError {
	return &AppError{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

func ValidationError(format string, args ...any) error {
	return newError(KindValidation, nil, format, args...)
}

func NotFoundError(format string, args ...any) error {
	return newError(KindNotFound, nil, format, args...)
}

func ConfigurationError(format string, args ...any) error {
	return newError(KindConfiguration, nil, format, args...)
}

func UpstreamError(err error, format string, args ...any) error {
	return newError(KindUpstream, err, format, args...)
}

func TimeoutError(err error, format string, args ...any) error {
	return newError(KindTimeout, err, format, args...)
}

func StorageError(err error, format string, args ...any) error {
	return newError(KindStorage, err, format, args...)
}

// KindOf extracts the kind from err, or KindStorage for unclassified
// errors bubbling out of the service layer.
func KindOf(err error) ErrorKind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindStorage
}

// HTTPStatus maps an error to the status code the handlers respond with.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConfiguration:
		return http.StatusInternalServerError
	case KindUpstream:
		return http.StatusBadGateway
	case KindTimeout:
		return http.StatusRequestTimeout
	case KindStorage:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
