package http

import (
	"fmt"
	"net/http"
)

// AppError is an API error with the status it is served with.
type AppError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Field   string                 `json:"field,omitempty"`
	Params  map[string]interface{} `json:"params,omitempty"`
	Status  int                    `json:"-"`
	Err     error                  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

// WithError wraps the underlying cause.
func (e *AppError) WithError(err error) *AppError {
	e.Err = err
	return e
}

// WithField names the offending request field.
func (e *AppError) WithField(field string) *AppError {
	e.Field = field
	return e
}

func newAppError(code string, status int, message string) *AppError {
	return &AppError{Code: code, Message: message, Status: status}
}

// BadRequestError is a 400: the request parameters are unusable.
func BadRequestError(message string) *AppError {
	return newAppError("ERR_BAD_REQUEST", http.StatusBadRequest, message)
}

func BadRequestErrorf(format string, a ...interface{}) *AppError {
	return BadRequestError(fmt.Sprintf(format, a...))
}

// UnprocessableError is a 422: valid parameters, but the data cannot be scored.
func UnprocessableError(message string) *AppError {
	return newAppError("ERR_UNPROCESSABLE", http.StatusUnprocessableEntity, message)
}

// InternalError is a 500.
func InternalError(message string) *AppError {
	return newAppError("ERR_INTERNAL", http.StatusInternalServerError, message)
}

// BadGatewayError is a 502: the market data upstream failed.
func BadGatewayError(message string) *AppError {
	return newAppError("ERR_UPSTREAM", http.StatusBadGateway, message)
}

// UnavailableError is a 503: the requested state does not exist yet.
func UnavailableError(message string) *AppError {
	return newAppError("ERR_UNAVAILABLE", http.StatusServiceUnavailable, message)
}
