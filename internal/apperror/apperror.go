package apperror

import (
	"errors"
	"net/http"
)

type Code string

const (
	BadRequest    Code = "BAD_REQUEST"
	NotFound      Code = "NOT_FOUND"
	Internal      Code = "INTERNAL"
	Conflict      Code = "CONFLICT"
	Unprocessable Code = "UNPROCESSABLE"
	BadGateway    Code = "BAD_GATEWAY"
)

type AppError struct {
	code    Code
	message string
	cause   error
}

func New(code Code, message string) *AppError {
	return &AppError{code: code, message: message}
}

// Wrap attaches a code and client-facing message to err. err stays
// reachable through errors.Is and errors.As.
func Wrap(code Code, message string, err error) *AppError {
	return &AppError{code: code, message: message, cause: err}
}

func (e *AppError) Error() string {
	if e.cause != nil {
		return e.message + ": " + e.cause.Error()
	}
	return e.message
}

func (e *AppError) Unwrap() error   { return e.cause }
func (e *AppError) Code() Code      { return e.code }
func (e *AppError) Message() string { return e.message }

func (e *AppError) HTTPStatus() int {
	switch e.code {
	case BadRequest:
		return http.StatusBadRequest
	case NotFound:
		return http.StatusNotFound
	case Conflict:
		return http.StatusConflict
	case Unprocessable:
		return http.StatusUnprocessableEntity
	case BadGateway:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// As returns the first *AppError in err's chain.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// Is reports whether err carries an *AppError with the given code.
func Is(err error, code Code) bool {
	appErr, ok := As(err)
	return ok && appErr.code == code
}
