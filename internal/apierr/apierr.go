package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	CodeNotFound         = "not_found"
	CodeValidation       = "validation_error"
	CodeDataCorruption   = "data_corruption"
	CodeStoreUnavailable = "store_unavailable"
)

type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

func NotFound(format string, args ...interface{}) *Error {
	return New(http.StatusNotFound, CodeNotFound, fmt.Errorf(format, args...))
}

func Validation(format string, args ...interface{}) *Error {
	return New(http.StatusBadRequest, CodeValidation, fmt.Errorf(format, args...))
}

func Corruption(format string, args ...interface{}) *Error {
	return New(http.StatusInternalServerError, CodeDataCorruption, fmt.Errorf(format, args...))
}

func Unavailable(format string, args ...interface{}) *Error {
	return New(http.StatusBadGateway, CodeStoreUnavailable, fmt.Errorf(format, args...))
}

// From extracts the structured error if err carries one.
func From(err error) (*Error, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

func IsNotFound(err error) bool {
	ae, ok := From(err)
	return ok && ae.Code == CodeNotFound
}
