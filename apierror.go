package main

import (
	"errors"
	"net/http"
)

const unexpectedErrorText = "An unexpected error occurred"

// ApiError is the uniform failure value handed to the UI. Status is zero
// unless the failure came from an HTTP response.
type ApiError struct {
	Message string `json:"message"`
	Status  int    `json:"status,omitempty"`
}

func (e ApiError) Error() string { return e.Message }

func (e ApiError) HasStatus() bool { return e.Status != 0 }

// IsAuth reports a rejected or missing credential.
func (e ApiError) IsAuth() bool {
	return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
}

type statusCoder interface {
	StatusCode() int
}

// ToApiError maps any value to an ApiError. It never panics.
func ToApiError(v any) (out ApiError) {
	defer func() {
		if recover() != nil {
			out = ApiError{Message: unexpectedErrorText}
		}
	}()

	switch e := v.(type) {
	case nil:
		return ApiError{Message: unexpectedErrorText}
	case ApiError:
		return e
	case *ApiError:
		if e == nil {
			return ApiError{Message: unexpectedErrorText}
		}
		return *e
	case error:
		msg := e.Error()
		if msg == "" {
			msg = unexpectedErrorText
		}
		var sc statusCoder
		if errors.As(e, &sc) {
			return ApiError{Message: msg, Status: sc.StatusCode()}
		}
		return ApiError{Message: msg}
	}
	return ApiError{Message: unexpectedErrorText}
}
