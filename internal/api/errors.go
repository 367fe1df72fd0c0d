package api

import (
	"errors"
	"net/http"
)

// AppError is an error with an HTTP status and an optional machine-readable
// code and payload.
type AppError struct {
	Status  int    `json:"-"`
	Code    string `json:"code,omitempty"`
	Message string `json:"error"`
	Details any    `json:"details,omitempty"`
}

func (e *AppError) Error() string {
	return e.Message
}

var (
	ErrBadRequest         = &AppError{Status: http.StatusBadRequest, Message: "bad request"}
	ErrUnauthorized       = &AppError{Status: http.StatusUnauthorized, Message: "unauthorized"}
	ErrForbidden          = &AppError{Status: http.StatusForbidden, Message: "forbidden"}
	ErrNotFound           = &AppError{Status: http.StatusNotFound, Message: "not found"}
	ErrInternalServer     = &AppError{Status: http.StatusInternalServerError, Message: "internal server error"}
	ErrInvalidToken       = &AppError{Status: http.StatusUnauthorized, Message: "invalid or expired token"}
	ErrTooManyRequests    = &AppError{Status: http.StatusTooManyRequests, Message: "too many requests"}
	ErrServiceUnavailable = &AppError{Status: http.StatusServiceUnavailable, Message: "service unavailable"}
)

func NewBadRequestError(msg string) *AppError {
	return &AppError{Status: http.StatusBadRequest, Message: msg}
}

func NewValidationError(msg string) *AppError {
	return &AppError{Status: http.StatusBadRequest, Code: "VALIDATION_ERROR", Message: msg}
}

// NewCodedError builds an error carrying a domain code and details.
func NewCodedError(status int, code, msg string, details any) *AppError {
	return &AppError{Status: status, Code: code, Message: msg, Details: details}
}

func HandleError(w http.ResponseWriter, err error) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		JSONErrorBody(w, appErr.Status, Response{Error: appErr.Message, Code: appErr.Code, Details: appErr.Details})
		return
	}
	JSONErrorMessage(w, http.StatusInternalServerError, "internal server error")
}
