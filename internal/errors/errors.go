// Package errors provides standardized error handling for the gallery service.
package errors

import (
	"fmt"
	"net/http"
)

// ErrorCode represents a standardized error code for the gallery service.
type ErrorCode string

const (
	// Validation errors
	WT_VALIDATION  ErrorCode = "WT_VALIDATION"  // General validation error
	WT_BAD_REQUEST ErrorCode = "WT_BAD_REQUEST" // Bad request

	// Resource errors
	WT_NOT_FOUND ErrorCode = "WT_NOT_FOUND" // Resource not found
	WT_CONFLICT  ErrorCode = "WT_CONFLICT"  // Resource conflict

	// Server errors
	WT_INTERNAL    ErrorCode = "WT_INTERNAL"    // Internal server error
	WT_UNAVAILABLE ErrorCode = "WT_UNAVAILABLE" // Dependency unavailable
)

// Error represents a standardized error response.
type Error struct {
	Code          ErrorCode   `json:"code"`
	Message       string      `json:"message"`
	CorrelationID string      `json:"correlationId"`
	Details       interface{} `json:"details,omitempty"`
	HTTPStatus    int         `json:"-"`
}

// New creates a new Error with the specified code and message.
func New(code ErrorCode, message string, correlationID string) *Error {
	return &Error{
		Code:          code,
		Message:       message,
		CorrelationID: correlationID,
		HTTPStatus:    httpStatusCodeForCode(code),
	}
}

// NewWithDetails creates a new Error with the specified code, message, and details.
func NewWithDetails(code ErrorCode, message string, correlationID string, details interface{}) *Error {
	return &Error{
		Code:          code,
		Message:       message,
		CorrelationID: correlationID,
		Details:       details,
		HTTPStatus:    httpStatusCodeForCode(code),
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Details != nil {
		return fmt.Sprintf("%s: %s (details: %v)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// httpStatusCodeForCode maps error codes to HTTP status codes.
func httpStatusCodeForCode(code ErrorCode) int {
	switch code {
	case WT_VALIDATION, WT_BAD_REQUEST:
		return http.StatusBadRequest
	case WT_NOT_FOUND:
		return http.StatusNotFound
	case WT_CONFLICT:
		return http.StatusConflict
	case WT_UNAVAILABLE:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
