package apperrors

import (
	"fmt"
	"net/http"
)

type ErrorType string

const (
	ErrNotFound         ErrorType = "NOT_FOUND"
	ErrInvalidDocument  ErrorType = "INVALID_DOCUMENT"
	ErrValidationFailed ErrorType = "VALIDATION_FAILED"
	ErrNoModelAvailable ErrorType = "NO_MODEL_AVAILABLE"
	ErrModelsExhausted  ErrorType = "ALL_MODELS_EXHAUSTED"
	ErrUnknownModel     ErrorType = "UNKNOWN_MODEL"
	ErrRateLimited      ErrorType = "RATE_LIMITED"
	ErrReadOnly         ErrorType = "READ_ONLY"
	ErrInternal         ErrorType = "INTERNAL_ERROR"
)

// AppError is the standard error struct for the application
type AppError struct {
	Type       ErrorType `json:"code"`
	Message    string    `json:"message"`
	Suggestion string    `json:"suggestion,omitempty"`
	Details    any       `json:"details,omitempty"`
	HTTPStatus int       `json:"-"`
	Cause      error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func New(errType ErrorType, msg string, cause error) *AppError {
	return &AppError{
		Type:       errType,
		Message:    msg,
		Cause:      cause,
		HTTPStatus: mapTypeToStatus(errType),
		Suggestion: mapTypeToSuggestion(errType),
	}
}

// WithDetails attaches a machine-readable payload (e.g. validation findings)
// to the error response body.
func (e *AppError) WithDetails(details any) *AppError {
	e.Details = details
	return e
}

func NewNotFound(msg string) *AppError {
	return New(ErrNotFound, msg, nil)
}

func NewInvalidDocument(msg string) *AppError {
	return New(ErrInvalidDocument, msg, nil)
}

func Wrap(err error) *AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := err.(*AppError); ok {
		return appErr
	}
	return New(ErrInternal, err.Error(), err)
}

func mapTypeToStatus(t ErrorType) int {
	switch t {
	case ErrInvalidDocument:
		return http.StatusBadRequest
	case ErrValidationFailed:
		return http.StatusUnprocessableEntity
	case ErrNotFound, ErrUnknownModel:
		return http.StatusNotFound
	case ErrNoModelAvailable, ErrModelsExhausted:
		return http.StatusServiceUnavailable
	case ErrRateLimited:
		return http.StatusTooManyRequests
	case ErrReadOnly:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func mapTypeToSuggestion(t ErrorType) string {
	switch t {
	case ErrValidationFailed:
		return "Fix the reported findings, or activate with skip_validation."
	case ErrNoModelAvailable:
		return "Enable at least one model for this market."
	case ErrModelsExhausted:
		return "Check model health and rate limits, or raise max_retries."
	case ErrUnknownModel:
		return "Use a model listed in the price table."
	case ErrRateLimited:
		return "Retry after the rate window resets."
	case ErrReadOnly:
		return "The gateway is in read-only mode; retry on a writable instance."
	default:
		return ""
	}
}
