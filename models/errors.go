package models

import "fmt"

// Error codes used in API responses and internal error handling.
const (
	ErrCodeTimeout      = "FETCH_TIMEOUT"
	ErrCodeNavigation   = "NAVIGATION_FAILED"
	ErrCodeBrowserStart = "BROWSER_START_FAILED"
	ErrCodeExtraction   = "CONTENT_EXTRACTION_FAILED"
	ErrCodeSearch       = "SEARCH_FAILED"
	ErrCodeRegistry     = "REGISTRY_FAILURE"
	ErrCodeInvalidInput = "INVALID_INPUT"
	ErrCodeRateLimited  = "RATE_LIMITED"
	ErrCodeUnauthorized = "UNAUTHORIZED"
	ErrCodeInternal     = "INTERNAL_ERROR"
)

// ErrorDetail is the structured error in API responses.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// RetrieveError is the internal error type carrying an error code.
// It implements the error interface and supports error wrapping via Unwrap.
//
// Only programmer-error and resource-initialization conditions travel as
// RetrieveError; ordinary transport and encoding failures are represented
// as FetchResult fields instead.
type RetrieveError struct {
	Code    string
	Message string
	Err     error // wrapped original error
}

func (e *RetrieveError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *RetrieveError) Unwrap() error {
	return e.Err
}

// NewRetrieveError creates a new RetrieveError.
func NewRetrieveError(code, message string, err error) *RetrieveError {
	return &RetrieveError{Code: code, Message: message, Err: err}
}

// ToDetail converts an internal error to an API-facing ErrorDetail.
func (e *RetrieveError) ToDetail() *ErrorDetail {
	return &ErrorDetail{Code: e.Code, Message: e.Message}
}
