package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// Error codes
const (
	CodeHTTP       = "HTTP_ERROR"
	CodeNotFound   = "NOT_FOUND"
	CodeValidation = "VALIDATION_ERROR"
	CodeCache      = "CACHE_ERROR"
)

// Kind classifies every failure the request engine can produce.
type Kind string

const (
	KindHTTPStatus Kind = "HttpStatusError"
	KindTimeout    Kind = "TimeoutError"
	KindNetwork    Kind = "NetworkError"
)

func (k Kind) String() string {
	return string(k)
}

type BaseError struct {
	Message    string
	Code       string
	StatusCode int
	Context    map[string]any
	Cause      error
}

func (e *BaseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *BaseError) Unwrap() error {
	return e.Cause
}

func (e *BaseError) WithCause(cause error) *BaseError {
	e.Cause = cause
	return e
}

// HTTPError is the only error type the request engine returns.
type HTTPError struct {
	*BaseError
	Kind      Kind
	Status    int
	Details   any
	Timestamp time.Time
}

func newHTTPError(kind Kind, status int, message string, details any, cause error) *HTTPError {
	return &HTTPError{
		BaseError: &BaseError{
			Message:    message,
			Code:       CodeHTTP,
			StatusCode: status,
			Cause:      cause,
		},
		Kind:      kind,
		Status:    status,
		Details:   details,
		Timestamp: time.Now(),
	}
}

// NewHTTPStatusError reports a non-2xx response.
func NewHTTPStatusError(status int, message string, details any) *HTTPError {
	return newHTTPError(KindHTTPStatus, status, message, details, nil)
}

// NewTimeoutError reports a request aborted after timeout elapsed.
func NewTimeoutError(timeout time.Duration, cause error) *HTTPError {
	return newHTTPError(KindTimeout, 0,
		fmt.Sprintf("request timed out after %dms", timeout.Milliseconds()),
		map[string]any{"timeout_ms": timeout.Milliseconds()},
		cause,
	)
}

// NewRateLimitError reports a call abandoned before any attempt because the client-side rate
// limiter could not hand out a token within the caller's deadline.
func NewRateLimitError(cause error) *HTTPError {
	return newHTTPError(KindTimeout, 0,
		"rate limit wait would exceed the request deadline",
		map[string]any{"reason": "rate_limit_deadline"},
		cause,
	)
}

// NewNetworkError reports anything else: unreachable host, refused connection, malformed body.
func NewNetworkError(message string, details any, cause error) *HTTPError {
	return newHTTPError(KindNetwork, 0, message, details, cause)
}

// Retryable reports whether the engine may try the request again.
func (e *HTTPError) Retryable() bool {
	switch e.Kind {
	case KindHTTPStatus:
		return e.Status >= 500
	case KindNetwork:
		return true
	default:
		return false
	}
}

// AsHTTPError extracts an *HTTPError from err's chain.
func AsHTTPError(err error) (*HTTPError, bool) {
	var httpErr *HTTPError
	if stderrors.As(err, &httpErr) {
		return httpErr, true
	}
	return nil, false
}

// IsKind reports whether err carries an HTTPError of the given kind.
func IsKind(err error, kind Kind) bool {
	httpErr, ok := AsHTTPError(err)
	return ok && httpErr.Kind == kind
}

// NotFoundError is the aggregation outcome when the primary record could not be loaded.
type NotFoundError struct {
	*BaseError
	Resource string
	ID       string
}

func NewNotFoundError(resource, id string, cause error) *NotFoundError {
	return &NotFoundError{
		BaseError: &BaseError{
			Message:    fmt.Sprintf("%s %s not found", resource, id),
			Code:       CodeNotFound,
			StatusCode: 404,
			Context: map[string]any{
				"resource": resource,
				"id":       id,
			},
			Cause: cause,
		},
		Resource: resource,
		ID:       id,
	}
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return stderrors.As(err, &nf)
}

type ValidationError struct {
	*BaseError
	Field string
	Value interface{}
}

func NewValidationError(message, field string, value interface{}) *ValidationError {
	return &ValidationError{
		BaseError: &BaseError{
			Message:    message,
			Code:       CodeValidation,
			StatusCode: 400,
			Context: map[string]any{
				"field": field,
				"value": value,
			},
		},
		Field: field,
		Value: value,
	}
}

type CacheError struct {
	*BaseError
	Operation string
	Key       string
}

func NewCacheError(message, operation, key string, cause error) *CacheError {
	return &CacheError{
		BaseError: &BaseError{
			Message:    message,
			Code:       CodeCache,
			StatusCode: 500,
			Context: map[string]any{
				"operation": operation,
				"key":       key,
			},
			Cause: cause,
		},
		Operation: operation,
		Key:       key,
	}
}

// Is, As and New re-export the standard helpers so callers need a single errors import.
var (
	Is  = stderrors.Is
	As  = stderrors.As
	New = stderrors.New
)
