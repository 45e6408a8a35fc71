package errors

import (
	"errors"
	"fmt"
	"time"
)

// Base error types
var (
	ErrNotFound         = errors.New("not found")
	ErrTimeout          = errors.New("timeout")
	ErrInvalidInput     = errors.New("invalid input")
	ErrConnectionFailed = errors.New("connection failed")
	ErrCancelled        = errors.New("cancelled")
	ErrCircuitOpen      = errors.New("circuit open")
	ErrConfiguration    = errors.New("configuration error")
)

// ErrorType represents the category of error
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeNotFound   ErrorType = "not_found"
	ErrorTypeTransient  ErrorType = "transient" // network, timeout, 5xx, 429, circuit open
	ErrorTypePermanent  ErrorType = "permanent" // 4xx except 429, parse failure
	ErrorTypeConfig     ErrorType = "config"
	ErrorTypeCancelled  ErrorType = "cancelled"
)

// ProviderError is a structured error for provider and pipeline operations.
type ProviderError struct {
	Type       ErrorType
	Op         string // operation that failed (e.g. "search", "fetch_metrics")
	Provider   string // provider key where the error occurred
	Err        error  // underlying error
	StatusCode int    // HTTP status code if applicable
	RetryAfter time.Duration
	Timestamp  time.Time
	Retryable  bool
}

func (e *ProviderError) Error() string {
	if e.Provider != "" {
		return fmt.Sprintf("%s failed on %s: %v", e.Op, e.Provider, e.Err)
	}
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is matching against the base error types.
func (e *ProviderError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Type == ErrorTypeNotFound
	case ErrInvalidInput:
		return e.Type == ErrorTypeValidation
	case ErrCancelled:
		return e.Type == ErrorTypeCancelled
	case ErrConfiguration:
		return e.Type == ErrorTypeConfig
	}
	return errors.Is(e.Err, target)
}

// New creates a ProviderError with the retryable flag derived from the type.
func New(errorType ErrorType, op, provider string, err error) *ProviderError {
	return &ProviderError{
		Type:      errorType,
		Op:        op,
		Provider:  provider,
		Err:       err,
		Timestamp: time.Now(),
		Retryable: errorType == ErrorTypeTransient,
	}
}

// WithStatusCode attaches an HTTP status code and adjusts retryability.
func (e *ProviderError) WithStatusCode(code int) *ProviderError {
	e.StatusCode = code
	if code >= 500 || code == 429 || code == 408 {
		e.Retryable = true
		e.Type = ErrorTypeTransient
	} else if code >= 400 && code < 500 {
		e.Retryable = false
		e.Type = ErrorTypePermanent
	}
	return e
}

// WithRetryAfter records an upstream Retry-After hint.
func (e *ProviderError) WithRetryAfter(d time.Duration) *ProviderError {
	e.RetryAfter = d
	return e
}

// Wrap helpers

func WrapTransient(op, provider string, err error) error {
	return New(ErrorTypeTransient, op, provider, err)
}

func WrapPermanent(op, provider string, err error) error {
	return New(ErrorTypePermanent, op, provider, err)
}

func WrapNotFound(op, provider string, err error) error {
	return New(ErrorTypeNotFound, op, provider, err)
}

func WrapValidation(op string, err error) error {
	return New(ErrorTypeValidation, op, "", err)
}

func WrapConfig(op string, err error) error {
	return New(ErrorTypeConfig, op, "", err)
}

func WrapCancelled(op string, err error) error {
	return New(ErrorTypeCancelled, op, "", err)
}

// IsRetryable checks if an error should be retried.
func IsRetryable(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrConnectionFailed) ||
		errors.Is(err, ErrCircuitOpen)
}

// IsNotFound checks if an error is a not-found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation checks if an error is a validation error.
func IsValidation(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Type == ErrorTypeValidation
	}
	return errors.Is(err, ErrInvalidInput)
}

// RetryAfter extracts an upstream Retry-After hint, if any.
func RetryAfter(err error) (time.Duration, bool) {
	var pe *ProviderError
	if errors.As(err, &pe) && pe.RetryAfter > 0 {
		return pe.RetryAfter, true
	}
	return 0, false
}
