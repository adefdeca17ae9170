// internal/engine/errors.go
package engine

import (
	"errors"
	"fmt"
)

// Common engine errors
var (
	ErrSessionFatal    = errors.New("browser session cannot be recovered")
	ErrConfig          = errors.New("invalid configuration")
	ErrCaptcha         = errors.New("captcha challenge")
	ErrTimeout         = errors.New("timed out waiting for page")
	ErrParse           = errors.New("failed to parse page")
	ErrNavigationStall = errors.New("navigation stalled")
	ErrCartNotEmpty    = errors.New("cart is not empty")
)

// ErrorCode represents a specific error condition
type ErrorCode string

const (
	ErrCodeTransient       ErrorCode = "TRANSIENT"
	ErrCodeTimeout         ErrorCode = "TIMEOUT"
	ErrCodeParse           ErrorCode = "PARSE_ERROR"
	ErrCodeNavigationStall ErrorCode = "NAVIGATION_STALL"
	ErrCodeSessionFatal    ErrorCode = "SESSION_FATAL"
	ErrCodeConfig          ErrorCode = "CONFIG"
)

// EngineError wraps errors with additional context
type EngineError struct {
	Code       ErrorCode
	Message    string
	Underlying error
	Retry      bool
	Details    map[string]interface{}
}

// Error implements the error interface
func (e *EngineError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Underlying)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *EngineError) Unwrap() error {
	return e.Underlying
}

// Is matches another EngineError by code, or the sentinel that belongs to
// this error's code.
func (e *EngineError) Is(target error) bool {
	if t, ok := target.(*EngineError); ok {
		return e.Code == t.Code
	}
	if s := sentinelFor(e.Code); s != nil && target == s {
		return true
	}
	return errors.Is(e.Underlying, target)
}

func sentinelFor(code ErrorCode) error {
	switch code {
	case ErrCodeSessionFatal:
		return ErrSessionFatal
	case ErrCodeConfig:
		return ErrConfig
	case ErrCodeTimeout:
		return ErrTimeout
	case ErrCodeParse:
		return ErrParse
	case ErrCodeNavigationStall:
		return ErrNavigationStall
	}
	return nil
}

// NewEngineError creates a new EngineError
func NewEngineError(code ErrorCode, message string, err error) *EngineError {
	return &EngineError{
		Code:       code,
		Message:    message,
		Underlying: err,
		Details:    make(map[string]interface{}),
	}
}

// SessionFatal builds the error that stops the hunt and exits the process.
func SessionFatal(message string, err error) *EngineError {
	return NewEngineError(ErrCodeSessionFatal, message, err)
}

// ConfigError builds a startup configuration error.
func ConfigError(message string, err error) *EngineError {
	return NewEngineError(ErrCodeConfig, message, err)
}

// WithRetry marks the error as retryable
func (e *EngineError) WithRetry() *EngineError {
	e.Retry = true
	return e
}

// WithDetail adds a detail to the error
func (e *EngineError) WithDetail(key string, value interface{}) *EngineError {
	e.Details[key] = value
	return e
}

// IsFatal reports whether err must terminate the hunt.
func IsFatal(err error) bool {
	return errors.Is(err, ErrSessionFatal)
}
