package engine

import (
	"errors"
	"fmt"
	"strings"
)

type ErrorType int

const (
	ErrValidation ErrorType = iota
	ErrProviderTransient
	ErrProviderPermanent
	ErrIO
	ErrCancelled
	ErrNotFound
	ErrUnknown
)

func (t ErrorType) String() string {
	switch t {
	case ErrValidation:
		return "Validation"
	case ErrProviderTransient:
		return "ProviderTransient"
	case ErrProviderPermanent:
		return "ProviderPermanent"
	case ErrIO:
		return "IO"
	case ErrCancelled:
		return "Cancelled"
	case ErrNotFound:
		return "NotFound"
	default:
		return "Unknown"
	}
}

// EngineError is the error every engine operation returns. The Type drives
// how callers react (reject, retry, surface); Context carries the ids and
// parameters that make the failure diagnosable.
type EngineError struct {
	Type    ErrorType
	Message string
	Context map[string]any
	Cause   error
}

func NewError(errorType ErrorType, message string) *EngineError {
	return &EngineError{
		Type:    errorType,
		Message: message,
		Context: make(map[string]any),
	}
}

func NewErrorWithCause(errorType ErrorType, message string, cause error) *EngineError {
	return &EngineError{
		Type:    errorType,
		Message: message,
		Context: make(map[string]any),
		Cause:   cause,
	}
}

func WrapError(err error, errorType ErrorType, message string) *EngineError {
	return NewErrorWithCause(errorType, message, err)
}

func (e *EngineError) Error() string {
	var parts []string
	parts = append(parts, fmt.Sprintf("[%s] %s", e.Type.String(), e.Message))

	if len(e.Context) > 0 {
		var ctxParts []string
		for k, v := range e.Context {
			ctxParts = append(ctxParts, fmt.Sprintf("%s=%v", k, v))
		}
		parts = append(parts, fmt.Sprintf("context: %s", strings.Join(ctxParts, ", ")))
	}

	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("cause: %v", e.Cause))
	}

	return strings.Join(parts, " | ")
}

func (e *EngineError) Unwrap() error {
	return e.Cause
}

func (e *EngineError) WithContext(key string, value any) *EngineError {
	e.Context[key] = value
	return e
}

func IsErrorType(err error, errorType ErrorType) bool {
	var engineErr *EngineError
	if errors.As(err, &engineErr) {
		return engineErr.Type == errorType
	}
	return false
}
