package shared

import (
	"errors"

	"github.com/samber/oops"
)

// Domain error codes
const (
	ErrCodeInvalidInput     = 1001
	ErrCodeNotFound         = 1002
	ErrCodeAlreadyExists    = 1003
	ErrCodeInvalidOperation = 1004
	ErrCodeUnauthorized     = 1005
)

// Error kinds. Every coded domain error wraps exactly one of these, so callers
// match with errors.Is instead of inspecting codes.
var (
	ErrKindInvalidInput     = errors.New("invalid input")
	ErrKindNotFound         = errors.New("not found")
	ErrKindAlreadyExists    = errors.New("already exists")
	ErrKindInvalidOperation = errors.New("invalid operation")
	ErrKindUnauthorized     = errors.New("unauthorized")
	ErrKindUnknown          = errors.New("unknown error")
)

// NewDomainError creates a new domain error using oops
func NewDomainError(code int, message string) error {
	return oops.
		Code(codeToString(code)).
		In("domain").
		With("error_code", code).
		Wrapf(kindOf(code), "%s", message)
}

// NewDomainErrorf creates a new domain error with formatted message
func NewDomainErrorf(code int, format string, args ...interface{}) error {
	return oops.
		Code(codeToString(code)).
		In("domain").
		With("error_code", code).
		Wrapf(kindOf(code), format, args...)
}

// WrapDomainError wraps an existing error with domain context
func WrapDomainError(err error, code int, message string) error {
	return oops.
		Code(codeToString(code)).
		In("domain").
		With("error_code", code).
		Wrapf(errors.Join(kindOf(code), err), "%s", message)
}

// codeToString converts int error code to string
func codeToString(code int) string {
	switch code {
	case ErrCodeInvalidInput:
		return "INVALID_INPUT"
	case ErrCodeNotFound:
		return "NOT_FOUND"
	case ErrCodeAlreadyExists:
		return "ALREADY_EXISTS"
	case ErrCodeInvalidOperation:
		return "INVALID_OPERATION"
	case ErrCodeUnauthorized:
		return "UNAUTHORIZED"
	default:
		return "UNKNOWN_ERROR"
	}
}

func kindOf(code int) error {
	switch code {
	case ErrCodeInvalidInput:
		return ErrKindInvalidInput
	case ErrCodeNotFound:
		return ErrKindNotFound
	case ErrCodeAlreadyExists:
		return ErrKindAlreadyExists
	case ErrCodeInvalidOperation:
		return ErrKindInvalidOperation
	case ErrCodeUnauthorized:
		return ErrKindUnauthorized
	default:
		return ErrKindUnknown
	}
}

// Common domain error builders
func ErrInvalidInput(msg string) error {
	return NewDomainError(ErrCodeInvalidInput, msg)
}

func ErrNotFound(resource string) error {
	return NewDomainErrorf(ErrCodeNotFound, "%s not found", resource)
}

func ErrAlreadyExists(resource string) error {
	return NewDomainErrorf(ErrCodeAlreadyExists, "%s already exists", resource)
}

func ErrInvalidOperation(operation string) error {
	return NewDomainErrorf(ErrCodeInvalidOperation, "Invalid operation: %s", operation)
}

func ErrUnauthorized(msg string) error {
	return NewDomainError(ErrCodeUnauthorized, msg)
}

// IsInvalidInput reports whether err is an INVALID_INPUT domain error
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrKindInvalidInput)
}

// IsUnauthorized reports whether err is an UNAUTHORIZED domain error
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrKindUnauthorized)
}
