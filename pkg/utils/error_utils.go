package utils

import "fmt"

// A general base error embedded by every package error type
type BaseError struct {
	msg          string
	wrappedError error
}

func NewBaseError(wrapped error, msg string, args ...any) *BaseError {
	return &BaseError{
		msg:          fmt.Sprintf(msg, args...),
		wrappedError: wrapped,
	}
}

func (be *BaseError) Error() string {
	if be.wrappedError != nil {
		return fmt.Sprintf("%s: %v", be.msg, be.wrappedError)
	}
	return be.msg
}

// Unwrap exposes the wrapped error so callers can match sentinels with errors.Is
func (be *BaseError) Unwrap() error {
	return be.wrappedError
}
