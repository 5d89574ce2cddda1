package testutils

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestError verifies that an error implements the expected behavior, message and
// wrapped error. It is a helper used across unit tests.
func TestError(t *testing.T, expectedType interface{}, errInstance error, expectedMessage string, wrappedErr error) {
	t.Helper()

	_, ok := errInstance.(interface{ Unwrap() error })

	assert.True(t, ok, "Error should be of expected type")
	assert.IsType(t, expectedType, errInstance)
	assert.Equal(t, expectedMessage, errInstance.Error(), "Error message should match")
	assert.Equal(t, wrappedErr, errors.Unwrap(errInstance), "Wrapped error should match the expected original error")
}

// TestErrorIs verifies the error's package type and that a sentinel is
// somewhere in its chain, for errors wrapped more than once
func TestErrorIs(t *testing.T, expectedType interface{}, errInstance error, sentinel error) {
	t.Helper()

	if !assert.Error(t, errInstance) {
		return
	}
	assert.IsType(t, expectedType, errInstance)
	assert.ErrorIs(t, errInstance, sentinel)
}
