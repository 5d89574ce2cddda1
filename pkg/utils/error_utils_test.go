package utils

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBaseError(t *testing.T) {
	e := fmt.Errorf("wrapped")
	testError := NewBaseError(e, "wrapping text %s", "xyz")

	assert.Equal(t, "wrapping text xyz: wrapped", testError.Error())
	assert.Equal(t, e, errors.Unwrap(testError))
	assert.True(t, errors.Is(testError, e))
}

func TestBaseErrorWithoutWrapped(t *testing.T) {
	testError := NewBaseError(nil, "plain %d", 7)

	assert.Equal(t, "plain 7", testError.Error())
	assert.Nil(t, errors.Unwrap(testError))
}
