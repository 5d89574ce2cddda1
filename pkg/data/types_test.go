package data

import (
	"errors"
	"fmt"
	"testing"

	"github.com/satmihir/cbt/pkg/testutils"
	"github.com/stretchr/testify/assert"
)

func TestDataError(t *testing.T) {
	origErr := fmt.Errorf("original error")
	dataErr := NewDataError(origErr, "data error occurred")

	testutils.TestError(t, &DataError{}, dataErr, "data error occurred: original error", origErr)
}

func TestDataErrorMatchesSentinel(t *testing.T) {
	err := NewDataError(ErrInvalidSample, "build time %d", 0)
	assert.True(t, errors.Is(err, ErrInvalidSample))
	assert.False(t, errors.Is(err, ErrNoValidData))
}
