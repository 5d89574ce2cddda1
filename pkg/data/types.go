package data

import (
	"errors"

	"github.com/satmihir/cbt/pkg/utils"
)

var (
	// A build time outside (0, BuildTimeMax]
	ErrInvalidSample = errors.New("invalid build time")
	// Every sample that could feed a mode was abandoned or missing
	ErrNoValidData = errors.New("no valid circuit build time data")
	// The alpha estimate came out non-positive or undefined
	ErrInvalidAlpha = errors.New("non-positive alpha estimate")
	// A quantile outside the open interval (0, 1)
	ErrInvalidQuantile = errors.New("quantile must be in (0, 1)")
)

// The umbrella error for this package
type DataError struct {
	*utils.BaseError
}

func NewDataError(wrapped error, msg string, args ...any) *DataError {
	return &DataError{
		BaseError: utils.NewBaseError(wrapped, msg, args...),
	}
}
