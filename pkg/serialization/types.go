package serialization

import (
	"errors"

	"github.com/satmihir/cbt/pkg/utils"
)

var (
	// The record failed its integrity check
	ErrChecksum = errors.New("checksum mismatch")
	// The record is syntactically broken or its counts do not add up
	ErrMalformedRecord = errors.New("malformed build time record")
)

type SerializationError struct {
	*utils.BaseError
}

func NewSerializationError(wrapped error, msg string, args ...any) *SerializationError {
	return &SerializationError{
		BaseError: utils.NewBaseError(wrapped, msg, args...),
	}
}
