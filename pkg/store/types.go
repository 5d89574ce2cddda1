package store

import (
	"github.com/satmihir/cbt/pkg/utils"
)

// An opaque key/value state store. A key may hold several values, one per
// line in the state file, kept in insertion order.
type StateStore interface {
	// Values returns every value stored for key, or nil
	Values(key string) []string
	// SetValues replaces every value of key. No values removes the key.
	SetValues(key string, values ...string)
	// MarkDirty asks for the store to be written at the next save
	MarkDirty()
	Dirty() bool
	// Save writes the store if it is dirty
	Save() error
	// LastWriteFailed is true when the most recent write did not make it
	LastWriteFailed() bool
}

type StoreError struct {
	*utils.BaseError
}

func NewStoreError(wrapped error, msg string, args ...any) *StoreError {
	return &StoreError{
		BaseError: utils.NewBaseError(wrapped, msg, args...),
	}
}
