// models/errors.go
package models

import (
	"errors"
	"fmt"
)

// Ledger error kinds. Handlers map these to HTTP statuses; callers
// distinguish them with errors.Is.
var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInvalidOperation  = errors.New("invalid operation")
	ErrInsufficientFunds = errors.New("insufficient coins")
	ErrConflict          = errors.New("conflict")
)

// PersistenceError wraps a store failure during a ledger operation. The
// operation it wraps has been rolled back in full.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
