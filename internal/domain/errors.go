// Package domain holds shared types and the error taxonomy for the vault engine.
package domain

import (
	"errors"
	"fmt"
)

// Error taxonomy for holder-facing operations. Every error aborts the whole
// operation; no partial state change is ever committed alongside one of these.
var (
	// ErrInvalidAmount - zero or negative amount supplied
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrInvalidPolicy - allocation percentages do not sum to 100
	ErrInvalidPolicy = errors.New("invalid policy: percentages must sum to 100")
	// ErrNoPosition - operation requires existing contributed capital
	ErrNoPosition = errors.New("no position: holder has no contributed capital")
	// ErrInsufficientBalance - withdrawal exceeds recorded or live balance
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrUnknownStrategy - identifier does not resolve to a registered slot
	ErrUnknownStrategy = errors.New("unknown strategy")
	// ErrReentrant - nested entry into a mutating operation
	ErrReentrant = errors.New("reentrant call rejected")
)

// CollaboratorError wraps a failure from a strategy capability or the
// underlying asset ledger. The collaborator's error is propagated verbatim.
type CollaboratorError struct {
	Op       string // engine operation in flight, e.g. "deposit"
	Strategy string // slot name, empty for asset-ledger failures
	Err      error
}

// Error implements the error interface
func (e *CollaboratorError) Error() string {
	if e.Strategy != "" {
		return fmt.Sprintf("collaborator failure in %s (strategy %s): %v", e.Op, e.Strategy, e.Err)
	}
	return fmt.Sprintf("collaborator failure in %s: %v", e.Op, e.Err)
}

// Unwrap returns the wrapped collaborator error
func (e *CollaboratorError) Unwrap() error {
	return e.Err
}
