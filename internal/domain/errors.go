package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTransition is returned when an action is requested in a flow state that forbids it.
	// It is raised synchronously and never reaches the gateway.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrNoBankSelected is returned when a transaction is initiated without a bank selection
	ErrNoBankSelected = errors.New("no bank selected")

	// ErrNoBanksAvailable is returned when the room has no enabled bank destinations
	ErrNoBanksAvailable = errors.New("no banks available")

	// ErrUnknownBank is returned when a selected bank is not in the loaded catalog
	ErrUnknownBank = errors.New("unknown bank")

	// ErrFlowTornDown is returned when a new transaction is requested after the user left the flow
	ErrFlowTornDown = errors.New("payment flow torn down")

	ErrTransactionNotFound = errors.New("transaction not found")
	ErrTransactionClosed   = errors.New("transaction already closed")
	ErrStatusConflict      = errors.New("transaction status conflict")
	ErrBankNotEnabled      = errors.New("bank is not enabled for room")
	ErrBankMismatch        = errors.New("bank does not match transaction")
)

// ErrorKind classifies failures surfaced by the payment flow
type ErrorKind string

const (
	// KindPreTransaction: initiate failed, no transaction exists, nothing to clean up
	KindPreTransaction ErrorKind = "PRE_TRANSACTION"
	// KindInTransaction: confirm failed, transaction is still pending and confirm may be retried
	KindInTransaction ErrorKind = "IN_TRANSACTION"
	// KindBestEffort: cancel failed, the flow is closed locally and the error is only logged
	KindBestEffort ErrorKind = "BEST_EFFORT"
	// KindClosed: confirm was refused because the gateway already closed the transaction
	KindClosed ErrorKind = "CLOSED"
)

// FlowError wraps a gateway failure with the recovery class the caller should apply
type FlowError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *FlowError) Error() string {
	return fmt.Sprintf("%s failed (%s): %v", e.Op, e.Kind, e.Err)
}

func (e *FlowError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the same action may be requested again
func (e *FlowError) Retryable() bool {
	return e.Kind == KindInTransaction
}

// IsKind reports whether err carries a FlowError of the given kind
func IsKind(err error, kind ErrorKind) bool {
	var flowErr *FlowError
	if errors.As(err, &flowErr) {
		return flowErr.Kind == kind
	}
	return false
}
