package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionStatus represents the server-authoritative status of a payment transaction
type TransactionStatus string

const (
	TransactionStatusNone      TransactionStatus = "NONE"
	TransactionStatusPending   TransactionStatus = "PENDING"
	TransactionStatusConfirmed TransactionStatus = "CONFIRMED"
	TransactionStatusCancelled TransactionStatus = "CANCELLED"
)

// IsTerminal reports whether no further status change is allowed
func (s TransactionStatus) IsTerminal() bool {
	return s == TransactionStatusConfirmed || s == TransactionStatusCancelled
}

// Transaction represents one attempted bank-transfer payment for a room bill.
// ID and ReferenceNumber are assigned by the gateway on initiation.
// Amount, BillType and RoomID are fixed before initiation; BankName is frozen once the
// transaction is opened.
type Transaction struct {
	ID              uuid.UUID
	ReferenceNumber string
	RoomID          uuid.UUID
	Amount          decimal.Decimal
	BillType        string
	BankName        string
	Status          TransactionStatus
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Validate ensures the immutable inputs of the transaction are usable
func (t *Transaction) Validate() error {
	if t.RoomID == uuid.Nil {
		return errors.New("room ID is required")
	}

	if t.Amount.LessThanOrEqual(decimal.Zero) {
		return errors.New("transaction amount must be positive")
	}

	if t.BillType == "" {
		return errors.New("bill type is required")
	}

	if t.BankName == "" {
		return errors.New("bank name is required")
	}

	return nil
}

// CanTransitionTo checks the forward-only status rule:
// NONE -> PENDING -> {CONFIRMED | CANCELLED}. Terminal statuses never move.
func (t *Transaction) CanTransitionTo(target TransactionStatus) error {
	switch t.Status {
	case TransactionStatusNone, "":
		if target == TransactionStatusPending {
			return nil
		}
	case TransactionStatusPending:
		if target == TransactionStatusConfirmed || target == TransactionStatusCancelled {
			return nil
		}
	case TransactionStatusConfirmed, TransactionStatusCancelled:
		return ErrTransactionClosed
	}

	return ErrStatusConflict
}
