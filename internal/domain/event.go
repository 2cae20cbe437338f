package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionEventType names a ledger status change
type TransactionEventType string

const (
	EventTransactionInitiated TransactionEventType = "transaction.initiated"
	EventTransactionConfirmed TransactionEventType = "transaction.confirmed"
	EventTransactionCancelled TransactionEventType = "transaction.cancelled"
	EventTransactionExpired   TransactionEventType = "transaction.expired"
)

// TransactionEvent is emitted by the ledger after every successful status change
type TransactionEvent struct {
	Type            TransactionEventType `json:"event_type"`
	TransactionID   uuid.UUID            `json:"transaction_id"`
	ReferenceNumber string               `json:"reference_number"`
	RoomID          uuid.UUID            `json:"room_id"`
	Amount          decimal.Decimal      `json:"amount"`
	BillType        string               `json:"bill_type"`
	BankName        string               `json:"bank_name"`
	Status          TransactionStatus    `json:"status"`
	OccurredAt      time.Time            `json:"occurred_at"`
}

// NewTransactionEvent builds an event from the current state of a transaction
func NewTransactionEvent(eventType TransactionEventType, tx *Transaction, at time.Time) TransactionEvent {
	return TransactionEvent{
		Type:            eventType,
		TransactionID:   tx.ID,
		ReferenceNumber: tx.ReferenceNumber,
		RoomID:          tx.RoomID,
		Amount:          tx.Amount,
		BillType:        tx.BillType,
		BankName:        tx.BankName,
		Status:          tx.Status,
		OccurredAt:      at,
	}
}
