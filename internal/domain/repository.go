package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InitiateRequest carries the validated inputs of a new transaction
type InitiateRequest struct {
	RoomID   uuid.UUID
	Amount   decimal.Decimal
	BillType string
	BankName string
}

// InitiateResult is what the gateway assigns to a newly opened transaction
type InitiateResult struct {
	ID              uuid.UUID
	ReferenceNumber string
}

// TransactionGateway defines the operations against the server-held transaction resource
type TransactionGateway interface {
	// Initiate opens a new pending transaction
	// On failure no transaction is created
	Initiate(ctx context.Context, req InitiateRequest) (*InitiateResult, error)

	// Confirm marks a pending transaction as confirmed
	// On failure the transaction remains pending
	Confirm(ctx context.Context, id uuid.UUID, bankName string) error

	// Cancel marks a pending transaction as cancelled (best-effort from the client's view)
	Cancel(ctx context.Context, id uuid.UUID) error
}

// PaymentMethodCatalog supplies the enabled bank destinations of a room
type PaymentMethodCatalog interface {
	// ListEnabledBanks returns the ordered destinations; an empty list is valid
	ListEnabledBanks(ctx context.Context, roomID uuid.UUID) ([]BankDestination, error)
}

// TransactionRepository defines the interface for transaction persistence operations
type TransactionRepository interface {
	// Create stores a new transaction
	Create(ctx context.Context, tx *Transaction) error

	// GetByID retrieves a transaction by its ID
	// Returns ErrTransactionNotFound if it does not exist
	GetByID(ctx context.Context, id uuid.UUID) (*Transaction, error)

	// UpdateStatus moves a transaction from one status to another atomically
	// Returns ErrStatusConflict if the stored status is not `from`
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to TransactionStatus) (*Transaction, error)

	// ListPendingBefore returns up to limit pending transactions created before cutoff
	ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]*Transaction, error)
}

// BankRepository defines the interface for bank destination persistence operations
type BankRepository interface {
	// ListEnabled retrieves the enabled destinations of a room ordered by sort order, then name
	ListEnabled(ctx context.Context, roomID uuid.UUID) ([]BankDestination, error)

	// Create creates a new bank destination
	Create(ctx context.Context, bank *BankDestination) error
}

// BankCache caches the enabled bank list per room
type BankCache interface {
	// Get returns the cached list and whether it was present
	Get(ctx context.Context, roomID uuid.UUID) ([]BankDestination, bool, error)

	// Set stores the list for the room
	Set(ctx context.Context, roomID uuid.UUID, banks []BankDestination) error
}

// EventPublisher publishes transaction lifecycle events
type EventPublisher interface {
	Publish(ctx context.Context, event TransactionEvent) error
}
