package paymentflow

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/simaogato/roomsplit-payments/internal/domain"
)

// FlowInput represents the immutable inputs of one payment flow instance
type FlowInput struct {
	RoomID   uuid.UUID
	Amount   decimal.Decimal
	BillType string
}

// Snapshot is a consistent view of the controller at one instant.
// TransactionID is uuid.Nil until a transaction has been opened.
type Snapshot struct {
	State           domain.FlowState
	RoomID          uuid.UUID
	Amount          decimal.Decimal
	BillType        string
	BankName        string
	TransactionID   uuid.UUID
	ReferenceNumber string
	Status          domain.TransactionStatus
	LastError       error
}

// HasTransaction reports whether the snapshot holds an opened transaction
func (s Snapshot) HasTransaction() bool {
	return s.TransactionID != uuid.Nil
}

// Controller drives the payment flow state machine and is the single owner of the
// current transaction identity.
//
// Every transition is decided under mu against the current state, and every accepted
// transition publishes a fresh Snapshot into current. Gateway calls run outside mu while
// the state is one of the in-flight states, so any overlapping action is rejected with
// domain.ErrInvalidTransition instead of being queued.
type Controller struct {
	Gateway domain.TransactionGateway
	Catalog domain.PaymentMethodCatalog
	Logger  *log.Logger

	mu       sync.Mutex
	snap     Snapshot
	banks    []domain.BankDestination
	detached bool
	changed  chan struct{}
	current  atomic.Pointer[Snapshot]
}

// NewController creates a controller in SelectingBank for the given inputs
func NewController(gateway domain.TransactionGateway, catalog domain.PaymentMethodCatalog, input FlowInput) (*Controller, error) {
	if input.RoomID == uuid.Nil {
		return nil, errors.New("room ID is required")
	}
	if input.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, errors.New("payment amount must be positive")
	}
	if input.BillType == "" {
		return nil, errors.New("bill type is required")
	}

	c := &Controller{
		Gateway: gateway,
		Catalog: catalog,
		Logger:  log.Default(),
		snap: Snapshot{
			State:    domain.FlowStateSelectingBank,
			RoomID:   input.RoomID,
			Amount:   input.Amount,
			BillType: input.BillType,
			Status:   domain.TransactionStatusNone,
		},
	}
	c.publish()

	return c, nil
}

// Snapshot returns the latest published state. It never blocks on a transition in progress.
func (c *Controller) Snapshot() Snapshot {
	return *c.current.Load()
}

// Banks returns the bank destinations loaded by LoadBanks
func (c *Controller) Banks() []domain.BankDestination {
	c.mu.Lock()
	defer c.mu.Unlock()

	banks := make([]domain.BankDestination, len(c.banks))
	copy(banks, c.banks)
	return banks
}

// LoadBanks fetches the enabled destinations for the room
// Logic:
//  1. Only allowed while SelectingBank (the bank is frozen afterwards)
//  2. Store the list; an empty list is valid and makes Initiate fail with ErrNoBanksAvailable
//  3. Pre-select the first bank when the current selection is empty or no longer offered
func (c *Controller) LoadBanks(ctx context.Context) ([]domain.BankDestination, error) {
	roomID := c.Snapshot().RoomID

	banks, err := c.Catalog.ListEnabledBanks(ctx, roomID)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.snap.State != domain.FlowStateSelectingBank {
		return nil, domain.ErrInvalidTransition
	}

	c.banks = banks
	if _, ok := domain.FindBank(banks, c.snap.BankName); !ok {
		c.snap.BankName = ""
		if len(banks) > 0 {
			c.snap.BankName = banks[0].BankName
		}
	}
	c.publish()

	out := make([]domain.BankDestination, len(banks))
	copy(out, banks)
	return out, nil
}

// SelectBank updates the pending bank selection
// Only valid in SelectingBank; the name must be one of the loaded banks
func (c *Controller) SelectBank(bankName string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.snap.State != domain.FlowStateSelectingBank {
		return domain.ErrInvalidTransition
	}

	if _, ok := domain.FindBank(c.banks, bankName); !ok {
		return domain.ErrUnknownBank
	}

	c.snap.BankName = bankName
	c.snap.LastError = nil
	c.publish()

	return nil
}

// Initiate opens a transaction with the gateway
// Logic:
//  1. Guard: flow not torn down, SelectingBank, at least one bank loaded, a bank selected
//  2. Transition to Initiating and call gateway.Initiate
//  3. On success store ID and reference, transition to AwaitingConfirmation
//  4. On failure return to SelectingBank with a KindPreTransaction error (nothing to clean up)
func (c *Controller) Initiate(ctx context.Context) (Snapshot, error) {
	c.mu.Lock()
	if c.detached {
		c.mu.Unlock()
		return c.Snapshot(), domain.ErrFlowTornDown
	}
	if c.snap.State != domain.FlowStateSelectingBank {
		c.mu.Unlock()
		return c.Snapshot(), domain.ErrInvalidTransition
	}
	if len(c.banks) == 0 {
		c.mu.Unlock()
		return c.Snapshot(), domain.ErrNoBanksAvailable
	}
	if c.snap.BankName == "" {
		c.mu.Unlock()
		return c.Snapshot(), domain.ErrNoBankSelected
	}

	req := domain.InitiateRequest{
		RoomID:   c.snap.RoomID,
		Amount:   c.snap.Amount,
		BillType: c.snap.BillType,
		BankName: c.snap.BankName,
	}
	c.snap.State = domain.FlowStateInitiating
	c.snap.LastError = nil
	c.publish()
	c.mu.Unlock()

	result, err := c.Gateway.Initiate(ctx, req)
	if err == nil && (result == nil || result.ID == uuid.Nil) {
		err = errors.New("gateway returned no transaction ID")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		flowErr := &domain.FlowError{Kind: domain.KindPreTransaction, Op: "initiate", Err: err}
		c.snap.State = domain.FlowStateSelectingBank
		c.snap.LastError = flowErr
		c.publish()
		return c.snap, flowErr
	}

	c.snap.TransactionID = result.ID
	c.snap.ReferenceNumber = result.ReferenceNumber
	c.snap.Status = domain.TransactionStatusPending
	c.snap.State = domain.FlowStateAwaitingConfirmation
	c.publish()

	return c.snap, nil
}

// Confirm asks the gateway to confirm the open transaction
// Logic:
//  1. Guard: AwaitingConfirmation (rejects confirm before a successful initiate)
//  2. Transition to Confirming and call gateway.Confirm with the held ID
//  3. On success transition to Confirmed
//  4. On failure return to AwaitingConfirmation with a retryable KindInTransaction error;
//     the transaction stays pending server-side
//  5. If the gateway reports the transaction already closed (e.g. expired), settle in
//     Cancelled with a non-retryable KindClosed error
func (c *Controller) Confirm(ctx context.Context) (Snapshot, error) {
	c.mu.Lock()
	if c.snap.State != domain.FlowStateAwaitingConfirmation {
		c.mu.Unlock()
		return c.Snapshot(), domain.ErrInvalidTransition
	}

	id := c.snap.TransactionID
	bankName := c.snap.BankName
	c.snap.State = domain.FlowStateConfirming
	c.snap.LastError = nil
	c.publish()
	c.mu.Unlock()

	err := c.Gateway.Confirm(ctx, id, bankName)

	c.mu.Lock()
	defer c.mu.Unlock()

	if errors.Is(err, domain.ErrTransactionClosed) {
		flowErr := &domain.FlowError{Kind: domain.KindClosed, Op: "confirm", Err: err}
		c.snap.State = domain.FlowStateCancelled
		c.snap.Status = domain.TransactionStatusCancelled
		c.snap.LastError = flowErr
		c.publish()
		return c.snap, flowErr
	}
	if err != nil {
		flowErr := &domain.FlowError{Kind: domain.KindInTransaction, Op: "confirm", Err: err}
		c.snap.State = domain.FlowStateAwaitingConfirmation
		c.snap.LastError = flowErr
		c.publish()
		return c.snap, flowErr
	}

	c.snap.State = domain.FlowStateConfirmed
	c.snap.Status = domain.TransactionStatusConfirmed
	c.publish()

	return c.snap, nil
}

// Cancel abandons the open transaction
// The flow always ends in Cancelled once the request is accepted; a gateway failure is
// logged and recorded as a KindBestEffort LastError, never returned.
func (c *Controller) Cancel(ctx context.Context) (Snapshot, error) {
	id, err := c.beginCancel()
	if err != nil {
		return c.Snapshot(), err
	}

	return c.finishCancel(ctx, id), nil
}

// Reset returns a finished flow to a fresh SelectingBank state for a new payment
// Calling it again on an already fresh flow is a no-op
func (c *Controller) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.snap.State == domain.FlowStateSelectingBank && !c.snap.HasTransaction() {
		return nil
	}
	if !c.snap.State.IsTerminal() {
		return domain.ErrInvalidTransition
	}

	bankName := ""
	if len(c.banks) > 0 {
		bankName = c.banks[0].BankName
	}

	c.snap = Snapshot{
		State:    domain.FlowStateSelectingBank,
		RoomID:   c.snap.RoomID,
		Amount:   c.snap.Amount,
		BillType: c.snap.BillType,
		BankName: bankName,
		Status:   domain.TransactionStatusNone,
	}
	c.publish()

	return nil
}

// beginCancel moves AwaitingConfirmation to Cancelling and hands back the ID to cancel.
// It is the only entry into Cancelling, so an explicit cancel and an abandonment cancel
// can never both be issued for the same transaction.
func (c *Controller) beginCancel() (uuid.UUID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.snap.State != domain.FlowStateAwaitingConfirmation {
		return uuid.Nil, domain.ErrInvalidTransition
	}

	c.snap.State = domain.FlowStateCancelling
	c.snap.LastError = nil
	c.publish()

	return c.snap.TransactionID, nil
}

// finishCancel issues the gateway cancel for id and settles the flow in Cancelled
func (c *Controller) finishCancel(ctx context.Context, id uuid.UUID) Snapshot {
	var flowErr error
	if err := c.Gateway.Cancel(ctx, id); err != nil {
		flowErr = &domain.FlowError{Kind: domain.KindBestEffort, Op: "cancel", Err: err}
		c.logger().Printf("best-effort cancel of transaction %s failed: %v", id, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.snap.State = domain.FlowStateCancelled
	c.snap.Status = domain.TransactionStatusCancelled
	c.snap.LastError = flowErr
	c.publish()

	return c.snap
}

// detach marks the flow as torn down; no new transaction may be opened afterwards
func (c *Controller) detach() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.detached = true
}

// watch returns the current snapshot and a channel closed on the next published change
func (c *Controller) watch() (Snapshot, <-chan struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap, c.changed
}

// publish stores a copy of snap as the current snapshot and wakes watchers; callers hold mu
func (c *Controller) publish() {
	s := c.snap
	c.current.Store(&s)

	if c.changed != nil {
		close(c.changed)
	}
	c.changed = make(chan struct{})
}

func (c *Controller) logger() *log.Logger {
	if c.Logger == nil {
		return log.Default()
	}
	return c.Logger
}
