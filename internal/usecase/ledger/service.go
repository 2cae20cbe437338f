package ledger

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/simaogato/roomsplit-payments/internal/domain"
)

// DefaultExpireBatch is the number of stale transactions handled per ExpireStale call
const DefaultExpireBatch = 100

// LedgerService owns the authoritative transaction status and implements
// domain.TransactionGateway on the server side
type LedgerService struct {
	TransactionRepo domain.TransactionRepository
	BankRepo        domain.BankRepository
	Publisher       domain.EventPublisher // Optional: nil disables events
	Logger          *log.Logger

	now func() time.Time
}

// NewLedgerService creates a new LedgerService instance
func NewLedgerService(
	transactionRepo domain.TransactionRepository,
	bankRepo domain.BankRepository,
	publisher domain.EventPublisher,
) *LedgerService {
	return &LedgerService{
		TransactionRepo: transactionRepo,
		BankRepo:        bankRepo,
		Publisher:       publisher,
		Logger:          log.Default(),
		now:             time.Now,
	}
}

// Initiate opens a new pending transaction
// Logic:
//  1. Validate amount, bill type and bank name
//  2. Check the bank is enabled for the room
//  3. Create a PENDING transaction with a new ID and reference number
//  4. Persist and publish transaction.initiated
func (s *LedgerService) Initiate(ctx context.Context, req domain.InitiateRequest) (*domain.InitiateResult, error) {
	now := s.now()
	txID := uuid.New()

	tx := &domain.Transaction{
		ID:              txID,
		ReferenceNumber: NewReferenceNumber(txID, now),
		RoomID:          req.RoomID,
		Amount:          req.Amount,
		BillType:        req.BillType,
		BankName:        req.BankName,
		Status:          domain.TransactionStatusNone,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	// 1. Validate
	if err := tx.Validate(); err != nil {
		return nil, err
	}

	// 2. Bank must be enabled for the room
	banks, err := s.BankRepo.ListEnabled(ctx, req.RoomID)
	if err != nil {
		return nil, err
	}
	if _, ok := domain.FindBank(banks, req.BankName); !ok {
		return nil, domain.ErrBankNotEnabled
	}

	// 3. Open
	if err := tx.CanTransitionTo(domain.TransactionStatusPending); err != nil {
		return nil, err
	}
	tx.Status = domain.TransactionStatusPending

	// 4. Persist and publish
	if err := s.TransactionRepo.Create(ctx, tx); err != nil {
		return nil, err
	}
	s.publish(ctx, domain.EventTransactionInitiated, tx)

	return &domain.InitiateResult{
		ID:              tx.ID,
		ReferenceNumber: tx.ReferenceNumber,
	}, nil
}

// Confirm moves a pending transaction to CONFIRMED
// Repeating the call on a confirmed transaction succeeds without a second status change
func (s *LedgerService) Confirm(ctx context.Context, id uuid.UUID, bankName string) error {
	tx, err := s.TransactionRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if bankName != "" && bankName != tx.BankName {
		return domain.ErrBankMismatch
	}

	if tx.Status == domain.TransactionStatusConfirmed {
		return nil
	}

	if err := tx.CanTransitionTo(domain.TransactionStatusConfirmed); err != nil {
		return err
	}

	updated, err := s.TransactionRepo.UpdateStatus(ctx, id, domain.TransactionStatusPending, domain.TransactionStatusConfirmed)
	if err != nil {
		return s.resolveConflict(ctx, id, err, domain.TransactionStatusConfirmed)
	}
	s.publish(ctx, domain.EventTransactionConfirmed, updated)

	return nil
}

// Cancel moves a pending transaction to CANCELLED
// Repeating the call on a cancelled transaction succeeds without a second status change
func (s *LedgerService) Cancel(ctx context.Context, id uuid.UUID) error {
	tx, err := s.TransactionRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if tx.Status == domain.TransactionStatusCancelled {
		return nil
	}

	if err := tx.CanTransitionTo(domain.TransactionStatusCancelled); err != nil {
		return err
	}

	updated, err := s.TransactionRepo.UpdateStatus(ctx, id, domain.TransactionStatusPending, domain.TransactionStatusCancelled)
	if err != nil {
		return s.resolveConflict(ctx, id, err, domain.TransactionStatusCancelled)
	}
	s.publish(ctx, domain.EventTransactionCancelled, updated)

	return nil
}

// Get retrieves a transaction by ID
func (s *LedgerService) Get(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	return s.TransactionRepo.GetByID(ctx, id)
}

// ExpireStale cancels pending transactions created before now-olderThan.
// Clients cancel abandoned flows only once and best-effort, so this is the server-side
// reconciliation for the ones that never arrived. Returns the number of expired transactions.
func (s *LedgerService) ExpireStale(ctx context.Context, olderThan time.Duration) (int, error) {
	if olderThan <= 0 {
		return 0, errors.New("expiry age must be positive")
	}

	cutoff := s.now().Add(-olderThan)
	stale, err := s.TransactionRepo.ListPendingBefore(ctx, cutoff, DefaultExpireBatch)
	if err != nil {
		return 0, fmt.Errorf("failed to list stale transactions: %w", err)
	}

	expired := 0
	for _, tx := range stale {
		updated, err := s.TransactionRepo.UpdateStatus(ctx, tx.ID, domain.TransactionStatusPending, domain.TransactionStatusCancelled)
		if err != nil {
			// A client confirmed or cancelled it in the meantime
			if errors.Is(err, domain.ErrStatusConflict) {
				continue
			}
			return expired, fmt.Errorf("failed to expire transaction %s: %w", tx.ID, err)
		}
		s.publish(ctx, domain.EventTransactionExpired, updated)
		expired++
	}

	return expired, nil
}

// resolveConflict turns a lost conditional update into the outcome a retrying caller expects
func (s *LedgerService) resolveConflict(ctx context.Context, id uuid.UUID, err error, target domain.TransactionStatus) error {
	if !errors.Is(err, domain.ErrStatusConflict) {
		return err
	}

	current, getErr := s.TransactionRepo.GetByID(ctx, id)
	if getErr != nil {
		return err
	}
	if current.Status == target {
		return nil
	}
	return domain.ErrTransactionClosed
}

func (s *LedgerService) publish(ctx context.Context, eventType domain.TransactionEventType, tx *domain.Transaction) {
	if s.Publisher == nil || tx == nil {
		return
	}

	event := domain.NewTransactionEvent(eventType, tx, s.now())
	if err := s.Publisher.Publish(ctx, event); err != nil {
		s.logger().Printf("failed to publish %s for transaction %s: %v", eventType, tx.ID, err)
	}
}

func (s *LedgerService) logger() *log.Logger {
	if s.Logger == nil {
		return log.Default()
	}
	return s.Logger
}

// NewReferenceNumber builds the human-readable reference quoted in the bank transfer,
// e.g. PAY-20261015-3F2A9C1B
func NewReferenceNumber(id uuid.UUID, at time.Time) string {
	short := strings.ToUpper(strings.ReplaceAll(id.String(), "-", "")[:8])
	return fmt.Sprintf("PAY-%s-%s", at.UTC().Format("20060102"), short)
}
