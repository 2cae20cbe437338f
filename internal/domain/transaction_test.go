package domain

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestTransaction_Validate(t *testing.T) {
	roomID := uuid.New()

	tests := []struct {
		name    string
		tx      Transaction
		wantErr bool
		errMsg  string
	}{
		{
			name: "Complete transaction should pass",
			tx: Transaction{
				RoomID:   roomID,
				Amount:   decimal.NewFromInt(250000),
				BillType: "electricity",
				BankName: "BCA",
			},
			wantErr: false,
		},
		{
			name: "Missing room should fail",
			tx: Transaction{
				Amount:   decimal.NewFromInt(100),
				BillType: "rent",
				BankName: "BCA",
			},
			wantErr: true,
			errMsg:  "room ID is required",
		},
		{
			name: "Zero amount should fail",
			tx: Transaction{
				RoomID:   roomID,
				Amount:   decimal.Zero,
				BillType: "rent",
				BankName: "BCA",
			},
			wantErr: true,
			errMsg:  "transaction amount must be positive",
		},
		{
			name: "Negative amount should fail",
			tx: Transaction{
				RoomID:   roomID,
				Amount:   decimal.NewFromInt(-5),
				BillType: "rent",
				BankName: "BCA",
			},
			wantErr: true,
			errMsg:  "transaction amount must be positive",
		},
		{
			name: "Missing bill type should fail",
			tx: Transaction{
				RoomID:   roomID,
				Amount:   decimal.NewFromInt(100),
				BankName: "BCA",
			},
			wantErr: true,
			errMsg:  "bill type is required",
		},
		{
			name: "Missing bank should fail",
			tx: Transaction{
				RoomID:   roomID,
				Amount:   decimal.NewFromInt(100),
				BillType: "rent",
			},
			wantErr: true,
			errMsg:  "bank name is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.tx.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestTransaction_CanTransitionTo(t *testing.T) {
	tests := []struct {
		name    string
		from    TransactionStatus
		to      TransactionStatus
		wantErr error
	}{
		{"none to pending", TransactionStatusNone, TransactionStatusPending, nil},
		{"empty status counts as none", "", TransactionStatusPending, nil},
		{"none to confirmed skips pending", TransactionStatusNone, TransactionStatusConfirmed, ErrStatusConflict},
		{"pending to confirmed", TransactionStatusPending, TransactionStatusConfirmed, nil},
		{"pending to cancelled", TransactionStatusPending, TransactionStatusCancelled, nil},
		{"pending to pending", TransactionStatusPending, TransactionStatusPending, ErrStatusConflict},
		{"pending back to none", TransactionStatusPending, TransactionStatusNone, ErrStatusConflict},
		{"confirmed is terminal", TransactionStatusConfirmed, TransactionStatusCancelled, ErrTransactionClosed},
		{"cancelled is terminal", TransactionStatusCancelled, TransactionStatusConfirmed, ErrTransactionClosed},
		{"cancelled cannot reopen", TransactionStatusCancelled, TransactionStatusPending, ErrTransactionClosed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := Transaction{Status: tt.from}
			err := tx.CanTransitionTo(tt.to)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
			}
		})
	}
}

func TestTransactionStatus_IsTerminal(t *testing.T) {
	assert.False(t, TransactionStatusNone.IsTerminal())
	assert.False(t, TransactionStatusPending.IsTerminal())
	assert.True(t, TransactionStatusConfirmed.IsTerminal())
	assert.True(t, TransactionStatusCancelled.IsTerminal())
}

func TestFlowState_Classification(t *testing.T) {
	inFlight := []FlowState{FlowStateInitiating, FlowStateConfirming, FlowStateCancelling}
	for _, s := range inFlight {
		assert.True(t, s.IsInFlight(), s)
		assert.False(t, s.IsTerminal(), s)
	}

	assert.True(t, FlowStateConfirmed.IsTerminal())
	assert.True(t, FlowStateCancelled.IsTerminal())
	assert.False(t, FlowStateSelectingBank.IsInFlight())
	assert.False(t, FlowStateAwaitingConfirmation.IsInFlight())
}

func TestFlowError(t *testing.T) {
	cause := errors.New("connection reset")
	err := &FlowError{Kind: KindInTransaction, Op: "confirm", Err: cause}

	assert.ErrorIs(t, err, cause)
	assert.True(t, err.Retryable())
	assert.True(t, IsKind(err, KindInTransaction))
	assert.False(t, IsKind(err, KindPreTransaction))
	assert.False(t, IsKind(cause, KindInTransaction))
	assert.Contains(t, err.Error(), "confirm failed")

	pre := &FlowError{Kind: KindPreTransaction, Op: "initiate", Err: cause}
	assert.False(t, pre.Retryable())
}
