package grpc

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/simaogato/roomsplit-payments/internal/domain"
)

// TransactionLedger is the server-side view of the transaction store
type TransactionLedger interface {
	domain.TransactionGateway
	Get(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)
}

// Server implements PaymentGatewayServer
type Server struct {
	Ledger  TransactionLedger
	Catalog domain.PaymentMethodCatalog
}

// NewServer creates a new gRPC server instance
func NewServer(ledger TransactionLedger, catalog domain.PaymentMethodCatalog) *Server {
	return &Server{
		Ledger:  ledger,
		Catalog: catalog,
	}
}

// Initiate handles the Initiate RPC
func (s *Server) Initiate(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	roomID, err := uuid.Parse(stringField(req, "room_id"))
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid room_id format: %v", err)
	}

	// Parse amount from string to decimal
	amount, err := decimal.NewFromString(stringField(req, "amount"))
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid amount format: %v", err)
	}

	result, err := s.Ledger.Initiate(ctx, domain.InitiateRequest{
		RoomID:   roomID,
		Amount:   amount,
		BillType: stringField(req, "bill_type"),
		BankName: stringField(req, "bank_name"),
	})
	if err != nil {
		return nil, mapError(err)
	}

	return structpb.NewStruct(map[string]interface{}{
		"transaction_id":   result.ID.String(),
		"reference_number": result.ReferenceNumber,
	})
}

// Confirm handles the Confirm RPC
func (s *Server) Confirm(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := uuid.Parse(stringField(req, "transaction_id"))
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid transaction_id format: %v", err)
	}

	if err := s.Ledger.Confirm(ctx, id, stringField(req, "bank_name")); err != nil {
		return nil, mapError(err)
	}

	return structpb.NewStruct(map[string]interface{}{
		"status": string(domain.TransactionStatusConfirmed),
	})
}

// Cancel handles the Cancel RPC
func (s *Server) Cancel(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := uuid.Parse(stringField(req, "transaction_id"))
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid transaction_id format: %v", err)
	}

	if err := s.Ledger.Cancel(ctx, id); err != nil {
		return nil, mapError(err)
	}

	return structpb.NewStruct(map[string]interface{}{
		"status": string(domain.TransactionStatusCancelled),
	})
}

// GetTransaction handles the GetTransaction RPC
func (s *Server) GetTransaction(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := uuid.Parse(stringField(req, "transaction_id"))
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid transaction_id format: %v", err)
	}

	tx, err := s.Ledger.Get(ctx, id)
	if err != nil {
		return nil, mapError(err)
	}

	return structpb.NewStruct(map[string]interface{}{
		"transaction_id":   tx.ID.String(),
		"reference_number": tx.ReferenceNumber,
		"room_id":          tx.RoomID.String(),
		"amount":           tx.Amount.String(),
		"bill_type":        tx.BillType,
		"bank_name":        tx.BankName,
		"status":           string(tx.Status),
		"created_at":       tx.CreatedAt.UTC().Format(time.RFC3339),
		"updated_at":       tx.UpdatedAt.UTC().Format(time.RFC3339),
	})
}

// ListEnabledBanks handles the ListEnabledBanks RPC
func (s *Server) ListEnabledBanks(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	roomID, err := uuid.Parse(stringField(req, "room_id"))
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid room_id format: %v", err)
	}

	banks, err := s.Catalog.ListEnabledBanks(ctx, roomID)
	if err != nil {
		return nil, mapError(err)
	}

	items := make([]interface{}, 0, len(banks))
	for _, bank := range banks {
		items = append(items, map[string]interface{}{
			"id":             bank.ID.String(),
			"bank_name":      bank.BankName,
			"account_name":   bank.AccountName,
			"account_number": bank.AccountNumber,
			"qr_ref":         bank.QRRef,
			"sort_order":     bank.SortOrder,
		})
	}

	return structpb.NewStruct(map[string]interface{}{
		"banks": items,
	})
}

// mapError maps domain errors to gRPC status codes
func mapError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, domain.ErrTransactionNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, domain.ErrTransactionClosed), errors.Is(err, domain.ErrStatusConflict):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, domain.ErrBankNotEnabled), errors.Is(err, domain.ErrBankMismatch):
		return status.Error(codes.InvalidArgument, err.Error())
	}

	errorMsg := err.Error()

	// Map common validation errors to InvalidArgument
	if strings.Contains(errorMsg, "must be positive") ||
		strings.Contains(errorMsg, "is required") ||
		strings.Contains(errorMsg, "cannot be empty") ||
		strings.Contains(errorMsg, "invalid") {
		return status.Errorf(codes.InvalidArgument, "%s", errorMsg)
	}

	// Default to Internal error for unknown errors
	return status.Errorf(codes.Internal, "%s", errorMsg)
}
