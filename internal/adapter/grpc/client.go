package grpc

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/simaogato/roomsplit-payments/internal/domain"
)

// Client calls the payment gateway service.
// It implements domain.TransactionGateway and domain.PaymentMethodCatalog.
type Client struct {
	conn  grpc.ClientConnInterface
	token string
}

// Dial opens a plaintext connection to the payment gateway at addr
func Dial(addr string) (*grpc.ClientConn, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to gRPC server: %w", err)
	}
	return conn, nil
}

// NewClient creates a new payment gateway client that authenticates with token
func NewClient(conn grpc.ClientConnInterface, token string) *Client {
	return &Client{conn: conn, token: token}
}

// Initiate opens a pending transaction on the server
func (c *Client) Initiate(ctx context.Context, req domain.InitiateRequest) (*domain.InitiateResult, error) {
	resp, err := c.invoke(ctx, MethodInitiate, map[string]interface{}{
		"room_id":   req.RoomID.String(),
		"amount":    req.Amount.String(),
		"bill_type": req.BillType,
		"bank_name": req.BankName,
	})
	if err != nil {
		return nil, err
	}

	id, err := uuid.Parse(stringField(resp, "transaction_id"))
	if err != nil {
		return nil, fmt.Errorf("invalid transaction_id in response: %w", err)
	}

	return &domain.InitiateResult{
		ID:              id,
		ReferenceNumber: stringField(resp, "reference_number"),
	}, nil
}

// Confirm marks the transaction as paid
func (c *Client) Confirm(ctx context.Context, id uuid.UUID, bankName string) error {
	_, err := c.invoke(ctx, MethodConfirm, map[string]interface{}{
		"transaction_id": id.String(),
		"bank_name":      bankName,
	})
	return err
}

// Cancel cancels the transaction
func (c *Client) Cancel(ctx context.Context, id uuid.UUID) error {
	_, err := c.invoke(ctx, MethodCancel, map[string]interface{}{
		"transaction_id": id.String(),
	})
	return err
}

// GetTransaction fetches the server's record of a transaction
func (c *Client) GetTransaction(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	resp, err := c.invoke(ctx, MethodGetTransaction, map[string]interface{}{
		"transaction_id": id.String(),
	})
	if err != nil {
		return nil, err
	}

	roomID, err := uuid.Parse(stringField(resp, "room_id"))
	if err != nil {
		return nil, fmt.Errorf("invalid room_id in response: %w", err)
	}
	amount, err := decimal.NewFromString(stringField(resp, "amount"))
	if err != nil {
		return nil, fmt.Errorf("invalid amount in response: %w", err)
	}

	return &domain.Transaction{
		ID:              id,
		ReferenceNumber: stringField(resp, "reference_number"),
		RoomID:          roomID,
		Amount:          amount,
		BillType:        stringField(resp, "bill_type"),
		BankName:        stringField(resp, "bank_name"),
		Status:          domain.TransactionStatus(stringField(resp, "status")),
	}, nil
}

// ListEnabledBanks lists the bank destinations enabled for a room
func (c *Client) ListEnabledBanks(ctx context.Context, roomID uuid.UUID) ([]domain.BankDestination, error) {
	resp, err := c.invoke(ctx, MethodListEnabledBanks, map[string]interface{}{
		"room_id": roomID.String(),
	})
	if err != nil {
		return nil, err
	}

	items := resp.GetFields()["banks"].GetListValue().GetValues()
	banks := make([]domain.BankDestination, 0, len(items))
	for _, item := range items {
		fields := item.GetStructValue()
		bankID, _ := uuid.Parse(stringField(fields, "id"))
		banks = append(banks, domain.BankDestination{
			ID:            bankID,
			RoomID:        roomID,
			BankName:      stringField(fields, "bank_name"),
			AccountName:   stringField(fields, "account_name"),
			AccountNumber: stringField(fields, "account_number"),
			QRRef:         stringField(fields, "qr_ref"),
			Enabled:       true,
			SortOrder:     int(fields.GetFields()["sort_order"].GetNumberValue()),
		})
	}

	return banks, nil
}

func (c *Client) invoke(ctx context.Context, method string, payload map[string]interface{}) (*structpb.Struct, error) {
	req, err := structpb.NewStruct(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s request: %w", method, err)
	}

	if c.token != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, "authorization", c.token)
	}

	resp := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, FullMethod(method), req, resp); err != nil {
		return nil, fromStatus(err)
	}
	return resp, nil
}

// fromStatus maps gRPC status codes back onto domain errors so callers can use errors.Is
func fromStatus(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}

	switch st.Code() {
	case codes.NotFound:
		return fmt.Errorf("%w: %s", domain.ErrTransactionNotFound, st.Message())
	case codes.FailedPrecondition:
		return fmt.Errorf("%w: %s", domain.ErrTransactionClosed, st.Message())
	default:
		return err
	}
}
