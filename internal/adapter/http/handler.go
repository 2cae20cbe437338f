package http

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/simaogato/roomsplit-payments/internal/domain"
)

// requestTimeout bounds every downstream call made by a handler
const requestTimeout = 5 * time.Second

// TransactionLedger is the transaction store the handlers operate on
type TransactionLedger interface {
	domain.TransactionGateway
	Get(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)
}

// Handler serves the payment REST API
type Handler struct {
	Ledger   TransactionLedger
	Catalog  domain.PaymentMethodCatalog
	validate *validator.Validate
}

// NewHandler creates a new Handler instance
func NewHandler(ledger TransactionLedger, catalog domain.PaymentMethodCatalog) *Handler {
	return &Handler{
		Ledger:   ledger,
		Catalog:  catalog,
		validate: validator.New(),
	}
}

type initiateBody struct {
	Amount   string `json:"amount" validate:"required,numeric"`
	BillType string `json:"bill_type" validate:"required"`
	BankName string `json:"bank_name" validate:"required"`
}

type confirmBody struct {
	BankName string `json:"bank_name"`
}

type bankView struct {
	ID            string `json:"id"`
	BankName      string `json:"bank_name"`
	AccountName   string `json:"account_name"`
	AccountNumber string `json:"account_number"`
	QRRef         string `json:"qr_ref,omitempty"`
	SortOrder     int    `json:"sort_order"`
}

type transactionView struct {
	ID              string    `json:"id"`
	ReferenceNumber string    `json:"reference_number"`
	RoomID          string    `json:"room_id"`
	Amount          string    `json:"amount"`
	BillType        string    `json:"bill_type"`
	BankName        string    `json:"bank_name"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// ListPaymentMethods handles GET /rooms/:roomId/payment-methods
func (h *Handler) ListPaymentMethods(c *fiber.Ctx) error {
	roomID, err := uuid.Parse(c.Params("roomId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid room id"})
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), requestTimeout)
	defer cancel()

	banks, err := h.Catalog.ListEnabledBanks(ctx, roomID)
	if err != nil {
		return writeError(c, err)
	}

	views := make([]bankView, 0, len(banks))
	for _, b := range banks {
		views = append(views, bankView{
			ID:            b.ID.String(),
			BankName:      b.BankName,
			AccountName:   b.AccountName,
			AccountNumber: b.AccountNumber,
			QRRef:         b.QRRef,
			SortOrder:     b.SortOrder,
		})
	}

	return c.JSON(fiber.Map{"banks": views})
}

// Initiate handles POST /rooms/:roomId/transactions
func (h *Handler) Initiate(c *fiber.Ctx) error {
	roomID, err := uuid.Parse(c.Params("roomId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid room id"})
	}

	body := &initiateBody{}
	if err := c.BodyParser(body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if err := h.validate.Struct(body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	amount, err := decimal.NewFromString(body.Amount)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid amount"})
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), requestTimeout)
	defer cancel()

	result, err := h.Ledger.Initiate(ctx, domain.InitiateRequest{
		RoomID:   roomID,
		Amount:   amount,
		BillType: body.BillType,
		BankName: body.BankName,
	})
	if err != nil {
		return writeError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"id":               result.ID.String(),
		"reference_number": result.ReferenceNumber,
		"status":           string(domain.TransactionStatusPending),
	})
}

// Get handles GET /transactions/:id
func (h *Handler) Get(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid id"})
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), requestTimeout)
	defer cancel()

	tx, err := h.Ledger.Get(ctx, id)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(transactionView{
		ID:              tx.ID.String(),
		ReferenceNumber: tx.ReferenceNumber,
		RoomID:          tx.RoomID.String(),
		Amount:          tx.Amount.String(),
		BillType:        tx.BillType,
		BankName:        tx.BankName,
		Status:          string(tx.Status),
		CreatedAt:       tx.CreatedAt,
		UpdatedAt:       tx.UpdatedAt,
	})
}

// Confirm handles POST /transactions/:id/confirm
func (h *Handler) Confirm(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid id"})
	}

	// The body is optional
	body := &confirmBody{}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(body); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
		}
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), requestTimeout)
	defer cancel()

	if err := h.Ledger.Confirm(ctx, id, body.BankName); err != nil {
		return writeError(c, err)
	}

	return c.JSON(fiber.Map{"id": id.String(), "status": string(domain.TransactionStatusConfirmed)})
}

// Cancel handles POST /transactions/:id/cancel
func (h *Handler) Cancel(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid id"})
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), requestTimeout)
	defer cancel()

	if err := h.Ledger.Cancel(ctx, id); err != nil {
		return writeError(c, err)
	}

	return c.JSON(fiber.Map{"id": id.String(), "status": string(domain.TransactionStatusCancelled)})
}

// writeError maps domain errors to HTTP status codes
func writeError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	switch {
	case errors.Is(err, domain.ErrTransactionNotFound):
		code = fiber.StatusNotFound
	case errors.Is(err, domain.ErrTransactionClosed), errors.Is(err, domain.ErrStatusConflict):
		code = fiber.StatusConflict
	case errors.Is(err, domain.ErrBankNotEnabled), errors.Is(err, domain.ErrBankMismatch):
		code = fiber.StatusUnprocessableEntity
	default:
		msg := err.Error()
		if strings.Contains(msg, "must be positive") ||
			strings.Contains(msg, "is required") ||
			strings.Contains(msg, "invalid") {
			code = fiber.StatusBadRequest
		}
	}

	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}
