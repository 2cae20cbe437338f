package domain

import (
	"errors"

	"github.com/google/uuid"
)

// BankDestination represents a bank account a room accepts transfers into
type BankDestination struct {
	ID            uuid.UUID
	RoomID        uuid.UUID
	BankName      string
	AccountName   string
	AccountNumber string
	QRRef         string // Reference of the QR image shown to the payer, may be empty
	Enabled       bool
	SortOrder     int
}

// Validate ensures the bank destination adheres to domain rules
func (b *BankDestination) Validate() error {
	if b.RoomID == uuid.Nil {
		return errors.New("room ID is required")
	}

	if b.BankName == "" {
		return errors.New("bank name cannot be empty")
	}

	if b.AccountName == "" {
		return errors.New("account name cannot be empty")
	}

	if b.AccountNumber == "" {
		return errors.New("account number cannot be empty")
	}

	return nil
}

// FindBank returns the destination with the given bank name, if present
func FindBank(banks []BankDestination, bankName string) (BankDestination, bool) {
	for _, bank := range banks {
		if bank.BankName == bankName {
			return bank, true
		}
	}
	return BankDestination{}, false
}
