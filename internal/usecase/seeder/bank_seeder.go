package seeder

import (
	"context"

	"github.com/google/uuid"
	"github.com/simaogato/roomsplit-payments/internal/domain"
)

// DemoBank defines a bank destination to be seeded
type DemoBank struct {
	BankName      string
	AccountName   string
	AccountNumber string
	QRRef         string
}

// DefaultDemoBanks are seeded for a development room
var DefaultDemoBanks = []DemoBank{
	{
		BankName:      "BCA",
		AccountName:   "Room Treasurer",
		AccountNumber: "8720193344",
		QRRef:         "qr/bca-demo.png",
	},
	{
		BankName:      "Mandiri",
		AccountName:   "Room Treasurer",
		AccountNumber: "1370012345678",
	},
}

// BankSeeder handles seeding of bank destinations for a room
type BankSeeder struct {
	repo  domain.BankRepository
	banks []DemoBank
}

// NewBankSeeder creates a new BankSeeder instance
func NewBankSeeder(repo domain.BankRepository, banks []DemoBank) *BankSeeder {
	return &BankSeeder{
		repo:  repo,
		banks: banks,
	}
}

// Seed ensures the room has its bank destinations
// If the room already has any enabled bank, nothing is created
// Returns the number of created destinations
func (s *BankSeeder) Seed(ctx context.Context, roomID uuid.UUID) (int, error) {
	existing, err := s.repo.ListEnabled(ctx, roomID)
	if err != nil {
		return 0, err
	}
	if len(existing) > 0 {
		return 0, nil
	}

	created := 0
	for i, demo := range s.banks {
		bank := &domain.BankDestination{
			ID:            uuid.New(),
			RoomID:        roomID,
			BankName:      demo.BankName,
			AccountName:   demo.AccountName,
			AccountNumber: demo.AccountNumber,
			QRRef:         demo.QRRef,
			Enabled:       true,
			SortOrder:     i + 1,
		}

		// Validate before creating
		if err := bank.Validate(); err != nil {
			return created, err
		}

		if err := s.repo.Create(ctx, bank); err != nil {
			return created, err
		}
		created++
	}

	return created, nil
}
