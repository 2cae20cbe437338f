package catalog

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/simaogato/roomsplit-payments/internal/domain"
)

// CatalogService lists the bank destinations a room accepts transfers into.
// It implements domain.PaymentMethodCatalog.
type CatalogService struct {
	BankRepo domain.BankRepository
	Cache    domain.BankCache // Optional: nil disables caching
	Logger   *log.Logger
}

// NewCatalogService creates a new CatalogService instance
func NewCatalogService(bankRepo domain.BankRepository, cache domain.BankCache) *CatalogService {
	return &CatalogService{
		BankRepo: bankRepo,
		Cache:    cache,
		Logger:   log.Default(),
	}
}

// ListEnabledBanks returns the enabled destinations of a room in display order
// Logic:
//  1. Serve from cache when present
//  2. Otherwise read the repository and write the result back
//  3. Cache failures are logged and never fail the read
//  4. Empty results are not cached so a room configured later shows up immediately
func (s *CatalogService) ListEnabledBanks(ctx context.Context, roomID uuid.UUID) ([]domain.BankDestination, error) {
	if roomID == uuid.Nil {
		return nil, errors.New("invalid room ID")
	}

	if s.Cache != nil {
		banks, ok, err := s.Cache.Get(ctx, roomID)
		if err != nil {
			s.Logger.Printf("bank cache read failed for room %s: %v", roomID, err)
		} else if ok {
			return banks, nil
		}
	}

	banks, err := s.BankRepo.ListEnabled(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to list banks: %w", err)
	}
	if banks == nil {
		banks = []domain.BankDestination{}
	}

	if s.Cache != nil && len(banks) > 0 {
		if err := s.Cache.Set(ctx, roomID, banks); err != nil {
			s.Logger.Printf("bank cache write failed for room %s: %v", roomID, err)
		}
	}

	return banks, nil
}
