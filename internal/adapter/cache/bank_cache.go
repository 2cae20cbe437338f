package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/simaogato/roomsplit-payments/internal/domain"
)

// DefaultTTL is how long a room's bank list stays cached
const DefaultTTL = 5 * time.Minute

// bankCache implements domain.BankCache on Redis
type bankCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

// Connect opens a Redis client and checks it responds
func Connect(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: "",
		DB:       0,
	})

	if _, err := client.Ping(ctx).Result(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect redis: %w", err)
	}

	return client, nil
}

// NewBankCache creates a Redis-backed bank cache. A non-positive ttl uses DefaultTTL.
func NewBankCache(client redis.Cmdable, ttl time.Duration) domain.BankCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &bankCache{client: client, ttl: ttl}
}

// Get returns the cached banks of a room. ok is false on a miss.
func (c *bankCache) Get(ctx context.Context, roomID uuid.UUID) ([]domain.BankDestination, bool, error) {
	data, err := c.client.Get(ctx, bankKey(roomID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read bank cache: %w", err)
	}

	banks, err := decodeBanks(data)
	if err != nil {
		return nil, false, err
	}
	return banks, true, nil
}

// Set caches the banks of a room for the configured TTL
func (c *bankCache) Set(ctx context.Context, roomID uuid.UUID, banks []domain.BankDestination) error {
	data, err := encodeBanks(banks)
	if err != nil {
		return err
	}

	if err := c.client.Set(ctx, bankKey(roomID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write bank cache: %w", err)
	}
	return nil
}

func bankKey(roomID uuid.UUID) string {
	return fmt.Sprintf("rooms:%s:banks", roomID)
}

// cachedBank is the JSON shape stored in Redis
type cachedBank struct {
	ID            string `json:"id"`
	RoomID        string `json:"room_id"`
	BankName      string `json:"bank_name"`
	AccountName   string `json:"account_name"`
	AccountNumber string `json:"account_number"`
	QRRef         string `json:"qr_ref,omitempty"`
	SortOrder     int    `json:"sort_order"`
}

func encodeBanks(banks []domain.BankDestination) ([]byte, error) {
	items := make([]cachedBank, 0, len(banks))
	for _, b := range banks {
		items = append(items, cachedBank{
			ID:            b.ID.String(),
			RoomID:        b.RoomID.String(),
			BankName:      b.BankName,
			AccountName:   b.AccountName,
			AccountNumber: b.AccountNumber,
			QRRef:         b.QRRef,
			SortOrder:     b.SortOrder,
		})
	}

	data, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("failed to encode banks: %w", err)
	}
	return data, nil
}

func decodeBanks(data []byte) ([]domain.BankDestination, error) {
	var items []cachedBank
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("failed to decode cached banks: %w", err)
	}

	banks := make([]domain.BankDestination, 0, len(items))
	for _, item := range items {
		id, err := uuid.Parse(item.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to decode cached banks: %w", err)
		}
		roomID, err := uuid.Parse(item.RoomID)
		if err != nil {
			return nil, fmt.Errorf("failed to decode cached banks: %w", err)
		}
		banks = append(banks, domain.BankDestination{
			ID:            id,
			RoomID:        roomID,
			BankName:      item.BankName,
			AccountName:   item.AccountName,
			AccountNumber: item.AccountNumber,
			QRRef:         item.QRRef,
			Enabled:       true,
			SortOrder:     item.SortOrder,
		})
	}
	return banks, nil
}
