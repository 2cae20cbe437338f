package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/simaogato/roomsplit-payments/internal/domain"
)

// bankRepository implements domain.BankRepository
type bankRepository struct {
	db *DB
}

// NewBankRepository creates a new bank destination repository
func NewBankRepository(db *DB) domain.BankRepository {
	return &bankRepository{db: db}
}

// ListEnabled retrieves the enabled bank destinations of a room
func (r *bankRepository) ListEnabled(ctx context.Context, roomID uuid.UUID) ([]domain.BankDestination, error) {
	query := `
		SELECT id, room_id, bank_name, account_name, account_number, qr_ref, enabled, sort_order
		FROM bank_destinations
		WHERE room_id = $1 AND enabled = TRUE
		ORDER BY sort_order ASC, bank_name ASC
	`

	rows, err := r.db.QueryContext(ctx, query, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bank destinations: %w", err)
	}
	defer rows.Close()

	banks := make([]domain.BankDestination, 0)
	for rows.Next() {
		var bank domain.BankDestination
		var qrRef sql.NullString

		if err := rows.Scan(
			&bank.ID,
			&bank.RoomID,
			&bank.BankName,
			&bank.AccountName,
			&bank.AccountNumber,
			&qrRef,
			&bank.Enabled,
			&bank.SortOrder,
		); err != nil {
			return nil, fmt.Errorf("failed to scan bank destination: %w", err)
		}

		// qr_ref is nullable
		if qrRef.Valid {
			bank.QRRef = qrRef.String
		}

		banks = append(banks, bank)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bank destinations: %w", err)
	}

	return banks, nil
}

// Create creates a new bank destination
func (r *bankRepository) Create(ctx context.Context, bank *domain.BankDestination) error {
	query := `
		INSERT INTO bank_destinations (id, room_id, bank_name, account_name, account_number, qr_ref, enabled, sort_order)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	var qrRef interface{}
	if bank.QRRef != "" {
		qrRef = bank.QRRef
	}

	_, err := r.db.ExecContext(ctx, query,
		bank.ID,
		bank.RoomID,
		bank.BankName,
		bank.AccountName,
		bank.AccountNumber,
		qrRef,
		bank.Enabled,
		bank.SortOrder,
	)
	if err != nil {
		return fmt.Errorf("failed to create bank destination: %w", err)
	}

	return nil
}
