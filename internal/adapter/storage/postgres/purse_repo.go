package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cbdc-ledger/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// PurseRepo implements ports.PurseRepository.
type PurseRepo struct {
	pool Pool
}

// NewPurseRepo creates a new PurseRepo.
func NewPurseRepo(pool Pool) *PurseRepo {
	return &PurseRepo{pool: pool}
}

const purseColumns = `account_id, device_id, public_key, allowance, last_synced_at, created_at, updated_at`

// Upsert creates the purse or rebinds the device for an existing one.
// Rebinding keeps the allowance: the holder replaced their device, not their funds.
func (r *PurseRepo) Upsert(ctx context.Context, p *domain.OfflinePurse) error {
	query := `INSERT INTO offline_purses (` + purseColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (account_id) DO UPDATE
		SET device_id = EXCLUDED.device_id,
		    public_key = EXCLUDED.public_key,
		    last_synced_at = EXCLUDED.last_synced_at,
		    updated_at = EXCLUDED.updated_at`

	_, err := r.pool.Exec(ctx, query,
		p.AccountID, p.DeviceID, p.PublicKey, p.Allowance,
		p.LastSyncedAt, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert purse: %w", err)
	}
	return nil
}

// GetByAccountID fetches a purse without locking.
func (r *PurseRepo) GetByAccountID(ctx context.Context, accountID string) (*domain.OfflinePurse, error) {
	query := `SELECT ` + purseColumns + ` FROM offline_purses WHERE account_id = $1`
	return scanPurse(r.pool.QueryRow(ctx, query, accountID))
}

// GetForUpdate fetches a purse with a pessimistic row lock.
// Must be called within a transaction, after the owning account is locked.
func (r *PurseRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, accountID string) (*domain.OfflinePurse, error) {
	query := `SELECT ` + purseColumns + ` FROM offline_purses WHERE account_id = $1 FOR UPDATE`
	p, err := scanPurse(tx.QueryRow(ctx, query, accountID))
	if err != nil {
		return nil, conflictErr("lock purse", err)
	}
	return p, nil
}

// UpdateAllowance sets the allowance and refreshes the sync timestamp.
func (r *PurseRepo) UpdateAllowance(ctx context.Context, tx pgx.Tx, accountID string, allowance int64, syncedAt time.Time) error {
	query := `UPDATE offline_purses
		SET allowance = $1, last_synced_at = $2, updated_at = NOW()
		WHERE account_id = $3`

	tag, err := tx.Exec(ctx, query, allowance, syncedAt, accountID)
	if err != nil {
		return conflictErr("update purse allowance", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("purse not found: %s", accountID)
	}
	return nil
}

func scanPurse(row pgx.Row) (*domain.OfflinePurse, error) {
	p := &domain.OfflinePurse{}
	err := row.Scan(
		&p.AccountID, &p.DeviceID, &p.PublicKey, &p.Allowance,
		&p.LastSyncedAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan purse: %w", err)
	}
	return p, nil
}
