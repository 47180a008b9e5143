package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// SupplyRepo implements ports.SupplyRepository over a single-row table.
// The row is locked together with the target account during mint and redeem
// so the supply counters move atomically with the balance.
type SupplyRepo struct {
	pool Pool
}

// NewSupplyRepo creates a new SupplyRepo.
func NewSupplyRepo(pool Pool) *SupplyRepo {
	return &SupplyRepo{pool: pool}
}

// GetForUpdate locks the supply row and returns the current counters.
func (r *SupplyRepo) GetForUpdate(ctx context.Context, tx pgx.Tx) (int64, int64, error) {
	query := `SELECT total_minted, total_redeemed FROM supply WHERE id = 1 FOR UPDATE`

	var minted, redeemed int64
	if err := tx.QueryRow(ctx, query).Scan(&minted, &redeemed); err != nil {
		return 0, 0, conflictErr("lock supply", err)
	}
	return minted, redeemed, nil
}

// Get returns the current counters without locking.
func (r *SupplyRepo) Get(ctx context.Context) (int64, int64, error) {
	query := `SELECT total_minted, total_redeemed FROM supply WHERE id = 1`

	var minted, redeemed int64
	if err := r.pool.QueryRow(ctx, query).Scan(&minted, &redeemed); err != nil {
		return 0, 0, fmt.Errorf("get supply: %w", err)
	}
	return minted, redeemed, nil
}

// Add increments the counters within the operation's transaction.
func (r *SupplyRepo) Add(ctx context.Context, tx pgx.Tx, mintedDelta, redeemedDelta int64) error {
	query := `UPDATE supply SET total_minted = total_minted + $1, total_redeemed = total_redeemed + $2 WHERE id = 1`

	tag, err := tx.Exec(ctx, query, mintedDelta, redeemedDelta)
	if err != nil {
		return conflictErr("update supply", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("supply row missing")
	}
	return nil
}
