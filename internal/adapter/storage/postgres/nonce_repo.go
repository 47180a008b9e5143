package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// NonceRepo implements ports.NonceRepository. Consumed voucher nonces are
// insert-only and never pruned. The uint64 nonce is stored two's-complement
// in a BIGINT: values above 2^63-1 read back negative in SQL, but the
// mapping is one-to-one so the replay guard is unaffected.
type NonceRepo struct {
	pool Pool
}

// NewNonceRepo creates a new NonceRepo.
func NewNonceRepo(pool Pool) *NonceRepo {
	return &NonceRepo{pool: pool}
}

// Insert records the (account, nonce) pair if absent. Returns false when the
// pair already exists. It runs on the settlement transaction, so the insert
// commits or rolls back together with the balance mutation: two concurrent
// settlements of one nonce cannot both pass.
func (r *NonceRepo) Insert(ctx context.Context, tx pgx.Tx, accountID string, nonce uint64, redeemedAt time.Time) (bool, error) {
	query := `INSERT INTO voucher_nonces (account_id, nonce, redeemed_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (account_id, nonce) DO NOTHING`

	tag, err := tx.Exec(ctx, query, accountID, int64(nonce), redeemedAt)
	if err != nil {
		return false, conflictErr("insert voucher nonce", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Exists reports whether the pair was already consumed (non-locking read).
func (r *NonceRepo) Exists(ctx context.Context, accountID string, nonce uint64) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM voucher_nonces WHERE account_id = $1 AND nonce = $2)`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, accountID, int64(nonce)).Scan(&exists); err != nil {
		return false, fmt.Errorf("check voucher nonce: %w", err)
	}
	return exists, nil
}
