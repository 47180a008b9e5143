package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// Transactor implements ports.DBTransactor over the connection pool. Every
// ledger operation runs inside exactly one transaction started here; the
// row locks taken via GetForUpdate live until that transaction ends.
type Transactor struct {
	pool Pool
}

// NewTransactor wraps the pool for transaction management.
func NewTransactor(pool Pool) *Transactor {
	return &Transactor{pool: pool}
}

// Begin starts a database transaction at the default isolation level.
// Read committed is sufficient because all balance reads go through
// SELECT ... FOR UPDATE.
func (t *Transactor) Begin(ctx context.Context) (pgx.Tx, error) {
	return t.pool.Begin(ctx)
}
