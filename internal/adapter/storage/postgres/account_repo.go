package postgres

import (
	"context"
	"errors"
	"fmt"

	"cbdc-ledger/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// AccountRepo implements ports.AccountRepository.
type AccountRepo struct {
	pool Pool
}

// NewAccountRepo creates a new AccountRepo.
func NewAccountRepo(pool Pool) *AccountRepo {
	return &AccountRepo{pool: pool}
}

const accountColumns = `id, owner_id, intermediary_id, type, tier, balance, status, kyc_level, created_at, updated_at`

// Create inserts a new account.
func (r *AccountRepo) Create(ctx context.Context, a *domain.Account) error {
	query := `INSERT INTO accounts (` + accountColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.pool.Exec(ctx, query,
		a.ID, a.OwnerID, a.IntermediaryID, a.Type, a.Tier,
		a.Balance, a.Status, a.KYCLevel, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

// GetByID fetches an account without locking.
func (r *AccountRepo) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return scanAccount(r.pool.QueryRow(ctx, query, id))
}

// GetForUpdate fetches an account with a pessimistic row lock.
// Must be called within a transaction. Callers locking two accounts must lock
// in ascending ID order to avoid deadlock.
func (r *AccountRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1 FOR UPDATE`
	a, err := scanAccount(tx.QueryRow(ctx, query, id))
	if err != nil {
		return nil, conflictErr("lock account", err)
	}
	return a, nil
}

// UpdateBalance writes a new balance within a transaction. The caller has
// already validated non-negativity; the CHECK constraint is a backstop.
func (r *AccountRepo) UpdateBalance(ctx context.Context, tx pgx.Tx, id string, balance int64) error {
	query := `UPDATE accounts SET balance = $1, updated_at = NOW() WHERE id = $2`

	tag, err := tx.Exec(ctx, query, balance, id)
	if err != nil {
		return conflictErr("update account balance", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("account not found: %s", id)
	}
	return nil
}

// UpdateStatus writes a new status within a transaction.
func (r *AccountRepo) UpdateStatus(ctx context.Context, tx pgx.Tx, id string, status domain.AccountStatus) error {
	query := `UPDATE accounts SET status = $1, updated_at = NOW() WHERE id = $2`

	tag, err := tx.Exec(ctx, query, status, id)
	if err != nil {
		return conflictErr("update account status", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("account not found: %s", id)
	}
	return nil
}

// CountByIntermediary counts the customer accounts an intermediary manages.
func (r *AccountRepo) CountByIntermediary(ctx context.Context, intermediaryID string) (int64, error) {
	query := `SELECT COUNT(*) FROM accounts WHERE intermediary_id = $1`

	var count int64
	if err := r.pool.QueryRow(ctx, query, intermediaryID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count accounts: %w", err)
	}
	return count, nil
}

func scanAccount(row pgx.Row) (*domain.Account, error) {
	a := &domain.Account{}
	err := row.Scan(
		&a.ID, &a.OwnerID, &a.IntermediaryID, &a.Type, &a.Tier,
		&a.Balance, &a.Status, &a.KYCLevel, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan account: %w", err)
	}
	return a, nil
}
