package postgres

import (
	"context"
	"errors"
	"fmt"

	"cbdc-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// IntermediaryRepo implements ports.IntermediaryRepository.
type IntermediaryRepo struct {
	pool Pool
}

// NewIntermediaryRepo creates a new IntermediaryRepo.
func NewIntermediaryRepo(pool Pool) *IntermediaryRepo {
	return &IntermediaryRepo{pool: pool}
}

const intermediaryColumns = `id, username, password_hash, name, role, account_id, access_key, secret_key_enc, status, created_at, updated_at`

// Create inserts a new intermediary.
func (r *IntermediaryRepo) Create(ctx context.Context, i *domain.Intermediary) error {
	query := `INSERT INTO intermediaries (` + intermediaryColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := r.pool.Exec(ctx, query,
		i.ID, i.Username, i.PasswordHash, i.Name, i.Role, i.AccountID,
		i.AccessKey, i.SecretKeyEnc, i.Status, i.CreatedAt, i.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert intermediary: %w", err)
	}
	return nil
}

// GetByID fetches an intermediary by UUID.
func (r *IntermediaryRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Intermediary, error) {
	query := `SELECT ` + intermediaryColumns + ` FROM intermediaries WHERE id = $1`
	return scanIntermediary(r.pool.QueryRow(ctx, query, id))
}

// GetByAccessKey fetches an intermediary by its API access key.
func (r *IntermediaryRepo) GetByAccessKey(ctx context.Context, accessKey string) (*domain.Intermediary, error) {
	query := `SELECT ` + intermediaryColumns + ` FROM intermediaries WHERE access_key = $1`
	return scanIntermediary(r.pool.QueryRow(ctx, query, accessKey))
}

// GetByUsername fetches an intermediary by operator username.
func (r *IntermediaryRepo) GetByUsername(ctx context.Context, username string) (*domain.Intermediary, error) {
	query := `SELECT ` + intermediaryColumns + ` FROM intermediaries WHERE username = $1`
	return scanIntermediary(r.pool.QueryRow(ctx, query, username))
}

func scanIntermediary(row pgx.Row) (*domain.Intermediary, error) {
	i := &domain.Intermediary{}
	err := row.Scan(
		&i.ID, &i.Username, &i.PasswordHash, &i.Name, &i.Role, &i.AccountID,
		&i.AccessKey, &i.SecretKeyEnc, &i.Status, &i.CreatedAt, &i.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan intermediary: %w", err)
	}
	return i, nil
}
