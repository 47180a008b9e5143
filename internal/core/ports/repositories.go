package ports

import (
	"context"
	"time"

	"cbdc-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

//go:generate mockgen -source=repositories.go -destination=mocks/repositories.go -package=mocks

// AccountRepository defines persistence operations for ledger accounts.
// Methods accepting pgx.Tx run inside transaction blocks for pessimistic locking.
type AccountRepository interface {
	Create(ctx context.Context, account *domain.Account) error
	GetByID(ctx context.Context, id string) (*domain.Account, error)
	// GetForUpdate locks the account row for the duration of the transaction.
	GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (*domain.Account, error)
	UpdateBalance(ctx context.Context, tx pgx.Tx, id string, balance int64) error
	UpdateStatus(ctx context.Context, tx pgx.Tx, id string, status domain.AccountStatus) error
	CountByIntermediary(ctx context.Context, intermediaryID string) (int64, error)
}

// LedgerEntryRepository is the append-only audit log.
type LedgerEntryRepository interface {
	// Append writes a CONFIRMED entry inside the operation's transaction.
	Append(ctx context.Context, tx pgx.Tx, entry *domain.LedgerEntry) error
	// Record writes an entry outside any transaction, used for REJECTED
	// entries after the mutating transaction has rolled back.
	Record(ctx context.Context, entry *domain.LedgerEntry) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.LedgerEntry, error)
	// SumOutflowSince totals CONFIRMED TRANSFER and VOUCHER_SETTLE amounts
	// originated by the account after the given instant. Must be called with
	// the account row locked so the sum cannot race a concurrent debit.
	SumOutflowSince(ctx context.Context, tx pgx.Tx, accountID string, since time.Time) (int64, error)
	List(ctx context.Context, params LedgerListParams) ([]domain.LedgerEntry, string, error)
	GetStats(ctx context.Context, params LedgerStatsParams) (*LedgerStats, error)
}

// LedgerListParams holds filter + cursor pagination for the audit log.
// Results are newest first; Cursor restarts listing after the given entry.
type LedgerListParams struct {
	AccountID      string // Matches either side of the entry
	IntermediaryID string
	Kind           *domain.EntryKind
	Status         *domain.EntryStatus
	From           *time.Time
	To             *time.Time
	Cursor         string
	Limit          int
}

// LedgerStatsParams scopes aggregate statistics.
type LedgerStatsParams struct {
	IntermediaryID string
	From           *time.Time
}

// LedgerStats holds aggregates for dashboards.
type LedgerStats struct {
	TotalEntries   int64
	Confirmed      int64
	Rejected       int64
	TotalMinted    int64
	TotalRedeemed  int64
	TotalTransfers int64
	TotalSettled   int64
}

// NonceRepository is the durable per-account set of consumed voucher nonces.
type NonceRepository interface {
	// Insert records the (account, nonce) pair if absent. Returns false if the
	// pair was already consumed. Must run inside the settlement transaction so
	// the check-and-insert is indivisible from the balance mutation.
	Insert(ctx context.Context, tx pgx.Tx, accountID string, nonce uint64, redeemedAt time.Time) (bool, error)
	Exists(ctx context.Context, accountID string, nonce uint64) (bool, error)
}

// PurseRepository defines persistence for offline purses.
type PurseRepository interface {
	Upsert(ctx context.Context, purse *domain.OfflinePurse) error
	GetByAccountID(ctx context.Context, accountID string) (*domain.OfflinePurse, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, accountID string) (*domain.OfflinePurse, error)
	// UpdateAllowance sets the allowance and refreshes the sync timestamp.
	UpdateAllowance(ctx context.Context, tx pgx.Tx, accountID string, allowance int64, syncedAt time.Time) error
}

// IntermediaryRepository defines persistence for intermediaries and operators.
type IntermediaryRepository interface {
	Create(ctx context.Context, intermediary *domain.Intermediary) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Intermediary, error)
	GetByAccessKey(ctx context.Context, accessKey string) (*domain.Intermediary, error)
	GetByUsername(ctx context.Context, username string) (*domain.Intermediary, error)
}

// SupplyRepository maintains the global mint/redeem counters. The single
// supply row is locked alongside the account rows during mint and redeem.
type SupplyRepository interface {
	GetForUpdate(ctx context.Context, tx pgx.Tx) (minted int64, redeemed int64, err error)
	Get(ctx context.Context) (minted int64, redeemed int64, err error)
	Add(ctx context.Context, tx pgx.Tx, mintedDelta, redeemedDelta int64) error
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
