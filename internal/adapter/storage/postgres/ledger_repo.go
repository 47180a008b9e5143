package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cbdc-ledger/internal/core/domain"
	"cbdc-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// LedgerEntryRepo implements ports.LedgerEntryRepository. Entries are
// append-only: there is no update or delete path.
type LedgerEntryRepo struct {
	pool Pool
}

// NewLedgerEntryRepo creates a new LedgerEntryRepo.
func NewLedgerEntryRepo(pool Pool) *LedgerEntryRepo {
	return &LedgerEntryRepo{pool: pool}
}

const entryColumns = `id, kind, from_account, to_account, amount, status, reason, channel, approved_by, created_at`

const insertEntryQuery = `INSERT INTO ledger_entries (` + entryColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

// Append writes a CONFIRMED entry within the operation's transaction.
func (r *LedgerEntryRepo) Append(ctx context.Context, tx pgx.Tx, e *domain.LedgerEntry) error {
	_, err := tx.Exec(ctx, insertEntryQuery,
		e.ID, e.Kind, e.FromAccount, e.ToAccount, e.Amount,
		e.Status, e.Reason, e.Channel, e.ApprovedBy, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append ledger entry: %w", err)
	}
	return nil
}

// Record writes an entry on the pool connection, outside any transaction.
// Used for REJECTED entries after the mutating transaction rolled back.
func (r *LedgerEntryRepo) Record(ctx context.Context, e *domain.LedgerEntry) error {
	_, err := r.pool.Exec(ctx, insertEntryQuery,
		e.ID, e.Kind, e.FromAccount, e.ToAccount, e.Amount,
		e.Status, e.Reason, e.Channel, e.ApprovedBy, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("record ledger entry: %w", err)
	}
	return nil
}

// GetByID fetches a single entry.
func (r *LedgerEntryRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.LedgerEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM ledger_entries WHERE id = $1`
	return scanEntry(r.pool.QueryRow(ctx, query, id))
}

// SumOutflowSince totals confirmed TRANSFER and VOUCHER_SETTLE outflows of an
// account after the given instant. Runs on the operation's transaction so it
// reads under the same lock that guards the balance mutation.
func (r *LedgerEntryRepo) SumOutflowSince(ctx context.Context, tx pgx.Tx, accountID string, since time.Time) (int64, error) {
	query := `SELECT COALESCE(SUM(amount), 0) FROM ledger_entries
		WHERE from_account = $1
		  AND status = 'CONFIRMED'
		  AND kind IN ('TRANSFER', 'VOUCHER_SETTLE')
		  AND created_at >= $2`

	var total int64
	if err := tx.QueryRow(ctx, query, accountID, since).Scan(&total); err != nil {
		return 0, fmt.Errorf("sum outflow: %w", err)
	}
	return total, nil
}

// List returns entries newest first with keyset pagination. The returned
// cursor restarts the listing after the last entry of this page; empty when
// the log is exhausted.
func (r *LedgerEntryRepo) List(ctx context.Context, params ports.LedgerListParams) ([]domain.LedgerEntry, string, error) {
	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if params.AccountID != "" {
		p := arg(params.AccountID)
		conds = append(conds, fmt.Sprintf("(from_account = %s OR to_account = %s)", p, p))
	}
	if params.IntermediaryID != "" {
		p := arg(params.IntermediaryID)
		conds = append(conds, fmt.Sprintf(`(from_account IN (SELECT id FROM accounts WHERE intermediary_id = %s)
			OR to_account IN (SELECT id FROM accounts WHERE intermediary_id = %s))`, p, p))
	}
	if params.Kind != nil {
		conds = append(conds, "kind = "+arg(*params.Kind))
	}
	if params.Status != nil {
		conds = append(conds, "status = "+arg(*params.Status))
	}
	if params.From != nil {
		conds = append(conds, "created_at >= "+arg(*params.From))
	}
	if params.To != nil {
		conds = append(conds, "created_at <= "+arg(*params.To))
	}
	if params.Cursor != "" {
		at, id, err := decodeCursor(params.Cursor)
		if err != nil {
			return nil, "", fmt.Errorf("invalid cursor: %w", err)
		}
		conds = append(conds, fmt.Sprintf("(created_at, id) < (%s, %s)", arg(at), arg(id)))
	}

	limit := params.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	query := `SELECT ` + entryColumns + ` FROM ledger_entries`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT " + arg(limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, "", fmt.Errorf("list ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		var e domain.LedgerEntry
		if err := rows.Scan(
			&e.ID, &e.Kind, &e.FromAccount, &e.ToAccount, &e.Amount,
			&e.Status, &e.Reason, &e.Channel, &e.ApprovedBy, &e.CreatedAt,
		); err != nil {
			return nil, "", fmt.Errorf("scan ledger entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, "", fmt.Errorf("list ledger entries: %w", err)
	}

	next := ""
	if len(entries) == limit {
		last := entries[len(entries)-1]
		next = encodeCursor(last.CreatedAt, last.ID)
	}
	return entries, next, nil
}

// GetStats aggregates dashboard counters, optionally scoped to one
// intermediary's accounts and a start time.
func (r *LedgerEntryRepo) GetStats(ctx context.Context, params ports.LedgerStatsParams) (*ports.LedgerStats, error) {
	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if params.IntermediaryID != "" {
		p := arg(params.IntermediaryID)
		conds = append(conds, fmt.Sprintf(`(from_account IN (SELECT id FROM accounts WHERE intermediary_id = %s)
			OR to_account IN (SELECT id FROM accounts WHERE intermediary_id = %s))`, p, p))
	}
	if params.From != nil {
		conds = append(conds, "created_at >= "+arg(*params.From))
	}

	query := `SELECT
		COUNT(*),
		COUNT(*) FILTER (WHERE status = 'CONFIRMED'),
		COUNT(*) FILTER (WHERE status = 'REJECTED'),
		COALESCE(SUM(amount) FILTER (WHERE status = 'CONFIRMED' AND kind = 'MINT'), 0),
		COALESCE(SUM(amount) FILTER (WHERE status = 'CONFIRMED' AND kind = 'REDEEM_BURN'), 0),
		COALESCE(SUM(amount) FILTER (WHERE status = 'CONFIRMED' AND kind = 'TRANSFER'), 0),
		COALESCE(SUM(amount) FILTER (WHERE status = 'CONFIRMED' AND kind = 'VOUCHER_SETTLE'), 0)
		FROM ledger_entries`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}

	stats := &ports.LedgerStats{}
	err := r.pool.QueryRow(ctx, query, args...).Scan(
		&stats.TotalEntries, &stats.Confirmed, &stats.Rejected,
		&stats.TotalMinted, &stats.TotalRedeemed, &stats.TotalTransfers, &stats.TotalSettled,
	)
	if err != nil {
		return nil, fmt.Errorf("ledger stats: %w", err)
	}
	return stats, nil
}

func scanEntry(row pgx.Row) (*domain.LedgerEntry, error) {
	e := &domain.LedgerEntry{}
	err := row.Scan(
		&e.ID, &e.Kind, &e.FromAccount, &e.ToAccount, &e.Amount,
		&e.Status, &e.Reason, &e.Channel, &e.ApprovedBy, &e.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan ledger entry: %w", err)
	}
	return e, nil
}

// Cursor format: <unix-nanos>.<entry-id>, opaque to clients.
func encodeCursor(at time.Time, id uuid.UUID) string {
	return fmt.Sprintf("%d.%s", at.UTC().UnixNano(), id)
}

func decodeCursor(cursor string) (time.Time, uuid.UUID, error) {
	parts := strings.SplitN(cursor, ".", 2)
	if len(parts) != 2 {
		return time.Time{}, uuid.Nil, fmt.Errorf("malformed cursor")
	}
	var nanos int64
	if _, err := fmt.Sscanf(parts[0], "%d", &nanos); err != nil {
		return time.Time{}, uuid.Nil, fmt.Errorf("malformed cursor timestamp")
	}
	id, err := uuid.Parse(parts[1])
	if err != nil {
		return time.Time{}, uuid.Nil, fmt.Errorf("malformed cursor id")
	}
	return time.Unix(0, nanos).UTC(), id, nil
}
