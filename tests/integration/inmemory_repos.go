package integration

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"cbdc-ledger/internal/core/domain"
	"cbdc-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// memDB is a single in-memory database shared by all in-memory repos.
//
// Transaction semantics mirror the production locking discipline in the
// coarsest way possible: Begin takes txMu, Commit/Rollback release it, so
// transactions execute one at a time. Every repo method, with or without a
// pgx.Tx, takes the short-lived data mutex mu around its own map access; a
// non-tx read issued from inside an open transaction (the pool-connection
// reads the services perform mid-tx in production) therefore does not
// deadlock against the transaction holding txMu.
type memDB struct {
	txMu           sync.Mutex
	mu             sync.Mutex
	accounts       map[string]*domain.Account
	entries        []domain.LedgerEntry
	nonces         map[string]map[uint64]time.Time
	purses         map[string]*domain.OfflinePurse
	intermediaries map[uuid.UUID]*domain.Intermediary
	minted         int64
	redeemed       int64
}

func newMemDB() *memDB {
	return &memDB{
		accounts:       make(map[string]*domain.Account),
		nonces:         make(map[string]map[uint64]time.Time),
		purses:         make(map[string]*domain.OfflinePurse),
		intermediaries: make(map[uuid.UUID]*domain.Intermediary),
	}
}

// memTx satisfies pgx.Tx for in-memory repos. Only Commit and Rollback are
// implemented; repo methods never touch the embedded interface.
type memTx struct {
	pgx.Tx
	db      *memDB
	release sync.Once
}

func (t *memTx) Commit(ctx context.Context) error {
	t.release.Do(t.db.txMu.Unlock)
	return nil
}

func (t *memTx) Rollback(ctx context.Context) error {
	t.release.Do(t.db.txMu.Unlock)
	return nil
}

type memTransactor struct {
	db *memDB
}

func (tr *memTransactor) Begin(ctx context.Context) (pgx.Tx, error) {
	tr.db.txMu.Lock()
	return &memTx{db: tr.db}, nil
}

// --- Account Repo ---

type memAccountRepo struct {
	db *memDB
}

func (r *memAccountRepo) Create(ctx context.Context, account *domain.Account) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.accounts[account.ID]; ok {
		return fmt.Errorf("account %s already exists", account.ID)
	}
	cp := *account
	r.db.accounts[account.ID] = &cp
	return nil
}

func (r *memAccountRepo) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return r.getLocked(id), nil
}

func (r *memAccountRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (*domain.Account, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return r.getLocked(id), nil
}

func (r *memAccountRepo) getLocked(id string) *domain.Account {
	a, ok := r.db.accounts[id]
	if !ok {
		return nil
	}
	cp := *a
	return &cp
}

func (r *memAccountRepo) UpdateBalance(ctx context.Context, tx pgx.Tx, id string, balance int64) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	a, ok := r.db.accounts[id]
	if !ok {
		return fmt.Errorf("account %s not found", id)
	}
	if balance < 0 {
		return fmt.Errorf("balance constraint violated for %s", id)
	}
	a.Balance = balance
	a.UpdatedAt = time.Now()
	return nil
}

func (r *memAccountRepo) UpdateStatus(ctx context.Context, tx pgx.Tx, id string, status domain.AccountStatus) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	a, ok := r.db.accounts[id]
	if !ok {
		return fmt.Errorf("account %s not found", id)
	}
	a.Status = status
	a.UpdatedAt = time.Now()
	return nil
}

func (r *memAccountRepo) CountByIntermediary(ctx context.Context, intermediaryID string) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var n int64
	for _, a := range r.db.accounts {
		if a.IntermediaryID == intermediaryID {
			n++
		}
	}
	return n, nil
}

// --- Ledger Entry Repo ---

type memEntryRepo struct {
	db *memDB
}

func (r *memEntryRepo) Append(ctx context.Context, tx pgx.Tx, entry *domain.LedgerEntry) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.entries = append(r.db.entries, *entry)
	return nil
}

func (r *memEntryRepo) Record(ctx context.Context, entry *domain.LedgerEntry) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.entries = append(r.db.entries, *entry)
	return nil
}

func (r *memEntryRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.LedgerEntry, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for i := range r.db.entries {
		if r.db.entries[i].ID == id {
			cp := r.db.entries[i]
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memEntryRepo) SumOutflowSince(ctx context.Context, tx pgx.Tx, accountID string, since time.Time) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var sum int64
	for i := range r.db.entries {
		e := &r.db.entries[i]
		if !e.CountsTowardDailyLimit() {
			continue
		}
		if e.FromAccount == nil || *e.FromAccount != accountID {
			continue
		}
		if e.CreatedAt.Before(since) {
			continue
		}
		sum += e.Amount
	}
	return sum, nil
}

func (r *memEntryRepo) List(ctx context.Context, params ports.LedgerListParams) ([]domain.LedgerEntry, string, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	matches := make([]domain.LedgerEntry, 0)
	for i := range r.db.entries {
		e := r.db.entries[i]
		if params.AccountID != "" {
			fromMatch := e.FromAccount != nil && *e.FromAccount == params.AccountID
			toMatch := e.ToAccount != nil && *e.ToAccount == params.AccountID
			if !fromMatch && !toMatch {
				continue
			}
		}
		if params.Kind != nil && e.Kind != *params.Kind {
			continue
		}
		if params.Status != nil && e.Status != *params.Status {
			continue
		}
		if params.From != nil && e.CreatedAt.Before(*params.From) {
			continue
		}
		if params.To != nil && e.CreatedAt.After(*params.To) {
			continue
		}
		matches = append(matches, e)
	}

	// Newest first with (created_at, id) as the keyset, like the SQL repo
	sort.SliceStable(matches, func(i, j int) bool {
		if !matches[i].CreatedAt.Equal(matches[j].CreatedAt) {
			return matches[i].CreatedAt.After(matches[j].CreatedAt)
		}
		return matches[i].ID.String() > matches[j].ID.String()
	})

	if params.Cursor != "" {
		at, id, err := decodeEntryCursor(params.Cursor)
		if err != nil {
			return nil, "", fmt.Errorf("invalid cursor: %w", err)
		}
		kept := matches[:0]
		for i := range matches {
			e := matches[i]
			if e.CreatedAt.Before(at) || (e.CreatedAt.Equal(at) && e.ID.String() < id.String()) {
				kept = append(kept, e)
			}
		}
		matches = kept
	}

	limit := params.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	page := matches
	if len(page) > limit {
		page = page[:limit]
	}
	nextCursor := ""
	if len(page) == limit {
		last := page[len(page)-1]
		nextCursor = encodeEntryCursor(last.CreatedAt, last.ID)
	}
	return page, nextCursor, nil
}

// Cursor helpers mirror the SQL repo's <unix-nanos>.<entry-id> wire format,
// so cursors from either implementation of the port are interchangeable.
func encodeEntryCursor(at time.Time, id uuid.UUID) string {
	return fmt.Sprintf("%d.%s", at.UTC().UnixNano(), id)
}

func decodeEntryCursor(cursor string) (time.Time, uuid.UUID, error) {
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

func (r *memEntryRepo) GetStats(ctx context.Context, params ports.LedgerStatsParams) (*ports.LedgerStats, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	stats := &ports.LedgerStats{}
	for i := range r.db.entries {
		e := &r.db.entries[i]
		if params.From != nil && e.CreatedAt.Before(*params.From) {
			continue
		}
		stats.TotalEntries++
		if e.Status == domain.EntryStatusConfirmed {
			stats.Confirmed++
		} else {
			stats.Rejected++
		}
		if e.Status != domain.EntryStatusConfirmed {
			continue
		}
		switch e.Kind {
		case domain.EntryKindMint:
			stats.TotalMinted += e.Amount
		case domain.EntryKindRedeemBurn:
			stats.TotalRedeemed += e.Amount
		case domain.EntryKindTransfer:
			stats.TotalTransfers++
		case domain.EntryKindVoucherSettle:
			stats.TotalSettled++
		}
	}
	return stats, nil
}

// entriesSnapshot returns a copy of all entries, oldest first.
func (db *memDB) entriesSnapshot() []domain.LedgerEntry {
	db.mu.Lock()
	defer db.mu.Unlock()
	out := make([]domain.LedgerEntry, len(db.entries))
	copy(out, db.entries)
	return out
}

// --- Nonce Repo ---

type memNonceRepo struct {
	db *memDB
}

func (r *memNonceRepo) Insert(ctx context.Context, tx pgx.Tx, accountID string, nonce uint64, redeemedAt time.Time) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	set, ok := r.db.nonces[accountID]
	if !ok {
		set = make(map[uint64]time.Time)
		r.db.nonces[accountID] = set
	}
	if _, used := set[nonce]; used {
		return false, nil
	}
	set[nonce] = redeemedAt
	return true, nil
}

func (r *memNonceRepo) Exists(ctx context.Context, accountID string, nonce uint64) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	set, ok := r.db.nonces[accountID]
	if !ok {
		return false, nil
	}
	_, used := set[nonce]
	return used, nil
}

// --- Purse Repo ---

type memPurseRepo struct {
	db *memDB
}

func (r *memPurseRepo) Upsert(ctx context.Context, purse *domain.OfflinePurse) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	cp := *purse
	if existing, ok := r.db.purses[purse.AccountID]; ok {
		cp.Allowance = existing.Allowance
		cp.CreatedAt = existing.CreatedAt
	}
	r.db.purses[purse.AccountID] = &cp
	return nil
}

func (r *memPurseRepo) GetByAccountID(ctx context.Context, accountID string) (*domain.OfflinePurse, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return r.getLocked(accountID), nil
}

func (r *memPurseRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, accountID string) (*domain.OfflinePurse, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return r.getLocked(accountID), nil
}

func (r *memPurseRepo) getLocked(accountID string) *domain.OfflinePurse {
	p, ok := r.db.purses[accountID]
	if !ok {
		return nil
	}
	cp := *p
	return &cp
}

func (r *memPurseRepo) UpdateAllowance(ctx context.Context, tx pgx.Tx, accountID string, allowance int64, syncedAt time.Time) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	p, ok := r.db.purses[accountID]
	if !ok {
		return fmt.Errorf("purse for %s not found", accountID)
	}
	if allowance < 0 {
		return fmt.Errorf("allowance constraint violated for %s", accountID)
	}
	p.Allowance = allowance
	p.LastSyncedAt = syncedAt
	p.UpdatedAt = time.Now()
	return nil
}

// --- Intermediary Repo ---

type memIntermediaryRepo struct {
	db *memDB
}

func (r *memIntermediaryRepo) Create(ctx context.Context, intermediary *domain.Intermediary) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, existing := range r.db.intermediaries {
		if strings.EqualFold(existing.Username, intermediary.Username) {
			return fmt.Errorf("username %s already exists", intermediary.Username)
		}
	}
	cp := *intermediary
	r.db.intermediaries[intermediary.ID] = &cp
	return nil
}

func (r *memIntermediaryRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Intermediary, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	i, ok := r.db.intermediaries[id]
	if !ok {
		return nil, nil
	}
	cp := *i
	return &cp, nil
}

func (r *memIntermediaryRepo) GetByAccessKey(ctx context.Context, accessKey string) (*domain.Intermediary, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, i := range r.db.intermediaries {
		if i.AccessKey == accessKey {
			cp := *i
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memIntermediaryRepo) GetByUsername(ctx context.Context, username string) (*domain.Intermediary, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, i := range r.db.intermediaries {
		if i.Username == username {
			cp := *i
			return &cp, nil
		}
	}
	return nil, nil
}

// --- Supply Repo ---

type memSupplyRepo struct {
	db *memDB
}

func (r *memSupplyRepo) GetForUpdate(ctx context.Context, tx pgx.Tx) (int64, int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return r.db.minted, r.db.redeemed, nil
}

func (r *memSupplyRepo) Get(ctx context.Context) (int64, int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return r.db.minted, r.db.redeemed, nil
}

func (r *memSupplyRepo) Add(ctx context.Context, tx pgx.Tx, mintedDelta, redeemedDelta int64) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.minted += mintedDelta
	r.db.redeemed += redeemedDelta
	return nil
}
