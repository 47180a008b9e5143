package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cbdc-ledger/internal/core/domain"
	"cbdc-ledger/internal/core/ports"
	"cbdc-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// dailyLimitWindow is the trailing window over which transfer outflows are summed.
const dailyLimitWindow = 24 * time.Hour

// LedgerServiceImpl implements ports.LedgerService. Every operation runs as
// one database transaction with pessimistic row locks, and appends exactly one
// ledger entry: CONFIRMED inside the transaction, REJECTED after rollback.
type LedgerServiceImpl struct {
	accountRepo ports.AccountRepository
	entryRepo   ports.LedgerEntryRepository
	supplyRepo  ports.SupplyRepository
	authorizer  ports.Authorizer
	transactor  ports.DBTransactor
	policies    domain.PolicyTable
	log         zerolog.Logger
}

// NewLedgerService creates a new LedgerServiceImpl.
func NewLedgerService(
	accountRepo ports.AccountRepository,
	entryRepo ports.LedgerEntryRepository,
	supplyRepo ports.SupplyRepository,
	authorizer ports.Authorizer,
	transactor ports.DBTransactor,
	policies domain.PolicyTable,
	log zerolog.Logger,
) *LedgerServiceImpl {
	return &LedgerServiceImpl{
		accountRepo: accountRepo,
		entryRepo:   entryRepo,
		supplyRepo:  supplyRepo,
		authorizer:  authorizer,
		transactor:  transactor,
		policies:    policies,
		log:         log,
	}
}

// Issue mints new currency to an account. Central-bank approvers only.
func (s *LedgerServiceImpl) Issue(ctx context.Context, req ports.IssueRequest) (*domain.LedgerEntry, error) {
	entry, err := s.runAudited(ctx, auditShape{
		Kind:       domain.EntryKindMint,
		To:         &req.ToAccount,
		Amount:     req.Amount,
		ApprovedBy: req.ApprovedBy.String(),
	}, func(ctx context.Context, tx txHandle) error {
		if req.Amount <= 0 {
			return apperror.ErrInvalidAmount()
		}
		if err := s.authorizer.RequireCentralBank(ctx, req.ApprovedBy); err != nil {
			return err
		}

		account, err := s.accountRepo.GetForUpdate(ctx, tx.tx, req.ToAccount)
		if err != nil {
			return storageErr(err)
		}
		if account == nil {
			return apperror.ErrAccountNotFound(req.ToAccount)
		}
		if !account.CanReceive() {
			return apperror.ErrAccountBlacklisted()
		}

		if _, _, err := s.supplyRepo.GetForUpdate(ctx, tx.tx); err != nil {
			return storageErr(err)
		}
		if err := s.accountRepo.UpdateBalance(ctx, tx.tx, account.ID, account.Balance+req.Amount); err != nil {
			return storageErr(err)
		}
		if err := s.supplyRepo.Add(ctx, tx.tx, req.Amount, 0); err != nil {
			return storageErr(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("entry_id", entry.ID.String()).
		Str("to", req.ToAccount).
		Int64("amount", req.Amount).
		Msg("currency issued")
	return entry, nil
}

// Redeem burns currency from an account. Central-bank approvers only.
func (s *LedgerServiceImpl) Redeem(ctx context.Context, req ports.RedeemRequest) (*domain.LedgerEntry, error) {
	entry, err := s.runAudited(ctx, auditShape{
		Kind:       domain.EntryKindRedeemBurn,
		From:       &req.FromAccount,
		Amount:     req.Amount,
		ApprovedBy: req.ApprovedBy.String(),
	}, func(ctx context.Context, tx txHandle) error {
		if req.Amount <= 0 {
			return apperror.ErrInvalidAmount()
		}
		if err := s.authorizer.RequireCentralBank(ctx, req.ApprovedBy); err != nil {
			return err
		}

		account, err := s.accountRepo.GetForUpdate(ctx, tx.tx, req.FromAccount)
		if err != nil {
			return storageErr(err)
		}
		if account == nil {
			return apperror.ErrAccountNotFound(req.FromAccount)
		}
		if account.Status == domain.AccountStatusFrozen {
			return apperror.ErrAccountFrozen()
		}
		if account.Balance < req.Amount {
			return apperror.ErrInsufficientBalance()
		}

		if _, _, err := s.supplyRepo.GetForUpdate(ctx, tx.tx); err != nil {
			return storageErr(err)
		}
		if err := s.accountRepo.UpdateBalance(ctx, tx.tx, account.ID, account.Balance-req.Amount); err != nil {
			return storageErr(err)
		}
		if err := s.supplyRepo.Add(ctx, tx.tx, 0, req.Amount); err != nil {
			return storageErr(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("entry_id", entry.ID.String()).
		Str("from", req.FromAccount).
		Int64("amount", req.Amount).
		Msg("currency redeemed")
	return entry, nil
}

// Transfer moves value between two accounts, enforcing status gates and the
// sender tier's trailing-24h transfer limit. Debit and credit land atomically.
func (s *LedgerServiceImpl) Transfer(ctx context.Context, req ports.TransferRequest) (*domain.LedgerEntry, error) {
	entry, err := s.runAudited(ctx, auditShape{
		Kind:    domain.EntryKindTransfer,
		From:    &req.FromAccount,
		To:      &req.ToAccount,
		Amount:  req.Amount,
		Channel: req.Channel,
	}, func(ctx context.Context, tx txHandle) error {
		if req.Amount <= 0 {
			return apperror.ErrInvalidAmount()
		}
		if req.FromAccount == req.ToAccount {
			return apperror.Validation("cannot transfer to the same account")
		}

		from, to, err := s.lockPair(ctx, tx, req.FromAccount, req.ToAccount)
		if err != nil {
			return err
		}

		switch from.Status {
		case domain.AccountStatusFrozen:
			return apperror.ErrAccountFrozen()
		case domain.AccountStatusBlacklisted:
			return apperror.ErrAccountBlacklisted()
		}
		if !to.CanReceive() {
			return apperror.ErrAccountBlacklisted()
		}
		if from.Balance < req.Amount {
			return apperror.ErrInsufficientBalance()
		}

		policy, err := s.policies.ForTier(from.Tier)
		if err != nil {
			return apperror.ErrTierIneligible()
		}
		outflow, err := s.entryRepo.SumOutflowSince(ctx, tx.tx, from.ID, time.Now().UTC().Add(-dailyLimitWindow))
		if err != nil {
			return storageErr(err)
		}
		if outflow+req.Amount > policy.DailyTransferLimit {
			return apperror.ErrLimitExceeded()
		}

		if err := s.accountRepo.UpdateBalance(ctx, tx.tx, from.ID, from.Balance-req.Amount); err != nil {
			return storageErr(err)
		}
		if err := s.accountRepo.UpdateBalance(ctx, tx.tx, to.ID, to.Balance+req.Amount); err != nil {
			return storageErr(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("entry_id", entry.ID.String()).
		Str("from", req.FromAccount).
		Str("to", req.ToAccount).
		Int64("amount", req.Amount).
		Msg("transfer confirmed")
	return entry, nil
}

// Freeze suspends outbound value movement. Idempotent: freezing a frozen
// account is a no-op success. Blacklisted accounts cannot be frozen.
func (s *LedgerServiceImpl) Freeze(ctx context.Context, req ports.StatusRequest) (*domain.Account, error) {
	return s.transition(ctx, domain.EntryKindFreeze, req, domain.AccountStatusFrozen)
}

// Unfreeze restores an account to ACTIVE.
func (s *LedgerServiceImpl) Unfreeze(ctx context.Context, req ports.StatusRequest) (*domain.Account, error) {
	return s.transition(ctx, domain.EntryKindUnfreeze, req, domain.AccountStatusActive)
}

// Blacklist is a one-way transition: there is no unblacklist operation.
func (s *LedgerServiceImpl) Blacklist(ctx context.Context, req ports.StatusRequest) (*domain.Account, error) {
	return s.transition(ctx, domain.EntryKindBlacklist, req, domain.AccountStatusBlacklisted)
}

func (s *LedgerServiceImpl) transition(ctx context.Context, kind domain.EntryKind, req ports.StatusRequest, target domain.AccountStatus) (*domain.Account, error) {
	var result *domain.Account

	_, err := s.runAudited(ctx, auditShape{
		Kind:       kind,
		To:         &req.AccountID,
		Reason:     req.Reason,
		ApprovedBy: req.ApprovedBy.String(),
	}, func(ctx context.Context, tx txHandle) error {
		if err := s.authorizer.RequireCentralBank(ctx, req.ApprovedBy); err != nil {
			return err
		}

		account, err := s.accountRepo.GetForUpdate(ctx, tx.tx, req.AccountID)
		if err != nil {
			return storageErr(err)
		}
		if account == nil {
			return apperror.ErrAccountNotFound(req.AccountID)
		}

		// Blacklisting is terminal; only the blacklist op itself may touch
		// a blacklisted account, and then only as an idempotent no-op.
		if account.Status == domain.AccountStatusBlacklisted && kind != domain.EntryKindBlacklist {
			return apperror.ErrAccountBlacklisted()
		}
		if account.Status == target {
			result = account
			return nil
		}

		if err := s.accountRepo.UpdateStatus(ctx, tx.tx, account.ID, target); err != nil {
			return storageErr(err)
		}
		account.Status = target
		result = account
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("account", req.AccountID).
		Str("kind", string(kind)).
		Str("reason", req.Reason).
		Msg("account status transition")
	return result, nil
}

// CreateAccount provisions a wallet. Not a value movement, so it does not
// produce a ledger entry.
func (s *LedgerServiceImpl) CreateAccount(ctx context.Context, req ports.CreateAccountRequest) (*domain.Account, error) {
	if _, err := s.policies.ForTier(req.Tier); err != nil {
		return nil, apperror.ErrTierIneligible()
	}

	existing, err := s.accountRepo.GetByID(ctx, req.AccountID)
	if err != nil {
		return nil, apperror.ErrStorageUnavailable(err)
	}
	if existing != nil {
		return nil, apperror.ErrAccountExists(req.AccountID)
	}

	now := time.Now().UTC()
	account := &domain.Account{
		ID:             req.AccountID,
		OwnerID:        req.OwnerID,
		IntermediaryID: req.IntermediaryID,
		Type:           req.Type,
		Tier:           req.Tier,
		Balance:        0,
		Status:         domain.AccountStatusActive,
		KYCLevel:       req.KYCLevel,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.accountRepo.Create(ctx, account); err != nil {
		return nil, apperror.ErrStorageUnavailable(err)
	}

	s.log.Info().
		Str("account", account.ID).
		Str("intermediary", account.IntermediaryID).
		Int16("tier", account.Tier).
		Msg("account provisioned")
	return account, nil
}

// GetAccount fetches an account for balance/status queries.
func (s *LedgerServiceImpl) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	account, err := s.accountRepo.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.ErrStorageUnavailable(err)
	}
	if account == nil {
		return nil, apperror.ErrAccountNotFound(id)
	}
	return account, nil
}

// lockPair locks two accounts in ascending ID order, the fixed global order
// that prevents deadlock between opposing transfers.
func (s *LedgerServiceImpl) lockPair(ctx context.Context, tx txHandle, fromID, toID string) (*domain.Account, *domain.Account, error) {
	firstID, secondID := fromID, toID
	if secondID < firstID {
		firstID, secondID = secondID, firstID
	}

	first, err := s.accountRepo.GetForUpdate(ctx, tx.tx, firstID)
	if err != nil {
		return nil, nil, storageErr(err)
	}
	second, err := s.accountRepo.GetForUpdate(ctx, tx.tx, secondID)
	if err != nil {
		return nil, nil, storageErr(err)
	}

	from, to := first, second
	if firstID != fromID {
		from, to = second, first
	}
	if from == nil {
		return nil, nil, apperror.ErrAccountNotFound(fromID)
	}
	if to == nil {
		return nil, nil, apperror.ErrAccountNotFound(toID)
	}
	return from, to, nil
}

// storageErr maps conflict sentinels to the retryable ConcurrentConflict and
// everything else to an opaque StorageUnavailable.
func storageErr(err error) error {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	if errors.Is(err, domain.ErrConflict) {
		return apperror.ErrConcurrentConflict()
	}
	return apperror.ErrStorageUnavailable(err)
}

// auditShape carries the invariant fields of the entry an operation appends.
type auditShape struct {
	Kind       domain.EntryKind
	From       *string
	To         *string
	Amount     int64
	Reason     string
	Channel    string
	ApprovedBy string
}

type txHandle struct {
	tx pgx.Tx
}

// runAudited is the transactional audit wrapper shared by every ledger
// operation: begin, run the body under locks, append CONFIRMED and commit,
// or roll back and record a REJECTED entry carrying the rejection reason.
// No code path can mutate state without producing an audit entry.
func (s *LedgerServiceImpl) runAudited(ctx context.Context, shape auditShape, body func(ctx context.Context, tx txHandle) error) (*domain.LedgerEntry, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.ErrStorageUnavailable(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	handle := txHandle{tx: dbTx}
	if opErr := body(ctx, handle); opErr != nil {
		dbTx.Rollback(ctx) //nolint:errcheck
		s.recordRejection(ctx, shape, opErr)
		return nil, opErr
	}

	entry := s.buildEntry(shape, domain.EntryStatusConfirmed, shape.Reason)
	if err := s.entryRepo.Append(ctx, dbTx, entry); err != nil {
		return nil, storageErr(err)
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, storageErr(fmt.Errorf("commit tx: %w", err))
	}
	return entry, nil
}

func (s *LedgerServiceImpl) buildEntry(shape auditShape, status domain.EntryStatus, reason string) *domain.LedgerEntry {
	return &domain.LedgerEntry{
		ID:          uuid.New(),
		Kind:        shape.Kind,
		FromAccount: shape.From,
		ToAccount:   shape.To,
		Amount:      shape.Amount,
		Status:      status,
		Reason:      reason,
		Channel:     shape.Channel,
		ApprovedBy:  shape.ApprovedBy,
		CreatedAt:   time.Now().UTC(),
	}
}

// recordRejection appends the REJECTED audit entry outside the rolled-back
// transaction. Best effort: a storage outage here is logged, not surfaced,
// since the caller already has the definitive rejection.
func (s *LedgerServiceImpl) recordRejection(ctx context.Context, shape auditShape, opErr error) {
	reason := opErr.Error()
	var appErr *apperror.AppError
	if errors.As(opErr, &appErr) {
		reason = fmt.Sprintf("%s: %s", appErr.Code, appErr.Message)
	}

	entry := s.buildEntry(shape, domain.EntryStatusRejected, reason)
	if err := s.entryRepo.Record(ctx, entry); err != nil {
		s.log.Warn().Err(err).
			Str("kind", string(shape.Kind)).
			Msg("failed to record rejected ledger entry")
	}
}
