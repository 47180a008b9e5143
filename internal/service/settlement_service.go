package service

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"cbdc-ledger/internal/core/domain"
	"cbdc-ledger/internal/core/ports"
	"cbdc-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// SettlementServiceImpl implements ports.SettlementService. Settlement is the
// only place where offline vouchers become online balance: each voucher either
// moves value exactly once or is terminally rejected, and every attempt leaves
// a ledger entry.
type SettlementServiceImpl struct {
	accountRepo ports.AccountRepository
	purseRepo   ports.PurseRepository
	nonceRepo   ports.NonceRepository
	entryRepo   ports.LedgerEntryRepository
	verifier    ports.VoucherVerifier
	transactor  ports.DBTransactor
	policies    domain.PolicyTable
	ledgerID    string
	log         zerolog.Logger
}

// NewSettlementService creates a new SettlementServiceImpl.
func NewSettlementService(
	accountRepo ports.AccountRepository,
	purseRepo ports.PurseRepository,
	nonceRepo ports.NonceRepository,
	entryRepo ports.LedgerEntryRepository,
	verifier ports.VoucherVerifier,
	transactor ports.DBTransactor,
	policies domain.PolicyTable,
	ledgerID string,
	log zerolog.Logger,
) *SettlementServiceImpl {
	return &SettlementServiceImpl{
		accountRepo: accountRepo,
		purseRepo:   purseRepo,
		nonceRepo:   nonceRepo,
		entryRepo:   entryRepo,
		verifier:    verifier,
		transactor:  transactor,
		policies:    policies,
		ledgerID:    ledgerID,
		log:         log,
	}
}

// RegisterDevice binds a voucher-signing device key to an account's purse.
// Re-registering replaces the key but keeps any funded allowance.
func (s *SettlementServiceImpl) RegisterDevice(ctx context.Context, req ports.RegisterDeviceRequest) (*domain.OfflinePurse, error) {
	if req.DeviceID == "" {
		return nil, apperror.Validation("device_id is required")
	}
	key, err := hex.DecodeString(req.PublicKey)
	if err != nil || len(key) != 32 {
		return nil, apperror.Validation("public_key must be a 32-byte hex-encoded ed25519 key")
	}

	account, err := s.accountRepo.GetByID(ctx, req.AccountID)
	if err != nil {
		return nil, apperror.ErrStorageUnavailable(err)
	}
	if account == nil {
		return nil, apperror.ErrAccountNotFound(req.AccountID)
	}
	if account.Status == domain.AccountStatusBlacklisted {
		return nil, apperror.ErrAccountBlacklisted()
	}

	policy, err := s.policies.ForTier(account.Tier)
	if err != nil || !policy.AllowsOffline() {
		return nil, apperror.ErrTierIneligible()
	}

	now := time.Now().UTC()
	purse := &domain.OfflinePurse{
		AccountID:    req.AccountID,
		DeviceID:     req.DeviceID,
		PublicKey:    req.PublicKey,
		LastSyncedAt: now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.purseRepo.Upsert(ctx, purse); err != nil {
		return nil, storageErr(err)
	}

	s.log.Info().
		Str("account", req.AccountID).
		Str("device", req.DeviceID).
		Msg("offline device registered")
	return purse, nil
}

// FundOfflineCapacity moves value from the account balance into the purse
// allowance, up to the tier's offline cap. The debit is immediate so funded
// capacity can never exceed money the holder actually has.
func (s *SettlementServiceImpl) FundOfflineCapacity(ctx context.Context, req ports.FundOfflineRequest) (*domain.OfflinePurse, error) {
	var result *domain.OfflinePurse

	entry, err := s.runFundingTx(ctx, req, &result)
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("entry_id", entry.ID.String()).
		Str("account", req.AccountID).
		Int64("amount", req.Amount).
		Int64("allowance", result.Allowance).
		Msg("offline capacity funded")
	return result, nil
}

func (s *SettlementServiceImpl) runFundingTx(ctx context.Context, req ports.FundOfflineRequest, result **domain.OfflinePurse) (*domain.LedgerEntry, error) {
	shape := auditShape{
		Kind:   domain.EntryKindOfflineFund,
		From:   &req.AccountID,
		Amount: req.Amount,
	}

	tx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.ErrStorageUnavailable(fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	opErr := func() error {
		if req.Amount <= 0 {
			return apperror.ErrInvalidAmount()
		}

		account, err := s.accountRepo.GetForUpdate(ctx, tx, req.AccountID)
		if err != nil {
			return storageErr(err)
		}
		if account == nil {
			return apperror.ErrAccountNotFound(req.AccountID)
		}
		if !account.CanOriginate() {
			if account.Status == domain.AccountStatusBlacklisted {
				return apperror.ErrAccountBlacklisted()
			}
			return apperror.ErrAccountFrozen()
		}

		purse, err := s.purseRepo.GetForUpdate(ctx, tx, req.AccountID)
		if err != nil {
			return storageErr(err)
		}
		if purse == nil {
			return apperror.ErrDeviceNotRegistered()
		}

		policy, err := s.policies.ForTier(account.Tier)
		if err != nil || !policy.AllowsOffline() {
			return apperror.ErrTierIneligible()
		}
		if purse.Allowance+req.Amount > policy.OfflineMaxBalance {
			return apperror.ErrOfflineCapExceeded()
		}
		if account.Balance < req.Amount {
			return apperror.ErrInsufficientBalance()
		}

		now := time.Now().UTC()
		if err := s.accountRepo.UpdateBalance(ctx, tx, account.ID, account.Balance-req.Amount); err != nil {
			return storageErr(err)
		}
		if err := s.purseRepo.UpdateAllowance(ctx, tx, purse.AccountID, purse.Allowance+req.Amount, now); err != nil {
			return storageErr(err)
		}

		purse.Allowance += req.Amount
		purse.LastSyncedAt = now
		purse.UpdatedAt = now
		*result = purse
		return nil
	}()
	if opErr != nil {
		tx.Rollback(ctx) //nolint:errcheck
		s.recordSettlementRejection(ctx, shape, opErr)
		return nil, opErr
	}

	entry := buildSettlementEntry(shape, domain.EntryStatusConfirmed, "")
	if err := s.entryRepo.Append(ctx, tx, entry); err != nil {
		return nil, storageErr(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, storageErr(fmt.Errorf("commit tx: %w", err))
	}
	return entry, nil
}

// Settle redeems one voucher: verifies the device signature, consumes the
// (signer, nonce) pair, draws down the signer's allowance and credits the
// beneficiary. All of it happens in a single transaction, so a replayed
// voucher loses the race on the nonce insert, never on timing.
func (s *SettlementServiceImpl) Settle(ctx context.Context, req ports.SettleRequest) (*domain.LedgerEntry, error) {
	v := req.Voucher
	shape := auditShape{
		Kind:    domain.EntryKindVoucherSettle,
		From:    &v.SignerAccountID,
		To:      &req.BeneficiaryAccount,
		Amount:  v.Amount,
		Channel: req.PresentedBy,
	}

	tx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.ErrStorageUnavailable(fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	opErr := func() error {
		if v.Amount <= 0 {
			return apperror.ErrInvalidAmount()
		}
		if v.SignerAccountID == req.BeneficiaryAccount {
			return apperror.Validation("voucher signer and beneficiary must differ")
		}
		if v.TargetLedgerID != s.ledgerID {
			return apperror.ErrInvalidVoucherSignature()
		}

		// Lock both accounts in ascending ID order before touching the purse.
		signerID, beneficiaryID := v.SignerAccountID, req.BeneficiaryAccount
		firstID, secondID := signerID, beneficiaryID
		if secondID < firstID {
			firstID, secondID = secondID, firstID
		}
		first, err := s.accountRepo.GetForUpdate(ctx, tx, firstID)
		if err != nil {
			return storageErr(err)
		}
		second, err := s.accountRepo.GetForUpdate(ctx, tx, secondID)
		if err != nil {
			return storageErr(err)
		}
		signer, beneficiary := first, second
		if firstID != signerID {
			signer, beneficiary = second, first
		}
		if signer == nil {
			return apperror.ErrAccountNotFound(signerID)
		}
		if beneficiary == nil {
			return apperror.ErrAccountNotFound(beneficiaryID)
		}

		purse, err := s.purseRepo.GetForUpdate(ctx, tx, signerID)
		if err != nil {
			return storageErr(err)
		}
		if purse == nil {
			return apperror.ErrDeviceNotRegistered()
		}

		if err := s.verifier.Verify(purse.PublicKey, &v); err != nil {
			return err
		}

		now := time.Now().UTC()

		// Consuming the nonce first makes the replay check indivisible from
		// the balance mutation: a duplicate presentation fails here and the
		// whole transaction rolls back.
		fresh, err := s.nonceRepo.Insert(ctx, tx, signerID, v.Nonce, now)
		if err != nil {
			return storageErr(err)
		}
		if !fresh {
			return apperror.ErrNonceReplay()
		}

		if signer.Status == domain.AccountStatusBlacklisted {
			return apperror.ErrAccountBlacklisted()
		}
		if signer.Status == domain.AccountStatusFrozen {
			return apperror.ErrAccountFrozen()
		}
		if !beneficiary.CanReceive() {
			return apperror.ErrAccountBlacklisted()
		}

		policy, err := s.policies.ForTier(signer.Tier)
		if err != nil || !policy.AllowsOffline() {
			return apperror.ErrTierIneligible()
		}
		if time.Since(purse.LastSyncedAt) > policy.OfflineVoucherTTL {
			return apperror.ErrVoucherExpired()
		}
		if v.Amount > policy.OfflineTxLimit {
			return apperror.ErrLimitExceeded()
		}
		if purse.Allowance < v.Amount {
			return apperror.ErrInsufficientBalance()
		}

		// Settlement is online contact, so it re-anchors the voucher TTL
		// alongside the allowance draw-down.
		if err := s.purseRepo.UpdateAllowance(ctx, tx, signerID, purse.Allowance-v.Amount, now); err != nil {
			return storageErr(err)
		}
		if err := s.accountRepo.UpdateBalance(ctx, tx, beneficiary.ID, beneficiary.Balance+v.Amount); err != nil {
			return storageErr(err)
		}
		return nil
	}()
	if opErr != nil {
		tx.Rollback(ctx) //nolint:errcheck
		s.recordSettlementRejection(ctx, shape, opErr)
		return nil, opErr
	}

	entry := buildSettlementEntry(shape, domain.EntryStatusConfirmed, "")
	if err := s.entryRepo.Append(ctx, tx, entry); err != nil {
		return nil, storageErr(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, storageErr(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("entry_id", entry.ID.String()).
		Str("signer", v.SignerAccountID).
		Str("beneficiary", req.BeneficiaryAccount).
		Uint64("nonce", v.Nonce).
		Int64("amount", v.Amount).
		Msg("voucher settled")
	return entry, nil
}

// Reconcile settles a batch of vouchers collected by a relay. Each voucher is
// its own transaction: one bad voucher never blocks the rest of the batch.
func (s *SettlementServiceImpl) Reconcile(ctx context.Context, req ports.ReconcileRequest) (*ports.ReconcileResult, error) {
	result := &ports.ReconcileResult{}

	for i := range req.Vouchers {
		v := req.Vouchers[i]
		entry, err := s.Settle(ctx, ports.SettleRequest{
			Voucher:            v,
			BeneficiaryAccount: req.BeneficiaryAccount,
			PresentedBy:        req.PresentedBy,
		})
		if err != nil {
			failure := ports.ReconcileFailure{Nonce: v.Nonce, Reason: err.Error()}
			var appErr *apperror.AppError
			if errors.As(err, &appErr) {
				failure.Code = appErr.Code
				failure.Reason = appErr.Message
			}
			result.Failures = append(result.Failures, failure)
			continue
		}
		result.Settled = append(result.Settled, *entry)
	}

	s.log.Info().
		Str("beneficiary", req.BeneficiaryAccount).
		Int("settled", len(result.Settled)).
		Int("failed", len(result.Failures)).
		Msg("voucher batch reconciled")
	return result, nil
}

func buildSettlementEntry(shape auditShape, status domain.EntryStatus, reason string) *domain.LedgerEntry {
	return &domain.LedgerEntry{
		ID:          uuid.New(),
		Kind:        shape.Kind,
		FromAccount: shape.From,
		ToAccount:   shape.To,
		Amount:      shape.Amount,
		Status:      status,
		Reason:      reason,
		Channel:     shape.Channel,
		CreatedAt:   time.Now().UTC(),
	}
}

func (s *SettlementServiceImpl) recordSettlementRejection(ctx context.Context, shape auditShape, opErr error) {
	reason := opErr.Error()
	var appErr *apperror.AppError
	if errors.As(opErr, &appErr) {
		reason = fmt.Sprintf("%s: %s", appErr.Code, appErr.Message)
	}

	entry := buildSettlementEntry(shape, domain.EntryStatusRejected, reason)
	if err := s.entryRepo.Record(ctx, entry); err != nil {
		s.log.Warn().Err(err).
			Str("kind", string(shape.Kind)).
			Msg("failed to record rejected ledger entry")
	}
}
