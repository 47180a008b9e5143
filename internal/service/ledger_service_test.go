package service

import (
	"context"
	"testing"
	"time"

	"cbdc-ledger/internal/core/domain"
	"cbdc-ledger/internal/core/ports"
	"cbdc-ledger/internal/core/ports/mocks"
	"cbdc-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type ledgerTestDeps struct {
	svc         *LedgerServiceImpl
	accountRepo *mocks.MockAccountRepository
	entryRepo   *mocks.MockLedgerEntryRepository
	supplyRepo  *mocks.MockSupplyRepository
	authorizer  *mocks.MockAuthorizer
	transactor  *mocks.MockDBTransactor
	ctrl        *gomock.Controller
}

func testPolicies() domain.PolicyTable {
	return domain.PolicyTable{
		0: {DailyTransferLimit: 50_000_00, OfflineMaxBalance: 500_00, OfflineTxLimit: 50_00, OfflineVoucherTTL: 168 * time.Hour},
		1: {DailyTransferLimit: 500_000_00, OfflineMaxBalance: 2_000_00, OfflineTxLimit: 200_00, OfflineVoucherTTL: 168 * time.Hour},
		2: {DailyTransferLimit: 5_000_000_00, OfflineMaxBalance: 10_000_00, OfflineTxLimit: 1_000_00, OfflineVoucherTTL: 336 * time.Hour},
	}
}

func setupLedgerService(t *testing.T) *ledgerTestDeps {
	ctrl := gomock.NewController(t)
	d := &ledgerTestDeps{
		accountRepo: mocks.NewMockAccountRepository(ctrl),
		entryRepo:   mocks.NewMockLedgerEntryRepository(ctrl),
		supplyRepo:  mocks.NewMockSupplyRepository(ctrl),
		authorizer:  mocks.NewMockAuthorizer(ctrl),
		transactor:  mocks.NewMockDBTransactor(ctrl),
		ctrl:        ctrl,
	}
	d.svc = NewLedgerService(
		d.accountRepo, d.entryRepo, d.supplyRepo,
		d.authorizer, d.transactor, testPolicies(), zerolog.Nop(),
	)
	return d
}

// mockTx implements pgx.Tx for testing
type mockTx struct{ pgx.Tx }

func (m *mockTx) Rollback(_ context.Context) error { return nil }
func (m *mockTx) Commit(_ context.Context) error   { return nil }

func activeAccount(id string, balance int64) *domain.Account {
	return &domain.Account{
		ID:      id,
		Tier:    1,
		Type:    domain.AccountTypeIndividual,
		Balance: balance,
		Status:  domain.AccountStatusActive,
	}
}

// ==================== Issue Tests ====================

func TestLedgerService_Issue_Success(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	approver := uuid.New()
	tx := &mockTx{}

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.authorizer.EXPECT().RequireCentralBank(ctx, approver).Return(nil)
	d.accountRepo.EXPECT().GetForUpdate(ctx, tx, "bank-a").Return(activeAccount("bank-a", 1000), nil)
	d.supplyRepo.EXPECT().GetForUpdate(ctx, tx).Return(int64(5000), int64(0), nil)
	d.accountRepo.EXPECT().UpdateBalance(ctx, tx, "bank-a", int64(1500)).Return(nil)
	d.supplyRepo.EXPECT().Add(ctx, tx, int64(500), int64(0)).Return(nil)
	d.entryRepo.EXPECT().Append(ctx, tx, gomock.Any()).Return(nil)

	entry, err := d.svc.Issue(ctx, ports.IssueRequest{ToAccount: "bank-a", Amount: 500, ApprovedBy: approver})
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, domain.EntryKindMint, entry.Kind)
	assert.Equal(t, domain.EntryStatusConfirmed, entry.Status)
	assert.Equal(t, int64(500), entry.Amount)
	require.NotNil(t, entry.ToAccount)
	assert.Equal(t, "bank-a", *entry.ToAccount)
}

func TestLedgerService_Issue_InvalidAmount(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.entryRepo.EXPECT().Record(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, entry *domain.LedgerEntry) error {
			assert.Equal(t, domain.EntryStatusRejected, entry.Status)
			assert.Contains(t, entry.Reason, "LED_007")
			return nil
		})

	_, err := d.svc.Issue(ctx, ports.IssueRequest{ToAccount: "bank-a", Amount: 0, ApprovedBy: uuid.New()})
	requireAppError(t, err, "LED_007")
}

func TestLedgerService_Issue_UnauthorizedApprover(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	approver := uuid.New()
	tx := &mockTx{}

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.authorizer.EXPECT().RequireCentralBank(ctx, approver).Return(apperror.ErrUnauthorizedApprover())
	d.entryRepo.EXPECT().Record(ctx, gomock.Any()).Return(nil)

	_, err := d.svc.Issue(ctx, ports.IssueRequest{ToAccount: "bank-a", Amount: 100, ApprovedBy: approver})
	requireAppError(t, err, "AUTH_005")
}

func TestLedgerService_Issue_BlacklistedRecipient(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	approver := uuid.New()
	tx := &mockTx{}

	account := activeAccount("bad-actor", 0)
	account.Status = domain.AccountStatusBlacklisted

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.authorizer.EXPECT().RequireCentralBank(ctx, approver).Return(nil)
	d.accountRepo.EXPECT().GetForUpdate(ctx, tx, "bad-actor").Return(account, nil)
	d.entryRepo.EXPECT().Record(ctx, gomock.Any()).Return(nil)

	_, err := d.svc.Issue(ctx, ports.IssueRequest{ToAccount: "bad-actor", Amount: 100, ApprovedBy: approver})
	requireAppError(t, err, "LED_003")
}

// ==================== Redeem Tests ====================

func TestLedgerService_Redeem_Success(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	approver := uuid.New()
	tx := &mockTx{}

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.authorizer.EXPECT().RequireCentralBank(ctx, approver).Return(nil)
	d.accountRepo.EXPECT().GetForUpdate(ctx, tx, "bank-a").Return(activeAccount("bank-a", 1000), nil)
	d.supplyRepo.EXPECT().GetForUpdate(ctx, tx).Return(int64(5000), int64(0), nil)
	d.accountRepo.EXPECT().UpdateBalance(ctx, tx, "bank-a", int64(700)).Return(nil)
	d.supplyRepo.EXPECT().Add(ctx, tx, int64(0), int64(300)).Return(nil)
	d.entryRepo.EXPECT().Append(ctx, tx, gomock.Any()).Return(nil)

	entry, err := d.svc.Redeem(ctx, ports.RedeemRequest{FromAccount: "bank-a", Amount: 300, ApprovedBy: approver})
	require.NoError(t, err)
	assert.Equal(t, domain.EntryKindRedeemBurn, entry.Kind)
	assert.True(t, entry.IsConfirmed())
}

func TestLedgerService_Redeem_InsufficientBalance(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	approver := uuid.New()
	tx := &mockTx{}

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.authorizer.EXPECT().RequireCentralBank(ctx, approver).Return(nil)
	d.accountRepo.EXPECT().GetForUpdate(ctx, tx, "bank-a").Return(activeAccount("bank-a", 100), nil)
	d.entryRepo.EXPECT().Record(ctx, gomock.Any()).Return(nil)

	_, err := d.svc.Redeem(ctx, ports.RedeemRequest{FromAccount: "bank-a", Amount: 300, ApprovedBy: approver})
	requireAppError(t, err, "LED_001")
}

// ==================== Transfer Tests ====================

func TestLedgerService_Transfer_Success(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}

	// Accounts lock in ascending ID order regardless of direction.
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	gomock.InOrder(
		d.accountRepo.EXPECT().GetForUpdate(ctx, tx, "wallet-alice").Return(activeAccount("wallet-alice", 200), nil),
		d.accountRepo.EXPECT().GetForUpdate(ctx, tx, "wallet-bob").Return(activeAccount("wallet-bob", 1000), nil),
	)
	d.entryRepo.EXPECT().SumOutflowSince(ctx, tx, "wallet-bob", gomock.Any()).Return(int64(0), nil)
	d.accountRepo.EXPECT().UpdateBalance(ctx, tx, "wallet-bob", int64(700)).Return(nil)
	d.accountRepo.EXPECT().UpdateBalance(ctx, tx, "wallet-alice", int64(500)).Return(nil)
	d.entryRepo.EXPECT().Append(ctx, tx, gomock.Any()).Return(nil)

	entry, err := d.svc.Transfer(ctx, ports.TransferRequest{
		FromAccount: "wallet-bob",
		ToAccount:   "wallet-alice",
		Amount:      300,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.EntryKindTransfer, entry.Kind)
	assert.True(t, entry.IsConfirmed())
}

func TestLedgerService_Transfer_SelfTransfer(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.entryRepo.EXPECT().Record(ctx, gomock.Any()).Return(nil)

	_, err := d.svc.Transfer(ctx, ports.TransferRequest{
		FromAccount: "wallet-bob", ToAccount: "wallet-bob", Amount: 100,
	})
	requireAppError(t, err, "LED_007")
}

func TestLedgerService_Transfer_FrozenSender(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}

	frozen := activeAccount("wallet-bob", 1000)
	frozen.Status = domain.AccountStatusFrozen

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.accountRepo.EXPECT().GetForUpdate(ctx, tx, "wallet-alice").Return(activeAccount("wallet-alice", 0), nil)
	d.accountRepo.EXPECT().GetForUpdate(ctx, tx, "wallet-bob").Return(frozen, nil)
	d.entryRepo.EXPECT().Record(ctx, gomock.Any()).Return(nil)

	_, err := d.svc.Transfer(ctx, ports.TransferRequest{
		FromAccount: "wallet-bob", ToAccount: "wallet-alice", Amount: 100,
	})
	requireAppError(t, err, "LED_002")
}

func TestLedgerService_Transfer_FrozenRecipientStillReceives(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}

	frozen := activeAccount("wallet-alice", 50)
	frozen.Status = domain.AccountStatusFrozen

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.accountRepo.EXPECT().GetForUpdate(ctx, tx, "wallet-alice").Return(frozen, nil)
	d.accountRepo.EXPECT().GetForUpdate(ctx, tx, "wallet-bob").Return(activeAccount("wallet-bob", 1000), nil)
	d.entryRepo.EXPECT().SumOutflowSince(ctx, tx, "wallet-bob", gomock.Any()).Return(int64(0), nil)
	d.accountRepo.EXPECT().UpdateBalance(ctx, tx, "wallet-bob", int64(900)).Return(nil)
	d.accountRepo.EXPECT().UpdateBalance(ctx, tx, "wallet-alice", int64(150)).Return(nil)
	d.entryRepo.EXPECT().Append(ctx, tx, gomock.Any()).Return(nil)

	_, err := d.svc.Transfer(ctx, ports.TransferRequest{
		FromAccount: "wallet-bob", ToAccount: "wallet-alice", Amount: 100,
	})
	require.NoError(t, err)
}

func TestLedgerService_Transfer_DailyLimitExceeded(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}

	sender := activeAccount("wallet-bob", 100_000_00)
	sender.Tier = 0 // limit 50_000_00

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.accountRepo.EXPECT().GetForUpdate(ctx, tx, "wallet-alice").Return(activeAccount("wallet-alice", 0), nil)
	d.accountRepo.EXPECT().GetForUpdate(ctx, tx, "wallet-bob").Return(sender, nil)
	d.entryRepo.EXPECT().SumOutflowSince(ctx, tx, "wallet-bob", gomock.Any()).Return(int64(49_950_00), nil)
	d.entryRepo.EXPECT().Record(ctx, gomock.Any()).Return(nil)

	_, err := d.svc.Transfer(ctx, ports.TransferRequest{
		FromAccount: "wallet-bob", ToAccount: "wallet-alice", Amount: 100_00,
	})
	requireAppError(t, err, "LED_005")
}

func TestLedgerService_Transfer_RecipientNotFound(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.accountRepo.EXPECT().GetForUpdate(ctx, tx, "wallet-alice").Return(nil, nil)
	d.accountRepo.EXPECT().GetForUpdate(ctx, tx, "wallet-bob").Return(activeAccount("wallet-bob", 1000), nil)
	d.entryRepo.EXPECT().Record(ctx, gomock.Any()).Return(nil)

	_, err := d.svc.Transfer(ctx, ports.TransferRequest{
		FromAccount: "wallet-bob", ToAccount: "wallet-alice", Amount: 100,
	})
	requireAppError(t, err, "LED_004")
}

func TestLedgerService_Transfer_ConcurrentConflict(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.accountRepo.EXPECT().GetForUpdate(ctx, tx, "wallet-alice").Return(nil, domain.ErrConflict)
	d.entryRepo.EXPECT().Record(ctx, gomock.Any()).Return(nil)

	_, err := d.svc.Transfer(ctx, ports.TransferRequest{
		FromAccount: "wallet-bob", ToAccount: "wallet-alice", Amount: 100,
	})
	requireAppError(t, err, "LED_006")
}

// ==================== Status Transition Tests ====================

func TestLedgerService_Freeze_Success(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	approver := uuid.New()
	tx := &mockTx{}

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.authorizer.EXPECT().RequireCentralBank(ctx, approver).Return(nil)
	d.accountRepo.EXPECT().GetForUpdate(ctx, tx, "wallet-bob").Return(activeAccount("wallet-bob", 100), nil)
	d.accountRepo.EXPECT().UpdateStatus(ctx, tx, "wallet-bob", domain.AccountStatusFrozen).Return(nil)
	d.entryRepo.EXPECT().Append(ctx, tx, gomock.Any()).Return(nil)

	account, err := d.svc.Freeze(ctx, ports.StatusRequest{AccountID: "wallet-bob", Reason: "court order", ApprovedBy: approver})
	require.NoError(t, err)
	assert.Equal(t, domain.AccountStatusFrozen, account.Status)
}

func TestLedgerService_Freeze_Idempotent(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	approver := uuid.New()
	tx := &mockTx{}

	frozen := activeAccount("wallet-bob", 100)
	frozen.Status = domain.AccountStatusFrozen

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.authorizer.EXPECT().RequireCentralBank(ctx, approver).Return(nil)
	d.accountRepo.EXPECT().GetForUpdate(ctx, tx, "wallet-bob").Return(frozen, nil)
	// No UpdateStatus call: already frozen, but the attempt is still audited.
	d.entryRepo.EXPECT().Append(ctx, tx, gomock.Any()).Return(nil)

	account, err := d.svc.Freeze(ctx, ports.StatusRequest{AccountID: "wallet-bob", ApprovedBy: approver})
	require.NoError(t, err)
	assert.Equal(t, domain.AccountStatusFrozen, account.Status)
}

func TestLedgerService_Unfreeze_BlacklistedRejected(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	approver := uuid.New()
	tx := &mockTx{}

	blacklisted := activeAccount("bad-actor", 0)
	blacklisted.Status = domain.AccountStatusBlacklisted

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.authorizer.EXPECT().RequireCentralBank(ctx, approver).Return(nil)
	d.accountRepo.EXPECT().GetForUpdate(ctx, tx, "bad-actor").Return(blacklisted, nil)
	d.entryRepo.EXPECT().Record(ctx, gomock.Any()).Return(nil)

	_, err := d.svc.Unfreeze(ctx, ports.StatusRequest{AccountID: "bad-actor", ApprovedBy: approver})
	requireAppError(t, err, "LED_003")
}

func TestLedgerService_Blacklist_Idempotent(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	approver := uuid.New()
	tx := &mockTx{}

	blacklisted := activeAccount("bad-actor", 0)
	blacklisted.Status = domain.AccountStatusBlacklisted

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.authorizer.EXPECT().RequireCentralBank(ctx, approver).Return(nil)
	d.accountRepo.EXPECT().GetForUpdate(ctx, tx, "bad-actor").Return(blacklisted, nil)
	d.entryRepo.EXPECT().Append(ctx, tx, gomock.Any()).Return(nil)

	account, err := d.svc.Blacklist(ctx, ports.StatusRequest{AccountID: "bad-actor", ApprovedBy: approver})
	require.NoError(t, err)
	assert.Equal(t, domain.AccountStatusBlacklisted, account.Status)
}

// ==================== Account Tests ====================

func TestLedgerService_CreateAccount_Success(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()

	d.accountRepo.EXPECT().GetByID(ctx, "wallet-carol").Return(nil, nil)
	d.accountRepo.EXPECT().Create(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, account *domain.Account) error {
			assert.Equal(t, domain.AccountStatusActive, account.Status)
			assert.Equal(t, int64(0), account.Balance)
			return nil
		})

	account, err := d.svc.CreateAccount(ctx, ports.CreateAccountRequest{
		AccountID:      "wallet-carol",
		OwnerID:        "carol",
		IntermediaryID: "bank-a",
		Type:           domain.AccountTypeIndividual,
		Tier:           1,
		KYCLevel:       1,
	})
	require.NoError(t, err)
	assert.Equal(t, "wallet-carol", account.ID)
}

func TestLedgerService_CreateAccount_AlreadyExists(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()

	d.accountRepo.EXPECT().GetByID(ctx, "wallet-carol").Return(activeAccount("wallet-carol", 0), nil)

	_, err := d.svc.CreateAccount(ctx, ports.CreateAccountRequest{
		AccountID: "wallet-carol", Type: domain.AccountTypeIndividual, Tier: 1,
	})
	requireAppError(t, err, "LED_008")
}

func TestLedgerService_CreateAccount_UnknownTier(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	_, err := d.svc.CreateAccount(context.Background(), ports.CreateAccountRequest{
		AccountID: "wallet-carol", Type: domain.AccountTypeIndividual, Tier: 9,
	})
	requireAppError(t, err, "OFF_005")
}

func TestLedgerService_GetAccount_NotFound(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	d.accountRepo.EXPECT().GetByID(ctx, "wallet-ghost").Return(nil, nil)

	_, err := d.svc.GetAccount(ctx, "wallet-ghost")
	requireAppError(t, err, "LED_004")
}

// requireAppError asserts that err is an AppError with the given code.
func requireAppError(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	appErr, ok := err.(*apperror.AppError)
	require.True(t, ok, "expected *apperror.AppError, got %T", err)
	assert.Equal(t, code, appErr.Code)
}
