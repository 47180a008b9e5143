package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccount_CanOriginate(t *testing.T) {
	cases := []struct {
		status AccountStatus
		want   bool
	}{
		{AccountStatusActive, true},
		{AccountStatusFrozen, false},
		{AccountStatusBlacklisted, false},
	}
	for _, tc := range cases {
		a := &Account{Status: tc.status}
		assert.Equal(t, tc.want, a.CanOriginate(), "status %s", tc.status)
	}
}

func TestAccount_CanReceive(t *testing.T) {
	frozen := &Account{Status: AccountStatusFrozen}
	assert.True(t, frozen.CanReceive(), "frozen accounts still receive")

	blacklisted := &Account{Status: AccountStatusBlacklisted}
	assert.False(t, blacklisted.CanReceive())
}

func TestVoucher_CanonicalPayload(t *testing.T) {
	v := &Voucher{
		SignerAccountID: "wallet-alice",
		Amount:          2500,
		Nonce:           42,
		TargetLedgerID:  "cbdc-ledger-main",
	}
	assert.Equal(t, "wallet-alice|2500|42|cbdc-ledger-main", string(v.CanonicalPayload()))
}

func TestVoucher_CanonicalPayloadExcludesSignature(t *testing.T) {
	a := &Voucher{SignerAccountID: "w", Amount: 1, Nonce: 1, TargetLedgerID: "l", Signature: "aa"}
	b := &Voucher{SignerAccountID: "w", Amount: 1, Nonce: 1, TargetLedgerID: "l", Signature: "bb"}
	assert.Equal(t, a.CanonicalPayload(), b.CanonicalPayload())
}

func TestLedgerEntry_CountsTowardDailyLimit(t *testing.T) {
	cases := []struct {
		kind   EntryKind
		status EntryStatus
		want   bool
	}{
		{EntryKindTransfer, EntryStatusConfirmed, true},
		{EntryKindVoucherSettle, EntryStatusConfirmed, true},
		{EntryKindTransfer, EntryStatusRejected, false},
		{EntryKindMint, EntryStatusConfirmed, false},
		{EntryKindOfflineFund, EntryStatusConfirmed, false},
		{EntryKindFreeze, EntryStatusConfirmed, false},
	}
	for _, tc := range cases {
		e := &LedgerEntry{Kind: tc.kind, Status: tc.status}
		assert.Equal(t, tc.want, e.CountsTowardDailyLimit(), "%s/%s", tc.kind, tc.status)
	}
}

func TestPolicyTable_ForTier(t *testing.T) {
	table := PolicyTable{
		0: {DailyTransferLimit: 100, OfflineMaxBalance: 10, OfflineTxLimit: 5, OfflineVoucherTTL: time.Hour},
	}

	p, err := table.ForTier(0)
	require.NoError(t, err)
	assert.Equal(t, int64(100), p.DailyTransferLimit)

	_, err = table.ForTier(3)
	assert.Error(t, err)
}

func TestTierPolicy_AllowsOffline(t *testing.T) {
	assert.True(t, TierPolicy{OfflineMaxBalance: 1}.AllowsOffline())
	assert.False(t, TierPolicy{OfflineMaxBalance: 0}.AllowsOffline())
}

func TestIntermediary_IsCentralBank(t *testing.T) {
	cb := &Intermediary{Role: RoleCentralBank}
	assert.True(t, cb.IsCentralBank())

	bank := &Intermediary{Role: RoleIntermediary}
	assert.False(t, bank.IsCentralBank())
}

func TestIntermediary_IsActive(t *testing.T) {
	assert.True(t, (&Intermediary{Status: IntermediaryStatusActive}).IsActive())
	assert.False(t, (&Intermediary{Status: IntermediaryStatusSuspended}).IsActive())
}
