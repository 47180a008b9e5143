package integration

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"cbdc-ledger/internal/core/domain"
	"cbdc-ledger/internal/core/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSettleRefreshesSyncAnchor verifies that a successful settlement counts
// as online contact for the voucher TTL. A holder who settles regularly but
// funds rarely must not see later vouchers rejected as expired.
func TestSettleRefreshesSyncAnchor(t *testing.T) {
	stack := newLedgerStack(t)
	stack.seedAccount(t, "wallet-grace", 1_000_00)
	stack.seedAccount(t, "wallet-heidi", 0)

	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	_, err = stack.settlementSvc.RegisterDevice(context.Background(), ports.RegisterDeviceRequest{
		AccountID: "wallet-grace",
		DeviceID:  "phone-2",
		PublicKey: hex.EncodeToString(pub),
	})
	require.NoError(t, err)
	_, err = stack.settlementSvc.FundOfflineCapacity(context.Background(), ports.FundOfflineRequest{
		AccountID: "wallet-grace",
		Amount:    600_00,
	})
	require.NoError(t, err)

	// Age the anchor well past the funding time but inside the tier-2
	// 336h TTL, as if the device last synced weeks ago.
	stale := time.Now().UTC().Add(-300 * time.Hour)
	stack.db.mu.Lock()
	stack.db.purses["wallet-grace"].LastSyncedAt = stale
	stack.db.mu.Unlock()

	payload := fmt.Sprintf("%s|%d|%d|%s", "wallet-grace", 100_00, 1, testLedgerID)
	voucher := domain.Voucher{
		SignerAccountID: "wallet-grace",
		Amount:          100_00,
		Nonce:           1,
		TargetLedgerID:  testLedgerID,
		Signature:       hex.EncodeToString(ed25519.Sign(priv, []byte(payload))),
	}
	_, err = stack.settlementSvc.Settle(context.Background(), ports.SettleRequest{
		Voucher:            voucher,
		BeneficiaryAccount: "wallet-heidi",
		PresentedBy:        "relay-1",
	})
	require.NoError(t, err)

	purseRepo := &memPurseRepo{db: stack.db}
	purse, err := purseRepo.GetByAccountID(context.Background(), "wallet-grace")
	require.NoError(t, err)
	require.NotNil(t, purse)
	assert.WithinDuration(t, time.Now().UTC(), purse.LastSyncedAt, time.Minute,
		"settlement should re-anchor the sync timestamp")

	// A second voucher signed after the long offline stretch still settles:
	// the first settlement was online contact.
	payload2 := fmt.Sprintf("%s|%d|%d|%s", "wallet-grace", 50_00, 2, testLedgerID)
	voucher2 := domain.Voucher{
		SignerAccountID: "wallet-grace",
		Amount:          50_00,
		Nonce:           2,
		TargetLedgerID:  testLedgerID,
		Signature:       hex.EncodeToString(ed25519.Sign(priv, []byte(payload2))),
	}
	_, err = stack.settlementSvc.Settle(context.Background(), ports.SettleRequest{
		Voucher:            voucher2,
		BeneficiaryAccount: "wallet-heidi",
		PresentedBy:        "relay-1",
	})
	require.NoError(t, err)

	assert.Equal(t, int64(150_00), stack.balance(t, "wallet-heidi"))
}
