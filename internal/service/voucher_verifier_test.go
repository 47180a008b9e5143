package service

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"testing"

	"cbdc-ledger/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedVoucher(t *testing.T, priv ed25519.PrivateKey, v domain.Voucher) domain.Voucher {
	t.Helper()
	sig := ed25519.Sign(priv, v.CanonicalPayload())
	v.Signature = hex.EncodeToString(sig)
	return v
}

func TestVoucherVerifier_ValidSignature(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	v := signedVoucher(t, priv, domain.Voucher{
		SignerAccountID: "wallet-alice",
		Amount:          150_00,
		Nonce:           42,
		TargetLedgerID:  "cbdc-ledger-test",
	})

	verifier := NewVoucherVerifier()
	assert.NoError(t, verifier.Verify(hex.EncodeToString(pub), &v))
}

func TestVoucherVerifier_TamperedAmount(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	v := signedVoucher(t, priv, domain.Voucher{
		SignerAccountID: "wallet-alice",
		Amount:          150_00,
		Nonce:           42,
		TargetLedgerID:  "cbdc-ledger-test",
	})
	v.Amount = 999_00

	verifier := NewVoucherVerifier()
	requireAppError(t, verifier.Verify(hex.EncodeToString(pub), &v), "OFF_001")
}

func TestVoucherVerifier_WrongKey(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	otherPub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	v := signedVoucher(t, priv, domain.Voucher{
		SignerAccountID: "wallet-alice",
		Amount:          10_00,
		Nonce:           1,
		TargetLedgerID:  "cbdc-ledger-test",
	})

	verifier := NewVoucherVerifier()
	requireAppError(t, verifier.Verify(hex.EncodeToString(otherPub), &v), "OFF_001")
}

func TestVoucherVerifier_MalformedInputs(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	verifier := NewVoucherVerifier()
	v := &domain.Voucher{SignerAccountID: "wallet-alice", Amount: 1, Nonce: 1, Signature: "zz-not-hex"}

	requireAppError(t, verifier.Verify("zz-not-hex", v), "OFF_001")
	requireAppError(t, verifier.Verify("aabb", v), "OFF_001") // key too short
	requireAppError(t, verifier.Verify(hex.EncodeToString(pub), v), "OFF_001")
}
