package service

import (
	"crypto/ed25519"
	"encoding/hex"

	"cbdc-ledger/internal/core/domain"
	"cbdc-ledger/pkg/apperror"
)

// VoucherVerifierImpl implements ports.VoucherVerifier using ed25519 device
// signatures over the voucher's canonical payload.
type VoucherVerifierImpl struct{}

// NewVoucherVerifier creates a new VoucherVerifierImpl.
func NewVoucherVerifier() *VoucherVerifierImpl {
	return &VoucherVerifierImpl{}
}

// Verify checks the voucher signature against the registered device key.
// Malformed keys and signatures fail the same way as wrong ones so callers
// cannot distinguish the two.
func (v *VoucherVerifierImpl) Verify(publicKeyHex string, voucher *domain.Voucher) error {
	key, err := hex.DecodeString(publicKeyHex)
	if err != nil || len(key) != ed25519.PublicKeySize {
		return apperror.ErrInvalidVoucherSignature()
	}

	sig, err := hex.DecodeString(voucher.Signature)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return apperror.ErrInvalidVoucherSignature()
	}

	if !ed25519.Verify(ed25519.PublicKey(key), voucher.CanonicalPayload(), sig) {
		return apperror.ErrInvalidVoucherSignature()
	}
	return nil
}
