package domain

import (
	"fmt"
	"time"
)

// Voucher is an offline-authorized spend instruction. It is ephemeral: nothing
// is stored until redemption, when the (signer, nonce) pair is consumed forever.
type Voucher struct {
	SignerAccountID string `json:"signer_account_id"`
	Amount          int64  `json:"amount"`
	Nonce           uint64 `json:"nonce"` // Monotonic per signer, caller-chosen
	TargetLedgerID  string `json:"target_ledger_id"`
	Signature       string `json:"signature"` // Hex-encoded ed25519 over CanonicalPayload
}

// CanonicalPayload builds the byte-exact message the holder's device signed.
// Format: SIGNER|AMOUNT|NONCE|LEDGER_ID.
func (v *Voucher) CanonicalPayload() []byte {
	return []byte(fmt.Sprintf("%s|%d|%d|%s", v.SignerAccountID, v.Amount, v.Nonce, v.TargetLedgerID))
}

// NonceRecord marks a consumed voucher nonce. Once present the pair can never
// be redeemed again.
type NonceRecord struct {
	AccountID  string    `json:"account_id"`
	Nonce      uint64    `json:"nonce"`
	RedeemedAt time.Time `json:"redeemed_at"`
}
