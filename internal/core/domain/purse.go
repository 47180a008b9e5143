package domain

import "time"

// OfflinePurse tracks the offline spend allowance funded for a holder's device,
// together with the device's voucher-signing public key. Funding moves value
// out of the account balance into the allowance; settlement draws it back down.
type OfflinePurse struct {
	AccountID    string    `json:"account_id"`
	DeviceID     string    `json:"device_id"`
	PublicKey    string    `json:"public_key"` // Hex-encoded ed25519
	Allowance    int64     `json:"allowance"`  // Minor units, never negative
	LastSyncedAt time.Time `json:"last_synced_at"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
