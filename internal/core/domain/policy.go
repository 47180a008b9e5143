package domain

import (
	"fmt"
	"time"
)

// TierPolicy bounds what a wallet tier may do. Amounts are minor currency units.
type TierPolicy struct {
	DailyTransferLimit int64         `json:"daily_transfer_limit"`
	OfflineMaxBalance  int64         `json:"offline_max_balance"`
	OfflineTxLimit     int64         `json:"offline_tx_limit"`
	OfflineVoucherTTL  time.Duration `json:"offline_voucher_ttl"`
}

// AllowsOffline returns true if the tier may hold an offline allowance at all.
func (p TierPolicy) AllowsOffline() bool {
	return p.OfflineMaxBalance > 0
}

// PolicyTable maps wallet tiers to their limits. Configuration, not mutated by
// ledger operations.
type PolicyTable map[int16]TierPolicy

// ForTier looks up the policy for a tier.
func (t PolicyTable) ForTier(tier int16) (TierPolicy, error) {
	p, ok := t[tier]
	if !ok {
		return TierPolicy{}, fmt.Errorf("no policy defined for tier %d", tier)
	}
	return p, nil
}
