package domain

import "time"

// AccountStatus represents the governance state of a ledger account.
type AccountStatus string

const (
	AccountStatusActive      AccountStatus = "ACTIVE"
	AccountStatusFrozen      AccountStatus = "FROZEN"
	AccountStatusBlacklisted AccountStatus = "BLACKLISTED"
)

// AccountType classifies who holds the account.
type AccountType string

const (
	AccountTypeCentralBank  AccountType = "CENTRAL_BANK"
	AccountTypeIntermediary AccountType = "INTERMEDIARY"
	AccountTypeIndividual   AccountType = "INDIVIDUAL"
	AccountTypeMerchant     AccountType = "MERCHANT"
)

// Account is a ledger account holding digital currency.
// Balance is in minor currency units and never negative.
// Accounts are never deleted; governance happens through status transitions.
type Account struct {
	ID             string        `json:"id"`
	OwnerID        string        `json:"owner_id"` // Pseudonymous owner reference
	IntermediaryID string        `json:"intermediary_id"`
	Type           AccountType   `json:"type"`
	Tier           int16         `json:"tier"` // 0, 1 or 2
	Balance        int64         `json:"balance"`
	Status         AccountStatus `json:"status"`
	KYCLevel       int16         `json:"kyc_level"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// CanOriginate returns true if the account may send value.
// FROZEN accounts can still receive, but never originate.
func (a *Account) CanOriginate() bool {
	return a.Status == AccountStatusActive
}

// CanReceive returns true if the account may be credited.
// Blacklisting is terminal: a blacklisted account never receives value again.
func (a *Account) CanReceive() bool {
	return a.Status != AccountStatusBlacklisted
}
