package domain

import (
	"time"

	"github.com/google/uuid"
)

// IntermediaryStatus represents the state of an intermediary.
type IntermediaryStatus string

const (
	IntermediaryStatusActive    IntermediaryStatus = "ACTIVE"
	IntermediaryStatusSuspended IntermediaryStatus = "SUSPENDED"
)

// IntermediaryRole determines which privileged operations the operator may approve.
type IntermediaryRole string

const (
	RoleCentralBank  IntermediaryRole = "CENTRAL_BANK"
	RoleIntermediary IntermediaryRole = "INTERMEDIARY"
)

// Intermediary is a regulated entity (bank/PSP) with API credentials and its
// own ledger account holding working liquidity. The central authority itself
// is modeled as an intermediary with the CENTRAL_BANK role.
type Intermediary struct {
	ID           uuid.UUID          `json:"id"`
	Username     string             `json:"username"`
	PasswordHash string             `json:"-"` // Never expose
	Name         string             `json:"name"`
	Role         IntermediaryRole   `json:"role"`
	AccountID    string             `json:"account_id"` // Its ledger account
	AccessKey    string             `json:"access_key"`
	SecretKeyEnc string             `json:"-"` // AES-encrypted, never expose
	Status       IntermediaryStatus `json:"status"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

// IsActive returns true if the intermediary may use the API.
func (i *Intermediary) IsActive() bool {
	return i.Status == IntermediaryStatusActive
}

// IsCentralBank returns true if the intermediary holds the central authority role.
func (i *Intermediary) IsCentralBank() bool {
	return i.Role == RoleCentralBank
}
