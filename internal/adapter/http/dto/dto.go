package dto

// LoginRequest is the request body for operator login.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse is the response body for successful login.
type LoginResponse struct {
	Token  string `json:"token"`
	Expiry int64  `json:"expiry"` // Unix timestamp
}

// OnboardIntermediaryRequest registers a new intermediary. Central-bank only.
type OnboardIntermediaryRequest struct {
	Username  string `json:"username" binding:"required,min=3,max=50"`
	Password  string `json:"password" binding:"required,min=8,max=128"`
	Name      string `json:"name" binding:"required,min=1,max=100"`
	AccountID string `json:"account_id" binding:"required,max=64,safe_id"`
}

// OnboardIntermediaryResponse carries credentials shown once at onboarding.
type OnboardIntermediaryResponse struct {
	IntermediaryID string `json:"intermediary_id"`
	AccountID      string `json:"account_id"`
	AccessKey      string `json:"access_key"`
	SecretKey      string `json:"secret_key"`
}

// CreateWalletRequest provisions a ledger account for a customer.
type CreateWalletRequest struct {
	AccountID string `json:"account_id" binding:"required,max=64,safe_id"`
	OwnerID   string `json:"owner_id" binding:"required,max=64,safe_id"`
	Type      string `json:"type" binding:"required,oneof=INDIVIDUAL MERCHANT"`
	Tier      int16  `json:"tier" binding:"gte=0,lte=2"`
	KYCLevel  int16  `json:"kyc_level" binding:"gte=0,lte=2"`
}

// IssueRequest mints currency to an account. Central-bank only.
type IssueRequest struct {
	ToAccount string `json:"to_account" binding:"required,max=64,safe_id"`
	Amount    int64  `json:"amount" binding:"required,gt=0"`
	Reason    string `json:"reason" binding:"max=255"`
}

// RedeemRequest burns currency from an account. Central-bank only.
type RedeemRequest struct {
	FromAccount string `json:"from_account" binding:"required,max=64,safe_id"`
	Amount      int64  `json:"amount" binding:"required,gt=0"`
	Reason      string `json:"reason" binding:"max=255"`
}

// TransferRequest moves value between two accounts.
type TransferRequest struct {
	FromAccount string `json:"from_account" binding:"required,max=64,safe_id"`
	ToAccount   string `json:"to_account" binding:"required,max=64,safe_id"`
	Amount      int64  `json:"amount" binding:"required,gt=0"`
	Channel     string `json:"channel" binding:"max=32"`
}

// StatusActionRequest drives freeze/unfreeze/blacklist transitions.
type StatusActionRequest struct {
	Reason string `json:"reason" binding:"required,max=255"`
}

// RegisterDeviceRequest binds a voucher-signing device key to an account.
type RegisterDeviceRequest struct {
	AccountID string `json:"account_id" binding:"required,max=64,safe_id"`
	DeviceID  string `json:"device_id" binding:"required,max=64,safe_id"`
	PublicKey string `json:"public_key" binding:"required,len=64,hexadecimal"`
}

// FundOfflineRequest tops up an account's offline allowance.
type FundOfflineRequest struct {
	AccountID string `json:"account_id" binding:"required,max=64,safe_id"`
	Amount    int64  `json:"amount" binding:"required,gt=0"`
}

// VoucherPayload is the wire form of an offline voucher.
type VoucherPayload struct {
	SignerAccountID string `json:"signer_account_id" binding:"required,max=64,safe_id"`
	Amount          int64  `json:"amount" binding:"required,gt=0"`
	Nonce           uint64 `json:"nonce" binding:"required"`
	TargetLedgerID  string `json:"target_ledger_id" binding:"required,max=64"`
	Signature       string `json:"signature" binding:"required,len=128,hexadecimal"`
}

// SettleRequest presents one voucher for settlement.
type SettleRequest struct {
	Voucher            VoucherPayload `json:"voucher" binding:"required"`
	BeneficiaryAccount string         `json:"beneficiary_account" binding:"required,max=64,safe_id"`
}

// ReconcileRequest settles a batch of vouchers collected while offline.
type ReconcileRequest struct {
	Vouchers           []VoucherPayload `json:"vouchers" binding:"required,min=1,max=100,dive"`
	BeneficiaryAccount string           `json:"beneficiary_account" binding:"required,max=64,safe_id"`
}

// ReconcileResponse reports per-voucher outcomes of a batch.
type ReconcileResponse struct {
	Settled  []EntryResponse    `json:"settled"`
	Failures []ReconcileFailure `json:"failures"`
}

// ReconcileFailure describes one rejected voucher in a batch.
type ReconcileFailure struct {
	Nonce  uint64 `json:"nonce"`
	Code   string `json:"code"`
	Reason string `json:"reason"`
}

// AccountResponse is the public view of a ledger account.
type AccountResponse struct {
	ID             string `json:"id"`
	OwnerID        string `json:"owner_id"`
	IntermediaryID string `json:"intermediary_id"`
	Type           string `json:"type"`
	Tier           int16  `json:"tier"`
	Balance        int64  `json:"balance"`
	Status         string `json:"status"`
	CreatedAt      string `json:"created_at"`
}

// PurseResponse is the public view of an offline purse.
type PurseResponse struct {
	AccountID    string `json:"account_id"`
	DeviceID     string `json:"device_id"`
	Allowance    int64  `json:"allowance"`
	LastSyncedAt string `json:"last_synced_at"`
}

// EntryResponse is the public view of a ledger entry.
type EntryResponse struct {
	ID          string  `json:"id"`
	Kind        string  `json:"kind"`
	FromAccount *string `json:"from_account,omitempty"`
	ToAccount   *string `json:"to_account,omitempty"`
	Amount      int64   `json:"amount"`
	Status      string  `json:"status"`
	Reason      string  `json:"reason,omitempty"`
	Channel     string  `json:"channel,omitempty"`
	CreatedAt   string  `json:"created_at"`
}

// EntryListResponse wraps a paginated slice of ledger entries.
type EntryListResponse struct {
	Entries    []EntryResponse `json:"entries"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

// StatsResponse carries audit aggregates for dashboards.
type StatsResponse struct {
	TotalEntries   int64 `json:"total_entries"`
	Confirmed      int64 `json:"confirmed"`
	Rejected       int64 `json:"rejected"`
	TotalMinted    int64 `json:"total_minted"`
	TotalRedeemed  int64 `json:"total_redeemed"`
	TotalTransfers int64 `json:"total_transfers"`
	TotalSettled   int64 `json:"total_settled"`
}

// SupplyResponse carries the global supply counters.
type SupplyResponse struct {
	TotalMinted   int64 `json:"total_minted"`
	TotalRedeemed int64 `json:"total_redeemed"`
	Circulating   int64 `json:"circulating"`
}
