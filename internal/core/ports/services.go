package ports

import (
	"context"
	"time"

	"cbdc-ledger/internal/core/domain"

	"github.com/google/uuid"
)

//go:generate mockgen -source=services.go -destination=mocks/services.go -package=mocks

// EncryptionService handles AES-256-GCM encryption/decryption of secrets at rest.
type EncryptionService interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// SignatureService handles HMAC-SHA256 signing of API requests.
type SignatureService interface {
	Sign(secretKey string, payload string) string
	Verify(secretKey string, payload string, signature string) bool
	BuildCanonicalString(method, path string, timestamp int64, nonce string, body string) string
}

// VoucherVerifier validates that a voucher payload was signed by the holder's
// registered device key.
type VoucherVerifier interface {
	Verify(publicKeyHex string, voucher *domain.Voucher) error
}

// HashService handles password hashing (Argon2id).
type HashService interface {
	Hash(password string) (string, error)
	Verify(password string, hash string) (bool, error)
}

// TokenService handles JWT token operations for operator dashboards.
type TokenService interface {
	Generate(intermediaryID uuid.UUID, role domain.IntermediaryRole) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	IntermediaryID uuid.UUID
	Role           domain.IntermediaryRole
}

// NonceStore manages single-use API request nonces for HMAC replay protection.
// This is distinct from the durable voucher NonceRepository.
type NonceStore interface {
	// CheckAndSet atomically checks if nonce exists, sets it if not.
	// Returns true if nonce is new (valid), false if already used.
	CheckAndSet(ctx context.Context, callerID string, nonce string, ttl time.Duration) (bool, error)
}

// Authorizer verifies caller-asserted approver roles against the registry.
// Ledger operations never trust the caller's claim without this check.
type Authorizer interface {
	RequireCentralBank(ctx context.Context, approverID uuid.UUID) error
}

// --- Service Ports (Business Logic) ---

// LedgerService is the transactional core: every operation either fully
// applies and logs CONFIRMED, or applies nothing and logs REJECTED.
type LedgerService interface {
	Issue(ctx context.Context, req IssueRequest) (*domain.LedgerEntry, error)
	Redeem(ctx context.Context, req RedeemRequest) (*domain.LedgerEntry, error)
	Transfer(ctx context.Context, req TransferRequest) (*domain.LedgerEntry, error)
	Freeze(ctx context.Context, req StatusRequest) (*domain.Account, error)
	Unfreeze(ctx context.Context, req StatusRequest) (*domain.Account, error)
	Blacklist(ctx context.Context, req StatusRequest) (*domain.Account, error)
	CreateAccount(ctx context.Context, req CreateAccountRequest) (*domain.Account, error)
	GetAccount(ctx context.Context, id string) (*domain.Account, error)
}

// IssueRequest mints new currency to an account. Central-bank only.
type IssueRequest struct {
	ToAccount  string
	Amount     int64
	Reason     string
	ApprovedBy uuid.UUID
}

// RedeemRequest burns currency from an account. Central-bank only.
type RedeemRequest struct {
	FromAccount string
	Amount      int64
	Reason      string
	ApprovedBy  uuid.UUID
}

// TransferRequest moves value between two accounts.
type TransferRequest struct {
	FromAccount string
	ToAccount   string
	Amount      int64
	Channel     string
}

// StatusRequest drives freeze/unfreeze/blacklist transitions.
type StatusRequest struct {
	AccountID  string
	Reason     string
	ApprovedBy uuid.UUID
}

// CreateAccountRequest provisions a wallet for an intermediary's customer.
type CreateAccountRequest struct {
	AccountID      string
	OwnerID        string
	IntermediaryID string
	Type           domain.AccountType
	Tier           int16
	KYCLevel       int16
}

// SettlementService converts offline vouchers into online balance movements
// exactly once, and manages offline spend capacity.
type SettlementService interface {
	RegisterDevice(ctx context.Context, req RegisterDeviceRequest) (*domain.OfflinePurse, error)
	FundOfflineCapacity(ctx context.Context, req FundOfflineRequest) (*domain.OfflinePurse, error)
	Settle(ctx context.Context, req SettleRequest) (*domain.LedgerEntry, error)
	Reconcile(ctx context.Context, req ReconcileRequest) (*ReconcileResult, error)
}

// RegisterDeviceRequest binds a voucher-signing device key to an account.
type RegisterDeviceRequest struct {
	AccountID string
	DeviceID  string
	PublicKey string // Hex-encoded ed25519
}

// FundOfflineRequest tops up an account's offline allowance from its balance.
type FundOfflineRequest struct {
	AccountID string
	Amount    int64
}

// SettleRequest presents a voucher for online settlement. Value lands with
// the beneficiary the presenter names.
type SettleRequest struct {
	Voucher            domain.Voucher
	BeneficiaryAccount string
	PresentedBy        string
}

// ReconcileRequest settles a batch of vouchers collected by a relay.
type ReconcileRequest struct {
	Vouchers           []domain.Voucher
	BeneficiaryAccount string
	PresentedBy        string
}

// ReconcileResult reports per-voucher outcomes of a batch settlement.
type ReconcileResult struct {
	Settled  []domain.LedgerEntry
	Failures []ReconcileFailure
}

// ReconcileFailure describes one rejected voucher in a batch.
type ReconcileFailure struct {
	Nonce  uint64
	Code   string
	Reason string
}

// AuthService defines operator authentication and intermediary onboarding.
type AuthService interface {
	Onboard(ctx context.Context, req OnboardRequest) (*OnboardResponse, error)
	Login(ctx context.Context, username, password string) (string, time.Time, error)
}

// OnboardRequest registers a new intermediary. Central-bank only.
type OnboardRequest struct {
	Username   string
	Password   string
	Name       string
	AccountID  string
	ApprovedBy uuid.UUID
}

// OnboardResponse holds credentials shown once at onboarding.
type OnboardResponse struct {
	IntermediaryID uuid.UUID
	AccountID      string
	AccessKey      string
	SecretKey      string // Plaintext, shown only here
}

// ReportingService exposes the audit log and supply totals to dashboards.
type ReportingService interface {
	ListEntries(ctx context.Context, params LedgerListParams) ([]domain.LedgerEntry, string, error)
	GetStats(ctx context.Context, params LedgerStatsParams) (*LedgerStats, error)
	GetSupply(ctx context.Context) (minted int64, redeemed int64, err error)
}
