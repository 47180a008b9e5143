package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"cbdc-ledger/internal/core/domain"
	"cbdc-ledger/internal/core/ports"
	"cbdc-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// AuthServiceImpl implements ports.AuthService: intermediary onboarding and
// operator login.
type AuthServiceImpl struct {
	intermediaryRepo ports.IntermediaryRepository
	ledgerSvc        ports.LedgerService
	authorizer       ports.Authorizer
	hashSvc          ports.HashService
	encSvc           ports.EncryptionService
	tokenSvc         ports.TokenService
	log              zerolog.Logger
}

// NewAuthService creates a new AuthServiceImpl.
func NewAuthService(
	intermediaryRepo ports.IntermediaryRepository,
	ledgerSvc ports.LedgerService,
	authorizer ports.Authorizer,
	hashSvc ports.HashService,
	encSvc ports.EncryptionService,
	tokenSvc ports.TokenService,
	log zerolog.Logger,
) *AuthServiceImpl {
	return &AuthServiceImpl{
		intermediaryRepo: intermediaryRepo,
		ledgerSvc:        ledgerSvc,
		authorizer:       authorizer,
		hashSvc:          hashSvc,
		encSvc:           encSvc,
		tokenSvc:         tokenSvc,
		log:              log,
	}
}

// Onboard registers a new intermediary with its own ledger account.
// Central-bank approvers only. Returns the access/secret key pair, shown
// in plaintext only here.
func (s *AuthServiceImpl) Onboard(ctx context.Context, req ports.OnboardRequest) (*ports.OnboardResponse, error) {
	if err := s.authorizer.RequireCentralBank(ctx, req.ApprovedBy); err != nil {
		return nil, err
	}

	existing, err := s.intermediaryRepo.GetByUsername(ctx, req.Username)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("check username: %w", err))
	}
	if existing != nil {
		return nil, apperror.ErrUsernameExists()
	}

	accessKey, err := generateRandomHex(32) // 64 hex chars
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("generate access key: %w", err))
	}

	secretKey, err := generateRandomHex(32) // 64 hex chars
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("generate secret key: %w", err))
	}

	passwordHash, err := s.hashSvc.Hash(req.Password)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("hash password: %w", err))
	}

	secretKeyEnc, err := s.encSvc.Encrypt(secretKey)
	if err != nil {
		return nil, apperror.ErrEncryptionFailure(fmt.Errorf("encrypt secret key: %w", err))
	}

	now := time.Now().UTC()
	intermediary := &domain.Intermediary{
		ID:           uuid.New(),
		Username:     req.Username,
		PasswordHash: passwordHash,
		Name:         req.Name,
		Role:         domain.RoleIntermediary,
		AccountID:    req.AccountID,
		AccessKey:    accessKey,
		SecretKeyEnc: secretKeyEnc,
		Status:       domain.IntermediaryStatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	// The intermediary's working-liquidity account is provisioned together
	// with its credentials. Highest tier: intermediaries hold pooled funds.
	if _, err := s.ledgerSvc.CreateAccount(ctx, ports.CreateAccountRequest{
		AccountID:      req.AccountID,
		OwnerID:        req.Username,
		IntermediaryID: intermediary.ID.String(),
		Type:           domain.AccountTypeIntermediary,
		Tier:           2,
		KYCLevel:       2,
	}); err != nil {
		return nil, err
	}

	if err := s.intermediaryRepo.Create(ctx, intermediary); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create intermediary: %w", err))
	}

	s.log.Info().
		Str("intermediary", intermediary.ID.String()).
		Str("account", req.AccountID).
		Msg("intermediary onboarded")

	return &ports.OnboardResponse{
		IntermediaryID: intermediary.ID,
		AccountID:      req.AccountID,
		AccessKey:      accessKey,
		SecretKey:      secretKey,
	}, nil
}

// Login validates operator credentials and returns a JWT carrying the role.
func (s *AuthServiceImpl) Login(ctx context.Context, username, password string) (string, time.Time, error) {
	intermediary, err := s.intermediaryRepo.GetByUsername(ctx, username)
	if err != nil {
		return "", time.Time{}, apperror.InternalError(fmt.Errorf("find intermediary: %w", err))
	}
	if intermediary == nil {
		return "", time.Time{}, apperror.ErrInvalidCredentials()
	}

	valid, err := s.hashSvc.Verify(password, intermediary.PasswordHash)
	if err != nil {
		return "", time.Time{}, apperror.InternalError(fmt.Errorf("verify password: %w", err))
	}
	if !valid {
		return "", time.Time{}, apperror.ErrInvalidCredentials()
	}

	if !intermediary.IsActive() {
		return "", time.Time{}, apperror.ErrIntermediarySuspended()
	}

	token, expiry, err := s.tokenSvc.Generate(intermediary.ID, intermediary.Role)
	if err != nil {
		return "", time.Time{}, apperror.InternalError(fmt.Errorf("generate token: %w", err))
	}

	return token, expiry, nil
}

// generateRandomHex generates a random hex string of n bytes.
func generateRandomHex(n int) (string, error) {
	bytes := make([]byte, n)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}
