package service

import (
	"context"

	"cbdc-ledger/internal/core/ports"
	"cbdc-ledger/pkg/apperror"

	"github.com/google/uuid"
)

// AuthorizerImpl implements ports.Authorizer against the intermediary registry.
type AuthorizerImpl struct {
	intermediaryRepo ports.IntermediaryRepository
}

// NewAuthorizer creates a new AuthorizerImpl.
func NewAuthorizer(intermediaryRepo ports.IntermediaryRepository) *AuthorizerImpl {
	return &AuthorizerImpl{intermediaryRepo: intermediaryRepo}
}

// RequireCentralBank verifies that the approver exists, is active and holds
// the CENTRAL_BANK role. The approver ID comes from an authenticated request
// context, never from the request body alone.
func (a *AuthorizerImpl) RequireCentralBank(ctx context.Context, approverID uuid.UUID) error {
	approver, err := a.intermediaryRepo.GetByID(ctx, approverID)
	if err != nil {
		return apperror.ErrStorageUnavailable(err)
	}
	if approver == nil {
		return apperror.ErrUnauthorizedApprover()
	}
	if !approver.IsActive() {
		return apperror.ErrIntermediarySuspended()
	}
	if !approver.IsCentralBank() {
		return apperror.ErrUnauthorizedApprover()
	}
	return nil
}
