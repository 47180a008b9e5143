package service

import (
	"context"
	"testing"
	"time"

	"cbdc-ledger/internal/core/domain"
	"cbdc-ledger/internal/core/ports/mocks"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func testIntermediary(role domain.IntermediaryRole) *domain.Intermediary {
	return &domain.Intermediary{
		ID:        uuid.New(),
		Username:  "operator",
		Role:      role,
		AccountID: "bank-a",
		Status:    domain.IntermediaryStatusActive,
		CreatedAt: time.Now().UTC(),
	}
}

func TestAuthorizer_CentralBankAllowed(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := mocks.NewMockIntermediaryRepository(ctrl)
	cb := testIntermediary(domain.RoleCentralBank)
	repo.EXPECT().GetByID(gomock.Any(), cb.ID).Return(cb, nil)

	a := NewAuthorizer(repo)
	require.NoError(t, a.RequireCentralBank(context.Background(), cb.ID))
}

func TestAuthorizer_IntermediaryDenied(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := mocks.NewMockIntermediaryRepository(ctrl)
	bank := testIntermediary(domain.RoleIntermediary)
	repo.EXPECT().GetByID(gomock.Any(), bank.ID).Return(bank, nil)

	a := NewAuthorizer(repo)
	requireAppError(t, a.RequireCentralBank(context.Background(), bank.ID), "AUTH_005")
}

func TestAuthorizer_UnknownApproverDenied(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := mocks.NewMockIntermediaryRepository(ctrl)
	id := uuid.New()
	repo.EXPECT().GetByID(gomock.Any(), id).Return(nil, nil)

	a := NewAuthorizer(repo)
	requireAppError(t, a.RequireCentralBank(context.Background(), id), "AUTH_005")
}

func TestAuthorizer_SuspendedDenied(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := mocks.NewMockIntermediaryRepository(ctrl)
	cb := testIntermediary(domain.RoleCentralBank)
	cb.Status = domain.IntermediaryStatusSuspended
	repo.EXPECT().GetByID(gomock.Any(), cb.ID).Return(cb, nil)

	a := NewAuthorizer(repo)
	requireAppError(t, a.RequireCentralBank(context.Background(), cb.ID), "AUTH_004")
}
