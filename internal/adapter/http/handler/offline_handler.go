package handler

import (
	"time"

	"cbdc-ledger/internal/adapter/http/dto"
	"cbdc-ledger/internal/core/domain"
	"cbdc-ledger/internal/core/ports"
	"cbdc-ledger/pkg/apperror"
	"cbdc-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// OfflineHandler handles offline purse management and voucher settlement.
type OfflineHandler struct {
	settlementSvc ports.SettlementService
}

// NewOfflineHandler creates a new OfflineHandler.
func NewOfflineHandler(settlementSvc ports.SettlementService) *OfflineHandler {
	return &OfflineHandler{settlementSvc: settlementSvc}
}

// RegisterDevice handles POST /api/v1/offline/devices.
func (h *OfflineHandler) RegisterDevice(c *gin.Context) {
	var req dto.RegisterDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	purse, err := h.settlementSvc.RegisterDevice(c.Request.Context(), ports.RegisterDeviceRequest{
		AccountID: req.AccountID,
		DeviceID:  req.DeviceID,
		PublicKey: req.PublicKey,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, toPurseResponse(purse))
}

// FundOffline handles POST /api/v1/offline/fund.
func (h *OfflineHandler) FundOffline(c *gin.Context) {
	var req dto.FundOfflineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	purse, err := h.settlementSvc.FundOfflineCapacity(c.Request.Context(), ports.FundOfflineRequest{
		AccountID: req.AccountID,
		Amount:    req.Amount,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toPurseResponse(purse))
}

// Settle handles POST /api/v1/offline/settle.
func (h *OfflineHandler) Settle(c *gin.Context) {
	presenterID, ok := callerID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidAccessKey())
		return
	}

	var req dto.SettleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	entry, err := h.settlementSvc.Settle(c.Request.Context(), ports.SettleRequest{
		Voucher:            toVoucher(req.Voucher),
		BeneficiaryAccount: req.BeneficiaryAccount,
		PresentedBy:        presenterID.String(),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, toEntryResponse(entry))
}

// Reconcile handles POST /api/v1/offline/reconcile.
func (h *OfflineHandler) Reconcile(c *gin.Context) {
	presenterID, ok := callerID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidAccessKey())
		return
	}

	var req dto.ReconcileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	vouchers := make([]domain.Voucher, 0, len(req.Vouchers))
	for _, v := range req.Vouchers {
		vouchers = append(vouchers, toVoucher(v))
	}

	result, err := h.settlementSvc.Reconcile(c.Request.Context(), ports.ReconcileRequest{
		Vouchers:           vouchers,
		BeneficiaryAccount: req.BeneficiaryAccount,
		PresentedBy:        presenterID.String(),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	settled := make([]dto.EntryResponse, 0, len(result.Settled))
	for i := range result.Settled {
		settled = append(settled, toEntryResponse(&result.Settled[i]))
	}
	failures := make([]dto.ReconcileFailure, 0, len(result.Failures))
	for _, f := range result.Failures {
		failures = append(failures, dto.ReconcileFailure{
			Nonce:  f.Nonce,
			Code:   f.Code,
			Reason: f.Reason,
		})
	}

	response.OK(c, dto.ReconcileResponse{Settled: settled, Failures: failures})
}

func toVoucher(v dto.VoucherPayload) domain.Voucher {
	return domain.Voucher{
		SignerAccountID: v.SignerAccountID,
		Amount:          v.Amount,
		Nonce:           v.Nonce,
		TargetLedgerID:  v.TargetLedgerID,
		Signature:       v.Signature,
	}
}

// toPurseResponse converts domain.OfflinePurse to DTO.
func toPurseResponse(purse *domain.OfflinePurse) dto.PurseResponse {
	return dto.PurseResponse{
		AccountID:    purse.AccountID,
		DeviceID:     purse.DeviceID,
		Allowance:    purse.Allowance,
		LastSyncedAt: purse.LastSyncedAt.Format(time.RFC3339),
	}
}
