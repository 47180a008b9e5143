package handler

import (
	"context"
	"time"

	"cbdc-ledger/internal/adapter/http/dto"
	"cbdc-ledger/internal/core/domain"
	"cbdc-ledger/internal/core/ports"
	"cbdc-ledger/pkg/apperror"
	"cbdc-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// LedgerHandler handles central-bank ledger operations: mint, burn, and
// account status transitions.
type LedgerHandler struct {
	ledgerSvc ports.LedgerService
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(ledgerSvc ports.LedgerService) *LedgerHandler {
	return &LedgerHandler{ledgerSvc: ledgerSvc}
}

// Issue handles POST /api/v1/ledger/issue.
func (h *LedgerHandler) Issue(c *gin.Context) {
	approverID, ok := callerID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.IssueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	entry, err := h.ledgerSvc.Issue(c.Request.Context(), ports.IssueRequest{
		ToAccount:  req.ToAccount,
		Amount:     req.Amount,
		Reason:     req.Reason,
		ApprovedBy: approverID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, toEntryResponse(entry))
}

// Redeem handles POST /api/v1/ledger/redeem.
func (h *LedgerHandler) Redeem(c *gin.Context) {
	approverID, ok := callerID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.RedeemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	entry, err := h.ledgerSvc.Redeem(c.Request.Context(), ports.RedeemRequest{
		FromAccount: req.FromAccount,
		Amount:      req.Amount,
		Reason:      req.Reason,
		ApprovedBy:  approverID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, toEntryResponse(entry))
}

// Freeze handles POST /api/v1/accounts/:id/freeze.
func (h *LedgerHandler) Freeze(c *gin.Context) {
	h.statusAction(c, h.ledgerSvc.Freeze)
}

// Unfreeze handles POST /api/v1/accounts/:id/unfreeze.
func (h *LedgerHandler) Unfreeze(c *gin.Context) {
	h.statusAction(c, h.ledgerSvc.Unfreeze)
}

// Blacklist handles POST /api/v1/accounts/:id/blacklist.
func (h *LedgerHandler) Blacklist(c *gin.Context) {
	h.statusAction(c, h.ledgerSvc.Blacklist)
}

func (h *LedgerHandler) statusAction(c *gin.Context, action func(context.Context, ports.StatusRequest) (*domain.Account, error)) {
	approverID, ok := callerID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.StatusActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	account, err := action(c.Request.Context(), ports.StatusRequest{
		AccountID:  c.Param("id"),
		Reason:     req.Reason,
		ApprovedBy: approverID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toAccountResponse(account))
}

// toEntryResponse converts domain.LedgerEntry to DTO.
func toEntryResponse(entry *domain.LedgerEntry) dto.EntryResponse {
	return dto.EntryResponse{
		ID:          entry.ID.String(),
		Kind:        string(entry.Kind),
		FromAccount: entry.FromAccount,
		ToAccount:   entry.ToAccount,
		Amount:      entry.Amount,
		Status:      string(entry.Status),
		Reason:      entry.Reason,
		Channel:     entry.Channel,
		CreatedAt:   entry.CreatedAt.Format(time.RFC3339),
	}
}
