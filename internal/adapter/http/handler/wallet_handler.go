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

// WalletHandler handles intermediary-facing wallet endpoints.
type WalletHandler struct {
	ledgerSvc ports.LedgerService
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(ledgerSvc ports.LedgerService) *WalletHandler {
	return &WalletHandler{ledgerSvc: ledgerSvc}
}

// CreateWallet handles POST /api/v1/wallets.
func (h *WalletHandler) CreateWallet(c *gin.Context) {
	intermediaryID, ok := callerID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidAccessKey())
		return
	}

	var req dto.CreateWalletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	account, err := h.ledgerSvc.CreateAccount(c.Request.Context(), ports.CreateAccountRequest{
		AccountID:      req.AccountID,
		OwnerID:        req.OwnerID,
		IntermediaryID: intermediaryID.String(),
		Type:           domain.AccountType(req.Type),
		Tier:           req.Tier,
		KYCLevel:       req.KYCLevel,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, toAccountResponse(account))
}

// GetWallet handles GET /api/v1/wallets/:id.
func (h *WalletHandler) GetWallet(c *gin.Context) {
	account, err := h.ledgerSvc.GetAccount(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toAccountResponse(account))
}

// Transfer handles POST /api/v1/transfers.
func (h *WalletHandler) Transfer(c *gin.Context) {
	var req dto.TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	entry, err := h.ledgerSvc.Transfer(c.Request.Context(), ports.TransferRequest{
		FromAccount: req.FromAccount,
		ToAccount:   req.ToAccount,
		Amount:      req.Amount,
		Channel:     req.Channel,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, toEntryResponse(entry))
}

// toAccountResponse converts domain.Account to DTO.
func toAccountResponse(account *domain.Account) dto.AccountResponse {
	return dto.AccountResponse{
		ID:             account.ID,
		OwnerID:        account.OwnerID,
		IntermediaryID: account.IntermediaryID,
		Type:           string(account.Type),
		Tier:           account.Tier,
		Balance:        account.Balance,
		Status:         string(account.Status),
		CreatedAt:      account.CreatedAt.Format(time.RFC3339),
	}
}
