package handler

import (
	"strconv"
	"time"

	"cbdc-ledger/internal/adapter/http/dto"
	"cbdc-ledger/internal/core/domain"
	"cbdc-ledger/internal/core/ports"
	"cbdc-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// AuditHandler exposes the append-only ledger log and supply counters.
type AuditHandler struct {
	reportingSvc ports.ReportingService
}

// NewAuditHandler creates a new AuditHandler.
func NewAuditHandler(reportingSvc ports.ReportingService) *AuditHandler {
	return &AuditHandler{reportingSvc: reportingSvc}
}

// ListEntries handles GET /api/v1/audit/entries.
func (h *AuditHandler) ListEntries(c *gin.Context) {
	params := ports.LedgerListParams{
		AccountID:      c.Query("account_id"),
		IntermediaryID: c.Query("intermediary_id"),
		Cursor:         c.Query("cursor"),
	}

	if v := c.Query("kind"); v != "" {
		kind := domain.EntryKind(v)
		params.Kind = &kind
	}
	if v := c.Query("status"); v != "" {
		status := domain.EntryStatus(v)
		params.Status = &status
	}
	if v := c.Query("from"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			params.From = &t
		}
	}
	if v := c.Query("to"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			params.To = &t
		}
	}
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			params.Limit = n
		}
	}

	entries, nextCursor, err := h.reportingSvc.ListEntries(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.EntryResponse, 0, len(entries))
	for i := range entries {
		items = append(items, toEntryResponse(&entries[i]))
	}

	response.OK(c, dto.EntryListResponse{
		Entries:    items,
		NextCursor: nextCursor,
	})
}

// GetStats handles GET /api/v1/audit/stats.
func (h *AuditHandler) GetStats(c *gin.Context) {
	params := ports.LedgerStatsParams{
		IntermediaryID: c.Query("intermediary_id"),
	}
	if v := c.Query("from"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			params.From = &t
		}
	}

	stats, err := h.reportingSvc.GetStats(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.StatsResponse{
		TotalEntries:   stats.TotalEntries,
		Confirmed:      stats.Confirmed,
		Rejected:       stats.Rejected,
		TotalMinted:    stats.TotalMinted,
		TotalRedeemed:  stats.TotalRedeemed,
		TotalTransfers: stats.TotalTransfers,
		TotalSettled:   stats.TotalSettled,
	})
}

// GetSupply handles GET /api/v1/audit/supply.
func (h *AuditHandler) GetSupply(c *gin.Context) {
	minted, redeemed, err := h.reportingSvc.GetSupply(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.SupplyResponse{
		TotalMinted:   minted,
		TotalRedeemed: redeemed,
		Circulating:   minted - redeemed,
	})
}
