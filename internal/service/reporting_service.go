package service

import (
	"context"

	"cbdc-ledger/internal/core/domain"
	"cbdc-ledger/internal/core/ports"
	"cbdc-ledger/pkg/apperror"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// ReportingServiceImpl implements ports.ReportingService. Read-only views over
// the audit log and supply counters.
type ReportingServiceImpl struct {
	entryRepo  ports.LedgerEntryRepository
	supplyRepo ports.SupplyRepository
}

// NewReportingService creates a new ReportingServiceImpl.
func NewReportingService(entryRepo ports.LedgerEntryRepository, supplyRepo ports.SupplyRepository) *ReportingServiceImpl {
	return &ReportingServiceImpl{
		entryRepo:  entryRepo,
		supplyRepo: supplyRepo,
	}
}

// ListEntries pages through the audit log, newest first.
func (s *ReportingServiceImpl) ListEntries(ctx context.Context, params ports.LedgerListParams) ([]domain.LedgerEntry, string, error) {
	if params.Limit <= 0 {
		params.Limit = defaultListLimit
	}
	if params.Limit > maxListLimit {
		params.Limit = maxListLimit
	}

	entries, cursor, err := s.entryRepo.List(ctx, params)
	if err != nil {
		return nil, "", apperror.ErrStorageUnavailable(err)
	}
	return entries, cursor, nil
}

// GetStats returns audit aggregates for dashboards.
func (s *ReportingServiceImpl) GetStats(ctx context.Context, params ports.LedgerStatsParams) (*ports.LedgerStats, error) {
	stats, err := s.entryRepo.GetStats(ctx, params)
	if err != nil {
		return nil, apperror.ErrStorageUnavailable(err)
	}
	return stats, nil
}

// GetSupply returns the global mint/redeem counters.
func (s *ReportingServiceImpl) GetSupply(ctx context.Context) (int64, int64, error) {
	minted, redeemed, err := s.supplyRepo.Get(ctx)
	if err != nil {
		return 0, 0, apperror.ErrStorageUnavailable(err)
	}
	return minted, redeemed, nil
}
