package stats

import (
	"context"
	"fmt"

	"github.com/TsveMotion/statsmaths/internal/repo/postgres"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

type OverviewStore interface {
	Overview(ctx context.Context) (postgres.OverviewRow, error)
}

type PurchaseStore interface {
	ListAll(ctx context.Context, limit, offset int) ([]postgres.AdminPurchaseRow, error)
}

// Service aggregates the admin dashboard: headline counters plus the
// full sales ledger.
type Service struct {
	overview  OverviewStore
	purchases PurchaseStore
}

func NewService(overview OverviewStore, purchases PurchaseStore) *Service {
	return &Service{overview: overview, purchases: purchases}
}

type Overview struct {
	TotalResources int64
	TotalUsers     int64
	TotalSales     int64
	RevenueMinor   int64
}

func (s *Service) Overview(ctx context.Context) (Overview, error) {
	row, err := s.overview.Overview(ctx)
	if err != nil {
		return Overview{}, fmt.Errorf("stats overview: %w", err)
	}
	return Overview{
		TotalResources: row.TotalResources,
		TotalUsers:     row.TotalUsers,
		TotalSales:     row.TotalSales,
		RevenueMinor:   row.RevenueMinor,
	}, nil
}

func (s *Service) Purchases(ctx context.Context, limit, offset int) ([]postgres.AdminPurchaseRow, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.purchases.ListAll(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list purchases: %w", err)
	}
	return rows, nil
}
