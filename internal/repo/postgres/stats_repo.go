package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type StatsRepo struct {
	pool *pgxpool.Pool
}

type OverviewRow struct {
	TotalResources int64
	TotalUsers     int64
	TotalSales     int64
	RevenueMinor   int64
}

func NewStatsRepo(pool *pgxpool.Pool) *StatsRepo {
	return &StatsRepo{pool: pool}
}

// Overview aggregates the admin dashboard counters in one round trip. Revenue
// sums completed purchases only; refunded rows keep their charged amount on
// record but no longer count as revenue.
func (r *StatsRepo) Overview(ctx context.Context) (OverviewRow, error) {
	if r.pool == nil {
		return OverviewRow{}, fmt.Errorf("postgres pool is nil")
	}

	var row OverviewRow
	err := r.pool.QueryRow(ctx, `
SELECT
	(SELECT COUNT(*) FROM resources),
	(SELECT COUNT(*) FROM users),
	(SELECT COUNT(*) FROM purchases WHERE status = 'completed'),
	(SELECT COALESCE(SUM(amount_minor), 0) FROM purchases WHERE status = 'completed')
`).Scan(
		&row.TotalResources,
		&row.TotalUsers,
		&row.TotalSales,
		&row.RevenueMinor,
	)
	if err != nil {
		return OverviewRow{}, fmt.Errorf("load stats overview: %w", err)
	}

	return row, nil
}
