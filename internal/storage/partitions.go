package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/metno/lard/internal/errs"
)

// PartitionYears returns the boundary years [1950, 2000, 2010] chained
// with a contiguous run through endYear, matching
// original_source/fake_data_generator/src/main.rs's
// create_data_partitions boundary-year set (§12 supplement) rather than
// an arbitrary evenly-spaced scheme.
func PartitionYears(endYear int) []int {
	years := []int{1950, 2000, 2010}
	for y := 2015; y <= endYear; y++ {
		years = append(years, y)
	}
	return years
}

// CreateYearlyPartitions creates one partition of public.data and
// public.nonscalar_data for each consecutive pair of boundary years,
// per §4.8 step 1.
func CreateYearlyPartitions(ctx context.Context, pool *pgxpool.Pool, years []int) error {
	const op = "storage.CreateYearlyPartitions"

	for i := 0; i < len(years)-1; i++ {
		from, to := years[i], years[i+1]
		for _, table := range []string{"data", "nonscalar_data"} {
			stmt := fmt.Sprintf(
				`CREATE TABLE IF NOT EXISTS public.%s_%d_%d PARTITION OF public.%s
					FOR VALUES FROM ('%d-01-01') TO ('%d-01-01')`,
				table, from, to, table, from, to,
			)
			if _, err := pool.Exec(ctx, stmt); err != nil {
				return errs.E(op, errs.Database, fmt.Errorf("creating partition %s_%d_%d: %w", table, from, to, err))
			}
		}
	}
	return nil
}
