package storage

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/metno/lard/internal/errs"
)

// CopyRow is one (timeseries, obstime, obsvalue) triple streamed through
// the binary COPY protocol by the Bulk Seeder (C9), matching the
// typed (int4, timestamptz, float4) shape of
// original_source/fake_data_generator/src/main.rs's copy_in_data.
type CopyRow struct {
	Timeseries int32
	Obstime    any // time.Time
	Obsvalue   float32
}

type copySource struct {
	rows []CopyRow
	i    int
}

func (s *copySource) Next() bool {
	s.i++
	return s.i <= len(s.rows)
}

func (s *copySource) Values() ([]any, error) {
	r := s.rows[s.i-1]
	return []any{r.Timeseries, r.Obstime, r.Obsvalue}, nil
}

func (s *copySource) Err() error { return nil }

// CopyData streams rows into public.data using pgx's native binary COPY
// (pgx.CopyFrom), the Go equivalent of tokio_postgres's
// BinaryCopyInWriter used by the original seeder. Returns the number of
// rows copied.
func CopyData(ctx context.Context, pool *pgxpool.Pool, rows []CopyRow) (int64, error) {
	const op = "storage.CopyData"

	n, err := pool.CopyFrom(ctx,
		pgx.Identifier{"public", "data"},
		[]string{"timeseries", "obstime", "obsvalue"},
		&copySource{rows: rows},
	)
	if err != nil {
		return n, errs.E(op, errs.Database, err)
	}
	return n, nil
}

// DropConstraintsAndIndexes drops the uniqueness, FK, and index objects
// around public.data ahead of a bulk COPY, per §4.8 step 3.
func DropConstraintsAndIndexes(ctx context.Context, pool *pgxpool.Pool) error {
	const op = "storage.DropConstraintsAndIndexes"
	stmts := []string{
		`ALTER TABLE public.data DROP CONSTRAINT IF EXISTS unique_data_timeseries_obstime`,
		`DROP INDEX IF EXISTS data_obstime_idx`,
		`DROP INDEX IF EXISTS data_timeseries_idx`,
	}
	for _, s := range stmts {
		if _, err := pool.Exec(ctx, s); err != nil {
			return errs.E(op, errs.Database, err)
		}
	}
	return nil
}

// RestoreConstraintsAndIndexes recreates what DropConstraintsAndIndexes
// removed, then runs VACUUM ANALYZE, per §4.8 step 3.
func RestoreConstraintsAndIndexes(ctx context.Context, pool *pgxpool.Pool) error {
	const op = "storage.RestoreConstraintsAndIndexes"
	stmts := []string{
		`ALTER TABLE public.data ADD CONSTRAINT unique_data_timeseries_obstime UNIQUE (timeseries, obstime)`,
		`ALTER TABLE public.data ADD CONSTRAINT data_timeseries_fkey FOREIGN KEY (timeseries) REFERENCES public.timeseries (id)`,
		`CREATE INDEX data_obstime_idx ON public.data USING btree (obstime)`,
		`CREATE INDEX data_timeseries_idx ON public.data USING hash (timeseries)`,
		`VACUUM ANALYZE public.data`,
	}
	for _, s := range stmts {
		if _, err := pool.Exec(ctx, s); err != nil {
			return errs.E(op, errs.Database, err)
		}
	}
	return nil
}
