package storage

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/metno/lard/internal/errs"
	"github.com/metno/lard/internal/models"
)

// UpsertScalar writes one (timeseries, obstime, obsvalue) row into
// public.data, replacing obsvalue on conflict — the scalar half of the
// Ingestion Writer's (C6) prepared upsert (§4.5), matching the
// conflict-resolution clause documented in original_source's
// insert_data (`ON CONFLICT ON CONSTRAINT unique_data_timeseries_obstime
// DO UPDATE SET obsvalue = EXCLUDED.obsvalue`).
func UpsertScalar(ctx context.Context, pool *pgxpool.Pool, d models.Datum) error {
	const op = "storage.UpsertScalar"
	_, err := pool.Exec(ctx, `
		INSERT INTO public.data (timeseries, obstime, obsvalue)
		VALUES ($1, $2, $3)
		ON CONFLICT ON CONSTRAINT unique_data_timeseries_obstime
			DO UPDATE SET obsvalue = EXCLUDED.obsvalue
	`, d.TimeseriesID, d.Obstime, d.Value)
	if err != nil {
		return errs.E(op, errs.Database, err)
	}
	return nil
}

// UpsertNonscalar is the symmetric non-scalar counterpart of
// UpsertScalar, writing into public.nonscalar_data with a text payload.
func UpsertNonscalar(ctx context.Context, pool *pgxpool.Pool, d models.Datum) error {
	const op = "storage.UpsertNonscalar"
	_, err := pool.Exec(ctx, `
		INSERT INTO public.nonscalar_data (timeseries, obstime, obsvalue)
		VALUES ($1, $2, $3)
		ON CONFLICT ON CONSTRAINT unique_nonscalar_data_timeseries_obstime
			DO UPDATE SET obsvalue = EXCLUDED.obsvalue
	`, d.TimeseriesID, d.Obstime, d.Text)
	if err != nil {
		return errs.E(op, errs.Database, err)
	}
	return nil
}
