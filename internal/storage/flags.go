package storage

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/metno/lard/internal/errs"
	"github.com/metno/lard/internal/models"
)

// InsertFlag writes one flags.kvdata row for the XML Stream Consumer
// (C7), per §4.6: "inserts into a flags.kvdata row (timeseries, obstime,
// original, corrected, controlinfo, useinfo, cfailed)".
func InsertFlag(ctx context.Context, pool *pgxpool.Pool, f models.FlagRecord) error {
	const op = "storage.InsertFlag"
	_, err := pool.Exec(ctx, `
		INSERT INTO flags.kvdata (timeseries, obstime, original, corrected, controlinfo, useinfo, cfailed)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (timeseries, obstime) DO NOTHING
	`, f.Timeseries, f.Obstime, f.Original, f.Corrected, f.Controlinfo, f.Useinfo, f.Cfailed)
	if err != nil {
		return errs.E(op, errs.Database, err)
	}
	return nil
}
