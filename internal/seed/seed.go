// Package seed is the Bulk Seeder (C9): an offline utility that wipes
// and reapplies the schema, synthesises a random set of time series,
// and bulk-loads their observations via binary COPY. It never accepts
// real ingestion traffic and is wired only from cmd/lard-seed. Grounded
// on original_source/fake_data_generator/src/main.rs, translated from
// its async tokio_postgres pipeline into sequential pgx calls (a
// one-shot batch job has no concurrency to preserve).
package seed

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/metno/lard/internal/errs"
	"github.com/metno/lard/internal/storage"
	"github.com/metno/lard/pkg/log"
)

var epoch1950 = time.Date(1950, 1, 1, 0, 0, 0, 0, time.UTC)

// Params controls the synthetic dataset the seeder generates.
type Params struct {
	NumSeries           int
	MeanSeriesLength    int
	PartitionsThroughYear int
	Now                 time.Time
}

// DefaultParams mirrors the original's hardcoded
// create_timeseries(&client, 100_000, 10_000) call.
func DefaultParams() Params {
	return Params{
		NumSeries:             100_000,
		MeanSeriesLength:       10_000,
		PartitionsThroughYear: time.Now().UTC().Year() + 1,
		Now:                   time.Now().UTC(),
	}
}

// seriesSpec is one synthesised series' identity and observation range,
// named after the original's TimeseriesSpec.
type seriesSpec struct {
	id        int32
	startTime time.Time
	endTime   time.Time
	period    time.Duration
}

// Run executes the full seeding pipeline against pool and logs the
// elapsed time of each phase, per §4.8.
func Run(ctx context.Context, pool *pgxpool.Pool, connString string, p Params) error {
	const op = "seed.Run"

	total := time.Now()

	log.Infof("seed: dropping and reapplying schema")
	phase := time.Now()
	if err := storage.Migrate(connString, true); err != nil {
		return errs.E(op, errs.Database, fmt.Errorf("dropping schema: %w", err))
	}
	if err := storage.Migrate(connString, false); err != nil {
		return errs.E(op, errs.Database, fmt.Errorf("reapplying schema: %w", err))
	}
	years := storage.PartitionYears(p.PartitionsThroughYear)
	if err := storage.CreateYearlyPartitions(ctx, pool, years); err != nil {
		return err
	}
	log.Infof("seed: schema+partitions took %s", time.Since(phase))

	log.Infof("seed: synthesising %d series", p.NumSeries)
	phase = time.Now()
	specs, err := createSeries(ctx, pool, p)
	if err != nil {
		return err
	}
	log.Infof("seed: series synthesis took %s", time.Since(phase))

	log.Infof("seed: dropping constraints and indexes")
	phase = time.Now()
	if err := storage.DropConstraintsAndIndexes(ctx, pool); err != nil {
		return err
	}
	log.Infof("seed: drop took %s", time.Since(phase))

	log.Infof("seed: copying observation rows")
	phase = time.Now()
	n, err := copyInData(ctx, pool, specs)
	if err != nil {
		return err
	}
	log.Infof("seed: copied %d rows in %s", n, time.Since(phase))

	log.Infof("seed: restoring constraints and indexes")
	phase = time.Now()
	if err := storage.RestoreConstraintsAndIndexes(ctx, pool); err != nil {
		return err
	}
	log.Infof("seed: restore took %s", time.Since(phase))

	log.Infof("seed: total elapsed %s", time.Since(total))
	return nil
}

// createSeries inserts p.NumSeries synthetic timeseries+labels.met rows,
// each with a geometrically distributed length and a cadence drawn
// uniformly from {1 minute, 1 hour, 1 day}, per §4.8 step 2. Start time
// for hourly/minutely series is skewed back by a geometrically
// distributed number of years, same as the original's age_geometric,
// and clamped to never precede 1950-01-01.
func createSeries(ctx context.Context, pool *pgxpool.Pool, p Params) ([]seriesSpec, error) {
	const op = "seed.createSeries"

	specs := make([]seriesSpec, 0, p.NumSeries)
	for i := 0; i < p.NumSeries; i++ {
		length := geometricSample(1.0 / float64(p.MeanSeriesLength))

		var period time.Duration
		var start, end time.Time
		switch rand.IntN(3) {
		case 0:
			period = 24 * time.Hour
			day := time.Date(p.Now.Year(), p.Now.Month(), p.Now.Day(), 0, 0, 0, 0, time.UTC)
			start = day.Add(-period * time.Duration(length))
			end = p.Now
		case 1:
			period = time.Hour
			yearSkew := time.Duration(12*geometricSample(0.2)) * 30 * 24 * time.Hour
			hour := time.Date(p.Now.Year(), p.Now.Month(), p.Now.Day(), p.Now.Hour(), 0, 0, 0, time.UTC)
			start = hour.Add(-period*time.Duration(length) - yearSkew)
			end = p.Now.Add(-yearSkew)
		default:
			period = time.Minute
			yearSkew := time.Duration(12*geometricSample(0.2)) * 30 * 24 * time.Hour
			minute := time.Date(p.Now.Year(), p.Now.Month(), p.Now.Day(), p.Now.Hour(), p.Now.Minute(), 0, 0, time.UTC)
			start = minute.Add(-period*time.Duration(length) - yearSkew)
			end = p.Now.Add(-yearSkew)
		}

		if start.Before(epoch1950) {
			start = epoch1950
		}

		lat := float32(59+rand.IntN(13)) * 0.5
		lon := float32(4+rand.IntN(26)) * 0.5

		var id int32
		err := pool.QueryRow(ctx, `
			INSERT INTO public.timeseries (fromtime, loc, deactivated)
			VALUES ($1, ROW($2, $3, NULL, NULL)::public.loc, false)
			RETURNING id
		`, start, lat, lon).Scan(&id)
		if err != nil {
			return nil, errs.E(op, errs.Database, fmt.Errorf("inserting synthetic timeseries: %w", err))
		}

		stationID := int32(1000 + rand.IntN(1000))
		paramID := int32(1000 + rand.IntN(1000))
		typeID := int32(1000 + rand.IntN(1000))
		if _, err := pool.Exec(ctx, `
			INSERT INTO labels.met (timeseries, station_id, param_id, type_id, lvl, sensor)
			VALUES ($1, $2, $3, $4, 0, 0)
		`, id, stationID, paramID, typeID); err != nil {
			return nil, errs.E(op, errs.Database, fmt.Errorf("inserting synthetic met label: %w", err))
		}

		specs = append(specs, seriesSpec{id: id, startTime: start, endTime: end, period: period})
	}
	return specs, nil
}

// copyInData streams every (timeseries, obstime, value) triple implied
// by specs through storage.CopyData, per §4.8 step 3.
func copyInData(ctx context.Context, pool *pgxpool.Pool, specs []seriesSpec) (int64, error) {
	var rows []storage.CopyRow
	for _, s := range specs {
		for t := s.startTime; !t.After(s.endTime); t = t.Add(s.period) {
			v := float32(rand.IntN(30)) * 0.5
			rows = append(rows, storage.CopyRow{Timeseries: s.id, Obstime: t, Obsvalue: v})
		}
	}
	return storage.CopyData(ctx, pool, rows)
}

// geometricSample draws from a Geometric(p) distribution (number of
// failures before the first success), matching rand_distr::Geometric's
// semantics used by the original generator.
func geometricSample(p float64) int {
	if p <= 0 {
		return 0
	}
	if p >= 1 {
		return 0
	}
	u := rand.Float64()
	n := int(math.Log(1-u) / math.Log(1-p))
	if n < 0 {
		return 0
	}
	return n
}
