// Package labelresolver is the Label Resolver (C5): given a parsed
// observation and its chunk header, it finds or lazily creates the
// internal time-series id and its label records, gated by the
// Parameter Registry and the Permit Cache, per spec.md §4.4.
package labelresolver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/metno/lard/internal/errs"
	"github.com/metno/lard/internal/models"
	"github.com/metno/lard/internal/obsinn"
	"github.com/metno/lard/internal/paramreg"
	"github.com/metno/lard/internal/permit"
	"github.com/metno/lard/internal/storage"
	"github.com/metno/lard/pkg/labelcache"
)

// Resolver ties the Parameter Registry, Permit Cache, and Storage
// Facade together to turn a parsed obsinn.Row into a models.Datum (or a
// silent skip, for closed data).
type Resolver struct {
	pool    *pgxpool.Pool
	reg     *paramreg.Registry
	permits *permit.Cache
	// cache maps an ObsinnKey's cache key to an already-resolved series
	// id, avoiding a DB round trip for every observation in steady
	// state. Adapted from the teacher's pkg/lrucache (here
	// pkg/labelcache); a cache miss always falls through to the
	// database, so a stale/evicted entry is never a correctness issue.
	cache *labelcache.Cache
}

// New builds a Resolver. cacheMemory bounds the label cache's size
// estimate units (see pkg/labelcache's New).
func New(pool *pgxpool.Pool, reg *paramreg.Registry, permits *permit.Cache, cacheMemory int) *Resolver {
	return &Resolver{
		pool:    pool,
		reg:     reg,
		permits: permits,
		cache:   labelcache.New(cacheMemory),
	}
}

// Resolve turns one parsed row's columns into zero or more Datum
// values, per §4.4:
//  1. Parameter Registry miss -> Parse-kind error for that observation
//     only; the remaining columns of the row, and every other row of
//     the batch, are still resolved (spec.md §3: "unknown param_codes
//     during label resolution reject the single observation with a
//     parse-class error" — not the batch).
//  2. Permit-closed -> silent skip (not an error).
//  3. Lazily find-or-create the series id transactionally.
//
// When every column has been attempted, a non-nil returned error is
// Parse-kind and joins every registry miss seen; out still holds every
// Datum successfully resolved despite it. An error from findOrCreate
// (typically Database-kind), in contrast, is returned as is and aborts
// immediately: that's an infrastructure failure, not a per-observation
// policy outcome.
func (r *Resolver) Resolve(ctx context.Context, header obsinn.Header, row obsinn.Row, columns []obsinn.Column) ([]models.Datum, error) {
	const op = "labelresolver.Resolve"

	var out []models.Datum
	var rejected error
	for i, col := range columns {
		entry, known := r.reg.Lookup(col.Name)
		if !known {
			rejected = errors.Join(rejected, errs.E(op, errs.Parse, fmt.Errorf("unknown param_code %q", col.Name)))
			continue
		}

		if !r.permits.IsOpen(header.StationID, header.TypeID, entry.ID) {
			continue // Policy: silent skip, not an error (§4.4 step 2)
		}

		obsinnKey := storage.ObsinnKey{
			Nationalnummer: header.StationID,
			TypeID:         header.TypeID,
			ParamCode:      col.Name,
			Lvl:            col.Level,
			Sensor:         col.Sensor,
		}
		metKey := storage.MetKey{
			StationID: header.StationID,
			ParamID:   entry.ID,
			TypeID:    header.TypeID,
			Lvl:       col.Level,
			Sensor:    col.Sensor,
		}

		id, err := r.findOrCreate(ctx, obsinnKey, metKey, row.Timestamp)
		if err != nil {
			return out, err
		}

		v := row.Values[i]
		d := models.Datum{TimeseriesID: id, Obstime: row.Timestamp}
		if v.IsFloat {
			d.Value = v.Float
		} else {
			text := v.Text
			d.Text = &text
		}
		out = append(out, d)
	}

	if rejected != nil {
		return out, errs.E(op, errs.Parse, rejected)
	}
	return out, nil
}

func cacheKey(k storage.ObsinnKey) string {
	lvl, sensor := int32(-1), int32(-1)
	if k.Lvl != nil {
		lvl = *k.Lvl
	}
	if k.Sensor != nil {
		sensor = *k.Sensor
	}
	return fmt.Sprintf("%d|%d|%s|%d|%d", k.Nationalnummer, k.TypeID, k.ParamCode, lvl, sensor)
}

// findOrCreate resolves obsinnKey to a series id, transactionally
// creating the series and both label rows on first sight. Per §9/§4.4's
// invariant, lazy creation is made serializable by relying on the
// database's unique constraint over the obsinn natural key
// (labels_obsinn_key_idx): a concurrent first-sight insert that loses
// the race gets a unique-violation, which is treated as a cue to
// re-read rather than an error.
func (r *Resolver) findOrCreate(ctx context.Context, obsinnKey storage.ObsinnKey, metKey storage.MetKey, obstime time.Time) (int32, error) {
	const op = "labelresolver.findOrCreate"
	key := cacheKey(obsinnKey)

	if cached := r.cache.Get(key, nil); cached != nil {
		return cached.(int32), nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, errs.E(op, errs.Database, err)
	}
	defer tx.Rollback(ctx)

	id, err := storage.LookupObsinnSeries(ctx, tx, obsinnKey)
	if err == nil {
		if cerr := tx.Commit(ctx); cerr != nil {
			return 0, errs.E(op, errs.Database, cerr)
		}
		r.cache.Put(key, id, 1, time.Hour)
		return id, nil
	}
	if errs.KindOf(err) != errs.NotFound {
		return 0, err
	}

	id, err = storage.CreateSeriesAndLabels(ctx, tx, obsinnKey, metKey, obstime)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			// Lost the race to a concurrent first-sight insert; the
			// unique constraint enforces the uniqueness invariant of
			// §8 property 3. Re-read in a fresh transaction.
			return r.rereadAfterConflict(ctx, obsinnKey, key)
		}
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, errs.E(op, errs.Database, err)
	}

	r.cache.Put(key, id, 1, time.Hour)
	return id, nil
}

func (r *Resolver) rereadAfterConflict(ctx context.Context, obsinnKey storage.ObsinnKey, key string) (int32, error) {
	const op = "labelresolver.rereadAfterConflict"

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, errs.E(op, errs.Database, err)
	}
	defer tx.Rollback(ctx)

	id, err := storage.LookupObsinnSeries(ctx, tx, obsinnKey)
	if err != nil {
		return 0, err
	}
	if cerr := tx.Commit(ctx); cerr != nil {
		return 0, errs.E(op, errs.Database, cerr)
	}

	r.cache.Put(key, id, 1, time.Hour)
	return id, nil
}
