// Package querycomposer is the Query Composer (C8): it assembles
// irregular series, regular (cadence-aligned) series, latest-per-series,
// and per-timestamp cross-station slices, per spec.md §4.7. SQL is
// built with github.com/Masterminds/squirrel, returning (sql string,
// args []any) that pgx consumes directly without an adapter.
package querycomposer

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/metno/lard/internal/errs"
	"github.com/metno/lard/internal/models"
	"github.com/metno/lard/internal/storage"
)

// Composer answers the three query endpoints of §6.
type Composer struct {
	pool *pgxpool.Pool
}

// New builds a Composer over pool.
func New(pool *pgxpool.Pool) *Composer {
	return &Composer{pool: pool}
}

// SeriesParams are the optional query parameters of the
// "Series by (station, param)" endpoint.
type SeriesParams struct {
	StationID      int32
	ParamID        int32
	StartTime      *time.Time
	EndTime        *time.Time
	TimeResolution *models.Cadence
}

// Series resolves and returns either an IrregularSeries or a
// RegularSeries, per §4.7. An unknown cadence token is a Parse-kind
// error (§9: the original's silent 1-minute default is a documented bug
// that must not be replicated).
func (c *Composer) Series(ctx context.Context, p SeriesParams) (any, error) {
	const op = "querycomposer.Series"

	bounds, err := storage.ResolveSeriesBoundsByStationParam(ctx, c.pool, p.StationID, p.ParamID)
	if err != nil {
		return nil, err
	}

	start, end := bounds.Fromtime, bounds.Totime
	if p.StartTime != nil {
		start = *p.StartTime
	}
	if p.EndTime != nil {
		end = *p.EndTime
	}

	header := models.SeriesHeader{
		TimeseriesID: bounds.ID,
		Fromtime:     bounds.Fromtime,
		Totime:       bounds.Totime,
		StationID:    p.StationID,
		ParamID:      p.ParamID,
		Lvl:          bounds.Lvl,
		Sensor:       bounds.Sensor,
		Location:     bounds.Loc,
	}

	if p.TimeResolution == nil {
		return c.irregular(ctx, header, start, end)
	}

	if !p.TimeResolution.Valid() {
		return nil, errs.E(op, errs.Parse, fmt.Errorf("unknown time_resolution %q", *p.TimeResolution))
	}

	return c.regular(ctx, header, start, end, *p.TimeResolution)
}

func (c *Composer) irregular(ctx context.Context, header models.SeriesHeader, start, end time.Time) (*models.IrregularSeries, error) {
	const op = "querycomposer.irregular"

	query, args, err := sq.Select("obstime", "obsvalue").
		From("public.data").
		Where(sq.Eq{"timeseries": header.TimeseriesID}).
		Where(sq.GtOrEq{"obstime": start}).
		Where(sq.LtOrEq{"obstime": end}).
		OrderBy("obstime").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, errs.E(op, errs.Database, err)
	}

	rows, err := c.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, errs.E(op, errs.Database, err)
	}
	defer rows.Close()

	out := &models.IrregularSeries{Regularity: models.Irregular, Header: header}
	for rows.Next() {
		var ts time.Time
		var v float32
		if err := rows.Scan(&ts, &v); err != nil {
			return nil, errs.E(op, errs.Database, err)
		}
		out.Timestamps = append(out.Timestamps, ts)
		val := v
		out.Data = append(out.Data, &val)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.E(op, errs.Database, err)
	}
	return out, nil
}

// regular right-joins observations against a server-generated
// timestamp ladder at the requested cadence, per §4.7/§9: "parameterized
// by a whitelisted cadence token; no other tokens may reach the query
// builder to avoid injection." cadence has already been validated by
// the caller against models.Cadence.Valid, so the literal interval
// string below is always one of three fixed, safe values.
func (c *Composer) regular(ctx context.Context, header models.SeriesHeader, start, end time.Time, cadence models.Cadence) (*models.RegularSeries, error) {
	const op = "querycomposer.regular"

	interval := cadenceInterval(cadence)
	query := fmt.Sprintf(`
		SELECT d.obsvalue
		FROM generate_series($1::timestamptz, $2::timestamptz, interval '%s') AS ladder(t)
		LEFT JOIN public.data d ON d.timeseries = $3 AND d.obstime = ladder.t
		ORDER BY ladder.t
	`, interval)

	rows, err := c.pool.Query(ctx, query, start, end, header.TimeseriesID)
	if err != nil {
		return nil, errs.E(op, errs.Database, err)
	}
	defer rows.Close()

	out := &models.RegularSeries{Regularity: models.Regular, Header: header, StartTime: start, TimeResolution: cadence}
	for rows.Next() {
		var v *float32
		if err := rows.Scan(&v); err != nil {
			return nil, errs.E(op, errs.Database, err)
		}
		out.Data = append(out.Data, v)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.E(op, errs.Database, err)
	}
	return out, nil
}

// cadenceInterval maps a validated models.Cadence to a Postgres
// interval literal. Only ever called with one of the three whitelisted
// tokens (models.Cadence.Valid has already rejected everything else).
func cadenceInterval(c models.Cadence) string {
	switch c {
	case models.CadenceMinute:
		return "1 minute"
	case models.CadenceHour:
		return "1 hour"
	case models.CadenceDay:
		return "1 day"
	default:
		return "1 minute"
	}
}

// Timeslice returns every station that observed paramID at exactly
// timestamp, per §4.7's "Timeslice at (timestamp, param)" endpoint,
// joining through the label tables the way
// original_source/api/src/timeslice.rs's get_timeslice does (§12).
func (c *Composer) Timeslice(ctx context.Context, timestamp time.Time, paramID int32) (*models.Timeslice, error) {
	const op = "querycomposer.Timeslice"

	query, args, err := sq.Select(
		"m.station_id", "d.obsvalue",
		"(t.loc).lat", "(t.loc).lon", "(t.loc).hamsl", "(t.loc).hag",
	).
		From("public.data d").
		Join("labels.met m ON m.timeseries = d.timeseries").
		Join("public.timeseries t ON t.id = d.timeseries").
		Where(sq.Eq{"m.param_id": paramID, "d.obstime": timestamp}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, errs.E(op, errs.Database, err)
	}

	rows, err := c.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, errs.E(op, errs.Database, err)
	}
	defer rows.Close()

	out := &models.Timeslice{Timestamp: timestamp, ParamID: paramID}
	for rows.Next() {
		var row models.TimesliceRow
		var lat, lon *float64
		var hamsl, hag *float32
		if err := rows.Scan(&row.StationID, &row.Value, &lat, &lon, &hamsl, &hag); err != nil {
			return nil, errs.E(op, errs.Database, err)
		}
		row.Loc = scanLocation(lat, lon, hamsl, hag)
		out.Data = append(out.Data, row)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.E(op, errs.Database, err)
	}
	return out, nil
}

// Latest returns the most recent observation for every series with at
// least one observation newer than maxAge, per §4.7, using a
// `DISTINCT ON (timeseries) ORDER BY timeseries, obstime DESC` query
// matching original_source/api/src/latest.rs's get_latest (§12).
func (c *Composer) Latest(ctx context.Context, maxAge time.Time) ([]models.LatestRow, error) {
	const op = "querycomposer.Latest"

	rows, err := c.pool.Query(ctx, `
		SELECT DISTINCT ON (d.timeseries)
			d.timeseries, m.station_id, d.obsvalue, d.obstime,
			(t.loc).lat, (t.loc).lon, (t.loc).hamsl, (t.loc).hag
		FROM public.data d
		JOIN labels.met m ON m.timeseries = d.timeseries
		JOIN public.timeseries t ON t.id = d.timeseries
		WHERE d.obstime > $1
		ORDER BY d.timeseries, d.obstime DESC
	`, maxAge)
	if err != nil {
		return nil, errs.E(op, errs.Database, err)
	}
	defer rows.Close()

	var out []models.LatestRow
	for rows.Next() {
		var row models.LatestRow
		var lat, lon *float64
		var hamsl, hag *float32
		if err := rows.Scan(&row.Timeseries, &row.StationID, &row.Value, &row.Timestamp, &lat, &lon, &hamsl, &hag); err != nil {
			return nil, errs.E(op, errs.Database, err)
		}
		row.Loc = scanLocation(lat, lon, hamsl, hag)
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.E(op, errs.Database, err)
	}
	return out, nil
}

func scanLocation(lat, lon *float64, hamsl, hag *float32) *models.Location {
	if lat == nil || lon == nil {
		return nil
	}
	loc := &models.Location{Lat: *lat, Lon: *lon}
	if hamsl != nil {
		loc.Hamsl = *hamsl
	}
	if hag != nil {
		loc.Hag = *hag
	}
	return loc
}
