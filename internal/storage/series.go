package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/metno/lard/internal/errs"
	"github.com/metno/lard/internal/models"
)

// ObsinnKey identifies an incoming observation on the ingestion side:
// (nationalnummer, type_id, param_code, lvl?, sensor?), the natural key
// of labels.obsinn (§3).
type ObsinnKey struct {
	Nationalnummer int32
	TypeID         int32
	ParamCode      string
	Lvl            *int32
	Sensor         *int32
}

// MetKey identifies a series on the query/flag side:
// (station_id, param_id, type_id, lvl?, sensor?), the natural key of
// labels.met (§3).
type MetKey struct {
	StationID int32
	ParamID   int32
	TypeID    int32
	Lvl       *int32
	Sensor    *int32
}

// LookupObsinnSeries returns the timeseries id for key if labels.obsinn
// already has a matching row, using NULL-safe matching on lvl/sensor
// per §4.4 step 3a. Returns errs.NotFound if absent.
func LookupObsinnSeries(ctx context.Context, tx pgx.Tx, key ObsinnKey) (int32, error) {
	const op = "storage.LookupObsinnSeries"

	var id int32
	err := tx.QueryRow(ctx, `
		SELECT timeseries FROM labels.obsinn
		WHERE nationalnummer = $1
		  AND type_id = $2
		  AND param_code = $3
		  AND (($4::int IS NULL AND lvl IS NULL) OR lvl = $4)
		  AND (($5::int IS NULL AND sensor IS NULL) OR sensor = $5)
	`, key.Nationalnummer, key.TypeID, key.ParamCode, key.Lvl, key.Sensor).Scan(&id)

	if errors.Is(err, pgx.ErrNoRows) {
		return 0, errs.E(op, errs.NotFound, err)
	}
	if err != nil {
		return 0, errs.E(op, errs.Database, err)
	}
	return id, nil
}

// CreateSeriesAndLabels inserts a new timeseries row (fromtime = obstime,
// loc NULL per §4.4 step 3c) plus its matching obsinn and met label
// rows, all within tx. Returns the new series id.
func CreateSeriesAndLabels(ctx context.Context, tx pgx.Tx, obsinn ObsinnKey, met MetKey, obstime time.Time) (int32, error) {
	const op = "storage.CreateSeriesAndLabels"

	var id int32
	if err := tx.QueryRow(ctx, `
		INSERT INTO public.timeseries (fromtime) VALUES ($1) RETURNING id
	`, obstime).Scan(&id); err != nil {
		return 0, errs.E(op, errs.Database, fmt.Errorf("inserting timeseries: %w", err))
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO labels.obsinn (timeseries, nationalnummer, type_id, param_code, lvl, sensor)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, id, obsinn.Nationalnummer, obsinn.TypeID, obsinn.ParamCode, obsinn.Lvl, obsinn.Sensor); err != nil {
		return 0, errs.E(op, errs.Database, fmt.Errorf("inserting obsinn label: %w", err))
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO labels.met (timeseries, station_id, param_id, type_id, lvl, sensor)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, id, met.StationID, met.ParamID, met.TypeID, met.Lvl, met.Sensor); err != nil {
		return 0, errs.E(op, errs.Database, fmt.Errorf("inserting met label: %w", err))
	}

	return id, nil
}

// LookupMetSeries returns the timeseries id for key using NULL-safe
// matching against labels.met, used by the XML Stream Consumer (§4.6).
func LookupMetSeries(ctx context.Context, q Querier, key MetKey) (int32, error) {
	const op = "storage.LookupMetSeries"

	var id int32
	err := q.QueryRow(ctx, `
		SELECT timeseries FROM labels.met
		WHERE station_id = $1
		  AND param_id = $2
		  AND type_id = $3
		  AND (($4::int IS NULL AND lvl IS NULL) OR lvl = $4)
		  AND (($5::int IS NULL AND sensor IS NULL) OR sensor = $5)
	`, key.StationID, key.ParamID, key.TypeID, key.Lvl, key.Sensor).Scan(&id)

	if errors.Is(err, pgx.ErrNoRows) {
		return 0, errs.E(op, errs.NotFound, err)
	}
	if err != nil {
		return 0, errs.E(op, errs.Database, err)
	}
	return id, nil
}

// SeriesBounds is the (fromtime, totime) of a series with NULLs
// coalesced per §4.7: fromtime <- 1950-01-01Z, totime <- now. Lvl,
// Sensor, and Loc are the remaining fields of the series response
// header (§6); they're only populated by
// ResolveSeriesBoundsByStationParam.
type SeriesBounds struct {
	ID       int32
	Fromtime time.Time
	Totime   time.Time
	Lvl      *int32
	Sensor   *int32
	Loc      *models.Location
}

var epoch = time.Date(1950, 1, 1, 0, 0, 0, 0, time.UTC)

// ResolveSeriesBounds resolves (ts_id, fromtime, totime) by joining
// timeseries and labels.met on the full MetKey five-tuple. The "Series
// by (station, param)" endpoint (§4.7) uses
// ResolveSeriesBoundsByStationParam instead.
func ResolveSeriesBounds(ctx context.Context, q Querier, key MetKey) (SeriesBounds, error) {
	const op = "storage.ResolveSeriesBounds"

	var b SeriesBounds
	err := q.QueryRow(ctx, `
		SELECT t.id, coalesce(t.fromtime, $6), coalesce(t.totime, now())
		FROM public.timeseries t
		JOIN labels.met m ON m.timeseries = t.id
		WHERE m.station_id = $1
		  AND m.param_id = $2
		  AND m.type_id = $3
		  AND (($4::int IS NULL AND m.lvl IS NULL) OR m.lvl = $4)
		  AND (($5::int IS NULL AND m.sensor IS NULL) OR m.sensor = $5)
	`, key.StationID, key.ParamID, key.TypeID, key.Lvl, key.Sensor, epoch).Scan(&b.ID, &b.Fromtime, &b.Totime)

	if errors.Is(err, pgx.ErrNoRows) {
		return SeriesBounds{}, errs.E(op, errs.NotFound, err)
	}
	if err != nil {
		return SeriesBounds{}, errs.E(op, errs.Database, err)
	}
	return b, nil
}

// ResolveSeriesBoundsByStationParam resolves (ts_id, fromtime, totime,
// lvl, sensor, loc) for the query-side "Series by (station, param)"
// endpoint (§4.7), which addresses a series by station_id/param_id
// alone (unlike MetKey's full five-tuple, used on the flag-writing
// path). When more than one series matches, the earliest by fromtime
// wins. Lvl/sensor/loc feed the response header documented in
// original_source/api/src/timeseries.rs's TimeseriesInfo.
func ResolveSeriesBoundsByStationParam(ctx context.Context, q Querier, stationID, paramID int32) (SeriesBounds, error) {
	const op = "storage.ResolveSeriesBoundsByStationParam"

	var b SeriesBounds
	var lat, lon *float64
	var hamsl, hag *float32
	err := q.QueryRow(ctx, `
		SELECT t.id, coalesce(t.fromtime, $3), coalesce(t.totime, now()),
			m.lvl, m.sensor,
			(t.loc).lat, (t.loc).lon, (t.loc).hamsl, (t.loc).hag
		FROM public.timeseries t
		JOIN labels.met m ON m.timeseries = t.id
		WHERE m.station_id = $1 AND m.param_id = $2
		ORDER BY t.fromtime ASC
		LIMIT 1
	`, stationID, paramID, epoch).Scan(
		&b.ID, &b.Fromtime, &b.Totime, &b.Lvl, &b.Sensor,
		&lat, &lon, &hamsl, &hag,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return SeriesBounds{}, errs.E(op, errs.NotFound, err)
	}
	if err != nil {
		return SeriesBounds{}, errs.E(op, errs.Database, err)
	}
	b.Loc = scanLocation(lat, lon, hamsl, hag)
	return b, nil
}

// Querier is satisfied by both *pgxpool.Pool and pgx.Tx, letting
// read-only helpers run either inside or outside a transaction.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}
