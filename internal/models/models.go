// Package models holds the data-model types shared across the storage
// facade, label resolver, ingestion writer, query composer, and bulk
// seeder: the TimeSeries/Observation/Labels/Permit/Registry records of
// the data model.
package models

import "time"

// Location is the optional `loc` composite attached to a TimeSeries:
// {lat, lon, hamsl, hag}. It has no pgx Scan/Value methods: queries
// select the composite field by field ((loc).lat, ...) and build it with
// the scanLocation helpers in internal/storage and internal/querycomposer.
type Location struct {
	Lat   float64 `json:"lat"`
	Lon   float64 `json:"lon"`
	Hamsl float32 `json:"hamsl,omitempty"`
	Hag   float32 `json:"hag,omitempty"`
}

// TimeSeries is the stable identity a station/parameter/level/sensor
// combination resolves to. Once created its ID is immutable and
// Fromtime is a lower bound on every Obstime ever written under it.
type TimeSeries struct {
	ID          int32
	Fromtime    time.Time
	Totime      *time.Time
	Loc         *Location
	Deactivated bool
}

// MetLabel is the public natural key used by queries:
// (timeseries, station_id, param_id, type_id, lvl?, sensor?).
type MetLabel struct {
	Timeseries int32
	StationID  int32
	ParamID    int32
	TypeID     int32
	Lvl        *int32
	Sensor     *int32
}

// ObsinnLabel is the ingestion-side natural key used to dedupe incoming
// rows to an existing series:
// (timeseries, nationalnummer, type_id, param_code, lvl?, sensor?).
type ObsinnLabel struct {
	Timeseries     int32
	Nationalnummer int32
	TypeID         int32
	ParamCode      string
	Lvl            *int32
	Sensor         *int32
}

// Datum is a single value ready to be upserted by the Ingestion Writer,
// carrying the series it was resolved to (the C5→C6 handoff type),
// named after the original's Datum{timeseries_id, timestamp, value}.
type Datum struct {
	TimeseriesID int32
	Obstime      time.Time
	Value        float32
	// Text carries a non-scalar payload; non-nil means this Datum routes
	// to nonscalar_data instead of data (§4.5).
	Text *string
}

// ParamEntry is one row of the Parameter Registry (C3):
// param_code -> (id, element_id, is_scalar).
type ParamEntry struct {
	ID        int32
	Code      string
	ElementID string
	IsScalar  bool
}

// ParamPermitEntry is one rule within a station's ParamPermit list.
// Type == 0 or Param == 0 means "any" for that field.
type ParamPermitEntry struct {
	Type    int32
	Param   int32
	PermitID int32
}

// FlagRecord is a row written by the XML Stream Consumer (C7) into
// flags.kvdata, keyed by (series, obstime).
type FlagRecord struct {
	Timeseries  int32
	Obstime     time.Time
	Original    *float32
	Corrected   *float32
	Controlinfo *string
	Useinfo     *string
	Cfailed     *int32
}

// Regularity distinguishes the two shapes the Query Composer (C8) can
// return for a station/param series.
type Regularity string

const (
	Regular   Regularity = "Regular"
	Irregular Regularity = "Irregular"
)

// Cadence is a whitelisted time_resolution token (§9: "parameterized by
// a whitelisted cadence token; no other tokens may reach the query
// builder").
type Cadence string

const (
	CadenceMinute Cadence = "PT1M"
	CadenceHour   Cadence = "PT1H"
	CadenceDay    Cadence = "P1D"
)

// Duration returns the wall-clock step for c.
func (c Cadence) Duration() time.Duration {
	switch c {
	case CadenceMinute:
		return time.Minute
	case CadenceHour:
		return time.Hour
	case CadenceDay:
		return 24 * time.Hour
	default:
		return 0
	}
}

// Valid reports whether c is one of the three whitelisted cadence
// tokens. Any other value (including the original's silent 1-minute
// default) must be rejected by callers, per §9.
func (c Cadence) Valid() bool {
	switch c {
	case CadenceMinute, CadenceHour, CadenceDay:
		return true
	default:
		return false
	}
}

// SeriesHeader identifies the series a station/param query answered
// against, matching original_source/api/src/timeseries.rs's
// TimeseriesInfo: the resolved series id plus its label and location
// fields.
type SeriesHeader struct {
	TimeseriesID int32     `json:"ts_id"`
	Fromtime     time.Time `json:"fromtime"`
	Totime       time.Time `json:"totime"`
	StationID    int32     `json:"station_id"`
	ParamID      int32     `json:"param_id"`
	Lvl          *int32    `json:"lvl,omitempty"`
	Sensor       *int32    `json:"sensor,omitempty"`
	Location     *Location `json:"location,omitempty"`
}

// IrregularSeries is the response shape for a station/param query with
// no time_resolution: parallel timestamp/value vectors, tagged with the
// "Irregular" regularity discriminator per §6.
type IrregularSeries struct {
	Regularity Regularity   `json:"regularity"`
	Header     SeriesHeader `json:"header"`
	Data       []*float32   `json:"data"`
	Timestamps []time.Time  `json:"timestamps"`
}

// RegularSeries is the response shape for a station/param query with a
// valid time_resolution: a start time, cadence, and a dense value
// vector with nulls at unobserved slots, tagged with the "Regular"
// regularity discriminator per §6.
type RegularSeries struct {
	Regularity     Regularity   `json:"regularity"`
	Header         SeriesHeader `json:"header"`
	Data           []*float32   `json:"data"`
	StartTime      time.Time    `json:"start_time"`
	TimeResolution Cadence      `json:"time_resolution"`
}

// TimesliceRow is one station's observation within a Timeslice
// response's data array.
type TimesliceRow struct {
	Value     float32   `json:"value"`
	StationID int32     `json:"station_id"`
	Loc       *Location `json:"loc,omitempty"`
}

// Timeslice is the cross-station slice at one (timestamp, param_id),
// matching original_source/api/src/timeslice.rs's Timeslice (element_id
// there corresponds to param_id here, per §6).
type Timeslice struct {
	Timestamp time.Time      `json:"timestamp"`
	ParamID   int32          `json:"param_id"`
	Data      []TimesliceRow `json:"data"`
}

// LatestRow is one series' most recent observation within a Latest
// response's data array. Timeseries is kept for internal bookkeeping
// (DISTINCT ON grouping) and is not part of the wire format, matching
// original_source/api/src/latest.rs's LatestElem, which carries no
// series id.
type LatestRow struct {
	Timeseries int32     `json:"-"`
	Value      float32   `json:"value"`
	Timestamp  time.Time `json:"timestamp"`
	StationID  int32     `json:"station_id"`
	Loc        *Location `json:"loc,omitempty"`
}
