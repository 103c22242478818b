package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/metno/lard/internal/errs"
	"github.com/metno/lard/internal/models"
	"github.com/metno/lard/internal/querycomposer"
)

// QueryAPI wires the Query Composer (C8) behind the three read
// endpoints of §4.7/§6.
type QueryAPI struct {
	composer *querycomposer.Composer
}

// NewQueryAPI builds a QueryAPI.
func NewQueryAPI(composer *querycomposer.Composer) *QueryAPI {
	return &QueryAPI{composer: composer}
}

// Router assembles the query service's mux.Router.
func (api *QueryAPI) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/stations/{station_id}/params/{param_id}", api.handleSeries).Methods(http.MethodGet)
	r.HandleFunc("/timeslices/{timestamp}/params/{param_id}", api.handleTimeslice).Methods(http.MethodGet)
	r.HandleFunc("/latest", api.handleLatest).Methods(http.MethodGet)
	mountAmbient(r)
	return r
}

func (api *QueryAPI) handleSeries(rw http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	stationID, err := parseInt32(vars["station_id"])
	if err != nil {
		writeError(rw, errs.E("httpapi.handleSeries", errs.Parse, err))
		return
	}
	paramID, err := parseInt32(vars["param_id"])
	if err != nil {
		writeError(rw, errs.E("httpapi.handleSeries", errs.Parse, err))
		return
	}

	q := r.URL.Query()
	params := querycomposer.SeriesParams{StationID: stationID, ParamID: paramID}

	if s := q.Get("start_time"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			writeError(rw, errs.E("httpapi.handleSeries", errs.Parse, err))
			return
		}
		params.StartTime = &t
	}
	if s := q.Get("end_time"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			writeError(rw, errs.E("httpapi.handleSeries", errs.Parse, err))
			return
		}
		params.EndTime = &t
	}
	if s := q.Get("time_resolution"); s != "" {
		c := models.Cadence(s)
		params.TimeResolution = &c
	}

	series, err := api.composer.Series(r.Context(), params)
	if err != nil {
		writeError(rw, err)
		return
	}

	writeJSON(rw, http.StatusOK, map[string]any{"tseries": []any{series}})
}

func (api *QueryAPI) handleTimeslice(rw http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	ts, err := time.Parse(time.RFC3339, vars["timestamp"])
	if err != nil {
		writeError(rw, errs.E("httpapi.handleTimeslice", errs.Parse, err))
		return
	}
	paramID, err := parseInt32(vars["param_id"])
	if err != nil {
		writeError(rw, errs.E("httpapi.handleTimeslice", errs.Parse, err))
		return
	}

	slice, err := api.composer.Timeslice(r.Context(), ts, paramID)
	if err != nil {
		writeError(rw, err)
		return
	}

	writeJSON(rw, http.StatusOK, map[string]any{"tslices": []*models.Timeslice{slice}})
}

func (api *QueryAPI) handleLatest(rw http.ResponseWriter, r *http.Request) {
	maxAge := time.Now().UTC().Add(-3 * time.Hour)
	if s := r.URL.Query().Get("latest_max_age"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			writeError(rw, errs.E("httpapi.handleLatest", errs.Parse, err))
			return
		}
		maxAge = t
	}

	rows, err := api.composer.Latest(r.Context(), maxAge)
	if err != nil {
		writeError(rw, err)
		return
	}

	writeJSON(rw, http.StatusOK, map[string]any{"data": rows})
}

func parseInt32(s string) (int32, error) {
	n, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, err
	}
	return int32(n), nil
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	json.NewEncoder(rw).Encode(v)
}

// writeError maps an errs.Kind to the query API's HTTP status, per §7:
// Parse -> 400, NotFound -> 404, everything else -> 500.
func writeError(rw http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch errs.KindOf(err) {
	case errs.Parse:
		status = http.StatusBadRequest
	case errs.NotFound:
		status = http.StatusNotFound
	}
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	json.NewEncoder(rw).Encode(map[string]string{"error": err.Error()})
}
