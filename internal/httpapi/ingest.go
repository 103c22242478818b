// Package httpapi is the HTTP Surface (C11): gorilla/mux routers for
// the ingestion and query services, wired the way
// cmd/cc-backend/server.go assembles its router (subrouters, compress
// + recovery + CORS middleware, Prometheus and swagger endpoints).
package httpapi

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/metno/lard/internal/errs"
	"github.com/metno/lard/internal/ingestwriter"
	"github.com/metno/lard/internal/labelresolver"
	"github.com/metno/lard/internal/metrics"
	"github.com/metno/lard/internal/obsinn"
	"github.com/metno/lard/internal/paramreg"
	"github.com/metno/lard/pkg/log"
	httpSwagger "github.com/swaggo/http-swagger"
)

// KldataResp is the response body for POST /kldata, per §6: `res` is 0
// on success and 1 on failure; `retry` is true unless the failure was a
// parse error. The endpoint always answers 200 OK — failures are
// in-band, not HTTP status codes.
type KldataResp struct {
	Message   string `json:"message"`
	MessageID int    `json:"message_id"`
	Res       int    `json:"res"`
	Retry     bool   `json:"retry"`
}

// IngestAPI wires the Obsinn Parser (C4), Label Resolver (C5), and
// Ingestion Writer (C6) behind POST /kldata.
type IngestAPI struct {
	reg      *paramreg.Registry
	resolver *labelresolver.Resolver
	writer   *ingestwriter.Writer
}

// NewIngestAPI builds an IngestAPI.
func NewIngestAPI(reg *paramreg.Registry, resolver *labelresolver.Resolver, writer *ingestwriter.Writer) *IngestAPI {
	return &IngestAPI{reg: reg, resolver: resolver, writer: writer}
}

// Router assembles the ingestion service's mux.Router, decorated with
// the same compress/recovery/CORS middleware stack as the teacher's
// cmd/cc-backend/server.go serverInit, plus /metrics and swagger.
func (api *IngestAPI) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/kldata", api.handleKldata).Methods(http.MethodPost)
	mountAmbient(r)
	return r
}

func (api *IngestAPI) handleKldata(rw http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		metrics.RecordKldataResult("read_error")
		writeKldataResp(rw, KldataResp{Message: err.Error(), Res: 1, Retry: true})
		return
	}

	batch, err := obsinn.Parse(string(body), api.reg)
	if err != nil {
		metrics.RecordKldataResult("parse_error")
		writeKldataResp(rw, KldataResp{
			Message: err.Error(),
			Res:     1,
			Retry:   errs.Retryable(err),
		})
		return
	}

	ctx := r.Context()
	var rejected error
	for _, row := range batch.Rows {
		data, err := api.resolver.Resolve(ctx, batch.Header, row, batch.Columns)
		if err != nil {
			// A registry miss fails this observation only (§4.4 step 1);
			// whatever else resolved in this row and every other row of
			// the batch is still written below.
			metrics.RecordKldataResult("resolve_error")
			log.Warnf("httpapi: kldata observation rejected: %v", err)
			rejected = err
		}

		if len(data) == 0 {
			continue
		}

		if err := api.writer.Write(ctx, data); err != nil {
			log.Errorf("httpapi: kldata write failed: %v", err)
			metrics.RecordKldataResult("write_error")
			writeKldataResp(rw, KldataResp{
				MessageID: batch.Header.MessageID,
				Message:   err.Error(),
				Res:       1,
				Retry:     errs.Retryable(err),
			})
			return
		}
	}

	if rejected != nil {
		metrics.RecordKldataResult("partial_reject")
		writeKldataResp(rw, KldataResp{
			MessageID: batch.Header.MessageID,
			Message:   rejected.Error(),
			Res:       1,
			Retry:     errs.Retryable(rejected),
		})
		return
	}

	metrics.RecordKldataResult("ok")
	writeKldataResp(rw, KldataResp{
		MessageID: batch.Header.MessageID,
		Message:   "ok",
		Res:       0,
		Retry:     false,
	})
}

// writeKldataResp always answers 200 OK: failures are communicated
// in-band through the res/retry fields, per §6.
func writeKldataResp(rw http.ResponseWriter, resp KldataResp) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(http.StatusOK)
	json.NewEncoder(rw).Encode(resp)
}

// mountAmbient wires the ambient /metrics and /v2/swagger/* endpoints
// plus the compress/recovery/CORS middleware stack shared by both
// routers, per §4.10.
func mountAmbient(r *mux.Router) {
	r.Handle("/metrics", metrics.Handler())
	r.PathPrefix("/v2/swagger/").Handler(httpSwagger.WrapHandler)
	r.Use(metrics.Middleware)
	r.Use(handlers.CompressHandler)
	r.Use(handlers.RecoveryHandler(handlers.PrintRecoveryStack(true)))
	r.Use(handlers.CORS(
		handlers.AllowedHeaders([]string{"Content-Type"}),
		handlers.AllowedMethods([]string{"GET", "POST"}),
		handlers.AllowedOrigins([]string{"*"}),
	))
}
