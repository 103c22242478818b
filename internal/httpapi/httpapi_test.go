package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/metno/lard/internal/errs"
	"github.com/metno/lard/internal/labelresolver"
	"github.com/metno/lard/internal/paramreg"
)

func emptyRegistry(t *testing.T) *paramreg.Registry {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "params-*.csv")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	reg, err := paramreg.Load(f.Name())
	if err != nil {
		t.Fatal(err)
	}
	return reg
}

func TestHandleKldataMalformedBodyIsParseErrorWithNoRetry(t *testing.T) {
	api := NewIngestAPI(emptyRegistry(t), nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/kldata", strings.NewReader("not a kldata batch"))
	rw := httptest.NewRecorder()

	api.handleKldata(rw, req)

	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200 OK (errors are in-band), got %d", rw.Code)
	}

	var resp KldataResp
	if err := json.NewDecoder(rw.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Res != 1 {
		t.Errorf("expected res=1, got %d", resp.Res)
	}
	if resp.Retry {
		t.Errorf("expected retry=false for a parse error")
	}
}

// An unregistered param_code must reject only that observation, not
// abort the request, and must still be reported in-band rather than
// crash the handler, matching the always-200 in-band error protocol.
func TestHandleKldataUnregisteredParamReportsPartialRejectNotBatchFailure(t *testing.T) {
	reg := emptyRegistry(t) // no params registered at all

	// A nil pool/permit cache is safe here: every column is unregistered,
	// so Resolve's registry-miss path rejects each one before ever
	// touching r.pool or r.permits.
	resolver := labelresolver.New(nil, reg, nil, 0)
	api := NewIngestAPI(reg, resolver, nil)

	body := "kldata/nationalnr=99999/type=501/messageid=23\n" +
		"UNKNOWNCODE\n" +
		"20240101120000,1.0"
	req := httptest.NewRequest(http.MethodPost, "/kldata", strings.NewReader(body))
	rw := httptest.NewRecorder()

	api.handleKldata(rw, req)

	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200 OK (errors are in-band), got %d", rw.Code)
	}

	var resp KldataResp
	if err := json.NewDecoder(rw.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Res != 1 {
		t.Errorf("expected res=1 when every param_code is unregistered, got %d", resp.Res)
	}
	if resp.Retry {
		t.Errorf("expected retry=false: a registry miss is a Parse-kind error")
	}
}

func TestParseInt32(t *testing.T) {
	n, err := parseInt32("18700")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 18700 {
		t.Errorf("got %d, want 18700", n)
	}

	if _, err := parseInt32("not-a-number"); err == nil {
		t.Error("expected error for non-numeric input")
	}
}

func TestWriteErrorMapsKindToStatus(t *testing.T) {
	cases := []struct {
		kind errs.Kind
		want int
	}{
		{errs.Parse, http.StatusBadRequest},
		{errs.NotFound, http.StatusNotFound},
		{errs.Database, http.StatusInternalServerError},
	}

	for _, c := range cases {
		rw := httptest.NewRecorder()
		writeError(rw, errs.E("test", c.kind, nil))
		if rw.Code != c.want {
			t.Errorf("kind %v: got status %d, want %d", c.kind, rw.Code, c.want)
		}
	}
}
