package querycomposer

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/metno/lard/internal/models"
)

func TestCadenceIntervalMapsAllWhitelistedTokens(t *testing.T) {
	cases := map[models.Cadence]string{
		models.CadenceMinute: "1 minute",
		models.CadenceHour:   "1 hour",
		models.CadenceDay:    "1 day",
	}
	for cadence, want := range cases {
		if got := cadenceInterval(cadence); got != want {
			t.Errorf("cadenceInterval(%v) = %q, want %q", cadence, got, want)
		}
	}
}

func TestUnknownCadenceTokenIsRejectedBeforeReachingQueryBuilder(t *testing.T) {
	for _, bad := range []models.Cadence{"PT5M", "bogus", ""} {
		if bad.Valid() {
			t.Errorf("%q must not be a valid cadence", bad)
		}
	}
}

func TestScanLocationNilWhenLatLonMissing(t *testing.T) {
	if loc := scanLocation(nil, nil, nil, nil); loc != nil {
		t.Fatalf("expected nil location, got %+v", loc)
	}
}

// The series response's regularity discriminator and header must
// reach the wire exactly as documented in spec.md §6, matching
// original_source/lard_tests/tests/end-to-end.rs's
// `assert_eq!(series.regularity, "Irregular"/"Regular")` assertions.
func TestIrregularSeriesMarshalsRegularityAndHeader(t *testing.T) {
	series := &models.IrregularSeries{
		Regularity: models.Irregular,
		Header: models.SeriesHeader{
			TimeseriesID: 7,
			StationID:    20001,
			ParamID:      211,
		},
		Data:       []*float32{nil},
		Timestamps: []time.Time{time.Unix(0, 0).UTC()},
	}

	raw, err := json.Marshal(series)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if decoded["regularity"] != "Irregular" {
		t.Errorf(`expected regularity "Irregular", got %v`, decoded["regularity"])
	}
	header, ok := decoded["header"].(map[string]any)
	if !ok {
		t.Fatalf("expected header object, got %T", decoded["header"])
	}
	if header["station_id"] != float64(20001) {
		t.Errorf("expected header.station_id = 20001, got %v", header["station_id"])
	}
}

func TestScanLocationFillsOptionalFields(t *testing.T) {
	lat, lon := 59.9, 10.7
	hamsl := float32(12.5)

	loc := scanLocation(&lat, &lon, &hamsl, nil)
	if loc == nil {
		t.Fatal("expected non-nil location")
	}
	if loc.Lat != lat || loc.Lon != lon {
		t.Errorf("unexpected lat/lon: %+v", loc)
	}
	if loc.Hamsl != hamsl {
		t.Errorf("unexpected hamsl: %v", loc.Hamsl)
	}
	if loc.Hag != 0 {
		t.Errorf("expected zero-value hag, got %v", loc.Hag)
	}
}
