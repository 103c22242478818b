package labelresolver

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/metno/lard/internal/errs"
	"github.com/metno/lard/internal/obsinn"
	"github.com/metno/lard/internal/paramreg"
	"github.com/metno/lard/internal/storage"
)

func TestCacheKeyDistinguishesLvlSensor(t *testing.T) {
	l0, s0 := int32(0), int32(1)
	a := cacheKey(storage.ObsinnKey{Nationalnummer: 1, TypeID: 2, ParamCode: "TA"})
	b := cacheKey(storage.ObsinnKey{Nationalnummer: 1, TypeID: 2, ParamCode: "TA", Lvl: &l0, Sensor: &s0})

	if a == b {
		t.Error("keys with and without lvl/sensor must not collide")
	}
}

func TestResolveUnknownParamIsParseError(t *testing.T) {
	reg, err := paramreg.Load(writeFixtureCSV(t, "106,TA,215108,t\n"))
	if err != nil {
		t.Fatalf("loading registry: %v", err)
	}

	r := &Resolver{reg: reg} // permits/pool untouched: unknown-param path returns before either is used

	header := obsinn.Header{StationID: 20001, TypeID: 501}
	row := obsinn.Row{Values: []obsinn.Value{{Text: "x"}}}
	columns := []obsinn.Column{{Name: "UNKNOWN"}}

	_, err = r.Resolve(context.Background(), header, row, columns)
	if errs.KindOf(err) != errs.Parse {
		t.Fatalf("expected Parse-kind error, got %v", err)
	}
}

// A registry miss rejects only that observation; every other column of
// the row must still be looked at (§4.4 step 1: fail the observation,
// not the batch). This is exercised with two unregistered columns so
// the whole row resolves without touching permits/storage, and the
// aggregated error must mention both, proving the loop didn't stop at
// the first miss.
func TestResolveUnknownParamDoesNotAbortRemainingColumns(t *testing.T) {
	reg, err := paramreg.Load(writeFixtureCSV(t, "106,TA,215108,t\n"))
	if err != nil {
		t.Fatalf("loading registry: %v", err)
	}

	r := &Resolver{reg: reg}

	header := obsinn.Header{StationID: 20001, TypeID: 501}
	row := obsinn.Row{Values: []obsinn.Value{{Text: "x"}, {Text: "y"}}}
	columns := []obsinn.Column{{Name: "UNKNOWN1"}, {Name: "UNKNOWN2"}}

	_, err = r.Resolve(context.Background(), header, row, columns)
	if errs.KindOf(err) != errs.Parse {
		t.Fatalf("expected Parse-kind error, got %v", err)
	}
	if !strings.Contains(err.Error(), "UNKNOWN1") || !strings.Contains(err.Error(), "UNKNOWN2") {
		t.Fatalf("expected both unregistered columns in error, got %q", err.Error())
	}
}

func writeFixtureCSV(t *testing.T, content string) string {
	t.Helper()
	f := t.TempDir() + "/params.csv"
	if err := os.WriteFile(f, []byte(content), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	return f
}
