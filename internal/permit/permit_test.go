package permit

import (
	"testing"

	"github.com/metno/lard/internal/models"
)

// newTestCache builds a Cache with preloaded tables, bypassing New's DB
// round-trip, to exercise IsOpen's decision table in isolation.
func newTestCache(station map[int32]int32, param map[int32][]models.ParamPermitEntry) *Cache {
	return &Cache{cur: &tables{stationPermits: station, paramPermits: param}}
}

func TestIsOpenStationPermitOnly(t *testing.T) {
	c := newTestCache(map[int32]int32{20001: 1, 20000: 2}, nil)

	if !c.IsOpen(20001, 501, 106) {
		t.Error("station 20001 should be open")
	}
	if c.IsOpen(20000, 501, 106) {
		t.Error("station 20000 should be closed")
	}
	if c.IsOpen(99999, 501, 106) {
		t.Error("unknown station should default closed")
	}
}

func TestIsOpenParamPermitOverridesStationPermit(t *testing.T) {
	station := map[int32]int32{20001: 1} // station-level open
	param := map[int32][]models.ParamPermitEntry{
		20001: {{Type: 501, Param: 106, PermitID: 2}}, // but this exact param is closed
	}
	c := newTestCache(station, param)

	if c.IsOpen(20001, 501, 106) {
		t.Error("exact param-permit override should close this series despite open station permit")
	}
	// Different param on the same station falls through to the
	// station-level permit since no ParamPermit entry matches.
	if !c.IsOpen(20001, 501, 999) {
		t.Error("non-matching param should fall back to station permit")
	}
}

func TestIsOpenParamPermitWildcards(t *testing.T) {
	param := map[int32][]models.ParamPermitEntry{
		20001: {{Type: 0, Param: 0, PermitID: 1}},
	}
	c := newTestCache(nil, param)

	if !c.IsOpen(20001, 999, 999) {
		t.Error("wildcard (type=0, param=0) entry should match any type/param")
	}
}

func TestIsOpenFirstMatchingParamEntryWins(t *testing.T) {
	param := map[int32][]models.ParamPermitEntry{
		20001: {
			{Type: 501, Param: 106, PermitID: 2},
			{Type: 0, Param: 0, PermitID: 1},
		},
	}
	c := newTestCache(nil, param)

	if c.IsOpen(20001, 501, 106) {
		t.Error("first matching entry (closed) should win over a later wildcard")
	}
}
