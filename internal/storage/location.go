package storage

import "github.com/metno/lard/internal/models"

// scanLocation reads the four fields of a `loc` composite column that's
// been decomposed with `(loc).lat, (loc).lon, (loc).hamsl, (loc).hag` in
// the SELECT list, avoiding a dependency on registering the composite
// type with pgx's type map for every query path. Matches the
// Location{lat,lon,hamsl,hag} composite documented in
// original_source/api/src/util.rs.
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

func locationArgs(loc *models.Location) (lat, lon *float64, hamsl, hag *float32) {
	if loc == nil {
		return nil, nil, nil, nil
	}
	return &loc.Lat, &loc.Lon, &loc.Hamsl, &loc.Hag
}
