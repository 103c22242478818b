package storage

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/metno/lard/internal/errs"
	"github.com/metno/lard/internal/models"
)

// LoadStationPermits queries the metadata store's v_message_policy view
// (the open-permits view documented in
// original_source/ingestion/src/permissions.rs) for the station-level
// permit map: station_id -> permit_id.
func LoadStationPermits(ctx context.Context, pool *pgxpool.Pool) (map[int32]int32, error) {
	const op = "storage.LoadStationPermits"

	rows, err := pool.Query(ctx, `
		SELECT station_id, permitid FROM v_message_policy
		WHERE totime IS NULL AND (fromtime IS NULL OR fromtime < now())
	`)
	if err != nil {
		return nil, errs.E(op, errs.Database, err)
	}
	defer rows.Close()

	out := map[int32]int32{}
	for rows.Next() {
		var station, permit int32
		if err := rows.Scan(&station, &permit); err != nil {
			return nil, errs.E(op, errs.Database, err)
		}
		out[station] = permit
	}
	if err := rows.Err(); err != nil {
		return nil, errs.E(op, errs.Database, err)
	}
	return out, nil
}

// LoadParamPermits queries the metadata store's per-(type,param) permit
// overrides, the ParamPermit table of §3/§4.3, keyed by station_id.
func LoadParamPermits(ctx context.Context, pool *pgxpool.Pool) (map[int32][]models.ParamPermitEntry, error) {
	const op = "storage.LoadParamPermits"

	rows, err := pool.Query(ctx, `
		SELECT station_id, type_id, param_id, permitid FROM v_param_policy
	`)
	if err != nil {
		return nil, errs.E(op, errs.Database, err)
	}
	defer rows.Close()

	out := map[int32][]models.ParamPermitEntry{}
	for rows.Next() {
		var station int32
		var e models.ParamPermitEntry
		if err := rows.Scan(&station, &e.Type, &e.Param, &e.PermitID); err != nil {
			return nil, errs.E(op, errs.Database, err)
		}
		out[station] = append(out[station], e)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.E(op, errs.Database, err)
	}
	return out, nil
}
