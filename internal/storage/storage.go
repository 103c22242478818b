// Package storage is the Storage Facade (C1): it owns the pgxpool
// connection pool and exposes typed queries for observation insert/read
// and for label lookup/creation. Chosen over the teacher's sqlx+sqlite3
// pairing (internal/repository/dbConnection.go in the retrieval pack)
// because only jackc/pgx/v5 gives first-class access to Postgres
// composite types, binary COPY, and context-native queries — the three
// features the data model and the Bulk Seeder require. The connection
// setup mirrors josedab-agenttrace/api/internal/pkg/database/postgres.go's
// pgxpool.ParseConfig + pool-size + health-check-period pattern.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/metno/lard/internal/errs"
	"github.com/metno/lard/pkg/log"
)

// Storage wraps the pooled connection to the LARD database.
type Storage struct {
	Pool *pgxpool.Pool
}

// Options configure the pool beyond what's encoded in the DSN.
type Options struct {
	MaxConns int32
	MinConns int32
}

// Open parses connString and establishes a pgxpool with the given
// bounds, pinging once to fail fast on bad credentials or an
// unreachable host. An unparsable connection string is a Config-kind
// error; a pool or ping failure is Database-kind (§7).
func Open(ctx context.Context, connString string, opts Options) (*Storage, error) {
	const op = "storage.Open"

	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, errs.E(op, errs.Config, fmt.Errorf("parsing connection string: %w", err))
	}

	if opts.MaxConns > 0 {
		pgxCfg.MaxConns = opts.MaxConns
	}
	if opts.MinConns > 0 {
		pgxCfg.MinConns = opts.MinConns
	}
	pgxCfg.HealthCheckPeriod = time.Minute
	pgxCfg.MaxConnLifetime = time.Hour
	pgxCfg.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, errs.E(op, errs.Database, fmt.Errorf("creating pool: %w", err))
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errs.E(op, errs.Database, fmt.Errorf("pinging database: %w", err))
	}

	log.Infof("storage: connected, max_conns=%d min_conns=%d", pgxCfg.MaxConns, pgxCfg.MinConns)
	return &Storage{Pool: pool}, nil
}

// Close releases all pooled connections.
func (s *Storage) Close() {
	s.Pool.Close()
}
