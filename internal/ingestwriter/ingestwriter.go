// Package ingestwriter is the Ingestion Writer (C6): it upserts a
// batch of resolved models.Datum rows, dispatching scalar vs non-scalar
// storage, with all upserts for a batch issued concurrently and
// awaited — any error aborts the batch and propagates (§4.5). This is
// the Go analogue of original_source/ingestion/src/lib.rs's
// insert_data, which fans the same upserts out over a
// FuturesUnordered; here golang.org/x/sync/errgroup plays that role.
package ingestwriter

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/metno/lard/internal/models"
	"github.com/metno/lard/internal/storage"
	"golang.org/x/sync/errgroup"
)

// Writer upserts batches of resolved observations.
type Writer struct {
	pool *pgxpool.Pool
}

// New builds a Writer over pool.
func New(pool *pgxpool.Pool) *Writer {
	return &Writer{pool: pool}
}

// Write upserts every datum in data concurrently, one goroutine per
// row pulled from the pool (§4.5: "all upserts for a batch are issued
// concurrently... and awaited; any error aborts the batch and
// propagates"). There is no cross-batch ordering guarantee, and within
// a batch no defined inter-row order either — conflict resolution makes
// final state a function of the set, not the sequence.
func (w *Writer) Write(ctx context.Context, data []models.Datum) error {
	g, ctx := errgroup.WithContext(ctx)

	for _, d := range data {
		d := d
		g.Go(func() error {
			if d.Text != nil {
				return storage.UpsertNonscalar(ctx, w.pool, d)
			}
			return storage.UpsertScalar(ctx, w.pool, d)
		})
	}

	return g.Wait()
}
