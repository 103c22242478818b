package ingestwriter

import (
	"context"
	"testing"
)

func TestWriteEmptyBatchIsNoop(t *testing.T) {
	w := New(nil) // no upserts are issued for an empty batch, so the nil pool is never touched
	if err := w.Write(context.Background(), nil); err != nil {
		t.Fatalf("Write(nil): %v", err)
	}
}
