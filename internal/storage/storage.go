package storage

import (
	"context"

	"liquidityEngine/internal/model"
)

// Storage defines a sink for operation results.
type Storage interface {
	PutResults(results []model.Result) error
	// TrimAfter drops results with a sequence above seq.
	TrimAfter(seq uint64) error
}

// SnapshotStore persists the latest replay snapshot.
type SnapshotStore interface {
	LoadSnapshot(ctx context.Context) (model.Snapshot, bool, error)
	SaveSnapshot(ctx context.Context, snap model.Snapshot) error
}
