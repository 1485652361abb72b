package store

import (
	"context"

	"github.com/lagrafica/mailboard/internal/model"
)

// Store defines the persistence interface for processed markers and
// the activity trail. All writes go through one serialized writer so
// concurrent background polling and foreground requests never race a
// read-modify-write.
type Store interface {
	// IsProcessed reports whether the composite key (owner, uid) has
	// already been evaluated.
	IsProcessed(ctx context.Context, owner string, uid uint32) (bool, error)

	// MarkProcessed records the marker for a composite key. Writing an
	// already-present key is a no-op, never an error.
	MarkProcessed(ctx context.Context, m model.ProcessedMarker) error

	// ProcessedCount returns the number of recorded markers.
	ProcessedCount(ctx context.Context) (int, error)

	// LogActivity appends an entry to the activity trail.
	LogActivity(ctx context.Context, a model.Activity) error

	// RecentActivity returns the newest entries, most recent first.
	RecentActivity(ctx context.Context, limit int) ([]model.Activity, error)

	Close() error
}
