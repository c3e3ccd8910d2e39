package domain

import (
	"context"
	"time"
)

// CacheRepository defines the interface for caching operations.
// Values are stored as serialized snapshots and decoded into dest on read.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// LocationDataset is read-only access to location, demographic and category facts
type LocationDataset interface {
	// FetchLocations returns the candidate locations of an area for a category.
	// An empty area means every area.
	FetchLocations(ctx context.Context, area string, category Category) ([]Location, error)

	// FetchLocation returns a single location or ErrLocationNotFound
	FetchLocation(ctx context.Context, id string) (*Location, error)
}

// TextGenerator produces prose from a prompt. It is best effort.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
