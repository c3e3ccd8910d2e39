// Package dataset provides LocationDataset adapters backed by a JSON file,
// Elasticsearch and PostgreSQL.
package dataset

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"go.uber.org/zap"

	"github.com/sitelens/backend/internal/domain"
)

// fixture is the on-disk layout of a location file
type fixture struct {
	Locations []domain.Location `json:"locations"`
}

// StaticDataset serves an immutable in-memory set of locations
type StaticDataset struct {
	byID  map[string]domain.Location
	order []string
}

// LoadFile reads and validates a JSON location fixture
func LoadFile(path string) ([]domain.Location, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read location file: %w", err)
	}

	var f fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse location file %s: %w", path, err)
	}
	return f.Locations, nil
}

// NewFileDataset loads a dataset from a JSON fixture file
func NewFileDataset(path string, logger *zap.Logger) (*StaticDataset, error) {
	locations, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	return NewStaticDataset(locations, logger)
}

// NewStaticDataset validates locations and indexes them by ID.
// Invalid records are skipped; duplicate IDs are an error.
func NewStaticDataset(locations []domain.Location, logger *zap.Logger) (*StaticDataset, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	d := &StaticDataset{
		byID:  make(map[string]domain.Location, len(locations)),
		order: make([]string, 0, len(locations)),
	}

	for i := range locations {
		loc := locations[i]
		if err := loc.Validate(); err != nil {
			logger.Warn("skipping invalid location", zap.Int("index", i), zap.Error(err))
			continue
		}
		if _, dup := d.byID[loc.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate id %q", domain.ErrInvalidLocation, loc.ID)
		}
		d.byID[loc.ID] = loc
		d.order = append(d.order, loc.ID)
	}
	sort.Strings(d.order)

	logger.Info("location dataset loaded", zap.Int("locations", len(d.order)))
	return d, nil
}

// FetchLocations returns the locations of an area suitable for a category
func (d *StaticDataset) FetchLocations(ctx context.Context, area string, category domain.Category) ([]domain.Location, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := make([]domain.Location, 0)
	for _, id := range d.order {
		loc := d.byID[id]
		if area != "" && loc.Area != area {
			continue
		}
		if !loc.SuitableFor(category) {
			continue
		}
		result = append(result, loc)
	}
	return result, nil
}

// FetchLocation returns a location by ID
func (d *StaticDataset) FetchLocation(ctx context.Context, id string) (*domain.Location, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	loc, ok := d.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrLocationNotFound, id)
	}
	return &loc, nil
}

// All returns every location in ID order
func (d *StaticDataset) All() []domain.Location {
	out := make([]domain.Location, 0, len(d.order))
	for _, id := range d.order {
		out = append(out, d.byID[id])
	}
	return out
}

// Len returns the number of loaded locations
func (d *StaticDataset) Len() int {
	return len(d.order)
}
