package dataset

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/sitelens/backend/internal/domain"
)

const locationColumns = `id, name, area, foot_traffic, rent_index, estimated_cost, competitor_count, demographics, suitable_categories`

const schema = `CREATE TABLE IF NOT EXISTS locations (
	id                  TEXT PRIMARY KEY,
	name                TEXT NOT NULL DEFAULT '',
	area                TEXT NOT NULL DEFAULT '',
	foot_traffic        DOUBLE PRECISION NOT NULL,
	rent_index          DOUBLE PRECISION NOT NULL,
	estimated_cost      DOUBLE PRECISION NOT NULL DEFAULT 0,
	competitor_count    INTEGER NOT NULL DEFAULT 0,
	demographics        JSONB NOT NULL DEFAULT '{}',
	suitable_categories TEXT[] NOT NULL DEFAULT '{}'
);
CREATE INDEX IF NOT EXISTS locations_area_idx ON locations (area)`

const upsertLocation = `INSERT INTO locations (` + locationColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (id) DO UPDATE SET
	name = EXCLUDED.name,
	area = EXCLUDED.area,
	foot_traffic = EXCLUDED.foot_traffic,
	rent_index = EXCLUDED.rent_index,
	estimated_cost = EXCLUDED.estimated_cost,
	competitor_count = EXCLUDED.competitor_count,
	demographics = EXCLUDED.demographics,
	suitable_categories = EXCLUDED.suitable_categories`

// PostgresDataset reads locations from a PostgreSQL table
type PostgresDataset struct {
	db      *sql.DB
	timeout time.Duration
	logger  *zap.Logger
}

// OpenPostgres opens and pings a PostgreSQL connection.
// The DSN may be a URL or "host=... port=... user=... dbname=... sslmode=...".
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return db, nil
}

// NewPostgresDataset wraps an open database handle
func NewPostgresDataset(db *sql.DB, fetchTimeout time.Duration, logger *zap.Logger) *PostgresDataset {
	if fetchTimeout <= 0 {
		fetchTimeout = DefaultFetchTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostgresDataset{db: db, timeout: fetchTimeout, logger: logger}
}

// Close closes the database connection
func (p *PostgresDataset) Close() error {
	return p.db.Close()
}

// FetchLocations returns the locations of an area suitable for a category.
// Rows without categories match every category.
func (p *PostgresDataset) FetchLocations(ctx context.Context, area string, category domain.Category) ([]domain.Location, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	query := `SELECT ` + locationColumns + ` FROM locations
WHERE ($1 = '' OR area = $1)
  AND (cardinality(suitable_categories) = 0 OR $2 = ANY(suitable_categories))
ORDER BY id`

	rows, err := p.db.QueryContext(ctx, query, area, string(category))
	if err != nil {
		return nil, fmt.Errorf("query locations: %w", err)
	}
	defer rows.Close()

	locations := make([]domain.Location, 0)
	for rows.Next() {
		loc, err := scanLocation(rows)
		if err != nil {
			return nil, err
		}
		if err := loc.Validate(); err != nil {
			p.logger.Warn("skipping invalid location row", zap.String("id", loc.ID), zap.Error(err))
			continue
		}
		locations = append(locations, *loc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate locations: %w", err)
	}

	return locations, nil
}

// FetchLocation returns a location by ID
func (p *PostgresDataset) FetchLocation(ctx context.Context, id string) (*domain.Location, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	row := p.db.QueryRowContext(ctx, `SELECT `+locationColumns+` FROM locations WHERE id = $1`, id)
	loc, err := scanLocation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %q", domain.ErrLocationNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	if err := loc.Validate(); err != nil {
		return nil, err
	}
	return loc, nil
}

// EnsureSchema creates the locations table when missing
func (p *PostgresDataset) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// UpsertLocations writes locations in one transaction
func (p *PostgresDataset) UpsertLocations(ctx context.Context, locations []domain.Location) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, upsertLocation)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for i := range locations {
		loc := &locations[i]
		demographics, err := json.Marshal(loc.Demographics)
		if err != nil {
			return fmt.Errorf("encode demographics of %s: %w", loc.ID, err)
		}
		categories := loc.SuitableCategories
		if categories == nil {
			categories = []string{}
		}

		if _, err := stmt.ExecContext(ctx,
			loc.ID, loc.Name, loc.Area,
			loc.FootTraffic, loc.RentIndex, loc.EstimatedCost, loc.CompetitorCount,
			demographics, pq.Array(categories),
		); err != nil {
			return fmt.Errorf("upsert location %s: %w", loc.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	p.logger.Info("locations upserted", zap.Int("count", len(locations)))
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanLocation(row rowScanner) (*domain.Location, error) {
	var (
		loc          domain.Location
		demographics []byte
		categories   pq.StringArray
	)

	if err := row.Scan(
		&loc.ID,
		&loc.Name,
		&loc.Area,
		&loc.FootTraffic,
		&loc.RentIndex,
		&loc.EstimatedCost,
		&loc.CompetitorCount,
		&demographics,
		&categories,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan location: %w", err)
	}

	if len(demographics) > 0 {
		if err := json.Unmarshal(demographics, &loc.Demographics); err != nil {
			return nil, fmt.Errorf("decode demographics of %s: %w", loc.ID, err)
		}
	}
	if len(categories) > 0 {
		loc.SuitableCategories = []string(categories)
	}

	return &loc, nil
}
