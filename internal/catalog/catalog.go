// Package catalog implements the persistent relational index (C7) mapping
// logical identity (model, parameter, level, reference_time,
// forecast_hour) to grid-array storage paths and zarr metadata blobs.
//
// Schema and upsert semantics are grounded on original_source's Rust
// catalog (crates/storage/src/catalog.rs); the Queries-struct/Row-struct
// shape of each method follows
// internal/db/sqlcgen/locality_locations_manual.go's
// (q *Queries) Method(ctx, params) (Row, error) pattern.
package catalog

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jcom-dev/weathergrid/internal/wmserr"
)

// Status is the lifecycle state of a catalog entry.
type Status string

const (
	StatusAvailable Status = "available"
	StatusExpired   Status = "expired"
)

// Entry is one row of the datasets table (spec §6).
type Entry struct {
	ID            string // uuid
	Model         string
	Parameter     string
	Level         string
	ReferenceTime time.Time
	ForecastHour  int
	ValidTime     time.Time // generated: reference_time + forecast_hour*1h

	BBoxMinX, BBoxMinY, BBoxMaxX, BBoxMaxY float64

	StoragePath  string
	FileSize     int64
	ZarrMetadata []byte // jsonb blob: the grid.Metadata manifest
	Status       Status
}

// Catalog wraps a pgxpool connection pool.
type Catalog struct {
	pool *pgxpool.Pool
}

// Connect opens a pool against dsn. Grounded on cmd/import-elevation's
// pgxpool.ParseConfig + MaxConns/MinConns tuning.
func Connect(ctx context.Context, dsn string) (*Catalog, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, wmserr.Wrap(wmserr.KindBadRequest, "invalid catalog dsn", err)
	}
	cfg.MaxConns = 20
	cfg.MinConns = 5

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, wmserr.Wrap(wmserr.KindTransportError, "failed to connect catalog pool", err)
	}
	return &Catalog{pool: pool}, nil
}

// Close releases the pool.
func (c *Catalog) Close() { c.pool.Close() }

// schemaSQL matches spec §6's abstract schema verbatim, plus the three
// required indexes.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS datasets (
    id uuid PRIMARY KEY DEFAULT gen_random_uuid(),
    model text NOT NULL,
    parameter text NOT NULL,
    level text NOT NULL,
    reference_time timestamptz NOT NULL,
    forecast_hour int NOT NULL,
    valid_time timestamptz GENERATED ALWAYS AS (reference_time + forecast_hour * interval '1 hour') STORED,
    bbox_min_x double precision NOT NULL,
    bbox_min_y double precision NOT NULL,
    bbox_max_x double precision NOT NULL,
    bbox_max_y double precision NOT NULL,
    storage_path text NOT NULL,
    file_size bigint NOT NULL,
    zarr_metadata jsonb NOT NULL,
    status text NOT NULL DEFAULT 'available',
    UNIQUE (model, parameter, level, reference_time, forecast_hour)
);
CREATE INDEX IF NOT EXISTS idx_datasets_model_parameter ON datasets (model, parameter);
CREATE INDEX IF NOT EXISTS idx_datasets_valid_time ON datasets (valid_time DESC);
CREATE INDEX IF NOT EXISTS idx_datasets_status ON datasets (status);
`

// Migrate applies the schema; idempotent.
func (c *Catalog) Migrate(ctx context.Context) error {
	if _, err := c.pool.Exec(ctx, schemaSQL); err != nil {
		return wmserr.Wrap(wmserr.KindTransportError, "catalog migration failed", err)
	}
	return nil
}

func scanEntry(row pgxRow) (Entry, error) {
	var e Entry
	err := row.Scan(
		&e.ID, &e.Model, &e.Parameter, &e.Level, &e.ReferenceTime, &e.ForecastHour, &e.ValidTime,
		&e.BBoxMinX, &e.BBoxMinY, &e.BBoxMaxX, &e.BBoxMaxY,
		&e.StoragePath, &e.FileSize, &e.ZarrMetadata, &e.Status,
	)
	return e, err
}

// pgxRow is the subset of pgx.Row used by scanEntry.
type pgxRow interface {
	Scan(dest ...any) error
}

const entryColumns = `
    id, model, parameter, level, reference_time, forecast_hour, valid_time,
    bbox_min_x, bbox_min_y, bbox_max_x, bbox_max_y,
    storage_path, file_size, zarr_metadata, status
`
