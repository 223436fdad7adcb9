package catalog

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jcom-dev/weathergrid/internal/wmserr"
)

// RegisterDatasetParams is the identity + artifact tuple the writer (C6)
// hands to the catalog after a successful write.
type RegisterDatasetParams struct {
	Model, Parameter, Level string
	ReferenceTime           time.Time
	ForecastHour            int
	BBoxMinX, BBoxMinY, BBoxMaxX, BBoxMaxY float64
	StoragePath             string
	FileSize                int64
	ZarrMetadata            []byte
}

// RegisterDataset upserts on the uniqueness key
// (model, parameter, level, reference_time, forecast_hour), per spec §4.7
// and original_source/crates/storage/src/catalog.rs's
// ON CONFLICT ... DO UPDATE semantics. A re-ingest of an existing key gets
// a fresh id, which versions the tile-cache keys built from it.
func (c *Catalog) RegisterDataset(ctx context.Context, p RegisterDatasetParams) (string, error) {
	const q = `
		INSERT INTO datasets (
			model, parameter, level, reference_time, forecast_hour,
			bbox_min_x, bbox_min_y, bbox_max_x, bbox_max_y,
			storage_path, file_size, zarr_metadata, status
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,'available')
		ON CONFLICT (model, parameter, level, reference_time, forecast_hour)
		DO UPDATE SET
			id = gen_random_uuid(),
			storage_path = EXCLUDED.storage_path,
			file_size = EXCLUDED.file_size,
			zarr_metadata = EXCLUDED.zarr_metadata,
			status = 'available'
		RETURNING id
	`
	var id string
	err := c.pool.QueryRow(ctx, q,
		p.Model, p.Parameter, p.Level, p.ReferenceTime, p.ForecastHour,
		p.BBoxMinX, p.BBoxMinY, p.BBoxMaxX, p.BBoxMaxY,
		p.StoragePath, p.FileSize, p.ZarrMetadata,
	).Scan(&id)
	if err != nil {
		return "", wmserr.Wrap(wmserr.KindTransportError, "register_dataset failed", err)
	}
	return id, nil
}

// FindByForecastHour returns the entry at the latest reference_time
// matching hour, for (model, parameter).
func (c *Catalog) FindByForecastHour(ctx context.Context, model, parameter string, hour int) (Entry, error) {
	const q = `
		SELECT ` + entryColumns + ` FROM datasets
		WHERE model=$1 AND parameter=$2 AND forecast_hour=$3 AND status='available'
		ORDER BY reference_time DESC LIMIT 1
	`
	return c.queryOne(ctx, q, model, parameter, hour)
}

// FindByForecastHourAndLevel is FindByForecastHour filtered additionally by level.
func (c *Catalog) FindByForecastHourAndLevel(ctx context.Context, model, parameter, level string, hour int) (Entry, error) {
	const q = `
		SELECT ` + entryColumns + ` FROM datasets
		WHERE model=$1 AND parameter=$2 AND level=$3 AND forecast_hour=$4 AND status='available'
		ORDER BY reference_time DESC LIMIT 1
	`
	return c.queryOne(ctx, q, model, parameter, level, hour)
}

// FindByTime returns the entry whose valid_time is closest to t.
func (c *Catalog) FindByTime(ctx context.Context, model, parameter string, t time.Time) (Entry, error) {
	const q = `
		SELECT ` + entryColumns + ` FROM datasets
		WHERE model=$1 AND parameter=$2 AND status='available'
		ORDER BY abs(extract(epoch FROM valid_time - $3::timestamptz)) ASC LIMIT 1
	`
	return c.queryOne(ctx, q, model, parameter, t)
}

// FindByTimeAndLevel is FindByTime filtered additionally by level.
func (c *Catalog) FindByTimeAndLevel(ctx context.Context, model, parameter, level string, t time.Time) (Entry, error) {
	const q = `
		SELECT ` + entryColumns + ` FROM datasets
		WHERE model=$1 AND parameter=$2 AND level=$3 AND status='available'
		ORDER BY abs(extract(epoch FROM valid_time - $4::timestamptz)) ASC LIMIT 1
	`
	return c.queryOne(ctx, q, model, parameter, level, t)
}

// GetLatestRunEarliestForecast returns the earliest-forecast-hour entry of
// the most recent reference_time run, for (model, parameter).
func (c *Catalog) GetLatestRunEarliestForecast(ctx context.Context, model, parameter string) (Entry, error) {
	const q = `
		SELECT ` + entryColumns + ` FROM datasets
		WHERE model=$1 AND parameter=$2 AND status='available'
		  AND reference_time = (
		      SELECT max(reference_time) FROM datasets
		      WHERE model=$1 AND parameter=$2 AND status='available'
		  )
		ORDER BY forecast_hour ASC LIMIT 1
	`
	return c.queryOne(ctx, q, model, parameter)
}

// GetLatestRunEarliestForecastAtLevel is GetLatestRunEarliestForecast
// filtered additionally by level.
func (c *Catalog) GetLatestRunEarliestForecastAtLevel(ctx context.Context, model, parameter, level string) (Entry, error) {
	const q = `
		SELECT ` + entryColumns + ` FROM datasets
		WHERE model=$1 AND parameter=$2 AND level=$3 AND status='available'
		  AND reference_time = (
		      SELECT max(reference_time) FROM datasets
		      WHERE model=$1 AND parameter=$2 AND level=$3 AND status='available'
		  )
		ORDER BY forecast_hour ASC LIMIT 1
	`
	return c.queryOne(ctx, q, model, parameter, level)
}

func (c *Catalog) queryOne(ctx context.Context, q string, args ...any) (Entry, error) {
	row := c.pool.QueryRow(ctx, q, args...)
	e, err := scanEntry(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return Entry{}, wmserr.New(wmserr.KindNotFound, "no matching catalog entry")
		}
		return Entry{}, wmserr.Wrap(wmserr.KindTransportError, "catalog query failed", err)
	}
	return e, nil
}

// ModelBBox is the aggregate bounding box covering every available entry
// for a model.
type ModelBBox struct {
	MinX, MinY, MaxX, MaxY float64
}

// GetModelBBox returns the union bbox across all available entries for model.
func (c *Catalog) GetModelBBox(ctx context.Context, model string) (ModelBBox, error) {
	const q = `
		SELECT min(bbox_min_x), min(bbox_min_y), max(bbox_max_x), max(bbox_max_y)
		FROM datasets WHERE model=$1 AND status='available'
	`
	var b ModelBBox
	if err := c.pool.QueryRow(ctx, q, model).Scan(&b.MinX, &b.MinY, &b.MaxX, &b.MaxY); err != nil {
		return ModelBBox{}, wmserr.Wrap(wmserr.KindTransportError, "get_model_bbox failed", err)
	}
	return b, nil
}

// TemporalExtent is the [min,max] valid_time range for a model.
type TemporalExtent struct {
	Start, End time.Time
}

// GetModelTemporalExtent returns the valid_time range across all available
// entries for model.
func (c *Catalog) GetModelTemporalExtent(ctx context.Context, model string) (TemporalExtent, error) {
	const q = `
		SELECT min(valid_time), max(valid_time) FROM datasets
		WHERE model=$1 AND status='available'
	`
	var t TemporalExtent
	if err := c.pool.QueryRow(ctx, q, model).Scan(&t.Start, &t.End); err != nil {
		return TemporalExtent{}, wmserr.Wrap(wmserr.KindTransportError, "get_model_temporal_extent failed", err)
	}
	return t, nil
}

// GetModelValidTimes returns every distinct valid_time for model, descending.
func (c *Catalog) GetModelValidTimes(ctx context.Context, model string) ([]time.Time, error) {
	const q = `
		SELECT DISTINCT valid_time FROM datasets
		WHERE model=$1 AND status='available' ORDER BY valid_time DESC
	`
	rows, err := c.pool.Query(ctx, q, model)
	if err != nil {
		return nil, wmserr.Wrap(wmserr.KindTransportError, "get_model_valid_times failed", err)
	}
	defer rows.Close()

	var out []time.Time
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			return nil, wmserr.Wrap(wmserr.KindTransportError, "get_model_valid_times scan failed", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// RunWithCount is one reference_time run and how many entries it has.
type RunWithCount struct {
	ReferenceTime time.Time
	Count         int
}

// GetModelRunsWithCounts returns every reference_time run for model with
// its entry count, descending by run time.
func (c *Catalog) GetModelRunsWithCounts(ctx context.Context, model string) ([]RunWithCount, error) {
	const q = `
		SELECT reference_time, count(*) FROM datasets
		WHERE model=$1 AND status='available'
		GROUP BY reference_time ORDER BY reference_time DESC
	`
	rows, err := c.pool.Query(ctx, q, model)
	if err != nil {
		return nil, wmserr.Wrap(wmserr.KindTransportError, "get_model_runs_with_counts failed", err)
	}
	defer rows.Close()

	var out []RunWithCount
	for rows.Next() {
		var r RunWithCount
		if err := rows.Scan(&r.ReferenceTime, &r.Count); err != nil {
			return nil, wmserr.Wrap(wmserr.KindTransportError, "get_model_runs_with_counts scan failed", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ForecastRange is the min/max forecast_hour for one run.
type ForecastRange struct {
	MinHour, MaxHour int
}

// GetRunForecastRange returns the forecast_hour span for (model, parameter,
// reference_time).
func (c *Catalog) GetRunForecastRange(ctx context.Context, model, parameter string, referenceTime time.Time) (ForecastRange, error) {
	const q = `
		SELECT min(forecast_hour), max(forecast_hour) FROM datasets
		WHERE model=$1 AND parameter=$2 AND reference_time=$3 AND status='available'
	`
	var r ForecastRange
	if err := c.pool.QueryRow(ctx, q, model, parameter, referenceTime).Scan(&r.MinHour, &r.MaxHour); err != nil {
		return ForecastRange{}, wmserr.Wrap(wmserr.KindTransportError, "get_run_forecast_range failed", err)
	}
	return r, nil
}

// MarkExpired marks every entry older than before as expired, returning
// the number of rows affected.
func (c *Catalog) MarkExpired(ctx context.Context, before time.Time) (int64, error) {
	tag, err := c.pool.Exec(ctx, `UPDATE datasets SET status='expired' WHERE reference_time < $1 AND status='available'`, before)
	if err != nil {
		return 0, wmserr.Wrap(wmserr.KindTransportError, "mark_expired failed", err)
	}
	return tag.RowsAffected(), nil
}

// MarkModelExpired is MarkExpired filtered to one model.
func (c *Catalog) MarkModelExpired(ctx context.Context, model string, before time.Time) (int64, error) {
	tag, err := c.pool.Exec(ctx, `UPDATE datasets SET status='expired' WHERE model=$1 AND reference_time < $2 AND status='available'`, model, before)
	if err != nil {
		return 0, wmserr.Wrap(wmserr.KindTransportError, "mark_model_expired failed", err)
	}
	return tag.RowsAffected(), nil
}

// GetExpiredStoragePaths returns the storage_path of every expired entry,
// for the cleanup task to delete from the store before removing rows.
func (c *Catalog) GetExpiredStoragePaths(ctx context.Context) ([]string, error) {
	rows, err := c.pool.Query(ctx, `SELECT storage_path FROM datasets WHERE status='expired'`)
	if err != nil {
		return nil, wmserr.Wrap(wmserr.KindTransportError, "get_expired_storage_paths failed", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, wmserr.Wrap(wmserr.KindTransportError, "get_expired_storage_paths scan failed", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// DeleteExpired removes every expired row, returning the count deleted.
// The cleanup task calls GetExpiredStoragePaths + Store.Delete first.
func (c *Catalog) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := c.pool.Exec(ctx, `DELETE FROM datasets WHERE status='expired'`)
	if err != nil {
		return 0, wmserr.Wrap(wmserr.KindTransportError, "delete_expired failed", err)
	}
	return tag.RowsAffected(), nil
}

// ListModels returns every distinct model name present in the catalog.
func (c *Catalog) ListModels(ctx context.Context) ([]string, error) {
	rows, err := c.pool.Query(ctx, `SELECT DISTINCT model FROM datasets ORDER BY model`)
	if err != nil {
		return nil, wmserr.Wrap(wmserr.KindTransportError, "list_models failed", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return nil, wmserr.Wrap(wmserr.KindTransportError, "list_models scan failed", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ListParameters returns every distinct parameter for model.
func (c *Catalog) ListParameters(ctx context.Context, model string) ([]string, error) {
	rows, err := c.pool.Query(ctx, `SELECT DISTINCT parameter FROM datasets WHERE model=$1 ORDER BY parameter`, model)
	if err != nil {
		return nil, wmserr.Wrap(wmserr.KindTransportError, "list_parameters failed", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, wmserr.Wrap(wmserr.KindTransportError, "list_parameters scan failed", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ListRecentEntries returns up to keepRecent entries for (model,
// parameter), newest reference_time first and, within a run, lowest
// forecast_hour first; several entries may share a reference_time. This
// is the array-discovery query the cache warmer (C16) uses to find
// "the keep_recent most recent arrays of that model" (spec §4.16).
func (c *Catalog) ListRecentEntries(ctx context.Context, model, parameter string, keepRecent int) ([]Entry, error) {
	const q = `
		SELECT ` + entryColumns + ` FROM datasets
		WHERE model=$1 AND parameter=$2 AND status='available'
		ORDER BY reference_time DESC, forecast_hour ASC
		LIMIT $3
	`
	rows, err := c.pool.Query(ctx, q, model, parameter, keepRecent)
	if err != nil {
		return nil, wmserr.Wrap(wmserr.KindTransportError, "list_recent_entries failed", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, wmserr.Wrap(wmserr.KindTransportError, "list_recent_entries scan failed", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
