package httpapi

import (
	"context"
	"time"

	"github.com/jcom-dev/weathergrid/internal/catalog"
	"github.com/jcom-dev/weathergrid/internal/chunkcache"
	"github.com/jcom-dev/weathergrid/internal/grid"
	"github.com/jcom-dev/weathergrid/internal/query"
	"github.com/jcom-dev/weathergrid/internal/store"
)

// catalogReader is the subset of *catalog.Catalog query.Resolve calls,
// re-declared here (rather than imported, since query's is unexported)
// so CatalogResolver is testable without a live database. Matches
// coordinator's catalogReader exactly.
type catalogReader interface {
	FindByTime(ctx context.Context, model, parameter string, t time.Time) (catalog.Entry, error)
	FindByTimeAndLevel(ctx context.Context, model, parameter, level string, t time.Time) (catalog.Entry, error)
	FindByForecastHour(ctx context.Context, model, parameter string, hour int) (catalog.Entry, error)
	FindByForecastHourAndLevel(ctx context.Context, model, parameter, level string, hour int) (catalog.Entry, error)
	GetLatestRunEarliestForecast(ctx context.Context, model, parameter string) (catalog.Entry, error)
	GetLatestRunEarliestForecastAtLevel(ctx context.Context, model, parameter, level string) (catalog.Entry, error)
}

// CatalogResolver opens level-0 point readers directly over the store
// and chunk cache, for the EDR position endpoint. Unlike the tile
// coordinator, EDR point queries always read the full-resolution level
// since there is no tile-bbox-driven pyramid selection to perform.
type CatalogResolver struct {
	Cat    catalogReader
	Store  store.Store
	Chunks *chunkcache.Cache
}

// NewCatalogResolver builds a CatalogResolver over a live catalog, store,
// and chunk cache.
func NewCatalogResolver(cat catalogReader, st store.Store, chunks *chunkcache.Cache) *CatalogResolver {
	return &CatalogResolver{Cat: cat, Store: st, Chunks: chunks}
}

func (r *CatalogResolver) Resolve(ctx context.Context, model, parameter string, ts query.TimeSpec) (PointReader, error) {
	entry, err := query.Resolve(ctx, r.Cat, query.DatasetQuery{Model: model, Parameter: parameter, TimeSpec: ts})
	if err != nil {
		return nil, err
	}
	return grid.Open(ctx, r.Store, r.Chunks, entry.StoragePath, 0)
}
