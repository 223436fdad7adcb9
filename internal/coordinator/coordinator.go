// Package coordinator implements the tile-request coordinator (C18): the
// single entry point that turns a (layer, style, z, x, y, time_spec)
// request into encoded PNG bytes, per spec §4.18's nine-step flow.
//
// Grounded on the teacher's chi handler + context.Context cancellation
// conventions: every awaited step takes ctx and returns promptly if it is
// already cancelled, mirroring custommw.Timeout's request-scoped
// cancellation propagated through internal/services.
package coordinator

import (
	"context"
	"fmt"
	"image/color"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/jcom-dev/weathergrid/internal/catalog"
	"github.com/jcom-dev/weathergrid/internal/chunkcache"
	"github.com/jcom-dev/weathergrid/internal/grid"
	"github.com/jcom-dev/weathergrid/internal/metrics"
	"github.com/jcom-dev/weathergrid/internal/projection"
	"github.com/jcom-dev/weathergrid/internal/query"
	"github.com/jcom-dev/weathergrid/internal/render/colormap"
	"github.com/jcom-dev/weathergrid/internal/render/contour"
	"github.com/jcom-dev/weathergrid/internal/render/pngenc"
	"github.com/jcom-dev/weathergrid/internal/render/windbarb"
	"github.com/jcom-dev/weathergrid/internal/resample"
	"github.com/jcom-dev/weathergrid/internal/store"
	"github.com/jcom-dev/weathergrid/internal/tilecache"
	"github.com/jcom-dev/weathergrid/internal/wmserr"
)

// RenderKind selects which of C10/C11/C12 renders a layer's tiles.
type RenderKind int

const (
	RenderRaster RenderKind = iota
	RenderContour
	RenderWindBarb
)

// LayerStyle is one style's full render configuration, registered by
// name under a layer (spec §4.18 step 4: "decide renderer based on
// style").
type LayerStyle struct {
	Kind          RenderKind
	ColorStyle    colormap.Style
	ContourConfig contour.Config
	ContourStroke contour.StrokeStyle
	WindBarbStyle windbarb.Style

	// UComponent/VComponent name the two parameters a wind-barb style
	// resolves and reads instead of the layer's single Parameter.
	UComponent, VComponent string
}

// Layer maps a wire layer name to the catalog (model, parameter) it
// resolves against, plus its available named styles.
type Layer struct {
	Model     string
	Parameter string
	Styles    map[string]LayerStyle
}

// Request is one incoming tile request, already parsed from the HTTP
// route (spec §4.18: "(layer, style, z, x, y, time_spec)").
type Request struct {
	Layer, Style string
	Z, X, Y      int
	TimeSpec     query.TimeSpec
}

const tileSize = 256

// catalogReader is the subset of *catalog.Catalog query.Resolve calls,
// re-declared here (rather than imported, since query's is unexported)
// so the Coordinator is testable without a live database.
type catalogReader interface {
	FindByTime(ctx context.Context, model, parameter string, t time.Time) (catalog.Entry, error)
	FindByTimeAndLevel(ctx context.Context, model, parameter, level string, t time.Time) (catalog.Entry, error)
	FindByForecastHour(ctx context.Context, model, parameter string, hour int) (catalog.Entry, error)
	FindByForecastHourAndLevel(ctx context.Context, model, parameter, level string, hour int) (catalog.Entry, error)
	GetLatestRunEarliestForecast(ctx context.Context, model, parameter string) (catalog.Entry, error)
	GetLatestRunEarliestForecastAtLevel(ctx context.Context, model, parameter, level string) (catalog.Entry, error)
}

// Coordinator owns references to every component it orchestrates: the
// catalog, the array store, the chunk cache, the two tile-cache tiers,
// and the layer registry. Per spec §5's back-reference rule, none of
// C3/C14/C15 hold a reference back to the Coordinator.
type Coordinator struct {
	cat    catalogReader
	store  store.Store
	chunks *chunkcache.Cache
	l1     *tilecache.MemoryCache
	l2     *tilecache.RemoteCache
	layers map[string]Layer

	sf singleflight.Group
}

// New builds a Coordinator. l2 may be nil to run with only the L1 cache.
func New(cat catalogReader, st store.Store, chunks *chunkcache.Cache, l1 *tilecache.MemoryCache, l2 *tilecache.RemoteCache, layers map[string]Layer) *Coordinator {
	return &Coordinator{cat: cat, store: st, chunks: chunks, l1: l1, l2: l2, layers: layers}
}

// Serve executes the spec §4.18 flow and returns encoded PNG bytes.
// Concurrent Serve calls for the same request coordinates are coalesced
// via singleflight per the coordinator single-flight Open Question
// decision; the singleflight key is coordinate-only since the catalog
// entry it resolves to (and thus the versioned L1/L2 cache key) is only
// known once resolution runs inside the coalesced call.
func (c *Coordinator) Serve(ctx context.Context, req Request) ([]byte, error) {
	sfKey := requestKey(req)

	v, err, _ := c.sf.Do(sfKey, func() (interface{}, error) {
		return c.serveUncached(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

func (c *Coordinator) serveUncached(ctx context.Context, req Request) ([]byte, error) {
	start := time.Now()

	// Step 3: layer -> (model, parameter) and style lookup.
	layer, ok := c.layers[req.Layer]
	if !ok {
		return nil, wmserr.New(wmserr.KindBadRequest, "unknown layer: "+req.Layer)
	}
	style, ok := layer.Styles[req.Style]
	if !ok {
		return nil, wmserr.New(wmserr.KindBadRequest, "unknown style: "+req.Style)
	}

	if err := ctx.Err(); err != nil {
		return nil, wmserr.Wrap(wmserr.KindCancelled, "request cancelled before resolution", err)
	}

	// Resolve the catalog entry/entries the style needs before touching
	// the tile caches: the L1/L2 key is versioned with each entry's ID
	// (catalog.Entry.ID) so a re-ingest of the underlying array, which
	// registers a new catalog row with a new ID, invalidates stale L2
	// entries immediately instead of waiting out their TTL.
	var entries []catalog.Entry
	if style.Kind == RenderWindBarb {
		u, err := query.Resolve(ctx, c.cat, query.DatasetQuery{Model: layer.Model, Parameter: style.UComponent, TimeSpec: req.TimeSpec})
		if err != nil {
			return nil, err
		}
		v, err := query.Resolve(ctx, c.cat, query.DatasetQuery{Model: layer.Model, Parameter: style.VComponent, TimeSpec: req.TimeSpec})
		if err != nil {
			return nil, err
		}
		entries = []catalog.Entry{u, v}
	} else {
		entry, err := query.Resolve(ctx, c.cat, query.DatasetQuery{Model: layer.Model, Parameter: layer.Parameter, TimeSpec: req.TimeSpec})
		if err != nil {
			return nil, err
		}
		entries = []catalog.Entry{entry}
	}
	if err := ctx.Err(); err != nil {
		return nil, wmserr.Wrap(wmserr.KindCancelled, "request cancelled after catalog resolve", err)
	}

	key := versionedCacheKey(req, entries)

	// Steps 1-2: L1 then L2 cache lookup.
	if b, ok := c.l1.Get(key); ok {
		metrics.CacheHitsTotal.WithLabelValues("l1", "hit").Inc()
		metrics.TileRequestsTotal.WithLabelValues(req.Layer, "ok").Inc()
		return b, nil
	}
	metrics.CacheHitsTotal.WithLabelValues("l1", "miss").Inc()
	if c.l2 != nil {
		if b, ok := c.l2.Get(ctx, key); ok {
			metrics.CacheHitsTotal.WithLabelValues("l2", "hit").Inc()
			metrics.TileRequestsTotal.WithLabelValues(req.Layer, "ok").Inc()
			c.l1.Put(key, b)
			return b, nil
		}
		metrics.CacheHitsTotal.WithLabelValues("l2", "miss").Inc()
	}

	// Step 4: tile bbox (Web-Mercator).
	tileBBox := projection.TileBBox(req.Z, req.X, req.Y)

	var (
		png []byte
		err error
	)
	if style.Kind == RenderWindBarb {
		png, err = c.renderWindBarb(ctx, style, entries[0], entries[1], req, tileBBox)
	} else {
		png, err = c.renderScalar(ctx, style, entries[0], req, tileBBox)
	}
	if err != nil {
		metrics.TileRequestsTotal.WithLabelValues(req.Layer, "error").Inc()
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		// Partial work is never stored into caches on cancellation.
		metrics.TileRequestsTotal.WithLabelValues(req.Layer, "cancelled").Inc()
		return nil, wmserr.Wrap(wmserr.KindCancelled, "request cancelled after render", err)
	}

	metrics.TileRenderDuration.WithLabelValues(req.Layer).Observe(time.Since(start).Seconds())
	metrics.TileRequestsTotal.WithLabelValues(req.Layer, "ok").Inc()

	// Step 9: populate caches and return.
	c.l1.Put(key, png)
	if c.l2 != nil {
		c.l2.Put(ctx, key, png)
	}
	return png, nil
}

// renderScalar handles the raster-gradient and contour render kinds,
// both of which read and resample a single parameter.
func (c *Coordinator) renderScalar(ctx context.Context, style LayerStyle, entry catalog.Entry, req Request, tileBBox projection.BBox) ([]byte, error) {
	resampled, err := c.readAndResample(ctx, entry, req, tileBBox)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, wmserr.Wrap(wmserr.KindCancelled, "request cancelled after resample", err)
	}

	switch style.Kind {
	case RenderContour:
		// Contour tiles render at their own tile bbox without
		// multi-tile expansion (spec §4.18's contour tile caveat):
		// projection distortion from cropping a world-spanning render
		// would dominate any cross-tile line-continuity gain.
		polylines := contour.GenerateAll(resampled, tileSize, tileSize, style.ContourConfig)
		canvas := contour.RenderToCanvas(polylines, tileSize, tileSize, style.ContourStroke)
		return pngenc.EncodeRGBA(rgbaPixels(canvas.Pix), tileSize, tileSize)
	default:
		pal := colormap.BuildPalette(style.ColorStyle)
		indices := pal.RenderIndexed(resampled)
		return pngenc.EncodeIndexed(indices, tileSize, tileSize, pal)
	}
}

// renderWindBarb resamples the already-resolved u and v component
// entries separately, since wind barbs are the one render kind that
// reads two parameters for a single tile.
func (c *Coordinator) renderWindBarb(ctx context.Context, style LayerStyle, uEntry, vEntry catalog.Entry, req Request, tileBBox projection.BBox) ([]byte, error) {
	u, err := c.readAndResample(ctx, uEntry, req, tileBBox)
	if err != nil {
		return nil, err
	}
	v, err := c.readAndResample(ctx, vEntry, req, tileBBox)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, wmserr.Wrap(wmserr.KindCancelled, "request cancelled after resample", err)
	}

	samples := windbarb.SampleGrid(u, v, tileSize, tileSize, style.WindBarbStyle)
	canvas := windbarb.Render(samples, tileSize, tileSize, style.WindBarbStyle)
	return pngenc.EncodeRGBA(rgbaPixels(canvas.Pix), tileSize, tileSize)
}

// readAndResample implements spec §4.18 steps 5 (region read) and 6
// (resample). Resampling uses the Web-Mercator inverse-projection
// formula (spec §4.9 step 1) to map each output row to its true
// geographic latitude, since slippy-map tile rows are not linear in
// latitude away from the equator.
func (c *Coordinator) readAndResample(ctx context.Context, entry catalog.Entry, req Request, tileBBox projection.BBox) ([]float32, error) {
	region, err := c.readRegion(ctx, entry, tileBBox)
	if err != nil {
		return nil, err
	}

	src := resample.Source{Data: region.Data, Width: region.Width, Height: region.Height, BBox: region.BBox}
	return resample.ResampleMercator(src, tileSize, tileSize, tileBBox.MinLon, tileBBox.MaxLon, req.Z, req.Y, resample.Bilinear), nil
}

// readRegion implements spec §4.18 step 5, honoring requires_full_grid
// for non-geographic native projections and selecting the pyramid level
// (C5) closest to the tile's output resolution.
func (c *Coordinator) readRegion(ctx context.Context, entry catalog.Entry, tileBBox projection.BBox) (grid.Region, error) {
	base, err := grid.Open(ctx, c.store, c.chunks, entry.StoragePath, 0)
	if err != nil {
		return grid.Region{}, err
	}
	meta := base.Metadata()
	best := grid.SelectLevel(meta, tileSize, tileSize)

	r := base
	if best.Level != 0 {
		r, err = grid.Open(ctx, c.store, c.chunks, entry.StoragePath, best.Level)
		if err != nil {
			return grid.Region{}, err
		}
	}

	if meta.Attributes.RequiresFullGrid() {
		return r.ReadFull(ctx)
	}
	return r.ReadRegion(ctx, tileBBox)
}

// rgbaPixels reinterprets a freshly allocated image.RGBA's packed byte
// buffer (stride == 4*width, no cropping) as a []color.RGBA slice for
// pngenc.EncodeRGBA.
func rgbaPixels(pix []byte) []color.RGBA {
	out := make([]color.RGBA, len(pix)/4)
	for i := range out {
		out[i] = color.RGBA{R: pix[i*4], G: pix[i*4+1], B: pix[i*4+2], A: pix[i*4+3]}
	}
	return out
}

// requestKey identifies a request's coordinates alone, before catalog
// resolution, for singleflight coalescing of concurrent identical
// requests.
func requestKey(req Request) string {
	return tilecache.Key(req.Layer, req.Style, fmt.Sprintf("%d", req.Z), fmt.Sprintf("%d", req.X), fmt.Sprintf("%d", req.Y), timeSpecKey(req.TimeSpec))
}

// versionedCacheKey extends requestKey with each resolved catalog
// entry's ID, so the L1/L2 tile caches are versioned on the underlying
// array's identity rather than just its logical coordinates. A
// re-ingest registers a new catalog row (new ID) via register_dataset's
// upsert, which makes any L2 entry keyed on the old ID unaddressable
// instead of being served stale until TTL expiry.
func versionedCacheKey(req Request, entries []catalog.Entry) string {
	parts := []string{req.Layer, req.Style, fmt.Sprintf("%d", req.Z), fmt.Sprintf("%d", req.X), fmt.Sprintf("%d", req.Y), timeSpecKey(req.TimeSpec)}
	for _, e := range entries {
		parts = append(parts, e.ID)
	}
	return tilecache.Key(parts...)
}

func timeSpecKey(ts query.TimeSpec) string {
	switch ts.Kind {
	case query.Forecast:
		h := 0
		if ts.ForecastHour != nil {
			h = *ts.ForecastHour
		}
		return fmt.Sprintf("fh%d", h)
	case query.Observation:
		return "obs" + ts.Time.Format("20060102T150405Z")
	case query.ValidTime:
		return "vt" + ts.Time.Format("20060102T150405Z")
	default:
		return "latest"
	}
}
