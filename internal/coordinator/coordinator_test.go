package coordinator

import (
	"context"
	"encoding/json"
	"image/color"
	"testing"
	"time"

	"github.com/jcom-dev/weathergrid/internal/catalog"
	"github.com/jcom-dev/weathergrid/internal/chunkcache"
	"github.com/jcom-dev/weathergrid/internal/grid"
	"github.com/jcom-dev/weathergrid/internal/gridwriter"
	"github.com/jcom-dev/weathergrid/internal/projection"
	"github.com/jcom-dev/weathergrid/internal/query"
	"github.com/jcom-dev/weathergrid/internal/render/colormap"
	"github.com/jcom-dev/weathergrid/internal/store"
	"github.com/jcom-dev/weathergrid/internal/tilecache"
)

type fakeCatalog struct {
	entry catalog.Entry
	calls int
}

func (f *fakeCatalog) FindByTime(ctx context.Context, model, parameter string, t time.Time) (catalog.Entry, error) {
	f.calls++
	return f.entry, nil
}
func (f *fakeCatalog) FindByTimeAndLevel(ctx context.Context, model, parameter, level string, t time.Time) (catalog.Entry, error) {
	f.calls++
	return f.entry, nil
}
func (f *fakeCatalog) FindByForecastHour(ctx context.Context, model, parameter string, hour int) (catalog.Entry, error) {
	f.calls++
	return f.entry, nil
}
func (f *fakeCatalog) FindByForecastHourAndLevel(ctx context.Context, model, parameter, level string, hour int) (catalog.Entry, error) {
	f.calls++
	return f.entry, nil
}
func (f *fakeCatalog) GetLatestRunEarliestForecast(ctx context.Context, model, parameter string) (catalog.Entry, error) {
	f.calls++
	return f.entry, nil
}
func (f *fakeCatalog) GetLatestRunEarliestForecastAtLevel(ctx context.Context, model, parameter, level string) (catalog.Entry, error) {
	f.calls++
	return f.entry, nil
}

func setupWorldArray(t *testing.T) (store.Store, catalog.Entry) {
	t.Helper()
	st := store.NewLocalFS(t.TempDir())
	bbox := projection.BBox{MinLon: -180, MinLat: -85, MaxLon: 180, MaxLat: 85}
	w, h := 64, 64
	data := make([]float32, w*h)
	for i := range data {
		data[i] = float32(i%100) + 250 // plausible Kelvin-ish range
	}
	err := gridwriter.Write(context.Background(), st, "tmp2m/latest", gridwriter.WriteRequest{
		Data: data, Width: w, Height: h, BBox: bbox,
		ChunkShape: [2]int{16, 16},
		Attributes: grid.Attributes{Model: "gfs", Parameter: "TMP"},
	})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	meta, _ := json.Marshal(grid.Attributes{Model: "gfs", Parameter: "TMP"})
	entry := catalog.Entry{StoragePath: "tmp2m/latest", ZarrMetadata: meta}
	return st, entry
}

func rasterLayer() Layer {
	return Layer{
		Model:     "gfs",
		Parameter: "TMP",
		Styles: map[string]LayerStyle{
			"default": {
				Kind: RenderRaster,
				ColorStyle: colormap.Style{
					Stops: []colormap.Stop{
						{Value: 250, Color: color.RGBA{B: 255, A: 255}},
						{Value: 350, Color: color.RGBA{R: 255, A: 255}},
					},
					Transform: colormap.Identity,
				},
			},
		},
	}
}

func TestServeRendersAndPopulatesCaches(t *testing.T) {
	st, entry := setupWorldArray(t)
	fc := &fakeCatalog{entry: entry}
	chunks := chunkcache.New(1 << 20)
	l1 := tilecache.NewMemoryCache(1<<20, time.Minute)

	co := New(fc, st, chunks, l1, nil, map[string]Layer{"tmp2m": rasterLayer()})

	req := Request{Layer: "tmp2m", Style: "default", Z: 2, X: 2, Y: 1, TimeSpec: query.TimeSpec{Kind: query.Latest}}
	png, err := co.Serve(context.Background(), req)
	if err != nil {
		t.Fatalf("Serve: %v", err)
	}
	if len(png) == 0 {
		t.Fatal("expected non-empty PNG bytes")
	}
	if fc.calls != 1 {
		t.Errorf("expected 1 catalog call, got %d", fc.calls)
	}

	key := versionedCacheKey(req, []catalog.Entry{entry})
	if _, ok := l1.Get(key); !ok {
		t.Error("expected L1 cache populated after render")
	}

	// The catalog is still resolved on a second identical call (the
	// versioned cache key depends on its result), but the render work
	// itself is skipped: the bytes returned are the exact cached ones.
	second, err := co.Serve(context.Background(), req)
	if err != nil {
		t.Fatalf("Serve (cached): %v", err)
	}
	if fc.calls != 2 {
		t.Errorf("expected the catalog to be resolved again to check cache freshness, got %d calls", fc.calls)
	}
	if string(second) != string(png) {
		t.Error("expected the cached render to be returned unchanged on a cache hit")
	}
}

func TestServeBypassesStaleL1EntryAfterReingest(t *testing.T) {
	st, entry := setupWorldArray(t)
	entry.ID = "v1"
	fc := &fakeCatalog{entry: entry}
	chunks := chunkcache.New(1 << 20)
	l1 := tilecache.NewMemoryCache(1<<20, time.Minute)
	co := New(fc, st, chunks, l1, nil, map[string]Layer{"tmp2m": rasterLayer()})

	req := Request{Layer: "tmp2m", Style: "default", Z: 2, X: 2, Y: 1, TimeSpec: query.TimeSpec{Kind: query.Latest}}
	if _, err := co.Serve(context.Background(), req); err != nil {
		t.Fatalf("Serve: %v", err)
	}

	oldKey := versionedCacheKey(req, []catalog.Entry{{ID: "v1"}})
	if _, ok := l1.Get(oldKey); !ok {
		t.Fatal("expected the first render cached under the v1-versioned key")
	}

	// Simulate a re-ingest of the same (model, parameter, time): the
	// catalog now resolves to a new entry ID for the same coordinates.
	fc.entry.ID = "v2"
	if _, err := co.Serve(context.Background(), req); err != nil {
		t.Fatalf("Serve after re-ingest: %v", err)
	}

	newKey := versionedCacheKey(req, []catalog.Entry{{ID: "v2"}})
	if newKey == oldKey {
		t.Fatal("expected the cache key to change when the resolved catalog entry ID changes")
	}
	if _, ok := l1.Get(newKey); !ok {
		t.Error("expected the re-ingested render cached under the v2-versioned key, not served stale from v1")
	}
}

func TestServeReturnsBadRequestForUnknownLayer(t *testing.T) {
	st, entry := setupWorldArray(t)
	fc := &fakeCatalog{entry: entry}
	chunks := chunkcache.New(1 << 20)
	l1 := tilecache.NewMemoryCache(1<<20, time.Minute)
	co := New(fc, st, chunks, l1, nil, map[string]Layer{"tmp2m": rasterLayer()})

	_, err := co.Serve(context.Background(), Request{Layer: "nope", Style: "default"})
	if err == nil {
		t.Fatal("expected an error for an unregistered layer")
	}
}

func TestServeReturnsCancelledWhenContextAlreadyDone(t *testing.T) {
	st, entry := setupWorldArray(t)
	fc := &fakeCatalog{entry: entry}
	chunks := chunkcache.New(1 << 20)
	l1 := tilecache.NewMemoryCache(1<<20, time.Minute)
	co := New(fc, st, chunks, l1, nil, map[string]Layer{"tmp2m": rasterLayer()})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := co.Serve(ctx, Request{Layer: "tmp2m", Style: "default", TimeSpec: query.TimeSpec{Kind: query.Latest}})
	if err == nil {
		t.Fatal("expected cancellation error")
	}
}
