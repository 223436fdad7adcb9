package grid

import (
	"context"
	"testing"

	"github.com/jcom-dev/weathergrid/internal/chunkcache"
	"github.com/jcom-dev/weathergrid/internal/gridwriter"
	"github.com/jcom-dev/weathergrid/internal/projection"
	"github.com/jcom-dev/weathergrid/internal/store"
)

func writeTestArray(t *testing.T, w, h int, bbox projection.BBox) (store.Store, string) {
	t.Helper()
	st := store.NewLocalFS(t.TempDir())
	data := make([]float32, w*h)
	for i := range data {
		data[i] = float32(i)
	}
	err := gridwriter.Write(context.Background(), st, "arr", gridwriter.WriteRequest{
		Data: data, Width: w, Height: h, BBox: bbox,
		ChunkShape: [2]int{8, 8},
		Attributes: Attributes{Model: "test", Parameter: "T"},
	})
	if err != nil {
		t.Fatalf("gridwriter.Write: %v", err)
	}
	return st, "arr"
}

func TestReadFullRoundTrips(t *testing.T) {
	bbox := projection.BBox{MinLon: 0, MinLat: 0, MaxLon: 10, MaxLat: 10}
	st, path := writeTestArray(t, 16, 16, bbox)

	cache := chunkcache.New(1 << 20)
	r, err := Open(context.Background(), st, cache, path, 0)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	region, err := r.ReadFull(context.Background())
	if err != nil {
		t.Fatalf("ReadFull: %v", err)
	}
	if region.Width != 16 || region.Height != 16 {
		t.Fatalf("got %dx%d, want 16x16", region.Width, region.Height)
	}
	for i, v := range region.Data {
		if v != float32(i) {
			t.Fatalf("cell %d: got %v want %v", i, v, float32(i))
		}
	}
}

func TestReadRegionSharedEdgeIsIdentical(t *testing.T) {
	bbox := projection.BBox{MinLon: 0, MinLat: 0, MaxLon: 16, MaxLat: 16}
	st, path := writeTestArray(t, 16, 16, bbox)
	cache := chunkcache.New(1 << 20)
	r, err := Open(context.Background(), st, cache, path, 0)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	left, err := r.ReadRegion(context.Background(), projection.BBox{MinLon: 0, MinLat: 0, MaxLon: 8, MaxLat: 16})
	if err != nil {
		t.Fatalf("ReadRegion left: %v", err)
	}
	right, err := r.ReadRegion(context.Background(), projection.BBox{MinLon: 8, MinLat: 0, MaxLon: 16, MaxLat: 16})
	if err != nil {
		t.Fatalf("ReadRegion right: %v", err)
	}

	// The shared boundary column (left's last col) must equal right's first col.
	for row := 0; row < left.Height; row++ {
		l := left.Data[row*left.Width+left.Width-1]
		rr := right.Data[row*right.Width+0]
		if l != rr {
			t.Fatalf("row %d: seam mismatch left=%v right=%v", row, l, rr)
		}
	}
}

func TestReadPointReturnsNoValueForNaN(t *testing.T) {
	bbox := projection.BBox{MinLon: 0, MinLat: 0, MaxLon: 10, MaxLat: 10}
	st := store.NewLocalFS(t.TempDir())
	data := make([]float32, 100)
	for i := range data {
		data[i] = float32(i)
	}
	data[55] = float32NaN() // (row=5,col=5)

	err := gridwriter.Write(context.Background(), st, "arr", gridwriter.WriteRequest{
		Data: data, Width: 10, Height: 10, BBox: bbox,
		ChunkShape: [2]int{10, 10},
		Attributes: Attributes{Model: "test"},
	})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	cache := chunkcache.New(1 << 20)
	r, err := Open(context.Background(), st, cache, "arr", 0)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	// Cell (row=5,col=5): lon = 5.5, lat = 10 - 5.5 = 4.5
	_, ok, err := r.ReadPoint(context.Background(), 5.5, 4.5)
	if err != nil {
		t.Fatalf("ReadPoint: %v", err)
	}
	if ok {
		t.Error("expected NaN cell to report no value")
	}

	v, ok, err := r.ReadPoint(context.Background(), 0.5, 9.5)
	if err != nil {
		t.Fatalf("ReadPoint: %v", err)
	}
	if !ok || v != 0 {
		t.Errorf("expected neighbouring cell (0,0)=0, got ok=%v v=%v", ok, v)
	}
}

func float32NaN() float32 {
	var f float32
	return f / f
}
