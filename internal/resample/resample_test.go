package resample

import (
	"math"
	"testing"

	"github.com/jcom-dev/weathergrid/internal/projection"
)

func flatSource(w, h int, val func(x, y int) float32) Source {
	data := make([]float32, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			data[y*w+x] = val(x, y)
		}
	}
	return Source{
		Data: data, Width: w, Height: h,
		BBox: projection.BBox{MinLon: 0, MinLat: 0, MaxLon: float64(w), MaxLat: float64(h)},
	}
}

func TestBilinearInterpolatesBetweenCells(t *testing.T) {
	src := flatSource(4, 4, func(x, y int) float32 { return float32(x) })
	v := sampleBilinear(src, 1.5, 2.0)
	if math.Abs(float64(v)-1.5) > 1e-6 {
		t.Errorf("got %v, want 1.5", v)
	}
}

func TestBilinearPropagatesNaN(t *testing.T) {
	src := flatSource(4, 4, func(x, y int) float32 { return float32(x) })
	src.Data[1*4+2] = float32(math.NaN()) // (x=2,y=1)
	v := sampleBilinear(src, 1.5, 1.5)
	if !isNaN32(v) {
		t.Errorf("expected NaN, got %v", v)
	}
}

func TestNearestPicksClosestCell(t *testing.T) {
	src := flatSource(4, 4, func(x, y int) float32 { return float32(10*y + x) })
	v := sampleNearest(src, 2.4, 1.4)
	if v != 12 {
		t.Errorf("got %v, want 12", v)
	}
}

func TestResampleSharedTileEdgeMatches(t *testing.T) {
	src := flatSource(16, 16, func(x, y int) float32 { return float32(x + y) })
	tgtBBox := projection.BBox{MinLon: 0, MinLat: 0, MaxLon: 16, MaxLat: 16}

	left := Resample(src, Target{Width: 8, Height: 16, BBox: projection.BBox{MinLon: 0, MinLat: 0, MaxLon: 8, MaxLat: 16}}, Bilinear)
	right := Resample(src, Target{Width: 8, Height: 16, BBox: projection.BBox{MinLon: 8, MinLat: 0, MaxLon: 16, MaxLat: 16}}, Bilinear)
	_ = tgtBBox

	for row := 0; row < 16; row++ {
		l := left[row*8+7]
		r := right[row*8+0]
		if math.Abs(float64(l-r)) > 1e-3 {
			t.Fatalf("row %d: seam mismatch left=%v right=%v", row, l, r)
		}
	}
}

func TestResampleMercatorUsesWebMercatorLatitude(t *testing.T) {
	// One source row per integer latitude, row value equal to that
	// latitude, so a resampled pixel's value is directly comparable to
	// a hand-computed expected latitude.
	const w, h = 4, 181
	src := Source{
		Data:   make([]float32, w*h),
		Width:  w,
		Height: h,
		BBox:   projection.BBox{MinLon: -180, MinLat: -90, MaxLon: 180, MaxLat: 90},
	}
	for y := 0; y < h; y++ {
		lat := float32(90 - y)
		for x := 0; x < w; x++ {
			src.Data[y*w+x] = lat
		}
	}

	const z, tileX, tileY, tileSize = 2, 1, 1, 256
	tileBBox := projection.TileBBox(z, tileX, tileY)

	mercator := ResampleMercator(src, tileSize, tileSize, tileBBox.MinLon, tileBBox.MaxLon, z, tileY, Nearest)
	n := math.Pow(2, float64(z))

	for _, ty := range []int{0, tileSize / 2, tileSize - 1} {
		yt := float64(ty) + 0.5
		globalYFrac := (float64(tileY) + yt/float64(tileSize)) / n
		wantLat := math.Atan(math.Sinh(math.Pi*(1-2*globalYFrac))) * 180 / math.Pi

		got := mercator[ty*tileSize]
		if math.Abs(float64(got)-wantLat) > 0.5 {
			t.Errorf("row %d: got lat %v, want %v (mercator-correct)", ty, got, wantLat)
		}
	}

	// A linear (non-Mercator) bbox interpolation agrees with the
	// Mercator-correct mapping at the tile's top/bottom edges by
	// construction, but diverges in between since true Mercator
	// latitude is not linear in pixel row. The middle row is where
	// that divergence is largest for this tile.
	mid := tileSize / 2
	linear := Resample(src, Target{Width: tileSize, Height: tileSize, BBox: tileBBox}, Nearest)
	if math.Abs(float64(mercator[mid*tileSize]-linear[mid*tileSize])) < 0.5 {
		t.Errorf("expected mercator and linear resampling to diverge at the tile's middle row, both gave %v", mercator[mid*tileSize])
	}
}

func TestBicubicMatchesLinearOnLinearField(t *testing.T) {
	src := flatSource(8, 8, func(x, y int) float32 { return float32(2*x + 3) })
	v := sampleBicubic(src, 3.5, 3.5)
	if math.Abs(float64(v)-10.0) > 1e-6 {
		t.Errorf("got %v, want 10.0", v)
	}
}
