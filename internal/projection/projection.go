// Package projection implements the forward/inverse grid transforms used
// by the grid engine: Geographic (identity), Lambert Conformal Conic, and
// Geostationary, plus the bounds-derivation helper shared by all three.
package projection

import "math"

// BBox is an axis-aligned geographic rectangle in WGS-84 degrees.
type BBox struct {
	MinLon, MinLat, MaxLon, MaxLat float64
}

// Projection maps between geographic coordinates and grid index space for
// a single array. Implementations must be safe for concurrent use; all of
// them are pure functions over immutable parameters.
type Projection interface {
	// GeoToGrid returns the fractional (col, row) for (lat, lon), and ok=false
	// if the point falls off the earth or outside the projection's domain.
	GeoToGrid(lat, lon float64) (col, row float64, ok bool)
	// GridToGeo returns (lat, lon) for a fractional (col, row), and ok=false
	// if the point is off-earth (relevant to Geostationary).
	GridToGeo(col, row float64) (lat, lon float64, ok bool)
	// GeographicBounds returns the projection's geographic bounding box,
	// derived by edge sampling for non-rectangular projections.
	GeographicBounds() BBox
	// Dimensions returns (nx, ny), the grid's column and row counts.
	Dimensions() (nx, ny int)
}

// EdgeSamplesPerEdge is the number of points sampled along each of the four
// grid edges when deriving a geographic bounding box for a non-geographic
// projection. The source specification used 50; the Open Question notes
// ask implementers unsure of their projection to sample more densely, not
// less, so this raises it to 64.
const EdgeSamplesPerEdge = 64

// deriveBounds samples all four edges of the grid in index space, converts
// each sample to geographic coordinates via toGeo, and returns the min/max
// envelope of the valid (on-earth) samples. Corner-only sampling is
// insufficient for curved graticules (Lambert, Geostationary), which is why
// every edge is walked at EdgeSamplesPerEdge points.
func deriveBounds(nx, ny int, toGeo func(col, row float64) (lat, lon float64, ok bool)) BBox {
	bb := BBox{
		MinLon: math.Inf(1), MinLat: math.Inf(1),
		MaxLon: math.Inf(-1), MaxLat: math.Inf(-1),
	}
	found := false
	accumulate := func(col, row float64) {
		lat, lon, ok := toGeo(col, row)
		if !ok {
			return
		}
		found = true
		if lon < bb.MinLon {
			bb.MinLon = lon
		}
		if lon > bb.MaxLon {
			bb.MaxLon = lon
		}
		if lat < bb.MinLat {
			bb.MinLat = lat
		}
		if lat > bb.MaxLat {
			bb.MaxLat = lat
		}
	}

	fx := float64(nx - 1)
	fy := float64(ny - 1)
	n := EdgeSamplesPerEdge
	for i := 0; i < n; i++ {
		t := float64(i) / float64(n-1)
		accumulate(t*fx, 0)  // top edge
		accumulate(t*fx, fy) // bottom edge
		accumulate(0, t*fy)  // left edge
		accumulate(fx, t*fy) // right edge
	}

	if !found {
		return BBox{}
	}
	return bb
}

// normalizeLonDiff normalizes a longitude difference (radians) to (-pi, pi].
func normalizeLonDiff(d float64) float64 {
	for d > math.Pi {
		d -= 2 * math.Pi
	}
	for d <= -math.Pi {
		d += 2 * math.Pi
	}
	return d
}
