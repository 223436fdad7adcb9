package projection

import "testing"

func TestGeographicRoundTrip(t *testing.T) {
	bbox := BBox{MinLon: -130, MinLat: 20, MaxLon: -60, MaxLat: 55}
	g := NewGeographic(bbox, 1400, 700)

	cases := []struct{ lat, lon float64 }{
		{30, -100}, {45, -90}, {20, -130}, {55, -60.0001},
	}
	for _, c := range cases {
		col, row, ok := g.GeoToGrid(c.lat, c.lon)
		if !ok {
			t.Fatalf("GeoToGrid(%v,%v) rejected", c.lat, c.lon)
		}
		lat, lon, ok := g.GridToGeo(col, row)
		if !ok {
			t.Fatalf("GridToGeo(%v,%v) rejected", col, row)
		}
		if diff := absf(lat - c.lat); diff > 1e-6 {
			t.Errorf("lat round trip: got %v want %v", lat, c.lat)
		}
		if diff := absf(lon - c.lon); diff > 1e-6 {
			t.Errorf("lon round trip: got %v want %v", lon, c.lon)
		}
	}
}

func TestGeographicOutOfBounds(t *testing.T) {
	g := NewGeographic(BBox{MinLon: 0, MinLat: 0, MaxLon: 10, MaxLat: 10}, 100, 100)
	if _, _, ok := g.GeoToGrid(50, 50); ok {
		t.Fatal("expected out-of-bounds rejection")
	}
}

func TestLCCRoundTrip(t *testing.T) {
	// CONUS-like NAM LCC grid parameters.
	p := LCCParams{
		Lat1: 12.19, Lon1: -133.459,
		Lov:    -95,
		Latin1: 25, Latin2: 25,
		Dx: 5079, Dy: 5079,
		Nx: 614, Ny: 428,
	}
	lcc := NewLambertConformalConic(p)

	// Grid-index round trip: sample a set of interior grid points and verify
	// geo_to_grid(grid_to_geo(i,j)) returns (i,j) within 0.15 cells, per the
	// testable property in spec §8.
	points := [][2]float64{{0, 0}, {300, 200}, {613, 427}, {100, 50}}
	for _, pt := range points {
		lat, lon, ok := lcc.GridToGeo(pt[0], pt[1])
		if !ok {
			t.Fatalf("GridToGeo(%v) rejected", pt)
		}
		col, row, ok := lcc.GeoToGrid(lat, lon)
		if !ok {
			t.Fatalf("GeoToGrid(%v,%v) rejected", lat, lon)
		}
		if absf(col-pt[0]) > 0.15 || absf(row-pt[1]) > 0.15 {
			t.Errorf("round trip %v -> (%v,%v), want within 0.15 cells", pt, col, row)
		}
	}
}

func TestLCCGeographicBoundsIsNotEmpty(t *testing.T) {
	p := LCCParams{
		Lat1: 12.19, Lon1: -133.459,
		Lov:    -95,
		Latin1: 25, Latin2: 25,
		Dx: 5079, Dy: 5079,
		Nx: 614, Ny: 428,
	}
	lcc := NewLambertConformalConic(p)
	bb := lcc.GeographicBounds()
	if bb.MinLon >= bb.MaxLon || bb.MinLat >= bb.MaxLat {
		t.Fatalf("degenerate bounds: %+v", bb)
	}
}

func TestGeostationaryRejectsBeyondLimb(t *testing.T) {
	p := GoesProjectionParams{
		LonOrigin: -75, SatHeight: 35786023, SemiMajor: 6378137, SemiMinor: 6356752.31414,
		Nx: 5424, Ny: 5424,
		XScale: 0.000056, XOffset: -0.151844,
		YScale: -0.000056, YOffset: 0.151844,
	}
	g := NewGeostationary(p)
	// A point on the far side of the earth from the satellite must be rejected.
	if _, _, ok := g.GeoToGrid(0, 180); ok {
		t.Fatal("expected rejection for point beyond earth's limb")
	}
	// The sub-satellite point must be accepted.
	if _, _, ok := g.GeoToGrid(0, -75); !ok {
		t.Fatal("expected sub-satellite point to be accepted")
	}
}

func TestGeostationaryRoundTrip(t *testing.T) {
	p := GoesProjectionParams{
		LonOrigin: -75, SatHeight: 35786023, SemiMajor: 6378137, SemiMinor: 6356752.31414,
		Nx: 5424, Ny: 5424,
		XScale: 0.000056, XOffset: -0.151844,
		YScale: -0.000056, YOffset: 0.151844,
	}
	g := NewGeostationary(p)
	col, row, ok := g.GeoToGrid(10, -80)
	if !ok {
		t.Fatal("expected point near sub-satellite to be visible")
	}
	lat, lon, ok := g.GridToGeo(col, row)
	if !ok {
		t.Fatal("expected scan angle to intersect earth")
	}
	if absf(lat-10) > 0.15 || absf(lon-(-80)) > 0.15 {
		t.Errorf("round trip drifted: got (%v,%v)", lat, lon)
	}
}

func absf(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
