package projection

import "math"

// GoesProjectionParams describes a GOES-R ABI fixed-grid geostationary
// projection per the GOES-R Product User Guide §4.2.8.
type GoesProjectionParams struct {
	LonOrigin   float64 // satellite sub-longitude, degrees
	SatHeight   float64 // perspective point height above earth center, meters
	SemiMajor   float64 // earth semi-major axis, meters
	SemiMinor   float64 // earth semi-minor axis, meters
	Nx, Ny      int
	XScale, XOffset float64 // scan angle (radians) = col*XScale + XOffset
	YScale, YOffset float64
}

// Geostationary implements the GOES-R ABI fixed-grid geostationary
// projection: geo_to_scan rejects points beyond earth's limb or facing
// away from the satellite; scan_to_geo rejects scan angles whose
// quadratic discriminant is negative.
type Geostationary struct {
	p GoesProjectionParams

	h       float64 // distance from earth center to satellite, = SatHeight + SemiMajor
	reOverRp2 float64
}

// NewGeostationary constructs the projection from GOES-R PUG parameters.
func NewGeostationary(p GoesProjectionParams) *Geostationary {
	return &Geostationary{
		p:         p,
		h:         p.SatHeight + p.SemiMajor,
		reOverRp2: (p.SemiMajor / p.SemiMinor) * (p.SemiMajor / p.SemiMinor),
	}
}

// GeoToGrid implements geo_to_scan followed by scan-angle-to-pixel-index.
func (g *Geostationary) GeoToGrid(lat, lon float64) (col, row float64, ok bool) {
	phi := deg2rad(lat)
	lam := deg2rad(lon)
	lam0 := deg2rad(g.p.LonOrigin)

	phiC := math.Atan((g.p.SemiMinor * g.p.SemiMinor) / (g.p.SemiMajor * g.p.SemiMajor) * math.Tan(phi))
	rc := g.p.SemiMinor / math.Sqrt(1-(1-g.reOverRpInverse())*math.Cos(phiC)*math.Cos(phiC))

	sx := g.h - rc*math.Cos(phiC)*math.Cos(lam-lam0)
	sy := -rc * math.Cos(phiC) * math.Sin(lam-lam0)
	sz := rc * math.Sin(phiC)

	// Reject points beyond earth's limb.
	if math.Acos(math.Cos(phi)*math.Cos(lam-lam0)) > math.Acos(g.p.SemiMajor/g.h) {
		return 0, 0, false
	}
	// Reject points facing away from the satellite (not visible in scan).
	if sx <= 0 {
		return 0, 0, false
	}

	x := math.Atan(-sy / sx)
	y := math.Atan(-sz / math.Hypot(sx, sy))

	col = (x - g.p.XOffset) / g.p.XScale
	row = (y - g.p.YOffset) / g.p.YScale
	return col, row, true
}

func (g *Geostationary) reOverRpInverse() float64 {
	return (g.p.SemiMinor * g.p.SemiMinor) / (g.p.SemiMajor * g.p.SemiMajor)
}

// GridToGeo implements scan_to_geo: solves the quadratic for the earth
// intersection of the line of sight at scan angle (x, y); returns ok=false
// when the discriminant is negative (the scan ray misses the earth).
func (g *Geostationary) GridToGeo(col, row float64) (lat, lon float64, ok bool) {
	x := col*g.p.XScale + g.p.XOffset
	y := row*g.p.YScale + g.p.YOffset

	cosx, sinx := math.Cos(x), math.Sin(x)
	cosy, siny := math.Cos(y), math.Sin(y)

	a := sinx*sinx + cosx*cosx*(cosy*cosy+g.reOverRp2*siny*siny)
	b := -2 * g.h * cosx * cosy
	c := g.h*g.h - g.p.SemiMajor*g.p.SemiMajor

	disc := b*b - 4*a*c
	if disc < 0 {
		return 0, 0, false
	}

	sx := (-b - math.Sqrt(disc)) / (2 * a)
	sy := -sx * sinx / cosx
	sz := sx * cosx * siny / cosy

	lam0 := deg2rad(g.p.LonOrigin)
	lat = rad2deg(math.Atan(g.reOverRp2 * sz / math.Hypot(g.h-sx, sy)))
	lon = rad2deg(lam0 - math.Atan(sy/(g.h-sx)))
	return lat, lon, true
}

func (g *Geostationary) GeographicBounds() BBox {
	return deriveBounds(g.p.Nx, g.p.Ny, g.GridToGeo)
}

func (g *Geostationary) Dimensions() (nx, ny int) { return g.p.Nx, g.p.Ny }
