package projection

import "math"

// LCCParams are the standard GRIB2 grid-definition-template-30 parameters
// for a Lambert Conformal Conic grid.
type LCCParams struct {
	Lat1, Lon1       float64 // first grid point, degrees
	Lov              float64 // orientation longitude, degrees
	Latin1, Latin2   float64 // standard parallels, degrees
	Dx, Dy           float64 // grid spacing, meters
	Nx, Ny           int
	EarthRadius      float64 // meters; GRIB2 spherical-earth default if zero
}

// defaultEarthRadius is the GRIB2 spherical-earth radius in meters, used
// when LCCParams.EarthRadius is unset.
const defaultEarthRadius = 6371200.0

// LambertConformalConic implements the Lambert Conformal Conic projection
// per the standard LCC formulas: cone constant n, pole distance rho, and
// their inverses.
type LambertConformalConic struct {
	p LCCParams
	r float64

	n     float64 // cone constant
	f     float64 // scale factor
	rho0  float64 // pole distance to the first grid point's latitude
	lov   float64 // orientation longitude, radians
	x0y0  [2]float64
}

// NewLambertConformalConic constructs the projection and precomputes the
// cone constant n, scale factor F, and the origin offset so (i,j)=(0,0)
// lands on (lat1, lon1).
func NewLambertConformalConic(p LCCParams) *LambertConformalConic {
	r := p.EarthRadius
	if r == 0 {
		r = defaultEarthRadius
	}
	phi1 := deg2rad(p.Latin1)
	phi2 := deg2rad(p.Latin2)

	var n float64
	if math.Abs(phi1-phi2) < 1e-9 {
		n = math.Sin(phi1)
	} else {
		n = math.Log(math.Cos(phi1)/math.Cos(phi2)) /
			math.Log(math.Tan(math.Pi/4+phi2/2)/math.Tan(math.Pi/4+phi1/2))
	}
	f := math.Cos(phi1) * math.Pow(math.Tan(math.Pi/4+phi1/2), n) / n

	lcc := &LambertConformalConic{p: p, r: r, n: n, f: f, lov: deg2rad(p.Lov)}

	rho0 := r * f / math.Pow(math.Tan(math.Pi/4+deg2rad(p.Lat1)/2), n)
	lon1 := deg2rad(p.Lon1)
	dlon := normalizeLonDiff(lon1 - lcc.lov)
	theta0 := n * dlon
	x0 := rho0 * math.Sin(theta0)
	y0 := rho0 - rho0*math.Cos(theta0)
	lcc.rho0 = rho0
	lcc.x0y0 = [2]float64{x0, y0}

	return lcc
}

func (l *LambertConformalConic) forward(lat, lon float64) (x, y float64) {
	phi := deg2rad(lat)
	lam := deg2rad(lon)
	rho := l.r * l.f / math.Pow(math.Tan(math.Pi/4+phi/2), l.n)
	theta := l.n * normalizeLonDiff(lam-l.lov)
	x = rho*math.Sin(theta) - l.x0y0[0]
	y = l.rho0 - rho*math.Cos(theta) - l.x0y0[1]
	return x, y
}

func (l *LambertConformalConic) inverse(x, y float64) (lat, lon float64) {
	x += l.x0y0[0]
	y = l.rho0 - (y + l.x0y0[1])
	rho := math.Copysign(math.Hypot(x, y), l.n)
	theta := math.Atan2(x, y)
	if l.n < 0 {
		theta = math.Atan2(-x, -y)
	}
	phi := 2*math.Atan(math.Pow(l.r*l.f/rho, 1/l.n)) - math.Pi/2
	lam := theta/l.n + l.lov
	return rad2deg(phi), rad2deg(lam)
}

func (l *LambertConformalConic) GeoToGrid(lat, lon float64) (col, row float64, ok bool) {
	x, y := l.forward(lat, lon)
	col = x / l.p.Dx
	row = y / l.p.Dy
	if col < 0 || row < 0 || col > float64(l.p.Nx) || row > float64(l.p.Ny) {
		return 0, 0, false
	}
	return col, row, true
}

func (l *LambertConformalConic) GridToGeo(col, row float64) (lat, lon float64, ok bool) {
	x := col * l.p.Dx
	y := row * l.p.Dy
	lat, lon = l.inverse(x, y)
	return lat, lon, true
}

func (l *LambertConformalConic) GeographicBounds() BBox {
	return deriveBounds(l.p.Nx, l.p.Ny, l.GridToGeo)
}

func (l *LambertConformalConic) Dimensions() (nx, ny int) { return l.p.Nx, l.p.Ny }

func deg2rad(d float64) float64 { return d * math.Pi / 180 }
func rad2deg(r float64) float64 { return r * 180 / math.Pi }
