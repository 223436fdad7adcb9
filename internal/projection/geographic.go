package projection

// Geographic is the identity projection: grid index space is an affine
// transform of geographic degrees with no reprojection.
type Geographic struct {
	bbox   BBox
	nx, ny int
	rx, ry float64 // degrees per cell, lon and lat respectively
}

// NewGeographic builds an identity projection over bbox with nx columns
// and ny rows.
func NewGeographic(bbox BBox, nx, ny int) *Geographic {
	return &Geographic{
		bbox: bbox,
		nx:   nx,
		ny:   ny,
		rx:   (bbox.MaxLon - bbox.MinLon) / float64(nx),
		ry:   (bbox.MaxLat - bbox.MinLat) / float64(ny),
	}
}

func (g *Geographic) GeoToGrid(lat, lon float64) (col, row float64, ok bool) {
	if lat < g.bbox.MinLat || lat > g.bbox.MaxLat || lon < g.bbox.MinLon || lon > g.bbox.MaxLon {
		return 0, 0, false
	}
	col = (lon - g.bbox.MinLon) / g.rx
	row = (g.bbox.MaxLat - lat) / g.ry
	return col, row, true
}

func (g *Geographic) GridToGeo(col, row float64) (lat, lon float64, ok bool) {
	lon = g.bbox.MinLon + col*g.rx
	lat = g.bbox.MaxLat - row*g.ry
	return lat, lon, true
}

func (g *Geographic) GeographicBounds() BBox { return g.bbox }

func (g *Geographic) Dimensions() (nx, ny int) { return g.nx, g.ny }
