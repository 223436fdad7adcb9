package projection

import "math"

// TileBBox returns the WGS84 bounding box of a Web-Mercator slippy-map
// tile (z, x, y), following pspoerri-geotiff2pmtiles's coord.TileBounds
// formula. Used by the tile-request coordinator (C18) to turn a
// (z,x,y) tile address into the geographic bbox it resamples against.
func TileBBox(z, x, y int) BBox {
	n := math.Pow(2, float64(z))
	minLon := float64(x)/n*360.0 - 180.0
	maxLon := float64(x+1)/n*360.0 - 180.0
	minLat := math.Atan(math.Sinh(math.Pi*(1.0-2.0*float64(y+1)/n))) * 180.0 / math.Pi
	maxLat := math.Atan(math.Sinh(math.Pi*(1.0-2.0*float64(y)/n))) * 180.0 / math.Pi
	return BBox{MinLon: minLon, MinLat: minLat, MaxLon: maxLon, MaxLat: maxLat}
}
