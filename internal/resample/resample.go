// Package resample implements the grid resampler (C9): reprojecting a
// source grid region onto a target pixel grid, typically Web-Mercator
// tile space. Bilinear interpolation is grounded on
// pspoerri-geotiff2pmtiles's bilinearSampleCached; nearest and bicubic
// extend the same per-pixel inverse-projection structure.
package resample

import (
	"math"

	"github.com/jcom-dev/weathergrid/internal/projection"
)

// Method selects the interpolation kernel. Bilinear is the default per
// spec §4.9.
type Method int

const (
	Bilinear Method = iota
	Nearest
	Bicubic
)

// Source describes the grid being sampled from.
type Source struct {
	Data        []float32
	Width       int
	Height      int
	BBox        projection.BBox
	Lon360      bool                   // true if source stores 0-360 longitudes
	GoesParams  *projection.Geostationary // non-nil for geostationary-native sources
}

// Target describes the output pixel grid. Resample spaces its pixel
// centres linearly in longitude and latitude across BBox; ResampleMercator
// is the Web-Mercator path.
type Target struct {
	Width, Height int
	BBox          projection.BBox // geographic bbox the output covers
}

// Resample fills a Width*Height float32 buffer by sampling src at each
// target pixel's geographic location. NaN propagates: any NaN
// contributor to a pixel's interpolation gives a NaN output pixel, per
// spec §4.9.
func Resample(src Source, tgt Target, method Method) []float32 {
	out := make([]float32, tgt.Width*tgt.Height)
	lonSpan := tgt.BBox.MaxLon - tgt.BBox.MinLon
	latSpan := tgt.BBox.MaxLat - tgt.BBox.MinLat

	for ty := 0; ty < tgt.Height; ty++ {
		lat := tgt.BBox.MaxLat - (float64(ty)+0.5)/float64(tgt.Height)*latSpan
		for tx := 0; tx < tgt.Width; tx++ {
			lon := tgt.BBox.MinLon + (float64(tx)+0.5)/float64(tgt.Width)*lonSpan

			sLon := lon
			if src.Lon360 && sLon < 0 {
				sLon += 360
			}

			fx, fy, ok := geoToSourceIndex(src, sLon, lat)
			if !ok {
				out[ty*tgt.Width+tx] = float32(math.NaN())
				continue
			}

			switch method {
			case Nearest:
				out[ty*tgt.Width+tx] = sampleNearest(src, fx, fy)
			case Bicubic:
				out[ty*tgt.Width+tx] = sampleBicubic(src, fx, fy)
			default:
				out[ty*tgt.Width+tx] = sampleBilinear(src, fx, fy)
			}
		}
	}
	return out
}

// ResampleMercator computes each target pixel's geographic coordinate
// from Web-Mercator tile-space formulas (spec §4.9 step 1) instead of
// linearly interpolating across the tile's bbox, since slippy-map tile
// rows are not linear in latitude. z and y are the tile's zoom level and
// row, used to place this tile's pixel rows within the global
// Web-Mercator y range they occupy (a tile only spans 1/2^z of it).
func ResampleMercator(src Source, width, height int, tileMinLon, tileMaxLon float64, z, y int, method Method) []float32 {
	out := make([]float32, width*height)
	lonSpan := tileMaxLon - tileMinLon
	n := math.Pow(2, float64(z))

	for ty := 0; ty < height; ty++ {
		yt := float64(ty) + 0.5
		globalYFrac := (float64(y) + yt/float64(height)) / n
		lat := math.Atan(math.Sinh(math.Pi * (1 - 2*globalYFrac)))
		lat = lat * 180 / math.Pi
		for tx := 0; tx < width; tx++ {
			xt := float64(tx) + 0.5
			lon := (xt/float64(width))*lonSpan + tileMinLon

			sLon := lon
			if src.Lon360 && sLon < 0 {
				sLon += 360
			}

			fx, fy, ok := geoToSourceIndex(src, sLon, lat)
			if !ok {
				out[ty*width+tx] = float32(math.NaN())
				continue
			}

			switch method {
			case Nearest:
				out[ty*width+tx] = sampleNearest(src, fx, fy)
			case Bicubic:
				out[ty*width+tx] = sampleBicubic(src, fx, fy)
			default:
				out[ty*width+tx] = sampleBilinear(src, fx, fy)
			}
		}
	}
	return out
}

// geoToSourceIndex converts a geographic point to fractional source grid
// indices. A geostationary-native source projects via its own
// GoesProjectionParams (spec §4.9: "Geostationary-native source grids use
// the grid's own scan_to_grid").
func geoToSourceIndex(src Source, lon, lat float64) (fx, fy float64, ok bool) {
	if src.GoesParams != nil {
		col, row, ok := src.GoesParams.GeoToGrid(lat, lon)
		if !ok {
			return 0, 0, false
		}
		return col, row, true
	}

	if lon < src.BBox.MinLon || lon > src.BBox.MaxLon || lat < src.BBox.MinLat || lat > src.BBox.MaxLat {
		return 0, 0, false
	}
	rx := (src.BBox.MaxLon - src.BBox.MinLon) / float64(src.Width)
	ry := (src.BBox.MaxLat - src.BBox.MinLat) / float64(src.Height)
	fx = (lon - src.BBox.MinLon) / rx
	fy = (src.BBox.MaxLat - lat) / ry
	return fx, fy, true
}

func at(src Source, x, y int) float32 {
	if x < 0 || x >= src.Width || y < 0 || y >= src.Height {
		return float32(math.NaN())
	}
	return src.Data[y*src.Width+x]
}

func isNaN32(v float32) bool { return v != v }

func sampleNearest(src Source, fx, fy float64) float32 {
	x := int(math.Floor(fx + 0.5))
	y := int(math.Floor(fy + 0.5))
	return at(src, x, y)
}

func sampleBilinear(src Source, fx, fy float64) float32 {
	x0 := int(math.Floor(fx))
	y0 := int(math.Floor(fy))
	x1, y1 := x0+1, y0+1
	dx := fx - float64(x0)
	dy := fy - float64(y0)

	v00, v10, v01, v11 := at(src, x0, y0), at(src, x1, y0), at(src, x0, y1), at(src, x1, y1)
	if isNaN32(v00) || isNaN32(v10) || isNaN32(v01) || isNaN32(v11) {
		return float32(math.NaN())
	}

	top := float64(v00)*(1-dx) + float64(v10)*dx
	bot := float64(v01)*(1-dx) + float64(v11)*dx
	return float32(top*(1-dy) + bot*dy)
}

// sampleBicubic uses the standard 4x4 Catmull-Rom kernel. Any NaN among
// the 16 contributing cells propagates to the output, consistent with
// the bilinear NaN rule.
func sampleBicubic(src Source, fx, fy float64) float32 {
	x0 := int(math.Floor(fx))
	y0 := int(math.Floor(fy))
	dx := fx - float64(x0)
	dy := fy - float64(y0)

	var rows [4]float64
	for j := -1; j <= 2; j++ {
		var p [4]float32
		for i := -1; i <= 2; i++ {
			p[i+1] = at(src, x0+i, y0+j)
			if isNaN32(p[i+1]) {
				return float32(math.NaN())
			}
		}
		rows[j+1] = cubicInterp(float64(p[0]), float64(p[1]), float64(p[2]), float64(p[3]), dx)
	}
	return float32(cubicInterp(rows[0], rows[1], rows[2], rows[3], dy))
}

func cubicInterp(p0, p1, p2, p3, t float64) float64 {
	a0 := -0.5*p0 + 1.5*p1 - 1.5*p2 + 0.5*p3
	a1 := p0 - 2.5*p1 + 2*p2 - 0.5*p3
	a2 := -0.5*p0 + 0.5*p2
	a3 := p1
	return a0*t*t*t + a1*t*t + a2*t + a3
}
