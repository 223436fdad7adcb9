// Package windbarb implements the wind-barb rasterizer (C12): sampling a
// U/V component grid at a fixed pixel spacing and drawing a standard
// meteorological barb glyph (shaft + flags/full/half barbs) at each
// sample, per spec §4.12. Geometry constants are grounded on standard
// synoptic wind-barb convention (flag=50kt, full barb=10kt, half=5kt).
package windbarb

import (
	"image"
	"image/color"
	"math"

	"golang.org/x/image/vector"
)

// Sample is one windbarb placement: pixel position, speed (knots), and
// direction (radians, atan2(v,u): the direction the wind blows toward,
// measured from the +u axis).
type Sample struct {
	X, Y  float32
	Speed float64
	Dir   float64
}

// Style configures glyph size and color.
type Style struct {
	SpacingPx  float64
	ShaftLen   float32
	BarbLen    float32
	BarbGapPx  float32
	LineWidth  float32
	Color      color.RGBA
}

// DefaultStyle matches common synoptic chart proportions.
func DefaultStyle() Style {
	return Style{SpacingPx: 32, ShaftLen: 24, BarbLen: 9, BarbGapPx: 4, LineWidth: 1.5, Color: color.RGBA{A: 255}}
}

// Sample grid scans a U/V component grid (same bbox/shape) at Style's
// pixel spacing, computing speed = hypot(u,v) and dir = atan2(v,u) for
// each non-NaN pair.
func SampleGrid(u, v []float32, width, height int, style Style) []Sample {
	var out []Sample
	step := int(math.Max(1, style.SpacingPx))
	for y := 0; y < height; y += step {
		for x := 0; x < width; x += step {
			idx := y*width + x
			uu, vv := u[idx], v[idx]
			if isNaN32(uu) || isNaN32(vv) {
				continue
			}
			speed := math.Hypot(float64(uu), float64(vv))
			dir := math.Atan2(float64(vv), float64(uu))
			out = append(out, Sample{X: float32(x), Y: float32(y), Speed: speed, Dir: dir})
		}
	}
	return out
}

func isNaN32(f float32) bool { return f != f }

// speedBucket rounds speed down to the nearest 5kt bucket used for
// precomputed glyph geometry (spec §4.12: "multiple buckets are
// precomputed at load time").
func speedBucket(speedKt float64) int {
	return int(math.Floor(speedKt/5)) * 5
}

// glyph is the precomputed set of barb/flag counts for one 5kt bucket.
type glyph struct {
	flags     int
	fullBarbs int
	halfBarb  bool
}

// glyphForSpeed decomposes a speed bucket into flags (50kt), full barbs
// (10kt), and an optional half barb (5kt remainder).
func glyphForSpeed(bucket int) glyph {
	remaining := bucket
	g := glyph{}
	g.flags = remaining / 50
	remaining %= 50
	g.fullBarbs = remaining / 10
	remaining %= 10
	g.halfBarb = remaining >= 5
	return g
}

// precomputedGlyphs caches glyph decomposition for buckets 0..200kt in
// 5kt steps, computed once at package init rather than per sample.
var precomputedGlyphs = func() map[int]glyph {
	m := make(map[int]glyph, 41)
	for b := 0; b <= 200; b += 5 {
		m[b] = glyphForSpeed(b)
	}
	return m
}()

// Render draws every sample's barb glyph onto a width*height transparent
// RGBA canvas.
func Render(samples []Sample, width, height int, style Style) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for _, s := range samples {
		drawBarb(img, s, style)
	}
	return img
}

func drawBarb(img *image.RGBA, s Sample, style Style) {
	bucket := speedBucket(s.Speed)
	g, ok := precomputedGlyphs[bucket]
	if !ok {
		g = glyphForSpeed(bucket)
	}

	cosD, sinD := math.Cos(s.Dir), math.Sin(s.Dir)
	dirX, dirY := float32(cosD), float32(sinD)
	// perpendicular, used to angle barb ticks away from the shaft
	perpX, perpY := -dirY, dirX

	shaftEnd := Point{X: s.X + dirX*style.ShaftLen, Y: s.Y + dirY*style.ShaftLen}
	drawLine(img, Point{X: s.X, Y: s.Y}, shaftEnd, style.LineWidth, style.Color)

	pos := style.ShaftLen
	for i := 0; i < g.flags; i++ {
		drawTick(img, s, dirX, dirY, perpX, perpY, pos, style.BarbLen, true, style)
		pos -= style.BarbGapPx * 1.5
	}
	for i := 0; i < g.fullBarbs; i++ {
		drawTick(img, s, dirX, dirY, perpX, perpY, pos, style.BarbLen, false, style)
		pos -= style.BarbGapPx
	}
	if g.halfBarb {
		drawTick(img, s, dirX, dirY, perpX, perpY, pos, style.BarbLen/2, false, style)
	}
}

// Point mirrors contour.Point locally to avoid a cross-package
// dependency for a two-field struct.
type Point struct{ X, Y float32 }

// drawTick draws one barb or flag at arc-length pos along the shaft
// (measured from the origin), angled back from the wind direction.
func drawTick(img *image.RGBA, s Sample, dirX, dirY, perpX, perpY float32, pos, length float32, flag bool, style Style) {
	base := Point{X: s.X + dirX*pos, Y: s.Y + dirY*pos}
	tip := Point{X: base.X - dirX*length + perpX*length, Y: base.Y - dirY*length + perpY*length}
	if !flag {
		drawLine(img, base, tip, style.LineWidth, style.Color)
		return
	}
	// A flag is a filled triangle rather than a single tick line.
	back := Point{X: base.X - dirX*length*0.6, Y: base.Y - dirY*length*0.6}
	fillTriangle(img, base, tip, back, style.Color)
}

func drawLine(img *image.RGBA, a, b Point, width float32, c color.RGBA) {
	half := width / 2
	dx, dy := b.X-a.X, b.Y-a.Y
	lengthPx := float32(math.Hypot(float64(dx), float64(dy)))
	if lengthPx == 0 {
		return
	}
	nx, ny := -dy/lengthPx*half, dx/lengthPx*half
	fillQuad(img, [4]Point{
		{a.X + nx, a.Y + ny}, {b.X + nx, b.Y + ny}, {b.X - nx, b.Y - ny}, {a.X - nx, a.Y - ny},
	}, c)
}

func fillQuad(img *image.RGBA, quad [4]Point, c color.RGBA) {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	r := vector.NewRasterizer(w, h)
	r.MoveTo(quad[0].X, quad[0].Y)
	r.LineTo(quad[1].X, quad[1].Y)
	r.LineTo(quad[2].X, quad[2].Y)
	r.LineTo(quad[3].X, quad[3].Y)
	r.ClosePath()
	r.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{})
}

func fillTriangle(img *image.RGBA, a, b, c Point, col color.RGBA) {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	r := vector.NewRasterizer(w, h)
	r.MoveTo(a.X, a.Y)
	r.LineTo(b.X, b.Y)
	r.LineTo(c.X, c.Y)
	r.ClosePath()
	r.Draw(img, img.Bounds(), image.NewUniform(col), image.Point{})
}
