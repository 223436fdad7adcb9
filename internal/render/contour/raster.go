// Rasterization of stitched polylines to an RGBA canvas, using
// golang.org/x/image/vector's scan-converting rasterizer (already an
// indirect dependency of the teacher and spatialmodel-inmap) in place of
// original_source's tiny-skia canvas.
package contour

import (
	"image"
	"image/color"
	"math"

	"golang.org/x/image/vector"
)

// StrokeStyle is the per-call style for RenderToCanvas.
type StrokeStyle struct {
	Width float32
	Color color.RGBA
}

// RenderToCanvas strokes every polyline with round caps and joins,
// anti-aliased, onto a width*height transparent RGBA image. Round joins
// and caps are approximated by a small regular polygon fan at each
// vertex, matching a thick quad per segment.
func RenderToCanvas(polylines []Polyline, width, height int, style StrokeStyle) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))

	for _, p := range polylines {
		if len(p.Points) < 2 {
			continue
		}
		strokePolyline(img, p, style)
	}
	return img
}

func strokePolyline(img *image.RGBA, p Polyline, style StrokeStyle) {
	half := style.Width / 2
	n := len(p.Points)
	segCount := n - 1
	if p.Closed {
		segCount = n
	}

	for i := 0; i < segCount; i++ {
		a := p.Points[i]
		b := p.Points[(i+1)%n]
		fillQuad(img, segmentQuad(a, b, half), style.Color)
		fillCircle(img, a, half, style.Color)
	}
	if !p.Closed {
		fillCircle(img, p.Points[n-1], half, style.Color)
	}
}

// segmentQuad returns the four corners of the thick rectangle covering
// segment a->b with half-width half.
func segmentQuad(a, b Point, half float32) [4]Point {
	dx, dy := b.X-a.X, b.Y-a.Y
	length := float32(math.Hypot(float64(dx), float64(dy)))
	if length == 0 {
		return [4]Point{a, a, a, a}
	}
	nx, ny := -dy/length*half, dx/length*half
	return [4]Point{
		{a.X + nx, a.Y + ny},
		{b.X + nx, b.Y + ny},
		{b.X - nx, b.Y - ny},
		{a.X - nx, a.Y - ny},
	}
}

func fillQuad(img *image.RGBA, quad [4]Point, c color.RGBA) {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	r := vector.NewRasterizer(w, h)
	r.MoveTo(quad[0].X, quad[0].Y)
	r.LineTo(quad[1].X, quad[1].Y)
	r.LineTo(quad[2].X, quad[2].Y)
	r.LineTo(quad[3].X, quad[3].Y)
	r.ClosePath()
	compositeRasterizer(r, img, c)
}

// fillCircle approximates a round cap/join with a 16-gon.
func fillCircle(img *image.RGBA, center Point, radius float32, c color.RGBA) {
	if radius <= 0 {
		return
	}
	const sides = 16
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	r := vector.NewRasterizer(w, h)
	for i := 0; i <= sides; i++ {
		theta := 2 * math.Pi * float64(i) / sides
		x := center.X + radius*float32(math.Cos(theta))
		y := center.Y + radius*float32(math.Sin(theta))
		if i == 0 {
			r.MoveTo(x, y)
		} else {
			r.LineTo(x, y)
		}
	}
	r.ClosePath()
	compositeRasterizer(r, img, c)
}

// compositeRasterizer draws r's rasterized coverage mask as a uniform
// c-colored fill directly over dst, using vector.Rasterizer's own
// Porter-Duff "over" compositing.
func compositeRasterizer(r *vector.Rasterizer, dst *image.RGBA, c color.RGBA) {
	r.Draw(dst, dst.Bounds(), image.NewUniform(c), image.Point{})
}
