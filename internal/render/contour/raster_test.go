package contour

import (
	"image/color"
	"testing"
)

func TestRenderToCanvasDrawsNonTransparentPixels(t *testing.T) {
	p := Polyline{Points: []Point{{2, 10}, {18, 10}}}
	img := RenderToCanvas([]Polyline{p}, 20, 20, StrokeStyle{Width: 3, Color: color.RGBA{R: 255, A: 255}})

	drawn := false
	for y := 8; y <= 12; y++ {
		for x := 2; x <= 18; x++ {
			if img.RGBAAt(x, y).A > 0 {
				drawn = true
			}
		}
	}
	if !drawn {
		t.Error("expected stroked line to produce non-transparent pixels")
	}
}

func TestRenderToCanvasSkipsDegeneratePolylines(t *testing.T) {
	img := RenderToCanvas([]Polyline{{Points: []Point{{1, 1}}}}, 10, 10, StrokeStyle{Width: 2, Color: color.RGBA{A: 255}})
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			if img.RGBAAt(x, y).A != 0 {
				t.Fatalf("expected empty canvas, found pixel at (%d,%d)", x, y)
			}
		}
	}
}
