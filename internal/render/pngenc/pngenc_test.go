package pngenc

import (
	"bytes"
	"image/color"
	"image/png"
	"testing"

	"github.com/jcom-dev/weathergrid/internal/render/colormap"
)

func TestEncodeIndexedProducesValidPNG(t *testing.T) {
	pal := colormap.BuildPalette(colormap.Style{
		Transform: colormap.Identity,
		Stops: []colormap.Stop{
			{Value: 0, Color: color.RGBA{R: 0, G: 0, B: 0, A: 255}},
			{Value: 1, Color: color.RGBA{R: 255, G: 255, B: 255, A: 255}},
		},
	})
	indices := make([]uint8, 4*4)
	for i := range indices {
		indices[i] = uint8(i % 256)
	}

	out, err := EncodeIndexed(indices, 4, 4, pal)
	if err != nil {
		t.Fatalf("EncodeIndexed: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decode round-trip: %v", err)
	}
	if img.Bounds().Dx() != 4 || img.Bounds().Dy() != 4 {
		t.Errorf("got %v, want 4x4", img.Bounds())
	}
}

func TestEncodeRGBAProducesValidPNG(t *testing.T) {
	pixels := make([]color.RGBA, 3*2)
	for i := range pixels {
		pixels[i] = color.RGBA{R: uint8(i), G: 0, B: 0, A: 255}
	}
	out, err := EncodeRGBA(pixels, 3, 2)
	if err != nil {
		t.Fatalf("EncodeRGBA: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decode round-trip: %v", err)
	}
	if img.Bounds().Dx() != 3 || img.Bounds().Dy() != 2 {
		t.Errorf("got %v, want 3x2", img.Bounds())
	}
}
