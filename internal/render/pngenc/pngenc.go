// Package pngenc implements the tile PNG encoder (C13): indexed and RGBA
// entry points over stdlib image/png, grounded on
// pspoerri-geotiff2pmtiles/internal/encode/png.go's thin
// png.Encoder wrapper, extended with an EncoderBufferPool (per
// image/png's own pooling API) to bound per-request scratch allocation.
package pngenc

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"sync"

	"github.com/jcom-dev/weathergrid/internal/render/colormap"
)

// bufferPool reuses png.EncoderBuffer across requests, the same purpose
// as the teacher's pattern of avoiding per-tile allocation in the hot
// render path.
type bufferPool struct {
	pool sync.Pool
}

func (p *bufferPool) Get() *png.EncoderBuffer {
	if v := p.pool.Get(); v != nil {
		return v.(*png.EncoderBuffer)
	}
	return &png.EncoderBuffer{}
}

func (p *bufferPool) Put(b *png.EncoderBuffer) { p.pool.Put(b) }

var sharedPool = &bufferPool{}

var encoder = png.Encoder{CompressionLevel: png.BestSpeed, BufferPool: sharedPool}

// EncodeIndexed emits a palette-color-type PNG from a byte index buffer
// and a 256-entry palette (spec §4.13's encode_indexed).
func EncodeIndexed(indices []uint8, w, h int, pal colormap.Palette) ([]byte, error) {
	img := image.NewPaletted(image.Rect(0, 0, w, h), pal.ColorModel())
	copy(img.Pix, indices)

	var buf bytes.Buffer
	if err := encoder.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EncodeRGBA emits a truecolor-alpha PNG from a flat pixel buffer (spec
// §4.13's encode_rgba).
func EncodeRGBA(pixels []color.RGBA, w, h int) ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i, c := range pixels {
		img.Set(i%w, i/w, c)
	}

	var buf bytes.Buffer
	if err := encoder.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
