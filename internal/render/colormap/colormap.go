// Package colormap implements the style-driven color mapper (C10):
// turning a resampled float32 grid into palette indices (preferred) or
// RGBA pixels, per spec §4.10. Grounded on the teacher's flat stdlib
// image/color usage (no third-party color library appears anywhere in
// the retrieved pack).
package colormap

import (
	"image/color"
	"math"
	"sort"
)

// PaletteSize is the fixed 256-entry indexed palette, index 0 reserved
// for the NaN/transparent entry.
const PaletteSize = 256

// Stop is one (value, color) pair in a style's sorted stop sequence.
type Stop struct {
	Value float64
	Color color.RGBA
}

// Transform is a pre-transform applied to raw cell values before
// stop lookup: affine (y = a*x + b) or a named unit conversion.
type Transform struct {
	Scale, Offset float64
}

// Identity is the no-op transform.
var Identity = Transform{Scale: 1, Offset: 0}

// KelvinToCelsius is the unit-conversion transform named in spec §4.10.
var KelvinToCelsius = Transform{Scale: 1, Offset: -273.15}

func (t Transform) Apply(v float64) float64 { return v*t.Scale + t.Offset }

// Style is a sorted stop sequence plus pre-transform, from which a
// Palette is precomputed once at load time.
type Style struct {
	Stops     []Stop
	Transform Transform
}

// Palette is a precomputed 256-entry RGBA lookup table. Index 0 is
// always transparent (the NaN rule); indices 1..255 span the style's
// stop range linearly.
type Palette struct {
	Entries   [PaletteSize]color.RGBA
	MinValue  float64
	MaxValue  float64
	Transform Transform
}

// BuildPalette precomputes the 256-entry table by sampling style.Stops
// across their value range. Requires at least 2 stops, sorted by value.
func BuildPalette(style Style) Palette {
	stops := append([]Stop(nil), style.Stops...)
	sort.Slice(stops, func(i, j int) bool { return stops[i].Value < stops[j].Value })

	p := Palette{Transform: style.Transform}
	if len(stops) == 0 {
		return p
	}
	p.MinValue = stops[0].Value
	p.MaxValue = stops[len(stops)-1].Value
	p.Entries[0] = color.RGBA{} // transparent: NaN rule

	span := p.MaxValue - p.MinValue
	for i := 1; i < PaletteSize; i++ {
		var v float64
		if span == 0 {
			v = p.MinValue
		} else {
			frac := float64(i-1) / float64(PaletteSize-2)
			v = p.MinValue + frac*span
		}
		p.Entries[i] = interpolateStops(stops, v)
	}
	return p
}

func interpolateStops(stops []Stop, v float64) color.RGBA {
	if v <= stops[0].Value {
		return stops[0].Color
	}
	if v >= stops[len(stops)-1].Value {
		return stops[len(stops)-1].Color
	}
	for i := 1; i < len(stops); i++ {
		if v <= stops[i].Value {
			lo, hi := stops[i-1], stops[i]
			t := (v - lo.Value) / (hi.Value - lo.Value)
			return color.RGBA{
				R: lerp8(lo.Color.R, hi.Color.R, t),
				G: lerp8(lo.Color.G, hi.Color.G, t),
				B: lerp8(lo.Color.B, hi.Color.B, t),
				A: lerp8(lo.Color.A, hi.Color.A, t),
			}
		}
	}
	return stops[len(stops)-1].Color
}

func lerp8(a, b uint8, t float64) uint8 {
	v := float64(a)*(1-t) + float64(b)*t
	if v < 0 {
		v = 0
	}
	if v > 255 {
		v = 255
	}
	return uint8(v)
}

// Index maps one cell value to a palette index via clamp + linear scale.
// NaN always maps to index 0.
func (p Palette) Index(raw float32) uint8 {
	if raw != raw { // NaN
		return 0
	}
	v := p.Transform.Apply(float64(raw))
	span := p.MaxValue - p.MinValue
	if span == 0 {
		return 1
	}
	clamped := math.Min(math.Max(v, p.MinValue), p.MaxValue)
	frac := (clamped - p.MinValue) / span
	idx := int(frac*float64(PaletteSize-2)) + 1
	if idx < 1 {
		idx = 1
	}
	if idx > PaletteSize-1 {
		idx = PaletteSize - 1
	}
	return uint8(idx)
}

// RenderIndexed maps every cell of a w*h grid to a palette index buffer,
// for C13's indexed-PNG path.
func (p Palette) RenderIndexed(grid []float32) []uint8 {
	out := make([]uint8, len(grid))
	for i, v := range grid {
		out[i] = p.Index(v)
	}
	return out
}

// RenderRGBA maps every cell to an RGBA pixel directly, for callers
// needing composited per-pixel color rather than an indexed image.
func (p Palette) RenderRGBA(grid []float32) []color.RGBA {
	out := make([]color.RGBA, len(grid))
	for i, v := range grid {
		out[i] = p.Entries[p.Index(v)]
	}
	return out
}

// ColorModel returns a color.Palette built from Entries, consumable by
// image.Paletted.
func (p Palette) ColorModel() color.Palette {
	cp := make(color.Palette, PaletteSize)
	for i, c := range p.Entries {
		cp[i] = c
	}
	return cp
}
