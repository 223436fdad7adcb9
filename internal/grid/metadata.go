// Package grid implements the grid-array reader (C4) and pyramid manager
// (C5): metadata parsing, bbox-to-chunk-index planning, chunk assembly via
// the chunk cache and store, and pyramid-level selection.
package grid

import (
	"encoding/json"
	"time"

	"github.com/jcom-dev/weathergrid/internal/projection"
)

// DownsampleMethod is the closed sum type of downsample rules chosen at
// write time and recorded in array metadata; readers never re-derive it.
type DownsampleMethod int

const (
	DownsampleMean DownsampleMethod = iota
	DownsampleMax
	DownsampleNearest
)

func (m DownsampleMethod) String() string {
	switch m {
	case DownsampleMean:
		return "mean"
	case DownsampleMax:
		return "max"
	case DownsampleNearest:
		return "nearest"
	default:
		return "unknown"
	}
}

func (m DownsampleMethod) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

func (m *DownsampleMethod) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	switch s {
	case "mean":
		*m = DownsampleMean
	case "max":
		*m = DownsampleMax
	case "nearest":
		*m = DownsampleNearest
	default:
		*m = DownsampleMean
	}
	return nil
}

// Attributes carries the opaque identity fields stored alongside a grid
// array, per spec §3's "model, parameter, level, units, reference_time,
// forecast_hour as opaque identity attributes".
type Attributes struct {
	Model         string    `json:"model"`
	Parameter     string    `json:"parameter"`
	Level         string    `json:"level"`
	Units         string    `json:"units"`
	ReferenceTime time.Time `json:"reference_time"`
	ForecastHour  int       `json:"forecast_hour"`

	// NativeProjection names the array's native grid projection
	// ("geostationary", "lambert_conformal", or "" for geographic).
	// Non-geographic projections require a full-array read per spec
	// §4.4: index-space bbox subsetting is meaningless under a curved
	// graticule.
	NativeProjection string `json:"native_projection,omitempty"`
}

// RequiresFullGrid reports whether a reader must ignore the requested
// bbox and read the entire array, per spec §4.4's full-grid-read rule.
func (a Attributes) RequiresFullGrid() bool {
	return a.NativeProjection != "" && a.NativeProjection != "geographic"
}

// LevelMetadata describes one pyramid level's on-disk layout.
type LevelMetadata struct {
	Shape       [2]int  `json:"shape"`       // height, width
	ChunkShape  [2]int  `json:"chunk_shape"` // chunk_rows, chunk_cols
	Dtype       string  `json:"dtype"`
	FillValue   float32 `json:"fill_value"`
	CodecChain  string  `json:"codec_chain"`
	ScaleFactor int     `json:"scale_factor"`
}

// Metadata is the parsed contents of an array's zarr.json manifest: the
// native level's layout plus the bbox/attributes shared by every level and
// the multiscale list of sibling level metadata.
type Metadata struct {
	LevelMetadata
	BBox       projection.BBox `json:"bbox"`
	Attributes Attributes      `json:"attributes"`
	Downsample DownsampleMethod `json:"downsample_method"`

	// Multiscale enumerates every pyramid level (including level 0), in
	// ascending resolution-coarseness order. Nil/empty means a single-level
	// artifact.
	Multiscale []MultiscaleEntry `json:"multiscale,omitempty"`
}

// MultiscaleEntry names one pyramid level, its path suffix (relative to the
// array root, e.g. "1"), and that level's own shape/chunk shape — each
// pyramid level covers the same bbox (invariant 2, spec §3) but has its own
// resolution and may use a different chunk shape.
type MultiscaleEntry struct {
	Level       int    `json:"level"`
	Path        string `json:"path"`
	Shape       [2]int `json:"shape"`
	ChunkShape  [2]int `json:"chunk_shape"`
	ScaleFactor int    `json:"scale_factor"`
}

// Resolution returns (lon-per-cell, lat-per-cell) in degrees, derived from
// BBox and Shape.
func (m Metadata) Resolution() (rx, ry float64) {
	h, w := m.Shape[0], m.Shape[1]
	rx = (m.BBox.MaxLon - m.BBox.MinLon) / float64(w)
	ry = (m.BBox.MaxLat - m.BBox.MinLat) / float64(h)
	return rx, ry
}

// LevelMetadataFor returns the LevelMetadata for a specific pyramid level:
// the top-level shape/chunk_shape for level 0, or the matching Multiscale
// entry's shape (with the array's native chunk shape) otherwise.
func (m Metadata) LevelMetadataFor(level int) (LevelMetadata, bool) {
	if level == 0 {
		return m.LevelMetadata, true
	}
	for _, e := range m.Multiscale {
		if e.Level == level {
			lm := m.LevelMetadata
			lm.Shape = e.Shape
			if e.ChunkShape != [2]int{} {
				lm.ChunkShape = e.ChunkShape
			}
			lm.ScaleFactor = e.ScaleFactor
			return lm, true
		}
	}
	return LevelMetadata{}, false
}

// ParseMetadata decodes a zarr.json manifest.
func ParseMetadata(data []byte) (Metadata, error) {
	var m Metadata
	if err := json.Unmarshal(data, &m); err != nil {
		return Metadata{}, err
	}
	return m, nil
}

// Marshal encodes the manifest back to JSON bytes.
func (m Metadata) Marshal() ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}
