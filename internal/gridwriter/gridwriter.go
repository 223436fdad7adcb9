// Package gridwriter implements the grid writer and pyramid generator
// (C6): given a prepared float32 grid, writes the native level plus
// downsampled overview levels per spec §4.6, in the on-disk format of
// spec §6 (a zarr.json manifest and <level>/c/<row>/<col> chunk files).
package gridwriter

import (
	"bytes"
	"compress/flate"
	"context"
	"math"

	"github.com/jcom-dev/weathergrid/internal/grid"
	"github.com/jcom-dev/weathergrid/internal/projection"
	"github.com/jcom-dev/weathergrid/internal/store"
)

// PyramidConfig controls overview generation.
type PyramidConfig struct {
	Enabled        bool
	MinDimension   int // generation stops when min(width,height) < this
	DownscaleFactor int // fixed at 2 per spec §6
}

// DefaultPyramidConfig matches spec §6's stated defaults.
func DefaultPyramidConfig() PyramidConfig {
	return PyramidConfig{Enabled: true, MinDimension: 64, DownscaleFactor: 2}
}

// WriteRequest is the prepared-grid tuple C6 consumes. Parsing actual
// GRIB2/NetCDF bytes into this shape is an external, out-of-core-scope
// ingestion concern per spec §1.
type WriteRequest struct {
	Data       []float32
	Width, Height int
	BBox       projection.BBox
	Attributes grid.Attributes
	ChunkShape [2]int
	Downsample grid.DownsampleMethod
	Pyramid    PyramidConfig
}

const codecChain = "deflate"

// Write writes every pyramid level under arrayPath and the top-level
// zarr.json manifest enumerating them.
func Write(ctx context.Context, st store.Store, arrayPath string, req WriteRequest) error {
	if req.ChunkShape[0] <= 0 {
		req.ChunkShape = [2]int{256, 256}
	}
	if req.Pyramid.DownscaleFactor == 0 {
		req.Pyramid = DefaultPyramidConfig()
	}

	levels := []grid.MultiscaleEntry{}
	data, w, h := req.Data, req.Width, req.Height
	level := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := writeLevel(ctx, st, arrayPath, level, data, w, h, req); err != nil {
			return err
		}
		levels = append(levels, grid.MultiscaleEntry{
			Level: level, Path: itoa(level),
			Shape: [2]int{h, w}, ChunkShape: req.ChunkShape,
			ScaleFactor: 1 << uint(level),
		})

		if !req.Pyramid.Enabled {
			break
		}
		nextW, nextH := w/2, h/2
		if nextW < req.Pyramid.MinDimension || nextH < req.Pyramid.MinDimension {
			break
		}
		data = downsample(data, w, h, req.Downsample)
		w, h = nextW, nextH
		level++
	}

	top := grid.Metadata{
		LevelMetadata: grid.LevelMetadata{
			Shape:       [2]int{req.Height, req.Width},
			ChunkShape:  req.ChunkShape,
			Dtype:       "float32",
			FillValue:   float32(math.NaN()),
			CodecChain:  codecChain,
			ScaleFactor: 1,
		},
		BBox:       req.BBox,
		Attributes: req.Attributes,
		Downsample: req.Downsample,
		Multiscale: levels,
	}
	manifest, err := top.Marshal()
	if err != nil {
		return err
	}
	return st.Put(ctx, arrayPath+"/"+grid.ManifestPath, manifest)
}

func writeLevel(ctx context.Context, st store.Store, arrayPath string, level int, data []float32, w, h int, req WriteRequest) error {
	cr, cc := req.ChunkShape[0], req.ChunkShape[1]
	numChunkRows := ceilDiv(h, cr)
	numChunkCols := ceilDiv(w, cc)

	for chRow := 0; chRow < numChunkRows; chRow++ {
		for chCol := 0; chCol < numChunkCols; chCol++ {
			rows := minInt(cr, h-chRow*cr)
			cols := minInt(cc, w-chCol*cc)
			chunk := make([]float32, rows*cols)
			for r := 0; r < rows; r++ {
				srcRow := chRow*cr + r
				copy(chunk[r*cols:(r+1)*cols], data[srcRow*w+chCol*cc:srcRow*w+chCol*cc+cols])
			}
			encoded, err := encodeChunk(chunk)
			if err != nil {
				return err
			}
			path := grid.LevelPath(arrayPath, level) + "/c/" + itoa(chRow) + "/" + itoa(chCol)
			if err := st.Put(ctx, path, encoded); err != nil {
				return err
			}
		}
	}
	return nil
}

func encodeChunk(chunk []float32) ([]byte, error) {
	raw := make([]byte, len(chunk)*4)
	for i, v := range chunk {
		bits := math.Float32bits(v)
		raw[i*4] = byte(bits)
		raw[i*4+1] = byte(bits >> 8)
		raw[i*4+2] = byte(bits >> 16)
		raw[i*4+3] = byte(bits >> 24)
	}
	var buf bytes.Buffer
	zw, err := flate.NewWriter(&buf, flate.DefaultCompression)
	if err != nil {
		return nil, err
	}
	if _, err := zw.Write(raw); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// downsample performs one 2x downsampling pass per spec §4.6: output cell
// (oc,or) consumes input cells (2oc,2or),(2oc+1,2or),(2oc,2or+1),(2oc+1,2or+1).
// Trailing odd row/col is dropped.
func downsample(in []float32, w, h int, method grid.DownsampleMethod) []float32 {
	outW, outH := w/2, h/2
	out := make([]float32, outW*outH)
	for or := 0; or < outH; or++ {
		for oc := 0; oc < outW; oc++ {
			a := in[(2*or)*w+2*oc]
			b := in[(2*or)*w+2*oc+1]
			c := in[(2*or+1)*w+2*oc]
			d := in[(2*or+1)*w+2*oc+1]
			out[or*outW+oc] = combine(a, b, c, d, method)
		}
	}
	return out
}

// combine implements the three downsample rules of spec §3: mean ignores
// NaN and returns NaN only if all four are NaN; max takes the maximum of
// non-NaN values; nearest takes the top-left cell unconditionally.
func combine(a, b, c, d float32, method grid.DownsampleMethod) float32 {
	switch method {
	case grid.DownsampleNearest:
		return a
	case grid.DownsampleMax:
		max := float32(math.Inf(-1))
		any := false
		for _, v := range [4]float32{a, b, c, d} {
			if isNaN32(v) {
				continue
			}
			any = true
			if v > max {
				max = v
			}
		}
		if !any {
			return float32(math.NaN())
		}
		return max
	default: // DownsampleMean
		sum := float32(0)
		n := 0
		for _, v := range [4]float32{a, b, c, d} {
			if isNaN32(v) {
				continue
			}
			sum += v
			n++
		}
		if n == 0 {
			return float32(math.NaN())
		}
		return sum / float32(n)
	}
}

func isNaN32(v float32) bool { return v != v }

func ceilDiv(a, b int) int { return (a + b - 1) / b }

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
