package grid

import (
	"bytes"
	"compress/flate"
	"context"
	"fmt"
	"io"
	"math"

	"github.com/jcom-dev/weathergrid/internal/chunkcache"
	"github.com/jcom-dev/weathergrid/internal/projection"
	"github.com/jcom-dev/weathergrid/internal/store"
	"github.com/jcom-dev/weathergrid/internal/wmserr"
)

// ManifestPath is the well-known sub-path holding an array's JSON manifest,
// per spec §6: "<path>/zarr.json". There is exactly one manifest per array,
// at the array's root path; individual pyramid levels are chunk-only
// subdirectories "<path>/<level>/c/<row>/<col>".
const ManifestPath = "zarr.json"

// Region is the result of a region or full-grid read: a row-major float32
// buffer plus the exact bbox and resolution of the returned cells.
type Region struct {
	Data       []float32
	Width      int
	Height     int
	BBox       projection.BBox
	ResX, ResY float64
}

// Reader opens one pyramid level of an array by root path + level index,
// and serves region/point/full reads through the chunk cache and store.
type Reader struct {
	arrayPath string
	level     int
	store     store.Store
	cache     *chunkcache.Cache

	top   Metadata      // shared bbox/attributes/downsample/multiscale
	lvl   LevelMetadata // this level's own shape/chunk_shape
}

// Open reads and parses arrayPath/zarr.json, then resolves level's own
// shape/chunk_shape from the top manifest (level 0's own fields for level
// 0, or the matching Multiscale entry otherwise).
func Open(ctx context.Context, st store.Store, cache *chunkcache.Cache, arrayPath string, level int) (*Reader, error) {
	raw, err := st.Get(ctx, arrayPath+"/"+ManifestPath)
	if err != nil {
		return nil, err
	}
	top, err := ParseMetadata(raw)
	if err != nil {
		return nil, wmserr.Wrap(wmserr.KindCorrupt, "unparseable manifest at "+arrayPath, err)
	}
	lm, ok := top.LevelMetadataFor(level)
	if !ok {
		return nil, wmserr.New(wmserr.KindNotFound, fmt.Sprintf("array %s has no level %d", arrayPath, level))
	}
	if lm.Shape[0] <= 0 || lm.Shape[1] <= 0 || lm.ChunkShape[0] <= 0 || lm.ChunkShape[1] <= 0 {
		return nil, wmserr.New(wmserr.KindCorrupt, "manifest at "+arrayPath+" has non-positive shape")
	}
	return &Reader{arrayPath: arrayPath, level: level, store: st, cache: cache, top: top, lvl: lm}, nil
}

// Metadata returns this level's shape/chunk layout merged with the array's
// shared bbox/attributes.
func (r *Reader) Metadata() Metadata {
	m := r.top
	m.LevelMetadata = r.lvl
	return m
}

// numChunks returns (num_chunk_rows, num_chunk_cols).
func (r *Reader) numChunks() (int, int) {
	h, w := r.lvl.Shape[0], r.lvl.Shape[1]
	cr, cc := r.lvl.ChunkShape[0], r.lvl.ChunkShape[1]
	return ceilDiv(h, cr), ceilDiv(w, cc)
}

func ceilDiv(a, b int) int { return (a + b - 1) / b }

func (r *Reader) chunkPath(row, col int) string {
	return fmt.Sprintf("%s/%d/c/%d/%d", r.arrayPath, r.level, row, col)
}

// resolution returns (lon-per-cell, lat-per-cell) for this level, derived
// from the shared bbox and this level's own shape.
func (r *Reader) resolution() (rx, ry float64) {
	h, w := r.lvl.Shape[0], r.lvl.Shape[1]
	bb := r.top.BBox
	rx = (bb.MaxLon - bb.MinLon) / float64(w)
	ry = (bb.MaxLat - bb.MinLat) / float64(h)
	return rx, ry
}

// ReadRegion implements the region-read algorithm of spec §4.4: intersect,
// floor/ceil index window, clamp, chunk-set fetch, assemble.
func (r *Reader) ReadRegion(ctx context.Context, bbox projection.BBox) (Region, error) {
	inter := intersect(bbox, r.top.BBox)
	if inter.MinLon >= inter.MaxLon || inter.MinLat >= inter.MaxLat {
		return Region{}, wmserr.New(wmserr.KindNotFound, "requested bbox does not intersect array")
	}

	rx, ry := r.resolution()
	h, w := r.lvl.Shape[0], r.lvl.Shape[1]

	// Column index increases with longitude; row index increases southward
	// (row 0 is north), per spec §3's cell-to-geography mapping.
	// The ceil'd max index is inclusive (hence the +1 on the exclusive
	// bound), so two bboxes sharing an edge both read the cell on that edge.
	colMin := int(math.Floor((inter.MinLon - r.top.BBox.MinLon) / rx))
	colMax := int(math.Ceil((inter.MaxLon-r.top.BBox.MinLon)/rx)) + 1
	rowMin := int(math.Floor((r.top.BBox.MaxLat - inter.MaxLat) / ry))
	rowMax := int(math.Ceil((r.top.BBox.MaxLat-inter.MinLat)/ry)) + 1

	colMin = clamp(colMin, 0, w)
	colMax = clamp(colMax, 0, w)
	rowMin = clamp(rowMin, 0, h)
	rowMax = clamp(rowMax, 0, h)
	if colMax <= colMin || rowMax <= rowMin {
		return Region{}, wmserr.New(wmserr.KindNotFound, "requested bbox does not intersect array")
	}

	out := make([]float32, (rowMax-rowMin)*(colMax-colMin))
	for i := range out {
		out[i] = r.lvl.FillValue
	}
	outW := colMax - colMin

	cr, cc := r.lvl.ChunkShape[0], r.lvl.ChunkShape[1]
	chunkRowMin, chunkRowMax := rowMin/cr, (rowMax-1)/cr
	chunkColMin, chunkColMax := colMin/cc, (colMax-1)/cc

	for chRow := chunkRowMin; chRow <= chunkRowMax; chRow++ {
		for chCol := chunkColMin; chCol <= chunkColMax; chCol++ {
			chunk, err := r.fetchChunk(ctx, chRow, chCol)
			if err != nil {
				return Region{}, err
			}
			r.copyChunkInto(out, outW, rowMin, colMin, rowMax, colMax, chRow, chCol, chunk)
		}
	}

	return Region{
		Data:   out,
		Width:  outW,
		Height: rowMax - rowMin,
		BBox: projection.BBox{
			MinLon: r.top.BBox.MinLon + float64(colMin)*rx,
			MaxLon: r.top.BBox.MinLon + float64(colMax)*rx,
			MinLat: r.top.BBox.MaxLat - float64(rowMax)*ry,
			MaxLat: r.top.BBox.MaxLat - float64(rowMin)*ry,
		},
		ResX: rx,
		ResY: ry,
	}, nil
}

// ReadFull returns the entire array, ignoring bbox, for non-geographic
// native projections where index-space subsetting is not meaningful
// (spec §4.4, "full-grid reads").
func (r *Reader) ReadFull(ctx context.Context) (Region, error) {
	return r.ReadRegion(ctx, r.top.BBox)
}

// ReadPoint returns the cell value at (lon, lat), or ok=false for NaN/fill
// cells or points outside the array.
func (r *Reader) ReadPoint(ctx context.Context, lon, lat float64) (float32, bool, error) {
	bb := r.top.BBox
	if lon < bb.MinLon || lon > bb.MaxLon || lat < bb.MinLat || lat > bb.MaxLat {
		return 0, false, nil
	}
	rx, ry := r.resolution()
	col := clamp(int((lon-bb.MinLon)/rx), 0, r.lvl.Shape[1]-1)
	row := clamp(int((bb.MaxLat-lat)/ry), 0, r.lvl.Shape[0]-1)

	cr, cc := r.lvl.ChunkShape[0], r.lvl.ChunkShape[1]
	chunk, err := r.fetchChunk(ctx, row/cr, col/cc)
	if err != nil {
		return 0, false, err
	}
	localRow, localCol := row%cr, col%cc
	chunkCols := minInt(cc, r.lvl.Shape[1]-(col/cc)*cc)
	v := chunk[localRow*chunkCols+localCol]
	if isNoValue(v) {
		return 0, false, nil
	}
	return v, true, nil
}

func isNoValue(v float32) bool {
	return v != v // NaN
}

func (r *Reader) fetchChunk(ctx context.Context, row, col int) ([]float32, error) {
	nr, nc := r.numChunks()
	cr, cc := r.lvl.ChunkShape[0], r.lvl.ChunkShape[1]
	if row < 0 || row >= nr || col < 0 || col >= nc {
		return fillChunk(cr, cc, r.lvl.FillValue), nil
	}

	key := chunkcache.Key{ArrayPath: r.arrayPath, Level: r.level, Row: row, Col: col}
	return r.cache.GetOrLoad(key, func(chunkcache.Key) ([]float32, error) {
		raw, err := r.store.Get(ctx, r.chunkPath(row, col))
		if err != nil {
			return nil, err
		}
		return decodeChunk(raw, cr, cc, r.lvl.CodecChain)
	})
}

func fillChunk(rows, cols int, fill float32) []float32 {
	out := make([]float32, rows*cols)
	for i := range out {
		out[i] = fill
	}
	return out
}

// copyChunkInto copies the overlap between chunk (chRow,chCol) and the
// output window [rowMin,rowMax)x[colMin,colMax) into out. A chunk
// overlapping the array's edge is shorter than chunk_rows*chunk_cols;
// positions past the true array bounds retain the fill_value already
// written into out.
func (r *Reader) copyChunkInto(out []float32, outW, rowMin, colMin, rowMax, colMax, chRow, chCol int, chunk []float32) {
	cr, cc := r.lvl.ChunkShape[0], r.lvl.ChunkShape[1]
	h, w := r.lvl.Shape[0], r.lvl.Shape[1]

	chunkRows := minInt(cr, h-chRow*cr)
	chunkCols := minInt(cc, w-chCol*cc)

	globalRowStart := chRow * cr
	globalColStart := chCol * cc

	rStart := maxInt(rowMin, globalRowStart)
	rEnd := minInt(rowMax, globalRowStart+chunkRows)
	cStart := maxInt(colMin, globalColStart)
	cEnd := minInt(colMax, globalColStart+chunkCols)

	for gr := rStart; gr < rEnd; gr++ {
		localRow := gr - globalRowStart
		for gc := cStart; gc < cEnd; gc++ {
			localCol := gc - globalColStart
			out[(gr-rowMin)*outW+(gc-colMin)] = chunk[localRow*chunkCols+localCol]
		}
	}
}

func decodeChunk(raw []byte, rows, cols int, codec string) ([]float32, error) {
	payload := raw
	if codec == "deflate" {
		zr := flate.NewReader(bytes.NewReader(raw))
		defer zr.Close()
		decoded, err := io.ReadAll(zr)
		if err != nil {
			return nil, wmserr.Wrap(wmserr.KindCorrupt, "chunk deflate decode failed", err)
		}
		payload = decoded
	}
	want := rows * cols * 4
	if len(payload) < want {
		return nil, wmserr.New(wmserr.KindCorrupt, fmt.Sprintf("chunk payload too short: got %d want %d", len(payload), want))
	}
	out := make([]float32, rows*cols)
	for i := range out {
		out[i] = math.Float32frombits(
			uint32(payload[i*4]) | uint32(payload[i*4+1])<<8 | uint32(payload[i*4+2])<<16 | uint32(payload[i*4+3])<<24,
		)
	}
	return out, nil
}

func intersect(a, b projection.BBox) projection.BBox {
	return projection.BBox{
		MinLon: math.Max(a.MinLon, b.MinLon),
		MinLat: math.Max(a.MinLat, b.MinLat),
		MaxLon: math.Min(a.MaxLon, b.MaxLon),
		MaxLat: math.Min(a.MaxLat, b.MaxLat),
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
