// Package contour implements the marching-squares contour extractor
// (C11), ported line-for-line in structure from
// original_source/crates/renderer/src/contour.rs (march_squares,
// connect_segments, smooth_contour) into Go's float32/slice idiom.
package contour

import "math"

// Point is a pixel-space coordinate.
type Point struct {
	X, Y float32
}

// Segment is one edge crossing produced by a single marching-squares cell.
type Segment struct {
	Start, End Point
}

// Polyline is a stitched sequence of segment endpoints; Closed indicates
// the first and last vertex coincide within the stitching tolerance.
type Polyline struct {
	Level  float64
	Points []Point
	Closed bool
}

// stitchEpsilon is the endpoint-join tolerance in grid cells (spec §4.11).
const stitchEpsilon = 1e-3

// GenerateLevels builds a level list from (min, max, interval): the first
// multiple of interval at or above min, stepping by interval up to max
// inclusive.
func GenerateLevels(minValue, maxValue, interval float64) []float64 {
	if interval <= 0 || maxValue <= minValue {
		return nil
	}
	start := math.Ceil(minValue/interval) * interval
	var levels []float64
	for level := start; level <= maxValue; level += interval {
		levels = append(levels, level)
	}
	return levels
}

// MarchSquares scans every 2x2 cell of a row-major width*height grid and
// emits the edge-crossing segments for level. A cell with any NaN corner
// is skipped entirely.
func MarchSquares(data []float32, width, height int, level float64) []Segment {
	if width < 2 || height < 2 || len(data) != width*height {
		return nil
	}

	var segments []Segment
	for y := 0; y < height-1; y++ {
		for x := 0; x < width-1; x++ {
			tl := data[y*width+x]
			tr := data[y*width+x+1]
			bl := data[(y+1)*width+x]
			br := data[(y+1)*width+x+1]

			if isNaN32(tl) || isNaN32(tr) || isNaN32(bl) || isNaN32(br) {
				continue
			}

			cellIndex := 0
			if float64(tl) >= level {
				cellIndex |= 1
			}
			if float64(tr) >= level {
				cellIndex |= 2
			}
			if float64(br) >= level {
				cellIndex |= 4
			}
			if float64(bl) >= level {
				cellIndex |= 8
			}

			segments = append(segments, cellSegments(cellIndex, float32(x), float32(y), tl, tr, br, bl, level)...)
		}
	}
	return segments
}

// cellSegments is the 16-case marching-squares lookup table. Cases 5 and
// 10 are the ambiguous saddle cases and emit two disjoint segments.
func cellSegments(cellIndex int, x, y, tl, tr, br, bl float32, level float64) []Segment {
	top := interpolateEdge(x, y, x+1, y, tl, tr, level)
	right := interpolateEdge(x+1, y, x+1, y+1, tr, br, level)
	bottom := interpolateEdge(x, y+1, x+1, y+1, bl, br, level)
	left := interpolateEdge(x, y, x, y+1, tl, bl, level)

	switch cellIndex {
	case 0, 15:
		return nil
	case 1, 14:
		return []Segment{{left, top}}
	case 2, 13:
		return []Segment{{top, right}}
	case 3, 12:
		return []Segment{{left, right}}
	case 4, 11:
		return []Segment{{right, bottom}}
	case 5:
		return []Segment{{left, top}, {right, bottom}}
	case 6, 9:
		return []Segment{{top, bottom}}
	case 7, 8:
		return []Segment{{left, bottom}}
	case 10:
		return []Segment{{top, right}, {left, bottom}}
	default:
		return nil
	}
}

func interpolateEdge(x1, y1, x2, y2, val1, val2 float32, level float64) Point {
	if math.Abs(float64(val2-val1)) < 1e-6 {
		return Point{X: (x1 + x2) / 2, Y: (y1 + y2) / 2}
	}
	t := (level - float64(val1)) / float64(val2-val1)
	if t < 0 {
		t = 0
	}
	if t > 1 {
		t = 1
	}
	tf := float32(t)
	return Point{X: x1 + tf*(x2-x1), Y: y1 + tf*(y2-y1)}
}

func isNaN32(v float32) bool { return v != v }

// ConnectSegments stitches unordered segments into polylines by
// endpoint-matching within stitchEpsilon, setting Closed when a
// polyline's first and last vertex coincide.
func ConnectSegments(segments []Segment) []Polyline {
	if len(segments) == 0 {
		return nil
	}

	used := make([]bool, len(segments))
	var out []Polyline

	for startIdx := range segments {
		if used[startIdx] {
			continue
		}
		points := []Point{segments[startIdx].Start, segments[startIdx].End}
		used[startIdx] = true

		for {
			currentEnd := points[len(points)-1]
			found := false
			for i, seg := range segments {
				if used[i] {
					continue
				}
				if dist(seg.Start, currentEnd) < stitchEpsilon {
					points = append(points, seg.End)
					used[i] = true
					found = true
					break
				}
				if dist(seg.End, currentEnd) < stitchEpsilon {
					points = append(points, seg.Start)
					used[i] = true
					found = true
					break
				}
			}
			if !found {
				break
			}
		}

		if len(points) < 2 {
			continue
		}
		closed := dist(points[0], points[len(points)-1]) < stitchEpsilon
		out = append(out, Polyline{Points: points, Closed: closed})
	}
	return out
}

func dist(a, b Point) float64 {
	dx := float64(a.X - b.X)
	dy := float64(a.Y - b.Y)
	return math.Sqrt(dx*dx + dy*dy)
}

// Smooth applies Chaikin corner-cutting iterations times. Open
// polylines keep their original endpoints across every pass.
func Smooth(p Polyline, iterations int) Polyline {
	if iterations == 0 || len(p.Points) < 3 {
		return p
	}

	points := append([]Point(nil), p.Points...)
	for pass := 0; pass < iterations; pass++ {
		newPoints := make([]Point, 0, len(points)*2)
		n := len(points)
		for i := 0; i < n; i++ {
			p1 := points[i]
			var p2 Point
			if p.Closed {
				p2 = points[(i+1)%n]
			} else if i+1 < n {
				p2 = points[i+1]
			} else {
				break
			}
			q := Point{X: 0.75*p1.X + 0.25*p2.X, Y: 0.75*p1.Y + 0.25*p2.Y}
			r := Point{X: 0.25*p1.X + 0.75*p2.X, Y: 0.25*p1.Y + 0.75*p2.Y}
			newPoints = append(newPoints, q, r)
		}
		if !p.Closed && len(points) > 0 {
			head := append([]Point{points[0]}, newPoints...)
			newPoints = append(head, points[len(points)-1])
		}
		points = newPoints
	}
	return Polyline{Level: p.Level, Points: points, Closed: p.Closed}
}

// SpecialLevel is a style override drawn last, after the generated
// levels (spec §4.11).
type SpecialLevel struct {
	Value float64
	Width float32
	Label string
}

// Config is the style input to GenerateAll.
type Config struct {
	Levels          []float64
	SpecialLevels   []SpecialLevel
	SmoothingPasses int
}

// GenerateAll runs MarchSquares + ConnectSegments + Smooth for every
// configured level plus every special level, tagging each resulting
// polyline with its source level.
func GenerateAll(data []float32, width, height int, cfg Config) []Polyline {
	var all []Polyline
	levels := append([]float64(nil), cfg.Levels...)
	for _, sl := range cfg.SpecialLevels {
		levels = append(levels, sl.Value)
	}

	for _, level := range levels {
		segments := MarchSquares(data, width, height, level)
		polylines := ConnectSegments(segments)
		for i := range polylines {
			polylines[i].Level = level
			if cfg.SmoothingPasses > 0 {
				polylines[i] = Smooth(polylines[i], cfg.SmoothingPasses)
			}
		}
		all = append(all, polylines...)
	}
	return all
}

// LabelPosition is one label placement along a polyline's arc length.
type LabelPosition struct {
	Point Point
	Angle float64 // radians, tangent direction at Point
}

// PlaceLabels returns label positions spaced minSpacingPx apart along the
// polyline's arc length, per spec §4.11.
func PlaceLabels(p Polyline, minSpacingPx float64) []LabelPosition {
	if len(p.Points) < 2 || minSpacingPx <= 0 {
		return nil
	}

	var out []LabelPosition
	var accumulated float64
	nextTarget := minSpacingPx / 2

	for i := 0; i < len(p.Points)-1; i++ {
		a, b := p.Points[i], p.Points[i+1]
		segLen := dist(a, b)
		if segLen == 0 {
			continue
		}
		for accumulated+segLen >= nextTarget {
			t := (nextTarget - accumulated) / segLen
			pt := Point{X: a.X + float32(t)*(b.X-a.X), Y: a.Y + float32(t)*(b.Y-a.Y)}
			angle := math.Atan2(float64(b.Y-a.Y), float64(b.X-a.X))
			out = append(out, LabelPosition{Point: pt, Angle: angle})
			nextTarget += minSpacingPx
		}
		accumulated += segLen
	}
	return out
}
