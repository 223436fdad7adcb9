package contour

import "testing"

func TestGenerateLevels(t *testing.T) {
	got := GenerateLevels(0, 20, 5)
	want := []float64{0, 5, 10, 15, 20}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("index %d: got %v want %v", i, got[i], want[i])
		}
	}

	got = GenerateLevels(2, 18, 5)
	want = []float64{5, 10, 15}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestMarchSquaresFlatFieldHasNoContour(t *testing.T) {
	data := make([]float32, 9)
	for i := range data {
		data[i] = 5.0
	}
	segments := MarchSquares(data, 3, 3, 5.0)
	if len(segments) != 0 {
		t.Errorf("expected no segments for flat field, got %d", len(segments))
	}
}

func TestMarchSquaresPeakProducesContour(t *testing.T) {
	data := []float32{
		0, 0, 0,
		0, 10, 0,
		0, 0, 0,
	}
	segments := MarchSquares(data, 3, 3, 5.0)
	if len(segments) == 0 {
		t.Error("expected segments around the peak")
	}
}

func TestMarchSquaresSkipsNaNCells(t *testing.T) {
	data := []float32{
		0, 0, 0,
		0, float32(nan()), 0,
		0, 0, 0,
	}
	segments := MarchSquares(data, 3, 3, 5.0)
	if len(segments) != 0 {
		t.Errorf("expected NaN-adjacent cells skipped, got %d segments", len(segments))
	}
}

func nan() float64 {
	var f float64
	return f / f
}

func TestConnectSegmentsClosesLoop(t *testing.T) {
	segs := []Segment{
		{Start: Point{0, 0}, End: Point{1, 0}},
		{Start: Point{1, 0}, End: Point{1, 1}},
		{Start: Point{1, 1}, End: Point{0, 1}},
		{Start: Point{0, 1}, End: Point{0, 0}},
	}
	polylines := ConnectSegments(segs)
	if len(polylines) != 1 {
		t.Fatalf("expected 1 polyline, got %d", len(polylines))
	}
	if !polylines[0].Closed {
		t.Error("expected closed loop")
	}
}

func TestSmoothPreservesOpenEndpoints(t *testing.T) {
	p := Polyline{Points: []Point{{0, 0}, {1, 1}, {2, 0}}, Closed: false}
	smoothed := Smooth(p, 1)
	if smoothed.Points[0] != p.Points[0] {
		t.Errorf("start endpoint changed: %v", smoothed.Points[0])
	}
	if smoothed.Points[len(smoothed.Points)-1] != p.Points[len(p.Points)-1] {
		t.Errorf("end endpoint changed: %v", smoothed.Points[len(smoothed.Points)-1])
	}
}

func TestPlaceLabelsRespectsSpacing(t *testing.T) {
	p := Polyline{Points: []Point{{0, 0}, {100, 0}}}
	labels := PlaceLabels(p, 20)
	if len(labels) < 3 {
		t.Fatalf("expected several labels along a 100px line, got %d", len(labels))
	}
	for i := 1; i < len(labels); i++ {
		gap := dist(labels[i-1].Point, labels[i].Point)
		if gap < 19 {
			t.Errorf("labels too close: %v", gap)
		}
	}
}
