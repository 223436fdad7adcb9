package windbarb

import "testing"

func TestSampleGridSkipsNaN(t *testing.T) {
	w, h := 4, 4
	u := make([]float32, w*h)
	v := make([]float32, w*h)
	u[5] = float32(nan())
	samples := SampleGrid(u, v, w, h, Style{SpacingPx: 1})
	for _, s := range samples {
		idx := int(s.Y)*w + int(s.X)
		if idx == 5 {
			t.Error("expected NaN sample to be skipped")
		}
	}
}

func nan() float64 {
	var f float64
	return f / f
}

func TestGlyphForSpeedDecomposesIntoFlagsBarbsHalf(t *testing.T) {
	cases := []struct {
		bucket                     int
		wantFlags, wantFull        int
		wantHalf                   bool
	}{
		{0, 0, 0, false},
		{5, 0, 0, true},
		{10, 0, 1, false},
		{45, 0, 4, true},
		{50, 1, 0, false},
		{65, 1, 1, true},
		{105, 2, 0, true},
	}
	for _, tc := range cases {
		g := glyphForSpeed(tc.bucket)
		if g.flags != tc.wantFlags || g.fullBarbs != tc.wantFull || g.halfBarb != tc.wantHalf {
			t.Errorf("bucket %d: got %+v, want flags=%d full=%d half=%v", tc.bucket, g, tc.wantFlags, tc.wantFull, tc.wantHalf)
		}
	}
}

func TestSpeedBucketRoundsDownToFive(t *testing.T) {
	if speedBucket(47) != 45 {
		t.Errorf("got %d, want 45", speedBucket(47))
	}
	if speedBucket(50) != 50 {
		t.Errorf("got %d, want 50", speedBucket(50))
	}
}

func TestRenderProducesNonEmptyCanvasForNonZeroSpeed(t *testing.T) {
	img := Render([]Sample{{X: 10, Y: 10, Speed: 25, Dir: 0}}, 32, 32, DefaultStyle())
	drawn := false
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			if img.RGBAAt(x, y).A > 0 {
				drawn = true
			}
		}
	}
	if !drawn {
		t.Error("expected barb glyph to draw visible pixels")
	}
}
