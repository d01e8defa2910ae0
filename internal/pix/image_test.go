package pix

import (
	"testing"
)

func TestSubExactSlice(t *testing.T) {
	m := New(8, 8)
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			m.SetBGR(x, y, uint8(x), uint8(y), uint8(x+y))
		}
	}

	sub := m.Sub(2, 3, 4, 2)
	if sub.W != 4 || sub.H != 2 {
		t.Fatalf("expected 4x2, got %dx%d", sub.W, sub.H)
	}
	for y := 0; y < 2; y++ {
		for x := 0; x < 4; x++ {
			b, g, r := sub.BGR(x, y)
			wb, wg, wr := m.BGR(x+2, y+3)
			if b != wb || g != wg || r != wr {
				t.Errorf("pixel (%d,%d): expected (%d,%d,%d), got (%d,%d,%d)",
					x, y, wb, wg, wr, b, g, r)
			}
		}
	}
}

func TestSubPadsOutOfBounds(t *testing.T) {
	m := New(4, 4)
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			m.SetBGR(x, y, 100, 100, 100)
		}
	}

	sub := m.Sub(-2, -2, 4, 4)
	if b, g, r := sub.BGR(0, 0); b != 0 || g != 0 || r != 0 {
		t.Errorf("expected black padding at (0,0), got (%d,%d,%d)", b, g, r)
	}
	if b, _, _ := sub.BGR(2, 2); b != 100 {
		t.Errorf("expected source pixel at (2,2), got b=%d", b)
	}
}

func TestResizeNearestIdentity(t *testing.T) {
	m := New(16, 12)
	for i := range m.Pix {
		m.Pix[i] = uint8(i % 251)
	}
	out := m.ResizeNearest(16, 12)
	for i := range m.Pix {
		if out.Pix[i] != m.Pix[i] {
			t.Fatalf("identity resize changed byte %d: expected %d, got %d",
				i, m.Pix[i], out.Pix[i])
		}
	}
}

func TestResizeNearestScalesUp(t *testing.T) {
	m := New(2, 2)
	m.SetBGR(0, 0, 10, 20, 30)
	m.SetBGR(1, 0, 40, 50, 60)
	m.SetBGR(0, 1, 70, 80, 90)
	m.SetBGR(1, 1, 100, 110, 120)

	out := m.ResizeNearest(4, 4)
	if b, g, r := out.BGR(0, 0); b != 10 || g != 20 || r != 30 {
		t.Errorf("expected top-left source color, got (%d,%d,%d)", b, g, r)
	}
	if b, g, r := out.BGR(3, 3); b != 100 || g != 110 || r != 120 {
		t.Errorf("expected bottom-right source color, got (%d,%d,%d)", b, g, r)
	}
}

func TestMeanAbsDiff(t *testing.T) {
	a := New(4, 4)
	b := New(4, 4)
	if d := MeanAbsDiff(a, b); d != 0 {
		t.Errorf("expected 0 diff for identical frames, got %f", d)
	}
	b.Pix[0] = 48
	want := 48.0 / float64(len(a.Pix))
	if d := MeanAbsDiff(a, b); d != want {
		t.Errorf("expected %f, got %f", want, d)
	}
	c := New(2, 2)
	if d := MeanAbsDiff(a, c); d != 255 {
		t.Errorf("expected max diff for size mismatch, got %f", d)
	}
}

func TestChannelMeans(t *testing.T) {
	m := New(2, 1)
	m.SetBGR(0, 0, 10, 20, 30)
	m.SetBGR(1, 0, 30, 40, 50)
	b, g, r := m.ChannelMeans()
	if b != 20 || g != 30 || r != 40 {
		t.Errorf("expected (20,30,40), got (%f,%f,%f)", b, g, r)
	}
}

func TestGrayMaxKeepsSingleHue(t *testing.T) {
	m := New(1, 1)
	m.SetBGR(0, 0, 200, 0, 0) // blue-only pixel
	if g := m.GrayMax(); g[0] != 200 {
		t.Errorf("expected max-channel 200 for blue-only pixel, got %d", g[0])
	}
}

func TestConnectedComponents(t *testing.T) {
	// Two clusters: a 2x2 block and an isolated pixel.
	w, h := 6, 4
	mask := make([]bool, w*h)
	mask[1*w+1] = true
	mask[1*w+2] = true
	mask[2*w+1] = true
	mask[2*w+2] = true
	mask[0*w+5] = true

	comps := ConnectedComponents(mask, w, h)
	if len(comps) != 2 {
		t.Fatalf("expected 2 components, got %d", len(comps))
	}
	if comps[0].Area != 4 {
		t.Errorf("expected largest component first with area 4, got %d", comps[0].Area)
	}
	if comps[0].X != 1 || comps[0].Y != 1 || comps[0].W != 2 || comps[0].H != 2 {
		t.Errorf("unexpected bbox: (%d,%d,%d,%d)",
			comps[0].X, comps[0].Y, comps[0].W, comps[0].H)
	}
	if comps[0].CX != 1.5 || comps[0].CY != 1.5 {
		t.Errorf("expected centroid (1.5,1.5), got (%f,%f)", comps[0].CX, comps[0].CY)
	}
}

func TestDilateConnects(t *testing.T) {
	w, h := 5, 1
	mask := make([]bool, w*h)
	mask[0] = true
	mask[4] = true
	dilated := Dilate(mask, w, h, 1, 1)
	// Radius-1 dilation reaches indices 1 and 3 but not 2.
	if !dilated[1] || !dilated[3] {
		t.Error("expected neighbors of set pixels to be dilated")
	}
	if dilated[2] {
		t.Error("expected center pixel untouched after one iteration")
	}
	dilated2 := Dilate(mask, w, h, 1, 2)
	if !dilated2[2] {
		t.Error("expected two iterations to connect the clusters")
	}
}
