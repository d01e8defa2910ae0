package match

import (
	"math"
	"testing"

	"github.com/ttptv/vision/internal/pix"
)

func checker(w, h int) Plane {
	pix := make([]float64, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if (x+y)%2 == 0 {
				pix[y*w+x] = 255
			}
		}
	}
	return NewPlane(pix, w, h)
}

func TestScoreReflexivity(t *testing.T) {
	tmpl := checker(8, 8)
	score := ScoreAt(tmpl, tmpl, 0, 0)
	if math.Abs(score-1.0) > 1e-9 {
		t.Errorf("expected self-match score 1.0, got %f", score)
	}
}

func TestScoreZeroVariance(t *testing.T) {
	flat := NewPlane(make([]float64, 64), 8, 8)
	tmpl := checker(8, 8)
	if s := ScoreAt(flat, tmpl, 0, 0); s != 0 {
		t.Errorf("expected 0 for flat window, got %f", s)
	}
	if s := ScoreAt(tmpl, flat, 0, 0); s != 0 {
		t.Errorf("expected 0 for flat template, got %f", s)
	}
}

func TestScoreAntiCorrelation(t *testing.T) {
	tmpl := checker(8, 8)
	inverted := make([]float64, 64)
	for i, v := range tmpl.Pix {
		inverted[i] = 255 - v
	}
	score := ScoreAt(NewPlane(inverted, 8, 8), tmpl, 0, 0)
	if math.Abs(score+1.0) > 1e-9 {
		t.Errorf("expected -1.0 for inverted pattern, got %f", score)
	}
}

func TestBestFindsEmbeddedTemplate(t *testing.T) {
	img := NewPlane(make([]float64, 16*16), 16, 16)
	tmpl := checker(4, 4)
	// Embed at (5, 7).
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.Pix[(7+y)*16+5+x] = tmpl.Pix[y*4+x]
		}
	}
	score, x, y := Best(img, tmpl)
	if x != 5 || y != 7 {
		t.Errorf("expected position (5,7), got (%d,%d)", x, y)
	}
	if math.Abs(score-1.0) > 1e-9 {
		t.Errorf("expected score 1.0 at embedded position, got %f", score)
	}
}

func TestBestTemplateTooLarge(t *testing.T) {
	img := checker(4, 4)
	tmpl := checker(8, 8)
	if score, _, _ := Best(img, tmpl); score != 0 {
		t.Errorf("expected 0 for oversized template, got %f", score)
	}
}

func TestAllAboveThreshold(t *testing.T) {
	img := NewPlane(make([]float64, 8*8), 8, 8)
	tmpl := checker(4, 4)
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.Pix[y*8+x] = tmpl.Pix[y*4+x]
		}
	}
	hits := AllAbove(img, tmpl, 0.99)
	if len(hits) == 0 {
		t.Fatal("expected at least one hit")
	}
	if hits[0].X != 0 || hits[0].Y != 0 {
		t.Errorf("expected hit at origin, got (%d,%d)", hits[0].X, hits[0].Y)
	}
}

func TestColorScoreReflexivity(t *testing.T) {
	img := pix.New(8, 16)
	for i := range img.Pix {
		img.Pix[i] = uint8((i * 37) % 251)
	}
	score := ColorScoreAt(img, img, 0, 0)
	if math.Abs(score-1.0) > 1e-9 {
		t.Errorf("expected color self-match 1.0, got %f", score)
	}
}

func TestColorBestFindsSprite(t *testing.T) {
	area := pix.New(64, 48)
	sprite := pix.New(8, 16)
	for y := 0; y < 16; y++ {
		for x := 0; x < 8; x++ {
			sprite.SetBGR(x, y, uint8(x*30), uint8(y*15), 200)
		}
	}
	for y := 0; y < 16; y++ {
		for x := 0; x < 8; x++ {
			b, g, r := sprite.BGR(x, y)
			area.SetBGR(20+x, 10+y, b, g, r)
		}
	}
	score, x, y := ColorBest(area, sprite)
	if x != 20 || y != 10 {
		t.Errorf("expected sprite at (20,10), got (%d,%d)", x, y)
	}
	if score < 0.99 {
		t.Errorf("expected near-perfect score, got %f", score)
	}
}
