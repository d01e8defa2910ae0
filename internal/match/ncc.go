// Package match implements the normalized cross-correlation template scoring
// used by every sprite and digit reader. The score is the OpenCV
// TM_CCOEFF_NORMED formulation: both the template and the window are
// mean-centered, and the product sum is normalized by the window energies.
// Scores land in [-1, 1]; identical content scores 1.0.
package match

import "math"

// Plane is a single-channel float image.
type Plane struct {
	W, H int
	Pix  []float64
}

// NewPlane wraps pixel data into a Plane. len(pix) must be w*h.
func NewPlane(pix []float64, w, h int) Plane { return Plane{W: w, H: h, Pix: pix} }

// PlaneFromBytes converts a uint8 plane.
func PlaneFromBytes(pix []uint8, w, h int) Plane {
	out := make([]float64, len(pix))
	for i, v := range pix {
		out[i] = float64(v)
	}
	return Plane{W: w, H: h, Pix: out}
}

// PlaneFromBools converts a boolean mask to a 0/255 plane.
func PlaneFromBools(mask []bool, w, h int) Plane {
	out := make([]float64, len(mask))
	for i, v := range mask {
		if v {
			out[i] = 255
		}
	}
	return Plane{W: w, H: h, Pix: out}
}

// ScoreAt computes the CCOEFF_NORMED score of tmpl against the window of img
// whose top-left corner is (x, y). Returns 0 when either side has zero
// variance (flat content carries no correlation signal).
func ScoreAt(img, tmpl Plane, x, y int) float64 {
	tw, th := tmpl.W, tmpl.H
	if x < 0 || y < 0 || x+tw > img.W || y+th > img.H || tw*th == 0 {
		return 0
	}
	n := float64(tw * th)

	var tSum, wSum float64
	for ty := 0; ty < th; ty++ {
		ti := ty * tw
		wi := (y+ty)*img.W + x
		for tx := 0; tx < tw; tx++ {
			tSum += tmpl.Pix[ti+tx]
			wSum += img.Pix[wi+tx]
		}
	}
	tMean, wMean := tSum/n, wSum/n

	var cross, tEnergy, wEnergy float64
	for ty := 0; ty < th; ty++ {
		ti := ty * tw
		wi := (y+ty)*img.W + x
		for tx := 0; tx < tw; tx++ {
			tv := tmpl.Pix[ti+tx] - tMean
			wv := img.Pix[wi+tx] - wMean
			cross += tv * wv
			tEnergy += tv * tv
			wEnergy += wv * wv
		}
	}
	denom := math.Sqrt(tEnergy * wEnergy)
	if denom == 0 {
		return 0
	}
	return cross / denom
}

// Best slides tmpl over every position of img and returns the maximum score
// and its top-left position. A template larger than the image scores 0.
func Best(img, tmpl Plane) (score float64, x, y int) {
	if tmpl.W > img.W || tmpl.H > img.H {
		return 0, 0, 0
	}
	best := math.Inf(-1)
	for cy := 0; cy+tmpl.H <= img.H; cy++ {
		for cx := 0; cx+tmpl.W <= img.W; cx++ {
			s := ScoreAt(img, tmpl, cx, cy)
			if s > best {
				best, x, y = s, cx, cy
			}
		}
	}
	if math.IsInf(best, -1) {
		return 0, 0, 0
	}
	return best, x, y
}

// Hit is one sliding-match location at or above a threshold.
type Hit struct {
	X, Y  int
	Score float64
}

// AllAbove returns every sliding position scoring >= threshold.
func AllAbove(img, tmpl Plane, threshold float64) []Hit {
	var hits []Hit
	if tmpl.W > img.W || tmpl.H > img.H {
		return hits
	}
	for cy := 0; cy+tmpl.H <= img.H; cy++ {
		for cx := 0; cx+tmpl.W <= img.W; cx++ {
			if s := ScoreAt(img, tmpl, cx, cy); s >= threshold {
				hits = append(hits, Hit{X: cx, Y: cy, Score: s})
			}
		}
	}
	return hits
}
