package match

import (
	"math"

	"github.com/ttptv/vision/internal/pix"
)

// ColorScoreAt computes the CCOEFF_NORMED score of a BGR template against a
// BGR window. Channels are mean-centered independently and correlated
// jointly, matching the multi-channel matchTemplate behavior the floor and
// Ganon detectors were tuned against.
func ColorScoreAt(img, tmpl *pix.Image, x, y int) float64 {
	tw, th := tmpl.W, tmpl.H
	if x < 0 || y < 0 || x+tw > img.W || y+th > img.H || tw*th == 0 {
		return 0
	}
	n := float64(tw * th)

	var tSum, wSum [3]float64
	for ty := 0; ty < th; ty++ {
		ti := ty * tw * 3
		wi := ((y+ty)*img.W + x) * 3
		for tx := 0; tx < tw; tx++ {
			for c := 0; c < 3; c++ {
				tSum[c] += float64(tmpl.Pix[ti+tx*3+c])
				wSum[c] += float64(img.Pix[wi+tx*3+c])
			}
		}
	}
	var tMean, wMean [3]float64
	for c := 0; c < 3; c++ {
		tMean[c] = tSum[c] / n
		wMean[c] = wSum[c] / n
	}

	var cross, tEnergy, wEnergy float64
	for ty := 0; ty < th; ty++ {
		ti := ty * tw * 3
		wi := ((y+ty)*img.W + x) * 3
		for tx := 0; tx < tw; tx++ {
			for c := 0; c < 3; c++ {
				tv := float64(tmpl.Pix[ti+tx*3+c]) - tMean[c]
				wv := float64(img.Pix[wi+tx*3+c]) - wMean[c]
				cross += tv * wv
				tEnergy += tv * tv
				wEnergy += wv * wv
			}
		}
	}
	denom := math.Sqrt(tEnergy * wEnergy)
	if denom == 0 {
		return 0
	}
	return cross / denom
}

// ColorBest slides a BGR template over a BGR image and returns the maximum
// score with its position.
func ColorBest(img, tmpl *pix.Image) (score float64, x, y int) {
	if tmpl.W > img.W || tmpl.H > img.H {
		return 0, 0, 0
	}
	best := math.Inf(-1)
	for cy := 0; cy+tmpl.H <= img.H; cy++ {
		for cx := 0; cx+tmpl.W <= img.W; cx++ {
			s := ColorScoreAt(img, tmpl, cx, cy)
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

// ColorAllAbove returns every sliding position scoring >= threshold.
func ColorAllAbove(img, tmpl *pix.Image, threshold float64) []Hit {
	var hits []Hit
	if tmpl.W > img.W || tmpl.H > img.H {
		return hits
	}
	for cy := 0; cy+tmpl.H <= img.H; cy++ {
		for cx := 0; cx+tmpl.W <= img.W; cx++ {
			if s := ColorScoreAt(img, tmpl, cx, cy); s >= threshold {
				hits = append(hits, Hit{X: cx, Y: cy, Score: s})
			}
		}
	}
	return hits
}
