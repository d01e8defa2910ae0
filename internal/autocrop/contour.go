package autocrop

import (
	"sort"

	"github.com/ttptv/vision/internal/pix"
)

// NES aspect ratio is 256/240 = 1.067; with the 8:7 pixel aspect correction
// some captures land near 1.217. The accepted band covers both plus capture
// distortion.
const (
	minAspect = 0.95
	maxAspect = 1.35

	minAreaFraction = 0.03
	maxAreaFraction = 0.95
)

// CropResult is a detected NES game rectangle within a stream frame.
type CropResult struct {
	X, Y, W, H   int
	Confidence   float64
	AspectRatio  float64
	SourceWidth  int
	SourceHeight int
	HUDVerified  bool
}

type rect struct{ X, Y, W, H int }

// DetectCrop finds the NES game region in a single frame: collect
// rectangle candidates from three complementary binarizations, filter by
// area and aspect, score, and verify the HUD.
func DetectCrop(frame *pix.Image) (CropResult, bool) {
	frameArea := float64(frame.W * frame.H)
	minArea := frameArea * minAreaFraction
	maxArea := frameArea * maxAreaFraction

	candidates := findRectangleCandidates(frame, minArea, maxArea)
	if len(candidates) == 0 {
		return CropResult{}, false
	}

	var best CropResult
	bestScore := -1.0
	found := false

	for _, c := range candidates {
		aspect := float64(c.W) / float64(c.H)
		if aspect < minAspect || aspect > maxAspect {
			continue
		}

		areaScore := float64(c.W*c.H) / frameArea
		aspectScore := 1.0 - minF(absF(aspect-1.067)/0.3, 1.0)
		sizePenalty := 1.0
		if areaScore >= 0.8 {
			sizePenalty = maxF(0, 1.0-(areaScore-0.8)*5)
		}
		score := areaScore*0.3 + aspectScore*0.4 + sizePenalty*0.3

		hudOK := VerifyHUD(frame, c.X, c.Y, c.W, c.H)
		if hudOK {
			score += 0.5
		}

		if score > bestScore {
			bestScore = score
			best = CropResult{
				X: c.X, Y: c.Y, W: c.W, H: c.H,
				Confidence:   minF(score, 1.0),
				AspectRatio:  aspect,
				SourceWidth:  frame.W,
				SourceHeight: frame.H,
				HUDVerified:  hudOK,
			}
			found = true
		}
	}
	return best, found
}

// DetectCropMulti runs detection on each frame and takes the component-wise
// median rectangle for stability.
func DetectCropMulti(frames []*pix.Image) (CropResult, bool) {
	var results []CropResult
	for _, f := range frames {
		if r, ok := DetectCrop(f); ok {
			results = append(results, r)
		}
	}
	if len(results) == 0 {
		return CropResult{}, false
	}

	xs := make([]int, len(results))
	ys := make([]int, len(results))
	ws := make([]int, len(results))
	hs := make([]int, len(results))
	confSum := 0.0
	hudAny := false
	for i, r := range results {
		xs[i], ys[i], ws[i], hs[i] = r.X, r.Y, r.W, r.H
		confSum += r.Confidence
		hudAny = hudAny || r.HUDVerified
	}
	sort.Ints(xs)
	sort.Ints(ys)
	sort.Ints(ws)
	sort.Ints(hs)
	mid := len(results) / 2

	return CropResult{
		X: xs[mid], Y: ys[mid], W: ws[mid], H: hs[mid],
		Confidence:   confSum / float64(len(results)),
		AspectRatio:  float64(ws[mid]) / float64(hs[mid]),
		SourceWidth:  results[0].SourceWidth,
		SourceHeight: results[0].SourceHeight,
		HUDVerified:  hudAny,
	}, true
}

// findRectangleCandidates runs the three binarizations (gradient edges,
// adaptive threshold, and a dilated dark-border mask) and extracts
// rectangle-like regions from each.
func findRectangleCandidates(frame *pix.Image, minArea, maxArea float64) []rect {
	gray := frame.GrayMean()
	w, h := frame.W, frame.H

	var candidates []rect

	edges := edgeMask(gray, w, h, 30)
	candidates = append(candidates, maskToRects(edges, w, h, minArea, maxArea, true)...)

	thresh := adaptiveThreshold(gray, w, h, 11, 2)
	candidates = append(candidates, maskToRects(thresh, w, h, minArea, maxArea, true)...)

	// Dark rectangular borders are common around NES captures: dilate the
	// dark pixels into a connected border, then take the inverted interior.
	dark := make([]bool, w*h)
	for i, v := range gray {
		dark[i] = v < 30
	}
	darkDilated := pix.Dilate(dark, w, h, 2, 2)
	inner := make([]bool, w*h)
	for i, v := range darkDilated {
		inner[i] = !v
	}
	candidates = append(candidates, maskToRects(inner, w, h, minArea, maxArea, false)...)

	return deduplicateRects(candidates, 20)
}

// edgeMask marks pixels whose 4-neighbor gradient magnitude exceeds the
// threshold.
func edgeMask(gray []float64, w, h int, threshold float64) []bool {
	out := make([]bool, w*h)
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			i := y*w + x
			gx := gray[i+1] - gray[i-1]
			gy := gray[i+w] - gray[i-w]
			if gx < 0 {
				gx = -gx
			}
			if gy < 0 {
				gy = -gy
			}
			if gx+gy > threshold {
				out[i] = true
			}
		}
	}
	return out
}

// adaptiveThreshold marks pixels above their local block mean minus c.
func adaptiveThreshold(gray []float64, w, h, block int, c float64) []bool {
	half := block / 2
	out := make([]bool, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			sum, count := 0.0, 0
			for dy := -half; dy <= half; dy += 2 { // sparse sample keeps this linear-ish
				yy := y + dy
				if yy < 0 || yy >= h {
					continue
				}
				for dx := -half; dx <= half; dx += 2 {
					xx := x + dx
					if xx < 0 || xx >= w {
						continue
					}
					sum += gray[yy*w+xx]
					count++
				}
			}
			if count > 0 && gray[y*w+x] > sum/float64(count)-c {
				out[y*w+x] = true
			}
		}
	}
	return out
}

// maskToRects labels connected regions and keeps their bounding rectangles.
// When requireFill is set, the region must cover most of its bounding box
// (rectangle-like), matching the contour-approximation acceptance rule.
func maskToRects(mask []bool, w, h int, minArea, maxArea float64, requireFill bool) []rect {
	var rects []rect
	for _, c := range pix.ConnectedComponents(mask, w, h) {
		area := float64(c.Area)
		if area < minArea || area > maxArea {
			continue
		}
		if c.W <= 0 || c.H <= 0 {
			continue
		}
		if requireFill {
			if area/float64(c.W*c.H) <= 0.85 {
				continue
			}
		}
		rects = append(rects, rect{X: c.X, Y: c.Y, W: c.W, H: c.H})
	}
	return rects
}

// deduplicateRects merges rectangles whose corners are within threshold px.
func deduplicateRects(rects []rect, threshold int) []rect {
	var unique []rect
	for _, r := range rects {
		dup := false
		for _, u := range unique {
			if absI(r.X-u.X) < threshold && absI(r.Y-u.Y) < threshold &&
				absI(r.W-u.W) < threshold && absI(r.H-u.H) < threshold {
				dup = true
				break
			}
		}
		if !dup {
			unique = append(unique, r)
		}
	}
	return unique
}

func absF(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func absI(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxF(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
