package autocrop

import (
	"math"

	"github.com/ttptv/vision/internal/nes"
	"github.com/ttptv/vision/internal/pix"
)

// LifeTextCalibration is a crop + grid offset derived from the -LIFE- HUD
// text position alone.
type LifeTextCalibration struct {
	CropX, CropY, CropW, CropH int
	DX, DY                     int
	Scale                      float64
	Confidence                 float64
}

// CalibrateFromLifeText finds the NES game region by locating red pixel
// clusters characteristic of the HUD, hypothesizing which NES rows and
// columns each cluster spans, and scoring the implied canonical frame.
//
// Each cluster tries three vertical hypotheses (the cluster spans NES rows
// 3-5, 4-5, or just 5 of the HUD) and three x origins (NES x 168, 176, 160:
// the dash, the L, or the preceding tile).
func CalibrateFromLifeText(frame *pix.Image) (LifeTextCalibration, bool) {
	w, h := frame.W, frame.H

	// Red-dominant pixels in the top 60% of the frame, dilated into clusters.
	mask := make([]bool, w*h)
	limitY := int(float64(h) * 0.6)
	for y := 0; y < limitY; y++ {
		for x := 0; x < w; x++ {
			b, g, r := frame.BGR(x, y)
			if int(r) > 80 && int(r) > int(g)*2 && int(r) > int(b)*2 {
				mask[y*w+x] = true
			}
		}
	}
	dilated := pix.Dilate(mask, w, h, 2, 2)
	comps := pix.ConnectedComponents(dilated, w, h)

	var best LifeTextCalibration
	bestScore := 0.0
	found := false

	for _, c := range comps {
		if c.Area < 50 {
			continue
		}
		for _, hyp := range [][2]int{{24, 24}, {16, 32}, {8, 40}} {
			nesH, nesTop := hyp[0], hyp[1]
			scale := float64(c.H) / float64(nesH)
			if scale < 1.5 || scale > 5.0 {
				continue
			}
			for _, nesXLeft := range []int{168, 176, 160} {
				cropW := int(math.Round(256 * scale))
				cropH := int(math.Round(240 * scale))
				cropX := int(math.Round(float64(c.X) - float64(nesXLeft)*scale))
				cropY := int(math.Round(float64(c.Y) - float64(nesTop)*scale))
				cropX = clampI(cropX, 0, w-cropW)
				cropY = clampI(cropY, 0, h-cropH)
				if cropW < 100 || cropH < 100 || cropX+cropW > w || cropY+cropH > h {
					continue
				}

				region := frame.Sub(cropX, cropY, cropW, cropH)
				canonical := region.ResizeNearest(nes.Width, nes.Height)
				dx, dy, _, ok := FindGridAlignment(canonical)
				if !ok {
					continue
				}
				score := ScoreCalibration(canonical, dx, dy)
				if score > bestScore {
					bestScore = score
					best = LifeTextCalibration{
						CropX: cropX, CropY: cropY, CropW: cropW, CropH: cropH,
						DX: dx, DY: dy,
						Scale:      scale,
						Confidence: minF(score/1.6, 1.0),
					}
					found = true
				}
			}
		}
	}
	return best, found
}

func clampI(v, lo, hi int) int {
	if hi < lo {
		hi = lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
