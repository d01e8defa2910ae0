package detector

import (
	"sort"

	"github.com/ttptv/vision/internal/nes"
	"github.com/ttptv/vision/internal/pix"
)

// Collected pieces need at least this many gold pixels.
const minGoldPixels = 15

// The triforce display sits above the subscreen's -LIFE- text; measured
// from screenshots, the gold band lies 45-100 NES pixels above it, between
// x 85 and 170.
const (
	triforceYOffsetMin = 45
	triforceYOffsetMax = 100
	triforceXStart     = 85
	triforceXEnd       = 170
)

// TriforceReader reads the subscreen's triforce display by anchoring on the
// scrolled -LIFE- text position, masking gold pixels, and counting distinct
// x clusters. Which bins map to which dungeons varies with the triangle
// layout, so collected count (not identity) is what the pipeline consumes;
// the vector fills from piece 1 upward.
type TriforceReader struct{}

// NewTriforceReader returns a subscreen triforce reader.
func NewTriforceReader() *TriforceReader { return &TriforceReader{} }

// ReadTriforce returns the 8-piece collected vector.
func (tr *TriforceReader) ReadTriforce(f *nes.Frame) [8]bool {
	var result [8]bool
	lifeY, ok := tr.findLifeY(f)
	if !ok {
		return result
	}

	yStart := lifeY - f.ScaleCoordY(triforceYOffsetMax)
	if yStart < 0 {
		yStart = 0
	}
	yEnd := lifeY - f.ScaleCoordY(triforceYOffsetMin)
	if yEnd < 0 {
		yEnd = 0
	}
	xStart := f.ScaleCoordX(triforceXStart)
	xEnd := f.ScaleCoordX(triforceXEnd)
	if yEnd <= yStart || xEnd <= xStart {
		return result
	}

	region := f.Crop.Sub(xStart, yStart, xEnd-xStart, yEnd-yStart)
	if region.Empty() {
		return result
	}

	// Gold mask: high red, medium green, low blue. More robust to JPEG
	// compression than a Euclidean distance from one reference color.
	var goldXs []int
	for y := 0; y < region.H; y++ {
		for x := 0; x < region.W; x++ {
			b, g, r := region.BGR(x, y)
			if r > 150 && g > 80 && b < 70 && r > g {
				goldXs = append(goldXs, x+xStart)
			}
		}
	}
	if len(goldXs) < minGoldPixels {
		return result
	}

	sort.Ints(goldXs)
	gapThreshold := f.ScaleCoordX(8)
	if gapThreshold < 8 {
		gapThreshold = 8
	}
	scale := f.ScaleX
	if f.ScaleY > scale {
		scale = f.ScaleY
	}
	minClusterPixels := int(3*scale + 0.5)
	if minClusterPixels < 3 {
		minClusterPixels = 3
	}

	// Split the x-sorted gold pixels into clusters at gaps of gapThreshold
	// or more; each large-enough cluster is one collected piece.
	clusters := 0
	clusterEnd := goldXs[0]
	clusterCount := 1
	for _, x := range goldXs[1:] {
		if x-clusterEnd < gapThreshold {
			clusterEnd = x
			clusterCount++
		} else {
			if clusterCount >= minClusterPixels {
				clusters++
			}
			clusterEnd = x
			clusterCount = 1
		}
	}
	if clusterCount >= minClusterPixels {
		clusters++
	}

	for i := 0; i < clusters && i < 8; i++ {
		result[i] = true
	}
	return result
}

// findLifeY scans native y for the red LIFE text at the standard column,
// between NES y 100 and 232 (the subscreen scroll range).
func (tr *TriforceReader) findLifeY(f *nes.Frame) (int, bool) {
	src := f.Crop
	x := f.ScaleCoordX(float64(22*8 + f.GridDX))
	tw := f.ScaleCoordX(8)
	if tw < 1 {
		tw = 1
	}
	th := f.ScaleCoordY(8)
	if th < 1 {
		th = 1
	}
	yStart := f.ScaleCoordY(100)
	yEnd := f.ScaleCoordY(232)
	if limit := src.H - th; yEnd > limit {
		yEnd = limit
	}
	if x+tw > src.W {
		return 0, false
	}
	for y := yStart; y < yEnd; y++ {
		tile := src.Sub(x, y, tw, th)
		b, g, r := tile.ChannelMeans()
		if pix.RedDominant(b, g, r, 50) {
			return y, true
		}
	}
	return 0, false
}
