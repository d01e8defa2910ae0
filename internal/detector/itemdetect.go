package detector

import (
	"github.com/ttptv/vision/internal/nes"
	"github.com/ttptv/vision/internal/pix"
)

// DetectedItem is an item found in the game area.
type DetectedItem struct {
	ItemType   string
	X, Y       int // center, game-area coordinates (0 = top of game area)
	Area       int
	Confidence float64
}

// Triforce piece color and size constraints at canonical game-area
// resolution. NES triforce orange is R≈200 G≈137 B≈35; the range is widened
// for stream compression artifacts.
const (
	triforceRMin = 150
	triforceGMin = 80
	triforceGMax = 200
	triforceBMax = 100

	triforceAreaMin = 25
	triforceAreaMax = 80
	triforceBBoxMin = 6
	triforceBBoxMax = 18
)

// Staircase pedestal hot zone, game-area coordinates.
const (
	pedestalX             = 120
	pedestalY             = 68
	pedestalW             = 32
	pedestalH             = 40
	pedestalBrightnessMax = 40
	// Above ItemReader's default 0.3 floor: the pedestal background is noisy.
	staircaseItemThreshold = 0.55
)

// ItemDetector finds item sprites in the game area: the orange triforce
// triangle (on the ground or held overhead) and items on the dungeon
// staircase pedestal.
type ItemDetector struct {
	items *ItemReader
}

// NewItemDetector builds a detector. items may be nil, which disables
// pedestal detection.
func NewItemDetector(items *ItemReader) *ItemDetector {
	return &ItemDetector{items: items}
}

// DetectItems returns detections for a gameplay frame: the triforce first
// when one is found, then the staircase pedestal item (dungeons only).
func (d *ItemDetector) DetectItems(f *nes.Frame, screenType string) []DetectedItem {
	if !IsGameplay(screenType) {
		return nil
	}
	gameArea := f.GameAreaCanonical()

	var out []DetectedItem
	if tri, ok := d.detectTriforce(gameArea); ok {
		out = append(out, tri)
	}
	if screenType == ScreenDungeon && d.items != nil {
		if item, ok := d.detectStaircaseItem(gameArea); ok {
			out = append(out, item)
		}
	}
	return out
}

// detectTriforce scores orange pixel clusters by area proximity to 45 px,
// bbox squareness, and fill ratio near 0.47 (a triangle in a square box).
func (d *ItemDetector) detectTriforce(gameArea *pix.Image) (DetectedItem, bool) {
	mask := gameArea.Mask(func(b, g, r uint8) bool {
		return r > triforceRMin && g > triforceGMin && g < triforceGMax && b < triforceBMax
	})
	comps := pix.ConnectedComponents(mask, gameArea.W, gameArea.H)

	var best DetectedItem
	bestScore := 0.0
	for _, c := range comps {
		if c.Area < triforceAreaMin || c.Area > triforceAreaMax {
			continue
		}
		if c.W < triforceBBoxMin || c.W > triforceBBoxMax ||
			c.H < triforceBBoxMin || c.H > triforceBBoxMax {
			continue
		}
		areaScore := 1.0 - absF(float64(c.Area)-45)/45
		aspect := float64(minInt(c.W, c.H)) / float64(maxInt(c.W, c.H))
		fill := float64(c.Area) / float64(c.W*c.H)
		fillScore := 1.0 - absF(fill-0.47)/0.47

		confidence := areaScore*0.4 + aspect*0.3 + fillScore*0.3
		if confidence < 0 {
			confidence = 0
		}
		if confidence > 1 {
			confidence = 1
		}
		if confidence > bestScore && confidence > 0.3 {
			best = DetectedItem{
				ItemType:   "triforce",
				X:          c.X + c.W/2,
				Y:          c.Y + c.H/2,
				Area:       c.Area,
				Confidence: confidence,
			}
			bestScore = confidence
		}
	}
	return best, bestScore > 0
}

// detectStaircaseItem matches the fixed pedestal region. The brightness gate
// rejects frames where Link or an enemy occupies the zone.
func (d *ItemDetector) detectStaircaseItem(gameArea *pix.Image) (DetectedItem, bool) {
	if pedestalY+pedestalH > gameArea.H || pedestalX+pedestalW > gameArea.W {
		return DetectedItem{}, false
	}
	region := gameArea.Sub(pedestalX, pedestalY, pedestalW, pedestalH)
	if region.Mean() > pedestalBrightnessMax {
		return DetectedItem{}, false
	}

	scored := d.items.ReadItemScored(region, nil)
	if len(scored) == 0 || scored[0].Score < staircaseItemThreshold {
		return DetectedItem{}, false
	}
	name := d.items.ReadItem(region, nil)
	if name == "" {
		return DetectedItem{}, false
	}
	return DetectedItem{
		ItemType:   name,
		X:          pedestalX + pedestalW/2,
		Y:          pedestalY + pedestalH/2,
		Area:       pedestalW * pedestalH,
		Confidence: scored[0].Score,
	}, true
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
