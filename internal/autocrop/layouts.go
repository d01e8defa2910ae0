package autocrop

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/ttptv/vision/internal/nes"
	"github.com/ttptv/vision/internal/pix"
)

// Layout is one known streamer crop rectangle, keyed by stream resolution.
type Layout struct {
	ID           string     `json:"id"`
	StreamWidth  int        `json:"streamWidth"`
	StreamHeight int        `json:"streamHeight"`
	Crop         LayoutCrop `json:"crop"`
}

// LayoutCrop is the layout's crop rectangle.
type LayoutCrop struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

type layoutCatalog struct {
	Layouts []Layout `json:"layouts"`
}

// LoadLayouts reads the common-layout catalog JSON.
func LoadLayouts(path string) ([]Layout, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read layout catalog: %w", err)
	}
	var cat layoutCatalog
	if err := json.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("parse layout catalog: %w", err)
	}
	return cat.Layouts, nil
}

// TryCommonLayouts scores each resolution-matching layout against up to five
// frames via the multi-anchor function. The reported confidence is capped
// at 0.7; a layout match is a last resort, never a verified detection.
func TryCommonLayouts(frames []*pix.Image, layouts []Layout) (Detection, bool) {
	if len(frames) == 0 || len(layouts) == 0 {
		return Detection{}, false
	}
	w, h := frames[0].W, frames[0].H

	var best Detection
	bestScore := 0.0
	found := false

	for _, layout := range layouts {
		if layout.StreamWidth != w || layout.StreamHeight != h {
			continue
		}
		crop := layout.Crop
		if crop.X+crop.W > w || crop.Y+crop.H > h || crop.W < 100 || crop.H < 100 {
			continue
		}

		totalScore := 0.0
		scoredFrames := 0
		sample := frames
		if len(sample) > 5 {
			sample = sample[:5]
		}
		for _, frame := range sample {
			region := frame.Sub(crop.X, crop.Y, crop.W, crop.H)
			if region.Empty() {
				continue
			}
			canonical := region.ResizeNearest(nes.Width, nes.Height)
			if cal, ok := MultiAnchorCalibration(canonical); ok {
				totalScore += cal.Score
				scoredFrames++
			}
		}
		if scoredFrames == 0 {
			continue
		}
		avg := totalScore / float64(scoredFrames)
		if avg > bestScore {
			bestScore = avg

			region := frames[0].Sub(crop.X, crop.Y, crop.W, crop.H)
			canonical := region.ResizeNearest(nes.Width, nes.Height)
			dx, dy := 0, 0
			if cal, ok := MultiAnchorCalibration(canonical); ok {
				dx, dy = cal.DX, cal.DY
			}

			best = Detection{
				CropX: crop.X, CropY: crop.Y, CropW: crop.W, CropH: crop.H,
				DX: dx, DY: dy,
				Confidence:  minF(avg/2.0, 0.7),
				Method:      "layout:" + layout.ID,
				HUDVerified: avg > 0.8,
			}
			found = true
		}
	}
	return best, found
}
