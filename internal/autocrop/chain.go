package autocrop

import (
	"go.uber.org/zap"

	"github.com/ttptv/vision/internal/nes"
	"github.com/ttptv/vision/internal/pix"
)

// Detection is one calibration outcome: the crop rectangle in stream
// coordinates, the grid offset, and how it was found. LifeRow defaults to 5
// and is refined by the grid-alignment scan.
type Detection struct {
	CropX       int     `json:"crop_x"`
	CropY       int     `json:"crop_y"`
	CropW       int     `json:"crop_w"`
	CropH       int     `json:"crop_h"`
	DX          int     `json:"grid_dx"`
	DY          int     `json:"grid_dy"`
	LifeRow     int     `json:"life_row"`
	Confidence  float64 `json:"confidence"`
	Method      string  `json:"method"`
	HUDVerified bool    `json:"hud_verified"`
}

// DetectWithFallback runs the calibration chain over sample frames:
//
//  1. multi-frame contour detection (accepted at confidence ≥ 0.5 with a
//     verified HUD), grid offset from multi-anchor calibration;
//  2. LIFE-text calibration per frame, best confidence ≥ 0.3 wins;
//  3. common-layout library;
//  4. a low-confidence contour result, better than nothing.
//
// No partial results: when every phase fails the caller retries on later
// frames.
func DetectWithFallback(frames []*pix.Image, layouts []Layout, log *zap.Logger) (Detection, bool) {
	if log == nil {
		log = zap.NewNop()
	}

	gameplay := FilterGameplayFrames(frames)
	if len(gameplay) > len(frames)/2 {
		log.Info("filtered to gameplay frames",
			zap.Int("total", len(frames)), zap.Int("gameplay", len(gameplay)))
		frames = gameplay
	}

	contour, contourOK := DetectCropMulti(frames)
	if contourOK && contour.Confidence >= 0.5 && contour.HUDVerified {
		log.Info("contour detection succeeded", zap.Float64("confidence", contour.Confidence))
		det := Detection{
			CropX: contour.X, CropY: contour.Y, CropW: contour.W, CropH: contour.H,
			LifeRow:     5,
			Confidence:  contour.Confidence,
			Method:      "contour",
			HUDVerified: true,
		}
		midFrame := frames[len(frames)/2]
		region := midFrame.Sub(contour.X, contour.Y, contour.W, contour.H)
		if !region.Empty() {
			canonical := region.ResizeNearest(nes.Width, nes.Height)
			if cal, ok := MultiAnchorCalibration(canonical); ok {
				det.DX, det.DY = cal.DX, cal.DY
			} else if dx, dy, lifeRow, ok := FindGridAlignment(canonical); ok {
				det.DX, det.DY, det.LifeRow = dx, dy, lifeRow
			}
		}
		return det, true
	}

	log.Info("contour detection insufficient, trying LIFE-text calibration")
	var bestLife LifeTextCalibration
	bestLifeScore := 0.0
	lifeFound := false
	for i, frame := range frames {
		if cal, ok := CalibrateFromLifeText(frame); ok && cal.Confidence > bestLifeScore {
			bestLifeScore = cal.Confidence
			bestLife = cal
			lifeFound = true
			log.Info("LIFE text found",
				zap.Int("frame", i), zap.Float64("confidence", cal.Confidence))
		}
	}
	if lifeFound && bestLife.Confidence >= 0.3 {
		return Detection{
			CropX: bestLife.CropX, CropY: bestLife.CropY,
			CropW: bestLife.CropW, CropH: bestLife.CropH,
			DX: bestLife.DX, DY: bestLife.DY,
			LifeRow:     5,
			Confidence:  bestLife.Confidence,
			Method:      "life_text",
			HUDVerified: true,
		}, true
	}

	log.Info("trying common stream layouts")
	if det, ok := TryCommonLayouts(frames, layouts); ok {
		det.LifeRow = 5
		log.Info("layout match",
			zap.String("method", det.Method), zap.Float64("confidence", det.Confidence))
		return det, true
	}

	if contourOK {
		log.Info("falling back to low-confidence contour result",
			zap.Float64("confidence", contour.Confidence))
		return Detection{
			CropX: contour.X, CropY: contour.Y, CropW: contour.W, CropH: contour.H,
			LifeRow:     5,
			Confidence:  contour.Confidence,
			Method:      "contour_low",
			HUDVerified: contour.HUDVerified,
		}, true
	}

	return Detection{}, false
}
