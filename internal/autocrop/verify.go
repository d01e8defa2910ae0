package autocrop

import (
	"github.com/ttptv/vision/internal/nes"
	"github.com/ttptv/vision/internal/pix"
)

// VerifyHUD checks whether a candidate rectangle contains a Zelda 1 HUD.
// The region is resized to 256×240 and tested: dark HUD strip (hard),
// game area at least as bright as the HUD (hard), then at least two of the
// soft checks: heart-colored pixels in the hearts region, a dark minimap
// region, and a non-black game area.
func VerifyHUD(frame *pix.Image, x, y, w, h int) bool {
	region := frame.Sub(x, y, w, h)
	if region.Empty() {
		return false
	}
	canonical := region.ResizeNearest(nes.Width, nes.Height)

	hudBrightness := canonical.Sub(0, 0, nes.Width, 64).Mean()
	if hudBrightness > 80 {
		return false
	}
	gameBrightness := canonical.Sub(0, 64, nes.Width, nes.Height-64).Mean()
	if gameBrightness < hudBrightness {
		return false
	}

	heartRegion := canonical.Sub(170, 28, 248-170, 44-28)
	redRatio := heartRegion.RatioWhere(func(b, g, r uint8) bool {
		return r > 80 && float64(r) > float64(g)*1.3
	})
	hasHearts := redRatio > 0.05

	minimapOK := canonical.Sub(16, 16, 64-16, 60-16).Mean() < 60

	soft := 0
	for _, ok := range []bool{hasHearts, minimapOK, gameBrightness > 20} {
		if ok {
			soft++
		}
	}
	return soft >= 2
}

// IsLikelyGameplay heuristically tests a stream frame for NES gameplay:
// a dark HUD strip in the top quarter and a brighter area below. Rejects
// mostly-black transition frames and uniform title frames.
func IsLikelyGameplay(frame *pix.Image) bool {
	if frame.Mean() < 10 {
		return false
	}
	if frame.Std() < 15 {
		return false
	}
	hud := frame.Sub(0, 0, frame.W, frame.H/4)
	game := frame.Sub(0, frame.H/4, frame.W, frame.H-frame.H/4)
	hudBright := hud.Mean()
	gameBright := game.Mean()
	return hudBright < 80 && gameBright > hudBright && gameBright > 20
}

// FilterGameplayFrames keeps likely gameplay frames, or returns the input
// unchanged when fewer than two pass.
func FilterGameplayFrames(frames []*pix.Image) []*pix.Image {
	var filtered []*pix.Image
	for _, f := range frames {
		if IsLikelyGameplay(f) {
			filtered = append(filtered, f)
		}
	}
	if len(filtered) >= 2 {
		return filtered
	}
	return frames
}
