package detector

import (
	"fmt"
	"path/filepath"

	"github.com/ttptv/vision/internal/match"
	"github.com/ttptv/vision/internal/pix"
)

// digitConfidence separates real digits from empty/dark tiles. Stream
// captures with non-integer resize ratios score 0.2-0.4 even for correct
// matches; empty tiles score near 0, so 0.15 splits them safely.
const digitConfidence = 0.15

// DigitReader matches 8×8 NES digit tiles against stored templates.
//
// Grayscale is per-pixel max-channel, not weighted luminance: weighted
// grayscale darkens single-hue digits (blue-only palettes in custom ROMs)
// to ~69, wrecking correlation scores, while max-channel keeps any hue at
// full brightness and dark backgrounds at 0.
type DigitReader struct {
	templates [10]*pix.Image
	grays     [10]match.Plane
	loaded    int
}

// NewDigitReader loads 0.png .. 9.png (or .tga/.jpg) from dir, resizing
// to 8×8 where needed.
func NewDigitReader(dir string) (*DigitReader, error) {
	r := &DigitReader{}
	for d := 0; d < 10; d++ {
		var img *pix.Image
		for _, ext := range templateExtensions {
			path := filepath.Join(dir, fmt.Sprintf("%d%s", d, ext))
			loaded, err := LoadTemplateImage(path)
			if err == nil {
				img = loaded
				break
			}
		}
		if img == nil {
			continue
		}
		if img.W != 8 || img.H != 8 {
			img = img.ResizeNearest(8, 8)
		}
		r.templates[d] = img
		r.grays[d] = match.PlaneFromBytes(img.GrayMax(), 8, 8)
		r.loaded++
	}
	return r, nil
}

// HasTemplates reports whether any digit templates loaded.
func (r *DigitReader) HasTemplates() bool { return r.loaded > 0 }

// TemplateGray returns the max-channel grayscale plane for a digit, for
// callers that slide templates directly (multi-digit counters, dungeon
// level detection). ok is false when the digit never loaded.
func (r *DigitReader) TemplateGray(d int) (match.Plane, bool) {
	if d < 0 || d > 9 || r.templates[d] == nil {
		return match.Plane{}, false
	}
	return r.grays[d], true
}

// ReadDigit matches a single 8×8 tile. Returns (digit, score); digit is -1
// when no template clears the confidence threshold (score still reports the
// raw best so callers can reason about near-misses like the hex "A" glyph).
func (r *DigitReader) ReadDigit(tile *pix.Image) (digit int, score float64) {
	if r.loaded == 0 {
		return -1, 0
	}
	if tile.W != 8 || tile.H != 8 {
		tile = tile.ResizeNearest(8, 8)
	}
	tileGray := match.PlaneFromBytes(tile.GrayMax(), 8, 8)

	best := -1
	bestScore := 0.0
	for d := 0; d < 10; d++ {
		if r.templates[d] == nil {
			continue
		}
		s := match.ScoreAt(tileGray, r.grays[d], 0, 0)
		if s > bestScore {
			bestScore = s
			best = d
		}
	}
	if bestScore > digitConfidence && best >= 0 {
		return best, bestScore
	}
	return -1, bestScore
}
