package detector

import (
	"sort"

	"github.com/ttptv/vision/internal/match"
	"github.com/ttptv/vision/internal/pix"
)

// minShapePixels: a query region with fewer lit pixels than this is
// effectively empty (no visible sprite).
const minShapePixels = 10

// ScoredName is one template's score against a query region.
type ScoredName struct {
	Name  string
	Score float64
}

// ShapeMatcher matches query regions against binary template masks.
//
// NES sprites share pixel layout regardless of emulator palette, so both
// sides are thresholded to lit-vs-dark masks and matched on shape alone.
// The template slides inside the query, tolerating positional uncertainty
// from imprecise landmark placement. The matcher is domain-agnostic: item
// names, color twins, and B-slot rules belong to callers.
type ShapeMatcher struct {
	templates map[string]*pix.Image
	masks     map[string]match.Plane
	threshold uint8
}

// NewShapeMatcher loads all templates in dir and derives their binary masks
// with the given brightness threshold.
func NewShapeMatcher(dir string, threshold uint8) (*ShapeMatcher, error) {
	templates, err := LoadTemplateDir(dir, "")
	if err != nil {
		return nil, err
	}
	m := &ShapeMatcher{
		templates: templates,
		masks:     make(map[string]match.Plane, len(templates)),
		threshold: threshold,
	}
	for name, img := range templates {
		mask, _ := regionBinary(img, threshold, nil)
		m.masks[name] = mask
	}
	return m, nil
}

// Templates exposes the raw BGR template images keyed by name.
func (m *ShapeMatcher) Templates() map[string]*pix.Image { return m.templates }

// HasTemplates reports whether at least one template loaded.
func (m *ShapeMatcher) HasTemplates() bool { return len(m.templates) > 0 }

// MatchScored scores every template against the region, best first.
// bgColors, when non-nil, are zeroed out of the region before thresholding
// (used to mask dungeon floor tiles). An effectively empty region returns
// nil.
func (m *ShapeMatcher) MatchScored(region *pix.Image, bgColors [][3]uint8) []ScoredName {
	if len(m.masks) == 0 {
		return nil
	}
	regionMask, lit := regionBinary(region, m.threshold, bgColors)
	if lit < minShapePixels {
		return nil
	}

	scores := make([]ScoredName, 0, len(m.masks))
	for name, tmplMask := range m.masks {
		padded := regionMask
		if regionMask.W < tmplMask.W || regionMask.H < tmplMask.H {
			padded = padPlane(regionMask, tmplMask.W, tmplMask.H)
		}
		s, _, _ := match.Best(padded, tmplMask)
		scores = append(scores, ScoredName{Name: name, Score: s})
	}
	sort.Slice(scores, func(i, j int) bool {
		if scores[i].Score != scores[j].Score {
			return scores[i].Score > scores[j].Score
		}
		return scores[i].Name < scores[j].Name
	})
	return scores
}

// Match returns the best template name and score, or ok=false when nothing
// clears the 0.3 floor or the region is too dark to hold a sprite.
func (m *ShapeMatcher) Match(region *pix.Image, bgColors [][3]uint8) (string, float64, bool) {
	scored := m.MatchScored(region, bgColors)
	if len(scored) == 0 || scored[0].Score <= 0.3 {
		return "", 0, false
	}
	return scored[0].Name, scored[0].Score, true
}

// regionBinary thresholds a region to a lit-vs-dark mask, optionally
// zeroing listed background colors first. Returns the mask and its lit
// pixel count.
func regionBinary(img *pix.Image, threshold uint8, bgColors [][3]uint8) (match.Plane, int) {
	work := img
	if len(bgColors) > 0 {
		work = zeroBackground(img, bgColors, 30)
	}
	out := make([]float64, work.W*work.H)
	lit := 0
	for p := 0; p < work.W*work.H; p++ {
		i := p * 3
		// Grayscale by mean of channels, then hard threshold.
		v := (int(work.Pix[i]) + int(work.Pix[i+1]) + int(work.Pix[i+2])) / 3
		if v > int(threshold) {
			out[p] = 255
			lit++
		}
	}
	return match.NewPlane(out, work.W, work.H), lit
}

// zeroBackground blacks out pixels within tolerance of any listed BGR color.
func zeroBackground(img *pix.Image, bgColors [][3]uint8, tolerance int) *pix.Image {
	out := img.Clone()
	for p := 0; p < img.W*img.H; p++ {
		i := p * 3
		for _, c := range bgColors {
			if absInt(int(img.Pix[i])-int(c[0])) < tolerance &&
				absInt(int(img.Pix[i+1])-int(c[1])) < tolerance &&
				absInt(int(img.Pix[i+2])-int(c[2])) < tolerance {
				out.Pix[i], out.Pix[i+1], out.Pix[i+2] = 0, 0, 0
				break
			}
		}
	}
	return out
}

func padPlane(p match.Plane, minW, minH int) match.Plane {
	w, h := p.W, p.H
	if w < minW {
		w = minW
	}
	if h < minH {
		h = minH
	}
	out := make([]float64, w*h)
	for y := 0; y < p.H; y++ {
		copy(out[y*w:y*w+p.W], p.Pix[y*p.W:(y+1)*p.W])
	}
	return match.NewPlane(out, w, h)
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
