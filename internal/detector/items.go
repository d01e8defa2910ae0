package detector

import "github.com/ttptv/vision/internal/pix"

// shapeTwin pairs items whose binary masks are identical; the tile's color
// picks the correct variant when shape scores tie.
type shapeTwin struct {
	Partner string
	Color   string // "blue" | "red" | "bright" | "warm"
}

var shapeTwins = map[string]shapeTwin{
	"blue_candle":       {"red_candle", "blue"},
	"red_candle":        {"blue_candle", "red"},
	"boomerang":         {"magical_boomerang", "warm"},
	"magical_boomerang": {"boomerang", "blue"},
	"potion_blue":       {"potion_red", "blue"},
	"potion_red":        {"potion_blue", "red"},
	"blue_ring":         {"red_ring", "blue"},
	"red_ring":          {"blue_ring", "red"},
	"sword_wood":        {"sword_white", "warm"},
	"sword_white":       {"sword_wood", "bright"},
	"arrow":             {"silver_arrow", "warm"},
	"silver_arrow":      {"arrow", "bright"},
	"wand":              {"recorder", "blue"},
	"recorder":          {"wand", "warm"},
}

// twinScoreMargin: when the top two scores are within this, shape alone
// cannot separate twins and color decides.
const twinScoreMargin = 0.05

// ItemReader matches NES item tiles (typically 8×16) against binary shape
// templates, then resolves shape twins by color.
type ItemReader struct {
	matcher *ShapeMatcher
}

// NewItemReader loads item templates from dir with the given binary
// threshold (default 10 covers clean captures).
func NewItemReader(dir string, threshold uint8) (*ItemReader, error) {
	m, err := NewShapeMatcher(dir, threshold)
	if err != nil {
		return nil, err
	}
	return &ItemReader{matcher: m}, nil
}

// Templates exposes the raw BGR template images keyed by item name.
func (r *ItemReader) Templates() map[string]*pix.Image { return r.matcher.Templates() }

// HasTemplates reports whether item templates are loaded.
func (r *ItemReader) HasTemplates() bool { return r.matcher.HasTemplates() }

// ReadItemScored returns all template scores against the tile, best first.
func (r *ItemReader) ReadItemScored(tile *pix.Image, bgColors [][3]uint8) []ScoredName {
	return r.matcher.MatchScored(tile, bgColors)
}

// ReadItem matches a tile region against the item templates. The tile may
// be larger than the templates; the template slides to the best position.
// Returns "" when nothing clears the 0.3 floor.
func (r *ItemReader) ReadItem(tile *pix.Image, bgColors [][3]uint8) string {
	scored := r.matcher.MatchScored(tile, bgColors)
	if len(scored) == 0 || scored[0].Score <= 0.3 {
		return ""
	}
	best := scored[0]
	twin, ok := shapeTwins[best.Name]
	if !ok {
		return best.Name
	}
	partnerScore := 0.0
	for _, s := range scored {
		if s.Name == twin.Partner {
			partnerScore = s.Score
			break
		}
	}
	if absF(best.Score-partnerScore) < twinScoreMargin {
		return r.PickByColor(tile, best.Name, twin.Partner)
	}
	return best.Name
}

// PickByColor disambiguates shape-identical items by the tile's bright-pixel
// color. The brightness cut for color analysis is 40, well above the shape
// threshold: Twitch-compressed dark HUD background bleeds slightly blue at
// grayscale 15-25, and at threshold 10 those artifact pixels would bias a
// red candle toward blue.
func (r *ItemReader) PickByColor(tile *pix.Image, itemA, itemB string) string {
	var sb, sg, sr float64
	n := 0
	for p := 0; p < tile.W*tile.H; p++ {
		i := p * 3
		gray := (int(tile.Pix[i]) + int(tile.Pix[i+1]) + int(tile.Pix[i+2])) / 3
		if gray <= 40 {
			continue
		}
		sb += float64(tile.Pix[i])
		sg += float64(tile.Pix[i+1])
		sr += float64(tile.Pix[i+2])
		n++
	}
	if n < 5 {
		return itemA // not enough data, keep the shape winner
	}
	avgB, avgG, avgR := sb/float64(n), sg/float64(n), sr/float64(n)
	brightness := (avgB + avgG + avgR) / 3

	var tileColor string
	switch {
	case avgB > avgR+15 && avgB > avgG:
		tileColor = "blue"
	case avgR > avgB+15 && avgR > avgG:
		tileColor = "red"
	case brightness > 150:
		tileColor = "bright"
	default:
		tileColor = "warm"
	}

	if tw, ok := shapeTwins[itemA]; ok && tw.Color == tileColor {
		return itemA
	}
	if tw, ok := shapeTwins[itemB]; ok && tw.Color == tileColor {
		return itemB
	}
	return itemA
}

func absF(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
