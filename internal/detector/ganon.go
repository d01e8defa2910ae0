package detector

import (
	"strings"

	"github.com/ttptv/vision/internal/match"
	"github.com/ttptv/vision/internal/nes"
	"github.com/ttptv/vision/internal/pix"
)

// Slightly below the floor-item threshold: enemy sprites suffer more from
// Twitch compression variance.
const ganonThreshold = 0.80

// GanonDetector slides the ganon_* templates (32×32, blue visible frames
// plus red hit-flash frames) over the D9 game area. Presence test only:
// the fallback when -ROAR- text detection is unreliable in Z1R.
type GanonDetector struct {
	templates map[string]*pix.Image
	threshold float64
}

// NewGanonDetector loads ganon_* templates from the enemies directory.
func NewGanonDetector(dir string) (*GanonDetector, error) {
	all, err := LoadTemplateDir(dir, "ganon_")
	if err != nil {
		return nil, err
	}
	templates := make(map[string]*pix.Image, len(all))
	for name, img := range all {
		if strings.HasPrefix(name, "ganon_") {
			templates[name] = img
		}
	}
	return &GanonDetector{templates: templates, threshold: ganonThreshold}, nil
}

// Detect reports whether Ganon's sprite is visible. Only scans in dungeon 9;
// every other screen or level returns false immediately.
func (d *GanonDetector) Detect(f *nes.Frame, screenType string, dungeonLevel int) bool {
	if screenType != ScreenDungeon || dungeonLevel != 9 {
		return false
	}
	if len(d.templates) == 0 {
		return false
	}
	gameArea := f.GameAreaCanonical()
	for _, tmpl := range d.templates {
		if gameArea.H < tmpl.H || gameArea.W < tmpl.W {
			continue
		}
		if score, _, _ := match.ColorBest(gameArea, tmpl); score >= d.threshold {
			return true
		}
	}
	return false
}
