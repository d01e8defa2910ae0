package detector

import (
	"github.com/ttptv/vision/internal/nes"
	"github.com/ttptv/vision/internal/pix"
)

// Screen types emitted by the classifier.
const (
	ScreenOverworld  = "overworld"
	ScreenDungeon    = "dungeon"
	ScreenCave       = "cave"
	ScreenSubscreen  = "subscreen"
	ScreenDeath      = "death"
	ScreenTitle      = "title"
	ScreenTransition = "transition"
	ScreenUnknown    = "unknown"
)

// IsGameplay reports whether a screen type shows the in-game HUD.
func IsGameplay(screen string) bool {
	return screen == ScreenOverworld || screen == ScreenDungeon || screen == ScreenCave
}

// Brightness thresholds.
const (
	transitionBrightnessMax = 8
	lowBrightnessMax        = 25
	subscreenDarkGameMax    = 30

	dungeonBrightnessMax = 35
	caveBrightnessMax    = 55
)

// Red text detection (LIFE / ROAR).
const (
	redChannelMin = 50
)

// Death flash and CSR menu.
const (
	deathFlashRedMin = 100

	deathMenuBrightnessMin = 3
	deathMenuBrightnessMax = 30

	deathMenuCenterBrightMin = 5
	deathMenuCenterBrightMax = 60

	whitePixelThreshold = 150
	whiteRatioMin       = 0.02
	whiteRatioMax       = 0.15
)

var deathMenuCenterX = [2]int{80, 220}
var deathMenuCenterY = [2]int{80, 180}

// Title screen.
const (
	titleTopRows          = 30
	titleTopBrightnessMax = 10
)

// Shifted HUD (subscreen scroll).
const (
	shiftedHUDYStart     = 100
	shiftedHUDYEnd       = 232
	consecutiveRedRowMin = 4

	minimapXStart           = 16
	minimapXEnd             = 80
	minimapYAboveLife       = 8
	minimapYBelowLife       = 24
	minimapChannelSpreadMax = 30
	minimapBrightnessMin    = 40
	minimapBrightnessMax    = 140
)

// ScreenClassifier classifies each frame into one of the screen types using
// pixel statistics at fixed NES positions. Decision order matters: the HUD
// test routes to the gameplay sub-classifier before any dark-frame rules.
type ScreenClassifier struct {
	lifeRow int
}

// NewScreenClassifier builds a classifier anchored at the given LIFE text
// tile row (3-6; standard is 5).
func NewScreenClassifier(lifeRow int) *ScreenClassifier {
	return &ScreenClassifier{lifeRow: lifeRow}
}

// Classify returns the screen type for a frame.
func (c *ScreenClassifier) Classify(f *nes.Frame) string {
	if c.hasLifeText(f) {
		return c.classifyGameplay(f)
	}

	gameArea := f.GameArea()
	fullBrightness := f.Crop.Mean()

	switch {
	case fullBrightness < transitionBrightnessMax:
		return ScreenTransition
	case isDeathFlash(gameArea):
		return ScreenDeath
	case c.hasShiftedHUD(f):
		return ScreenSubscreen
	case c.isDeathMenu(f):
		return ScreenDeath
	case c.isTitle(f):
		return ScreenTitle
	case fullBrightness < lowBrightnessMax:
		return ScreenTransition
	case gameArea.Mean() < subscreenDarkGameMax:
		return ScreenSubscreen
	}
	return ScreenUnknown
}

func (c *ScreenClassifier) hasLifeText(f *nes.Frame) bool {
	tile := f.Tile(22, c.lifeRow)
	b, g, r := tile.ChannelMeans()
	return r > redChannelMin && r > g*2 && r > b*2
}

func (c *ScreenClassifier) classifyGameplay(f *nes.Frame) string {
	brightness := f.GameArea().Mean()
	switch {
	case brightness < dungeonBrightnessMax:
		return ScreenDungeon
	case brightness < caveBrightnessMax:
		return ScreenCave
	}
	return ScreenOverworld
}

func isDeathFlash(gameArea *pix.Image) bool {
	b, g, r := gameArea.ChannelMeans()
	return r > deathFlashRedMin && r > g*2 && r > b*2
}

func (c *ScreenClassifier) isDeathMenu(f *nes.Frame) bool {
	full := f.Crop.Mean()
	if full > deathMenuBrightnessMax || full < deathMenuBrightnessMin {
		return false
	}
	center := f.Region(deathMenuCenterX[0], deathMenuCenterY[0],
		deathMenuCenterX[1]-deathMenuCenterX[0],
		deathMenuCenterY[1]-deathMenuCenterY[0])
	if center.Empty() {
		return false
	}
	cb := center.Mean()
	if cb < deathMenuCenterBrightMin || cb > deathMenuCenterBrightMax {
		return false
	}
	whiteRatio := center.RatioWhere(func(b, g, r uint8) bool {
		return (int(b)+int(g)+int(r))/3 > whitePixelThreshold
	})
	return whiteRatio > whiteRatioMin && whiteRatio < whiteRatioMax
}

func (c *ScreenClassifier) isTitle(f *nes.Frame) bool {
	return f.Region(0, 0, nes.Width, titleTopRows).Mean() < titleTopBrightnessMax
}

// hasShiftedHUD detects the subscreen scroll: the red "-LIFE-" text slides
// below its normal position and a minimap-grey rectangle sits just above it.
func (c *ScreenClassifier) hasShiftedHUD(f *nes.Frame) bool {
	src := f.Crop
	tw := f.ScaleCoordX(8)
	th := f.ScaleCoordY(8)
	x := f.ScaleCoordX(float64(22*8 + f.GridDX))
	if x+tw > src.W {
		return false
	}

	yStart := f.ScaleCoordY(shiftedHUDYStart)
	yEnd := f.ScaleCoordY(shiftedHUDYEnd)
	if limit := src.H - th; yEnd > limit {
		yEnd = limit
	}
	step := int(f.ScaleY + 0.5)
	if step < 1 {
		step = 1
	}

	lifeY := -1
	consecutiveRed := 0
	for y := yStart; y < yEnd; y += step {
		tile := src.Sub(x, y, tw, th)
		b, g, r := tile.ChannelMeans()
		if r > redChannelMin && r > g*2 && r > b*2 {
			consecutiveRed++
			if consecutiveRed >= consecutiveRedRowMin && lifeY < 0 {
				lifeY = y - (consecutiveRedRowMin-1)*step
			}
		} else {
			consecutiveRed = 0
		}
	}
	if lifeY < 0 {
		return false
	}

	mapY1 := lifeY - f.ScaleCoordY(minimapYAboveLife)
	if mapY1 < 0 {
		mapY1 = 0
	}
	mapY2 := lifeY + f.ScaleCoordY(minimapYBelowLife)
	if mapY2 > src.H {
		mapY2 = src.H
	}
	mx1 := f.ScaleCoordX(minimapXStart)
	mx2 := f.ScaleCoordX(minimapXEnd)
	if mapY2-mapY1 < th || mx2 <= mx1 {
		return false
	}
	mapRegion := src.Sub(mx1, mapY1, mx2-mx1, mapY2-mapY1)
	b, g, r := mapRegion.ChannelMeans()
	spread := maxF(b, g, r) - minF(b, g, r)
	brightness := (b + g + r) / 3
	return spread < minimapChannelSpreadMax &&
		brightness > minimapBrightnessMin && brightness < minimapBrightnessMax
}

func maxF(vs ...float64) float64 {
	m := vs[0]
	for _, v := range vs[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

func minF(vs ...float64) float64 {
	m := vs[0]
	for _, v := range vs[1:] {
		if v < m {
			m = v
		}
	}
	return m
}
