package detector

import (
	"math"

	"github.com/ttptv/vision/internal/match"
	"github.com/ttptv/vision/internal/nes"
	"github.com/ttptv/vision/internal/pix"
	"github.com/ttptv/vision/internal/profile"
)

// HUD layout in NES tile coordinates. The grid may be shifted uniformly by
// life_row-5 when overscan/crop moves the whole HUD up or down.
const (
	lifeTextRow      = 5
	lifeTextStartCol = 22 // "L" or "R"
	lifeChar2Col     = 23 // "I" in LIFE, "O" in ROAR

	rupeeDigitRow = 2
	keyDigitRow   = 4
	bombDigitRow  = 5

	levelDigitCol = 8
	levelDigitRow = 1
	levelTextCol1 = 2
	levelTextCol2 = 7
	levelTextRow  = 1

	swordCol = 19
	swordRow = 3

	bItemX = 128
	bItemY = 16

	heartRow1Y   = 32
	heartRow2Y   = 40
	heartStartX  = 176
	heartSpacing = 8

	minimapY1  = 12
	minimapY2  = 52
	minimapX1  = 16
	minimapX2  = 80
	minimapRow = 8
)

var rupeeDigitCols = []int{12, 13, 14} // hundreds, tens, ones
var keyDigitCols = []int{13, 14}       // keys can exceed 9 in Z1R
var bombDigitCols = []int{13, 14}

// digitConfidentScore: real digits on calibrated streams score ~0.7-0.9.
// The hex "A" glyph (Z1R master-key display) matches "0" at ~0.58, below
// this threshold.
const digitConfidentScore = 0.65

// bItemSlotAllowed: only these can actually occupy the B-button slot.
var bItemSlotAllowed = map[string]bool{
	"boomerang": true, "magical_boomerang": true, "bomb": true, "bow": true,
	"blue_candle": true, "red_candle": true, "recorder": true, "wand": true,
	"bait": true, "letter": true, "potion_blue": true, "potion_red": true,
}

// HudReader reads every gameplay HUD field from a native crop. Positions are
// NES tile coordinates shifted by the detected life row; when calibrated
// landmarks are available they override the grid positions with measured
// pixel rectangles.
type HudReader struct {
	lifeRow int
	shift   int // lifeRow - 5, applied to every HUD row

	landmarks  map[string]profile.Landmark
	lifeRegion *profile.Landmark
}

// NewHudReader builds a reader for the given life row with optional
// landmarks from a crop profile.
func NewHudReader(lifeRow int, landmarks []profile.Landmark) *HudReader {
	h := &HudReader{
		lifeRow:   lifeRow,
		shift:     lifeRow - 5,
		landmarks: make(map[string]profile.Landmark, len(landmarks)),
	}
	for _, lm := range landmarks {
		h.landmarks[lm.Label] = lm
	}
	if lm, ok := h.landmarks["-LIFE-"]; ok {
		if lm.W == 0 {
			lm.W = 40
		}
		if lm.H == 0 {
			lm.H = 8
		}
		h.lifeRegion = &lm
	}
	return h
}

func (h *HudReader) landmark(label string) (profile.Landmark, bool) {
	lm, ok := h.landmarks[label]
	return lm, ok
}

// IsHUDPresent checks for the "-LIFE-" red text (or, with a calibrated LIFE
// landmark, any bright text; custom sprite sets recolor it). Guards against
// misclassified screens producing garbage HUD readings.
func (h *HudReader) IsHUDPresent(f *nes.Frame) bool {
	if h.lifeRegion != nil {
		region := f.Extract(h.lifeRegion.X, h.lifeRegion.Y, h.lifeRegion.W, h.lifeRegion.H)
		bright := 0
		for _, v := range region.GrayMean() {
			if v > 60 {
				bright++
			}
		}
		return bright > 10
	}
	tile := f.Tile(lifeTextStartCol, lifeTextRow+h.shift)
	b, g, r := tile.ChannelMeans()
	return pix.RedDominant(b, g, r, 50)
}

// ReadHearts returns (current, max, hasHalf).
//
// Slot classification per 8×8 slot: warm-red ratio > 0.4 is a full heart,
// (0.1, 0.4] a half heart, a bright outline with no red an empty container;
// anything else ends the row scan.
func (h *HudReader) ReadHearts(f *nes.Frame) (current, maxHearts int, hasHalf bool) {
	if lm, ok := h.landmark("Hearts"); ok {
		return h.readHeartsLandmark(f, lm)
	}

	row1 := heartRow1Y + h.shift*8 + f.GridDY
	row2 := heartRow2Y + h.shift*8 + f.GridDY
	for _, rowY := range []int{row1, row2} {
		for i := 0; i < 8; i++ {
			x := heartStartX + f.GridDX + i*heartSpacing
			if x+8 > nes.Width {
				break
			}
			tile := f.Extract(x, rowY, 8, 8)
			slot := classifyHeartSlot(tile, redRatio)
			if slot == heartNone {
				break
			}
			maxHearts++
			switch slot {
			case heartFull:
				current++
			case heartHalf:
				hasHalf = true
			}
		}
	}
	return current, maxHearts, hasHalf
}

type heartSlot int

const (
	heartNone heartSlot = iota
	heartFull
	heartHalf
	heartEmpty
)

func classifyHeartSlot(tile *pix.Image, ratio func(*pix.Image) float64) heartSlot {
	r := ratio(tile)
	switch {
	case r > 0.4:
		return heartFull
	case r > 0.1:
		return heartHalf
	case hasHeartOutline(tile):
		return heartEmpty
	}
	return heartNone
}

// readHeartsLandmark normalizes the hearts landmark to the standard 64×16
// grid (two rows of eight 8×8 slots) and scans both rows.
//
// Row deduplication is a heuristic calibrated on distorted streams where the
// top heart row duplicates the bottom one: when the bottom row counts more
// current hearts than the top, the bottom row is authoritative. Two
// sub-cases: if the top row has no empty containers, its content fully
// duplicates the bottom row and is dropped; if it does have empties, those
// represent real containers absent from the bottom row and are added to max.
func (h *HudReader) readHeartsLandmark(f *nes.Frame, lm profile.Landmark) (int, int, bool) {
	region := f.Extract(lm.X, lm.Y, lm.W, lm.H)
	norm := region.ResizeNearest(64, 16)

	type rowCount struct {
		cur, max int
		half     bool
	}
	var rows [2]rowCount
	for ri, rowStart := range []int{0, 8} {
		for i := 0; i < 8; i++ {
			tile := norm.Sub(i*8, rowStart, 8, 8)
			slot := classifyHeartSlot(tile, satRatio)
			if slot == heartNone {
				break
			}
			rows[ri].max++
			switch slot {
			case heartFull:
				rows[ri].cur++
			case heartHalf:
				rows[ri].half = true
			}
		}
	}

	r1, r2 := rows[0], rows[1]
	if r2.cur > r1.cur {
		if r1.max == r1.cur {
			return r2.cur, r2.max, r2.half
		}
		extraEmpties := r1.max - r1.cur
		return r2.cur, r2.max + extraEmpties, r2.half
	}
	return r1.cur + r2.cur, r1.max + r2.max, r1.half || r2.half
}

// ReadRupees reads the rupee counter. Z1R caps rupees at 255; values above
// mean the hundreds tile caught part of the adjacent "X" icon, producing a
// false leading digit, which is dropped.
func (h *HudReader) ReadRupees(f *nes.Frame, digits *DigitReader) int {
	var value int
	if lm, ok := h.landmark("Rupees"); ok {
		value = h.readCounterAtY(f, digits, lm.Y, rupeeDigitCols, 0.5)
	} else {
		value = h.readCounterTiles(f, digits, rupeeDigitCols, rupeeDigitRow+h.shift, 0, 0.5)
	}
	if value > 255 {
		value = value % 100
	}
	return value
}

// ReadKeys reads the key counter and the Z1R master-key marker: a bright
// tile at the key digit position that matches no digit confidently is the
// "A" glyph, reported as (0, true).
func (h *HudReader) ReadKeys(f *nes.Frame, digits *DigitReader) (keys int, masterKey bool) {
	var firstTile *pix.Image
	if lm, ok := h.landmark("Keys"); ok {
		firstTile = f.Extract(keyDigitCols[0]*8, lm.Y, 8, 8)
	} else {
		firstTile = f.Tile(keyDigitCols[0], keyDigitRow+h.shift)
	}
	firstD, firstScore := digits.ReadDigit(firstTile)

	// dy+1 fallback: non-integer vertical scale (4.5× for 1080p) can drop a
	// HUD row 1px below the global grid offset. Before declaring Master Key,
	// check whether shifting down a pixel gives a confident read.
	dyAdj := 0
	_, hasKeysLM := h.landmark("Keys")
	if !hasKeysLM && (firstD < 0 || firstScore < digitConfidentScore) && firstTile.Mean() > 20 {
		x := keyDigitCols[0]*8 + f.GridDX
		y := (keyDigitRow+h.shift)*8 + f.GridDY + 1
		if y+8 <= nes.Height {
			adjTile := f.Extract(x, y, 8, 8)
			adjD, adjScore := digits.ReadDigit(adjTile)
			if adjScore > firstScore {
				firstTile, firstD, firstScore = adjTile, adjD, adjScore
				dyAdj = 1
			}
		}
	}

	if (firstD < 0 || firstScore < digitConfidentScore) && firstTile.Mean() > 20 {
		return 0, true
	}

	if lm, ok := h.landmark("Keys"); ok {
		return h.readCounterAtY(f, digits, lm.Y, keyDigitCols, 0.5), false
	}
	return h.readCounterTiles(f, digits, keyDigitCols, keyDigitRow+h.shift, dyAdj, 0.5), false
}

// ReadBombs reads the bomb counter with the same dy+1 fallback as keys and
// a lower per-digit score floor (the bomb row suffers most from the
// non-integer scale offset).
func (h *HudReader) ReadBombs(f *nes.Frame, digits *DigitReader) int {
	if lm, ok := h.landmark("Bombs"); ok {
		return h.readCounterAtY(f, digits, lm.Y, bombDigitCols, 0.5)
	}
	x := bombDigitCols[0]*8 + f.GridDX
	y := (bombDigitRow+h.shift)*8 + f.GridDY
	primary := f.Extract(x, y, 8, 8)
	_, primaryScore := digits.ReadDigit(primary)
	dyAdj := 0
	if primaryScore < digitConfidentScore && primary.Mean() > 20 && y+1+8 <= nes.Height {
		_, adjScore := digits.ReadDigit(f.Extract(x, y+1, 8, 8))
		if adjScore > primaryScore {
			dyAdj = 1
		}
	}
	return h.readCounterTiles(f, digits, bombDigitCols, bombDigitRow+h.shift, dyAdj, 0.35)
}

// ReadDungeonLevel reads the LEVEL-X digit, returning 0 outside dungeons.
// Guard sequence: brightness in the LEVEL text area, then a truly-white
// pixel ratio (the overworld minimap's gray squares pass plain brightness
// checks), then the digit. With a LVL landmark, digit templates slide over
// the right third of the strip; on the tile grid, only the single digit tile
// is matched.
func (h *HudReader) ReadDungeonLevel(f *nes.Frame, digits *DigitReader) int {
	if lm, ok := h.landmark("LVL"); ok {
		region := f.Extract(lm.X, lm.Y, lm.W, lm.H)
		leftW := region.W * 2 / 3
		if leftW < 1 {
			leftW = 1
		}
		left := region.Sub(0, 0, leftW, region.H)
		if left.Mean() < 50 {
			return 0
		}
		if whiteTextRatio(left) < 0.15 {
			return 0
		}
		rightStart := region.W*2/3 - 4
		if rightStart < 0 {
			rightStart = 0
		}
		strip := region.Sub(rightStart, 0, region.W-rightStart, region.H)
		if strip.H != 8 {
			strip = strip.ResizeNearest(strip.W, 8)
		}
		if strip.W < 8 {
			return 0
		}
		return slideLevelDigit(strip, digits)
	}

	rx := levelTextCol1*8 + f.GridDX
	ry := (levelTextRow+h.shift)*8 + f.GridDY
	rw := (levelTextCol2 + 1 - levelTextCol1) * 8
	textRegion := f.Extract(rx, ry, rw, 8)
	if textRegion.Mean() < 50 {
		return 0
	}
	if whiteTextRatio(textRegion) < 0.15 {
		return 0
	}

	tile := f.Tile(levelDigitCol, levelDigitRow+h.shift)
	d, score := digits.ReadDigit(tile)
	if d >= 1 && d <= 9 && score >= 0.3 {
		return d
	}
	return 0
}

// ReadSword reads the A-slot sword: 0 none, 1 wood, 2 white, 3 magical.
// With an A landmark the lower-right quadrant is used, avoiding the "A"
// label text and the blue HUD border on the left edge.
func (h *HudReader) ReadSword(f *nes.Frame) int {
	var tile *pix.Image
	if lm, ok := h.landmark("A"); ok {
		region := f.Extract(lm.X, lm.Y, lm.W, lm.H)
		tile = region.Sub(region.W/2, region.H/2, region.W-region.W/2, region.H-region.H/2)
	} else {
		tile = f.Tile(swordCol, swordRow+h.shift)
	}
	if tile.Empty() || tile.Mean() < 15 {
		return 0
	}
	b, g, r := tile.ChannelMeans()
	brightness := (b + g + r) / 3
	switch {
	case b > r+20: // magical sword's blue/teal tint
		return 3
	case brightness > 160: // white sword
		return 2
	}
	return 1 // wood
}

// ReadBItem reads the B-slot item via sliding shape matching, restricted to
// the B-slot-allowable set, with a color heuristic fallback.
//
// The grid-fallback extraction window is 10×24, not 16×24: 2px of horizontal
// slide room while keeping the blue HUD border (which starts ~12px right of
// the sprite and pollutes color analysis) out of frame.
func (h *HudReader) ReadBItem(f *nes.Frame, items *ItemReader) string {
	var region *pix.Image
	if lm, ok := h.landmark("B"); ok {
		tileRow := int(math.Round(float64(lm.Y-f.GridDY) / 8))
		nesY := tileRow*8 + f.GridDY
		region = f.Extract(lm.X, nesY, lm.W, lm.H)
	} else {
		region = f.Extract(bItemX+f.GridDX, bItemY+h.shift*8+f.GridDY, 10, 24)
	}
	if region.Mean() < 10 {
		return ""
	}

	if items != nil && items.HasTemplates() {
		if name := items.ReadItem(region, nil); name != "" && bItemSlotAllowed[name] {
			return name
		}
	}

	// Color heuristic fallback on the centered 8×16.
	cx := (region.W - 8) / 2
	cy := (region.H - 16) / 2
	if cx < 0 {
		cx = 0
	}
	if cy < 0 {
		cy = 0
	}
	tile := region.Sub(cx, cy, 8, 16)
	if tile.Empty() || tile.Mean() < 15 {
		return ""
	}
	b, g, r := tile.ChannelMeans()
	brightness := (b + g + r) / 3
	switch {
	case r > b+30 && r > g+30:
		return "candle"
	case b > r+30 && b > g+30:
		return "boomerang"
	case g > r+20 && g > b+20:
		return "recorder"
	case brightness > 150 && math.Abs(r-g) < 20 && math.Abs(r-b) < 20:
		return "bow"
	case brightness > 60:
		return "unknown"
	}
	return ""
}

// ReadLifeRoar reports whether the HUD shows -ROAR- (Ganon nearby) instead
// of -LIFE-. After verifying the leading red text, the second character
// decides: narrow "I" concentrates bright pixels in the center columns,
// wide "O" spreads them.
func (h *HudReader) ReadLifeRoar(f *nes.Frame) bool {
	var char2 *pix.Image
	if h.lifeRegion != nil {
		region := f.Extract(h.lifeRegion.X, h.lifeRegion.Y, h.lifeRegion.W, h.lifeRegion.H)
		redPx := region.CountWhere(func(b, g, r uint8) bool {
			return r > 80 && int(r) > int(g)*2 && int(r) > int(b)*2
		})
		if redPx < 10 {
			return false
		}
		numChars := int(math.Round(float64(h.lifeRegion.W) / 8))
		if numChars < 1 {
			numChars = 1
		}
		cStart := int(math.Round(float64(region.W) / float64(numChars)))
		cEnd := int(math.Round(float64(region.W) / float64(numChars) * 2))
		if cStart >= cEnd || cStart >= region.W {
			return false
		}
		char2 = region.Sub(cStart, 0, cEnd-cStart, region.H).ResizeNearest(8, 8)
	} else {
		lead := f.Tile(lifeTextStartCol, lifeTextRow+h.shift)
		b, g, r := lead.ChannelMeans()
		if !pix.RedDominant(b, g, r, 50) {
			return false
		}
		char2 = f.Tile(lifeChar2Col, lifeTextRow+h.shift)
	}

	if char2.Mean() < 15 {
		return false
	}
	var colSums [8]float64
	total := 0.0
	for y := 0; y < char2.H; y++ {
		for x := 0; x < char2.W && x < 8; x++ {
			i := (y*char2.W + x) * 3
			gray := (float64(char2.Pix[i]) + float64(char2.Pix[i+1]) + float64(char2.Pix[i+2])) / 3
			if gray > 40 {
				colSums[x]++
				total++
			}
		}
	}
	if total < 1 {
		total = 1
	}
	center := colSums[2] + colSums[3] + colSums[4] + colSums[5]
	return center/total < 0.55
}

// ReadMinimapPosition finds the player dot in the minimap rectangle and maps
// its centroid to a room index: row*cols + col on an 8×8 (dungeon) or 16×8
// (overworld) grid. Returns 0 when no dot is found.
func (h *HudReader) ReadMinimapPosition(f *nes.Frame, isDungeon bool) int {
	gridCols := nes.OverworldCols
	if isDungeon {
		gridCols = nes.DungeonCols
	}
	x1 := minimapX1 + f.GridDX
	x2 := minimapX2 + f.GridDX
	y1 := minimapY1 + h.shift*8 + f.GridDY
	y2 := minimapY2 + h.shift*8 + f.GridDY

	minimap := f.Extract(x1, y1, x2-x1, y2-y1)
	if minimap.Empty() {
		return 0
	}

	gray := minimap.GrayMean()
	maxBright := 0.0
	for _, v := range gray {
		if v > maxBright {
			maxBright = v
		}
	}
	if maxBright < 60 {
		return 0
	}
	threshold := maxBright * 0.7
	if threshold < 50 {
		threshold = 50
	}

	mask := make([]bool, len(gray))
	any := false
	for i, v := range gray {
		if v > threshold {
			mask[i] = true
			any = true
		}
	}
	if !any {
		return 0
	}

	// Largest connected component filters scattered noise; the player dot is
	// a tight cluster.
	comps := pix.ConnectedComponents(mask, minimap.W, minimap.H)
	if len(comps) == 0 {
		return 0
	}
	best := comps[0]

	mapW := float64(x2 - x1)
	mapH := float64(y2 - y1)
	col := int(best.CX / mapW * float64(gridCols))
	row := int(best.CY / mapH * float64(minimapRow))
	col = clampInt(col, 0, gridCols-1)
	row = clampInt(row, 0, minimapRow-1)
	return row*gridCols + col
}

// Counter helpers.

// readCounterAtY reads grid-aligned digit columns at a landmark's measured
// y. The landmark y is used directly; snapping to the tile grid caused 1px
// misalignment on streams whose landmark doesn't fall on a tile boundary,
// and the columns stay in absolute NES tile space (no grid_dx).
func (h *HudReader) readCounterAtY(f *nes.Frame, digits *DigitReader, lmY int, cols []int, minScore float64) int {
	value := 0
	got := false
	for _, col := range cols {
		tile := f.Extract(col*8, lmY, 8, 8)
		if meanOfMax(tile) < 10 {
			continue
		}
		d, score := digits.ReadDigit(tile)
		if d >= 0 && score >= minScore {
			value = value*10 + d
			got = true
		}
	}
	if !got {
		return 0
	}
	return value
}

// readCounterTiles reads a multi-digit counter from tile positions. dyAdj
// offsets extraction by that many NES pixels below the global grid offset.
// minScore filters weak matches from adjacent HUD icons (the rupee "×" icon
// weakly matches "2" at ~0.4; real digits score 0.7-1.0).
func (h *HudReader) readCounterTiles(f *nes.Frame, digits *DigitReader, cols []int, row, dyAdj int, minScore float64) int {
	value := 0
	got := false
	for _, col := range cols {
		var tile *pix.Image
		if dyAdj != 0 {
			tile = f.Extract(col*8+f.GridDX, row*8+f.GridDY+dyAdj, 8, 8)
		} else {
			tile = f.Tile(col, row)
		}
		if tile.Mean() < 10 {
			continue
		}
		d, score := digits.ReadDigit(tile)
		if d >= 0 && score >= minScore {
			value = value*10 + d
			got = true
		}
	}
	if !got {
		return 0
	}
	return value
}

func slideLevelDigit(strip *pix.Image, digits *DigitReader) int {
	gray := match.PlaneFromBytes(strip.GrayMax(), strip.W, strip.H)
	bestScore := 0.3
	bestDigit := 0
	for d := 1; d <= 9; d++ {
		tmpl, ok := digits.TemplateGray(d)
		if !ok {
			continue
		}
		s, _, _ := match.Best(gray, tmpl)
		if s > bestScore {
			bestScore = s
			bestDigit = d
		}
	}
	return bestDigit
}

// Pixel classifiers.

// redRatio counts red-dominant pixels (R > 100, R > 1.5G, R > 1.5B).
func redRatio(tile *pix.Image) float64 {
	return tile.RatioWhere(func(b, g, r uint8) bool {
		return r > 100 && float64(r) > float64(g)*1.5 && float64(r) > float64(b)*1.5
	})
}

// satRatio is the looser warm-red variant (1.3× ratio) used on landmark
// hearts: it passes custom warm-pink heart fills (R/G ≈ 1.34-1.36) while
// still rejecting empty container outlines (R/G ≈ 1.24-1.28).
func satRatio(tile *pix.Image) float64 {
	return tile.RatioWhere(func(b, g, r uint8) bool {
		return r > 100 && float64(r) > float64(g)*1.3 && float64(r) > float64(b)*1.3
	})
}

// hasHeartOutline: empty containers are white/grey outlines; 40 avoids the
// 30-40 brightness band of resize artifacts.
func hasHeartOutline(tile *pix.Image) bool {
	return tile.Mean() > 40 && redRatio(tile) < 0.1
}

func whiteTextRatio(region *pix.Image) float64 {
	// White per HSV: V > 180 and S < 40 (scaled to byte math: max channel
	// above 180 with a small max-min spread).
	return region.RatioWhere(func(b, g, r uint8) bool {
		mx := maxU8(b, g, r)
		mn := minU8(b, g, r)
		if mx <= 180 || mx == 0 {
			return false
		}
		sat := int(255 * (int(mx) - int(mn)) / int(mx))
		return sat < 40
	})
}

func meanOfMax(tile *pix.Image) float64 {
	g := tile.GrayMax()
	if len(g) == 0 {
		return 0
	}
	sum := 0
	for _, v := range g {
		sum += int(v)
	}
	return float64(sum) / float64(len(g))
}

func maxU8(vs ...uint8) uint8 {
	m := vs[0]
	for _, v := range vs[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

func minU8(vs ...uint8) uint8 {
	m := vs[0]
	for _, v := range vs[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
