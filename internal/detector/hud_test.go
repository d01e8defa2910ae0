package detector

import (
	"testing"

	"github.com/ttptv/vision/internal/nes"
	"github.com/ttptv/vision/internal/pix"
	"github.com/ttptv/vision/internal/profile"
)

// paintFullHeart paints a slot entirely warm red.
func paintFullHeart(img *pix.Image, x, y int) {
	fillRect(img, x, y, 8, 8, 36, 36, 200)
}

// paintHalfHeart paints two rows red (ratio 0.25, inside the half band).
func paintHalfHeart(img *pix.Image, x, y int) {
	fillRect(img, x, y, 8, 2, 36, 36, 200)
}

// paintEmptyHeart paints a bright gray container outline.
func paintEmptyHeart(img *pix.Image, x, y int) {
	fillRect(img, x, y, 8, 8, 100, 100, 100)
}

func TestIsHUDPresent(t *testing.T) {
	h := NewHudReader(5, nil)
	f := newCanonicalFrame()
	if h.IsHUDPresent(f) {
		t.Error("expected no HUD on a black frame")
	}
	paintLifeText(f, 5)
	if !h.IsHUDPresent(f) {
		t.Error("expected HUD with LIFE text painted")
	}
}

func TestReadHeartsGrid(t *testing.T) {
	h := NewHudReader(5, nil)
	f := newCanonicalFrame()

	// Top heart row at NES y 32: two full, one half, one empty container.
	paintFullHeart(f.Crop, 176, 32)
	paintFullHeart(f.Crop, 184, 32)
	paintHalfHeart(f.Crop, 192, 32)
	paintEmptyHeart(f.Crop, 200, 32)

	current, maxHearts, hasHalf := h.ReadHearts(f)
	if current != 2 {
		t.Errorf("expected 2 current hearts, got %d", current)
	}
	if maxHearts != 4 {
		t.Errorf("expected 4 containers, got %d", maxHearts)
	}
	if !hasHalf {
		t.Error("expected a half heart")
	}
}

func TestReadHeartsStopsAtGap(t *testing.T) {
	h := NewHudReader(5, nil)
	f := newCanonicalFrame()
	paintFullHeart(f.Crop, 176, 32)
	// A gap, then a stray red tile further right: never reached.
	paintFullHeart(f.Crop, 200, 32)

	current, maxHearts, _ := h.ReadHearts(f)
	if current != 1 || maxHearts != 1 {
		t.Errorf("expected scan to stop at the gap, got %d/%d", current, maxHearts)
	}
}

func TestReadHeartsLandmarkRowDedup(t *testing.T) {
	lm := []profile.Landmark{{Label: "Hearts", X: 176, Y: 32, W: 64, H: 16}}
	h := NewHudReader(5, lm)
	f := newCanonicalFrame()

	// Distorted stream: the top row shows one heart, the bottom row three;
	// bottom is authoritative.
	paintFullHeart(f.Crop, 176, 32)
	paintFullHeart(f.Crop, 176, 40)
	paintFullHeart(f.Crop, 184, 40)
	paintFullHeart(f.Crop, 192, 40)

	current, maxHearts, _ := h.ReadHearts(f)
	if current != 3 || maxHearts != 3 {
		t.Errorf("expected dedup to 3/3, got %d/%d", current, maxHearts)
	}
}

func TestReadHeartsLandmarkDedupKeepsExtraEmpties(t *testing.T) {
	lm := []profile.Landmark{{Label: "Hearts", X: 176, Y: 32, W: 64, H: 16}}
	h := NewHudReader(5, lm)
	f := newCanonicalFrame()

	// Top row: one full + one empty container; bottom row: three full.
	paintFullHeart(f.Crop, 176, 32)
	paintEmptyHeart(f.Crop, 184, 32)
	paintFullHeart(f.Crop, 176, 40)
	paintFullHeart(f.Crop, 184, 40)
	paintFullHeart(f.Crop, 192, 40)

	current, maxHearts, _ := h.ReadHearts(f)
	if current != 3 {
		t.Errorf("expected bottom-row current 3, got %d", current)
	}
	if maxHearts != 4 {
		t.Errorf("expected bottom max plus the extra empty = 4, got %d", maxHearts)
	}
}

func TestReadKeysMasterKey(t *testing.T) {
	digits, err := NewDigitReader(writeDigitTemplates(t))
	if err != nil {
		t.Fatal(err)
	}
	h := NewHudReader(5, nil)
	f := newCanonicalFrame()

	// A bright flat tile at the key digit position: no digit correlates
	// (zero variance scores 0), so the "A" rule fires.
	fillRect(f.Crop, 13*8, 4*8, 8, 8, 230, 230, 230)

	keys, master := h.ReadKeys(f, digits)
	if !master {
		t.Error("expected master key detection")
	}
	if keys != 0 {
		t.Errorf("expected 0 keys with master key, got %d", keys)
	}
}

func TestReadKeysDigits(t *testing.T) {
	digits, err := NewDigitReader(writeDigitTemplates(t))
	if err != nil {
		t.Fatal(err)
	}
	h := NewHudReader(5, nil)
	f := newCanonicalFrame()
	paintImage(f.Crop, digitPattern(3), 13*8, 4*8)
	paintImage(f.Crop, digitPattern(7), 14*8, 4*8)

	keys, master := h.ReadKeys(f, digits)
	if master {
		t.Error("expected no master key for clean digits")
	}
	if keys != 37 {
		t.Errorf("expected 37 keys, got %d", keys)
	}
}

func TestReadRupeesCapsAt255(t *testing.T) {
	digits, err := NewDigitReader(writeDigitTemplates(t))
	if err != nil {
		t.Fatal(err)
	}
	h := NewHudReader(5, nil)
	f := newCanonicalFrame()
	paintImage(f.Crop, digitPattern(2), 12*8, 2*8)
	paintImage(f.Crop, digitPattern(9), 13*8, 2*8)
	paintImage(f.Crop, digitPattern(9), 14*8, 2*8)

	if got := h.ReadRupees(f, digits); got != 99 {
		t.Errorf("expected 299 capped by dropping the leading digit to 99, got %d", got)
	}
}

func TestReadSwordLevels(t *testing.T) {
	tests := []struct {
		name     string
		b, g, r  uint8
		expected int
	}{
		{"none", 0, 0, 0, 0},
		{"wood", 20, 60, 100, 1},
		{"white", 200, 200, 200, 2},
		{"magical", 200, 120, 60, 3},
	}
	for _, tc := range tests {
		h := NewHudReader(5, nil)
		f := newCanonicalFrame()
		fillRect(f.Crop, 19*8, 3*8, 8, 8, tc.b, tc.g, tc.r)
		if got := h.ReadSword(f); got != tc.expected {
			t.Errorf("%s: expected sword %d, got %d", tc.name, tc.expected, got)
		}
	}
}

func TestReadLifeRoar(t *testing.T) {
	h := NewHudReader(5, nil)

	// LIFE: narrow "I" at col 23; bright pixels concentrated in the
	// central columns.
	f := newCanonicalFrame()
	paintLifeText(f, 5)
	fillRect(f.Crop, 23*8+3, 5*8, 2, 8, 36, 36, 200)
	if h.ReadLifeRoar(f) {
		t.Error("expected LIFE (narrow second character), got ROAR")
	}

	// ROAR: wide "O"; bright pixels spread across the tile.
	f = newCanonicalFrame()
	paintLifeText(f, 5)
	fillRect(f.Crop, 23*8, 5*8, 8, 8, 36, 36, 200)
	fillRect(f.Crop, 23*8+2, 5*8+2, 4, 4, 0, 0, 0) // hollow center
	if !h.ReadLifeRoar(f) {
		t.Error("expected ROAR (wide second character), got LIFE")
	}
}

func TestReadMinimapPosition(t *testing.T) {
	h := NewHudReader(5, nil)
	f := newCanonicalFrame()

	// A bright dot in minimap cell (row 2, col 5) on the overworld grid:
	// cells are 4px wide, 5px tall over x 16-80, y 12-52.
	fillRect(f.Crop, 16+5*4+1, 12+2*5+1, 2, 2, 230, 230, 230)

	pos := h.ReadMinimapPosition(f, false)
	if pos != 2*nes.OverworldCols+5 {
		t.Errorf("expected position %d, got %d", 2*nes.OverworldCols+5, pos)
	}
}

func TestReadMinimapPositionDungeonGrid(t *testing.T) {
	h := NewHudReader(5, nil)
	f := newCanonicalFrame()
	// Dot in dungeon cell (row 4, col 3): cells are 8px wide.
	fillRect(f.Crop, 16+3*8+2, 12+4*5+1, 2, 2, 230, 230, 230)
	pos := h.ReadMinimapPosition(f, true)
	if pos != 4*nes.DungeonCols+3 {
		t.Errorf("expected position %d, got %d", 4*nes.DungeonCols+3, pos)
	}
}

func TestReadMinimapPositionEmpty(t *testing.T) {
	h := NewHudReader(5, nil)
	if pos := h.ReadMinimapPosition(newCanonicalFrame(), false); pos != 0 {
		t.Errorf("expected 0 on an empty minimap, got %d", pos)
	}
}

func TestReadDungeonLevel(t *testing.T) {
	digits, err := NewDigitReader(writeDigitTemplates(t))
	if err != nil {
		t.Fatal(err)
	}
	h := NewHudReader(5, nil)
	f := newCanonicalFrame()

	// Bright white LEVEL text across cols 2-7, row 1, and the level digit
	// at col 8.
	fillRect(f.Crop, 2*8, 1*8, 6*8, 8, 250, 250, 250)
	paintImage(f.Crop, digitPattern(5), 8*8, 1*8)

	if got := h.ReadDungeonLevel(f, digits); got != 5 {
		t.Errorf("expected level 5, got %d", got)
	}
}

func TestReadDungeonLevelRejectsDimMinimap(t *testing.T) {
	digits, err := NewDigitReader(writeDigitTemplates(t))
	if err != nil {
		t.Fatal(err)
	}
	h := NewHudReader(5, nil)
	f := newCanonicalFrame()
	// Medium gray minimap fill passes brightness but fails the truly-white
	// ratio.
	fillRect(f.Crop, 2*8, 1*8, 6*8, 8, 120, 120, 120)
	if got := h.ReadDungeonLevel(f, digits); got != 0 {
		t.Errorf("expected 0 for minimap-gray fill, got %d", got)
	}
}

func TestReadBItemColorFallback(t *testing.T) {
	h := NewHudReader(5, nil)
	f := newCanonicalFrame()
	// Red-dominant B slot without templates falls back to "candle".
	fillRect(f.Crop, 128, 16, 10, 24, 20, 20, 160)
	if got := h.ReadBItem(f, nil); got != "candle" {
		t.Errorf("expected candle from the color heuristic, got %q", got)
	}
}

func TestReadBItemEmpty(t *testing.T) {
	h := NewHudReader(5, nil)
	if got := h.ReadBItem(newCanonicalFrame(), nil); got != "" {
		t.Errorf("expected empty B slot, got %q", got)
	}
}
