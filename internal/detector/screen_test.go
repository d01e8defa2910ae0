package detector

import (
	"testing"

	"github.com/ttptv/vision/internal/nes"
)

func TestClassifyTransition(t *testing.T) {
	c := NewScreenClassifier(5)
	f := newCanonicalFrame()
	if got := c.Classify(f); got != ScreenTransition {
		t.Errorf("expected transition for a black frame, got %s", got)
	}
}

func TestClassifyGameplayByBrightness(t *testing.T) {
	tests := []struct {
		name     string
		level    uint8
		expected string
	}{
		{"dungeon", 20, ScreenDungeon},
		{"cave", 45, ScreenCave},
		{"overworld", 120, ScreenOverworld},
	}
	for _, tc := range tests {
		c := NewScreenClassifier(5)
		f := newCanonicalFrame()
		paintLifeText(f, 5)
		fillGameArea(f, tc.level)
		if got := c.Classify(f); got != tc.expected {
			t.Errorf("%s: expected %s at game brightness %d, got %s",
				tc.name, tc.expected, tc.level, got)
		}
	}
}

func TestClassifyRespectsLifeRow(t *testing.T) {
	c := NewScreenClassifier(4)
	f := newCanonicalFrame()
	paintLifeText(f, 4)
	fillGameArea(f, 120)
	if got := c.Classify(f); got != ScreenOverworld {
		t.Errorf("expected overworld with life row 4, got %s", got)
	}
}

func TestClassifyDeathFlash(t *testing.T) {
	c := NewScreenClassifier(5)
	f := newCanonicalFrame()
	fillGameArea(f, 0)
	// Red-flooded game area, no LIFE text.
	fillRect(f.Crop, 0, nes.HUDBottom, nes.Width, nes.Height-nes.HUDBottom, 0, 0, 150)
	if got := c.Classify(f); got != ScreenDeath {
		t.Errorf("expected death for a red flash, got %s", got)
	}
}

func TestClassifyTitle(t *testing.T) {
	c := NewScreenClassifier(5)
	f := newCanonicalFrame()
	// Dark top band, moderately bright body with some variance.
	for y := 30; y < nes.Height; y++ {
		for x := 0; x < nes.Width; x++ {
			f.Crop.SetBGR(x, y, 100, uint8(90+(x%20)), 100)
		}
	}
	if got := c.Classify(f); got != ScreenTitle {
		t.Errorf("expected title, got %s", got)
	}
}

func TestClassifyShiftedHUDSubscreen(t *testing.T) {
	c := NewScreenClassifier(5)
	f := newCanonicalFrame()
	// LIFE text shifted into the game area (subscreen scroll): a tall red
	// band at the LIFE column, a minimap-gray rectangle just above it, and
	// the still-visible gameplay strip at the bottom keeping the frame out
	// of the transition band.
	fillRect(f.Crop, 22*8, 160, 8, 12, 36, 36, 200)
	fillRect(f.Crop, 16, 160-24, 64, 40, 90, 90, 90)
	fillRect(f.Crop, 0, 190, nes.Width, 50, 60, 60, 60)
	if got := c.Classify(f); got != ScreenSubscreen {
		t.Errorf("expected subscreen for shifted HUD, got %s", got)
	}
}

func TestClassifyDarkGameSubscreen(t *testing.T) {
	c := NewScreenClassifier(5)
	f := newCanonicalFrame()
	// Bright HUD area but dark game area and no other signature.
	fillRect(f.Crop, 0, 0, nes.Width, nes.HUDBottom, 120, 120, 120)
	if got := c.Classify(f); got != ScreenSubscreen {
		t.Errorf("expected subscreen for dark game area, got %s", got)
	}
}

func TestIsGameplay(t *testing.T) {
	for _, s := range []string{ScreenOverworld, ScreenDungeon, ScreenCave} {
		if !IsGameplay(s) {
			t.Errorf("expected %s to be gameplay", s)
		}
	}
	for _, s := range []string{ScreenSubscreen, ScreenDeath, ScreenTitle,
		ScreenTransition, ScreenUnknown} {
		if IsGameplay(s) {
			t.Errorf("expected %s to not be gameplay", s)
		}
	}
}
