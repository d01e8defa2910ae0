package autocrop

import (
	"testing"

	"github.com/ttptv/vision/internal/nes"
	"github.com/ttptv/vision/internal/pix"
)

// paintRedTile paints an 8x8 NES-red block at tile (col, row) + offset.
func paintRedTile(frame *pix.Image, col, row, dx, dy int) {
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			frame.SetBGR(col*8+dx+x, row*8+dy+y, 36, 36, 200)
		}
	}
}

// lifeFrame builds the standard calibration fixture: black HUD with red
// tiles at cols 22-24 of the life row, bright green game body below.
func lifeFrame(dx, dy, lifeRow int) *pix.Image {
	frame := pix.New(nes.Width, nes.Height)
	for y := 64; y < nes.Height; y++ {
		for x := 0; x < nes.Width; x++ {
			frame.SetBGR(x, y, 30, 180, 30)
		}
	}
	paintRedTile(frame, 22, lifeRow, dx, dy)
	paintRedTile(frame, 23, lifeRow, dx, dy)
	paintRedTile(frame, 24, lifeRow, dx, dy)
	return frame
}

func TestFindGridAlignmentStandardFrame(t *testing.T) {
	frame := lifeFrame(0, 0, 5)
	dx, dy, lifeRow, ok := FindGridAlignment(frame)
	if !ok {
		t.Fatal("expected alignment to be found")
	}
	if dx != 0 || dy != 0 || lifeRow != 5 {
		t.Errorf("expected (0,0,5), got (%d,%d,%d)", dx, dy, lifeRow)
	}
}

func TestFindGridAlignmentShiftedRow(t *testing.T) {
	frame := lifeFrame(2, 3, 4)
	dx, dy, lifeRow, ok := FindGridAlignment(frame)
	if !ok {
		t.Fatal("expected alignment to be found")
	}
	if dx != 2 || dy != 3 || lifeRow != 4 {
		t.Errorf("expected (2,3,4), got (%d,%d,%d)", dx, dy, lifeRow)
	}
}

func TestFindGridAlignmentHeartsConfusionGuard(t *testing.T) {
	// Same frame, but red extends through cols 25-29 like a hearts row.
	// Col 27 being red applies the 0.1x penalty, yet with no better
	// candidate the resolved row is still 5.
	frame := lifeFrame(0, 0, 5)
	for col := 25; col <= 29; col++ {
		paintRedTile(frame, col, 5, 0, 0)
	}
	_, _, lifeRow, ok := FindGridAlignment(frame)
	if !ok {
		t.Fatal("expected alignment to be found")
	}
	if lifeRow != 5 {
		t.Errorf("expected life_row 5 despite hearts penalty, got %d", lifeRow)
	}
}

func TestFindGridAlignmentRejectsBlankFrame(t *testing.T) {
	frame := pix.New(nes.Width, nes.Height)
	if _, _, _, ok := FindGridAlignment(frame); ok {
		t.Error("expected no alignment on a blank frame")
	}
}

func TestScoreCalibrationPrefersLifeFrame(t *testing.T) {
	good := lifeFrame(0, 0, 5)
	blank := pix.New(nes.Width, nes.Height)
	if ScoreCalibration(good, 0, 0) <= ScoreCalibration(blank, 0, 0) {
		t.Error("expected the LIFE frame to outscore a blank frame")
	}
}

func TestMultiAnchorCalibration(t *testing.T) {
	frame := lifeFrame(0, 0, 5)
	// Hearts pattern at rows 3-4 strengthens the anchor.
	for col := 22; col < 26; col++ {
		paintRedTile(frame, col, 3, 0, 0)
	}
	cal, ok := MultiAnchorCalibration(frame)
	if !ok {
		t.Fatal("expected a multi-anchor result")
	}
	if cal.DX != 0 || cal.DY != 0 {
		t.Errorf("expected offset (0,0), got (%d,%d)", cal.DX, cal.DY)
	}
	if cal.HeartsScore <= 0 {
		t.Error("expected a positive hearts score")
	}
}

func TestVerifyHUDAcceptsCanonicalFixture(t *testing.T) {
	frame := lifeFrame(1, 2, 5)
	// Hearts region redness for the soft check.
	for col := 22; col < 27; col++ {
		paintRedTile(frame, col, 4, 0, 0)
	}
	if !VerifyHUD(frame, 0, 0, frame.W, frame.H) {
		t.Error("expected HUD verification to pass on the fixture")
	}
}

func TestVerifyHUDRejectsBrightHUD(t *testing.T) {
	frame := pix.New(nes.Width, nes.Height)
	for i := range frame.Pix {
		frame.Pix[i] = 200
	}
	if VerifyHUD(frame, 0, 0, frame.W, frame.H) {
		t.Error("expected rejection when the HUD strip is bright")
	}
}

func TestIsLikelyGameplay(t *testing.T) {
	if IsLikelyGameplay(pix.New(100, 100)) {
		t.Error("expected black frame rejected")
	}
	frame := lifeFrame(0, 0, 5)
	if !IsLikelyGameplay(frame) {
		t.Error("expected LIFE fixture accepted as gameplay")
	}
}

func TestTryCommonLayouts(t *testing.T) {
	// A 512x480 stream whose game region occupies the whole frame.
	stream := lifeFrame(0, 0, 5).ResizeNearest(512, 480)
	layouts := []Layout{
		{ID: "full", StreamWidth: 512, StreamHeight: 480,
			Crop: LayoutCrop{X: 0, Y: 0, W: 512, H: 480}},
		{ID: "wrong-res", StreamWidth: 1920, StreamHeight: 1080,
			Crop: LayoutCrop{X: 0, Y: 0, W: 512, H: 480}},
	}
	det, ok := TryCommonLayouts([]*pix.Image{stream}, layouts)
	if !ok {
		t.Fatal("expected a layout match")
	}
	if det.Method != "layout:full" {
		t.Errorf("expected layout:full, got %s", det.Method)
	}
	if det.Confidence > 0.7 {
		t.Errorf("expected layout confidence capped at 0.7, got %f", det.Confidence)
	}
}
