package detector

import (
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/ttptv/vision/internal/nes"
	"github.com/ttptv/vision/internal/pix"
)

// newCanonicalFrame returns an all-black 256x240 frame at unit scale.
func newCanonicalFrame() *nes.Frame {
	return nes.NewFrame(pix.New(nes.Width, nes.Height), 0, 0)
}

// fillRect paints a solid BGR rectangle.
func fillRect(img *pix.Image, x, y, w, h int, b, g, r uint8) {
	for yy := y; yy < y+h; yy++ {
		for xx := x; xx < x+w; xx++ {
			img.SetBGR(xx, yy, b, g, r)
		}
	}
}

// fillGameArea paints the below-HUD region a uniform gray level.
func fillGameArea(f *nes.Frame, level uint8) {
	fillRect(f.Crop, 0, nes.HUDBottom, nes.Width, nes.Height-nes.HUDBottom,
		level, level, level)
}

// paintLifeText paints the red "-LIFE-" anchor tile at (col 22, life row).
func paintLifeText(f *nes.Frame, lifeRow int) {
	fillRect(f.Crop, 22*8, lifeRow*8, 8, 8, 36, 36, 200)
}

// writePNG saves a pix.Image as a PNG file, failing the test on error.
func writePNG(t *testing.T, path string, img *pix.Image) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode %s: %v", path, err)
	}
}

// digitPattern builds a distinctive 8x8 white-on-black pattern per digit.
func digitPattern(d int) *pix.Image {
	img := pix.New(8, 8)
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			if (x*3+y*5+d*7)%11 < 4 {
				img.SetBGR(x, y, 255, 255, 255)
			}
		}
	}
	return img
}

// writeDigitTemplates writes 0.png..9.png into a fresh directory and
// returns it.
func writeDigitTemplates(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "digits")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	for d := 0; d < 10; d++ {
		writePNG(t, filepath.Join(dir, itoa(d)+".png"), digitPattern(d))
	}
	return dir
}

// paintImage copies src into dst at (x, y).
func paintImage(dst, src *pix.Image, x, y int) {
	for yy := 0; yy < src.H; yy++ {
		for xx := 0; xx < src.W; xx++ {
			b, g, r := src.BGR(xx, yy)
			dst.SetBGR(x+xx, y+yy, b, g, r)
		}
	}
}

func itoa(d int) string { return string(rune('0' + d)) }
