// Package detector reads Zelda 1 game state out of NES frames: HUD counters
// and hearts, item sprites, subscreen inventory, and the screen classifier,
// plus the orchestrator that drives them per frame.
package detector

import (
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ftrvxmtrx/tga"
	"golang.org/x/crypto/blake2b"

	"github.com/ttptv/vision/internal/pix"
)

// templateExtensions is the template search order. Sets ripped from real
// hardware captures come as TGA; most sprite packs are PNG.
var templateExtensions = []string{".tga", ".jpg", ".png"}

// LoadTemplateImage decodes one template file into a BGR image.
func LoadTemplateImage(path string) (*pix.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open template %s: %w", path, err)
	}
	defer f.Close()

	// Decode by extension: the tga decoder registers an empty magic string,
	// so format sniffing would hand every file to it.
	var src image.Image
	switch strings.ToLower(filepath.Ext(path)) {
	case ".tga":
		src, err = tga.Decode(f)
	case ".png":
		src, err = png.Decode(f)
	case ".jpg", ".jpeg":
		src, err = jpeg.Decode(f)
	default:
		src, _, err = image.Decode(f)
	}
	if err != nil {
		return nil, fmt.Errorf("decode template %s: %w", path, err)
	}

	b := src.Bounds()
	out := pix.New(b.Dx(), b.Dy())
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			r, g, bl, _ := src.At(b.Min.X+x, b.Min.Y+y).RGBA()
			out.SetBGR(x, y, uint8(bl>>8), uint8(g>>8), uint8(r>>8))
		}
	}
	return out, nil
}

// LoadTemplateDir loads every template image in a directory, keyed by the
// file's base name. Files with a prefix filter other than "" must start
// with that prefix. Missing directories yield an empty map; detectors run
// degraded rather than failing.
func LoadTemplateDir(dir, prefix string) (map[string]*pix.Image, error) {
	out := make(map[string]*pix.Image)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return out, nil
		}
		return nil, fmt.Errorf("read template dir %s: %w", dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		ext := strings.ToLower(filepath.Ext(name))
		if !isTemplateExt(ext) {
			continue
		}
		base := strings.TrimSuffix(name, filepath.Ext(name))
		if prefix != "" && !strings.HasPrefix(base, prefix) {
			continue
		}
		img, err := LoadTemplateImage(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		out[base] = img
	}
	return out, nil
}

func isTemplateExt(ext string) bool {
	for _, e := range templateExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// FingerprintDir hashes the file names and sizes of a template directory.
// The fingerprint is stored in the first-frame diagnostics so stale
// calibration against a changed template set is detectable.
func FingerprintDir(dir string) string {
	h, _ := blake2b.New256(nil)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	for _, name := range names {
		info, err := os.Stat(filepath.Join(dir, name))
		if err != nil {
			continue
		}
		fmt.Fprintf(h, "%s:%d\n", name, info.Size())
	}
	return fmt.Sprintf("%x", h.Sum(nil)[:8])
}
