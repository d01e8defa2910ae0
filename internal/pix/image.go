// Package pix provides the BGR image type shared by all vision detectors.
//
// Stream frames arrive as packed 24-bit BGR (the ffmpeg bgr24 pixel format),
// so the in-memory layout keeps that channel order and every detector indexes
// channels as B=0, G=1, R=2. The type also satisfies image.Image / draw.Image
// so it can feed golang.org/x/image/draw scalers and the stdlib codecs.
package pix

import (
	"image"
	"image/color"

	xdraw "golang.org/x/image/draw"
)

// Image is a packed BGR24 image. Pix holds H*W*3 bytes, row-major,
// channel order B, G, R.
type Image struct {
	W, H int
	Pix  []uint8
}

// New returns a zeroed (black) image of the given size.
func New(w, h int) *Image {
	if w < 0 {
		w = 0
	}
	if h < 0 {
		h = 0
	}
	return &Image{W: w, H: h, Pix: make([]uint8, w*h*3)}
}

// FromRaw wraps a raw bgr24 byte slice without copying.
// The slice must hold exactly w*h*3 bytes.
func FromRaw(raw []uint8, w, h int) *Image {
	return &Image{W: w, H: h, Pix: raw}
}

// Clone returns a deep copy.
func (m *Image) Clone() *Image {
	out := &Image{W: m.W, H: m.H, Pix: make([]uint8, len(m.Pix))}
	copy(out.Pix, m.Pix)
	return out
}

// Empty reports whether the image has no pixels.
func (m *Image) Empty() bool { return m.W <= 0 || m.H <= 0 }

// BGR returns the channel values at (x, y). Out-of-bounds reads return black.
func (m *Image) BGR(x, y int) (b, g, r uint8) {
	if x < 0 || y < 0 || x >= m.W || y >= m.H {
		return 0, 0, 0
	}
	i := (y*m.W + x) * 3
	return m.Pix[i], m.Pix[i+1], m.Pix[i+2]
}

// SetBGR writes the channel values at (x, y). Out-of-bounds writes are ignored.
func (m *Image) SetBGR(x, y int, b, g, r uint8) {
	if x < 0 || y < 0 || x >= m.W || y >= m.H {
		return
	}
	i := (y*m.W + x) * 3
	m.Pix[i], m.Pix[i+1], m.Pix[i+2] = b, g, r
}

// ColorModel implements image.Image.
func (m *Image) ColorModel() color.Model { return color.NRGBAModel }

// Bounds implements image.Image.
func (m *Image) Bounds() image.Rectangle { return image.Rect(0, 0, m.W, m.H) }

// At implements image.Image.
func (m *Image) At(x, y int) color.Color {
	b, g, r := m.BGR(x, y)
	return color.NRGBA{R: r, G: g, B: b, A: 255}
}

// Set implements draw.Image.
func (m *Image) Set(x, y int, c color.Color) {
	r, g, b, _ := c.RGBA()
	m.SetBGR(x, y, uint8(b>>8), uint8(g>>8), uint8(r>>8))
}

// Sub returns a copy of the rectangle [x, x+w) × [y, y+h). Regions outside
// the source are padded with black, matching the original frame extractor's
// behavior for negative crop coordinates.
func (m *Image) Sub(x, y, w, h int) *Image {
	out := New(w, h)
	sx1, sy1 := max(0, x), max(0, y)
	sx2, sy2 := min(m.W, x+w), min(m.H, y+h)
	if sx2 <= sx1 || sy2 <= sy1 {
		return out
	}
	dx, dy := sx1-x, sy1-y
	rowBytes := (sx2 - sx1) * 3
	for row := 0; row < sy2-sy1; row++ {
		src := ((sy1+row)*m.W + sx1) * 3
		dst := ((dy+row)*w + dx) * 3
		copy(out.Pix[dst:dst+rowBytes], m.Pix[src:src+rowBytes])
	}
	return out
}

// ResizeNearest returns the image scaled to (w, h) with nearest-neighbor
// interpolation, the same resampling the reference pipeline uses everywhere
// (preserves hard NES pixel edges for template matching).
func (m *Image) ResizeNearest(w, h int) *Image {
	out := New(w, h)
	if m.Empty() || w <= 0 || h <= 0 {
		return out
	}
	if w == m.W && h == m.H {
		copy(out.Pix, m.Pix)
		return out
	}
	xdraw.NearestNeighbor.Scale(out, out.Bounds(), m, m.Bounds(), xdraw.Src, nil)
	return out
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
