// Package nes holds the NES-space geometry shared by the detectors: the
// Frame wrapper mapping NES pixel coordinates (256×240) onto a
// native-resolution crop, and the Zelda 1 room-grid helpers.
package nes

import (
	"math"

	"github.com/ttptv/vision/internal/pix"
)

// Canonical NES output geometry.
const (
	Width     = 256
	Height    = 240
	TileSize  = 8
	HUDBottom = 64 // game area begins at NES row 64

	GameAreaH = Height - HUDBottom // 176
)

// Frame wraps one native-resolution crop of the emulator region together
// with the linear mapping from NES pixel space to the crop's own pixels.
// One Frame is built per input frame and treated as immutable, except that
// the auto-calibrator may adjust the grid offset before detection begins.
type Frame struct {
	Crop   *pix.Image
	ScaleX float64 // crop width / 256
	ScaleY float64 // crop height / 240
	GridDX int     // tile-grid alignment offset, 0-7
	GridDY int
}

// NewFrame wraps a native crop. Scales derive from the crop dimensions.
func NewFrame(crop *pix.Image, gridDX, gridDY int) *Frame {
	return &Frame{
		Crop:   crop,
		ScaleX: float64(crop.W) / float64(Width),
		ScaleY: float64(crop.H) / float64(Height),
		GridDX: gridDX,
		GridDY: gridDY,
	}
}

// Extract returns a (w, h)-sized tile at NES coordinates (x, y): the
// corresponding native region is cut out (black-padded at the edges) and
// resized back with nearest-neighbor interpolation.
func (f *Frame) Extract(nesX, nesY, w, h int) *pix.Image {
	sx1 := int(math.Round(float64(nesX) * f.ScaleX))
	sy1 := int(math.Round(float64(nesY) * f.ScaleY))
	sx2 := int(math.Round(float64(nesX)*f.ScaleX + float64(w)*f.ScaleX))
	sy2 := int(math.Round(float64(nesY)*f.ScaleY + float64(h)*f.ScaleY))
	if sx2 <= sx1 || sy2 <= sy1 {
		return pix.New(w, h)
	}
	region := f.Crop.Sub(sx1, sy1, sx2-sx1, sy2-sy1)
	return region.ResizeNearest(w, h)
}

// Tile returns the grid-aligned 8×8 tile at tile coordinates (col, row),
// applying the grid offset.
func (f *Frame) Tile(col, row int) *pix.Image {
	return f.Extract(col*TileSize+f.GridDX, row*TileSize+f.GridDY, TileSize, TileSize)
}

// Region returns a native-resolution cut of the NES rectangle, without any
// resize. Use where more pixels mean better accuracy: brightness checks,
// color analysis, minimap scanning.
func (f *Frame) Region(nesX, nesY, nesW, nesH int) *pix.Image {
	sx1 := clamp(int(math.Round(float64(nesX)*f.ScaleX)), 0, f.Crop.W)
	sy1 := clamp(int(math.Round(float64(nesY)*f.ScaleY)), 0, f.Crop.H)
	sx2 := clamp(int(math.Round(float64(nesX+nesW)*f.ScaleX)), 0, f.Crop.W)
	sy2 := clamp(int(math.Round(float64(nesY+nesH)*f.ScaleY)), 0, f.Crop.H)
	if sx2 <= sx1 || sy2 <= sy1 {
		return pix.New(maxi(1, int(math.Round(float64(nesW)*f.ScaleX))),
			maxi(1, int(math.Round(float64(nesH)*f.ScaleY))))
	}
	return f.Crop.Sub(sx1, sy1, sx2-sx1, sy2-sy1)
}

// GameArea returns the below-HUD game area at native resolution.
func (f *Frame) GameArea() *pix.Image {
	hudH := int(math.Round(float64(HUDBottom) * f.ScaleY))
	return f.Crop.Sub(0, hudH, f.Crop.W, f.Crop.H-hudH)
}

// GameAreaCanonical returns the game area resized to 256×176.
func (f *Frame) GameAreaCanonical() *pix.Image {
	return f.GameArea().ResizeNearest(Width, GameAreaH)
}

// ScaleCoordX maps a NES x distance to native pixels.
func (f *Frame) ScaleCoordX(v float64) int { return int(math.Round(v * f.ScaleX)) }

// ScaleCoordY maps a NES y distance to native pixels.
func (f *Frame) ScaleCoordY(v float64) int { return int(math.Round(v * f.ScaleY)) }

// ToCanonical resizes the crop to the canonical 256×240 frame.
func (f *Frame) ToCanonical() *pix.Image {
	return f.Crop.ResizeNearest(Width, Height)
}

// ExtractCrop cuts the NES game rectangle out of a full stream frame,
// padding with black where the rectangle extends past the frame (common
// when a gameplay-only crop is widened upward to include the HUD).
func ExtractCrop(stream *pix.Image, x, y, w, h int) *pix.Image {
	return stream.Sub(x, y, w, h)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func maxi(a, b int) int {
	if a > b {
		return a
	}
	return b
}
