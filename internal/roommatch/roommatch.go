// Package roommatch detects and corrects systematic minimap position
// offsets after a learn session: each snapshot's minimap is re-read, then
// the game area is compared against overworld room reference tiles in the
// estimated room's neighborhood. A consistent disagreement between stored
// positions and image-matched rooms becomes a correction applied
// retroactively to the report; this refinement never runs per frame.
package roommatch

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ttptv/vision/internal/detector"
	"github.com/ttptv/vision/internal/match"
	"github.com/ttptv/vision/internal/nes"
	"github.com/ttptv/vision/internal/pix"
)

// Comparison dimensions: small enough to smooth out Link and enemies,
// large enough to preserve terrain structure; ≈1.45:1 matches both the NES
// game area (256×176) and the reference room tiles.
const (
	compareW = 64
	compareH = 44
)

// Minimap region in the canonical frame. Y1=12 (not 16): with the typical
// grid offset dy=2 the effective band [14,54] aligned 79% of rooms against
// map tiles, where [18,58] produced a systematic +1 row error.
const (
	minimapY1 = 12
	minimapY2 = 52
	minimapX1 = 16
	minimapX2 = 80
)

// Accept a room-tile match at or above this correlation.
const tileMatchThreshold = 0.60

// ReadMinimapFromFrame re-reads the player dot position from a 256×240
// canonical frame, independent of the full HUD reader, so snapshot images
// can be re-scored offline.
func ReadMinimapFromFrame(frame *pix.Image, isDungeon bool, gridDX, gridDY int) int {
	gridCols := nes.OverworldCols
	if isDungeon {
		gridCols = nes.DungeonCols
	}
	x1, x2 := minimapX1+gridDX, minimapX2+gridDX
	y1, y2 := minimapY1+gridDY, minimapY2+gridDY
	if y1 < 0 || y2 > frame.H || x1 < 0 || x2 > frame.W {
		return 0
	}
	minimap := frame.Sub(x1, y1, x2-x1, y2-y1)
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
	threshold := maxBright * 0.8
	if threshold < 80 {
		return 0
	}
	mask := make([]bool, len(gray))
	for i, v := range gray {
		mask[i] = v > threshold
	}
	comps := pix.ConnectedComponents(mask, minimap.W, minimap.H)
	if len(comps) == 0 {
		return 0
	}
	best := comps[0]

	col := int(best.CX / float64(x2-x1) * float64(gridCols))
	row := int(best.CY / float64(y2-y1) * float64(nes.OverworldRows))
	col = clamp(col, 0, gridCols-1)
	row = clamp(row, 0, nes.OverworldRows-1)
	return row*gridCols + col
}

// Matcher compares snapshot game areas against overworld room tiles.
type Matcher struct {
	rooms map[int]*pix.Image // room index → reference tile at compareW×compareH
}

// NewMatcher loads room reference tiles named <index>.png (or .tga/.jpg)
// from dir. A missing directory yields an empty matcher; MatchRoom then
// always misses.
func NewMatcher(dir string) (*Matcher, error) {
	m := &Matcher{rooms: map[int]*pix.Image{}}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return m, nil
		}
		return nil, fmt.Errorf("read room tiles dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		base := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		idx, err := strconv.Atoi(base)
		if err != nil || idx < 0 || idx >= nes.OverworldCols*nes.OverworldRows {
			continue
		}
		img, err := detector.LoadTemplateImage(filepath.Join(dir, e.Name()))
		if err != nil {
			continue
		}
		m.rooms[idx] = img.ResizeNearest(compareW, compareH)
	}
	return m, nil
}

// HasTiles reports whether any reference tiles loaded.
func (m *Matcher) HasTiles() bool { return len(m.rooms) > 0 }

// MatchRoom compares a canonical frame's game area against the reference
// tiles of the estimated room and its orthogonal neighbors, returning the
// best room index and score. ok is false when nothing clears the threshold.
func (m *Matcher) MatchRoom(frame *pix.Image, estimate int) (room int, score float64, ok bool) {
	if len(m.rooms) == 0 {
		return 0, 0, false
	}
	gameArea := frame.Sub(0, nes.HUDBottom, nes.Width, nes.Height-nes.HUDBottom).
		ResizeNearest(compareW, compareH)
	gaPlane := match.PlaneFromBytes(gameArea.GrayMax(), compareW, compareH)

	bestRoom, bestScore := -1, 0.0
	for _, cand := range neighborhood(estimate) {
		tile, okRoom := m.rooms[cand]
		if !okRoom {
			continue
		}
		tPlane := match.PlaneFromBytes(tile.GrayMax(), compareW, compareH)
		s := match.ScoreAt(gaPlane, tPlane, 0, 0)
		if s > bestScore {
			bestScore = s
			bestRoom = cand
		}
	}
	if bestRoom < 0 || bestScore < tileMatchThreshold {
		return 0, 0, false
	}
	return bestRoom, bestScore, true
}

// neighborhood returns the estimate plus its orthogonal neighbors on the
// overworld grid.
func neighborhood(pos int) []int {
	out := []int{pos}
	row, col := nes.PositionToRC(pos, nes.OverworldCols)
	if col > 0 {
		out = append(out, pos-1)
	}
	if col < nes.OverworldCols-1 {
		out = append(out, pos+1)
	}
	if row > 0 {
		out = append(out, pos-nes.OverworldCols)
	}
	if row < nes.OverworldRows-1 {
		out = append(out, pos+nes.OverworldCols)
	}
	return out
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
