package detector

import (
	"sort"

	"github.com/ttptv/vision/internal/match"
	"github.com/ttptv/vision/internal/nes"
	"github.com/ttptv/vision/internal/pix"
)

// Items appear on the playable interior, not in the outer wall/door tiles.
const floorWallMargin = 16

// Items are 8×16, so detections within this window are duplicates.
const (
	floorNMSXDist = 8
	floorNMSYDist = 16
)

// Below this mean absolute difference the game area is unchanged and the
// previous detections are returned without scanning; the dominant
// performance optimization (a full scan walks every template over the whole
// game area).
const floorFrameDiffThreshold = 0.5

// FloorItem is one item detected on a dungeon/overworld floor.
type FloorItem struct {
	Name  string  `json:"name"`
	X     int     `json:"x"` // game-area coordinates
	Y     int     `json:"y"`
	Score float64 `json:"score"`
}

// FloorItemDetector finds item sprites at arbitrary positions against
// textured backgrounds using full-color sliding template matching. Color
// information discriminates items from wall/door edges that confuse binary
// shape matching.
type FloorItemDetector struct {
	items     *ItemReader
	threshold float64

	templates map[string]*pix.Image // item templates + enemy drops

	prevGameArea   *pix.Image
	prevDetections []FloorItem
}

// NewFloorItemDetector builds a detector over the item reader's templates
// plus any enemy-drop templates (clock, fairy, heart, rupee) in dropsDir.
func NewFloorItemDetector(items *ItemReader, dropsDir string, threshold float64) (*FloorItemDetector, error) {
	d := &FloorItemDetector{
		items:     items,
		threshold: threshold,
		templates: make(map[string]*pix.Image),
	}
	for name, tmpl := range items.Templates() {
		d.templates[name] = tmpl
	}
	if dropsDir != "" {
		drops, err := LoadTemplateDir(dropsDir, "")
		if err != nil {
			return nil, err
		}
		for name, tmpl := range drops {
			d.templates[name] = tmpl
		}
	}
	return d, nil
}

// Detect returns floor items for a frame. Only dungeon and overworld screens
// are scanned; other screens clear the frame-diff guard and return nothing.
func (d *FloorItemDetector) Detect(f *nes.Frame, screenType string) []FloorItem {
	if screenType != ScreenDungeon && screenType != ScreenOverworld {
		d.prevGameArea = nil
		return nil
	}
	gameArea := f.GameAreaCanonical()

	if d.prevGameArea != nil && pix.MeanAbsDiff(d.prevGameArea, gameArea) < floorFrameDiffThreshold {
		d.prevGameArea = gameArea
		return d.prevDetections
	}
	d.prevGameArea = gameArea

	detections := d.Scan(gameArea)
	d.prevDetections = detections
	return detections
}

// Scan runs the full sliding match on a canonical game area, bypassing the
// screen-type check and frame-diff guard. Used directly by one-shot
// analysis and tests.
func (d *FloorItemDetector) Scan(gameArea *pix.Image) []FloorItem {
	var raw []FloorItem
	for name, tmpl := range d.templates {
		if gameArea.H < tmpl.H || gameArea.W < tmpl.W {
			continue
		}
		for _, hit := range match.ColorAllAbove(gameArea, tmpl, d.threshold) {
			if hit.X < floorWallMargin || hit.X+tmpl.W > gameArea.W-floorWallMargin ||
				hit.Y < floorWallMargin || hit.Y+tmpl.H > gameArea.H-floorWallMargin {
				continue
			}
			raw = append(raw, FloorItem{Name: name, X: hit.X, Y: hit.Y, Score: hit.Score})
		}
	}

	kept := floorNMS(raw)

	for i := range kept {
		kept[i].Name = d.disambiguate(kept[i], gameArea)
	}
	return kept
}

func (d *FloorItemDetector) disambiguate(fi FloorItem, gameArea *pix.Image) string {
	twin, ok := shapeTwins[fi.Name]
	if !ok {
		return fi.Name
	}
	tmpl := d.templates[fi.Name]
	tile := gameArea.Sub(fi.X, fi.Y, tmpl.W, tmpl.H)
	return d.items.PickByColor(tile, fi.Name, twin.Partner)
}

// floorNMS keeps the highest-scoring detection per location.
func floorNMS(detections []FloorItem) []FloorItem {
	sort.Slice(detections, func(i, j int) bool {
		return detections[i].Score > detections[j].Score
	})
	var kept []FloorItem
	for _, det := range detections {
		dup := false
		for _, k := range kept {
			if absInt(det.X-k.X) < floorNMSXDist && absInt(det.Y-k.Y) < floorNMSYDist {
				dup = true
				break
			}
		}
		if !dup {
			kept = append(kept, det)
		}
	}
	return kept
}
