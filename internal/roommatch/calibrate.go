package roommatch

import (
	"os"
	"path/filepath"

	"github.com/ttptv/vision/internal/detector"
	"github.com/ttptv/vision/internal/nes"
	"github.com/ttptv/vision/internal/report"
)

// Calibration is the outcome of a post-hoc position refinement pass.
type Calibration struct {
	SnapshotsChecked int `json:"snapshots_checked"`
	SnapshotsMatched int `json:"snapshots_matched"`
	OffsetRows       int `json:"offset_rows"`
	OffsetCols       int `json:"offset_cols"`
	Corrected        int `json:"corrected"`
}

// offsetVote tallies per-snapshot (row, col) disagreements.
type offsetVote struct{ rows, cols int }

// CalibratePositions re-reads overworld snapshots, votes on a systematic
// minimap offset, and applies the majority correction to the report's
// snapshot index in place. Only overworld snapshots participate and only
// overworld positions are corrected; dungeon snapshots keep their stored
// positions.
func CalibratePositions(rep *report.LearnReport, snapshotsDir string,
	m *Matcher, gridDX, gridDY int) Calibration {
	cal := Calibration{}
	if m == nil || !m.HasTiles() {
		return cal
	}

	votes := map[offsetVote]int{}
	for _, snap := range rep.Snapshots {
		if snap.ScreenType != "overworld" {
			continue
		}
		path := filepath.Join(snapshotsDir, snap.File)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		frame, err := detector.LoadTemplateImage(path)
		if err != nil {
			continue
		}
		if frame.W != nes.Width || frame.H != nes.Height {
			frame = frame.ResizeNearest(nes.Width, nes.Height)
		}
		cal.SnapshotsChecked++

		// Minimap-first: re-estimate the dot, then image-match around it.
		// This avoids false matches when the stored live-frame position was
		// already wrong.
		estimate := ReadMinimapFromFrame(frame, false, gridDX, gridDY)
		if estimate == 0 && snap.MapPosition > 0 {
			estimate = snap.MapPosition
		}
		matched, _, ok := m.MatchRoom(frame, estimate)
		if !ok {
			continue
		}
		cal.SnapshotsMatched++

		if snap.MapPosition > 0 && matched != snap.MapPosition {
			sr, sc := nes.PositionToRC(snap.MapPosition, nes.OverworldCols)
			mr, mc := nes.PositionToRC(matched, nes.OverworldCols)
			votes[offsetVote{rows: mr - sr, cols: mc - sc}]++
		} else if snap.MapPosition > 0 {
			votes[offsetVote{}]++
		}
	}

	// Majority offset wins; a zero-offset majority means no correction.
	var winner offsetVote
	winnerCount := 0
	for vote, count := range votes {
		if count > winnerCount {
			winner, winnerCount = vote, count
		}
	}
	cal.OffsetRows = winner.rows
	cal.OffsetCols = winner.cols
	if winnerCount == 0 || (winner.rows == 0 && winner.cols == 0) {
		return cal
	}

	for i := range rep.Snapshots {
		snap := &rep.Snapshots[i]
		if snap.ScreenType != "overworld" || snap.MapPosition <= 0 {
			continue
		}
		row, col := nes.PositionToRC(snap.MapPosition, nes.OverworldCols)
		row += winner.rows
		col += winner.cols
		if row < 0 || row >= nes.OverworldRows || col < 0 || col >= nes.OverworldCols {
			continue
		}
		snap.MapPosition = row*nes.OverworldCols + col
		cal.Corrected++
	}
	return cal
}
