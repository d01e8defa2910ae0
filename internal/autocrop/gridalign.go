// Package autocrop locates the NES game rectangle and its tile-grid
// alignment inside an unknown streamer layout. The fallback chain is
// contour detection → LIFE-text calibration → common-layout library, each
// scored against HUD anchors; first success wins and the caller retries on
// later frames when everything fails.
package autocrop

import (
	"github.com/ttptv/vision/internal/pix"
)

// LIFE text column and candidate rows. The standard position is tile row 5;
// overscan and crop shifts move it anywhere in 3-6.
const lifeCol = 22

var candidateLifeRows = []int{3, 4, 5, 6}

// FindGridAlignment scans all 64 grid offsets and the candidate life rows
// on a 256×240 canonical frame, scoring the redness of the tile at the LIFE
// column with bonuses for the "I" (col 23) and "F" (col 24) characters.
//
// The critical disambiguation: "-LIFE-" spans cols 21-26 while the hearts
// row extends through col 27 and beyond, so a red col 27 multiplies the
// score by 0.1; a candidate that is actually the hearts row loses to any
// genuine LIFE hit.
func FindGridAlignment(canonical *pix.Image) (dx, dy, lifeRow int, ok bool) {
	bestScore := -1.0

	for _, row := range candidateLifeRows {
		for cdy := 0; cdy < 8; cdy++ {
			for cdx := 0; cdx < 8; cdx++ {
				y := row*8 + cdy
				x := lifeCol*8 + cdx
				if x+8 > canonical.W || y+8 > canonical.H {
					continue
				}
				tile := canonical.Sub(x, y, 8, 8)
				b, g, r := tile.ChannelMeans()
				if !(r > 50 && r > g*2 && r > b*2) {
					continue
				}
				score := r - (g+b)/2

				if x2 := 23*8 + cdx; x2+8 <= canonical.W {
					_, g2, r2 := canonical.Sub(x2, y, 8, 8).ChannelMeans()
					if r2 > 50 && r2 > g2*2 {
						score += r2 / 2
					}
				}
				if x3 := 24*8 + cdx; x3+8 <= canonical.W {
					_, g3, r3 := canonical.Sub(x3, y, 8, 8).ChannelMeans()
					if r3 > 50 && r3 > g3*2 {
						score += r3 / 3
					}
				}
				if xb := 27*8 + cdx; xb+8 <= canonical.W {
					_, gb, rb := canonical.Sub(xb, y, 8, 8).ChannelMeans()
					if rb > 50 && rb > gb*1.5 {
						score *= 0.1
					}
				}

				if score > bestScore {
					bestScore = score
					dx, dy, lifeRow = cdx, cdy, row
					ok = true
				}
			}
		}
	}
	return dx, dy, lifeRow, ok
}

// ScoreCalibration scores how much a canonical frame with the given offset
// looks like Zelda 1: LIFE text at (22,5), its second character, a dark HUD
// strip, a brighter game area, and a dark minimap region. Maximum 1.6.
func ScoreCalibration(canonical *pix.Image, dx, dy int) float64 {
	score := 0.0

	y := 5*8 + dy
	x := 22*8 + dx
	if x+8 <= canonical.W && y+8 <= canonical.H {
		b, g, r := canonical.Sub(x, y, 8, 8).ChannelMeans()
		if r > 50 && r > g*2 && r > b*2 {
			score += 0.5
		}
		if x2 := 23*8 + dx; x2+8 <= canonical.W {
			_, g2, r2 := canonical.Sub(x2, y, 8, 8).ChannelMeans()
			if r2 > 50 && r2 > g2*2 {
				score += 0.3
			}
		}
	}

	hudBright := canonical.Sub(0, 0, canonical.W, 64).Mean()
	if hudBright < 80 {
		score += 0.3
	}
	gameBright := canonical.Sub(0, 64, canonical.W, canonical.H-64).Mean()
	if gameBright > hudBright && gameBright > 20 {
		score += 0.3
	}

	my1, my2 := 16+dy, 52+dy
	mx1, mx2 := 16+dx, 64+dx
	if my2 > canonical.H {
		my2 = canonical.H
	}
	if mx2 > canonical.W {
		mx2 = canonical.W
	}
	if my2 > my1 && mx2 > mx1 {
		minimap := canonical.Sub(mx1, my1, mx2-mx1, my2-my1)
		if !minimap.Empty() && minimap.Mean() < 60 {
			score += 0.2
		}
	}

	return score
}

// findLevelText scores the LEVEL-X text as a secondary anchor: bright tiles
// at row 9, cols 2-6 (the dungeon banner in the game area).
func findLevelText(canonical *pix.Image, dx, dy int) float64 {
	score := 0.0
	for col := 2; col < 7; col++ {
		x := col*8 + dx
		y := 9*8 + dy
		if x+8 > canonical.W || y+8 > canonical.H {
			continue
		}
		if canonical.Sub(x, y, 8, 8).Mean() > 80 {
			score += 0.1
		}
	}
	return score
}

// findHeartsPattern scores red heart clusters at rows 3-4, cols 22-29; one
// row with at least 3 red tiles is enough.
func findHeartsPattern(canonical *pix.Image, dx, dy int) float64 {
	for _, row := range []int{3, 4} {
		redCount := 0
		for col := 22; col < 30; col++ {
			x := col*8 + dx
			y := row*8 + dy
			if x+8 > canonical.W || y+8 > canonical.H {
				continue
			}
			_, g, r := canonical.Sub(x, y, 8, 8).ChannelMeans()
			if r > 60 && r > g*1.3 {
				redCount++
			}
		}
		if redCount >= 3 {
			return 0.3
		}
	}
	return 0
}

// AnchorScore is a multi-anchor grid-offset scoring result.
type AnchorScore struct {
	DX, DY      int
	Score       float64
	LifeScore   float64
	LevelScore  float64
	HeartsScore float64
}

// MultiAnchorCalibration combines the LIFE score (primary), LEVEL-X text
// (secondary), and hearts pattern (tertiary) over all 64 offsets. Results
// below 0.5 total are rejected.
func MultiAnchorCalibration(canonical *pix.Image) (AnchorScore, bool) {
	var best AnchorScore
	found := false
	for dy := 0; dy < 8; dy++ {
		for dx := 0; dx < 8; dx++ {
			life := ScoreCalibration(canonical, dx, dy)
			level := findLevelText(canonical, dx, dy)
			hearts := findHeartsPattern(canonical, dx, dy)
			total := life + level + hearts
			if total > best.Score {
				best = AnchorScore{
					DX: dx, DY: dy, Score: total,
					LifeScore: life, LevelScore: level, HeartsScore: hearts,
				}
				found = true
			}
		}
	}
	if !found || best.Score <= 0.5 {
		return AnchorScore{}, false
	}
	return best, true
}
