package logic

import (
	"fmt"

	"github.com/ttptv/vision/internal/detector"
)

// WarpDeathTracker detects Up+A warps and deaths through two independent
// channels: gameplay resuming at a known reset position after a
// non-gameplay gap, and the transition onto the CSR screen. Subscreen
// frames do not count toward the gap; Up+A opens the subscreen first.
// Hearts are only accepted as zero after four consecutive gameplay frames
// agree (transition frames misread hearts).
type WarpDeathTracker struct {
	OverworldStart   int
	DungeonEntrances map[int]int

	lastGameplayHearts   int
	zeroHeartsStreak     int
	nonGameplayGap       int
	lastGameplayPosition int
	lastGameplayScreen   string
	warpDetectedThisGap  bool
}

// The gap must be at least this many frames before a position reset counts.
const warpGapMin = 4

// Hearts must read zero on this many consecutive gameplay frames.
const zeroHeartsConfirm = 4

// NewWarpDeathTracker returns an empty tracker.
func NewWarpDeathTracker() *WarpDeathTracker {
	return &WarpDeathTracker{DungeonEntrances: map[int]int{}}
}

// LastGameplayHearts exposes the confirmed pre-gap hearts (test hook and
// diagnostics).
func (t *WarpDeathTracker) LastGameplayHearts() int { return t.lastGameplayHearts }

// SetLastGameplayHearts seeds the confirmed hearts value (used when resuming
// a session from a snapshot).
func (t *WarpDeathTracker) SetLastGameplayHearts(v int) { t.lastGameplayHearts = v }

// ProcessFrame runs both channels for one frame. gameEvents is the
// coordinator's event list so far this session; a triforce inferred on this
// very frame suppresses the position-reset channel. dungeonExitExitingD9
// suppresses the credits-roll CSR screen.
func (t *WarpDeathTracker) ProcessFrame(screen string, dungeonLevel, heartsCurrent, heartsMax,
	mapPosition int, prevScreen string, prevHeartsMax int,
	gameplayStarted, gameCompleted bool, gameEvents []Event, frame int,
	dungeonExitExitingD9 bool) []Event {

	var events []Event
	gameplay := detector.IsGameplay(screen)

	// Capture BEFORE the streak update: the gap's verdict depends on the
	// hearts confirmed before it began.
	preGapHearts := t.lastGameplayHearts

	if gameplay {
		if heartsCurrent > 0 {
			t.lastGameplayHearts = heartsCurrent
			t.zeroHeartsStreak = 0
		} else if prevHeartsMax > 0 && heartsMax >= prevHeartsMax {
			// hearts_max is consistent, so the HUD was present and 0 is real.
			t.zeroHeartsStreak++
			if t.zeroHeartsStreak >= zeroHeartsConfirm {
				t.lastGameplayHearts = 0
			}
		}
		// else: hearts_max dropped (transition frame defaults); ignore.
	}

	// Position-reset channel.
	if gameplay && t.nonGameplayGap >= warpGapMin && gameplayStarted &&
		!gameCompleted && !t.warpDetectedThisGap {
		isReset := false
		if screen == detector.ScreenOverworld && t.OverworldStart > 0 &&
			mapPosition == t.OverworldStart {
			isReset = true
		} else if screen == detector.ScreenDungeon && dungeonLevel > 0 {
			entrance := t.DungeonEntrances[dungeonLevel]
			if entrance > 0 && mapPosition == entrance &&
				t.lastGameplayScreen == detector.ScreenDungeon {
				isReset = true
			}
		}

		triforceJustInferred := len(gameEvents) > 0 &&
			gameEvents[len(gameEvents)-1].Kind == EventTriforceInferred &&
			gameEvents[len(gameEvents)-1].Frame == frame

		if isReset && !triforceJustInferred {
			t.warpDetectedThisGap = true
			if preGapHearts == 0 {
				events = append(events, Event{
					Frame: frame, Kind: EventDeath,
					Description: fmt.Sprintf("Link died (respawned at reset position after %d frame gap)",
						t.nonGameplayGap),
					DungeonLevel: dungeonLevel,
				})
			} else {
				events = append(events, Event{
					Frame: frame, Kind: EventUpAWarp,
					Description: fmt.Sprintf("Up+A warp (hearts %d, reset after %d frame gap)",
						preGapHearts, t.nonGameplayGap),
					DungeonLevel: dungeonLevel,
				})
			}
		}
	}

	// CSR channel.
	if screen == detector.ScreenDeath && prevScreen != detector.ScreenDeath &&
		!gameCompleted && gameplayStarted && !t.warpDetectedThisGap &&
		!dungeonExitExitingD9 {
		t.warpDetectedThisGap = true
		if t.lastGameplayHearts == 0 {
			events = append(events, Event{
				Frame: frame, Kind: EventDeath,
				Description:  "Link died (hearts reached 0, CSR screen detected)",
				DungeonLevel: dungeonLevel,
			})
		} else {
			events = append(events, Event{
				Frame: frame, Kind: EventUpAWarp,
				Description: fmt.Sprintf("Up+A warp (hearts were %d, CSR screen detected)",
					t.lastGameplayHearts),
				DungeonLevel: dungeonLevel,
			})
		}
	}

	// Record start/entrance positions.
	// After reset detection (which reads the old values), before the
	// coordinator's Rule 10 adjacency check (which reads the new ones).
	if mapPosition > 0 {
		if screen == detector.ScreenOverworld && t.OverworldStart == 0 {
			t.OverworldStart = mapPosition
		}
		if screen == detector.ScreenDungeon && dungeonLevel > 0 {
			if _, ok := t.DungeonEntrances[dungeonLevel]; !ok {
				t.DungeonEntrances[dungeonLevel] = mapPosition
			}
		}
	}

	// Gap bookkeeping.
	if gameplay {
		t.nonGameplayGap = 0
		t.warpDetectedThisGap = false
		t.lastGameplayPosition = mapPosition
		t.lastGameplayScreen = screen
	} else if screen != detector.ScreenSubscreen {
		t.nonGameplayGap++
	}

	return events
}

// Reset clears all state.
func (t *WarpDeathTracker) Reset() {
	t.OverworldStart = 0
	t.DungeonEntrances = map[int]int{}
	t.lastGameplayHearts = 0
	t.zeroHeartsStreak = 0
	t.nonGameplayGap = 0
	t.lastGameplayPosition = 0
	t.lastGameplayScreen = ""
	t.warpDetectedThisGap = false
}
