package logic

import (
	"fmt"

	"github.com/ttptv/vision/internal/detector"
)

// DungeonExitTracker infers triforce collection and game completion from
// the sequence dungeon → non-gameplay transition → overworld. Collecting a
// triforce refills hearts to max during the exit cutscene; a D9 exit that
// persists past 30 frames with hearts never reaching zero is the credits
// roll.
//
// The coordinator owns the canonical triforceInferred vector and passes it
// in so this tracker and ItemHoldTracker share one buffer. This tracker
// must run AFTER ItemHoldTracker in the frame order (a triforce inferred by
// the hold animation suppresses a same-gap false death).
type DungeonExitTracker struct {
	triforceInferred *[8]bool
	GameCompleted    bool

	exiting          bool
	exitDungeon      int
	exitStartFrame   int
	exitHeartsStart  int
	exitHeartsMin    int
	exitDeathFrames  int
	exitSawDeathMenu bool

	recordAnomaly AnomalyFunc
}

// NewDungeonExitTracker wires the shared triforce vector and anomaly sink.
func NewDungeonExitTracker(triforceInferred *[8]bool, record AnomalyFunc) *DungeonExitTracker {
	if record == nil {
		record = func(int, string, string, string) {}
	}
	return &DungeonExitTracker{
		triforceInferred: triforceInferred,
		exitHeartsMin:    99,
		recordAnomaly:    record,
	}
}

// IsExitingD9 is true while in the EXITING phase for dungeon 9; the
// warp/death tracker uses it to suppress the credits-roll death screen.
func (t *DungeonExitTracker) IsExitingD9() bool {
	return t.exiting && t.exitDungeon == 9
}

// ProcessFrame advances the state machine and returns any events.
func (t *DungeonExitTracker) ProcessFrame(screen string, dungeonLevel, heartsCurrent, heartsMax int,
	prevScreen string, prevDungeonLevel, frame int) []Event {
	var events []Event

	if !t.exiting {
		if prevScreen == detector.ScreenDungeon && prevDungeonLevel > 0 &&
			screen != detector.ScreenDungeon && screen != detector.ScreenCave &&
			screen != detector.ScreenOverworld && screen != detector.ScreenSubscreen {
			t.exiting = true
			t.exitDungeon = prevDungeonLevel
			t.exitStartFrame = frame
			// heartsCurrent was already carry-forwarded by the coordinator.
			t.exitHeartsStart = heartsCurrent
			t.exitHeartsMin = heartsCurrent
			t.exitDeathFrames = 0
			if screen == detector.ScreenDeath {
				t.exitDeathFrames = 1
			}
			t.exitSawDeathMenu = false
		}
		return events
	}

	if heartsCurrent < t.exitHeartsMin {
		t.exitHeartsMin = heartsCurrent
	}

	// 3+ consecutive death frames = the CSR menu, not a flash.
	if screen == detector.ScreenDeath {
		t.exitDeathFrames++
		if t.exitDeathFrames >= 3 {
			t.exitSawDeathMenu = true
		}
	} else {
		t.exitDeathFrames = 0
	}

	exitFrames := frame - t.exitStartFrame
	dungeon := t.exitDungeon

	switch {
	case screen == detector.ScreenOverworld:
		heartsIncreased := heartsCurrent > t.exitHeartsStart
		heartsAtMax := heartsCurrent >= heartsMax
		if heartsIncreased && heartsAtMax && t.exitHeartsMin > 0 &&
			!t.exitSawDeathMenu && dungeon >= 1 && dungeon <= 8 {
			idx := dungeon - 1
			if !t.triforceInferred[idx] {
				t.triforceInferred[idx] = true
				desc := fmt.Sprintf("Triforce piece %d inferred (hearts %d->%d, exit took %d frames)",
					dungeon, t.exitHeartsStart, heartsCurrent, exitFrames)
				events = append(events, Event{
					Frame: frame, Kind: EventTriforceInferred,
					Description: desc, DungeonLevel: dungeon,
				})
				t.recordAnomaly(frame, "triforce_inferred", desc, SeverityInfo)
			}
		}
		t.resetExit()

	case screen == detector.ScreenDungeon || screen == detector.ScreenCave:
		// Just a transition flicker; never left.
		t.resetExit()

	case dungeon == 9 && exitFrames > 30 && t.exitHeartsMin > 0 && !t.GameCompleted:
		t.GameCompleted = true
		desc := fmt.Sprintf("Game completed! Exited D9 after %d frames of credits", exitFrames)
		events = append(events, Event{
			Frame: t.exitStartFrame, Kind: EventGameComplete,
			Description: desc, DungeonLevel: 9,
		})
		t.recordAnomaly(t.exitStartFrame, "game_complete",
			fmt.Sprintf("Game completed (D9 exit, %d frames of credits)", exitFrames),
			SeverityInfo)
		t.resetExit()

	case exitFrames > 40:
		t.resetExit()
	}

	return events
}

// Reset clears all state including the shared triforce vector.
func (t *DungeonExitTracker) Reset() {
	for i := range t.triforceInferred {
		t.triforceInferred[i] = false
	}
	t.GameCompleted = false
	t.resetExit()
}

func (t *DungeonExitTracker) resetExit() {
	t.exiting = false
	t.exitDungeon = 0
	t.exitStartFrame = 0
	t.exitHeartsStart = 0
	t.exitHeartsMin = 99
	t.exitDeathFrames = 0
	t.exitSawDeathMenu = false
}
