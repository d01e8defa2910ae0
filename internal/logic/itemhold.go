package logic

import (
	"fmt"

	"github.com/ttptv/vision/internal/detector"
)

// ItemHoldTracker detects triforce collection via the item-hold animation.
// The held triforce color-cycles orange↔blue, producing an intermittent
// detection pattern, while a ground triforce is consistently orange; so
// confirmation requires both detections AND gaps. Hearts reaching max seals
// it (the triforce refills hearts).
//
// Shares the coordinator-owned triforceInferred vector with
// DungeonExitTracker and must run BEFORE it each frame.
type ItemHoldTracker struct {
	triforceInferred *[8]bool
	recordAnomaly    AnomalyFunc

	holdType        string
	holdYMin        int
	holdYMax        int
	holdDetected    int
	holdTotal       int
	holdGaps        int
	holdStartFrame  int
	holdLastFrame   int
	holdDungeon     int
	holdFired       bool
	holdHeartsStart int
	holdPending     bool
}

// Item-hold confirmation thresholds.
const (
	holdYDriftMax     = 6  // px of y wobble still counted as the same hold
	holdGapEndFrames  = 12 // gap this long ends the animation
	holdPendingExpiry = 20 // frames to wait for the hearts refill
)

// NewItemHoldTracker wires the shared triforce vector and anomaly sink.
func NewItemHoldTracker(triforceInferred *[8]bool, record AnomalyFunc) *ItemHoldTracker {
	if record == nil {
		record = func(int, string, string, string) {}
	}
	t := &ItemHoldTracker{triforceInferred: triforceInferred, recordAnomaly: record}
	t.resetHold()
	return t
}

// ProcessFrame advances the tracker and returns any triforce events.
func (t *ItemHoldTracker) ProcessFrame(detectedItem string, detectedItemY int,
	screen string, dungeonLevel, heartsCurrent, heartsMax, frame int) []Event {
	var events []Event

	inDungeon := (screen == detector.ScreenDungeon || screen == detector.ScreenCave) && dungeonLevel > 0

	// Not tracking yet; only start in a dungeon or cave.
	if t.holdDetected == 0 && !t.holdPending {
		if !inDungeon {
			return events
		}
	}

	// PENDING: threshold met, waiting for the hearts refill.
	if t.holdPending {
		framesSince := frame - t.holdLastFrame
		if heartsCurrent > t.holdHeartsStart && heartsCurrent >= heartsMax && heartsMax > 0 {
			events = append(events, t.fireTriforce(heartsCurrent, heartsMax, frame)...)
			t.resetHold()
			return events
		}
		if framesSince > holdPendingExpiry {
			t.resetHold()
		}
		return events
	}

	if detectedItem != "" {
		switch {
		case t.holdType == detectedItem && t.holdDetected > 0:
			newYMin := minI(t.holdYMin, detectedItemY)
			newYMax := maxI(t.holdYMax, detectedItemY)
			if newYMax-newYMin <= holdYDriftMax {
				t.holdDetected++
				t.holdTotal++
				t.holdLastFrame = frame
				t.holdYMin = newYMin
				t.holdYMax = newYMax
			} else {
				// y drifted too far; not a stable hold; restart if possible.
				if inDungeon {
					t.startHold(detectedItem, detectedItemY, frame, dungeonLevel, heartsCurrent)
				} else {
					t.resetHold()
				}
				return events
			}
		case inDungeon:
			// Different item or first detection.
			t.startHold(detectedItem, detectedItemY, frame, dungeonLevel, heartsCurrent)
		default:
			return events
		}
	} else {
		if t.holdDetected > 0 {
			if frame-t.holdLastFrame > holdGapEndFrames {
				// Animation over; either go pending or give up.
				if t.metThreshold() {
					t.holdPending = true
					if heartsCurrent > t.holdHeartsStart && heartsCurrent >= heartsMax && heartsMax > 0 {
						events = append(events, t.fireTriforce(heartsCurrent, heartsMax, frame)...)
						t.resetHold()
					}
				} else {
					t.resetHold()
				}
			} else {
				// Gap frame; the color-cycling evidence.
				t.holdTotal++
				t.holdGaps++
			}
		}
		return events
	}

	// Detection frame with tracking updated: immediate fire when the hearts
	// already reached max.
	if t.metThreshold() && !t.holdFired {
		if heartsCurrent > t.holdHeartsStart && heartsCurrent >= heartsMax && heartsMax > 0 {
			events = append(events, t.fireTriforce(heartsCurrent, heartsMax, frame)...)
			t.resetHold()
		}
	}

	return events
}

// Reset clears all state including the shared triforce vector.
func (t *ItemHoldTracker) Reset() {
	for i := range t.triforceInferred {
		t.triforceInferred[i] = false
	}
	t.resetHold()
}

func (t *ItemHoldTracker) metThreshold() bool {
	return !t.holdFired && t.holdDetected >= 4 && t.holdGaps >= 1 && t.holdTotal >= 8
}

func (t *ItemHoldTracker) startHold(item string, itemY, frame, dungeonLevel, hearts int) {
	t.holdType = item
	t.holdYMin = itemY
	t.holdYMax = itemY
	t.holdDetected = 1
	t.holdTotal = 1
	t.holdGaps = 0
	t.holdStartFrame = frame
	t.holdLastFrame = frame
	t.holdDungeon = dungeonLevel
	t.holdFired = false
	t.holdHeartsStart = hearts
	t.holdPending = false
}

func (t *ItemHoldTracker) fireTriforce(heartsCurrent, heartsMax, frame int) []Event {
	dungeon := t.holdDungeon
	if t.holdType != "triforce" || dungeon < 1 || dungeon > 8 {
		return nil
	}
	idx := dungeon - 1
	if t.triforceInferred[idx] || t.holdFired {
		return nil
	}
	t.holdFired = true
	t.triforceInferred[idx] = true

	ySpread := t.holdYMax - t.holdYMin
	desc := fmt.Sprintf("Triforce piece %d detected (item-hold + hearts refill, %d det, %d gaps, hearts %d->%d/%d)",
		dungeon, t.holdDetected, t.holdGaps, t.holdHeartsStart, heartsCurrent, heartsMax)
	t.recordAnomaly(t.holdStartFrame, "triforce_item_hold",
		fmt.Sprintf("Triforce piece %d via item-hold (hearts %d->%d/%d, %d det, %d gaps, y±%dpx)",
			dungeon, t.holdHeartsStart, heartsCurrent, heartsMax,
			t.holdDetected, t.holdGaps, ySpread),
		SeverityInfo)

	return []Event{{
		Frame: t.holdStartFrame, Kind: EventTriforceInferred,
		Description: desc, DungeonLevel: dungeon,
	}}
}

func (t *ItemHoldTracker) resetHold() {
	t.holdType = ""
	t.holdYMin = 999
	t.holdYMax = 0
	t.holdDetected = 0
	t.holdTotal = 0
	t.holdGaps = 0
	t.holdStartFrame = 0
	t.holdLastFrame = 0
	t.holdDungeon = 0
	t.holdFired = false
	t.holdHeartsStart = 0
	t.holdPending = false
}

func minI(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxI(a, b int) int {
	if a > b {
		return a
	}
	return b
}
