package logic

import (
	"github.com/ttptv/vision/internal/detector"
)

// StaircaseItemTracker watches items on dungeon staircase pedestals:
// idle → item_visible after 2 consecutive frames showing a non-triforce
// item, and item_visible → idle (emitting staircase_item_acquired) after 3
// consecutive frames without it. Triforce has its own tracker.
type StaircaseItemTracker struct {
	visible   bool
	itemName  string
	seenCount int
	goneCount int
}

const (
	staircaseVisibleThreshold  = 2
	staircaseAcquiredThreshold = 3
)

// NewStaircaseItemTracker returns an idle tracker.
func NewStaircaseItemTracker() *StaircaseItemTracker { return &StaircaseItemTracker{} }

// Process advances the state machine and returns any events.
func (t *StaircaseItemTracker) Process(detectedItem, screen string, dungeonLevel, frame int) []Event {
	var events []Event

	if screen != detector.ScreenDungeon {
		t.reset()
		return events
	}

	isStaircaseItem := detectedItem != "" && detectedItem != "triforce"

	if !t.visible {
		if isStaircaseItem {
			t.seenCount++
			t.itemName = detectedItem
			if t.seenCount >= staircaseVisibleThreshold {
				t.visible = true
			}
		} else {
			t.seenCount = 0
			t.itemName = ""
		}
		return events
	}

	if isStaircaseItem {
		t.goneCount = 0
		t.itemName = detectedItem
	} else {
		t.goneCount++
		if t.goneCount >= staircaseAcquiredThreshold {
			events = append(events, Event{
				Frame: frame, Kind: EventStaircaseItemAcquired,
				Description:  "Staircase item: " + t.itemName,
				Item:         t.itemName,
				DungeonLevel: dungeonLevel,
			})
			t.reset()
		}
	}
	return events
}

func (t *StaircaseItemTracker) reset() {
	t.visible = false
	t.itemName = ""
	t.seenCount = 0
	t.goneCount = 0
}
