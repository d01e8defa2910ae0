package logic

import (
	"fmt"

	"github.com/ttptv/vision/internal/detector"
)

// FloorItemTracker confirms floor-item appearances (item_drop) and
// disappearances (item_pickup) across frames. A room change resets tracking
// and opens a grace period during which current detections become the
// baseline without firing drops; items already lying in a room aren't
// drops. Detections match tracked items by proximity.
type FloorItemTracker struct {
	tracked       []trackedItem
	pending       []pendingItem
	graceLeft     int
	prevScreenKey screenKey
	haveKey       bool
}

type trackedItem struct {
	name string
	x, y int
	gone int // consecutive absent frames
}

type pendingItem struct {
	name  string
	x, y  int
	count int
}

type screenKey struct {
	screen       string
	dungeonLevel int
	mapPosition  int
}

const (
	floorRoomEntryGrace = 3
	floorConfirmFrames  = 2
	floorGoneFrames     = 3
	floorMatchDist      = 12
)

// NewFloorItemTracker returns an empty tracker.
func NewFloorItemTracker() *FloorItemTracker { return &FloorItemTracker{} }

// Process feeds one frame of detections and returns drop/pickup events.
func (t *FloorItemTracker) Process(floorItems []detector.FloorItem, screen string,
	dungeonLevel, mapPosition, frame int) []Event {
	var events []Event

	if screen != detector.ScreenDungeon && screen != detector.ScreenOverworld {
		t.reset()
		t.haveKey = false // the next gameplay frame re-enters grace
		return events
	}

	key := screenKey{screen, dungeonLevel, mapPosition}
	if !t.haveKey || key != t.prevScreenKey {
		t.reset()
		t.prevScreenKey = key
		t.haveKey = true
		t.graceLeft = floorRoomEntryGrace
	}

	if t.graceLeft > 0 {
		t.graceLeft--
		if t.graceLeft == 0 {
			// Grace over: adopt whatever is on the floor as the baseline.
			for _, fi := range floorItems {
				t.tracked = append(t.tracked, trackedItem{name: fi.Name, x: fi.X, y: fi.Y})
			}
		}
		return events
	}

	// Disappearances (pickup).
	var remaining []trackedItem
	for _, item := range t.tracked {
		present := false
		for _, fi := range floorItems {
			if matchPos(item.x, item.y, fi.X, fi.Y) {
				present = true
				break
			}
		}
		if present {
			item.gone = 0
			remaining = append(remaining, item)
			continue
		}
		item.gone++
		if item.gone >= floorGoneFrames {
			events = append(events, Event{
				Frame: frame, Kind: EventItemPickup,
				Description:  "Picked up floor item: " + item.name,
				Item:         item.name,
				X:            item.x,
				Y:            item.y,
				DungeonLevel: dungeonLevel,
			})
			continue // dropped from tracking
		}
		remaining = append(remaining, item)
	}
	t.tracked = remaining

	// Appearances (drop).
	for _, fi := range floorItems {
		alreadyTracked := false
		for _, item := range t.tracked {
			if matchPos(item.x, item.y, fi.X, fi.Y) {
				alreadyTracked = true
				break
			}
		}
		if alreadyTracked {
			continue
		}

		matchedPending := false
		for i := range t.pending {
			if matchPos(t.pending[i].x, t.pending[i].y, fi.X, fi.Y) {
				t.pending[i].count++
				matchedPending = true
				if t.pending[i].count >= floorConfirmFrames {
					t.tracked = append(t.tracked, trackedItem{name: fi.Name, x: fi.X, y: fi.Y})
					events = append(events, Event{
						Frame: frame, Kind: EventItemDrop,
						Description:  fmt.Sprintf("Floor item appeared: %s", fi.Name),
						Item:         fi.Name,
						X:            fi.X,
						Y:            fi.Y,
						DungeonLevel: dungeonLevel,
					})
					t.pending = append(t.pending[:i], t.pending[i+1:]...)
				}
				break
			}
		}
		if !matchedPending {
			t.pending = append(t.pending, pendingItem{name: fi.Name, x: fi.X, y: fi.Y, count: 1})
		}
	}

	// Age out pending candidates not seen this frame.
	var keptPending []pendingItem
	for _, p := range t.pending {
		seen := false
		for _, fi := range floorItems {
			if matchPos(p.x, p.y, fi.X, fi.Y) {
				seen = true
				break
			}
		}
		if seen {
			keptPending = append(keptPending, p)
		}
	}
	t.pending = keptPending

	return events
}

func matchPos(ax, ay, bx, by int) bool {
	return absI(ax-bx) < floorMatchDist && absI(ay-by) < floorMatchDist
}

func (t *FloorItemTracker) reset() {
	t.tracked = nil
	t.pending = nil
	t.graceLeft = 0
}

func absI(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
