package logic

import (
	"testing"
)

// play pushes one gameplay frame through the tracker with common defaults.
func play(t *WarpDeathTracker, screen string, level, hearts, heartsMax, pos int,
	prevScreen string, frame int) []Event {
	return t.ProcessFrame(screen, level, hearts, heartsMax, pos,
		prevScreen, heartsMax, true, false, nil, frame, false)
}

func TestUpAWarpViaPositionReset(t *testing.T) {
	tracker := NewWarpDeathTracker()

	// Frame 0: overworld at room 42, hearts 3 → establishes the start.
	play(tracker, "overworld", 0, 3, 3, 42, "title", 0)
	// Frames 1-4: transitions.
	prev := "overworld"
	for f := 1; f <= 4; f++ {
		play(tracker, "transition", 0, 3, 3, 0, prev, f)
		prev = "transition"
	}
	// Frame 5: back at the start position with hearts intact.
	events := play(tracker, "overworld", 0, 3, 3, 42, "transition", 5)

	if len(events) != 1 {
		t.Fatalf("expected exactly one event, got %d", len(events))
	}
	if events[0].Kind != EventUpAWarp {
		t.Errorf("expected up_a_warp, got %s", events[0].Kind)
	}
}

func TestDeathViaPositionResetWithZeroHearts(t *testing.T) {
	tracker := NewWarpDeathTracker()
	play(tracker, "overworld", 0, 3, 3, 42, "title", 0)
	// Four consecutive zero-hearts gameplay frames confirm the death.
	for f := 1; f <= 4; f++ {
		play(tracker, "overworld", 0, 0, 3, 42, "overworld", f)
	}
	prev := "overworld"
	for f := 5; f <= 8; f++ {
		play(tracker, "transition", 0, 0, 3, 0, prev, f)
		prev = "transition"
	}
	events := play(tracker, "overworld", 0, 3, 3, 42, "transition", 9)
	if len(events) != 1 || events[0].Kind != EventDeath {
		t.Fatalf("expected death, got %+v", events)
	}
}

func TestZeroHeartsStreakBoundary(t *testing.T) {
	tracker := NewWarpDeathTracker()
	play(tracker, "overworld", 0, 3, 3, 42, "title", 0)

	// Exactly 3 zero frames do not confirm.
	for f := 1; f <= 3; f++ {
		play(tracker, "overworld", 0, 0, 3, 42, "overworld", f)
	}
	if tracker.LastGameplayHearts() != 3 {
		t.Errorf("expected hearts still 3 after 3 zero frames, got %d",
			tracker.LastGameplayHearts())
	}
	// The 4th confirms.
	play(tracker, "overworld", 0, 0, 3, 42, "overworld", 4)
	if tracker.LastGameplayHearts() != 0 {
		t.Errorf("expected hearts 0 after 4 zero frames, got %d",
			tracker.LastGameplayHearts())
	}
}

func TestShortGapDoesNotFire(t *testing.T) {
	tracker := NewWarpDeathTracker()
	play(tracker, "overworld", 0, 3, 3, 42, "title", 0)
	// Only 3 non-gameplay frames: below the gap minimum.
	prev := "overworld"
	for f := 1; f <= 3; f++ {
		play(tracker, "transition", 0, 3, 3, 0, prev, f)
		prev = "transition"
	}
	events := play(tracker, "overworld", 0, 3, 3, 42, "transition", 4)
	if len(events) != 0 {
		t.Errorf("expected no event for a 3-frame gap, got %d", len(events))
	}
}

func TestSubscreenDoesNotCountTowardGap(t *testing.T) {
	tracker := NewWarpDeathTracker()
	play(tracker, "overworld", 0, 3, 3, 42, "title", 0)
	prev := "overworld"
	for f := 1; f <= 10; f++ {
		play(tracker, "subscreen", 0, 3, 3, 0, prev, f)
		prev = "subscreen"
	}
	events := play(tracker, "overworld", 0, 3, 3, 42, "subscreen", 11)
	if len(events) != 0 {
		t.Errorf("expected no event after a subscreen-only gap, got %d", len(events))
	}
}

func TestDeathViaCSR(t *testing.T) {
	tracker := NewWarpDeathTracker()
	tracker.SetLastGameplayHearts(0)

	events := tracker.ProcessFrame("death", 0, 0, 3, 0,
		"overworld", 3, true, false, nil, 10, false)
	if len(events) != 1 || events[0].Kind != EventDeath {
		t.Fatalf("expected one death event, got %+v", events)
	}

	// A second consecutive death frame emits nothing.
	events = tracker.ProcessFrame("death", 0, 0, 3, 0,
		"death", 3, true, false, nil, 11, false)
	if len(events) != 0 {
		t.Errorf("expected nothing on the second death frame, got %d", len(events))
	}
}

func TestCSRUpAWarpWithHearts(t *testing.T) {
	tracker := NewWarpDeathTracker()
	tracker.SetLastGameplayHearts(3)
	events := tracker.ProcessFrame("death", 0, 0, 3, 0,
		"overworld", 3, true, false, nil, 10, false)
	if len(events) != 1 || events[0].Kind != EventUpAWarp {
		t.Fatalf("expected up_a_warp, got %+v", events)
	}
}

func TestCSRSuppressedDuringD9Exit(t *testing.T) {
	tracker := NewWarpDeathTracker()
	tracker.SetLastGameplayHearts(3)
	events := tracker.ProcessFrame("death", 9, 0, 3, 0,
		"transition", 3, true, false, nil, 10, true)
	if len(events) != 0 {
		t.Errorf("expected no event while exiting D9, got %d", len(events))
	}
}

func TestOneEventPerGap(t *testing.T) {
	// The CSR channel fires during the gap; the position reset afterwards
	// must not fire a second event in the same gap.
	tracker := NewWarpDeathTracker()
	play(tracker, "overworld", 0, 3, 3, 42, "title", 0)

	total := 0
	total += len(tracker.ProcessFrame("death", 0, 3, 3, 0,
		"overworld", 3, true, false, nil, 1, false))
	prev := "death"
	for f := 2; f <= 6; f++ {
		total += len(tracker.ProcessFrame("transition", 0, 3, 3, 0,
			prev, 3, true, false, nil, f, false))
		prev = "transition"
	}
	total += len(tracker.ProcessFrame("overworld", 0, 3, 3, 42,
		"transition", 3, true, false, nil, 7, false))
	if total != 1 {
		t.Errorf("expected exactly one event in the gap, got %d", total)
	}
}

func TestTriforceSameFrameSuppressesReset(t *testing.T) {
	tracker := NewWarpDeathTracker()
	play(tracker, "overworld", 0, 3, 3, 42, "title", 0)
	prev := "overworld"
	for f := 1; f <= 5; f++ {
		play(tracker, "transition", 0, 3, 3, 0, prev, f)
		prev = "transition"
	}
	priorEvents := []Event{{Frame: 6, Kind: EventTriforceInferred, DungeonLevel: 3}}
	events := tracker.ProcessFrame("overworld", 0, 5, 5, 42,
		"transition", 3, true, false, priorEvents, 6, false)
	if len(events) != 0 {
		t.Errorf("expected reset suppressed by same-frame triforce, got %d", len(events))
	}
}

func TestDungeonEntranceReset(t *testing.T) {
	tracker := NewWarpDeathTracker()
	// Establish dungeon 4's entrance at room 52.
	play(tracker, "dungeon", 4, 3, 3, 52, "overworld", 0)
	play(tracker, "dungeon", 4, 3, 3, 44, "dungeon", 1)
	prev := "dungeon"
	for f := 2; f <= 6; f++ {
		play(tracker, "transition", 4, 3, 3, 0, prev, f)
		prev = "transition"
	}
	events := play(tracker, "dungeon", 4, 3, 3, 52, "transition", 7)
	if len(events) != 1 || events[0].Kind != EventUpAWarp {
		t.Fatalf("expected up_a_warp at dungeon entrance, got %+v", events)
	}
}
