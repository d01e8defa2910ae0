package logic

import (
	"testing"
)

func newExitTracker() (*DungeonExitTracker, *[8]bool) {
	var triforce [8]bool
	return NewDungeonExitTracker(&triforce, nil), &triforce
}

func TestTriforceInferredViaDungeonExit(t *testing.T) {
	tracker, triforce := newExitTracker()

	// Frame 0: in dungeon 3 at 3/5 hearts (establishes prev externally).
	// Frame 1: death flash; frames 2-3 transitions; frame 4 overworld 5/5.
	events := tracker.ProcessFrame("death", 3, 3, 5, "dungeon", 3, 1)
	if len(events) != 0 {
		t.Fatalf("expected no events entering exit phase, got %d", len(events))
	}
	events = append(events, tracker.ProcessFrame("transition", 3, 3, 5, "death", 3, 2)...)
	events = append(events, tracker.ProcessFrame("transition", 3, 3, 5, "transition", 3, 3)...)
	events = append(events, tracker.ProcessFrame("overworld", 3, 5, 5, "transition", 3, 4)...)

	if len(events) != 1 {
		t.Fatalf("expected exactly one event, got %d", len(events))
	}
	if events[0].Kind != EventTriforceInferred {
		t.Errorf("expected triforce_inferred, got %s", events[0].Kind)
	}
	if events[0].DungeonLevel != 3 {
		t.Errorf("expected dungeon_level 3, got %d", events[0].DungeonLevel)
	}
	if !triforce[2] {
		t.Error("expected triforce_inferred[2] set")
	}
}

func TestTriforceInferenceIdempotent(t *testing.T) {
	tracker, triforce := newExitTracker()
	triforce[2] = true // already inferred by the item-hold tracker

	tracker.ProcessFrame("death", 3, 3, 5, "dungeon", 3, 1)
	events := tracker.ProcessFrame("overworld", 3, 5, 5, "death", 3, 2)
	if len(events) != 0 {
		t.Errorf("expected no duplicate event for the same dungeon, got %d", len(events))
	}
}

func TestNoTriforceAfterDeathMenu(t *testing.T) {
	tracker, triforce := newExitTracker()

	tracker.ProcessFrame("death", 3, 3, 5, "dungeon", 3, 1)
	tracker.ProcessFrame("death", 3, 3, 5, "death", 3, 2)
	tracker.ProcessFrame("death", 3, 3, 5, "death", 3, 3) // third death frame: menu
	events := tracker.ProcessFrame("overworld", 3, 5, 5, "death", 3, 4)
	if len(events) != 0 {
		t.Errorf("expected no triforce after death menu, got %d events", len(events))
	}
	if triforce[2] {
		t.Error("expected triforce_inferred[2] clear after death menu")
	}
}

func TestNoTriforceWithoutHeartsIncrease(t *testing.T) {
	tracker, _ := newExitTracker()
	tracker.ProcessFrame("transition", 3, 3, 5, "dungeon", 3, 1)
	events := tracker.ProcessFrame("overworld", 3, 3, 5, "transition", 3, 2)
	if len(events) != 0 {
		t.Errorf("expected no event without hearts increase, got %d", len(events))
	}
}

func TestReturnToDungeonResets(t *testing.T) {
	tracker, _ := newExitTracker()
	tracker.ProcessFrame("transition", 3, 3, 5, "dungeon", 3, 1)
	tracker.ProcessFrame("dungeon", 3, 3, 5, "transition", 3, 2)
	// After the flicker reset, an overworld arrival must not fire.
	events := tracker.ProcessFrame("overworld", 0, 5, 5, "dungeon", 3, 3)
	if len(events) != 0 {
		t.Errorf("expected no event after flicker reset, got %d", len(events))
	}
}

func TestGameCompleteBoundary(t *testing.T) {
	// Exactly 30 exit frames must NOT fire; 31 must.
	tracker, _ := newExitTracker()
	tracker.ProcessFrame("transition", 9, 3, 3, "dungeon", 9, 100)
	if !tracker.IsExitingD9() {
		t.Fatal("expected D9 exit phase")
	}

	events := tracker.ProcessFrame("transition", 9, 3, 3, "transition", 9, 130)
	if len(events) != 0 {
		t.Fatalf("expected no game_complete at exit_frames=30, got %d", len(events))
	}
	events = tracker.ProcessFrame("transition", 9, 3, 3, "transition", 9, 131)
	if len(events) != 1 || events[0].Kind != EventGameComplete {
		t.Fatalf("expected game_complete at exit_frames=31, got %+v", events)
	}
	if !tracker.GameCompleted {
		t.Error("expected GameCompleted latched")
	}
	if events[0].Frame != 100 {
		t.Errorf("expected event stamped at exit start frame 100, got %d", events[0].Frame)
	}
}

func TestExitTimeoutResets(t *testing.T) {
	tracker, _ := newExitTracker()
	tracker.ProcessFrame("transition", 5, 3, 5, "dungeon", 5, 1)
	tracker.ProcessFrame("transition", 5, 3, 5, "transition", 5, 45)
	// Timed out at >40 frames; a late overworld frame fires nothing.
	events := tracker.ProcessFrame("overworld", 5, 5, 5, "transition", 5, 46)
	if len(events) != 0 {
		t.Errorf("expected no event after timeout, got %d", len(events))
	}
}
