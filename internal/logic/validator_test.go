package logic

import (
	"testing"

	"github.com/ttptv/vision/internal/detector"
)

func gameplayState(screen string) detector.GameState {
	s := detector.NewGameState()
	s.ScreenType = screen
	s.HeartsCurrent = 3
	s.HeartsMax = 3
	s.MapPosition = 42
	return s
}

func TestBombMaxRatchet(t *testing.T) {
	v := NewValidator(nil)

	readings := []struct{ bombs, bombMax, expected int }{
		{4, 8, 8},
		{8, 8, 8},
		{9, 8, 12},
		{12, 12, 12},
		{13, 12, 16},
		{3, 8, 16},
	}
	for i, r := range readings {
		s := gameplayState(detector.ScreenOverworld)
		s.Bombs = r.bombs
		s.BombMax = r.bombMax
		result := v.Validate(s, i+1)
		if result.State.BombMax != r.expected {
			t.Errorf("reading %d (bombs=%d): expected bomb_max %d, got %d",
				i, r.bombs, r.expected, result.State.BombMax)
		}
	}
}

func TestHeartsMaxMonotonic(t *testing.T) {
	v := NewValidator(nil)
	s := gameplayState(detector.ScreenOverworld)
	s.HeartsMax = 5
	s.HeartsCurrent = 5
	v.Validate(s, 1)

	s2 := gameplayState(detector.ScreenOverworld)
	s2.HeartsMax = 3
	s2.HeartsCurrent = 3
	result := v.Validate(s2, 2)
	if result.State.HeartsMax != 5 {
		t.Errorf("expected hearts_max reverted to 5, got %d", result.State.HeartsMax)
	}

	found := false
	for _, a := range v.Anomalies() {
		if a.Detector == "hearts_max" && a.Severity == SeverityWarning {
			found = true
		}
	}
	if !found {
		t.Error("expected a hearts_max warning anomaly")
	}
}

func TestHeartsCurrentClamped(t *testing.T) {
	v := NewValidator(nil)
	v.Validate(gameplayState(detector.ScreenOverworld), 1)

	s := gameplayState(detector.ScreenOverworld)
	s.HeartsCurrent = 7
	s.HeartsMax = 3
	result := v.Validate(s, 2)
	if result.State.HeartsCurrent != 3 {
		t.Errorf("expected hearts clamped to 3, got %d", result.State.HeartsCurrent)
	}
}

func TestTriforceMonotonic(t *testing.T) {
	v := NewValidator(nil)
	s := detector.NewGameState()
	s.ScreenType = detector.ScreenSubscreen
	s.Triforce[2] = true
	v.Validate(s, 1)

	s2 := detector.NewGameState()
	s2.ScreenType = detector.ScreenSubscreen
	result := v.Validate(s2, 2)
	if !result.State.Triforce[2] {
		t.Error("expected cleared triforce bit restored")
	}
}

func TestSwordMonotonicWithUpgradeEvent(t *testing.T) {
	v := NewValidator(nil)
	// Reach the gameplay-started latch first.
	for f := 1; f <= 121; f++ {
		v.Validate(gameplayState(detector.ScreenOverworld), f)
	}

	s := gameplayState(detector.ScreenOverworld)
	s.SwordLevel = 2
	result := v.Validate(s, 122)
	foundUpgrade := false
	for _, e := range result.Events {
		if e.Kind == EventSwordUpgrade {
			foundUpgrade = true
			if e.Description != "Picked up White Sword" {
				t.Errorf("unexpected description %q", e.Description)
			}
		}
	}
	if !foundUpgrade {
		t.Error("expected sword_upgrade event")
	}

	s2 := gameplayState(detector.ScreenOverworld)
	s2.SwordLevel = 1
	result = v.Validate(s2, 123)
	if result.State.SwordLevel != 2 {
		t.Errorf("expected sword level held at 2, got %d", result.State.SwordLevel)
	}
}

func TestRupeesClamped(t *testing.T) {
	v := NewValidator(nil)
	v.Validate(gameplayState(detector.ScreenOverworld), 1)
	s := gameplayState(detector.ScreenOverworld)
	s.Rupees = 300
	result := v.Validate(s, 2)
	if result.State.Rupees != 255 {
		t.Errorf("expected rupees clamped to 255, got %d", result.State.Rupees)
	}
}

func TestCarryForwardOnTransition(t *testing.T) {
	v := NewValidator(nil)
	s := gameplayState(detector.ScreenOverworld)
	s.Rupees = 42
	s.Keys = 3
	v.Validate(s, 1)

	blank := detector.NewGameState()
	blank.ScreenType = detector.ScreenTransition
	result := v.Validate(blank, 2)
	if result.State.Rupees != 42 || result.State.Keys != 3 {
		t.Errorf("expected HUD fields carried forward, got rupees=%d keys=%d",
			result.State.Rupees, result.State.Keys)
	}
	if result.State.MapPosition != 42 {
		t.Errorf("expected map position carried, got %d", result.State.MapPosition)
	}
}

func TestAnomalyDebounce(t *testing.T) {
	v := NewValidator(nil)
	s := gameplayState(detector.ScreenOverworld)
	s.HeartsMax = 5
	s.HeartsCurrent = 5
	v.Validate(s, 1)

	// A hearts_max violation on every frame: warnings must be >= 20 frames
	// apart.
	for f := 2; f <= 60; f++ {
		bad := gameplayState(detector.ScreenOverworld)
		bad.HeartsMax = 3
		v.Validate(bad, f)
	}
	var frames []int
	for _, a := range v.Anomalies() {
		if a.Detector == "hearts_max" {
			frames = append(frames, a.Frame)
		}
	}
	if len(frames) < 2 {
		t.Fatalf("expected multiple debounced anomalies, got %d", len(frames))
	}
	for i := 1; i < len(frames); i++ {
		if frames[i]-frames[i-1] < AnomalyDebounceFrames {
			t.Errorf("anomalies %d and %d are %d frames apart, expected >= %d",
				frames[i-1], frames[i], frames[i]-frames[i-1], AnomalyDebounceFrames)
		}
	}
}

func TestGannonNearbyStreak(t *testing.T) {
	v := NewValidator(nil)
	v.Validate(gameplayState(detector.ScreenDungeon), 1)

	// One flickering ROAR frame is held back.
	s := gameplayState(detector.ScreenDungeon)
	s.GannonNearby = true
	result := v.Validate(s, 2)
	if result.State.GannonNearby {
		t.Error("expected single-frame gannon_nearby held at false")
	}
	// The second consecutive frame accepts it.
	result = v.Validate(s, 3)
	if !result.State.GannonNearby {
		t.Error("expected gannon_nearby accepted after 2 frames")
	}
}

func TestDungeonLevelSticky(t *testing.T) {
	v := NewValidator(nil)
	s := gameplayState(detector.ScreenDungeon)
	s.DungeonLevel = 3
	v.Validate(s, 1)

	s2 := gameplayState(detector.ScreenDungeon)
	s2.DungeonLevel = 0
	result := v.Validate(s2, 2)
	if result.State.DungeonLevel != 3 {
		t.Errorf("expected dungeon level held at 3, got %d", result.State.DungeonLevel)
	}
}

func TestScreenTypeReinforcement(t *testing.T) {
	v := NewValidator(nil)
	s := gameplayState(detector.ScreenDungeon)
	s.DungeonLevel = 3
	v.Validate(s, 1)

	s2 := gameplayState(detector.ScreenOverworld)
	s2.DungeonLevel = 3
	result := v.Validate(s2, 2)
	if result.State.ScreenType != detector.ScreenDungeon {
		t.Errorf("expected screen_type forced to dungeon, got %s", result.State.ScreenType)
	}
}

func TestNonLosableItemRestored(t *testing.T) {
	v := NewValidator(nil)
	s := detector.NewGameState()
	s.ScreenType = detector.ScreenSubscreen
	s.Items = map[string]bool{"raft": true}
	v.Validate(s, 1)

	s2 := detector.NewGameState()
	s2.ScreenType = detector.ScreenSubscreen
	s2.Items = map[string]bool{"raft": false}
	result := v.Validate(s2, 2)
	if !result.State.Items["raft"] {
		t.Error("expected raft restored")
	}
}

func TestUpgradeChainAllowsBaseLoss(t *testing.T) {
	v := NewValidator(nil)
	s := detector.NewGameState()
	s.ScreenType = detector.ScreenSubscreen
	s.Items = map[string]bool{"blue_candle": true}
	v.Validate(s, 1)

	// Base vanishes WITH the upgrade present: allowed.
	s2 := detector.NewGameState()
	s2.ScreenType = detector.ScreenSubscreen
	s2.Items = map[string]bool{"blue_candle": false, "red_candle": true}
	result := v.Validate(s2, 2)
	if result.State.Items["blue_candle"] {
		t.Error("expected blue_candle allowed to vanish when red_candle present")
	}

	// Base vanishes WITHOUT the upgrade: restored.
	v2 := NewValidator(nil)
	v2.Validate(s, 1)
	s3 := detector.NewGameState()
	s3.ScreenType = detector.ScreenSubscreen
	s3.Items = map[string]bool{"blue_candle": false}
	result = v2.Validate(s3, 2)
	if !result.State.Items["blue_candle"] {
		t.Error("expected blue_candle restored without upgrade")
	}
}

func TestDungeonFirstVisitGatedOnGameplayStarted(t *testing.T) {
	v := NewValidator(nil)
	s := gameplayState(detector.ScreenDungeon)
	s.DungeonLevel = 1
	result := v.Validate(s, 1)
	for _, e := range result.Events {
		if e.Kind == EventDungeonFirstVisit {
			t.Fatal("expected no first-visit event before the gameplay latch")
		}
	}

	// Frame 1 only seeds the previous state; frames 2-121 are the 120
	// counted gameplay frames, so the latch and the event land on frame 121.
	for f := 2; f <= 120; f++ {
		v.Validate(s, f)
	}
	result = v.Validate(s, 121)
	found := false
	for _, e := range result.Events {
		if e.Kind == EventDungeonFirstVisit {
			found = true
		}
	}
	if !found {
		t.Error("expected dungeon_first_visit after the latch")
	}
}

func TestEventsNotCarriedForward(t *testing.T) {
	v := NewValidator(nil)
	for f := 1; f <= 121; f++ {
		v.Validate(gameplayState(detector.ScreenOverworld), f)
	}
	s := gameplayState(detector.ScreenOverworld)
	s.SwordLevel = 1
	result := v.Validate(s, 122)
	if len(result.Events) == 0 {
		t.Fatal("expected an event on the upgrade frame")
	}
	result = v.Validate(s, 123)
	if len(result.Events) != 0 {
		t.Errorf("expected no events on the following frame, got %d", len(result.Events))
	}
}

func TestBItemChangeFeedsAccumulator(t *testing.T) {
	v := NewValidator(nil)
	for f := 1; f <= 121; f++ {
		v.Validate(gameplayState(detector.ScreenOverworld), f)
	}
	s := gameplayState(detector.ScreenOverworld)
	s.BItem = "red_candle"
	v.Validate(s, 122)

	inv := v.AccumulatedInventory()
	if !inv["red_candle"] {
		t.Error("expected red_candle accumulated from b_item_change")
	}
	if !inv["blue_candle"] {
		t.Error("expected blue_candle implied by the upgrade chain")
	}
}
