package logic

import (
	"fmt"

	"github.com/ttptv/vision/internal/detector"
	"github.com/ttptv/vision/internal/nes"
)

// Items that cannot be lost once acquired.
var nonLosableItems = map[string]bool{
	"raft": true, "ladder": true, "book": true,
	"power_bracelet": true, "magic_key": true,
}

// Items that upgrade in place; the base may vanish only when the upgrade
// is present.
var upgradeChains = map[string]string{
	"boomerang":   "magic_boomerang",
	"blue_candle": "red_candle",
	"letter":      "blue_potion",
	"blue_potion": "red_potion",
	"blue_ring":   "red_ring",
}

// Known bomb capacity tiers.
var bombTiers = []int{8, 12, 16}

// Field streak thresholds: a change is accepted only after the new value
// holds for N consecutive gameplay frames.
var streakThresholds = map[string]int{
	"gannon_nearby": 2,
}

// After this many consecutive gameplay frames, the run has genuinely
// started; most events are gated on it to suppress attract-mode noise.
const gameplayStartedFrames = 120

// Validator orchestrates the sub-trackers, applies the validation rules,
// emits game events, and records anomalies. The frame order is part of the
// contract: ItemHoldTracker runs before DungeonExitTracker so a triforce
// inferred from the hold animation can short-circuit a same-frame exit
// verdict, and both run before WarpDeathTracker so the exit state can
// suppress the credits-roll death screen.
type Validator struct {
	prev     *detector.GameState
	havePrev bool

	anomalies        []Anomaly
	anyRoads         map[int]bool
	preCavePosition  int
	itemAnomalyOnce  map[string]bool
	lastAnomalyFrame map[string]int

	dungeonHeartFrame map[int]int

	// Canonical triforce vector; owned here, written in place by both the
	// dungeon-exit and item-hold trackers.
	triforceInferred [8]bool

	DungeonExit *DungeonExitTracker
	ItemHold    *ItemHoldTracker
	WarpDeath   *WarpDeathTracker
	Staircase   *StaircaseItemTracker
	FloorItems  *FloorItemTracker
	Accumulator *InventoryAccumulator

	gameEvents []Event

	gameplayStarted bool
	gameplayStreak  int
	lastTitleFrame  int

	ganonSeen bool

	fieldStreaks map[string]fieldStreak

	dungeonsVisited map[int]bool
	lastBItem       string
}

type fieldStreak struct {
	value any
	count int
}

// AnomalyDebounceFrames: a warning for the same detector within this many
// frames is suppressed.
const AnomalyDebounceFrames = 20

// NewValidator builds a coordinator. anyRoads is the optional set of Z1R
// Any-Roads overworld room indices (may be empty).
func NewValidator(anyRoads []int) *Validator {
	v := &Validator{
		anyRoads:          map[int]bool{},
		itemAnomalyOnce:   map[string]bool{},
		lastAnomalyFrame:  map[string]int{},
		dungeonHeartFrame: map[int]int{},
		fieldStreaks:      map[string]fieldStreak{},
		dungeonsVisited:   map[int]bool{},
	}
	for _, r := range anyRoads {
		v.anyRoads[r] = true
	}
	v.DungeonExit = NewDungeonExitTracker(&v.triforceInferred, v.recordAnomaly)
	v.ItemHold = NewItemHoldTracker(&v.triforceInferred, v.recordAnomaly)
	v.WarpDeath = NewWarpDeathTracker()
	v.Staircase = NewStaircaseItemTracker()
	v.FloorItems = NewFloorItemTracker()
	v.Accumulator = NewInventoryAccumulator()
	return v
}

// Result is the validated state plus the events emitted for this frame.
type Result struct {
	State  detector.GameState
	Events []Event
}

// Validate applies the frame pipeline: carry-forward, streak validation,
// event inference through the sub-trackers, then the validation rules.
func (v *Validator) Validate(current detector.GameState, frame int) Result {
	eventsStart := len(v.gameEvents)

	if !v.havePrev {
		v.setPrev(current)
		// Seed the warp tracker's reset positions from the first frame.
		if current.MapPosition > 0 {
			if current.ScreenType == detector.ScreenOverworld {
				v.WarpDeath.OverworldStart = current.MapPosition
			}
			if current.ScreenType == detector.ScreenDungeon && current.DungeonLevel > 0 {
				v.WarpDeath.DungeonEntrances[current.DungeonLevel] = current.MapPosition
			}
		}
		return Result{State: current}
	}

	prev := v.prev
	d := current // working copy; maps cloned so rules never mutate the input
	d.Items = copyItems(current.Items)

	// 1. Carry forward fields unreadable on this screen.
	gameplay := detector.IsGameplay(d.ScreenType)
	if !gameplay {
		d.HeartsCurrent = prev.HeartsCurrent
		d.HeartsMax = prev.HeartsMax
		d.HasHalfHeart = prev.HasHalfHeart
		d.Rupees = prev.Rupees
		d.Keys = prev.Keys
		d.Bombs = prev.Bombs
		d.HasMasterKey = prev.HasMasterKey
		d.GannonNearby = prev.GannonNearby
		d.MapPosition = prev.MapPosition
		d.DungeonLevel = prev.DungeonLevel
		d.BombMax = prev.BombMax
		d.SwordLevel = prev.SwordLevel
	}
	if d.ScreenType != detector.ScreenSubscreen {
		d.Items = copyItems(prev.Items)
		d.Triforce = prev.Triforce
	}
	if !gameplay && d.ScreenType != detector.ScreenSubscreen {
		d.BItem = prev.BItem
	}

	// 2. Streak validation for flappy HUD fields.
	if gameplay {
		v.applyStreak("gannon_nearby", &d.GannonNearby, prev.GannonNearby)
	}

	// 3. Gameplay-started latch.
	if d.ScreenType == detector.ScreenTitle {
		v.lastTitleFrame = frame
		v.gameplayStreak = 0
	} else if gameplay {
		v.gameplayStreak++
		if v.gameplayStreak >= gameplayStartedFrames && !v.gameplayStarted {
			v.gameplayStarted = true
		}
	}

	// 4. First-visit and subscreen-open events.
	if d.ScreenType == detector.ScreenDungeon && d.DungeonLevel > 0 &&
		v.gameplayStarted && !v.dungeonsVisited[d.DungeonLevel] {
		v.dungeonsVisited[d.DungeonLevel] = true
		v.emit(Event{
			Frame: frame, Kind: EventDungeonFirstVisit,
			Description:  fmt.Sprintf("Entered dungeon %d for the first time", d.DungeonLevel),
			DungeonLevel: d.DungeonLevel,
		})
	}
	if d.ScreenType == detector.ScreenSubscreen &&
		prev.ScreenType != detector.ScreenSubscreen && v.gameplayStarted {
		v.emit(Event{
			Frame: frame, Kind: EventSubscreenOpen,
			Description:  "Opened inventory",
			DungeonLevel: d.DungeonLevel,
		})
	}

	// 5. B-item change.
	if d.BItem != "" && d.BItem != v.lastBItem &&
		(gameplay || d.ScreenType == detector.ScreenSubscreen) && v.gameplayStarted {
		desc := "B-item: " + d.BItem
		if v.lastBItem != "" {
			desc += " (was " + v.lastBItem + ")"
		}
		v.emit(Event{
			Frame: frame, Kind: EventBItemChange,
			Description: desc, DungeonLevel: d.DungeonLevel,
		})
		v.lastBItem = d.BItem
	}

	// 6. Item-hold tracking (before the dungeon-exit machine).
	v.emitAll(v.ItemHold.ProcessFrame(
		current.DetectedItem, current.DetectedItemY,
		d.ScreenType, d.DungeonLevel, d.HeartsCurrent, d.HeartsMax, frame))

	// 7. Dungeon exit / triforce inference.
	v.emitAll(v.DungeonExit.ProcessFrame(
		d.ScreenType, d.DungeonLevel, d.HeartsCurrent, d.HeartsMax,
		prev.ScreenType, prev.DungeonLevel, frame))

	// 8. Warp/death detection.
	v.emitAll(v.WarpDeath.ProcessFrame(
		d.ScreenType, d.DungeonLevel, d.HeartsCurrent, d.HeartsMax,
		d.MapPosition, prev.ScreenType, prev.HeartsMax,
		v.gameplayStarted, v.DungeonExit.GameCompleted,
		v.gameEvents, frame, v.DungeonExit.IsExitingD9()))

	// 9. Staircase item tracking.
	v.emitAll(v.Staircase.Process(current.DetectedItem, d.ScreenType, d.DungeonLevel, frame))

	// 10. Floor item tracking.
	v.emitAll(v.FloorItems.Process(current.FloorItems, d.ScreenType, d.DungeonLevel,
		d.MapPosition, frame))

	// 11. Ganon fight transitions (D9, pre-completion).
	if d.ScreenType == detector.ScreenDungeon && d.DungeonLevel == 9 &&
		!v.DungeonExit.GameCompleted {
		if d.GannonNearby && !v.ganonSeen {
			v.ganonSeen = true
			v.emit(Event{
				Frame: frame, Kind: EventGanonFight,
				Description: "Entered Ganon fight (ROAR detected)", DungeonLevel: 9,
			})
		} else if !d.GannonNearby && v.ganonSeen {
			v.ganonSeen = false
			v.emit(Event{
				Frame: frame, Kind: EventGanonKill,
				Description: "Ganon defeated (ROAR ended)", DungeonLevel: 9,
			})
		}
	}

	// 12. Validation rules.

	// Rule 1: hearts_max monotonic.
	if d.HeartsMax < prev.HeartsMax && prev.HeartsMax > 0 {
		v.recordAnomaly(frame, "hearts_max",
			fmt.Sprintf("Max hearts decreased from %d to %d", prev.HeartsMax, d.HeartsMax),
			SeverityWarning)
		d.HeartsMax = prev.HeartsMax
	}

	// Rule 2: hearts_current clamped to max.
	if d.HeartsCurrent > d.HeartsMax {
		d.HeartsCurrent = d.HeartsMax
	}

	// Rule 3: triforce bits monotonic.
	for i := 0; i < 8; i++ {
		if prev.Triforce[i] && !d.Triforce[i] {
			v.recordAnomaly(frame, "triforce",
				fmt.Sprintf("Triforce piece %d disappeared", i+1), SeverityWarning)
			d.Triforce[i] = true
		}
	}

	// Rule 3b: merge inferred triforce bits.
	for i := 0; i < 8; i++ {
		if v.triforceInferred[i] {
			d.Triforce[i] = true
		}
	}

	// Sword upgrade event precedes Rule 4's monotonic enforcement.
	if d.SwordLevel > prev.SwordLevel && v.gameplayStarted {
		v.emit(Event{
			Frame: frame, Kind: EventSwordUpgrade,
			Description:  "Picked up " + swordName(d.SwordLevel),
			DungeonLevel: d.DungeonLevel,
		})
	}

	// Rule 4: sword_level monotonic.
	if d.SwordLevel < prev.SwordLevel && prev.SwordLevel > 0 {
		v.recordAnomaly(frame, "sword_level",
			fmt.Sprintf("Sword level decreased from %d to %d", prev.SwordLevel, d.SwordLevel),
			SeverityWarning)
		d.SwordLevel = prev.SwordLevel
	}

	// Rule 5: non-losable items are permanent. Logged once per item.
	for item := range nonLosableItems {
		if prev.Items[item] && !d.Items[item] {
			if !v.itemAnomalyOnce[item] {
				v.recordAnomaly(frame, "item:"+item,
					fmt.Sprintf("Non-losable item %s disappeared", item), SeverityWarning)
				v.itemAnomalyOnce[item] = true
			}
			d.Items[item] = true
		}
	}

	// Rule 6: a base item may vanish only when its upgrade is present.
	for base, upgrade := range upgradeChains {
		if prev.Items[base] && !d.Items[base] && !d.Items[upgrade] {
			if !v.itemAnomalyOnce[base] {
				v.recordAnomaly(frame, "item:"+base,
					fmt.Sprintf("Item %s disappeared without upgrade to %s", base, upgrade),
					SeverityWarning)
				v.itemAnomalyOnce[base] = true
			}
			d.Items[base] = true
		}
	}

	// Rule 7: rupees bounded.
	if d.Rupees < 0 {
		d.Rupees = 0
	}
	if d.Rupees > 255 {
		d.Rupees = 255
	}

	// Rule 8: master key is permanent.
	if prev.HasMasterKey && !d.HasMasterKey {
		v.recordAnomaly(frame, "has_master_key", "Master key disappeared", SeverityWarning)
		d.HasMasterKey = true
	}

	// Rule 9: bomb_max ratchets through the capacity tiers.
	observed := d.Bombs
	if prev.BombMax > observed {
		observed = prev.BombMax
	}
	d.BombMax = bombTiers[len(bombTiers)-1]
	for _, tier := range bombTiers {
		if observed <= tier {
			d.BombMax = tier
			break
		}
	}

	// Cave traversal tracking feeds Rule 10's cave-warp exception.
	if prev.ScreenType == detector.ScreenOverworld && d.ScreenType == detector.ScreenCave {
		v.preCavePosition = prev.MapPosition
	} else if prev.ScreenType != detector.ScreenCave && d.ScreenType != detector.ScreenCave {
		v.preCavePosition = 0
	}

	// Rule 10: map-position adjacency (same screen type only).
	v.checkAdjacency(prev, &d, frame)

	// Rule 11: dungeon_level sticky while still in dungeon/cave.
	if prev.DungeonLevel > 0 && d.DungeonLevel == 0 &&
		(d.ScreenType == detector.ScreenDungeon || d.ScreenType == detector.ScreenCave) &&
		(prev.ScreenType == detector.ScreenDungeon || prev.ScreenType == detector.ScreenCave) {
		v.recordAnomaly(frame, "dungeon_level",
			fmt.Sprintf("Dungeon level dropped to 0 while in %s", d.ScreenType), SeverityWarning)
		d.DungeonLevel = prev.DungeonLevel
	}

	// Rule 12: dungeon context overrides an overworld claim.
	if prev.ScreenType == detector.ScreenDungeon && prev.DungeonLevel > 0 &&
		d.ScreenType == detector.ScreenOverworld && d.DungeonLevel > 0 {
		v.recordAnomaly(frame, "screen_type",
			fmt.Sprintf("Classifier said overworld but dungeon level %d still present",
				d.DungeonLevel), SeverityWarning)
		d.ScreenType = detector.ScreenDungeon
	}

	// Heart container event.
	if detector.IsGameplay(d.ScreenType) && d.HeartsMax > prev.HeartsMax && prev.HeartsMax > 0 {
		var desc string
		switch {
		case d.ScreenType == detector.ScreenDungeon && d.DungeonLevel > 0:
			desc = fmt.Sprintf("Heart container in D%d (%d->%d)",
				d.DungeonLevel, prev.HeartsMax, d.HeartsMax)
			if _, ok := v.dungeonHeartFrame[d.DungeonLevel]; !ok {
				v.dungeonHeartFrame[d.DungeonLevel] = frame
			}
		case d.ScreenType == detector.ScreenCave:
			desc = fmt.Sprintf("Heart container in cave (%d->%d)", prev.HeartsMax, d.HeartsMax)
		default:
			desc = fmt.Sprintf("Heart container on overworld (%d->%d)", prev.HeartsMax, d.HeartsMax)
		}
		v.emit(Event{
			Frame: frame, Kind: EventHeartContainer,
			Description: desc, DungeonLevel: d.DungeonLevel,
		})
		v.recordAnomaly(frame, "heart_container", desc, SeverityInfo)
	}

	// Feed this frame's events into the inventory accumulator.
	frameEvents := v.gameEvents[eventsStart:]
	for _, evt := range frameEvents {
		v.Accumulator.ProcessEvent(evt)
	}
	if d.ScreenType == detector.ScreenSubscreen && len(d.Items) > 0 {
		v.Accumulator.ProcessSubscreen(d.Items)
	}

	v.setPrev(d)
	out := make([]Event, len(frameEvents))
	copy(out, frameEvents)
	return Result{State: d, Events: out}
}

// checkAdjacency implements Rule 10. Non-adjacent jumps are allowed (info
// severity) for Up+A resets to the overworld start, returns to a dungeon
// entrance, Any-Roads pairs, and recent cave transitions; anything else is
// a warning. Dungeon non-adjacency is always info; staircases teleport.
func (v *Validator) checkAdjacency(prev *detector.GameState, d *detector.GameState, frame int) {
	if prev.MapPosition <= 0 || d.MapPosition <= 0 || prev.ScreenType != d.ScreenType {
		return
	}
	switch d.ScreenType {
	case detector.ScreenOverworld:
		if nes.IsAdjacent(prev.MapPosition, d.MapPosition, nes.OverworldCols) {
			return
		}
		switch {
		case d.MapPosition == v.WarpDeath.OverworldStart:
			v.recordAnomaly(frame, "map_position",
				fmt.Sprintf("Up+A/Reset to start screen: %d -> %d",
					prev.MapPosition, d.MapPosition), SeverityInfo)
		case len(v.anyRoads) > 0 && v.anyRoads[prev.MapPosition] && v.anyRoads[d.MapPosition]:
			v.recordAnomaly(frame, "map_position",
				fmt.Sprintf("Any Roads warp: %d -> %d",
					prev.MapPosition, d.MapPosition), SeverityInfo)
		case v.preCavePosition > 0:
			v.recordAnomaly(frame, "map_position",
				fmt.Sprintf("Cave warp: %d -> %d",
					prev.MapPosition, d.MapPosition), SeverityInfo)
		default:
			v.recordAnomaly(frame, "map_position",
				fmt.Sprintf("Non-adjacent overworld jump: %d -> %d",
					prev.MapPosition, d.MapPosition), SeverityWarning)
		}

	case detector.ScreenDungeon:
		if nes.IsAdjacent(prev.MapPosition, d.MapPosition, nes.DungeonCols) {
			return
		}
		entrance := v.WarpDeath.DungeonEntrances[d.DungeonLevel]
		if entrance > 0 && d.MapPosition == entrance {
			v.recordAnomaly(frame, "map_position",
				fmt.Sprintf("Up+A to dungeon %d entrance: %d -> %d",
					d.DungeonLevel, prev.MapPosition, d.MapPosition), SeverityInfo)
		} else {
			v.recordAnomaly(frame, "map_position",
				fmt.Sprintf("Non-adjacent dungeon jump (staircase?): %d -> %d",
					prev.MapPosition, d.MapPosition), SeverityInfo)
		}
	}
}

// applyStreak holds a boolean field at its previous value until the new
// reading persists for its threshold of consecutive gameplay frames.
func (v *Validator) applyStreak(field string, value *bool, prevValue bool) {
	threshold := streakThresholds[field]
	raw := *value
	if raw == prevValue {
		delete(v.fieldStreaks, field)
		return
	}
	pending, ok := v.fieldStreaks[field]
	if ok && pending.value == any(raw) {
		if pending.count+1 >= threshold {
			delete(v.fieldStreaks, field)
			return // change accepted
		}
		v.fieldStreaks[field] = fieldStreak{value: raw, count: pending.count + 1}
		*value = prevValue
		return
	}
	v.fieldStreaks[field] = fieldStreak{value: raw, count: 1}
	*value = prevValue
}

// Anomalies returns all recorded anomalies.
func (v *Validator) Anomalies() []Anomaly {
	out := make([]Anomaly, len(v.anomalies))
	copy(out, v.anomalies)
	return out
}

// Events returns the full session event stream.
func (v *Validator) Events() []Event {
	out := make([]Event, len(v.gameEvents))
	copy(out, v.gameEvents)
	return out
}

// AccumulatedInventory returns the event-based inventory (Z1R substitute
// for the unreadable SWAP subscreen).
func (v *Validator) AccumulatedInventory() map[string]bool {
	return v.Accumulator.Inventory()
}

// TriforceInferred returns a copy of the inferred triforce vector.
func (v *Validator) TriforceInferred() [8]bool { return v.triforceInferred }

// GameplayStarted reports the 120-frame gameplay latch.
func (v *Validator) GameplayStarted() bool { return v.gameplayStarted }

// GameCompleted reports whether the D9 exit fired.
func (v *Validator) GameCompleted() bool { return v.DungeonExit.GameCompleted }

// Reset clears all validation and tracker state.
func (v *Validator) Reset() {
	v.prev = nil
	v.havePrev = false
	v.anomalies = nil
	v.preCavePosition = 0
	v.itemAnomalyOnce = map[string]bool{}
	v.lastAnomalyFrame = map[string]int{}
	v.dungeonHeartFrame = map[int]int{}
	for i := range v.triforceInferred {
		v.triforceInferred[i] = false
	}
	v.DungeonExit.Reset()
	v.ItemHold.Reset()
	v.WarpDeath.Reset()
	v.Staircase.reset()
	v.FloorItems.reset()
	v.Accumulator.Reset()
	v.gameplayStarted = false
	v.gameplayStreak = 0
	v.lastTitleFrame = 0
	v.ganonSeen = false
	v.fieldStreaks = map[string]fieldStreak{}
	v.dungeonsVisited = map[int]bool{}
	v.lastBItem = ""
	v.gameEvents = nil
}

func (v *Validator) emit(e Event)       { v.gameEvents = append(v.gameEvents, e) }
func (v *Validator) emitAll(es []Event) { v.gameEvents = append(v.gameEvents, es...) }

// recordAnomaly applies the per-detector debounce to warnings; info records
// pass through.
func (v *Validator) recordAnomaly(frame int, det, description, severity string) {
	if severity != SeverityInfo {
		if last, ok := v.lastAnomalyFrame[det]; ok && frame-last < AnomalyDebounceFrames {
			return
		}
	}
	v.lastAnomalyFrame[det] = frame
	v.anomalies = append(v.anomalies, Anomaly{
		Frame: frame, Detector: det, Description: description, Severity: severity,
	})
}

func (v *Validator) setPrev(s detector.GameState) {
	cp := s
	cp.Items = copyItems(s.Items)
	v.prev = &cp
	v.havePrev = true
}

func copyItems(items map[string]bool) map[string]bool {
	out := make(map[string]bool, len(items))
	for k, val := range items {
		out[k] = val
	}
	return out
}

func swordName(level int) string {
	switch level {
	case 1:
		return "Wooden Sword"
	case 2:
		return "White Sword"
	case 3:
		return "Magical Sword"
	}
	return fmt.Sprintf("Sword level %d", level)
}
