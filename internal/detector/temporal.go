package detector

// TemporalBuffer smooths per-field detection flicker: a field's stable value
// only updates once the last N raw readings all agree. Single-frame
// misreads (hearts flickering during screen transitions) never reach the
// stable state. The approach follows the 3-frame buffering used by NES
// score-reading overlays.
type TemporalBuffer struct {
	size   int
	fields map[string]*fieldBuffer
	stable GameState
	frames int
}

type fieldBuffer struct {
	history []any
	equal   func(a, b any) bool
}

// NewTemporalBuffer builds a buffer requiring size consecutive matching
// readings per field.
func NewTemporalBuffer(size int) *TemporalBuffer {
	if size < 1 {
		size = 1
	}
	return &TemporalBuffer{
		size:   size,
		fields: map[string]*fieldBuffer{},
		stable: NewGameState(),
	}
}

// FrameCount returns the number of frames pushed so far.
func (tb *TemporalBuffer) FrameCount() int { return tb.frames }

// Push feeds one raw state and returns the stable state.
func (tb *TemporalBuffer) Push(raw GameState) GameState {
	tb.frames++

	tb.field("screen_type", raw.ScreenType, eqAny, func(v any) { tb.stable.ScreenType = v.(string) })
	tb.field("dungeon_level", raw.DungeonLevel, eqAny, func(v any) { tb.stable.DungeonLevel = v.(int) })
	tb.field("hearts_current", raw.HeartsCurrent, eqAny, func(v any) { tb.stable.HeartsCurrent = v.(int) })
	tb.field("hearts_max", raw.HeartsMax, eqAny, func(v any) { tb.stable.HeartsMax = v.(int) })
	tb.field("has_half_heart", raw.HasHalfHeart, eqAny, func(v any) { tb.stable.HasHalfHeart = v.(bool) })
	tb.field("rupees", raw.Rupees, eqAny, func(v any) { tb.stable.Rupees = v.(int) })
	tb.field("keys", raw.Keys, eqAny, func(v any) { tb.stable.Keys = v.(int) })
	tb.field("bombs", raw.Bombs, eqAny, func(v any) { tb.stable.Bombs = v.(int) })
	tb.field("bomb_max", raw.BombMax, eqAny, func(v any) { tb.stable.BombMax = v.(int) })
	tb.field("sword_level", raw.SwordLevel, eqAny, func(v any) { tb.stable.SwordLevel = v.(int) })
	tb.field("has_master_key", raw.HasMasterKey, eqAny, func(v any) { tb.stable.HasMasterKey = v.(bool) })
	tb.field("gannon_nearby", raw.GannonNearby, eqAny, func(v any) { tb.stable.GannonNearby = v.(bool) })
	tb.field("map_position", raw.MapPosition, eqAny, func(v any) { tb.stable.MapPosition = v.(int) })
	tb.field("b_item", raw.BItem, eqAny, func(v any) { tb.stable.BItem = v.(string) })
	tb.field("detected_item", raw.DetectedItem, eqAny, func(v any) { tb.stable.DetectedItem = v.(string) })
	tb.field("detected_item_y", raw.DetectedItemY, eqAny, func(v any) { tb.stable.DetectedItemY = v.(int) })
	tb.field("triforce", raw.Triforce, eqAny, func(v any) { tb.stable.Triforce = v.([8]bool) })
	tb.field("items", raw.Items, eqItemMaps, func(v any) { tb.stable.Items = v.(map[string]bool) })
	tb.field("floor_items", raw.FloorItems, eqFloorItems, func(v any) { tb.stable.FloorItems = v.([]FloorItem) })

	return tb.stable
}

// Reset clears all buffered state.
func (tb *TemporalBuffer) Reset() {
	tb.fields = map[string]*fieldBuffer{}
	tb.stable = NewGameState()
	tb.frames = 0
}

func (tb *TemporalBuffer) field(name string, value any, equal func(a, b any) bool, commit func(any)) {
	fb, ok := tb.fields[name]
	if !ok {
		fb = &fieldBuffer{equal: equal}
		tb.fields[name] = fb
	}
	fb.history = append(fb.history, value)
	if len(fb.history) > tb.size {
		fb.history = fb.history[1:]
	}
	if len(fb.history) < tb.size {
		return
	}
	first := fb.history[0]
	for _, v := range fb.history[1:] {
		if !fb.equal(first, v) {
			return
		}
	}
	commit(value)
}

func eqAny(a, b any) bool { return a == b }

func eqItemMaps(a, b any) bool {
	ma, _ := a.(map[string]bool)
	mb, _ := b.(map[string]bool)
	if len(ma) != len(mb) {
		return false
	}
	for k, v := range ma {
		if mb[k] != v {
			return false
		}
	}
	return true
}

func eqFloorItems(a, b any) bool {
	fa, _ := a.([]FloorItem)
	fb, _ := b.([]FloorItem)
	if len(fa) != len(fb) {
		return false
	}
	for i := range fa {
		if fa[i] != fb[i] {
			return false
		}
	}
	return true
}
