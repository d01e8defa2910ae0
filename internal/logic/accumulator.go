package logic

import "strings"

// Seeing the upgraded item implies the base item was obtained first.
var upgradeImplies = map[string][]string{
	"red_candle":        {"blue_candle"},
	"magical_boomerang": {"boomerang"},
	"silver_arrow":      {"arrow", "bow"},
	"red_ring":          {"blue_ring"},
	"red_potion":        {"blue_potion", "letter"},
	"blue_potion":       {"letter"},
	"magical_shield":    {},
	"white_sword":       {"wood_sword"},
	"magical_sword":     {"wood_sword", "white_sword"},
}

// B-item names from the HUD reader that differ from inventory slot names.
var bItemToInventory = map[string]string{
	"boomerang":         "boomerang",
	"magical_boomerang": "magical_boomerang",
	"bomb":              "bombs",
	"bow":               "bow",
	"arrow":             "arrow",
	"silver_arrow":      "silver_arrow",
	"blue_candle":       "blue_candle",
	"red_candle":        "red_candle",
	"recorder":          "recorder",
	"bait":              "bait",
	"letter":            "letter",
	"potion_blue":       "blue_potion",
	"potion_red":        "red_potion",
	"wand":              "wand",
}

// AllInventoryItems is the trackable inventory set the overlay displays.
var AllInventoryItems = []string{
	"boomerang", "magical_boomerang",
	"bombs", "bow", "arrow", "silver_arrow",
	"blue_candle", "red_candle",
	"recorder", "bait", "letter",
	"blue_potion", "red_potion",
	"wand", "magical_shield",
	"raft", "book", "blue_ring", "red_ring",
	"ladder", "magic_key", "power_bracelet",
}

// InventoryAccumulator builds a cumulative inventory from game events. Z1R
// replaces the vanilla subscreen with a SWAP interface the inventory reader
// cannot parse, so the overlay's inventory is inferred from b_item_change,
// staircase_item_acquired, item_obtained, and sword_upgrade events instead,
// with upgrade-chain implications applied.
type InventoryAccumulator struct {
	obtained map[string]bool
}

// NewInventoryAccumulator returns an empty accumulator.
func NewInventoryAccumulator() *InventoryAccumulator {
	return &InventoryAccumulator{obtained: map[string]bool{}}
}

// ProcessEvent updates inventory knowledge from one game event.
func (a *InventoryAccumulator) ProcessEvent(evt Event) {
	switch evt.Kind {
	case EventBItemChange:
		a.addFromBItemDescription(evt.Description)
	case EventStaircaseItemAcquired:
		if evt.Item != "" {
			a.addItem(evt.Item)
		}
	case "item_obtained", EventItemPickup:
		if evt.Item != "" {
			a.addItem(evt.Item)
		}
	case EventSwordUpgrade:
		switch {
		case strings.Contains(evt.Description, "Magical Sword"):
			a.addItem("magical_sword")
		case strings.Contains(evt.Description, "White Sword"):
			a.addItem("white_sword")
		case strings.Contains(evt.Description, "Wooden Sword"):
			a.addItem("wood_sword")
		}
	}
}

// ProcessSubscreen seeds from a vanilla inventory scan: every true item
// merges in.
func (a *InventoryAccumulator) ProcessSubscreen(items map[string]bool) {
	for name, hasIt := range items {
		if hasIt {
			a.addItem(name)
		}
	}
}

// Inventory returns the full tracked-item map.
func (a *InventoryAccumulator) Inventory() map[string]bool {
	out := make(map[string]bool, len(AllInventoryItems))
	for _, name := range AllInventoryItems {
		out[name] = a.obtained[name]
	}
	return out
}

// HasAny reports whether anything has been accumulated.
func (a *InventoryAccumulator) HasAny() bool { return len(a.obtained) > 0 }

// Reset clears all accumulated inventory.
func (a *InventoryAccumulator) Reset() { a.obtained = map[string]bool{} }

func (a *InventoryAccumulator) addItem(name string) {
	a.obtained[name] = true
	for _, implied := range upgradeImplies[name] {
		a.obtained[implied] = true
	}
}

// addFromBItemDescription parses "B-item: <name>" or "B-item: <name> (was <old>)".
func (a *InventoryAccumulator) addFromBItemDescription(description string) {
	const prefix = "B-item: "
	if !strings.HasPrefix(description, prefix) {
		return
	}
	rest := description[len(prefix):]
	if i := strings.Index(rest, " (was "); i >= 0 {
		rest = rest[:i]
	}
	inv, ok := bItemToInventory[rest]
	if !ok {
		inv = rest
	}
	a.addItem(inv)
}
