package detector

import (
	"github.com/ttptv/vision/internal/nes"
	"github.com/ttptv/vision/internal/pix"
)

// Subscreen item slot positions in NES 256×240 space.
type slotRect struct{ Y, X, H, W int }

// Active items (selectable as B-item), two rows of four.
var activeItemSlots = map[string]slotRect{
	"boomerang": {72, 128, 8, 8},
	"bombs":     {72, 152, 8, 8},
	"bow":       {72, 176, 8, 8},
	"candle":    {72, 200, 8, 8},
	"recorder":  {88, 128, 8, 8},
	"food":      {88, 152, 8, 8},
	"potion":    {88, 176, 8, 8}, // letter -> blue potion -> red potion
	"magic_rod": {88, 200, 8, 8},
}

// Passive items shown in a row below the active grid.
var passiveItemSlots = map[string]slotRect{
	"raft":           {112, 128, 8, 8},
	"book":           {112, 144, 8, 8},
	"ring":           {112, 160, 8, 8},
	"ladder":         {112, 176, 8, 8},
	"magic_key":      {112, 192, 8, 8},
	"power_bracelet": {112, 208, 8, 8},
}

// Slots darker than this are empty.
const inventoryEmptyThreshold = 15

// InventoryReader reads the vanilla subscreen item grid.
//
// Z1R replaces the grid with a "SWAP" interface showing only the B-item
// selector and the triforce display. When the SWAP layout is detected,
// ReadItems returns an empty map and inventory tracking falls back to the
// event-based accumulator.
type InventoryReader struct{}

// NewInventoryReader returns a subscreen reader.
func NewInventoryReader() *InventoryReader { return &InventoryReader{} }

// ReadItems reads all inventory slots, or an empty map for a Z1R SWAP
// layout or partial-scroll subscreen.
func (ir *InventoryReader) ReadItems(f *nes.Frame) map[string]bool {
	if ir.isZ1RSwap(f) {
		return map[string]bool{}
	}

	items := make(map[string]bool, len(activeItemSlots)+len(passiveItemSlots))
	for name, s := range activeItemSlots {
		items[name] = tileOccupied(f.Extract(s.X, s.Y, s.W, s.H))
	}
	for name, s := range passiveItemSlots {
		items[name] = tileOccupied(f.Extract(s.X, s.Y, s.W, s.H))
	}
	ir.detectUpgrades(f, items)
	return items
}

// isZ1RSwap checks for the red "SWAP" text near the top (vanilla shows white
// INVENTORY), or a partial-scroll layout where the dark subscreen content is
// above a still-bright game area.
func (ir *InventoryReader) isZ1RSwap(f *nes.Frame) bool {
	region := f.Region(24, 0, 48, 40)
	if region.Empty() {
		return false
	}
	redCount := region.CountWhere(func(b, g, r uint8) bool {
		return r > 50 && int(r) > int(g)*2 && int(r) > int(b)*2
	})
	if redCount >= 10 {
		return true
	}

	top := f.Region(0, 0, nes.Width, 60)
	bottom := f.Region(0, 160, nes.Width, 60)
	if !top.Empty() && !bottom.Empty() {
		if top.Mean() < 30 && bottom.Mean() > 80 {
			return true
		}
	}
	return false
}

// detectUpgrades resolves in-place upgrades by slot color: boomerang →
// magic boomerang, blue → red candle, letter → blue → red potion, and the
// ring.
func (ir *InventoryReader) detectUpgrades(f *nes.Frame, items map[string]bool) {
	if items["boomerang"] {
		s := activeItemSlots["boomerang"]
		if dominantChannel(f.Extract(s.X, s.Y, s.W, s.H)) == "red" {
			items["boomerang"] = false
			items["magic_boomerang"] = true
		} else {
			items["magic_boomerang"] = false
		}
	}

	if items["candle"] {
		s := activeItemSlots["candle"]
		if dominantChannel(f.Extract(s.X, s.Y, s.W, s.H)) == "red" {
			items["red_candle"] = true
			items["blue_candle"] = false
		} else {
			items["blue_candle"] = true
			items["red_candle"] = false
		}
	}

	if items["potion"] {
		s := activeItemSlots["potion"]
		switch dominantChannel(f.Extract(s.X, s.Y, s.W, s.H)) {
		case "red":
			items["red_potion"] = true
			items["blue_potion"] = false
			items["letter"] = false
		case "blue":
			items["blue_potion"] = true
			items["red_potion"] = false
			items["letter"] = false
		default:
			items["letter"] = true
			items["blue_potion"] = false
			items["red_potion"] = false
		}
	}

	if items["ring"] {
		s := passiveItemSlots["ring"]
		if dominantChannel(f.Extract(s.X, s.Y, s.W, s.H)) == "red" {
			items["red_ring"] = true
			items["blue_ring"] = false
		} else {
			items["blue_ring"] = true
			items["red_ring"] = false
		}
	}
}

// ReadBItem reads the subscreen's B display via coarse color identification.
func (ir *InventoryReader) ReadBItem(f *nes.Frame) string {
	tile := f.Extract(128, 16, 16, 16)
	if !tileOccupied(tile) {
		return ""
	}
	switch dominantChannel(tile) {
	case "red":
		return "candle" // or red potion
	case "blue":
		return "boomerang" // or blue potion
	case "green":
		return "recorder"
	}
	return "unknown"
}

func tileOccupied(tile *pix.Image) bool {
	return tile.Mean() > inventoryEmptyThreshold
}

func dominantChannel(tile *pix.Image) string {
	b, g, r := tile.ChannelMeans()
	switch {
	case b >= g && b >= r:
		return "blue"
	case g >= b && g >= r:
		return "green"
	}
	return "red"
}
