package detector

import (
	"fmt"
	"path/filepath"

	"github.com/ttptv/vision/internal/autocrop"
	"github.com/ttptv/vision/internal/nes"
	"github.com/ttptv/vision/internal/profile"
)

// GameState is the canonical per-frame detection snapshot. Field groups have
// distinct read conditions: HUD fields on gameplay screens, Items/Triforce
// on the subscreen, BItem on both; the validator carries everything else
// forward.
type GameState struct {
	ScreenType   string `json:"screen_type"`
	DungeonLevel int    `json:"dungeon_level"`

	HeartsCurrent int  `json:"hearts_current"`
	HeartsMax     int  `json:"hearts_max"`
	HasHalfHeart  bool `json:"has_half_heart"`
	Rupees        int  `json:"rupees"`
	Keys          int  `json:"keys"`
	Bombs         int  `json:"bombs"`
	BombMax       int  `json:"bomb_max"`
	SwordLevel    int  `json:"sword_level"`
	HasMasterKey  bool `json:"has_master_key"`
	GannonNearby  bool `json:"gannon_nearby"`
	MapPosition   int  `json:"map_position"`

	BItem string `json:"b_item,omitempty"`

	Items    map[string]bool `json:"items"`
	Triforce [8]bool         `json:"triforce"`

	DetectedItem  string      `json:"detected_item,omitempty"`
	DetectedItemY int         `json:"detected_item_y,omitempty"`
	FloorItems    []FloorItem `json:"floor_items,omitempty"`
}

// NewGameState returns the per-frame default state (3 heart containers, the
// base 8-bomb capacity).
func NewGameState() GameState {
	return GameState{
		ScreenType: ScreenUnknown,
		HeartsMax:  3,
		BombMax:    8,
		Items:      map[string]bool{},
	}
}

// StateDetector orchestrates the sub-detectors to produce a GameState from
// one NES frame.
type StateDetector struct {
	Classifier *ScreenClassifier
	Hud        *HudReader
	Digits     *DigitReader
	ItemsR     *ItemReader
	Inventory  *InventoryReader
	TriforceR  *TriforceReader
	ItemDet    *ItemDetector
	FloorDet   *FloorItemDetector
	Ganon      *GanonDetector

	PlayerItems *PlayerItemTracker
	RaceItems   *RaceItemTracker

	hasLifeLandmark bool
}

// NewStateDetector loads all template tables from templateDir (digits/,
// items/, drops/, enemies/) and wires the sub-detectors.
func NewStateDetector(templateDir string, lifeRow int, landmarks []profile.Landmark) (*StateDetector, error) {
	digits, err := NewDigitReader(filepath.Join(templateDir, "digits"))
	if err != nil {
		return nil, fmt.Errorf("load digit templates: %w", err)
	}
	items, err := NewItemReader(filepath.Join(templateDir, "items"), 10)
	if err != nil {
		return nil, fmt.Errorf("load item templates: %w", err)
	}
	floorDet, err := NewFloorItemDetector(items, filepath.Join(templateDir, "drops"), 0.85)
	if err != nil {
		return nil, fmt.Errorf("load drop templates: %w", err)
	}
	ganon, err := NewGanonDetector(filepath.Join(templateDir, "enemies"))
	if err != nil {
		return nil, fmt.Errorf("load enemy templates: %w", err)
	}

	hasLife := false
	for _, lm := range landmarks {
		if lm.Label == "-LIFE-" {
			hasLife = true
		}
	}

	return &StateDetector{
		Classifier:      NewScreenClassifier(lifeRow),
		Hud:             NewHudReader(lifeRow, landmarks),
		Digits:          digits,
		ItemsR:          items,
		Inventory:       NewInventoryReader(),
		TriforceR:       NewTriforceReader(),
		ItemDet:         NewItemDetector(items),
		FloorDet:        floorDet,
		Ganon:           ganon,
		PlayerItems:     NewPlayerItemTracker(),
		RaceItems:       NewRaceItemTracker(),
		hasLifeLandmark: hasLife,
	}, nil
}

// Detect reads the full game state out of a frame.
func (sd *StateDetector) Detect(f *nes.Frame) GameState {
	state := NewGameState()

	// With no calibrated landmarks (standalone use, golden frames), derive
	// the grid offset from the frame itself, then sharpen it with digit
	// templates; LIFE redness bleeds ±1px on frames resized from non-native
	// resolutions.
	if !sd.hasLifeLandmark {
		canonical := f.ToCanonical()
		if dx, dy, _, ok := autocrop.FindGridAlignment(canonical); ok {
			dx, dy = sd.refineGrid(f, dx, dy)
			f.GridDX = dx
			f.GridDY = dy
		}
	}

	state.ScreenType = sd.Classifier.Classify(f)

	// Safety correction: a non-gameplay classification with the HUD present
	// is a classifier miss; re-derive the gameplay type from brightness.
	if !IsGameplay(state.ScreenType) && sd.Hud.IsHUDPresent(f) {
		brightness := f.GameArea().Mean()
		switch {
		case brightness < dungeonBrightnessMax:
			state.ScreenType = ScreenDungeon
		case brightness < caveBrightnessMax:
			state.ScreenType = ScreenCave
		default:
			state.ScreenType = ScreenOverworld
		}
	}

	if IsGameplay(state.ScreenType) && sd.Hud.IsHUDPresent(f) {
		// LEVEL-X can correct the type for bright dungeons.
		if lvl := sd.Hud.ReadDungeonLevel(f, sd.Digits); lvl > 0 {
			state.DungeonLevel = lvl
			state.ScreenType = ScreenDungeon
		}

		state.HeartsCurrent, state.HeartsMax, state.HasHalfHeart = sd.Hud.ReadHearts(f)
		state.Rupees = sd.Hud.ReadRupees(f, sd.Digits)
		state.Keys, state.HasMasterKey = sd.Hud.ReadKeys(f, sd.Digits)
		state.Bombs = sd.Hud.ReadBombs(f, sd.Digits)
		state.SwordLevel = sd.Hud.ReadSword(f)
		state.BItem = sd.Hud.ReadBItem(f, sd.ItemsR)

		sd.PlayerItems.UpdateFromBItem(state.BItem)
		sd.PlayerItems.UpdateSwordLevel(state.SwordLevel)

		state.GannonNearby = sd.Hud.ReadLifeRoar(f)
		if !state.GannonNearby {
			state.GannonNearby = sd.Ganon.Detect(f, state.ScreenType, state.DungeonLevel)
		}

		state.MapPosition = sd.Hud.ReadMinimapPosition(f, state.ScreenType == ScreenDungeon)

		if items := sd.ItemDet.DetectItems(f, state.ScreenType); len(items) > 0 {
			state.DetectedItem = items[0].ItemType
			state.DetectedItemY = items[0].Y
		}

		state.FloorItems = sd.FloorDet.Detect(f, state.ScreenType)
		for _, fi := range state.FloorItems {
			sd.RaceItems.ItemSeen(fi.Name, state.MapPosition, 0)
		}
	}

	if state.ScreenType == ScreenSubscreen {
		state.Items = sd.Inventory.ReadItems(f)
		state.Triforce = sd.TriforceR.ReadTriforce(f)
		state.BItem = sd.Inventory.ReadBItem(f)
		sd.PlayerItems.MergeSubscreen(state.Items)
	}

	return state
}

// refineGrid sharpens (dx, dy) with digit-template matches across HUD rows.
// Quality is the minimum per-row average digit score over the rupee (row 2),
// level (row 1), and keys (row 4) rows; the minimum stops one high-scoring
// row from overriding dy when the others disagree. The bomb row is excluded
// deliberately: on 4.5× vertical scales its digit sits 1px below the global
// offset and would score poorly at the correct dy. dy is searched ±1 around
// the initial estimate, dx across the full tile.
func (sd *StateDetector) refineGrid(f *nes.Frame, initialDX, initialDY int) (int, int) {
	rowSpecs := []struct {
		cols []int
		row  int
	}{
		{[]int{12, 13, 14}, 2},
		{[]int{8}, 1},
		{[]int{13}, 4},
	}
	bestDX, bestDY := initialDX, initialDY
	bestScore := -1.0
	dyLo := initialDY - 1
	if dyLo < 0 {
		dyLo = 0
	}
	dyHi := initialDY + 2
	if dyHi > 8 {
		dyHi = 8
	}
	for dy := dyLo; dy < dyHi; dy++ {
		for dx := 0; dx < 8; dx++ {
			quality := -1.0
			usable := false
			for _, spec := range rowSpecs {
				total, count := 0.0, 0
				for _, col := range spec.cols {
					x := col*8 + dx
					y := spec.row*8 + dy
					if x+8 > nes.Width || y+8 > nes.Height {
						continue
					}
					tile := f.Extract(x, y, 8, 8)
					if tile.Mean() < 10 {
						continue
					}
					_, score := sd.Digits.ReadDigit(tile)
					total += score
					count++
				}
				if count > 0 {
					avg := total / float64(count)
					if !usable || avg < quality {
						quality = avg
					}
					usable = true
				}
			}
			if usable && quality > bestScore {
				bestScore = quality
				bestDX, bestDY = dx, dy
			}
		}
	}
	return bestDX, bestDY
}
