package profile

import (
	"path/filepath"
	"testing"
)

func sampleProfile() *CropProfile {
	return &CropProfile{
		StreamWidth:  1920,
		StreamHeight: 1080,
		CropX:        420, CropY: 60, CropW: 720, CropH: 675,
		GridDX: 1, GridDY: 2,
		LifeRow: 5,
		Landmarks: []Landmark{
			{Label: "-LIFE-", X: 176, Y: 40, W: 40, H: 8},
			{Label: "Hearts", X: 176, Y: 32, W: 64, H: 16},
		},
	}
}

func TestProfileJSONRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.json")
	p := sampleProfile()
	if err := p.Save(path); err != nil {
		t.Fatal(err)
	}
	loaded, err := LoadProfile(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.CropW != 720 || loaded.GridDY != 2 || loaded.LifeRow != 5 {
		t.Errorf("round trip lost fields: %+v", loaded)
	}
	if len(loaded.Landmarks) != 2 || loaded.Landmarks[0].Label != "-LIFE-" {
		t.Errorf("round trip lost landmarks: %+v", loaded.Landmarks)
	}
}

func TestParseLandmarks(t *testing.T) {
	lms, err := ParseLandmarks(`[{"label":"B","x":128,"y":16,"w":16,"h":24}]`)
	if err != nil {
		t.Fatal(err)
	}
	if len(lms) != 1 || lms[0].Label != "B" || lms[0].W != 16 {
		t.Errorf("unexpected landmarks %+v", lms)
	}
	if _, err := ParseLandmarks("not json"); err == nil {
		t.Error("expected an error for malformed landmarks")
	}
}

func TestStoreRoundTrip(t *testing.T) {
	store, err := OpenStore(filepath.Join(t.TempDir(), "profiles.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	p := sampleProfile()
	if err := store.PutProfile(p); err != nil {
		t.Fatal(err)
	}
	if p.ID == "" {
		t.Fatal("expected an ID assigned")
	}

	got, err := store.GetProfile(p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Fatal("expected the stored profile back")
	}
	if got.CropX != 420 || got.GridDX != 1 {
		t.Errorf("stored profile lost fields: %+v", got)
	}
	if len(got.Landmarks) != 2 {
		t.Errorf("stored profile lost landmarks: %+v", got.Landmarks)
	}

	byDims, err := store.FindByDims(1920, 1080)
	if err != nil {
		t.Fatal(err)
	}
	if byDims == nil || byDims.ID != p.ID {
		t.Error("expected dimension lookup to find the profile")
	}

	missing, err := store.GetProfile("nope")
	if err != nil {
		t.Fatal(err)
	}
	if missing != nil {
		t.Error("expected nil for an unknown id")
	}
}

func TestStoreLearnSessions(t *testing.T) {
	store, err := OpenStore(filepath.Join(t.TempDir(), "profiles.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	if err := store.RecordLearnSession("", "bogie", "/tmp/report.json", 1200); err != nil {
		t.Fatal(err)
	}
}
