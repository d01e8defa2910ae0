package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server != "http://localhost:3000" {
		t.Errorf("unexpected default server %q", cfg.Server)
	}
	if cfg.BufferSize != 3 {
		t.Errorf("expected default buffer size 3, got %d", cfg.BufferSize)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vision.yaml")
	content := `
server: http://dashboard:9000
api_secret: hunter2
any_roads: [12, 29, 61, 109]
buffer_size: 5
live_feed: true
landmarks:
  - label: "-LIFE-"
    x: 176
    y: 40
    w: 40
    h: 8
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server != "http://dashboard:9000" {
		t.Errorf("unexpected server %q", cfg.Server)
	}
	if cfg.APISecret != "hunter2" {
		t.Errorf("unexpected secret %q", cfg.APISecret)
	}
	if len(cfg.AnyRoads) != 4 || cfg.AnyRoads[0] != 12 {
		t.Errorf("unexpected any_roads %v", cfg.AnyRoads)
	}
	if cfg.BufferSize != 5 {
		t.Errorf("expected buffer size 5, got %d", cfg.BufferSize)
	}
	if !cfg.LiveFeed {
		t.Error("expected live feed enabled")
	}
	if len(cfg.Landmarks) != 1 || cfg.Landmarks[0].Label != "-LIFE-" {
		t.Errorf("unexpected landmarks %v", cfg.Landmarks)
	}
	// Defaults survive a partial file.
	if cfg.Templates != "templates" {
		t.Errorf("expected default templates dir, got %q", cfg.Templates)
	}
}

func TestLoadBadBufferSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vision.yaml")
	if err := os.WriteFile(path, []byte("buffer_size: -2\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.BufferSize != 3 {
		t.Errorf("expected invalid buffer size replaced with 3, got %d", cfg.BufferSize)
	}
}
