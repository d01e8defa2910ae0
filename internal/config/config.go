// Package config loads the engine's YAML configuration file. Command-line
// flags override file values; the file carries the settings that rarely
// change per run (server endpoint, API secret, Any-Roads set, buffer depth).
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ttptv/vision/internal/profile"
)

// Config is the engine configuration.
type Config struct {
	Server    string `yaml:"server"`
	APISecret string `yaml:"api_secret"` // enables JWT bearer auth when set

	Templates string `yaml:"templates"`
	DataDir   string `yaml:"data_dir"`
	Layouts   string `yaml:"layouts"` // common-crop-layouts.json path

	// Z1R Any-Roads overworld room indices; may be empty.
	AnyRoads []int `yaml:"any_roads"`

	// Temporal stability depth; 0 uses the default of 3.
	BufferSize int `yaml:"buffer_size"`

	// Optional landmark overrides, same shape as the crop-profile field.
	Landmarks []profile.Landmark `yaml:"landmarks"`

	// Dial the websocket live feed in addition to HTTP deltas.
	LiveFeed bool `yaml:"live_feed"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server:     "http://localhost:3000",
		Templates:  "templates",
		DataDir:    "data",
		Layouts:    "data/common-crop-layouts.json",
		BufferSize: 3,
	}
}

// Load reads a YAML config file over the defaults. An empty path returns
// the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 3
	}
	return cfg, nil
}
