// Package config loads the pipeline's YAML configuration file into the
// recursive map[string]any shape phase.RunContext.Config expects: global
// fields at the top level, a nested phases.<name> subtree per phase.
package config

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
)

// DefaultFileName is the config file looked for in the current directory
// when --config is not given.
const DefaultFileName = "dub.config.yaml"

// Config is the loaded configuration. Raw holds the full decoded document
// so RunContext.Config (which expects a plain map[string]any) can be built
// directly from it without re-marshaling.
type Config struct {
	Raw map[string]any

	// Top-level fields phases read directly, mirrored here with their own
	// zero values so callers are not forced to type-assert Raw for the
	// common ones.
	VideoPath string
	MTEngine  string
	MTModel   string
	path      string
}

// Load reads the config file at path. If path is empty, DefaultFileName in
// the current directory is used; a missing default file is not an error
// (phases that touch no secrets, like `phases`, must still work without a
// config file) and Load returns an empty Config. A missing file at an
// explicitly given path is an error.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if path == "" {
		path = DefaultFileName
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return &Config{Raw: map[string]any{}}, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if raw == nil {
		raw = map[string]any{}
	}

	cfg := &Config{Raw: raw, path: path}
	cfg.VideoPath, _ = raw["video_path"].(string)
	cfg.MTEngine, _ = raw["mt_engine"].(string)
	cfg.MTModel, _ = raw["mt_model"].(string)
	return cfg, nil
}

// Path returns the file path Load read from, or "" for an in-memory
// default config.
func (c *Config) Path() string { return c.path }

// WithVideoPath returns a copy of c with video_path set in both Raw and
// the typed field, as run's CLI argument resolution requires (the video
// path is a command-line argument, not something read from the config
// file, so it is injected here after Load).
func (c *Config) WithVideoPath(videoPath string) *Config {
	raw := make(map[string]any, len(c.Raw)+1)
	for k, v := range c.Raw {
		raw[k] = v
	}
	raw["video_path"] = videoPath
	return &Config{Raw: raw, VideoPath: videoPath, MTEngine: c.MTEngine, MTModel: c.MTModel, path: c.path}
}

// PhaseConfig returns the config.phases[name] subtree, or an empty map if
// absent or malformed.
func (c *Config) PhaseConfig(name string) map[string]any {
	phases, ok := c.Raw["phases"].(map[string]any)
	if !ok {
		return map[string]any{}
	}
	sub, ok := phases[name].(map[string]any)
	if !ok {
		return map[string]any{}
	}
	return sub
}
