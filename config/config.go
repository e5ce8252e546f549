// Package config loads the optional playtest.yaml file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/playtest/playtest/recorder"
	"gopkg.in/yaml.v3"
)

// DefaultFile is read from the working directory when --config is not given.
const DefaultFile = "playtest.yaml"

// Config holds the settings that may be given in playtest.yaml.
// Command line flags take precedence.
type Config struct {
	// Root directory of report artifacts
	ReportsDir string `yaml:"reports_dir"`
	// Enable debug logging
	Verbose bool `yaml:"verbose"`
	// Number of packages go test runs in parallel (0: go default)
	Parallel int `yaml:"parallel"`
	// Build tags passed to go test
	Tags string `yaml:"tags"`
	// Test name filter passed to go test -run
	Run string `yaml:"run"`
	// Rotating log file, in addition to stderr
	LogFile string `yaml:"log_file"`
	// Colourize terminal output (default: true)
	Color *bool `yaml:"color"`
}

// Default returns the configuration used without a config file.
func Default() Config {
	return Config{ReportsDir: recorder.DefaultReportsDir}
}

// ColorEnabled reports whether terminal output is colourized.
func (c Config) ColorEnabled() bool {
	return c.Color == nil || *c.Color
}

// Load reads the config file at path. A missing file is only an error when
// explicit is set.
func Load(path string, explicit bool) (Config, error) {
	if path == "" {
		path = DefaultFile
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !explicit {
			return Default(), nil
		}
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML config data. Unknown keys are rejected.
func Parse(data []byte) (Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, err
	}

	if cfg.ReportsDir == "" {
		cfg.ReportsDir = recorder.DefaultReportsDir
	}
	if cfg.Parallel < 0 {
		return Config{}, fmt.Errorf("parallel must not be negative, got %d", cfg.Parallel)
	}
	return cfg, nil
}
