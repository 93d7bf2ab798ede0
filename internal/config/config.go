// Package config loads the optional workspace configuration file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/CyberZod/IJAC-PRO-ANTI/internal/logging"
	"github.com/hashicorp/hcl/v2/hclsimple"
)

// DefaultFile is looked up in the working directory when no --config is given.
const DefaultFile = "lineage.hcl"

// Config is the workspace configuration.
type Config struct {
	DataDir      string        `hcl:"data_dir,optional"`
	MappingFile  string        `hcl:"mapping_file,optional"`
	RegistryFile string        `hcl:"registry_file,optional"`
	LogLevel     string        `hcl:"log_level,optional"`
	LogFormat    string        `hcl:"log_format,optional"`
	Enrich       *EnrichConfig `hcl:"enrich,block"`
}

// EnrichConfig tunes enrichment passes.
type EnrichConfig struct {
	BatchSize         int      `hcl:"batch_size,optional"`
	Concurrency       int      `hcl:"concurrency,optional"`
	RatePerSecond     float64  `hcl:"rate_per_second,optional"`
	ClassifierCommand []string `hcl:"classifier_command,optional"`
	Timeout           string   `hcl:"timeout,optional"`
}

// Default returns a Config with default values.
func Default() Config {
	return Config{
		DataDir:      ".tmp",
		MappingFile:  "mapping.json",
		RegistryFile: "registry.json",
		LogLevel:     "info",
		LogFormat:    "text",
		Enrich: &EnrichConfig{
			BatchSize:   20,
			Concurrency: 1,
			Timeout:     "5m",
		},
	}
}

// Load reads path (an .hcl or .json file) over the defaults. An empty path
// means DefaultFile, which may be absent; an explicit path must exist.
func Load(path string) (Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	cfg := Default()

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) && !explicit {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	var file Config
	if err := hclsimple.DecodeFile(path, nil, &file); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	cfg.merge(file)
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// merge overlays the fields file sets.
func (c *Config) merge(file Config) {
	if file.DataDir != "" {
		c.DataDir = file.DataDir
	}
	if file.MappingFile != "" {
		c.MappingFile = file.MappingFile
	}
	if file.RegistryFile != "" {
		c.RegistryFile = file.RegistryFile
	}
	if file.LogLevel != "" {
		c.LogLevel = file.LogLevel
	}
	if file.LogFormat != "" {
		c.LogFormat = file.LogFormat
	}
	if e := file.Enrich; e != nil {
		if e.BatchSize != 0 {
			c.Enrich.BatchSize = e.BatchSize
		}
		if e.Concurrency != 0 {
			c.Enrich.Concurrency = e.Concurrency
		}
		if e.RatePerSecond != 0 {
			c.Enrich.RatePerSecond = e.RatePerSecond
		}
		if len(e.ClassifierCommand) > 0 {
			c.Enrich.ClassifierCommand = e.ClassifierCommand
		}
		if e.Timeout != "" {
			c.Enrich.Timeout = e.Timeout
		}
	}
}

// Validate checks every field, naming the first bad one.
func (c Config) Validate() error {
	if c.DataDir == "" {
		return errors.New("data_dir: must not be empty")
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("log_format: want text or json, got %q", c.LogFormat)
	}
	if c.Enrich == nil {
		return nil
	}
	if c.Enrich.BatchSize < 1 {
		return fmt.Errorf("enrich.batch_size: must be at least 1, got %d", c.Enrich.BatchSize)
	}
	if c.Enrich.Concurrency < 1 {
		return fmt.Errorf("enrich.concurrency: must be at least 1, got %d", c.Enrich.Concurrency)
	}
	if c.Enrich.RatePerSecond < 0 {
		return fmt.Errorf("enrich.rate_per_second: must not be negative")
	}
	if _, err := c.Enrich.TimeoutDuration(); err != nil {
		return fmt.Errorf("enrich.timeout: %w", err)
	}
	return nil
}

// TimeoutDuration parses Timeout; empty means no timeout.
func (e *EnrichConfig) TimeoutDuration() (time.Duration, error) {
	if e.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(e.Timeout)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %s", e.Timeout)
	}
	return d, nil
}
