// Package config holds the YAML run configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

var ErrInvalid = errors.New("invalid configuration")

type Config struct {
	Engine  EngineConfig  `yaml:"engine"`
	Profile ProfileConfig `yaml:"profile"`
	Output  OutputConfig  `yaml:"output"`
	Log     LogConfig     `yaml:"log"`
	Server  ServerConfig  `yaml:"server"`
}

// EngineConfig sizes the data-parallel executor. Zero picks a default from
// the CPU count.
type EngineConfig struct {
	Workers    int `yaml:"workers"`
	Partitions int `yaml:"partitions"`
}

type ProfileConfig struct {
	WeeksPerWindow int `yaml:"weeks_per_window"`
}

type OutputConfig struct {
	Dir            string   `yaml:"dir"`
	Formats        []string `yaml:"formats"`
	DivisionPrefix bool     `yaml:"division_prefix"`
	SQLitePath     string   `yaml:"sqlite_path"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type ServerConfig struct {
	Addr            string `yaml:"addr"`
	UploadDir       string `yaml:"upload_dir"`
	MaxUploadMB     int64  `yaml:"max_upload_mb"`
	DefaultDivision string `yaml:"default_division"`
}

var validFormats = map[string]bool{"parquet": true, "xlsx": true, "sqlite": true}

func DefaultConfig() *Config {
	return &Config{
		Profile: ProfileConfig{WeeksPerWindow: 4},
		Output: OutputConfig{
			Dir:        "profiles",
			Formats:    []string{"parquet"},
			SQLitePath: "profiles/profiles.db",
		},
		Log: LogConfig{Level: "info", Format: "text"},
		Server: ServerConfig{
			Addr:        ":8080",
			UploadDir:   "uploads",
			MaxUploadMB: 512,
		},
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Engine.Workers < 0 || c.Engine.Partitions < 0 {
		return fmt.Errorf("%w: engine workers and partitions must not be negative", ErrInvalid)
	}
	if c.Profile.WeeksPerWindow < 1 {
		return fmt.Errorf("%w: weeks_per_window must be at least 1", ErrInvalid)
	}
	if c.Output.Dir == "" {
		return fmt.Errorf("%w: output dir is empty", ErrInvalid)
	}
	if len(c.Output.Formats) == 0 {
		return fmt.Errorf("%w: no output format", ErrInvalid)
	}
	for i, f := range c.Output.Formats {
		f = strings.ToLower(strings.TrimSpace(f))
		if !validFormats[f] {
			return fmt.Errorf("%w: unknown output format %q", ErrInvalid, f)
		}
		c.Output.Formats[i] = f
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("%w: max_upload_mb must be positive", ErrInvalid)
	}
	return nil
}
