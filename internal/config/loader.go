package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Load reads and merges configuration from global and project paths.
// Order of precedence (highest to lowest): project config, global config,
// defaults. Missing files are not errors; malformed YAML returns an error.
func Load(globalPath, projectPath string) (*Config, error) {
	cfg := DefaultConfig()

	if globalPath != "" {
		if err := mergeConfigFile(cfg, globalPath); err != nil {
			return nil, fmt.Errorf("loading global config: %w", err)
		}
	}

	if projectPath != "" {
		if err := mergeConfigFile(cfg, projectPath); err != nil {
			return nil, fmt.Errorf("loading project config: %w", err)
		}
	}

	return cfg, nil
}

// LoadDefault loads configuration from conventional paths.
// Global: ~/.apiforge/config.yaml
// Project: .apiforge/config.yaml (relative to cwd)
func LoadDefault() (*Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting home directory: %w", err)
	}

	globalPath := filepath.Join(homeDir, ".apiforge", "config.yaml")
	projectPath := filepath.Join(".apiforge", "config.yaml")

	return Load(globalPath, projectPath)
}

// mergeConfigFile reads a YAML config file and merges it into the base config.
// Missing files are silently skipped.
func mergeConfigFile(base *Config, path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	var loaded fileConfig
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	mergeInto(base, &loaded)
	return nil
}

// fileConfig mirrors Config for decoding. The generation toggles are
// pointers so an explicit "false" in a file is distinguishable from the
// field being absent; EnableFallback defaults on and must be switchable off.
type fileConfig struct {
	LogLevel   string                    `yaml:"log_level"`
	StorePath  string                    `yaml:"store_path"`
	Providers  map[string]ProviderConfig `yaml:"providers"`
	Retry      RetryConfig               `yaml:"retry"`
	Generation fileGenerationConfig      `yaml:"generation"`
	Placement  PlacementConfig           `yaml:"placement"`
	Worker     WorkerConfig              `yaml:"worker"`
}

type fileGenerationConfig struct {
	Provider       string  `yaml:"provider"`
	MaxRounds      int     `yaml:"max_rounds"`
	Temperature    float64 `yaml:"temperature"`
	SingleShot     *bool   `yaml:"single_shot"`
	EnableFallback *bool   `yaml:"enable_fallback"`
}

// mergeInto overlays non-zero fields of loaded onto base. Maps are merged
// key-by-key so a project file can add a single provider or keyword without
// restating the whole table.
func mergeInto(base *Config, loaded *fileConfig) {
	if loaded.LogLevel != "" {
		base.LogLevel = loaded.LogLevel
	}
	if loaded.StorePath != "" {
		base.StorePath = loaded.StorePath
	}
	for key, p := range loaded.Providers {
		base.Providers[key] = p
	}
	if loaded.Retry.InitialInterval > 0 {
		base.Retry = loaded.Retry
	}
	if loaded.Generation.Provider != "" {
		base.Generation.Provider = loaded.Generation.Provider
	}
	if loaded.Generation.MaxRounds > 0 {
		base.Generation.MaxRounds = loaded.Generation.MaxRounds
	}
	if loaded.Generation.Temperature > 0 {
		base.Generation.Temperature = loaded.Generation.Temperature
	}
	if loaded.Generation.SingleShot != nil {
		base.Generation.SingleShot = *loaded.Generation.SingleShot
	}
	if loaded.Generation.EnableFallback != nil {
		base.Generation.EnableFallback = *loaded.Generation.EnableFallback
	}
	for key, domain := range loaded.Placement.KeywordDomains {
		base.Placement.KeywordDomains[key] = domain
	}
	if len(loaded.Placement.StylisticPrefixes) > 0 {
		base.Placement.StylisticPrefixes = loaded.Placement.StylisticPrefixes
	}
	if loaded.Placement.ExtendThresholdRead > 0 {
		base.Placement.ExtendThresholdRead = loaded.Placement.ExtendThresholdRead
	}
	if loaded.Placement.ExtendThresholdWrite > 0 {
		base.Placement.ExtendThresholdWrite = loaded.Placement.ExtendThresholdWrite
	}
	if loaded.Worker.Concurrency > 0 {
		base.Worker.Concurrency = loaded.Worker.Concurrency
	}
	if loaded.Worker.MaxRounds > 0 {
		base.Worker.MaxRounds = loaded.Worker.MaxRounds
	}
	if len(loaded.Worker.Kinds) > 0 {
		base.Worker.Kinds = loaded.Worker.Kinds
	}
}
