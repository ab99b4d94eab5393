package config

import "time"

// ProviderConfig defines one oracle transport. Two transport types exist:
// "http" talks to a chat-completions style endpoint, "cli" shells out to a
// local agent binary. Multiple providers can be configured; Generation.Provider
// selects the active one.
type ProviderConfig struct {
	Type      string        `yaml:"type"`               // "http" or "cli"
	BaseURL   string        `yaml:"base_url,omitempty"` // http only
	APIKey    string        `yaml:"api_key,omitempty"`  // http only
	Model     string        `yaml:"model,omitempty"`
	Command   string        `yaml:"command,omitempty"` // cli only
	Args      []string      `yaml:"args,omitempty"`    // cli only
	Timeout   time.Duration `yaml:"timeout,omitempty"` // per-request bound
	MaxTokens int           `yaml:"max_tokens,omitempty"`
}

// RetryConfig configures exponential backoff for oracle calls.
type RetryConfig struct {
	InitialInterval     time.Duration `yaml:"initial_interval"`
	MaxInterval         time.Duration `yaml:"max_interval"`
	MaxElapsedTime      time.Duration `yaml:"max_elapsed_time"`
	Multiplier          float64       `yaml:"multiplier"`
	RandomizationFactor float64       `yaml:"randomization_factor"`
}

// GenerationConfig controls the convergence loop.
type GenerationConfig struct {
	Provider       string  `yaml:"provider"`        // key into Providers
	MaxRounds      int     `yaml:"max_rounds"`      // round budget per session
	Temperature    float64 `yaml:"temperature"`
	SingleShot     bool    `yaml:"single_shot"`     // skip iteration, one oracle call
	EnableFallback bool    `yaml:"enable_fallback"` // fallback chain on failure
}

// PlacementConfig controls path scoring and entry-point matching.
type PlacementConfig struct {
	// KeywordDomains maps extracted business keywords to canonical domain
	// names. Resolution order: exact match, prefix-stripped match, substring.
	KeywordDomains map[string]string `yaml:"keyword_domains,omitempty"`
	// StylisticPrefixes are naming-convention prefixes stripped from keywords
	// before mapping (e.g. "ls").
	StylisticPrefixes []string `yaml:"stylistic_prefixes,omitempty"`
	// ExtendThresholdRead/Write are the similarity scores above which an
	// existing controller is extended rather than a new one created.
	ExtendThresholdRead  float64 `yaml:"extend_threshold_read"`
	ExtendThresholdWrite float64 `yaml:"extend_threshold_write"`
}

// WorkerConfig controls the scheduler loop.
type WorkerConfig struct {
	Concurrency int      `yaml:"concurrency"` // max tasks dispatched at once
	MaxRounds   int      `yaml:"max_rounds"`  // safety bound on scheduler rounds
	Kinds       []string `yaml:"kinds"`       // task kinds this worker handles
}

// Config is the top-level configuration.
type Config struct {
	LogLevel   string                    `yaml:"log_level,omitempty"`
	StorePath  string                    `yaml:"store_path,omitempty"`
	Providers  map[string]ProviderConfig `yaml:"providers"`
	Retry      RetryConfig               `yaml:"retry"`
	Generation GenerationConfig          `yaml:"generation"`
	Placement  PlacementConfig           `yaml:"placement"`
	Worker     WorkerConfig              `yaml:"worker"`
}
