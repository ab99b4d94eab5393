package config

import "time"

// DefaultConfig returns the built-in configuration. Loaded config files are
// merged on top of it, so every field has a usable zero-configuration value.
func DefaultConfig() *Config {
	return &Config{
		LogLevel:  "info",
		StorePath: ".apiforge/ledger.db",
		Providers: map[string]ProviderConfig{
			"anthropic": {
				Type:      "http",
				BaseURL:   "https://api.anthropic.com/v1",
				Model:     "claude-sonnet-4-5",
				Timeout:   120 * time.Second,
				MaxTokens: 8192,
			},
			"claude-cli": {
				Type:    "cli",
				Command: "claude",
				Timeout: 300 * time.Second,
			},
		},
		Retry: RetryConfig{
			InitialInterval:     time.Second,
			MaxInterval:         10 * time.Second,
			MaxElapsedTime:      2 * time.Minute,
			Multiplier:          2.0,
			RandomizationFactor: 0.5,
		},
		Generation: GenerationConfig{
			Provider:       "anthropic",
			MaxRounds:      6,
			Temperature:    0.2,
			EnableFallback: true,
		},
		Placement: PlacementConfig{
			KeywordDomains: map[string]string{
				"limit":   "limit",
				"user":    "user",
				"order":   "order",
				"account": "account",
				"report":  "report",
			},
			StylisticPrefixes:    []string{"ls", "biz", "sys"},
			ExtendThresholdRead:  0.5,
			ExtendThresholdWrite: 0.6,
		},
		Worker: WorkerConfig{
			Concurrency: 4,
			MaxRounds:   50,
			Kinds:       []string{"generation"},
		},
	}
}
