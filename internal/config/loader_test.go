package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadMissingFilesUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), "")
	require.NoError(t, err)

	assert.Equal(t, 6, cfg.Generation.MaxRounds)
	assert.Equal(t, 0.5, cfg.Placement.ExtendThresholdRead)
	assert.Contains(t, cfg.Providers, "anthropic")
}

func TestLoadMalformedYAML(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "config.yaml", "providers: [not a map")

	_, err := Load(path, "")
	assert.Error(t, err)
}

func TestProjectOverridesGlobal(t *testing.T) {
	dir := t.TempDir()
	global := writeConfig(t, dir, "global.yaml", `
generation:
  max_rounds: 10
  provider: claude-cli
`)
	project := writeConfig(t, dir, "project.yaml", `
generation:
  max_rounds: 3
`)

	cfg, err := Load(global, project)
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Generation.MaxRounds)
	// Provider from global survives because project did not set it.
	assert.Equal(t, "claude-cli", cfg.Generation.Provider)
}

func TestExplicitFalseDisablesFallback(t *testing.T) {
	dir := t.TempDir()
	project := writeConfig(t, dir, "project.yaml", `
generation:
  enable_fallback: false
  single_shot: true
`)

	cfg, err := Load("", project)
	require.NoError(t, err)

	assert.False(t, cfg.Generation.EnableFallback)
	assert.True(t, cfg.Generation.SingleShot)

	// Leaving the toggles out keeps the defaults.
	cfg, err = Load("", writeConfig(t, dir, "empty.yaml", "generation:\n  max_rounds: 2\n"))
	require.NoError(t, err)
	assert.True(t, cfg.Generation.EnableFallback)
	assert.False(t, cfg.Generation.SingleShot)
}

func TestKeywordDomainsMergeKeyByKey(t *testing.T) {
	dir := t.TempDir()
	project := writeConfig(t, dir, "project.yaml", `
placement:
  keyword_domains:
    invoice: billing
`)

	cfg, err := Load("", project)
	require.NoError(t, err)

	assert.Equal(t, "billing", cfg.Placement.KeywordDomains["invoice"])
	// Defaults are preserved alongside the addition.
	assert.Equal(t, "limit", cfg.Placement.KeywordDomains["limit"])
}

func TestProviderMerge(t *testing.T) {
	dir := t.TempDir()
	project := writeConfig(t, dir, "project.yaml", `
providers:
  local:
    type: http
    base_url: http://localhost:8080/v1
    timeout: 30s
`)

	cfg, err := Load("", project)
	require.NoError(t, err)

	local, ok := cfg.Providers["local"]
	require.True(t, ok)
	assert.Equal(t, 30*time.Second, local.Timeout)
	assert.Contains(t, cfg.Providers, "claude-cli")
}
