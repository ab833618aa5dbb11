package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hmemdev/hmem/internal/config"
)

func TestDefaultHasEightPrefixesAndDepthFive(t *testing.T) {
	cfg := config.Default()
	assert.Len(t, cfg.Prefixes, 8)
	assert.Equal(t, 5, cfg.MaxDepth)
	assert.Len(t, cfg.MaxCharsPerLevel, 5)
}

func TestLoadOnEmptyDirFallsBackToDefaults(t *testing.T) {
	cfg := config.Load(t.TempDir())
	assert.Equal(t, config.Default().MaxDepth, cfg.MaxDepth)
}

func TestLoadPrefersJSONOverYAMLAndTOML(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hmem.config.json"), []byte(`{"maxDepth": 3}`), 0o640))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hmem.config.yaml"), []byte("maxDepth: 7\n"), 0o640))

	cfg := config.Load(dir)
	assert.Equal(t, 3, cfg.MaxDepth)
}

func TestLoadFallsBackToYAMLWhenJSONMissing(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hmem.config.yaml"), []byte("maxDepth: 4\nmaxTitleChars: 40\n"), 0o640))

	cfg := config.Load(dir)
	assert.Equal(t, 4, cfg.MaxDepth)
	assert.Equal(t, 40, cfg.MaxTitleChars)
}

func TestLoadFallsBackToTOMLWhenJSONAndYAMLMissing(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hmem.config.toml"), []byte("maxDepth = 6\n"), 0o640))

	cfg := config.Load(dir)
	assert.Equal(t, 6, cfg.MaxDepth)
}

func TestLoadOnMalformedJSONSilentlyFallsBackToDefaults(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hmem.config.json"), []byte("{not valid json"), 0o640))

	cfg := config.Load(dir)
	assert.Equal(t, config.Default().MaxDepth, cfg.MaxDepth)
}

func TestLoadClampsMaxDepthToValidRange(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hmem.config.json"), []byte(`{"maxDepth": 99}`), 0o640))

	cfg := config.Load(dir)
	assert.Equal(t, 10, cfg.MaxDepth)
}

func TestBulkReadV2UsesPercentOnlyWhenFixedCountsAreZero(t *testing.T) {
	fixed := config.BulkReadV2{TopNewestCount: 3, TopAccessCount: 2}
	assert.False(t, fixed.UsesPercent())

	percent := config.BulkReadV2{NewestPercent: 0.1, AccessPercent: 0.05}
	assert.True(t, percent.UsesPercent())
}
