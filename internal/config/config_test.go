package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "both", cfg.Logging.Output)

	assert.Equal(t, 1000, cfg.Estimation.MaxIterations)
	assert.Equal(t, 1e-9, cfg.Estimation.Tolerance)
	assert.Equal(t, 1.0, cfg.Estimation.Damping)
	assert.Equal(t, 1e-16, cfg.Estimation.MinShare)
	assert.Equal(t, 4, cfg.Estimation.MaxConcurrency)

	assert.Equal(t, 500, cfg.Draws.Count)
	assert.Equal(t, uint64(42), cfg.Draws.Seed)

	require.NoError(t, cfg.validate())
}

func TestLoadFileOverlaysDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
estimation:
  tolerance: 1e-8
  max_iterations: 250
draws:
  count: 100
  seed: 7
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	// File values applied.
	assert.Equal(t, 1e-8, cfg.Estimation.Tolerance)
	assert.Equal(t, 250, cfg.Estimation.MaxIterations)
	assert.Equal(t, 100, cfg.Draws.Count)
	assert.Equal(t, uint64(7), cfg.Draws.Seed)

	// Keys absent from the file keep their defaults.
	assert.Equal(t, 1.0, cfg.Estimation.Damping)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadFileEnvTakesPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
estimation:
  tolerance: 1e-8
logging:
  level: warn
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	t.Setenv("BLP_ESTIMATION_TOLERANCE", "1e-10")
	t.Setenv("BLP_DRAWS_COUNT", "2000")

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, 1e-10, cfg.Estimation.Tolerance, "env overrides file")
	assert.Equal(t, 2000, cfg.Draws.Count, "env overrides default")
	assert.Equal(t, "warn", cfg.Logging.Level, "file overrides default")
}

func TestLoadHonorsConfigFileEnvVar(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("draws:\n  count: 321\n"), 0o644))

	t.Setenv("BLP_CONFIG_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 321, cfg.Draws.Count)
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load config from file")
}

func TestLoadFileMalformedYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("estimation: [not, a, map"), 0o644))

	_, err := LoadFile(path)
	require.Error(t, err)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(cfg *Config)
	}{
		{
			name:   "unknown log level",
			mutate: func(cfg *Config) { cfg.Logging.Level = "verbose" },
		},
		{
			name:   "unknown log format",
			mutate: func(cfg *Config) { cfg.Logging.Format = "xml" },
		},
		{
			name:   "negative iteration budget",
			mutate: func(cfg *Config) { cfg.Estimation.MaxIterations = -1 },
		},
		{
			name:   "zero tolerance",
			mutate: func(cfg *Config) { cfg.Estimation.Tolerance = 0 },
		},
		{
			name:   "zero damping",
			mutate: func(cfg *Config) { cfg.Estimation.Damping = 0 },
		},
		{
			name:   "min share at one",
			mutate: func(cfg *Config) { cfg.Estimation.MinShare = 1 },
		},
		{
			name:   "zero concurrency",
			mutate: func(cfg *Config) { cfg.Estimation.MaxConcurrency = 0 },
		},
		{
			name:   "zero draw count",
			mutate: func(cfg *Config) { cfg.Draws.Count = 0 },
		},
		{
			name:   "empty data dir",
			mutate: func(cfg *Config) { cfg.Paths.DataDir = "" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.validate())
		})
	}
}

func TestValidateAcceptsZeroIterationBudget(t *testing.T) {
	cfg := Default()
	cfg.Estimation.MaxIterations = 0
	require.NoError(t, cfg.validate())
}

func TestEnsureDirectories(t *testing.T) {
	dir := t.TempDir()
	cfg := Default()
	cfg.Paths.DataDir = filepath.Join(dir, "data")
	cfg.Paths.ReportsDir = filepath.Join(dir, "reports", "nested")
	cfg.Paths.LogsDir = filepath.Join(dir, "logs")

	require.NoError(t, cfg.EnsureDirectories())

	for _, d := range []string{cfg.Paths.DataDir, cfg.Paths.ReportsDir, cfg.Paths.LogsDir} {
		info, err := os.Stat(d)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}

	// Idempotent on existing directories.
	require.NoError(t, cfg.EnsureDirectories())
}
