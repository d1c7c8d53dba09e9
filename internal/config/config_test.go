package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/savannahghi/idrclient/internal/config"
	"github.com/savannahghi/idrclient/internal/idrerrors"
	"github.com/savannahghi/idrclient/internal/mlog"
)

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := config.Load("")

	require.NoError(t, err)
	assert.True(t, cfg.Retry.EnableRetries)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, 32, cfg.Runner.MaxConcurrency)
}

func TestLoadOverlaysYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	yaml := "runner:\n  max_concurrency: 4\nlogging:\n  level: debug\netl_protocols:\n  - reference\n"
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	cfg, err := config.Load(path)

	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Runner.MaxConcurrency)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, []string{"reference"}, cfg.ETLProtocols)
}

func TestLoadDecodesRetryKeysAsSeconds(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	yaml := "retry:\n  default_deadline: 300\n  default_initial_delay: 2\n  default_maximum_delay: 90\n"
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	cfg, err := config.Load(path)

	require.NoError(t, err)

	retryCfg := cfg.Retry.ToRetryConfig()
	require.NotNil(t, retryCfg.Deadline)
	assert.Equal(t, 300*time.Second, *retryCfg.Deadline)
	assert.Equal(t, 2*time.Second, retryCfg.InitialDelay)
	assert.Equal(t, 90*time.Second, retryCfg.MaximumDelay)
}

func TestLoadWarnsOnUnknownTopLevelKey(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	require.NoError(t, os.WriteFile(path, []byte("mystery_key: 1\n"), 0o600))

	cfg, err := config.Load(path)

	require.NoError(t, err)
	require.Len(t, cfg.Warnings, 1)
	assert.Contains(t, cfg.Warnings[0], "mystery_key")
}

func TestLoadRejectsInvalidRunnerConcurrency(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	require.NoError(t, os.WriteFile(path, []byte("runner:\n  max_concurrency: -1\n"), 0o600))

	_, err := config.Load(path)

	var confErr *idrerrors.ImproperlyConfiguredError
	require.ErrorAs(t, err, &confErr)
}

func TestResolveLevelPrefersVerbosityOverConfigured(t *testing.T) {
	level, err := config.ResolveLevel("error", 2)

	require.NoError(t, err)
	assert.Equal(t, mlog.FromVerbosity(2), level)
}

func TestResolveLevelFallsBackToConfigured(t *testing.T) {
	level, err := config.ResolveLevel("debug", 0)

	require.NoError(t, err)
	assert.Equal(t, mlog.DebugLevel, level)
}

func TestResolveLevelRejectsUnknownConfiguredLevel(t *testing.T) {
	_, err := config.ResolveLevel("not-a-level", 0)
	require.Error(t, err)
}

// settingsRoundTripInitializer is the §8 invariant 7 fixture: normalizing
// twice must yield the same result as normalizing once.
type settingsRoundTripInitializer struct {
	applyCount int
}

func (s *settingsRoundTripInitializer) ID() string { return "round-trip" }

func (s *settingsRoundTripInitializer) Initialize(cfg *config.Config) error {
	s.applyCount++

	if cfg.Extra == nil {
		cfg.Extra = make(map[string]any)
	}

	cfg.Extra["round_trip_applied"] = true

	return nil
}

func TestSettingsInitializerIsIdempotent(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	si := &settingsRoundTripInitializer{}

	require.NoError(t, si.Initialize(cfg))
	firstExtra := cfg.Extra["round_trip_applied"]

	require.NoError(t, si.Initialize(cfg))
	secondExtra := cfg.Extra["round_trip_applied"]

	assert.Equal(t, firstExtra, secondExtra)
	assert.Equal(t, 2, si.applyCount)
}

func TestDefaultSettingsInitializersReturnsIndependentCopy(t *testing.T) {
	config.RegisterSettingsInitializer(&settingsRoundTripInitializer{})

	a := config.DefaultSettingsInitializers()
	delete(a, "round-trip")

	b := config.DefaultSettingsInitializers()
	_, stillPresent := b["round-trip"]

	assert.True(t, stillPresent)
}
