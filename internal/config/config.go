package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/savannahghi/idrclient/internal/idrerrors"
	"github.com/savannahghi/idrclient/internal/retry"
)

// seconds decodes a YAML scalar as a plain number of seconds — §6.2
// documents RETRY.* values in seconds, but yaml.v3 has no time.Duration
// special-casing, so a bare time.Duration field would decode "300" as 300
// nanoseconds instead of 300s.
type seconds time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *seconds) UnmarshalYAML(value *yaml.Node) error {
	var f float64
	if err := value.Decode(&f); err != nil {
		return err
	}

	*s = seconds(f * float64(time.Second))

	return nil
}

// MarshalYAML implements yaml.Marshaler, round-tripping back to seconds.
func (s seconds) MarshalYAML() (any, error) {
	return time.Duration(s).Seconds(), nil
}

// RetryConfig mirrors the §6.2 RETRY.* keys.
type RetryConfig struct {
	EnableRetries               bool    `yaml:"enable_retries"`
	DefaultDeadline             seconds `yaml:"default_deadline"`
	DefaultInitialDelay         seconds `yaml:"default_initial_delay"`
	DefaultMaximumDelay         seconds `yaml:"default_maximum_delay"`
	DefaultMultiplicativeFactor float64 `yaml:"default_multiplicative_factor"`
}

// ToRetryConfig converts to the retry engine's own Config, applying the
// default transient predicate.
func (r RetryConfig) ToRetryConfig() retry.Config {
	cfg := retry.Config{
		InitialDelay:         time.Duration(r.DefaultInitialDelay),
		MaximumDelay:         time.Duration(r.DefaultMaximumDelay),
		MultiplicativeFactor: r.DefaultMultiplicativeFactor,
		Predicate:            idrerrors.IsTransient,
		Enabled:              r.EnableRetries,
	}

	return cfg.WithDeadline(time.Duration(r.DefaultDeadline))
}

// LoggingConfig mirrors the §6.2 LOGGING key.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// RunnerConfig mirrors the runner-specific key introduced in SPEC_FULL.md
// §4.6 (RUNNER.max_concurrency).
type RunnerConfig struct {
	MaxConcurrency int `yaml:"max_concurrency"`
}

// Config is the fully loaded, validated configuration.
type Config struct {
	Retry                RetryConfig       `yaml:"retry"`
	Logging              LoggingConfig     `yaml:"logging"`
	Runner               RunnerConfig      `yaml:"runner"`
	ETLProtocols         []string          `yaml:"etl_protocols"`
	SettingsInitializers []string          `yaml:"settings_initializers"`
	// Extra holds opaque, protocol-specific sections (§6.2's
	// "<protocol-specific>" row) — consumed by drivers, never parsed by
	// the core.
	Extra map[string]any `yaml:",inline"`

	// Warnings collects unknown-key notices (§6.2: "unknown keys are
	// ignored with a warning").
	Warnings []string `yaml:"-"`
}

// Default returns the §4.2/§6.2 built-in defaults.
func Default() Config {
	return Config{
		Retry: RetryConfig{
			EnableRetries:               true,
			DefaultDeadline:             seconds(retry.DefaultDeadline),
			DefaultInitialDelay:         seconds(retry.DefaultInitialDelay),
			DefaultMaximumDelay:         seconds(retry.DefaultMaximumDelay),
			DefaultMultiplicativeFactor: retry.DefaultMultiplicativeFactor,
		},
		Logging: LoggingConfig{Level: "info"},
		Runner:  RunnerConfig{MaxConcurrency: 32},
	}
}

// knownTopLevelKeys lists the keys Load understands; anything else found in
// a config file is reported via Warnings rather than rejected (§6.2).
var knownTopLevelKeys = map[string]bool{
	"retry": true, "logging": true, "runner": true,
	"etl_protocols": true, "settings_initializers": true,
}

// Load builds a Config by layering, lowest to highest precedence: built-in
// defaults, a local .env file, the process environment, and an optional
// YAML file at path (may be "").
func Load(path string) (*Config, error) {
	cfg := Default()

	// Best-effort: a missing .env is not an error (mirrors the teacher's
	// InitLocalEnvConfig, which only logs and continues).
	_ = godotenv.Load()

	cfg.Retry.EnableRetries = GetenvBoolOrDefault("RETRY_ENABLE_RETRIES", cfg.Retry.EnableRetries)
	cfg.Retry.DefaultDeadline = seconds(time.Duration(GetenvFloatOrDefault("RETRY_DEFAULT_DEADLINE", time.Duration(cfg.Retry.DefaultDeadline).Seconds())) * time.Second)
	cfg.Retry.DefaultInitialDelay = seconds(time.Duration(GetenvFloatOrDefault("RETRY_DEFAULT_INITIAL_DELAY", time.Duration(cfg.Retry.DefaultInitialDelay).Seconds())) * time.Second)
	cfg.Retry.DefaultMaximumDelay = seconds(time.Duration(GetenvFloatOrDefault("RETRY_DEFAULT_MAXIMUM_DELAY", time.Duration(cfg.Retry.DefaultMaximumDelay).Seconds())) * time.Second)
	cfg.Retry.DefaultMultiplicativeFactor = GetenvFloatOrDefault("RETRY_DEFAULT_MULTIPLICATIVE_FACTOR", cfg.Retry.DefaultMultiplicativeFactor)
	cfg.Logging.Level = GetenvOrDefault("LOG_LEVEL", cfg.Logging.Level)

	if path != "" {
		if err := cfg.overlayFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) overlayFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return &idrerrors.ImproperlyConfiguredError{Field: "config", Message: "cannot read config file", Err: err}
	}

	var doc map[string]any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return &idrerrors.ImproperlyConfiguredError{Field: "config", Message: "invalid YAML", Err: err}
	}

	for key := range doc {
		if !knownTopLevelKeys[key] {
			c.Warnings = append(c.Warnings, fmt.Sprintf("unknown config key %q ignored", key))
		}
	}

	if err := yaml.Unmarshal(raw, c); err != nil {
		return &idrerrors.ImproperlyConfiguredError{Field: "config", Message: "invalid config shape", Err: err}
	}

	return nil
}

func (c *Config) validate() error {
	if err := c.Retry.ToRetryConfig().Validate(); err != nil {
		return err
	}

	if c.Runner.MaxConcurrency < 0 {
		return &idrerrors.ImproperlyConfiguredError{Field: "runner.max_concurrency", Message: "must be >= 0"}
	}

	return nil
}
