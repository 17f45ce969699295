// Package config loads mathrender settings from YAML with environment
// overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/Krishna8167/mathrender"
)

// Config holds all mathrender configuration.
type Config struct {
	Engine  EngineConfig  `yaml:"engine"`
	Render  RenderConfig  `yaml:"render"`
	Cache   CacheConfig   `yaml:"cache"`
	Logging LoggingConfig `yaml:"logging"`
}

// EngineConfig points at the typesetting script hosted by the JS engine.
type EngineConfig struct {
	Script          string        `yaml:"script"`
	Entry           string        `yaml:"entry"`
	ReadyTimeout    time.Duration `yaml:"ready_timeout"`
	StrictReadiness bool          `yaml:"strict_readiness"`
}

// RenderConfig tunes batching and retries.
type RenderConfig struct {
	BatchSize   int           `yaml:"batch_size"`
	BatchDelay  time.Duration `yaml:"batch_delay"`
	MaxRetries  int           `yaml:"max_retries"`
	RetryDelay  time.Duration `yaml:"retry_delay"`
	Concurrency int           `yaml:"concurrency"`
	Lazy        bool          `yaml:"lazy"`
}

type CacheConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Preload         bool          `yaml:"preload"`
	TTL             time.Duration `yaml:"ttl"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
	MaxEntries      int           `yaml:"max_entries"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Engine: EngineConfig{
			Entry:        "katex.renderToString",
			ReadyTimeout: mathrender.DefaultReadyTimeout,
		},
		Render: RenderConfig{
			BatchSize:   mathrender.DefaultBatchSize,
			BatchDelay:  mathrender.DefaultBatchDelay,
			MaxRetries:  mathrender.DefaultMaxRetries,
			RetryDelay:  mathrender.DefaultRetryDelay,
			Concurrency: 4,
			Lazy:        true,
		},
		Cache: CacheConfig{
			Enabled:         true,
			Preload:         true,
			TTL:             mathrender.DefaultCacheTTL,
			CleanupInterval: mathrender.DefaultCleanupInterval,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults; environment overrides apply either way.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration as YAML, creating parent directories.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies MATHRENDER_* environment variables.
func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv("MATHRENDER_ENGINE_SCRIPT"); v != "" {
		c.Engine.Script = v
	}
	if v := os.Getenv("MATHRENDER_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}

	ints := map[string]*int{
		"MATHRENDER_BATCH_SIZE":  &c.Render.BatchSize,
		"MATHRENDER_MAX_RETRIES": &c.Render.MaxRetries,
	}
	for name, dst := range ints {
		if v := os.Getenv(name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			*dst = n
		}
	}

	durations := map[string]*time.Duration{
		"MATHRENDER_READY_TIMEOUT": &c.Engine.ReadyTimeout,
		"MATHRENDER_RETRY_DELAY":   &c.Render.RetryDelay,
		"MATHRENDER_CACHE_TTL":     &c.Cache.TTL,
	}
	for name, dst := range durations {
		if v := os.Getenv(name); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			*dst = d
		}
	}

	if v := os.Getenv("MATHRENDER_CACHE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("MATHRENDER_CACHE: %w", err)
		}
		c.Cache.Enabled = b
	}
	return nil
}

// Validate rejects settings the orchestrator cannot run with.
func (c *Config) Validate() error {
	var errs []error

	if c.Render.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("render.batch_size must be positive, got %d", c.Render.BatchSize))
	}
	if c.Render.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("render.max_retries must not be negative, got %d", c.Render.MaxRetries))
	}
	if c.Render.BatchDelay < 0 || c.Render.RetryDelay < 0 {
		errs = append(errs, errors.New("render delays must not be negative"))
	}
	if c.Render.Concurrency <= 0 {
		errs = append(errs, fmt.Errorf("render.concurrency must be positive, got %d", c.Render.Concurrency))
	}
	if c.Engine.ReadyTimeout < 0 {
		errs = append(errs, errors.New("engine.ready_timeout must not be negative"))
	}
	if c.Engine.Entry == "" {
		errs = append(errs, errors.New("engine.entry is required"))
	}
	if c.Cache.MaxEntries < 0 {
		errs = append(errs, errors.New("cache.max_entries must not be negative"))
	}
	if _, err := zap.ParseAtomicLevel(c.Logging.Level); err != nil {
		errs = append(errs, fmt.Errorf("logging.level: %w", err))
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format))
	}

	return errors.Join(errs...)
}

// Options translates the configuration into orchestrator options.
func (c *Config) Options(logger *zap.Logger) ([]mathrender.Option, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	opts := []mathrender.Option{
		mathrender.WithLogger(logger),
		mathrender.WithBatchSize(c.Render.BatchSize),
		mathrender.WithBatchDelay(c.Render.BatchDelay),
		mathrender.WithMaxRetries(c.Render.MaxRetries),
		mathrender.WithRetryDelay(c.Render.RetryDelay),
		mathrender.WithReadyTimeout(c.Engine.ReadyTimeout),
		mathrender.WithCacheEnabled(c.Cache.Enabled),
		mathrender.WithPreloadEnabled(c.Cache.Preload),
		mathrender.WithLazyEnabled(c.Render.Lazy),
		mathrender.WithCacheOptions(
			mathrender.WithTTL(c.Cache.TTL),
			mathrender.WithCleanupInterval(c.Cache.CleanupInterval),
			mathrender.WithMaxEntries(c.Cache.MaxEntries),
		),
	}
	if c.Engine.StrictReadiness {
		opts = append(opts, mathrender.WithStrictReadiness())
	}
	return opts, nil
}
