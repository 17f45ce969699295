package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Krishna8167/mathrender"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 10, cfg.Render.BatchSize)
	assert.Equal(t, 50*time.Millisecond, cfg.Render.BatchDelay)
	assert.Equal(t, 3, cfg.Render.MaxRetries)
	assert.Equal(t, time.Second, cfg.Render.RetryDelay)
	assert.Equal(t, 10*time.Second, cfg.Engine.ReadyTimeout)
	assert.Equal(t, "katex.renderToString", cfg.Engine.Entry)
	assert.True(t, cfg.Cache.Enabled)
	require.NoError(t, cfg.Validate())
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mathrender.yaml")
	data := `
engine:
  script: /opt/katex/katex.min.js
  ready_timeout: 2s
  strict_readiness: true
render:
  batch_size: 4
  retry_delay: 250ms
cache:
  ttl: 1h
  max_entries: 500
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/opt/katex/katex.min.js", cfg.Engine.Script)
	assert.Equal(t, 2*time.Second, cfg.Engine.ReadyTimeout)
	assert.True(t, cfg.Engine.StrictReadiness)
	assert.Equal(t, 4, cfg.Render.BatchSize)
	assert.Equal(t, 250*time.Millisecond, cfg.Render.RetryDelay)
	assert.Equal(t, 3, cfg.Render.MaxRetries, "unset keys keep defaults")
	assert.Equal(t, time.Hour, cfg.Cache.TTL)
	assert.Equal(t, 500, cfg.Cache.MaxEntries)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("render: [unclosed"), 0644))

	_, err := Load(path)
	assert.ErrorContains(t, err, "failed to parse config")
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Render.BatchSize = 7
	cfg.Cache.Preload = false
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("MATHRENDER_ENGINE_SCRIPT", "/tmp/katex.js")
	t.Setenv("MATHRENDER_BATCH_SIZE", "25")
	t.Setenv("MATHRENDER_READY_TIMEOUT", "30s")
	t.Setenv("MATHRENDER_CACHE", "false")
	t.Setenv("MATHRENDER_LOG_LEVEL", "warn")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "/tmp/katex.js", cfg.Engine.Script)
	assert.Equal(t, 25, cfg.Render.BatchSize)
	assert.Equal(t, 30*time.Second, cfg.Engine.ReadyTimeout)
	assert.False(t, cfg.Cache.Enabled)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestEnvOverrideParseErrors(t *testing.T) {
	t.Run("int", func(t *testing.T) {
		t.Setenv("MATHRENDER_MAX_RETRIES", "many")
		_, err := Load("")
		assert.ErrorContains(t, err, "MATHRENDER_MAX_RETRIES")
	})
	t.Run("duration", func(t *testing.T) {
		t.Setenv("MATHRENDER_RETRY_DELAY", "soon")
		_, err := Load("")
		assert.ErrorContains(t, err, "MATHRENDER_RETRY_DELAY")
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"batch size", func(c *Config) { c.Render.BatchSize = 0 }, "batch_size"},
		{"retries", func(c *Config) { c.Render.MaxRetries = -1 }, "max_retries"},
		{"concurrency", func(c *Config) { c.Render.Concurrency = 0 }, "concurrency"},
		{"entry", func(c *Config) { c.Engine.Entry = "" }, "engine.entry"},
		{"level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}
}

func TestOptionsBuildOrchestrator(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Engine.StrictReadiness = true

	opts, err := cfg.Options(zap.NewNop())
	require.NoError(t, err)

	o := mathrender.New(nil, opts...)
	defer o.Close()
	assert.Zero(t, o.Metrics().QueueLength)

	cfg.Render.BatchSize = -1
	_, err = cfg.Options(zap.NewNop())
	assert.Error(t, err)
}
