package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"catalogmirror/pkg/config"
	"catalogmirror/pkg/core"
	"catalogmirror/pkg/filter"
)

const fileConfig = `
grafanaCloudCatalogInfo:
  enable: true
  allow:
    - kind=Component,spec.type=service
    - kind=Group
  stack_slug: mystack
  grafana_endpoint: https://grafana.com/
  token: glc_token
  request_timeout: 5s
log:
  level: DEBUG
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "app-config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFileWithDefaults(t *testing.T) {
	t.Setenv("CI", "")
	cfg, err := config.Load(writeConfig(t, fileConfig))
	require.NoError(t, err)

	assert.True(t, cfg.Mirror.Enable)
	assert.Equal(t, []string{"kind=Component,spec.type=service", "kind=Group"}, cfg.Mirror.Allow)
	assert.Equal(t, "https://grafana.com", cfg.Mirror.GrafanaEndpoint)
	assert.Equal(t, 5*time.Second, cfg.Mirror.RequestTimeout)
	assert.Equal(t, time.Second, cfg.Mirror.ReconnectCooldown)
	assert.Equal(t, []string{"Location", "API"}, cfg.Mirror.SkipKinds)
	assert.False(t, cfg.Mirror.InCluster)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 4096, cfg.Cache.Size)
	assert.Equal(t, 24*time.Hour, cfg.Cache.TTL)
	assert.NoError(t, config.Validate(cfg))
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("GRAFANACLOUDCATALOGINFO_TOKEN", "from-env")
	t.Setenv("GRAFANACLOUDCATALOGINFO_SKIP_KINDS", "Location;API;Template")
	t.Setenv("CI", "true")

	cfg, err := config.Load(writeConfig(t, fileConfig))
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Mirror.Token)
	assert.Equal(t, []string{"Location", "API", "Template"}, cfg.Mirror.SkipKinds)
	assert.True(t, cfg.Mirror.InCluster)
}

func TestLoadDotEnv(t *testing.T) {
	path := writeConfig(t, fileConfig)
	require.NoError(t, os.WriteFile(filepath.Join(filepath.Dir(path), ".env"), []byte("GRAFANACLOUDCATALOGINFO_STACK_SLUG=dotenv-stack\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("GRAFANACLOUDCATALOGINFO_STACK_SLUG") })

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "dotenv-stack", cfg.Mirror.StackSlug)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func validConfig() *config.Config {
	return &config.Config{
		Mirror: config.MirrorConfig{
			Enable:            true,
			Allow:             []string{"kind=Component"},
			StackSlug:         "mystack",
			GrafanaEndpoint:   "https://grafana.com",
			Token:             "token",
			ReconnectCooldown: time.Second,
			RequestTimeout:    10 * time.Second,
		},
		Log:   config.LogConfig{Level: "info"},
		Cache: config.CacheConfig{Size: 10, TTL: time.Hour},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		field  string
	}{
		{"valid", func(*config.Config) {}, ""},
		{"no allow", func(c *config.Config) { c.Mirror.Allow = nil }, "allow"},
		{"no slug", func(c *config.Config) { c.Mirror.StackSlug = "" }, "stack_slug"},
		{"no endpoint", func(c *config.Config) { c.Mirror.GrafanaEndpoint = "" }, "grafana_endpoint"},
		{"no token", func(c *config.Config) { c.Mirror.Token = "" }, "token"},
		{"in cluster needs no credentials", func(c *config.Config) { c.Mirror.InCluster = true; c.Mirror.Token = "" }, ""},
		{"disabled needs no credentials", func(c *config.Config) { c.Mirror.Enable = false; c.Mirror.StackSlug = "" }, ""},
		{"zero cooldown", func(c *config.Config) { c.Mirror.ReconnectCooldown = 0 }, "reconnect_cooldown"},
		{"zero timeout", func(c *config.Config) { c.Mirror.RequestTimeout = 0 }, "request_timeout"},
		{"zero cache", func(c *config.Config) { c.Cache.Size = 0 }, "cache.size"},
		{"zero ttl", func(c *config.Config) { c.Cache.TTL = 0 }, "cache.ttl"},
		{"bad level", func(c *config.Config) { c.Log.Level = "trace" }, "log.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := config.Validate(cfg)
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			var configErr *core.ConfigurationError
			require.True(t, errors.As(err, &configErr), "expected ConfigurationError, got %v", err)
			assert.Equal(t, tt.field, configErr.Field)
		})
	}
}

func TestValidateRejectsMalformedFilters(t *testing.T) {
	cfg := validConfig()
	cfg.Mirror.Allow = []string{"kind=Component", "spec.type"}
	var parseErr *filter.ParseError
	assert.True(t, errors.As(config.Validate(cfg), &parseErr))
	assert.Error(t, config.Validate(nil))
}
