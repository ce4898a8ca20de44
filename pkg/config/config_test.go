package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alphaagent/pkg/report"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, BackendProxy, cfg.Backend)
	assert.Equal(t, 5, cfg.MaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.BaseDelay)
	assert.Equal(t, "https://ghostrouter-web.ghostrouter-lite-demo.workers.dev/proxy/gemini", cfg.ProxyEndpoint())
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alpha.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
backend: gemini
model: gemini-1.5-pro
assets: Ethereum
no_footer: true
base_delay: 10ms
max_steps: 3
`), 0o600))

	cfg := Default()
	require.NoError(t, LoadFile(path, &cfg))
	assert.Equal(t, BackendGemini, cfg.Backend)
	assert.Equal(t, "gemini-1.5-pro", cfg.Model)
	assert.Equal(t, "Ethereum", cfg.Assets)
	assert.True(t, cfg.NoFooter)
	assert.Equal(t, 10*time.Millisecond, cfg.BaseDelay)
	assert.Equal(t, 3, cfg.MaxSteps)
	assert.Equal(t, DefaultCryptoNode, cfg.CryptoNode, "absent keys keep defaults")

	err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"), &cfg)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	require.NoError(t, ApplyEnv(&cfg, envMap(map[string]string{
		EnvGeminiKey:   "  key  ",
		EnvBackend:     "openrouter",
		EnvWebNode:     "http://web.local",
		EnvMaxAttempts: "2",
		EnvModel:       "",
	})))
	assert.Equal(t, "key", cfg.APIKey)
	assert.Equal(t, BackendOpenRouter, cfg.Backend)
	assert.Equal(t, "http://web.local", cfg.WebNode)
	assert.Equal(t, 2, cfg.MaxAttempts)
	assert.Empty(t, cfg.Model)
}

func TestApplyEnv_BadMaxAttempts(t *testing.T) {
	cfg := Default()
	err := ApplyEnv(&cfg, envMap(map[string]string{EnvMaxAttempts: "five"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `ALPHA_MAX_ATTEMPTS: invalid integer "five"`)
	assert.Equal(t, 5, cfg.MaxAttempts, "value left untouched")
}

func TestModelTimeout_DefaultUnbounded(t *testing.T) {
	cfg := Default()
	cfg.Normalize()
	assert.Zero(t, cfg.ModelTimeout)

	cfg.ModelTimeout = -time.Second
	cfg.Normalize()
	assert.Zero(t, cfg.ModelTimeout)
}

func TestNormalize(t *testing.T) {
	cfg := Config{Backend: " Gemini ", WebNode: "http://web.local/", MaxAttempts: -1}
	cfg.Normalize()
	assert.Equal(t, BackendGemini, cfg.Backend)
	assert.Equal(t, "http://web.local", cfg.WebNode)
	assert.Equal(t, DefaultCryptoNode, cfg.CryptoNode)
	assert.Equal(t, 5, cfg.MaxAttempts)
	assert.Equal(t, 25, cfg.MaxSteps)
	assert.Equal(t, "http://web.local/proxy/gemini", cfg.ProxyEndpoint())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(*Config)
		wantErr    bool
		missingKey bool
	}{
		{name: "proxy without key", mutate: func(c *Config) {}, wantErr: true, missingKey: true},
		{name: "proxy with key", mutate: func(c *Config) { c.APIKey = "k" }},
		{name: "gemini without key", mutate: func(c *Config) { c.Backend = BackendGemini }, wantErr: true, missingKey: true},
		{name: "openrouter needs its own key", mutate: func(c *Config) { c.Backend = BackendOpenRouter; c.APIKey = "k" }, wantErr: true, missingKey: true},
		{name: "echo needs no key", mutate: func(c *Config) { c.Backend = BackendEcho }},
		{name: "unknown backend", mutate: func(c *Config) { c.Backend = "bogus"; c.APIKey = "k" }, wantErr: true},
		{name: "bad node url", mutate: func(c *Config) { c.APIKey = "k"; c.CryptoNode = "not a url" }, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.missingKey, errors.Is(err, ErrMissingAPIKey))
		})
	}
}

func TestValidate_MissingKeyMessage(t *testing.T) {
	cfg := Default()
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GEMINI_API_KEY must be set in your .env file")
}

func TestDecorator(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "X"+report.PromoBlock, cfg.Decorator()("X"))

	cfg.FooterText = "\n--"
	assert.Equal(t, "X\n--", cfg.Decorator()("X"))

	cfg.NoFooter = true
	assert.Equal(t, "X", cfg.Decorator()("X"))
	assert.Equal(t, "", cfg.Decorator()(""))
}
