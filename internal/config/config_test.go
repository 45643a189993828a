package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "./sessions", cfg.SessionsPath)
	assert.True(t, cfg.Browser.Headless)
	assert.True(t, cfg.Browser.ReleaseLock)
	assert.Equal(t, "none", cfg.Browser.WebVersionCacheType)
	assert.Equal(t, int64(10_000_000), cfg.Events.MaxAttachmentSize)
	assert.Equal(t, 10, cfg.Webhook.Timeout)
	assert.False(t, cfg.AI.Enabled)
	assert.NotEmpty(t, cfg.Reply.Message)
	assert.NoError(t, cfg.Validate())
}

func TestConfig_EventEnabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Events.Disabled = []string{"message_ack", "unread_count"}

	assert.True(t, cfg.EventEnabled("message"))
	assert.True(t, cfg.EventEnabled("qr"))
	assert.False(t, cfg.EventEnabled("message_ack"))
	assert.False(t, cfg.EventEnabled("unread_count"))
}

func TestConfig_ResolveWebhookURL(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Webhook.BaseURL = "https://hooks.example.com/base"

	assert.Equal(t, "https://hooks.example.com/base", cfg.ResolveWebhookURL("alpha"))

	t.Setenv("ALPHA_WEBHOOK_URL", "https://hooks.example.com/alpha")
	assert.Equal(t, "https://hooks.example.com/alpha", cfg.ResolveWebhookURL("alpha"))
	assert.Equal(t, "https://hooks.example.com/base", cfg.ResolveWebhookURL("bravo"))
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults valid", func(c *Config) {}, false},
		{"missing sessions path", func(c *Config) { c.SessionsPath = "" }, true},
		{"bad cache type", func(c *Config) { c.Browser.WebVersionCacheType = "disk" }, true},
		{"remote cache type ok", func(c *Config) { c.Browser.WebVersionCacheType = "remote" }, false},
		{"negative attachment size", func(c *Config) { c.Events.MaxAttachmentSize = -1 }, true},
		{"ai without key", func(c *Config) { c.AI.Enabled = true; c.AI.APIKey = "" }, true},
		{"ai bad provider", func(c *Config) {
			c.AI.Enabled = true
			c.AI.APIKey = "k"
			c.AI.Provider = "bard"
		}, true},
		{"ai valid", func(c *Config) { c.AI.Enabled = true; c.AI.APIKey = "k" }, false},
		{"reply enabled without message", func(c *Config) { c.Reply.Enabled = true; c.Reply.Message = "" }, true},
		{"websocket bad port", func(c *Config) { c.Websocket.Enabled = true; c.Websocket.Port = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoader_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	assert.Equal(t, "./sessions", cfg.SessionsPath)
}

func TestLoader_ReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wabridge.json")
	content := `{
		"sessions_path": "/var/lib/wabridge/sessions",
		"webhook": {"base_url": "https://hooks.example.com", "secret": "s3cret"},
		"recover_sessions": true,
		"events": {"disabled": ["unread_count"]}
	}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/wabridge/sessions", cfg.SessionsPath)
	assert.Equal(t, "https://hooks.example.com", cfg.Webhook.BaseURL)
	assert.Equal(t, "s3cret", cfg.Webhook.Secret)
	assert.True(t, cfg.RecoverSessions)
	assert.False(t, cfg.EventEnabled("unread_count"))

	// Untouched fields keep defaults.
	assert.True(t, cfg.Browser.Headless)
}

func TestLoader_SaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg", "wabridge.json")
	loader := NewLoader(path)

	original := DefaultConfig()
	original.SessionsPath = "/data/sessions"
	original.Webhook.BaseURL = "https://hooks.example.com"
	require.NoError(t, loader.Save(original))

	loaded, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, "/data/sessions", loaded.SessionsPath)
	assert.Equal(t, "https://hooks.example.com", loaded.Webhook.BaseURL)
}
