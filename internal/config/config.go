package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Config represents the main wabridge configuration
type Config struct {
	// Sessions directory (persisted browser profiles)
	SessionsPath string `json:"sessions_path" mapstructure:"sessions_path"`

	// Webhook sink
	Webhook WebhookConfig `json:"webhook" mapstructure:"webhook"`

	// Websocket sink
	Websocket WebsocketConfig `json:"websocket" mapstructure:"websocket"`

	// Browser transport
	Browser BrowserConfig `json:"browser" mapstructure:"browser"`

	// Event dispatching
	Events EventsConfig `json:"events" mapstructure:"events"`

	// Automatic replies
	Reply ReplyConfig `json:"reply" mapstructure:"reply"`

	// AI responder
	AI AIConfig `json:"ai" mapstructure:"ai"`

	// Session recovery and maintenance
	RecoverSessions bool   `json:"recover_sessions" mapstructure:"recover_sessions"`
	WatchSessions   bool   `json:"watch_sessions" mapstructure:"watch_sessions"`
	FlushSchedule   string `json:"flush_schedule" mapstructure:"flush_schedule"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Metrics endpoint
	Metrics MetricsConfig `json:"metrics" mapstructure:"metrics"`
}

// WebhookConfig holds the outbound webhook sink configuration
type WebhookConfig struct {
	BaseURL string `json:"base_url" mapstructure:"base_url"`
	Secret  string `json:"secret" mapstructure:"secret"`
	Timeout int    `json:"timeout" mapstructure:"timeout"` // seconds
}

// WebsocketConfig holds the websocket sink configuration
type WebsocketConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Port    int    `json:"port" mapstructure:"port"`
	Host    string `json:"host" mapstructure:"host"`
}

// BrowserConfig holds the browser transport configuration
type BrowserConfig struct {
	Bin                 string `json:"bin" mapstructure:"bin"`
	Headless            bool   `json:"headless" mapstructure:"headless"`
	ReleaseLock         bool   `json:"release_lock" mapstructure:"release_lock"`
	WebVersion          string `json:"web_version" mapstructure:"web_version"`
	WebVersionCacheType string `json:"web_version_cache_type" mapstructure:"web_version_cache_type"` // local, remote, none
}

// EventsConfig holds event dispatching configuration
type EventsConfig struct {
	Disabled          []string `json:"disabled" mapstructure:"disabled"`
	MaxAttachmentSize int64    `json:"max_attachment_size" mapstructure:"max_attachment_size"`
	SetMessagesAsSeen bool     `json:"set_messages_as_seen" mapstructure:"set_messages_as_seen"`
}

// ReplyConfig holds static auto-reply configuration
type ReplyConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Message string `json:"message" mapstructure:"message"`
}

// AIConfig holds AI responder configuration
type AIConfig struct {
	Enabled   bool   `json:"enabled" mapstructure:"enabled"`
	Provider  string `json:"provider" mapstructure:"provider"` // anthropic, openai
	APIKey    string `json:"api_key" mapstructure:"api_key"`
	Model     string `json:"model" mapstructure:"model"`
	MaxTokens int    `json:"max_tokens" mapstructure:"max_tokens"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level   string `json:"level" mapstructure:"level"`
	File    string `json:"file" mapstructure:"file"`
	Console bool   `json:"console" mapstructure:"console"`
	Pretty  bool   `json:"pretty" mapstructure:"pretty"`
}

// MetricsConfig holds the metrics endpoint configuration
type MetricsConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Port    int    `json:"port" mapstructure:"port"`
	Host    string `json:"host" mapstructure:"host"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		SessionsPath: "./sessions",
		Webhook: WebhookConfig{
			Timeout: 10,
		},
		Websocket: WebsocketConfig{
			Enabled: false,
			Port:    6001,
			Host:    "0.0.0.0",
		},
		Browser: BrowserConfig{
			Headless:            true,
			ReleaseLock:         true,
			WebVersionCacheType: "none",
		},
		Events: EventsConfig{
			MaxAttachmentSize: 10_000_000,
		},
		Reply: ReplyConfig{
			Message: "Thank you for your message! I am currently unavailable but will get back to you soon.",
		},
		AI: AIConfig{
			Provider:  "anthropic",
			Model:     "claude-sonnet-4",
			MaxTokens: 1024,
		},
		Logging: LoggingConfig{
			Level:   "info",
			Console: true,
			Pretty:  true,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
			Host:    "0.0.0.0",
		},
	}
}

// EventEnabled reports whether an event kind should be dispatched. The
// disabled list wins; everything else is on.
func (c *Config) EventEnabled(kind string) bool {
	for _, disabled := range c.Events.Disabled {
		if disabled == kind {
			return false
		}
	}
	return true
}

// ResolveWebhookURL resolves the webhook target for a session: a
// per-session environment override (<UPPER(id)>_WEBHOOK_URL) wins over
// the configured base URL.
func (c *Config) ResolveWebhookURL(sessionID string) string {
	if override := os.Getenv(strings.ToUpper(sessionID) + "_WEBHOOK_URL"); override != "" {
		return override
	}
	return c.Webhook.BaseURL
}

// String returns a JSON representation of the config
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.SessionsPath == "" {
		return fmt.Errorf("sessions_path is required")
	}

	switch c.Browser.WebVersionCacheType {
	case "", "local", "remote", "none":
	default:
		return fmt.Errorf("invalid web_version_cache_type %q (must be: local, remote, none)", c.Browser.WebVersionCacheType)
	}

	if c.Events.MaxAttachmentSize <= 0 {
		return fmt.Errorf("max_attachment_size must be positive")
	}

	if c.AI.Enabled {
		if c.AI.Provider != "anthropic" && c.AI.Provider != "openai" {
			return fmt.Errorf("invalid AI provider %q (must be: anthropic, openai)", c.AI.Provider)
		}
		if c.AI.APIKey == "" {
			return fmt.Errorf("AI api_key is required when the AI responder is enabled")
		}
		if c.AI.Model == "" {
			return fmt.Errorf("AI model is required when the AI responder is enabled")
		}
	}

	if c.Reply.Enabled && c.Reply.Message == "" {
		return fmt.Errorf("reply message is required when auto-reply is enabled")
	}

	if c.Websocket.Enabled && (c.Websocket.Port < 1 || c.Websocket.Port > 65535) {
		return fmt.Errorf("invalid websocket port %d", c.Websocket.Port)
	}

	return nil
}
