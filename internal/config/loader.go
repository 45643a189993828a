package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Loader handles configuration loading
type Loader struct {
	configPath string
}

// NewLoader creates a new config loader
func NewLoader(configPath string) *Loader {
	return &Loader{
		configPath: configPath,
	}
}

// Load loads the configuration from file
func (l *Loader) Load() (*Config, error) {
	// Determine config path
	configPath := l.configPath
	if configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		configPath = filepath.Join(home, ".wabridge", "wabridge.json")
	}

	// Setup viper
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("json")

	// Read environment variables
	v.SetEnvPrefix("WABRIDGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Unmarshal into config struct
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Set logging file path if not specified
	if cfg.Logging.File == "" {
		cfg.Logging.File = filepath.Join(filepath.Dir(configPath), "wabridge.log")
	}

	return cfg, nil
}

// Save saves the configuration to file
func (l *Loader) Save(cfg *Config) error {
	configPath := l.configPath
	if configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		configPath = filepath.Join(home, ".wabridge", "wabridge.json")
	}

	// Ensure directory exists
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Setup viper
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("json")

	v.Set("sessions_path", cfg.SessionsPath)
	v.Set("webhook.base_url", cfg.Webhook.BaseURL)
	v.Set("webhook.secret", cfg.Webhook.Secret)
	v.Set("webhook.timeout", cfg.Webhook.Timeout)
	v.Set("websocket.enabled", cfg.Websocket.Enabled)
	v.Set("websocket.port", cfg.Websocket.Port)
	v.Set("websocket.host", cfg.Websocket.Host)
	v.Set("browser.bin", cfg.Browser.Bin)
	v.Set("browser.headless", cfg.Browser.Headless)
	v.Set("browser.release_lock", cfg.Browser.ReleaseLock)
	v.Set("browser.web_version", cfg.Browser.WebVersion)
	v.Set("browser.web_version_cache_type", cfg.Browser.WebVersionCacheType)
	v.Set("events.disabled", cfg.Events.Disabled)
	v.Set("events.max_attachment_size", cfg.Events.MaxAttachmentSize)
	v.Set("events.set_messages_as_seen", cfg.Events.SetMessagesAsSeen)
	v.Set("reply.enabled", cfg.Reply.Enabled)
	v.Set("reply.message", cfg.Reply.Message)
	v.Set("ai.enabled", cfg.AI.Enabled)
	v.Set("ai.provider", cfg.AI.Provider)
	v.Set("ai.api_key", cfg.AI.APIKey)
	v.Set("ai.model", cfg.AI.Model)
	v.Set("ai.max_tokens", cfg.AI.MaxTokens)
	v.Set("recover_sessions", cfg.RecoverSessions)
	v.Set("watch_sessions", cfg.WatchSessions)
	v.Set("flush_schedule", cfg.FlushSchedule)
	v.Set("logging.level", cfg.Logging.Level)
	v.Set("logging.console", cfg.Logging.Console)
	v.Set("logging.pretty", cfg.Logging.Pretty)
	v.Set("metrics.enabled", cfg.Metrics.Enabled)
	v.Set("metrics.port", cfg.Metrics.Port)
	v.Set("metrics.host", cfg.Metrics.Host)

	// Write config file
	if err := v.WriteConfig(); err != nil {
		// If file doesn't exist, create it
		if os.IsNotExist(err) {
			if err := v.SafeWriteConfig(); err != nil {
				return fmt.Errorf("failed to write config file: %w", err)
			}
		} else {
			return fmt.Errorf("failed to write config file: %w", err)
		}
	}

	return nil
}

// GetConfigPath returns the config file path
func (l *Loader) GetConfigPath() string {
	if l.configPath != "" {
		return l.configPath
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".wabridge", "wabridge.json")
}

// Load is a convenience function that creates a loader and loads the config
func Load(configPath string) (*Config, error) {
	loader := NewLoader(configPath)
	return loader.Load()
}
