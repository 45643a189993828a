package session

import (
	"testing"
	"time"

	"github.com/harun/wabridge/internal/config"
)

// timeout returns a channel that fires after a generous test deadline.
func timeout(t *testing.T) <-chan time.Time {
	t.Helper()
	return time.After(2 * time.Second)
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.SessionsPath = t.TempDir()
	cfg.Webhook.BaseURL = "http://127.0.0.1:9/webhook"
	return cfg
}

func newTestManager(t *testing.T, cfg *config.Config, factory *fakeFactory, opts ...Option) *Manager {
	t.Helper()
	storage, err := NewStorage(cfg.SessionsPath)
	if err != nil {
		t.Fatalf("storage: %v", err)
	}
	return NewManager(cfg, NewRegistry(), storage, factory, opts...)
}
