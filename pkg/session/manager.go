package session

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/harun/wabridge/internal/config"
	"github.com/harun/wabridge/internal/metrics"
	"github.com/harun/wabridge/pkg/responder"
	"github.com/harun/wabridge/pkg/waclient"
)

const (
	// browserCloseTimeout bounds the graceful browser shutdown during a
	// reload before the process is killed.
	browserCloseTimeout = 5 * time.Second

	// disconnectPollInterval and disconnectPollMax bound the wait for the
	// browser to actually disconnect during a delete.
	disconnectPollInterval = time.Second
	disconnectPollMax      = 10
)

// Manager owns the full lifecycle of managed sessions: setup, restore,
// reload, delete and flush. All mutating operations for one id serialize
// on the registry's per-id lock.
type Manager struct {
	cfg      *config.Config
	registry *Registry
	storage  *Storage
	factory  waclient.Factory

	webhook   WebhookSink
	websocket WebsocketSink
	responder responder.Responder

	metrics *metrics.Metrics
}

// NewManager constructs a Manager. webhook, websocket, responder and
// metrics may be nil; the corresponding features are then disabled.
func NewManager(cfg *config.Config, registry *Registry, storage *Storage, factory waclient.Factory, opts ...Option) *Manager {
	m := &Manager{
		cfg:      cfg,
		registry: registry,
		storage:  storage,
		factory:  factory,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Option customizes a Manager.
type Option func(*Manager)

// WithWebhookSink wires the outbound webhook sink.
func WithWebhookSink(sink WebhookSink) Option {
	return func(m *Manager) { m.webhook = sink }
}

// WithWebsocketSink wires the websocket broadcast sink.
func WithWebsocketSink(sink WebsocketSink) Option {
	return func(m *Manager) { m.websocket = sink }
}

// WithResponder wires the AI responder used for automatic replies.
func WithResponder(r responder.Responder) Option {
	return func(m *Manager) { m.responder = r }
}

// WithMetrics wires the metrics collectors.
func WithMetrics(mx *metrics.Metrics) Option {
	return func(m *Manager) { m.metrics = mx }
}

// Registry exposes the session registry for read-side consumers.
func (m *Manager) Registry() *Registry {
	return m.registry
}

// Setup creates and initializes a session under id. Setting up an id that
// is already registered is not an error: it returns the existing handle
// with Success=false so callers can distinguish fresh from reused.
func (m *Manager) Setup(ctx context.Context, id string) (SetupResult, error) {
	unlock := m.registry.LockID(id)
	defer unlock()
	return m.setupLocked(ctx, id)
}

// setupLocked is Setup without lock acquisition. Reload and the recovery
// watchdog call it while already holding the id lock.
func (m *Manager) setupLocked(ctx context.Context, id string) (SetupResult, error) {
	if existing, ok := m.registry.Get(id); ok {
		return SetupResult{Success: false, Message: "Session already exists for: " + id, Client: existing.Client}, nil
	}

	if m.cfg.Browser.ReleaseLock {
		if err := m.storage.ReleaseSingletonLock(id); err != nil {
			log.Warn().Str("sessionId", id).Err(err).Msg("Failed to release browser profile lock")
		}
	}

	client, err := m.factory.New(m.buildClientOptions(id))
	if err != nil {
		if m.metrics != nil {
			m.metrics.SessionSetupsTotal.WithLabelValues("error").Inc()
		}
		return SetupResult{Success: false, Message: err.Error()},
			newError(ErrCodeInitialize, "failed to create session client", err)
	}

	if err := client.Initialize(ctx); err != nil {
		log.Error().Str("sessionId", id).Err(err).Msg("Initialize error")
		if m.metrics != nil {
			m.metrics.SessionSetupsTotal.WithLabelValues("error").Inc()
		}
		return SetupResult{Success: false, Message: err.Error()},
			newError(ErrCodeInitialize, "failed to initialize session", err)
	}

	s := &Session{
		ID:         id,
		Client:     client,
		WebhookURL: m.cfg.ResolveWebhookURL(id),
	}
	m.wireEvents(s)
	m.registry.Put(s)
	if m.cfg.RecoverSessions {
		go m.armWatchdog(s)
	}

	if m.metrics != nil {
		m.metrics.SessionSetupsTotal.WithLabelValues("ok").Inc()
		m.metrics.SessionsActive.Set(float64(m.registry.Count()))
	}
	log.Info().Str("sessionId", id).Msg("Session initialized")
	return SetupResult{Success: true, Message: "Session initiated successfully", Client: client}, nil
}

// Restore sets up every persisted session found on disk. Best effort
// throughout: an enumeration failure or one broken profile is logged and
// never blocks the rest.
func (m *Manager) Restore(ctx context.Context) error {
	ids, err := m.storage.ListPersisted()
	if err != nil {
		log.Error().Err(err).Msg("Failed to enumerate persisted sessions")
		return nil
	}
	for _, id := range ids {
		if _, err := m.Setup(ctx, id); err != nil {
			log.Error().Str("sessionId", id).Err(err).Msg("Failed to restore session")
		}
	}
	return nil
}

// Reload tears down a registered session's browser transport and sets it
// up again, keeping the persisted profile. Used when the connection wedged
// but the credentials are still good. A no-op for unknown ids.
func (m *Manager) Reload(ctx context.Context, id string) (SetupResult, error) {
	unlock := m.registry.LockID(id)
	defer unlock()

	s, ok := m.registry.Get(id)
	if !ok {
		return SetupResult{Success: false, Message: MessageSessionNotFound}, nil
	}
	m.teardownTransport(ctx, s)
	m.registry.Delete(id)

	result, err := m.setupLocked(ctx, id)
	if err == nil && m.metrics != nil {
		m.metrics.SessionReloadsTotal.Inc()
	}
	return result, err
}

// teardownTransport detaches page listeners and closes the browser,
// escalating to a process kill when the graceful close overruns.
func (m *Manager) teardownTransport(ctx context.Context, s *Session) {
	if s.Client == nil {
		return
	}
	if page := s.Client.Page(); page != nil {
		page.RemoveAllListeners(waclient.PageClose)
		page.RemoveAllListeners(waclient.PageError)
	}
	browser := s.Client.Browser()
	if browser == nil {
		return
	}
	if pages, err := browser.Pages(); err == nil {
		for _, p := range pages {
			if err := p.Close(ctx); err != nil {
				log.Debug().Str("sessionId", s.ID).Err(err).Msg("Failed to close transport page")
			}
		}
	}
	closeCtx, cancel := context.WithTimeout(ctx, browserCloseTimeout)
	defer cancel()
	if err := browser.Close(closeCtx); err != nil {
		log.Warn().Str("sessionId", s.ID).Err(err).Msg("Browser close timed out, killing process")
		if proc := browser.Process(); proc != nil {
			if err := proc.Kill(); err != nil {
				log.Error().Str("sessionId", s.ID).Err(err).Msg("Failed to kill browser process")
			}
		}
	}
}

// Delete logs out (or force-destroys) a registered session and removes
// its persisted folder. The validation decides the teardown path: a
// healthy session gets a protocol logout, a merely disconnected one a
// destroy, anything else only the registry and folder cleanup. A no-op
// for unknown ids; the folder of a never-registered session stays.
func (m *Manager) Delete(ctx context.Context, id string, validation ValidationResult) error {
	unlock := m.registry.LockID(id)
	defer unlock()

	s, hasEntry := m.registry.Get(id)
	if !hasEntry {
		return nil
	}
	if s.Client != nil {
		if page := s.Client.Page(); page != nil {
			page.RemoveAllListeners(waclient.PageClose)
			page.RemoveAllListeners(waclient.PageError)
		}
		if m.websocket != nil {
			if err := m.websocket.Terminate(id); err != nil {
				log.Debug().Str("sessionId", id).Err(err).Msg("Failed to terminate websocket channel")
			}
		}

		switch {
		case validation.Success:
			if err := s.Client.Logout(ctx); err != nil {
				return newError(ErrCodeLogout, "failed to log out session", err)
			}
		case validation.Message == MessageSessionNotConnected:
			if err := s.Client.Destroy(ctx); err != nil {
				return newError(ErrCodeDestroy, "failed to destroy session", err)
			}
		}

		m.waitBrowserDisconnect(ctx, s)
		s.ClearQR()
	}

	m.registry.Delete(id)
	if m.metrics != nil {
		m.metrics.SessionDeletesTotal.Inc()
		m.metrics.SessionsActive.Set(float64(m.registry.Count()))
	}

	if err := m.storage.DeleteFolder(id); err != nil {
		return err
	}
	log.Info().Str("sessionId", id).Msg("Session deleted")
	return nil
}

// waitBrowserDisconnect polls until the browser reports disconnected so
// the profile folder is free before removal.
func (m *Manager) waitBrowserDisconnect(ctx context.Context, s *Session) {
	browser := s.Client.Browser()
	if browser == nil {
		return
	}
	for i := 0; i < disconnectPollMax && browser.IsConnected(); i++ {
		select {
		case <-ctx.Done():
			return
		case <-time.After(disconnectPollInterval):
		}
	}
}

// Flush deletes sessions in bulk. With deleteOnlyInactive set, connected
// sessions survive; otherwise everything goes, registered or merely
// persisted on disk.
func (m *Manager) Flush(ctx context.Context, deleteOnlyInactive bool) error {
	ids, err := m.storage.ListPersisted()
	if err != nil {
		return err
	}
	for _, id := range ids {
		validation := m.Validate(ctx, id)
		if deleteOnlyInactive && validation.Success {
			continue
		}
		if err := m.Delete(ctx, id, validation); err != nil {
			return fmt.Errorf("failed to flush session %s: %w", id, err)
		}
	}
	return nil
}

/// Status answers the external status query: the validation outcome plus
// any pending pairing QR.
func (m *Manager) Status(ctx context.Context, id string) StatusResult {
	start := time.Now()
	validation := m.Validate(ctx, id)
	if m.metrics != nil {
		m.metrics.ValidationDuration.Observe(time.Since(start).Seconds())
	}

	result := StatusResult{
		Success: validation.Success,
		State:   validation.State,
		Message: validation.Message,
	}
	if s, ok := m.registry.Get(id); ok {
		result.QR = s.QR()
	}
	return result
}

// buildClientOptions maps the configuration onto transport options for
// one session.
func (m *Manager) buildClientOptions(id string) waclient.Options {
	return waclient.Options{
		SessionID:           id,
		DataDir:             m.storage.SessionDir(id),
		BinaryPath:          m.cfg.Browser.Bin,
		Headless:            m.cfg.Browser.Headless,
		WebVersion:          m.cfg.Browser.WebVersion,
		WebVersionCacheType: m.cfg.Browser.WebVersionCacheType,
	}
}
