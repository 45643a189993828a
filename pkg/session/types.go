package session

import (
	"context"
	"sync"
	"time"

	"github.com/harun/wabridge/pkg/waclient"
)

// Validation result messages. These are wire-visible strings; clients key
// off them, so they never change.
const (
	MessageSessionNotFound     = "session_not_found"
	MessageSessionNotConnected = "session_not_connected"
	MessageSessionConnected    = "session_connected"
	MessageBrowserTabClosed    = "browser tab closed"
	MessageSessionClosed       = "session closed"
)

// ValidationResult is the structured outcome of a health validation. The
// validator never fails with a Go error: every failure mode maps onto
// Success=false with a message.
type ValidationResult struct {
	Success bool            `json:"success"`
	State   *waclient.State `json:"state"`
	Message string          `json:"message"`
}

// SetupResult is returned by Setup.
type SetupResult struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Client  waclient.Client `json:"-"`
}

// StatusResult is the external status query answer: validation outcome
// plus the currently pending QR code, if any.
type StatusResult struct {
	Success bool            `json:"success"`
	State   *waclient.State `json:"state"`
	Message string          `json:"message"`
	QR      string          `json:"qr,omitempty"`
}

// defaultQRTTL is how long a pairing QR stays readable before it is
// cleared, unless a fresh one replaces it first.
const defaultQRTTL = 30 * time.Second

// Session is one managed connection, keyed by id. The Client is owned
// exclusively by this entry; once the entry leaves the registry the
// Session is stale and must not be reused for lifecycle operations.
type Session struct {
	ID     string
	Client waclient.Client

	// WebhookURL is resolved once at event wiring time and immutable after.
	WebhookURL string

	// QRTTL overrides the pairing QR expiry; zero means the default.
	QRTTL time.Duration

	mu      sync.Mutex
	qr      string
	qrTimer *time.Timer
}

// SetQR stores a pairing QR and (re)arms the expiry timer. A fresh QR
// resets the clock.
func (s *Session) SetQR(qr string, onExpire func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ttl := s.QRTTL
	if ttl <= 0 {
		ttl = defaultQRTTL
	}
	if s.qrTimer != nil {
		s.qrTimer.Stop()
	}
	s.qr = qr
	s.qrTimer = time.AfterFunc(ttl, func() {
		s.mu.Lock()
		expired := s.qr != ""
		s.qr = ""
		s.mu.Unlock()
		if expired && onExpire != nil {
			onExpire()
		}
	})
}

// QR returns the pending pairing QR, or "" when none is pending.
func (s *Session) QR() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.qr
}

// ClearQR drops the stored QR and stops the expiry timer.
func (s *Session) ClearQR() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.qrTimer != nil {
		s.qrTimer.Stop()
		s.qrTimer = nil
	}
	s.qr = ""
}

// WebhookSink delivers one event to an HTTP consumer. Failures are the
// sink's own concern; the dispatcher logs and moves on.
type WebhookSink interface {
	Deliver(ctx context.Context, url, sessionID string, kind waclient.EventKind, payload any) error
}

// WebsocketSink broadcasts events to websocket subscribers keyed by
// session id.
type WebsocketSink interface {
	Broadcast(sessionID string, kind waclient.EventKind, payload any) error
	Terminate(sessionID string) error
}
