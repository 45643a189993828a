package session

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/harun/wabridge/pkg/waclient"
)

// armWatchdog attaches one-shot crash listeners to the session's transport
// page. Both tab close and page error funnel into a single restart; the
// re-setup arms a fresh watchdog on the new handle, so recovery keeps
// going for as long as the process lives.
func (m *Manager) armWatchdog(s *Session) {
	ctx := context.Background()
	page, err := waclient.WaitForPage(ctx, s.Client, pageWaitTimeout)
	if err != nil {
		log.Warn().Str("sessionId", s.ID).Err(err).Msg("Watchdog could not attach, transport page unavailable")
		return
	}
	page.Once(waclient.PageClose, func() {
		log.Info().Str("sessionId", s.ID).Msg("Transport page closed, restarting session")
		m.restartSession(s)
	})
	page.Once(waclient.PageError, func() {
		log.Info().Str("sessionId", s.ID).Msg("Transport page crashed, restarting session")
		m.restartSession(s)
	})
}

// restartSession replaces a dead handle with a fresh one under the id
// lock. The dead client is destroyed best-effort; the persisted profile
// stays so the new handle restores the same account.
func (m *Manager) restartSession(s *Session) {
	ctx := context.Background()
	unlock := m.registry.LockID(s.ID)
	defer unlock()

	current, ok := m.registry.Get(s.ID)
	if !ok || current != s {
		// Already replaced or deleted by a concurrent operation.
		return
	}
	m.registry.Delete(s.ID)
	s.ClearQR()
	if err := s.Client.Destroy(ctx); err != nil {
		log.Debug().Str("sessionId", s.ID).Err(err).Msg("Failed to destroy dead client")
	}

	if _, err := m.setupLocked(ctx, s.ID); err != nil {
		log.Error().Str("sessionId", s.ID).Err(err).Msg("Failed to restart session")
		return
	}
	if m.metrics != nil {
		m.metrics.SessionRecoveriesTotal.Inc()
	}
	log.Info().Str("sessionId", s.ID).Msg("Session restarted")
}
