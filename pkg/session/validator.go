package session

import (
	"context"
	"errors"
	"time"

	"github.com/harun/wabridge/pkg/waclient"
	"github.com/rs/zerolog/log"
)

const (
	// pageWaitTimeout bounds the wait for the handle to expose its
	// transport page.
	pageWaitTimeout = time.Second

	// probeMaxAttempts and probeTimeout bound the page-evaluability probe.
	probeMaxAttempts = 3
	probeTimeout     = time.Second
)

// probeOutcome tags the result of the page-evaluability probe.
type probeOutcome int

const (
	probeEvaluable probeOutcome = iota
	probeClosed
	probeExhausted
)

// Validate determines whether a session's underlying connection is usable.
// It never mutates state and never returns a Go error: every failure mode,
// including unexpected ones, becomes a structured result.
//
// State machine: registry lookup -> transport page wait -> evaluability
// probe -> native state query.
func (m *Manager) Validate(ctx context.Context, id string) ValidationResult {
	s, ok := m.registry.Get(id)
	if !ok || s == nil || s.Client == nil {
		return ValidationResult{Success: false, State: nil, Message: MessageSessionNotFound}
	}

	page, err := waclient.WaitForPage(ctx, s.Client, pageWaitTimeout)
	if err != nil {
		return ValidationResult{Success: false, State: nil, Message: err.Error()}
	}

	switch probeTransportPage(ctx, page) {
	case probeClosed:
		return ValidationResult{Success: false, State: nil, Message: MessageBrowserTabClosed}
	case probeExhausted:
		return ValidationResult{Success: false, State: nil, Message: MessageSessionClosed}
	}

	state, err := s.Client.GetState(ctx)
	if err != nil {
		log.Error().Str("sessionId", id).Err(err).Msg("Failed to validate session")
		return ValidationResult{Success: false, State: nil, Message: err.Error()}
	}
	if state != waclient.StateConnected {
		return ValidationResult{Success: false, State: &state, Message: MessageSessionNotConnected}
	}
	return ValidationResult{Success: true, State: &state, Message: MessageSessionConnected}
}

// probeTransportPage runs the bounded liveness probe. A closed tab fails
// immediately without retrying. Each attempt races a trivial evaluation
// against a one second timer; the timer winning counts as evaluable, only
// an evaluation failure consumes an attempt.
func probeTransportPage(ctx context.Context, page waclient.Page) probeOutcome {
	for attempt := 0; attempt < probeMaxAttempts; attempt++ {
		if page.IsClosed() {
			return probeClosed
		}
		evalCtx, cancel := context.WithTimeout(ctx, probeTimeout)
		err := page.Evaluate(evalCtx, "1")
		cancel()
		if err == nil || errors.Is(err, context.DeadlineExceeded) {
			return probeEvaluable
		}
	}
	return probeExhausted
}
