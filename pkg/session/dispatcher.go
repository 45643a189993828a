package session

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/harun/wabridge/pkg/responder"
	"github.com/harun/wabridge/pkg/waclient"
)

// wireEvents registers handlers on a freshly built client. Enablement per
// kind is resolved once, here; a disabled kind is never forwarded. The qr
// handler is always installed because it also feeds the status query.
func (m *Manager) wireEvents(s *Session) {
	for _, kind := range waclient.EventKinds() {
		kind := kind
		switch kind {
		case waclient.EventQR:
			s.Client.On(kind, m.qrHandler(s, m.cfg.EventEnabled(string(kind))))
		case waclient.EventMessage:
			if m.cfg.EventEnabled(string(kind)) {
				s.Client.On(kind, m.messageHandler(s))
			}
		case waclient.EventMessageAck, waclient.EventMessageCreate:
			if m.cfg.EventEnabled(string(kind)) {
				s.Client.On(kind, m.forwardAndSeenHandler(s, kind))
			}
		case waclient.EventDisconnected:
			s.Client.On(kind, m.disconnectedHandler(s, m.cfg.EventEnabled(string(kind))))
		case waclient.EventReady, waclient.EventAuthenticated:
			enabled := m.cfg.EventEnabled(string(kind))
			s.Client.On(kind, func(data any) {
				s.ClearQR()
				if enabled {
					m.forward(s, kind, data)
				}
			})
		default:
			if m.cfg.EventEnabled(string(kind)) {
				s.Client.On(kind, func(data any) {
					m.forward(s, kind, data)
				})
			}
		}
	}
}

// forward delivers one event to both sinks. Each sink fails on its own;
// a webhook error never suppresses the websocket broadcast and vice versa.
func (m *Manager) forward(s *Session, kind waclient.EventKind, payload any) {
	if m.metrics != nil {
		m.metrics.EventsDispatchedTotal.WithLabelValues(string(kind)).Inc()
	}

	if m.webhook != nil && s.WebhookURL != "" {
		if err := m.webhook.Deliver(context.Background(), s.WebhookURL, s.ID, kind, payload); err != nil {
			log.Error().Str("sessionId", s.ID).Str("event", string(kind)).Err(err).Msg("Webhook delivery failed")
		}
	}
	if m.websocket != nil {
		if err := m.websocket.Broadcast(s.ID, kind, payload); err != nil {
			log.Error().Str("sessionId", s.ID).Str("event", string(kind)).Err(err).Msg("Websocket broadcast failed")
		}
	}
}

// qrHandler stores each fresh QR with its expiry and forwards it only when
// the kind is enabled.
func (m *Manager) qrHandler(s *Session, enabled bool) waclient.Handler {
	return func(data any) {
		qr, _ := data.(string)
		s.SetQR(qr, func() {
			log.Debug().Str("sessionId", s.ID).Msg("Pairing QR expired")
		})
		if enabled {
			m.forward(s, waclient.EventQR, qr)
		}
	}
}

// messageHandler forwards an inbound message and runs the side effects:
// media fetch, read receipt and automatic reply.
func (m *Manager) messageHandler(s *Session) waclient.Handler {
	return func(data any) {
		msg, ok := data.(*waclient.Message)
		if !ok {
			return
		}
		m.forward(s, waclient.EventMessage, msg)
		m.handleInboundMessage(s, msg)
	}
}

// forwardAndSeenHandler covers message_ack and message_create: forward,
// then mark the chat seen when configured.
func (m *Manager) forwardAndSeenHandler(s *Session, kind waclient.EventKind) waclient.Handler {
	return func(data any) {
		msg, ok := data.(*waclient.Message)
		if !ok {
			return
		}
		m.forward(s, kind, msg)
		if m.cfg.Events.SetMessagesAsSeen {
			m.markSeen(s, msg.ChatID)
		}
	}
}

// disconnectedHandler drops the registry entry and closes the websocket
// channel when the remote side ends the session.
func (m *Manager) disconnectedHandler(s *Session, enabled bool) waclient.Handler {
	return func(data any) {
		if enabled {
			m.forward(s, waclient.EventDisconnected, data)
		}
		log.Info().Str("sessionId", s.ID).Msg("Session disconnected")
		m.registry.Delete(s.ID)
		if m.metrics != nil {
			m.metrics.SessionsActive.Set(float64(m.registry.Count()))
		}
		if m.websocket != nil {
			if err := m.websocket.Terminate(s.ID); err != nil {
				log.Debug().Str("sessionId", s.ID).Err(err).Msg("Failed to terminate websocket channel")
			}
		}
	}
}

// handleInboundMessage runs the per-message side effects in order: media
// forwarding, read receipt, then at most one automatic reply.
func (m *Manager) handleInboundMessage(s *Session, msg *waclient.Message) {
	if msg.HasMedia && msg.MediaSize < m.cfg.Events.MaxAttachmentSize && m.cfg.EventEnabled(string(waclient.EventMedia)) {
		go m.forwardMedia(s, msg)
	}

	if m.cfg.Events.SetMessagesAsSeen {
		m.markSeen(s, msg.ChatID)
	}

	if !m.shouldReply(msg) {
		return
	}
	if m.cfg.AI.Enabled && m.responder != nil {
		m.sendAIReply(s, msg)
		return
	}
	if m.cfg.Reply.Enabled {
		m.sendStaticReply(s, msg)
	}
}

// shouldReply filters out messages that must never trigger an automatic
// reply: own messages, group service notifications and status broadcasts.
func (m *Manager) shouldReply(msg *waclient.Message) bool {
	if msg.FromMe {
		return false
	}
	if msg.IsGroup && (msg.Type == waclient.MessageTypeGroupNotification || msg.Type == waclient.MessageTypeE2ENotification) {
		return false
	}
	if msg.Type == waclient.MessageTypeStatusBroadcast {
		return false
	}
	return true
}

// forwardMedia downloads the attachment and dispatches it as a synthetic
// media event paired with its message.
func (m *Manager) forwardMedia(s *Session, msg *waclient.Message) {
	media, err := s.Client.DownloadMedia(context.Background(), msg.ID)
	if err != nil {
		log.Error().Str("sessionId", s.ID).Str("messageId", msg.ID).Err(err).Msg("Failed to download media")
		return
	}
	if media == nil {
		return
	}
	m.forward(s, waclient.EventMedia, &waclient.MediaEvent{Media: media, Message: msg})
}

func (m *Manager) markSeen(s *Session, chatID string) {
	if err := s.Client.MarkSeen(context.Background(), chatID); err != nil {
		log.Error().Str("sessionId", s.ID).Str("chatId", chatID).Err(err).Msg("Failed to mark chat as seen")
	}
}

// sendStaticReply quotes the inbound message with the configured text.
func (m *Manager) sendStaticReply(s *Session, msg *waclient.Message) {
	opts := waclient.SendOptions{QuotedMessageID: msg.ID}
	if err := s.Client.SendMessage(context.Background(), msg.ChatID, m.cfg.Reply.Message, opts); err != nil {
		log.Error().Str("sessionId", s.ID).Str("chatId", msg.ChatID).Err(err).Msg("Failed to send auto-reply")
		return
	}
	if m.metrics != nil {
		m.metrics.RepliesSentTotal.WithLabelValues("static").Inc()
	}
}

// sendAIReply asks the responder for a reply to the inbound text. The AI
// path is exclusive: on failure nothing falls back to the static reply.
func (m *Manager) sendAIReply(s *Session, msg *waclient.Message) {
	out, err := m.responder.Invoke(context.Background(), responder.Input{
		Messages: []responder.Message{{Role: responder.RoleUser, Content: msg.Body}},
	}, responder.Options{ThreadID: msg.ChatID})
	if err != nil {
		log.Error().Str("sessionId", s.ID).Str("chatId", msg.ChatID).Err(err).Msg("AI responder failed")
		return
	}
	if out.Text == "" {
		return
	}
	opts := waclient.SendOptions{QuotedMessageID: msg.ID}
	if err := s.Client.SendMessage(context.Background(), msg.ChatID, out.Text, opts); err != nil {
		log.Error().Str("sessionId", s.ID).Str("chatId", msg.ChatID).Err(err).Msg("Failed to send AI reply")
		return
	}
	if m.metrics != nil {
		m.metrics.RepliesSentTotal.WithLabelValues("ai").Inc()
	}
}
