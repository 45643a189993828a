package waclient

import (
	"errors"
	"time"
)

// ErrPageUnavailable is returned when the transport page does not appear
// within the wait deadline.
var ErrPageUnavailable = errors.New("transport page not available")

// EventKind identifies one of the client's event stream kinds.
type EventKind string

const (
	EventAuthenticated          EventKind = "authenticated"
	EventAuthFailure            EventKind = "auth_failure"
	EventCall                   EventKind = "call"
	EventChangeState            EventKind = "change_state"
	EventChatArchived           EventKind = "chat_archived"
	EventChatRemoved            EventKind = "chat_removed"
	EventContactChanged         EventKind = "contact_changed"
	EventDisconnected           EventKind = "disconnected"
	EventGroupAdminChanged      EventKind = "group_admin_changed"
	EventGroupJoin              EventKind = "group_join"
	EventGroupLeave             EventKind = "group_leave"
	EventGroupMembershipRequest EventKind = "group_membership_request"
	EventGroupUpdate            EventKind = "group_update"
	EventLoadingScreen          EventKind = "loading_screen"
	EventMedia                  EventKind = "media"
	EventMediaUploaded          EventKind = "media_uploaded"
	EventMessage                EventKind = "message"
	EventMessageAck             EventKind = "message_ack"
	EventMessageCiphertext      EventKind = "message_ciphertext"
	EventMessageCreate          EventKind = "message_create"
	EventMessageEdit            EventKind = "message_edit"
	EventMessageReaction        EventKind = "message_reaction"
	EventMessageRevokeEveryone  EventKind = "message_revoke_everyone"
	EventMessageRevokeMe        EventKind = "message_revoke_me"
	EventQR                     EventKind = "qr"
	EventReady                  EventKind = "ready"
	EventUnreadCount            EventKind = "unread_count"
	EventVoteUpdate             EventKind = "vote_update"
)

// EventKinds lists every kind emitted directly by the client. The synthetic
// "media" kind is produced by the dispatcher, not the client, and is
// therefore excluded.
func EventKinds() []EventKind {
	return []EventKind{
		EventAuthenticated,
		EventAuthFailure,
		EventCall,
		EventChangeState,
		EventChatArchived,
		EventChatRemoved,
		EventContactChanged,
		EventDisconnected,
		EventGroupAdminChanged,
		EventGroupJoin,
		EventGroupLeave,
		EventGroupMembershipRequest,
		EventGroupUpdate,
		EventLoadingScreen,
		EventMediaUploaded,
		EventMessage,
		EventMessageAck,
		EventMessageCiphertext,
		EventMessageCreate,
		EventMessageEdit,
		EventMessageReaction,
		EventMessageRevokeEveryone,
		EventMessageRevokeMe,
		EventQR,
		EventReady,
		EventUnreadCount,
		EventVoteUpdate,
	}
}

// Handler receives an event payload. The concrete type depends on the kind:
// *Message for message-bearing kinds, string for qr, State for
// change_state, and map-shaped payloads for the rest.
type Handler func(data any)

// MessageType values mirror the web client's message type field.
const (
	MessageTypeChat              = "chat"
	MessageTypeGroupNotification = "group_notification"
	MessageTypeE2ENotification   = "e2e_notification"
	MessageTypeStatusBroadcast   = "status_broadcast"
)

// Message is the payload for message, message_ack and message_create.
type Message struct {
	ID        string    `json:"id"`
	ChatID    string    `json:"from"`
	To        string    `json:"to,omitempty"`
	Body      string    `json:"body"`
	Type      string    `json:"type"`
	FromMe    bool      `json:"fromMe"`
	IsGroup   bool      `json:"isGroup"`
	HasMedia  bool      `json:"hasMedia"`
	MediaSize int64     `json:"mediaSize,omitempty"`
	Ack       int       `json:"ack,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Media is a downloaded message attachment.
type Media struct {
	MimeType string `json:"mimetype"`
	Filename string `json:"filename,omitempty"`
	Data     []byte `json:"data"`
}

// MediaEvent is the payload of the synthetic media kind: the attachment
// together with the message that carried it.
type MediaEvent struct {
	Media   *Media   `json:"messageMedia"`
	Message *Message `json:"message"`
}
