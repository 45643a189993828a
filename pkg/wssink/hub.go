// Package wssink streams session events to websocket subscribers. Clients
// subscribe to one session id and receive every dispatched event for it
// as a JSON frame.
package wssink

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/harun/wabridge/internal/metrics"
	"github.com/harun/wabridge/pkg/waclient"
)

// client is one connected subscriber.
type client struct {
	id        string
	sessionID string
	conn      *websocket.Conn
	writeMu   sync.Mutex
}

func (c *client) send(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// frame is the wire format of one broadcast event.
type frame struct {
	DataType  string `json:"dataType"`
	SessionID string `json:"sessionId"`
	Data      any    `json:"data"`
}

// Hub is the websocket broadcast hub, keyed by session id.
type Hub struct {
	host     string
	port     int
	server   *http.Server
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[string]map[string]*client // sessionID -> clientID -> client

	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// NewHub creates a websocket hub listening on host:port.
func NewHub(host string, port int, mx *metrics.Metrics, logger zerolog.Logger) *Hub {
	return &Hub{
		host:    host,
		port:    port,
		clients: make(map[string]map[string]*client),
		metrics: mx,
		logger:  logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Consumers run on arbitrary origins
			},
		},
	}
}

// Start starts the hub's HTTP listener. Connections subscribe by path:
// ws://host:port/<sessionID>.
func (h *Hub) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", h.handleWebSocket)

	h.server = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", h.host, h.port),
		Handler: mux,
	}

	h.logger.Info().Int("port", h.port).Msg("Starting websocket hub")
	go func() {
		if err := h.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			h.logger.Error().Err(err).Msg("Websocket hub error")
		}
	}()
	return nil
}

// Stop closes every client connection and shuts the listener down.
func (h *Hub) Stop() error {
	h.mu.Lock()
	for _, sessionClients := range h.clients {
		for _, c := range sessionClients {
			c.conn.Close()
		}
	}
	h.clients = make(map[string]map[string]*client)
	h.mu.Unlock()

	if h.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return h.server.Shutdown(ctx)
}

// handleWebSocket upgrades a connection and registers it under the session
// id taken from the request path.
func (h *Hub) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.Trim(r.URL.Path, "/")
	if sessionID == "" {
		http.Error(w, "session id required", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("Websocket upgrade failed")
		return
	}

	c := &client{
		id:        uuid.NewString(),
		sessionID: sessionID,
		conn:      conn,
	}

	h.mu.Lock()
	if h.clients[sessionID] == nil {
		h.clients[sessionID] = make(map[string]*client)
	}
	h.clients[sessionID][c.id] = c
	h.mu.Unlock()

	h.logger.Info().Str("sessionId", sessionID).Str("clientId", c.id).Msg("Websocket client connected")

	// Read loop exists only to detect disconnects.
	go func() {
		defer h.remove(c)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	if sessionClients, ok := h.clients[c.sessionID]; ok {
		delete(sessionClients, c.id)
		if len(sessionClients) == 0 {
			delete(h.clients, c.sessionID)
		}
	}
	h.mu.Unlock()
	c.conn.Close()
	h.logger.Debug().Str("sessionId", c.sessionID).Str("clientId", c.id).Msg("Websocket client disconnected")
}

// Broadcast sends one event frame to every subscriber of a session. A
// slow or dead subscriber is dropped, not waited on.
func (h *Hub) Broadcast(sessionID string, kind waclient.EventKind, data any) error {
	payload, err := json.Marshal(frame{
		DataType:  string(kind),
		SessionID: sessionID,
		Data:      data,
	})
	if err != nil {
		h.count("error")
		return fmt.Errorf("failed to marshal websocket frame: %w", err)
	}

	h.mu.RLock()
	subscribers := make([]*client, 0, len(h.clients[sessionID]))
	for _, c := range h.clients[sessionID] {
		subscribers = append(subscribers, c)
	}
	h.mu.RUnlock()

	for _, c := range subscribers {
		if err := c.send(payload); err != nil {
			h.logger.Debug().Str("sessionId", sessionID).Str("clientId", c.id).Err(err).Msg("Dropping websocket client")
			h.remove(c)
		}
	}

	h.count("ok")
	return nil
}

// Terminate closes every subscriber of a session. Called when the session
// is deleted or disconnects.
func (h *Hub) Terminate(sessionID string) error {
	h.mu.Lock()
	sessionClients := h.clients[sessionID]
	delete(h.clients, sessionID)
	h.mu.Unlock()

	for _, c := range sessionClients {
		c.conn.Close()
	}
	return nil
}

// ClientCount returns the number of subscribers for a session.
func (h *Hub) ClientCount(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[sessionID])
}

func (h *Hub) count(status string) {
	if h.metrics != nil {
		m := h.metrics.WebsocketBroadcastsTotal
		m.WithLabelValues(status).Inc()
	}
}
