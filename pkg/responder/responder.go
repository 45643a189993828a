// Package responder generates AI replies to inbound chat messages. Each
// conversation thread keeps a bounded rolling history so replies stay
// coherent across turns.
package responder

import (
	"context"
	"fmt"
	"sync"

	"github.com/harun/wabridge/internal/config"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Input carries the new turns to respond to.
type Input struct {
	Messages []Message
}

// Options scopes an invocation. ThreadID keys the conversation memory;
// invocations with the same ThreadID share history.
type Options struct {
	ThreadID string
}

// Output is the generated reply.
type Output struct {
	Text string `json:"text"`
}

// Responder generates a reply for a conversation turn.
type Responder interface {
	Invoke(ctx context.Context, in Input, opts Options) (Output, error)
}

// New builds the configured responder, or nil when the AI responder is
// disabled.
func New(cfg *config.Config) (Responder, error) {
	if !cfg.AI.Enabled {
		return nil, nil
	}
	switch cfg.AI.Provider {
	case "anthropic":
		return NewAnthropicResponder(cfg.AI.APIKey, cfg.AI.Model, cfg.AI.MaxTokens), nil
	case "openai":
		return NewOpenAIResponder(cfg.AI.APIKey, cfg.AI.Model, cfg.AI.MaxTokens), nil
	default:
		return nil, fmt.Errorf("unknown AI provider: %s", cfg.AI.Provider)
	}
}

// maxThreadHistory caps the turns kept per thread.
const maxThreadHistory = 20

// threadMemory is the shared per-thread conversation store.
type threadMemory struct {
	mu      sync.Mutex
	threads map[string][]Message
}

func newThreadMemory() *threadMemory {
	return &threadMemory{threads: make(map[string][]Message)}
}

// turns returns the stored history plus the new turns for one thread.
func (m *threadMemory) turns(threadID string, incoming []Message) []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	history := m.threads[threadID]
	combined := make([]Message, 0, len(history)+len(incoming))
	combined = append(combined, history...)
	combined = append(combined, incoming...)
	return combined
}

// record persists the new turns and the reply, trimming old history.
func (m *threadMemory) record(threadID string, incoming []Message, reply string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	history := append(m.threads[threadID], incoming...)
	history = append(history, Message{Role: RoleAssistant, Content: reply})
	if len(history) > maxThreadHistory {
		history = history[len(history)-maxThreadHistory:]
	}
	m.threads[threadID] = history
}
