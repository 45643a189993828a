package waclient

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rs/zerolog/log"
	"github.com/ysmood/gson"
)

const (
	webClientURL         = "https://web.whatsapp.com"
	remoteVersionPathFmt = "https://raw.githubusercontent.com/wppconnect-team/wa-version/main/html/%s.html"
)

// RodFactory builds rod-backed clients: a Chromium process per session,
// driven over CDP.
type RodFactory struct{}

// NewRodFactory returns the production client factory.
func NewRodFactory() *RodFactory {
	return &RodFactory{}
}

// New builds an uninitialized client for the given options.
func (f *RodFactory) New(opts Options) (Client, error) {
	if opts.SessionID == "" {
		return nil, fmt.Errorf("session id is required")
	}
	if opts.DataDir == "" {
		return nil, fmt.Errorf("data dir is required")
	}
	return &rodClient{opts: opts, handlers: make(map[EventKind][]Handler)}, nil
}

type rodClient struct {
	opts     Options
	launcher *launcher.Launcher

	mu       sync.RWMutex
	browser  *rodBrowser
	page     *rodPage
	handlers map[EventKind][]Handler
}

// Initialize spawns the browser, opens the web client and wires the event
// bridge. Blocking: returns once the page has loaded.
func (c *rodClient) Initialize(ctx context.Context) error {
	l := launcher.New().
		Headless(c.opts.Headless).
		UserDataDir(c.opts.DataDir)
	if c.opts.BinaryPath != "" {
		l = l.Bin(c.opts.BinaryPath)
	}
	for _, arg := range DefaultBrowserArgs() {
		name, value, hasValue := strings.Cut(strings.TrimPrefix(arg, "--"), "=")
		if hasValue {
			l = l.Set(flags.Flag(name), value)
		} else {
			l = l.Set(flags.Flag(name))
		}
	}

	url, err := l.Launch()
	if err != nil {
		return fmt.Errorf("failed to launch browser: %w", err)
	}
	c.launcher = l

	browser := rod.New().ControlURL(url).Context(ctx)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return fmt.Errorf("failed to connect to browser: %w", err)
	}

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		browser.Close()
		l.Kill()
		return fmt.Errorf("failed to create page: %w", err)
	}

	rp := &rodPage{page: page}
	rp.observe()

	if err := c.installEventBridge(page); err != nil {
		browser.Close()
		l.Kill()
		return fmt.Errorf("failed to install event bridge: %w", err)
	}

	target := c.clientURL()
	if err := page.Navigate(target); err != nil {
		browser.Close()
		l.Kill()
		return fmt.Errorf("failed to navigate to %s: %w", target, err)
	}
	if err := page.WaitLoad(); err != nil {
		browser.Close()
		l.Kill()
		return fmt.Errorf("web client load timeout: %w", err)
	}

	c.mu.Lock()
	c.browser = &rodBrowser{browser: browser, launcher: l}
	c.page = rp
	c.mu.Unlock()

	return nil
}

// clientURL applies the pinned web version, mirroring the remote cache
// layout the upstream project publishes.
func (c *rodClient) clientURL() string {
	if c.opts.WebVersion == "" {
		return webClientURL
	}
	switch strings.ToLower(c.opts.WebVersionCacheType) {
	case "remote":
		return fmt.Sprintf(remoteVersionPathFmt, c.opts.WebVersion)
	default:
		// local and none both load the live client; local relies on the
		// profile's service-worker cache holding the pinned version.
		return webClientURL
	}
}

// installEventBridge exposes a binding the web client page calls for every
// internal event, and dispatches to registered handlers.
func (c *rodClient) installEventBridge(page *rod.Page) error {
	_, err := page.Expose("onTransportEvent", func(v gson.JSON) (interface{}, error) {
		raw, err := json.Marshal(v.Val())
		if err != nil {
			return nil, nil
		}
		var envelope struct {
			Event   EventKind       `json:"event"`
			Payload json.RawMessage `json:"payload"`
		}
		if err := json.Unmarshal(raw, &envelope); err != nil {
			log.Warn().Str("sessionId", c.opts.SessionID).Err(err).Msg("Malformed transport event")
			return nil, nil
		}
		c.emit(envelope.Event, decodePayload(envelope.Event, envelope.Payload))
		return nil, nil
	})
	return err
}

func decodePayload(kind EventKind, raw json.RawMessage) any {
	switch kind {
	case EventMessage, EventMessageAck, EventMessageCreate,
		EventMessageCiphertext, EventMessageEdit,
		EventMessageRevokeEveryone, EventMessageRevokeMe:
		var msg Message
		if err := json.Unmarshal(raw, &msg); err == nil {
			return &msg
		}
	case EventQR:
		var qr string
		if err := json.Unmarshal(raw, &qr); err == nil {
			return qr
		}
	case EventChangeState:
		var state State
		if err := json.Unmarshal(raw, &state); err == nil {
			return state
		}
	}
	var generic map[string]any
	if err := json.Unmarshal(raw, &generic); err == nil {
		return generic
	}
	return raw
}

func (c *rodClient) emit(kind EventKind, data any) {
	c.mu.RLock()
	handlers := append([]Handler(nil), c.handlers[kind]...)
	c.mu.RUnlock()
	for _, fn := range handlers {
		fn(data)
	}
}

func (c *rodClient) On(kind EventKind, fn Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[kind] = append(c.handlers[kind], fn)
}

func (c *rodClient) GetState(ctx context.Context) (State, error) {
	c.mu.RLock()
	page := c.page
	c.mu.RUnlock()
	if page == nil {
		return "", ErrPageUnavailable
	}
	result, err := page.page.Context(ctx).Eval(`() => window.Store?.AppState?.state || "OPENING"`)
	if err != nil {
		return "", fmt.Errorf("failed to query connection state: %w", err)
	}
	return State(result.Value.Str()), nil
}

func (c *rodClient) Logout(ctx context.Context) error {
	c.mu.RLock()
	page := c.page
	c.mu.RUnlock()
	if page == nil {
		return ErrPageUnavailable
	}
	if err := page.Evaluate(ctx, `window.Store.AppState.logout()`); err != nil {
		return fmt.Errorf("logout failed: %w", err)
	}
	return c.Destroy(ctx)
}

func (c *rodClient) Destroy(ctx context.Context) error {
	c.mu.Lock()
	browser := c.browser
	c.browser = nil
	c.page = nil
	c.mu.Unlock()
	if browser == nil {
		return nil
	}
	if err := browser.Close(ctx); err != nil {
		if proc := browser.Process(); proc != nil {
			return proc.Kill()
		}
		return err
	}
	return nil
}

func (c *rodClient) SendMessage(ctx context.Context, chatID, text string, opts SendOptions) error {
	c.mu.RLock()
	page := c.page
	c.mu.RUnlock()
	if page == nil {
		return ErrPageUnavailable
	}
	_, err := page.page.Context(ctx).Eval(
		`(chatId, text, quotedId) => window.WWebJS.sendMessage(chatId, text, { quotedMessageId: quotedId || undefined })`,
		chatID, text, opts.QuotedMessageID,
	)
	if err != nil {
		return fmt.Errorf("failed to send message to %s: %w", chatID, err)
	}
	return nil
}

func (c *rodClient) MarkSeen(ctx context.Context, chatID string) error {
	c.mu.RLock()
	page := c.page
	c.mu.RUnlock()
	if page == nil {
		return ErrPageUnavailable
	}
	_, err := page.page.Context(ctx).Eval(`(chatId) => window.WWebJS.sendSeen(chatId)`, chatID)
	if err != nil {
		return fmt.Errorf("failed to mark %s as seen: %w", chatID, err)
	}
	return nil
}

func (c *rodClient) DownloadMedia(ctx context.Context, messageID string) (*Media, error) {
	c.mu.RLock()
	page := c.page
	c.mu.RUnlock()
	if page == nil {
		return nil, ErrPageUnavailable
	}
	result, err := page.page.Context(ctx).Eval(`(msgId) => window.WWebJS.downloadMedia(msgId)`, messageID)
	if err != nil {
		return nil, fmt.Errorf("failed to download media for %s: %w", messageID, err)
	}
	var media Media
	if err := result.Value.Unmarshal(&media); err != nil {
		return nil, fmt.Errorf("failed to decode media payload: %w", err)
	}
	return &media, nil
}

func (c *rodClient) Page() Page {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.page == nil {
		return nil
	}
	return c.page
}

func (c *rodClient) Browser() Browser {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.browser == nil {
		return nil
	}
	return c.browser
}

type rodPage struct {
	page *rod.Page

	mu        sync.Mutex
	closed    bool
	listeners map[PageEvent][]func()
}

// observe watches for target destruction and crashes, translating them
// into the close/error signals the watchdog subscribes to.
func (p *rodPage) observe() {
	p.mu.Lock()
	p.listeners = make(map[PageEvent][]func())
	p.mu.Unlock()

	go p.page.EachEvent(func(e *proto.InspectorTargetCrashed) bool {
		p.fire(PageError)
		return true
	})()
	go func() {
		// The page context closes when the target is destroyed.
		<-p.page.GetContext().Done()
		p.mu.Lock()
		p.closed = true
		p.mu.Unlock()
		p.fire(PageClose)
	}()
}

func (p *rodPage) fire(kind PageEvent) {
	p.mu.Lock()
	fns := p.listeners[kind]
	p.listeners[kind] = nil
	p.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func (p *rodPage) IsClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *rodPage) Evaluate(ctx context.Context, expr string) error {
	_, err := p.page.Context(ctx).Eval(`() => (` + expr + `)`)
	return err
}

func (p *rodPage) Once(kind PageEvent, fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners[kind] = append(p.listeners[kind], fn)
}

func (p *rodPage) RemoveAllListeners(kind PageEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners[kind] = nil
}

func (p *rodPage) Close(ctx context.Context) error {
	return p.page.Context(ctx).Close()
}

type rodBrowser struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
}

func (b *rodBrowser) Pages() ([]Page, error) {
	pages, err := b.browser.Pages()
	if err != nil {
		return nil, fmt.Errorf("failed to list pages: %w", err)
	}
	out := make([]Page, 0, len(pages))
	for _, page := range pages {
		rp := &rodPage{page: page}
		rp.observe()
		out = append(out, rp)
	}
	return out, nil
}

func (b *rodBrowser) Close(ctx context.Context) error {
	done := make(chan error, 1)
	go func() { done <- b.browser.Close() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *rodBrowser) Process() Process {
	if b.launcher == nil {
		return nil
	}
	return rodProcess{launcher: b.launcher}
}

func (b *rodBrowser) IsConnected() bool {
	_, err := b.browser.Version()
	return err == nil
}

type rodProcess struct {
	launcher *launcher.Launcher
}

func (p rodProcess) Kill() error {
	p.launcher.Kill()
	return nil
}
