package session

import (
	"context"
	"sync"

	"github.com/harun/wabridge/pkg/waclient"
)

type sentMessage struct {
	ChatID string
	Text   string
	Opts   waclient.SendOptions
}

type fakePage struct {
	mu      sync.Mutex
	closed  bool
	evalErr error
	once    map[waclient.PageEvent][]func()
}

func newFakePage() *fakePage {
	return &fakePage{once: make(map[waclient.PageEvent][]func())}
}

func (p *fakePage) IsClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *fakePage) Evaluate(ctx context.Context, expr string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.evalErr
}

func (p *fakePage) Once(kind waclient.PageEvent, fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.once[kind] = append(p.once[kind], fn)
}

func (p *fakePage) RemoveAllListeners(kind waclient.PageEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.once, kind)
}

func (p *fakePage) Close(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// fire invokes and clears the one-shot listeners for kind.
func (p *fakePage) fire(kind waclient.PageEvent) {
	p.mu.Lock()
	fns := p.once[kind]
	delete(p.once, kind)
	p.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func (p *fakePage) listenerCount(kind waclient.PageEvent) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.once[kind])
}

type fakeProcess struct {
	mu     sync.Mutex
	killed bool
}

func (pr *fakeProcess) Kill() error {
	pr.mu.Lock()
	defer pr.mu.Unlock()
	pr.killed = true
	return nil
}

type fakeBrowser struct {
	mu        sync.Mutex
	pages     []waclient.Page
	connected bool
	closed    bool
	proc      *fakeProcess
}

func (b *fakeBrowser) Pages() ([]waclient.Page, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pages, nil
}

func (b *fakeBrowser) Close(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.connected = false
	return nil
}

func (b *fakeBrowser) Process() waclient.Process {
	return b.proc
}

func (b *fakeBrowser) IsConnected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connected
}

type fakeClient struct {
	mu       sync.Mutex
	page     *fakePage
	browser  *fakeBrowser
	state    waclient.State
	stateErr error
	initErr  error

	handlers map[waclient.EventKind][]waclient.Handler

	sent      []sentMessage
	seen      []string
	media     *waclient.Media
	mediaErr  error
	loggedOut bool
	destroyed bool
}

func newFakeClient() *fakeClient {
	page := newFakePage()
	return &fakeClient{
		page:     page,
		browser:  &fakeBrowser{proc: &fakeProcess{}, pages: []waclient.Page{page}},
		state:    waclient.StateConnected,
		handlers: make(map[waclient.EventKind][]waclient.Handler),
	}
}

func (c *fakeClient) Initialize(ctx context.Context) error { return c.initErr }

func (c *fakeClient) GetState(ctx context.Context) (waclient.State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state, c.stateErr
}

func (c *fakeClient) Logout(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loggedOut = true
	return nil
}

func (c *fakeClient) Destroy(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.destroyed = true
	return nil
}

func (c *fakeClient) SendMessage(ctx context.Context, chatID, text string, opts waclient.SendOptions) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, sentMessage{ChatID: chatID, Text: text, Opts: opts})
	return nil
}

func (c *fakeClient) MarkSeen(ctx context.Context, chatID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seen = append(c.seen, chatID)
	return nil
}

func (c *fakeClient) DownloadMedia(ctx context.Context, messageID string) (*waclient.Media, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.media, c.mediaErr
}

func (c *fakeClient) On(kind waclient.EventKind, fn waclient.Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[kind] = append(c.handlers[kind], fn)
}

func (c *fakeClient) Page() waclient.Page {
	if c.page == nil {
		return nil
	}
	return c.page
}

func (c *fakeClient) Browser() waclient.Browser {
	if c.browser == nil {
		return nil
	}
	return c.browser
}

// emit invokes every registered handler for kind.
func (c *fakeClient) emit(kind waclient.EventKind, data any) {
	c.mu.Lock()
	fns := append([]waclient.Handler(nil), c.handlers[kind]...)
	c.mu.Unlock()
	for _, fn := range fns {
		fn(data)
	}
}

func (c *fakeClient) handlerCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, fns := range c.handlers {
		n += len(fns)
	}
	return n
}

func (c *fakeClient) sentMessages() []sentMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]sentMessage(nil), c.sent...)
}

func (c *fakeClient) seenChats() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.seen...)
}

type fakeFactory struct {
	mu      sync.Mutex
	clients []*fakeClient
	nextErr error
	build   func() *fakeClient
}

func newFakeFactory() *fakeFactory {
	return &fakeFactory{build: newFakeClient}
}

func (f *fakeFactory) New(opts waclient.Options) (waclient.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.nextErr != nil {
		err := f.nextErr
		f.nextErr = nil
		return nil, err
	}
	c := f.build()
	f.clients = append(f.clients, c)
	return c, nil
}

func (f *fakeFactory) created() []*fakeClient {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*fakeClient(nil), f.clients...)
}

type delivered struct {
	URL       string
	SessionID string
	Kind      waclient.EventKind
	Payload   any
}

type fakeWebhookSink struct {
	mu         sync.Mutex
	deliveries []delivered
	err        error
}

func (f *fakeWebhookSink) Deliver(ctx context.Context, url, sessionID string, kind waclient.EventKind, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deliveries = append(f.deliveries, delivered{URL: url, SessionID: sessionID, Kind: kind, Payload: payload})
	return f.err
}

func (f *fakeWebhookSink) all() []delivered {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]delivered(nil), f.deliveries...)
}

func (f *fakeWebhookSink) byKind(kind waclient.EventKind) []delivered {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []delivered
	for _, d := range f.deliveries {
		if d.Kind == kind {
			out = append(out, d)
		}
	}
	return out
}

type fakeWebsocketSink struct {
	mu         sync.Mutex
	broadcasts []delivered
	terminated []string
	err        error
}

func (f *fakeWebsocketSink) Broadcast(sessionID string, kind waclient.EventKind, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.broadcasts = append(f.broadcasts, delivered{SessionID: sessionID, Kind: kind, Payload: payload})
	return f.err
}

func (f *fakeWebsocketSink) Terminate(sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.terminated = append(f.terminated, sessionID)
	return nil
}

func (f *fakeWebsocketSink) terminatedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.terminated...)
}
