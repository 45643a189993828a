package waclient

import (
	"context"
	"time"
)

// State represents the connection state reported by the messaging client.
type State string

const (
	StateConnected         State = "CONNECTED"
	StateConflict          State = "CONFLICT"
	StateDeprecatedVersion State = "DEPRECATED_VERSION"
	StateOpening           State = "OPENING"
	StatePairing           State = "PAIRING"
	StateProxyBlock        State = "PROXYBLOCK"
	StateSMBTosBlock       State = "SMB_TOS_BLOCK"
	StateTimeout           State = "TIMEOUT"
	StateTosBlock          State = "TOS_BLOCK"
	StateUnlaunched        State = "UNLAUNCHED"
	StateUnpaired          State = "UNPAIRED"
	StateUnpairedIdle      State = "UNPAIRED_IDLE"
)

// PageEvent identifies transport page signals a caller can subscribe to.
type PageEvent string

const (
	PageClose PageEvent = "close"
	PageError PageEvent = "error"
)

// SendOptions carries optional parameters for SendMessage.
type SendOptions struct {
	QuotedMessageID string
}

// Client is the opaque handle for one messaging account connection. The
// lifecycle core owns exactly one Client per registered session id and
// never shares it past a delete/reload boundary.
type Client interface {
	// Initialize establishes the connection. Blocking and slow: it spawns
	// a browser, loads the web client and waits for pairing or restore.
	Initialize(ctx context.Context) error

	// GetState reports the client's native connection state.
	GetState(ctx context.Context) (State, error)

	// Logout performs a protocol-level logout, invalidating credentials.
	Logout(ctx context.Context) error

	// Destroy force-closes the connection without logging out.
	Destroy(ctx context.Context) error

	// SendMessage sends text to a chat.
	SendMessage(ctx context.Context, chatID, text string, opts SendOptions) error

	// MarkSeen marks a chat's messages as read.
	MarkSeen(ctx context.Context, chatID string) error

	// DownloadMedia fetches the attachment of a message.
	DownloadMedia(ctx context.Context, messageID string) (*Media, error)

	// On registers a handler for an event kind. Handlers are invoked from
	// the client's event loop; they must not block indefinitely.
	On(kind EventKind, fn Handler)

	// Page returns the transport page, or nil while it is not yet available.
	Page() Page

	// Browser returns the transport browser, or nil before Initialize.
	Browser() Browser
}

// Page is the browser tab hosting the web client.
type Page interface {
	IsClosed() bool
	Evaluate(ctx context.Context, expr string) error
	Once(kind PageEvent, fn func())
	RemoveAllListeners(kind PageEvent)
	Close(ctx context.Context) error
}

// Browser is the browser process hosting the transport page.
type Browser interface {
	Pages() ([]Page, error)
	Close(ctx context.Context) error
	Process() Process
	IsConnected() bool
}

// Process is the underlying OS process of the browser. Kill is the force
// escape hatch when a graceful close times out.
type Process interface {
	Kill() error
}

// Options configures a Client before Initialize.
type Options struct {
	SessionID string
	// DataDir is the per-session browser profile directory.
	DataDir string
	// BinaryPath overrides the browser executable. Empty means autodetect.
	BinaryPath string
	Headless   bool
	// WebVersion pins the web client version. Empty disables pinning.
	WebVersion string
	// WebVersionCacheType is one of "local", "remote" or "none".
	WebVersionCacheType string
}

// Factory builds clients. The lifecycle controller depends on this instead
// of a concrete transport so tests can substitute fakes.
type Factory interface {
	New(opts Options) (Client, error)
}

// WaitForPage polls until the client exposes its transport page or the
// timeout elapses.
func WaitForPage(ctx context.Context, c Client, timeout time.Duration) (Page, error) {
	deadline := time.Now().Add(timeout)
	for {
		if page := c.Page(); page != nil {
			return page, nil
		}
		if time.Now().After(deadline) {
			return nil, ErrPageUnavailable
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
}

// DefaultBrowserArgs is the fixed sandbox/performance flag set applied to
// every spawned browser. Containers run without a privileged user
// namespace, hence the sandbox opt-outs.
func DefaultBrowserArgs() []string {
	return []string{
		"--no-sandbox",
		"--disable-setuid-sandbox",
		"--disable-gpu",
		"--disable-dev-shm-usage",
		"--disable-accelerated-2d-canvas",
		"--no-zygote",
		"--single-process",
		"--disable-software-rasterizer",
		"--disable-background-timer-throttling",
		"--disable-backgrounding-occluded-windows",
		"--disable-breakpad",
		"--disable-client-side-phishing-detection",
		"--disable-component-extensions-with-background-pages",
		"--disable-default-apps",
		"--disable-extensions",
		"--disable-features=site-per-process",
		"--disable-hang-monitor",
		"--disable-ipc-flooding-protection",
		"--disable-popup-blocking",
		"--disable-prompt-on-repost",
		"--disable-renderer-backgrounding",
		"--disable-sync",
		"--force-color-profile=srgb",
		"--metrics-recording-only",
		"--mute-audio",
		"--no-first-run",
		"--safebrowsing-disable-auto-update",
		"--enable-automation",
		"--password-store=basic",
		"--use-mock-keychain",
	}
}
