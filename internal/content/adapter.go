// Package content is the sandboxed side of the bridge. The Adapter is the only
// surface the editor sees: two outbound requests and one listener binding
// per host notification.
package content

import (
	"context"
	stderrors "errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/nkkko/textai/internal/bridge"
	apierrors "github.com/nkkko/textai/internal/errors"
	"github.com/nkkko/textai/internal/router"
	"github.com/nkkko/textai/pkg/proto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// State of the adapter: NotConnected -> Connected -> [Subscribed <-> Unsubscribed]
type State int

const (
	// NotConnected means no privileged host was detected. Listener setup and
	// cleanup do nothing here.
	NotConnected State = iota

	// Connected means requests go to the host and no listeners were set up yet
	Connected

	// Subscribed means the editor's callbacks are bound
	Subscribed

	// Unsubscribed means the callbacks were cleaned up
	Unsubscribed
)

// String returns the state name
func (s State) String() string {
	switch s {
	case Connected:
		return "connected"
	case Subscribed:
		return "subscribed"
	case Unsubscribed:
		return "unsubscribed"
	default:
		return "not_connected"
	}
}

// ErrDownloadFailed is returned by SaveFile when the download fallback could
// not store the content
var ErrDownloadFailed = stderrors.New("download failed")

// Requester sends content->host requests
type Requester interface {
	Invoke(ctx context.Context, channel string, args ...string) (*string, error)
}

// Listeners is the inbound registry the adapter binds callbacks on
type Listeners interface {
	Subscribe(handler router.Handler, channels ...string) *router.Subscription
	RemoveAllListeners(channel string)
	ListenerCount(channel string) int
}

// Callbacks are the editor's reactions to host notifications. Nil callbacks
// leave their channel unbound.
type Callbacks struct {
	OnNewDocument     func(ctx context.Context)
	OnOpenFile        func(ctx context.Context, path string)
	OnSaveDocument    func(ctx context.Context)
	OnSaveDocumentAs  func(ctx context.Context)
	OnExportDocument  func(ctx context.Context)
	OnAIAction        func(ctx context.Context, action proto.AIAction)
	OnOpenPreferences func(ctx context.Context)
	OnShowHelp        func(ctx context.Context)
	OnShowShortcuts   func(ctx context.Context)
}

// bindings maps each bound channel to the handler that unpacks its payload
func (c Callbacks) bindings() map[string]func(context.Context, *proto.Envelope) {
	b := make(map[string]func(context.Context, *proto.Envelope))
	simple := func(channel string, fn func(context.Context)) {
		if fn != nil {
			b[channel] = func(ctx context.Context, _ *proto.Envelope) { fn(ctx) }
		}
	}

	simple(proto.ChannelNewDocument, c.OnNewDocument)
	simple(proto.ChannelSaveDocument, c.OnSaveDocument)
	simple(proto.ChannelSaveDocumentAs, c.OnSaveDocumentAs)
	simple(proto.ChannelExportDocument, c.OnExportDocument)
	simple(proto.ChannelOpenPreferences, c.OnOpenPreferences)
	simple(proto.ChannelShowHelp, c.OnShowHelp)
	simple(proto.ChannelShowShortcuts, c.OnShowShortcuts)

	if c.OnOpenFile != nil {
		fn := c.OnOpenFile
		b[proto.ChannelOpenFile] = func(ctx context.Context, env *proto.Envelope) { fn(ctx, env.Arg(0)) }
	}
	if c.OnAIAction != nil {
		fn := c.OnAIAction
		b[proto.ChannelAIAction] = func(ctx context.Context, env *proto.Envelope) { fn(ctx, proto.AIAction(env.Arg(0))) }
	}
	return b
}

// Config contains adapter configuration
type Config struct {
	// Directory for download-style saves when no host is available
	DownloadDir string
}

// Adapter exposes the bridge to the editor
type Adapter struct {
	mu         sync.Mutex
	state      State
	requester  Requester
	listeners  Listeners
	downloader Downloader
	now        func() time.Time
	logger     zerolog.Logger
}

// NewAdapter creates an adapter in the NotConnected state. A nil downloader
// saves into config.DownloadDir.
func NewAdapter(listeners Listeners, downloader Downloader, config Config) *Adapter {
	if downloader == nil {
		downloader = NewDirDownloader(config.DownloadDir)
	}
	return &Adapter{
		state:      NotConnected,
		listeners:  listeners,
		downloader: downloader,
		now:        time.Now,
		logger:     log.With().Str("component", "content-adapter").Logger(),
	}
}

// Connect switches the adapter to the host. It is accepted once.
func (a *Adapter) Connect(requester Requester) error {
	if requester == nil {
		return apierrors.InternalError("nil_requester", "cannot connect without a requester")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state != NotConnected {
		return apierrors.ProtocolError("already_connected", "the adapter is already connected to a host")
	}
	a.requester = requester
	a.state = Connected
	a.logger.Info().Msg("Privileged host detected")
	return nil
}

// State returns the connection state
func (a *Adapter) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// IsHostAvailable reports whether privileged operations go to a host
func (a *Adapter) IsHostAvailable() bool {
	return a.State() != NotConnected
}

func (a *Adapter) host() Requester {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.requester
}

// SaveFile asks the host to save content through its dialog. It returns the
// written path, or nil when the user cancelled. Without a host the content is
// saved download-style and the result is nil; a failed download returns an
// error wrapping ErrDownloadFailed, never a privileged call.
func (a *Adapter) SaveFile(ctx context.Context, content string, defaultPath string) (*string, error) {
	host := a.host()
	if host == nil {
		name := DownloadName(defaultPath, a.now())
		if err := a.downloader.Download(ctx, name, content); err != nil {
			a.logger.Error().Err(err).Str("name", name).Msg("Download fallback failed")
			return nil, fmt.Errorf("%w: %s: %w", ErrDownloadFailed, name, err)
		}
		return nil, nil
	}

	args := []string{content}
	if defaultPath != "" {
		args = append(args, defaultPath)
	}
	return host.Invoke(ctx, proto.ChannelSaveFile, args...)
}

// ReadFile asks the host for a file's text. Without a host it fails with
// an unsupported operation error.
func (a *Adapter) ReadFile(ctx context.Context, path string) (string, error) {
	host := a.host()
	if host == nil {
		return "", apierrors.UnsupportedError("no_host", "reading files requires the desktop host").
			WithChannel(proto.ChannelReadFile)
	}

	result, err := host.Invoke(ctx, proto.ChannelReadFile, path)
	if err != nil {
		return "", err
	}
	if result == nil {
		return "", nil
	}
	return *result, nil
}

// SetupEventListeners binds every non-nil callback to its channel in one
// subscription. Channels bound by an earlier call are taken over. Without a
// host there is nothing to listen to and the call does nothing.
func (a *Adapter) SetupEventListeners(callbacks Callbacks) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state == NotConnected {
		a.logger.Debug().Msg("No host, skipping event listener setup")
		return
	}

	bindings := callbacks.bindings()
	if len(bindings) == 0 {
		return
	}

	channels := make([]string, 0, len(bindings))
	for _, channel := range bridge.Notifications() {
		if _, ok := bindings[channel]; ok {
			channels = append(channels, channel)
		}
	}

	a.listeners.Subscribe(func(ctx context.Context, env *proto.Envelope) {
		if fn, ok := bindings[env.Channel]; ok {
			fn(ctx, env)
		}
	}, channels...)
	a.state = Subscribed

	a.logger.Debug().Strs("channels", channels).Msg("Event listeners set up")
}

// CleanupEventListeners removes the listeners of every host notification
// channel, whoever registered them. Safe to call any number of times; does
// nothing without a host.
func (a *Adapter) CleanupEventListeners() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state == NotConnected {
		return
	}

	for _, channel := range bridge.Notifications() {
		a.listeners.RemoveAllListeners(channel)
	}
	a.state = Unsubscribed

	a.logger.Debug().Msg("Event listeners cleaned up")
}

// ListenerCount returns the number of bound notification channels
func (a *Adapter) ListenerCount() int {
	n := 0
	for _, channel := range bridge.Notifications() {
		n += a.listeners.ListenerCount(channel)
	}
	return n
}

// DownloadName picks the file name for a download-style save
func DownloadName(defaultPath string, now time.Time) string {
	if defaultPath != "" {
		if base := filepath.Base(defaultPath); base != "." && base != string(filepath.Separator) {
			return base
		}
	}
	return fmt.Sprintf("document-%s.txt", now.Format("2006-01-02"))
}
