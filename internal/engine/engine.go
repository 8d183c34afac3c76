// Package engine wires the host and content processes and runs them until
// quit or cancellation.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/nkkko/textai/internal/bridge"
	"github.com/nkkko/textai/internal/config"
	"github.com/nkkko/textai/internal/content"
	"github.com/nkkko/textai/internal/dialog"
	"github.com/nkkko/textai/internal/domain"
	"github.com/nkkko/textai/internal/editor"
	"github.com/nkkko/textai/internal/host"
	"github.com/nkkko/textai/internal/processor"
	"github.com/nkkko/textai/internal/router"
	"github.com/nkkko/textai/internal/transport"
	"github.com/nkkko/textai/internal/ui"
	"github.com/nkkko/textai/pkg/client"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Host is the privileged process: one session, its dispatcher and the HTTP
// surface the content process connects through
type Host struct {
	config   *config.Config
	service  *host.Host
	api      domain.APIEngine
	quit     chan struct{}
	quitOnce sync.Once
	logger   zerolog.Logger
}

// NewHost creates the host process. A nil api engine is built from config.
func NewHost(cfg *config.Config, dialogs dialog.Dialogs, apiEngine domain.APIEngine) (*Host, error) {
	e := &Host{
		config: cfg,
		quit:   make(chan struct{}),
		logger: log.With().Str("component", "engine-host").Logger(),
	}

	session := host.NewSession()
	dispatcher, err := host.NewDispatcher(session, dialogs, e.Quit, cfg.ToHostConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create dispatcher: %w", err)
	}
	e.service = host.New(session, dispatcher, cfg.ToBridgeConfig())

	if apiEngine == nil {
		apiEngine, err = NewAPIEngine(cfg, e.service)
		if err != nil {
			return nil, err
		}
	}
	e.api = apiEngine

	return e, nil
}

// Service returns the host service the HTTP surface drives
func (e *Host) Service() *host.Host {
	return e.service
}

// Quit stops the host. It is what the quit menu item calls.
func (e *Host) Quit() {
	e.quitOnce.Do(func() { close(e.quit) })
}

// Done is closed once quit has been requested
func (e *Host) Done() <-chan struct{} {
	return e.quit
}

// Start serves the HTTP surface until ctx is done or quit is requested
func (e *Host) Start(ctx context.Context) error {
	e.logger.Info().Str("addr", e.config.Server.Addr).Str("framework", e.config.Server.Framework).Msg("Starting host")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return e.api.Start(ctx)
	})

	g.Go(func() error {
		select {
		case <-e.quit:
			e.logger.Info().Msg("Quit selected, shutting down")
			cancel()
		case <-ctx.Done():
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("error running host: %w", err)
	}

	e.logger.Info().Msg("Host shut down")
	return nil
}

// Content is the editor process: router, adapter, editor and console
type Content struct {
	config  *config.Config
	router  domain.EventRouter
	adapter *content.Adapter
	editor  *editor.Editor
	console *ui.Console
	logger  zerolog.Logger
}

// NewContent creates the content process. Lines read from in drive the
// console; view renders the editor.
func NewContent(cfg *config.Config, proc processor.Processor, view editor.View, in io.Reader) *Content {
	r := router.NewRouter(cfg.ToRouterConfig())
	adapter := content.NewAdapter(r, nil, cfg.ToContentConfig())
	ed := editor.New(adapter, proc, view)

	return &Content{
		config:  cfg,
		router:  r,
		adapter: adapter,
		editor:  ed,
		console: ui.NewConsole(ed, view, in),
		logger:  log.With().Str("component", "engine-content").Logger(),
	}
}

// Adapter returns the content-side adapter
func (e *Content) Adapter() *content.Adapter {
	return e.adapter
}

// Editor returns the editor
func (e *Content) Editor() *editor.Editor {
	return e.editor
}

// Start dials the host and runs the editor. When no host answers the
// editor still runs, saving through the download fallback.
func (e *Content) Start(ctx context.Context) error {
	t, err := e.dial(ctx)
	if err != nil {
		e.logger.Warn().Err(err).Str("host_url", e.config.Bridge.HostURL).Msg("No host available, saves become downloads")
		t = nil
	}
	return e.Run(ctx, t)
}

func (e *Content) dial(ctx context.Context) (transport.Transport, error) {
	timeout := e.config.DialTimeout()
	dialCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	conn, err := client.New(e.config.Bridge.HostURL, client.WithTimeout(timeout)).Dial(dialCtx)
	if err != nil {
		return nil, err
	}
	return transport.NewWebSocket(conn, e.config.Bridge.InboundBuffer), nil
}

// Run runs the editor over t until the console quits or ctx is done. A nil
// transport runs without a host.
func (e *Content) Run(ctx context.Context, t transport.Transport) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	if t != nil {
		endpoint := bridge.NewEndpoint(bridge.RoleContent, t, e.config.ToBridgeConfig())
		if err := e.adapter.Connect(endpoint); err != nil {
			_ = t.Close()
			return err
		}

		g.Go(func() error {
			defer endpoint.Close()
			err := endpoint.Run(gctx)
			if err == nil {
				// The editor keeps running; host requests now fail as unavailable
				e.logger.Warn().Msg("Host disconnected")
			}
			return err
		})

		g.Go(func() error {
			return e.router.Start(gctx, endpoint.Inbound())
		})
	}

	e.editor.Mount()

	g.Go(func() error {
		defer cancel()
		return e.console.Run(gctx)
	})

	err := g.Wait()

	e.editor.Unmount()
	if shutdownErr := e.router.Shutdown(context.Background()); shutdownErr != nil {
		e.logger.Error().Err(shutdownErr).Msg("Failed to shut down router")
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("error running content: %w", err)
	}

	e.logger.Info().Msg("Content shut down")
	return nil
}

// Local runs host and content in one process over an in-memory pipe
type Local struct {
	config  *config.Config
	host    *Host
	content *Content
	serve   bool
	logger  zerolog.Logger
}

// NewLocal creates the paired processes. serveAPI also starts the HTTP
// surface, whose /bridge then refuses connections while the local window
// is attached.
func NewLocal(cfg *config.Config, dialogs dialog.Dialogs, proc processor.Processor, view editor.View, in io.Reader, serveAPI bool) (*Local, error) {
	h, err := NewHost(cfg, dialogs, nil)
	if err != nil {
		return nil, err
	}
	return &Local{
		config:  cfg,
		host:    h,
		content: NewContent(cfg, proc, view, in),
		serve:   serveAPI,
		logger:  log.With().Str("component", "engine-local").Logger(),
	}, nil
}

// Host returns the host half
func (l *Local) Host() *Host {
	return l.host
}

// Content returns the content half
func (l *Local) Content() *Content {
	return l.content
}

// Start runs both halves until the console quits, quit is selected or ctx
// is done
func (l *Local) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	hostSide, contentSide := transport.Pipe(l.config.Bridge.InboundBuffer)

	g, gctx := errgroup.WithContext(ctx)

	if l.serve {
		g.Go(func() error {
			defer cancel()
			return l.host.Start(gctx)
		})
	} else {
		g.Go(func() error {
			select {
			case <-l.host.Done():
				cancel()
			case <-gctx.Done():
			}
			return nil
		})
	}

	g.Go(func() error {
		return l.host.Service().ServeTransport(gctx, hostSide)
	})

	g.Go(func() error {
		defer cancel()
		return l.content.Run(gctx, contentSide)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	l.logger.Info().Msg("Local session ended")
	return nil
}
