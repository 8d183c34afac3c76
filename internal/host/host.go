package host

import (
	"context"
	"fmt"

	"github.com/nkkko/textai/internal/bridge"
	"github.com/nkkko/textai/internal/domain"
	"github.com/nkkko/textai/internal/transport"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Ensure Host implements domain.HostService
var _ domain.HostService = (*Host)(nil)

// Host ties a session and its dispatcher to incoming content connections
type Host struct {
	session    *Session
	dispatcher *Dispatcher
	bridge     bridge.Config
	buffer     int
	logger     zerolog.Logger
}

// New creates a host serving windows with the given bridge configuration
func New(session *Session, dispatcher *Dispatcher, bridgeConfig bridge.Config) *Host {
	return &Host{
		session:    session,
		dispatcher: dispatcher,
		bridge:     bridgeConfig,
		buffer:     bridgeConfig.InboundBuffer,
		logger:     log.With().Str("component", "host").Logger(),
	}
}

// Session returns the host's session
func (h *Host) Session() *Session {
	return h.session
}

// Dispatcher returns the host's dispatcher
func (h *Host) Dispatcher() *Dispatcher {
	return h.dispatcher
}

// ServeTransport attaches t as the session's window and runs it until the
// link closes or ctx is done. The window reference is cleared on return.
func (h *Host) ServeTransport(ctx context.Context, t transport.Transport) error {
	endpoint := bridge.NewEndpoint(bridge.RoleHost, t, h.bridge)

	window, err := h.session.Attach(endpoint)
	if err != nil {
		_ = t.Close()
		return err
	}
	defer h.session.Detach(window)
	defer endpoint.Close()

	if err := endpoint.Run(ctx); err != nil && err != context.Canceled {
		return fmt.Errorf("window %s: %w", window.ID, err)
	}
	return nil
}

// Serve attaches a websocket connection as the session's window
func (h *Host) Serve(ctx context.Context, conn domain.Conn) error {
	return h.ServeTransport(ctx, transport.NewWebSocket(conn, h.buffer))
}

// Ready reports whether a window is attached
func (h *Host) Ready() bool {
	return h.session.Window() != nil
}

// Menu lists the menu items for the HTTP surface
func (h *Host) Menu() []domain.MenuItem {
	items := h.dispatcher.Menu()
	out := make([]domain.MenuItem, 0, len(items))
	for _, item := range items {
		out = append(out, domain.MenuItem{
			ID:          item.ID,
			Label:       item.Label,
			Menu:        item.Menu,
			Accelerator: item.Accelerator,
		})
	}
	return out
}

// Trigger runs a menu item by ID
func (h *Host) Trigger(ctx context.Context, itemID string) error {
	return h.dispatcher.Trigger(ctx, itemID)
}

// TriggerAccelerator runs the menu item bound to accel
func (h *Host) TriggerAccelerator(ctx context.Context, accel string) error {
	return h.dispatcher.TriggerAccelerator(ctx, accel)
}

// OpenRecent re-opens a recent document in the window
func (h *Host) OpenRecent(ctx context.Context, path string) error {
	return h.dispatcher.OpenRecent(ctx, path)
}

// Recent lists recent documents
func (h *Host) Recent() []string {
	return h.dispatcher.Recent()
}
