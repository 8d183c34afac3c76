package host

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nkkko/textai/internal/bridge"
	apierrors "github.com/nkkko/textai/internal/errors"
	"github.com/nkkko/textai/internal/metrics"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Window is the single connected content endpoint of a session
type Window struct {
	ID     string
	Opened time.Time

	endpoint *bridge.Endpoint
}

// Notify sends a notification to the window's content side
func (w *Window) Notify(ctx context.Context, channel string, args ...string) error {
	return w.endpoint.Notify(ctx, channel, args...)
}

// Done is closed when the window's link goes away
func (w *Window) Done() <-chan struct{} {
	return w.endpoint.Done()
}

// Session owns zero or one window. Request handlers registered on the
// session are installed on every window that attaches, so a window created
// after the previous one closed behaves identically.
type Session struct {
	mu       sync.Mutex
	window   *Window
	handlers map[string]bridge.Handler
	logger   zerolog.Logger
}

// NewSession creates an empty session
func NewSession() *Session {
	return &Session{
		handlers: make(map[string]bridge.Handler),
		logger:   log.With().Str("component", "session").Logger(),
	}
}

// Handle registers the handler for a request channel on the current and
// every future window
func (s *Session) Handle(channel string, handler bridge.Handler) error {
	spec, ok := bridge.Lookup(channel)
	if !ok || spec.Direction != bridge.ContentToHost {
		return apierrors.ProtocolError("not_a_request_channel",
			fmt.Sprintf("cannot handle %q", channel)).WithChannel(channel)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.handlers[channel] = handler
	if s.window != nil {
		return s.window.endpoint.Handle(channel, handler)
	}
	return nil
}

// Attach makes endpoint the session's window. It fails while another
// window is open.
func (s *Session) Attach(endpoint *bridge.Endpoint) (*Window, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.window != nil {
		s.logger.Warn().Str("window_id", s.window.ID).Msg("Refusing second window")
		return nil, apierrors.UnavailableError("window_open", "a window is already attached to this session")
	}

	for channel, handler := range s.handlers {
		if err := endpoint.Handle(channel, handler); err != nil {
			return nil, fmt.Errorf("failed to register %s: %w", channel, err)
		}
	}

	s.window = &Window{
		ID:       uuid.NewString(),
		Opened:   time.Now(),
		endpoint: endpoint,
	}
	metrics.GetMetrics().HostWindowsActive.Set(1)
	s.logger.Info().Str("window_id", s.window.ID).Msg("Window attached")

	return s.window, nil
}

// Detach clears the window reference if w is still the current window
func (s *Session) Detach(w *Window) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if w == nil || s.window != w {
		return
	}
	s.window = nil
	metrics.GetMetrics().HostWindowsActive.Set(0)
	s.logger.Info().Str("window_id", w.ID).Msg("Window closed")
}

// Window returns the current window or nil
func (s *Session) Window() *Window {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.window
}

// Notify sends a notification to the current window. With no window it
// returns an unavailable error.
func (s *Session) Notify(ctx context.Context, channel string, args ...string) error {
	w := s.Window()
	if w == nil {
		s.logger.Warn().Str("channel", channel).Msg("No window attached, notification not sent")
		return apierrors.UnavailableError("no_window", "no window is attached").WithChannel(channel)
	}
	return w.Notify(ctx, channel, args...)
}
