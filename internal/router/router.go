package router

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/nkkko/textai/internal/domain"
	"github.com/nkkko/textai/internal/metrics"
	"github.com/nkkko/textai/pkg/proto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Ensure Router implements domain.EventRouter
var _ domain.EventRouter = (*Router)(nil)

// Handler receives one notification on a subscribed channel
type Handler func(ctx context.Context, env *proto.Envelope)

// Subscription binds one handler to a set of channels. Each subscription has
// its own queue and dispatch goroutine, so its handler runs one call at a time.
type Subscription struct {
	ID string

	router    *Router
	handler   Handler
	queue     chan *proto.Envelope
	done      chan struct{}
	closeOnce sync.Once
}

// Channels returns the channels this subscription currently owns
func (s *Subscription) Channels() []string {
	return s.router.channelsOf(s)
}

// Done is closed once the subscription no longer owns any channel
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Close releases every channel the subscription still owns
func (s *Subscription) Close() {
	s.router.Unsubscribe(s.ID)
}

func (s *Subscription) stop() {
	s.closeOnce.Do(func() { close(s.done) })
}

// Config contains router configuration
type Config struct {
	// Maximum buffer size for subscription queues
	MaxBufferSize int
}

// DefaultConfig returns a default router configuration
func DefaultConfig() Config {
	return Config{
		MaxBufferSize: 100,
	}
}

// Router delivers inbound notifications to the single subscription owning
// each channel. Subscribing to a channel takes it away from its previous
// owner, so a channel never has more than one listener.
type Router struct {
	config        Config
	subscriptions map[string]*Subscription
	owners        map[string]*Subscription // channel -> owning subscription
	mu            sync.RWMutex
	baseCtx       context.Context
	cancel        context.CancelFunc
	logger        zerolog.Logger
}

// NewRouter creates a new event router
func NewRouter(config ...Config) *Router {
	var cfg Config
	if len(config) > 0 {
		cfg = config[0]
	} else {
		cfg = DefaultConfig()
	}
	if cfg.MaxBufferSize <= 0 {
		cfg.MaxBufferSize = DefaultConfig().MaxBufferSize
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Router{
		config:        cfg,
		subscriptions: make(map[string]*Subscription),
		owners:        make(map[string]*Subscription),
		baseCtx:       ctx,
		cancel:        cancel,
		logger:        log.With().Str("component", "router").Logger(),
	}
}

// Start begins processing events from the provided stream
func (r *Router) Start(ctx context.Context, events <-chan *proto.Envelope) error {
	r.logger.Info().Msg("Starting event router")

	for {
		select {
		case event, ok := <-events:
			if !ok {
				r.logger.Info().Msg("Event stream closed, stopping router")
				return nil
			}
			r.routeEvent(event)

		case <-ctx.Done():
			r.logger.Info().Msg("Context canceled, stopping router")
			return ctx.Err()
		}
	}
}

// routeEvent hands an event to the owner of its channel without blocking
func (r *Router) routeEvent(event *proto.Envelope) {
	if event == nil {
		return
	}

	m := metrics.GetMetrics()
	m.RouterEventsTotal.WithLabelValues(event.Channel).Inc()

	// Held across the send so a concurrent Unsubscribe cannot race it
	r.mu.RLock()
	defer r.mu.RUnlock()

	sub, ok := r.owners[event.Channel]
	if !ok {
		r.logger.Debug().Str("channel", event.Channel).Msg("No listener for channel, ignoring")
		m.RouterDroppedEventsTotal.WithLabelValues(event.Channel, "no_listener").Inc()
		return
	}

	select {
	case sub.queue <- event:
	default:
		r.logger.Warn().
			Str("subscription_id", sub.ID).
			Str("channel", event.Channel).
			Str("envelope_id", event.Id).
			Msg("Subscriber queue full, dropping event")
		m.RouterDroppedEventsTotal.WithLabelValues(event.Channel, "buffer_full").Inc()
	}
}

// Subscribe binds handler to the given channels and starts its dispatch
// goroutine. Channels owned by another subscription are moved to this one.
func (r *Router) Subscribe(handler Handler, channels ...string) *Subscription {
	sub := &Subscription{
		ID:      generateID(),
		router:  r,
		handler: handler,
		queue:   make(chan *proto.Envelope, r.config.MaxBufferSize),
		done:    make(chan struct{}),
	}

	r.mu.Lock()
	r.subscriptions[sub.ID] = sub
	for _, channel := range channels {
		if prev, ok := r.owners[channel]; ok && prev != sub {
			r.logger.Debug().
				Str("channel", channel).
				Str("from", prev.ID).
				Str("to", sub.ID).
				Msg("Channel listener replaced")
		}
		r.owners[channel] = sub
	}
	r.pruneLocked()
	r.mu.Unlock()

	go r.dispatch(sub)

	return sub
}

// Unsubscribe removes a subscription and releases its channels
func (r *Router) Unsubscribe(subID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sub, ok := r.subscriptions[subID]
	if !ok {
		return
	}
	for channel, owner := range r.owners {
		if owner == sub {
			delete(r.owners, channel)
		}
	}
	r.removeLocked(sub)
}

// RemoveAllListeners unbinds the channel from whichever subscription owns it.
// Calling it for a channel with no listener is a no-op.
func (r *Router) RemoveAllListeners(channel string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.owners[channel]; !ok {
		return
	}
	delete(r.owners, channel)
	r.pruneLocked()
}

// ListenerCount reports how many listeners a channel has (zero or one)
func (r *Router) ListenerCount(channel string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.owners[channel]; ok {
		return 1
	}
	return 0
}

// ListenerTotal reports how many channels currently have a listener
func (r *Router) ListenerTotal() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.owners)
}

// Shutdown performs cleanup and stops the router
func (r *Router) Shutdown(ctx context.Context) error {
	r.logger.Info().Msg("Shutting down event router")

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, sub := range r.subscriptions {
		r.removeLocked(sub)
	}
	r.owners = make(map[string]*Subscription)
	r.cancel()

	return nil
}

// dispatch runs a subscription's handler for each queued event. Ownership is
// checked again right before the call, so events queued before a cleanup or
// an ownership transfer never reach the old handler.
func (r *Router) dispatch(sub *Subscription) {
	for {
		select {
		case event := <-sub.queue:
			if !r.owns(sub, event.Channel) {
				continue
			}
			r.invoke(sub, event)
		case <-sub.done:
			return
		case <-r.baseCtx.Done():
			return
		}
	}
}

func (r *Router) invoke(sub *Subscription, event *proto.Envelope) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error().
				Interface("panic", rec).
				Str("subscription_id", sub.ID).
				Str("channel", event.Channel).
				Msg("Listener panicked")
		}
	}()
	sub.handler(r.baseCtx, event)
}

func (r *Router) owns(sub *Subscription, channel string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.owners[channel] == sub
}

func (r *Router) channelsOf(sub *Subscription) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var channels []string
	for channel, owner := range r.owners {
		if owner == sub {
			channels = append(channels, channel)
		}
	}
	return channels
}

// pruneLocked removes subscriptions left without any channel
func (r *Router) pruneLocked() {
	live := make(map[*Subscription]struct{}, len(r.owners))
	for _, owner := range r.owners {
		live[owner] = struct{}{}
	}
	for _, sub := range r.subscriptions {
		if _, ok := live[sub]; !ok {
			r.removeLocked(sub)
		}
	}
	metrics.GetMetrics().RouterSubscriptionsActive.Set(float64(len(r.subscriptions)))
}

func (r *Router) removeLocked(sub *Subscription) {
	delete(r.subscriptions, sub.ID)
	sub.stop()
	metrics.GetMetrics().RouterSubscriptionsActive.Set(float64(len(r.subscriptions)))
}

// Variable for generating unique subscription IDs
// Can be replaced in tests for deterministic behavior
var generateID = func() string {
	return uuid.NewString()
}
