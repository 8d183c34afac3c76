package bridge

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	apierrors "github.com/nkkko/textai/internal/errors"
	"github.com/nkkko/textai/internal/metrics"
	"github.com/nkkko/textai/internal/telemetry"
	"github.com/nkkko/textai/internal/transport"
	"github.com/nkkko/textai/pkg/proto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// Role is the side of the bridge an endpoint speaks for
type Role int

const (
	// RoleHost sends notifications and answers requests
	RoleHost Role = iota + 1

	// RoleContent receives notifications and issues requests
	RoleContent
)

// String returns the role name used in logs
func (r Role) String() string {
	switch r {
	case RoleHost:
		return "host"
	case RoleContent:
		return "content"
	default:
		return "unknown"
	}
}

// Handler answers one request. A nil result with a nil error is a valid
// reply (for example a cancelled dialog).
type Handler func(ctx context.Context, args []string) (*string, error)

// Config contains endpoint configuration
type Config struct {
	// Number of host request handlers allowed to run at once
	Workers int

	// Upper bound on a single Invoke; zero waits for the reply or ctx
	RequestTimeout time.Duration

	// Inbound notification queue length
	InboundBuffer int
}

// DefaultConfig returns a default endpoint configuration
func DefaultConfig() Config {
	return Config{
		Workers:       1,
		InboundBuffer: transport.DefaultBufferSize,
	}
}

// Endpoint is one side of the bridge. It validates every envelope against the
// contract in both directions, pairs responses with pending requests and runs
// host handlers on a bounded task queue.
type Endpoint struct {
	role      Role
	config    Config
	transport transport.Transport

	handlers   map[string]Handler
	handlersMu sync.RWMutex

	pending   map[string]chan *proto.Envelope
	pendingMu sync.Mutex

	inbound chan *proto.Envelope
	stopped chan struct{}
	stopOne sync.Once

	logger zerolog.Logger
}

// NewEndpoint creates an endpoint speaking for role over t
func NewEndpoint(role Role, t transport.Transport, config ...Config) *Endpoint {
	cfg := DefaultConfig()
	if len(config) > 0 {
		cfg = config[0]
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.InboundBuffer <= 0 {
		cfg.InboundBuffer = transport.DefaultBufferSize
	}

	return &Endpoint{
		role:      role,
		config:    cfg,
		transport: t,
		handlers:  make(map[string]Handler),
		pending:   make(map[string]chan *proto.Envelope),
		inbound:   make(chan *proto.Envelope, cfg.InboundBuffer),
		stopped:   make(chan struct{}),
		logger: log.With().
			Str("component", "bridge").
			Str("role", role.String()).
			Logger(),
	}
}

// Role returns the side this endpoint speaks for
func (e *Endpoint) Role() Role {
	return e.role
}

// Handle registers the handler for a request channel, replacing any
// previous one
func (e *Endpoint) Handle(channel string, handler Handler) error {
	spec, ok := Lookup(channel)
	if !ok || spec.Direction != ContentToHost {
		return apierrors.ProtocolError("not_a_request_channel",
			fmt.Sprintf("cannot handle %q", channel)).WithChannel(channel)
	}

	e.handlersMu.Lock()
	e.handlers[channel] = handler
	e.handlersMu.Unlock()
	return nil
}

// Inbound returns notifications received from the host, in arrival order
func (e *Endpoint) Inbound() <-chan *proto.Envelope {
	return e.inbound
}

// Done is closed when the underlying transport goes away
func (e *Endpoint) Done() <-chan struct{} {
	return e.transport.Done()
}

// Notify sends a host->content notification
func (e *Endpoint) Notify(ctx context.Context, channel string, args ...string) error {
	env := proto.NewNotification(generateID(), channel, args...)
	if err := e.checkOutbound(env); err != nil {
		return err
	}

	env.Meta = telemetry.Inject(ctx, env.Meta)
	if err := e.transport.Send(ctx, env); err != nil {
		return fmt.Errorf("failed to send %s: %w", channel, err)
	}
	e.countMessage(env, "sent")

	e.logger.Debug().Str("channel", channel).Str("id", env.Id).Msg("Notification sent")
	return nil
}

// Invoke sends a content->host request and waits for its single reply.
// A cancelled ctx abandons the request; a late reply is dropped.
func (e *Endpoint) Invoke(ctx context.Context, channel string, args ...string) (*string, error) {
	ctx, span := telemetry.StartSpan(ctx, "bridge.invoke "+channel,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(telemetry.AttrChannel.String(channel)))
	defer span.End()

	req := proto.NewRequest(generateID(), channel, args...)
	span.SetAttributes(telemetry.AttrRequestID.String(req.Id))
	if err := e.checkOutbound(req); err != nil {
		telemetry.MarkSpanError(ctx, err)
		return nil, err
	}

	if e.config.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.config.RequestTimeout)
		defer cancel()
	}

	m := metrics.GetMetrics()
	start := time.Now()

	reply := make(chan *proto.Envelope, 1)
	e.pendingMu.Lock()
	e.pending[req.Id] = reply
	e.pendingMu.Unlock()
	m.BridgePendingRequests.Inc()
	defer func() {
		e.pendingMu.Lock()
		delete(e.pending, req.Id)
		e.pendingMu.Unlock()
		m.BridgePendingRequests.Dec()
		m.BridgeRequestDuration.WithLabelValues(channel).Observe(time.Since(start).Seconds())
	}()

	req.Meta = telemetry.Inject(ctx, req.Meta)
	if err := e.transport.Send(ctx, req); err != nil {
		m.BridgeRequestsTotal.WithLabelValues(channel, "error").Inc()
		telemetry.MarkSpanError(ctx, err)
		return nil, fmt.Errorf("failed to send %s: %w", channel, err)
	}
	e.countMessage(req, "sent")

	select {
	case resp := <-reply:
		if resp.Error != nil {
			err := apierrors.FromProto(resp.Error, channel)
			m.BridgeRequestsTotal.WithLabelValues(channel, "error").Inc()
			telemetry.MarkSpanError(ctx, err)
			return nil, err
		}
		if resp.Result == nil {
			m.BridgeRequestsTotal.WithLabelValues(channel, "null").Inc()
		} else {
			m.BridgeRequestsTotal.WithLabelValues(channel, "ok").Inc()
		}
		return resp.Result, nil

	case <-ctx.Done():
		m.BridgeRequestsTotal.WithLabelValues(channel, "abandoned").Inc()
		e.logger.Debug().Str("channel", channel).Str("id", req.Id).Msg("Request abandoned")
		return nil, fmt.Errorf("%s abandoned: %w", channel, ctx.Err())

	case <-e.transport.Done():
		err := apierrors.UnavailableError("host_gone", "the host went away before replying").WithChannel(channel)
		m.BridgeRequestsTotal.WithLabelValues(channel, "error").Inc()
		telemetry.MarkSpanError(ctx, err)
		return nil, err

	case <-e.stopped:
		err := apierrors.UnavailableError("endpoint_stopped", "the bridge endpoint stopped").WithChannel(channel)
		m.BridgeRequestsTotal.WithLabelValues(channel, "error").Inc()
		telemetry.MarkSpanError(ctx, err)
		return nil, err
	}
}

// Run reads from the transport until it closes or ctx is done. Requests are
// queued for a task queue of Config.Workers goroutines; notifications are
// queued on Inbound. The read loop never waits on a busy worker, so a closed
// link is noticed at once and running handlers see their context cancelled.
func (e *Endpoint) Run(ctx context.Context) error {
	defer e.stopOne.Do(func() { close(e.stopped) })

	e.logger.Info().Msg("Bridge endpoint running")

	runCtx, cancel := context.WithCancel(ctx)
	requests := make(chan *proto.Envelope, e.config.InboundBuffer)
	drained := make(chan struct{})
	go e.drain(runCtx, requests, drained)

	defer func() {
		cancel()
		<-drained
	}()

	for {
		select {
		case env := <-e.transport.Receive():
			e.receive(runCtx, requests, env)

		case <-e.transport.Done():
			e.logger.Info().Msg("Bridge transport closed")
			return nil

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// drain hands queued requests to the task queue until ctx is done, then
// waits for the handlers still running
func (e *Endpoint) drain(ctx context.Context, requests <-chan *proto.Envelope, drained chan<- struct{}) {
	defer close(drained)

	tasks, taskCtx := errgroup.WithContext(ctx)
	tasks.SetLimit(e.config.Workers)

	defer func() {
		if err := tasks.Wait(); err != nil {
			e.logger.Error().Err(err).Msg("Request task failed")
		}
	}()

	for {
		select {
		case req := <-requests:
			// Blocks while every worker is busy, which keeps host work serialized
			tasks.Go(func() error {
				if taskCtx.Err() != nil {
					e.logger.Debug().Str("channel", req.Channel).Str("id", req.Id).Msg("Dropping request queued before shutdown")
					return nil
				}
				e.serve(taskCtx, req)
				return nil
			})

		case <-ctx.Done():
			return
		}
	}
}

// Close tears down the transport
func (e *Endpoint) Close() error {
	return e.transport.Close()
}

func (e *Endpoint) receive(ctx context.Context, requests chan<- *proto.Envelope, env *proto.Envelope) {
	if env == nil {
		return
	}
	e.countMessage(env, "received")

	if err := e.checkInbound(env); err != nil {
		e.rejectInbound(ctx, env, err)
		return
	}

	switch env.Kind {
	case proto.MessageKind_NOTIFY:
		select {
		case e.inbound <- env:
		case <-ctx.Done():
		case <-e.transport.Done():
		}

	case proto.MessageKind_REQUEST:
		select {
		case requests <- env:
		case <-ctx.Done():
		case <-e.transport.Done():
		}

	case proto.MessageKind_RESPONSE:
		e.pendingMu.Lock()
		reply, ok := e.pending[env.Id]
		delete(e.pending, env.Id)
		e.pendingMu.Unlock()
		if !ok {
			e.logger.Debug().Str("channel", env.Channel).Str("id", env.Id).Msg("Dropping reply with no pending request")
			return
		}
		reply <- env
	}
}

// serve runs the handler for one request and sends exactly one reply
func (e *Endpoint) serve(ctx context.Context, req *proto.Envelope) {
	ctx = telemetry.Extract(ctx, req.Meta)
	ctx, span := telemetry.StartSpan(ctx, "bridge.handle "+req.Channel,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			telemetry.AttrChannel.String(req.Channel),
			telemetry.AttrRequestID.String(req.Id),
		))
	defer span.End()

	e.handlersMu.RLock()
	handler, ok := e.handlers[req.Channel]
	e.handlersMu.RUnlock()

	var (
		result *string
		err    error
	)
	if !ok {
		err = apierrors.UnsupportedError("no_handler", fmt.Sprintf("no handler registered for %s", req.Channel))
	} else {
		result, err = e.call(ctx, handler, req)
	}

	if err != nil {
		telemetry.MarkSpanError(ctx, err)
		e.logger.Warn().Err(err).Str("channel", req.Channel).Str("id", req.Id).Msg("Request failed")
	}

	e.reply(ctx, proto.NewResponse(req, result, apierrors.ToProto(err)))
}

func (e *Endpoint) call(ctx context.Context, handler Handler, req *proto.Envelope) (result *string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			e.logger.Error().Interface("panic", rec).Str("channel", req.Channel).Msg("Handler panicked")
			err = apierrors.InternalError("handler_panic", fmt.Sprintf("%v", rec))
		}
	}()

	args := make([]string, len(req.Args))
	copy(args, req.Args)
	return handler(ctx, args)
}

func (e *Endpoint) reply(ctx context.Context, resp *proto.Envelope) {
	if err := e.transport.Send(context.WithoutCancel(ctx), resp); err != nil {
		e.logger.Warn().Err(err).Str("channel", resp.Channel).Str("id", resp.Id).Msg("Failed to send reply")
		return
	}
	e.countMessage(resp, "sent")
}

// rejectInbound drops a bad envelope. A request that carries an id still gets
// an error reply so the caller does not wait forever.
func (e *Endpoint) rejectInbound(ctx context.Context, env *proto.Envelope, err error) {
	code := apierrors.FromError(err).Code
	metrics.GetMetrics().BridgeProtocolErrorsTotal.WithLabelValues(code).Inc()
	e.logger.Warn().
		Err(err).
		Str("channel", env.Channel).
		Str("kind", env.Kind.String()).
		Str("id", env.Id).
		Msg("Rejecting envelope")

	if e.role == RoleHost && env.Kind == proto.MessageKind_REQUEST && env.Id != "" {
		e.reply(ctx, proto.NewResponse(env, nil, apierrors.ToProto(err)))
	}
}

// checkOutbound validates an envelope this endpoint is about to send
func (e *Endpoint) checkOutbound(env *proto.Envelope) error {
	err := Validate(env)
	if err == nil {
		err = e.allowed(env, true)
	}
	if err != nil {
		metrics.GetMetrics().BridgeProtocolErrorsTotal.WithLabelValues(apierrors.FromError(err).Code).Inc()
	}
	return err
}

// checkInbound validates an envelope received from the peer
func (e *Endpoint) checkInbound(env *proto.Envelope) error {
	if err := Validate(env); err != nil {
		return err
	}
	return e.allowed(env, false)
}

// allowed enforces which kinds each role may send and receive
func (e *Endpoint) allowed(env *proto.Envelope, outbound bool) error {
	var ok bool
	switch env.Kind {
	case proto.MessageKind_NOTIFY:
		// host sends, content receives
		ok = (e.role == RoleHost) == outbound
	case proto.MessageKind_REQUEST:
		// content sends, host receives
		ok = (e.role == RoleContent) == outbound
	case proto.MessageKind_RESPONSE:
		ok = (e.role == RoleHost) == outbound
	}
	if ok {
		return nil
	}

	verb := "receive"
	if outbound {
		verb = "send"
	}
	return apierrors.ProtocolError("wrong_side",
		fmt.Sprintf("the %s side cannot %s %s on %s", e.role, verb, env.Kind, env.Channel)).
		WithChannel(env.Channel)
}

func (e *Endpoint) countMessage(env *proto.Envelope, flow string) {
	metrics.GetMetrics().BridgeMessagesTotal.WithLabelValues(env.Channel, env.Kind.String(), flow).Inc()
}

// Variable for generating envelope IDs
// Can be replaced in tests for deterministic behavior
var generateID = func() string {
	return uuid.NewString()
}
