package api

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/websocket/v2"
	apierrors "github.com/nkkko/textai/internal/api/errors"
	"github.com/nkkko/textai/internal/api/models"
	"github.com/nkkko/textai/internal/api/response"
	"github.com/nkkko/textai/internal/api/validation"
	"github.com/nkkko/textai/internal/domain"
	"github.com/nkkko/textai/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

// Ensure API implements domain.APIEngine
var _ domain.APIEngine = (*API)(nil)

// Config contains API configuration
type Config struct {
	// Server address
	Addr string

	// Timeouts
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// Origins allowed to call the control routes
	CORSOrigins []string

	// Prometheus scrape route
	MetricsEnabled  bool
	MetricsEndpoint string
}

// DefaultConfig returns a default configuration
func DefaultConfig() Config {
	return Config{
		Addr:            "127.0.0.1:8787",
		ReadTimeout:     5 * time.Second,
		WriteTimeout:    10 * time.Second,
		IdleTimeout:     120 * time.Second,
		CORSOrigins:     []string{"http://localhost", "http://127.0.0.1"},
		MetricsEnabled:  true,
		MetricsEndpoint: "/metrics",
	}
}

// API serves the host control surface and the /bridge websocket using Fiber
type API struct {
	config  Config
	app     *fiber.App
	host    domain.HostService
	baseCtx context.Context
	logger  zerolog.Logger
}

// NewAPI creates a new API instance
func NewAPI(config Config, host domain.HostService) *API {
	defaults := DefaultConfig()
	if config.Addr == "" {
		config.Addr = defaults.Addr
	}
	if config.MetricsEndpoint == "" {
		config.MetricsEndpoint = defaults.MetricsEndpoint
	}

	a := &API{
		config:  config,
		host:    host,
		baseCtx: context.Background(),
		logger:  log.With().Str("component", "api").Logger(),
	}

	// Websocket connections are hijacked, so the timeouts only bound the
	// control routes and the upgrade handshake
	a.app = fiber.New(fiber.Config{
		ReadTimeout:           config.ReadTimeout,
		WriteTimeout:          config.WriteTimeout,
		IdleTimeout:           config.IdleTimeout,
		BodyLimit:             64 * 1024,
		DisableStartupMessage: true,
	})

	a.app.Use(recover.New())
	a.app.Use(requestid.New())
	a.app.Use(a.requestLogger())
	a.app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(config.CORSOrigins, ","),
		AllowMethods: "GET,POST,OPTIONS",
	}))

	a.registerRoutes(a.app)
	return a
}

// App returns the fiber application, for tests
func (a *API) App() *fiber.App {
	return a.app
}

// Start runs the API server until ctx is done
func (a *API) Start(ctx context.Context) error {
	a.logger.Info().Str("addr", a.config.Addr).Msg("Starting API server")
	a.baseCtx = ctx

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.app.Listen(a.config.Addr)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			a.logger.Error().Err(err).Msg("API server error")
		}
		return err
	case <-ctx.Done():
	}

	return a.Shutdown(context.Background())
}

// Shutdown stops the API server
func (a *API) Shutdown(ctx context.Context) error {
	a.logger.Info().Msg("Shutting down API server")
	if a.app != nil {
		return a.app.ShutdownWithContext(ctx)
	}
	return nil
}

// registerRoutes sets up all API endpoints
func (a *API) registerRoutes(app *fiber.App) {
	// The content process connects here and stays for the window's lifetime
	app.Use("/bridge", func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		if a.host.Ready() {
			return a.sendError(c, apierrors.ConflictError("window_open", "A window is already attached"))
		}
		return c.Next()
	})
	app.Get("/bridge", websocket.New(a.handleBridge))

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return a.sendJSON(c, fiber.StatusOK, models.HealthResponse{Status: "ok", Window: a.host.Ready()})
	})

	app.Get("/readyz", func(c *fiber.Ctx) error {
		if !a.host.Ready() {
			return a.sendError(c, apierrors.UnavailableError("no_window", "No window is attached"))
		}
		return a.sendJSON(c, fiber.StatusOK, models.HealthResponse{Status: "ready", Window: true})
	})

	if a.config.MetricsEnabled {
		handler := fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler())
		app.Get(a.config.MetricsEndpoint, func(c *fiber.Ctx) error {
			handler(c.Context())
			return nil
		})
	}

	app.Get("/menu", func(c *fiber.Ctx) error {
		return a.sendJSON(c, fiber.StatusOK, models.MenuResponse{Items: a.host.Menu()})
	})
	app.Post("/menu/:id", a.handleTrigger)
	app.Post("/accelerator", a.handleAccelerator)

	app.Get("/recent", func(c *fiber.Ctx) error {
		return a.sendJSON(c, fiber.StatusOK, models.RecentResponse{Documents: a.host.Recent()})
	})
	app.Post("/recent/open", a.handleOpenRecent)
}

// handleBridge serves an upgraded connection as the window
func (a *API) handleBridge(c *websocket.Conn) {
	remote := c.RemoteAddr().String()
	a.logger.Info().Str("remote_addr", remote).Msg("Window connected")
	if err := a.host.Serve(a.baseCtx, c); err != nil {
		a.logger.Warn().Err(err).Msg("Window closed with error")
		return
	}
	a.logger.Info().Str("remote_addr", remote).Msg("Window disconnected")
}

// handleTrigger runs a menu item as if it were clicked
func (a *API) handleTrigger(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := validation.Required("id", id); err != nil {
		return a.sendError(c, err)
	}

	if err := a.host.Trigger(c.UserContext(), id); err != nil {
		a.logger.Warn().Err(err).Str("item", id).Msg("Menu trigger failed")
		return a.sendError(c, err)
	}

	return a.sendJSON(c, fiber.StatusOK, models.TriggerResponse{Item: id, Triggered: true})
}

// handleAccelerator runs the menu item bound to a key combination
func (a *API) handleAccelerator(c *fiber.Ctx) error {
	var req models.AcceleratorRequest
	if err := validation.Unmarshal(c.Body(), &req); err != nil {
		return a.sendError(c, err)
	}

	if err := a.host.TriggerAccelerator(c.UserContext(), req.Accelerator); err != nil {
		a.logger.Warn().Err(err).Str("accelerator", req.Accelerator).Msg("Accelerator trigger failed")
		return a.sendError(c, err)
	}

	return a.sendJSON(c, fiber.StatusOK, models.TriggerResponse{Triggered: true})
}

// handleOpenRecent re-opens a recent document in the window
func (a *API) handleOpenRecent(c *fiber.Ctx) error {
	var req models.OpenRecentRequest
	if err := validation.Unmarshal(c.Body(), &req); err != nil {
		return a.sendError(c, err)
	}

	if err := a.host.OpenRecent(c.UserContext(), req.Path); err != nil {
		return a.sendError(c, err)
	}

	return a.sendJSON(c, fiber.StatusOK, models.TriggerResponse{Triggered: true})
}

func (a *API) sendJSON(c *fiber.Ctx, status int, data any) error {
	return c.Status(status).JSON(response.Response{
		Success:   status >= 200 && status < 300,
		RequestID: requestID(c),
		Data:      data,
	})
}

func (a *API) sendError(c *fiber.Ctx, err error) error {
	apiErr := apierrors.FromError(err).WithRequestID(requestID(c))
	return c.Status(apiErr.HTTPCode).JSON(response.Response{
		Success:   false,
		RequestID: apiErr.RequestID,
		Error:     apiErr,
	})
}

func requestID(c *fiber.Ctx) string {
	id, _ := c.Locals("requestid").(string)
	return id
}

// requestLogger logs and counts requests the way the chi middleware does
func (a *API) requestLogger() fiber.Handler {
	m := metrics.GetMetrics()
	logger := log.With().Str("component", "http").Logger()

	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if fe, ok := err.(*fiber.Error); ok {
			status = fe.Code
		}
		route := c.Route().Path
		m.APIRequestsTotal.WithLabelValues(c.Method(), route, strconv.Itoa(status)).Inc()

		var event *zerolog.Event
		switch {
		case status >= 500:
			event = logger.Error()
		case status >= 400:
			event = logger.Warn()
		default:
			event = logger.Debug()
		}
		event.
			Str("method", c.Method()).
			Str("route", route).
			Int("status", status).
			Dur("duration", time.Since(start)).
			Msg("Request completed")

		return err
	}
}
