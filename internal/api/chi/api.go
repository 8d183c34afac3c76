package chi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
	apierrors "github.com/nkkko/textai/internal/api/errors"
	"github.com/nkkko/textai/internal/api/models"
	"github.com/nkkko/textai/internal/api/response"
	"github.com/nkkko/textai/internal/api/validation"
	"github.com/nkkko/textai/internal/domain"
	"github.com/nkkko/textai/internal/logging"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Ensure ChiAPI implements domain.APIEngine
var _ domain.APIEngine = (*ChiAPI)(nil)

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

// requestTimeout bounds the control routes. /bridge is long-lived and exempt.
const requestTimeout = 30 * time.Second

// ChiAPI serves the host control surface and the /bridge websocket using Chi
type ChiAPI struct {
	config   Config
	host     domain.HostService
	router   *chi.Mux
	server   *http.Server
	upgrader websocket.Upgrader
	baseCtx  context.Context
	logger   zerolog.Logger
}

// NewChiAPI creates a new API instance with Chi router
func NewChiAPI(config Config, host domain.HostService) *ChiAPI {
	defaults := DefaultConfig()
	if config.Addr == "" {
		config.Addr = defaults.Addr
	}
	if config.ReadTimeout == 0 {
		config.ReadTimeout = defaults.ReadTimeout
	}
	if config.WriteTimeout == 0 {
		config.WriteTimeout = defaults.WriteTimeout
	}
	if config.IdleTimeout == 0 {
		config.IdleTimeout = defaults.IdleTimeout
	}
	if config.MetricsEndpoint == "" {
		config.MetricsEndpoint = defaults.MetricsEndpoint
	}

	a := &ChiAPI{
		config:  config,
		host:    host,
		baseCtx: context.Background(),
		logger:  log.With().Str("component", "api-chi").Logger(),
	}
	a.router = a.buildRouter()
	return a
}

// Handler returns the HTTP handler, for tests and embedding
func (a *ChiAPI) Handler() http.Handler {
	return a.router
}

// Start runs the API server until ctx is done
func (a *ChiAPI) Start(ctx context.Context) error {
	a.logger.Info().Str("addr", a.config.Addr).Msg("Starting API server with Chi router")

	a.baseCtx = ctx
	a.server = &http.Server{
		Addr:         a.config.Addr,
		Handler:      a.router,
		ReadTimeout:  a.config.ReadTimeout,
		WriteTimeout: a.config.WriteTimeout,
		IdleTimeout:  a.config.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		a.logger.Error().Err(err).Msg("API server error")
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return a.Shutdown(shutdownCtx)
}

// Shutdown stops the API server
func (a *ChiAPI) Shutdown(ctx context.Context) error {
	a.logger.Info().Msg("Shutting down API server")
	if a.server != nil {
		return a.server.Shutdown(ctx)
	}
	return nil
}

// buildRouter sets up middleware and all API endpoints
func (a *ChiAPI) buildRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.HTTPMiddleware())
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: a.config.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	// The content process connects here and stays for the window's lifetime
	r.Get("/bridge", a.handleBridge)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(requestTimeout))

		r.Get("/healthz", a.handleHealth)
		r.Get("/readyz", a.handleReady)

		if a.config.MetricsEnabled {
			r.Handle(a.config.MetricsEndpoint, promhttp.Handler())
		}

		r.Route("/menu", func(r chi.Router) {
			r.Get("/", a.handleMenu)
			r.Post("/{id}", a.handleTrigger)
		})
		r.Post("/accelerator", a.handleAccelerator)

		r.Route("/recent", func(r chi.Router) {
			r.Get("/", a.handleRecent)
			r.Post("/open", a.handleOpenRecent)
		})
	})

	return r
}

// handleBridge upgrades to a websocket and serves it as the window
func (a *ChiAPI) handleBridge(w http.ResponseWriter, r *http.Request) {
	if a.host.Ready() {
		response.Error(w, r, apierrors.ConflictError("window_open", "A window is already attached"))
		return
	}

	conn, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already replied
		a.logger.Warn().Err(err).Msg("Bridge upgrade failed")
		return
	}

	a.logger.Info().Str("remote_addr", r.RemoteAddr).Msg("Window connected")
	if err := a.host.Serve(a.baseCtx, conn); err != nil {
		a.logger.Warn().Err(err).Msg("Window closed with error")
		return
	}
	a.logger.Info().Str("remote_addr", r.RemoteAddr).Msg("Window disconnected")
}

func (a *ChiAPI) handleHealth(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, models.HealthResponse{
		Status: "ok",
		Window: a.host.Ready(),
	})
}

// handleReady succeeds only while a window is attached
func (a *ChiAPI) handleReady(w http.ResponseWriter, r *http.Request) {
	if !a.host.Ready() {
		response.Error(w, r, apierrors.UnavailableError("no_window", "No window is attached"))
		return
	}
	response.JSON(w, r, http.StatusOK, models.HealthResponse{Status: "ready", Window: true})
}

func (a *ChiAPI) handleMenu(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, models.MenuResponse{Items: a.host.Menu()})
}

// handleTrigger runs a menu item as if it were clicked
func (a *ChiAPI) handleTrigger(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := validation.Required("id", id); err != nil {
		response.Error(w, r, err)
		return
	}

	if err := a.host.Trigger(r.Context(), id); err != nil {
		a.logger.Warn().Err(err).Str("item", id).Msg("Menu trigger failed")
		response.Error(w, r, err)
		return
	}

	response.JSON(w, r, http.StatusOK, models.TriggerResponse{Item: id, Triggered: true})
}

// handleAccelerator runs the menu item bound to a key combination
func (a *ChiAPI) handleAccelerator(w http.ResponseWriter, r *http.Request) {
	var req models.AcceleratorRequest
	if err := validation.Decode(r.Body, &req); err != nil {
		response.Error(w, r, err)
		return
	}

	if err := a.host.TriggerAccelerator(r.Context(), req.Accelerator); err != nil {
		a.logger.Warn().Err(err).Str("accelerator", req.Accelerator).Msg("Accelerator trigger failed")
		response.Error(w, r, err)
		return
	}

	response.JSON(w, r, http.StatusOK, models.TriggerResponse{Triggered: true})
}

func (a *ChiAPI) handleRecent(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, models.RecentResponse{Documents: a.host.Recent()})
}

// handleOpenRecent re-opens a recent document in the window
func (a *ChiAPI) handleOpenRecent(w http.ResponseWriter, r *http.Request) {
	var req models.OpenRecentRequest
	if err := validation.Decode(r.Body, &req); err != nil {
		response.Error(w, r, err)
		return
	}

	if err := a.host.OpenRecent(r.Context(), req.Path); err != nil {
		response.Error(w, r, err)
		return
	}

	response.JSON(w, r, http.StatusOK, models.TriggerResponse{Triggered: true})
}
