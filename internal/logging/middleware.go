package logging

import (
	"bufio"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/nkkko/textai/internal/metrics"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// HTTPMiddleware logs host HTTP requests and counts them
func HTTPMiddleware() func(next http.Handler) http.Handler {
	m := metrics.GetMetrics()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			logger := log.With().
				Str("component", "http").
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("remote_addr", r.RemoteAddr).
				Str("request_id", r.Header.Get("X-Request-ID")).
				Logger()

			ww := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(ww, r.WithContext(logger.WithContext(r.Context())))

			route := r.URL.Path
			if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil && routeCtx.RoutePattern() != "" {
				route = routeCtx.RoutePattern()
			}
			m.APIRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(ww.statusCode)).Inc()

			var event *zerolog.Event
			switch {
			case ww.statusCode >= 500:
				event = logger.Error()
			case ww.statusCode >= 400:
				event = logger.Warn()
			default:
				event = logger.Debug()
			}

			event.
				Str("route", route).
				Int("status", ww.statusCode).
				Dur("duration", time.Since(start)).
				Int64("response_size", ww.responseSize).
				Msg("Request completed")
		})
	}
}

// responseWriter captures the status code and size of a response
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	responseSize int64
}

// WriteHeader captures the status code
func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Write captures the response size
func (rw *responseWriter) Write(b []byte) (int, error) {
	size, err := rw.ResponseWriter.Write(b)
	rw.responseSize += int64(size)
	return size, err
}

// Hijack lets the websocket upgrade take over the connection
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if hj, ok := rw.ResponseWriter.(http.Hijacker); ok {
		return hj.Hijack()
	}
	return nil, nil, http.ErrNotSupported
}
