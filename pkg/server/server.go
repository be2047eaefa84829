// Package server exposes the calculation log over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/harun/pointlog/internal/observability"
	"github.com/harun/pointlog/pkg/session"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

const (
	DefaultPath            = "/fcgi-bin/app.jar"
	DefaultPort            = 8080
	DefaultHost            = "0.0.0.0"
	DefaultRateLimit       = 120
	DefaultRequestTimeout  = 10 * time.Second
	defaultShutdownTimeout = 30 * time.Second
)

// Options configures the HTTP server.
type Options struct {
	Host               string
	Port               int
	Path               string
	AllowedOrigins     []string
	RateLimitPerMinute int
	RequestTimeout     time.Duration
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
}

// Server serves calculation requests backed by a session store.
type Server struct {
	options     Options
	store       *session.Store
	rateLimiter *RateLimiter
	logger      zerolog.Logger
	startTime   time.Time
	now         func() time.Time
	newID       func(now time.Time) (string, error)

	mu     sync.Mutex
	server *http.Server
}

// New creates a server. It does not start listening.
func New(options Options, store *session.Store, logger zerolog.Logger) (*Server, error) {
	if store == nil {
		return nil, fmt.Errorf("session store is required")
	}

	if options.Host == "" {
		options.Host = DefaultHost
	}
	if options.Port == 0 {
		options.Port = DefaultPort
	}
	if options.Path == "" {
		options.Path = DefaultPath
	}
	if len(options.AllowedOrigins) == 0 {
		options.AllowedOrigins = []string{"*"}
	}
	if options.RateLimitPerMinute == 0 {
		options.RateLimitPerMinute = DefaultRateLimit
	}
	if options.RequestTimeout == 0 {
		options.RequestTimeout = DefaultRequestTimeout
	}

	observability.EnsureRegistered()

	return &Server{
		options:     options,
		store:       store,
		rateLimiter: NewRateLimiter(options.RateLimitPerMinute),
		logger:      logger.With().Str("component", "http_server").Logger(),
		startTime:   time.Now(),
		now:         time.Now,
		newID:       newSessionID,
	}, nil
}

// Handler builds the routing tree.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(requestContext)
	r.Use(requestLogger(s.logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.options.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: allowCredentials(s.options.AllowedOrigins),
		MaxAge:           300,
	}))

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", observability.MetricsHandler())

	r.With(s.rateLimit, chimiddleware.Timeout(s.options.RequestTimeout)).
		HandleFunc(s.options.Path, s.handleCalculations)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "Not Found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, "Unsupported HTTP method: "+r.Method)
	})

	return r
}

// allowCredentials reports whether browsers may send the session cookie on
// cross-origin requests. Only explicitly listed origins get credentials.
func allowCredentials(origins []string) bool {
	for _, origin := range origins {
		if origin == "*" {
			return false
		}
	}
	return len(origins) > 0
}

// Start listens and serves until Stop is called.
func (s *Server) Start() error {
	addr := net.JoinHostPort(s.options.Host, strconv.Itoa(s.options.Port))

	s.mu.Lock()
	if s.server != nil {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  s.options.ReadTimeout,
		WriteTimeout: s.options.WriteTimeout,
	}
	srv := s.server
	s.mu.Unlock()

	s.logger.Info().
		Str("addr", addr).
		Str("path", s.options.Path).
		Msg("Starting HTTP server")

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Stop gracefully drains in-flight requests.
func (s *Server) Stop(ctx context.Context) error {
	s.rateLimiter.Stop()

	s.mu.Lock()
	srv := s.server
	s.server = nil
	s.mu.Unlock()

	if srv == nil {
		return nil
	}

	s.logger.Info().Msg("Shutting down HTTP server")

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultShutdownTimeout)
		defer cancel()
	}

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}

	s.logger.Info().Msg("HTTP server stopped")
	return nil
}

func newSessionID(now time.Time) (string, error) {
	suffix, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("failed to generate session id: %w", err)
	}
	return fmt.Sprintf("sess_%d_%s", now.UnixMilli(), suffix), nil
}
