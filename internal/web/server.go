package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"podvoice/internal/catalog"
	"podvoice/internal/config"
	"podvoice/internal/library"
	"podvoice/internal/logging"
	"podvoice/internal/podcastindex"
	"podvoice/internal/services"
)

const component = "web"

// Server owns the HTTP listener and every route.
type Server struct {
	cfg       *config.Config
	logger    *slog.Logger
	hub       *logging.StreamHub
	store     *catalog.Store
	directory podcastindex.Directory
	library   *library.Service
	version   string
	now       func() time.Time
	limiter   *rateLimiter
	pages     *pages
	sessions  atomic.Int64

	handler  http.Handler
	listener net.Listener
	server   *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithLogHub exposes the in-memory log stream on /api/logs.
func WithLogHub(hub *logging.StreamHub) Option {
	return func(s *Server) { s.hub = hub }
}

// WithVersion sets the version reported by /api/status.
func WithVersion(version string) Option {
	return func(s *Server) {
		if strings.TrimSpace(version) != "" {
			s.version = strings.TrimSpace(version)
		}
	}
}

// WithClock overrides the clock used by the rate limiter.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		if now != nil {
			s.now = now
		}
	}
}

// New builds the server and its routes. Nothing listens until Start.
func New(cfg *config.Config, directory podcastindex.Directory, store *catalog.Store, opts ...Option) (*Server, error) {
	if cfg == nil {
		return nil, services.Wrap(services.ErrConfiguration, component, "new", "config is required", nil)
	}
	if directory == nil || store == nil {
		return nil, services.Wrap(services.ErrConfiguration, component, "new", "directory and store are required", nil)
	}
	s := &Server{
		cfg:       cfg,
		logger:    logging.NewNop(),
		store:     store,
		directory: directory,
		version:   "dev",
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.NewComponentLogger(s.logger, component)
	s.library = library.NewFromConfig(cfg, directory, store, s.logger)
	if cfg.RateLimit.Enabled {
		s.limiter = newRateLimiter(cfg.RateLimit.Requests, time.Duration(cfg.RateLimit.WindowSeconds)*time.Second, s.now)
	}
	pages, err := newPages()
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, component, "new", "load page templates", err)
	}
	s.pages = pages
	s.handler = s.routes()
	return s, nil
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	auth := func(h http.HandlerFunc) http.HandlerFunc {
		return authMiddleware(s.cfg.Server.APIToken, h)
	}

	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/logs", s.handleLogs)

	mux.HandleFunc("GET /api/podcast-index/search-by-title", s.handleDirectorySearch)
	mux.HandleFunc("GET /api/podcast-index/by-feed-id", s.handleDirectoryFeed)
	mux.HandleFunc("GET /api/podcast-index/episodes", s.handleDirectoryEpisodes)
	mux.HandleFunc("GET /api/podcast-index/trending", s.handleDirectoryTrending)

	mux.HandleFunc("POST /api/catalog/podcasts", auth(s.handleAddPodcast))
	mux.HandleFunc("POST /api/catalog/episodes", auth(s.handleAddEpisodes))
	mux.HandleFunc("POST /api/catalog/trending", auth(s.handleAddTrending))
	mux.HandleFunc("GET /api/catalog/podcasts/{id}", s.handleGetPodcast)
	mux.HandleFunc("GET /api/catalog/episodes", s.handleListEpisodes)
	mux.HandleFunc("GET /api/catalog/episodes/{id}", s.handleGetEpisode)
	mux.HandleFunc("GET /api/catalog/trending", s.handleListTrending)
	mux.HandleFunc("GET /api/catalog/search", s.handleCatalogSearch)

	mux.HandleFunc("GET /api/fetch-podcast", auth(s.handleFetchPodcast))
	mux.HandleFunc("POST /api/trending-podcasts/refresh", auth(s.handleRefreshTrending))

	mux.HandleFunc("GET /{$}", s.handleHomePage)
	mux.HandleFunc("GET /search", s.handleSearchPage)
	mux.HandleFunc("GET /podcast/{id}", s.handlePodcastPage)
	mux.HandleFunc("GET /episode/{id}", s.handleEpisodePage)
	mux.HandleFunc("GET /help", s.handleHelpPage)
	mux.HandleFunc("GET /static/{file}", s.handleStatic)

	mux.HandleFunc("GET /ws/player", s.handlePlayerSocket)

	return requestIDMiddleware(s.log(), rateLimitMiddleware(s.limiter, s.cfg.RateLimit.TrustForwardedFor, mux))
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start listens on server.bind and serves until ctx is cancelled or Stop is
// called.
func (s *Server) Start(ctx context.Context) error {
	bind := strings.TrimSpace(s.cfg.Server.Bind)
	if bind == "" {
		return services.Wrap(services.ErrConfiguration, component, "start", "server.bind is empty", nil)
	}
	listener, err := net.Listen("tcp", bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	readTimeout := time.Duration(s.cfg.Server.ReadTimeoutSeconds) * time.Second
	if readTimeout <= 0 {
		readTimeout = 15 * time.Second
	}
	s.server = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       readTimeout,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("http server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	s.log().Info("http server listening", logging.String("address", listener.Addr().String()))
	return nil
}

// Addr returns the bound listener address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop shuts the listener down gracefully.
func (s *Server) Stop() {
	if s.server == nil {
		return
	}
	timeout := time.Duration(s.cfg.Server.ShutdownTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
}

// ActiveSessions counts connected player bridges.
func (s *Server) ActiveSessions() int {
	return int(s.sessions.Load())
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

// writeServiceError answers with the status the error's marker maps to.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := services.HTTPStatus(err)
	logger := logging.WithContext(r.Context(), s.log())
	if status >= http.StatusInternalServerError {
		logger.Error(op+" failed", logging.Error(err))
	} else {
		logger.Debug(op+" rejected", logging.Int("status", status), logging.Error(err))
	}
	s.writeError(w, status, services.Message(err))
}

func (s *Server) log() *slog.Logger {
	if s.logger != nil {
		return s.logger
	}
	return logging.NewNop()
}

func catalogNotFound(err error) bool {
	return errors.Is(err, services.ErrNotFound)
}
