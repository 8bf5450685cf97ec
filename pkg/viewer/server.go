package viewer

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"bookmarkvault/pkg/config"
	"bookmarkvault/pkg/logger"
	"bookmarkvault/pkg/manifest"
)

// Server serves the archive over HTTP for local browsing
type Server struct {
	http     *http.Server
	handlers *handlers
	logger   logger.Logger
}

// New builds the router and the HTTP server. The store is shared with any
// sync running in the same process.
func New(cfg *config.Config, store manifest.Store, log logger.Logger) *Server {
	if log == nil {
		log = logger.GetLogger()
	}
	log = log.WithField("component", "viewer")

	h := &handlers{
		root:     cfg.Archive.RootDir,
		mediaDir: cfg.MediaDir(),
		store:    store,
		logger:   log,
		started:  time.Now(),
	}

	return &Server{
		http: &http.Server{
			Addr:              cfg.Server.ListenAddr,
			Handler:           newRouter(h, log),
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      5 * time.Minute,
			IdleTimeout:       60 * time.Second,
			MaxHeaderBytes:    1 << 20,
		},
		handlers: h,
		logger:   log,
	}
}

func newRouter(h *handlers, log logger.Logger) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.GetHead)
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(accessLog(log))

	r.Get("/", h.index)
	r.Get("/bookmark/{id}", h.bookmark)
	r.Get("/bookmark/media/{file}", h.media)
	r.Get("/media/{file}", h.media)
	r.Get("/healthz", h.healthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return r
}

// Handler returns the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Addr returns the configured listen address
func (s *Server) Addr() string {
	return s.http.Addr
}

// Start listens and serves until Stop is called
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve serves on an existing listener until Stop is called
func (s *Server) Serve(ln net.Listener) error {
	s.logger.InfoWithFields("Archive viewer listening", map[string]interface{}{
		"addr": ln.Addr().String(),
	})
	err := s.http.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop gracefully shuts down the server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Archive viewer shutting down")
	return s.http.Shutdown(ctx)
}
