// package server exposes download jobs over a small JSON HTTP API
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/songrip/internal/shared"
)

// Middleware wraps an http.Handler and returns a new http.Handler with additional behavior.
// Common middleware includes logging, panic recovery, CORS, rate limiting, etc.
type Middleware func(http.Handler) http.Handler

// Router defines the interface for HTTP routing and middleware management.
// Implementations register handlers, apply middleware, and configure the HTTP server.
type Router interface {
	Use(middleware ...Middleware)                     // Use adds middleware to the router's middleware stack
	Handle(method, path string, handler http.Handler) // Handle registers a handler for the specified method and path
	ServeHTTP(w http.ResponseWriter, r *http.Request) // ServeHTTP implements http.Handler for the entire router
}

// shutdownTimeout bounds how long in-flight requests may finish after the
// serve context is cancelled.
const shutdownTimeout = 10 * time.Second

// Server serves the download API.
type Server struct {
	addr   string
	router Router
	logger *log.Logger
}

// NewServer wires the download routes onto a [BasicRouter] with logging and
// recovery middleware.
func NewServer(addr string, engine Engine, logger *log.Logger) *Server {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	router := NewBasicRouter()
	router.Use(RecoverMiddleware(logger), LoggingMiddleware(logger))

	h := NewDownloadHandler(engine, logger)
	router.Handle(http.MethodGet, "/health", http.HandlerFunc(h.Health))
	router.Handle(http.MethodPost, "/api/validate", http.HandlerFunc(h.Validate))
	router.Handle(http.MethodPost, "/api/metadata", http.HandlerFunc(h.Metadata))
	router.Handle(http.MethodPost, "/api/source", http.HandlerFunc(h.Source))
	router.Handle(http.MethodPost, "/api/track", http.HandlerFunc(h.Track))
	router.Handle(http.MethodPost, "/api/playlist", http.HandlerFunc(h.Playlist))
	router.Handle(http.MethodGet, "/", http.HandlerFunc(h.Index))

	return &Server{addr: addr, router: router, logger: logger}
}

var _ Router = (*BasicRouter)(nil)

// Handler returns the root [http.Handler].
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}
