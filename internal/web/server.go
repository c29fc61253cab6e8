package web

import (
	"context"
	"errors"
	"io/fs"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/cjeanneret/turntable/internal/debug"
	"github.com/cjeanneret/turntable/internal/metrics"
)

// ServerOption configures Server.
type ServerOption func(*Server)

// WithMetrics records request metrics into rec and, if path is not empty,
// serves the registry there.
func WithMetrics(rec *metrics.Recorder, path string) ServerOption {
	return func(s *Server) {
		s.metrics = rec
		s.metricsPath = path
	}
}

// Server wraps the HTTP server and handlers.
type Server struct {
	addr        string
	handlers    *Handlers
	metrics     *metrics.Recorder
	metricsPath string
}

// NewServer creates a server configured for the given address and dependencies.
func NewServer(addr string, p Panel, broadcaster *StatusBroadcaster, formDefaults FormConfig, opts ...ServerOption) (*Server, error) {
	subFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		return nil, err
	}

	s := &Server{
		addr:     addr,
		handlers: NewHandlers(p, broadcaster, formDefaults, subFS),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Mux returns an http.Handler with all routes registered.
func (s *Server) Mux() http.Handler {
	h := s.handlers
	r := mux.NewRouter()
	r.Use(instrument(s.metrics))

	r.HandleFunc("/", h.ServeIndex).Methods(http.MethodGet)
	r.PathPrefix("/static/").Handler(http.StripPrefix("/static/", http.FileServer(http.FS(h.staticFS))))
	r.HandleFunc("/config", h.HandleConfig).Methods(http.MethodGet)
	r.HandleFunc("/status/stream", h.HandleStatusStream).Methods(http.MethodGet)
	r.HandleFunc("/ws", h.HandleSocket).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/state", h.HandleState).Methods(http.MethodGet)
	api.HandleFunc("/dial/{axis}.svg", h.HandleDial).Methods(http.MethodGet)
	api.HandleFunc("/fields/{axis}", h.HandleFields).Methods(http.MethodPut)
	api.HandleFunc("/apply", h.HandleApply).Methods(http.MethodPost)
	api.HandleFunc("/refresh", h.HandleRefresh).Methods(http.MethodPost)

	if s.metrics != nil && s.metricsPath != "" {
		r.Handle(s.metricsPath, s.metrics.Handler()).Methods(http.MethodGet)
	}
	return r
}

// Run starts the server and blocks until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Mux(),
		ReadHeaderTimeout: 10 * time.Second,
		// Streams (SSE, websocket) end when ctx does, so Shutdown is not
		// left waiting on them.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}
	errCh := make(chan error, 1)
	go func() {
		debug.Info("web server listening on %s", ln.Addr())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
