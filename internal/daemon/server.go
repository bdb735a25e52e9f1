package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/matheus3301/twin/internal/api"
	"github.com/matheus3301/twin/internal/config"
	"github.com/matheus3301/twin/internal/metrics"
	"github.com/matheus3301/twin/internal/ogmeta"
	"github.com/matheus3301/twin/internal/rpc"
	"github.com/matheus3301/twin/internal/session"
)

// Server manages the gRPC server lifecycle for a session daemon.
type Server struct {
	grpcServer *grpc.Server
	listener   net.Listener
	socketPath string
	logger     *zap.Logger
}

// NewServer creates a gRPC server bound to the session's Unix domain socket.
func NewServer(p Params, logger *zap.Logger, svc *api.Service) (*Server, error) {
	socketPath := p.SocketPath
	if socketPath == "" {
		socketPath = session.SocketPath(p.SessionName)
	}

	// Clean stale socket if it exists.
	if _, err := os.Stat(socketPath); err == nil {
		_ = os.Remove(socketPath)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("listen unix socket: %w", err)
	}

	if err := os.Chmod(socketPath, 0600); err != nil {
		_ = listener.Close()
		return nil, fmt.Errorf("chmod socket: %w", err)
	}

	srv := grpc.NewServer()
	rpc.RegisterTwinServer(srv, svc)

	return &Server{
		grpcServer: srv,
		listener:   listener,
		socketPath: socketPath,
		logger:     logger,
	}, nil
}

// Start begins serving gRPC requests. Blocks until stopped.
func (s *Server) Start() error {
	s.logger.Info("gRPC server starting", zap.String("socket", s.socketPath))
	return s.grpcServer.Serve(s.listener)
}

// Stop performs a graceful shutdown and removes the socket file. Open
// WatchEvents streams are cut when ctx ends.
func (s *Server) Stop(ctx context.Context) {
	s.logger.Info("gRPC server stopping")
	done := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.grpcServer.Stop()
		<-done
	}
	_ = os.Remove(s.socketPath)
}

// HTTPServer serves /metrics and /api/metadata-url when an address is configured.
type HTTPServer struct {
	addr   string
	srv    *http.Server
	logger *zap.Logger
}

// NewHTTPServer builds the optional HTTP listener. An empty daemon.http_listen
// disables it.
func NewHTTPServer(cfg *config.Config, m *metrics.Metrics, scraper *ogmeta.Scraper, logger *zap.Logger) *HTTPServer {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.Handle("/api/metadata-url", ogmeta.NewHandler(scraper, logger.Named("metadata")))
	return &HTTPServer{
		addr: cfg.Daemon.HTTPListen,
		srv: &http.Server{
			Addr:              cfg.Daemon.HTTPListen,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// Start binds the listener and serves in the background.
func (h *HTTPServer) Start() error {
	if h.addr == "" {
		return nil
	}
	ln, err := net.Listen("tcp", h.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", h.addr, err)
	}
	h.logger.Info("HTTP server starting", zap.String("addr", ln.Addr().String()))
	go func() {
		if err := h.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			h.logger.Error("HTTP server error", zap.Error(err))
		}
	}()
	return nil
}

// Stop shuts the listener down.
func (h *HTTPServer) Stop(ctx context.Context) {
	if h.addr == "" {
		return
	}
	if err := h.srv.Shutdown(ctx); err != nil {
		h.logger.Warn("HTTP server shutdown", zap.Error(err))
	}
}

// Handler exposes the mux, for tests.
func (h *HTTPServer) Handler() http.Handler {
	return h.srv.Handler
}
