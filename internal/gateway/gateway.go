package gateway

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/lifedash/lifedash/internal/config"
	"github.com/lifedash/lifedash/internal/logger"
	"github.com/lifedash/lifedash/internal/metrics"
	"github.com/lifedash/lifedash/internal/ratelimit"
	"github.com/lifedash/lifedash/internal/usage"
	"github.com/lifedash/lifedash/pkg/types"
)

// ChatService handles one chat request end to end.
type ChatService interface {
	Chat(ctx context.Context, requestID string, req *types.ChatRequest) (*types.ChatResponse, error)
}

// Gateway is the HTTP front of the assistant. Rate limiting runs here,
// before the chat pipeline is ever invoked.
type Gateway struct {
	cfg            *config.Config
	mux            *http.ServeMux
	server         *http.Server
	assistant      ChatService
	recorder       *usage.Recorder
	limiter        *ratelimit.Limiter
	log            *logger.Logger
	startTime      time.Time
	activeRequests sync.WaitGroup // tracks in-flight request processing
	shutdownCh     chan struct{}  // signals shutdown in progress
}

// New creates a gateway over the chat service and usage recorder.
func New(cfg *config.Config, assistant ChatService, recorder *usage.Recorder, log *logger.Logger) *Gateway {
	if log == nil {
		log = logger.New("gateway", cfg.Log.Level)
	}

	limiter := ratelimit.New(cfg.Gateway.RateLimit)
	if cfg.Gateway.RateLimit > 0 {
		log.Info("rate limiting enabled: %d requests/minute", cfg.Gateway.RateLimit)
	}

	gw := &Gateway{
		cfg:        cfg,
		mux:        http.NewServeMux(),
		assistant:  assistant,
		recorder:   recorder,
		limiter:    limiter,
		log:        log,
		startTime:  time.Now(),
		shutdownCh: make(chan struct{}),
	}
	gw.setupRoutes()
	return gw
}

func (gw *Gateway) setupRoutes() {
	gw.mux.HandleFunc("/health", gw.handleHealth)
	gw.mux.HandleFunc("/api/chat", gw.handleChat)
	gw.mux.HandleFunc("/api/usage/summary", gw.handleUsageSummary)
	gw.mux.HandleFunc("/api/usage/recent", gw.handleUsageRecent)
	if gw.cfg.Metrics.Enabled {
		path := gw.cfg.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		gw.mux.HandleFunc(path, metrics.Handler())
	}
}

// Handler returns the gateway's HTTP handler.
func (gw *Gateway) Handler() http.Handler {
	return gw.mux
}

// Start runs the HTTP server until SIGINT/SIGTERM, then shuts down
// gracefully.
func (gw *Gateway) Start() error {
	addr := fmt.Sprintf("%s:%d", gw.cfg.Gateway.Bind, gw.cfg.Gateway.Port)
	gw.server = &http.Server{
		Addr:    addr,
		Handler: gw.mux,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		gw.gracefulShutdown()
	}()

	gw.log.Info("gateway listening on %s", addr)
	err := gw.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// gracefulShutdown drains in-flight requests before closing the server.
func (gw *Gateway) gracefulShutdown() {
	gw.log.Info("shutting down")
	close(gw.shutdownCh)

	done := make(chan struct{})
	go func() {
		gw.activeRequests.Wait()
		close(done)
	}()

	select {
	case <-done:
		gw.log.Info("all active requests completed")
	case <-time.After(30 * time.Second):
		gw.log.Warn("timeout waiting for requests, forcing shutdown")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := gw.server.Shutdown(ctx); err != nil {
		gw.server.Close()
	}

	gw.log.Info("shutdown complete")
}

// shuttingDown reports whether shutdown has started.
func (gw *Gateway) shuttingDown() bool {
	select {
	case <-gw.shutdownCh:
		return true
	default:
		return false
	}
}

// clientID identifies the caller for rate limiting by remote IP.
func clientID(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
