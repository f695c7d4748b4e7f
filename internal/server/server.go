// Package server exposes routing, expense totals, and pipeline runs over
// HTTP. Pipeline progress streams to clients as Server-Sent Events.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/danshapiro/courier/internal/ledger"
	"github.com/danshapiro/courier/internal/logging"
	"github.com/danshapiro/courier/internal/pipeline"
	"github.com/danshapiro/courier/internal/route"
)

type Config struct {
	Addr    string // listen address, e.g. ":8080"
	AppName string

	DefaultRouter   string
	DefaultPipeline string

	// Routers and Pipelines build a runnable workflow by name.
	Routers   func(name string) (*route.Dispatcher, error)
	Pipelines func(name string) (*pipeline.Pipeline, error)
	Ledger    *ledger.Accountant

	Logger *zap.Logger
}

type Server struct {
	config   Config
	registry *RunRegistry
	baseCtx  context.Context
	cancel   context.CancelFunc
	httpSrv  *http.Server
	logger   *zap.Logger
	runs     sync.WaitGroup
}

func New(cfg Config) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		config:   cfg,
		registry: NewRunRegistry(),
		baseCtx:  ctx,
		cancel:   cancel,
		logger:   logging.OrNop(cfg.Logger).Named("server"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /route", s.handleRoute)
	mux.HandleFunc("POST /ledger", s.handleLedger)
	mux.HandleFunc("POST /runs", s.handleSubmitRun)
	mux.HandleFunc("GET /runs/{id}", s.handleGetRun)
	mux.HandleFunc("GET /runs/{id}/events", s.handleRunEvents)
	mux.HandleFunc("POST /runs/{id}/cancel", s.handleCancelRun)

	s.httpSrv = &http.Server{
		Handler:      csrfProtect(mux),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // SSE requires no write timeout
		IdleTimeout:  120 * time.Second,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}
	return s
}

// Handler returns the server's HTTP handler.
func (s *Server) Handler() http.Handler { return s.httpSrv.Handler }

// ListenAndServe serves until ctx is done, then shuts down.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	stop := context.AfterFunc(ctx, func() {
		s.logger.Info("shutting down", zap.Error(context.Cause(ctx)))
		s.Shutdown()
	})
	defer stop()

	s.logger.Info("listening", zap.String("addr", ln.Addr().String()))
	err := s.httpSrv.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// csrfProtect rejects cross-origin POSTs from anything but localhost origins.
// CLI callers omit Origin and pass through.
func csrfProtect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			if origin := r.Header.Get("Origin"); origin != "" {
				u, err := url.Parse(origin)
				if err != nil {
					writeError(w, http.StatusForbidden, "invalid Origin header")
					return
				}
				host := u.Hostname()
				if host != "localhost" && host != "127.0.0.1" && host != "::1" {
					writeError(w, http.StatusForbidden, "cross-origin request blocked")
					return
				}
			}
		}
		next.ServeHTTP(w, r)
	})
}

// Shutdown cancels running pipelines, drains connections, and waits for the
// run goroutines to exit.
func (s *Server) Shutdown() {
	s.registry.CancelAll("server shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	_ = s.httpSrv.Shutdown(shutdownCtx)

	s.cancel()
	s.runs.Wait()
}

func (s *Server) router(name string) (*route.Dispatcher, error) {
	if name == "" {
		name = s.config.DefaultRouter
	}
	if s.config.Routers == nil {
		return nil, fmt.Errorf("routing is not configured")
	}
	return s.config.Routers(name)
}

func (s *Server) pipeline(name string) (*pipeline.Pipeline, error) {
	if name == "" {
		name = s.config.DefaultPipeline
	}
	if s.config.Pipelines == nil {
		return nil, fmt.Errorf("pipelines are not configured")
	}
	return s.config.Pipelines(name)
}
