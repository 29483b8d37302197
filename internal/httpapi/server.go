// Package httpapi provides the HTTP surface of dlnad: UPnP descriptors,
// the SOAP control endpoint, ranged media streaming, and the admin API.
package httpapi

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/jmylchreest/dlnad/internal/config"
	"github.com/jmylchreest/dlnad/internal/version"
)

// Server wraps the chi router and http.Server, tracking the live
// connection count for the update-id poller.
type Server struct {
	cfg        config.ServerConfig
	router     *chi.Mux
	api        huma.API
	httpServer *http.Server
	logger     *slog.Logger
	conns      atomic.Int64
}

// NewServer creates the HTTP server with its middleware stack.
func NewServer(cfg config.ServerConfig, logger *slog.Logger) *Server {
	router := chi.NewRouter()

	router.Use(chimiddleware.RealIP)
	router.Use(RequestID)
	router.Use(Logging(logger))
	router.Use(Recovery(logger))
	if cfg.MaxConnections > 0 {
		router.Use(chimiddleware.Throttle(cfg.MaxConnections))
	}

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		htmlError(w, http.StatusNotFound)
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		htmlError(w, http.StatusNotImplemented)
	})

	humaConfig := huma.DefaultConfig("dlnad admin API", version.Version)
	humaConfig.Info.Description = "DLNA media server management API"
	api := humachi.New(router, humaConfig)

	return &Server{
		cfg:    cfg,
		router: router,
		api:    api,
		logger: logger,
	}
}

// Router returns the chi router for registering additional routes.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// API returns the huma API instance for registering operations.
func (s *Server) API() huma.API {
	return s.api
}

// Connections returns the number of open client connections.
func (s *Server) Connections() int64 {
	return s.conns.Load()
}

// ListenAndServe runs the server until the context is cancelled, then
// shuts it down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:           s.cfg.Address(),
		Handler:        s.router,
		ReadTimeout:    s.cfg.ReadTimeout,
		WriteTimeout:   s.cfg.WriteTimeout,
		MaxHeaderBytes: s.cfg.MaxHeaderBytes,
		ConnState: func(conn net.Conn, state http.ConnState) {
			switch state {
			case http.StateNew:
				s.conns.Add(1)
			case http.StateClosed, http.StateHijacked:
				s.conns.Add(-1)
			}
		},
	}

	s.logger.Info("starting http server", slog.String("address", s.cfg.Address()))

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("http server: %w", err)
			return
		}
		errChan <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down http server: %w", err)
		}
		s.logger.Info("http server stopped")
		return nil
	case err := <-errChan:
		return err
	}
}
