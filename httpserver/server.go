package httpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/flashbots/go-utils/httplogger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/atomic"

	"github.com/divs-identity/divs-agent/api"
	"github.com/divs-identity/divs-agent/metrics"
)

// RouteRegistrar is implemented by the API handlers.
type RouteRegistrar interface {
	RegisterRoutes(r chi.Router)
}

// ReadinessCheck reports why the server should not receive traffic, or nil.
type ReadinessCheck func() error

type Server struct {
	cfg     *api.HTTPServerConfig
	isReady atomic.Bool
	log     *slog.Logger

	srv        *http.Server
	metricsSrv *metrics.MetricsServer

	checksMu sync.RWMutex
	checks   map[string]ReadinessCheck
}

// New builds a server exposing handlers next to the health endpoints.
// metricsSrv may be nil.
func New(cfg *api.HTTPServerConfig, metricsSrv *metrics.MetricsServer, handlers ...RouteRegistrar) (*Server, error) {
	if cfg.Log == nil {
		return nil, errors.New("no logger configured")
	}

	srv := &Server{
		cfg:        cfg,
		log:        cfg.Log,
		metricsSrv: metricsSrv,
		checks:     make(map[string]ReadinessCheck),
	}
	srv.isReady.Store(true)

	srv.srv = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      srv.getRouter(handlers),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return srv, nil
}

// AddReadinessCheck makes /readyz fail while check returns an error.
func (srv *Server) AddReadinessCheck(name string, check ReadinessCheck) {
	srv.checksMu.Lock()
	defer srv.checksMu.Unlock()
	srv.checks[name] = check
}

// Handler returns the root HTTP handler.
func (srv *Server) Handler() http.Handler {
	return srv.srv.Handler
}

func (srv *Server) getRouter(handlers []RouteRegistrar) http.Handler {
	mux := chi.NewRouter()
	mux.Use(middleware.Recoverer)

	mux.Group(func(r chi.Router) {
		r.Use(srv.httpLogger)
		for _, h := range handlers {
			h.RegisterRoutes(r)
		}
	})

	// Health and diagnostic endpoints
	mux.Get("/livez", srv.handleLivenessCheck)
	mux.Get("/readyz", srv.handleReadinessCheck)
	mux.With(srv.httpLogger).Get("/drain", srv.handleDrain)
	mux.With(srv.httpLogger).Get("/undrain", srv.handleUndrain)

	if srv.cfg.EnablePprof {
		srv.log.Info("pprof API enabled")
		mux.Mount("/debug", middleware.Profiler())
	}
	return mux
}

func (srv *Server) httpLogger(next http.Handler) http.Handler {
	return httplogger.LoggingMiddlewareSlog(srv.log, next)
}

func (srv *Server) handleLivenessCheck(w http.ResponseWriter, r *http.Request) {
	api.WriteJSON(w, srv.log, http.StatusOK, api.StatusResponse{Status: "alive"})
}

// notReadyReason returns why the server is not ready, or "".
func (srv *Server) notReadyReason() string {
	if !srv.isReady.Load() {
		return "draining"
	}

	srv.checksMu.RLock()
	defer srv.checksMu.RUnlock()
	for name, check := range srv.checks {
		if err := check(); err != nil {
			return fmt.Sprintf("%s: %v", name, err)
		}
	}
	return ""
}

func (srv *Server) handleReadinessCheck(w http.ResponseWriter, r *http.Request) {
	if reason := srv.notReadyReason(); reason != "" {
		api.WriteJSON(w, srv.log, http.StatusServiceUnavailable, api.StatusResponse{Status: "not ready", Reason: reason})
		return
	}
	api.WriteJSON(w, srv.log, http.StatusOK, api.StatusResponse{Status: "ready"})
}

func (srv *Server) handleDrain(w http.ResponseWriter, r *http.Request) {
	if !srv.isReady.Swap(false) {
		api.WriteJSON(w, srv.log, http.StatusOK, api.StatusResponse{Status: "already draining"})
		return
	}

	srv.log.Info("Server marked as not ready")

	go func() {
		// Wait for the drain duration to allow load balancers to detect the change
		time.Sleep(srv.cfg.DrainDuration)
		srv.log.Info("Drain period completed")
	}()

	api.WriteJSON(w, srv.log, http.StatusOK, api.StatusResponse{Status: "draining"})
}

func (srv *Server) handleUndrain(w http.ResponseWriter, r *http.Request) {
	if srv.isReady.Swap(true) {
		api.WriteJSON(w, srv.log, http.StatusOK, api.StatusResponse{Status: "already ready"})
		return
	}

	srv.log.Info("Server marked as ready")
	api.WriteJSON(w, srv.log, http.StatusOK, api.StatusResponse{Status: "ready"})
}

func (srv *Server) RunInBackground() {
	// metrics
	if srv.cfg.MetricsAddr != "" && srv.metricsSrv != nil {
		go func() {
			srv.log.With("metricsAddress", srv.cfg.MetricsAddr).Info("Starting metrics server")
			err := srv.metricsSrv.ListenAndServe()
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				srv.log.Error("HTTP server failed", "err", err)
			}
		}()
	}

	// api
	go func() {
		srv.log.Info("Starting HTTP server", "listenAddress", srv.cfg.ListenAddr)
		if err := srv.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			srv.log.Error("HTTP server failed", "err", err)
		}
	}()
}

func (srv *Server) Shutdown() {
	// api
	ctx, cancel := context.WithTimeout(context.Background(), srv.cfg.GracefulShutdownDuration)
	defer cancel()
	if err := srv.srv.Shutdown(ctx); err != nil {
		srv.log.Error("Graceful HTTP server shutdown failed", "err", err)
	} else {
		srv.log.Info("HTTP server gracefully stopped")
	}

	// metrics
	if len(srv.cfg.MetricsAddr) != 0 && srv.metricsSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), srv.cfg.GracefulShutdownDuration)
		defer cancel()

		if err := srv.metricsSrv.Shutdown(ctx); err != nil {
			srv.log.Error("Graceful metrics server shutdown failed", "err", err)
		} else {
			srv.log.Info("Metrics server gracefully stopped")
		}
	}
}
