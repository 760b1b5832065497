package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/byu0224-0001/fin-put-Backend-sub002/internal/config"
	"github.com/byu0224-0001/fin-put-Backend-sub002/internal/infrastructure"
	"github.com/byu0224-0001/fin-put-Backend-sub002/pkg/lifecycle"
)

// opsServer exposes health probes and metrics while the pipeline runs.
type opsServer struct {
	http            *http.Server
	logger          *slog.Logger
	shutdownTimeout time.Duration
}

func newOpsServer(cfg *config.OpsConfig, infra *infrastructure.Infrastructure) *opsServer {
	return &opsServer{
		http: &http.Server{
			Addr:              cfg.Addr(),
			Handler:           opsHandler(infra),
			ReadHeaderTimeout: cfg.ReadTimeoutDuration(),
			ReadTimeout:       cfg.ReadTimeoutDuration(),
		},
		logger:          infra.Logger.With("system", "ops"),
		shutdownTimeout: cfg.ShutdownTimeoutDuration(),
	}
}

func opsHandler(infra *infrastructure.Infrastructure) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, "ok")
	})

	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		if !infra.Lifecycle.Ready() {
			writeStatus(w, http.StatusServiceUnavailable, "not ready")
			return
		}
		if infra.Database != nil {
			if err := infra.Database.Ping(r.Context()); err != nil {
				writeStatus(w, http.StatusServiceUnavailable, "database unavailable")
				return
			}
		}
		writeStatus(w, http.StatusOK, "ready")
	})

	mux.Handle("GET /metrics", promhttp.HandlerFor(infra.Registry, promhttp.HandlerOpts{
		Registry: infra.Registry,
	}))

	return mux
}

func writeStatus(w http.ResponseWriter, code int, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"status": status})
}

func (s *opsServer) Start(lc *lifecycle.Coordinator) error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return err
	}

	go func() {
		s.logger.Info("ops listening", "addr", ln.Addr().String())
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("ops server error", "error", err)
		}
	}()

	lc.OnShutdown(func() {
		<-lc.Context().Done()
		s.logger.Info("shutting down ops server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()

		if err := s.http.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("ops server shutdown error", "error", err)
		} else {
			s.logger.Info("ops server shutdown complete")
		}
	})

	return nil
}
