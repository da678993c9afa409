// Copyright (C) 2025-2026 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

// Package healthcheck serves liveness and readiness probes for the
// long-running filingrunner processes. Readiness is the conjunction of a
// base flag and any registered dependency checks.
package healthcheck

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/pprof"
	"os"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

const DefaultPort = 8090

type Status int32

const (
	StatusStarting Status = iota
	StatusHealthy
	StatusUnhealthy
)

func (s Status) String() string {
	switch s {
	case StatusStarting:
		return "starting"
	case StatusHealthy:
		return "healthy"
	case StatusUnhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

// Check reports whether one dependency is usable. It must honour ctx.
type Check func(ctx context.Context) error

type Config struct {
	Port int
	// Pprof mounts net/http/pprof under /debug/pprof/.
	Pprof        bool
	CheckTimeout time.Duration
}

// GetConfigFromEnv reads HEALTH_CHECK_PORT and PPROF_ENABLED.
func GetConfigFromEnv() Config {
	cfg := Config{Port: DefaultPort, CheckTimeout: 2 * time.Second}
	if s := os.Getenv("HEALTH_CHECK_PORT"); s != "" {
		if p, err := strconv.Atoi(s); err == nil && p > 0 && p < 65536 {
			cfg.Port = p
		}
	}
	if b, err := strconv.ParseBool(os.Getenv("PPROF_ENABLED")); err == nil {
		cfg.Pprof = b
	}
	return cfg
}

type Response struct {
	Healthy bool              `json:"healthy"`
	Status  string            `json:"status"`
	Checks  map[string]string `json:"checks,omitempty"`
}

type Server struct {
	cfg    Config
	status atomic.Int32
	ready  atomic.Bool

	mu     sync.RWMutex
	checks map[string]Check

	server *http.Server
}

func NewServer(cfg Config) *Server {
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.CheckTimeout <= 0 {
		cfg.CheckTimeout = 2 * time.Second
	}
	return &Server{cfg: cfg, checks: map[string]Check{}}
}

func (s *Server) SetStatus(status Status) {
	s.status.Store(int32(status))
	slog.Debug("Health check status updated", slog.String("status", status.String()))
}

func (s *Server) GetStatus() Status {
	return Status(s.status.Load())
}

func (s *Server) SetReady(ready bool) {
	s.ready.Store(ready)
	slog.Debug("Ready status updated", slog.Bool("ready", ready))
}

// Register adds a named readiness check, replacing any check of that name.
func (s *Server) Register(name string, c Check) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checks[name] = c
}

// Ready runs every registered check and returns the per-check result. A
// check that passes maps to "ok".
func (s *Server) Ready(ctx context.Context) (bool, map[string]string) {
	s.mu.RLock()
	names := make([]string, 0, len(s.checks))
	for n := range s.checks {
		names = append(names, n)
	}
	checks := make(map[string]Check, len(s.checks))
	for n, c := range s.checks {
		checks[n] = c
	}
	s.mu.RUnlock()
	sort.Strings(names)

	ok := s.ready.Load()
	results := make(map[string]string, len(names))
	for _, n := range names {
		cctx, cancel := context.WithTimeout(ctx, s.cfg.CheckTimeout)
		err := checks[n](cctx)
		cancel()
		if err != nil {
			ok = false
			results[n] = err.Error()
			continue
		}
		results[n] = "ok"
	}
	return ok, results
}

// Handler returns the probe mux.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		st := s.GetStatus()
		writeResponse(w, Response{Healthy: st == StatusHealthy, Status: st.String()})
	})
	mux.HandleFunc("/livez", func(w http.ResponseWriter, _ *http.Request) {
		st := s.GetStatus()
		writeResponse(w, Response{Healthy: st != StatusUnhealthy, Status: st.String()})
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ok, checks := s.Ready(r.Context())
		writeResponse(w, Response{Healthy: ok, Status: s.GetStatus().String(), Checks: checks})
	})
	if s.cfg.Pprof {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}
	return mux
}

// Start serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.SetStatus(StatusStarting)
	slog.Info("Starting health check server", slog.Int("port", s.cfg.Port), slog.Bool("pprof", s.cfg.Pprof))

	errc := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errc:
		return fmt.Errorf("health check server: %w", err)
	}
	return s.Stop()
}

func (s *Server) Stop() error {
	if s.server == nil {
		return nil
	}
	slog.Info("Stopping health check server")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func writeResponse(w http.ResponseWriter, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	if resp.Healthy {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("Failed to encode health check response", slog.Any("error", err))
	}
}
