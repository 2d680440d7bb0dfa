// SPDX-License-Identifier: AGPL-3.0
// Copyright 2025 Kadir Pekel
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0) (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.gnu.org/licenses/agpl-3.0.en.html
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package server exposes scout over HTTP.
//
// Routes:
//
//	GET    /                 204, for liveness probes
//	POST   /ask              {question, session_id?} -> answer
//	GET    /health           knowledge index readiness
//	DELETE /sessions/{id}    clear a conversation
//	GET    /metrics          Prometheus, when metrics are enabled
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kadirpekel/scout/pkg/config"
	"github.com/kadirpekel/scout/pkg/observability"
	"github.com/kadirpekel/scout/pkg/ratelimit"
	"github.com/kadirpekel/scout/pkg/runtime"
)

// maxBodyBytes bounds the /ask request body.
const maxBodyBytes = 1 << 20

// Service answers questions. *runtime.Runtime implements it.
type Service interface {
	Ask(ctx context.Context, question, sessionID string) (runtime.Answer, error)
	ClearSession(ctx context.Context, id string) error
	Health(ctx context.Context) error
}

// Server is the HTTP front end of a Service.
type Server struct {
	cfg     config.ServerConfig
	service Service

	metrics        *observability.Metrics
	metricsPath    string
	metricsHandler http.Handler
	limiter        *ratelimit.Limiter

	server *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithMetrics records request metrics and mounts handler at path. A nil
// handler leaves the metrics route unmounted.
func WithMetrics(m *observability.Metrics, path string, handler http.Handler) Option {
	return func(s *Server) {
		s.metrics = m
		s.metricsPath = path
		s.metricsHandler = handler
	}
}

// WithLimiter throttles /ask per client address, replacing the limiter
// built from ServerConfig.RateLimit.
func WithLimiter(l *ratelimit.Limiter) Option {
	return func(s *Server) { s.limiter = l }
}

// New creates a server. Call Run to start listening.
func New(cfg config.ServerConfig, service Service, opts ...Option) (*Server, error) {
	if service == nil {
		return nil, fmt.Errorf("service is required")
	}
	s := &Server{cfg: cfg, service: service}

	if cfg.RateLimit > 0 {
		limiter, err := ratelimit.New(ratelimit.NewMemoryStore(), ratelimit.Rule{
			Window: ratelimit.WindowMinute,
			Limit:  int64(cfg.RateLimit),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create rate limiter: %w", err)
		}
		s.limiter = limiter
	}

	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Handler builds the routed handler with its middleware chain.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.HTTPMiddleware(s.metrics))
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors(s.cfg.CORSOrigins))

	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	r.With(ratelimit.Middleware(s.limiter, ratelimit.ClientIP)).Post("/ask", s.handleAsk)
	r.Get("/health", s.handleHealth)
	r.Delete("/sessions/{id}", s.handleClearSession)

	if s.metricsHandler != nil {
		r.Handle(s.metricsPath, s.metricsHandler)
		slog.Info("Metrics endpoint enabled", "path", s.metricsPath)
	}
	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         s.cfg.Address(),
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	if s.limiter != nil {
		go s.sweep(ctx)
	}

	slog.Info("HTTP server starting", "address", s.cfg.Address())

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	}
}

// Shutdown stops accepting requests and waits up to five seconds for
// running turns to finish.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	slog.Info("HTTP server shutting down")
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP shutdown error: %w", err)
	}
	return nil
}

func (s *Server) sweep(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.limiter.Sweep(ctx); err != nil {
				slog.Warn("Rate limit sweep failed", "error", err)
			}
		}
	}
}
