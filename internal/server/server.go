/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/friendsincode/iod_scheduler/internal/logbuffer"
	"github.com/friendsincode/iod_scheduler/internal/telemetry"
)

// Server is the operations listener that lives for the duration of a run.
type Server struct {
	logger     zerolog.Logger
	router     chi.Router
	httpServer *http.Server
	tracker    *Tracker
	closers    []func() error
}

// New constructs the server. tracker may be nil, in which case /actions is
// not served.
func New(bind string, tracker *Tracker, logger zerolog.Logger) *Server {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(securityHeadersMiddleware)
	router.Use(telemetry.MetricsMiddleware)
	router.Use(middleware.Timeout(10 * time.Second))

	srv := &Server{
		logger:  logger.With().Str("component", "server").Logger(),
		router:  router,
		tracker: tracker,
	}
	srv.configureRoutes()

	srv.httpServer = &http.Server{
		Addr:              bind,
		Handler:           srv.router,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on the bind address and serves in the background. It returns
// once the listener is open, so a bad address fails the caller immediately.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.httpServer.Addr, err)
	}
	s.logger.Info().Str("addr", ln.Addr().String()).Msg("metrics listener started")

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("metrics listener failed")
		}
	}()
	return nil
}

// Shutdown stops the listener and releases registered resources in reverse order.
func (s *Server) Shutdown(ctx context.Context) error {
	firstErr := s.httpServer.Shutdown(ctx)
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// ServeLogs exposes the recent run log at /logs. Call before Start.
func (s *Server) ServeLogs(buf *logbuffer.Buffer) {
	s.router.Get("/logs", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		params := logbuffer.QueryParams{
			Level:       q.Get("level"),
			Component:   q.Get("component"),
			ResourceKey: q.Get("resource_key"),
			Search:      q.Get("search"),
			Descending:  q.Get("order") != "asc",
			Limit:       200,
		}
		if v := q.Get("limit"); v != "" {
			limit, err := strconv.Atoi(v)
			if err != nil || limit < 0 {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a non-negative integer"})
				return
			}
			params.Limit = limit
		}
		if v := q.Get("since"); v != "" {
			since, err := time.Parse(time.RFC3339, v)
			if err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "since must be RFC3339"})
				return
			}
			params.Since = since
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"entries": buf.Query(params),
			"stats":   buf.Stats(),
		})
	})
}

// DeferClose registers a cleanup hook.
func (s *Server) DeferClose(fn func() error) {
	s.closers = append(s.closers, fn)
}

func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")

		// Only advertise HSTS for requests served over HTTPS.
		if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
			w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) configureRoutes() {
	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		response := map[string]any{"status": "ok"}
		if s.tracker != nil {
			st := s.tracker.Snapshot()
			response["run_id"] = st.RunID
			response["actions"] = st.Total
			response["finished"] = st.Finished
		}
		writeJSON(w, http.StatusOK, response)
	})

	s.router.Handle("/metrics", telemetry.Handler())

	if s.tracker != nil {
		s.router.Get("/actions", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, s.tracker.Snapshot())
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
