// Package web exposes the plugin over a loopback HTTP socket for gateways
// that call hooks via HTTP instead of stdio, plus a small operations API.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/dubuqingfeng/siyuan-openclaw-plugin/internal/hooks"
	"github.com/dubuqingfeng/siyuan-openclaw-plugin/internal/plugin"
	"github.com/dubuqingfeng/siyuan-openclaw-plugin/internal/recall"
)

const shutdownGrace = 5 * time.Second

// Server holds the handler dependencies.
type Server struct {
	Plugin  *plugin.Plugin
	Version string
	Log     zerolog.Logger
}

// Routes builds the router. Hook endpoints mirror the stdio hook contract
// one-to-one; /api endpoints serve operations and debugging.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)

	r.Route("/hooks", func(r chi.Router) {
		r.Post("/before-agent-start", s.handleBeforeAgentStart)
		r.Post("/agent-end", s.handleEvent("agent_end"))
		r.Post("/new-session", s.handleEvent("command:new"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/stats", s.handleStats)
		r.Get("/search", s.handleSearch)
		r.Post("/sync", s.handleSync)
	})

	return r
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// parseLimit parses a limit query param with a default and a ceiling.
func parseLimit(q string, def, max int) int {
	if q == "" {
		return def
	}
	n, err := strconv.Atoi(q)
	if err != nil || n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	h := s.Plugin.Health(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.Version,
		"remote":  h.Remote,
		"index":   h.Index,
		"init":    h.InitDone,
		"syncing": h.Syncing,
	})
}

// handleBeforeAgentStart is the HTTP form of the recall hook. A bad body
// is the caller's error; everything past decoding degrades like stdio.
func (s *Server) handleBeforeAgentStart(w http.ResponseWriter, r *http.Request) {
	var ev hooks.Event
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		writeError(w, http.StatusBadRequest, "invalid event body: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, hooks.BeforeAgentStart(r.Context(), s.Plugin, ev))
}

// handleEvent serves the no-op hooks; the body is accepted and ignored.
func (s *Server) handleEvent(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var ev hooks.Event
		if r.Body != nil {
			json.NewDecoder(r.Body).Decode(&ev)
		}
		writeJSON(w, http.StatusOK, hooks.Dispatch(r.Context(), s.Plugin, name, ev))
	}
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	report, err := s.Plugin.Status()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, "missing q parameter")
		return
	}
	limit := parseLimit(r.URL.Query().Get("limit"), 20, 100)

	blocks, err := s.Plugin.Engine().SearchLocal(query, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if blocks == nil {
		blocks = []recall.Block{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"query": query, "blocks": blocks})
}

// handleSync triggers one sync run. A run already in flight is a conflict,
// not a queue.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	full := false
	if v := r.URL.Query().Get("full"); v == "1" || v == "true" {
		full = true
	}

	stats, err := s.Plugin.TrySync(r.Context(), full)
	switch {
	case errors.Is(err, plugin.ErrSyncRunning):
		writeError(w, http.StatusConflict, "sync already running")
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeJSON(w, http.StatusOK, stats)
	}
}

// Serve runs the HTTP server on the configured loopback address until ctx
// is done, then shuts down within a short grace period.
func Serve(ctx context.Context, p *plugin.Plugin, version string, logger zerolog.Logger) error {
	s := &Server{Plugin: p, Version: version, Log: logger.With().Str("component", "web").Logger()}

	srv := &http.Server{
		Addr:              p.Config().Web.Addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.Log.Info().Str("addr", srv.Addr).Msg("web server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("web server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := srv.Shutdown(shutCtx); err != nil {
			return srv.Close()
		}
		return nil
	})

	return g.Wait()
}
