// Package server exposes the sync core over HTTP: cached resource
// reads, mutation endpoints, per-hub and per-terminal KPI lookups, and
// a websocket that rebroadcasts push events.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/upstreamlabs/fieldsync/internal/cache"
	"github.com/upstreamlabs/fieldsync/internal/events"
	"github.com/upstreamlabs/fieldsync/internal/hierarchy"
	"github.com/upstreamlabs/fieldsync/internal/model"
	"github.com/upstreamlabs/fieldsync/internal/mutation"
	"github.com/upstreamlabs/fieldsync/internal/transport"
)

type ServerConfig struct {
	Logger    *slog.Logger
	Cache     *cache.Coordinator
	Mutations *mutation.Coordinator
	Notifier  *events.Notifier
	Hierarchy *hierarchy.Store
}

func (c *ServerConfig) Validate() error {
	if c.Logger == nil {
		return errors.New("logger is required")
	}
	if c.Cache == nil {
		return errors.New("cache coordinator is required")
	}
	if c.Mutations == nil {
		return errors.New("mutation coordinator is required")
	}
	if c.Notifier == nil {
		return errors.New("event notifier is required")
	}
	if c.Hierarchy == nil {
		return errors.New("hierarchy store is required")
	}
	return nil
}

type Server struct {
	log *slog.Logger
	cfg *ServerConfig
	Mux *http.ServeMux
}

func NewServer(cfg *ServerConfig) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Server{
		log: cfg.Logger,
		cfg: cfg,
		Mux: http.NewServeMux(),
	}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.Mux.HandleFunc("GET /api/nodes", s.handleResource(transport.KindNodes))
	s.Mux.HandleFunc("GET /api/assets", s.handleResource(transport.KindAssets))
	s.Mux.HandleFunc("GET /api/summary", s.handleResource(transport.KindSummary))
	s.Mux.HandleFunc("GET /api/gap-drivers", s.handleResource(transport.KindGapDrivers))
	s.Mux.HandleFunc("GET /api/optimisations", s.handleResource(transport.KindOptimisations))
	s.Mux.HandleFunc("GET /api/alerts", s.handleResource(transport.KindAlerts))
	s.Mux.HandleFunc("GET /api/hubs/{id}/performance", s.handleHubPerformance)
	s.Mux.HandleFunc("GET /api/terminals/{id}/operations", s.handleTerminalOperations)
	s.Mux.HandleFunc("POST /api/optimisations/{id}/{action}", s.handleMutation(transport.KindOptimisations))
	s.Mux.HandleFunc("POST /api/alerts/{id}/{action}", s.handleMutation(transport.KindAlerts))
	s.Mux.HandleFunc("GET /api/events", s.handleEvents)
	s.Mux.HandleFunc("GET /health", s.handleHealth)
}

// Serve runs the HTTP server on the listener until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	srv := &http.Server{
		Handler: s.Mux,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(listener)
	}()

	s.log.Info("api server started", "address", listener.Addr())

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Warn("api server shutdown error", "error", err)
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// handleResource serves a cached collection read. Unknown query
// parameters are rejected so typos never create phantom cache entries.
func (s *Server) handleResource(kind transport.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, err := cache.NewKey(kind, queryMap(r))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		value, err := s.cfg.Cache.Read(r.Context(), key)
		if err != nil {
			s.writeReadError(w, key, err)
			return
		}
		s.writeJSON(w, value)
	}
}

func (s *Server) handleHubPerformance(w http.ResponseWriter, r *http.Request) {
	unitID := r.PathValue("id")

	// Hub lookups come straight from the hierarchy store; the nodes
	// feed keeps it current.
	for _, asset := range s.cfg.Hierarchy.Assets() {
		if unit, ok := s.cfg.Hierarchy.Unit(asset.ID, unitID); ok {
			s.writeJSON(w, struct {
				Asset model.AssetID        `json:"asset"`
				Unit  model.ProductionUnit `json:"unit"`
			}{Asset: asset.ID, Unit: unit})
			return
		}
	}
	http.Error(w, fmt.Sprintf("unknown hub %q", unitID), http.StatusNotFound)
}

func (s *Server) handleTerminalOperations(w http.ResponseWriter, r *http.Request) {
	key, err := cache.NewKey(transport.KindTerminalOperations, map[string]string{
		"terminalId": r.PathValue("id"),
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	value, err := s.cfg.Cache.Read(r.Context(), key)
	if err != nil {
		s.writeReadError(w, key, err)
		return
	}
	s.writeJSON(w, value)
}

type mutationRequest struct {
	User string `json:"user"`
}

func (s *Server) handleMutation(kind transport.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		action := model.Action(r.PathValue("action"))

		var req mutationRequest
		if r.Body != nil && r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
				return
			}
		}
		if req.User == "" {
			req.User = "anonymous"
		}

		updated, err := s.cfg.Mutations.Do(r.Context(), kind, id, action, req.User)
		if err != nil {
			switch {
			case errors.Is(err, transport.ErrMutationConflict):
				http.Error(w, err.Error(), http.StatusConflict)
			default:
				s.log.Error("mutation failed", "kind", kind, "id", id, "action", action, "error", err)
				http.Error(w, err.Error(), http.StatusBadGateway)
			}
			return
		}
		s.writeJSON(w, updated)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) writeJSON(w http.ResponseWriter, value any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(value); err != nil {
		s.log.Error("failed to encode response", "error", err)
	}
}

func (s *Server) writeReadError(w http.ResponseWriter, key cache.Key, err error) {
	var clientErr *transport.ClientError
	if errors.As(err, &clientErr) && clientErr.Status > 0 {
		http.Error(w, clientErr.Error(), clientErr.Status)
		return
	}
	s.log.Error("read failed", "key", key.String(), "error", err)
	http.Error(w, err.Error(), http.StatusBadGateway)
}

func queryMap(r *http.Request) map[string]string {
	q := r.URL.Query()
	out := make(map[string]string, len(q))
	for name := range q {
		out[name] = q.Get(name)
	}
	return out
}
