package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/bjtj/bjtj/internal/auth"
	"github.com/bjtj/bjtj/internal/game"
	"github.com/bjtj/bjtj/internal/service"
	"github.com/bjtj/bjtj/internal/store"
)

// Server exposes the table over HTTP: one GET endpoint per action plus the
// autograph, refresh and cashout entry points, and a WebSocket view stream.
type Server struct {
	addr    string
	service *service.Service
	hub     *Hub
	logger  *log.Logger
	http    *http.Server
}

// NewServer creates the HTTP server around a game service.
func NewServer(addr string, svc *service.Service, hub *Hub, logger *log.Logger) *Server {
	s := &Server{
		addr:    addr,
		service: svc,
		hub:     hub,
		logger:  logger.WithPrefix("server"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/autograph", s.handleAutograph)
	mux.HandleFunc("/api/refresh", s.handleAction(game.ActionSync))
	mux.HandleFunc("/api/deal", s.handleAction(game.ActionDeal))
	mux.HandleFunc("/api/hit", s.handleAction(game.ActionHit))
	mux.HandleFunc("/api/stand", s.handleAction(game.ActionStand))
	mux.HandleFunc("/api/double", s.handleAction(game.ActionDouble))
	mux.HandleFunc("/api/split", s.handleAction(game.ActionSplit))
	mux.HandleFunc("/api/cashout", s.handleCashout)
	mux.HandleFunc("/health", s.handleHealth)
	if hub != nil {
		mux.Handle("/ws", hub)
	}

	s.http = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Run serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("Starting HTTP server", "addr", s.addr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if s.hub != nil {
		g.Go(func() error {
			if err := s.hub.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.http.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// Handler returns the root handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

type errorResponse struct {
	Error string `json:"error"`
}

// statusFor maps the failure taxonomy to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, auth.ErrInvalidAutograph):
		return http.StatusUnauthorized
	case errors.Is(err, game.ErrInvalidAction),
		errors.Is(err, game.ErrInsufficientChips):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, auth.ErrUnavailable),
		errors.Is(err, service.ErrSettlementFailure):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeView(w http.ResponseWriter, view *game.PublicView) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(view); err != nil {
		s.logger.Error("Failed to write response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("Request failed", "error", err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: err.Error()})
}

// playerID extracts and validates the id query parameter.
func playerID(r *http.Request) (string, error) {
	id := r.URL.Query().Get("id")
	if !auth.ValidPlayerID(id) {
		return "", fmt.Errorf("invalid player id: %w", auth.ErrInvalidAutograph)
	}
	return id, nil
}

// handleAutograph onboards a player: GET /api/autograph?id=0x...&ag=0x...
func (s *Server) handleAutograph(w http.ResponseWriter, r *http.Request) {
	id, err := playerID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	view, err := s.service.Autograph(r.Context(), id, r.URL.Query().Get("ag"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeView(w, view)
}

// handleAction serves GET /api/{deal,hit,stand,double,split,refresh}?id=0x...
func (s *Server) handleAction(act game.Action) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := playerID(r)
		if err != nil {
			s.writeError(w, err)
			return
		}

		var args game.ActionArgs
		if act == game.ActionDeal {
			if raw := r.URL.Query().Get("bet"); raw != "" {
				bet, err := strconv.Atoi(raw)
				if err != nil {
					s.writeError(w, fmt.Errorf("bad bet %q: %w", raw, game.ErrInvalidAction))
					return
				}
				args.Bet = bet
			}
		}

		view, err := s.service.Apply(r.Context(), id, act, args)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeView(w, view)
	}
}

// handleCashout serves GET /api/cashout?id=0x...
func (s *Server) handleCashout(w http.ResponseWriter, r *http.Request) {
	id, err := playerID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	view, err := s.service.Cashout(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeView(w, view)
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "OK")
}
