// Package api is the read-only HTTP surface: profiles, inventories and the
// leaderboard. All game mutation happens through chat.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"barkeep/internal/config"
	"barkeep/internal/economy"
)

type Server struct {
	cfg   config.Config
	log   *slog.Logger
	repos economy.Repos
	mux   *chi.Mux
}

func New(cfg config.Config, logger *slog.Logger, repos economy.Repos) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{cfg: cfg, log: logger, repos: repos, mux: chi.NewRouter()}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler { return s.mux }

func (s *Server) routes() {
	r := s.mux
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Get("/users/{name}", s.handleUser)
		r.Get("/users/{name}/inventory", s.handleInventory)
		r.Get("/leaderboard", s.handleLeaderboard)
		r.Get("/treasures", s.handleTreasures)
	})
}

type userView struct {
	Name    string   `json:"name"`
	Aliases []string `json:"aliases,omitempty"`
	Score   int      `json:"score"`
	Filters []string `json:"filters,omitempty"`
	Joined  string   `json:"joined,omitempty"`
}

type holdingView struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
}

type leaderboardRow struct {
	Rank  int    `json:"rank"`
	Name  string `json:"name"`
	Score int    `json:"score"`
}

type treasureView struct {
	Name  string `json:"name"`
	Owner string `json:"owner"`
}

func (s *Server) lookupActor(r *http.Request) (economy.Actor, error) {
	name := strings.ToLower(strings.TrimSpace(chi.URLParam(r, "name")))
	actor, err := s.repos.Actors.ByName(r.Context(), name)
	if errors.Is(err, economy.ErrNotFound) {
		return s.repos.Actors.ByAlias(r.Context(), name)
	}
	return actor, err
}

func (s *Server) handleUser(w http.ResponseWriter, r *http.Request) {
	actor, err := s.lookupActor(r)
	if errors.Is(err, economy.ErrNotFound) {
		writeError(w, http.StatusNotFound, "no such user")
		return
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	view := userView{
		Name:    actor.Name,
		Aliases: actor.Aliases,
		Score:   actor.Score,
		Filters: actor.Filters,
	}
	if !actor.CreatedAt.IsZero() {
		view.Joined = actor.CreatedAt.Format("January 2, 2006")
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleInventory(w http.ResponseWriter, r *http.Request) {
	actor, err := s.lookupActor(r)
	if errors.Is(err, economy.ErrNotFound) {
		writeError(w, http.StatusNotFound, "no such user")
		return
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}

	out := make([]holdingView, 0)
	treasures, err := s.repos.Treasures.ByOwner(r.Context(), actor.ID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	for _, t := range treasures {
		out = append(out, holdingView{Name: t.Name, Kind: "treasure"})
	}
	items, err := s.repos.Items.ByOwner(r.Context(), actor.ID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	for _, it := range items {
		out = append(out, holdingView{Name: it.Name, Kind: "item"})
	}
	bevs, err := s.repos.Beverages.ByOwner(r.Context(), actor.ID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	for _, b := range bevs {
		out = append(out, holdingView{Name: b.Name, Kind: "beverage"})
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": actor.Name, "holdings": out})
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 100 {
			writeError(w, http.StatusBadRequest, "limit must be 1-100")
			return
		}
		limit = n
	}
	actors, err := s.repos.Actors.TopByScore(r.Context(), limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	rows := make([]leaderboardRow, 0, len(actors))
	for i, a := range actors {
		rows = append(rows, leaderboardRow{Rank: i + 1, Name: a.Name, Score: a.Score})
	}
	writeJSON(w, http.StatusOK, map[string]any{"leaderboard": rows})
}

func (s *Server) handleTreasures(w http.ResponseWriter, r *http.Request) {
	treasures, err := s.repos.Treasures.List(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := make([]treasureView, 0, len(treasures))
	for _, t := range treasures {
		owner := "no one"
		if a, err := s.repos.Actors.ByID(r.Context(), t.OwnerID); err == nil {
			owner = a.Name
		}
		out = append(out, treasureView{Name: t.Name, Owner: owner})
	}
	writeJSON(w, http.StatusOK, map[string]any{"treasures": out})
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	s.log.Error("request failed", "path", r.URL.Path, "err", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg})
}
