// internal/httpserver/handlers.go
//
// Puzzle endpoint handlers. Each one decodes input, calls the coordinator
// and encodes the result; game rules live in the coordinator.

package httpserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/robalobadob/crossword/internal/coordinator"
)

// handleCreate creates a puzzle and returns its join code.
func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req coordinator.CreateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	code, err := s.svc.CreateSession(r.Context(), req)
	if err != nil {
		writeError(w, r, "create", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"code": code})
}

// joinReq is the payload for POST /api/puzzles/join.
type joinReq struct {
	Code        string `json:"code"`
	DisplayName string `json:"display_name"`
}

// sessionRes is returned by join and reconnect.
type sessionRes struct {
	*coordinator.Membership
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// handleJoin admits a new player and issues their identity.
func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	var req joinReq
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Code == "" || req.DisplayName == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "validation", Message: "please provide both puzzle code and your name"})
		return
	}
	m, err := s.svc.JoinSession(r.Context(), req.Code, req.DisplayName)
	if err != nil {
		writeError(w, r, "join", err)
		return
	}
	ttl := time.Duration(m.Duration)*time.Minute + joinGrace
	s.issue(w, r, http.StatusCreated, req.Code, m, ttl)
}

// reconnectReq is the payload for POST /api/puzzles/{code}/reconnect.
type reconnectReq struct {
	DisplayName string `json:"display_name"`
}

// handleReconnect reactivates a dropped player and issues a fresh identity.
func (s *Server) handleReconnect(w http.ResponseWriter, r *http.Request) {
	var req reconnectReq
	if !decodeJSON(w, r, &req) {
		return
	}
	code := chi.URLParam(r, "code")
	m, err := s.svc.Reconnect(r.Context(), code, req.DisplayName)
	if err != nil {
		writeError(w, r, "reconnect", err)
		return
	}
	s.issue(w, r, http.StatusOK, code, m, time.Duration(m.Duration)*time.Minute)
}

func (s *Server) issue(w http.ResponseWriter, r *http.Request, status int, code string, m *coordinator.Membership, ttl time.Duration) {
	tok, exp, err := s.ids.sign(m.PlayerID, code, ttl)
	if err != nil {
		writeError(w, r, "sign", err)
		return
	}
	s.ids.setCookie(w, tok, exp)
	writeJSON(w, status, sessionRes{Membership: m, Token: tok, ExpiresAt: exp})
}

// handleView returns the caller's view of the puzzle.
func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	me := playerFrom(r.Context())
	v, err := s.svc.GetSessionView(r.Context(), me.Code, me.PlayerID)
	if err != nil {
		writeError(w, r, "view", err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// handleStart starts the game on behalf of the creator.
func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	me := playerFrom(r.Context())
	res, err := s.svc.StartSession(r.Context(), me.Code, me.PlayerID)
	if err != nil {
		writeError(w, r, "start", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// submitReq is the payload for POST /api/puzzles/{code}/submit.
type submitReq struct {
	Word string `json:"word"`
}

// handleSubmit checks a guessed word.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitReq
	if !decodeJSON(w, r, &req) {
		return
	}
	me := playerFrom(r.Context())
	res, err := s.svc.SubmitWord(r.Context(), me.Code, me.PlayerID, req.Word)
	if err != nil {
		writeError(w, r, "submit", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleLeave marks the caller inactive and drops their identity.
func (s *Server) handleLeave(w http.ResponseWriter, r *http.Request) {
	me := playerFrom(r.Context())
	if err := s.svc.MarkInactive(r.Context(), me.PlayerID); err != nil {
		writeError(w, r, "leave", err)
		return
	}
	s.ids.clearCookie(w)
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// handlePlayers lists the ranked active players.
func (s *Server) handlePlayers(w http.ResponseWriter, r *http.Request) {
	entries, err := s.svc.GetPlayers(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, r, "players", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"players":       entries,
		"total_players": len(entries),
	})
}

// handleLeaderboard returns the final ranking and retires the puzzle.
func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	lb, err := s.svc.GetLeaderboard(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, r, "leaderboard", err)
		return
	}
	writeJSON(w, http.StatusOK, lb)
}
