// internal/httpserver/sweep.go
//
// POST /internal/sweep?policy=retention|players|expired|all
//
// Entry point for an external scheduler. The caller presents a bearer token
// that is checked against the bcrypt hash in SWEEP_TOKEN_HASH; with no hash
// configured the route does not exist.

package httpserver

import (
	"net/http"

	"github.com/rs/zerolog/hlog"
	"golang.org/x/crypto/bcrypt"

	"github.com/robalobadob/crossword/internal/sweeper"
)

func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	if s.cfg.SweepTokenHash == "" || s.sweeper == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not_found", "path": r.URL.Path})
		return
	}
	tok := s.ids.bearer(r)
	if tok == "" || bcrypt.CompareHashAndPassword([]byte(s.cfg.SweepTokenHash), []byte(tok)) != nil {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "unauthorized"})
		return
	}

	policy, err := sweeper.ParsePolicy(r.URL.Query().Get("policy"))
	if err != nil {
		writeError(w, r, "sweep", err)
		return
	}
	rep, err := s.sweeper.Run(r.Context(), policy)
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Str("policy", string(policy)).Msg("sweep incomplete")
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "sweep_incomplete", "report": rep})
		return
	}
	writeJSON(w, http.StatusOK, rep)
}
