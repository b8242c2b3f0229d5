// internal/httpserver/errors.go
//
// Response helpers and the mapping from game error codes to HTTP statuses.
// Expected outcomes carry their code and message to the caller; anything
// uncategorized is logged with the request id and answered with a generic body.

package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/hlog"

	"github.com/robalobadob/crossword/internal/game"
)

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps a game error code to an HTTP status.
func statusFor(code game.Code) int {
	switch code {
	case game.CodeValidation, game.CodeInvalidArgument, game.CodeIncorrect:
		return http.StatusBadRequest
	case game.CodePermissionDenied:
		return http.StatusForbidden
	case game.CodeNotFound:
		return http.StatusNotFound
	case game.CodeConflict, game.CodeAlreadySolved, game.CodeInvalidState:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// writeError answers with the error's code, or a generic 500 for unexpected failures.
func writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	var ge *game.Error
	if errors.As(err, &ge) {
		if status := statusFor(ge.Code); status != http.StatusInternalServerError {
			writeJSON(w, status, errorBody{Error: string(ge.Code), Message: ge.Error()})
			return
		}
	}
	hlog.FromRequest(r).Error().Err(err).Str("op", op).Msg("request failed")
	writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal_error"})
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid_json", Message: "request body must be valid JSON"})
		return false
	}
	return true
}
