// internal/httpserver/identity.go
//
// Player identity: a signed token tying a caller to one player of one puzzle.
// Issued on join (valid for the game duration plus 10 minutes) and on
// reconnect (valid for the game duration). Sent back as an HttpOnly cookie
// and in the response body for clients that prefer a Bearer header.
//
// An expired token is a "session expired" outcome: the player is marked
// inactive and must reconnect.

package httpserver

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/hlog"
)

// joinGrace extends a fresh join's identity past the game clock.
const joinGrace = 10 * time.Minute

// playerClaims is the token payload.
type playerClaims struct {
	PlayerID int64  `json:"pid"`
	Code     string `json:"code"`
	jwt.RegisteredClaims
}

// identity signs and verifies player tokens and manages the cookie.
type identity struct {
	secret     []byte
	cookieName string
	secure     bool
	now        func() time.Time
}

func newIdentity(secret, cookieName string, secure bool) *identity {
	return &identity{
		secret:     []byte(secret),
		cookieName: cookieName,
		secure:     secure,
		now:        time.Now,
	}
}

// sign issues an HS256 token for a player valid for ttl.
func (id *identity) sign(playerID int64, code string, ttl time.Duration) (string, time.Time, error) {
	now := id.now()
	exp := now.Add(ttl)
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, playerClaims{
		PlayerID: playerID,
		Code:     code,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(playerID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	})
	ss, err := t.SignedString(id.secret)
	return ss, exp, err
}

func (id *identity) key(*jwt.Token) (any, error) { return id.secret, nil }

// parse verifies a token. An expired but correctly signed token returns its
// claims together with an error matching jwt.ErrTokenExpired.
func (id *identity) parse(tok string) (*playerClaims, error) {
	hs256 := jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})
	claims := &playerClaims{}
	_, err := jwt.ParseWithClaims(tok, claims, id.key, hs256, jwt.WithTimeFunc(id.now))
	if errors.Is(err, jwt.ErrTokenExpired) {
		// Re-check the signature alone before trusting the expired claims.
		expired := &playerClaims{}
		if _, verr := jwt.ParseWithClaims(tok, expired, id.key, hs256, jwt.WithoutClaimsValidation()); verr == nil && expired.PlayerID != 0 {
			return expired, err
		}
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	if claims.PlayerID == 0 || claims.Code == "" {
		return nil, errors.New("token missing player")
	}
	return claims, nil
}

// setCookie writes the identity cookie with appropriate security attributes.
func (id *identity) setCookie(w http.ResponseWriter, token string, exp time.Time) {
	http.SetCookie(w, id.cookie(token, exp, 0))
}

// clearCookie deletes the identity cookie.
func (id *identity) clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, id.cookie("", time.Time{}, -1))
}

func (id *identity) cookie(value string, exp time.Time, maxAge int) *http.Cookie {
	sameSite := http.SameSiteLaxMode
	if id.secure {
		sameSite = http.SameSiteNoneMode // required for third-party contexts when Secure
	}
	return &http.Cookie{
		Name:     id.cookieName,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   id.secure,
		SameSite: sameSite,
		Expires:  exp,
		MaxAge:   maxAge,
	}
}

// token extracts a bearer token from the Authorization header or the cookie.
func (id *identity) token(r *http.Request) string {
	if b := id.bearer(r); b != "" {
		return b
	}
	if c, err := r.Cookie(id.cookieName); err == nil {
		return c.Value
	}
	return ""
}

// bearer returns the token of an "Authorization: Bearer <token>" header.
func (id *identity) bearer(r *http.Request) string {
	if a := r.Header.Get("Authorization"); strings.HasPrefix(strings.ToLower(a), "bearer ") {
		return strings.TrimSpace(a[7:])
	}
	return ""
}

// ctxPlayerKey is the context key type for the verified player claims.
type ctxPlayerKey struct{}

func playerFrom(ctx context.Context) *playerClaims {
	c, _ := ctx.Value(ctxPlayerKey{}).(*playerClaims)
	return c
}

// requirePlayer enforces a valid identity for the puzzle in the URL.
func (s *Server) requirePlayer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok := s.ids.token(r)
		if tok == "" {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "unauthorized", Message: "join the puzzle first"})
			return
		}
		claims, err := s.ids.parse(tok)
		if err != nil && !(errors.Is(err, jwt.ErrTokenExpired) && claims != nil) {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "unauthorized", Message: "invalid token"})
			return
		}
		// Checked before expiry so a stale token cannot touch a player of another puzzle.
		if code := chi.URLParam(r, "code"); code != claims.Code {
			writeJSON(w, http.StatusForbidden, errorBody{Error: "permission_denied", Message: "token belongs to another puzzle"})
			return
		}
		if err != nil {
			s.expireSession(w, r, claims)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxPlayerKey{}, claims)))
	})
}

// expireSession marks the player behind an expired token inactive and drops the cookie.
func (s *Server) expireSession(w http.ResponseWriter, r *http.Request, claims *playerClaims) {
	if err := s.svc.MarkInactive(r.Context(), claims.PlayerID); err != nil {
		hlog.FromRequest(r).Warn().Err(err).Int64("player", claims.PlayerID).Msg("mark inactive on expired session")
	}
	s.ids.clearCookie(w)
	writeJSON(w, http.StatusUnauthorized, errorBody{Error: "session_expired", Message: "session expired, reconnect to continue"})
}
