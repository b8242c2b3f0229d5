package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/robalobadob/crossword/internal/cache"
	"github.com/robalobadob/crossword/internal/config"
	"github.com/robalobadob/crossword/internal/coordinator"
	"github.com/robalobadob/crossword/internal/store"
	"github.com/robalobadob/crossword/internal/sweeper"
)

const sweepToken = "let-me-sweep"

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type testEnv struct {
	h   http.Handler
	db  *store.DB
	clk *testClock
}

func setupServer(t *testing.T, withSweepToken bool) *testEnv {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "http.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	clk := &testClock{t: time.Date(2024, 7, 1, 18, 0, 0, 0, time.UTC)}
	cfg := config.Config{
		JWTSecret:      "test-secret",
		CookieName:     "crossword_token",
		ClientOrigin:   "http://localhost:5173",
		RequestTimeout: 5 * time.Second,
	}
	if withSweepToken {
		hash, err := bcrypt.GenerateFromPassword([]byte(sweepToken), bcrypt.MinCost)
		if err != nil {
			t.Fatalf("hash: %v", err)
		}
		cfg.SweepTokenHash = string(hash)
	}

	svc := coordinator.New(db, cache.New(10*time.Second), coordinator.WithClock(clk.Now))
	sw := sweeper.New(svc, sweeper.WithClock(clk.Now))
	srv := New(cfg, svc, sw, WithClock(clk.Now))
	return &testEnv{h: srv.Router(), db: db, clk: clk}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int, wantErr string) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, want, rec.Body.String())
	}
	if wantErr != "" {
		body := decode[errorBody](t, rec)
		if body.Error != wantErr {
			t.Fatalf("error = %q, want %q", body.Error, wantErr)
		}
	}
}

type joined struct {
	PlayerID int64  `json:"player_id"`
	Creator  bool   `json:"is_creator"`
	Token    string `json:"token"`
}

func (e *testEnv) createPuzzle(t *testing.T, duration int, answers ...string) string {
	t.Helper()
	words := make([]map[string]any, 0, len(answers))
	for i, a := range answers {
		words = append(words, map[string]any{"word": a, "hint": "h", "direction": "across", "startRow": i, "startCol": 0})
	}
	rec := e.do(t, http.MethodPost, "/api/puzzles", map[string]any{
		"rows": 15, "cols": 15, "duration": duration, "words": words,
	}, "")
	expectStatus(t, rec, http.StatusCreated, "")
	return decode[map[string]string](t, rec)["code"]
}

func (e *testEnv) join(t *testing.T, code, name string) joined {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/puzzles/join", joinReq{Code: code, DisplayName: name}, "")
	expectStatus(t, rec, http.StatusCreated, "")
	return decode[joined](t, rec)
}

func TestHealth(t *testing.T) {
	e := setupServer(t, false)
	rec := e.do(t, http.MethodGet, "/health", nil, "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok":true`) {
		t.Fatalf("health: %d %s", rec.Code, rec.Body.String())
	}
	rec = e.do(t, http.MethodGet, "/nope", nil, "")
	expectStatus(t, rec, http.StatusNotFound, "not_found")
}

func TestGameFlow(t *testing.T) {
	e := setupServer(t, false)
	code := e.createPuzzle(t, 30, "TEST", "WORD")

	rec := e.do(t, http.MethodPost, "/api/puzzles/join", joinReq{Code: code, DisplayName: "Alice"}, "")
	expectStatus(t, rec, http.StatusCreated, "")
	if !strings.Contains(rec.Header().Get("Set-Cookie"), "crossword_token=") {
		t.Fatalf("identity cookie not set: %q", rec.Header().Get("Set-Cookie"))
	}
	alice := decode[joined](t, rec)
	bob := e.join(t, code, "Bob")
	if !alice.Creator || bob.Creator {
		t.Fatalf("creator flags: alice=%v bob=%v", alice.Creator, bob.Creator)
	}

	rec = e.do(t, http.MethodPost, "/api/puzzles/join", joinReq{Code: code, DisplayName: "Bob"}, "")
	expectStatus(t, rec, http.StatusConflict, "conflict")

	rec = e.do(t, http.MethodGet, "/api/puzzles/"+code, nil, alice.Token)
	expectStatus(t, rec, http.StatusOK, "")
	view := decode[coordinator.SessionView](t, rec)
	if view.Status != "waiting" || len(view.Words) != 2 || view.Words[0].Answer != "" {
		t.Fatalf("waiting view: %+v", view)
	}

	rec = e.do(t, http.MethodPost, "/api/puzzles/"+code+"/submit", submitReq{Word: "test"}, alice.Token)
	expectStatus(t, rec, http.StatusConflict, "invalid_state")

	rec = e.do(t, http.MethodPost, "/api/puzzles/"+code+"/start", nil, bob.Token)
	expectStatus(t, rec, http.StatusForbidden, "permission_denied")
	rec = e.do(t, http.MethodPost, "/api/puzzles/"+code+"/start", nil, alice.Token)
	expectStatus(t, rec, http.StatusOK, "")

	rec = e.do(t, http.MethodPost, "/api/puzzles/"+code+"/submit", submitReq{Word: "test"}, alice.Token)
	expectStatus(t, rec, http.StatusOK, "")
	res := decode[coordinator.SubmitResult](t, rec)
	if res.Points != 1 || res.TotalPoints != 1 || res.RevealedAnswer != "TEST" || res.Completed {
		t.Fatalf("submit result: %+v", res)
	}

	rec = e.do(t, http.MethodPost, "/api/puzzles/"+code+"/submit", submitReq{Word: "TEST"}, bob.Token)
	expectStatus(t, rec, http.StatusConflict, "already_solved")
	rec = e.do(t, http.MethodPost, "/api/puzzles/"+code+"/submit", submitReq{Word: "nope"}, bob.Token)
	expectStatus(t, rec, http.StatusBadRequest, "incorrect")

	rec = e.do(t, http.MethodGet, "/api/puzzles/"+code+"/players", nil, "")
	expectStatus(t, rec, http.StatusOK, "")
	players := decode[struct {
		Players []struct {
			ID     int64 `json:"id"`
			Rank   int   `json:"rank"`
			Points int   `json:"points"`
		} `json:"players"`
		Total int `json:"total_players"`
	}](t, rec)
	if players.Total != 2 || players.Players[0].ID != alice.PlayerID || players.Players[0].Points != 1 {
		t.Fatalf("players: %+v", players)
	}

	rec = e.do(t, http.MethodPost, "/api/puzzles/"+code+"/submit", submitReq{Word: "Word"}, bob.Token)
	expectStatus(t, rec, http.StatusOK, "")
	if res := decode[coordinator.SubmitResult](t, rec); !res.Completed {
		t.Fatalf("last word should complete the game: %+v", res)
	}

	rec = e.do(t, http.MethodGet, "/api/puzzles/"+code+"/leaderboard", nil, "")
	expectStatus(t, rec, http.StatusOK, "")
	lb := decode[coordinator.Leaderboard](t, rec)
	if lb.Status != "completed" || len(lb.Entries) != 2 || lb.Entries[0].PlayerID != alice.PlayerID {
		t.Fatalf("leaderboard: %+v", lb)
	}

	rec = e.do(t, http.MethodPost, "/api/puzzles/join", joinReq{Code: code, DisplayName: "Carol"}, "")
	expectStatus(t, rec, http.StatusNotFound, "not_found")
}

func TestPlayerRoutesRequireIdentity(t *testing.T) {
	e := setupServer(t, false)
	one := e.createPuzzle(t, 30, "TEST")
	two := e.createPuzzle(t, 30, "WORD")
	eve := e.join(t, two, "Eve")

	rec := e.do(t, http.MethodGet, "/api/puzzles/"+one, nil, "")
	expectStatus(t, rec, http.StatusUnauthorized, "unauthorized")
	rec = e.do(t, http.MethodGet, "/api/puzzles/"+one, nil, "not-a-token")
	expectStatus(t, rec, http.StatusUnauthorized, "unauthorized")
	rec = e.do(t, http.MethodGet, "/api/puzzles/"+one, nil, eve.Token)
	expectStatus(t, rec, http.StatusForbidden, "permission_denied")
}

func TestExpiredSessionMarksPlayerInactive(t *testing.T) {
	e := setupServer(t, false)
	code := e.createPuzzle(t, 5, "TEST", "WORD")
	alice := e.join(t, code, "Alice")

	e.clk.Advance(16 * time.Minute)
	rec := e.do(t, http.MethodGet, "/api/puzzles/"+code, nil, alice.Token)
	expectStatus(t, rec, http.StatusUnauthorized, "session_expired")

	rec = e.do(t, http.MethodGet, "/api/puzzles/"+code+"/players", nil, "")
	expectStatus(t, rec, http.StatusOK, "")
	if total := decode[map[string]any](t, rec)["total_players"]; total != float64(0) {
		t.Fatalf("expired player still listed: %v", total)
	}

	rec = e.do(t, http.MethodPost, "/api/puzzles/"+code+"/reconnect", reconnectReq{DisplayName: "Alice"}, "")
	expectStatus(t, rec, http.StatusOK, "")
	again := decode[joined](t, rec)
	if again.PlayerID != alice.PlayerID || again.Token == "" {
		t.Fatalf("reconnect: %+v", again)
	}

	rec = e.do(t, http.MethodGet, "/api/puzzles/"+code, nil, again.Token)
	expectStatus(t, rec, http.StatusOK, "")

	rec = e.do(t, http.MethodPost, "/api/puzzles/"+code+"/reconnect", reconnectReq{DisplayName: "Alice"}, "")
	expectStatus(t, rec, http.StatusNotFound, "not_found")
}

func TestExpiredTokenForAnotherPuzzleIsRejected(t *testing.T) {
	e := setupServer(t, false)
	mine := e.createPuzzle(t, 5, "TEST")
	other := e.createPuzzle(t, 5, "WORD")
	alice := e.join(t, mine, "Alice")

	e.clk.Advance(16 * time.Minute)
	rec := e.do(t, http.MethodGet, "/api/puzzles/"+other, nil, alice.Token)
	expectStatus(t, rec, http.StatusForbidden, "permission_denied")

	rec = e.do(t, http.MethodGet, "/api/puzzles/"+mine+"/players", nil, "")
	expectStatus(t, rec, http.StatusOK, "")
	if total := decode[map[string]any](t, rec)["total_players"]; total != float64(1) {
		t.Fatalf("player of the token's puzzle should stay active: %v", total)
	}
}

func TestLeaveDropsPlayer(t *testing.T) {
	e := setupServer(t, false)
	code := e.createPuzzle(t, 30, "TEST")
	alice := e.join(t, code, "Alice")

	rec := e.do(t, http.MethodPost, "/api/puzzles/"+code+"/leave", nil, alice.Token)
	expectStatus(t, rec, http.StatusOK, "")
	rec = e.do(t, http.MethodPost, "/api/puzzles/"+code+"/reconnect", reconnectReq{DisplayName: "Alice"}, "")
	expectStatus(t, rec, http.StatusOK, "")
}

func TestCreateValidation(t *testing.T) {
	e := setupServer(t, false)

	rec := e.do(t, http.MethodPost, "/api/puzzles", "{not json", "")
	expectStatus(t, rec, http.StatusBadRequest, "invalid_json")

	rec = e.do(t, http.MethodPost, "/api/puzzles", map[string]any{
		"rows": 5, "cols": 5, "duration": 30,
		"words": []map[string]any{{"word": "abc1", "direction": "across"}},
	}, "")
	expectStatus(t, rec, http.StatusBadRequest, "validation")

	rec = e.do(t, http.MethodPost, "/api/puzzles", map[string]any{"rows": 5, "cols": 5, "duration": 2}, "")
	expectStatus(t, rec, http.StatusBadRequest, "validation")

	rec = e.do(t, http.MethodPost, "/api/puzzles/join", joinReq{Code: "x"}, "")
	expectStatus(t, rec, http.StatusBadRequest, "validation")
}

func TestSweepEndpoint(t *testing.T) {
	disabled := setupServer(t, false)
	rec := disabled.do(t, http.MethodPost, "/internal/sweep", nil, sweepToken)
	expectStatus(t, rec, http.StatusNotFound, "not_found")

	e := setupServer(t, true)
	rec = e.do(t, http.MethodPost, "/internal/sweep", nil, "")
	expectStatus(t, rec, http.StatusUnauthorized, "unauthorized")
	rec = e.do(t, http.MethodPost, "/internal/sweep", nil, "wrong")
	expectStatus(t, rec, http.StatusUnauthorized, "unauthorized")
	rec = e.do(t, http.MethodPost, "/internal/sweep?policy=weekly", nil, sweepToken)
	expectStatus(t, rec, http.StatusBadRequest, "validation")

	code := e.createPuzzle(t, 5, "TEST", "WORD")
	alice := e.join(t, code, "Alice")
	rec = e.do(t, http.MethodPost, "/api/puzzles/"+code+"/start", nil, alice.Token)
	expectStatus(t, rec, http.StatusOK, "")

	e.clk.Advance(6 * time.Minute)
	rec = e.do(t, http.MethodPost, "/internal/sweep?policy=expired", nil, sweepToken)
	expectStatus(t, rec, http.StatusOK, "")
	rep := decode[sweeper.Report](t, rec)
	if rep.GamesEnded != 1 {
		t.Fatalf("report: %+v", rep)
	}
}

func TestStartIsRateLimited(t *testing.T) {
	e := setupServer(t, false)
	code := e.createPuzzle(t, 30, "TEST")
	bob := e.join(t, code, "Alice")

	var last *httptest.ResponseRecorder
	for i := 0; i < startLimit+1; i++ {
		last = e.do(t, http.MethodPost, "/api/puzzles/"+code+"/start", nil, bob.Token)
	}
	expectStatus(t, last, http.StatusTooManyRequests, "rate_limited")
}

func TestUnexpectedErrorsAreGeneric(t *testing.T) {
	e := setupServer(t, false)
	_ = e.db.Close()

	rec := e.do(t, http.MethodPost, "/api/puzzles", map[string]any{
		"rows": 5, "cols": 5, "duration": 30,
		"words": []map[string]any{{"word": "cat", "direction": "across"}},
	}, "")
	expectStatus(t, rec, http.StatusInternalServerError, "internal_error")
	if body := decode[errorBody](t, rec); body.Message != "" {
		t.Fatalf("internal details leaked: %+v", body)
	}
}
