// internal/httpserver/server.go
//
// HTTP server wiring for the crossword coordinator.
// Responsibilities:
//   - Router + middleware (JSON, CORS, timeouts, panic recovery, request IDs, access log).
//   - Public endpoints: "/", "/health".
//   - Puzzle endpoints under /api/puzzles (create, join, reconnect, view, start,
//     submit, leave, players, leaderboard), rate limited per client IP.
//   - Sweep trigger for an external scheduler: POST /internal/sweep.
//
// Notes:
//   - CORS is origin-aware and credentials-enabled (so cookies work).
//   - Player routes require the identity token issued on join/reconnect,
//     sent as a cookie or a Bearer header.

package httpserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/crossword/internal/config"
	"github.com/robalobadob/crossword/internal/coordinator"
	"github.com/robalobadob/crossword/internal/sweeper"
)

// Per-IP request budgets per minute.
const (
	createLimit    = 30
	joinLimit      = 30
	reconnectLimit = 10
	startLimit     = 10
	submitLimit    = 50
	playersLimit   = 100
)

// Server bundles the router and the services behind it.
type Server struct {
	r       *chi.Mux
	svc     *coordinator.Service
	sweeper *sweeper.Sweeper
	ids     *identity
	cfg     config.Config
}

// Option configures a Server.
type Option func(*Server)

// WithClock overrides the time source used for identity tokens.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.ids.now = now }
}

// New constructs a Server, installs middleware, and registers routes.
func New(cfg config.Config, svc *coordinator.Service, sw *sweeper.Sweeper, opts ...Option) *Server {
	s := &Server{
		r:       chi.NewRouter(),
		svc:     svc,
		sweeper: sw,
		ids:     newIdentity(cfg.JWTSecret, cfg.CookieName, cfg.Production()),
		cfg:     cfg,
	}
	for _, o := range opts {
		o(s)
	}

	// --- middleware ---
	s.r.Use(chimw.RequestID)                   // add X-Request-ID
	s.r.Use(chimw.RealIP)                      // set RemoteAddr from X-Forwarded-For etc.
	s.r.Use(accessLog()...)                    // structured access log
	s.r.Use(chimw.Recoverer)                   // recover from panics
	s.r.Use(chimw.Timeout(cfg.RequestTimeout)) // bound handler time
	s.r.Use(jsonContentType)                   // default JSON responses
	s.r.Use(cors(cfg.ClientOrigin))            // credentials-friendly CORS

	// --- diagnostics ---
	s.r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"service":"crossword","endpoints":["/health","/api/puzzles"]}`))
	})
	s.r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	s.r.Route("/api/puzzles", s.mountPuzzleRoutes)
	s.r.Post("/internal/sweep", s.handleSweep)

	// JSON 404/405 for easier debugging
	s.r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not_found", "path": r.URL.Path})
	})
	s.r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method_not_allowed"})
	})

	return s
}

// mountPuzzleRoutes registers the session endpoints.
func (s *Server) mountPuzzleRoutes(r chi.Router) {
	r.With(rateLimit(createLimit)).Post("/", s.handleCreate)
	r.With(rateLimit(joinLimit)).Post("/join", s.handleJoin)

	r.Route("/{code}", func(r chi.Router) {
		r.With(rateLimit(reconnectLimit)).Post("/reconnect", s.handleReconnect)
		r.With(rateLimit(playersLimit)).Get("/players", s.handlePlayers)
		r.Get("/leaderboard", s.handleLeaderboard)

		// Player routes (identity required)
		r.Group(func(r chi.Router) {
			r.Use(s.requirePlayer)
			r.Get("/", s.handleView)
			r.With(rateLimit(startLimit)).Post("/start", s.handleStart)
			r.With(rateLimit(submitLimit)).Post("/submit", s.handleSubmit)
			r.Post("/leave", s.handleLeave)
		})
	})
}

// Run serves HTTP on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		log.Info().Msg("http server shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

// Router exposes the internal router (useful for tests).
func (s *Server) Router() chi.Router { return s.r }
