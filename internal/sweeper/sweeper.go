// internal/sweeper/sweeper.go
//
// Expiry sweeper: periodic reconciliation of stale sessions and players.
// Policies (each idempotent, safe to re-run on any schedule):
//   - retention: soft-delete completed puzzles older than the retention window.
//   - players:   drop players idle longer than the game duration; end games left empty.
//   - expired:   end in-progress games whose clock ran out, even if nobody reads them.
//
// Per-puzzle work fans out over a bounded errgroup. A failure on one puzzle is
// logged and reported but does not stop the rest of the pass.

package sweeper

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/robalobadob/crossword/internal/game"
)

// DefaultRetention is how long completed puzzles stay active.
const DefaultRetention = 7 * 24 * time.Hour

// Sessions is the session-side work a sweep delegates to.
type Sessions interface {
	RetireCompleted(ctx context.Context, cutoff time.Time) (int64, error)
	InProgress(ctx context.Context) ([]game.Puzzle, error)
	ExpireIdlePlayers(ctx context.Context, p game.Puzzle) (int64, bool, error)
	EndIfTimeUp(ctx context.Context, p game.Puzzle) (bool, error)
}

// purger is implemented by sessions that keep an in-process cache.
type purger interface {
	PurgeCache() int
}

// Policy selects which sweep to run.
type Policy string

const (
	PolicyRetention Policy = "retention"
	PolicyPlayers   Policy = "players"
	PolicyExpired   Policy = "expired"
	PolicyAll       Policy = "all"
)

// ParsePolicy validates a policy name. Empty means all.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(s); p {
	case PolicyRetention, PolicyPlayers, PolicyExpired, PolicyAll:
		return p, nil
	case "":
		return PolicyAll, nil
	}
	return "", game.Errorf(game.CodeValidation, "unknown sweep policy %q", s)
}

// Report summarizes one pass.
type Report struct {
	Retired        int64 `json:"retired"`
	PlayersDropped int64 `json:"players_dropped"`
	GamesEnded     int64 `json:"games_ended"`
	Failures       int64 `json:"failures"`
}

func (r *Report) add(o Report) {
	r.Retired += o.Retired
	r.PlayersDropped += o.PlayersDropped
	r.GamesEnded += o.GamesEnded
	r.Failures += o.Failures
}

// Sweeper runs the expiry policies.
type Sweeper struct {
	sessions  Sessions
	retention time.Duration
	workers   int
	now       func() time.Time
}

// Option configures a Sweeper.
type Option func(*Sweeper)

// WithClock overrides the time source used for the retention cutoff.
func WithClock(now func() time.Time) Option {
	return func(s *Sweeper) { s.now = now }
}

// WithRetention overrides the retention window.
func WithRetention(d time.Duration) Option {
	return func(s *Sweeper) {
		if d > 0 {
			s.retention = d
		}
	}
}

// WithWorkers bounds how many puzzles are processed at once.
func WithWorkers(n int) Option {
	return func(s *Sweeper) {
		if n > 0 {
			s.workers = n
		}
	}
}

// New builds a Sweeper.
func New(sessions Sessions, opts ...Option) *Sweeper {
	s := &Sweeper{
		sessions:  sessions,
		retention: DefaultRetention,
		workers:   4,
		now:       time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// DeactivateOldPuzzles soft-deletes completed puzzles past the retention window.
func (s *Sweeper) DeactivateOldPuzzles(ctx context.Context) (Report, error) {
	n, err := s.sessions.RetireCompleted(ctx, s.now().Add(-s.retention))
	if err != nil {
		return Report{Failures: 1}, fmt.Errorf("retire completed puzzles: %w", err)
	}
	return Report{Retired: n}, nil
}

// ExpireInactivePlayers drops idle players from every game in progress.
func (s *Sweeper) ExpireInactivePlayers(ctx context.Context) (Report, error) {
	return s.eachInProgress(ctx, func(ctx context.Context, p game.Puzzle, r *Report) error {
		dropped, ended, err := s.sessions.ExpireIdlePlayers(ctx, p)
		if err != nil {
			return err
		}
		atomic.AddInt64(&r.PlayersDropped, dropped)
		if ended {
			atomic.AddInt64(&r.GamesEnded, 1)
		}
		return nil
	})
}

// EndExpiredGames ends every game in progress whose clock ran out.
func (s *Sweeper) EndExpiredGames(ctx context.Context) (Report, error) {
	return s.eachInProgress(ctx, func(ctx context.Context, p game.Puzzle, r *Report) error {
		ended, err := s.sessions.EndIfTimeUp(ctx, p)
		if err != nil {
			return err
		}
		if ended {
			atomic.AddInt64(&r.GamesEnded, 1)
		}
		return nil
	})
}

func (s *Sweeper) eachInProgress(ctx context.Context, fn func(context.Context, game.Puzzle, *Report) error) (Report, error) {
	var r Report
	live, err := s.sessions.InProgress(ctx)
	if err != nil {
		return Report{Failures: 1}, fmt.Errorf("list in-progress puzzles: %w", err)
	}

	var g errgroup.Group
	g.SetLimit(s.workers)
	for _, p := range live {
		g.Go(func() error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if err := fn(ctx, p, &r); err != nil {
				atomic.AddInt64(&r.Failures, 1)
				log.Error().Err(err).Str("code", p.Code).Msg("sweep puzzle failed")
				return fmt.Errorf("puzzle %s: %w", p.Code, err)
			}
			return nil
		})
	}
	err = g.Wait()
	return r, err
}

// Run executes one pass of the selected policy. With PolicyAll every policy
// runs even if an earlier one failed; the first error is returned.
func (s *Sweeper) Run(ctx context.Context, policy Policy) (Report, error) {
	var steps []func(context.Context) (Report, error)
	switch policy {
	case PolicyRetention:
		steps = append(steps, s.DeactivateOldPuzzles)
	case PolicyPlayers:
		steps = append(steps, s.ExpireInactivePlayers)
	case PolicyExpired:
		steps = append(steps, s.EndExpiredGames)
	case PolicyAll:
		steps = append(steps, s.DeactivateOldPuzzles, s.ExpireInactivePlayers, s.EndExpiredGames)
	default:
		return Report{}, game.Errorf(game.CodeValidation, "unknown sweep policy %q", policy)
	}

	var (
		total    Report
		firstErr error
	)
	for _, step := range steps {
		r, err := step(ctx)
		total.add(r)
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	log.Info().
		Str("policy", string(policy)).
		Int64("retired", total.Retired).
		Int64("players_dropped", total.PlayersDropped).
		Int64("games_ended", total.GamesEnded).
		Int64("failures", total.Failures).
		Msg("sweep finished")
	return total, firstErr
}

// Loop runs the player and expiry policies every interval and the retention
// policy every retentionInterval until ctx is done. A zero interval disables
// the loop; a zero retentionInterval disables only the retention policy.
func (s *Sweeper) Loop(ctx context.Context, interval, retentionInterval time.Duration) error {
	if interval <= 0 {
		log.Info().Msg("sweeper loop disabled")
		return nil
	}
	tick := time.NewTicker(interval)
	defer tick.Stop()

	var retain <-chan time.Time
	if retentionInterval > 0 {
		rt := time.NewTicker(retentionInterval)
		defer rt.Stop()
		retain = rt.C
	}

	log.Info().Dur("interval", interval).Dur("retention_interval", retentionInterval).Msg("sweeper loop started")
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tick.C:
			for _, p := range []Policy{PolicyPlayers, PolicyExpired} {
				if _, err := s.Run(ctx, p); err != nil {
					log.Error().Err(err).Str("policy", string(p)).Msg("sweep failed")
				}
			}
			if c, ok := s.sessions.(purger); ok {
				if n := c.PurgeCache(); n > 0 {
					log.Debug().Int("entries", n).Msg("cache purged")
				}
			}
		case <-retain:
			if _, err := s.Run(ctx, PolicyRetention); err != nil {
				log.Error().Err(err).Msg("retention sweep failed")
			}
		}
	}
}
