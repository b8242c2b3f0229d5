// internal/coordinator/service.go
//
// Session coordinator: the operations callers use to run a crossword game.
// Responsibilities:
//   - Translate store outcomes (not found, unique violations) into game errors.
//   - Apply lazy state transitions (waiting-room auto-start, time-up) on reads.
//   - Keep the read cache coherent: every mutation drops the keys it affects.
//
// Gating decisions (status, creator, solved words) are always made on rows
// read inside the same store transaction, never on cached snapshots.

package coordinator

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/robalobadob/crossword/internal/cache"
	"github.com/robalobadob/crossword/internal/game"
	"github.com/robalobadob/crossword/internal/store"
)

// maxCodeRetries bounds how many fresh join codes CreateSession tries.
const maxCodeRetries = 3

// Service runs session operations against the store and cache.
type Service struct {
	db             *store.DB
	cache          *cache.Memory
	now            func() time.Time
	autoStartAfter time.Duration
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithAutoStartAfter overrides how long a waiting room may sit idle.
func WithAutoStartAfter(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.autoStartAfter = d
		}
	}
}

// New builds a Service.
func New(db *store.DB, c *cache.Memory, opts ...Option) *Service {
	s := &Service{
		db:             db,
		cache:          c,
		now:            time.Now,
		autoStartAfter: game.AutoStartAfter,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Invalidate drops every cached view of a puzzle.
func (s *Service) Invalidate(code string) {
	s.cache.Delete(cache.PuzzleKey(code), cache.PlayersKey(code))
}

// PurgeCache drops expired cache entries and reports how many went.
func (s *Service) PurgeCache() int { return s.cache.Purge() }

// snapshot is the cached read model of one puzzle. Values are shared between
// readers and must not be mutated.
type snapshot struct {
	puzzle  game.Puzzle
	words   []game.Word
	solved  []game.SolvedWord
	players []game.Player
}

func (s *Service) loadSnapshot(ctx context.Context, code string) (*snapshot, error) {
	v, err := s.cache.GetOrLoad(ctx, cache.PuzzleKey(code), func(ctx context.Context) (any, error) {
		q := s.db.Queries()
		p, err := q.PuzzleByCode(ctx, code)
		if err != nil {
			return nil, err
		}
		snap := &snapshot{puzzle: *p}
		if snap.words, err = q.Words(ctx, p.ID); err != nil {
			return nil, err
		}
		if snap.solved, err = q.SolvedWords(ctx, p.ID); err != nil {
			return nil, err
		}
		if snap.players, err = q.Players(ctx, p.ID); err != nil {
			return nil, err
		}
		return snap, nil
	})
	if err != nil {
		return nil, notFound(err, "puzzle not found")
	}
	return v.(*snapshot), nil
}

// resolve returns the snapshot of a puzzle after applying any transition due
// at now, so callers never observe a due auto-start or an expired clock. Callers
// that derive timing from the snapshot must use the same now.
func (s *Service) resolve(ctx context.Context, code string, now time.Time) (*snapshot, error) {
	snap, err := s.loadSnapshot(ctx, code)
	if err != nil {
		return nil, err
	}
	tr := snap.puzzle.Reconcile(now, s.autoStartAfter)
	if tr == game.NoTransition {
		return snap, nil
	}
	p := snap.puzzle
	if err := s.applyTransition(ctx, &p, tr, now); err != nil {
		return nil, err
	}
	return s.loadSnapshot(ctx, code)
}

// applyTransition persists a lazy transition. Losing the compare-and-set to
// another writer is not an error: the puzzle has moved on either way.
func (s *Service) applyTransition(ctx context.Context, p *game.Puzzle, tr game.Transition, now time.Time) error {
	defer s.Invalidate(p.Code)

	switch tr {
	case game.AutoStart:
		if err := p.Start(now); err != nil {
			return err
		}
		ok, err := s.db.Queries().UpdatePuzzleState(ctx, p, game.StatusWaiting, now)
		if err != nil {
			return err
		}
		if ok {
			log.Info().Str("code", p.Code).Bool("auto", true).Msg("game started")
		}
	case game.TimeUp:
		ok, err := endPuzzle(ctx, s.db.Queries(), p, now)
		if err != nil {
			return err
		}
		if ok {
			logEnded(p.Code, "time_up")
		}
	}
	return nil
}

// endPuzzle completes an in_progress puzzle with a compare-and-set. It reports
// whether this call performed the transition.
func endPuzzle(ctx context.Context, q *store.Queries, p *game.Puzzle, now time.Time) (bool, error) {
	next := *p
	if err := next.End(); err != nil {
		return false, err
	}
	ok, err := q.UpdatePuzzleState(ctx, &next, game.StatusInProgress, now)
	if err != nil || !ok {
		return false, err
	}
	*p = next
	return true, nil
}

func logEnded(code, reason string) {
	log.Info().Str("code", code).Str("reason", reason).Msg("game ended")
}

// activePuzzle loads a puzzle for a mutation. Soft-deleted puzzles are not found.
func activePuzzle(ctx context.Context, q *store.Queries, code string) (*game.Puzzle, error) {
	p, err := q.PuzzleByCode(ctx, code)
	if err != nil {
		return nil, notFound(err, "puzzle not found")
	}
	if !p.Active {
		return nil, game.Errorf(game.CodeNotFound, "puzzle not found")
	}
	return p, nil
}

// playerIn loads a player and checks it belongs to the puzzle.
func playerIn(ctx context.Context, q *store.Queries, puzzleID, playerID int64) (*game.Player, error) {
	pl, err := q.PlayerByID(ctx, playerID)
	if err != nil {
		return nil, notFound(err, "player not found")
	}
	if pl.PuzzleID != puzzleID {
		return nil, game.Errorf(game.CodeNotFound, "player not found")
	}
	return pl, nil
}

// notFound maps store.ErrNotFound to a game NotFound error and passes anything else through.
func notFound(err error, msg string) error {
	if errors.Is(err, store.ErrNotFound) {
		return &game.Error{Code: game.CodeNotFound, Message: msg, Cause: err}
	}
	return err
}
