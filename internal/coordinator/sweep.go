// internal/coordinator/sweep.go
//
// Store-side steps of the expiry policies. Each step is idempotent and safe to
// run concurrently with request traffic and with other sweeper processes.

package coordinator

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/robalobadob/crossword/internal/game"
	"github.com/robalobadob/crossword/internal/store"
)

// RetireCompleted soft-deletes completed puzzles created before cutoff.
// Cached views of those puzzles age out with the cache TTL.
func (s *Service) RetireCompleted(ctx context.Context, cutoff time.Time) (int64, error) {
	return s.db.Queries().DeactivateCompletedBefore(ctx, cutoff)
}

// InProgress lists active puzzles currently being played.
func (s *Service) InProgress(ctx context.Context) ([]game.Puzzle, error) {
	return s.db.Queries().ActiveInProgress(ctx)
}

// ExpireIdlePlayers marks players of p inactive when they were last seen more
// than the game duration ago, and ends the game if nobody is left.
func (s *Service) ExpireIdlePlayers(ctx context.Context, p game.Puzzle) (int64, bool, error) {
	now := s.now()
	cutoff := now.Add(-time.Duration(p.Duration) * time.Minute)

	var (
		dropped int64
		ended   bool
	)
	err := s.db.InTx(ctx, func(q *store.Queries) error {
		var err error
		if dropped, err = q.DeactivateStalePlayers(ctx, p.ID, cutoff); err != nil {
			return err
		}
		left, err := q.CountActivePlayers(ctx, p.ID)
		if err != nil {
			return err
		}
		if left > 0 {
			return nil
		}
		cur, err := q.PuzzleByID(ctx, p.ID)
		if err != nil {
			return err
		}
		if cur.Status != game.StatusInProgress {
			return nil
		}
		ended, err = endPuzzle(ctx, q, cur, now)
		return err
	})
	if err != nil {
		return 0, false, err
	}

	if dropped > 0 || ended {
		s.Invalidate(p.Code)
	}
	if dropped > 0 {
		log.Info().Str("code", p.Code).Int64("players", dropped).Msg("idle players marked inactive")
	}
	if ended {
		logEnded(p.Code, "no_players")
	}
	return dropped, ended, nil
}

// EndIfTimeUp ends p when its clock has run out. It reports whether this call ended it.
func (s *Service) EndIfTimeUp(ctx context.Context, p game.Puzzle) (bool, error) {
	if !p.Expired(s.now()) {
		return false, nil
	}
	return s.EndGame(ctx, p, "time_up")
}
