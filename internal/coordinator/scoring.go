// internal/coordinator/scoring.go
//
// Submission and scoring engine plus the leaderboard.
//
// A word is credited at most once: the SolvedWord insert is guarded by
// UNIQUE(puzzle_id, word_id) and a unique violation means someone got there
// first. Points are added with a single UPDATE ... RETURNING, never read,
// modified and written back. Solving the last word ends the game.

package coordinator

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/robalobadob/crossword/internal/game"
	"github.com/robalobadob/crossword/internal/leaderboard"
	"github.com/robalobadob/crossword/internal/store"
	"github.com/robalobadob/crossword/internal/words"
)

// PointsPerWord is the credit for one solve.
const PointsPerWord = 1

// SubmitResult is returned for a credited solve.
type SubmitResult struct {
	Points         int    `json:"points"`
	TotalPoints    int    `json:"total_points"`
	RevealedAnswer string `json:"revealed_answer"`
	WordID         int64  `json:"word_id"`
	Completed      bool   `json:"completed"`
}

// SubmitWord checks a guess against the puzzle's unsolved words and credits the player.
// The phase gate comes first: a guess sent outside in_progress is InvalidState
// whatever its content.
func (s *Service) SubmitWord(ctx context.Context, code string, playerID int64, guess string) (*SubmitResult, error) {
	answer := words.Normalize(guess)

	// Apply a due auto-start or time-up before the gate below.
	if _, err := s.resolve(ctx, code, s.now()); err != nil {
		return nil, err
	}

	var (
		res    *SubmitResult
		timeUp bool
	)
	err := s.db.InTx(ctx, func(q *store.Queries) error {
		p, err := activePuzzle(ctx, q, code)
		if err != nil {
			return err
		}
		if p.Status != game.StatusInProgress {
			return game.Errorf(game.CodeInvalidState, "game is not in progress")
		}
		now := s.now()
		if p.Expired(now) {
			// Commit the end, then report the phase error.
			timeUp, err = endPuzzle(ctx, q, p, now)
			return err
		}
		if answer == "" {
			return game.Errorf(game.CodeValidation, "missing word")
		}
		if len(answer) > words.MaxWordLength || !words.IsLetters(answer) {
			return game.Errorf(game.CodeIncorrect, "incorrect word")
		}

		pl, err := playerIn(ctx, q, p.ID, playerID)
		if err != nil {
			return err
		}
		if !pl.Active {
			return game.Errorf(game.CodePermissionDenied, "player is not active, reconnect first")
		}

		candidates, err := q.WordsByAnswer(ctx, p.ID, answer)
		if err != nil {
			return err
		}
		if len(candidates) == 0 {
			return game.Errorf(game.CodeIncorrect, "incorrect word")
		}

		var credited *game.Word
		for i := range candidates {
			sw := &game.SolvedWord{PuzzleID: p.ID, WordID: candidates[i].ID, SolvedBy: &pl.ID, SolvedAt: now}
			err := q.InsertSolvedWord(ctx, sw)
			if errors.Is(err, store.ErrDuplicate) {
				continue
			}
			if err != nil {
				return err
			}
			credited = &candidates[i]
			break
		}
		if credited == nil {
			return alreadySolved(ctx, q, p.ID, candidates[0].ID, pl.ID)
		}

		total, err := q.AddPoints(ctx, pl.ID, PointsPerWord)
		if err != nil {
			return err
		}
		if err := q.TouchPlayer(ctx, pl.ID, now); err != nil {
			return err
		}
		res = &SubmitResult{
			Points:         PointsPerWord,
			TotalPoints:    total,
			RevealedAnswer: credited.Answer,
			WordID:         credited.ID,
		}

		solved, err := q.CountSolved(ctx, p.ID)
		if err != nil {
			return err
		}
		all, err := q.CountWords(ctx, p.ID)
		if err != nil {
			return err
		}
		if solved == all {
			res.Completed, err = endPuzzle(ctx, q, p, now)
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Invalidate(code)
	if timeUp {
		logEnded(code, "time_up")
	}
	if res == nil {
		return nil, game.Errorf(game.CodeInvalidState, "game is not in progress")
	}
	log.Info().Str("code", code).Int64("player", playerID).Int64("word", res.WordID).Int("total", res.TotalPoints).Msg("word solved")
	if res.Completed {
		logEnded(code, "all_solved")
	}
	return res, nil
}

// alreadySolved builds the AlreadySolved error, telling the player whether the
// word was theirs.
func alreadySolved(ctx context.Context, q *store.Queries, puzzleID, wordID, playerID int64) error {
	sw, err := q.SolvedWordByWord(ctx, puzzleID, wordID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	if sw != nil && sw.SolvedBy != nil && *sw.SolvedBy == playerID {
		return game.Errorf(game.CodeAlreadySolved, "you already solved this word")
	}
	return game.Errorf(game.CodeAlreadySolved, "this word was already solved by another player")
}

// Leaderboard is the final ranking of a puzzle.
type Leaderboard struct {
	Code    string              `json:"code"`
	Status  game.Status         `json:"status"`
	Entries []leaderboard.Entry `json:"players"`
}

// GetLeaderboard ranks a puzzle's active players from persisted data and
// deactivates the puzzle. Deactivation is one-way.
func (s *Service) GetLeaderboard(ctx context.Context, code string) (*Leaderboard, error) {
	snap, err := s.resolve(ctx, code, s.now())
	if err != nil {
		return nil, err
	}
	q := s.db.Queries()
	st, err := q.Standings(ctx, snap.puzzle.ID)
	if err != nil {
		return nil, err
	}
	if snap.puzzle.Active {
		if err := q.DeactivatePuzzle(ctx, snap.puzzle.ID); err != nil {
			return nil, err
		}
		s.Invalidate(code)
		log.Info().Str("code", code).Msg("puzzle deactivated after leaderboard view")
	}
	return &Leaderboard{
		Code:    code,
		Status:  snap.puzzle.Status,
		Entries: leaderboard.Rank(st),
	}, nil
}
