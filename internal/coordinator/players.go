// internal/coordinator/players.go
//
// Player registry: join, reconnect, leave, ranked player lists.
//
// The first player of a puzzle becomes its creator. The store decides this in
// the same INSERT that adds the row, and a partial unique index keeps it to
// one creator even across processes.

package coordinator

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/robalobadob/crossword/internal/cache"
	"github.com/robalobadob/crossword/internal/game"
	"github.com/robalobadob/crossword/internal/leaderboard"
	"github.com/robalobadob/crossword/internal/store"
	"github.com/robalobadob/crossword/internal/words"
)

// Membership identifies a player admitted to a puzzle.
type Membership struct {
	PlayerID    int64       `json:"player_id"`
	DisplayName string      `json:"display_name"`
	Creator     bool        `json:"is_creator"`
	Status      game.Status `json:"status"`
	Duration    int         `json:"duration"`
}

// JoinSession adds a new player to a puzzle that has not finished.
func (s *Service) JoinSession(ctx context.Context, code, displayName string) (*Membership, error) {
	name := words.NormalizeDisplayName(displayName)
	if !words.ValidDisplayName(name) {
		return nil, game.Errorf(game.CodeValidation,
			"display name must be 1-%d letters, digits, spaces, underscores or hyphens", words.MaxDisplayNameLength)
	}

	// Let a pending time-up land before deciding whether the game is over.
	if _, err := s.resolve(ctx, code, s.now()); err != nil {
		return nil, err
	}

	var (
		p  *game.Puzzle
		pl *game.Player
	)
	err := s.db.InTx(ctx, func(q *store.Queries) error {
		var err error
		if p, err = activePuzzle(ctx, q, code); err != nil {
			return err
		}
		if p.Status == game.StatusCompleted {
			return game.Errorf(game.CodeInvalidState, "game has already ended")
		}
		now := s.now()
		pl = &game.Player{PuzzleID: p.ID, DisplayName: name, JoinedAt: now}
		if err := q.InsertPlayer(ctx, pl); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return &game.Error{Code: game.CodeConflict, Message: "this name is already taken in this puzzle", Cause: err}
			}
			return err
		}
		return q.EnsureWaitingRoomStart(ctx, p.ID, now)
	})
	if err != nil {
		return nil, err
	}

	s.Invalidate(code)
	log.Info().Str("code", code).Int64("player", pl.ID).Bool("creator", pl.Creator).Msg("player joined")
	return &Membership{
		PlayerID:    pl.ID,
		DisplayName: pl.DisplayName,
		Creator:     pl.Creator,
		Status:      p.Status,
		Duration:    p.Duration,
	}, nil
}

// Reconnect reactivates a player that dropped out, found by display name.
func (s *Service) Reconnect(ctx context.Context, code, displayName string) (*Membership, error) {
	name := words.NormalizeDisplayName(displayName)
	if name == "" {
		return nil, game.Errorf(game.CodeValidation, "display name is required")
	}

	q := s.db.Queries()
	p, err := activePuzzle(ctx, q, code)
	if err != nil {
		return nil, err
	}
	pl, err := q.PlayerByName(ctx, p.ID, name)
	if err != nil {
		return nil, notFound(err, "player not found")
	}
	if pl.Active {
		return nil, game.Errorf(game.CodeNotFound, "player not found")
	}
	ok, err := q.SetPlayerActive(ctx, pl.ID, true, s.now())
	if err != nil {
		return nil, err
	}
	if !ok {
		// Someone else reconnected this player first.
		return nil, game.Errorf(game.CodeNotFound, "player not found")
	}

	s.Invalidate(code)
	log.Info().Str("code", code).Int64("player", pl.ID).Msg("player reconnected")
	return &Membership{
		PlayerID:    pl.ID,
		DisplayName: pl.DisplayName,
		Creator:     pl.Creator,
		Status:      p.Status,
		Duration:    p.Duration,
	}, nil
}

// MarkInactive marks a player as gone. Repeated calls are no-ops.
func (s *Service) MarkInactive(ctx context.Context, playerID int64) error {
	q := s.db.Queries()
	pl, err := q.PlayerByID(ctx, playerID)
	if err != nil {
		return notFound(err, "player not found")
	}
	changed, err := q.SetPlayerActive(ctx, playerID, false, s.now())
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	if p, err := q.PuzzleByID(ctx, pl.PuzzleID); err == nil {
		s.Invalidate(p.Code)
	}
	log.Info().Int64("player", playerID).Msg("player marked inactive")
	return nil
}

// GetPlayers returns the ranked active players of a puzzle.
func (s *Service) GetPlayers(ctx context.Context, code string) ([]leaderboard.Entry, error) {
	snap, err := s.resolve(ctx, code, s.now())
	if err != nil {
		return nil, err
	}
	v, err := s.cache.GetOrLoad(ctx, cache.PlayersKey(code), func(ctx context.Context) (any, error) {
		st, err := s.db.Queries().Standings(ctx, snap.puzzle.ID)
		if err != nil {
			return nil, err
		}
		return leaderboard.Rank(st), nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]leaderboard.Entry), nil
}
