// internal/coordinator/sessions.go
//
// Session lifecycle operations: create, start, view.

package coordinator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/robalobadob/crossword/internal/game"
	"github.com/robalobadob/crossword/internal/store"
)

// CreateRequest is the input of CreateSession.
type CreateRequest struct {
	Rows     int              `json:"rows"`
	Cols     int              `json:"cols"`
	Duration int              `json:"duration"`
	Words    []game.WordInput `json:"words"`
}

// CreateSession validates a puzzle and persists it with its words in one
// transaction. It returns the join code.
func (s *Service) CreateSession(ctx context.Context, req CreateRequest) (string, error) {
	for attempt := 0; attempt < maxCodeRetries; attempt++ {
		p, words, err := game.NewPuzzle(req.Rows, req.Cols, req.Duration, req.Words, s.now())
		if err != nil {
			return "", err
		}

		err = s.db.InTx(ctx, func(q *store.Queries) error {
			if err := q.InsertPuzzle(ctx, p); err != nil {
				return err
			}
			for i := range words {
				words[i].PuzzleID = p.ID
				if err := q.InsertWord(ctx, &words[i]); err != nil {
					return err
				}
			}
			return nil
		})
		if errors.Is(err, store.ErrDuplicate) {
			log.Warn().Str("code", p.Code).Int("attempt", attempt+1).Msg("join code collision, retrying")
			continue
		}
		if err != nil {
			return "", fmt.Errorf("create session: %w", err)
		}

		log.Info().Str("code", p.Code).Int("words", len(words)).Int("duration", p.Duration).Msg("puzzle created")
		return p.Code, nil
	}
	return "", fmt.Errorf("create session: no unique code after %d attempts", maxCodeRetries)
}

// StartResult is returned by StartSession.
type StartResult struct {
	StartTime time.Time   `json:"start_time"`
	Status    game.Status `json:"status"`
}

// StartSession starts a waiting puzzle on behalf of its earliest-joined player.
func (s *Service) StartSession(ctx context.Context, code string, playerID int64) (*StartResult, error) {
	var p *game.Puzzle
	err := s.db.InTx(ctx, func(q *store.Queries) error {
		var err error
		if p, err = activePuzzle(ctx, q, code); err != nil {
			return err
		}
		if _, err := playerIn(ctx, q, p.ID, playerID); err != nil {
			return err
		}
		earliest, err := q.EarliestPlayerID(ctx, p.ID)
		if err != nil {
			return err
		}
		if err := p.CanStart(playerID, earliest); err != nil {
			return err
		}
		now := s.now()
		if err := p.Start(now); err != nil {
			return err
		}
		ok, err := q.UpdatePuzzleState(ctx, p, game.StatusWaiting, now)
		if err != nil {
			return err
		}
		if !ok {
			return game.Errorf(game.CodeInvalidState, "game already started")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Invalidate(code)
	log.Info().Str("code", code).Int64("player", playerID).Bool("auto", false).Msg("game started")
	return &StartResult{StartTime: *p.StartTime, Status: p.Status}, nil
}

// WordView is a word as shown to players. Answer is empty until the word is
// solved or the game is over.
type WordView struct {
	ID        int64          `json:"id"`
	Answer    string         `json:"word,omitempty"`
	Length    int            `json:"length"`
	Hint      string         `json:"hint"`
	Direction game.Direction `json:"direction"`
	StartRow  int            `json:"start_row"`
	StartCol  int            `json:"start_col"`
	Solved    bool           `json:"solved"`
}

// PlayerView is a player as shown in a session view.
type PlayerView struct {
	ID          int64  `json:"id"`
	DisplayName string `json:"display_name"`
	Points      int    `json:"points"`
	Creator     bool   `json:"is_creator"`
}

// SolvedView is one credited solve.
type SolvedView struct {
	WordID   int64     `json:"word_id"`
	Answer   string    `json:"word"`
	SolvedBy *int64    `json:"solved_by,omitempty"`
	SolvedAt time.Time `json:"solved_at"`
}

// SessionView is everything a player's client needs to render a puzzle.
type SessionView struct {
	Code                 string       `json:"code"`
	Rows                 int          `json:"rows"`
	Cols                 int          `json:"cols"`
	Status               game.Status  `json:"status"`
	Duration             int          `json:"duration"`
	Active               bool         `json:"is_active"`
	StartTime            *time.Time   `json:"start_time"`
	TimeRemaining        *int         `json:"time_remaining"` // seconds; nil unless in progress
	WaitingRoomStartTime *time.Time   `json:"waiting_room_start_time"`
	PlayerID             int64        `json:"player_id"`
	Words                []WordView   `json:"words"`
	Players              []PlayerView `json:"players"`
	SolvedWords          []SolvedView `json:"solved_words"`
}

// GetSessionView returns a player's view of a puzzle. Reading applies any due
// auto-start or time-up transition first and records the player as seen.
func (s *Service) GetSessionView(ctx context.Context, code string, playerID int64) (*SessionView, error) {
	now := s.now()
	snap, err := s.resolve(ctx, code, now)
	if err != nil {
		return nil, err
	}
	q := s.db.Queries()
	if _, err := playerIn(ctx, q, snap.puzzle.ID, playerID); err != nil {
		return nil, err
	}
	if err := q.TouchPlayer(ctx, playerID, now); err != nil {
		return nil, err
	}
	return snap.view(playerID, now), nil
}

func (snap *snapshot) view(playerID int64, now time.Time) *SessionView {
	p := snap.puzzle
	v := &SessionView{
		Code:                 p.Code,
		Rows:                 p.Rows,
		Cols:                 p.Cols,
		Status:               p.Status,
		Duration:             p.Duration,
		Active:               p.Active,
		StartTime:            p.StartTime,
		WaitingRoomStartTime: p.WaitingRoomStartTime,
		PlayerID:             playerID,
		Words:                make([]WordView, 0, len(snap.words)),
		Players:              make([]PlayerView, 0, len(snap.players)),
		SolvedWords:          make([]SolvedView, 0, len(snap.solved)),
	}
	if left, ok := p.TimeRemaining(now); ok {
		secs := int(math.Ceil(left.Seconds()))
		v.TimeRemaining = &secs
	}

	answers := make(map[int64]string, len(snap.words))
	solved := make(map[int64]bool, len(snap.solved))
	for _, sw := range snap.solved {
		solved[sw.WordID] = true
	}
	for _, w := range snap.words {
		answers[w.ID] = w.Answer
		wv := WordView{
			ID:        w.ID,
			Length:    len(w.Answer),
			Hint:      w.Hint,
			Direction: w.Direction,
			StartRow:  w.StartRow,
			StartCol:  w.StartCol,
			Solved:    solved[w.ID],
		}
		if wv.Solved || p.Status == game.StatusCompleted {
			wv.Answer = w.Answer
		}
		v.Words = append(v.Words, wv)
	}
	for _, sw := range snap.solved {
		v.SolvedWords = append(v.SolvedWords, SolvedView{
			WordID:   sw.WordID,
			Answer:   answers[sw.WordID],
			SolvedBy: sw.SolvedBy,
			SolvedAt: sw.SolvedAt,
		})
	}
	for _, pl := range snap.players {
		if !pl.Active {
			continue
		}
		v.Players = append(v.Players, PlayerView{
			ID:          pl.ID,
			DisplayName: pl.DisplayName,
			Points:      pl.Points,
			Creator:     pl.Creator,
		})
	}
	return v
}

// EndGame force-ends an in_progress puzzle. It reports whether this call ended it.
func (s *Service) EndGame(ctx context.Context, p game.Puzzle, reason string) (bool, error) {
	ok, err := endPuzzle(ctx, s.db.Queries(), &p, s.now())
	if err != nil {
		return false, err
	}
	s.Invalidate(p.Code)
	if ok {
		logEnded(p.Code, reason)
	}
	return ok, nil
}
