// internal/game/types.go
//
// Core type definitions for the crossword session model.
// Defines:
//   - Status: lifecycle phase of a puzzle (waiting → in_progress → completed).
//   - Direction: orientation of a placed word (across/down).
//   - Puzzle, Word, Player, SolvedWord: the persisted aggregate (Puzzle is the root).
//   - WordInput: the shape a caller supplies when creating a puzzle.

package game

import "time"

// Status is the lifecycle phase of a puzzle.
type Status string

const (
	StatusWaiting    Status = "waiting"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// Valid reports whether s is one of the known phases.
func (s Status) Valid() bool {
	switch s {
	case StatusWaiting, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// Direction is the orientation of a word in the grid.
type Direction string

const (
	Across Direction = "across"
	Down   Direction = "down"
)

// Puzzle holds one crossword session: grid shape, lifecycle and timing.
type Puzzle struct {
	ID                   int64      // Store identifier.
	Code                 string     // Short join code shared with players.
	Rows                 int        // Grid height (1..MaxRows).
	Cols                 int        // Grid width (1..MaxCols).
	Duration             int        // Game length in minutes.
	Status               Status     // Current lifecycle phase.
	StartTime            *time.Time // Set on start; nil whenever Status is completed.
	WaitingRoomStartTime *time.Time // When the waiting room opened.
	Active               bool       // False once soft-deleted.
	CreatedAt            time.Time
}

// Word is a placed answer with its hint. Answers are stored uppercase.
type Word struct {
	ID        int64
	PuzzleID  int64
	Answer    string
	Hint      string
	Direction Direction
	StartRow  int
	StartCol  int
}

// Player is a participant in a single puzzle.
type Player struct {
	ID          int64
	PuzzleID    int64
	DisplayName string
	Points      int
	Active      bool
	Creator     bool
	JoinedAt    time.Time
	LastSeenAt  time.Time
}

// SolvedWord records the single credited solve of a word.
// SolvedBy is nil once the solving player row is gone.
type SolvedWord struct {
	ID       int64
	PuzzleID int64
	WordID   int64
	SolvedBy *int64
	SolvedAt time.Time
}

// WordInput is a word as supplied by the room creator.
type WordInput struct {
	Word      string    `json:"word"`
	Hint      string    `json:"hint"`
	Direction Direction `json:"direction"`
	StartRow  int       `json:"startRow"`
	StartCol  int       `json:"startCol"`
}
