// internal/game/grid.go
//
// Puzzle grid model: bounds, word placement rules and join codes.
// Responsibilities:
//   - Validate grid dimensions and duration against fixed limits.
//   - Validate every word (letters only, fits inside the grid in its direction).
//   - Build the immutable Puzzle/Word values handed to the store.
//
// A creation request is all-or-nothing: the first invalid word rejects the
// whole request before anything is persisted.

package game

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/robalobadob/crossword/internal/words"
)

const (
	MaxRows     = 50
	MaxCols     = 50
	MinDuration = 5   // minutes
	MaxDuration = 120 // minutes
	MinWords    = 1

	// CodeLength is the number of characters in a join code.
	CodeLength = 8
)

// NewCode returns a short join code (the first block of a random UUID).
func NewCode() string {
	return uuid.NewString()[:CodeLength]
}

// NewPuzzle validates a creation request and returns the puzzle and its words,
// ready to persist. Answers are normalized to uppercase.
func NewPuzzle(rows, cols, duration int, in []WordInput, now time.Time) (*Puzzle, []Word, error) {
	if rows < 1 || rows > MaxRows {
		return nil, nil, Errorf(CodeValidation, "rows must be between 1 and %d", MaxRows)
	}
	if cols < 1 || cols > MaxCols {
		return nil, nil, Errorf(CodeValidation, "cols must be between 1 and %d", MaxCols)
	}
	if duration < MinDuration || duration > MaxDuration {
		return nil, nil, Errorf(CodeValidation, "duration must be between %d and %d minutes", MinDuration, MaxDuration)
	}
	if len(in) < MinWords {
		return nil, nil, Errorf(CodeValidation, "puzzle must have at least %d word(s)", MinWords)
	}

	out := make([]Word, 0, len(in))
	for i, w := range in {
		word, err := placeWord(rows, cols, w)
		if err != nil {
			err.Message = "word " + strconv.Itoa(i+1) + ": " + err.Message
			return nil, nil, err
		}
		out = append(out, word)
	}

	start := now.UTC()
	p := &Puzzle{
		Code:                 NewCode(),
		Rows:                 rows,
		Cols:                 cols,
		Duration:             duration,
		Status:               StatusWaiting,
		WaitingRoomStartTime: &start,
		Active:               true,
		CreatedAt:            start,
	}
	return p, out, nil
}

// placeWord checks one word against the grid and returns its normalized form.
func placeWord(rows, cols int, in WordInput) (Word, *Error) {
	raw := strings.TrimSpace(in.Word)
	if !words.ValidAnswer(raw) {
		return Word{}, Errorf(CodeValidation, "word must contain only letters (max %d)", words.MaxWordLength)
	}
	if len(in.Hint) > words.MaxHintLength {
		return Word{}, Errorf(CodeValidation, "hint exceeds %d characters", words.MaxHintLength)
	}
	if in.StartRow < 0 || in.StartRow >= rows {
		return Word{}, Errorf(CodeValidation, "starting row position exceeds puzzle dimensions")
	}
	if in.StartCol < 0 || in.StartCol >= cols {
		return Word{}, Errorf(CodeValidation, "starting column position exceeds puzzle dimensions")
	}
	n := len(raw)
	switch in.Direction {
	case Across:
		if in.StartCol+n > cols {
			return Word{}, Errorf(CodeValidation, "word extends beyond puzzle width")
		}
	case Down:
		if in.StartRow+n > rows {
			return Word{}, Errorf(CodeValidation, "word extends beyond puzzle height")
		}
	default:
		return Word{}, Errorf(CodeValidation, "direction must be %q or %q", Across, Down)
	}
	return Word{
		Answer:    words.Normalize(raw),
		Hint:      in.Hint,
		Direction: in.Direction,
		StartRow:  in.StartRow,
		StartCol:  in.StartCol,
	}, nil
}

// Fits reports whether w lies fully inside a rows×cols grid.
func (w Word) Fits(rows, cols int) bool {
	if w.StartRow < 0 || w.StartCol < 0 || w.StartRow >= rows || w.StartCol >= cols {
		return false
	}
	switch w.Direction {
	case Across:
		return w.StartCol+len(w.Answer) <= cols
	case Down:
		return w.StartRow+len(w.Answer) <= rows
	}
	return false
}
