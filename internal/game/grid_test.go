package game

import (
	"errors"
	"testing"
	"time"
)

func TestNewPuzzleValid(t *testing.T) {
	now := time.Now()
	p, ws, err := NewPuzzle(15, 15, 30, []WordInput{
		{Word: "test", Hint: "A test word", Direction: Across, StartRow: 0, StartCol: 0},
		{Word: "Down", Hint: "Opposite of up", Direction: Down, StartRow: 11, StartCol: 14},
	}, now)
	if err != nil {
		t.Fatalf("new puzzle: %v", err)
	}
	if p.Status != StatusWaiting || !p.Active {
		t.Fatalf("unexpected initial state: %+v", p)
	}
	if len(p.Code) != CodeLength {
		t.Fatalf("expected %d-char code, got %q", CodeLength, p.Code)
	}
	if p.WaitingRoomStartTime == nil {
		t.Fatal("waiting room start must be set at creation")
	}
	if ws[0].Answer != "TEST" || ws[1].Answer != "DOWN" {
		t.Fatalf("answers not normalized: %q %q", ws[0].Answer, ws[1].Answer)
	}
	for _, w := range ws {
		if !w.Fits(p.Rows, p.Cols) {
			t.Fatalf("word %q does not fit", w.Answer)
		}
	}
}

func TestNewPuzzleRejects(t *testing.T) {
	ok := WordInput{Word: "TEST", Hint: "h", Direction: Across}
	cases := []struct {
		name     string
		rows     int
		cols     int
		duration int
		words    []WordInput
	}{
		{"rows too large", 51, 15, 30, []WordInput{ok}},
		{"rows zero", 0, 15, 30, []WordInput{ok}},
		{"cols too large", 15, 51, 30, []WordInput{ok}},
		{"duration short", 15, 15, 4, []WordInput{ok}},
		{"duration long", 15, 15, 121, []WordInput{ok}},
		{"no words", 15, 15, 30, nil},
		{"word too wide", 15, 15, 30, []WordInput{{Word: "TOOLONGWORD", Direction: Across, StartRow: 14, StartCol: 10}}},
		{"word too tall", 15, 15, 30, []WordInput{{Word: "TOOLONGWORD", Direction: Down, StartRow: 10, StartCol: 0}}},
		{"start outside", 15, 15, 30, []WordInput{{Word: "A", Direction: Across, StartRow: 15, StartCol: 0}}},
		{"negative start", 15, 15, 30, []WordInput{{Word: "A", Direction: Across, StartRow: -1, StartCol: 0}}},
		{"digits", 15, 15, 30, []WordInput{{Word: "T3ST", Direction: Across}}},
		{"bad direction", 15, 15, 30, []WordInput{{Word: "TEST", Direction: "diagonal"}}},
		{"second word bad", 15, 15, 30, []WordInput{ok, {Word: "", Direction: Across}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := NewPuzzle(tc.rows, tc.cols, tc.duration, tc.words, time.Now())
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestEveryAcceptedWordFits(t *testing.T) {
	for rows := 1; rows <= 6; rows++ {
		for cols := 1; cols <= 6; cols++ {
			for r := 0; r < rows; r++ {
				for c := 0; c < cols; c++ {
					for n := 1; n <= 7; n++ {
						for _, d := range []Direction{Across, Down} {
							in := WordInput{Word: "ABCDEFG"[:n], Direction: d, StartRow: r, StartCol: c}
							_, ws, err := NewPuzzle(rows, cols, 10, []WordInput{in}, time.Now())
							if err != nil {
								continue
							}
							if !ws[0].Fits(rows, cols) {
								t.Fatalf("accepted word does not fit: %dx%d %+v", rows, cols, in)
							}
						}
					}
				}
			}
		}
	}
}

func TestCodeOf(t *testing.T) {
	if got := CodeOf(Errorf(CodeConflict, "taken")); got != CodeConflict {
		t.Fatalf("CodeOf = %s", got)
	}
	if got := CodeOf(errors.New("boom")); got != CodeInternal {
		t.Fatalf("CodeOf plain error = %s", got)
	}
}
