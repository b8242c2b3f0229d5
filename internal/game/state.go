// internal/game/state.go
//
// Session state machine for a single puzzle.
//
// State transitions (no skips, no way back):
//   waiting ──Start──▶ in_progress ──End──▶ completed
//
// Timing:
//   - TimeRemaining is only defined while in_progress: duration*60 - elapsed, floored at 0.
//   - A waiting room left alone for AutoStartAfter is started by the next read (Reconcile).
//   - An in_progress game whose time is up is ended by the next read (Reconcile).
//
// These methods only mutate the in-memory value; callers persist the result
// with a compare-and-set on the previous status.

package game

import "time"

// AutoStartAfter is how long a waiting room may sit idle before it starts on its own.
const AutoStartAfter = 50 * time.Second

// Start moves a waiting puzzle to in_progress and stamps the start time.
func (p *Puzzle) Start(now time.Time) error {
	if p.Status != StatusWaiting {
		return Errorf(CodeInvalidState, "game can only be started from waiting status")
	}
	t := now.UTC()
	p.Status = StatusInProgress
	p.StartTime = &t
	return nil
}

// End completes an in_progress puzzle. StartTime is cleared so that a
// completed puzzle never carries one.
func (p *Puzzle) End() error {
	if p.Status != StatusInProgress {
		return Errorf(CodeInvalidState, "only in-progress games can be ended")
	}
	p.Status = StatusCompleted
	p.StartTime = nil
	return nil
}

// CanStart checks that requester is the earliest-joined player and the puzzle is still waiting.
func (p *Puzzle) CanStart(requesterID, earliestID int64) error {
	if earliestID == 0 || requesterID != earliestID {
		return Errorf(CodePermissionDenied, "only the first player can start the game")
	}
	if p.Status != StatusWaiting {
		return Errorf(CodeInvalidState, "game already started")
	}
	return nil
}

// TimeRemaining returns the time left and true while in_progress; otherwise false.
func (p *Puzzle) TimeRemaining(now time.Time) (time.Duration, bool) {
	if p.Status != StatusInProgress || p.StartTime == nil {
		return 0, false
	}
	left := time.Duration(p.Duration)*time.Minute - now.Sub(*p.StartTime)
	if left < 0 {
		left = 0
	}
	return left, true
}

// Expired reports an in_progress puzzle whose clock has run out.
func (p *Puzzle) Expired(now time.Time) bool {
	left, ok := p.TimeRemaining(now)
	return ok && left == 0
}

// AutoStartDue reports a waiting room that has been open for at least after.
func (p *Puzzle) AutoStartDue(now time.Time, after time.Duration) bool {
	if p.Status != StatusWaiting || p.WaitingRoomStartTime == nil {
		return false
	}
	return now.Sub(*p.WaitingRoomStartTime) >= after
}

// Transition is a lazy state change a read path must apply before answering.
type Transition int

const (
	NoTransition Transition = iota
	AutoStart
	TimeUp
)

// Reconcile tells a read path which pending transition applies at now.
// A waiting room past its threshold starts; an in_progress game out of time ends.
func (p *Puzzle) Reconcile(now time.Time, autoStartAfter time.Duration) Transition {
	switch {
	case p.AutoStartDue(now, autoStartAfter):
		return AutoStart
	case p.Expired(now):
		return TimeUp
	}
	return NoTransition
}
