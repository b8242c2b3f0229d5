// internal/store/queries.go
//
// Row-level operations on puzzles, words, players and solved words.
// Every method runs on a Querier, so the same code serves plain reads on the
// pool and multi-statement units of work inside DB.InTx.
//
// Uniqueness (join code, display name per puzzle, one solve per word, one
// creator per puzzle) is enforced by the schema; violations surface as
// ErrDuplicate and are the only "already exists" signal.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/robalobadob/crossword/internal/game"
	"github.com/robalobadob/crossword/internal/leaderboard"
)

// Querier is satisfied by both *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Queries groups the store operations over one Querier.
type Queries struct {
	q Querier
}

// ------------------------------- puzzles -----------------------------------

const puzzleColumns = `id, code, grid_rows, grid_cols, duration_minutes, status,
	start_time, waiting_room_start_time, is_active, created_at`

// InsertPuzzle stores p and sets p.ID. A code collision returns ErrDuplicate.
func (s *Queries) InsertPuzzle(ctx context.Context, p *game.Puzzle) error {
	err := s.q.QueryRowContext(ctx, `
		INSERT INTO puzzles (code, grid_rows, grid_cols, duration_minutes, status,
		                     start_time, waiting_room_start_time, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`,
		p.Code, p.Rows, p.Cols, p.Duration, string(p.Status),
		nullTime(p.StartTime), nullTime(p.WaitingRoomStartTime), p.Active, nanos(p.CreatedAt),
	).Scan(&p.ID)
	if isUniqueConstraintErr(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert puzzle: %w", err)
	}
	return nil
}

// PuzzleByCode loads a puzzle by join code, active or not.
func (s *Queries) PuzzleByCode(ctx context.Context, code string) (*game.Puzzle, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+puzzleColumns+` FROM puzzles WHERE code=?`, code)
	return scanPuzzle(row)
}

// PuzzleByID loads a puzzle by id.
func (s *Queries) PuzzleByID(ctx context.Context, id int64) (*game.Puzzle, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+puzzleColumns+` FROM puzzles WHERE id=?`, id)
	return scanPuzzle(row)
}

// UpdatePuzzleState persists a state-machine transition with a compare-and-set
// on the previous status. It reports false when another writer moved first.
func (s *Queries) UpdatePuzzleState(ctx context.Context, p *game.Puzzle, from game.Status, now time.Time) (bool, error) {
	var completedAt any
	if p.Status == game.StatusCompleted {
		completedAt = nanos(now)
	}
	res, err := s.q.ExecContext(ctx, `
		UPDATE puzzles SET status=?, start_time=?, completed_at=COALESCE(?, completed_at)
		WHERE id=? AND status=?`,
		string(p.Status), nullTime(p.StartTime), completedAt, p.ID, string(from),
	)
	if err != nil {
		return false, fmt.Errorf("update puzzle state: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// EnsureWaitingRoomStart sets waiting_room_start_time if it is still unset.
func (s *Queries) EnsureWaitingRoomStart(ctx context.Context, puzzleID int64, now time.Time) error {
	_, err := s.q.ExecContext(ctx,
		`UPDATE puzzles SET waiting_room_start_time=? WHERE id=? AND waiting_room_start_time IS NULL`,
		nanos(now), puzzleID)
	if err != nil {
		return fmt.Errorf("set waiting room start: %w", err)
	}
	return nil
}

// DeactivatePuzzle soft-deletes a puzzle. Idempotent.
func (s *Queries) DeactivatePuzzle(ctx context.Context, puzzleID int64) error {
	if _, err := s.q.ExecContext(ctx, `UPDATE puzzles SET is_active=0 WHERE id=?`, puzzleID); err != nil {
		return fmt.Errorf("deactivate puzzle: %w", err)
	}
	return nil
}

// DeactivateCompletedBefore soft-deletes completed puzzles created before cutoff.
func (s *Queries) DeactivateCompletedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.q.ExecContext(ctx, `
		UPDATE puzzles SET is_active=0
		WHERE status='completed' AND is_active=1 AND created_at < ?`, nanos(cutoff))
	if err != nil {
		return 0, fmt.Errorf("deactivate completed puzzles: %w", err)
	}
	return res.RowsAffected()
}

// ActiveInProgress lists active puzzles currently in progress.
func (s *Queries) ActiveInProgress(ctx context.Context) ([]game.Puzzle, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT `+puzzleColumns+`
		FROM puzzles WHERE status='in_progress' AND is_active=1 ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list in-progress puzzles: %w", err)
	}
	defer rows.Close()

	var out []game.Puzzle
	for rows.Next() {
		p, err := scanPuzzle(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPuzzle(row rowScanner) (*game.Puzzle, error) {
	var (
		p                game.Puzzle
		status           string
		start, waitStart sql.NullInt64
		created          int64
	)
	err := row.Scan(&p.ID, &p.Code, &p.Rows, &p.Cols, &p.Duration, &status,
		&start, &waitStart, &p.Active, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan puzzle: %w", err)
	}
	p.Status = game.Status(status)
	p.StartTime = timePtr(start)
	p.WaitingRoomStartTime = timePtr(waitStart)
	p.CreatedAt = fromNanos(created)
	return &p, nil
}

// -------------------------------- words ------------------------------------

// InsertWord stores w and sets w.ID.
func (s *Queries) InsertWord(ctx context.Context, w *game.Word) error {
	err := s.q.QueryRowContext(ctx, `
		INSERT INTO words (puzzle_id, answer, hint, direction, start_row, start_col)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id`,
		w.PuzzleID, w.Answer, w.Hint, string(w.Direction), w.StartRow, w.StartCol,
	).Scan(&w.ID)
	if err != nil {
		return fmt.Errorf("insert word: %w", err)
	}
	return nil
}

// Words lists a puzzle's words in creation order.
func (s *Queries) Words(ctx context.Context, puzzleID int64) ([]game.Word, error) {
	return s.queryWords(ctx, `SELECT id, puzzle_id, answer, hint, direction, start_row, start_col
		FROM words WHERE puzzle_id=? ORDER BY id`, puzzleID)
}

// WordsByAnswer lists the words of a puzzle whose answer equals the normalized guess.
func (s *Queries) WordsByAnswer(ctx context.Context, puzzleID int64, answer string) ([]game.Word, error) {
	return s.queryWords(ctx, `SELECT id, puzzle_id, answer, hint, direction, start_row, start_col
		FROM words WHERE puzzle_id=? AND answer=? ORDER BY id`, puzzleID, answer)
}

// CountWords returns the number of words in a puzzle.
func (s *Queries) CountWords(ctx context.Context, puzzleID int64) (int, error) {
	var n int
	if err := s.q.QueryRowContext(ctx, `SELECT COUNT(1) FROM words WHERE puzzle_id=?`, puzzleID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count words: %w", err)
	}
	return n, nil
}

func (s *Queries) queryWords(ctx context.Context, query string, args ...any) ([]game.Word, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query words: %w", err)
	}
	defer rows.Close()

	var out []game.Word
	for rows.Next() {
		var w game.Word
		var dir string
		if err := rows.Scan(&w.ID, &w.PuzzleID, &w.Answer, &w.Hint, &dir, &w.StartRow, &w.StartCol); err != nil {
			return nil, fmt.Errorf("scan word: %w", err)
		}
		w.Direction = game.Direction(dir)
		out = append(out, w)
	}
	return out, rows.Err()
}

// ------------------------------- players -----------------------------------

const playerColumns = `id, puzzle_id, display_name, points, is_active, is_creator, joined_at, last_seen_at`

/**
 * InsertPlayer adds an active, zero-point player and sets p.ID and p.Creator.
 *
 * - The creator flag is decided inside the same INSERT (no other player row yet).
 * - UNIQUE(puzzle_id, display_name) and the one-creator index turn a lost race
 *   into ErrDuplicate instead of a second row.
 */
func (s *Queries) InsertPlayer(ctx context.Context, p *game.Player) error {
	err := s.q.QueryRowContext(ctx, `
		INSERT INTO players (puzzle_id, display_name, points, is_active, is_creator, joined_at, last_seen_at)
		SELECT ?, ?, 0, 1, NOT EXISTS (SELECT 1 FROM players WHERE puzzle_id = ?), ?, ?
		RETURNING id, is_creator`,
		p.PuzzleID, p.DisplayName, p.PuzzleID, nanos(p.JoinedAt), nanos(p.JoinedAt),
	).Scan(&p.ID, &p.Creator)
	if isUniqueConstraintErr(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert player: %w", err)
	}
	p.Active = true
	p.Points = 0
	p.LastSeenAt = p.JoinedAt
	return nil
}

// PlayerByID loads a player.
func (s *Queries) PlayerByID(ctx context.Context, id int64) (*game.Player, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+playerColumns+` FROM players WHERE id=?`, id)
	return scanPlayer(row)
}

// PlayerByName loads a player of a puzzle by display name.
func (s *Queries) PlayerByName(ctx context.Context, puzzleID int64, name string) (*game.Player, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT `+playerColumns+` FROM players WHERE puzzle_id=? AND display_name=?`, puzzleID, name)
	return scanPlayer(row)
}

// Players lists every player of a puzzle in join order.
func (s *Queries) Players(ctx context.Context, puzzleID int64) ([]game.Player, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT `+playerColumns+` FROM players WHERE puzzle_id=? ORDER BY joined_at, id`, puzzleID)
	if err != nil {
		return nil, fmt.Errorf("list players: %w", err)
	}
	defer rows.Close()

	var out []game.Player
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// EarliestPlayerID returns the first player to join a puzzle, or 0 if none.
func (s *Queries) EarliestPlayerID(ctx context.Context, puzzleID int64) (int64, error) {
	var id int64
	err := s.q.QueryRowContext(ctx,
		`SELECT id FROM players WHERE puzzle_id=? ORDER BY joined_at, id LIMIT 1`, puzzleID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("earliest player: %w", err)
	}
	return id, nil
}

// SetPlayerActive flips is_active; activating also refreshes last_seen_at.
// It reports whether a row changed.
func (s *Queries) SetPlayerActive(ctx context.Context, playerID int64, active bool, now time.Time) (bool, error) {
	var (
		res sql.Result
		err error
	)
	if active {
		res, err = s.q.ExecContext(ctx,
			`UPDATE players SET is_active=1, last_seen_at=? WHERE id=? AND is_active=0`, nanos(now), playerID)
	} else {
		res, err = s.q.ExecContext(ctx, `UPDATE players SET is_active=0 WHERE id=? AND is_active=1`, playerID)
	}
	if err != nil {
		return false, fmt.Errorf("set player active: %w", err)
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// TouchPlayer records activity from a player.
func (s *Queries) TouchPlayer(ctx context.Context, playerID int64, now time.Time) error {
	if _, err := s.q.ExecContext(ctx, `UPDATE players SET last_seen_at=? WHERE id=?`, nanos(now), playerID); err != nil {
		return fmt.Errorf("touch player: %w", err)
	}
	return nil
}

// AddPoints atomically adds n (>= 0) to a player's points and returns the new total.
func (s *Queries) AddPoints(ctx context.Context, playerID int64, n int) (int, error) {
	if n < 0 {
		return 0, game.Errorf(game.CodeInvalidArgument, "cannot add negative points")
	}
	var total int
	err := s.q.QueryRowContext(ctx,
		`UPDATE players SET points = points + ? WHERE id=? RETURNING points`, n, playerID).Scan(&total)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("add points: %w", err)
	}
	return total, nil
}

// DeactivateStalePlayers marks active players of a puzzle inactive when their
// last activity predates cutoff.
func (s *Queries) DeactivateStalePlayers(ctx context.Context, puzzleID int64, cutoff time.Time) (int64, error) {
	res, err := s.q.ExecContext(ctx, `
		UPDATE players SET is_active=0
		WHERE puzzle_id=? AND is_active=1 AND last_seen_at < ?`, puzzleID, nanos(cutoff))
	if err != nil {
		return 0, fmt.Errorf("deactivate stale players: %w", err)
	}
	return res.RowsAffected()
}

// CountActivePlayers returns the number of active players in a puzzle.
func (s *Queries) CountActivePlayers(ctx context.Context, puzzleID int64) (int, error) {
	var n int
	err := s.q.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM players WHERE puzzle_id=? AND is_active=1`, puzzleID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count active players: %w", err)
	}
	return n, nil
}

/**
 * Standings returns the active players of a puzzle with the timestamp of
 * their most recent solve (the moment they reached their current score).
 * Rows come back unordered; leaderboard.Rank owns the ordering.
 */
func (s *Queries) Standings(ctx context.Context, puzzleID int64) ([]leaderboard.Standing, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT p.id, p.display_name, p.points, p.is_creator, p.joined_at,
		       (SELECT MAX(sw.solved_at) FROM solved_words sw WHERE sw.solved_by = p.id)
		FROM players p
		WHERE p.puzzle_id=? AND p.is_active=1`, puzzleID)
	if err != nil {
		return nil, fmt.Errorf("query standings: %w", err)
	}
	defer rows.Close()

	var out []leaderboard.Standing
	for rows.Next() {
		var (
			st     leaderboard.Standing
			joined int64
			last   sql.NullInt64
		)
		if err := rows.Scan(&st.PlayerID, &st.DisplayName, &st.Points, &st.Creator, &joined, &last); err != nil {
			return nil, fmt.Errorf("scan standing: %w", err)
		}
		st.JoinedAt = fromNanos(joined)
		st.LastSolveAt = timePtr(last)
		out = append(out, st)
	}
	return out, rows.Err()
}

func scanPlayer(row rowScanner) (*game.Player, error) {
	var (
		p            game.Player
		joined, seen int64
	)
	err := row.Scan(&p.ID, &p.PuzzleID, &p.DisplayName, &p.Points, &p.Active, &p.Creator, &joined, &seen)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan player: %w", err)
	}
	p.JoinedAt = fromNanos(joined)
	p.LastSeenAt = fromNanos(seen)
	return &p, nil
}

// ----------------------------- solved words --------------------------------

// InsertSolvedWord records the single solve of a word and sets sw.ID.
// A second solve of the same (puzzle, word) returns ErrDuplicate.
func (s *Queries) InsertSolvedWord(ctx context.Context, sw *game.SolvedWord) error {
	var solver any
	if sw.SolvedBy != nil {
		solver = *sw.SolvedBy
	}
	err := s.q.QueryRowContext(ctx, `
		INSERT INTO solved_words (puzzle_id, word_id, solved_by, solved_at)
		VALUES (?, ?, ?, ?)
		RETURNING id`,
		sw.PuzzleID, sw.WordID, solver, nanos(sw.SolvedAt),
	).Scan(&sw.ID)
	if isUniqueConstraintErr(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert solved word: %w", err)
	}
	return nil
}

// SolvedWords lists a puzzle's solves in solve order.
func (s *Queries) SolvedWords(ctx context.Context, puzzleID int64) ([]game.SolvedWord, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, puzzle_id, word_id, solved_by, solved_at
		FROM solved_words WHERE puzzle_id=? ORDER BY solved_at, id`, puzzleID)
	if err != nil {
		return nil, fmt.Errorf("query solved words: %w", err)
	}
	defer rows.Close()

	var out []game.SolvedWord
	for rows.Next() {
		var (
			sw     game.SolvedWord
			solver sql.NullInt64
			at     int64
		)
		if err := rows.Scan(&sw.ID, &sw.PuzzleID, &sw.WordID, &solver, &at); err != nil {
			return nil, fmt.Errorf("scan solved word: %w", err)
		}
		if solver.Valid {
			id := solver.Int64
			sw.SolvedBy = &id
		}
		sw.SolvedAt = fromNanos(at)
		out = append(out, sw)
	}
	return out, rows.Err()
}

// SolvedWordByWord returns the solve record of a word, if any.
func (s *Queries) SolvedWordByWord(ctx context.Context, puzzleID, wordID int64) (*game.SolvedWord, error) {
	var (
		sw     game.SolvedWord
		solver sql.NullInt64
		at     int64
	)
	err := s.q.QueryRowContext(ctx, `
		SELECT id, puzzle_id, word_id, solved_by, solved_at
		FROM solved_words WHERE puzzle_id=? AND word_id=?`, puzzleID, wordID,
	).Scan(&sw.ID, &sw.PuzzleID, &sw.WordID, &solver, &at)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("solved word: %w", err)
	}
	if solver.Valid {
		id := solver.Int64
		sw.SolvedBy = &id
	}
	sw.SolvedAt = fromNanos(at)
	return &sw, nil
}

// CountSolved returns the number of distinct solved words in a puzzle.
func (s *Queries) CountSolved(ctx context.Context, puzzleID int64) (int, error) {
	var n int
	err := s.q.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT word_id) FROM solved_words WHERE puzzle_id=?`, puzzleID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count solved: %w", err)
	}
	return n, nil
}

// ------------------------------ time helpers -------------------------------

func nanos(t time.Time) int64 { return t.UTC().UnixNano() }

func fromNanos(n int64) time.Time { return time.Unix(0, n).UTC() }

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return nanos(*t)
}

func timePtr(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := fromNanos(n.Int64)
	return &t
}
