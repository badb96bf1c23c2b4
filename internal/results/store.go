// internal/results/store.go
//
// Finished-round history and per-user stats, backed by SQLite.
// Only results are stored here; live rounds stay in the session store.

package results

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Round is one finished round.
type Round struct {
	SessionID   string    `json:"sessionId"`
	Round       uint64    `json:"round"`
	UserID      string    `json:"-"`
	AnonymousID string    `json:"-"`
	Mode        string    `json:"mode"`
	StartedAt   time.Time `json:"startedAt"`
	FinishedAt  time.Time `json:"finishedAt"`
	Revealed    int       `json:"revealed"`
	Hits        int       `json:"hits"`
}

// Perfect reports whether every reveal of the round found a pattern tile.
func (r Round) Perfect() bool { return r.Revealed > 0 && r.Hits == r.Revealed }

// Stats are the per-user counters kept on the users row.
type Stats struct {
	RoundsPlayed  int `json:"roundsPlayed"`
	PerfectRounds int `json:"perfectRounds"`
	Streak        int `json:"streak"`
	TotalHits     int `json:"totalHits"`
}

type Store struct{ db *sql.DB }

func NewStore(db *sql.DB) *Store { return &Store{db: db} }

// Record inserts r and, for signed-in owners, bumps their stats in the same
// transaction. A round already recorded is ignored and reports false.
func (s *Store) Record(ctx context.Context, r Round) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
        INSERT OR IGNORE INTO rounds
            (session_id, round, user_id, anonymous_id, mode, started_at, finished_at, revealed, hits)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.SessionID, r.Round, nullable(r.UserID), nullable(r.AnonymousID), r.Mode,
		r.StartedAt.UTC().Format(time.RFC3339Nano), r.FinishedAt.UTC().Format(time.RFC3339Nano),
		r.Revealed, r.Hits,
	)
	if err != nil {
		return false, fmt.Errorf("insert round: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return false, nil
	}

	if r.UserID != "" {
		if err := bumpStats(ctx, tx, r.UserID, r); err != nil {
			return false, fmt.Errorf("bump stats: %w", err)
		}
	}
	return true, tx.Commit()
}

// bumpStats increments rounds played and hits; perfect rounds extend the
// streak, anything else resets it.
func bumpStats(ctx context.Context, tx *sql.Tx, userID string, r Round) error {
	var st Stats
	row := tx.QueryRowContext(ctx,
		`SELECT rounds_played, perfect_rounds, streak, total_hits FROM users WHERE id=?`, userID)
	if err := row.Scan(&st.RoundsPlayed, &st.PerfectRounds, &st.Streak, &st.TotalHits); err != nil {
		return err
	}
	st.RoundsPlayed++
	st.TotalHits += r.Hits
	if r.Perfect() {
		st.PerfectRounds++
		st.Streak++
	} else {
		st.Streak = 0
	}
	_, err := tx.ExecContext(ctx,
		`UPDATE users SET rounds_played=?, perfect_rounds=?, streak=?, total_hits=? WHERE id=?`,
		st.RoundsPlayed, st.PerfectRounds, st.Streak, st.TotalHits, userID)
	return err
}

// Stats returns the counters for userID.
func (s *Store) Stats(ctx context.Context, userID string) (Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx,
		`SELECT rounds_played, perfect_rounds, streak, total_hits FROM users WHERE id=?`, userID,
	).Scan(&st.RoundsPlayed, &st.PerfectRounds, &st.Streak, &st.TotalHits)
	return st, err
}

// Mine lists the most recent rounds of userID, newest first.
func (s *Store) Mine(ctx context.Context, userID string, limit int) ([]Round, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
        SELECT session_id, round, mode, started_at, finished_at, revealed, hits
        FROM rounds
        WHERE user_id=?
        ORDER BY finished_at DESC
        LIMIT ?`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Round, 0, limit)
	for rows.Next() {
		var r Round
		var started, finished string
		if err := rows.Scan(&r.SessionID, &r.Round, &r.Mode, &started, &finished, &r.Revealed, &r.Hits); err != nil {
			return nil, err
		}
		r.UserID = userID
		r.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
		r.FinishedAt, _ = time.Parse(time.RFC3339Nano, finished)
		out = append(out, r)
	}
	return out, rows.Err()
}

// ClaimAnon transfers anonymous rounds to userID after signup/login.
// Claimed rounds do not count towards stats.
func (s *Store) ClaimAnon(ctx context.Context, anonID, userID string) (int64, error) {
	if anonID == "" || userID == "" {
		return 0, nil
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE rounds SET user_id=?, anonymous_id=NULL WHERE anonymous_id=?`, userID, anonID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
