package daily

import (
	"context"
	"database/sql"
	"fmt"
)

type Result struct {
	OwnerID   string `json:"ownerId"`
	Date      string `json:"date"`
	Hits      int    `json:"hits"`
	ElapsedMs int    `json:"elapsedMs"`
}

type Store struct{ db *sql.DB }

func NewStore(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) AlreadyPlayed(ctx context.Context, ownerID, date string) (bool, error) {
	var cnt int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM daily_results WHERE owner_id=? AND date=?",
		ownerID, date,
	).Scan(&cnt)
	return cnt > 0, err
}

// InsertResult respects UNIQUE(owner_id, date); a second result is ignored.
func (s *Store) InsertResult(ctx context.Context, r Result) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO daily_results(owner_id, date, hits, elapsed_ms)
         VALUES(?,?,?,?)`, r.OwnerID, r.Date, r.Hits, r.ElapsedMs,
	)
	return err
}

// StartAttempt spends the owner's attempt for date. It reports false when
// the attempt was already spent, finished or not.
func (s *Store) StartAttempt(ctx context.Context, ownerID, date string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO daily_attempts(owner_id, date) VALUES(?,?)`, ownerID, date)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// ClaimAnon moves a guest's attempts and results to userID. Dates the user
// already has keep the user's row.
func (s *Store) ClaimAnon(ctx context.Context, anonID, userID string) error {
	if anonID == "" || userID == "" {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	for _, table := range []string{"daily_attempts", "daily_results"} {
		if _, err := tx.ExecContext(ctx,
			`UPDATE OR IGNORE `+table+` SET owner_id=? WHERE owner_id=?`, userID, anonID); err != nil {
			return fmt.Errorf("claim %s: %w", table, err)
		}
	}
	return tx.Commit()
}

type LBRow struct {
	OwnerID   string `json:"ownerId"`
	Hits      int    `json:"hits"`
	ElapsedMs int    `json:"elapsedMs"`
}

// Leaderboard ranks a date by hits (desc), then time (asc), then arrival.
func (s *Store) Leaderboard(ctx context.Context, date string, limit int) ([]LBRow, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT owner_id, hits, elapsed_ms
         FROM daily_results
         WHERE date=?
         ORDER BY hits DESC, elapsed_ms ASC, created_at ASC
         LIMIT ?`, date, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []LBRow{}
	for rows.Next() {
		var r LBRow
		if err := rows.Scan(&r.OwnerID, &r.Hits, &r.ElapsedMs); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
