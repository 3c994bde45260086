package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/stride-habits/stride/internal/domain"
)

const profileColumns = `id, user_id, total_points, level, current_streak, longest_streak,
	last_activity_date, created_at, updated_at`

// ─── Profiles ───────────────────────────────────────────────────────────────

// GetProfile returns the user's profile or domain.ErrProfileNotFound.
func (d *DB) GetProfile(ctx context.Context, userID string) (domain.Profile, error) {
	return getProfile(ctx, d.db, userID)
}

// GetOrCreateProfile returns the user's profile, creating an empty one first
// if none exists.
func (d *DB) GetOrCreateProfile(ctx context.Context, userID string) (domain.Profile, error) {
	var p domain.Profile
	err := d.withTx(ctx, func(tx *sql.Tx) error {
		if err := ensureProfile(ctx, tx, userID, d.now()); err != nil {
			return err
		}
		var err error
		p, err = getProfile(ctx, tx, userID)
		return err
	})
	return p, err
}

// UpdateStreak reads the profile, lets fn mutate the streak fields, and
// persists them in the same write transaction.
func (d *DB) UpdateStreak(ctx context.Context, userID string, fn func(p *domain.Profile) bool) (domain.Profile, error) {
	var p domain.Profile
	err := d.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		p, err = getProfile(ctx, tx, userID)
		if err != nil {
			return err
		}
		if !fn(&p) {
			return nil
		}
		p.UpdatedAt = d.now().UTC()
		_, err = tx.ExecContext(ctx,
			`UPDATE profiles SET current_streak = ?, longest_streak = ?, last_activity_date = ?, updated_at = ?
			 WHERE user_id = ?`,
			p.CurrentStreak, p.LongestStreak, nullDate(p.LastActivityDate), toMillis(p.UpdatedAt), userID,
		)
		if err != nil {
			return fmt.Errorf("save streak: %w", err)
		}
		return nil
	})
	return p, err
}

// TopProfiles returns up to limit profiles ordered by total points descending.
// Ties keep creation order.
func (d *DB) TopProfiles(ctx context.Context, limit int) ([]domain.Profile, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT `+profileColumns+` FROM profiles
		 ORDER BY total_points DESC, created_at ASC, id ASC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var profiles []domain.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

// CountProfilesAbove counts profiles with strictly more than total points.
func (d *DB) CountProfilesAbove(ctx context.Context, total int64) (int, error) {
	var n int
	err := d.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM profiles WHERE total_points > ?`, total,
	).Scan(&n)
	return n, err
}

// DeleteUser removes the profile and, by cascade, every ledger entry,
// unlock and notification owned by the user.
func (d *DB) DeleteUser(ctx context.Context, userID string) error {
	result, err := d.db.ExecContext(ctx, `DELETE FROM profiles WHERE user_id = ?`, userID)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return domain.ErrProfileNotFound
	}
	return nil
}

func ensureProfile(ctx context.Context, q querier, userID string, now time.Time) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO profiles (id, user_id, total_points, level, current_streak, longest_streak, created_at, updated_at)
		 VALUES (?, ?, 0, 1, 0, 0, ?, ?)
		 ON CONFLICT(user_id) DO NOTHING`,
		uuid.NewString(), userID, toMillis(now), toMillis(now),
	)
	if err != nil {
		return fmt.Errorf("create profile: %w", err)
	}
	return nil
}

func getProfile(ctx context.Context, q querier, userID string) (domain.Profile, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE user_id = ?`, userID,
	)
	p, err := scanProfile(row)
	if isNoRows(err) {
		return domain.Profile{}, domain.ErrProfileNotFound
	}
	return p, err
}

func scanProfile(s scanner) (domain.Profile, error) {
	var p domain.Profile
	var lastActivity sql.NullString
	var createdAt, updatedAt int64

	err := s.Scan(&p.ID, &p.UserID, &p.TotalPoints, &p.Level,
		&p.CurrentStreak, &p.LongestStreak, &lastActivity, &createdAt, &updatedAt)
	if err != nil {
		return p, err
	}

	if lastActivity.Valid {
		day, err := time.Parse(domain.DateLayout, lastActivity.String)
		if err != nil {
			return p, fmt.Errorf("parse last_activity_date %q: %w", lastActivity.String, err)
		}
		p.LastActivityDate = day
	}
	p.CreatedAt = fromMillis(createdAt)
	p.UpdatedAt = fromMillis(updatedAt)
	return p, nil
}

func nullDate(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Format(domain.DateLayout), Valid: true}
}
