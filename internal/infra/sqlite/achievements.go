package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/stride-habits/stride/internal/domain"
)

const achievementColumns = `a.id, a.name, a.description, a.points, a.icon,
	a.achievement_type, a.required_count, a.created_at`

// ─── Achievement Catalog ────────────────────────────────────────────────────

// SeedAchievements inserts catalog entries that are not present yet (matched
// by name) and returns how many were added. Existing rows are left untouched.
func (d *DB) SeedAchievements(ctx context.Context, catalog []domain.Achievement) (int, error) {
	added := 0
	err := d.withTx(ctx, func(tx *sql.Tx) error {
		now := toMillis(d.now())
		for _, a := range catalog {
			id := a.ID
			if id == "" {
				id = uuid.NewString()
			}
			result, err := tx.ExecContext(ctx,
				`INSERT INTO achievements (id, name, description, points, icon, achievement_type, required_count, created_at)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
				 ON CONFLICT(name) DO NOTHING`,
				id, a.Name, a.Description, a.Points, a.Icon, string(a.Type), a.RequiredCount, now,
			)
			if err != nil {
				return fmt.Errorf("seed %q: %w", a.Name, err)
			}
			n, _ := result.RowsAffected()
			added += int(n)
		}
		return nil
	})
	return added, err
}

// ListAchievements returns the whole catalog in seed order.
func (d *DB) ListAchievements(ctx context.Context) ([]domain.Achievement, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT `+achievementColumns+` FROM achievements a ORDER BY a.rowid`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var catalog []domain.Achievement
	for rows.Next() {
		a, err := scanAchievement(rows)
		if err != nil {
			return nil, err
		}
		catalog = append(catalog, a)
	}
	return catalog, rows.Err()
}

// ─── Unlocks ────────────────────────────────────────────────────────────────

// UnlockedAchievementIDs returns the set of achievement IDs the user holds.
func (d *DB) UnlockedAchievementIDs(ctx context.Context, userID string) (map[string]struct{}, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT achievement_id FROM user_achievements WHERE user_id = ?`, userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids[id] = struct{}{}
	}
	return ids, rows.Err()
}

// UnlockAchievement records an unlock. Returns false if the pair was already
// recorded (idempotent).
func (d *DB) UnlockAchievement(ctx context.Context, userID, achievementID string, at time.Time) (bool, error) {
	inserted := false
	err := d.withTx(ctx, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM achievements WHERE id = ?`, achievementID).Scan(&exists)
		if isNoRows(err) {
			return domain.ErrAchievementNotFound
		}
		if err != nil {
			return err
		}
		if _, err := getProfile(ctx, tx, userID); err != nil {
			return err
		}

		result, err := tx.ExecContext(ctx,
			`INSERT INTO user_achievements (id, user_id, achievement_id, unlocked_at)
			 VALUES (?, ?, ?, ?)
			 ON CONFLICT(user_id, achievement_id) DO NOTHING`,
			uuid.NewString(), userID, achievementID, toMillis(at),
		)
		if err != nil {
			return err
		}
		n, _ := result.RowsAffected()
		inserted = n > 0
		return nil
	})
	return inserted, err
}

// ListUserAchievements returns the user's unlocks, most recent first.
// A limit <= 0 returns all of them.
func (d *DB) ListUserAchievements(ctx context.Context, userID string, limit int) ([]domain.UserAchievement, error) {
	query := `SELECT ua.id, ua.user_id, ua.unlocked_at, ` + achievementColumns + `
		FROM user_achievements ua
		JOIN achievements a ON a.id = ua.achievement_id
		WHERE ua.user_id = ?
		ORDER BY ua.unlocked_at DESC, ua.seq DESC`
	args := []any{userID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var unlocks []domain.UserAchievement
	for rows.Next() {
		var ua domain.UserAchievement
		var unlockedAt, createdAt int64
		var achType string
		a := &ua.Achievement
		err := rows.Scan(&ua.ID, &ua.UserID, &unlockedAt,
			&a.ID, &a.Name, &a.Description, &a.Points, &a.Icon, &achType, &a.RequiredCount, &createdAt)
		if err != nil {
			return nil, err
		}
		a.Type = domain.AchievementType(achType)
		a.CreatedAt = fromMillis(createdAt)
		ua.UnlockedAt = fromMillis(unlockedAt)
		unlocks = append(unlocks, ua)
	}
	return unlocks, rows.Err()
}

func scanAchievement(s scanner) (domain.Achievement, error) {
	var a domain.Achievement
	var achType string
	var createdAt int64
	err := s.Scan(&a.ID, &a.Name, &a.Description, &a.Points, &a.Icon, &achType, &a.RequiredCount, &createdAt)
	if err != nil {
		return a, err
	}
	a.Type = domain.AchievementType(achType)
	a.CreatedAt = fromMillis(createdAt)
	return a, nil
}
