package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/stride-habits/stride/internal/domain"
)

const txColumns = `id, user_id, points, type, reference_id, reference_type,
	streak_multiplier, description, created_at`

// ─── Point Ledger ───────────────────────────────────────────────────────────

// AppendTransaction inserts a ledger entry and recomputes the owner's total
// and level from the full ledger, all inside one write transaction. This is
// the only code path that changes total_points or level.
func (d *DB) AppendTransaction(ctx context.Context, t domain.PointTransaction) (domain.Profile, error) {
	var p domain.Profile
	err := d.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := getProfile(ctx, tx, t.UserID); err != nil {
			return err
		}

		_, err := tx.ExecContext(ctx,
			`INSERT INTO point_transactions (id, user_id, points, type, reference_id, reference_type,
				streak_multiplier, description, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			t.ID, t.UserID, t.Points, string(t.Type), nullString(t.ReferenceID), nullString(t.ReferenceType),
			t.StreakMultiplier, t.Description, toMillis(t.CreatedAt),
		)
		if err != nil {
			return fmt.Errorf("insert transaction: %w", err)
		}

		p, err = d.recompute(ctx, tx, t.UserID)
		return err
	})
	return p, err
}

// RecomputeProfile rewrites the cached total and level from the ledger.
func (d *DB) RecomputeProfile(ctx context.Context, userID string) (domain.Profile, error) {
	var p domain.Profile
	err := d.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := getProfile(ctx, tx, userID); err != nil {
			return err
		}
		var err error
		p, err = d.recompute(ctx, tx, userID)
		return err
	})
	return p, err
}

func (d *DB) recompute(ctx context.Context, tx *sql.Tx, userID string) (domain.Profile, error) {
	var total int64
	err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(points), 0) FROM point_transactions WHERE user_id = ?`, userID,
	).Scan(&total)
	if err != nil {
		return domain.Profile{}, fmt.Errorf("sum ledger: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE profiles SET total_points = ?, level = ?, updated_at = ? WHERE user_id = ?`,
		total, domain.LevelForPoints(total), toMillis(d.now()), userID,
	)
	if err != nil {
		return domain.Profile{}, fmt.Errorf("update totals: %w", err)
	}
	return getProfile(ctx, tx, userID)
}

// ListTransactions returns the user's ledger entries, newest first.
func (d *DB) ListTransactions(ctx context.Context, userID string, filter domain.TransactionFilter) ([]domain.PointTransaction, error) {
	query := `SELECT ` + txColumns + ` FROM point_transactions WHERE user_id = ?`
	args := []any{userID}

	if filter.Type != "" {
		query += ` AND type = ?`
		args = append(args, string(filter.Type))
	}
	if !filter.Since.IsZero() {
		query += ` AND created_at >= ?`
		args = append(args, toMillis(filter.Since))
	}
	query += ` ORDER BY created_at DESC, seq DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []domain.PointTransaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

// CountTransactions counts the user's ledger entries whose type is in types.
func (d *DB) CountTransactions(ctx context.Context, userID string, types []domain.TransactionType) (int, error) {
	if len(types) == 0 {
		return 0, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(types)), ",")
	args := []any{userID}
	for _, t := range types {
		args = append(args, string(t))
	}

	var n int
	err := d.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM point_transactions WHERE user_id = ? AND type IN (`+placeholders+`)`,
		args...,
	).Scan(&n)
	return n, err
}

// LedgerDrifts lists every profile whose cached total or level differs from
// what the ledger says it should be.
func (d *DB) LedgerDrifts(ctx context.Context) ([]domain.LedgerDrift, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT p.user_id, p.total_points, p.level, COALESCE(SUM(t.points), 0)
		 FROM profiles p
		 LEFT JOIN point_transactions t ON t.user_id = p.user_id
		 GROUP BY p.user_id, p.total_points, p.level`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var drifts []domain.LedgerDrift
	for rows.Next() {
		var dr domain.LedgerDrift
		if err := rows.Scan(&dr.UserID, &dr.CachedTotal, &dr.CachedLevel, &dr.LedgerTotal); err != nil {
			return nil, err
		}
		if dr.CachedTotal != dr.LedgerTotal || dr.CachedLevel != domain.LevelForPoints(dr.LedgerTotal) {
			drifts = append(drifts, dr)
		}
	}
	return drifts, rows.Err()
}

func scanTransaction(s scanner) (domain.PointTransaction, error) {
	var t domain.PointTransaction
	var refID, refType sql.NullString
	var txType string
	var createdAt int64

	err := s.Scan(&t.ID, &t.UserID, &t.Points, &txType, &refID, &refType,
		&t.StreakMultiplier, &t.Description, &createdAt)
	if err != nil {
		return t, err
	}
	t.Type = domain.TransactionType(txType)
	t.ReferenceID = refID.String
	t.ReferenceType = refType.String
	t.CreatedAt = fromMillis(createdAt)
	return t, nil
}
