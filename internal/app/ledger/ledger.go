// Package ledger is the single write path for points. Every entry lands in an
// append-only ledger, and a profile's total is always the ledger's sum.
// The Reconciler verifies that and repairs profiles that drifted.
package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/stride-habits/stride/internal/domain"
)

// Service appends to and reads from the point ledger.
type Service struct {
	store domain.LedgerStore
	now   func() time.Time
}

// NewService creates a ledger service.
func NewService(store domain.LedgerStore) *Service {
	return &Service{store: store, now: time.Now}
}

// Append validates t, fills in the ID, timestamp and description when they
// are missing, and writes it. The returned profile carries the recomputed
// total and level.
func (s *Service) Append(ctx context.Context, t domain.PointTransaction) (domain.PointTransaction, domain.Profile, error) {
	if strings.TrimSpace(t.UserID) == "" {
		return t, domain.Profile{}, domain.ErrMissingUser
	}
	if !t.Type.Valid() {
		return t, domain.Profile{}, fmt.Errorf("%w: %q", domain.ErrUnknownTransactionType, t.Type)
	}
	if t.StreakMultiplier <= 0 {
		return t, domain.Profile{}, &domain.ValidationError{
			Field:   "streak_multiplier",
			Message: fmt.Sprintf("must be positive, got %v", t.StreakMultiplier),
		}
	}

	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = s.now()
	}
	if t.Description == "" {
		t.Description = fmt.Sprintf("Completed %s", t.Type)
	}

	p, err := s.store.AppendTransaction(ctx, t)
	if err != nil {
		return t, domain.Profile{}, fmt.Errorf("append %s transaction: %w", t.Type, err)
	}
	return t, p, nil
}

// History returns the user's most recent ledger entries, newest first.
func (s *Service) History(ctx context.Context, userID string, limit int) ([]domain.PointTransaction, error) {
	return s.store.ListTransactions(ctx, userID, domain.TransactionFilter{Limit: limit})
}
