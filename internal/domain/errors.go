package domain

import (
	"errors"
	"fmt"
)

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors are pure: no infrastructure dependency.

var (
	ErrProfileNotFound        = errors.New("gamification profile not found")
	ErrAchievementNotFound    = errors.New("achievement not found")
	ErrNotificationNotFound   = errors.New("notification not found")
	ErrUnknownTransactionType = errors.New("unknown transaction type")
	ErrMissingUser            = errors.New("caller identity missing")

	// ErrLedgerDrift means a cached total no longer equals the ledger sum.
	ErrLedgerDrift = errors.New("profile total diverges from ledger")
)

// ValidationError reports malformed input at a boundary.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// IsValidation reports whether err is (or wraps) a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
