package engagement

import (
	"fmt"

	"github.com/stride-habits/stride/internal/domain"
)

// ─── Base amounts ───────────────────────────────────────────────────────────

const (
	PointsStandard int64 = 10
	PointsProcess  int64 = 15
	PointsMTG      int64 = 100
	PointsBIG      int64 = 500
)

// completion describes how one completion kind is booked on the ledger.
type completion struct {
	base  int64
	label string
}

var completions = map[domain.TransactionType]completion{
	domain.TxStandard: {PointsStandard, "standard"},
	domain.TxProcess:  {PointsProcess, "process"},
	domain.TxMTG:      {PointsMTG, "MTG"},
	domain.TxBIG:      {PointsBIG, "BIG goal"},
}

// BasePoints returns the unmultiplied award for a completion kind.
func BasePoints(kind domain.TransactionType) (int64, bool) {
	c, ok := completions[kind]
	return c.base, ok
}

// ParseCompletionKind validates a completion kind from a URL or CLI argument.
func ParseCompletionKind(s string) (domain.TransactionType, error) {
	kind := domain.TransactionType(s)
	if _, ok := completions[kind]; !ok {
		return "", &domain.ValidationError{
			Field:   "kind",
			Message: fmt.Sprintf("unknown completion kind %q (want standard, process, mtg or big)", s),
		}
	}
	return kind, nil
}

// ComputeAward applies the streak multiplier to base, truncating toward zero.
func ComputeAward(base int64, currentStreak int) int64 {
	return int64(float64(base) * domain.StreakMultiplier(currentStreak))
}

func completionDescription(kind domain.TransactionType, title string) string {
	return fmt.Sprintf("Completed %s: %s", completions[kind].label, title)
}
