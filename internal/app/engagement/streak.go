// Package engagement implements the Stride gamification engine: point awards,
// streaks, achievements, notifications and the read models built on them.
package engagement

import (
	"time"

	"github.com/stride-habits/stride/internal/domain"
)

// StreakChange reports what ApplyStreak did to a profile.
type StreakChange int

const (
	StreakUnchanged StreakChange = iota // same calendar day as the last activity
	StreakRejected                      // activity date is in the future
	StreakStarted                       // first recorded activity
	StreakExtended                      // consecutive day
	StreakReset                         // gap, or a date before the last activity
)

func (c StreakChange) String() string {
	switch c {
	case StreakUnchanged:
		return "unchanged"
	case StreakRejected:
		return "rejected"
	case StreakStarted:
		return "started"
	case StreakExtended:
		return "extended"
	case StreakReset:
		return "reset"
	}
	return "unknown"
}

// Changed reports whether the profile needs to be persisted.
func (c StreakChange) Changed() bool {
	return c == StreakStarted || c == StreakExtended || c == StreakReset
}

// CalendarDay returns the calendar date of t in loc, normalized to midnight UTC
// so that dates from different zones compare by value.
func CalendarDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// daysBetween returns the whole number of calendar days from a to b.
func daysBetween(a, b time.Time) int {
	return int(b.Sub(a).Hours() / 24)
}

// ApplyStreak folds one activity date into p. Both activity and today must
// already be calendar days (see CalendarDay).
//
// A future activity is ignored. The first activity starts a streak of one.
// The day after the last activity extends the streak, the same day leaves it
// alone, and anything else resets it to one. The last activity date always
// moves to activity unless the date was rejected.
func ApplyStreak(p *domain.Profile, activity, today time.Time) StreakChange {
	if activity.After(today) {
		return StreakRejected
	}

	if p.LastActivityDate.IsZero() {
		p.CurrentStreak = 1
		p.LongestStreak = max(p.LongestStreak, 1)
		p.LastActivityDate = activity
		return StreakStarted
	}

	var change StreakChange
	switch daysBetween(p.LastActivityDate, activity) {
	case 0:
		return StreakUnchanged
	case 1:
		p.CurrentStreak++
		p.LongestStreak = max(p.LongestStreak, p.CurrentStreak)
		change = StreakExtended
	default:
		p.CurrentStreak = 1
		p.LongestStreak = max(p.LongestStreak, 1)
		change = StreakReset
	}
	p.LastActivityDate = activity
	return change
}
