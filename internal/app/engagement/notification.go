package engagement

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/stride-habits/stride/internal/domain"
	"github.com/stride-habits/stride/internal/infra/metrics"
)

// NotificationService manages per-user notifications.
//   - At most policy.MaxPerDay notifications per user per calendar day
//   - Nothing is created between QuietStart and QuietEnd
//   - Only achievement unlocks and level-ups notify
//   - Streak breaks are silent
type NotificationService struct {
	store  domain.NotificationStore
	policy domain.NotificationPolicy
	loc    *time.Location
	now    func() time.Time
}

// NewNotificationService creates a notification service with the default policy.
func NewNotificationService(store domain.NotificationStore) *NotificationService {
	return NewNotificationServiceWithPolicy(store, domain.DefaultNotificationPolicy(), time.UTC)
}

// NewNotificationServiceWithPolicy creates a notification service with a custom
// policy. Daily caps and quiet hours are evaluated in loc.
func NewNotificationServiceWithPolicy(store domain.NotificationStore, policy domain.NotificationPolicy, loc *time.Location) *NotificationService {
	if loc == nil {
		loc = time.UTC
	}
	return &NotificationService{store: store, policy: policy, loc: loc, now: time.Now}
}

// SetClock overrides the time source.
func (n *NotificationService) SetClock(now func() time.Time) {
	n.now = now
}

// Create stores a notification if policy allows it.
// Returns the notification ID (0 if suppressed by policy) and any error.
func (n *NotificationService) Create(ctx context.Context, notif domain.Notification) (int64, error) {
	now := n.now()

	if n.isQuietHour(now) {
		metrics.NotificationsCreated.WithLabelValues("quiet").Inc()
		return 0, nil
	}

	todayCount, err := n.TodayCount(ctx, notif.UserID)
	if err != nil {
		return 0, err
	}
	if todayCount >= n.policy.MaxPerDay {
		metrics.NotificationsCreated.WithLabelValues("capped").Inc()
		return 0, nil
	}

	notif.CreatedAt = now
	notif.Shown = false

	id, err := n.store.InsertNotification(ctx, notif)
	if err != nil {
		return 0, fmt.Errorf("insert notification: %w", err)
	}
	metrics.NotificationsCreated.WithLabelValues("created").Inc()
	return id, nil
}

// Pending returns unshown notifications for userID, oldest first.
func (n *NotificationService) Pending(ctx context.Context, userID string, limit int) ([]domain.Notification, error) {
	return n.store.ListPendingNotifications(ctx, userID, limit)
}

// MarkShown marks one of userID's notifications as shown.
func (n *NotificationService) MarkShown(ctx context.Context, userID string, id int64) error {
	return n.store.MarkNotificationShown(ctx, userID, id)
}

// TodayCount returns how many notifications userID received today.
func (n *NotificationService) TodayCount(ctx context.Context, userID string) (int, error) {
	local := n.now().In(n.loc)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, n.loc)
	count, err := n.store.NotificationCountSince(ctx, userID, midnight)
	if err != nil {
		return 0, fmt.Errorf("count today: %w", err)
	}
	return count, nil
}

// Policy returns the current notification policy.
func (n *NotificationService) Policy() domain.NotificationPolicy {
	return n.policy
}

// isQuietHour returns true if t falls within quiet hours.
func (n *NotificationService) isQuietHour(t time.Time) bool {
	if n.policy.QuietStart == "" || n.policy.QuietEnd == "" {
		return false
	}
	startHour, startMin := parseHHMM(n.policy.QuietStart)
	endHour, endMin := parseHHMM(n.policy.QuietEnd)

	local := t.In(n.loc)
	timeMinutes := local.Hour()*60 + local.Minute()
	startMinutes := startHour*60 + startMin
	endMinutes := endHour*60 + endMin

	if startMinutes > endMinutes {
		// Wraps midnight: e.g., 22:00 – 08:00
		return timeMinutes >= startMinutes || timeMinutes < endMinutes
	}
	return timeMinutes >= startMinutes && timeMinutes < endMinutes
}

// parseHHMM parses "HH:MM" into hour and minute.
func parseHHMM(s string) (int, int) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, 0
	}
	h, _ := strconv.Atoi(parts[0])
	m, _ := strconv.Atoi(parts[1])
	return h, m
}

// ValidHHMM reports whether s is a well-formed "HH:MM" clock time.
func ValidHHMM(s string) bool {
	_, err := time.Parse("15:04", s)
	return err == nil
}
