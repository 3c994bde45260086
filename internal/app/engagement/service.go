package engagement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync"

	"github.com/stride-habits/stride/internal/app/ledger"
	"github.com/stride-habits/stride/internal/domain"
	"github.com/stride-habits/stride/internal/infra/metrics"
)

// DefaultMaxAwardChain bounds how many evaluate-and-award passes follow one award.
const DefaultMaxAwardChain = 4

// Service is the gamification entry point. Every award goes through
// AwardPoints, which runs the whole pipeline for one user at a time:
//
//  1. multiplier from the streak as it was before this award
//  2. ledger append (total and level recomputed in the same transaction)
//  3. streak update for today
//  4. achievement evaluation, awarding anything newly unlocked
type Service struct {
	store      domain.GamificationStore
	ledger     *ledger.Service
	evaluator  *Evaluator
	notifier   *NotificationService
	log        *slog.Logger
	now        func() time.Time
	loc        *time.Location
	autoCreate bool
	maxChain   int

	locks *xsync.MapOf[string, *sync.Mutex]
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLocation sets the zone in which "today" is determined for streaks.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithAutoCreate controls whether awards create a missing profile.
func WithAutoCreate(on bool) Option {
	return func(s *Service) { s.autoCreate = on }
}

// WithMaxAwardChain sets the number of evaluation passes after an award.
func WithMaxAwardChain(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxChain = n
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// WithNotifier enables unlock and level-up notifications.
func WithNotifier(n *NotificationService) Option {
	return func(s *Service) { s.notifier = n }
}

// NewService creates the gamification service over store.
func NewService(store domain.GamificationStore, opts ...Option) *Service {
	s := &Service{
		store:      store,
		ledger:     ledger.NewService(store),
		evaluator:  NewEvaluator(store),
		log:        slog.Default(),
		now:        time.Now,
		loc:        time.UTC,
		autoCreate: true,
		maxChain:   DefaultMaxAwardChain,
		locks:      xsync.NewMapOf[*sync.Mutex](),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With("component", "engagement")
	return s
}

// Evaluator returns the achievement evaluator backing the service.
func (s *Service) Evaluator() *Evaluator { return s.evaluator }

// Notifications returns the notification service, or nil if disabled.
func (s *Service) Notifications() *NotificationService { return s.notifier }

// Today returns the current calendar day in the configured zone.
func (s *Service) Today() time.Time {
	return CalendarDay(s.now(), s.loc)
}

// lockUser serializes the award pipeline per user.
func (s *Service) lockUser(userID string) func() {
	mu, _ := s.locks.LoadOrStore(userID, &sync.Mutex{})
	mu.Lock()
	return mu.Unlock
}

// ─── Completion hooks ───────────────────────────────────────────────────────

// CompleteStandard awards points for a completed standard.
func (s *Service) CompleteStandard(ctx context.Context, userID string, ref domain.CompletionRef) (domain.PointTransaction, error) {
	return s.Complete(ctx, userID, domain.TxStandard, ref)
}

// CompleteProcess awards points for a completed process.
func (s *Service) CompleteProcess(ctx context.Context, userID string, ref domain.CompletionRef) (domain.PointTransaction, error) {
	return s.Complete(ctx, userID, domain.TxProcess, ref)
}

// CompleteMTG awards points for a completed medium-term goal.
func (s *Service) CompleteMTG(ctx context.Context, userID string, ref domain.CompletionRef) (domain.PointTransaction, error) {
	return s.Complete(ctx, userID, domain.TxMTG, ref)
}

// CompleteBIG awards points for a completed BIG goal.
func (s *Service) CompleteBIG(ctx context.Context, userID string, ref domain.CompletionRef) (domain.PointTransaction, error) {
	return s.Complete(ctx, userID, domain.TxBIG, ref)
}

// Complete awards the base amount for kind, referencing the completed item.
func (s *Service) Complete(ctx context.Context, userID string, kind domain.TransactionType, ref domain.CompletionRef) (domain.PointTransaction, error) {
	base, ok := BasePoints(kind)
	if !ok {
		return domain.PointTransaction{}, &domain.ValidationError{
			Field:   "kind",
			Message: fmt.Sprintf("%q is not a completion kind", kind),
		}
	}
	return s.AwardPoints(ctx, userID, domain.Award{
		Amount:        base,
		Type:          kind,
		ReferenceID:   ref.ID,
		ReferenceType: string(kind),
		Description:   completionDescription(kind, ref.Title),
	})
}

// ─── Award pipeline ─────────────────────────────────────────────────────────

// AwardPoints runs the full award pipeline and returns the primary ledger
// entry. Entries already committed stay committed if a later step fails.
func (s *Service) AwardPoints(ctx context.Context, userID string, award domain.Award) (domain.PointTransaction, error) {
	if userID == "" {
		return domain.PointTransaction{}, domain.ErrMissingUser
	}
	if !award.Type.Valid() {
		return domain.PointTransaction{}, &domain.ValidationError{
			Field:   "type",
			Message: fmt.Sprintf("unknown transaction type %q", award.Type),
		}
	}

	start := time.Now()
	defer func() { metrics.AwardDuration.Observe(time.Since(start).Seconds()) }()

	unlock := s.lockUser(userID)
	defer unlock()

	t, err := s.award(ctx, userID, award)
	if err != nil {
		return domain.PointTransaction{}, err
	}

	if _, err := s.evaluateAndAward(ctx, userID); err != nil {
		return t, err
	}
	return t, nil
}

// EvaluateAchievements re-runs evaluation for userID and awards anything
// newly unlocked. Safe to call at any time; it never unlocks twice.
func (s *Service) EvaluateAchievements(ctx context.Context, userID string) ([]domain.Achievement, error) {
	if userID == "" {
		return nil, domain.ErrMissingUser
	}
	unlock := s.lockUser(userID)
	defer unlock()

	if _, err := s.profile(ctx, userID); err != nil {
		return nil, err
	}
	return s.evaluateAndAward(ctx, userID)
}

// ForgetUser deletes the user's profile, ledger, unlocks and notifications.
func (s *Service) ForgetUser(ctx context.Context, userID string) error {
	if userID == "" {
		return domain.ErrMissingUser
	}
	unlock := s.lockUser(userID)
	defer unlock()

	if err := s.store.DeleteUser(ctx, userID); err != nil {
		return err
	}
	s.log.Info("user data deleted", "user", userID)
	return nil
}

func (s *Service) profile(ctx context.Context, userID string) (domain.Profile, error) {
	if s.autoCreate {
		return s.store.GetOrCreateProfile(ctx, userID)
	}
	return s.store.GetProfile(ctx, userID)
}

// award performs steps 1-3 for a single ledger entry. Caller holds the user lock.
func (s *Service) award(ctx context.Context, userID string, award domain.Award) (domain.PointTransaction, error) {
	before, err := s.profile(ctx, userID)
	if err != nil {
		metrics.AwardFailures.WithLabelValues("profile").Inc()
		return domain.PointTransaction{}, fmt.Errorf("load profile: %w", err)
	}

	now := s.now()
	t, after, err := s.ledger.Append(ctx, domain.PointTransaction{
		UserID:           userID,
		Points:           ComputeAward(award.Amount, before.CurrentStreak),
		Type:             award.Type,
		ReferenceID:      award.ReferenceID,
		ReferenceType:    award.ReferenceType,
		StreakMultiplier: domain.StreakMultiplier(before.CurrentStreak),
		Description:      award.Description,
		CreatedAt:        now,
	})
	if err != nil {
		metrics.AwardFailures.WithLabelValues("append").Inc()
		return domain.PointTransaction{}, err
	}
	metrics.AwardsTotal.WithLabelValues(string(t.Type)).Inc()
	metrics.PointsAwarded.WithLabelValues(string(t.Type)).Add(float64(max(t.Points, 0)))

	s.log.Debug("points awarded",
		"user", userID,
		"type", t.Type,
		"points", t.Points,
		"multiplier", t.StreakMultiplier,
		"total", after.TotalPoints)

	if after.Level > before.Level {
		s.onLevelUp(ctx, userID, before.Level, after.Level)
	}

	today := CalendarDay(now, s.loc)
	var change StreakChange
	if _, err := s.store.UpdateStreak(ctx, userID, func(p *domain.Profile) bool {
		change = ApplyStreak(p, today, today)
		return change.Changed()
	}); err != nil {
		metrics.AwardFailures.WithLabelValues("streak").Inc()
		return t, fmt.Errorf("update streak: %w", err)
	}
	if change == StreakReset {
		metrics.StreakResets.Inc()
	}
	return t, nil
}

// evaluateAndAward runs at most maxChain evaluation passes, awarding each
// newly unlocked achievement. A pass that unlocks nothing ends the loop.
func (s *Service) evaluateAndAward(ctx context.Context, userID string) ([]domain.Achievement, error) {
	var all []domain.Achievement
	for pass := 0; pass < s.maxChain; pass++ {
		unlocked, err := s.evaluator.Evaluate(ctx, userID, s.now())
		if err != nil {
			metrics.AwardFailures.WithLabelValues("evaluate").Inc()
			return all, fmt.Errorf("evaluate achievements: %w", err)
		}
		if len(unlocked) == 0 {
			return all, nil
		}

		for _, a := range unlocked {
			metrics.AchievementsUnlocked.WithLabelValues(string(a.Type)).Inc()
			s.log.Info("achievement unlocked", "user", userID, "achievement", a.Name, "points", a.Points)

			if _, err := s.award(ctx, userID, domain.Award{
				Amount:        a.Points,
				Type:          domain.TxAchievement,
				ReferenceID:   a.ID,
				ReferenceType: "achievement",
				Description:   "Unlocked achievement: " + a.Name,
			}); err != nil {
				return all, fmt.Errorf("award achievement %q: %w", a.Name, err)
			}
			s.notify(ctx, domain.Notification{
				UserID: userID,
				Type:   domain.NotifyAchievement,
				Title:  "Achievement unlocked: " + a.Name,
				Body:   fmt.Sprintf("%s (+%d points)", a.Description, a.Points),
			})
		}
		all = append(all, unlocked...)
	}

	s.log.Warn("award chain limit reached", "user", userID, "passes", s.maxChain)
	return all, nil
}

func (s *Service) onLevelUp(ctx context.Context, userID string, from, to int) {
	metrics.LevelUps.Inc()
	s.log.Info("level up", "user", userID, "from", from, "to", to)
	s.notify(ctx, domain.Notification{
		UserID: userID,
		Type:   domain.NotifyLevelUp,
		Title:  fmt.Sprintf("Level %d reached", to),
		Body:   fmt.Sprintf("You are now level %d. Next level at %d points.", to, domain.PointsRequiredForLevel(to)),
	})
}

// notify is best effort: a failed notification never fails an award.
func (s *Service) notify(ctx context.Context, n domain.Notification) {
	if s.notifier == nil {
		return
	}
	if _, err := s.notifier.Create(ctx, n); err != nil && !errors.Is(err, context.Canceled) {
		s.log.Warn("notification failed", "user", n.UserID, "type", n.Type, "err", err)
	}
}
