package sqlite

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/stride-habits/stride/internal/domain"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	dir := t.TempDir()
	db, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func appendPoints(t *testing.T, db *DB, userID string, points int64, typ domain.TransactionType, at time.Time) domain.Profile {
	t.Helper()
	p, err := db.AppendTransaction(context.Background(), domain.PointTransaction{
		ID:               uuid.NewString(),
		UserID:           userID,
		Points:           points,
		Type:             typ,
		StreakMultiplier: 1.0,
		Description:      "Completed " + string(typ),
		CreatedAt:        at,
	})
	if err != nil {
		t.Fatalf("AppendTransaction() error: %v", err)
	}
	return p
}

// ─── Database Lifecycle ─────────────────────────────────────────────────────

func TestOpen_CreatesDatabase(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(filepath.Join(dir, "stride.db")); os.IsNotExist(err) {
		t.Error("stride.db should exist")
	}
}

func TestOpen_Reopen(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	ctx := context.Background()
	if _, err := db.GetOrCreateProfile(ctx, "u1"); err != nil {
		t.Fatalf("GetOrCreateProfile() error: %v", err)
	}
	db.Close()

	db2, err := Open(dir)
	if err != nil {
		t.Fatalf("reopen error: %v", err)
	}
	defer db2.Close()
	if _, err := db2.GetProfile(ctx, "u1"); err != nil {
		t.Errorf("profile should survive reopen: %v", err)
	}
}

func TestOpen_Ping(t *testing.T) {
	db := newTestDB(t)
	if err := db.Ping(); err != nil {
		t.Fatalf("Ping() error: %v", err)
	}
}

// ─── Profiles ───────────────────────────────────────────────────────────────

func TestGetProfile_NotFound(t *testing.T) {
	db := newTestDB(t)
	_, err := db.GetProfile(context.Background(), "ghost")
	if !errors.Is(err, domain.ErrProfileNotFound) {
		t.Errorf("err = %v, want ErrProfileNotFound", err)
	}
}

func TestGetOrCreateProfile_Idempotent(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	p1, err := db.GetOrCreateProfile(ctx, "u1")
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	p2, err := db.GetOrCreateProfile(ctx, "u1")
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if p1.ID != p2.ID {
		t.Errorf("profile id changed: %s -> %s", p1.ID, p2.ID)
	}
	if p1.Level != 1 || p1.TotalPoints != 0 || !p1.LastActivityDate.IsZero() {
		t.Errorf("fresh profile = %+v", p1)
	}
}

func TestUpdateStreak_PersistsDate(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	db.GetOrCreateProfile(ctx, "u1")

	day := time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC)
	_, err := db.UpdateStreak(ctx, "u1", func(p *domain.Profile) bool {
		p.CurrentStreak = 4
		p.LongestStreak = 6
		p.LastActivityDate = day
		return true
	})
	if err != nil {
		t.Fatalf("UpdateStreak() error: %v", err)
	}

	got, _ := db.GetProfile(ctx, "u1")
	if got.CurrentStreak != 4 || got.LongestStreak != 6 {
		t.Errorf("streak = %d/%d, want 4/6", got.CurrentStreak, got.LongestStreak)
	}
	if !got.LastActivityDate.Equal(day) {
		t.Errorf("last activity = %v, want %v", got.LastActivityDate, day)
	}
}

func TestUpdateStreak_NoChange(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	db.GetOrCreateProfile(ctx, "u1")

	_, err := db.UpdateStreak(ctx, "u1", func(p *domain.Profile) bool {
		p.CurrentStreak = 99
		return false
	})
	if err != nil {
		t.Fatalf("UpdateStreak() error: %v", err)
	}
	got, _ := db.GetProfile(ctx, "u1")
	if got.CurrentStreak != 0 {
		t.Errorf("streak persisted despite false return: %d", got.CurrentStreak)
	}
}

func TestDeleteUser_Cascades(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	db.SeedAchievements(ctx, []domain.Achievement{{Name: "A", Type: domain.AchievementStreak, RequiredCount: 1}})
	db.GetOrCreateProfile(ctx, "u1")
	appendPoints(t, db, "u1", 10, domain.TxStandard, time.Now())
	catalog, _ := db.ListAchievements(ctx)
	db.UnlockAchievement(ctx, "u1", catalog[0].ID, time.Now())

	if err := db.DeleteUser(ctx, "u1"); err != nil {
		t.Fatalf("DeleteUser() error: %v", err)
	}
	txs, _ := db.ListTransactions(ctx, "u1", domain.TransactionFilter{})
	if len(txs) != 0 {
		t.Errorf("ledger rows survived delete: %d", len(txs))
	}
	ids, _ := db.UnlockedAchievementIDs(ctx, "u1")
	if len(ids) != 0 {
		t.Errorf("unlocks survived delete: %d", len(ids))
	}
	if err := db.DeleteUser(ctx, "u1"); !errors.Is(err, domain.ErrProfileNotFound) {
		t.Errorf("second delete err = %v, want ErrProfileNotFound", err)
	}
}

// ─── Ledger ─────────────────────────────────────────────────────────────────

func TestAppendTransaction_RecomputesTotalAndLevel(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	db.GetOrCreateProfile(ctx, "u1")

	now := time.Now()
	appendPoints(t, db, "u1", 60, domain.TxStandard, now)
	p := appendPoints(t, db, "u1", 60, domain.TxProcess, now)
	if p.TotalPoints != 120 {
		t.Errorf("total = %d, want 120", p.TotalPoints)
	}
	if p.Level != 2 {
		t.Errorf("level = %d, want 2", p.Level)
	}

	p = appendPoints(t, db, "u1", -30, domain.TxStreak, now)
	if p.TotalPoints != 90 || p.Level != 1 {
		t.Errorf("after negative entry: total=%d level=%d, want 90/1", p.TotalPoints, p.Level)
	}
}

func TestAppendTransaction_UnknownProfile(t *testing.T) {
	db := newTestDB(t)
	_, err := db.AppendTransaction(context.Background(), domain.PointTransaction{
		ID: uuid.NewString(), UserID: "ghost", Points: 10, Type: domain.TxStandard,
		StreakMultiplier: 1, Description: "x", CreatedAt: time.Now(),
	})
	if !errors.Is(err, domain.ErrProfileNotFound) {
		t.Errorf("err = %v, want ErrProfileNotFound", err)
	}
}

func TestListTransactions_Filters(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	db.GetOrCreateProfile(ctx, "u1")
	db.GetOrCreateProfile(ctx, "u2")

	now := time.Now()
	appendPoints(t, db, "u1", 10, domain.TxStandard, now.AddDate(0, 0, -10))
	appendPoints(t, db, "u1", 15, domain.TxProcess, now.AddDate(0, 0, -2))
	appendPoints(t, db, "u1", 10, domain.TxStandard, now)
	appendPoints(t, db, "u2", 500, domain.TxBIG, now)

	all, err := db.ListTransactions(ctx, "u1", domain.TransactionFilter{})
	if err != nil {
		t.Fatalf("ListTransactions() error: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("len = %d, want 3", len(all))
	}
	if !all[0].CreatedAt.After(all[2].CreatedAt) {
		t.Error("expected newest first")
	}

	standards, _ := db.ListTransactions(ctx, "u1", domain.TransactionFilter{Type: domain.TxStandard})
	if len(standards) != 2 {
		t.Errorf("standard filter len = %d, want 2", len(standards))
	}

	recent, _ := db.ListTransactions(ctx, "u1", domain.TransactionFilter{Since: now.AddDate(0, 0, -7)})
	if len(recent) != 2 {
		t.Errorf("7-day window len = %d, want 2", len(recent))
	}

	limited, _ := db.ListTransactions(ctx, "u1", domain.TransactionFilter{Limit: 1})
	if len(limited) != 1 || limited[0].Points != 10 {
		t.Errorf("limit 1 = %+v", limited)
	}
}

func TestCountTransactions_ByType(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	db.GetOrCreateProfile(ctx, "u1")

	now := time.Now()
	appendPoints(t, db, "u1", 10, domain.TxStandard, now)
	appendPoints(t, db, "u1", 10, domain.TxStandard, now)
	appendPoints(t, db, "u1", 100, domain.TxMTG, now)
	appendPoints(t, db, "u1", 50, domain.TxAchievement, now)

	n, err := db.CountTransactions(ctx, "u1", domain.CompletionTypes)
	if err != nil {
		t.Fatalf("CountTransactions() error: %v", err)
	}
	if n != 3 {
		t.Errorf("completion count = %d, want 3", n)
	}
}

func TestLedgerDrifts_DetectAndRecompute(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	db.GetOrCreateProfile(ctx, "u1")
	db.GetOrCreateProfile(ctx, "u2")
	appendPoints(t, db, "u1", 150, domain.TxMTG, time.Now())
	appendPoints(t, db, "u2", 10, domain.TxStandard, time.Now())

	drifts, err := db.LedgerDrifts(ctx)
	if err != nil {
		t.Fatalf("LedgerDrifts() error: %v", err)
	}
	if len(drifts) != 0 {
		t.Fatalf("unexpected drift on clean ledger: %+v", drifts)
	}

	// Simulate a lost update on u1's cached total.
	if _, err := db.db.Exec(`UPDATE profiles SET total_points = 5, level = 1 WHERE user_id = 'u1'`); err != nil {
		t.Fatal(err)
	}

	drifts, _ = db.LedgerDrifts(ctx)
	if len(drifts) != 1 || drifts[0].UserID != "u1" || drifts[0].LedgerTotal != 150 || drifts[0].CachedTotal != 5 {
		t.Fatalf("drifts = %+v", drifts)
	}

	p, err := db.RecomputeProfile(ctx, "u1")
	if err != nil {
		t.Fatalf("RecomputeProfile() error: %v", err)
	}
	if p.TotalPoints != 150 || p.Level != 2 {
		t.Errorf("recomputed = %d/L%d, want 150/L2", p.TotalPoints, p.Level)
	}
	if drifts, _ := db.LedgerDrifts(ctx); len(drifts) != 0 {
		t.Errorf("drift remains after recompute: %+v", drifts)
	}
}

// ─── Achievements ───────────────────────────────────────────────────────────

func TestSeedAchievements_Idempotent(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	catalog := []domain.Achievement{
		{Name: "First", Description: "d", Points: 25, Icon: "check", Type: domain.AchievementCompletion, RequiredCount: 1},
		{Name: "Second", Description: "d", Points: 50, Icon: "fire", Type: domain.AchievementStreak, RequiredCount: 3},
	}

	n, err := db.SeedAchievements(ctx, catalog)
	if err != nil {
		t.Fatalf("SeedAchievements() error: %v", err)
	}
	if n != 2 {
		t.Errorf("first seed added %d, want 2", n)
	}
	n, _ = db.SeedAchievements(ctx, catalog)
	if n != 0 {
		t.Errorf("second seed added %d, want 0", n)
	}

	got, _ := db.ListAchievements(ctx)
	if len(got) != 2 || got[0].Name != "First" || got[1].Type != domain.AchievementStreak {
		t.Errorf("catalog = %+v", got)
	}
}

func TestUnlockAchievement_Idempotent(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	db.SeedAchievements(ctx, []domain.Achievement{{Name: "A", Type: domain.AchievementLevel, RequiredCount: 2}})
	db.GetOrCreateProfile(ctx, "u1")
	catalog, _ := db.ListAchievements(ctx)
	id := catalog[0].ID

	isNew, err := db.UnlockAchievement(ctx, "u1", id, time.Now())
	if err != nil {
		t.Fatalf("UnlockAchievement() error: %v", err)
	}
	if !isNew {
		t.Error("first unlock should be new")
	}

	isNew, err = db.UnlockAchievement(ctx, "u1", id, time.Now())
	if err != nil {
		t.Fatalf("repeat unlock should not error: %v", err)
	}
	if isNew {
		t.Error("repeat unlock should not be new")
	}

	ids, _ := db.UnlockedAchievementIDs(ctx, "u1")
	if _, ok := ids[id]; !ok || len(ids) != 1 {
		t.Errorf("unlocked ids = %v", ids)
	}
}

func TestUnlockAchievement_UnknownAchievement(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	db.GetOrCreateProfile(ctx, "u1")
	_, err := db.UnlockAchievement(ctx, "u1", "nope", time.Now())
	if !errors.Is(err, domain.ErrAchievementNotFound) {
		t.Errorf("err = %v, want ErrAchievementNotFound", err)
	}
}

func TestListUserAchievements_NewestFirst(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	db.SeedAchievements(ctx, []domain.Achievement{
		{Name: "A", Type: domain.AchievementLevel, RequiredCount: 2},
		{Name: "B", Type: domain.AchievementLevel, RequiredCount: 5},
	})
	db.GetOrCreateProfile(ctx, "u1")
	catalog, _ := db.ListAchievements(ctx)

	base := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	db.UnlockAchievement(ctx, "u1", catalog[0].ID, base)
	db.UnlockAchievement(ctx, "u1", catalog[1].ID, base.Add(time.Hour))

	got, err := db.ListUserAchievements(ctx, "u1", 0)
	if err != nil {
		t.Fatalf("ListUserAchievements() error: %v", err)
	}
	if len(got) != 2 || got[0].Achievement.Name != "B" || got[1].Achievement.Name != "A" {
		t.Errorf("order = %+v", got)
	}

	one, _ := db.ListUserAchievements(ctx, "u1", 1)
	if len(one) != 1 {
		t.Errorf("limit 1 len = %d", len(one))
	}
}

// ─── Leaderboard ────────────────────────────────────────────────────────────

func TestTopProfilesAndRank(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	totals := map[string]int64{"a": 300, "b": 100, "c": 500, "d": 100}
	for u, pts := range totals {
		db.GetOrCreateProfile(ctx, u)
		appendPoints(t, db, u, pts, domain.TxBIG, time.Now())
	}

	top, err := db.TopProfiles(ctx, 2)
	if err != nil {
		t.Fatalf("TopProfiles() error: %v", err)
	}
	if len(top) != 2 || top[0].UserID != "c" || top[1].UserID != "a" {
		t.Errorf("top = %+v", top)
	}

	above, _ := db.CountProfilesAbove(ctx, 100)
	if above != 2 {
		t.Errorf("above 100 = %d, want 2", above)
	}
}

// ─── Notifications ──────────────────────────────────────────────────────────

func TestNotifications_Lifecycle(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	db.GetOrCreateProfile(ctx, "u1")

	now := time.Now()
	id, err := db.InsertNotification(ctx, domain.Notification{
		UserID: "u1", Type: domain.NotifyLevelUp, Title: "Level 2", Body: "b", CreatedAt: now,
	})
	if err != nil {
		t.Fatalf("InsertNotification() error: %v", err)
	}

	n, _ := db.NotificationCountSince(ctx, "u1", now.Add(-time.Minute))
	if n != 1 {
		t.Errorf("count = %d, want 1", n)
	}

	pending, _ := db.ListPendingNotifications(ctx, "u1", 10)
	if len(pending) != 1 || pending[0].ID != id {
		t.Fatalf("pending = %+v", pending)
	}

	if err := db.MarkNotificationShown(ctx, "u2", id); !errors.Is(err, domain.ErrNotificationNotFound) {
		t.Errorf("other user's mark err = %v, want ErrNotificationNotFound", err)
	}
	if err := db.MarkNotificationShown(ctx, "u1", id); err != nil {
		t.Fatalf("MarkNotificationShown() error: %v", err)
	}
	pending, _ = db.ListPendingNotifications(ctx, "u1", 10)
	if len(pending) != 0 {
		t.Errorf("pending after shown = %d", len(pending))
	}
}
