package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stride-habits/stride/internal/app/engagement"
	"github.com/stride-habits/stride/internal/app/ledger"
	"github.com/stride-habits/stride/internal/domain"
	"github.com/stride-habits/stride/internal/health"
	"github.com/stride-habits/stride/internal/infra/sqlite"
)

var testNow = time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T) (*Server, *sqlite.DB) {
	t.Helper()
	dir := t.TempDir()
	db, err := sqlite.Open(dir)
	if err != nil {
		t.Fatalf("Open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, err := db.SeedAchievements(context.Background(), engagement.DefaultCatalog()); err != nil {
		t.Fatalf("seed: %v", err)
	}

	clock := func() time.Time { return testNow }
	notifier := engagement.NewNotificationServiceWithPolicy(db,
		domain.NotificationPolicy{MaxPerDay: 10}, time.UTC)
	notifier.SetClock(clock)

	svc := engagement.NewService(db,
		engagement.WithClock(clock),
		engagement.WithNotifier(notifier))

	srv := NewServer(svc, nil)
	checker := health.NewChecker(db, dir, ledger.NewReconciler(db, nil), false, nil)
	checker.RunOnce(context.Background())
	srv.SetHealth(checker)
	srv.EnableMetrics()
	return srv, db
}

func do(t *testing.T, h http.Handler, method, path, user string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if user != "" {
		req.Header.Set(UserHeader, user)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) (typ, field string) {
	t.Helper()
	var resp struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
			Field   string `json:"field"`
		} `json:"error"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if resp.Error.Message == "" {
		t.Error("error body should carry a message")
	}
	return resp.Error.Type, resp.Error.Field
}

// ═══════════════════════════════════════════════════════════════════════════
// Health & metrics
// ═══════════════════════════════════════════════════════════════════════════

func TestHealthEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	w := do(t, srv.Handler(), "GET", "/health", "", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp struct {
		Status string          `json:"status"`
		Checks []health.Status `json:"checks"`
	}
	json.NewDecoder(w.Body).Decode(&resp)
	if resp.Status != "ok" {
		t.Errorf("status = %q, want ok", resp.Status)
	}
	if len(resp.Checks) != 3 {
		t.Errorf("checks = %d, want 3", len(resp.Checks))
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	w := do(t, srv.Handler(), "GET", "/metrics", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	srv, _ := newTestServer(t)
	w := do(t, srv.Handler(), "OPTIONS", "/api/gamification/stats", "", nil)
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS header")
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Identity & auth
// ═══════════════════════════════════════════════════════════════════════════

func TestMissingUserIsUnauthorized(t *testing.T) {
	srv, _ := newTestServer(t)
	w := do(t, srv.Handler(), "GET", "/api/gamification/stats", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	if typ, _ := decodeError(t, w); typ != "unauthorized" {
		t.Errorf("type = %q", typ)
	}
}

func TestServiceToken(t *testing.T) {
	srv, _ := newTestServer(t)
	srv.SetServiceToken("s3cret")
	h := srv.Handler()

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong", "Bearer nope", http.StatusUnauthorized},
		{"bearer", "Bearer s3cret", http.StatusOK},
		{"raw", "s3cret", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/gamification/stats", nil)
			req.Header.Set(UserHeader, "u1")
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}

	// /health stays open.
	if w := do(t, h, "GET", "/health", "", nil); w.Code != http.StatusOK {
		t.Errorf("/health status = %d, want 200", w.Code)
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Gamification routes
// ═══════════════════════════════════════════════════════════════════════════

func TestStatsCreatesProfile(t *testing.T) {
	srv, _ := newTestServer(t)
	w := do(t, srv.Handler(), "GET", "/api/gamification/stats", "u1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var stats domain.Stats
	json.NewDecoder(w.Body).Decode(&stats)
	if stats.Profile.Level != 1 || stats.Profile.TotalPoints != 0 {
		t.Errorf("profile = %+v", stats.Profile)
	}
	if stats.NextLevelPoints != 100 {
		t.Errorf("next_level_points = %d, want 100", stats.NextLevelPoints)
	}
	if stats.RecentAchievements == nil || stats.RecentTransactions == nil {
		t.Error("empty lists should encode as [] not null")
	}
}

func TestCompleteFlow(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	w := do(t, h, "POST", "/api/gamification/complete/standard", "u1",
		domain.CompletionRef{ID: "std-1", Title: "Morning run"})
	if w.Code != http.StatusCreated {
		t.Fatalf("complete status = %d, body = %s", w.Code, w.Body.String())
	}
	var tx domain.PointTransaction
	json.NewDecoder(w.Body).Decode(&tx)
	if tx.Points != 10 || tx.Type != domain.TxStandard {
		t.Errorf("tx = %+v, want 10 standard points", tx)
	}
	if tx.Description != "Completed standard: Morning run" {
		t.Errorf("description = %q", tx.Description)
	}

	// First Steps unlocks on the first completion.
	w = do(t, h, "GET", "/api/gamification/achievements", "u1", nil)
	var unlocked []domain.UserAchievement
	json.NewDecoder(w.Body).Decode(&unlocked)
	if len(unlocked) != 1 || unlocked[0].Achievement.Name != "First Steps" {
		t.Fatalf("unlocked = %+v", unlocked)
	}

	w = do(t, h, "GET", "/api/gamification/achievements/available", "u1", nil)
	var available []domain.Achievement
	json.NewDecoder(w.Body).Decode(&available)
	if len(available) != len(engagement.DefaultCatalog())-1 {
		t.Errorf("available = %d, want %d", len(available), len(engagement.DefaultCatalog())-1)
	}

	w = do(t, h, "GET", "/api/gamification/stats", "u1", nil)
	var stats domain.Stats
	json.NewDecoder(w.Body).Decode(&stats)
	if stats.Profile.TotalPoints != 35 {
		t.Errorf("total = %d, want 35", stats.Profile.TotalPoints)
	}
	if stats.Profile.CurrentStreak != 1 {
		t.Errorf("streak = %d, want 1", stats.Profile.CurrentStreak)
	}

	w = do(t, h, "GET", "/api/gamification/notifications", "u1", nil)
	var notes []domain.Notification
	json.NewDecoder(w.Body).Decode(&notes)
	if len(notes) != 1 {
		t.Fatalf("notifications = %d, want 1", len(notes))
	}

	w = do(t, h, "POST", "/api/gamification/notifications/"+itoa(notes[0].ID)+"/shown", "u1", nil)
	if w.Code != http.StatusOK {
		t.Errorf("mark shown status = %d", w.Code)
	}
	w = do(t, h, "GET", "/api/gamification/notifications", "u1", nil)
	notes = nil
	json.NewDecoder(w.Body).Decode(&notes)
	if len(notes) != 0 {
		t.Errorf("pending after shown = %d, want 0", len(notes))
	}
}

func TestCompleteValidation(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	tests := []struct {
		name  string
		path  string
		body  any
		field string
	}{
		{"unknown kind", "/api/gamification/complete/streak", domain.CompletionRef{ID: "x"}, "kind"},
		{"missing id", "/api/gamification/complete/process", domain.CompletionRef{Title: "t"}, "id"},
		{"bad json", "/api/gamification/complete/mtg", "not an object", "body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, "POST", tt.path, "u1", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", w.Code)
			}
			typ, field := decodeError(t, w)
			if typ != "validation_error" || field != tt.field {
				t.Errorf("error = %s/%s, want validation_error/%s", typ, field, tt.field)
			}
		})
	}
}

func TestHistoryFilters(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()
	do(t, h, "POST", "/api/gamification/complete/process", "u1", domain.CompletionRef{ID: "p1"})
	do(t, h, "POST", "/api/gamification/complete/big", "u1", domain.CompletionRef{ID: "b1"})

	tests := []struct {
		query string
		code  int
		count int
	}{
		// process, First Steps, big, Level Up!
		{"", http.StatusOK, 4},
		{"?type=big", http.StatusOK, 1},
		{"?type=achievement&days=7", http.StatusOK, 2},
		{"?days=0", http.StatusOK, 4},
		{"?type=bonus", http.StatusBadRequest, 0},
		{"?days=-1", http.StatusBadRequest, 0},
		{"?days=abc", http.StatusBadRequest, 0},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			w := do(t, h, "GET", "/api/gamification/points/history"+tt.query, "u1", nil)
			if w.Code != tt.code {
				t.Fatalf("status = %d, want %d", w.Code, tt.code)
			}
			if tt.code != http.StatusOK {
				return
			}
			var txs []domain.PointTransaction
			json.NewDecoder(w.Body).Decode(&txs)
			if len(txs) != tt.count {
				t.Errorf("entries = %d, want %d", len(txs), tt.count)
			}
		})
	}
}

func TestLeaderboard(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()
	do(t, h, "POST", "/api/gamification/complete/big", "leader", domain.CompletionRef{ID: "b1"})

	w := do(t, h, "GET", "/api/gamification/leaderboard", "newbie", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var lb domain.Leaderboard
	json.NewDecoder(w.Body).Decode(&lb)
	if len(lb.Leaderboard) != 2 || lb.Leaderboard[0].UserID != "leader" {
		t.Errorf("leaderboard = %+v", lb.Leaderboard)
	}
	if lb.UserRank != 2 {
		t.Errorf("rank = %d, want 2", lb.UserRank)
	}
}

func TestEvaluateReturnsEmptyList(t *testing.T) {
	srv, _ := newTestServer(t)
	w := do(t, srv.Handler(), "POST", "/api/gamification/achievements/evaluate", "u1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp map[string][]domain.Achievement
	json.NewDecoder(w.Body).Decode(&resp)
	if got, ok := resp["unlocked"]; !ok || len(got) != 0 {
		t.Errorf("unlocked = %+v", resp)
	}
}

func TestNotificationShownErrors(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	if w := do(t, h, "POST", "/api/gamification/notifications/abc/shown", "u1", nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad id status = %d, want 400", w.Code)
	}
	if w := do(t, h, "POST", "/api/gamification/notifications/999/shown", "u1", nil); w.Code != http.StatusNotFound {
		t.Errorf("unknown id status = %d, want 404", w.Code)
	}
}

func TestUnknownRoute(t *testing.T) {
	srv, _ := newTestServer(t)
	w := do(t, srv.Handler(), "GET", "/nope", "", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func itoa(n int64) string {
	b, _ := json.Marshal(n)
	return string(b)
}
