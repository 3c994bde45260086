package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/stride-habits/stride/internal/app/engagement"
	"github.com/stride-habits/stride/internal/domain"
)

const pendingNotificationLimit = 20

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	if !domain.IsValidation(err) && !errors.Is(err, domain.ErrProfileNotFound) &&
		!errors.Is(err, domain.ErrNotificationNotFound) {
		s.log.Error("request failed", "path", r.URL.Path, "user", userFrom(r.Context()), "err", err)
	}
	writeDomainError(w, err)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.gamification.Stats(r.Context(), userFrom(r.Context()))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleAchievements(w http.ResponseWriter, r *http.Request) {
	list, err := s.gamification.UnlockedAchievements(r.Context(), userFrom(r.Context()))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleAvailableAchievements(w http.ResponseWriter, r *http.Request) {
	list, err := s.gamification.AvailableAchievements(r.Context(), userFrom(r.Context()))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	unlocked, err := s.gamification.EvaluateAchievements(r.Context(), userFrom(r.Context()))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if unlocked == nil {
		unlocked = []domain.Achievement{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"unlocked": unlocked})
}

// GET /points/history?type=<transaction type>&days=<n>
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter, err := engagement.ParseHistoryFilter(q.Get("type"), q.Get("days"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	txs, err := s.gamification.History(r.Context(), userFrom(r.Context()), filter)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, txs)
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	lb, err := s.gamification.Leaderboard(r.Context(), userFrom(r.Context()))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lb)
}

// POST /complete/{kind} with body {"id": "...", "title": "..."}.
// Collaborators call this once per false->true completion transition.
func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) {
	kind, err := engagement.ParseCompletionKind(chi.URLParam(r, "kind"))
	if err != nil {
		s.fail(w, r, err)
		return
	}

	var ref domain.CompletionRef
	if err := json.NewDecoder(io.LimitReader(r.Body, 64<<10)).Decode(&ref); err != nil {
		s.fail(w, r, &domain.ValidationError{Field: "body", Message: "invalid JSON: " + err.Error()})
		return
	}
	if strings.TrimSpace(ref.ID) == "" {
		s.fail(w, r, &domain.ValidationError{Field: "id", Message: "is required"})
		return
	}

	tx, err := s.gamification.Complete(r.Context(), userFrom(r.Context()), kind, ref)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, tx)
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	n := s.gamification.Notifications()
	if n == nil {
		writeJSON(w, http.StatusOK, []domain.Notification{})
		return
	}
	list, err := n.Pending(r.Context(), userFrom(r.Context()), pendingNotificationLimit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if list == nil {
		list = []domain.Notification{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleNotificationShown(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		s.fail(w, r, &domain.ValidationError{Field: "id", Message: "must be a positive integer"})
		return
	}
	n := s.gamification.Notifications()
	if n == nil {
		s.fail(w, r, domain.ErrNotificationNotFound)
		return
	}
	if err := n.MarkShown(r.Context(), userFrom(r.Context()), id); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "shown"})
}
