// Package api provides the HTTP server for Stride.
// It exposes the gamification read models and completion hooks under
// /api/gamification, plus /health and /metrics.
package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stride-habits/stride/internal/app/engagement"
	"github.com/stride-habits/stride/internal/domain"
	"github.com/stride-habits/stride/internal/health"
	"github.com/stride-habits/stride/internal/infra/metrics"
)

// UserHeader carries the caller identity vouched for by the upstream gateway.
const UserHeader = "X-User-ID"

// Server is the Stride HTTP API server.
type Server struct {
	gamification   *engagement.Service
	health         *health.Checker
	log            *slog.Logger
	metricsEnabled bool
	serviceToken   string
	requestTimeout time.Duration
}

// NewServer creates a new API server.
func NewServer(svc *engagement.Service, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		gamification:   svc,
		log:            log.With("component", "api"),
		requestTimeout: 30 * time.Second,
	}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// SetHealth attaches the health checker reported on /health.
func (s *Server) SetHealth(c *health.Checker) { s.health = c }

// SetServiceToken requires every /api request to carry the gateway token.
// An empty token disables the check.
func (s *Server) SetServiceToken(token string) { s.serviceToken = token }

// SetRequestTimeout bounds each request's context.
func (s *Server) SetRequestTimeout(d time.Duration) {
	if d > 0 {
		s.requestTimeout = d
	}
}

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.requestTimeout))
	r.Use(s.requestLog)
	r.Use(corsMiddleware)

	r.Get("/health", s.handleHealth)

	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Route("/api/gamification", func(r chi.Router) {
		r.Use(s.gatewayAuth)
		r.Use(callerIdentity)

		r.Get("/stats", s.handleStats)
		r.Get("/achievements", s.handleAchievements)
		r.Get("/achievements/available", s.handleAvailableAchievements)
		r.Post("/achievements/evaluate", s.handleEvaluate)
		r.Get("/points/history", s.handleHistory)
		r.Get("/leaderboard", s.handleLeaderboard)
		r.Post("/complete/{kind}", s.handleComplete)
		r.Get("/notifications", s.handleNotifications)
		r.Post("/notifications/{id}/shown", s.handleNotificationShown)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", "no route for "+r.URL.Path)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{"status": "ok"}
	if s.health != nil {
		if !s.health.IsHealthy() {
			resp["status"] = "degraded"
		}
		resp["checks"] = s.health.Statuses()
	}
	writeJSON(w, http.StatusOK, resp)
}

// ─── Middleware ─────────────────────────────────────────────────────────────

type ctxKey int

const userKey ctxKey = iota

// callerIdentity copies the gateway-supplied user id into the request context.
func callerIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := strings.TrimSpace(r.Header.Get(UserHeader))
		if user == "" {
			writeDomainError(w, domain.ErrMissingUser)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey, user)))
	})
}

func userFrom(ctx context.Context) string {
	user, _ := ctx.Value(userKey).(string)
	return user
}

// gatewayAuth rejects requests that do not carry the configured service token
// as "Authorization: Bearer <token>" or a raw header value.
func (s *Server) gatewayAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.serviceToken == "" {
			next.ServeHTTP(w, r)
			return
		}
		header := r.Header.Get("Authorization")
		if header == "" {
			s.log.Warn("gateway token missing", "path", r.URL.Path)
			writeError(w, http.StatusUnauthorized, "unauthorized", "gateway authentication token missing")
			return
		}
		token := strings.TrimPrefix(header, "Bearer ")
		if subtle.ConstantTimeCompare([]byte(token), []byte(s.serviceToken)) != 1 {
			s.log.Warn("gateway token invalid", "path", r.URL.Path)
			writeError(w, http.StatusUnauthorized, "unauthorized", "invalid gateway authentication token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requestLog logs each request and counts it by route pattern.
func (s *Server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
		s.log.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// corsMiddleware adds CORS headers for browser clients.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+UserHeader)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ─── Responses ──────────────────────────────────────────────────────────────

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, typ, msg string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    typ,
		},
	})
}

// writeDomainError maps an application error onto a status code.
func writeDomainError(w http.ResponseWriter, err error) {
	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		body := map[string]any{"message": ve.Message, "type": "validation_error"}
		if ve.Field != "" {
			body["field"] = ve.Field
		}
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": body})
	case errors.Is(err, domain.ErrUnknownTransactionType):
		writeError(w, http.StatusBadRequest, "validation_error", err.Error())
	case errors.Is(err, domain.ErrProfileNotFound),
		errors.Is(err, domain.ErrAchievementNotFound),
		errors.Is(err, domain.ErrNotificationNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, domain.ErrMissingUser):
		writeError(w, http.StatusUnauthorized, "unauthorized", err.Error())
	case errors.Is(err, domain.ErrLedgerDrift):
		writeError(w, http.StatusConflict, "consistency_error", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, "timeout", "request timed out")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
