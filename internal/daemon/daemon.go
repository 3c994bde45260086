package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/stride-habits/stride/internal/api"
	"github.com/stride-habits/stride/internal/app/engagement"
	"github.com/stride-habits/stride/internal/app/ledger"
	"github.com/stride-habits/stride/internal/health"
	_ "github.com/stride-habits/stride/internal/infra/metrics" // Register Prometheus metrics
	"github.com/stride-habits/stride/internal/infra/sqlite"
)

// Daemon is the core Stride runtime. It wires together all services.
type Daemon struct {
	Config        Config
	DB            *sqlite.DB
	Log           *slog.Logger
	Gamification  *engagement.Service
	Notifications *engagement.NotificationService
	Reconciler    *ledger.Reconciler
	Health        *health.Checker
	Server        *api.Server

	scheduler gocron.Scheduler
	cancel    context.CancelFunc
}

// New creates and initializes a Daemon from the on-disk configuration.
func New() (*Daemon, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	return NewWithConfig(cfg)
}

// NewWithConfig creates a Daemon with the given configuration. The achievement
// catalog is seeded on every start; seeding never duplicates an entry.
func NewWithConfig(cfg Config) (*Daemon, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := NewLogger(os.Stderr, cfg.Logging)

	dir := cfg.Database.Dir
	if dir == "" {
		dir = strideHome()
	}
	db, err := sqlite.Open(dir)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	seeded, err := db.SeedAchievements(context.Background(), engagement.DefaultCatalog())
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("seed achievements: %w", err)
	}
	if seeded > 0 {
		logger.Info("achievement catalog seeded", "added", seeded)
	}

	loc := cfg.Location()
	opts := []engagement.Option{
		engagement.WithLocation(loc),
		engagement.WithAutoCreate(cfg.Gamification.AutoCreateProfiles),
		engagement.WithMaxAwardChain(cfg.Gamification.MaxAwardChain),
		engagement.WithLogger(logger),
	}

	d := &Daemon{
		Config:     cfg,
		DB:         db,
		Log:        logger,
		Reconciler: ledger.NewReconciler(db, logger),
	}

	if cfg.Notifications.Enabled {
		d.Notifications = engagement.NewNotificationServiceWithPolicy(db, cfg.Policy(), loc)
		opts = append(opts, engagement.WithNotifier(d.Notifications))
	}
	d.Gamification = engagement.NewService(db, opts...)

	d.Health = health.NewChecker(db, dir, d.Reconciler, cfg.Integrity.AutoRepair, logger)

	srv := api.NewServer(d.Gamification, logger)
	srv.SetHealth(d.Health)
	srv.SetServiceToken(cfg.API.ServiceToken)
	srv.SetRequestTimeout(parseDuration(cfg.API.RequestTimeout, 30*time.Second))
	if cfg.Telemetry.Prometheus {
		srv.EnableMetrics()
	}
	d.Server = srv

	return d, nil
}

// NewLogger builds the process logger from the logging section.
func NewLogger(w io.Writer, cfg LoggingConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// StartBackground starts the scheduler that runs the health checks, including
// the ledger integrity check, every integrity.interval.
func (d *Daemon) StartBackground(ctx context.Context) error {
	if !d.Config.Integrity.Enabled {
		d.Health.RunOnce(ctx)
		return nil
	}

	s, err := gocron.NewScheduler(gocron.WithLocation(d.Config.Location()))
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}
	interval := parseDuration(d.Config.Integrity.Interval, 15*time.Minute)
	if _, err := d.Health.Schedule(ctx, s, interval); err != nil {
		_ = s.Shutdown()
		return err
	}
	s.Start()
	d.scheduler = s
	d.Log.Info("health checks scheduled", "interval", interval)
	return nil
}

// Serve starts the HTTP server and blocks until shutdown.
func (d *Daemon) Serve(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	d.cancel = cancel

	if err := d.StartBackground(ctx); err != nil {
		return err
	}

	addr := net.JoinHostPort(d.Config.API.Host, strconv.Itoa(d.Config.API.Port))
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      d.Server.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		d.Log.Info("stride serving", "addr", "http://"+addr, "metrics", d.Config.Telemetry.Prometheus)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	d.Log.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	return httpServer.Shutdown(shutdownCtx)
}

// Close shuts down all daemon resources.
func (d *Daemon) Close() {
	if d.cancel != nil {
		d.cancel()
	}
	if d.scheduler != nil {
		if err := d.scheduler.Shutdown(); err != nil {
			d.Log.Warn("scheduler shutdown", "err", err)
		}
		d.scheduler = nil
	}
	if d.DB != nil {
		_ = d.DB.Close()
	}
}
