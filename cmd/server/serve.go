package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/iliyamo/firestation-attendance/internal/config"
	"github.com/iliyamo/firestation-attendance/internal/handler"
	"github.com/iliyamo/firestation-attendance/internal/jobs"
	"github.com/iliyamo/firestation-attendance/internal/middleware"
	"github.com/iliyamo/firestation-attendance/internal/queue"
	"github.com/iliyamo/firestation-attendance/internal/repository"
	"github.com/iliyamo/firestation-attendance/internal/router"
	"github.com/iliyamo/firestation-attendance/internal/service"
	"github.com/iliyamo/firestation-attendance/internal/utils"
)

const shutdownTimeout = 10 * time.Second

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, the auto-end sweep, the backup schedule and the event consumer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, app)
		},
	}
}

func serve(ctx context.Context, a *App) error {
	cfg, logger := a.cfg, a.logger

	rdb, err := config.NewRedisClient(ctx)
	if err != nil {
		logger.Warn("redis unavailable, running without rate limiting and statistics cache", zap.Error(err))
	} else {
		defer rdb.Close()
	}

	svc, qr := a.attendanceService()
	e := newEcho(a, svc, qr, rdb)

	jobs.StartAutoEndSweep(ctx, svc, cfg.SweepInterval, logger.Named("sweep"))
	startBackups(ctx, a)
	if cfg.EventsEnabled {
		go queue.StartEventConsumer(ctx, cfg.AMQPURL, cfg.EventLogPath, logger.Named("events"))
	}

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		logger.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return e.Shutdown(sctx)
}

func newEcho(a *App, svc *service.AttendanceService, qr *utils.QRTokens, rdb *redis.Client) *echo.Echo {
	cfg, logger := a.cfg, a.logger

	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewValidator()
	e.Use(echomw.Recover())
	e.Use(middleware.RequestLogger(logger.Named("http")))

	sessions := repository.NewSessionRepo(a.db)
	attendances := repository.NewAttendanceRepo(a.db)

	sh := &handler.SessionHandler{
		Ops:       svc,
		Sessions:  sessions,
		Attendees: attendances,
		Tokens:    qr,
		KioskURL:  cfg.KioskBaseURL,
		QRTTL:     cfg.QRTokenTTL,
		Logger:    logger,
	}
	ah := &handler.AttendanceHandler{Ops: svc, Attendees: attendances, Logger: logger}
	st := &handler.StatisticsHandler{
		Reports: service.NewStatisticsService(repository.NewStatsRepo(a.db), nil),
		Logger:  logger,
	}
	ph := &handler.PersonnelHandler{Personnel: repository.NewPersonnelRepo(a.db), Logger: logger}
	auth := handler.NewAuthHandler(cfg, repository.NewUserRepo(a.db), repository.NewTokenRepo(a.db), logger)

	limit := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, logger.Named("ratelimit"))
	cache := middleware.NewRedisCache(config.LoadCacheConfig(), rdb, logger.Named("cache"))

	router.RegisterRoutes(e)
	router.RegisterAuth(e, auth, cfg.JWTSecret)
	router.RegisterKiosk(e, sh, ah, cfg.JWTSecret, limit)
	router.RegisterStaff(e, sh, st, ph, cfg.JWTSecret, cache)
	router.RegisterBoard(e, router.Board{
		Groups:        &handler.GroupHandler{Groups: repository.NewGroupRepo(a.db), Logger: logger},
		Announcements: &handler.AnnouncementHandler{Announcements: repository.NewAnnouncementRepo(a.db), Logger: logger},
		News:          &handler.NewsHandler{News: repository.NewNewsRepo(a.db), Logger: logger},
		Calendar:      &handler.CalendarHandler{Events: repository.NewCalendarRepo(a.db), Logger: logger},
		Duty:          &handler.DutyHandler{Duties: repository.NewDutyRepo(a.db), Logger: logger},
	}, cfg.JWTSecret, limit)
	return e
}

// startBackups publishes a backup request at every occurrence of the
// configured schedule.  The backup worker consumes BackupQueue.
func startBackups(ctx context.Context, a *App) {
	cfg, logger := a.cfg, a.logger.Named("backup")
	if !cfg.BackupEnabled {
		return
	}
	if a.publisher == nil {
		logger.Warn("backups enabled but events are disabled; no backup requests will be sent")
		return
	}
	rule, err := cfg.BackupSchedule(time.Now())
	if err != nil {
		logger.Error("invalid backup schedule", zap.Error(err))
		return
	}
	trigger := func(ctx context.Context, at time.Time) error {
		return a.publisher.TriggerBackup(ctx, queue.BackupRequest{
			RequestedAt:   at,
			Path:          cfg.BackupPath,
			RetentionDays: cfg.BackupRetentionDays,
		})
	}
	jobs.StartBackupSchedule(ctx, rule, trigger, logger)
}
