package main

import (
	"database/sql"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/iliyamo/firestation-attendance/internal/config"
	"github.com/iliyamo/firestation-attendance/internal/database"
	"github.com/iliyamo/firestation-attendance/internal/logging"
	"github.com/iliyamo/firestation-attendance/internal/queue"
	"github.com/iliyamo/firestation-attendance/internal/service"
	"github.com/iliyamo/firestation-attendance/internal/store"
	"github.com/iliyamo/firestation-attendance/internal/utils"
)

// App holds the dependencies shared by every subcommand.
type App struct {
	cfg       config.Config
	logger    *zap.Logger
	db        *sql.DB
	publisher *queue.Publisher
}

var app *App

func main() {
	rootCmd := &cobra.Command{
		Use:           "firestation",
		Short:         "Fire station attendance backend",
		Long:          `Runs the attendance API and its background jobs, and provides maintenance commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initApp()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			app.close()
		},
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(sweepCmd())
	rootCmd.AddCommand(createUserCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		if app != nil {
			app.close()
		}
		os.Exit(1)
	}
}

// initApp loads .env, builds the logger, validates configuration and opens
// the database.
func initApp() error {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	cfg, err := config.LoadAndValidate()
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Env)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	app = &App{cfg: cfg, logger: logger}
	logger.Info("starting", zap.String("env", cfg.Env))

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	app.db = db

	if cfg.EventsEnabled {
		app.publisher = queue.NewPublisher(cfg.AMQPURL, logger)
	}
	return nil
}

func (a *App) close() {
	if a == nil {
		return
	}
	if a.publisher != nil {
		a.publisher.Close()
	}
	if a.db != nil {
		_ = a.db.Close()
	}
	_ = a.logger.Sync()
}

// attendanceService wires the state machine against MySQL.
func (a *App) attendanceService() (*service.AttendanceService, *utils.QRTokens) {
	qr := utils.NewQRTokens(a.cfg.JWTSecret, nil)
	policy := service.DefaultPolicy()
	policy.AutoEndAfter = a.cfg.AutoEndAfter
	policy.KioskAllowEinsatz = a.cfg.KioskAllowEinsatz

	opts := []service.Option{service.WithPolicy(policy)}
	if a.publisher != nil {
		opts = append(opts, service.WithEvents(a.publisher))
	}
	return service.NewAttendanceService(store.New(a.db), qr, a.logger, opts...), qr
}
