package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/manataote/cabinet-medical-sub001/internal/config"
	"github.com/manataote/cabinet-medical-sub001/internal/domain/bordereau"
	"github.com/manataote/cabinet-medical-sub001/internal/domain/claim"
	"github.com/manataote/cabinet-medical-sub001/internal/domain/invoice"
	"github.com/manataote/cabinet-medical-sub001/internal/domain/patient"
	"github.com/manataote/cabinet-medical-sub001/internal/domain/prescription"
	"github.com/manataote/cabinet-medical-sub001/internal/domain/tariff"
	"github.com/manataote/cabinet-medical-sub001/internal/platform/auth"
	"github.com/manataote/cabinet-medical-sub001/internal/platform/db"
	"github.com/manataote/cabinet-medical-sub001/internal/platform/metrics"
	"github.com/manataote/cabinet-medical-sub001/internal/platform/middleware"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "cabinet-server",
		Short: "Cabinet medical practice-management API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if dir == "" {
				dir = cfg.MigrationsDir
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "", "Path to migrations directory (defaults to MIGRATIONS_DIR)")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if dir == "" {
				dir = cfg.MigrationsDir
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "", "Path to migrations directory (defaults to MIGRATIONS_DIR)")
	cmd.AddCommand(statusCmd)

	return cmd
}

func runServer() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(metrics.Middleware())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	e.GET("/health", db.HealthHandler(pool))
	e.GET("/metrics", metrics.Handler())

	apiV1 := e.Group("/api/v1")

	switch cfg.ResolvedAuthMode() {
	case "development":
		apiV1.Use(auth.DevMiddleware())
	default:
		apiV1.Use(auth.Middleware([]byte(cfg.JWTSecret)))
	}

	apiV1.Use(db.AcquireMiddleware(pool))

	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	apiV1.Use(limiter.Middleware())

	tariffCfg := tariff.Config{
		IKPerKm:     cfg.TarifIKPerKm,
		IFDRate:     cfg.TarifIFD,
		NightRate:   cfg.TarifNuit,
		HolidayRate: cfg.TarifFerie,
	}
	timeout := cfg.PersistenceTimeout()

	patientSvc := patient.NewService(patient.NewRepoPG(pool), timeout, logger)
	prescriptionSvc := prescription.NewService(prescription.NewRepoPG(pool), timeout)
	claimSvc := claim.NewService(claim.NewRepoPG(pool), pool, tariffCfg, timeout, logger)
	invoiceSvc := invoice.NewService(invoice.NewRepoPG(pool), pool, timeout)
	bordereauSvc := bordereau.NewService(bordereau.NewRepoPG(pool), pool, timeout, logger)

	// Deleting a claim or invoice must pull it off its batch first.
	claimSvc.SetDetacher(bordereauSvc)
	invoiceSvc.SetDetacher(bordereauSvc)

	patient.NewHandler(patientSvc).Register(apiV1)
	prescription.NewHandler(prescriptionSvc).Register(apiV1)
	claim.NewHandler(claimSvc).Register(apiV1)
	invoice.NewHandler(invoiceSvc).Register(apiV1)
	bordereau.NewHandler(bordereauSvc).Register(apiV1)

	scheduler := gocron.NewScheduler(time.UTC)
	if _, err := scheduler.Cron(cfg.BordereauRefreshCron).Do(func() {
		if err := bordereauSvc.RefreshOpenBatches(context.Background()); err != nil {
			logger.Error().Err(err).Msg("nightly bordereau refresh failed")
		}
	}); err != nil {
		logger.Fatal().Err(err).Str("cron", cfg.BordereauRefreshCron).Msg("invalid refresh schedule")
	}
	scheduler.StartAsync()
	defer scheduler.Stop()

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("server listening")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server stopped")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
