package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/vitalflow/vitalflow/internal/config"
	"github.com/vitalflow/vitalflow/internal/domain/agent"
	"github.com/vitalflow/vitalflow/internal/domain/audit"
	"github.com/vitalflow/vitalflow/internal/domain/bed"
	"github.com/vitalflow/vitalflow/internal/domain/decision"
	"github.com/vitalflow/vitalflow/internal/domain/hospital"
	"github.com/vitalflow/vitalflow/internal/domain/patient"
	"github.com/vitalflow/vitalflow/internal/domain/staff"
	"github.com/vitalflow/vitalflow/internal/platform/auth"
	"github.com/vitalflow/vitalflow/internal/platform/db"
	"github.com/vitalflow/vitalflow/internal/platform/middleware"
	"github.com/vitalflow/vitalflow/internal/platform/notify"
	"github.com/vitalflow/vitalflow/internal/platform/snapshot"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "vitalflow-server",
		Short: "Hospital resource allocation server",
	}

	rootCmd.AddCommand(serveCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the allocation API server and the autonomous agent loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func runServer() error {
	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.IsDev() {
		logger.Warn().Msg("running in development mode, all requests get clinician access")
	}

	// Core stores and services
	patients := patient.NewRepository()
	pool := bed.NewPool()
	staffRepo := staff.NewRepository()
	auditLog := audit.NewLog(logger)
	allocator := bed.NewAllocator(pool, patients, auditLog)
	scheduler := staff.NewScheduler(staffRepo, patients, auditLog, staff.Config{
		MaxPatientsPerDoctor:  cfg.MaxPatientsPerDoctor,
		MaxPatientsPerNurse:   cfg.MaxPatientsPerNurse,
		FatigueThresholdHours: float64(cfg.FatigueThresholdHours),
		FatigueWarningHours:   float64(cfg.FatigueWarningHours),
	})
	ag := agent.New(patients, allocator, scheduler, decision.NewGate(), auditLog,
		notify.NewLogNotifier(logger), logger, agent.Config{
			Interval:             cfg.LoopInterval(),
			ICUCapacityThreshold: float64(cfg.ICUCapacityThreshold),
		})
	svc := hospital.NewService(patients, allocator, scheduler, ag, auditLog, logger)

	ctx := context.Background()

	// Snapshot store: Postgres when configured, local file otherwise.
	var store snapshot.Store = snapshot.NewFileStore(cfg.SnapshotPath)
	if cfg.DatabaseURL != "" {
		dbPool, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer dbPool.Close()
		pgStore := snapshot.NewPGStore(dbPool)
		if err := pgStore.Migrate(ctx); err != nil {
			logger.Fatal().Err(err).Msg("failed to migrate snapshot table")
		}
		store = pgStore
		logger.Info().Msg("connected to database")
	}
	var snapshotter *snapshot.Snapshotter
	if cfg.SnapshotIntervalSeconds > 0 {
		snapshotter = snapshot.New(patients, pool, staffRepo, auditLog, store,
			logger, cfg.SnapshotInterval())
	}

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	// Auth middleware
	if cfg.IsDev() {
		e.Use(auth.DevMiddleware())
	} else {
		e.Use(auth.Middleware(auth.Config{
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
			SigningKey: []byte(cfg.AuthSigningKey),
		}))
	}

	// Routes
	apiV1 := e.Group("/api/v1")
	hospital.NewHandler(svc).RegisterRoutes(apiV1)
	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	// Background loops
	agentCtx, stopAgent := context.WithCancel(ctx)
	defer stopAgent()
	ag.Start(agentCtx)
	if snapshotter != nil {
		go snapshotter.Run(agentCtx)
	}

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := ag.Stop(5 * time.Second); err != nil {
		logger.Error().Err(err).Msg("agent did not stop cleanly")
	}
	if snapshotter != nil {
		snapshotter.Stop(shutdownCtx)
	}
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
