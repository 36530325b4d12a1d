package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/matt-standley/openmrs-core/internal/config"
	"github.com/matt-standley/openmrs-core/internal/domain/clinical"
	"github.com/matt-standley/openmrs-core/internal/domain/encounter"
	"github.com/matt-standley/openmrs-core/internal/domain/hl7"
	"github.com/matt-standley/openmrs-core/internal/domain/registry"
	"github.com/matt-standley/openmrs-core/internal/platform/db"
	"github.com/matt-standley/openmrs-core/internal/platform/hl7v2"
	"github.com/matt-standley/openmrs-core/internal/platform/middleware"
	"github.com/matt-standley/openmrs-core/internal/platform/telemetry"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "hl7-server",
		Short: "HL7v2 inbound message pipeline",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(processCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server, MLLP listener, and queue processor",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func processCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "process",
		Short: "Drain the inbound queue once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			processor := newProcessor(pool, logger, telemetry.NewPipelineMetrics())
			n, err := processor.ProcessQueue(ctx)
			if err != nil {
				return fmt.Errorf("queue processing failed after %d entries: %w", n, err)
			}

			fmt.Printf("Processed %d queue entrie(s).\n", n)
			return nil
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
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
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
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
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
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

func newLogger() zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return logger
}

// newProcessor wires the queue processor against Postgres-backed repositories.
func newProcessor(pool *pgxpool.Pool, logger zerolog.Logger, metrics *telemetry.PipelineMetrics) *hl7.Processor {
	return hl7.NewProcessor(
		hl7.NewRepo(pool),
		registry.NewRepo(pool),
		encounter.NewService(encounter.NewRepo(pool)),
		clinical.NewService(clinical.NewRepo(pool)),
		logger,
		metrics,
	)
}

func runServer() error {
	logger := newLogger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	metrics := telemetry.NewPipelineMetrics()

	// Repositories and services
	directory := registry.NewRepo(pool)
	encounterSvc := encounter.NewService(encounter.NewRepo(pool))
	clinicalSvc := clinical.NewService(clinical.NewRepo(pool))
	hl7Repo := hl7.NewRepo(pool)
	processor := hl7.NewProcessor(hl7Repo, directory, encounterSvc, clinicalSvc, logger, metrics)

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))

	apiV1 := e.Group("/api/v1")
	hl7.NewHandler(hl7Repo, processor).RegisterRoutes(apiV1)
	encounter.NewHandler(encounterSvc).RegisterRoutes(apiV1)
	clinical.NewHandler(clinicalSvc).RegisterRoutes(apiV1)

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})
	e.GET("/health/db", db.HealthHandler(pool))
	e.GET("/metrics", metrics.Handler())

	// MLLP TCP listener: frames are durably queued before any processing, so a
	// parse failure still produces an error record on the next drain.
	if cfg.MLLPEnabled {
		mllpServer := hl7v2.NewMLLPServer(cfg.MLLPAddr, func(raw []byte, msg *hl7v2.Message) *hl7v2.Message {
			metrics.MLLPMessages.Inc()

			entry := &hl7.InQueue{
				Source: cfg.HL7Source,
				Data:   string(raw),
			}
			if msg != nil {
				entry.SourceKey = msg.ControlID
			}
			if err := hl7Repo.CreateEntry(context.Background(), entry); err != nil {
				logger.Error().Err(err).Msg("failed to enqueue MLLP message")
				return hl7v2.GenerateACK(msg, "AE")
			}
			if msg == nil {
				return hl7v2.GenerateACK(nil, "AE")
			}
			return hl7v2.GenerateACK(msg, "AA")
		}, logger)

		if err := mllpServer.Start(); err != nil {
			logger.Fatal().Err(err).Msg("MLLP server failed to start")
		}
		defer mllpServer.Stop()
		logger.Info().Str("addr", cfg.MLLPAddr).Msg("MLLP server started")
	}

	// Background queue drain on a fixed interval.
	drainCtx, drainCancel := context.WithCancel(context.Background())
	defer drainCancel()
	go func() {
		ticker := time.NewTicker(cfg.ProcessInterval)
		defer ticker.Stop()
		for {
			select {
			case <-drainCtx.Done():
				return
			case <-ticker.C:
				n, err := processor.ProcessQueue(drainCtx)
				if err != nil {
					logger.Error().Err(err).Msg("queue processing failed")
					continue
				}
				if n > 0 {
					logger.Info().Int("entries", n).Msg("queue drained")
				}
			}
		}
	}()

	// Graceful shutdown
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
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
