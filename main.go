package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"clinic-booking-server/internal/config"
	"clinic-booking-server/internal/events"
	"clinic-booking-server/internal/lock"
	"clinic-booking-server/internal/logger"
	"clinic-booking-server/internal/models"
	"clinic-booking-server/internal/repository"
	"clinic-booking-server/internal/routes"
	"clinic-booking-server/internal/scheduling"
	"clinic-booking-server/internal/seed"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "clinic-booking-server",
		Short:         "Clinic appointment booking API server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// A missing .env is fine; the environment may already be set.
			_ = godotenv.Load()
		},
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := bootstrap()
			if err != nil {
				return err
			}
			db, err := models.Open(dbConfig(cfg))
			if err != nil {
				return err
			}
			if err := models.Migrate(db); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			log.Info().Str("driver", cfg.Database.Driver).Msg("schema migrated")
			return nil
		},
	}
}

func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Fill the database with demo doctors, patients and appointments",
		RunE: func(cmd *cobra.Command, args []string) error {
			doctors, _ := cmd.Flags().GetInt("doctors")
			patients, _ := cmd.Flags().GetInt("patients")
			perDoctor, _ := cmd.Flags().GetInt("appointments")

			cfg, log, err := bootstrap()
			if err != nil {
				return err
			}
			db, err := models.InitDB(dbConfig(cfg))
			if err != nil {
				return err
			}
			planner, err := newPlanner(cfg.Schedule)
			if err != nil {
				return err
			}

			guard := scheduling.NewGuard(repository.NewAppointmentRepository(db), lock.NewLocal())
			res, err := seed.Run(cmd.Context(), db, planner, guard, seed.Options{
				Doctors:               doctors,
				Patients:              patients,
				AppointmentsPerDoctor: perDoctor,
				Anchor:                time.Now(),
			}, log)
			if err != nil {
				return err
			}
			log.Info().
				Int("doctors", res.Doctors).
				Int("patients", res.Patients).
				Int("appointments", res.Appointments).
				Msg("seed complete")
			return nil
		},
	}
	cmd.Flags().Int("doctors", 10, "Number of doctors to create")
	cmd.Flags().Int("patients", 30, "Number of patients to create")
	cmd.Flags().Int("appointments", 5, "Appointments to attempt per doctor over the coming week")
	return cmd
}

func bootstrap() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("load config: %w", err)
	}
	return cfg, logger.New(cfg.Log), nil
}

func dbConfig(cfg *config.Config) models.DatabaseConfig {
	return models.DatabaseConfig{
		Driver: cfg.Database.Driver,
		DSN:    cfg.Database.DSN,
		Debug:  cfg.Log.Level == "debug",
	}
}

func newPlanner(s config.ScheduleConfig) (*scheduling.Planner, error) {
	loc, err := s.Location()
	if err != nil {
		return nil, err
	}
	return scheduling.NewPlanner(
		scheduling.WithLocation(loc),
		scheduling.WithBusinessHours(s.StartHour, s.EndHour, time.Duration(s.IntervalMinutes)*time.Minute),
		scheduling.WithWindowDays(s.WindowDays),
		scheduling.WithLocale(scheduling.Translator(s.Locale)),
	)
}

func newLocker(ctx context.Context, cfg config.RedisConfig, log zerolog.Logger) (lock.Locker, func(), error) {
	if cfg.Addr == "" {
		log.Info().Msg("redis not configured, using in-process booking locks")
		return lock.NewLocal(), func() {}, nil
	}
	client, err := lock.NewRedisClient(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	log.Info().Str("addr", cfg.Addr).Msg("connected to redis")
	return lock.NewRedis(client, cfg.LockTTL, log), func() { _ = client.Close() }, nil
}

func newPublisher(cfg config.KafkaConfig, log zerolog.Logger) (events.Publisher, error) {
	if len(cfg.Brokers) == 0 {
		log.Info().Msg("kafka not configured, appointment events are dropped")
		return events.Nop{}, nil
	}
	pub, err := events.NewKafkaPublisher(cfg, log)
	if err != nil {
		return nil, err
	}
	log.Info().Strs("brokers", cfg.Brokers).Str("topic", cfg.Topic).Msg("publishing appointment events")
	return pub, nil
}

func runServer() error {
	cfg, log, err := bootstrap()
	if err != nil {
		return err
	}
	ctx := context.Background()

	db, err := models.InitDB(dbConfig(cfg))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer closeDB(db, log)
	log.Info().Str("driver", cfg.Database.Driver).Msg("connected to database")

	planner, err := newPlanner(cfg.Schedule)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid schedule configuration")
	}

	locker, closeLocker, err := newLocker(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer closeLocker()

	publisher, err := newPublisher(cfg.Kafka, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create event publisher")
	}
	defer publisher.Close()

	if cfg.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(logger.RequestLogger(log))
	router.Use(logger.Recovery(log))

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{cfg.Origin}
	corsConfig.AllowCredentials = true
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"}
	router.Use(cors.New(corsConfig))

	routes.SetupRoutes(router, routes.Dependencies{
		DB:        db,
		Config:    cfg,
		Planner:   planner,
		Locker:    locker,
		Publisher: publisher,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info().Str("port", cfg.Port).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
		return err
	}
	log.Info().Msg("server stopped")
	return nil
}

func closeDB(db *gorm.DB, log zerolog.Logger) {
	sqlDB, err := db.DB()
	if err != nil {
		return
	}
	if err := sqlDB.Close(); err != nil {
		log.Warn().Err(err).Msg("closing database")
	}
}
