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

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Kilat-Pet-Delivery/service-adoption/internal/application"
	"github.com/Kilat-Pet-Delivery/service-adoption/internal/common/auth"
	"github.com/Kilat-Pet-Delivery/service-adoption/internal/common/database"
	"github.com/Kilat-Pet-Delivery/service-adoption/internal/common/health"
	"github.com/Kilat-Pet-Delivery/service-adoption/internal/common/kafka"
	"github.com/Kilat-Pet-Delivery/service-adoption/internal/common/logger"
	"github.com/Kilat-Pet-Delivery/service-adoption/internal/common/middleware"
	"github.com/Kilat-Pet-Delivery/service-adoption/internal/config"
	adoptionDomain "github.com/Kilat-Pet-Delivery/service-adoption/internal/domain/adoption"
	petDomain "github.com/Kilat-Pet-Delivery/service-adoption/internal/domain/pet"
	photoDomain "github.com/Kilat-Pet-Delivery/service-adoption/internal/domain/photo"
	userDomain "github.com/Kilat-Pet-Delivery/service-adoption/internal/domain/user"
	adoptionEvents "github.com/Kilat-Pet-Delivery/service-adoption/internal/events"
	"github.com/Kilat-Pet-Delivery/service-adoption/internal/handler"
	"github.com/Kilat-Pet-Delivery/service-adoption/internal/repository"
	"github.com/Kilat-Pet-Delivery/service-adoption/internal/repository/memory"
	"github.com/Kilat-Pet-Delivery/service-adoption/migrations"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the payment event consumer",
		RunE:  runServe,
	}
}

// backend bundles the repositories of one storage engine.
type backend struct {
	pets    petDomain.PetRepository
	users   userDomain.UserRepository
	ledgers adoptionDomain.LedgerRepository
	photos  photoDomain.PhotoRepository
	uow     adoptionDomain.UnitOfWork
	pinger  health.Pinger
	close   func() error
}

func runServe(cmd *cobra.Command, _ []string) error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize logger
	log, err := logger.NewNamed(cfg.AppEnv, serviceName)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting "+serviceName,
		zap.String("port", cfg.Port),
		zap.String("storage", cfg.Storage),
		zap.Bool("events", cfg.EventsEnabled),
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openBackend(cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = store.close() }()

	// Initialize JWT manager
	jwtManager := auth.NewJWTManager(cfg.JWTConfig.Secret, cfg.JWTConfig.AccessTTL, cfg.JWTConfig.RefreshTTL)

	// Initialize event producer
	var publisher application.EventPublisher = kafka.NopPublisher{}
	if cfg.EventsEnabled {
		producer := kafka.NewProducer(cfg.KafkaConfig.Brokers, log)
		defer func() { _ = producer.Close() }()
		publisher = producer
	}

	// Initialize application services
	adoptionService := application.NewAdoptionService(store.uow, store.ledgers, publisher, cfg.LockTimeout, log)
	petService := application.NewPetService(store.pets, store.uow, log)
	photoService := application.NewPhotoService(store.photos, store.pets, log)
	userService := application.NewUserService(store.users, jwtManager, log)

	// Setup Gin router
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// Apply global middleware
	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.LoggerMiddleware(log))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.SecurityHeadersMiddleware())

	// Register health check routes
	health.NewHandler(store.pinger, serviceName).RegisterRoutes(router)

	// Register routes
	handler.NewAdoptionHandler(adoptionService).RegisterRoutes(&router.RouterGroup, jwtManager)
	handler.NewPetHandler(petService).RegisterRoutes(&router.RouterGroup, jwtManager)
	handler.NewPhotoHandler(photoService).RegisterRoutes(&router.RouterGroup, jwtManager)
	handler.NewUserHandler(userService).RegisterRoutes(&router.RouterGroup, jwtManager)
	handler.NewAdminAdoptionHandler(adoptionService).RegisterRoutes(&router.RouterGroup, jwtManager)

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("HTTP server starting", zap.String("addr", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	if cfg.EventsEnabled {
		groupID := cfg.KafkaConfig.GroupPrefix + "adoption-service"
		paymentConsumer := adoptionEvents.NewPaymentEventConsumer(cfg.KafkaConfig.Brokers, groupID, adoptionService, log)
		defer func() { _ = paymentConsumer.Close() }()

		g.Go(func() error {
			log.Info("starting payment event consumer")
			if err := paymentConsumer.Start(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("payment event consumer error: %w", err)
			}
			return nil
		})
	}

	// Graceful shutdown
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down " + serviceName + "...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP server forced shutdown", zap.Error(err))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info(serviceName + " stopped")
	return nil
}

func openBackend(cfg *config.ServiceConfig, log *zap.Logger) (*backend, error) {
	if cfg.Storage == config.StorageMemory {
		log.Warn("using in-memory storage; data is lost on restart")
		store := memory.NewStore()
		return &backend{
			pets:    store.Pets(),
			users:   store.Users(),
			ledgers: store.Ledgers(),
			photos:  store.Photos(),
			uow:     store,
			close:   func() error { return nil },
		}, nil
	}

	// Connect to database
	dbConfig := postgresConfig(cfg)
	db, err := database.Connect(dbConfig, log)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	// Run database migrations
	if err := database.RunMigrations(dbConfig.DatabaseURL(), migrations.FS, log); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &backend{
		pets:    repository.NewGormPetRepository(db),
		users:   repository.NewGormUserRepository(db),
		ledgers: repository.NewGormLedgerRepository(db),
		photos:  repository.NewGormPhotoRepository(db),
		uow:     repository.NewGormUnitOfWork(db, log),
		pinger:  sqlDB,
		close:   sqlDB.Close,
	}, nil
}

func postgresConfig(cfg *config.ServiceConfig) database.PostgresConfig {
	return database.PostgresConfig{
		Host:     cfg.DBConfig.Host,
		Port:     cfg.DBConfig.Port,
		User:     cfg.DBConfig.User,
		Password: cfg.DBConfig.Password,
		DBName:   cfg.DBConfig.DBName,
		SSLMode:  cfg.DBConfig.SSLMode,
	}
}
