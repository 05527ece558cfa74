package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/runcrew/service-running/internal/application"
	"github.com/runcrew/service-running/internal/common/auth"
	"github.com/runcrew/service-running/internal/common/database"
	"github.com/runcrew/service-running/internal/common/health"
	"github.com/runcrew/service-running/internal/common/kafka"
	"github.com/runcrew/service-running/internal/common/logger"
	"github.com/runcrew/service-running/internal/common/middleware"
	"github.com/runcrew/service-running/internal/config"
	"github.com/runcrew/service-running/internal/domain/course"
	runningEvents "github.com/runcrew/service-running/internal/events"
	"github.com/runcrew/service-running/internal/handler"
	"github.com/runcrew/service-running/internal/repository"
)

const (
	serviceName      = "service-running"
	profileCacheSize = 4096
	profileCacheTTL  = 5 * time.Minute
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.NewWithOptions(cfg.AppEnv, serviceName, logger.Options{
		Level: cfg.LogConfig.Level,
		File:  cfg.LogConfig.File,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting "+serviceName,
		zap.String("port", cfg.Port),
		zap.String("timezone", cfg.Location.String()),
	)

	// Connect to database
	dbConfig := database.PostgresConfig{
		Host:     cfg.DBConfig.Host,
		Port:     cfg.DBConfig.Port,
		User:     cfg.DBConfig.User,
		Password: cfg.DBConfig.Password,
		DBName:   cfg.DBConfig.DBName,
		SSLMode:  cfg.DBConfig.SSLMode,
	}
	db, err := database.Connect(dbConfig, log)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}

	// Run database migrations
	if cfg.AppEnv == "development" {
		if err := db.AutoMigrate(&repository.UserModel{}, &repository.RunningModel{}, &repository.MessageModel{}); err != nil {
			log.Fatal("failed to run auto-migration", zap.Error(err))
		}
		log.Info("database migration completed (dev auto-migrate)")
	} else {
		dbURL := dbConfig.DatabaseURL()
		if err := database.RunMigrations(dbURL, "migrations", log); err != nil {
			log.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	if err := handler.RegisterValidators(); err != nil {
		log.Fatal("failed to register validators", zap.Error(err))
	}

	// Initialize JWT manager
	jwtManager := auth.NewJWTManagerWithSecrets(
		cfg.JWTConfig.Secret,
		cfg.JWTConfig.RefreshSecret,
		cfg.JWTConfig.AccessTTL,
		cfg.JWTConfig.RefreshTTL,
	)

	// Initialize Kafka producer
	kafkaProducer := kafka.NewProducer(cfg.KafkaConfig.Brokers, log)
	defer func() { _ = kafkaProducer.Close() }()

	healthHandler := health.NewHandler(db, serviceName)

	// Course drafts live in Redis when configured so any replica can serve a session.
	var sessionStore course.SessionStore
	if cfg.RedisConfig.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisConfig.Addr,
			Password: cfg.RedisConfig.Password,
			DB:       cfg.RedisConfig.DB,
		})
		defer func() { _ = rdb.Close() }()
		redisStore := repository.NewRedisCourseSessionStore(rdb, cfg.Course.SessionTTL)
		healthHandler.WithChecker("redis", redisStore)
		sessionStore = redisStore
		log.Info("course sessions stored in redis", zap.String("addr", cfg.RedisConfig.Addr))
	} else {
		sessionStore = repository.NewMemoryCourseSessionStore(cfg.Course.SessionCacheSize, cfg.Course.SessionTTL)
		log.Warn("RUNNING_REDIS_ADDR not set, course sessions kept in memory")
	}

	// Initialize repositories
	userRepo := repository.NewGormUserRepository(db)
	runningRepo := repository.NewGormRunningRepository(db)
	messageRepo := repository.NewGormMessageRepository(db)

	estimator := course.NewStandardPaceEstimator(cfg.Course.DefaultPaceSecPerKm)

	// Initialize application services
	userService := application.NewUserService(
		userRepo,
		jwtManager,
		application.NewProfileCache(profileCacheSize, profileCacheTTL),
		log,
	)
	courseService := application.NewCourseSessionService(sessionStore, estimator, cfg.Course.MaxWaypoints, log)
	runningService := application.NewRunningService(
		runningRepo,
		userService,
		estimator,
		cfg.Course.MaxWaypoints,
		kafkaProducer,
		cfg.Location,
		log,
	)
	chatService := application.NewChatService(messageRepo, runningRepo, userService, kafkaProducer, log)

	// Initialize and start running event consumer in a goroutine
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	groupID := cfg.KafkaConfig.GroupPrefix + "running-service"
	runningConsumer := runningEvents.NewRunningEventConsumer(
		cfg.KafkaConfig.Brokers,
		groupID,
		userService,
		log,
	)
	defer func() { _ = runningConsumer.Close() }()

	go func() {
		log.Info("starting running event consumer")
		if err := runningConsumer.Start(ctx); err != nil && err != context.Canceled {
			log.Error("running event consumer error", zap.Error(err))
		}
	}()

	// Setup Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	// Apply global middleware
	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.LoggerMiddleware(log))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.SecurityHeadersMiddleware())

	// Register health check routes
	healthHandler.RegisterRoutes(router)

	// Register routes
	handler.NewUserHandler(userService, runningService).RegisterRoutes(&router.RouterGroup, jwtManager)
	handler.NewCourseHandler(courseService).RegisterRoutes(&router.RouterGroup, jwtManager)
	handler.NewRunningHandler(runningService).RegisterRoutes(&router.RouterGroup, jwtManager)
	handler.NewChatHandler(chatService).RegisterRoutes(&router.RouterGroup, jwtManager)
	handler.NewAdminRunningHandler(runningService).RegisterRoutes(&router.RouterGroup, jwtManager)

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info("HTTP server starting", zap.String("addr", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down " + serviceName + "...")

	// Cancel the consumer context
	cancel()

	// Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server forced shutdown", zap.Error(err))
	}

	log.Info(serviceName + " stopped")
}
