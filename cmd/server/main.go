package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"skycast.backend/internal/config"
	"skycast.backend/internal/infrastructure/jobs"
	"skycast.backend/internal/infrastructure/repositories"
	"skycast.backend/internal/infrastructure/weather"
	"skycast.backend/internal/interfaces/http/handlers"
	"skycast.backend/internal/interfaces/http/middleware"
	"skycast.backend/internal/usecases"
	"skycast.backend/pkg/jwt"
	"skycast.backend/pkg/logger"
	"skycast.backend/pkg/redis"
)

var (
	loadDotenv = godotenv.Load
	loadCfg    = config.Load
	initLog    = logger.Init
	initRedis  = redis.Init
	openDB     = func(dsn string) (*gorm.DB, error) {
		return gorm.Open(postgres.New(postgres.Config{
			DSN:                  dsn,
			PreferSimpleProtocol: true,
		}), &gorm.Config{
			PrepareStmt: false,
		})
	}
	runServer = func(r *gin.Engine, port string) error { return r.Run(":" + port) }
	getStdDB  = func(db *gorm.DB) (*sql.DB, error) { return db.DB() }
)

func main() {
	if err := runMainProcess(); err != nil {
		log.Fatal(err)
	}
}

func runMainProcess() error {
	// Load .env file
	if err := loadDotenv(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Load configuration
	cfg := loadCfg()

	// Initialize Logger
	initLog(cfg.Server.Env)
	logger.Info(context.Background(), "Logger initialized", zap.String("env", cfg.Server.Env))

	// Initialize Redis (weather response cache); the service degrades to
	// uncached upstream calls if it is unavailable.
	if err := initRedis(cfg.Redis.URL, cfg.Redis.Password); err != nil {
		logger.Warn(context.Background(), "Redis unavailable, weather caching disabled", zap.Error(err))
	} else {
		logger.Info(context.Background(), "Redis initialized")
	}

	// Set Gin mode
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Connect to database using GORM
	dsn := cfg.Database.URL()
	db, err := openDB(dsn)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := getStdDB(db)
	if err != nil {
		return fmt.Errorf("failed to get generic database object: %w", err)
	}
	defer sqlDB.Close()

	if err := sqlDB.Ping(); err != nil {
		log.Printf("⚠️ Database not available: %v (endpoints will return errors)", err)
	} else {
		log.Println("✅ Connected to PostgreSQL via GORM")
	}

	// Initialize JWT service
	jwtService := jwt.NewJWTService(cfg.JWT.Secret, cfg.JWT.AccessExpiry)

	// Initialize repositories
	userRepo := repositories.NewUserRepository(db)
	apiKeyRepo := repositories.NewApiKeyRepository(db)
	rateLimitRepo := repositories.NewRateLimitRepository(db)
	auditRepo := repositories.NewAuditRepository(db)

	// Initialize outbound weather clients
	forecastClient := weather.NewClient(cfg.Weather.ForecastBaseURL, cfg.Weather.Timeout)
	geocoder := weather.NewGeocoder(cfg.Weather.GeocodeBaseURL, cfg.Weather.Timeout)
	imageClient := weather.NewImageClient(cfg.Weather.ImagesBaseURL, cfg.Weather.ImagesAPIKey, cfg.Weather.Timeout)

	// Initialize usecases
	authUsecase := usecases.NewAuthUsecase(userRepo, jwtService)
	apiKeyUsecase := usecases.NewApiKeyUsecase(apiKeyRepo, cfg.Security.BcryptCost)
	limiterUsecase := usecases.NewRateLimiterUsecase(rateLimitRepo)
	auditUsecase := usecases.NewAuditUsecase(auditRepo)
	weatherUsecase := usecases.NewWeatherUsecase(forecastClient, geocoder, imageClient, cfg.Weather.CacheTTL)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authUsecase)
	apiKeyHandler := handlers.NewApiKeyHandler(apiKeyUsecase)
	adminHandler := handlers.NewAdminHandler(apiKeyUsecase, auditUsecase, limiterUsecase, cfg)
	weatherHandler := handlers.NewWeatherHandler(weatherUsecase)

	// Create governance gateway and session middleware
	gateway := middleware.NewGateway(apiKeyUsecase, limiterUsecase, auditUsecase)
	sessionAuth := middleware.AuthMiddleware(jwtService)

	// Start background jobs
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	retentionJob := jobs.NewRetentionJob(auditUsecase, limiterUsecase, cfg.Retention)
	go retentionJob.Start(ctx)

	// Initialize router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.LoggerMiddleware())
	r.Use(middleware.SecurityHeadersMiddleware())

	applyCORSMiddleware(r)
	registerHealthRoute(r)
	registerMetricsRoute(r)
	registerAPIV1Routes(r, routeDeps{
		authHandler:    authHandler,
		apiKeyHandler:  apiKeyHandler,
		adminHandler:   adminHandler,
		weatherHandler: weatherHandler,
		gateway:        gateway,
		sessionAuth:    sessionAuth,
		cfg:            cfg,
	})

	// Print all registered routes for debugging
	log.Println("📋 Registered Routes:")
	for _, route := range r.Routes() {
		log.Printf("   %s %s", route.Method, route.Path)
	}

	// Graceful shutdown
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Println("🛑 Shutting down server...")
		retentionJob.Stop()
		cancel()
	}()

	// Start server
	log.Printf("🚀 SkyCast Backend starting on port %s", cfg.Server.Port)
	log.Printf("📚 API: http://localhost:%s/api/v1", cfg.Server.Port)
	log.Printf("❤️ Health: http://localhost:%s/health", cfg.Server.Port)

	if err := runServer(r, cfg.Server.Port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}
