package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"guesswho-server/internal/auth"
	"guesswho-server/internal/cache"
	"guesswho-server/internal/catalog"
	"guesswho-server/internal/config"
	"guesswho-server/internal/database"
	"guesswho-server/internal/handler"
	"guesswho-server/internal/logger"
	appMiddleware "guesswho-server/internal/middleware"
	"guesswho-server/internal/messaging"
	"guesswho-server/internal/service"
	"guesswho-server/internal/ws"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()
	log.Println("Starting guesswho-server...")

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLogger, err := logger.New(logger.Config{
		Level: cfg.LogLevel,
	})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer appLogger.Sync()
	appLogger.Info("Logger initialized", zap.String("logLevel", cfg.LogLevel))

	// PostgreSQL
	dbPool, err := setupDatabase(cfg)
	if err != nil {
		appLogger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer dbPool.Close()
	appLogger.Info("Connected to PostgreSQL")

	if err := database.RunMigrations(dbPool, appLogger); err != nil {
		appLogger.Fatal("Failed to apply migrations", zap.Error(err))
	}

	// Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
		DB:   cfg.RedisDB,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		appLogger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	appLogger.Info("Connected to Redis")

	// RabbitMQ
	rabbitConn, err := connectRabbitMQ(cfg.RabbitMQURL, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to connect to RabbitMQ", zap.Error(err))
	}
	defer rabbitConn.Close()
	appLogger.Info("Connected to RabbitMQ")

	// Question catalog
	questionCatalog, err := catalog.Load()
	if err != nil {
		appLogger.Fatal("Failed to load question catalog", zap.Error(err))
	}

	// Repositories and infrastructure
	gameRepo := database.NewPgGameRepository(dbPool, appLogger)
	playerRepo := database.NewPgPlayerRepository(dbPool, appLogger)
	memberRepo := database.NewPgMemberRepository(dbPool, appLogger)
	txManager := database.NewTxManager(dbPool)
	gameCache := cache.NewRedisGameCache(redisClient, cfg.GameCacheTTL, appLogger)

	publisher, err := messaging.NewRabbitMQGameUpdatePublisher(rabbitConn, cfg.GameUpdatesQueue, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to create game update publisher", zap.Error(err))
	}

	connManager := ws.NewConnectionManager(appLogger)
	updateConsumer := messaging.NewConsumer(rabbitConn, connManager, cfg.GameUpdatesQueue, appLogger)
	go func() {
		if err := updateConsumer.StartConsuming(); err != nil {
			appLogger.Error("Game update consumer stopped with error", zap.Error(err))
		}
	}()

	// Service and handlers
	gameService := service.NewGameService(
		txManager, gameRepo, playerRepo, memberRepo, gameCache, publisher, questionCatalog, appLogger)

	verifier, err := auth.NewJWTVerifier(cfg.JWTSecret, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to create JWT verifier", zap.Error(err))
	}

	gameHandler := handler.NewGameHandler(gameService, memberRepo, questionCatalog, appLogger)
	wsHandler := handler.NewWSHandler(connManager, verifier, playerRepo, appLogger)

	// Echo
	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewRequestValidator()
	e.Use(appMiddleware.EchoZapLogger(appLogger))
	e.Use(echoMiddleware.Recover())
	e.Use(echoMiddleware.CORSWithConfig(echoMiddleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))

	authMW := appMiddleware.Auth(verifier.VerifyToken, playerRepo, appLogger)
	gameHandler.RegisterRoutes(e, authMW)
	wsHandler.RegisterRoutes(e)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Stale game sweep
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	go runStaleSweep(sweepCtx, gameService, cfg, appLogger)

	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			e.Logger.Fatal("HTTP server failed: ", err)
		}
	}()
	appLogger.Info("Server listening", zap.String("port", cfg.Port))

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.Info("Shutdown signal received")

	stopSweep()
	updateConsumer.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		e.Logger.Fatal("Graceful shutdown failed: ", err)
	}

	log.Println("guesswho-server stopped")
}

// runStaleSweep periodically abandons idle games.
func runStaleSweep(ctx context.Context, svc service.GameService, cfg *config.Config, logger *zap.Logger) {
	if cfg.StaleSweepInterval <= 0 {
		logger.Info("Stale game sweep disabled")
		return
	}
	ticker := time.NewTicker(cfg.StaleSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			n, err := svc.SweepStaleGames(ctx, cfg.StaleGameThreshold)
			if err != nil {
				logger.Error("Stale game sweep failed", zap.Error(err))
				continue
			}
			if n > 0 {
				logger.Info("Stale games abandoned", zap.Int64("count", n))
			}
		case <-ctx.Done():
			return
		}
	}
}

func setupDatabase(cfg *config.Config) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse DSN: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.DBMaxConns)
	poolConfig.MaxConnIdleTime = cfg.DBIdleTimeout
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	dbPool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err = dbPool.Ping(ctx); err != nil {
		dbPool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return dbPool, nil
}

// connectRabbitMQ retries the connection a few times before giving up.
func connectRabbitMQ(url string, logger *zap.Logger) (*amqp.Connection, error) {
	var conn *amqp.Connection
	var err error
	maxRetries := 5
	retryDelay := 5 * time.Second
	for i := 0; i < maxRetries; i++ {
		conn, err = amqp.Dial(url)
		if err == nil {
			return conn, nil
		}
		logger.Warn("Failed to connect to RabbitMQ",
			zap.Int("attempt", i+1),
			zap.Int("max_attempts", maxRetries),
			zap.Duration("retry_delay", retryDelay),
			zap.Error(err),
		)
		time.Sleep(retryDelay)
	}
	return nil, err
}
