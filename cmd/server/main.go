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

	"github.com/joho/godotenv"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"drama-server/internal/agent"
	"drama-server/internal/config"
	"drama-server/internal/database"
	deliveryhttp "drama-server/internal/delivery/http"
	"drama-server/internal/logger"
	"drama-server/internal/narrative"
	"drama-server/internal/replicate"
	"drama-server/internal/repository"
)

const sessionLockTTL = 5 * time.Minute

func main() {
	// .env отсутствует в контейнерах, это не ошибка
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:    cfg.LogLevel,
		Encoding: "json",
	})
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	zap.ReplaceGlobals(log)
	log.Info("Configuration loaded", zap.String("logLevel", cfg.LogLevel))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := database.NewPool(ctx, database.Config{
		DSN:         cfg.GetDSN(),
		MaxConns:    cfg.DBMaxConns,
		IdleTimeout: cfg.DBIdleTimeout,
	}, log)
	if err != nil {
		log.Fatal("Failed to connect to PostgreSQL", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(pool, log); err != nil {
		log.Fatal("Failed to apply migrations", zap.Error(err))
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Fatal("Invalid Redis URL", zap.Error(err))
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	log.Info("Connected to Redis")

	generator, err := replicate.NewClient(replicate.Config{
		Token:         cfg.ReplicateToken,
		BaseURL:       cfg.ReplicateBaseURL,
		Model:         cfg.ReplicateModel,
		CreateTimeout: cfg.CreateTimeout,
		CreateRetries: cfg.CreateRetries,
		StreamTimeout: cfg.GenerateTimeout,
	}, log)
	if err != nil {
		log.Fatal("Failed to create model client", zap.Error(err))
	}

	sessionRepo := repository.NewPgSessionRepository(pool, log)

	engine, err := narrative.NewAdapter(narrative.Config{
		BaseURL:     cfg.EngineBaseURL,
		Timeout:     cfg.EngineTimeout,
		ScriptsFrom: sessionRepo.GetStory,
	}, log)
	if err != nil {
		log.Fatal("Failed to create narrative engine adapter", zap.Error(err))
	}

	locker := repository.NewRedisSessionLock(redisClient, sessionLockTTL, log)
	pipeline := agent.NewService(sessionRepo, locker, engine, engine, generator, log)

	handler := deliveryhttp.NewStoryHandler(pipeline, sessionRepo, pool, log)
	router := deliveryhttp.NewRouter(handler, cfg.AllowedOrigins(), log)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
		// Story streams live for minutes; only the read side is bounded.
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("Starting HTTP server", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited")
}
