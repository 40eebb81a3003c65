package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sheet_judge/internal/api"
	"sheet_judge/internal/app/judge"
	"sheet_judge/internal/app/service"
	"sheet_judge/internal/common/security"
	"sheet_judge/internal/domain/repository"
	"sheet_judge/internal/platform/config"
	"sheet_judge/internal/platform/database"
	"sheet_judge/internal/platform/executor"
	"sheet_judge/internal/platform/kv"
	"sheet_judge/internal/platform/logger"

	"github.com/redis/go-redis/v9"
)

func main() {
	// 1. Load Configuration
	config.Load()
	cfg := config.AppConfig

	httpLogger := logger.New("sheet_judge", cfg.AppEnv, cfg.LogLevel, cfg.LogJSON)
	slog.SetDefault(httpLogger.Logger)

	ctx := context.Background()

	// 2. Storage
	var (
		db             *sql.DB
		problemRepo    repository.ProblemRepository
		submissionRepo repository.SubmissionRepository
	)
	switch cfg.StorageBackend {
	case config.StorageBackendMemory:
		slog.Warn("using in-memory storage, submissions are lost on restart")
		problemRepo = repository.NewMemoryProblemRepository()
		submissionRepo = repository.NewMemorySubmissionRepository()
	case config.StorageBackendPostgres:
		var err error
		db, err = database.Connect(ctx, cfg.DBConnStr)
		if err != nil {
			log.Fatalf("Could not connect to database: %v", err)
		}
		defer database.Close(db)
		if cfg.DBAutoMigrate {
			if err := database.Migrate(ctx, db); err != nil {
				log.Fatalf("Could not apply schema: %v", err)
			}
			slog.Info("database schema applied")
		}
		problemRepo = repository.NewPgProblemRepository(db)
		submissionRepo = repository.NewPgSubmissionRepository(db)
	default:
		log.Fatalf("Unknown STORAGE_BACKEND %q", cfg.StorageBackend)
	}

	// 3. Redis user lock (optional)
	var locker service.UserLocker
	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		var err error
		rdb, err = kv.ConnectRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			log.Fatalf("Could not connect to Redis: %v", err)
		}
		defer kv.CloseRedis(rdb)
		locker = kv.NewUserLocker(rdb, cfg.JudgeLockTTL)
	} else {
		slog.Warn("REDIS_ADDR is empty, concurrent submissions of one user are not serialised")
	}

	// 4. Judge0
	if cfg.Judge0URL == "" {
		slog.Warn("JUDGE0_URL is empty, submissions will be answered with 503")
	}
	judge0 := executor.NewJudge0Client(cfg.Judge0URL, cfg.Judge0AuthToken, cfg.Judge0LanguageID, cfg.Judge0Timeout)

	// 5. Services
	problemService := service.NewProblemService(problemRepo)
	submissionService := service.NewSubmissionService(
		submissionRepo,
		problemRepo,
		judge.NewDriver(judge0, cfg.Judge0MemoryUnit),
		locker,
		cfg.SubmitCooldown,
	)

	// 6. Router & HTTP Server
	router := api.NewRouter(api.RouterConfig{
		TokenAuth:      security.NewTokenAuth(cfg.JWTKey),
		Logger:         httpLogger,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		ExposeDebug:    !cfg.IsProduction(),
	}, problemService, submissionService)

	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 130 * time.Second, // longer than the judging request timeout
		IdleTimeout:  120 * time.Second,
	}

	// 7. Graceful Shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "port", cfg.APIPort, "env", cfg.AppEnv, "storage", cfg.StorageBackend)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Could not listen on %s: %v\n", cfg.APIPort, err)
		}
	}()

	<-stop // Wait for interrupt signal

	slog.Info("shutting down server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server shutdown failed: %v", err)
	}
	slog.Info("server stopped gracefully")
}
