package main

import (
	"collective/backend/internal/account"
	"collective/backend/internal/api/handler"
	"collective/backend/internal/config"
	"collective/backend/internal/logger"
	"collective/backend/internal/messaging"
	"collective/backend/internal/profile"
	"collective/backend/internal/session"
	"collective/backend/internal/storage"
	"collective/backend/internal/storage/memory"
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func setupStorage(cfg *config.Config) (storage.Storage, func()) {
	if cfg.StorageBackend == config.BackendMemory {
		log.Warn("Using in-memory storage, data is lost on restart")
		return memory.New(), func() {}
	}

	// 1. PostgreSQL
	db, err := gorm.Open(postgres.Open(cfg.Database.DSN()), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		log.Fatalf("Failed to connect PostgreSQL: %v", err)
	}

	// 2. Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		log.Fatalf("Failed to connect Redis: %v", err)
	}

	// 3. Migrations
	s := storage.NewStorageService(db, rdb)
	if err := s.Migrate(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	log.Info("Database and Redis connections established, migrations complete.")
	return s, func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
		_ = rdb.Close()
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	l := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	l.Info("Starting Collective backend...")

	// 1. Dependencies
	store, closeStore := setupStorage(cfg)
	defer closeStore()

	// 2. Services
	conversations, messages := messaging.NewEngines(store)
	h := handler.NewHandler(
		conversations,
		messages,
		account.NewService(store),
		profile.NewService(store),
		session.NewManager(store, cfg.Session),
		*cfg,
	)

	// 3. Gin and routes
	if l.GetLevel() < log.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), logger.RequestID(), logger.AccessLog(l))
	h.Register(r)

	server := &http.Server{
		Addr:           ":" + cfg.Port,
		Handler:        r,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		l.Infof("Listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Fatalf("HTTP server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		l.Errorf("Graceful shutdown failed: %v", err)
	}
	l.Info("Server stopped")
}
