package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cpted-sync/internal/cache"
	"cpted-sync/internal/config"
	"cpted-sync/internal/database"
	"cpted-sync/internal/httpapi"
	"cpted-sync/internal/logger"
	"cpted-sync/internal/repository"
	"cpted-sync/internal/service"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format, "cpted-server")
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// Postgres is the canonical store. When it is unreachable the server
	// falls back to the in-memory repository so local development and
	// integration tests can run without a database; data does not survive
	// a restart in that mode.
	var db *sql.DB
	var assessmentsRepo repository.AssessmentsRepo
	var photosRepo repository.PhotosRepo
	if d, err := database.NewPostgresDB(&cfg.Database); err == nil {
		db = d
		assessmentsRepo = repository.NewPostgresAssessmentsRepo(db)
		photosRepo = repository.NewPostgresPhotosRepo(db)
		log.Info("connected to Postgres", zap.String("host", cfg.Database.Host))
	} else {
		mem := repository.NewMemoryRepo()
		assessmentsRepo = mem
		photosRepo = mem
		log.Warn("database connection failed, falling back to in-memory repository", zap.Error(err))
	}

	var kv cache.KV
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		kv = cache.NewRedisKV(redisClient)
		log.Info("summary cache enabled", zap.String("addr", cfg.Redis.Addr))
	}

	syncSvc := service.NewSyncService(assessmentsRepo, kv, cfg.Redis.SummaryTTL, log)
	photoSvc := service.NewPhotoService(photosRepo, cfg.Photos.Dir, log)

	router := httpapi.NewRouter(log)
	router.RegisterSyncRoutes(
		httpapi.NewAssessmentsHandler(syncSvc, log),
		httpapi.NewPhotosHandler(photoSvc, syncSvc, log),
	)

	srv := service.NewServer(cfg.HTTP.Addr, router, log)

	_, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		cancel()
	case err := <-errCh:
		log.Error("server stopped", zap.Error(err))
		cancel()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
	if redisClient != nil {
		_ = redisClient.Close()
	}
	if db != nil {
		_ = db.Close()
	}
}
