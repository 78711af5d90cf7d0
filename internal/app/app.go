// Package app assembles the stores and services shared by the api, worker and
// docsctl binaries.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/dealdocs/engine/internal/docgen/pdfform"
	"github.com/dealdocs/engine/internal/lock"
	"github.com/dealdocs/engine/internal/repository"
	"github.com/dealdocs/engine/internal/services"
	"github.com/dealdocs/engine/internal/storage"
	"github.com/dealdocs/engine/pkg/config"
	"github.com/dealdocs/engine/pkg/database"
	"github.com/dealdocs/engine/pkg/logger"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config *config.Config
	DB     *gorm.DB
	Redis  *redis.Client
	Blobs  *storage.MinioStore

	Auth       services.AuthService
	Generation services.GenerationService
	Status     services.StatusService
	Documents  services.DocumentService
	Templates  services.TemplateService
	Backfill   services.BackfillService
}

// New opens postgres, redis and the blob store and builds every service.
// An unreachable redis downgrades the per-deal lease to a no-op; the
// conditional status transition still guards concurrent runs.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	db, err := database.OpenPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	blobs, err := storage.NewMinioStore(storage.OptionsFromConfig(cfg))
	if err != nil {
		return nil, err
	}

	rdb := redis.NewClient(RedisOptions(cfg))
	var locker lock.Locker = lock.NewRedisLocker(rdb)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		logger.L().Warn("redis unreachable, deal lease disabled", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		locker = lock.NopLocker{}
	}

	deals := repository.NewDealRepository(db)
	documents := repository.NewDocumentRepository(db)
	templates := repository.NewTemplateRepository(db)
	packs := repository.NewPackRepository(db)

	a := &App{
		Config: cfg,
		DB:     db,
		Redis:  rdb,
		Blobs:  blobs,

		Auth:      services.NewAuthService(repository.NewUserRepository(db), []byte(cfg.JWTSecret)),
		Status:    services.NewStatusService(deals, documents, packs),
		Documents: services.NewDocumentService(deals, documents, blobs),
		Templates: services.NewTemplateService(templates, blobs),
		Backfill:  services.NewBackfillService(packs, documents),
		Generation: services.NewGenerationService(services.GenerationDeps{
			Deals:       deals,
			Clients:     repository.NewClientRepository(db),
			Vehicles:    repository.NewVehicleRepository(db),
			Dealerships: repository.NewDealershipRepository(db),
			Templates:   templates,
			Documents:   documents,
			Blobs:       blobs,
			Filler:      pdfform.NewFiller(pdfform.NewPDFCPULoader()),
			Locker:      locker,
		}, services.GenerationSettings{
			Concurrency:     cfg.GenerationConcurrency,
			TemplateTimeout: cfg.TemplateTimeout,
			LeaseTTL:        cfg.DealLeaseTTL,
		}),
	}
	return a, nil
}

// RedisOptions is shared by the lease client and the asynq connection.
func RedisOptions(cfg *config.Config) *redis.Options {
	return &redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: 0}
}

// AsynqRedis returns the asynq connection options for cfg.
func AsynqRedis(cfg *config.Config) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: 0}
}

// Ping checks postgres and redis.
func (a *App) Ping(ctx context.Context) error {
	if err := database.Ping(ctx, a.DB); err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	if err := a.Redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	return nil
}

func (a *App) Close() {
	if err := a.Redis.Close(); err != nil {
		logger.L().Warn("redis close", zap.Error(err))
	}
	if sqlDB, err := a.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
