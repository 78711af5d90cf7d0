package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dealdocs/engine/internal/repository"
	"github.com/dealdocs/engine/pkg/config"
	"github.com/dealdocs/engine/pkg/database"
	"github.com/dealdocs/engine/pkg/logger"
	"go.uber.org/zap"
)

func main() {
	cfg := config.MustLoad()
	log, err := logger.Init(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	db, err := database.OpenPostgres(context.Background(), cfg.DatabaseURL)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}

	if err := repository.Migrate(db); err != nil {
		log.Fatal("migration failed", zap.Error(err))
	}

	fmt.Fprintln(os.Stdout, "migrations completed")
}
