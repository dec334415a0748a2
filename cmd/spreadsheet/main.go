package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"spreadsheet-service/internal/MinIO"
	"spreadsheet-service/internal/app"
	"spreadsheet-service/internal/config"
	"spreadsheet-service/pkg/database/postgres"
	"spreadsheet-service/pkg/database/redis"
	"spreadsheet-service/pkg/logger"
)

func main() {
	ctx := context.Background()
	ctx, _ = logger.New(ctx)

	cfg, err := config.Load()
	if err != nil {
		logger.GetLogger(ctx).Fatal("Error loading config", zap.Error(err))
	}

	conn, err := postgres.New(ctx, cfg.Postgres)
	if err != nil {
		logger.GetLogger(ctx).Fatal("Error connecting to postgres", zap.Error(err))
	}
	defer conn.Close(ctx)

	redisClient := redis.New(cfg.Redis)
	defer redisClient.Close()

	objects, err := MinIO.New(ctx, cfg.MinIO)
	if err != nil {
		logger.GetLogger(ctx).Fatal("Error connecting to minio", zap.Error(err))
	}

	// TODO: expose the app over gRPC once the transport contract lands.
	_ = app.New(conn, redisClient, objects)

	logger.GetLogger(ctx).Info("spreadsheet service started")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.GetLogger(ctx).Info("spreadsheet service stopped")
}
