// Package main runs the background worker: notification delivery and the
// scheduled matching sweep.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/mingle-rounds/backend/config"
	"github.com/mingle-rounds/backend/internal/matching"
	"github.com/mingle-rounds/backend/internal/notifications"
	"github.com/mingle-rounds/backend/internal/participants"
	"github.com/mingle-rounds/backend/internal/registrations"
	"github.com/mingle-rounds/backend/internal/sessions"
	"github.com/mingle-rounds/backend/internal/worker"
	"github.com/mingle-rounds/backend/pkg/database"
	"github.com/mingle-rounds/backend/pkg/queue"
	"github.com/mingle-rounds/backend/pkg/redis"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	jobQueue := queue.NewQueue(rdb.Client, logger)

	matchingRepo := matching.NewRepository(pool)
	enqueuer := notifications.NewEnqueuer(jobQueue, logger)
	orchestrator := matching.NewOrchestrator(matchingRepo, logger,
		matching.WithWeights(matching.ScoreWeights{
			Novelty:      cfg.Matching.NoveltyBonus,
			TeamAffinity: cfg.Matching.TeamAffinityBonus,
			TopicOverlap: cfg.Matching.TopicBonus,
		}),
		matching.WithStaleLockAfter(cfg.Matching.StaleLockAfter()),
		matching.WithNotifier(enqueuer),
	)

	sessionRepo := sessions.NewRepository(pool)
	registrationRepo := registrations.NewRepository(pool)
	participantRepo := participants.NewRepository(pool)
	sweeper := worker.NewSweeper(sessionRepo, registrationRepo, participantRepo, orchestrator, jobQueue,
		time.Duration(cfg.Matching.SweepIntervalSeconds)*time.Second,
		time.Duration(cfg.Matching.SweepLookbackMinutes)*time.Minute,
		logger)

	notificationRepo := notifications.NewRepository(pool)
	sender := worker.NewLogSender(logger)
	processor := worker.NewNotificationProcessor(jobQueue, sender, notificationRepo, logger)

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go sweeper.Run(workerCtx)
	go processor.Run(workerCtx)
	logger.Info("worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	time.Sleep(2 * time.Second)
	logger.Info("worker stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
