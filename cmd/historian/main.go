// cmd/historian/main.go drains match summaries from the Redis queue into PostgreSQL.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload"
	"github.com/keremzytn/NumberFightAI/internal/cache"
	"github.com/keremzytn/NumberFightAI/internal/config"
	"github.com/keremzytn/NumberFightAI/internal/database"
	"github.com/keremzytn/NumberFightAI/internal/historian"
	"github.com/sirupsen/logrus"
)

func main() {
	logger := logrus.New()

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("invalid configuration")
	}
	logger.SetLevel(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb, err := cache.Connect(ctx, cfg.RedisAddr, cfg.RedisDB)
	if err != nil {
		logger.WithError(err).Fatal("failed to connect to redis")
	}
	defer rdb.Close()

	pool, err := database.Connect(ctx, cfg.Postgres.ConnString())
	if err != nil {
		logger.WithError(err).Fatal("failed to connect to postgres")
	}
	defer pool.Close()
	if err := database.EnsureSchema(ctx, pool); err != nil {
		logger.WithError(err).Fatal("failed to prepare postgres schema")
	}

	svc := historian.New(
		cache.NewSummaryQueue(rdb, cfg.QueueName),
		database.NewMatchRepository(pool),
		cfg.HistorianBatchSize,
		cfg.HistorianFlush,
		logger.WithField("queue", cfg.QueueName),
	).WithDeadLetter(cache.NewSummaryQueue(rdb, cfg.QueueName+":failed"))
	svc.Run(ctx)
}
