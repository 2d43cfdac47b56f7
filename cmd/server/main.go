// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/keremzytn/NumberFightAI/internal/ai"
	"github.com/keremzytn/NumberFightAI/internal/auth"
	"github.com/keremzytn/NumberFightAI/internal/broker"
	"github.com/keremzytn/NumberFightAI/internal/cache"
	"github.com/keremzytn/NumberFightAI/internal/config"
	"github.com/keremzytn/NumberFightAI/internal/database"
	"github.com/keremzytn/NumberFightAI/internal/game"
	"github.com/keremzytn/NumberFightAI/internal/handlers"
	"github.com/keremzytn/NumberFightAI/internal/lobby"
	"github.com/keremzytn/NumberFightAI/internal/session"
	"github.com/keremzytn/NumberFightAI/internal/storage"
	"github.com/redis/go-redis/v9"
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

	authn, err := newAuthenticator(cfg)
	if err != nil {
		logger.WithError(err).Fatal("failed to init auth keys")
	}

	var rdb *redis.Client
	if cfg.PersistBackend == config.BackendRedis || cfg.RoomCodes == config.CodesRedis {
		if rdb, err = cache.Connect(ctx, cfg.RedisAddr, cfg.RedisDB); err != nil {
			logger.WithError(err).Fatal("failed to connect to redis")
		}
		defer rdb.Close()
	}

	var (
		sink    session.SummarySink
		history handlers.MatchHistory
	)
	switch cfg.PersistBackend {
	case config.BackendPostgres:
		pool, err := database.Connect(ctx, cfg.Postgres.ConnString())
		if err != nil {
			logger.WithError(err).Fatal("failed to connect to postgres")
		}
		defer pool.Close()
		if err := database.EnsureSchema(ctx, pool); err != nil {
			logger.WithError(err).Fatal("failed to prepare postgres schema")
		}
		repo := database.NewMatchRepository(pool)
		sink, history = repo, repo
	case config.BackendRedis:
		sink = cache.NewSummaryQueue(rdb, cfg.QueueName)
	case config.BackendSQLite:
		archive, err := storage.Open(cfg.SQLitePath)
		if err != nil {
			logger.WithError(err).Fatal("failed to open sqlite archive")
		}
		defer archive.Close()
		sink, history = archive, archive
	}
	logger.WithField("backend", cfg.PersistBackend).Info("match summaries configured")

	engine := session.NewEngine(game.NewMatchStore(), ai.NewPicker(time.Now().UnixNano()), sink, logger, session.Config{
		ReconnectGrace: cfg.ReconnectGrace,
		Retention:      cfg.MatchRetention,
	})
	defer engine.Close()

	timer := handlers.NewRoundTimer(engine, cfg.RoundDuration, logger)
	defer timer.Close()
	engine.Observe(timer.Observe)

	if cfg.NATSURL != "" {
		nc, err := broker.Connect(cfg.NATSURL, "numberfight-server")
		if err != nil {
			logger.WithError(err).Fatal("failed to connect to nats")
		}
		defer nc.Drain()
		engine.Observe(broker.NewPublisher(nc, logger).Observe)
		logger.WithField("url", cfg.NATSURL).Info("publishing match events to nats")
	}

	var codes lobby.CodeReserver
	if cfg.RoomCodes == config.CodesRedis {
		codes = cache.NewCodeReserver(rdb)
	}
	lobbyManager := lobby.NewManager(engine, codes, logger, cfg.RoomTTL)
	defer lobbyManager.Close()

	srv := handlers.NewServer(engine, lobbyManager, authn, history, logger)
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Infof("Running on %s", server.Addr)
		errc <- server.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("server exited")
		}
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("graceful shutdown failed")
	}
}

func newAuthenticator(cfg config.Config) (*auth.Authenticator, error) {
	if cfg.AuthPrivateKeyPath != "" {
		return auth.NewFromPath(cfg.AuthPrivateKeyPath, cfg.AuthPublicKeyPath, cfg.TokenExpire)
	}
	return auth.New(cfg.TokenExpire)
}
