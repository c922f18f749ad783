package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AndrewsGM/driver-pro/internal/broker"
	"github.com/AndrewsGM/driver-pro/internal/config"
	"github.com/AndrewsGM/driver-pro/internal/db"
	"github.com/AndrewsGM/driver-pro/internal/logging"
	"github.com/AndrewsGM/driver-pro/internal/server"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

var mainDepsProvider = defaultDeps
var mainRunner = realMain

func main() {
	mainRunner(mainDepsProvider())
}

type mainDeps struct {
	loadConfig      func() config.Config
	connectPostgres func(config.Config) (*pgxpool.Pool, error)
	connectRedis    func(config.Config) *redis.Client
	connectBroker   func(string, zerolog.Logger) (*broker.Publisher, error)
	notify          func(chan<- os.Signal, ...os.Signal)
	run             func(context.Context, config.Config, server.Resources, <-chan os.Signal, ListenFunc) error
}

func defaultDeps() mainDeps {
	return mainDeps{
		loadConfig:      config.Load,
		connectPostgres: db.ConnectPostgres,
		connectRedis:    db.ConnectRedis,
		connectBroker:   broker.NewPublisher,
		notify:          signal.Notify,
		run:             Run,
	}
}

func realMain(deps mainDeps) {
	cfg := deps.loadConfig()
	log := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stdout)

	res := server.Resources{Logger: log}

	pg, err := deps.connectPostgres(cfg)
	if err != nil {
		log.Error().Err(err).Msg("postgres connection failed")
	}
	res.Postgres = pg
	res.Redis = deps.connectRedis(cfg)

	if cfg.AMQPURL != "" {
		pub, err := deps.connectBroker(cfg.AMQPURL, log)
		if err != nil {
			log.Warn().Err(err).Msg("rabbitmq unavailable, session events disabled")
		} else {
			res.Publisher = pub
		}
	}

	signals := make(chan os.Signal, 1)
	deps.notify(signals, syscall.SIGINT, syscall.SIGTERM)

	if err := deps.run(context.Background(), cfg, res, signals, nil); err != nil {
		log.Error().Err(err).Msg("server exited with error")
	}
}

type ListenFunc func(app *fiber.App, addr string) error

var defaultListen ListenFunc = func(app *fiber.App, addr string) error {
	return app.Listen(addr)
}

var shutdownFn = func(app *fiber.App, ctx context.Context) error {
	return app.ShutdownWithContext(ctx)
}

// Run starts the HTTP server and waits for termination signals. On the way
// out, live sessions are finished before the connections are closed.
func Run(ctx context.Context, cfg config.Config, res server.Resources, signals <-chan os.Signal, listen ListenFunc) error {
	srv := server.NewServer(cfg, res)

	if listen == nil {
		listen = defaultListen
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- listen(srv.App, cfg.ServerPort)
	}()

	select {
	case <-signals:
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := shutdownFn(srv.App, shutdownCtx); err != nil {
		return err
	}

	err := srv.Close(shutdownCtx)
	if err != nil {
		res.Logger.Error().Err(err).Msg("finishing live sessions failed")
	}
	if res.Publisher != nil {
		err = errors.Join(err, res.Publisher.Close())
	}
	if res.Postgres != nil {
		res.Postgres.Close()
	}
	if res.Redis != nil {
		_ = res.Redis.Close()
	}
	return err
}
