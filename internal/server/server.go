package server

import (
	"context"
	"errors"

	"github.com/AndrewsGM/driver-pro/internal/auth"
	"github.com/AndrewsGM/driver-pro/internal/broker"
	"github.com/AndrewsGM/driver-pro/internal/config"
	"github.com/AndrewsGM/driver-pro/internal/db"
	"github.com/AndrewsGM/driver-pro/internal/drive"
	"github.com/AndrewsGM/driver-pro/internal/examroute"
	"github.com/AndrewsGM/driver-pro/internal/progress"
	"github.com/AndrewsGM/driver-pro/internal/session"
	"github.com/AndrewsGM/driver-pro/internal/stream"
	"github.com/AndrewsGM/driver-pro/internal/telemetry"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Resources are the external connections the server runs on. Any of them
// may be nil.
type Resources struct {
	Postgres  *pgxpool.Pool
	Redis     *redis.Client
	Publisher *broker.Publisher
	Logger    zerolog.Logger
}

type Server struct {
	App     *fiber.App
	Cfg     config.Config
	DB      *pgxpool.Pool
	Query   db.Querier
	Redis   *redis.Client
	Stream  *stream.Hub
	Manager *session.Manager
	Log     zerolog.Logger
}

func NewServer(cfg config.Config, res Resources) *Server {
	app := fiber.New(fiber.Config{
		AppName:      "driver-pro",
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
		ErrorHandler: errorHandler,
	})
	app.Use(recover.New())
	app.Use(logger.New())

	s := &Server{
		App:    app,
		Cfg:    cfg,
		DB:     res.Postgres,
		Redis:  res.Redis,
		Stream: stream.NewHub(res.Redis, res.Logger),
		Log:    res.Logger,
	}

	s.Query = db.FromPool(res.Postgres)
	deps := session.Deps{
		Store:        drive.NewStore(s.Query),
		Progress:     progress.NewBreakerStore(progress.NewService(s.Query), cfg.BreakerFailures, cfg.BreakerTimeout, res.Logger),
		Notifier:     s.Stream,
		Logger:       res.Logger,
		TickInterval: cfg.TickInterval,
		NewSensor: func() telemetry.LocationSource {
			return telemetry.NewQueue()
		},
	}
	if res.Publisher != nil {
		deps.Publisher = res.Publisher
	}
	s.Manager = session.NewManager(deps)

	registerRoutes(s)
	return s
}

func registerRoutes(s *Server) {
	s.App.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	s.App.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	userMiddleware := auth.UserMiddleware()
	routes := examroute.NewService(s.Query)

	drive.RegisterRoutes(s.App.Group("/drive"), drive.NewService(s.Manager, drive.NewStore(s.Query), routes), userMiddleware)
	progress.RegisterRoutes(s.App.Group("/progress"), progress.NewService(s.Query), userMiddleware)
	examroute.RegisterRoutes(s.App.Group("/exam-routes"), routes, userMiddleware)
	stream.RegisterRoutes(s.App.Group("/stream", userMiddleware), s.Stream, s.Manager)
}

// Close finishes the live sessions and stops the stream fan-out.
func (s *Server) Close(ctx context.Context) error {
	err := s.Manager.Close(ctx)
	return errors.Join(err, s.Stream.Close())
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}
