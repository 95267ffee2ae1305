package routes

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/courtchamps/courtchamps/internal/config"
	"github.com/courtchamps/courtchamps/internal/deletion"
	"github.com/courtchamps/courtchamps/internal/middleware"
	"github.com/courtchamps/courtchamps/internal/notification"
)

// Deps aggregates shared dependencies required to wire routes. Connections
// are nil when no configured backend needs them.
type Deps struct {
	Cfg      config.Config
	DB       *pgxpool.Pool
	Cache    *redis.Client
	Mongo    *mongo.Client
	Notifier notification.Notifier
	Logger   *slog.Logger
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps, b Backends) error {
	if d.Logger == nil {
		return fmt.Errorf("logger is required")
	}

	// Middlewares
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	// Plain text access log in desired format: [HH:MM:SS] 200 -  145ms METHOD /path
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: d.Cfg.AllowedOrigin,
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, X-Request-ID",
	}))
	app.Use(middleware.Audit(d.Logger))

	// Health
	RegisterHealthRoutes(app, d)

	deletionSvc, err := deletion.NewService(deletion.Deps{
		Directory: b.Directory,
		Profiles:  b.Profiles,
		Tokens:    b.Tokens,
		Notifier:  d.Notifier,
		Cleanups:  b.Cleanups,
		Logger:    d.Logger,
	}, deletion.Options{
		Channel:         deletion.Channel(d.Cfg.ConfirmationChannel),
		TokenTTL:        d.Cfg.TokenTTL,
		ConfirmationURL: d.Cfg.ConfirmationURL,
		AppName:         d.Cfg.AppName,
	})
	if err != nil {
		return fmt.Errorf("build deletion service: %w", err)
	}

	app.Get("/ping", func(c *fiber.Ctx) error {
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": middleware.RequestIDFromContext(c.UserContext()),
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	RegisterDeletionRoutes(app, deletion.NewHandler(deletionSvc), deletionSvc.Channel())
	return nil
}
