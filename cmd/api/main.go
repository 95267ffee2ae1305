package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sendgrid/sendgrid-go"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/courtchamps/courtchamps/internal/config"
	"github.com/courtchamps/courtchamps/internal/deletion"
	"github.com/courtchamps/courtchamps/internal/identity"
	"github.com/courtchamps/courtchamps/internal/infra"
	"github.com/courtchamps/courtchamps/internal/jobs"
	"github.com/courtchamps/courtchamps/internal/logging"
	"github.com/courtchamps/courtchamps/internal/notification"
	"github.com/courtchamps/courtchamps/internal/routes"
	"github.com/courtchamps/courtchamps/internal/server"
)

const jobTimeout = time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel, cfg.IsDev())

	ctx := context.Background()

	var db *pgxpool.Pool
	if cfg.UsesPostgres() {
		db, err = infra.NewPostgresPool(ctx, cfg.DatabaseURL, cfg.AppName)
		if err != nil {
			logger.Error("connect postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		if err := infra.EnsureSchema(ctx, db); err != nil {
			logger.Error("ensure schema", "error", err)
			os.Exit(1)
		}
	}

	var cache *redis.Client
	if cfg.TokenStore == config.BackendRedis {
		cache, err = infra.NewRedisClient(ctx, cfg.RedisURL, cfg.AppName)
		if err != nil {
			logger.Error("connect redis", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := cache.Close(); err != nil {
				logger.Warn("close redis", "error", err)
			}
		}()
	}

	var mongoClient *mongo.Client
	if cfg.ProfileStore == config.BackendMongo {
		mongoClient, err = infra.NewMongoClient(ctx, cfg.MongoURL, cfg.AppName)
		if err != nil {
			logger.Error("connect mongo", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := mongoClient.Disconnect(context.Background()); err != nil {
				logger.Warn("close mongo", "error", err)
			}
		}()
	}

	deps := routes.Deps{
		Cfg:      cfg,
		DB:       db,
		Cache:    cache,
		Mongo:    mongoClient,
		Notifier: newNotifier(cfg, logger),
		Logger:   logger,
	}
	backends, err := routes.NewBackends(deps)
	if err != nil {
		logger.Error("build backends", "error", err)
		os.Exit(1)
	}

	if cfg.DirectoryStore == config.BackendMemory {
		seedAccounts(ctx, cfg.DevSeedEmails, backends.Directory, logger)
	}

	scheduler, err := newScheduler(cfg, backends, logger)
	if err != nil {
		logger.Error("schedule jobs", "error", err)
		os.Exit(1)
	}
	scheduler.Start()

	srv, err := server.New(deps, backends)
	if err != nil {
		logger.Error("build server", "error", err)
		os.Exit(1)
	}

	srvErrCh := make(chan error, 1)
	go func() {
		srvErrCh <- srv.Listen()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-srvErrCh:
		if err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownPeriod)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
	if err := scheduler.Stop(shutdownCtx); err != nil {
		logger.Warn("stop scheduler", "error", err)
	}

	logger.Info("server exited cleanly")
}

func newNotifier(cfg config.Config, logger *slog.Logger) notification.Notifier {
	if cfg.SendGridAPIKey == "" {
		// Outside development config.Validate only allows this with the direct channel.
		logger.Warn("SENDGRID_API_KEY not set; confirmation emails are only logged")
		return notification.NewLoggerNotifier(logger, cfg.IsDev())
	}
	client := sendgrid.NewSendClient(cfg.SendGridAPIKey)
	return notification.NewSendGridNotifier(client, cfg.SendGridFromName, cfg.SendGridFromEmail, cfg.SendGridSandbox)
}

func newScheduler(cfg config.Config, b routes.Backends, logger *slog.Logger) (*jobs.Scheduler, error) {
	scheduler := jobs.NewScheduler(logger, jobTimeout)

	if cfg.ReconcileSchedule != "" {
		reconciler := deletion.NewReconciler(b.Cleanups, b.Profiles, logger)
		err := scheduler.Add("reconcile-profiles", cfg.ReconcileSchedule, func(ctx context.Context) error {
			_, err := reconciler.Run(ctx)
			return err
		})
		if err != nil {
			return nil, err
		}
	}

	if cfg.TokenSweepSchedule != "" {
		purger, ok := b.Tokens.(deletion.ExpiredPurger)
		if !ok {
			logger.Info("token store expires entries itself; sweep disabled", "token_store", cfg.TokenStore)
			return scheduler, nil
		}
		sweeper := deletion.NewTokenSweeper(purger, logger)
		err := scheduler.Add("sweep-tokens", cfg.TokenSweepSchedule, func(ctx context.Context) error {
			_, err := sweeper.Run(ctx)
			return err
		})
		if err != nil {
			return nil, err
		}
	}

	return scheduler, nil
}

func seedAccounts(ctx context.Context, emails []string, directory identity.Repository, logger *slog.Logger) {
	svc := identity.NewService(directory)
	for _, email := range emails {
		account, err := svc.Register(ctx, email)
		if err != nil {
			logger.Warn("seed account", "email", email, "error", err)
			continue
		}
		logger.Info("seeded account", "email", account.Email, "account_id", account.ID)
	}
}
