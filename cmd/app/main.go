package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"fitclass/internal/audit"
	"fitclass/internal/booking"
	"fitclass/internal/class"
	"fitclass/internal/config"
	"fitclass/internal/credit"
	"fitclass/internal/cycle"
	"fitclass/internal/db"
	"fitclass/internal/events"
	"fitclass/internal/logger"
	"fitclass/internal/metrics"
	"fitclass/internal/notify"
	"fitclass/internal/server"
	"fitclass/internal/submission"
	"fitclass/internal/user"
)

// @title FitClass API
// @version 1.0
// @description Class booking and credit engine.
// @host localhost:8080
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Init()
		logger.Fatalf("Failed to load config: %v", err)
	}
	logger.InitWithLevel(cfg.LogLevel)
	logger.Info("Starting FitClass application")

	loc, err := cfg.Location()
	if err != nil {
		logger.Fatalf("Invalid timezone: %v", err)
	}

	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()
	logger.Info("Database connected")

	if err := db.RunMigrations(database, "migrations"); err != nil {
		logger.Fatalf("Failed to run migrations: %v", err)
	}
	logger.Info("Migrations completed")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	uow, err := db.NewUnitOfWork(ctx, database, db.Mode(cfg.TxMode))
	if err != nil {
		logger.Fatalf("Failed to set up unit of work: %v", err)
	}
	metrics.SetUnitOfWorkMode(string(uow.Mode()))
	logger.Info("Unit of work ready", "mode", uow.Mode())

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	queue := notify.NewQueue(rdb, notify.SMTPConfig{
		From:     cfg.EmailFrom,
		FromName: cfg.EmailFromName,
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		User:     cfg.SMTPUser,
		Pass:     cfg.SMTPPass,
	})
	defer queue.Close()
	go queue.Start(ctx)
	go reportQueueLength(ctx, queue)

	dispatcher := events.NewDispatcher(
		audit.NewSink(database),
		notify.NewNotifier(user.NewRepository(database), queue, cfg.EmailFromName),
	)

	defaults := cfg.PolicyDefaults()
	creditRepo := credit.NewRepository(database)

	srv := server.New(server.Options{
		JWTSecret:      cfg.JWTSecret,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
		Ready: func(ctx context.Context) error {
			if err := database.PingContext(ctx); err != nil {
				return err
			}
			return rdb.Ping(ctx).Err()
		},
	}, server.Handlers{
		Classes: class.NewHandler(class.NewService(class.NewRepository(database), defaults, nil)),
		Bookings: booking.NewHandler(booking.NewService(uow, booking.SQLRepos, dispatcher, booking.Config{
			Defaults: defaults,
			Location: loc,
		})),
		Credits: credit.NewHandler(credit.NewService(creditRepo, nil)),
		Submissions: submission.NewHandler(submission.NewService(uow, submission.SQLRepos, dispatcher, submission.Config{
			Location: loc,
		})),
		Cycle: cycle.NewHandler(cycle.NewJob(uow, credit.NewRepository, dispatcher, cycle.Config{
			Location:    loc,
			Concurrency: cfg.CycleConcurrency,
		})),
	})

	serverErrChan := make(chan error, 1)
	go func() {
		logger.Info("Server starting", "port", cfg.Port)
		if err := srv.Start(cfg.Port); err != nil && err != http.ErrServerClosed {
			serverErrChan <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Received signal", "signal", sig.String())
	case err := <-serverErrChan:
		logger.Error("Server error", "error", err)
	}

	logger.Info("Shutting down gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during server shutdown", "error", err)
	}

	logger.Info("Server stopped")
}

func reportQueueLength(ctx context.Context, queue *notify.Queue) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			queue.QueueLength(ctx)
		}
	}
}
