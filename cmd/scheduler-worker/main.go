package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	borrowsvc "github.com/ibizabroker/lms-backend/internal/borrowing"
	"github.com/ibizabroker/lms-backend/internal/scheduler"
	usersvc "github.com/ibizabroker/lms-backend/internal/users"
	"github.com/ibizabroker/lms-backend/pkg/config"
	"github.com/ibizabroker/lms-backend/pkg/db"
	"github.com/ibizabroker/lms-backend/pkg/logger"
	"github.com/ibizabroker/lms-backend/pkg/metrics"
	"github.com/ibizabroker/lms-backend/pkg/migrate"
	"github.com/ibizabroker/lms-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "scheduler-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "scheduler-worker"

	logg = logger.New(logger.Options{
		ServiceName: "scheduler-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	metricsCollector := metrics.NewSchedulerJobMetrics(prometheus.DefaultRegisterer)
	lock, err := scheduler.NewRedisLock(redisClient, redisClient.LockKey("scheduler-worker"), cfg.Scheduler.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create scheduler lock", err)
		os.Exit(1)
	}

	overdueJob, err := scheduler.NewOverdueJob(scheduler.OverdueJobParams{
		Logger:  logg,
		DB:      dbClient,
		Records: borrowsvc.NewRepository(dbClient.DB()),
		Users:   usersvc.NewRepository(dbClient.DB()),
		Lending: cfg.Lending,
		Metrics: metricsCollector,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create overdue job", err)
		os.Exit(1)
	}

	service, err := scheduler.NewService(scheduler.ServiceParams{
		Logger:        logg,
		Registry:      scheduler.NewRegistry(overdueJob),
		Lock:          lock,
		Metrics:       metricsCollector,
		Interval:      cfg.Scheduler.Interval,
		AlignMidnight: cfg.Scheduler.AlignMidnight,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create scheduler service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting scheduler worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "scheduler worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "scheduler worker shutting down gracefully")
}
