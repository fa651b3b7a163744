package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/ibizabroker/lms-backend/api/controllers"
	"github.com/ibizabroker/lms-backend/api/routes"
	authsvc "github.com/ibizabroker/lms-backend/internal/auth"
	booksvc "github.com/ibizabroker/lms-backend/internal/books"
	borrowsvc "github.com/ibizabroker/lms-backend/internal/borrowing"
	feedbacksvc "github.com/ibizabroker/lms-backend/internal/feedback"
	ratingsvc "github.com/ibizabroker/lms-backend/internal/ratings"
	statssvc "github.com/ibizabroker/lms-backend/internal/statistics"
	usersvc "github.com/ibizabroker/lms-backend/internal/users"
	"github.com/ibizabroker/lms-backend/pkg/config"
	"github.com/ibizabroker/lms-backend/pkg/db"
	"github.com/ibizabroker/lms-backend/pkg/logger"
	"github.com/ibizabroker/lms-backend/pkg/migrate"
	"github.com/ibizabroker/lms-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	usersRepo := usersvc.NewRepository(dbClient.DB())
	booksRepo := booksvc.NewRepository(dbClient.DB())
	recordsRepo := borrowsvc.NewRepository(dbClient.DB())

	usersService, err := usersvc.NewService(usersRepo, cfg.Password)
	exitOnErr(logg, "failed to create users service", err)

	booksService, err := booksvc.NewService(booksRepo)
	exitOnErr(logg, "failed to create books service", err)

	borrowService, err := borrowsvc.NewService(borrowsvc.ServiceParams{
		Records: recordsRepo,
		Books:   booksRepo,
		Users:   usersRepo,
		Tx:      dbClient,
		Lending: cfg.Lending,
	})
	exitOnErr(logg, "failed to create borrowing service", err)

	authService, err := authsvc.NewService(authsvc.ServiceParams{
		Users:    usersRepo,
		JWT:      cfg.JWT,
		Password: cfg.Password,
	})
	exitOnErr(logg, "failed to create auth service", err)

	feedbackService, err := feedbacksvc.NewService(feedbacksvc.ServiceParams{
		Feedback: feedbacksvc.NewRepository(dbClient.DB()),
		Users:    usersRepo,
	})
	exitOnErr(logg, "failed to create feedback service", err)

	ratingService, err := ratingsvc.NewService(ratingsvc.ServiceParams{
		Ratings: ratingsvc.NewRepository(dbClient.DB()),
		Books:   booksRepo,
	})
	exitOnErr(logg, "failed to create ratings service", err)

	statsService, err := statssvc.NewService(statssvc.NewRepository(dbClient.DB()))
	exitOnErr(logg, "failed to create statistics service", err)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg,
			map[string]controllers.Pinger{
				"db":    dbClient,
				"redis": redisClient,
			},
			routes.Services{
				Auth:       authService,
				Users:      usersService,
				Books:      booksService,
				Borrowing:  borrowService,
				Feedback:   feedbackService,
				Ratings:    ratingService,
				Statistics: statsService,
			}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func exitOnErr(logg *logger.Logger, msg string, err error) {
	if err == nil {
		return
	}
	logg.Error(context.Background(), msg, err)
	os.Exit(1)
}
