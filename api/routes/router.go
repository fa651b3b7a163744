package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ibizabroker/lms-backend/api/controllers"
	"github.com/ibizabroker/lms-backend/api/middleware"
	authsvc "github.com/ibizabroker/lms-backend/internal/auth"
	booksvc "github.com/ibizabroker/lms-backend/internal/books"
	borrowsvc "github.com/ibizabroker/lms-backend/internal/borrowing"
	feedbacksvc "github.com/ibizabroker/lms-backend/internal/feedback"
	ratingsvc "github.com/ibizabroker/lms-backend/internal/ratings"
	statssvc "github.com/ibizabroker/lms-backend/internal/statistics"
	usersvc "github.com/ibizabroker/lms-backend/internal/users"
	"github.com/ibizabroker/lms-backend/pkg/config"
	"github.com/ibizabroker/lms-backend/pkg/enums"
	"github.com/ibizabroker/lms-backend/pkg/logger"
)

// Services bundles everything the router hands to its controllers.
type Services struct {
	Auth       authsvc.Service
	Users      usersvc.Service
	Books      booksvc.Service
	Borrowing  borrowsvc.Service
	Feedback   feedbacksvc.Service
	Ratings    ratingsvc.Service
	Statistics statssvc.Service
}

// NewRouter assembles the HTTP surface of the library backend.
func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	deps map[string]controllers.Pinger,
	svcs Services,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps))
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Post("/register", controllers.AuthRegister(svcs.Auth, logg))
		r.Post("/login", controllers.AuthLogin(svcs.Auth, logg))
	})

	adminRole := enums.RoleAdmin.String()

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Route("/me", func(r chi.Router) {
			r.Get("/", controllers.UserMe(svcs.Users, logg))
			r.Post("/funds", controllers.UserAddFunds(svcs.Users, logg))
			r.Get("/borrows", controllers.MyBorrowHistory(svcs.Borrowing, logg))
		})

		r.Route("/books", func(r chi.Router) {
			r.Get("/", controllers.BookList(svcs.Books, logg))
			r.Get("/{bookId}", controllers.BookGet(svcs.Books, logg))
			r.Get("/{bookId}/ratings", controllers.BookRatingList(svcs.Ratings, logg))
			r.Get("/{bookId}/ratings/summary", controllers.BookRatingSummary(svcs.Ratings, logg))
			r.Post("/{bookId}/ratings", controllers.RateBook(svcs.Ratings, logg))
			r.Delete("/{bookId}/ratings", controllers.RemoveRating(svcs.Ratings, logg))

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(adminRole, logg))
				r.Post("/", controllers.BookCreate(svcs.Books, logg))
				r.Patch("/{bookId}", controllers.BookUpdate(svcs.Books, logg))
				r.Delete("/{bookId}", controllers.BookDelete(svcs.Books, logg))
				r.Get("/{bookId}/borrows", controllers.BookBorrowHistory(svcs.Borrowing, logg))
			})
		})

		r.Route("/borrows", func(r chi.Router) {
			r.Post("/", controllers.BorrowBook(svcs.Borrowing, logg))
			r.Post("/{borrowId}/return-request", controllers.RequestReturn(svcs.Borrowing, logg))

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(adminRole, logg))
				r.Post("/{borrowId}/approve", controllers.ApproveReturn(svcs.Borrowing, logg))
				r.Post("/{borrowId}/reject", controllers.RejectReturn(svcs.Borrowing, logg))
				r.Get("/pending", controllers.PendingReturns(svcs.Borrowing, logg))
				r.Get("/overdue", controllers.OverdueLoans(svcs.Borrowing, logg))
				r.Get("/unreturned-count", controllers.UnreturnedCount(svcs.Borrowing, logg))
			})
		})

		r.Route("/feedback", func(r chi.Router) {
			r.Post("/", controllers.FeedbackSubmit(svcs.Feedback, logg))

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(adminRole, logg))
				r.Get("/", controllers.FeedbackList(svcs.Feedback, logg))
				r.Delete("/{feedbackId}", controllers.FeedbackDelete(svcs.Feedback, logg))
			})
		})

		r.Route("/users", func(r chi.Router) {
			r.Use(middleware.RequireRole(adminRole, logg))
			r.Get("/", controllers.UserList(svcs.Users, logg))
			r.Post("/", controllers.UserCreate(svcs.Users, logg))
			r.Get("/{userId}", controllers.UserGet(svcs.Users, logg))
			r.Patch("/{userId}", controllers.UserUpdate(svcs.Users, logg))
			r.Delete("/{userId}", controllers.UserDelete(svcs.Users, logg))
			r.Get("/{userId}/borrows", controllers.UserBorrowHistory(svcs.Borrowing, logg))
		})

		r.Route("/statistics", func(r chi.Router) {
			r.Use(middleware.RequireRole(adminRole, logg))
			r.Get("/", controllers.StatsOverview(svcs.Statistics, logg))
			r.Get("/active-users", controllers.StatsMostActiveUsers(svcs.Statistics, logg))
			r.Get("/popular-books", controllers.StatsMostBorrowedBooks(svcs.Statistics, logg))
			r.Get("/popular-genres", controllers.StatsMostBorrowedGenres(svcs.Statistics, logg))
			r.Get("/borrows-per-month", controllers.StatsBorrowsPerMonth(svcs.Statistics, logg))
		})
	})

	return r
}
