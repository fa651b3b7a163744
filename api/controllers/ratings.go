package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/ibizabroker/lms-backend/api/middleware"
	"github.com/ibizabroker/lms-backend/api/responses"
	"github.com/ibizabroker/lms-backend/api/validators"
	ratingsvc "github.com/ibizabroker/lms-backend/internal/ratings"
	pkgerrors "github.com/ibizabroker/lms-backend/pkg/errors"
	"github.com/ibizabroker/lms-backend/pkg/logger"
)

type rateBookRequest struct {
	Rating int `json:"rating" validate:"required,min=1,max=5"`
}

// RateBook records the authenticated patron's star rating for a title.
func RateBook(svc ratingsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserIDFromContext(r.Context())
		if userID == uuid.Nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}
		bookID, err := validators.ParsePathUUID(r, "bookId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload rateBookRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rating, err := svc.RateBook(r.Context(), bookID, userID, payload.Rating)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, rating)
	}
}

func BookRatingSummary(svc ratingsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bookID, err := validators.ParsePathUUID(r, "bookId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		summary, err := svc.GetBookSummary(r.Context(), bookID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}

func BookRatingList(svc ratingsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bookID, err := validators.ParsePathUUID(r, "bookId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ratings, err := svc.ListBookRatings(r.Context(), bookID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, ratings)
	}
}

// RemoveRating withdraws the authenticated patron's rating for a title.
func RemoveRating(svc ratingsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserIDFromContext(r.Context())
		if userID == uuid.Nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}
		bookID, err := validators.ParsePathUUID(r, "bookId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.RemoveRating(r.Context(), bookID, userID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "removed"})
	}
}
