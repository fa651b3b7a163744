package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/ibizabroker/lms-backend/api/middleware"
	"github.com/ibizabroker/lms-backend/api/responses"
	"github.com/ibizabroker/lms-backend/api/validators"
	feedbacksvc "github.com/ibizabroker/lms-backend/internal/feedback"
	pkgerrors "github.com/ibizabroker/lms-backend/pkg/errors"
	"github.com/ibizabroker/lms-backend/pkg/logger"
)

type submitFeedbackRequest struct {
	Comment string `json:"comment" validate:"required,max=2000"`
}

// FeedbackSubmit records a comment from the authenticated patron.
func FeedbackSubmit(svc feedbacksvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserIDFromContext(r.Context())
		if userID == uuid.Nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}

		var payload submitFeedbackRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		entry, err := svc.SubmitFeedback(r.Context(), userID, validators.SanitizeString(payload.Comment, 0))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, entry)
	}
}

func FeedbackList(svc feedbacksvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries, err := svc.ListFeedback(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, entries)
	}
}

func FeedbackDelete(svc feedbacksvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParsePathUUID(r, "feedbackId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.DeleteFeedback(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}
