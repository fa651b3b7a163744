package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/ibizabroker/lms-backend/api/middleware"
	"github.com/ibizabroker/lms-backend/api/responses"
	"github.com/ibizabroker/lms-backend/api/validators"
	borrowsvc "github.com/ibizabroker/lms-backend/internal/borrowing"
	"github.com/ibizabroker/lms-backend/pkg/db/models"
	"github.com/ibizabroker/lms-backend/pkg/enums"
	pkgerrors "github.com/ibizabroker/lms-backend/pkg/errors"
	"github.com/ibizabroker/lms-backend/pkg/logger"
)

type borrowRecordResponse struct {
	ID                  uuid.UUID  `json:"id"`
	BookID              uuid.UUID  `json:"book_id"`
	UserID              uuid.UUID  `json:"user_id"`
	IssueDate           time.Time  `json:"issue_date"`
	DueDate             time.Time  `json:"due_date"`
	ReturnDate          *time.Time `json:"return_date,omitempty"`
	Fine                string     `json:"fine"`
	ReturnStatus        string     `json:"return_status"`
	ReturnRequestStatus string     `json:"return_request_status"`
}

func toBorrowRecordResponse(record *models.BorrowRecord) borrowRecordResponse {
	return borrowRecordResponse{
		ID:                  record.ID,
		BookID:              record.BookID,
		UserID:              record.UserID,
		IssueDate:           record.IssueDate,
		DueDate:             record.DueDate,
		ReturnDate:          record.ReturnDate,
		Fine:                record.Fine.StringFixed(2),
		ReturnStatus:        string(record.ReturnStatus),
		ReturnRequestStatus: string(record.ReturnRequestStatus),
	}
}

func toBorrowRecordResponses(records []models.BorrowRecord) []borrowRecordResponse {
	out := make([]borrowRecordResponse, 0, len(records))
	for i := range records {
		out = append(out, toBorrowRecordResponse(&records[i]))
	}
	return out
}

type borrowOutcomeResponse struct {
	Allowed bool                  `json:"allowed"`
	Message string                `json:"message"`
	Record  *borrowRecordResponse `json:"record,omitempty"`
}

func toOutcomeResponse(outcome *borrowsvc.Outcome) borrowOutcomeResponse {
	resp := borrowOutcomeResponse{Allowed: outcome.Allowed, Message: outcome.Message}
	if outcome.Record != nil {
		rec := toBorrowRecordResponse(outcome.Record)
		resp.Record = &rec
	}
	return resp
}

type borrowBookRequest struct {
	BookID uuid.UUID `json:"book_id" validate:"required"`
}

func actorFromContext(r *http.Request) borrowsvc.Actor {
	ctx := r.Context()
	return borrowsvc.Actor{
		UserID:  middleware.UserIDFromContext(ctx),
		IsAdmin: middleware.HasRole(ctx, enums.RoleAdmin.String()),
	}
}

// BorrowBook checks out one copy for the authenticated patron.
func BorrowBook(svc borrowsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserIDFromContext(r.Context())
		if userID == uuid.Nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}

		var payload borrowBookRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		outcome, err := svc.BorrowBook(r.Context(), userID, payload.BookID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toOutcomeResponse(outcome))
	}
}

// RequestReturn asks the admins to accept a book back.
func RequestReturn(svc borrowsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		borrowID, err := validators.ParsePathUUID(r, "borrowId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		outcome, err := svc.RequestReturn(r.Context(), borrowID, actorFromContext(r))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toOutcomeResponse(outcome))
	}
}

// ApproveReturn settles a pending return and restocks the title.
func ApproveReturn(svc borrowsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		borrowID, err := validators.ParsePathUUID(r, "borrowId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		record, err := svc.ApproveReturn(r.Context(), borrowID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toBorrowRecordResponse(record))
	}
}

// RejectReturn sends a pending request back to the patron.
func RejectReturn(svc borrowsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		borrowID, err := validators.ParsePathUUID(r, "borrowId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		record, err := svc.RejectReturn(r.Context(), borrowID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toBorrowRecordResponse(record))
	}
}

func PendingReturns(svc borrowsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rows, err := svc.ListPendingReturns(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, rows)
	}
}

func OverdueLoans(svc borrowsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		records, err := svc.ListOverdue(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toBorrowRecordResponses(records))
	}
}

// MyBorrowHistory lists the authenticated patron's own loans.
func MyBorrowHistory(svc borrowsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserIDFromContext(r.Context())
		if userID == uuid.Nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}
		records, err := svc.ListUserHistory(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toBorrowRecordResponses(records))
	}
}

func UserBorrowHistory(svc borrowsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := validators.ParsePathUUID(r, "userId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		records, err := svc.ListUserHistory(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toBorrowRecordResponses(records))
	}
}

func BookBorrowHistory(svc borrowsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bookID, err := validators.ParsePathUUID(r, "bookId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		records, err := svc.ListBookHistory(r.Context(), bookID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toBorrowRecordResponses(records))
	}
}

func UnreturnedCount(svc borrowsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		count, err := svc.CountUnreturned(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]int64{"unreturned": count})
	}
}
