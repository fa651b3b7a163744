package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/ibizabroker/lms-backend/api/responses"
	"github.com/ibizabroker/lms-backend/api/validators"
	booksvc "github.com/ibizabroker/lms-backend/internal/books"
	"github.com/ibizabroker/lms-backend/pkg/db/models"
	"github.com/ibizabroker/lms-backend/pkg/logger"
)

type bookResponse struct {
	ID              uuid.UUID `json:"id"`
	Title           string    `json:"title"`
	Author          string    `json:"author"`
	Genre           string    `json:"genre,omitempty"`
	CopiesAvailable int       `json:"copies_available"`
	CreatedAt       time.Time `json:"created_at"`
}

func toBookResponse(book *models.Book) bookResponse {
	return bookResponse{
		ID:              book.ID,
		Title:           book.Title,
		Author:          book.Author,
		Genre:           book.Genre,
		CopiesAvailable: book.CopiesAvailable,
		CreatedAt:       book.CreatedAt,
	}
}

func toBookResponses(books []models.Book) []bookResponse {
	out := make([]bookResponse, 0, len(books))
	for i := range books {
		out = append(out, toBookResponse(&books[i]))
	}
	return out
}

type createBookRequest struct {
	Title           string `json:"title" validate:"required,max=256"`
	Author          string `json:"author" validate:"required,max=128"`
	Genre           string `json:"genre,omitempty" validate:"omitempty,max=64"`
	CopiesAvailable int    `json:"copies_available" validate:"min=0"`
}

type updateBookRequest struct {
	Title           *string `json:"title,omitempty" validate:"omitempty,max=256"`
	Author          *string `json:"author,omitempty" validate:"omitempty,max=128"`
	Genre           *string `json:"genre,omitempty" validate:"omitempty,max=64"`
	CopiesAvailable *int    `json:"copies_available,omitempty" validate:"omitempty,min=0"`
}

func BookCreate(svc booksvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload createBookRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		book, err := svc.CreateBook(r.Context(), booksvc.CreateBookInput{
			Title:           payload.Title,
			Author:          payload.Author,
			Genre:           payload.Genre,
			CopiesAvailable: payload.CopiesAvailable,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, toBookResponse(book))
	}
}

func BookList(svc booksvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		books, err := svc.ListBooks(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toBookResponses(books))
	}
}

func BookGet(svc booksvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParsePathUUID(r, "bookId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		book, err := svc.GetBook(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toBookResponse(book))
	}
}

func BookUpdate(svc booksvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParsePathUUID(r, "bookId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload updateBookRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		book, err := svc.UpdateBook(r.Context(), id, booksvc.UpdateBookInput{
			Title:           payload.Title,
			Author:          payload.Author,
			Genre:           payload.Genre,
			CopiesAvailable: payload.CopiesAvailable,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toBookResponse(book))
	}
}

func BookDelete(svc booksvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParsePathUUID(r, "bookId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.DeleteBook(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}
