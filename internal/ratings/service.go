package ratings

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ibizabroker/lms-backend/pkg/db/models"
	pkgerrors "github.com/ibizabroker/lms-backend/pkg/errors"
)

const (
	minRating = 1
	maxRating = 5
)

type bookStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Book, error)
}

// Service handles star ratings for catalog titles.
type Service interface {
	RateBook(ctx context.Context, bookID, userID uuid.UUID, rating int) (*models.BookRating, error)
	GetBookSummary(ctx context.Context, bookID uuid.UUID) (*BookRatingSummary, error)
	ListBookRatings(ctx context.Context, bookID uuid.UUID) ([]models.BookRating, error)
	RemoveRating(ctx context.Context, bookID, userID uuid.UUID) error
}

// ServiceParams configure the rating service.
type ServiceParams struct {
	Ratings Repository
	Books   bookStore
}

type service struct {
	ratings Repository
	books   bookStore
}

// NewService builds a rating service.
func NewService(params ServiceParams) (Service, error) {
	if params.Ratings == nil {
		return nil, fmt.Errorf("rating repository required")
	}
	if params.Books == nil {
		return nil, fmt.Errorf("book store required")
	}
	return &service{ratings: params.Ratings, books: params.Books}, nil
}

// RateBook records a 1-5 star rating. Rating the same book twice replaces
// the earlier rating.
func (s *service) RateBook(ctx context.Context, bookID, userID uuid.UUID, rating int) (*models.BookRating, error) {
	if rating < minRating || rating > maxRating {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rating must be between 1 and 5")
	}

	if _, err := s.books.FindByID(ctx, bookID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "book not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load book")
	}

	entry := &models.BookRating{
		ID:     uuid.New(),
		BookID: bookID,
		UserID: userID,
		Rating: rating,
	}
	if err := s.ratings.Upsert(ctx, entry); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save rating")
	}
	return entry, nil
}

func (s *service) GetBookSummary(ctx context.Context, bookID uuid.UUID) (*BookRatingSummary, error) {
	if _, err := s.books.FindByID(ctx, bookID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "book not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load book")
	}
	summary, err := s.ratings.Summarize(ctx, bookID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "summarize ratings")
	}
	return summary, nil
}

func (s *service) ListBookRatings(ctx context.Context, bookID uuid.UUID) ([]models.BookRating, error) {
	ratings, err := s.ratings.ListByBook(ctx, bookID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list ratings")
	}
	return ratings, nil
}

func (s *service) RemoveRating(ctx context.Context, bookID, userID uuid.UUID) error {
	if _, err := s.ratings.FindByBookAndUser(ctx, bookID, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "rating not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load rating")
	}
	if err := s.ratings.Delete(ctx, bookID, userID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete rating")
	}
	return nil
}
