package ratings

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ibizabroker/lms-backend/pkg/db/models"
	pkgerrors "github.com/ibizabroker/lms-backend/pkg/errors"
)

type fakeRatingsRepo struct {
	Repository
	upsertFn func(ctx context.Context, rating *models.BookRating) error
}

func (f *fakeRatingsRepo) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRatingsRepo) Upsert(ctx context.Context, rating *models.BookRating) error {
	if f.upsertFn != nil {
		return f.upsertFn(ctx, rating)
	}
	return nil
}

type fakeRatingsBookStore struct {
	findByIDFn func(ctx context.Context, id uuid.UUID) (*models.Book, error)
}

func (f *fakeRatingsBookStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Book, error) {
	if f.findByIDFn != nil {
		return f.findByIDFn(ctx, id)
	}
	return nil, gorm.ErrRecordNotFound
}

func existingBookStore() *fakeRatingsBookStore {
	return &fakeRatingsBookStore{
		findByIDFn: func(ctx context.Context, id uuid.UUID) (*models.Book, error) {
			return &models.Book{ID: id}, nil
		},
	}
}

func TestRateBookStoresRating(t *testing.T) {
	repo := &fakeRatingsRepo{}
	var saved *models.BookRating
	repo.upsertFn = func(ctx context.Context, rating *models.BookRating) error {
		saved = rating
		return nil
	}

	svc, err := NewService(ServiceParams{Ratings: repo, Books: existingBookStore()})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	bookID := uuid.New()
	userID := uuid.New()
	got, err := svc.RateBook(context.Background(), bookID, userID, 4)
	if err != nil {
		t.Fatalf("RateBook: %v", err)
	}
	if saved == nil {
		t.Fatal("expected rating to be persisted")
	}
	if got.BookID != bookID || got.UserID != userID || got.Rating != 4 {
		t.Fatalf("unexpected rating %+v", got)
	}
}

func TestRateBookRejectsOutOfRange(t *testing.T) {
	svc, err := NewService(ServiceParams{Ratings: &fakeRatingsRepo{}, Books: existingBookStore()})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	for _, stars := range []int{0, -1, 6} {
		_, err := svc.RateBook(context.Background(), uuid.New(), uuid.New(), stars)
		appErr := pkgerrors.As(err)
		if appErr == nil || appErr.Code() != pkgerrors.CodeValidation {
			t.Fatalf("expected validation error for %d stars, got %v", stars, err)
		}
	}
}

func TestRateBookUnknownBook(t *testing.T) {
	svc, err := NewService(ServiceParams{Ratings: &fakeRatingsRepo{}, Books: &fakeRatingsBookStore{}})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	_, err = svc.RateBook(context.Background(), uuid.New(), uuid.New(), 3)
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}
