package books

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ibizabroker/lms-backend/pkg/db/models"
	pkgerrors "github.com/ibizabroker/lms-backend/pkg/errors"
)

type fakeBooksRepo struct {
	Repository
	createFn   func(ctx context.Context, book *models.Book) error
	findByIDFn func(ctx context.Context, id uuid.UUID) (*models.Book, error)
	updateFn   func(ctx context.Context, id uuid.UUID, updates map[string]any) error
}

func (f *fakeBooksRepo) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeBooksRepo) Create(ctx context.Context, book *models.Book) error {
	if f.createFn != nil {
		return f.createFn(ctx, book)
	}
	return nil
}

func (f *fakeBooksRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Book, error) {
	if f.findByIDFn != nil {
		return f.findByIDFn(ctx, id)
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeBooksRepo) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	if f.updateFn != nil {
		return f.updateFn(ctx, id, updates)
	}
	return nil
}

func TestCreateBookValidation(t *testing.T) {
	svc, err := NewService(&fakeBooksRepo{})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	cases := []struct {
		name  string
		input CreateBookInput
	}{
		{"missing title", CreateBookInput{Author: "A"}},
		{"missing author", CreateBookInput{Title: "T"}},
		{"negative copies", CreateBookInput{Title: "T", Author: "A", CopiesAvailable: -1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateBook(context.Background(), tc.input)
			appErr := pkgerrors.As(err)
			if appErr == nil || appErr.Code() != pkgerrors.CodeValidation {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestCreateBookPersists(t *testing.T) {
	repo := &fakeBooksRepo{}
	var created *models.Book
	repo.createFn = func(ctx context.Context, book *models.Book) error {
		created = book
		return nil
	}

	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	got, err := svc.CreateBook(context.Background(), CreateBookInput{
		Title:           "Dune",
		Author:          "Frank Herbert",
		Genre:           "Sci-Fi",
		CopiesAvailable: 3,
	})
	if err != nil {
		t.Fatalf("CreateBook: %v", err)
	}
	if created == nil {
		t.Fatal("expected book to be persisted")
	}
	if got.ID == uuid.Nil {
		t.Fatal("expected generated id")
	}
	if got.CopiesAvailable != 3 {
		t.Fatalf("expected 3 copies, got %d", got.CopiesAvailable)
	}
}

func TestUpdateBookRejectsEmptyTitle(t *testing.T) {
	empty := ""
	svc, err := NewService(&fakeBooksRepo{})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	_, err = svc.UpdateBook(context.Background(), uuid.New(), UpdateBookInput{Title: &empty})
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestGetBookNotFound(t *testing.T) {
	svc, err := NewService(&fakeBooksRepo{})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	_, err = svc.GetBook(context.Background(), uuid.New())
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}
