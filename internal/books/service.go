package books

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ibizabroker/lms-backend/pkg/db/models"
	pkgerrors "github.com/ibizabroker/lms-backend/pkg/errors"
)

// Service defines catalog management operations.
type Service interface {
	CreateBook(ctx context.Context, input CreateBookInput) (*models.Book, error)
	GetBook(ctx context.Context, id uuid.UUID) (*models.Book, error)
	ListBooks(ctx context.Context) ([]models.Book, error)
	UpdateBook(ctx context.Context, id uuid.UUID, input UpdateBookInput) (*models.Book, error)
	DeleteBook(ctx context.Context, id uuid.UUID) error
}

type service struct {
	repo Repository
}

// CreateBookInput captures the fields required to add a title.
type CreateBookInput struct {
	Title           string
	Author          string
	Genre           string
	CopiesAvailable int
}

// UpdateBookInput carries the mutable catalog fields. Nil means unchanged.
type UpdateBookInput struct {
	Title           *string
	Author          *string
	Genre           *string
	CopiesAvailable *int
}

// NewService wires a book service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("books repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) CreateBook(ctx context.Context, input CreateBookInput) (*models.Book, error) {
	if input.Title == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "title is required")
	}
	if input.Author == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "author is required")
	}
	if input.CopiesAvailable < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "copies available cannot be negative")
	}

	book := &models.Book{
		ID:              uuid.New(),
		Title:           input.Title,
		Author:          input.Author,
		Genre:           input.Genre,
		CopiesAvailable: input.CopiesAvailable,
	}
	if err := s.repo.Create(ctx, book); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create book")
	}
	return book, nil
}

func (s *service) GetBook(ctx context.Context, id uuid.UUID) (*models.Book, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "book id required")
	}
	book, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "book not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load book")
	}
	return book, nil
}

func (s *service) ListBooks(ctx context.Context) ([]models.Book, error) {
	books, err := s.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list books")
	}
	return books, nil
}

func (s *service) UpdateBook(ctx context.Context, id uuid.UUID, input UpdateBookInput) (*models.Book, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "book id required")
	}

	updates := map[string]any{}
	if input.Title != nil {
		if *input.Title == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "title cannot be empty")
		}
		updates["title"] = *input.Title
	}
	if input.Author != nil {
		if *input.Author == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "author cannot be empty")
		}
		updates["author"] = *input.Author
	}
	if input.Genre != nil {
		updates["genre"] = *input.Genre
	}
	if input.CopiesAvailable != nil {
		if *input.CopiesAvailable < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "copies available cannot be negative")
		}
		updates["copies_available"] = *input.CopiesAvailable
	}
	if len(updates) == 0 {
		return s.GetBook(ctx, id)
	}

	if _, err := s.GetBook(ctx, id); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, id, updates); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update book")
	}
	return s.GetBook(ctx, id)
}

func (s *service) DeleteBook(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "book id required")
	}
	if _, err := s.GetBook(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete book")
	}
	return nil
}
