package books

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ibizabroker/lms-backend/pkg/db/models"
)

// Repository manages persistence for catalog titles.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, book *models.Book) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Book, error)
	List(ctx context.Context) ([]models.Book, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
	Delete(ctx context.Context, id uuid.UUID) error
	DecrementCopies(ctx context.Context, id uuid.UUID) (bool, error)
	IncrementCopies(ctx context.Context, id uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a book repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, book *models.Book) error {
	return r.db.WithContext(ctx).Create(book).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Book, error) {
	var book models.Book
	if err := r.db.WithContext(ctx).First(&book, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &book, nil
}

func (r *repository) List(ctx context.Context) ([]models.Book, error) {
	var books []models.Book
	if err := r.db.WithContext(ctx).
		Order("title ASC").
		Find(&books).Error; err != nil {
		return nil, err
	}
	return books, nil
}

func (r *repository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Book{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.Book{}, "id = ?", id).Error
}

// DecrementCopies takes one copy off the shelf only while stock remains.
// The reported bool is false when the title is already out of stock.
func (r *repository) DecrementCopies(ctx context.Context, id uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Book{}).
		Where("id = ? AND copies_available > 0", id).
		Update("copies_available", gorm.Expr("copies_available - 1"))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) IncrementCopies(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Book{}).
		Where("id = ?", id).
		Update("copies_available", gorm.Expr("copies_available + 1")).Error
}
