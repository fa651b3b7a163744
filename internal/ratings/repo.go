package ratings

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ibizabroker/lms-backend/pkg/db/models"
)

// BookRatingSummary aggregates the star ratings for a title.
type BookRatingSummary struct {
	BookID  uuid.UUID `gorm:"column:book_id"`
	Average float64   `gorm:"column:average"`
	Count   int64     `gorm:"column:count"`
}

// Repository manages persistence for book ratings.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Upsert(ctx context.Context, rating *models.BookRating) error
	FindByBookAndUser(ctx context.Context, bookID, userID uuid.UUID) (*models.BookRating, error)
	ListByBook(ctx context.Context, bookID uuid.UUID) ([]models.BookRating, error)
	Summarize(ctx context.Context, bookID uuid.UUID) (*BookRatingSummary, error)
	Delete(ctx context.Context, bookID, userID uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a rating repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Upsert writes the rating, overwriting any earlier rating the same user
// gave the same book.
func (r *repository) Upsert(ctx context.Context, rating *models.BookRating) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "book_id"}, {Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"rating", "updated_at"}),
		}).
		Create(rating).Error
}

func (r *repository) FindByBookAndUser(ctx context.Context, bookID, userID uuid.UUID) (*models.BookRating, error) {
	var rating models.BookRating
	if err := r.db.WithContext(ctx).
		First(&rating, "book_id = ? AND user_id = ?", bookID, userID).Error; err != nil {
		return nil, err
	}
	return &rating, nil
}

func (r *repository) ListByBook(ctx context.Context, bookID uuid.UUID) ([]models.BookRating, error) {
	var ratings []models.BookRating
	if err := r.db.WithContext(ctx).
		Where("book_id = ?", bookID).
		Order("updated_at DESC").
		Find(&ratings).Error; err != nil {
		return nil, err
	}
	return ratings, nil
}

func (r *repository) Summarize(ctx context.Context, bookID uuid.UUID) (*BookRatingSummary, error) {
	summary := BookRatingSummary{BookID: bookID}
	err := r.db.WithContext(ctx).
		Model(&models.BookRating{}).
		Select("COALESCE(AVG(rating), 0) AS average, COUNT(*) AS count").
		Where("book_id = ?", bookID).
		Scan(&summary).Error
	if err != nil {
		return nil, err
	}
	return &summary, nil
}

func (r *repository) Delete(ctx context.Context, bookID, userID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Delete(&models.BookRating{}, "book_id = ? AND user_id = ?", bookID, userID).Error
}
