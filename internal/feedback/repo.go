package feedback

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ibizabroker/lms-backend/pkg/db/models"
)

// FeedbackWithAuthor resolves the author's display name for listings.
type FeedbackWithAuthor struct {
	ID        uuid.UUID `gorm:"column:id"`
	UserID    uuid.UUID `gorm:"column:user_id"`
	UserName  string    `gorm:"column:user_name"`
	Comment   string    `gorm:"column:comment"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

// Repository manages persistence for patron feedback.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, entry *models.Feedback) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Feedback, error)
	List(ctx context.Context) ([]models.Feedback, error)
	ListWithAuthors(ctx context.Context) ([]FeedbackWithAuthor, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a feedback repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, entry *models.Feedback) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Feedback, error) {
	var entry models.Feedback
	if err := r.db.WithContext(ctx).First(&entry, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *repository) List(ctx context.Context) ([]models.Feedback, error) {
	var entries []models.Feedback
	if err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repository) ListWithAuthors(ctx context.Context) ([]FeedbackWithAuthor, error) {
	var entries []FeedbackWithAuthor
	err := r.db.WithContext(ctx).
		Table("feedbacks").
		Select("feedbacks.id, feedbacks.user_id, users.name AS user_name, feedbacks.comment, feedbacks.created_at").
		Joins("JOIN users ON users.id = feedbacks.user_id").
		Order("feedbacks.created_at DESC").
		Scan(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.Feedback{}, "id = ?", id).Error
}
