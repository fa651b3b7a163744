package models

import (
	"time"

	"github.com/google/uuid"
)

// BookRating is a single 1-5 star rating for a title. One row per
// (user, book) pair; re-rating overwrites the row.
type BookRating struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	BookID    uuid.UUID `gorm:"column:book_id;type:uuid;not null;uniqueIndex:idx_book_ratings_book_user"`
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;not null;uniqueIndex:idx_book_ratings_book_user"`
	Rating    int       `gorm:"column:rating;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
