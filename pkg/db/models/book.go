package models

import (
	"time"

	"github.com/google/uuid"
)

// Book is a catalog title with its available-copy counter. CopiesAvailable
// is only decremented by a successful borrow and incremented by an approved
// return; it never goes negative.
type Book struct {
	ID              uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Title           string    `gorm:"column:title;type:text;not null"`
	Author          string    `gorm:"column:author;type:text;not null"`
	Genre           string    `gorm:"column:genre;type:text"`
	CopiesAvailable int       `gorm:"column:copies_available;not null;default:0"`
	CreatedAt       time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
