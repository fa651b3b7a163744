package models

import (
	"time"

	"github.com/google/uuid"
)

// Feedback is a free-form comment left by a patron. It has no interaction
// with borrowing state.
type Feedback struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;not null;index"`
	Comment   string    `gorm:"column:comment;type:text;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
