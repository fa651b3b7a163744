package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ibizabroker/lms-backend/pkg/enums"
)

// BorrowRecord is the durable audit row for one checkout. Records are
// created by a successful borrow and mutated through the return workflow
// and the overdue scheduler; they are never deleted.
type BorrowRecord struct {
	ID                  uuid.UUID                 `gorm:"column:id;type:uuid;primaryKey"`
	BookID              uuid.UUID                 `gorm:"column:book_id;type:uuid;not null;index"`
	UserID              uuid.UUID                 `gorm:"column:user_id;type:uuid;not null;index"`
	IssueDate           time.Time                 `gorm:"column:issue_date;not null"`
	DueDate             time.Time                 `gorm:"column:due_date;not null"`
	ReturnDate          *time.Time                `gorm:"column:return_date"`
	Fine                decimal.Decimal           `gorm:"column:fine;type:numeric(12,2);not null;default:0"`
	ReturnStatus        enums.LoanStatus          `gorm:"column:return_status;type:text;not null"`
	ReturnRequestStatus enums.ReturnRequestStatus `gorm:"column:return_request_status;type:text;not null"`
	CreatedAt           time.Time                 `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time                 `gorm:"column:updated_at;autoUpdateTime"`
}

// IsActive reports whether this record still blocks the patron from
// borrowing the same title again.
func (b BorrowRecord) IsActive() bool {
	return b.ReturnRequestStatus.IsActive()
}
