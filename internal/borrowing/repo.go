package borrowing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/ibizabroker/lms-backend/pkg/db/models"
	"github.com/ibizabroker/lms-backend/pkg/enums"
)

// PendingReturn is a read model row for the admin approval queue, carrying
// resolved display names alongside the record identifiers.
type PendingReturn struct {
	RecordID  uuid.UUID `gorm:"column:record_id"`
	UserID    uuid.UUID `gorm:"column:user_id"`
	UserName  string    `gorm:"column:user_name"`
	BookID    uuid.UUID `gorm:"column:book_id"`
	BookTitle string    `gorm:"column:book_title"`
	IssueDate time.Time `gorm:"column:issue_date"`
	DueDate   time.Time `gorm:"column:due_date"`
}

// Repository manages persistence for borrow records.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, record *models.BorrowRecord) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.BorrowRecord, error)
	ExistsActive(ctx context.Context, userID, bookID uuid.UUID) (bool, error)
	MarkReturnRequested(ctx context.Context, id uuid.UUID) (bool, error)
	SettleReturn(ctx context.Context, id uuid.UUID, returnedAt time.Time) (bool, error)
	RejectReturn(ctx context.Context, id uuid.UUID) (bool, error)
	MarkOverdue(ctx context.Context, id uuid.UUID, fine decimal.Decimal) (bool, error)
	ListPending(ctx context.Context) ([]PendingReturn, error)
	ListOverdue(ctx context.Context, now time.Time) ([]models.BorrowRecord, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.BorrowRecord, error)
	ListByBook(ctx context.Context, bookID uuid.UUID) ([]models.BorrowRecord, error)
	CountUnreturned(ctx context.Context) (int64, error)
	FindDueBefore(ctx context.Context, cutoff time.Time) ([]models.BorrowRecord, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a borrow record repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, record *models.BorrowRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.BorrowRecord, error) {
	var record models.BorrowRecord
	if err := r.db.WithContext(ctx).First(&record, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

// ExistsActive reports whether the pair still has a checkout that has not
// been settled by an approved return.
func (r *repository) ExistsActive(ctx context.Context, userID, bookID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.BorrowRecord{}).
		Where("user_id = ? AND book_id = ? AND return_request_status <> ?", userID, bookID, enums.ReturnRequestApproved).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// MarkReturnRequested moves NONE or REJECTED into PENDING. The reported bool
// is false when the record was not in a requestable state.
func (r *repository) MarkReturnRequested(ctx context.Context, id uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.BorrowRecord{}).
		Where("id = ? AND return_request_status IN ?", id, []enums.ReturnRequestStatus{enums.ReturnRequestNone, enums.ReturnRequestRejected}).
		Update("return_request_status", enums.ReturnRequestPending)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// SettleReturn moves PENDING into APPROVED, stamping the return date and the
// terminal loan status. The guard makes a second approval a no-op.
func (r *repository) SettleReturn(ctx context.Context, id uuid.UUID, returnedAt time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.BorrowRecord{}).
		Where("id = ? AND return_request_status = ?", id, enums.ReturnRequestPending).
		Updates(map[string]any{
			"return_request_status": enums.ReturnRequestApproved,
			"return_status":         enums.LoanStatusReturned,
			"return_date":           returnedAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) RejectReturn(ctx context.Context, id uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.BorrowRecord{}).
		Where("id = ? AND return_request_status = ?", id, enums.ReturnRequestPending).
		Update("return_request_status", enums.ReturnRequestRejected)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// MarkOverdue stamps the computed fine and flips the loan status. The guard
// keeps already flagged or settled records untouched.
func (r *repository) MarkOverdue(ctx context.Context, id uuid.UUID, fine decimal.Decimal) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.BorrowRecord{}).
		Where("id = ? AND return_status = ?", id, enums.LoanStatusBorrowed).
		Updates(map[string]any{
			"return_status": enums.LoanStatusOverdue,
			"fine":          fine,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) ListPending(ctx context.Context) ([]PendingReturn, error) {
	var rows []PendingReturn
	err := r.db.WithContext(ctx).
		Table("borrow_records").
		Select(`borrow_records.id AS record_id,
			borrow_records.user_id AS user_id,
			users.name AS user_name,
			borrow_records.book_id AS book_id,
			books.title AS book_title,
			borrow_records.issue_date AS issue_date,
			borrow_records.due_date AS due_date`).
		Joins("JOIN users ON users.id = borrow_records.user_id").
		Joins("JOIN books ON books.id = borrow_records.book_id").
		Where("borrow_records.return_request_status = ?", enums.ReturnRequestPending).
		Order("borrow_records.due_date ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) ListOverdue(ctx context.Context, now time.Time) ([]models.BorrowRecord, error) {
	var records []models.BorrowRecord
	err := r.db.WithContext(ctx).
		Where("due_date < ? AND return_request_status <> ?", now, enums.ReturnRequestApproved).
		Order("due_date ASC").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.BorrowRecord, error) {
	var records []models.BorrowRecord
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("issue_date DESC").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (r *repository) ListByBook(ctx context.Context, bookID uuid.UUID) ([]models.BorrowRecord, error) {
	var records []models.BorrowRecord
	err := r.db.WithContext(ctx).
		Where("book_id = ?", bookID).
		Order("issue_date DESC").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (r *repository) CountUnreturned(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.BorrowRecord{}).
		Where("return_status <> ?", enums.LoanStatusReturned).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

// FindDueBefore selects the records the overdue scan considers: still
// BORROWED and past due. OVERDUE and RETURNED records are not re-selected.
func (r *repository) FindDueBefore(ctx context.Context, cutoff time.Time) ([]models.BorrowRecord, error) {
	var records []models.BorrowRecord
	err := r.db.WithContext(ctx).
		Where("due_date < ? AND return_status = ?", cutoff, enums.LoanStatusBorrowed).
		Order("due_date ASC").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}
