package borrowing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/ibizabroker/lms-backend/internal/books"
	"github.com/ibizabroker/lms-backend/internal/users"
	"github.com/ibizabroker/lms-backend/pkg/config"
	"github.com/ibizabroker/lms-backend/pkg/db"
	"github.com/ibizabroker/lms-backend/pkg/db/models"
	"github.com/ibizabroker/lms-backend/pkg/enums"
	pkgerrors "github.com/ibizabroker/lms-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Sentinel errors force a rollback inside the borrow transaction when a
// policy check loses; they are translated into outcome messages, never
// surfaced to callers.
var (
	errInsufficientFunds = errors.New("insufficient balance")
	errAlreadyBorrowed   = errors.New("already borrowed")
	errOutOfStock        = errors.New("out of stock")
)

// Outcome is the engine's answer to a lifecycle request. Policy rejections
// are carried as Allowed=false with an explanatory message rather than as
// errors, so callers always respond with a normal status payload.
type Outcome struct {
	Allowed bool
	Message string
	Record  *models.BorrowRecord
}

// Actor identifies the authenticated caller of a lifecycle operation.
type Actor struct {
	UserID  uuid.UUID
	IsAdmin bool
}

// Service orchestrates the borrow/return lifecycle against the inventory
// counter, the balance ledger and the borrow record store.
type Service interface {
	BorrowBook(ctx context.Context, userID, bookID uuid.UUID) (*Outcome, error)
	RequestReturn(ctx context.Context, borrowID uuid.UUID, actor Actor) (*Outcome, error)
	ApproveReturn(ctx context.Context, borrowID uuid.UUID) (*models.BorrowRecord, error)
	RejectReturn(ctx context.Context, borrowID uuid.UUID) (*models.BorrowRecord, error)
	GetRecord(ctx context.Context, borrowID uuid.UUID) (*models.BorrowRecord, error)
	ListPendingReturns(ctx context.Context) ([]PendingReturn, error)
	ListOverdue(ctx context.Context) ([]models.BorrowRecord, error)
	ListUserHistory(ctx context.Context, userID uuid.UUID) ([]models.BorrowRecord, error)
	ListBookHistory(ctx context.Context, bookID uuid.UUID) ([]models.BorrowRecord, error)
	CountUnreturned(ctx context.Context) (int64, error)
}

// ServiceParams configure the borrowing engine.
type ServiceParams struct {
	Records Repository
	Books   books.Repository
	Users   users.Repository
	Tx      txRunner
	Lending config.LendingConfig
}

type service struct {
	records Repository
	books   books.Repository
	users   users.Repository
	tx      txRunner
	lending config.LendingConfig
	now     func() time.Time
}

// NewService builds the borrowing engine with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Records == nil {
		return nil, fmt.Errorf("borrow records repository required")
	}
	if params.Books == nil {
		return nil, fmt.Errorf("books repository required")
	}
	if params.Users == nil {
		return nil, fmt.Errorf("users repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{
		records: params.Records,
		books:   params.Books,
		users:   params.Users,
		tx:      params.Tx,
		lending: params.Lending,
		now:     time.Now,
	}, nil
}

func (s *service) borrowFee() decimal.Decimal {
	return decimal.NewFromInt(int64(s.lending.BorrowFee))
}

func (s *service) loanPeriod() time.Duration {
	return time.Duration(s.lending.LoanPeriodDays) * 24 * time.Hour
}

// BorrowBook checks the balance, the one-active-loan rule and the shelf
// count in that order, then applies the debit, the decrement and the new
// record in one transaction. A lost check rolls the whole attempt back.
func (s *service) BorrowBook(ctx context.Context, userID, bookID uuid.UUID) (*Outcome, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if bookID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "book id required")
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}
	book, err := s.books.FindByID(ctx, bookID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "book not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load book")
	}

	now := s.now().UTC()
	record := &models.BorrowRecord{
		ID:                  uuid.New(),
		BookID:              bookID,
		UserID:              userID,
		IssueDate:           now,
		DueDate:             now.Add(s.loanPeriod()),
		Fine:                decimal.Zero,
		ReturnStatus:        enums.LoanStatusBorrowed,
		ReturnRequestStatus: enums.ReturnRequestNone,
	}

	txErr := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		usersTx := s.users.WithTx(tx)
		booksTx := s.books.WithTx(tx)
		recordsTx := s.records.WithTx(tx)

		debited, err := usersTx.DebitBalance(ctx, userID, s.borrowFee())
		if err != nil {
			return fmt.Errorf("debit borrow fee: %w", err)
		}
		if !debited {
			return errInsufficientFunds
		}

		active, err := recordsTx.ExistsActive(ctx, userID, bookID)
		if err != nil {
			return fmt.Errorf("check active loan: %w", err)
		}
		if active {
			return errAlreadyBorrowed
		}

		taken, err := booksTx.DecrementCopies(ctx, bookID)
		if err != nil {
			return fmt.Errorf("decrement copies: %w", err)
		}
		if !taken {
			return errOutOfStock
		}

		if err := recordsTx.Create(ctx, record); err != nil {
			if db.IsUniqueViolation(err, "") {
				return errAlreadyBorrowed
			}
			return fmt.Errorf("create borrow record: %w", err)
		}
		return nil
	})

	switch {
	case txErr == nil:
		return &Outcome{
			Allowed: true,
			Message: fmt.Sprintf("%s has borrowed one copy of %q!", user.Name, book.Title),
			Record:  record,
		}, nil
	case errors.Is(txErr, errInsufficientFunds):
		return &Outcome{Allowed: false, Message: "Insufficient balance. Please add funds."}, nil
	case errors.Is(txErr, errAlreadyBorrowed):
		return &Outcome{Allowed: false, Message: "You have already borrowed this book and must return it before borrowing again."}, nil
	case errors.Is(txErr, errOutOfStock):
		return &Outcome{Allowed: false, Message: fmt.Sprintf("The book %q is out of stock!", book.Title)}, nil
	default:
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, txErr, "borrow transaction")
	}
}

// RequestReturn moves a record into the admin approval queue. It never
// touches inventory or balance.
func (s *service) RequestReturn(ctx context.Context, borrowID uuid.UUID, actor Actor) (*Outcome, error) {
	record, err := s.GetRecord(ctx, borrowID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin && record.UserID != actor.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "borrow record belongs to another patron")
	}

	switch record.ReturnRequestStatus {
	case enums.ReturnRequestPending:
		return &Outcome{Allowed: false, Message: "Return request is already pending.", Record: record}, nil
	case enums.ReturnRequestApproved:
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "borrow record is already returned")
	}

	moved, err := s.records.MarkReturnRequested(ctx, borrowID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark return requested")
	}
	if !moved {
		// raced with another request; report the pending state
		return &Outcome{Allowed: false, Message: "Return request is already pending.", Record: record}, nil
	}

	record.ReturnRequestStatus = enums.ReturnRequestPending
	return &Outcome{
		Allowed: true,
		Message: "Return request sent to admin for approval.",
		Record:  record,
	}, nil
}

// ApproveReturn settles a pending return: the record turns APPROVED and
// RETURNED, and the copy goes back on the shelf. The PENDING guard makes a
// double approval a state conflict instead of a double increment.
func (s *service) ApproveReturn(ctx context.Context, borrowID uuid.UUID) (*models.BorrowRecord, error) {
	record, err := s.GetRecord(ctx, borrowID)
	if err != nil {
		return nil, err
	}
	if record.ReturnRequestStatus != enums.ReturnRequestPending {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "return request is not pending")
	}

	returnedAt := s.now().UTC()
	txErr := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		recordsTx := s.records.WithTx(tx)
		booksTx := s.books.WithTx(tx)

		settled, err := recordsTx.SettleReturn(ctx, borrowID, returnedAt)
		if err != nil {
			return fmt.Errorf("settle return: %w", err)
		}
		if !settled {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "return request is not pending")
		}
		if err := booksTx.IncrementCopies(ctx, record.BookID); err != nil {
			return fmt.Errorf("increment copies: %w", err)
		}
		return nil
	})
	if txErr != nil {
		if appErr := pkgerrors.As(txErr); appErr != nil {
			return nil, appErr
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, txErr, "approve transaction")
	}

	record.ReturnRequestStatus = enums.ReturnRequestApproved
	record.ReturnStatus = enums.LoanStatusReturned
	record.ReturnDate = &returnedAt
	return record, nil
}

// RejectReturn sends a pending request back to the patron. The record stays
// active, so the same title cannot be borrowed again until a later request
// is approved.
func (s *service) RejectReturn(ctx context.Context, borrowID uuid.UUID) (*models.BorrowRecord, error) {
	record, err := s.GetRecord(ctx, borrowID)
	if err != nil {
		return nil, err
	}
	if record.ReturnRequestStatus != enums.ReturnRequestPending {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "return request is not pending")
	}

	rejected, err := s.records.RejectReturn(ctx, borrowID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reject return")
	}
	if !rejected {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "return request is not pending")
	}

	record.ReturnRequestStatus = enums.ReturnRequestRejected
	return record, nil
}

func (s *service) GetRecord(ctx context.Context, borrowID uuid.UUID) (*models.BorrowRecord, error) {
	if borrowID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "borrow record id required")
	}
	record, err := s.records.FindByID(ctx, borrowID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "borrow record not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load borrow record")
	}
	return record, nil
}

func (s *service) ListPendingReturns(ctx context.Context) ([]PendingReturn, error) {
	rows, err := s.records.ListPending(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list pending returns")
	}
	return rows, nil
}

func (s *service) ListOverdue(ctx context.Context) ([]models.BorrowRecord, error) {
	records, err := s.records.ListOverdue(ctx, s.now().UTC())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list overdue records")
	}
	return records, nil
}

func (s *service) ListUserHistory(ctx context.Context, userID uuid.UUID) ([]models.BorrowRecord, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	records, err := s.records.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list user history")
	}
	return records, nil
}

func (s *service) ListBookHistory(ctx context.Context, bookID uuid.UUID) ([]models.BorrowRecord, error) {
	if bookID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "book id required")
	}
	records, err := s.records.ListByBook(ctx, bookID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list book history")
	}
	return records, nil
}

func (s *service) CountUnreturned(ctx context.Context) (int64, error) {
	count, err := s.records.CountUnreturned(ctx)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count unreturned records")
	}
	return count, nil
}
