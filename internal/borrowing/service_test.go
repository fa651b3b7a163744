package borrowing

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ibizabroker/lms-backend/internal/books"
	"github.com/ibizabroker/lms-backend/internal/users"
	"github.com/ibizabroker/lms-backend/pkg/config"
	"github.com/ibizabroker/lms-backend/pkg/enums"
	pkgerrors "github.com/ibizabroker/lms-backend/pkg/errors"
)

func testLendingConfig() config.LendingConfig {
	return config.LendingConfig{
		BorrowFee:      20,
		LoanPeriodDays: 7,
		FinePerDay:     10,
	}
}

func newTestEngine(t *testing.T, conn *gorm.DB) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Records: NewRepository(conn),
		Books:   books.NewRepository(conn),
		Users:   users.NewRepository(conn),
		Tx:      gormTxRunner{db: conn},
		Lending: testLendingConfig(),
	})
	require.NoError(t, err)
	svc.(*service).now = testNow
	return svc
}

func TestBorrowBookHappyPath(t *testing.T) {
	conn := setupBorrowingTestDB(t)
	svc := newTestEngine(t, conn)
	ctx := context.Background()

	user := mustCreatePatron(t, conn, 100)
	book := mustCreateTitle(t, conn, 1)

	outcome, err := svc.BorrowBook(ctx, user.ID, book.ID)
	require.NoError(t, err)
	assert.True(t, outcome.Allowed)
	assert.Contains(t, outcome.Message, user.Name)
	assert.Contains(t, outcome.Message, book.Title)
	require.NotNil(t, outcome.Record)

	assert.Equal(t, 0, currentCopies(t, conn, book.ID))
	assert.True(t, currentBalance(t, conn, user.ID).Equal(decimal.NewFromInt(80)))

	record := currentRecord(t, conn, outcome.Record.ID)
	assert.Equal(t, enums.ReturnRequestNone, record.ReturnRequestStatus)
	assert.Equal(t, enums.LoanStatusBorrowed, record.ReturnStatus)
	assert.True(t, record.Fine.IsZero())
	assert.Equal(t, 7*24*time.Hour, record.DueDate.Sub(record.IssueDate))
}

func TestBorrowBookInsufficientBalance(t *testing.T) {
	conn := setupBorrowingTestDB(t)
	svc := newTestEngine(t, conn)
	ctx := context.Background()

	user := mustCreatePatron(t, conn, 10)
	book := mustCreateTitle(t, conn, 1)

	outcome, err := svc.BorrowBook(ctx, user.ID, book.ID)
	require.NoError(t, err)
	assert.False(t, outcome.Allowed)
	assert.Equal(t, "Insufficient balance. Please add funds.", outcome.Message)

	// nothing moved
	assert.Equal(t, 1, currentCopies(t, conn, book.ID))
	assert.True(t, currentBalance(t, conn, user.ID).Equal(decimal.NewFromInt(10)))
	assert.Equal(t, int64(0), recordCount(t, conn))
}

func TestBorrowBookInsufficientBalanceWinsOverStock(t *testing.T) {
	conn := setupBorrowingTestDB(t)
	svc := newTestEngine(t, conn)
	ctx := context.Background()

	user := mustCreatePatron(t, conn, 5)
	book := mustCreateTitle(t, conn, 0)

	outcome, err := svc.BorrowBook(ctx, user.ID, book.ID)
	require.NoError(t, err)
	assert.False(t, outcome.Allowed)
	assert.Equal(t, "Insufficient balance. Please add funds.", outcome.Message)
}

func TestBorrowBookAlreadyBorrowed(t *testing.T) {
	conn := setupBorrowingTestDB(t)
	svc := newTestEngine(t, conn)
	ctx := context.Background()

	user := mustCreatePatron(t, conn, 100)
	book := mustCreateTitle(t, conn, 5)

	first, err := svc.BorrowBook(ctx, user.ID, book.ID)
	require.NoError(t, err)
	require.True(t, first.Allowed)

	second, err := svc.BorrowBook(ctx, user.ID, book.ID)
	require.NoError(t, err)
	assert.False(t, second.Allowed)
	assert.Equal(t, "You have already borrowed this book and must return it before borrowing again.", second.Message)

	// the rejected attempt must not touch balance, inventory or records
	assert.Equal(t, 4, currentCopies(t, conn, book.ID))
	assert.True(t, currentBalance(t, conn, user.ID).Equal(decimal.NewFromInt(80)))
	assert.Equal(t, int64(1), recordCount(t, conn))
}

func TestBorrowBookOutOfStock(t *testing.T) {
	conn := setupBorrowingTestDB(t)
	svc := newTestEngine(t, conn)
	ctx := context.Background()

	first := mustCreatePatron(t, conn, 100)
	second := mustCreatePatron(t, conn, 100)
	book := mustCreateTitle(t, conn, 1)

	outcome, err := svc.BorrowBook(ctx, first.ID, book.ID)
	require.NoError(t, err)
	require.True(t, outcome.Allowed)

	outcome, err = svc.BorrowBook(ctx, second.ID, book.ID)
	require.NoError(t, err)
	assert.False(t, outcome.Allowed)
	assert.Equal(t, `The book "Dune" is out of stock!`, outcome.Message)

	// the losing borrow must not keep its debit
	assert.True(t, currentBalance(t, conn, second.ID).Equal(decimal.NewFromInt(100)))
	assert.Equal(t, 0, currentCopies(t, conn, book.ID))
	assert.Equal(t, int64(1), recordCount(t, conn))
}

func TestBorrowBookConcurrentLastCopy(t *testing.T) {
	conn := setupBorrowingTestDB(t)
	svc := newTestEngine(t, conn)
	ctx := context.Background()

	first := mustCreatePatron(t, conn, 100)
	second := mustCreatePatron(t, conn, 100)
	book := mustCreateTitle(t, conn, 1)

	patrons := []uuid.UUID{first.ID, second.ID}
	outcomes := make([]*Outcome, len(patrons))
	errs := make([]error, len(patrons))

	var wg sync.WaitGroup
	for i, userID := range patrons {
		wg.Add(1)
		go func(i int, userID uuid.UUID) {
			defer wg.Done()
			outcomes[i], errs[i] = svc.BorrowBook(ctx, userID, book.ID)
		}(i, userID)
	}
	wg.Wait()

	allowed := 0
	for i := range patrons {
		require.NoError(t, errs[i])
		require.NotNil(t, outcomes[i])
		if outcomes[i].Allowed {
			allowed++
		} else {
			assert.Equal(t, `The book "Dune" is out of stock!`, outcomes[i].Message)
			assert.True(t, currentBalance(t, conn, patrons[i]).Equal(decimal.NewFromInt(100)))
		}
	}

	// exactly one winner for the last copy
	assert.Equal(t, 1, allowed)
	assert.Equal(t, 0, currentCopies(t, conn, book.ID))
	assert.Equal(t, int64(1), recordCount(t, conn))
}

func TestBorrowBookNotFound(t *testing.T) {
	conn := setupBorrowingTestDB(t)
	svc := newTestEngine(t, conn)
	ctx := context.Background()

	book := mustCreateTitle(t, conn, 1)
	_, err := svc.BorrowBook(ctx, uuid.New(), book.ID)
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeNotFound, appErr.Code())

	user := mustCreatePatron(t, conn, 100)
	_, err = svc.BorrowBook(ctx, user.ID, uuid.New())
	appErr = pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeNotFound, appErr.Code())
}

func TestRequestReturnLifecycle(t *testing.T) {
	conn := setupBorrowingTestDB(t)
	svc := newTestEngine(t, conn)
	ctx := context.Background()

	user := mustCreatePatron(t, conn, 100)
	book := mustCreateTitle(t, conn, 1)
	borrow, err := svc.BorrowBook(ctx, user.ID, book.ID)
	require.NoError(t, err)
	actor := Actor{UserID: user.ID}

	outcome, err := svc.RequestReturn(ctx, borrow.Record.ID, actor)
	require.NoError(t, err)
	assert.True(t, outcome.Allowed)
	assert.Equal(t, "Return request sent to admin for approval.", outcome.Message)
	assert.Equal(t, enums.ReturnRequestPending, currentRecord(t, conn, borrow.Record.ID).ReturnRequestStatus)

	// repeating the request leaves the state alone
	outcome, err = svc.RequestReturn(ctx, borrow.Record.ID, actor)
	require.NoError(t, err)
	assert.False(t, outcome.Allowed)
	assert.Equal(t, "Return request is already pending.", outcome.Message)
	assert.Equal(t, enums.ReturnRequestPending, currentRecord(t, conn, borrow.Record.ID).ReturnRequestStatus)

	// a rejection re-opens the request path
	_, err = svc.RejectReturn(ctx, borrow.Record.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.ReturnRequestRejected, currentRecord(t, conn, borrow.Record.ID).ReturnRequestStatus)

	outcome, err = svc.RequestReturn(ctx, borrow.Record.ID, actor)
	require.NoError(t, err)
	assert.True(t, outcome.Allowed)
	assert.Equal(t, enums.ReturnRequestPending, currentRecord(t, conn, borrow.Record.ID).ReturnRequestStatus)
}

func TestRequestReturnForbiddenForOtherPatron(t *testing.T) {
	conn := setupBorrowingTestDB(t)
	svc := newTestEngine(t, conn)
	ctx := context.Background()

	owner := mustCreatePatron(t, conn, 100)
	other := mustCreatePatron(t, conn, 100)
	book := mustCreateTitle(t, conn, 1)
	borrow, err := svc.BorrowBook(ctx, owner.ID, book.ID)
	require.NoError(t, err)

	_, err = svc.RequestReturn(ctx, borrow.Record.ID, Actor{UserID: other.ID})
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeForbidden, appErr.Code())

	// an admin may act on any record
	outcome, err := svc.RequestReturn(ctx, borrow.Record.ID, Actor{UserID: other.ID, IsAdmin: true})
	require.NoError(t, err)
	assert.True(t, outcome.Allowed)
}

func TestApproveReturnSettlesOnce(t *testing.T) {
	conn := setupBorrowingTestDB(t)
	svc := newTestEngine(t, conn)
	ctx := context.Background()

	user := mustCreatePatron(t, conn, 100)
	book := mustCreateTitle(t, conn, 1)
	borrow, err := svc.BorrowBook(ctx, user.ID, book.ID)
	require.NoError(t, err)
	_, err = svc.RequestReturn(ctx, borrow.Record.ID, Actor{UserID: user.ID})
	require.NoError(t, err)

	settled, err := svc.ApproveReturn(ctx, borrow.Record.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.ReturnRequestApproved, settled.ReturnRequestStatus)
	assert.Equal(t, enums.LoanStatusReturned, settled.ReturnStatus)
	require.NotNil(t, settled.ReturnDate)
	assert.Equal(t, 1, currentCopies(t, conn, book.ID))

	// a second approval must not double-increment the shelf count
	_, err = svc.ApproveReturn(ctx, borrow.Record.ID)
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeStateConflict, appErr.Code())
	assert.Equal(t, 1, currentCopies(t, conn, book.ID))

	// the settled pair may borrow the title again
	again, err := svc.BorrowBook(ctx, user.ID, book.ID)
	require.NoError(t, err)
	assert.True(t, again.Allowed)
}

func TestApproveReturnRequiresPending(t *testing.T) {
	conn := setupBorrowingTestDB(t)
	svc := newTestEngine(t, conn)
	ctx := context.Background()

	user := mustCreatePatron(t, conn, 100)
	book := mustCreateTitle(t, conn, 1)
	borrow, err := svc.BorrowBook(ctx, user.ID, book.ID)
	require.NoError(t, err)

	_, err = svc.ApproveReturn(ctx, borrow.Record.ID)
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeStateConflict, appErr.Code())

	_, err = svc.RejectReturn(ctx, borrow.Record.ID)
	appErr = pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeStateConflict, appErr.Code())
}

func TestRequestReturnOnSettledRecord(t *testing.T) {
	conn := setupBorrowingTestDB(t)
	svc := newTestEngine(t, conn)
	ctx := context.Background()

	user := mustCreatePatron(t, conn, 100)
	book := mustCreateTitle(t, conn, 1)
	borrow, err := svc.BorrowBook(ctx, user.ID, book.ID)
	require.NoError(t, err)
	_, err = svc.RequestReturn(ctx, borrow.Record.ID, Actor{UserID: user.ID})
	require.NoError(t, err)
	_, err = svc.ApproveReturn(ctx, borrow.Record.ID)
	require.NoError(t, err)

	_, err = svc.RequestReturn(ctx, borrow.Record.ID, Actor{UserID: user.ID})
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeStateConflict, appErr.Code())
}

func TestReadModels(t *testing.T) {
	conn := setupBorrowingTestDB(t)
	svc := newTestEngine(t, conn)
	ctx := context.Background()

	user := mustCreatePatron(t, conn, 100)
	first := mustCreateTitle(t, conn, 1)
	second := mustCreateTitle(t, conn, 1)

	borrowed, err := svc.BorrowBook(ctx, user.ID, first.ID)
	require.NoError(t, err)
	pendingBorrow, err := svc.BorrowBook(ctx, user.ID, second.ID)
	require.NoError(t, err)
	_, err = svc.RequestReturn(ctx, pendingBorrow.Record.ID, Actor{UserID: user.ID})
	require.NoError(t, err)

	// push the first loan past due
	require.NoError(t, conn.Model(borrowed.Record).Update("due_date", testNow().AddDate(0, 0, -2)).Error)

	pending, err := svc.ListPendingReturns(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, pendingBorrow.Record.ID, pending[0].RecordID)

	overdue, err := svc.ListOverdue(ctx)
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	assert.Equal(t, borrowed.Record.ID, overdue[0].ID)

	history, err := svc.ListUserHistory(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, history, 2)

	byBook, err := svc.ListBookHistory(ctx, first.ID)
	require.NoError(t, err)
	assert.Len(t, byBook, 1)

	count, err := svc.CountUnreturned(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}
