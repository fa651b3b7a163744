package borrowing

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibizabroker/lms-backend/pkg/db/models"
	"github.com/ibizabroker/lms-backend/pkg/enums"
)

func TestRepositoryExistsActive(t *testing.T) {
	conn := setupBorrowingTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	user := mustCreatePatron(t, conn, 100)
	book := mustCreateTitle(t, conn, 3)

	active, err := repo.ExistsActive(ctx, user.ID, book.ID)
	require.NoError(t, err)
	assert.False(t, active)

	record := mustCreateRecord(t, conn, user.ID, book.ID, enums.ReturnRequestNone)

	active, err = repo.ExistsActive(ctx, user.ID, book.ID)
	require.NoError(t, err)
	assert.True(t, active)

	// PENDING and REJECTED are still active
	_, err = repo.MarkReturnRequested(ctx, record.ID)
	require.NoError(t, err)
	active, err = repo.ExistsActive(ctx, user.ID, book.ID)
	require.NoError(t, err)
	assert.True(t, active)

	// only APPROVED frees the pair
	_, err = repo.SettleReturn(ctx, record.ID, testNow())
	require.NoError(t, err)
	active, err = repo.ExistsActive(ctx, user.ID, book.ID)
	require.NoError(t, err)
	assert.False(t, active)
}

func TestRepositoryActiveUniqueIndex(t *testing.T) {
	conn := setupBorrowingTestDB(t)
	ctx := context.Background()
	repo := NewRepository(conn)

	user := mustCreatePatron(t, conn, 100)
	book := mustCreateTitle(t, conn, 3)

	mustCreateRecord(t, conn, user.ID, book.ID, enums.ReturnRequestNone)

	dup := mustBuildRecord(user.ID, book.ID)
	err := repo.Create(ctx, dup)
	require.Error(t, err, "second active record for the pair must violate the partial index")
}

func TestRepositoryMarkReturnRequestedGuard(t *testing.T) {
	conn := setupBorrowingTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	user := mustCreatePatron(t, conn, 100)
	book := mustCreateTitle(t, conn, 1)
	record := mustCreateRecord(t, conn, user.ID, book.ID, enums.ReturnRequestNone)

	moved, err := repo.MarkReturnRequested(ctx, record.ID)
	require.NoError(t, err)
	assert.True(t, moved)

	// already pending; the guard loses
	moved, err = repo.MarkReturnRequested(ctx, record.ID)
	require.NoError(t, err)
	assert.False(t, moved)

	// a rejection re-opens the path back to pending
	rejected, err := repo.RejectReturn(ctx, record.ID)
	require.NoError(t, err)
	assert.True(t, rejected)

	moved, err = repo.MarkReturnRequested(ctx, record.ID)
	require.NoError(t, err)
	assert.True(t, moved)
}

func TestRepositorySettleReturnOnlyOnce(t *testing.T) {
	conn := setupBorrowingTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	user := mustCreatePatron(t, conn, 100)
	book := mustCreateTitle(t, conn, 1)
	record := mustCreateRecord(t, conn, user.ID, book.ID, enums.ReturnRequestPending)

	settled, err := repo.SettleReturn(ctx, record.ID, testNow())
	require.NoError(t, err)
	assert.True(t, settled)

	settled, err = repo.SettleReturn(ctx, record.ID, testNow())
	require.NoError(t, err)
	assert.False(t, settled)

	current := currentRecord(t, conn, record.ID)
	assert.Equal(t, enums.ReturnRequestApproved, current.ReturnRequestStatus)
	assert.Equal(t, enums.LoanStatusReturned, current.ReturnStatus)
	require.NotNil(t, current.ReturnDate)
}

func TestRepositoryMarkOverdueGuard(t *testing.T) {
	conn := setupBorrowingTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	user := mustCreatePatron(t, conn, 100)
	book := mustCreateTitle(t, conn, 1)
	record := mustCreateRecord(t, conn, user.ID, book.ID, enums.ReturnRequestNone)

	fine := decimal.NewFromInt(30)
	flagged, err := repo.MarkOverdue(ctx, record.ID, fine)
	require.NoError(t, err)
	assert.True(t, flagged)

	current := currentRecord(t, conn, record.ID)
	assert.Equal(t, enums.LoanStatusOverdue, current.ReturnStatus)
	assert.True(t, current.Fine.Equal(fine), "got %s", current.Fine)

	// OVERDUE records are not re-flagged
	flagged, err = repo.MarkOverdue(ctx, record.ID, decimal.NewFromInt(40))
	require.NoError(t, err)
	assert.False(t, flagged)

	current = currentRecord(t, conn, record.ID)
	assert.True(t, current.Fine.Equal(fine), "fine must not change on a lost guard")
}

func TestRepositoryListPendingResolvesNames(t *testing.T) {
	conn := setupBorrowingTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	user := mustCreatePatron(t, conn, 100)
	book := mustCreateTitle(t, conn, 1)
	record := mustCreateRecord(t, conn, user.ID, book.ID, enums.ReturnRequestPending)

	// a NONE record must not show up in the queue
	other := mustCreateTitle(t, conn, 1)
	mustCreateRecord(t, conn, user.ID, other.ID, enums.ReturnRequestNone)

	rows, err := repo.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, record.ID, rows[0].RecordID)
	assert.Equal(t, user.Name, rows[0].UserName)
	assert.Equal(t, book.Title, rows[0].BookTitle)
}

func TestRepositoryFindDueBeforeSelectsOnlyBorrowed(t *testing.T) {
	conn := setupBorrowingTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	user := mustCreatePatron(t, conn, 100)
	now := testNow()

	overdueBook := mustCreateTitle(t, conn, 1)
	overdue := mustCreateRecord(t, conn, user.ID, overdueBook.ID, enums.ReturnRequestNone)
	require.NoError(t, conn.Model(overdue).Update("due_date", now.AddDate(0, 0, -3)).Error)

	// already flagged; must not be selected again
	flaggedBook := mustCreateTitle(t, conn, 1)
	flagged := mustCreateRecord(t, conn, user.ID, flaggedBook.ID, enums.ReturnRequestNone)
	require.NoError(t, conn.Model(flagged).Updates(map[string]any{
		"due_date":      now.AddDate(0, 0, -4),
		"return_status": enums.LoanStatusOverdue,
	}).Error)

	// not yet due
	freshBook := mustCreateTitle(t, conn, 1)
	mustCreateRecord(t, conn, user.ID, freshBook.ID, enums.ReturnRequestNone)

	records, err := repo.FindDueBefore(ctx, now)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, overdue.ID, records[0].ID)
}

func TestRepositoryCountUnreturned(t *testing.T) {
	conn := setupBorrowingTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	user := mustCreatePatron(t, conn, 100)
	first := mustCreateTitle(t, conn, 1)
	second := mustCreateTitle(t, conn, 1)

	mustCreateRecord(t, conn, user.ID, first.ID, enums.ReturnRequestNone)
	settled := mustCreateRecord(t, conn, user.ID, second.ID, enums.ReturnRequestPending)
	_, err := repo.SettleReturn(ctx, settled.ID, testNow())
	require.NoError(t, err)

	count, err := repo.CountUnreturned(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func mustBuildRecord(userID, bookID uuid.UUID) *models.BorrowRecord {
	now := testNow()
	return &models.BorrowRecord{
		ID:                  uuid.New(),
		BookID:              bookID,
		UserID:              userID,
		IssueDate:           now,
		DueDate:             now.AddDate(0, 0, 7),
		Fine:                decimal.Zero,
		ReturnStatus:        enums.LoanStatusBorrowed,
		ReturnRequestStatus: enums.ReturnRequestNone,
	}
}
