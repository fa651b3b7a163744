package borrowing

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/ibizabroker/lms-backend/pkg/db/models"
	"github.com/ibizabroker/lms-backend/pkg/enums"
)

func testNow() time.Time {
	return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
}

func setupBorrowingTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	// one pooled connection so every session, goroutines included, sees the
	// same in-memory database
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	ddl := []string{`
CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  username TEXT NOT NULL UNIQUE,
  name TEXT NOT NULL,
  password_hash TEXT NOT NULL,
  roles TEXT NOT NULL,
  balance NUMERIC NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS books (
  id TEXT PRIMARY KEY,
  title TEXT NOT NULL,
  author TEXT NOT NULL,
  genre TEXT,
  copies_available INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS borrow_records (
  id TEXT PRIMARY KEY,
  book_id TEXT NOT NULL,
  user_id TEXT NOT NULL,
  issue_date DATETIME NOT NULL,
  due_date DATETIME NOT NULL,
  return_date DATETIME,
  fine NUMERIC NOT NULL DEFAULT 0,
  return_status TEXT NOT NULL,
  return_request_status TEXT NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE UNIQUE INDEX IF NOT EXISTS ux_borrow_records_active
  ON borrow_records (user_id, book_id)
  WHERE return_request_status <> 'APPROVED';`,
	}
	for _, stmt := range ddl {
		require.NoError(t, conn.Exec(stmt).Error)
	}
	return conn
}

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

func mustCreatePatron(t *testing.T, conn *gorm.DB, balance int64) *models.User {
	t.Helper()
	user := &models.User{
		ID:           uuid.New(),
		Username:     "patron_" + uuid.NewString(),
		Name:         "Test Patron",
		PasswordHash: "hash",
		Roles:        pq.StringArray{"User"},
		Balance:      decimal.NewFromInt(balance),
	}
	require.NoError(t, conn.Create(user).Error)
	return user
}

func mustCreateTitle(t *testing.T, conn *gorm.DB, copies int) *models.Book {
	t.Helper()
	book := &models.Book{
		ID:              uuid.New(),
		Title:           "Dune",
		Author:          "Frank Herbert",
		Genre:           "Science Fiction",
		CopiesAvailable: copies,
	}
	require.NoError(t, conn.Create(book).Error)
	return book
}

func currentBalance(t *testing.T, conn *gorm.DB, userID uuid.UUID) decimal.Decimal {
	t.Helper()
	var user models.User
	require.NoError(t, conn.First(&user, "id = ?", userID).Error)
	return user.Balance
}

func currentCopies(t *testing.T, conn *gorm.DB, bookID uuid.UUID) int {
	t.Helper()
	var book models.Book
	require.NoError(t, conn.First(&book, "id = ?", bookID).Error)
	return book.CopiesAvailable
}

func recordCount(t *testing.T, conn *gorm.DB) int64 {
	t.Helper()
	var count int64
	require.NoError(t, conn.Model(&models.BorrowRecord{}).Count(&count).Error)
	return count
}

func currentRecord(t *testing.T, conn *gorm.DB, id uuid.UUID) *models.BorrowRecord {
	t.Helper()
	var record models.BorrowRecord
	require.NoError(t, conn.First(&record, "id = ?", id).Error)
	return &record
}

func mustCreateRecord(t *testing.T, conn *gorm.DB, userID, bookID uuid.UUID, status enums.ReturnRequestStatus) *models.BorrowRecord {
	t.Helper()
	now := testNow()
	record := &models.BorrowRecord{
		ID:                  uuid.New(),
		BookID:              bookID,
		UserID:              userID,
		IssueDate:           now,
		DueDate:             now.AddDate(0, 0, 7),
		Fine:                decimal.Zero,
		ReturnStatus:        enums.LoanStatusBorrowed,
		ReturnRequestStatus: status,
	}
	require.NoError(t, conn.Create(record).Error)
	return record
}
