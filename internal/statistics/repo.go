package statistics

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ActiveUser counts how many loans a patron has taken out.
type ActiveUser struct {
	UserID      uuid.UUID `gorm:"column:user_id"`
	Name        string    `gorm:"column:name"`
	BorrowCount int64     `gorm:"column:borrow_count"`
}

// PopularBook counts how often a title has been borrowed.
type PopularBook struct {
	BookID      uuid.UUID `gorm:"column:book_id"`
	Title       string    `gorm:"column:title"`
	Author      string    `gorm:"column:author"`
	BorrowCount int64     `gorm:"column:borrow_count"`
}

// PopularGenre counts borrows per genre.
type PopularGenre struct {
	Genre       string `gorm:"column:genre"`
	BorrowCount int64  `gorm:"column:borrow_count"`
}

// MonthlyBorrows counts loans issued in a calendar month.
type MonthlyBorrows struct {
	Month       string `gorm:"column:month"`
	BorrowCount int64  `gorm:"column:borrow_count"`
}

// Repository answers read-only aggregate queries over loan history.
type Repository interface {
	MostActiveUsers(ctx context.Context, limit int) ([]ActiveUser, error)
	MostBorrowedBooks(ctx context.Context, limit int) ([]PopularBook, error)
	MostBorrowedGenres(ctx context.Context, limit int) ([]PopularGenre, error)
	BorrowsPerMonth(ctx context.Context) ([]MonthlyBorrows, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a statistics repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) MostActiveUsers(ctx context.Context, limit int) ([]ActiveUser, error) {
	var rows []ActiveUser
	err := r.db.WithContext(ctx).Raw(`
SELECT u.id AS user_id, u.name AS name, COUNT(br.id) AS borrow_count
FROM borrow_records br
JOIN users u ON u.id = br.user_id
GROUP BY u.id, u.name
ORDER BY borrow_count DESC, u.name ASC
LIMIT ?`, limit).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) MostBorrowedBooks(ctx context.Context, limit int) ([]PopularBook, error) {
	var rows []PopularBook
	err := r.db.WithContext(ctx).Raw(`
SELECT b.id AS book_id, b.title AS title, b.author AS author, COUNT(br.id) AS borrow_count
FROM borrow_records br
JOIN books b ON b.id = br.book_id
GROUP BY b.id, b.title, b.author
ORDER BY borrow_count DESC, b.title ASC
LIMIT ?`, limit).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) MostBorrowedGenres(ctx context.Context, limit int) ([]PopularGenre, error) {
	var rows []PopularGenre
	err := r.db.WithContext(ctx).Raw(`
SELECT b.genre AS genre, COUNT(br.id) AS borrow_count
FROM borrow_records br
JOIN books b ON b.id = br.book_id
WHERE b.genre <> ''
GROUP BY b.genre
ORDER BY borrow_count DESC, b.genre ASC
LIMIT ?`, limit).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// BorrowsPerMonth buckets loans by the month of their issue date. SUBSTR
// over the timestamp text works on both Postgres and SQLite, so the query
// needs no dialect-specific date functions.
func (r *repository) BorrowsPerMonth(ctx context.Context) ([]MonthlyBorrows, error) {
	var rows []MonthlyBorrows
	err := r.db.WithContext(ctx).Raw(`
SELECT SUBSTR(CAST(issue_date AS TEXT), 1, 7) AS month, COUNT(id) AS borrow_count
FROM borrow_records
GROUP BY month
ORDER BY month ASC`).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
