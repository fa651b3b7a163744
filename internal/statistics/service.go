package statistics

import (
	"context"
	"fmt"

	pkgerrors "github.com/ibizabroker/lms-backend/pkg/errors"
)

const defaultLimit = 10

// Overview bundles the dashboard aggregates into one payload.
type Overview struct {
	MostActiveUsers    []ActiveUser
	MostBorrowedBooks  []PopularBook
	MostBorrowedGenres []PopularGenre
	BorrowsPerMonth    []MonthlyBorrows
}

// Service answers reporting queries for the admin dashboard.
type Service interface {
	GetOverview(ctx context.Context) (*Overview, error)
	MostActiveUsers(ctx context.Context, limit int) ([]ActiveUser, error)
	MostBorrowedBooks(ctx context.Context, limit int) ([]PopularBook, error)
	MostBorrowedGenres(ctx context.Context, limit int) ([]PopularGenre, error)
	BorrowsPerMonth(ctx context.Context) ([]MonthlyBorrows, error)
}

type service struct {
	stats Repository
}

// NewService builds a statistics service.
func NewService(stats Repository) (Service, error) {
	if stats == nil {
		return nil, fmt.Errorf("statistics repository required")
	}
	return &service{stats: stats}, nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return defaultLimit
	}
	return limit
}

func (s *service) GetOverview(ctx context.Context) (*Overview, error) {
	users, err := s.MostActiveUsers(ctx, defaultLimit)
	if err != nil {
		return nil, err
	}
	books, err := s.MostBorrowedBooks(ctx, defaultLimit)
	if err != nil {
		return nil, err
	}
	genres, err := s.MostBorrowedGenres(ctx, defaultLimit)
	if err != nil {
		return nil, err
	}
	monthly, err := s.BorrowsPerMonth(ctx)
	if err != nil {
		return nil, err
	}
	return &Overview{
		MostActiveUsers:    users,
		MostBorrowedBooks:  books,
		MostBorrowedGenres: genres,
		BorrowsPerMonth:    monthly,
	}, nil
}

func (s *service) MostActiveUsers(ctx context.Context, limit int) ([]ActiveUser, error) {
	rows, err := s.stats.MostActiveUsers(ctx, normalizeLimit(limit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "most active users")
	}
	return rows, nil
}

func (s *service) MostBorrowedBooks(ctx context.Context, limit int) ([]PopularBook, error) {
	rows, err := s.stats.MostBorrowedBooks(ctx, normalizeLimit(limit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "most borrowed books")
	}
	return rows, nil
}

func (s *service) MostBorrowedGenres(ctx context.Context, limit int) ([]PopularGenre, error) {
	rows, err := s.stats.MostBorrowedGenres(ctx, normalizeLimit(limit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "most borrowed genres")
	}
	return rows, nil
}

func (s *service) BorrowsPerMonth(ctx context.Context) ([]MonthlyBorrows, error) {
	rows, err := s.stats.BorrowsPerMonth(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "borrows per month")
	}
	return rows, nil
}
