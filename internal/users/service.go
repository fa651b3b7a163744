package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/ibizabroker/lms-backend/pkg/config"
	"github.com/ibizabroker/lms-backend/pkg/db"
	"github.com/ibizabroker/lms-backend/pkg/db/models"
	"github.com/ibizabroker/lms-backend/pkg/enums"
	pkgerrors "github.com/ibizabroker/lms-backend/pkg/errors"
	"github.com/ibizabroker/lms-backend/pkg/security"
)

// Service defines account management operations for patrons and staff.
type Service interface {
	CreateUser(ctx context.Context, input CreateUserInput) (*models.User, error)
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	UpdateUser(ctx context.Context, id uuid.UUID, input UpdateUserInput) (*models.User, error)
	DeleteUser(ctx context.Context, id uuid.UUID) error
	AddFunds(ctx context.Context, id uuid.UUID, amount decimal.Decimal) (*models.User, error)
}

type service struct {
	repo     Repository
	password config.PasswordConfig
}

// CreateUserInput captures the fields required to open an account.
type CreateUserInput struct {
	Username string
	Name     string
	Password string
	Roles    []string
}

// UpdateUserInput carries the mutable account fields. Nil means unchanged.
type UpdateUserInput struct {
	Name  *string
	Roles []string
}

// NewService wires a user service with the provided repository.
func NewService(repo Repository, password config.PasswordConfig) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("users repository required")
	}
	return &service{repo: repo, password: password}, nil
}

func (s *service) CreateUser(ctx context.Context, input CreateUserInput) (*models.User, error) {
	if input.Username == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "username is required")
	}
	if input.Name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	if input.Password == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "password is required")
	}
	roles := input.Roles
	if len(roles) == 0 {
		roles = []string{enums.RoleUser.String()}
	}
	for _, role := range roles {
		if !enums.UserRole(role).IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid role %q", role))
		}
	}

	hash, err := security.HashPassword(input.Password, s.password)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	user := &models.User{
		ID:           uuid.New(),
		Username:     input.Username,
		Name:         input.Name,
		PasswordHash: hash,
		Roles:        pq.StringArray(roles),
		Balance:      decimal.Zero,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "username already taken")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create user")
	}
	return user, nil
}

func (s *service) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}
	return user, nil
}

func (s *service) ListUsers(ctx context.Context) ([]models.User, error) {
	users, err := s.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list users")
	}
	return users, nil
}

func (s *service) UpdateUser(ctx context.Context, id uuid.UUID, input UpdateUserInput) (*models.User, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}

	updates := map[string]any{}
	if input.Name != nil {
		if *input.Name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "name cannot be empty")
		}
		updates["name"] = *input.Name
	}
	if input.Roles != nil {
		for _, role := range input.Roles {
			if !enums.UserRole(role).IsValid() {
				return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid role %q", role))
			}
		}
		updates["roles"] = pq.StringArray(input.Roles)
	}
	if len(updates) == 0 {
		return s.GetUser(ctx, id)
	}

	if _, err := s.GetUser(ctx, id); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, id, updates); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update user")
	}
	return s.GetUser(ctx, id)
}

func (s *service) DeleteUser(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if _, err := s.GetUser(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete user")
	}
	return nil
}

func (s *service) AddFunds(ctx context.Context, id uuid.UUID, amount decimal.Decimal) (*models.User, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	if _, err := s.GetUser(ctx, id); err != nil {
		return nil, err
	}
	if err := s.repo.CreditBalance(ctx, id, amount); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "credit balance")
	}
	return s.GetUser(ctx, id)
}
