package feedback

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ibizabroker/lms-backend/pkg/db/models"
	pkgerrors "github.com/ibizabroker/lms-backend/pkg/errors"
)

const maxCommentLen = 2000

type userStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// Service handles patron feedback.
type Service interface {
	SubmitFeedback(ctx context.Context, userID uuid.UUID, comment string) (*models.Feedback, error)
	ListFeedback(ctx context.Context) ([]FeedbackWithAuthor, error)
	DeleteFeedback(ctx context.Context, id uuid.UUID) error
}

// ServiceParams configure the feedback service.
type ServiceParams struct {
	Feedback Repository
	Users    userStore
}

type service struct {
	feedback Repository
	users    userStore
}

// NewService builds a feedback service.
func NewService(params ServiceParams) (Service, error) {
	if params.Feedback == nil {
		return nil, fmt.Errorf("feedback repository required")
	}
	if params.Users == nil {
		return nil, fmt.Errorf("user store required")
	}
	return &service{feedback: params.Feedback, users: params.Users}, nil
}

func (s *service) SubmitFeedback(ctx context.Context, userID uuid.UUID, comment string) (*models.Feedback, error) {
	comment = strings.TrimSpace(comment)
	if comment == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "comment is required")
	}
	if len(comment) > maxCommentLen {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "comment is too long")
	}

	if _, err := s.users.FindByID(ctx, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}

	entry := &models.Feedback{
		ID:      uuid.New(),
		UserID:  userID,
		Comment: comment,
	}
	if err := s.feedback.Create(ctx, entry); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create feedback")
	}
	return entry, nil
}

func (s *service) ListFeedback(ctx context.Context) ([]FeedbackWithAuthor, error) {
	entries, err := s.feedback.ListWithAuthors(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list feedback")
	}
	return entries, nil
}

func (s *service) DeleteFeedback(ctx context.Context, id uuid.UUID) error {
	if _, err := s.feedback.FindByID(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "feedback not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load feedback")
	}
	if err := s.feedback.Delete(ctx, id); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete feedback")
	}
	return nil
}
