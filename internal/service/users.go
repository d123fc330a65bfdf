package service

import (
	"context"
	"errors"
	"time"

	"cityquest/internal/model"
	"cityquest/internal/repository"

	"github.com/google/uuid"
)

type UserService struct {
	repo UserRepository
}

func NewUserService(repo UserRepository) *UserService {
	return &UserService{repo: repo}
}

func (s *UserService) RegisterUser(ctx context.Context, user *model.User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	return s.repo.CreateUser(ctx, user)
}

func (s *UserService) GetUserByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	user, err := s.repo.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	return user, nil
}

// GetKarmaHistory returns the user's current karma total alongside the
// ledger entries that produced it, newest first.
func (s *UserService) GetKarmaHistory(ctx context.Context, userID uuid.UUID, limit int) (*model.User, []*model.KarmaEvent, error) {
	user, err := s.GetUserByID(ctx, userID)
	if err != nil {
		return nil, nil, err
	}

	events, err := s.repo.ListKarmaEvents(ctx, userID, limit)
	if err != nil {
		return nil, nil, err
	}

	return user, events, nil
}
