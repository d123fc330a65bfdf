package service

import (
	"context"
	"testing"

	"cityquest/internal/model"
	"cityquest/internal/repository"
	"cityquest/internal/service/mocks"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestUserService_RegisterUser(t *testing.T) {
	ctx := context.Background()

	mockRepo := new(mocks.MockUserRepository)
	mockRepo.On("CreateUser", ctx, mock.MatchedBy(func(u *model.User) bool {
		return u.ID != uuid.Nil && !u.CreatedAt.IsZero() && u.DisplayName == "Deniz"
	})).Return(nil)

	svc := NewUserService(mockRepo)
	user := &model.User{DisplayName: "Deniz", Age: 27, City: "Istanbul"}

	require.NoError(t, svc.RegisterUser(ctx, user))
	assert.NotEqual(t, uuid.Nil, user.ID)
	mockRepo.AssertExpectations(t)
}

func TestUserService_GetKarmaHistory(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	t.Run("unknown user", func(t *testing.T) {
		mockRepo := new(mocks.MockUserRepository)
		mockRepo.On("GetUserByID", ctx, userID).Return(nil, repository.ErrNotFound)

		svc := NewUserService(mockRepo)
		_, _, err := svc.GetKarmaHistory(ctx, userID, 50)

		assert.ErrorIs(t, err, ErrUserNotFound)
		mockRepo.AssertExpectations(t)
	})

	t.Run("total and ledger returned together", func(t *testing.T) {
		user := &model.User{ID: userID, DisplayName: "Deniz", Age: 27, City: "Istanbul", Karma: 20}
		events := []*model.KarmaEvent{
			{ID: uuid.New(), UserID: userID, Delta: 10, Reason: model.KarmaReasonMatchCompleted},
			{ID: uuid.New(), UserID: userID, Delta: 10, Reason: model.KarmaReasonMatchCompleted},
		}

		mockRepo := new(mocks.MockUserRepository)
		mockRepo.On("GetUserByID", ctx, userID).Return(user, nil)
		mockRepo.On("ListKarmaEvents", ctx, userID, 50).Return(events, nil)

		svc := NewUserService(mockRepo)
		got, history, err := svc.GetKarmaHistory(ctx, userID, 50)

		require.NoError(t, err)
		assert.Equal(t, 20, got.Karma)
		assert.Len(t, history, 2)
		mockRepo.AssertExpectations(t)
	})
}
