package mocks

import (
	"context"
	"time"

	"cityquest/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) CreateUser(ctx context.Context, user *model.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) GetUserByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockUserRepository) ListKarmaEvents(ctx context.Context, userID uuid.UUID, limit int) ([]*model.KarmaEvent, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.KarmaEvent), args.Error(1)
}

type MockDailyRepository struct {
	mock.Mock
}

func (m *MockDailyRepository) GetUserByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockDailyRepository) GetQuestByID(ctx context.Context, id uuid.UUID) (*model.Quest, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Quest), args.Error(1)
}

func (m *MockDailyRepository) UpsertQuestSelection(ctx context.Context, sel *model.QuestSelection) (*model.QuestSelection, error) {
	args := m.Called(ctx, sel)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.QuestSelection), args.Error(1)
}

func (m *MockDailyRepository) GetQuestSelection(ctx context.Context, userID uuid.UUID, dayKey string) (*model.QuestSelection, error) {
	args := m.Called(ctx, userID, dayKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.QuestSelection), args.Error(1)
}

func (m *MockDailyRepository) UpsertDailyProfile(ctx context.Context, profile *model.DailyProfile) (*model.DailyProfile, error) {
	args := m.Called(ctx, profile)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.DailyProfile), args.Error(1)
}

func (m *MockDailyRepository) GetDailyProfile(ctx context.Context, userID uuid.UUID, dayKey string) (*model.DailyProfile, error) {
	args := m.Called(ctx, userID, dayKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.DailyProfile), args.Error(1)
}

func (m *MockDailyRepository) ListQuests(ctx context.Context, district string, limit int) ([]*model.Quest, error) {
	args := m.Called(ctx, district, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Quest), args.Error(1)
}

func (m *MockDailyRepository) UpsertQuest(ctx context.Context, quest *model.Quest) (*model.Quest, error) {
	args := m.Called(ctx, quest)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Quest), args.Error(1)
}

type MockMatchRepository struct {
	mock.Mock
}

func (m *MockMatchRepository) GetUserByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockMatchRepository) GetQuestByID(ctx context.Context, id uuid.UUID) (*model.Quest, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Quest), args.Error(1)
}

func (m *MockMatchRepository) GetQuestSelection(ctx context.Context, userID uuid.UUID, dayKey string) (*model.QuestSelection, error) {
	args := m.Called(ctx, userID, dayKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.QuestSelection), args.Error(1)
}

func (m *MockMatchRepository) GetDailyProfile(ctx context.Context, userID uuid.UUID, dayKey string) (*model.DailyProfile, error) {
	args := m.Called(ctx, userID, dayKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.DailyProfile), args.Error(1)
}

func (m *MockMatchRepository) GetActiveMatchForUser(ctx context.Context, userID uuid.UUID, now time.Time) (*model.Match, error) {
	args := m.Called(ctx, userID, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Match), args.Error(1)
}

func (m *MockMatchRepository) GetCandidateSelections(ctx context.Context, questID uuid.UUID, dayKey string, excludeUserID uuid.UUID, now time.Time) ([]model.CandidateSelection, error) {
	args := m.Called(ctx, questID, dayKey, excludeUserID, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.CandidateSelection), args.Error(1)
}

func (m *MockMatchRepository) UsersWithDailyProfile(ctx context.Context, userIDs []uuid.UUID, dayKey string, now time.Time) (map[uuid.UUID]struct{}, error) {
	args := m.Called(ctx, userIDs, dayKey, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[uuid.UUID]struct{}), args.Error(1)
}

func (m *MockMatchRepository) UsersWithActiveMatch(ctx context.Context, userIDs []uuid.UUID, now time.Time) (map[uuid.UUID]struct{}, error) {
	args := m.Called(ctx, userIDs, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[uuid.UUID]struct{}), args.Error(1)
}

func (m *MockMatchRepository) UsersPairedWith(ctx context.Context, userID, questID uuid.UUID, userIDs []uuid.UUID, now time.Time) (map[uuid.UUID]struct{}, error) {
	args := m.Called(ctx, userID, questID, userIDs, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[uuid.UUID]struct{}), args.Error(1)
}

func (m *MockMatchRepository) AllocateMatch(ctx context.Context, requesterID, candidateID, questID uuid.UUID, now, expiresAt time.Time) (*model.Match, bool, error) {
	args := m.Called(ctx, requesterID, candidateID, questID, now, expiresAt)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*model.Match), args.Bool(1), args.Error(2)
}

func (m *MockMatchRepository) GetMatchByID(ctx context.Context, id uuid.UUID) (*model.Match, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Match), args.Error(1)
}

func (m *MockMatchRepository) ListMatchesForUser(ctx context.Context, userID uuid.UUID, now time.Time, limit int) ([]*model.MatchSummary, error) {
	args := m.Called(ctx, userID, now, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.MatchSummary), args.Error(1)
}

func (m *MockMatchRepository) CreateMessage(ctx context.Context, msg *model.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *MockMatchRepository) ListMessages(ctx context.Context, matchID uuid.UUID, limit int) ([]*model.Message, error) {
	args := m.Called(ctx, matchID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Message), args.Error(1)
}

func (m *MockMatchRepository) SubmitProof(ctx context.Context, matchID uuid.UUID, slot int, photoURL string, now time.Time) (*model.Match, error) {
	args := m.Called(ctx, matchID, slot, photoURL, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Match), args.Error(1)
}

func (m *MockMatchRepository) ConfirmCompletion(ctx context.Context, matchID uuid.UUID, slot int, now time.Time, reward int) (*model.Match, error) {
	args := m.Called(ctx, matchID, slot, now, reward)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Match), args.Error(1)
}
