package service

import (
	"context"
	"errors"
	"time"

	"cityquest/internal/model"
	"cityquest/internal/repository"
	"cityquest/pkg/daytime"

	"github.com/google/uuid"
)

// DailyService covers the quest catalog and the two one-per-day entities a
// user must have before matchmaking: a quest selection and a daily profile.
type DailyService struct {
	repo     DailyRepository
	calendar *daytime.Calendar
}

func NewDailyService(repo DailyRepository, calendar *daytime.Calendar) *DailyService {
	return &DailyService{
		repo:     repo,
		calendar: calendar,
	}
}

func (s *DailyService) ListQuests(ctx context.Context, district string, limit int) ([]*model.Quest, error) {
	return s.repo.ListQuests(ctx, district, limit)
}

func (s *DailyService) UpsertQuest(ctx context.Context, title, district string, active bool) (*model.Quest, error) {
	return s.repo.UpsertQuest(ctx, &model.Quest{
		ID:        uuid.New(),
		Title:     title,
		District:  district,
		Active:    active,
		CreatedAt: time.Now().UTC(),
	})
}

// SelectQuest records the user's quest choice for the current day. Selecting
// again on the same day replaces the previous choice and refreshes expiry.
func (s *DailyService) SelectQuest(ctx context.Context, userID, questID uuid.UUID) (*model.QuestSelection, error) {
	if _, err := s.repo.GetUserByID(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	quest, err := s.repo.GetQuestByID(ctx, questID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrQuestNotFound
		}
		return nil, err
	}
	if !quest.Active {
		return nil, ErrQuestNotFound
	}

	now := time.Now().UTC()
	return s.repo.UpsertQuestSelection(ctx, &model.QuestSelection{
		ID:         uuid.New(),
		UserID:     userID,
		QuestID:    questID,
		DayKey:     s.calendar.DayKey(now),
		SelectedAt: now,
		ExpiresAt:  s.calendar.NextMidnight(now),
	})
}

// PublishDailyProfile publishes (or supersedes) the user's profile for the
// current day.
func (s *DailyService) PublishDailyProfile(ctx context.Context, userID uuid.UUID, district, photoURL string, mood *string) (*model.DailyProfile, error) {
	if _, err := s.repo.GetUserByID(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	now := time.Now().UTC()
	return s.repo.UpsertDailyProfile(ctx, &model.DailyProfile{
		ID:        uuid.New(),
		UserID:    userID,
		DayKey:    s.calendar.DayKey(now),
		District:  district,
		PhotoURL:  photoURL,
		Mood:      mood,
		ExpiresAt: s.calendar.NextMidnight(now),
	})
}
