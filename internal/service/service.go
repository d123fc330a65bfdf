package service

import (
	"context"
	"errors"
	"time"

	"cityquest/internal/model"

	"github.com/google/uuid"
)

// Typed outcomes returned to the operation boundary. All of these are
// expected results, recovered by the caller; none should crash the process.
var (
	ErrUserNotFound  = errors.New("user not found")
	ErrQuestNotFound = errors.New("quest not found or inactive")
	ErrMatchNotFound = errors.New("match not found")

	// PrerequisiteMissing, split so callers can tell the user what to do next.
	ErrNoQuestSelected = errors.New("no quest selected for today")
	ErrNoDailyProfile  = errors.New("no daily profile published for today")

	ErrForbidden        = errors.New("caller is not a match participant")
	ErrMatchExpired     = errors.New("match is expired")
	ErrMatchCancelled   = errors.New("match is cancelled")
	ErrAlreadyCompleted = errors.New("match is already completed")
)

type Service struct {
	*UserService
	*DailyService
	*MatchService
}

func NewService(userService *UserService, dailyService *DailyService, matchService *MatchService) *Service {
	return &Service{
		UserService:  userService,
		DailyService: dailyService,
		MatchService: matchService,
	}
}

type UserServiceI interface {
	RegisterUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	GetKarmaHistory(ctx context.Context, userID uuid.UUID, limit int) (*model.User, []*model.KarmaEvent, error)
}

type UserRepository interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	ListKarmaEvents(ctx context.Context, userID uuid.UUID, limit int) ([]*model.KarmaEvent, error)
}

type DailyServiceI interface {
	ListQuests(ctx context.Context, district string, limit int) ([]*model.Quest, error)
	UpsertQuest(ctx context.Context, title, district string, active bool) (*model.Quest, error)
	SelectQuest(ctx context.Context, userID, questID uuid.UUID) (*model.QuestSelection, error)
	PublishDailyProfile(ctx context.Context, userID uuid.UUID, district, photoURL string, mood *string) (*model.DailyProfile, error)
}

type QuestRepository interface {
	GetQuestByID(ctx context.Context, id uuid.UUID) (*model.Quest, error)
	ListQuests(ctx context.Context, district string, limit int) ([]*model.Quest, error)
	UpsertQuest(ctx context.Context, quest *model.Quest) (*model.Quest, error)
}

type DailyRepository interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	GetQuestByID(ctx context.Context, id uuid.UUID) (*model.Quest, error)
	UpsertQuestSelection(ctx context.Context, sel *model.QuestSelection) (*model.QuestSelection, error)
	GetQuestSelection(ctx context.Context, userID uuid.UUID, dayKey string) (*model.QuestSelection, error)
	UpsertDailyProfile(ctx context.Context, profile *model.DailyProfile) (*model.DailyProfile, error)
	GetDailyProfile(ctx context.Context, userID uuid.UUID, dayKey string) (*model.DailyProfile, error)
	ListQuests(ctx context.Context, district string, limit int) ([]*model.Quest, error)
	UpsertQuest(ctx context.Context, quest *model.Quest) (*model.Quest, error)
}

type MatchServiceI interface {
	FindOrCreateMatch(ctx context.Context, userID uuid.UUID) (*MatchResult, error)
	GetMatch(ctx context.Context, matchID, userID uuid.UUID) (*model.Match, *model.Quest, error)
	ListMatches(ctx context.Context, userID uuid.UUID, limit int) ([]*model.MatchSummary, error)
	ListMessages(ctx context.Context, matchID, userID uuid.UUID, limit int) ([]*model.Message, error)
	SendMessage(ctx context.Context, matchID, senderID uuid.UUID, content string) (*model.Message, error)
	SubmitProof(ctx context.Context, matchID, userID uuid.UUID, photoURL string) (*model.Match, error)
	ConfirmCompletion(ctx context.Context, matchID, userID uuid.UUID) (*model.Match, error)
}

type MatchRepository interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	GetQuestByID(ctx context.Context, id uuid.UUID) (*model.Quest, error)
	GetQuestSelection(ctx context.Context, userID uuid.UUID, dayKey string) (*model.QuestSelection, error)
	GetDailyProfile(ctx context.Context, userID uuid.UUID, dayKey string) (*model.DailyProfile, error)

	GetActiveMatchForUser(ctx context.Context, userID uuid.UUID, now time.Time) (*model.Match, error)
	GetCandidateSelections(ctx context.Context, questID uuid.UUID, dayKey string, excludeUserID uuid.UUID, now time.Time) ([]model.CandidateSelection, error)
	UsersWithDailyProfile(ctx context.Context, userIDs []uuid.UUID, dayKey string, now time.Time) (map[uuid.UUID]struct{}, error)
	UsersWithActiveMatch(ctx context.Context, userIDs []uuid.UUID, now time.Time) (map[uuid.UUID]struct{}, error)
	UsersPairedWith(ctx context.Context, userID, questID uuid.UUID, userIDs []uuid.UUID, now time.Time) (map[uuid.UUID]struct{}, error)
	AllocateMatch(ctx context.Context, requesterID, candidateID, questID uuid.UUID, now, expiresAt time.Time) (*model.Match, bool, error)

	GetMatchByID(ctx context.Context, id uuid.UUID) (*model.Match, error)
	ListMatchesForUser(ctx context.Context, userID uuid.UUID, now time.Time, limit int) ([]*model.MatchSummary, error)
	CreateMessage(ctx context.Context, msg *model.Message) error
	ListMessages(ctx context.Context, matchID uuid.UUID, limit int) ([]*model.Message, error)
	SubmitProof(ctx context.Context, matchID uuid.UUID, slot int, photoURL string, now time.Time) (*model.Match, error)
	ConfirmCompletion(ctx context.Context, matchID uuid.UUID, slot int, now time.Time, reward int) (*model.Match, error)
}

type CleanupRepository interface {
	CountExpired(ctx context.Context, now time.Time) (map[string]int64, error)
	DeleteExpired(ctx context.Context, now time.Time) (map[string]int64, error)
}
