package service

import (
	"context"
	"errors"
	"time"

	"cityquest/internal/model"
	"cityquest/internal/repository"
	"cityquest/pkg/daytime"
	"cityquest/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CompletionReward is the fixed karma amount each participant earns when a
// match reaches COMPLETED.
const CompletionReward = 10

// MatchResult is the outcome of a find-or-create attempt. Matched without
// Created means an existing active match was returned; neither flag set
// means no eligible candidate right now, which includes losing an
// allocation race.
type MatchResult struct {
	Created bool
	Matched bool
	Match   *model.Match
}

type MatchService struct {
	repo     MatchRepository
	calendar *daytime.Calendar
}

func NewMatchService(repo MatchRepository, calendar *daytime.Calendar) *MatchService {
	return &MatchService{
		repo:     repo,
		calendar: calendar,
	}
}

// FindOrCreateMatch pairs the user with the first eligible candidate who
// picked the same quest today, or returns the user's existing active match.
// The candidate scan is advisory; the allocation transaction is what
// enforces the one-active-match-per-user invariant under concurrency.
func (s *MatchService) FindOrCreateMatch(ctx context.Context, userID uuid.UUID) (*MatchResult, error) {
	log := logger.Logger()
	now := time.Now().UTC()
	dayKey := s.calendar.DayKey(now)
	expiresAt := s.calendar.NextMidnight(now)

	if _, err := s.repo.GetUserByID(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	selection, err := s.repo.GetQuestSelection(ctx, userID, dayKey)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNoQuestSelected
		}
		return nil, err
	}
	if !now.Before(selection.ExpiresAt) {
		return nil, ErrNoQuestSelected
	}

	profile, err := s.repo.GetDailyProfile(ctx, userID, dayKey)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNoDailyProfile
		}
		return nil, err
	}
	if !now.Before(profile.ExpiresAt) {
		return nil, ErrNoDailyProfile
	}

	existing, err := s.repo.GetActiveMatchForUser(ctx, userID, now)
	if err == nil {
		return &MatchResult{Created: false, Matched: true, Match: existing}, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	candidateID, err := s.resolveCandidate(ctx, userID, selection.QuestID, dayKey, now)
	if err != nil {
		return nil, err
	}
	if candidateID == uuid.Nil {
		return &MatchResult{}, nil
	}

	match, created, err := s.repo.AllocateMatch(ctx, userID, candidateID, selection.QuestID, now, expiresAt)
	if err != nil {
		if errors.Is(err, repository.ErrCandidateBusy) {
			// Lost the race for this candidate. Same as "no candidate yet";
			// the caller simply retries later.
			log.Info("allocation contention, candidate claimed concurrently",
				zap.String("user_id", userID.String()),
				zap.String("candidate_id", candidateID.String()))
			return &MatchResult{}, nil
		}
		return nil, err
	}

	return &MatchResult{Created: created, Matched: true, Match: match}, nil
}

// resolveCandidate walks the day's same-quest selectors in selected_at order
// and returns the first one who has a published profile, is not already
// paired with the requester on this quest, and holds no active match.
// Returns uuid.Nil when nobody qualifies.
func (s *MatchService) resolveCandidate(ctx context.Context, userID, questID uuid.UUID, dayKey string, now time.Time) (uuid.UUID, error) {
	selections, err := s.repo.GetCandidateSelections(ctx, questID, dayKey, userID, now)
	if err != nil {
		return uuid.Nil, err
	}
	if len(selections) == 0 {
		return uuid.Nil, nil
	}

	candidateIDs := make([]uuid.UUID, len(selections))
	for i, sel := range selections {
		candidateIDs[i] = sel.UserID
	}

	withProfile, err := s.repo.UsersWithDailyProfile(ctx, candidateIDs, dayKey, now)
	if err != nil {
		return uuid.Nil, err
	}

	alreadyPaired, err := s.repo.UsersPairedWith(ctx, userID, questID, candidateIDs, now)
	if err != nil {
		return uuid.Nil, err
	}

	busy, err := s.repo.UsersWithActiveMatch(ctx, candidateIDs, now)
	if err != nil {
		return uuid.Nil, err
	}

	for _, sel := range selections {
		if _, ok := withProfile[sel.UserID]; !ok {
			continue
		}
		if _, ok := alreadyPaired[sel.UserID]; ok {
			continue
		}
		if _, ok := busy[sel.UserID]; ok {
			continue
		}
		return sel.UserID, nil
	}

	return uuid.Nil, nil
}

// GetMatch returns the match with its quest embedded, so clients render the
// card without a second lookup.
func (s *MatchService) GetMatch(ctx context.Context, matchID, userID uuid.UUID) (*model.Match, *model.Quest, error) {
	match, _, err := s.getMatchForParticipant(ctx, matchID, userID)
	if err != nil {
		return nil, nil, err
	}

	quest, err := s.repo.GetQuestByID(ctx, match.QuestID)
	if err != nil {
		return nil, nil, err
	}

	return match, quest, nil
}

func (s *MatchService) ListMatches(ctx context.Context, userID uuid.UUID, limit int) ([]*model.MatchSummary, error) {
	if _, err := s.repo.GetUserByID(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	return s.repo.ListMatchesForUser(ctx, userID, time.Now().UTC(), limit)
}

func (s *MatchService) ListMessages(ctx context.Context, matchID, userID uuid.UUID, limit int) ([]*model.Message, error) {
	if _, _, err := s.getMatchForParticipant(ctx, matchID, userID); err != nil {
		return nil, err
	}

	return s.repo.ListMessages(ctx, matchID, limit)
}

// SendMessage appends a chat message to the match. Chat stays open on
// completed matches until the daily window closes; only cancellation and
// expiry block it.
func (s *MatchService) SendMessage(ctx context.Context, matchID, senderID uuid.UUID, content string) (*model.Message, error) {
	match, _, err := s.getMatchForParticipant(ctx, matchID, senderID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if match.Status == model.MatchCancelled {
		return nil, ErrMatchCancelled
	}
	if match.Expired(now) {
		return nil, ErrMatchExpired
	}

	msg := &model.Message{
		ID:        uuid.New(),
		MatchID:   match.ID,
		SenderID:  senderID,
		Content:   content,
		CreatedAt: now,
		ExpiresAt: match.ExpiresAt,
	}
	if err := s.repo.CreateMessage(ctx, msg); err != nil {
		return nil, err
	}

	return msg, nil
}

// SubmitProof stores the caller's photo on their slot. Resubmission
// overwrites the slot; a PENDING match is promoted to ACCEPTED.
func (s *MatchService) SubmitProof(ctx context.Context, matchID, userID uuid.UUID, photoURL string) (*model.Match, error) {
	match, slot, err := s.getMatchForParticipant(ctx, matchID, userID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if match.Status == model.MatchCancelled {
		return nil, ErrMatchCancelled
	}
	if match.Status == model.MatchCompleted {
		return nil, ErrAlreadyCompleted
	}
	if match.Expired(now) {
		return nil, ErrMatchExpired
	}

	return s.repo.SubmitProof(ctx, matchID, slot, photoURL, now)
}

// ConfirmCompletion records the caller's confirmation. The repository
// finalizes the match and issues the karma reward atomically the moment the
// second confirmation lands; repeating a confirmation never re-awards.
func (s *MatchService) ConfirmCompletion(ctx context.Context, matchID, userID uuid.UUID) (*model.Match, error) {
	match, slot, err := s.getMatchForParticipant(ctx, matchID, userID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if match.Status == model.MatchCancelled {
		return nil, ErrMatchCancelled
	}
	if match.Expired(now) {
		return nil, ErrMatchExpired
	}

	return s.repo.ConfirmCompletion(ctx, matchID, slot, now, CompletionReward)
}

func (s *MatchService) getMatchForParticipant(ctx context.Context, matchID, userID uuid.UUID) (*model.Match, int, error) {
	match, err := s.repo.GetMatchByID(ctx, matchID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, 0, ErrMatchNotFound
		}
		return nil, 0, err
	}

	slot, ok := match.SlotOf(userID)
	if !ok {
		return nil, 0, ErrForbidden
	}

	return match, slot, nil
}
