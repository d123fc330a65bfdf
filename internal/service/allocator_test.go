package service

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"testing"
	"time"

	"cityquest/internal/model"
	"cityquest/internal/repository"
	"cityquest/pkg/daytime"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeMatchStore is an in-memory MatchRepository with the same allocation
// semantics as the SQL one, guarded by a single mutex. It exists so the
// find-or-create flow can be raced from many goroutines without a database.
type fakeMatchStore struct {
	mu         sync.Mutex
	users      map[uuid.UUID]*model.User
	quests     map[uuid.UUID]*model.Quest
	selections map[uuid.UUID]*model.QuestSelection
	profiles   map[uuid.UUID]*model.DailyProfile
	matches    []*model.Match
	messages   []*model.Message
	events     []*model.KarmaEvent
}

func newFakeMatchStore() *fakeMatchStore {
	return &fakeMatchStore{
		users:      make(map[uuid.UUID]*model.User),
		quests:     make(map[uuid.UUID]*model.Quest),
		selections: make(map[uuid.UUID]*model.QuestSelection),
		profiles:   make(map[uuid.UUID]*model.DailyProfile),
	}
}

func (f *fakeMatchStore) addUser(u *model.User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[u.ID] = u
}

func (f *fakeMatchStore) addQuest(q *model.Quest) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.quests[q.ID] = q
}

func (f *fakeMatchStore) GetQuestByID(_ context.Context, id uuid.UUID) (*model.Quest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	q, ok := f.quests[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *q
	return &cp, nil
}

func (f *fakeMatchStore) addSelection(sel *model.QuestSelection) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.selections[sel.UserID] = sel
}

func (f *fakeMatchStore) addProfile(p *model.DailyProfile) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.profiles[p.UserID] = p
}

func (f *fakeMatchStore) GetUserByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeMatchStore) GetQuestSelection(_ context.Context, userID uuid.UUID, dayKey string) (*model.QuestSelection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sel, ok := f.selections[userID]
	if !ok || sel.DayKey != dayKey {
		return nil, repository.ErrNotFound
	}
	cp := *sel
	return &cp, nil
}

func (f *fakeMatchStore) GetDailyProfile(_ context.Context, userID uuid.UUID, dayKey string) (*model.DailyProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[userID]
	if !ok || p.DayKey != dayKey {
		return nil, repository.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeMatchStore) activeMatchLocked(userID uuid.UUID, now time.Time) *model.Match {
	for _, m := range f.matches {
		if m.Expired(now) {
			continue
		}
		if m.Status != model.MatchPending && m.Status != model.MatchAccepted {
			continue
		}
		if _, ok := m.SlotOf(userID); ok {
			return m
		}
	}
	return nil
}

func (f *fakeMatchStore) GetActiveMatchForUser(_ context.Context, userID uuid.UUID, now time.Time) (*model.Match, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m := f.activeMatchLocked(userID, now); m != nil {
		cp := *m
		return &cp, nil
	}
	return nil, repository.ErrNotFound
}

func (f *fakeMatchStore) GetCandidateSelections(_ context.Context, questID uuid.UUID, dayKey string, excludeUserID uuid.UUID, now time.Time) ([]model.CandidateSelection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.CandidateSelection
	for _, sel := range f.selections {
		if sel.QuestID != questID || sel.DayKey != dayKey || sel.UserID == excludeUserID {
			continue
		}
		if !now.Before(sel.ExpiresAt) {
			continue
		}
		out = append(out, model.CandidateSelection{UserID: sel.UserID, SelectedAt: sel.SelectedAt})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SelectedAt.Before(out[j].SelectedAt) })
	return out, nil
}

func (f *fakeMatchStore) UsersWithDailyProfile(_ context.Context, userIDs []uuid.UUID, dayKey string, now time.Time) (map[uuid.UUID]struct{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	set := make(map[uuid.UUID]struct{})
	for _, id := range userIDs {
		if p, ok := f.profiles[id]; ok && p.DayKey == dayKey && now.Before(p.ExpiresAt) {
			set[id] = struct{}{}
		}
	}
	return set, nil
}

func (f *fakeMatchStore) UsersWithActiveMatch(_ context.Context, userIDs []uuid.UUID, now time.Time) (map[uuid.UUID]struct{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	set := make(map[uuid.UUID]struct{})
	for _, id := range userIDs {
		if f.activeMatchLocked(id, now) != nil {
			set[id] = struct{}{}
		}
	}
	return set, nil
}

func (f *fakeMatchStore) UsersPairedWith(_ context.Context, userID, questID uuid.UUID, userIDs []uuid.UUID, now time.Time) (map[uuid.UUID]struct{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	set := make(map[uuid.UUID]struct{})
	for _, m := range f.matches {
		if m.QuestID != questID || m.Expired(now) {
			continue
		}
		slot, ok := m.SlotOf(userID)
		if !ok {
			continue
		}
		partner := m.Users[1-slot]
		for _, id := range userIDs {
			if id == partner {
				set[id] = struct{}{}
			}
		}
	}
	return set, nil
}

func (f *fakeMatchStore) AllocateMatch(_ context.Context, requesterID, candidateID, questID uuid.UUID, now, expiresAt time.Time) (*model.Match, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if m := f.activeMatchLocked(requesterID, now); m != nil {
		cp := *m
		return &cp, false, nil
	}

	pair := model.CanonicalPair(requesterID, candidateID)
	for _, m := range f.matches {
		if m.QuestID == questID && m.Users == pair && !m.Expired(now) {
			cp := *m
			return &cp, false, nil
		}
	}

	if f.activeMatchLocked(candidateID, now) != nil {
		return nil, false, repository.ErrCandidateBusy
	}

	m := &model.Match{
		ID:        uuid.New(),
		QuestID:   questID,
		Users:     pair,
		Status:    model.MatchAccepted,
		CreatedAt: now,
		ExpiresAt: expiresAt,
	}
	f.matches = append(f.matches, m)
	cp := *m
	return &cp, true, nil
}

func (f *fakeMatchStore) GetMatchByID(_ context.Context, id uuid.UUID) (*model.Match, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.matches {
		if m.ID == id {
			cp := *m
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeMatchStore) ListMatchesForUser(_ context.Context, userID uuid.UUID, now time.Time, limit int) ([]*model.MatchSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.MatchSummary
	for _, m := range f.matches {
		if m.Expired(now) {
			continue
		}
		slot, ok := m.SlotOf(userID)
		if !ok {
			continue
		}
		cp := *m
		out = append(out, &model.MatchSummary{
			Match:   &cp,
			Quest:   f.quests[m.QuestID],
			Partner: f.users[m.Users[1-slot]],
		})
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeMatchStore) CreateMessage(_ context.Context, msg *model.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *msg
	f.messages = append(f.messages, &cp)
	return nil
}

func (f *fakeMatchStore) ListMessages(_ context.Context, matchID uuid.UUID, limit int) ([]*model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Message
	for _, msg := range f.messages {
		if msg.MatchID != matchID {
			continue
		}
		cp := *msg
		out = append(out, &cp)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeMatchStore) SubmitProof(_ context.Context, matchID uuid.UUID, slot int, photoURL string, now time.Time) (*model.Match, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.matches {
		if m.ID != matchID {
			continue
		}
		url := photoURL
		at := now
		m.Proofs[slot] = model.Proof{PhotoURL: &url, SubmittedAt: &at}
		if m.Status == model.MatchPending {
			m.Status = model.MatchAccepted
		}
		cp := *m
		return &cp, nil
	}
	return nil, repository.ErrNotFound
}

func (f *fakeMatchStore) ConfirmCompletion(_ context.Context, matchID uuid.UUID, slot int, now time.Time, reward int) (*model.Match, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.matches {
		if m.ID != matchID {
			continue
		}
		at := now
		m.ConfirmedAt[slot] = &at
		if m.ConfirmedAt[0] != nil && m.ConfirmedAt[1] != nil && m.Status != model.MatchCompleted {
			m.Status = model.MatchCompleted
			m.CompletedAt = &at
			for _, participant := range m.Users {
				f.users[participant].Karma += reward
				eventMatchID := m.ID
				f.events = append(f.events, &model.KarmaEvent{
					ID:      uuid.New(),
					UserID:  participant,
					MatchID: &eventMatchID,
					Delta:   reward,
					Reason:  model.KarmaReasonMatchCompleted,
					Metadata: map[string]string{
						"source":      "match-completion",
						"karma_total": strconv.Itoa(f.users[participant].Karma),
					},
					CreatedAt: now,
				})
			}
		}
		cp := *m
		return &cp, nil
	}
	return nil, repository.ErrNotFound
}

func seedQuest(store *fakeMatchStore) uuid.UUID {
	q := &model.Quest{
		ID:        uuid.New(),
		Title:     "Sunset photo at Moda pier",
		District:  "Kadikoy",
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}
	store.addQuest(q)
	return q.ID
}

func seedParticipant(t *testing.T, store *fakeMatchStore, calendar *daytime.Calendar, questID uuid.UUID, selectedAt time.Time) uuid.UUID {
	t.Helper()
	now := time.Now().UTC()
	id := uuid.New()
	store.addUser(&model.User{ID: id, DisplayName: "user", Age: 25, City: "Istanbul", CreatedAt: now})
	store.addSelection(&model.QuestSelection{
		ID:         uuid.New(),
		UserID:     id,
		QuestID:    questID,
		DayKey:     calendar.DayKey(now),
		SelectedAt: selectedAt,
		ExpiresAt:  calendar.NextMidnight(now),
	})
	store.addProfile(&model.DailyProfile{
		ID:        uuid.New(),
		UserID:    id,
		DayKey:    calendar.DayKey(now),
		District:  "Kadikoy",
		PhotoURL:  "https://cdn.example.com/p.jpg",
		ExpiresAt: calendar.NextMidnight(now),
	})
	return id
}

// Two users racing to pair with each other must end up sharing exactly one
// match no matter how many find-or-create calls land concurrently.
func TestFindOrCreateMatch_ConcurrentPairRace(t *testing.T) {
	calendar := newTestCalendar(t)
	store := newFakeMatchStore()
	questID := seedQuest(store)

	base := time.Now().UTC()
	userA := seedParticipant(t, store, calendar, questID, base.Add(-2*time.Minute))
	userB := seedParticipant(t, store, calendar, questID, base.Add(-time.Minute))

	svc := NewMatchService(store, calendar)

	const callsPerUser = 8
	var (
		wg           sync.WaitGroup
		resultsMu    sync.Mutex
		createdCount int
		errs         []error
	)
	for i := 0; i < callsPerUser; i++ {
		for _, caller := range []uuid.UUID{userA, userB} {
			wg.Add(1)
			go func(caller uuid.UUID) {
				defer wg.Done()
				result, err := svc.FindOrCreateMatch(context.Background(), caller)
				resultsMu.Lock()
				defer resultsMu.Unlock()
				if err != nil {
					errs = append(errs, err)
					return
				}
				if result.Created {
					createdCount++
				}
			}(caller)
		}
	}
	wg.Wait()

	require.Empty(t, errs)
	assert.Equal(t, 1, createdCount)
	require.Len(t, store.matches, 1)

	m := store.matches[0]
	assert.Equal(t, model.CanonicalPair(userA, userB), m.Users)
	assert.Equal(t, model.MatchAccepted, m.Status)
	assert.True(t, m.Users[0].String() < m.Users[1].String())
}

// A whole pool racing at once: nobody may end up in more than one active
// match, and every created match holds two distinct pool members.
func TestFindOrCreateMatch_ConcurrentPoolRace(t *testing.T) {
	calendar := newTestCalendar(t)
	store := newFakeMatchStore()
	questID := seedQuest(store)

	base := time.Now().UTC()
	const poolSize = 10
	userIDs := make([]uuid.UUID, poolSize)
	for i := range userIDs {
		userIDs[i] = seedParticipant(t, store, calendar, questID, base.Add(time.Duration(i-poolSize)*time.Minute))
	}

	svc := NewMatchService(store, calendar)

	var (
		wg     sync.WaitGroup
		errsMu sync.Mutex
		errs   []error
	)
	for _, id := range userIDs {
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			if _, err := svc.FindOrCreateMatch(context.Background(), id); err != nil {
				errsMu.Lock()
				errs = append(errs, err)
				errsMu.Unlock()
			}
		}(id)
	}
	wg.Wait()

	require.Empty(t, errs)
	seen := make(map[uuid.UUID]int)
	for _, m := range store.matches {
		assert.NotEqual(t, m.Users[0], m.Users[1])
		assert.True(t, m.Users[0].String() < m.Users[1].String())
		seen[m.Users[0]]++
		seen[m.Users[1]]++
	}
	for id, count := range seen {
		assert.Equalf(t, 1, count, "user %s appears in %d active matches", id, count)
	}
}

// Matching only fires once the partner has both a selection and a published
// profile; a second call after pairing is idempotent.
func TestFindOrCreateMatch_PartnerPrerequisites(t *testing.T) {
	calendar := newTestCalendar(t)
	store := newFakeMatchStore()
	questID := seedQuest(store)
	now := time.Now().UTC()

	userA := seedParticipant(t, store, calendar, questID, now.Add(-time.Hour))

	// Partner has selected the quest but not published a profile yet.
	userB := uuid.New()
	store.addUser(&model.User{ID: userB, DisplayName: "user", Age: 30, City: "Istanbul", CreatedAt: now})
	store.addSelection(&model.QuestSelection{
		ID:         uuid.New(),
		UserID:     userB,
		QuestID:    questID,
		DayKey:     calendar.DayKey(now),
		SelectedAt: now.Add(-30 * time.Minute),
		ExpiresAt:  calendar.NextMidnight(now),
	})

	svc := NewMatchService(store, calendar)
	ctx := context.Background()

	result, err := svc.FindOrCreateMatch(ctx, userA)
	require.NoError(t, err)
	assert.False(t, result.Matched)

	store.addProfile(&model.DailyProfile{
		ID:        uuid.New(),
		UserID:    userB,
		DayKey:    calendar.DayKey(now),
		District:  "Besiktas",
		PhotoURL:  "https://cdn.example.com/b.jpg",
		ExpiresAt: calendar.NextMidnight(now),
	})

	result, err = svc.FindOrCreateMatch(ctx, userA)
	require.NoError(t, err)
	require.True(t, result.Created)
	assert.Equal(t, model.CanonicalPair(userA, userB), result.Match.Users)

	again, err := svc.FindOrCreateMatch(ctx, userA)
	require.NoError(t, err)
	assert.False(t, again.Created)
	assert.True(t, again.Matched)
	assert.Equal(t, result.Match.ID, again.Match.ID)

	// Read-side views carry the quest card along with the match.
	match, quest, err := svc.GetMatch(ctx, result.Match.ID, userA)
	require.NoError(t, err)
	assert.Equal(t, result.Match.ID, match.ID)
	require.NotNil(t, quest)
	assert.Equal(t, questID, quest.ID)

	summaries, err := svc.ListMatches(ctx, userA, 20)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	require.NotNil(t, summaries[0].Quest)
	assert.Equal(t, questID, summaries[0].Quest.ID)
	assert.Equal(t, "Sunset photo at Moda pier", summaries[0].Quest.Title)
}

// Full lifecycle: proofs from both sides, double confirmation from one side,
// then the partner's confirmation completes the match and pays karma exactly
// once per participant.
func TestMatchLifecycle_KarmaAwardedOnce(t *testing.T) {
	calendar := newTestCalendar(t)
	store := newFakeMatchStore()
	questID := seedQuest(store)
	now := time.Now().UTC()

	userA := seedParticipant(t, store, calendar, questID, now.Add(-2*time.Minute))
	userB := seedParticipant(t, store, calendar, questID, now.Add(-time.Minute))

	svc := NewMatchService(store, calendar)
	ctx := context.Background()

	result, err := svc.FindOrCreateMatch(ctx, userA)
	require.NoError(t, err)
	require.True(t, result.Created)
	matchID := result.Match.ID

	_, err = svc.SubmitProof(ctx, matchID, userA, "https://cdn.example.com/proof-a.jpg")
	require.NoError(t, err)
	_, err = svc.SubmitProof(ctx, matchID, userB, "https://cdn.example.com/proof-b.jpg")
	require.NoError(t, err)

	m, err := svc.ConfirmCompletion(ctx, matchID, userA)
	require.NoError(t, err)
	assert.Equal(t, model.MatchAccepted, m.Status)
	assert.Empty(t, store.events)

	// Repeating the same side's confirmation changes nothing.
	m, err = svc.ConfirmCompletion(ctx, matchID, userA)
	require.NoError(t, err)
	assert.Equal(t, model.MatchAccepted, m.Status)
	assert.Empty(t, store.events)

	m, err = svc.ConfirmCompletion(ctx, matchID, userB)
	require.NoError(t, err)
	assert.Equal(t, model.MatchCompleted, m.Status)
	require.NotNil(t, m.CompletedAt)

	// Confirming after completion is accepted but never re-awards.
	_, err = svc.ConfirmCompletion(ctx, matchID, userB)
	require.NoError(t, err)

	require.Len(t, store.events, 2)
	for _, event := range store.events {
		assert.Equal(t, CompletionReward, event.Delta)
		assert.Equal(t, strconv.Itoa(CompletionReward), event.Metadata["karma_total"])
	}
	for _, id := range []uuid.UUID{userA, userB} {
		u, err := store.GetUserByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, CompletionReward, u.Karma)
	}
}
