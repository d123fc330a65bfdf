package model

import (
	"time"

	"github.com/google/uuid"
)

type Quest struct {
	ID        uuid.UUID
	Title     string
	District  string
	Active    bool
	CreatedAt time.Time
}

// QuestSelection is a user's quest choice for one day. At most one row
// exists per (user, day key); re-selecting replaces the quest and refreshes
// the expiry.
type QuestSelection struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	QuestID    uuid.UUID
	DayKey     string
	SelectedAt time.Time
	ExpiresAt  time.Time
}

// DailyProfile is the photo + district a user publishes for one day.
// Required before matching. Same one-per-(user, day key) semantics as
// QuestSelection; re-publishing supersedes the prior profile.
type DailyProfile struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	DayKey    string
	District  string
	PhotoURL  string
	Mood      *string
	ExpiresAt time.Time
}

// CandidateSelection is the slice of a QuestSelection the resolver walks:
// who selected, and when (first-come-first-served ordering).
type CandidateSelection struct {
	UserID     uuid.UUID
	SelectedAt time.Time
}
