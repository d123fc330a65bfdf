package model

import (
	"time"

	"github.com/google/uuid"
)

type MatchStatus string

const (
	MatchPending   MatchStatus = "PENDING"
	MatchAccepted  MatchStatus = "ACCEPTED"
	MatchCompleted MatchStatus = "COMPLETED"
	MatchCancelled MatchStatus = "CANCELLED"
)

// ActiveMatchStatuses are the statuses that make a user "busy": holding an
// unexpired match in one of these states blocks any new pairing.
var ActiveMatchStatuses = []MatchStatus{MatchPending, MatchAccepted}

// Proof is one participant slot's completion evidence.
type Proof struct {
	PhotoURL    *string
	SubmittedAt *time.Time
}

// Match pairs two users on one quest for one daily window. Participants are
// stored in canonical order (Users[0] sorts before Users[1]), so a given
// unordered pair can only ever map to one row. Per-slot state (proofs,
// confirmations) is indexed by the canonical slot.
type Match struct {
	ID          uuid.UUID
	QuestID     uuid.UUID
	Users       [2]uuid.UUID
	Status      MatchStatus
	Proofs      [2]Proof
	ConfirmedAt [2]*time.Time
	CreatedAt   time.Time
	ExpiresAt   time.Time
	CompletedAt *time.Time
}

// CanonicalPair orders two user IDs lexicographically. Done once at
// match-creation time; every later slot lookup goes through SlotOf.
func CanonicalPair(a, b uuid.UUID) [2]uuid.UUID {
	if a.String() > b.String() {
		a, b = b, a
	}
	return [2]uuid.UUID{a, b}
}

// SlotOf returns the canonical slot (0 or 1) userID occupies in the match,
// or ok=false if the user is not a participant.
func (m *Match) SlotOf(userID uuid.UUID) (int, bool) {
	switch userID {
	case m.Users[0]:
		return 0, true
	case m.Users[1]:
		return 1, true
	default:
		return 0, false
	}
}

// Expired reports whether the match's daily window has closed. The boundary
// instant itself counts as expired.
func (m *Match) Expired(now time.Time) bool {
	return !now.Before(m.ExpiresAt)
}

// Message belongs to exactly one match and inherits the match's expiry at
// creation time, so chat never outlives the pairing's daily window.
type Message struct {
	ID        uuid.UUID
	MatchID   uuid.UUID
	SenderID  uuid.UUID
	Content   string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// MatchSummary is a match as seen in a user's match list: the row itself
// plus the quest, the partner's card and the latest chat message.
type MatchSummary struct {
	Match       *Match
	Quest       *Quest
	Partner     *User
	LastMessage *Message
}
