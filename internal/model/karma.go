package model

import (
	"time"

	"github.com/google/uuid"
)

const KarmaReasonMatchCompleted = "MATCH_COMPLETED"

// KarmaEvent is an immutable ledger entry justifying a karma mutation.
// Events are only ever appended, and only when a match completes.
type KarmaEvent struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	MatchID   *uuid.UUID
	Delta     int
	Reason    string
	Metadata  map[string]string
	CreatedAt time.Time
}
