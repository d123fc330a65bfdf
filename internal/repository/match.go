package repository

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	"cityquest/internal/model"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// Serialization failures surface as SQLSTATE 40001 when two allocation
// transactions race for overlapping users. Exactly one commits; the loser
// is reported as a busy candidate.
const serializationFailureCode = "40001"

var sideSuffix = [2]string{"a", "b"}

type match struct {
	ID                uuid.UUID  `db:"id"`
	QuestID           uuid.UUID  `db:"quest_id"`
	UserA             uuid.UUID  `db:"user_a"`
	UserB             uuid.UUID  `db:"user_b"`
	Status            string     `db:"status"`
	ProofPhotoA       *string    `db:"proof_photo_a"`
	ProofPhotoB       *string    `db:"proof_photo_b"`
	ProofSubmittedAAt *time.Time `db:"proof_submitted_a_at"`
	ProofSubmittedBAt *time.Time `db:"proof_submitted_b_at"`
	ConfirmedAAt      *time.Time `db:"confirmed_a_at"`
	ConfirmedBAt      *time.Time `db:"confirmed_b_at"`
	CreatedAt         time.Time  `db:"created_at"`
	ExpiresAt         time.Time  `db:"expires_at"`
	CompletedAt       *time.Time `db:"completed_at"`
}

var matchColumns = []string{
	"id", "quest_id", "user_a", "user_b", "status",
	"proof_photo_a", "proof_photo_b",
	"proof_submitted_a_at", "proof_submitted_b_at",
	"confirmed_a_at", "confirmed_b_at",
	"created_at", "expires_at", "completed_at",
}

func (m *match) toModel() *model.Match {
	return &model.Match{
		ID:      m.ID,
		QuestID: m.QuestID,
		Users:   [2]uuid.UUID{m.UserA, m.UserB},
		Status:  model.MatchStatus(m.Status),
		Proofs: [2]model.Proof{
			{PhotoURL: m.ProofPhotoA, SubmittedAt: m.ProofSubmittedAAt},
			{PhotoURL: m.ProofPhotoB, SubmittedAt: m.ProofSubmittedBAt},
		},
		ConfirmedAt: [2]*time.Time{m.ConfirmedAAt, m.ConfirmedBAt},
		CreatedAt:   m.CreatedAt,
		ExpiresAt:   m.ExpiresAt,
		CompletedAt: m.CompletedAt,
	}
}

func activeStatusStrings() []string {
	statuses := make([]string, len(model.ActiveMatchStatuses))
	for i, s := range model.ActiveMatchStatuses {
		statuses[i] = string(s)
	}
	return statuses
}

func (r *Repository) GetMatchByID(ctx context.Context, id uuid.UUID) (*model.Match, error) {
	var row match
	query, args, err := squirrel.
		Select(matchColumns...).
		From("matches").
		Where(squirrel.Eq{"id": id}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	err = r.db.GetContext(ctx, &row, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return row.toModel(), nil
}

// GetActiveMatchForUser returns the user's unexpired PENDING/ACCEPTED match,
// or ErrNotFound. The allocator invariant guarantees at most one exists.
func (r *Repository) GetActiveMatchForUser(ctx context.Context, userID uuid.UUID, now time.Time) (*model.Match, error) {
	query, args, err := activeMatchQuery(userID, now).ToSql()
	if err != nil {
		return nil, err
	}

	var row match
	err = r.db.GetContext(ctx, &row, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return row.toModel(), nil
}

func activeMatchQuery(userID uuid.UUID, now time.Time) squirrel.SelectBuilder {
	return squirrel.
		Select(matchColumns...).
		From("matches").
		Where(squirrel.Or{
			squirrel.Eq{"user_a": userID},
			squirrel.Eq{"user_b": userID},
		}).
		Where(squirrel.Eq{"status": activeStatusStrings()}).
		Where(squirrel.Gt{"expires_at": now}).
		Limit(1).
		PlaceholderFormat(squirrel.Dollar)
}

func getActiveMatchWithTx(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, now time.Time) (*match, error) {
	query, args, err := activeMatchQuery(userID, now).ToSql()
	if err != nil {
		return nil, err
	}

	var row match
	err = tx.GetContext(ctx, &row, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return &row, nil
}

func getPairMatchWithTx(ctx context.Context, tx *sqlx.Tx, questID uuid.UUID, users [2]uuid.UUID, now time.Time) (*match, error) {
	query, args, err := squirrel.
		Select(matchColumns...).
		From("matches").
		Where(squirrel.Eq{"quest_id": questID, "user_a": users[0], "user_b": users[1]}).
		Where(squirrel.Gt{"expires_at": now}).
		Limit(1).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	var row match
	err = tx.GetContext(ctx, &row, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return &row, nil
}

// GetPairMatch reports the unexpired match between an unordered user pair
// for one quest, if any. Canonical storage order makes a single equality
// lookup sufficient.
func (r *Repository) GetPairMatch(ctx context.Context, questID, userA, userB uuid.UUID, now time.Time) (*model.Match, error) {
	pair := model.CanonicalPair(userA, userB)
	query, args, err := squirrel.
		Select(matchColumns...).
		From("matches").
		Where(squirrel.Eq{"quest_id": questID, "user_a": pair[0], "user_b": pair[1]}).
		Where(squirrel.Gt{"expires_at": now}).
		Limit(1).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	var row match
	err = r.db.GetContext(ctx, &row, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return row.toModel(), nil
}

// GetCandidateSelections lists everyone else who picked the same quest for
// the same day with a live selection, earliest selector first.
func (r *Repository) GetCandidateSelections(ctx context.Context, questID uuid.UUID, dayKey string, excludeUserID uuid.UUID, now time.Time) ([]model.CandidateSelection, error) {
	query, args, err := squirrel.
		Select("user_id", "selected_at").
		From("quest_selections").
		Where(squirrel.Eq{"quest_id": questID, "day_key": dayKey}).
		Where(squirrel.NotEq{"user_id": excludeUserID}).
		Where(squirrel.Gt{"expires_at": now}).
		OrderBy("selected_at ASC").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	var rows []struct {
		UserID     uuid.UUID `db:"user_id"`
		SelectedAt time.Time `db:"selected_at"`
	}
	err = r.db.SelectContext(ctx, &rows, query, args...)
	if err != nil {
		return nil, err
	}

	out := make([]model.CandidateSelection, len(rows))
	for i, row := range rows {
		out[i] = model.CandidateSelection{UserID: row.UserID, SelectedAt: row.SelectedAt}
	}

	return out, nil
}

// UsersWithDailyProfile filters userIDs down to those holding an unexpired
// profile for the day key.
func (r *Repository) UsersWithDailyProfile(ctx context.Context, userIDs []uuid.UUID, dayKey string, now time.Time) (map[uuid.UUID]struct{}, error) {
	query, args, err := squirrel.
		Select("user_id").
		From("daily_profiles").
		Where(squirrel.Expr("user_id = ANY(?)", pq.Array(uuidStrings(userIDs)))).
		Where(squirrel.Eq{"day_key": dayKey}).
		Where(squirrel.Gt{"expires_at": now}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	return r.selectUserIDSet(ctx, query, args)
}

// UsersWithActiveMatch filters userIDs down to those already busy: holding
// any unexpired PENDING/ACCEPTED match.
func (r *Repository) UsersWithActiveMatch(ctx context.Context, userIDs []uuid.UUID, now time.Time) (map[uuid.UUID]struct{}, error) {
	arr := pq.Array(uuidStrings(userIDs))
	query, args, err := squirrel.
		Select("user_a AS user_id").
		From("matches").
		Where(squirrel.Expr("user_a = ANY(?)", arr)).
		Where(squirrel.Eq{"status": activeStatusStrings()}).
		Where(squirrel.Gt{"expires_at": now}).
		Suffix(`UNION
			SELECT user_b AS user_id FROM matches
			WHERE user_b = ANY(?) AND status = ANY(?) AND expires_at > ?`,
			arr, pq.Array(activeStatusStrings()), now).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	return r.selectUserIDSet(ctx, query, args)
}

// UsersPairedWith filters userIDs down to those already holding an unexpired
// match with userID on this quest, expired-or-not status aside. Prevents
// immediately re-pairing the same two users on the same quest.
func (r *Repository) UsersPairedWith(ctx context.Context, userID, questID uuid.UUID, userIDs []uuid.UUID, now time.Time) (map[uuid.UUID]struct{}, error) {
	arr := pq.Array(uuidStrings(userIDs))
	query, args, err := squirrel.
		Select("user_a", "user_b").
		From("matches").
		Where(squirrel.Eq{"quest_id": questID}).
		Where(squirrel.Gt{"expires_at": now}).
		Where(squirrel.Or{
			squirrel.And{
				squirrel.Eq{"user_a": userID},
				squirrel.Expr("user_b = ANY(?)", arr),
			},
			squirrel.And{
				squirrel.Eq{"user_b": userID},
				squirrel.Expr("user_a = ANY(?)", arr),
			},
		}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	var rows []struct {
		UserA uuid.UUID `db:"user_a"`
		UserB uuid.UUID `db:"user_b"`
	}
	err = r.db.SelectContext(ctx, &rows, query, args...)
	if err != nil {
		return nil, err
	}

	set := make(map[uuid.UUID]struct{}, len(rows))
	for _, row := range rows {
		partner := row.UserA
		if partner == userID {
			partner = row.UserB
		}
		set[partner] = struct{}{}
	}

	return set, nil
}

func (r *Repository) selectUserIDSet(ctx context.Context, query string, args []interface{}) (map[uuid.UUID]struct{}, error) {
	var ids []uuid.UUID
	err := r.db.SelectContext(ctx, &ids, query, args...)
	if err != nil {
		return nil, err
	}

	set := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}

	return set, nil
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

// AllocateMatch converts a resolved candidate into a durable match row. It
// re-runs the three conflict checks and the insert as one serializable unit:
//
//  1. requester already active -> return that match, created=false
//  2. pair already matched for the quest -> return that match, created=false
//  3. candidate already active -> abort with ErrCandidateBusy
//
// The manual re-checks classify the outcome; serializable isolation closes
// the window where two concurrent attempts both pass check 3.
func (r *Repository) AllocateMatch(ctx context.Context, requesterID, candidateID, questID uuid.UUID, now, expiresAt time.Time) (*model.Match, bool, error) {
	var (
		result  *match
		created bool
	)

	err := r.SerializableTransaction(ctx, func(tx *sqlx.Tx) error {
		existing, err := getActiveMatchWithTx(ctx, tx, requesterID, now)
		if err == nil {
			result = existing
			return nil
		}
		if !errors.Is(err, ErrNotFound) {
			return err
		}

		pair := model.CanonicalPair(requesterID, candidateID)
		pairMatch, err := getPairMatchWithTx(ctx, tx, questID, pair, now)
		if err == nil {
			result = pairMatch
			return nil
		}
		if !errors.Is(err, ErrNotFound) {
			return err
		}

		_, err = getActiveMatchWithTx(ctx, tx, candidateID, now)
		if err == nil {
			return ErrCandidateBusy
		}
		if !errors.Is(err, ErrNotFound) {
			return err
		}

		query, args, err := squirrel.
			Insert("matches").
			SetMap(map[string]interface{}{
				"id":         uuid.New(),
				"quest_id":   questID,
				"user_a":     pair[0],
				"user_b":     pair[1],
				"status":     string(model.MatchAccepted),
				"created_at": now,
				"expires_at": expiresAt,
			}).
			Suffix("RETURNING " + returningMatchColumns()).
			PlaceholderFormat(squirrel.Dollar).
			ToSql()
		if err != nil {
			return err
		}

		var inserted match
		err = tx.GetContext(ctx, &inserted, query, args...)
		if err != nil {
			return err
		}

		result = &inserted
		created = true
		return nil
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == serializationFailureCode {
			return nil, false, ErrCandidateBusy
		}
		return nil, false, err
	}

	return result.toModel(), created, nil
}

func returningMatchColumns() string {
	cols := matchColumns[0]
	for _, c := range matchColumns[1:] {
		cols += ", " + c
	}
	return cols
}

// SubmitProof stores the photo and timestamp for one canonical slot,
// overwriting any prior submission for that slot, and promotes PENDING
// matches to ACCEPTED.
func (r *Repository) SubmitProof(ctx context.Context, matchID uuid.UUID, slot int, photoURL string, now time.Time) (*model.Match, error) {
	query, args, err := squirrel.
		Update("matches").
		SetMap(map[string]interface{}{
			"proof_photo_" + sideSuffix[slot]:           photoURL,
			"proof_submitted_" + sideSuffix[slot] + "_at": now,
		}).
		Set("status", squirrel.Expr("CASE WHEN status = ? THEN ? ELSE status END",
			string(model.MatchPending), string(model.MatchAccepted))).
		Where(squirrel.Eq{"id": matchID}).
		Suffix("RETURNING " + returningMatchColumns()).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	var row match
	err = r.db.GetContext(ctx, &row, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return row.toModel(), nil
}

// ConfirmCompletion records one slot's confirmation and, if the partner has
// already confirmed, finalizes the match in the same transaction: status
// COMPLETED, karma +reward for both participants, one ledger event each.
// The row lock makes two simultaneous confirmations serialize, so the reward
// fires exactly once.
func (r *Repository) ConfirmCompletion(ctx context.Context, matchID uuid.UUID, slot int, now time.Time, reward int) (*model.Match, error) {
	var result *match

	err := r.Transaction(ctx, func(tx *sqlx.Tx) error {
		query, args, err := squirrel.
			Select(matchColumns...).
			From("matches").
			Where(squirrel.Eq{"id": matchID}).
			Suffix("FOR UPDATE").
			PlaceholderFormat(squirrel.Dollar).
			ToSql()
		if err != nil {
			return err
		}

		var row match
		err = tx.GetContext(ctx, &row, query, args...)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}

		updateQuery, updateArgs, err := squirrel.
			Update("matches").
			Set("confirmed_"+sideSuffix[slot]+"_at", now).
			Where(squirrel.Eq{"id": matchID}).
			Suffix("RETURNING " + returningMatchColumns()).
			PlaceholderFormat(squirrel.Dollar).
			ToSql()
		if err != nil {
			return err
		}

		err = tx.GetContext(ctx, &row, updateQuery, updateArgs...)
		if err != nil {
			return err
		}

		bothConfirmed := row.ConfirmedAAt != nil && row.ConfirmedBAt != nil
		if !bothConfirmed || row.Status == string(model.MatchCompleted) {
			result = &row
			return nil
		}

		finalizeQuery, finalizeArgs, err := squirrel.
			Update("matches").
			SetMap(map[string]interface{}{
				"status":       string(model.MatchCompleted),
				"completed_at": now,
			}).
			Where(squirrel.Eq{"id": matchID}).
			Suffix("RETURNING " + returningMatchColumns()).
			PlaceholderFormat(squirrel.Dollar).
			ToSql()
		if err != nil {
			return err
		}

		err = tx.GetContext(ctx, &row, finalizeQuery, finalizeArgs...)
		if err != nil {
			return err
		}

		for _, participant := range []uuid.UUID{row.UserA, row.UserB} {
			if err := addKarmaWithTx(ctx, tx, participant, reward); err != nil {
				return err
			}
			updated, err := r.getUserWithTx(ctx, tx, participant)
			if err != nil {
				return err
			}
			event := &model.KarmaEvent{
				ID:      uuid.New(),
				UserID:  participant,
				MatchID: &row.ID,
				Delta:   reward,
				Reason:  model.KarmaReasonMatchCompleted,
				Metadata: map[string]string{
					"source":      "match-completion",
					"karma_total": strconv.Itoa(updated.Karma),
				},
				CreatedAt: now,
			}
			if err := insertKarmaEventWithTx(ctx, tx, event); err != nil {
				return err
			}
		}

		result = &row
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result.toModel(), nil
}

type message struct {
	ID        uuid.UUID `db:"id"`
	MatchID   uuid.UUID `db:"match_id"`
	SenderID  uuid.UUID `db:"sender_id"`
	Content   string    `db:"content"`
	CreatedAt time.Time `db:"created_at"`
	ExpiresAt time.Time `db:"expires_at"`
}

func (m *message) toModel() *model.Message {
	return &model.Message{
		ID:        m.ID,
		MatchID:   m.MatchID,
		SenderID:  m.SenderID,
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
		ExpiresAt: m.ExpiresAt,
	}
}

func (r *Repository) CreateMessage(ctx context.Context, msg *model.Message) error {
	query, args, err := squirrel.
		Insert("messages").
		SetMap(map[string]interface{}{
			"id":         msg.ID,
			"match_id":   msg.MatchID,
			"sender_id":  msg.SenderID,
			"content":    msg.Content,
			"created_at": msg.CreatedAt,
			"expires_at": msg.ExpiresAt,
		}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, query, args...)
	return err
}

func (r *Repository) ListMessages(ctx context.Context, matchID uuid.UUID, limit int) ([]*model.Message, error) {
	query, args, err := squirrel.
		Select("id", "match_id", "sender_id", "content", "created_at", "expires_at").
		From("messages").
		Where(squirrel.Eq{"match_id": matchID}).
		OrderBy("created_at ASC").
		Limit(uint64(limit)).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	var rows []message
	err = r.db.SelectContext(ctx, &rows, query, args...)
	if err != nil {
		return nil, err
	}

	out := make([]*model.Message, len(rows))
	for i := range rows {
		out[i] = rows[i].toModel()
	}

	return out, nil
}

// ListMatchesForUser returns the user's unexpired matches newest first, each
// with the partner's card and the latest chat message.
func (r *Repository) ListMatchesForUser(ctx context.Context, userID uuid.UUID, now time.Time, limit int) ([]*model.MatchSummary, error) {
	query, args, err := squirrel.
		Select(matchColumns...).
		From("matches").
		Where(squirrel.Or{
			squirrel.Eq{"user_a": userID},
			squirrel.Eq{"user_b": userID},
		}).
		Where(squirrel.Gt{"expires_at": now}).
		OrderBy("status ASC", "created_at DESC").
		Limit(uint64(limit)).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	var rows []match
	err = r.db.SelectContext(ctx, &rows, query, args...)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return []*model.MatchSummary{}, nil
	}

	matchIDs := make([]uuid.UUID, len(rows))
	partnerIDs := make([]uuid.UUID, 0, len(rows))
	questIDSet := make(map[uuid.UUID]struct{})
	for i, row := range rows {
		matchIDs[i] = row.ID
		questIDSet[row.QuestID] = struct{}{}
		if row.UserA == userID {
			partnerIDs = append(partnerIDs, row.UserB)
		} else {
			partnerIDs = append(partnerIDs, row.UserA)
		}
	}
	questIDs := make([]uuid.UUID, 0, len(questIDSet))
	for id := range questIDSet {
		questIDs = append(questIDs, id)
	}

	partners, err := r.getUsersByIDs(ctx, partnerIDs)
	if err != nil {
		return nil, err
	}

	quests, err := r.getQuestsByIDs(ctx, questIDs)
	if err != nil {
		return nil, err
	}

	lastMessages, err := r.getLastMessages(ctx, matchIDs)
	if err != nil {
		return nil, err
	}

	out := make([]*model.MatchSummary, len(rows))
	for i, row := range rows {
		partnerID := row.UserB
		if row.UserB == userID {
			partnerID = row.UserA
		}
		out[i] = &model.MatchSummary{
			Match:       rows[i].toModel(),
			Quest:       quests[row.QuestID],
			Partner:     partners[partnerID],
			LastMessage: lastMessages[row.ID],
		}
	}

	return out, nil
}

func (r *Repository) getUsersByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*model.User, error) {
	query, args, err := squirrel.
		Select("id", "display_name", "age", "city", "karma", "created_at").
		From("users").
		Where(squirrel.Expr("id = ANY(?)", pq.Array(uuidStrings(ids)))).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	var rows []user
	err = r.db.SelectContext(ctx, &rows, query, args...)
	if err != nil {
		return nil, err
	}

	out := make(map[uuid.UUID]*model.User, len(rows))
	for i := range rows {
		out[rows[i].ID] = rows[i].toModel()
	}

	return out, nil
}

func (r *Repository) getLastMessages(ctx context.Context, matchIDs []uuid.UUID) (map[uuid.UUID]*model.Message, error) {
	query, args, err := squirrel.
		Select("DISTINCT ON (match_id) id", "match_id", "sender_id", "content", "created_at", "expires_at").
		From("messages").
		Where(squirrel.Expr("match_id = ANY(?)", pq.Array(uuidStrings(matchIDs)))).
		OrderBy("match_id", "created_at DESC").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	var rows []message
	err = r.db.SelectContext(ctx, &rows, query, args...)
	if err != nil {
		return nil, err
	}

	out := make(map[uuid.UUID]*model.Message, len(rows))
	for i := range rows {
		out[rows[i].MatchID] = rows[i].toModel()
	}

	return out, nil
}
