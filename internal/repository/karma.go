package repository

import (
	"context"
	"time"

	"cityquest/internal/model"

	"github.com/Masterminds/squirrel"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type karmaEvent struct {
	ID        uuid.UUID  `db:"id"`
	UserID    uuid.UUID  `db:"user_id"`
	MatchID   *uuid.UUID `db:"match_id"`
	Delta     int        `db:"delta"`
	Reason    string     `db:"reason"`
	Metadata  []byte     `db:"metadata"`
	CreatedAt time.Time  `db:"created_at"`
}

func (e *karmaEvent) toModel() (*model.KarmaEvent, error) {
	out := &model.KarmaEvent{
		ID:        e.ID,
		UserID:    e.UserID,
		MatchID:   e.MatchID,
		Delta:     e.Delta,
		Reason:    e.Reason,
		CreatedAt: e.CreatedAt,
	}

	if len(e.Metadata) > 0 {
		if err := json.Unmarshal(e.Metadata, &out.Metadata); err != nil {
			return nil, err
		}
	}

	return out, nil
}

func addKarmaWithTx(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, delta int) error {
	query, args, err := squirrel.
		Update("users").
		Set("karma", squirrel.Expr("karma + ?", delta)).
		Where(squirrel.Eq{"id": userID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, query, args...)
	return err
}

func insertKarmaEventWithTx(ctx context.Context, tx *sqlx.Tx, event *model.KarmaEvent) error {
	metadata, err := json.Marshal(event.Metadata)
	if err != nil {
		return err
	}

	query, args, err := squirrel.
		Insert("karma_events").
		SetMap(map[string]interface{}{
			"id":         event.ID,
			"user_id":    event.UserID,
			"match_id":   event.MatchID,
			"delta":      event.Delta,
			"reason":     event.Reason,
			"metadata":   metadata,
			"created_at": event.CreatedAt,
		}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, query, args...)
	return err
}

func (r *Repository) ListKarmaEvents(ctx context.Context, userID uuid.UUID, limit int) ([]*model.KarmaEvent, error) {
	query, args, err := squirrel.
		Select("id", "user_id", "match_id", "delta", "reason", "metadata", "created_at").
		From("karma_events").
		Where(squirrel.Eq{"user_id": userID}).
		OrderBy("created_at DESC").
		Limit(uint64(limit)).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	var rows []karmaEvent
	err = r.db.SelectContext(ctx, &rows, query, args...)
	if err != nil {
		return nil, err
	}

	out := make([]*model.KarmaEvent, len(rows))
	for i := range rows {
		event, err := rows[i].toModel()
		if err != nil {
			return nil, err
		}
		out[i] = event
	}

	return out, nil
}
