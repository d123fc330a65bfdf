package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"cityquest/internal/model"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

type quest struct {
	ID        uuid.UUID `db:"id"`
	Title     string    `db:"title"`
	District  string    `db:"district"`
	Active    bool      `db:"active"`
	CreatedAt time.Time `db:"created_at"`
}

func (q *quest) toModel() *model.Quest {
	return &model.Quest{
		ID:        q.ID,
		Title:     q.Title,
		District:  q.District,
		Active:    q.Active,
		CreatedAt: q.CreatedAt,
	}
}

func (r *Repository) GetQuestByID(ctx context.Context, id uuid.UUID) (*model.Quest, error) {
	var q quest
	query, args, err := squirrel.
		Select("id", "title", "district", "active", "created_at").
		From("quests").
		Where(squirrel.Eq{"id": id}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	err = r.db.GetContext(ctx, &q, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return q.toModel(), nil
}

func (r *Repository) getQuestsByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*model.Quest, error) {
	query, args, err := squirrel.
		Select("id", "title", "district", "active", "created_at").
		From("quests").
		Where(squirrel.Expr("id = ANY(?)", pq.Array(uuidStrings(ids)))).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	var rows []quest
	err = r.db.SelectContext(ctx, &rows, query, args...)
	if err != nil {
		return nil, err
	}

	out := make(map[uuid.UUID]*model.Quest, len(rows))
	for i := range rows {
		out[rows[i].ID] = rows[i].toModel()
	}

	return out, nil
}

func (r *Repository) ListQuests(ctx context.Context, district string, limit int) ([]*model.Quest, error) {
	builder := squirrel.
		Select("id", "title", "district", "active", "created_at").
		From("quests").
		Where(squirrel.Eq{"active": true}).
		OrderBy("district ASC", "created_at DESC").
		Limit(uint64(limit)).
		PlaceholderFormat(squirrel.Dollar)

	if district != "" {
		builder = builder.Where(squirrel.Eq{"district": district})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, err
	}

	var quests []quest
	err = r.db.SelectContext(ctx, &quests, query, args...)
	if err != nil {
		return nil, err
	}

	out := make([]*model.Quest, len(quests))
	for i := range quests {
		out[i] = quests[i].toModel()
	}

	return out, nil
}

// UpsertQuest creates a quest or, when a quest with the same title and
// district already exists, toggles its active flag.
func (r *Repository) UpsertQuest(ctx context.Context, q *model.Quest) (*model.Quest, error) {
	query, args, err := squirrel.
		Insert("quests").
		SetMap(map[string]interface{}{
			"id":         q.ID,
			"title":      q.Title,
			"district":   q.District,
			"active":     q.Active,
			"created_at": q.CreatedAt,
		}).
		Suffix(`ON CONFLICT (title, district) DO UPDATE SET active = EXCLUDED.active
			RETURNING id, title, district, active, created_at`).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	var row quest
	err = r.db.GetContext(ctx, &row, query, args...)
	if err != nil {
		return nil, err
	}

	return row.toModel(), nil
}
