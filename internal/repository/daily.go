package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"cityquest/internal/model"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
)

type questSelection struct {
	ID         uuid.UUID `db:"id"`
	UserID     uuid.UUID `db:"user_id"`
	QuestID    uuid.UUID `db:"quest_id"`
	DayKey     string    `db:"day_key"`
	SelectedAt time.Time `db:"selected_at"`
	ExpiresAt  time.Time `db:"expires_at"`
}

func (s *questSelection) toModel() *model.QuestSelection {
	return &model.QuestSelection{
		ID:         s.ID,
		UserID:     s.UserID,
		QuestID:    s.QuestID,
		DayKey:     s.DayKey,
		SelectedAt: s.SelectedAt,
		ExpiresAt:  s.ExpiresAt,
	}
}

type dailyProfile struct {
	ID        uuid.UUID `db:"id"`
	UserID    uuid.UUID `db:"user_id"`
	DayKey    string    `db:"day_key"`
	District  string    `db:"district"`
	PhotoURL  string    `db:"photo_url"`
	Mood      *string   `db:"mood"`
	ExpiresAt time.Time `db:"expires_at"`
}

func (p *dailyProfile) toModel() *model.DailyProfile {
	return &model.DailyProfile{
		ID:        p.ID,
		UserID:    p.UserID,
		DayKey:    p.DayKey,
		District:  p.District,
		PhotoURL:  p.PhotoURL,
		Mood:      p.Mood,
		ExpiresAt: p.ExpiresAt,
	}
}

// UpsertQuestSelection writes the user's quest choice for the day. The
// (user_id, day_key) unique constraint makes re-selection replace the quest
// and refresh the expiry instead of adding a second row.
func (r *Repository) UpsertQuestSelection(ctx context.Context, sel *model.QuestSelection) (*model.QuestSelection, error) {
	query, args, err := squirrel.
		Insert("quest_selections").
		SetMap(map[string]interface{}{
			"id":          sel.ID,
			"user_id":     sel.UserID,
			"quest_id":    sel.QuestID,
			"day_key":     sel.DayKey,
			"selected_at": sel.SelectedAt,
			"expires_at":  sel.ExpiresAt,
		}).
		Suffix(`ON CONFLICT (user_id, day_key) DO UPDATE SET
				quest_id = EXCLUDED.quest_id,
				expires_at = EXCLUDED.expires_at
			RETURNING id, user_id, quest_id, day_key, selected_at, expires_at`).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	var row questSelection
	err = r.db.GetContext(ctx, &row, query, args...)
	if err != nil {
		return nil, err
	}

	return row.toModel(), nil
}

func (r *Repository) GetQuestSelection(ctx context.Context, userID uuid.UUID, dayKey string) (*model.QuestSelection, error) {
	var row questSelection
	query, args, err := squirrel.
		Select("id", "user_id", "quest_id", "day_key", "selected_at", "expires_at").
		From("quest_selections").
		Where(squirrel.Eq{"user_id": userID, "day_key": dayKey}).
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

func (r *Repository) UpsertDailyProfile(ctx context.Context, p *model.DailyProfile) (*model.DailyProfile, error) {
	query, args, err := squirrel.
		Insert("daily_profiles").
		SetMap(map[string]interface{}{
			"id":         p.ID,
			"user_id":    p.UserID,
			"day_key":    p.DayKey,
			"district":   p.District,
			"photo_url":  p.PhotoURL,
			"mood":       p.Mood,
			"expires_at": p.ExpiresAt,
		}).
		Suffix(`ON CONFLICT (user_id, day_key) DO UPDATE SET
				district = EXCLUDED.district,
				photo_url = EXCLUDED.photo_url,
				mood = EXCLUDED.mood,
				expires_at = EXCLUDED.expires_at
			RETURNING id, user_id, day_key, district, photo_url, mood, expires_at`).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	var row dailyProfile
	err = r.db.GetContext(ctx, &row, query, args...)
	if err != nil {
		return nil, err
	}

	return row.toModel(), nil
}

func (r *Repository) GetDailyProfile(ctx context.Context, userID uuid.UUID, dayKey string) (*model.DailyProfile, error) {
	var row dailyProfile
	query, args, err := squirrel.
		Select("id", "user_id", "day_key", "district", "photo_url", "mood", "expires_at").
		From("daily_profiles").
		Where(squirrel.Eq{"user_id": userID, "day_key": dayKey}).
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
