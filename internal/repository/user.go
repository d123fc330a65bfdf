package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"cityquest/internal/model"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type user struct {
	ID          uuid.UUID `db:"id"`
	DisplayName string    `db:"display_name"`
	Age         int       `db:"age"`
	City        string    `db:"city"`
	Karma       int       `db:"karma"`
	CreatedAt   time.Time `db:"created_at"`
}

func (u *user) toModel() *model.User {
	return &model.User{
		ID:          u.ID,
		DisplayName: u.DisplayName,
		Age:         u.Age,
		City:        u.City,
		Karma:       u.Karma,
		CreatedAt:   u.CreatedAt,
	}
}

func (r *Repository) CreateUser(ctx context.Context, u *model.User) error {
	query, args, err := squirrel.
		Insert("users").
		SetMap(map[string]interface{}{
			"id":           u.ID,
			"display_name": u.DisplayName,
			"age":          u.Age,
			"city":         u.City,
			"karma":        u.Karma,
			"created_at":   u.CreatedAt,
		}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, query, args...)
	return err
}

func (r *Repository) GetUserByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	var u user
	query, args, err := squirrel.
		Select("id", "display_name", "age", "city", "karma", "created_at").
		From("users").
		Where(squirrel.Eq{"id": id}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	err = r.db.GetContext(ctx, &u, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return u.toModel(), nil
}

func (r *Repository) getUserWithTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*model.User, error) {
	var u user
	query, args, err := squirrel.
		Select("id", "display_name", "age", "city", "karma", "created_at").
		From("users").
		Where(squirrel.Eq{"id": id}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	err = tx.GetContext(ctx, &u, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return u.toModel(), nil
}
