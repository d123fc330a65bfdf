package repository

import (
	"context"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
)

// Tables swept by the admin cleanup, children before parents so match rows
// never disappear under their messages.
var expiringTables = []string{"messages", "matches", "quest_selections", "daily_profiles"}

// CountExpired reports how many rows each expiring table holds past their
// validity window, without deleting anything.
func (r *Repository) CountExpired(ctx context.Context, now time.Time) (map[string]int64, error) {
	counts := make(map[string]int64, len(expiringTables))

	for _, table := range expiringTables {
		query, args, err := squirrel.
			Select("COUNT(*)").
			From(table).
			Where(squirrel.Lt{"expires_at": now}).
			PlaceholderFormat(squirrel.Dollar).
			ToSql()
		if err != nil {
			return nil, err
		}

		var count int64
		if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
			return nil, err
		}
		counts[table] = count
	}

	return counts, nil
}

// DeleteExpired purges all rows past their validity window in a single
// transaction and reports per-table deletion counts.
func (r *Repository) DeleteExpired(ctx context.Context, now time.Time) (map[string]int64, error) {
	counts := make(map[string]int64, len(expiringTables))

	err := r.Transaction(ctx, func(tx *sqlx.Tx) error {
		for _, table := range expiringTables {
			query, args, err := squirrel.
				Delete(table).
				Where(squirrel.Lt{"expires_at": now}).
				PlaceholderFormat(squirrel.Dollar).
				ToSql()
			if err != nil {
				return err
			}

			result, err := tx.ExecContext(ctx, query, args...)
			if err != nil {
				return err
			}

			deleted, err := result.RowsAffected()
			if err != nil {
				return err
			}
			counts[table] = deleted
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return counts, nil
}
