package repository

import (
	"context"
	"database/sql"
	"fmt"

	"cityquest/pkg/logger"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

var (
	ErrNotFound = errors.New("not found")

	// ErrCandidateBusy means a concurrent transaction claimed the candidate
	// between resolution and allocation. Expected contention, not a defect;
	// callers treat it as "no candidate found yet".
	ErrCandidateBusy = errors.New("candidate already holds an active match")
)

type Repository struct {
	db *sqlx.DB
}

func (r *Repository) Close() error {
	return r.db.Close()
}

func (r *Repository) Transaction(ctx context.Context, t func(tx *sqlx.Tx) error) error {
	return r.transaction(ctx, nil, t)
}

// SerializableTransaction runs t under serializable isolation. The match
// allocator depends on this: its check-then-insert sequence must not let two
// concurrent attempts both observe "no conflicting match" and both commit.
func (r *Repository) SerializableTransaction(ctx context.Context, t func(tx *sqlx.Tx) error) error {
	return r.transaction(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable}, t)
}

func (r *Repository) transaction(ctx context.Context, opts *sql.TxOptions, t func(tx *sqlx.Tx) error) error {
	tx, err := r.db.BeginTxx(ctx, opts)
	if err != nil {
		return err
	}
	err = t(tx)
	if err != nil {
		txErr := tx.Rollback()
		if txErr != nil {
			return errors.Wrapf(err, "rollback error: %v", txErr)
		}
		return err
	}
	return tx.Commit()
}

type Config struct {
	Host     string `json:"host"`
	Port     string `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

func New(cfg Config) (*Repository, error) {
	url := cfg.GetDatabaseURL()
	db, err := sqlx.Connect("pgx", url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	err = db.Ping()
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Logger().Info("Connected to database successfully")

	return &Repository{db: db}, nil
}

func (c *Config) GetDatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.Name,
	)
}
