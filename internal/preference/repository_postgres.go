package preference

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"PeerMatch/internal/matchmaker"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const schema = `
CREATE TABLE IF NOT EXISTS user_preferences (
	user_id      TEXT PRIMARY KEY,
	topics       TEXT[] NOT NULL,
	difficulties TEXT[] NOT NULL,
	min_time     INTEGER NOT NULL,
	max_time     INTEGER NOT NULL,
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
)`

type preferenceRow struct {
	UserID       string         `db:"user_id"`
	Topics       pq.StringArray `db:"topics"`
	Difficulties pq.StringArray `db:"difficulties"`
	MinTime      int            `db:"min_time"`
	MaxTime      int            `db:"max_time"`
}

func (r preferenceRow) toPreference() matchmaker.Preference {
	return matchmaker.Preference{
		UserID:       r.UserID,
		Topics:       []string(r.Topics),
		Difficulties: []string(r.Difficulties),
		MinTime:      r.MinTime,
		MaxTime:      r.MaxTime,
	}
}

type postgresRepository struct {
	db *sqlx.DB
}

func NewPostgresRepository(db *sqlx.DB) Repository {
	return &postgresRepository{db: db}
}

// EnsureSchema creates the user_preferences table if it does not exist.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create user_preferences: %w", err)
	}
	return nil
}

func (r *postgresRepository) Save(ctx context.Context, p matchmaker.Preference) error {
	query := `
		INSERT INTO user_preferences (user_id, topics, difficulties, min_time, max_time)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) DO UPDATE
		SET topics = EXCLUDED.topics,
		    difficulties = EXCLUDED.difficulties,
		    min_time = EXCLUDED.min_time,
		    max_time = EXCLUDED.max_time,
		    updated_at = CURRENT_TIMESTAMP
	`
	_, err := r.db.ExecContext(ctx, query,
		p.UserID, pq.Array(p.Topics), pq.Array(p.Difficulties), p.MinTime, p.MaxTime)
	if err != nil {
		return fmt.Errorf("save preference %s: %w", p.UserID, err)
	}
	return nil
}

func (r *postgresRepository) FindByID(ctx context.Context, userID string) (matchmaker.Preference, error) {
	var row preferenceRow
	query := `
		SELECT user_id, topics, difficulties, min_time, max_time
		FROM user_preferences WHERE user_id = $1
	`
	if err := r.db.GetContext(ctx, &row, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return matchmaker.Preference{}, ErrPreferenceNotFound
		}
		return matchmaker.Preference{}, fmt.Errorf("find preference %s: %w", userID, err)
	}
	return row.toPreference(), nil
}

func (r *postgresRepository) DeleteByID(ctx context.Context, userID string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM user_preferences WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("delete preference %s: %w", userID, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrPreferenceNotFound
	}
	return nil
}

func (r *postgresRepository) ExistsByID(ctx context.Context, userID string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM user_preferences WHERE user_id = $1)`
	if err := r.db.GetContext(ctx, &exists, query, userID); err != nil {
		return false, fmt.Errorf("check preference %s: %w", userID, err)
	}
	return exists, nil
}
