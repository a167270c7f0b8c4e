package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/stylekeep/wardrobe-pipeline/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses; pgxmock satisfies it.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the hot store operations.
var preparedStatements = map[string]string{
	"insert_item":           `INSERT INTO wardrobe_items (id, user_id, image_url, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
	"find_missing_features": `SELECT id, user_id, image_url, created_at, updated_at FROM wardrobe_items WHERE user_id = $1 AND features IS NULL ORDER BY created_at`,
	"update_item_features":  `UPDATE wardrobe_items SET features = $1, updated_at = $2 WHERE image_url = $3 AND features IS NULL`,
	"touch_user_activity":   `INSERT INTO user_activity (user_id, last_upload_at) VALUES ($1, $2) ON CONFLICT (user_id) DO UPDATE SET last_upload_at = EXCLUDED.last_upload_at`,
	"find_stale_users":      `SELECT user_id, last_upload_at FROM user_activity WHERE last_upload_at IS NOT NULL AND last_upload_at < $1 ORDER BY last_upload_at`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS wardrobe_items (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	image_url  TEXT NOT NULL,
	features   JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_items_user_pending ON wardrobe_items(user_id) WHERE features IS NULL;
CREATE INDEX IF NOT EXISTS idx_items_image_url ON wardrobe_items(image_url);

CREATE TABLE IF NOT EXISTS user_activity (
	user_id        TEXT PRIMARY KEY,
	last_upload_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_user_activity_last_upload ON user_activity(last_upload_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) CreateItem(ctx context.Context, userID, imageURL string) (*model.WardrobeItem, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO wardrobe_items (id, user_id, image_url, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		id, userID, imageURL, now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert item")
	}

	return &model.WardrobeItem{
		ID:        id,
		UserID:    userID,
		ImageURL:  imageURL,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *PostgresStore) FindItemsMissingFeatures(ctx context.Context, userID string) ([]model.WardrobeItem, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, image_url, created_at, updated_at FROM wardrobe_items WHERE user_id = $1 AND features IS NULL ORDER BY created_at`,
		userID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: find items missing features for %s", userID)
	}
	defer rows.Close()

	var items []model.WardrobeItem
	for rows.Next() {
		var it model.WardrobeItem
		if err := rows.Scan(&it.ID, &it.UserID, &it.ImageURL, &it.CreatedAt, &it.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan item")
		}
		items = append(items, it)
	}
	return items, eris.Wrap(rows.Err(), "postgres: iterate items")
}

func (s *PostgresStore) UpdateItemFeatures(ctx context.Context, imageURL string, fs model.FeatureSet) error {
	fsJSON, err := json.Marshal(fs)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal features")
	}

	// Only feature-less rows are targeted, so replaying an update is a no-op.
	_, err = s.pool.Exec(ctx,
		`UPDATE wardrobe_items SET features = $1, updated_at = $2 WHERE image_url = $3 AND features IS NULL`,
		fsJSON, time.Now().UTC(), imageURL,
	)
	return eris.Wrapf(err, "postgres: update item features for %s", imageURL)
}

func (s *PostgresStore) TouchUserActivity(ctx context.Context, userID string, at time.Time) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO user_activity (user_id, last_upload_at) VALUES ($1, $2) ON CONFLICT (user_id) DO UPDATE SET last_upload_at = EXCLUDED.last_upload_at`,
		userID, at.UTC(),
	)
	return eris.Wrapf(err, "postgres: touch user activity for %s", userID)
}

func (s *PostgresStore) FindStaleUsers(ctx context.Context, quietWindow time.Duration) ([]model.StaleUser, error) {
	cutoff := time.Now().UTC().Add(-quietWindow)

	rows, err := s.pool.Query(ctx,
		`SELECT user_id, last_upload_at FROM user_activity WHERE last_upload_at IS NOT NULL AND last_upload_at < $1 ORDER BY last_upload_at`,
		cutoff,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: find stale users")
	}
	defer rows.Close()

	var users []model.StaleUser
	for rows.Next() {
		var u model.StaleUser
		if err := rows.Scan(&u.UserID, &u.LastUploadAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan stale user")
		}
		users = append(users, u)
	}
	return users, eris.Wrap(rows.Err(), "postgres: iterate stale users")
}
