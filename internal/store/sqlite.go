package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/stylekeep/wardrobe-pipeline/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS wardrobe_items (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	image_url  TEXT NOT NULL,
	features   TEXT,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_items_user_id ON wardrobe_items(user_id);
CREATE INDEX IF NOT EXISTS idx_items_image_url ON wardrobe_items(image_url);

CREATE TABLE IF NOT EXISTS user_activity (
	user_id        TEXT PRIMARY KEY,
	last_upload_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_user_activity_last_upload ON user_activity(last_upload_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateItem(ctx context.Context, userID, imageURL string) (*model.WardrobeItem, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO wardrobe_items (id, user_id, image_url, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		id, userID, imageURL, now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert item")
	}

	return &model.WardrobeItem{
		ID:        id,
		UserID:    userID,
		ImageURL:  imageURL,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *SQLiteStore) FindItemsMissingFeatures(ctx context.Context, userID string) ([]model.WardrobeItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, image_url, features, created_at, updated_at FROM wardrobe_items
		 WHERE user_id = ? AND features IS NULL ORDER BY created_at`,
		userID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: find items missing features for %s", userID)
	}
	defer rows.Close()

	var items []model.WardrobeItem
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *it)
	}
	return items, eris.Wrap(rows.Err(), "sqlite: iterate items")
}

func (s *SQLiteStore) UpdateItemFeatures(ctx context.Context, imageURL string, fs model.FeatureSet) error {
	fsJSON, err := json.Marshal(fs)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal features")
	}

	// Only feature-less rows are targeted, so replaying an update is a no-op.
	_, err = s.db.ExecContext(ctx,
		`UPDATE wardrobe_items SET features = ?, updated_at = ? WHERE image_url = ? AND features IS NULL`,
		string(fsJSON), time.Now().UTC(), imageURL,
	)
	return eris.Wrapf(err, "sqlite: update item features for %s", imageURL)
}

func (s *SQLiteStore) TouchUserActivity(ctx context.Context, userID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO user_activity (user_id, last_upload_at) VALUES (?, ?)
		 ON CONFLICT (user_id) DO UPDATE SET last_upload_at = excluded.last_upload_at`,
		userID, at.UTC(),
	)
	return eris.Wrapf(err, "sqlite: touch user activity for %s", userID)
}

func (s *SQLiteStore) FindStaleUsers(ctx context.Context, quietWindow time.Duration) ([]model.StaleUser, error) {
	cutoff := time.Now().UTC().Add(-quietWindow)

	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, last_upload_at FROM user_activity
		 WHERE last_upload_at IS NOT NULL AND last_upload_at < ? ORDER BY last_upload_at`,
		cutoff,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: find stale users")
	}
	defer rows.Close()

	var users []model.StaleUser
	for rows.Next() {
		var u model.StaleUser
		if err := rows.Scan(&u.UserID, &u.LastUploadAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan stale user")
		}
		users = append(users, u)
	}
	return users, eris.Wrap(rows.Err(), "sqlite: iterate stale users")
}

// helpers

type scannable interface {
	Scan(dest ...any) error
}

func scanItem(row scannable) (*model.WardrobeItem, error) {
	var it model.WardrobeItem
	var featuresJSON sql.NullString

	err := row.Scan(&it.ID, &it.UserID, &it.ImageURL, &featuresJSON, &it.CreatedAt, &it.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.New("item not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan item")
	}

	if featuresJSON.Valid {
		it.Features = &model.FeatureSet{}
		if err := json.Unmarshal([]byte(featuresJSON.String), it.Features); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal features")
		}
	}
	return &it, nil
}
