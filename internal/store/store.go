// Package store persists wardrobe items and user activity markers behind a
// backend-agnostic interface, with Postgres and SQLite implementations.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/stylekeep/wardrobe-pipeline/internal/model"
)

// Store defines the persistence contract for the extraction pipeline and the
// reconciliation scheduler.
type Store interface {
	// CreateItem registers a pending wardrobe item (no features yet).
	CreateItem(ctx context.Context, userID, imageURL string) (*model.WardrobeItem, error)

	// FindItemsMissingFeatures returns a user's items still lacking a
	// feature set, oldest first.
	FindItemsMissingFeatures(ctx context.Context, userID string) ([]model.WardrobeItem, error)

	// UpdateItemFeatures attaches features to the pending items matching
	// imageURL. Rows that already have features are left untouched, which is
	// what makes reconciliation re-runs idempotent.
	UpdateItemFeatures(ctx context.Context, imageURL string, fs model.FeatureSet) error

	// TouchUserActivity records userID's most recent upload time.
	TouchUserActivity(ctx context.Context, userID string, at time.Time) error

	// FindStaleUsers returns users whose last upload is older than
	// quietWindow — their batch is likely done uploading.
	FindStaleUsers(ctx context.Context, quietWindow time.Duration) ([]model.StaleUser, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open creates a Store for the configured driver.
func Open(ctx context.Context, driver, databaseURL string) (Store, error) {
	switch driver {
	case "postgres":
		return NewPostgres(ctx, databaseURL)
	case "sqlite":
		return NewSQLite(databaseURL)
	default:
		return nil, eris.Errorf("store: unknown driver %q", driver)
	}
}
