package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(upAddFeedIndex, downAddFeedIndex)
}

func upAddFeedIndex(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE INDEX idx_stories_active_created_at ON stories (created_at DESC) WHERE is_active;
		ALTER TABLE stories ADD CONSTRAINT view_count_non_negative CHECK (view_count >= 0);
	`)
	if err != nil {
		return err
	}
	return nil
}

func downAddFeedIndex(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.Exec(`
		ALTER TABLE stories DROP CONSTRAINT view_count_non_negative;
		DROP INDEX idx_stories_active_created_at;
	`)
	if err != nil {
		return err
	}
	return nil
}
