package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(upCreateStories, downCreateStories)
}

func upCreateStories(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.Exec(`
	CREATE EXTENSION IF NOT EXISTS "pgcrypto";
	CREATE TABLE stories (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		title VARCHAR NOT NULL,
		image_url VARCHAR NOT NULL DEFAULT '',
		video_url VARCHAR NOT NULL DEFAULT '',
		author_name VARCHAR NOT NULL DEFAULT '',
		author_avatar_url VARCHAR NOT NULL DEFAULT '',
		badge_label VARCHAR NOT NULL DEFAULT '',
		view_count INTEGER NOT NULL DEFAULT 0,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now()
	);
	`)
	if err != nil {
		return err
	}
	return nil
}

func downCreateStories(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.Exec(`
	DROP TABLE stories;
	`)
	if err != nil {
		return err
	}
	return nil
}
