package storage

import (
	"context"
	"fmt"
	"strings"
)

const timestampColumn = "{timestamp}"

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		user_id BIGINT PRIMARY KEY,
		name TEXT NOT NULL,
		avatar_hash TEXT,
		source INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS posts (
		post_id BIGINT PRIMARY KEY,
		post_id_xyz BIGINT,
		source INTEGER NOT NULL,
		comment_list_id BIGINT NOT NULL,
		language TEXT NOT NULL,
		code TEXT NOT NULL,
		text TEXT NOT NULL,
		user_id BIGINT NOT NULL,
		posted {timestamp} NOT NULL,
		vote_plus INTEGER NOT NULL DEFAULT 0,
		vote_minus INTEGER NOT NULL DEFAULT 0,
		rating NUMERIC NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS posts_comment_list_idx ON posts (comment_list_id)`,
	`CREATE TABLE IF NOT EXISTS comments (
		comment_id BIGINT PRIMARY KEY,
		parent_id BIGINT,
		post_id BIGINT NOT NULL,
		user_id BIGINT NOT NULL,
		text TEXT NOT NULL,
		posted {timestamp} NOT NULL,
		vote_plus INTEGER NOT NULL DEFAULT 0,
		vote_minus INTEGER NOT NULL DEFAULT 0,
		rating NUMERIC NOT NULL DEFAULT 0,
		source INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS comments_post_idx ON comments (post_id)`,
	`CREATE TABLE IF NOT EXISTS comment_links (
		comment_id BIGINT PRIMARY KEY,
		comment_id_xyz BIGINT
	)`,
	`CREATE INDEX IF NOT EXISTS comment_links_xyz_idx ON comment_links (comment_id_xyz)`,
	`CREATE TABLE IF NOT EXISTS sync_states (
		post_id BIGINT PRIMARY KEY,
		last_comment_id BIGINT,
		pending BOOLEAN NOT NULL DEFAULT FALSE,
		priority INTEGER NOT NULL DEFAULT 0,
		synced {timestamp},
		result TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS sync_states_pending_idx ON sync_states (priority DESC, post_id DESC) WHERE pending`,
}

// Migrate creates missing tables and indexes.
func (s *SQLStore) Migrate(ctx context.Context) error {
	timestamp := "TIMESTAMPTZ"
	if s.driver == DriverSQLite {
		timestamp = "TIMESTAMP"
	}
	for _, stmt := range schema {
		if _, err := s.q.ExecContext(ctx, strings.ReplaceAll(stmt, timestampColumn, timestamp)); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
