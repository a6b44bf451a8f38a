package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"ForumMirror/internal/domain"
)

var syncStateColumns = []string{"post_id", "last_comment_id", "pending", "priority", "synced", "result"}

// NextPending returns the pending post with the highest priority, newest post first on ties.
func (s *SQLStore) NextPending(ctx context.Context) (domain.SyncState, bool, error) {
	return s.loadSyncState(ctx, s.builder.
		Select(syncStateColumns...).
		From("sync_states").
		Where(sq.Eq{"pending": true}).
		OrderBy("priority DESC", "post_id DESC").
		Limit(1))
}

// SyncState loads the state of one post.
func (s *SQLStore) SyncState(ctx context.Context, postID int64) (domain.SyncState, bool, error) {
	return s.loadSyncState(ctx, s.builder.
		Select(syncStateColumns...).
		From("sync_states").
		Where(sq.Eq{"post_id": postID}))
}

func (s *SQLStore) loadSyncState(ctx context.Context, stmt sq.SelectBuilder) (domain.SyncState, bool, error) {
	var (
		state    domain.SyncState
		last     sql.NullInt64
		priority int64
		synced   sql.NullTime
	)
	found, err := s.queryRow(ctx, stmt, &state.PostID, &last, &state.Pending, &priority, &synced, &state.Result)
	if err != nil {
		return domain.SyncState{}, false, fmt.Errorf("query sync state: %w", err)
	}
	if !found {
		return domain.SyncState{}, false, nil
	}
	state.LastCommentID = intPtr(last)
	state.Priority = int(priority)
	if synced.Valid {
		t := synced.Time.UTC()
		state.Synced = &t
	}
	return state, true, nil
}

// MarkSynced records the outcome of a fetch and clears pending, creating the state if needed.
// The high-water mark is left alone; see AdvanceHighWater.
func (s *SQLStore) MarkSynced(ctx context.Context, postID int64, result string, at time.Time) error {
	_, err := s.exec(ctx, s.builder.
		Insert("sync_states").
		Columns("post_id", "pending", "priority", "synced", "result").
		Values(postID, false, int64(0), at.UTC(), result).
		Suffix(`ON CONFLICT (post_id) DO UPDATE SET
			pending = excluded.pending,
			synced = excluded.synced,
			result = excluded.result`))
	if err != nil {
		return fmt.Errorf("mark post %d synced: %w", postID, err)
	}
	return nil
}

// BumpHighWater records a sighted comment. If it is newer than anything known for the post,
// the post becomes pending with the given priority and true is returned.
func (s *SQLStore) BumpHighWater(ctx context.Context, postID, commentID int64, priority int) (bool, error) {
	res, err := s.exec(ctx, s.builder.
		Insert("sync_states").
		Columns("post_id", "last_comment_id", "pending", "priority", "result").
		Values(postID, commentID, true, int64(priority), "").
		Suffix(`ON CONFLICT (post_id) DO UPDATE SET
			last_comment_id = excluded.last_comment_id,
			pending = excluded.pending,
			priority = excluded.priority
			WHERE sync_states.last_comment_id IS NULL OR sync_states.last_comment_id < excluded.last_comment_id`))
	if err != nil {
		return false, fmt.Errorf("bump post %d: %w", postID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("bump post %d: %w", postID, err)
	}
	return n > 0, nil
}

// AdvanceHighWater sets the high-water mark of a post to candidate, the highest id on the fetched page.
// baseline is the mark read before the fetch. A stored mark above both candidate and baseline means a
// newer comment was sighted while the fetch was in flight: the mark is kept, the post is made pending
// again and raced is true.
func (s *SQLStore) AdvanceHighWater(ctx context.Context, postID int64, baseline *int64, candidate int64) (stored int64, raced bool, err error) {
	err = s.inTx(ctx, func(tx *SQLStore) error {
		state, found, err := tx.SyncState(ctx, postID)
		if err != nil || !found {
			return err
		}

		if last := state.LastCommentID; last != nil && *last > candidate && (baseline == nil || *last > *baseline) {
			stored, raced = *last, true
			if _, err := tx.exec(ctx, tx.builder.
				Update("sync_states").
				Set("pending", true).
				Where(sq.Eq{"post_id": postID})); err != nil {
				return fmt.Errorf("requeue post %d: %w", postID, err)
			}
			return nil
		}

		if _, err := tx.exec(ctx, tx.builder.
			Update("sync_states").
			Set("last_comment_id", candidate).
			Where(sq.Eq{"post_id": postID})); err != nil {
			return fmt.Errorf("advance post %d: %w", postID, err)
		}
		stored = candidate
		return nil
	})
	return stored, raced, err
}

// Enqueue makes the given posts pending with priority, creating missing states.
func (s *SQLStore) Enqueue(ctx context.Context, postIDs []int64, priority int) error {
	for _, chunk := range chunks(postIDs, batchSize) {
		stmt := s.builder.Insert("sync_states").Columns("post_id", "pending", "priority", "result")
		for _, id := range chunk {
			stmt = stmt.Values(id, true, int64(priority), "")
		}
		stmt = stmt.Suffix("ON CONFLICT (post_id) DO UPDATE SET pending = excluded.pending, priority = excluded.priority")
		if _, err := s.exec(ctx, stmt); err != nil {
			return fmt.Errorf("enqueue posts: %w", err)
		}
	}
	return nil
}

// SyncStats counts pending and known posts.
func (s *SQLStore) SyncStats(ctx context.Context) (domain.SyncStats, error) {
	var stats domain.SyncStats
	_, err := s.queryRow(ctx, s.builder.
		Select("COUNT(*)", "COALESCE(SUM(CASE WHEN pending THEN 1 ELSE 0 END), 0)").
		From("sync_states"), &stats.Total, &stats.Pending)
	if err != nil {
		return domain.SyncStats{}, fmt.Errorf("query sync stats: %w", err)
	}
	return stats, nil
}
