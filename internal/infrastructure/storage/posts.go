package storage

import (
	"context"
	"database/sql"
	"fmt"

	"ForumMirror/internal/domain"
)

const (
	upsertUserSuffix = `ON CONFLICT (user_id) DO UPDATE SET
		name = excluded.name,
		avatar_hash = excluded.avatar_hash,
		source = excluded.source`
	upsertPostSuffix = `ON CONFLICT (post_id) DO UPDATE SET
		post_id_xyz = excluded.post_id_xyz,
		source = excluded.source,
		comment_list_id = excluded.comment_list_id,
		language = excluded.language,
		code = excluded.code,
		text = excluded.text,
		user_id = excluded.user_id,
		posted = excluded.posted,
		vote_plus = excluded.vote_plus,
		vote_minus = excluded.vote_minus,
		rating = excluded.rating`
)

// UpsertUsers replaces the stored users; the last duplicate in users wins.
func (s *SQLStore) UpsertUsers(ctx context.Context, users []domain.User) error {
	for _, chunk := range chunks(dedupe(users, func(u domain.User) int64 { return u.ID }), batchSize) {
		stmt := s.builder.Insert("users").Columns("user_id", "name", "avatar_hash", "source")
		for _, u := range chunk {
			stmt = stmt.Values(u.ID, u.Name, nullableString(u.AvatarHash), int64(u.Source))
		}
		if _, err := s.exec(ctx, stmt.Suffix(upsertUserSuffix)); err != nil {
			return fmt.Errorf("upsert users: %w", err)
		}
	}
	return nil
}

// UpsertPost replaces the stored post.
func (s *SQLStore) UpsertPost(ctx context.Context, post domain.Post) error {
	stmt := s.builder.Insert("posts").
		Columns("post_id", "post_id_xyz", "source", "comment_list_id", "language", "code", "text",
			"user_id", "posted", "vote_plus", "vote_minus", "rating").
		Values(post.ID, nullableInt(post.XyzID), int64(post.Source), post.CommentListID, post.Language, post.Code, post.Text,
			post.UserID, post.Posted.UTC(), int64(post.Plus), int64(post.Minus), post.Rating.String()).
		Suffix(upsertPostSuffix)

	if _, err := s.exec(ctx, stmt); err != nil {
		return fmt.Errorf("upsert post %d: %w", post.ID, err)
	}
	return nil
}

// Users loads users by id; unknown ids are absent from the result.
func (s *SQLStore) Users(ctx context.Context, ids []int64) (map[int64]domain.User, error) {
	result := make(map[int64]domain.User, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	rows, err := s.query(ctx, s.builder.
		Select("user_id", "name", "avatar_hash", "source").
		From("users").
		Where(inIDs("user_id", ids)))
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}

	err = collect(rows, func(rows *sql.Rows) error {
		var (
			u      domain.User
			avatar sql.NullString
			source int
		)
		if err := rows.Scan(&u.ID, &u.Name, &avatar, &source); err != nil {
			return err
		}
		u.AvatarHash = avatar.String
		u.Source = domain.Source(source)
		result[u.ID] = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ThreadIDs maps post ids to their comment list ids.
func (s *SQLStore) ThreadIDs(ctx context.Context, postIDs []int64) (map[int64]int64, error) {
	result := make(map[int64]int64, len(postIDs))
	if len(postIDs) == 0 {
		return result, nil
	}

	rows, err := s.query(ctx, s.builder.
		Select("post_id", "comment_list_id").
		From("posts").
		Where(inIDs("post_id", postIDs)))
	if err != nil {
		return nil, fmt.Errorf("query thread ids: %w", err)
	}

	err = collect(rows, func(rows *sql.Rows) error {
		var postID, listID int64
		if err := rows.Scan(&postID, &listID); err != nil {
			return err
		}
		result[postID] = listID
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
