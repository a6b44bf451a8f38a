package storage

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"ForumMirror/internal/domain"
)

// Link loads the migrated id link of a primary comment id. Links may exist for comments
// that were never fetched.
func (s *SQLStore) Link(ctx context.Context, commentID int64) (domain.CommentLink, bool, error) {
	var xyzID sql.NullInt64
	found, err := s.queryRow(ctx, s.builder.
		Select("comment_id_xyz").
		From("comment_links").
		Where(sq.Eq{"comment_id": commentID}), &xyzID)
	if err != nil {
		return domain.CommentLink{}, false, fmt.Errorf("query link %d: %w", commentID, err)
	}
	if !found {
		return domain.CommentLink{}, false, nil
	}
	return domain.CommentLink{CommentID: commentID, XyzID: intPtr(xyzID)}, true, nil
}

// SaveLink creates or overwrites a link.
func (s *SQLStore) SaveLink(ctx context.Context, link domain.CommentLink) error {
	_, err := s.exec(ctx, s.builder.
		Insert("comment_links").
		Columns("comment_id", "comment_id_xyz").
		Values(link.CommentID, nullableInt(link.XyzID)).
		Suffix("ON CONFLICT (comment_id) DO UPDATE SET comment_id_xyz = excluded.comment_id_xyz"))
	if err != nil {
		return fmt.Errorf("save link %d: %w", link.CommentID, err)
	}
	return nil
}

// Links maps primary comment ids to known migrated ids.
func (s *SQLStore) Links(ctx context.Context, commentIDs []int64) (map[int64]int64, error) {
	result := make(map[int64]int64, len(commentIDs))
	for _, chunk := range chunks(commentIDs, batchSize) {
		rows, err := s.query(ctx, s.builder.
			Select("comment_id", "comment_id_xyz").
			From("comment_links").
			Where(inIDs("comment_id", chunk)).
			Where(sq.NotEq{"comment_id_xyz": nil}))
		if err != nil {
			return nil, fmt.Errorf("query links: %w", err)
		}
		err = collect(rows, func(rows *sql.Rows) error {
			var id, xyzID int64
			if err := rows.Scan(&id, &xyzID); err != nil {
				return err
			}
			result[id] = xyzID
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return result, nil
}
