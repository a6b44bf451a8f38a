package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/shopspring/decimal"

	"ForumMirror/internal/domain"
)

var commentColumns = []string{
	"comment_id", "parent_id", "post_id", "user_id", "text", "posted",
	"vote_plus", "vote_minus", "rating", "source",
}

const upsertCommentSuffix = `ON CONFLICT (comment_id) DO UPDATE SET
	parent_id = excluded.parent_id,
	post_id = excluded.post_id,
	user_id = excluded.user_id,
	text = excluded.text,
	posted = excluded.posted,
	vote_plus = excluded.vote_plus,
	vote_minus = excluded.vote_minus,
	rating = excluded.rating,
	source = excluded.source`

// UpsertComments replaces the stored comments.
func (s *SQLStore) UpsertComments(ctx context.Context, comments []domain.Comment) error {
	for _, chunk := range chunks(dedupe(comments, func(c domain.Comment) int64 { return c.ID }), batchSize) {
		stmt := s.builder.Insert("comments").Columns(commentColumns...)
		for _, c := range chunk {
			stmt = stmt.Values(c.ID, nullableInt(c.ParentID), c.PostID, c.UserID, c.Text, c.Posted.UTC(),
				int64(c.Plus), int64(c.Minus), c.Rating.String(), int64(c.Source))
		}
		if _, err := s.exec(ctx, stmt.Suffix(upsertCommentSuffix)); err != nil {
			return fmt.Errorf("upsert comments: %w", err)
		}
	}
	return nil
}

// CommentTexts returns the stored text of every known comment among ids.
func (s *SQLStore) CommentTexts(ctx context.Context, ids []int64) (map[int64]string, error) {
	result := make(map[int64]string, len(ids))
	for _, chunk := range chunks(ids, batchSize) {
		rows, err := s.query(ctx, s.builder.
			Select("comment_id", "text").
			From("comments").
			Where(inIDs("comment_id", chunk)))
		if err != nil {
			return nil, fmt.Errorf("query comment texts: %w", err)
		}
		err = collect(rows, func(rows *sql.Rows) error {
			var (
				id   int64
				text string
			)
			if err := rows.Scan(&id, &text); err != nil {
				return err
			}
			result[id] = text
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return result, nil
}

// Comment loads one comment.
func (s *SQLStore) Comment(ctx context.Context, id int64) (domain.Comment, bool, error) {
	query, args, err := s.builder.
		Select(commentColumns...).
		From("comments").
		Where(sq.Eq{"comment_id": id}).
		ToSql()
	if err != nil {
		return domain.Comment{}, false, fmt.Errorf("build query: %w", err)
	}

	comment, err := scanComment(s.q.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Comment{}, false, nil
	}
	if err != nil {
		return domain.Comment{}, false, fmt.Errorf("query comment %d: %w", id, err)
	}
	return comment, true, nil
}

// UpdateCommentText overwrites the text of a stored comment.
func (s *SQLStore) UpdateCommentText(ctx context.Context, id int64, text string) error {
	_, err := s.exec(ctx, s.builder.
		Update("comments").
		Set("text", text).
		Where(sq.Eq{"comment_id": id}))
	if err != nil {
		return fmt.Errorf("update comment %d: %w", id, err)
	}
	return nil
}

// CommentsAfter pages through comments in id order.
func (s *SQLStore) CommentsAfter(ctx context.Context, afterID int64, limit int) ([]domain.Comment, error) {
	rows, err := s.query(ctx, s.builder.
		Select(commentColumns...).
		From("comments").
		Where(sq.Gt{"comment_id": afterID}).
		OrderBy("comment_id").
		Limit(uint64(limit)))
	if err != nil {
		return nil, fmt.Errorf("query comments after %d: %w", afterID, err)
	}

	var comments []domain.Comment
	err = collect(rows, func(rows *sql.Rows) error {
		c, err := scanComment(rows)
		if err != nil {
			return err
		}
		comments = append(comments, c)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return comments, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanComment(row scanner) (domain.Comment, error) {
	var (
		c        domain.Comment
		parentID sql.NullInt64
		plus     int64
		minus    int64
		rating   decimal.NullDecimal
		source   int64
	)
	if err := row.Scan(&c.ID, &parentID, &c.PostID, &c.UserID, &c.Text, &c.Posted, &plus, &minus, &rating, &source); err != nil {
		return domain.Comment{}, err
	}
	c.ParentID = intPtr(parentID)
	c.Posted = c.Posted.UTC()
	c.Plus, c.Minus = int(plus), int(minus)
	c.Rating = rating.Decimal
	c.Source = domain.Source(source)
	if !c.Source.Valid() {
		return domain.Comment{}, fmt.Errorf("comment %d: unknown source %d", c.ID, source)
	}
	return c, nil
}
