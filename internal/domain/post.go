package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Vote carries the plus/minus counters and the rating shown by the site.
type Vote struct {
	Plus   int             `json:"vote_plus"`
	Minus  int             `json:"vote_minus"`
	Rating decimal.Decimal `json:"rating"`
}

// Post is a single code entry together with its metadata.
type Post struct {
	ID            int64     `json:"id"`
	XyzID         *int64    `json:"id_xyz,omitempty"`
	Source        Source    `json:"source"`
	CommentListID int64     `json:"comment_list_id"`
	Language      string    `json:"language"`
	Code          string    `json:"code"`
	Text          string    `json:"text"`
	UserID        int64     `json:"user_id"`
	Posted        time.Time `json:"posted"`
	Vote
}

// User is an author of posts or comments.
type User struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	AvatarHash string `json:"avatar_hash,omitempty"`
	Source     Source `json:"source"`
}
