package domain

import "time"

// Comment is a node of a post's reply tree; the tree is kept flat with parent references.
type Comment struct {
	ID       int64     `json:"id"`
	ParentID *int64    `json:"parent_id"`
	PostID   int64     `json:"post_id"`
	UserID   int64     `json:"user_id"`
	Text     string    `json:"text"`
	Posted   time.Time `json:"posted"`
	Source   Source    `json:"source"`
	Vote
}

// CommentLink maps a primary comment id to the id it got on the migrated site.
type CommentLink struct {
	CommentID int64  `json:"comment_id"`
	XyzID     *int64 `json:"id_xyz"`
}

// MigratedSighting is a comment observed on the migrated site's recent comments page.
// Any of the ids may be missing, but at least one comment id and the post id are set.
type MigratedSighting struct {
	ID        *int64    `json:"id_ru"`
	XyzID     *int64    `json:"id_xyz"`
	PostID    int64     `json:"post_id"`
	UserID    *int64    `json:"user_id_ru"`
	XyzUserID *int64    `json:"user_id_xyz"`
	Text      string    `json:"text"`
	Posted    time.Time `json:"posted"`
}

// Delta is the unit of publication: comments created and comments changed by one step.
type Delta struct {
	New     []Comment
	Updated []Comment
}

// Empty reports whether there is nothing to publish.
func (d Delta) Empty() bool {
	return len(d.New) == 0 && len(d.Updated) == 0
}
