package domain

const viewTimeLayout = "2006-01-02T15:04:05Z"

// CommentView is the public JSON shape of a comment sent to subscribers.
type CommentView struct {
	ID              int64   `json:"id"`
	XyzID           *int64  `json:"id_xyz"`
	ParentID        *int64  `json:"parent_id"`
	PostID          int64   `json:"post_id"`
	Text            string  `json:"text"`
	Posted          string  `json:"posted"`
	PostedTimestamp int64   `json:"posted_timestamp"`
	UserID          int64   `json:"user_id"`
	UserName        string  `json:"user_name"`
	UserAvatar      *string `json:"user_avatar"`
	CommentListID   int64   `json:"comment_list_id"`
	Source          Source  `json:"source"`
}

// DeltaMessage is the payload broadcast on the updates channel.
type DeltaMessage struct {
	New     []CommentView `json:"new"`
	Updated []CommentView `json:"updated"`
}

// NewCommentView denormalizes a comment with its author, thread and link data.
func NewCommentView(c Comment, user User, commentListID int64, xyzID *int64) CommentView {
	posted := c.Posted.UTC()
	view := CommentView{
		ID:              c.ID,
		XyzID:           xyzID,
		ParentID:        c.ParentID,
		PostID:          c.PostID,
		Text:            c.Text,
		Posted:          posted.Format(viewTimeLayout),
		PostedTimestamp: posted.Unix(),
		UserID:          c.UserID,
		UserName:        user.Name,
		CommentListID:   commentListID,
		Source:          c.Source,
	}
	if user.AvatarHash != "" {
		avatar := user.AvatarHash
		view.UserAvatar = &avatar
	}
	return view
}
