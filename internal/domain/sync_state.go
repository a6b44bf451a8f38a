package domain

import "time"

const (
	// PriorityHasComments is assigned to posts where a new comment was sighted.
	PriorityHasComments = 10
	// PriorityDump is assigned to posts enqueued in bulk.
	PriorityDump = 9
)

// Result strings recorded on SyncState.
const (
	ResultOK         = "OK"
	ResultParseError = "Parse error"
)

// SyncState tracks what is known about a post and whether it needs a fetch.
type SyncState struct {
	PostID        int64      `json:"post_id"`
	LastCommentID *int64     `json:"last_comment_id"`
	Pending       bool       `json:"pending"`
	Priority      int        `json:"priority"`
	Synced        *time.Time `json:"synced"`
	Result        string     `json:"result"`
}

// SyncStats summarizes the sync queue.
type SyncStats struct {
	Pending int64 `json:"pending"`
	Total   int64 `json:"total"`
}
