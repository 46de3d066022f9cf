package models

import "time"

// Message is a chat message inside a match.
type Message struct {
	ID        string    `json:"id"`
	MatchID   string    `json:"match_id"`
	SenderID  string    `json:"sender_id"`
	Content   string    `json:"content"`
	Read      bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}

// Report is a side-channel complaint about the other party of a match.
type Report struct {
	ID         string    `json:"id"`
	ReporterID string    `json:"reporter_id"`
	ReportedID string    `json:"reported_id"`
	MatchID    string    `json:"match_id"`
	Reason     string    `json:"reason"`
	CreatedAt  time.Time `json:"created_at"`
}

// DefaultReportReason is used when a report carries no reason.
const DefaultReportReason = "other"

// Block permanently excludes the ordered pair (BlockerID, BlockedID) from matching.
type Block struct {
	BlockerID string    `json:"blocker_id"`
	BlockedID string    `json:"blocked_id"`
	MatchID   string    `json:"match_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
