package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"time"

	"github.com/desertthunder/chord/internal/models"
	"github.com/desertthunder/chord/internal/shared"
)

// DefaultMessageLimit caps a message listing when the caller gives no limit.
const DefaultMessageLimit = 50

// MessageRepository is the append and ordered-read store for match chat.
type MessageRepository struct {
	db *sql.DB
}

// NewMessageRepository creates a new [MessageRepository] with the given database connection
func NewMessageRepository(db *sql.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// Append stores msg with a generated ID and timestamp.
func (r *MessageRepository) Append(ctx context.Context, msg *models.Message) error {
	if msg.Content == "" {
		return shared.ErrEmptyMessage
	}

	msg.ID = shared.GenerateID()
	msg.CreatedAt = time.Now().UTC()
	msg.Read = false

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO messages (id, match_id, sender_id, content, is_read, created_at)
		VALUES (?, ?, ?, ?, 0, ?)
	`, msg.ID, msg.MatchID, msg.SenderID, msg.Content, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}
	return nil
}

// List returns up to limit of the most recent messages of a match, oldest first.
func (r *MessageRepository) List(ctx context.Context, matchID string, limit int) ([]models.Message, error) {
	if limit <= 0 {
		limit = DefaultMessageLimit
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, match_id, sender_id, content, is_read, created_at
		FROM messages
		WHERE match_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`, matchID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.MatchID, &m.SenderID, &m.Content, &m.Read, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	slices.Reverse(messages)
	return messages, nil
}

// MarkRead marks every message in the match not sent by readerID as read and returns
// how many changed.
func (r *MessageRepository) MarkRead(ctx context.Context, matchID, readerID string) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE messages SET is_read = 1
		WHERE match_id = ? AND sender_id <> ? AND is_read = 0
	`, matchID, readerID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark messages read: %w", err)
	}
	return result.RowsAffected()
}

// Unread counts messages in the match waiting for readerID.
func (r *MessageRepository) Unread(ctx context.Context, matchID, readerID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM messages WHERE match_id = ? AND sender_id <> ? AND is_read = 0
	`, matchID, readerID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count unread messages: %w", err)
	}
	return n, nil
}
