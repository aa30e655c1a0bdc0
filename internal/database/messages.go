package database

import (
	"fmt"
	"time"
)

// Sender marks who authored a conversation message.
type Sender string

const (
	SenderClient Sender = "client"
	SenderAI     Sender = "ai"
)

// ConversationMessage represents a stored message in the history
type ConversationMessage struct {
	ID             int64     `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Sender         Sender    `json:"sender"`
	Text           string    `json:"text"`
	CreatedAt      time.Time `json:"created_at"`
}

// AppendMessage stores a message at the end of a conversation's history.
func (d *DB) AppendMessage(conversationID string, sender Sender, text string) (*ConversationMessage, error) {
	now := time.Now().UTC()
	result, err := d.Exec(`
		INSERT INTO conversation_messages (conversation_id, sender, text, created_at)
		VALUES (?, ?, ?, ?)
	`, conversationID, sender, text, now)
	if err != nil {
		return nil, fmt.Errorf("failed to append message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get message id: %w", err)
	}

	if err := d.touchConversation(conversationID, now); err != nil {
		return nil, fmt.Errorf("failed to touch conversation: %w", err)
	}

	return &ConversationMessage{
		ID:             id,
		ConversationID: conversationID,
		Sender:         sender,
		Text:           text,
		CreatedAt:      now,
	}, nil
}

// GetHistory retrieves the last N messages of a conversation in chronological order
func (d *DB) GetHistory(conversationID string, limit int) ([]ConversationMessage, error) {
	if limit <= 0 {
		limit = 30
	}

	rows, err := d.Query(`
		SELECT id, conversation_id, sender, text, created_at
		FROM conversation_messages
		WHERE conversation_id = ?
		ORDER BY id DESC
		LIMIT ?
	`, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var messages []ConversationMessage
	for rows.Next() {
		var m ConversationMessage
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Sender, &m.Text, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}

	// Reverse to get chronological order (oldest first)
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}

// PruneConversationHistory keeps only the newest keep messages of every
// conversation and returns how many rows were deleted.
func (d *DB) PruneConversationHistory(keep int) (int64, error) {
	result, err := d.Exec(`
		DELETE FROM conversation_messages
		WHERE id IN (
			SELECT id FROM (
				SELECT id, ROW_NUMBER() OVER (PARTITION BY conversation_id ORDER BY id DESC) AS rn
				FROM conversation_messages
			) WHERE rn > ?
		)
	`, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune conversation history: %w", err)
	}
	return result.RowsAffected()
}
