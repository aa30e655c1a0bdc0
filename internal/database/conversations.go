package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ConversationKind separates managed-channel conversations from public web links.
type ConversationKind string

const (
	ConversationInternal ConversationKind = "internal"
	ConversationPublic   ConversationKind = "public"
)

// Origin tags the channel a conversation arrived on.
type Origin string

const (
	OriginWeb      Origin = "web"
	OriginWhatsApp Origin = "whatsapp"
)

// Conversation is a chat thread between a client and a consultant's agent.
type Conversation struct {
	ID               string           `json:"id"`
	ConsultantID     int64            `json:"consultant_id"`
	Kind             ConversationKind `json:"kind"`
	Origin           Origin           `json:"origin"`
	ClientIdentifier string           `json:"client_identifier,omitempty"`
	ClientName       string           `json:"client_name,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// ConversationRef identifies the conversation column a booking hangs off.
type ConversationRef struct {
	ID     string
	Public bool
}

// Ref returns the booking reference for this conversation.
func (c *Conversation) Ref() ConversationRef {
	return ConversationRef{ID: c.ID, Public: c.Kind == ConversationPublic}
}

func (r ConversationRef) column() string {
	if r.Public {
		return "public_conversation_id"
	}
	return "conversation_id"
}

// CreateConversation starts a new conversation with a fresh UUID.
func (d *DB) CreateConversation(consultantID int64, kind ConversationKind, origin Origin, clientIdentifier, clientName string) (*Conversation, error) {
	now := time.Now().UTC()
	conv := &Conversation{
		ID:               uuid.NewString(),
		ConsultantID:     consultantID,
		Kind:             kind,
		Origin:           origin,
		ClientIdentifier: clientIdentifier,
		ClientName:       clientName,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	_, err := d.Exec(`
		INSERT INTO conversations (id, consultant_id, kind, origin, client_identifier, client_name, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, conv.ID, conv.ConsultantID, conv.Kind, conv.Origin, conv.ClientIdentifier, conv.ClientName, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}
	return conv, nil
}

// GetConversation retrieves a conversation by ID
func (d *DB) GetConversation(id string) (*Conversation, error) {
	var c Conversation
	err := d.QueryRow(`
		SELECT id, consultant_id, kind, origin, client_identifier, client_name, created_at, updated_at
		FROM conversations WHERE id = ?
	`, id).Scan(&c.ID, &c.ConsultantID, &c.Kind, &c.Origin, &c.ClientIdentifier, &c.ClientName, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("conversation %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	return &c, nil
}

// GetOrCreateClientConversation returns the internal conversation for a
// client on a managed channel, creating it on first contact.
func (d *DB) GetOrCreateClientConversation(consultantID int64, origin Origin, clientIdentifier, clientName string) (*Conversation, error) {
	if clientIdentifier == "" {
		return nil, fmt.Errorf("client identifier is required")
	}

	conv, err := d.findClientConversation(consultantID, origin, clientIdentifier)
	if err != nil || conv != nil {
		return conv, err
	}

	conv, err = d.CreateConversation(consultantID, ConversationInternal, origin, clientIdentifier, clientName)
	if err != nil && isUniqueViolation(err) {
		// Lost a race with another message from the same client.
		return d.findClientConversation(consultantID, origin, clientIdentifier)
	}
	return conv, err
}

func (d *DB) findClientConversation(consultantID int64, origin Origin, clientIdentifier string) (*Conversation, error) {
	var id string
	err := d.QueryRow(`
		SELECT id FROM conversations
		WHERE consultant_id = ? AND origin = ? AND client_identifier = ?
	`, consultantID, origin, clientIdentifier).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up conversation: %w", err)
	}
	return d.GetConversation(id)
}

func (d *DB) touchConversation(id string, at time.Time) error {
	_, err := d.Exec(`UPDATE conversations SET updated_at = ? WHERE id = ?`, at, id)
	return err
}
