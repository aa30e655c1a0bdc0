package source

import (
	"strings"
	"time"

	"github.com/consultdesk/bookingagent/internal/database"
)

// SourceType identifies the channel a client message arrived on
type SourceType string

const (
	SourceTypeWhatsApp SourceType = "whatsapp"
	SourceTypeWeb      SourceType = "web"
)

// Origin returns the conversation origin for this source
func (t SourceType) Origin() database.Origin {
	if t == SourceTypeWeb {
		return database.OriginWeb
	}
	return database.OriginWhatsApp
}

// Kind returns the conversation kind for this source
func (t SourceType) Kind() database.ConversationKind {
	if t == SourceTypeWeb {
		return database.ConversationPublic
	}
	return database.ConversationInternal
}

// Message represents an inbound client message from a chat channel
type Message struct {
	SourceType   SourceType
	ConsultantID int64
	Identifier   string // WhatsApp JID of the client chat
	SenderName   string
	Text         string
	Timestamp    time.Time
}

// ClientIdentifier returns the identifier stored on the conversation. For
// WhatsApp it is the phone number part of the JID.
func (m *Message) ClientIdentifier() string {
	if m.SourceType == SourceTypeWhatsApp {
		if user, _, ok := strings.Cut(m.Identifier, "@"); ok {
			return user
		}
	}
	return m.Identifier
}
