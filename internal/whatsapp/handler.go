package whatsapp

import (
	"strings"

	"go.mau.fi/whatsmeow/types/events"
	"go.uber.org/zap"

	"github.com/consultdesk/bookingagent/internal/logging"
	"github.com/consultdesk/bookingagent/internal/source"
	"github.com/consultdesk/bookingagent/internal/sse"
)

const messageBuffer = 100

// Handler turns whatsmeow events into inbound client messages for one
// consultant.
type Handler struct {
	consultantID int64
	messageChan  chan source.Message
	state        *sse.State
	logger       *zap.Logger
}

// NewHandler creates a handler routing direct messages to consultantID.
// state may be nil.
func NewHandler(consultantID int64, state *sse.State, logger *zap.Logger) *Handler {
	return &Handler{
		consultantID: consultantID,
		messageChan:  make(chan source.Message, messageBuffer),
		state:        state,
		logger:       logging.OrNop(logger),
	}
}

func (h *Handler) MessageChan() <-chan source.Message {
	return h.messageChan
}

func (h *Handler) HandleEvent(evt interface{}) {
	switch v := evt.(type) {
	case *events.Message:
		h.handleMessage(v)
	case *events.Connected:
		h.setStatus(sse.StatusConnected)
	case *events.Disconnected:
		h.setStatus(sse.StatusWaiting)
	case *events.LoggedOut:
		h.logger.Warn("WhatsApp session logged out", zap.Bool("on_connect", v.OnConnect))
		h.setStatus(sse.StatusNotConfigured)
	}
}

func (h *Handler) setStatus(status string) {
	if h.state != nil {
		h.state.Set(sse.IntegrationWhatsApp, status)
	}
}

func (h *Handler) handleMessage(msg *events.Message) {
	// Only direct messages from clients, never groups or our own replies
	if msg.Info.IsGroup || msg.Info.IsFromMe {
		return
	}
	text := strings.TrimSpace(extractText(msg))
	if text == "" {
		return
	}

	name := msg.Info.PushName
	if name == "" {
		name = msg.Info.Sender.User
	}

	select {
	case h.messageChan <- source.Message{
		SourceType:   source.SourceTypeWhatsApp,
		ConsultantID: h.consultantID,
		Identifier:   msg.Info.Chat.String(),
		SenderName:   name,
		Text:         text,
		Timestamp:    msg.Info.Timestamp,
	}:
	default:
		h.logger.Warn("WhatsApp message channel full, dropping message",
			zap.String("chat", msg.Info.Chat.String()))
	}
}

func extractText(msg *events.Message) string {
	m := msg.Message

	if m.GetConversation() != "" {
		return m.GetConversation()
	}

	if ext := m.GetExtendedTextMessage(); ext != nil {
		return ext.GetText()
	}

	if img := m.GetImageMessage(); img != nil && img.GetCaption() != "" {
		return img.GetCaption()
	}

	return ""
}
