package whatsapp

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"google.golang.org/protobuf/proto"

	"github.com/consultdesk/bookingagent/internal/source"
	"github.com/consultdesk/bookingagent/internal/sse"
)

func directMessage(text string) *events.Message {
	jid := types.NewJID("393331234567", types.DefaultUserServer)
	return &events.Message{
		Info: types.MessageInfo{
			MessageSource: types.MessageSource{Chat: jid, Sender: jid},
			PushName:      "Mario",
			Timestamp:     time.Date(2030, 5, 10, 12, 0, 0, 0, time.UTC),
		},
		Message: &waE2E.Message{Conversation: proto.String(text)},
	}
}

func TestHandleMessage(t *testing.T) {
	h := NewHandler(7, nil, nil)

	h.HandleEvent(directMessage("  vorrei prenotare  "))

	require.Len(t, h.messageChan, 1)
	msg := <-h.MessageChan()
	assert.Equal(t, source.SourceTypeWhatsApp, msg.SourceType)
	assert.Equal(t, int64(7), msg.ConsultantID)
	assert.Equal(t, "393331234567@s.whatsapp.net", msg.Identifier)
	assert.Equal(t, "393331234567", msg.ClientIdentifier())
	assert.Equal(t, "Mario", msg.SenderName)
	assert.Equal(t, "vorrei prenotare", msg.Text)
}

func TestHandleMessageSkips(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*events.Message)
	}{
		{"group", func(m *events.Message) { m.Info.IsGroup = true }},
		{"from me", func(m *events.Message) { m.Info.IsFromMe = true }},
		{"empty", func(m *events.Message) { m.Message = &waE2E.Message{} }},
		{"blank", func(m *events.Message) { m.Message.Conversation = proto.String("   ") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(1, nil, nil)
			msg := directMessage("ciao")
			tt.mutate(msg)
			h.HandleEvent(msg)
			assert.Len(t, h.messageChan, 0)
		})
	}
}

func TestHandleMessageDropsWhenFull(t *testing.T) {
	h := NewHandler(1, nil, nil)
	for i := 0; i < messageBuffer+5; i++ {
		h.HandleEvent(directMessage("ciao"))
	}
	assert.Len(t, h.messageChan, messageBuffer)
}

func TestExtractText(t *testing.T) {
	tests := []struct {
		name string
		msg  *waE2E.Message
		want string
	}{
		{"conversation", &waE2E.Message{Conversation: proto.String("ciao")}, "ciao"},
		{"extended", &waE2E.Message{ExtendedTextMessage: &waE2E.ExtendedTextMessage{Text: proto.String("link")}}, "link"},
		{"image caption", &waE2E.Message{ImageMessage: &waE2E.ImageMessage{Caption: proto.String("foto")}}, "foto"},
		{"image without caption", &waE2E.Message{ImageMessage: &waE2E.ImageMessage{}}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractText(&events.Message{Message: tt.msg}))
		})
	}
}

func TestConnectionEventsUpdateState(t *testing.T) {
	state := sse.NewState()
	h := NewHandler(1, state, nil)

	h.HandleEvent(&events.Connected{})
	assert.Equal(t, sse.StatusConnected, state.Get(sse.IntegrationWhatsApp).State)

	h.HandleEvent(&events.LoggedOut{})
	assert.Equal(t, sse.StatusNotConfigured, state.Get(sse.IntegrationWhatsApp).State)
}

func TestGenerateQRDataURL(t *testing.T) {
	url, err := GenerateQRDataURL("2@abc,def,ghi")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "data:image/png;base64,"))
}

func TestWriteQRFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "qr.png")

	require.NoError(t, WriteQRFile("2@abc,def,ghi", path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}
