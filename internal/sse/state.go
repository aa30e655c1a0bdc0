package sse

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Integration names an external connection whose status is streamed to the
// operator console.
type Integration string

const (
	IntegrationWhatsApp Integration = "whatsapp"
	IntegrationCalendar Integration = "calendar"
)

// Connection states shared by every integration.
const (
	StatusChecking      = "checking"
	StatusNotConfigured = "not_configured"
	StatusWaiting       = "waiting"
	StatusConnected     = "connected"
	StatusError         = "error"
)

// Status is the current state of one integration.
type Status struct {
	State     string    `json:"state"`
	QRCode    string    `json:"qr_code,omitempty"` // data URL while pairing
	Error     string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Update is broadcast to subscribers on every status change.
type Update struct {
	Integration Integration `json:"integration"`
	Status      Status      `json:"status"`
}

// State tracks integration statuses and fans changes out to subscribers.
type State struct {
	mu          sync.RWMutex
	statuses    map[Integration]Status
	subscribers map[chan Update]struct{}
}

// NewState creates a state with every integration in "checking".
func NewState() *State {
	now := time.Now().UTC()
	return &State{
		statuses: map[Integration]Status{
			IntegrationWhatsApp: {State: StatusChecking, UpdatedAt: now},
			IntegrationCalendar: {State: StatusChecking, UpdatedAt: now},
		},
		subscribers: make(map[chan Update]struct{}),
	}
}

// Subscribe creates a new channel for receiving updates
func (s *State) Subscribe() chan Update {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan Update, 10)
	s.subscribers[ch] = struct{}{}
	return ch
}

// Unsubscribe removes a subscriber channel
func (s *State) Unsubscribe(ch chan Update) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.subscribers[ch]; ok {
		delete(s.subscribers, ch)
		close(ch)
	}
}

func (s *State) update(i Integration, fn func(*Status)) {
	s.mu.Lock()
	st := s.statuses[i]
	fn(&st)
	st.UpdatedAt = time.Now().UTC()
	s.statuses[i] = st
	update := Update{Integration: i, Status: st}
	for ch := range s.subscribers {
		select {
		case ch <- update:
		default:
			// slow subscriber, drop
		}
	}
	s.mu.Unlock()
}

// Set changes the state of i, clearing any error and QR code.
func (s *State) Set(i Integration, state string) {
	s.update(i, func(st *Status) {
		st.State = state
		st.Error = ""
		st.QRCode = ""
	})
}

// SetQR publishes a pairing QR code for i.
func (s *State) SetQR(i Integration, dataURL string) {
	s.update(i, func(st *Status) {
		st.State = StatusWaiting
		st.QRCode = dataURL
		st.Error = ""
	})
}

// SetError puts i in the error state.
func (s *State) SetError(i Integration, msg string) {
	s.update(i, func(st *Status) {
		st.State = StatusError
		st.Error = msg
	})
}

// Get returns the status of one integration.
func (s *State) Get(i Integration) Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.statuses[i]
}

// Snapshot returns a copy of every status.
func (s *State) Snapshot() map[Integration]Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[Integration]Status, len(s.statuses))
	for k, v := range s.statuses {
		out[k] = v
	}
	return out
}

// PrepareStream sets the event-stream headers and returns the flusher, or
// false when w cannot stream.
func PrepareStream(w http.ResponseWriter) (http.Flusher, bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, false
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	return flusher, true
}

// WriteEvent writes one server-sent event. Strings are sent as is, one
// data line per text line; anything else is JSON encoded. An empty event
// name omits the event field.
func WriteEvent(w io.Writer, event string, data any) error {
	var payload string
	switch v := data.(type) {
	case string:
		payload = v
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to encode event: %w", err)
		}
		payload = string(encoded)
	}

	var b strings.Builder
	if event != "" {
		b.WriteString("event: " + event + "\n")
	}
	for _, line := range strings.Split(payload, "\n") {
		b.WriteString("data: " + line + "\n")
	}
	b.WriteString("\n")

	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	return nil
}
