package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/consultdesk/bookingagent/internal/database"
	"github.com/consultdesk/bookingagent/internal/processor"
	"github.com/consultdesk/bookingagent/internal/sse"
)

const defaultHistoryLimit = 50

type createConversationRequest struct {
	Name string `json:"name"`
}

type postMessageRequest struct {
	Text string `json:"text"`
}

// doneEvent closes a streamed reply.
type doneEvent struct {
	Action    string `json:"action"`
	BookingID int64  `json:"booking_id,omitempty"`
	Executed  bool   `json:"executed"`
}

func (s *Server) handleCreateConversation(w http.ResponseWriter, r *http.Request) {
	consultantID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid consultant id")
		return
	}
	var req createConversationRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	if _, err := s.db.GetConsultant(consultantID); err != nil {
		s.respondLookupError(w, err, "consultant not found")
		return
	}

	conv, err := s.db.CreateConversation(consultantID, database.ConversationPublic, database.OriginWeb, "", strings.TrimSpace(req.Name))
	if err != nil {
		s.logger.Error("Failed to create conversation", zap.Int64("consultant_id", consultantID), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to create conversation")
		return
	}
	respondJSON(w, http.StatusCreated, conv)
}

// publicConversation loads the conversation in the path and writes a 404
// unless it is a public one.
func (s *Server) publicConversation(w http.ResponseWriter, r *http.Request) (*database.Conversation, bool) {
	conv, err := s.db.GetConversation(r.PathValue("id"))
	if err != nil {
		s.respondLookupError(w, err, "conversation not found")
		return nil, false
	}
	if conv.Kind != database.ConversationPublic {
		respondError(w, http.StatusNotFound, "conversation not found")
		return nil, false
	}
	return conv, true
}

func (s *Server) handlePostMessage(w http.ResponseWriter, r *http.Request) {
	var req postMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		respondError(w, http.StatusBadRequest, "text is required")
		return
	}

	conv, ok := s.publicConversation(w, r)
	if !ok {
		return
	}
	if !s.limiter.Allow(conv.ID) {
		respondError(w, http.StatusTooManyRequests, "too many messages, slow down")
		return
	}

	flusher, ok := sse.PrepareStream(w)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	w.WriteHeader(http.StatusOK)

	streamed := false
	reply, err := s.processor.HandleMessage(r.Context(), processor.Inbound{ConversationID: conv.ID, Text: req.Text}, func(chunk string) error {
		if err := sse.WriteEvent(w, "", chunk); err != nil {
			return err
		}
		streamed = true
		flusher.Flush()
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to handle message", zap.String("conversation_id", conv.ID), zap.Error(err))
		sse.WriteEvent(w, "error", map[string]string{"error": "reply failed"})
		flusher.Flush()
		return
	}

	if !streamed && reply.Text != "" {
		sse.WriteEvent(w, "", reply.Text)
	}
	sse.WriteEvent(w, "done", doneEvent{
		Action:    string(reply.Intent),
		BookingID: reply.BookingID,
		Executed:  reply.Executed,
	})
	flusher.Flush()
}

func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	conv, ok := s.publicConversation(w, r)
	if !ok {
		return
	}

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	messages, err := s.db.GetHistory(conv.ID, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	if messages == nil {
		messages = []database.ConversationMessage{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"messages": messages})
}

func (s *Server) handleResetConversation(w http.ResponseWriter, r *http.Request) {
	conv, ok := s.publicConversation(w, r)
	if !ok {
		return
	}
	if err := s.processor.ResetConversation(r.Context(), conv.ID); err != nil {
		s.logger.Error("Failed to reset conversation", zap.String("conversation_id", conv.ID), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to reset conversation")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (s *Server) respondLookupError(w http.ResponseWriter, err error, notFound string) {
	if errors.Is(err, database.ErrNotFound) {
		respondError(w, http.StatusNotFound, notFound)
		return
	}
	s.logger.Error("Lookup failed", zap.Error(err))
	respondError(w, http.StatusInternalServerError, "internal error")
}
