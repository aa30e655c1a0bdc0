package server

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/consultdesk/bookingagent/internal/sse"
)

type pairRequest struct {
	Phone string `json:"phone"`
}

func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	code := http.StatusOK
	if err := s.db.PingContext(r.Context()); err != nil {
		s.logger.Warn("Health check database ping failed", zap.Error(err))
		status = "unhealthy"
		code = http.StatusServiceUnavailable
	}

	respondJSON(w, code, map[string]string{
		"status":   status,
		"whatsapp": s.state.Get(sse.IntegrationWhatsApp).State,
		"calendar": s.state.Get(sse.IntegrationCalendar).State,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.state.Snapshot())
}

// handleStatusStream sends the current snapshot, then every status change
// until the client disconnects.
func (s *Server) handleStatusStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := sse.PrepareStream(w)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	updates := s.state.Subscribe()
	defer s.state.Unsubscribe(updates)

	w.WriteHeader(http.StatusOK)
	if err := sse.WriteEvent(w, "snapshot", s.state.Snapshot()); err != nil {
		return
	}
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if err := sse.WriteEvent(w, "status", update); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func (s *Server) handleWhatsAppPair(w http.ResponseWriter, r *http.Request) {
	if s.waClient == nil {
		respondError(w, http.StatusServiceUnavailable, "WhatsApp is not configured")
		return
	}
	var req pairRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	phone := strings.TrimPrefix(strings.TrimSpace(req.Phone), "+")
	if phone == "" {
		respondError(w, http.StatusBadRequest, "phone is required")
		return
	}

	// Pairing outlives the request.
	code, err := s.waClient.PairWithPhone(context.WithoutCancel(r.Context()), phone)
	if err != nil {
		s.logger.Error("Failed to pair WhatsApp", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to start pairing")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"code": code})
}
