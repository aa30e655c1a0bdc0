package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/consultdesk/bookingagent/internal/database"
	"github.com/consultdesk/bookingagent/internal/gcal"
	"github.com/consultdesk/bookingagent/internal/sse"
	"github.com/consultdesk/bookingagent/internal/timeutil"
)

// oauthStateTTL bounds how long a consent link stays valid.
const oauthStateTTL = 10 * time.Minute

type oauthRequest struct {
	consultantID int64
	createdAt    time.Time
}

type createConsultantRequest struct {
	Name                       string `json:"name"`
	Email                      string `json:"email"`
	Timezone                   string `json:"timezone"`
	AppointmentDurationMinutes int    `json:"appointment_duration_minutes"`
	BookingEnabled             bool   `json:"booking_enabled"`
	CalendarID                 string `json:"calendar_id"`
	WorkingHoursStart          int    `json:"working_hours_start"`
	WorkingHoursEnd            int    `json:"working_hours_end"`
	AgentPersona               string `json:"agent_persona"`
}

// updateSettingsRequest only touches the fields that are set.
type updateSettingsRequest struct {
	Timezone                   *string `json:"timezone"`
	AppointmentDurationMinutes *int    `json:"appointment_duration_minutes"`
	BookingEnabled             *bool   `json:"booking_enabled"`
	CalendarID                 *string `json:"calendar_id"`
	WorkingHoursStart          *int    `json:"working_hours_start"`
	WorkingHoursEnd            *int    `json:"working_hours_end"`
	AgentPersona               *string `json:"agent_persona"`
}

func (req updateSettingsRequest) apply(c *database.Consultant) {
	if req.Timezone != nil {
		c.Timezone = strings.TrimSpace(*req.Timezone)
	}
	if req.AppointmentDurationMinutes != nil {
		c.AppointmentDurationMinutes = *req.AppointmentDurationMinutes
	}
	if req.BookingEnabled != nil {
		c.BookingEnabled = *req.BookingEnabled
	}
	if req.CalendarID != nil {
		c.CalendarID = strings.TrimSpace(*req.CalendarID)
	}
	if req.WorkingHoursStart != nil {
		c.WorkingHoursStart = *req.WorkingHoursStart
	}
	if req.WorkingHoursEnd != nil {
		c.WorkingHoursEnd = *req.WorkingHoursEnd
	}
	if req.AgentPersona != nil {
		c.AgentPersona = *req.AgentPersona
	}
}

// validateSettings checks the booking settings a consultant can change.
func validateSettings(c *database.Consultant) error {
	if c.Timezone != "" {
		if _, fallback := timeutil.ResolveLocation(c.Timezone); fallback {
			return fmt.Errorf("unknown timezone %q", c.Timezone)
		}
	}
	if c.AppointmentDurationMinutes < 0 || c.AppointmentDurationMinutes > 8*60 {
		return errors.New("appointment_duration_minutes must be between 0 and 480")
	}
	if c.WorkingHoursStart < 0 || c.WorkingHoursEnd > 24 || c.WorkingHoursStart >= c.WorkingHoursEnd {
		return errors.New("working hours must satisfy 0 <= start < end <= 24")
	}
	return nil
}

func parseConsultantID(r *http.Request) (int64, error) {
	return strconv.ParseInt(r.PathValue("id"), 10, 64)
}

func (s *Server) handleCreateConsultant(w http.ResponseWriter, r *http.Request) {
	var req createConsultantRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Email) == "" {
		respondError(w, http.StatusBadRequest, "name and email are required")
		return
	}

	c := &database.Consultant{
		Name:                       strings.TrimSpace(req.Name),
		Email:                      strings.TrimSpace(req.Email),
		Timezone:                   strings.TrimSpace(req.Timezone),
		AppointmentDurationMinutes: req.AppointmentDurationMinutes,
		BookingEnabled:             req.BookingEnabled,
		CalendarID:                 strings.TrimSpace(req.CalendarID),
		WorkingHoursStart:          req.WorkingHoursStart,
		WorkingHoursEnd:            req.WorkingHoursEnd,
		AgentPersona:               req.AgentPersona,
	}
	if c.WorkingHoursStart == 0 && c.WorkingHoursEnd == 0 {
		c.WorkingHoursStart, c.WorkingHoursEnd = 9, 18
	}
	if err := validateSettings(c); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := s.db.CreateConsultant(c)
	if err != nil {
		s.logger.Error("Failed to create consultant", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to create consultant")
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetConsultant(w http.ResponseWriter, r *http.Request) {
	id, err := parseConsultantID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid consultant id")
		return
	}
	c, err := s.db.GetConsultant(id)
	if err != nil {
		s.respondLookupError(w, err, "consultant not found")
		return
	}
	respondJSON(w, http.StatusOK, c)
}

func (s *Server) handleUpdateConsultantSettings(w http.ResponseWriter, r *http.Request) {
	id, err := parseConsultantID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid consultant id")
		return
	}
	var req updateSettingsRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	c, err := s.db.GetConsultant(id)
	if err != nil {
		s.respondLookupError(w, err, "consultant not found")
		return
	}
	calendarBefore := c.CalendarID
	req.apply(c)
	if err := validateSettings(c); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.db.UpdateConsultantSettings(c); err != nil {
		s.logger.Error("Failed to update consultant settings", zap.Int64("consultant_id", id), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to update settings")
		return
	}
	if s.calendars != nil && c.CalendarID != calendarBefore {
		s.calendars.Invalidate(id)
	}

	updated, err := s.db.GetConsultant(id)
	if err != nil {
		s.respondLookupError(w, err, "consultant not found")
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

func (s *Server) handleListBookings(w http.ResponseWriter, r *http.Request) {
	id, err := parseConsultantID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid consultant id")
		return
	}
	date := r.URL.Query().Get("date")
	if _, err := time.Parse(timeutil.DateLayout, date); err != nil {
		respondError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}
	if _, err := s.db.GetConsultant(id); err != nil {
		s.respondLookupError(w, err, "consultant not found")
		return
	}

	bookings, err := s.db.ListConsultantBookings(id, date)
	if err != nil {
		s.logger.Error("Failed to list bookings", zap.Int64("consultant_id", id), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to list bookings")
		return
	}
	if bookings == nil {
		bookings = []database.Booking{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"bookings": bookings})
}

// handleCalendarConnect returns the Google consent URL for a consultant.
func (s *Server) handleCalendarConnect(w http.ResponseWriter, r *http.Request) {
	if s.calendars == nil || !s.calendars.IsConfigured() {
		respondError(w, http.StatusServiceUnavailable, "Google Calendar is not configured")
		return
	}
	id, err := parseConsultantID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid consultant id")
		return
	}
	if _, err := s.db.GetConsultant(id); err != nil {
		s.respondLookupError(w, err, "consultant not found")
		return
	}

	nonce := uuid.NewString()
	authURL, err := s.calendars.AuthURL(nonce)
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, "Google Calendar is not configured")
		return
	}
	s.storeOAuthState(nonce, id)
	respondJSON(w, http.StatusOK, map[string]string{"url": authURL})
}

func (s *Server) handleCalendarDisconnect(w http.ResponseWriter, r *http.Request) {
	if s.calendars == nil {
		respondError(w, http.StatusServiceUnavailable, "Google Calendar is not configured")
		return
	}
	id, err := parseConsultantID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid consultant id")
		return
	}
	if _, err := s.db.GetConsultant(id); err != nil {
		s.respondLookupError(w, err, "consultant not found")
		return
	}
	if err := s.calendars.Disconnect(id); err != nil {
		s.logger.Error("Failed to disconnect calendar", zap.Int64("consultant_id", id), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to disconnect calendar")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "disconnected"})
}

func (s *Server) storeOAuthState(nonce string, consultantID int64) {
	now := time.Now()
	s.oauthMu.Lock()
	defer s.oauthMu.Unlock()
	for k, req := range s.oauthPending {
		if now.Sub(req.createdAt) > oauthStateTTL {
			delete(s.oauthPending, k)
		}
	}
	s.oauthPending[nonce] = oauthRequest{consultantID: consultantID, createdAt: now}
}

// takeOAuthState consumes a nonce. Each consent link works once.
func (s *Server) takeOAuthState(nonce string) (int64, bool) {
	s.oauthMu.Lock()
	defer s.oauthMu.Unlock()
	req, ok := s.oauthPending[nonce]
	if !ok {
		return 0, false
	}
	delete(s.oauthPending, nonce)
	if time.Since(req.createdAt) > oauthStateTTL {
		return 0, false
	}
	return req.consultantID, true
}

func (s *Server) handleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	if errMsg := r.URL.Query().Get("error"); errMsg != "" {
		respondError(w, http.StatusBadRequest, "authorization denied: "+errMsg)
		return
	}
	code := r.URL.Query().Get("code")
	if code == "" {
		respondError(w, http.StatusBadRequest, "missing authorization code")
		return
	}
	consultantID, ok := s.takeOAuthState(r.URL.Query().Get("state"))
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid or expired state")
		return
	}
	if s.calendars == nil {
		respondError(w, http.StatusServiceUnavailable, "Google Calendar is not configured")
		return
	}

	if err := s.calendars.Connect(r.Context(), consultantID, code); err != nil {
		if errors.Is(err, gcal.ErrNotConnected) {
			respondError(w, http.StatusServiceUnavailable, "Google Calendar is not configured")
			return
		}
		s.logger.Error("Failed to connect calendar", zap.Int64("consultant_id", consultantID), zap.Error(err))
		s.state.SetError(sse.IntegrationCalendar, "calendar authorization failed")
		respondError(w, http.StatusInternalServerError, "failed to connect calendar")
		return
	}

	s.logger.Info("Calendar connected", zap.Int64("consultant_id", consultantID))
	s.state.Set(sse.IntegrationCalendar, sse.StatusConnected)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "<html><body><p>Calendar connected. You can close this window.</p></body></html>")
}
