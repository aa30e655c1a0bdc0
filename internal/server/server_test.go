package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/consultdesk/bookingagent/internal/booking"
	"github.com/consultdesk/bookingagent/internal/database"
	"github.com/consultdesk/bookingagent/internal/gcal"
	"github.com/consultdesk/bookingagent/internal/mocks"
	"github.com/consultdesk/bookingagent/internal/processor"
	"github.com/consultdesk/bookingagent/internal/sse"
)

const testAdminToken = "secret-token"

type testEnv struct {
	db         *database.DB
	consultant *database.Consultant
	generator  *mocks.MockGenerator
	extractor  *mocks.MockExtractor
	calendar   *mocks.MockCalendar
	state      *sse.State
	server     *Server
}

func newTestEnv(t *testing.T, ratePerMinute int) *testEnv {
	t.Helper()
	db := database.NewTestDB(t)
	env := &testEnv{
		db:         db,
		consultant: database.CreateTestConsultant(t, db),
		generator:  new(mocks.MockGenerator),
		extractor:  new(mocks.MockExtractor),
		calendar:   new(mocks.MockCalendar),
		state:      sse.NewState(),
	}

	provider := new(mocks.MockCalendarProvider)
	provider.On("ForConsultant", mock.Anything, mock.Anything).Return(env.calendar, nil).Maybe()
	env.calendar.On("ListAvailableSlots", mock.Anything, mock.Anything).Return([]gcal.Slot{}, nil).Maybe()

	proc := processor.New(processor.Dependencies{
		DB:        db,
		Extractor: env.extractor,
		Executor:  booking.NewExecutor(db, provider, nil, nil, zap.NewNop()),
		Generator: env.generator,
		Calendars: provider,
		Logger:    zap.NewNop(),
	}, processor.Options{}, nil)

	env.server = New(Config{
		DB:                 db,
		Processor:          proc,
		State:              env.state,
		Logger:             zap.NewNop(),
		AdminToken:         testAdminToken,
		RateLimitPerMinute: ratePerMinute,
	})
	return env
}

func (e *testEnv) do(t *testing.T, method, path, body string, admin bool) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if admin {
		req.Header.Set("Authorization", "Bearer "+testAdminToken)
	}
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) publicConversation(t *testing.T) *database.Conversation {
	t.Helper()
	return database.CreateTestConversation(t, e.db, e.consultant.ID, database.ConversationPublic)
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

func TestHandleHealthCheck(t *testing.T) {
	env := newTestEnv(t, 0)
	env.state.Set(sse.IntegrationWhatsApp, sse.StatusConnected)

	rec := env.do(t, http.MethodGet, "/health", "", false)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	decodeBody(t, rec, &body)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, sse.StatusConnected, body["whatsapp"])
	assert.Equal(t, sse.StatusChecking, body["calendar"])
}

func TestRequireAdmin(t *testing.T) {
	env := newTestEnv(t, 0)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing token", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + testAdminToken, http.StatusUnauthorized},
		{"wrong token", "Bearer nope", http.StatusUnauthorized},
		{"valid token", "Bearer " + testAdminToken, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			env.server.Handler().ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}

	t.Run("open without configured token", func(t *testing.T) {
		srv := New(Config{DB: env.db, Logger: zap.NewNop()})
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t, 0)

	rec := env.do(t, http.MethodOptions, "/api/public/conversations/abc/messages", "", false)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestHandleCreateConversation(t *testing.T) {
	env := newTestEnv(t, 0)

	t.Run("creates public conversation", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/public/consultants/"+itoa(env.consultant.ID)+"/conversations", `{"name":"Mario"}`, false)
		require.Equal(t, http.StatusCreated, rec.Code)

		var conv database.Conversation
		decodeBody(t, rec, &conv)
		assert.NotEmpty(t, conv.ID)
		assert.Equal(t, database.ConversationPublic, conv.Kind)
		assert.Equal(t, database.OriginWeb, conv.Origin)
		assert.Equal(t, "Mario", conv.ClientName)
	})

	t.Run("empty body", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/public/consultants/"+itoa(env.consultant.ID)+"/conversations", "", false)
		assert.Equal(t, http.StatusCreated, rec.Code)
	})

	t.Run("unknown consultant", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/public/consultants/9999/conversations", "", false)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("invalid id", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/public/consultants/abc/conversations", "", false)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandlePostMessageStreamsReply(t *testing.T) {
	env := newTestEnv(t, 0)
	conv := env.publicConversation(t)
	env.extractor.On("ExtractNewBooking", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(&booking.NewBookingExtraction{}, nil)
	env.generator.On("Generate", mock.Anything, mock.Anything).Return("Ciao! Come posso aiutarti?", nil)

	rec := env.do(t, http.MethodPost, "/api/public/conversations/"+conv.ID+"/messages", `{"text":"vorrei un appuntamento"}`, false)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	assert.Contains(t, body, "data: Ciao! Come posso aiutarti?\n\n")
	assert.Contains(t, body, "event: done\n")
	assert.Contains(t, body, `"action":"NONE"`)
	assert.Contains(t, body, `"executed":false`)

	history, err := env.db.GetHistory(conv.ID, 10)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestHandlePostMessageExecutesBooking(t *testing.T) {
	env := newTestEnv(t, 0)
	conv := env.publicConversation(t)
	env.calendar.On("IsSlotFree", mock.Anything, mock.Anything, mock.Anything).Return(true, nil)
	env.calendar.On("CreateEvent", mock.Anything, mock.Anything).Return(&gcal.CreatedEvent{EventID: "evt-1"}, nil)
	env.extractor.On("ExtractNewBooking", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(&booking.NewBookingExtraction{
		HasAllData:   true,
		IsConfirming: true,
		Date:         "2030-05-11",
		Time:         "15:00",
		Email:        "mario@test.com",
		Phone:        "333123456",
	}, nil)

	rec := env.do(t, http.MethodPost, "/api/public/conversations/"+conv.ID+"/messages", `{"text":"vorrei prenotare domani alle 15, mario@test.com, 333123456"}`, false)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "11 maggio 2030 alle 15:00")
	assert.Contains(t, body, `"action":"CREATE"`)
	assert.Contains(t, body, `"executed":true`)
	env.generator.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)

	stored, err := env.db.GetConfirmedBooking(conv.Ref())
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "2030-05-11", stored.AppointmentDate)
}

func TestHandlePostMessageRejects(t *testing.T) {
	env := newTestEnv(t, 0)
	public := env.publicConversation(t)
	internal := database.CreateTestConversation(t, env.db, env.consultant.ID, database.ConversationInternal)

	tests := []struct {
		name string
		path string
		body string
		want int
	}{
		{"invalid json", public.ID, `{"text":`, http.StatusBadRequest},
		{"blank text", public.ID, `{"text":"   "}`, http.StatusBadRequest},
		{"unknown conversation", "missing", `{"text":"ciao"}`, http.StatusNotFound},
		{"internal conversation", internal.ID, `{"text":"ciao"}`, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/public/conversations/"+tt.path+"/messages", tt.body, false)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
	env.generator.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}

func TestHandlePostMessageReportsFailure(t *testing.T) {
	env := newTestEnv(t, 0)
	conv := env.publicConversation(t)
	env.extractor.On("ExtractNewBooking", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(&booking.NewBookingExtraction{}, nil)
	env.generator.On("Generate", mock.Anything, mock.Anything).Return("", assert.AnError)

	rec := env.do(t, http.MethodPost, "/api/public/conversations/"+conv.ID+"/messages", `{"text":"ciao"}`, false)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "event: error\n")
	assert.NotContains(t, rec.Body.String(), "event: done")
}

func TestHandlePostMessageRateLimited(t *testing.T) {
	env := newTestEnv(t, 1)
	conv := env.publicConversation(t)
	env.extractor.On("ExtractNewBooking", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(&booking.NewBookingExtraction{}, nil)
	env.generator.On("Generate", mock.Anything, mock.Anything).Return("Ok", nil)

	first := env.do(t, http.MethodPost, "/api/public/conversations/"+conv.ID+"/messages", `{"text":"ciao"}`, false)
	second := env.do(t, http.MethodPost, "/api/public/conversations/"+conv.ID+"/messages", `{"text":"ciao di nuovo"}`, false)

	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
}

func TestHandleGetHistory(t *testing.T) {
	env := newTestEnv(t, 0)
	conv := env.publicConversation(t)
	for _, text := range []string{"uno", "due", "tre"} {
		_, err := env.db.AppendMessage(conv.ID, database.SenderClient, text)
		require.NoError(t, err)
	}

	t.Run("limit", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/public/conversations/"+conv.ID+"/messages?limit=2", "", false)
		require.Equal(t, http.StatusOK, rec.Code)

		var body struct {
			Messages []database.ConversationMessage `json:"messages"`
		}
		decodeBody(t, rec, &body)
		require.Len(t, body.Messages, 2)
		assert.Equal(t, "due", body.Messages[0].Text)
		assert.Equal(t, "tre", body.Messages[1].Text)
	})

	t.Run("invalid limit", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/public/conversations/"+conv.ID+"/messages?limit=zero", "", false)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("empty conversation", func(t *testing.T) {
		other := env.publicConversation(t)
		rec := env.do(t, http.MethodGet, "/api/public/conversations/"+other.ID+"/messages", "", false)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"messages":[]}`, rec.Body.String())
	})
}

func TestHandleResetConversation(t *testing.T) {
	env := newTestEnv(t, 0)
	conv := env.publicConversation(t)
	require.NoError(t, env.db.SaveAccumulator(&database.ExtractionAccumulator{
		ConversationID: conv.ID,
		Date:           "2030-05-11",
	}))

	rec := env.do(t, http.MethodPost, "/api/public/conversations/"+conv.ID+"/reset", "", false)

	require.Equal(t, http.StatusOK, rec.Code)
	acc, err := env.db.GetAccumulator(conv.ID)
	require.NoError(t, err)
	assert.Nil(t, acc)
}

func TestConsultantHandlers(t *testing.T) {
	env := newTestEnv(t, 0)

	var created database.Consultant
	t.Run("create", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/consultants", `{"name":"Giulia","email":"giulia@example.com","booking_enabled":true}`, true)
		require.Equal(t, http.StatusCreated, rec.Code)
		decodeBody(t, rec, &created)
		assert.Equal(t, "Giulia", created.Name)
		assert.Equal(t, "Europe/Rome", created.Timezone)
		assert.Equal(t, 60, created.AppointmentDurationMinutes)
		assert.Equal(t, 9, created.WorkingHoursStart)
		assert.Equal(t, 18, created.WorkingHoursEnd)
	})

	t.Run("create rejects", func(t *testing.T) {
		tests := []struct {
			name string
			body string
		}{
			{"missing email", `{"name":"Giulia"}`},
			{"unknown timezone", `{"name":"Giulia","email":"g@example.com","timezone":"Mars/Olympus"}`},
			{"inverted hours", `{"name":"Giulia","email":"g@example.com","working_hours_start":18,"working_hours_end":9}`},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				rec := env.do(t, http.MethodPost, "/api/consultants", tt.body, true)
				assert.Equal(t, http.StatusBadRequest, rec.Code)
			})
		}
	})

	t.Run("get", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/consultants/"+itoa(created.ID), "", true)
		require.Equal(t, http.StatusOK, rec.Code)

		missing := env.do(t, http.MethodGet, "/api/consultants/9999", "", true)
		assert.Equal(t, http.StatusNotFound, missing.Code)
	})

	t.Run("update settings", func(t *testing.T) {
		rec := env.do(t, http.MethodPut, "/api/consultants/"+itoa(created.ID)+"/settings", `{"booking_enabled":false,"appointment_duration_minutes":30}`, true)
		require.Equal(t, http.StatusOK, rec.Code)

		var updated database.Consultant
		decodeBody(t, rec, &updated)
		assert.False(t, updated.BookingEnabled)
		assert.Equal(t, 30, updated.AppointmentDurationMinutes)
		assert.Equal(t, "Europe/Rome", updated.Timezone)

		bad := env.do(t, http.MethodPut, "/api/consultants/"+itoa(created.ID)+"/settings", `{"working_hours_end":30}`, true)
		assert.Equal(t, http.StatusBadRequest, bad.Code)
	})

	t.Run("list bookings", func(t *testing.T) {
		b := &database.Booking{
			ConsultantID:       created.ID,
			AppointmentDate:    "2030-05-11",
			AppointmentTime:    "15:00",
			AppointmentEndTime: "16:00",
			ClientEmail:        "mario@test.com",
		}
		conv := database.CreateTestConversation(t, env.db, created.ID, database.ConversationPublic)
		b.SetRef(conv.Ref())
		_, err := env.db.CreateBooking(b)
		require.NoError(t, err)

		rec := env.do(t, http.MethodGet, "/api/consultants/"+itoa(created.ID)+"/bookings?date=2030-05-11", "", true)
		require.Equal(t, http.StatusOK, rec.Code)
		var body struct {
			Bookings []database.Booking `json:"bookings"`
		}
		decodeBody(t, rec, &body)
		assert.Len(t, body.Bookings, 1)

		missingDate := env.do(t, http.MethodGet, "/api/consultants/"+itoa(created.ID)+"/bookings", "", true)
		assert.Equal(t, http.StatusBadRequest, missingDate.Code)
	})
}

func TestCalendarConnectNotConfigured(t *testing.T) {
	env := newTestEnv(t, 0)

	rec := env.do(t, http.MethodGet, "/api/consultants/"+itoa(env.consultant.ID)+"/calendar/connect", "", true)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	withManager := New(Config{DB: env.db, Calendars: gcal.NewManager(env.db, nil, zap.NewNop()), Logger: zap.NewNop()})
	rec = httptest.NewRecorder()
	withManager.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/consultants/"+itoa(env.consultant.ID)+"/calendar/connect", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestCalendarDisconnect(t *testing.T) {
	env := newTestEnv(t, 0)
	path := "/api/consultants/" + itoa(env.consultant.ID) + "/calendar"

	rec := env.do(t, http.MethodDelete, path, "", true)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	require.NoError(t, env.db.UseTokenKey("test-key"))
	require.NoError(t, env.db.SaveGoogleToken(env.consultant.ID, &oauth2.Token{AccessToken: "a", RefreshToken: "r"}, "", nil))

	srv := New(Config{DB: env.db, Calendars: gcal.NewManager(env.db, nil, zap.NewNop()), Logger: zap.NewNop()})
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, path, nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	token, err := env.db.GetGoogleToken(env.consultant.ID)
	require.NoError(t, err)
	assert.Nil(t, token)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/consultants/9999/calendar", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOAuthCallback(t *testing.T) {
	env := newTestEnv(t, 0)

	tests := []struct {
		name  string
		query string
	}{
		{"denied", "?error=access_denied"},
		{"missing code", "?state=abc"},
		{"unknown state", "?code=xyz&state=abc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodGet, "/oauth/google/callback"+tt.query, "", false)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}

	t.Run("state is single use", func(t *testing.T) {
		env.server.storeOAuthState("nonce-1", env.consultant.ID)

		id, ok := env.server.takeOAuthState("nonce-1")
		assert.True(t, ok)
		assert.Equal(t, env.consultant.ID, id)

		_, ok = env.server.takeOAuthState("nonce-1")
		assert.False(t, ok)
	})

	t.Run("expired state", func(t *testing.T) {
		env.server.oauthPending["old"] = oauthRequest{consultantID: env.consultant.ID, createdAt: time.Now().Add(-time.Hour)}
		_, ok := env.server.takeOAuthState("old")
		assert.False(t, ok)
	})
}

func TestWhatsAppPairNotConfigured(t *testing.T) {
	env := newTestEnv(t, 0)

	rec := env.do(t, http.MethodPost, "/api/whatsapp/pair", `{"phone":"+393331234567"}`, true)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandleStatusStream(t *testing.T) {
	env := newTestEnv(t, 0)
	ts := httptest.NewServer(env.server.Handler())
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/status/stream", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+testAdminToken)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	reader := bufio.NewReader(resp.Body)
	readEvent := func() (string, string) {
		var event, data string
		for {
			line, err := reader.ReadString('\n')
			require.NoError(t, err)
			line = strings.TrimSuffix(line, "\n")
			switch {
			case line == "":
				return event, data
			case strings.HasPrefix(line, "event: "):
				event = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				data = strings.TrimPrefix(line, "data: ")
			}
		}
	}

	event, data := readEvent()
	assert.Equal(t, "snapshot", event)
	assert.Contains(t, data, `"whatsapp"`)

	env.state.Set(sse.IntegrationCalendar, sse.StatusConnected)

	event, data = readEvent()
	assert.Equal(t, "status", event)
	var update sse.Update
	require.NoError(t, json.Unmarshal([]byte(data), &update))
	assert.Equal(t, sse.IntegrationCalendar, update.Integration)
	assert.Equal(t, sse.StatusConnected, update.Status.State)
}
