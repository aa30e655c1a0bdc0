package gcal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

func newTestClient(t *testing.T, mux *http.ServeMux) *Client {
	t.Helper()

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	client, err := NewClientWithOptions(context.Background(), "primary",
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)
	return client
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func TestCreateEventWithMeet(t *testing.T) {
	mux := http.NewServeMux()
	var received map[string]any
	mux.HandleFunc("POST /calendars/primary/events", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1", r.URL.Query().Get("conferenceDataVersion"))
		assert.Equal(t, "all", r.URL.Query().Get("sendUpdates"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		writeJSON(w, http.StatusOK, map[string]any{
			"id":          "evt-123",
			"hangoutLink": "https://meet.google.com/abc-defg-hij",
		})
	})

	client := newTestClient(t, mux)
	start := time.Date(2030, 5, 10, 15, 0, 0, 0, time.UTC)

	created, err := client.CreateEvent(context.Background(), EventInput{
		Summary:   "Consulenza",
		StartTime: start,
		EndTime:   start.Add(time.Hour),
		Timezone:  "Europe/Rome",
		Attendees: []string{"mario@test.com"},
		WithMeet:  true,
	})
	require.NoError(t, err)
	assert.Equal(t, "evt-123", created.EventID)
	assert.Equal(t, "https://meet.google.com/abc-defg-hij", created.MeetLink)

	conference, ok := received["conferenceData"].(map[string]any)
	require.True(t, ok)
	assert.NotNil(t, conference["createRequest"])
}

func TestDeleteEventNotFound(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("DELETE /calendars/primary/events/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") == "gone" {
			writeJSON(w, http.StatusGone, map[string]any{"error": map[string]any{"code": 410, "message": "Resource has been deleted"}})
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	client := newTestClient(t, mux)

	require.NoError(t, client.DeleteEvent(context.Background(), "evt-1"))

	err := client.DeleteEvent(context.Background(), "gone")
	assert.True(t, IsEventNotFound(err))
}

func TestAddAttendeesSkipsInvited(t *testing.T) {
	mux := http.NewServeMux()
	var patched map[string]any
	mux.HandleFunc("GET /calendars/primary/events/evt-1", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"id":        "evt-1",
			"status":    "confirmed",
			"attendees": []map[string]any{{"email": "mario@test.com"}},
		})
	})
	mux.HandleFunc("PATCH /calendars/primary/events/evt-1", func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&patched))
		writeJSON(w, http.StatusOK, map[string]any{"id": "evt-1"})
	})

	client := newTestClient(t, mux)

	result, err := client.AddAttendees(context.Background(), "evt-1", []string{"MARIO@test.com", "anna@test.com"})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Added)
	assert.Equal(t, 1, result.Skipped)

	attendees, ok := patched["attendees"].([]any)
	require.True(t, ok)
	assert.Len(t, attendees, 2)
}

func TestIsSlotFree(t *testing.T) {
	start := time.Date(2030, 5, 10, 10, 0, 0, 0, time.UTC)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /freeBusy", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"calendars": map[string]any{
				"primary": map[string]any{
					"busy": []map[string]any{{
						"start": start.Add(30 * time.Minute).Format(time.RFC3339),
						"end":   start.Add(90 * time.Minute).Format(time.RFC3339),
					}},
				},
			},
		})
	})

	client := newTestClient(t, mux)

	free, err := client.IsSlotFree(context.Background(), start, start.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, free)

	free, err = client.IsSlotFree(context.Background(), start.Add(2*time.Hour), start.Add(3*time.Hour))
	require.NoError(t, err)
	assert.True(t, free)
}
