package gcal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
)

var ErrEventNotFound = errors.New("google calendar event not found")

// IsEventNotFound returns true when a Google Calendar event no longer exists.
func IsEventNotFound(err error) bool {
	return errors.Is(err, ErrEventNotFound)
}

// EventInput represents the input for creating a booking event
type EventInput struct {
	Summary     string
	Description string
	StartTime   time.Time
	EndTime     time.Time
	Timezone    string
	Attendees   []string // Email addresses of attendees
	WithMeet    bool
}

// CreatedEvent is the result of a successful insert.
type CreatedEvent struct {
	EventID  string
	MeetLink string
}

// AttendeesResult reports how many requested addresses were actually added.
type AttendeesResult struct {
	Added   int
	Skipped int
}

func eventDateTime(t time.Time, tz string) *calendar.EventDateTime {
	return &calendar.EventDateTime{
		DateTime: t.Format(time.RFC3339),
		TimeZone: tz,
	}
}

func wrapNotFound(err error, action string) error {
	var gErr *googleapi.Error
	if errors.As(err, &gErr) && (gErr.Code == http.StatusNotFound || gErr.Code == http.StatusGone) {
		return ErrEventNotFound
	}
	return fmt.Errorf("failed to %s: %w", action, err)
}

// CreateEvent inserts the booking event and, when requested, a Google Meet conference.
func (c *Client) CreateEvent(ctx context.Context, input EventInput) (*CreatedEvent, error) {
	event := &calendar.Event{
		Summary:     input.Summary,
		Description: input.Description,
		Start:       eventDateTime(input.StartTime, input.Timezone),
		End:         eventDateTime(input.EndTime, input.Timezone),
	}

	if len(input.Attendees) > 0 {
		attendees := make([]*calendar.EventAttendee, len(input.Attendees))
		for i, email := range input.Attendees {
			attendees[i] = &calendar.EventAttendee{Email: email}
		}
		event.Attendees = attendees
	}

	call := c.service.Events.Insert(c.calendarID, event).SendUpdates("all").Context(ctx)
	if input.WithMeet {
		event.ConferenceData = &calendar.ConferenceData{
			CreateRequest: &calendar.CreateConferenceRequest{
				RequestId:             uuid.NewString(),
				ConferenceSolutionKey: &calendar.ConferenceSolutionKey{Type: "hangoutsMeet"},
			},
		}
		call = call.ConferenceDataVersion(1)
	}

	created, err := call.Do()
	if err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}

	return &CreatedEvent{EventID: created.Id, MeetLink: meetLink(created)}, nil
}

func meetLink(event *calendar.Event) string {
	if event.HangoutLink != "" {
		return event.HangoutLink
	}
	if event.ConferenceData == nil {
		return ""
	}
	for _, entry := range event.ConferenceData.EntryPoints {
		if entry != nil && entry.EntryPointType == "video" {
			return entry.Uri
		}
	}
	return ""
}

// UpdateEvent moves an event to a new start, keeping everything else.
func (c *Client) UpdateEvent(ctx context.Context, eventID string, start time.Time, duration time.Duration, tz string) error {
	if eventID == "" {
		return fmt.Errorf("event id is required")
	}

	patch := &calendar.Event{
		Start: eventDateTime(start, tz),
		End:   eventDateTime(start.Add(duration), tz),
	}

	_, err := c.service.Events.Patch(c.calendarID, eventID, patch).SendUpdates("all").Context(ctx).Do()
	if err != nil {
		return wrapNotFound(err, "update event")
	}
	return nil
}

// DeleteEvent deletes an event from Google Calendar
func (c *Client) DeleteEvent(ctx context.Context, eventID string) error {
	if eventID == "" {
		return fmt.Errorf("event id is required")
	}

	err := c.service.Events.Delete(c.calendarID, eventID).SendUpdates("all").Context(ctx).Do()
	if err != nil {
		return wrapNotFound(err, "delete event")
	}
	return nil
}

// AddAttendees invites the given addresses, skipping those already on the event.
func (c *Client) AddAttendees(ctx context.Context, eventID string, emails []string) (*AttendeesResult, error) {
	item, err := c.service.Events.Get(c.calendarID, eventID).Context(ctx).Do()
	if err != nil {
		return nil, wrapNotFound(err, "get event")
	}
	if item.Status == "cancelled" {
		return nil, ErrEventNotFound
	}

	invited := make(map[string]bool, len(item.Attendees))
	for _, attendee := range item.Attendees {
		if attendee != nil {
			invited[strings.ToLower(attendee.Email)] = true
		}
	}

	result := &AttendeesResult{}
	attendees := item.Attendees
	for _, email := range emails {
		key := strings.ToLower(strings.TrimSpace(email))
		if key == "" {
			continue
		}
		if invited[key] {
			result.Skipped++
			continue
		}
		invited[key] = true
		attendees = append(attendees, &calendar.EventAttendee{Email: strings.TrimSpace(email)})
		result.Added++
	}

	if result.Added == 0 {
		return result, nil
	}

	_, err = c.service.Events.Patch(c.calendarID, eventID, &calendar.Event{Attendees: attendees}).
		SendUpdates("all").
		Context(ctx).
		Do()
	if err != nil {
		return nil, wrapNotFound(err, "add attendees")
	}
	return result, nil
}
