package gcal

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/api/calendar/v3"
)

// Busy returns the busy intervals of the client's calendar within [from, to).
func (c *Client) Busy(ctx context.Context, from, to time.Time) ([]Slot, error) {
	if !to.After(from) {
		return nil, fmt.Errorf("invalid range: end is not after start")
	}

	resp, err := c.service.Freebusy.Query(&calendar.FreeBusyRequest{
		TimeMin: from.Format(time.RFC3339),
		TimeMax: to.Format(time.RFC3339),
		Items:   []*calendar.FreeBusyRequestItem{{Id: c.calendarID}},
	}).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to query free/busy: %w", err)
	}

	var busy []Slot
	for id, cal := range resp.Calendars {
		if len(cal.Errors) > 0 {
			return nil, fmt.Errorf("free/busy error for calendar %s: %s", id, cal.Errors[0].Reason)
		}
		for _, period := range cal.Busy {
			if period == nil {
				continue
			}
			start, err := time.Parse(time.RFC3339, period.Start)
			if err != nil {
				continue
			}
			end, err := time.Parse(time.RFC3339, period.End)
			if err != nil {
				continue
			}
			busy = append(busy, Slot{Start: start, End: end})
		}
	}
	return busy, nil
}

// IsSlotFree reports whether nothing on the calendar overlaps [start, end).
func (c *Client) IsSlotFree(ctx context.Context, start, end time.Time) (bool, error) {
	busy, err := c.Busy(ctx, start, end)
	if err != nil {
		return false, err
	}
	return !overlapsAny(Slot{Start: start, End: end}, busy), nil
}

// ListAvailableSlots returns free slots matching the query.
func (c *Client) ListAvailableSlots(ctx context.Context, q SlotQuery) ([]Slot, error) {
	busy, err := c.Busy(ctx, q.From, q.To)
	if err != nil {
		return nil, err
	}
	return FindFreeSlots(q, busy), nil
}
