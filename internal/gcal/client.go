package gcal

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/oauth2"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// ErrNotConnected means the consultant has not connected a Google Calendar.
var ErrNotConnected = errors.New("google calendar not connected")

// Client wraps the Google Calendar API for a single consultant calendar.
type Client struct {
	service    *calendar.Service
	calendarID string
}

// NewClient creates a calendar client authorized with the consultant's token.
// onRefresh is called whenever the token source hands out a new token.
func NewClient(ctx context.Context, config *oauth2.Config, token *oauth2.Token, calendarID string, onRefresh func(*oauth2.Token)) (*Client, error) {
	if token == nil {
		return nil, ErrNotConnected
	}

	source := &persistingTokenSource{
		base:      config.TokenSource(ctx, token),
		last:      token.AccessToken,
		onRefresh: onRefresh,
	}
	httpClient := oauth2.NewClient(ctx, oauth2.ReuseTokenSource(token, source))

	return NewClientWithOptions(ctx, calendarID, option.WithHTTPClient(httpClient))
}

// NewClientWithOptions builds a client from raw API options.
func NewClientWithOptions(ctx context.Context, calendarID string, opts ...option.ClientOption) (*Client, error) {
	service, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}

	if calendarID == "" {
		calendarID = "primary"
	}

	return &Client{service: service, calendarID: calendarID}, nil
}

// CalendarID returns the calendar this client writes to.
func (c *Client) CalendarID() string {
	return c.calendarID
}

// persistingTokenSource reports refreshed tokens so they can be stored.
type persistingTokenSource struct {
	base      oauth2.TokenSource
	onRefresh func(*oauth2.Token)

	mu   sync.Mutex
	last string
}

func (s *persistingTokenSource) Token() (*oauth2.Token, error) {
	token, err := s.base.Token()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	changed := token.AccessToken != s.last
	s.last = token.AccessToken
	s.mu.Unlock()

	if changed && s.onRefresh != nil {
		s.onRefresh(token)
	}
	return token, nil
}
