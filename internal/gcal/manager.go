package gcal

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/consultdesk/bookingagent/internal/database"
)

// Manager hands out one calendar client per consultant, built from the
// consultant's stored OAuth token.
type Manager struct {
	db     *database.DB
	config *oauth2.Config
	logger *zap.Logger

	mu      sync.RWMutex
	clients map[int64]*Client
}

// NewManager creates a manager. A nil config means no consultant can connect.
func NewManager(db *database.DB, config *oauth2.Config, logger *zap.Logger) *Manager {
	return &Manager{
		db:      db,
		config:  config,
		logger:  logger,
		clients: make(map[int64]*Client),
	}
}

// IsConfigured reports whether Google OAuth credentials were loaded.
func (m *Manager) IsConfigured() bool {
	return m.config != nil
}

// ForConsultant returns the consultant's calendar client, or ErrNotConnected.
func (m *Manager) ForConsultant(ctx context.Context, consultant *database.Consultant) (*Client, error) {
	if m.config == nil {
		return nil, ErrNotConnected
	}

	m.mu.RLock()
	client, exists := m.clients[consultant.ID]
	m.mu.RUnlock()
	if exists {
		return client, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Check again inside lock to prevent race condition
	if client, exists := m.clients[consultant.ID]; exists {
		return client, nil
	}

	token, err := m.db.GetGoogleToken(consultant.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load google token for consultant %d: %w", consultant.ID, err)
	}
	if token == nil {
		return nil, ErrNotConnected
	}

	consultantID := consultant.ID
	client, err = NewClient(context.Background(), m.config, token, consultant.CalendarID, func(refreshed *oauth2.Token) {
		if err := m.db.UpdateGoogleToken(consultantID, refreshed); err != nil {
			m.logger.Warn("could not save refreshed google token",
				zap.Int64("consultant_id", consultantID), zap.Error(err))
		}
	})
	if err != nil {
		return nil, err
	}

	m.clients[consultant.ID] = client
	m.logger.Info("calendar client created", zap.Int64("consultant_id", consultant.ID))
	return client, nil
}

// Invalidate drops a cached client, e.g. after the consultant reconnects.
func (m *Manager) Invalidate(consultantID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.clients, consultantID)
}

// Disconnect forgets the consultant's grant. Bookings keep their event ids
// but no calendar call is made for them until the consultant reconnects.
func (m *Manager) Disconnect(consultantID int64) error {
	if err := m.db.DeleteGoogleToken(consultantID); err != nil {
		return err
	}
	m.Invalidate(consultantID)
	m.logger.Info("calendar disconnected", zap.Int64("consultant_id", consultantID))
	return nil
}

// AuthURL returns the consent URL a consultant opens to connect a calendar.
func (m *Manager) AuthURL(state string) (string, error) {
	if m.config == nil {
		return "", ErrNotConnected
	}
	return m.config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce), nil
}

// Connect exchanges an authorization code and stores the consultant's token.
func (m *Manager) Connect(ctx context.Context, consultantID int64, code string) error {
	if m.config == nil {
		return ErrNotConnected
	}

	token, err := m.config.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("failed to exchange code for token: %w", err)
	}

	consultant, err := m.db.GetConsultant(consultantID)
	if err != nil {
		return err
	}
	if err := m.db.SaveGoogleToken(consultantID, token, consultant.Email, m.config.Scopes); err != nil {
		return err
	}

	m.Invalidate(consultantID)
	return nil
}
