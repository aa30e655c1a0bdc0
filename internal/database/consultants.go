package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Consultant owns bookings and holds the per-agent booking settings.
type Consultant struct {
	ID                         int64     `json:"id"`
	Name                       string    `json:"name"`
	Email                      string    `json:"email"`
	Timezone                   string    `json:"timezone"`
	AppointmentDurationMinutes int       `json:"appointment_duration_minutes"`
	BookingEnabled             bool      `json:"booking_enabled"`
	CalendarID                 string    `json:"calendar_id"`
	WorkingHoursStart          int       `json:"working_hours_start"`
	WorkingHoursEnd            int       `json:"working_hours_end"`
	AgentPersona               string    `json:"agent_persona,omitempty"`
	CreatedAt                  time.Time `json:"created_at"`
	UpdatedAt                  time.Time `json:"updated_at"`
}

// AppointmentDuration returns the configured appointment length, defaulting to one hour.
func (c *Consultant) AppointmentDuration() time.Duration {
	if c == nil || c.AppointmentDurationMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(c.AppointmentDurationMinutes) * time.Minute
}

// CreateConsultant inserts a consultant, filling unset settings with defaults.
func (d *DB) CreateConsultant(c *Consultant) (*Consultant, error) {
	if c.Timezone == "" {
		c.Timezone = "Europe/Rome"
	}
	if c.AppointmentDurationMinutes <= 0 {
		c.AppointmentDurationMinutes = 60
	}
	if c.CalendarID == "" {
		c.CalendarID = "primary"
	}
	if c.WorkingHoursStart == 0 && c.WorkingHoursEnd == 0 {
		c.WorkingHoursStart, c.WorkingHoursEnd = 9, 18
	}

	result, err := d.Exec(`
		INSERT INTO consultants (
			name, email, timezone, appointment_duration_minutes, booking_enabled,
			calendar_id, working_hours_start, working_hours_end, agent_persona
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, c.Name, c.Email, c.Timezone, c.AppointmentDurationMinutes, c.BookingEnabled,
		c.CalendarID, c.WorkingHoursStart, c.WorkingHoursEnd, c.AgentPersona)
	if err != nil {
		return nil, fmt.Errorf("failed to create consultant: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get consultant id: %w", err)
	}

	return d.GetConsultant(id)
}

// GetConsultant retrieves a consultant by ID
func (d *DB) GetConsultant(id int64) (*Consultant, error) {
	var c Consultant
	err := d.QueryRow(`
		SELECT id, name, email, timezone, appointment_duration_minutes, booking_enabled,
			calendar_id, working_hours_start, working_hours_end, agent_persona, created_at, updated_at
		FROM consultants WHERE id = ?
	`, id).Scan(
		&c.ID, &c.Name, &c.Email, &c.Timezone, &c.AppointmentDurationMinutes, &c.BookingEnabled,
		&c.CalendarID, &c.WorkingHoursStart, &c.WorkingHoursEnd, &c.AgentPersona, &c.CreatedAt, &c.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("consultant %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get consultant: %w", err)
	}
	return &c, nil
}

// UpdateConsultantSettings persists the booking settings of c.
func (d *DB) UpdateConsultantSettings(c *Consultant) error {
	_, err := d.Exec(`
		UPDATE consultants SET
			timezone = ?, appointment_duration_minutes = ?, booking_enabled = ?,
			calendar_id = ?, working_hours_start = ?, working_hours_end = ?,
			agent_persona = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, c.Timezone, c.AppointmentDurationMinutes, c.BookingEnabled,
		c.CalendarID, c.WorkingHoursStart, c.WorkingHoursEnd, c.AgentPersona, c.ID)
	if err != nil {
		return fmt.Errorf("failed to update consultant settings: %w", err)
	}
	return nil
}
