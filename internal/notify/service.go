package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/consultdesk/bookingagent/internal/database"
)

// Result reports the outcome of a best-effort notification.
type Result struct {
	Success      bool
	ErrorMessage string
}

// Service sends booking notifications. Errors are logged and reported in
// the Result; they never fail the caller.
type Service struct {
	emailNotifier Notifier
	logger        *zap.Logger
}

// NewService creates a notification service
func NewService(emailNotifier Notifier, logger *zap.Logger) *Service {
	return &Service{
		emailNotifier: emailNotifier,
		logger:        logger,
	}
}

// SendConfirmationEmail emails the client a confirmation for booking.
func (s *Service) SendConfirmationEmail(ctx context.Context, consultant *database.Consultant, booking *database.Booking, meetLink string) Result {
	if !s.IsEmailAvailable() {
		return Result{ErrorMessage: "email notifier not configured"}
	}
	if booking.ClientEmail == "" {
		return Result{ErrorMessage: "booking has no client email"}
	}

	err := s.emailNotifier.Send(ctx, Confirmation{
		Booking:    booking,
		Consultant: consultant,
		MeetLink:   meetLink,
	})
	if err != nil {
		s.logger.Warn("confirmation email failed",
			zap.Int64("booking_id", booking.ID),
			zap.String("notifier", s.emailNotifier.Name()),
			zap.Error(err))
		return Result{ErrorMessage: err.Error()}
	}

	s.logger.Info("confirmation email sent", zap.Int64("booking_id", booking.ID))
	return Result{Success: true}
}

// IsEmailAvailable returns true if email notifications can be used
func (s *Service) IsEmailAvailable() bool {
	return s != nil && s.emailNotifier != nil && s.emailNotifier.IsConfigured()
}
