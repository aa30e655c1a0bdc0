package notify

import (
	"context"
	"fmt"
	"html"

	"github.com/resend/resend-go/v2"

	"github.com/consultdesk/bookingagent/internal/timeutil"
)

// ResendNotifier sends email notifications via Resend API
type ResendNotifier struct {
	client      *resend.Client
	fromAddress string
}

// NewResendNotifier creates a new Resend email notifier
func NewResendNotifier(apiKey, from string) *ResendNotifier {
	if apiKey == "" {
		return nil
	}
	return &ResendNotifier{
		client:      resend.NewClient(apiKey),
		fromAddress: from,
	}
}

// IsConfigured returns true if the notifier has server-side config
func (r *ResendNotifier) IsConfigured() bool {
	return r != nil && r.client != nil && r.fromAddress != ""
}

// Send emails the booking confirmation to the client
func (r *ResendNotifier) Send(_ context.Context, c Confirmation) error {
	if c.Booking == nil || c.Booking.ClientEmail == "" {
		return fmt.Errorf("no recipient specified")
	}

	params := &resend.SendEmailRequest{
		From:    r.fromAddress,
		To:      []string{c.Booking.ClientEmail},
		Subject: confirmationSubject(c),
		Html:    formatConfirmationHTML(c),
	}

	if _, err := r.client.Emails.Send(params); err != nil {
		return fmt.Errorf("resend send failed: %w", err)
	}
	return nil
}

// Name returns the notifier name
func (r *ResendNotifier) Name() string {
	return "resend"
}

func confirmationSubject(c Confirmation) string {
	return fmt.Sprintf("Appuntamento confermato: %s alle %s",
		timeutil.HumanDate(c.Booking.AppointmentDate), c.Booking.AppointmentTime)
}

// formatConfirmationHTML creates the HTML email body
func formatConfirmationHTML(c Confirmation) string {
	b := c.Booking

	consultantName := "il tuo consulente"
	if c.Consultant != nil && c.Consultant.Name != "" {
		consultantName = c.Consultant.Name
	}

	greeting := "Ciao,"
	if b.ClientName != "" {
		greeting = fmt.Sprintf("Ciao %s,", html.EscapeString(b.ClientName))
	}

	meetHTML := ""
	if c.MeetLink != "" {
		meetHTML = fmt.Sprintf(`<a href="%s" style="display: inline-block; background: #1a73e8; color: white; padding: 12px 24px; text-decoration: none; border-radius: 6px; margin-top: 16px; font-weight: 500;">
      Partecipa con Google Meet
    </a>`, html.EscapeString(c.MeetLink))
	}

	return fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
</head>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, 'Helvetica Neue', Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px; background-color: #f5f5f5;">
  <div style="background-color: white; border-radius: 8px; padding: 24px; box-shadow: 0 2px 4px rgba(0,0,0,0.1);">
    <p style="margin: 0 0 16px 0; color: #333;">%s</p>
    <h2 style="margin: 0 0 16px 0; color: #333;">Il tuo appuntamento con %s è confermato</h2>

    <div style="background: #f8f9fa; padding: 16px; border-radius: 8px; margin: 16px 0; border-left: 4px solid #28a745;">
      <p style="margin: 8px 0;"><strong>Data:</strong> %s</p>
      <p style="margin: 8px 0;"><strong>Orario:</strong> %s - %s</p>
    </div>

    %s

    <hr style="margin-top: 32px; border: none; border-top: 1px solid #eee;">
    <p style="color: #999; font-size: 12px; margin-top: 16px;">
      Per spostare o annullare l'appuntamento rispondi nella stessa conversazione.
    </p>
  </div>
</body>
</html>`,
		greeting,
		html.EscapeString(consultantName),
		timeutil.HumanDate(b.AppointmentDate),
		b.AppointmentTime,
		b.AppointmentEndTime,
		meetHTML,
	)
}
