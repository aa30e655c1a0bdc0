package extractor

import (
	"bytes"
	"fmt"
	"time"

	"github.com/consultdesk/bookingagent/internal/booking"
	"github.com/consultdesk/bookingagent/internal/database"
	"github.com/consultdesk/bookingagent/internal/timeutil"
)

// ModificationSystemPrompt drives intent detection for clients with a confirmed appointment
const ModificationSystemPrompt = `You analyze a chat between a consultant's booking assistant and a client.
The client already has a confirmed appointment. Conversations are usually in Italian.

Call report_booking_intent exactly once.

## Intents

- MODIFY: the client wants to move the appointment ("spostiamo a venerdì", "si può fare alle 11?").
  Fill new_date and/or new_time with the requested values, leaving unchanged parts empty.
- CANCEL: the client wants to cancel ("annulla", "disdico", "non posso più venire").
- ADD_ATTENDEES: the client asks to invite other people and gives their email addresses.
- NONE: anything else, including questions about the appointment.

## Counting confirmations

confirmed_times counts distinct client messages that explicitly affirmed the SAME pending
request ("sì", "confermo", "va bene", "ok procedi") after the assistant asked for confirmation.
The message that first states the request is not a confirmation. A new or different request
resets the count to 0. If a request was already executed (the assistant announced it with ✅)
and the client did not ask again, answer NONE.`

// NewBookingSystemPrompt drives data accumulation for clients without an appointment
const NewBookingSystemPrompt = `You analyze a chat between a consultant's booking assistant and a prospective client
who has no appointment yet. Conversations are usually in Italian.

Call report_booking_data exactly once with every booking detail known so far.

## Rules

- Dates are YYYY-MM-DD, times HH:MM in 24h format, both in the consultant's timezone.
- Resolve relative expressions ("domani", "dopodomani", "lunedì prossimo") using the current date.
- Keep previously collected data unless the client changed it.
- is_confirming is true only when the assistant already proposed a recap with date, time and email
  and the latest client message accepts it ("sì", "confermo", "perfetto, prenota").`

// RelevanceSystemPrompt drives the lightweight pre-filter classifier
const RelevanceSystemPrompt = `You decide whether one client message could act on the client's existing appointment.
Call classify_booking_relevance exactly once.`

func writeHistory(prompt *bytes.Buffer, history []database.ConversationMessage) {
	prompt.WriteString("## Conversation (oldest first)\n\n")
	if len(history) == 0 {
		prompt.WriteString("No messages.\n")
		return
	}
	for _, msg := range history {
		speaker := "Client"
		if msg.Sender == database.SenderAI {
			speaker = "Assistant"
		}
		prompt.WriteString(fmt.Sprintf("[%s] %s: %s\n", msg.CreatedAt.Format("2006-01-02 15:04"), speaker, msg.Text))
	}
}

func writeNow(prompt *bytes.Buffer, now time.Time) {
	prompt.WriteString("\n## Current Date/Time Reference\n\n")
	prompt.WriteString(fmt.Sprintf("Current time: %s (%s), %s\n",
		now.Format("2006-01-02 15:04 Monday"), now.Location().String(), timeutil.FormatItalianDate(now)))
}

func buildModificationPrompt(history []database.ConversationMessage, existing booking.ExistingBooking, now time.Time) string {
	var prompt bytes.Buffer
	writeHistory(&prompt, history)

	prompt.WriteString("\n## Confirmed Appointment\n\n")
	prompt.WriteString(fmt.Sprintf("Date: %s\nTime: %s\nEmail: %s\n", existing.Date, existing.Time, existing.Email))
	if existing.Phone != "" {
		prompt.WriteString(fmt.Sprintf("Phone: %s\n", existing.Phone))
	}
	if existing.ExternalEventID != "" {
		prompt.WriteString("Calendar event: yes\n")
	} else {
		prompt.WriteString("Calendar event: none\n")
	}

	writeNow(&prompt, now)
	prompt.WriteString("\nReport the client's intent for the latest message.")
	return prompt.String()
}

func buildNewBookingPrompt(history []database.ConversationMessage, acc *database.ExtractionAccumulator, now time.Time) string {
	var prompt bytes.Buffer
	writeHistory(&prompt, history)

	if !acc.IsEmpty() {
		prompt.WriteString("\n## Already Collected\n\n")
		for _, field := range []struct{ name, value string }{
			{"date", acc.Date},
			{"time", acc.Time},
			{"email", acc.Email},
			{"phone", acc.Phone},
			{"name", acc.Name},
		} {
			if field.value != "" {
				prompt.WriteString(fmt.Sprintf("- %s: %s\n", field.name, field.value))
			}
		}
	}

	writeNow(&prompt, now)
	prompt.WriteString("\nReport the booking data known after the latest message.")
	return prompt.String()
}
