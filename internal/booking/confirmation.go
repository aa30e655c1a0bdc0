package booking

import (
	"fmt"
	"strings"

	"github.com/consultdesk/bookingagent/internal/timeutil"
)

// RequiredConfirmations returns how many affirming client turns an intent
// needs before it may execute.
func RequiredConfirmations(i Intent) int {
	switch i {
	case IntentCreate, IntentModify:
		return 1
	case IntentCancel:
		return 2
	case IntentAddAttendees:
		return 0
	default:
		return 0
	}
}

// PendingModificationContext is handed to the reply generator for the next
// turn when an action still lacks confirmations. It is rebuilt every turn.
type PendingModificationContext struct {
	Intent                Intent
	Action                Action
	Booking               ExistingBooking
	ConfirmedTimes        int
	RequiredConfirmations int
}

// Decision is the outcome of the confirmation check.
type Decision struct {
	Cleared bool
	Pending *PendingModificationContext
}

// EvaluateConfirmation clears action when confirmedTimes reaches the
// required count; otherwise it returns the pending context.
func EvaluateConfirmation(action Action, confirmedTimes int, existing ExistingBooking) Decision {
	required := RequiredConfirmations(action.Intent())
	if confirmedTimes >= required {
		return Decision{Cleared: true}
	}
	return Decision{Pending: &PendingModificationContext{
		Intent:                action.Intent(),
		Action:                action,
		Booking:               existing,
		ConfirmedTimes:        confirmedTimes,
		RequiredConfirmations: required,
	}}
}

const notDoneYet = "NON dire che l'operazione è già stata eseguita: nulla è cambiato finché il cliente non conferma."

// Instructions renders the scripted framing the reply must follow.
func (p *PendingModificationContext) Instructions() string {
	if p == nil {
		return ""
	}

	current := describeSlot(p.Booking.Date, p.Booking.Time)
	var b strings.Builder

	switch a := p.Action.(type) {
	case ModifyAction:
		target := describeSlot(valueOr(a.NewDate, p.Booking.Date), valueOr(a.NewTime, p.Booking.Time))
		b.WriteString("Il cliente vuole spostare l'appuntamento.\n")
		fmt.Fprintf(&b, "Appuntamento attuale: %s.\nNuovo orario richiesto: %s.\n", current, target)
		b.WriteString("Riepiloga la nuova data e il nuovo orario e chiedi una conferma esplicita (sì o no).\n")

	case CancelAction:
		fmt.Fprintf(&b, "Il cliente vuole annullare l'appuntamento di %s.\n", current)
		if p.ConfirmedTimes == 0 {
			b.WriteString("Rispondi con empatia. Ricorda gli obiettivi e le difficoltà che il cliente ha condiviso in questa conversazione ")
			b.WriteString("e perché l'incontro può aiutarlo, poi chiedi se desidera davvero annullare o preferisce spostarlo.\n")
		} else {
			b.WriteString("Il cliente ha già espresso una volta la volontà di annullare. ")
			b.WriteString("Chiedi una conferma finale, breve e diretta: \"Confermi di voler annullare definitivamente l'appuntamento?\"\n")
		}

	case CreateAction:
		fmt.Fprintf(&b, "Il cliente ha fornito i dati per prenotare %s (email: %s).\n", describeSlot(a.Date, a.Time), valueOr(a.Email, "non indicata"))
		b.WriteString("Riepiloga data, orario ed email e chiedi una conferma esplicita prima di prenotare.\n")

	case AddAttendeesAction:
		fmt.Fprintf(&b, "Il cliente vuole invitare: %s. Chiedi conferma.\n", strings.Join(a.Attendees, ", "))
	}

	fmt.Fprintf(&b, "Conferme ricevute: %d su %d.\n", p.ConfirmedTimes, p.RequiredConfirmations)
	b.WriteString(notDoneYet)
	return b.String()
}

func describeSlot(date, clock string) string {
	if date == "" && clock == "" {
		return "data da definire"
	}
	if clock == "" {
		return timeutil.HumanDate(date)
	}
	if date == "" {
		return "alle " + clock
	}
	return fmt.Sprintf("%s alle %s", timeutil.HumanDate(date), clock)
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
