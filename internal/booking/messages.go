package booking

import (
	"fmt"
	"strings"

	"github.com/consultdesk/bookingagent/internal/timeutil"
)

// calendarWarningSuffix is appended whenever a calendar change could not be applied.
const calendarWarningSuffix = "\n\n⚠️ Non sono riuscito ad aggiornare il calendario: il consulente verificherà manualmente l'invito."

const (
	cancelSucceededTemplate = "✅ Il tuo appuntamento di %s alle %s è stato annullato. Se vorrai fissarne un altro, scrivimi pure."
	cancelCalendarFailed    = "⚠️ Il tuo appuntamento di %s alle %s è stato annullato, ma non sono riuscito a rimuoverlo dal calendario. Controlla il tuo calendario e, se l'evento è ancora presente, eliminalo manualmente."
)

func createdMessage(date, clock string, durationMinutes int, email, meetLink string, calendarFailed bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "✅ Appuntamento confermato per %s alle %s (durata %d minuti).", timeutil.HumanDate(date), clock, durationMinutes)
	if meetLink != "" {
		fmt.Fprintf(&b, "\n\n🔗 Link per la videochiamata: %s", meetLink)
	} else {
		fmt.Fprintf(&b, "\n\nRiceverai i dettagli all'indirizzo %s.", email)
	}
	if calendarFailed {
		b.WriteString(calendarWarningSuffix)
	}
	return b.String()
}

func modifiedMessage(date, clock string, hasEvent, calendarFailed bool) string {
	msg := fmt.Sprintf("✅ Appuntamento spostato a %s alle %s.", timeutil.HumanDate(date), clock)
	switch {
	case calendarFailed:
		msg += calendarWarningSuffix
	case hasEvent:
		msg += " L'invito nel calendario è stato aggiornato."
	}
	return msg
}

func cancelledMessage(date, clock string, calendarFailed bool) string {
	if calendarFailed {
		return fmt.Sprintf(cancelCalendarFailed, timeutil.HumanDate(date), clock)
	}
	return fmt.Sprintf(cancelSucceededTemplate, timeutil.HumanDate(date), clock)
}

func attendeesMessage(attendees []string, added int, calendarFailed bool) string {
	if calendarFailed {
		return fmt.Sprintf("Ho preso nota di invitare %s all'appuntamento.", strings.Join(attendees, ", ")) + calendarWarningSuffix
	}
	if added == 0 {
		return "ℹ️ Tutte le persone indicate erano già invitate all'appuntamento, non è stato necessario modificare nulla."
	}
	if added == 1 {
		return fmt.Sprintf("✅ Ho aggiunto 1 partecipante all'appuntamento (%s). Riceverà l'invito nel calendario.", strings.Join(attendees, ", "))
	}
	return fmt.Sprintf("✅ Ho aggiunto %d partecipanti all'appuntamento (%s). Riceveranno l'invito nel calendario.", added, strings.Join(attendees, ", "))
}
