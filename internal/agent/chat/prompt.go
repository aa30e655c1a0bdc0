package chat

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/consultdesk/bookingagent/internal/booking"
	"github.com/consultdesk/bookingagent/internal/database"
	"github.com/consultdesk/bookingagent/internal/gcal"
	"github.com/consultdesk/bookingagent/internal/timeutil"
)

const defaultPersona = `Sei l'assistente virtuale di %s, un consulente. Rispondi in italiano, con tono cordiale e professionale,
in messaggi brevi adatti a una chat. Aiuti i clienti a capire i servizi del consulente e a fissare
una consulenza. Non inventare prezzi, disponibilità o informazioni che non conosci.`

const bookingRules = `Per prenotare servono data, orario ed email del cliente (e il numero di telefono se il cliente scrive da WhatsApp).
Chiedi un dato alla volta solo se manca. Quando hai tutto, riepiloga data, orario ed email e chiedi una conferma esplicita.
Non dire mai che un appuntamento è prenotato, spostato o annullato: lo comunica il sistema con un messaggio dedicato.`

// Request is everything the reply generator needs for one turn.
type Request struct {
	Consultant   *database.Consultant
	Conversation *database.Conversation

	// History ends with the client message being answered.
	History []database.ConversationMessage

	Booking     *database.Booking
	Pending     *booking.PendingModificationContext
	Slots       []gcal.Slot
	Accumulated *database.ExtractionAccumulator

	// Clarification explains why a booking attempt this turn did not go through.
	Clarification string

	Now time.Time
}

// BuildSystemPrompt assembles the persona and the booking context for one turn.
func BuildSystemPrompt(req Request) string {
	var prompt bytes.Buffer

	name := "il consulente"
	if req.Consultant != nil && req.Consultant.Name != "" {
		name = req.Consultant.Name
	}
	if req.Consultant != nil && strings.TrimSpace(req.Consultant.AgentPersona) != "" {
		prompt.WriteString(strings.TrimSpace(req.Consultant.AgentPersona))
	} else {
		prompt.WriteString(fmt.Sprintf(defaultPersona, name))
	}
	prompt.WriteString("\n\n## Prenotazioni\n\n")
	prompt.WriteString(bookingRules + "\n")

	loc, _ := timeutil.ResolveLocation(consultantTimezone(req.Consultant))
	now := req.Now
	if now.IsZero() {
		now = time.Now()
	}
	now = now.In(loc)
	prompt.WriteString("\n## Data e ora attuali\n\n")
	prompt.WriteString(fmt.Sprintf("%s, ore %s (fuso orario %s)\n", timeutil.FormatItalianDate(now), now.Format(timeutil.ClockLayout), loc.String()))

	if req.Booking != nil {
		prompt.WriteString("\n## Appuntamento confermato\n\n")
		prompt.WriteString(fmt.Sprintf("Il cliente ha già un appuntamento %s alle %s.\n",
			timeutil.HumanDate(req.Booking.AppointmentDate), req.Booking.AppointmentTime))
		if req.Booking.MeetLink != "" {
			prompt.WriteString(fmt.Sprintf("Link della videochiamata: %s\n", req.Booking.MeetLink))
		}
	}

	if req.Pending != nil {
		prompt.WriteString("\n## Richiesta in attesa di conferma\n\n")
		prompt.WriteString(req.Pending.Instructions() + "\n")
	}

	if req.Booking == nil {
		writeSlots(&prompt, req.Slots, loc)
		writeAccumulated(&prompt, req.Accumulated)
	}

	if req.Clarification != "" {
		prompt.WriteString("\n## Prenotazione non completata\n\n")
		prompt.WriteString(req.Clarification + "\n")
		prompt.WriteString("Spiega il problema al cliente con gentilezza e chiedi il dato corretto o un altro orario.\n")
	}

	return prompt.String()
}

func consultantTimezone(c *database.Consultant) string {
	if c == nil {
		return ""
	}
	return c.Timezone
}

func writeSlots(prompt *bytes.Buffer, slots []gcal.Slot, loc *time.Location) {
	prompt.WriteString("\n## Disponibilità del consulente\n\n")
	if len(slots) == 0 {
		prompt.WriteString("Nessuna disponibilità nota: chiedi al cliente le sue preferenze.\n")
		return
	}
	prompt.WriteString(fmt.Sprintf("Orari liberi (fuso orario %s). Proponi solo questi:\n", loc.String()))
	for _, slot := range slots {
		start := slot.Start.In(loc)
		prompt.WriteString(fmt.Sprintf("- %s alle %s\n", timeutil.FormatItalianDate(start), start.Format(timeutil.ClockLayout)))
	}
}

func writeAccumulated(prompt *bytes.Buffer, acc *database.ExtractionAccumulator) {
	if acc.IsEmpty() {
		return
	}
	prompt.WriteString("\n## Dati già forniti dal cliente\n\n")
	for _, field := range []struct{ label, value string }{
		{"Data", timeutil.HumanDate(acc.Date)},
		{"Orario", acc.Time},
		{"Email", acc.Email},
		{"Telefono", acc.Phone},
		{"Nome", acc.Name},
	} {
		if field.value != "" {
			prompt.WriteString(fmt.Sprintf("- %s: %s\n", field.label, field.value))
		}
	}
	prompt.WriteString("Non chiedere di nuovo questi dati.\n")
}
