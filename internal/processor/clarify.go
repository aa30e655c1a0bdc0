package processor

import (
	"errors"
	"fmt"

	"github.com/consultdesk/bookingagent/internal/booking"
	"github.com/consultdesk/bookingagent/internal/database"
)

var fieldNames = map[string]string{
	"date":      "la data",
	"time":      "l'orario",
	"email":     "l'indirizzo email",
	"phone":     "il numero di telefono",
	"attendees": "gli indirizzi email dei partecipanti",
}

// clarificationFor tells the reply generator why a booking attempt was
// rejected so it can ask the client for what is missing.
func clarificationFor(err error) string {
	var verr *booking.ValidationError
	switch {
	case errors.As(err, &verr):
		name, ok := fieldNames[verr.Field]
		if !ok {
			name = verr.Field
		}
		return fmt.Sprintf("La richiesta non è andata a buon fine: %s non è valido (%s). Chiedi al cliente di fornirlo di nuovo.", name, verr.Reason)
	case errors.Is(err, booking.ErrSlotConflict):
		return "L'orario richiesto risulta occupato nel calendario del consulente. Scusati e proponi uno degli orari disponibili."
	case database.IsBookingExists(err):
		return "Il cliente ha già un appuntamento confermato. Non crearne un altro: chiedi se vuole spostarlo o annullarlo."
	default:
		return ""
	}
}
