package booking

import "github.com/consultdesk/bookingagent/internal/database"

// Intent is the booking purpose detected in a client message.
type Intent string

const (
	IntentNone         Intent = "NONE"
	IntentCreate       Intent = "CREATE"
	IntentModify       Intent = "MODIFY"
	IntentCancel       Intent = "CANCEL"
	IntentAddAttendees Intent = "ADD_ATTENDEES"
)

// ActionType maps the intent onto the stored action type.
func (i Intent) ActionType() database.ActionType {
	return database.ActionType(i)
}

// Action is one of CreateAction, ModifyAction, CancelAction or
// AddAttendeesAction. Switches over it should cover every variant.
type Action interface {
	Intent() Intent
	isAction()
}

// CreateAction books a new appointment with the accumulated client data.
type CreateAction struct {
	Date  string
	Time  string
	Email string
	Phone string
	Name  string
}

// ModifyAction moves the existing booking. An empty field keeps the current value.
type ModifyAction struct {
	NewDate string
	NewTime string
}

// CancelAction cancels the existing booking.
type CancelAction struct{}

// AddAttendeesAction invites more people to the existing booking's event.
type AddAttendeesAction struct {
	Attendees []string
}

func (CreateAction) Intent() Intent       { return IntentCreate }
func (ModifyAction) Intent() Intent       { return IntentModify }
func (CancelAction) Intent() Intent       { return IntentCancel }
func (AddAttendeesAction) Intent() Intent { return IntentAddAttendees }

func (CreateAction) isAction()       {}
func (ModifyAction) isAction()       {}
func (CancelAction) isAction()       {}
func (AddAttendeesAction) isAction() {}
