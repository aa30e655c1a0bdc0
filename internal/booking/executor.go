package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/consultdesk/bookingagent/internal/database"
	"github.com/consultdesk/bookingagent/internal/gcal"
	"github.com/consultdesk/bookingagent/internal/logging"
	"github.com/consultdesk/bookingagent/internal/notify"
	"github.com/consultdesk/bookingagent/internal/timeutil"
)

// RecentCancellationWindow bounds how old a cancelled booking can be for
// its contact details to be reused by a new CREATE.
const RecentCancellationWindow = 24 * time.Hour

// Calendar is the subset of the consultant calendar the executor needs.
type Calendar interface {
	CreateEvent(ctx context.Context, input gcal.EventInput) (*gcal.CreatedEvent, error)
	UpdateEvent(ctx context.Context, eventID string, start time.Time, duration time.Duration, tz string) error
	DeleteEvent(ctx context.Context, eventID string) error
	AddAttendees(ctx context.Context, eventID string, emails []string) (*gcal.AttendeesResult, error)
	IsSlotFree(ctx context.Context, start, end time.Time) (bool, error)
	ListAvailableSlots(ctx context.Context, q gcal.SlotQuery) ([]gcal.Slot, error)
}

// CalendarProvider resolves the calendar of a consultant.
type CalendarProvider interface {
	ForConsultant(ctx context.Context, consultant *database.Consultant) (Calendar, error)
}

type gcalProvider struct {
	manager *gcal.Manager
}

// NewGCalProvider adapts a gcal.Manager to CalendarProvider.
func NewGCalProvider(manager *gcal.Manager) CalendarProvider {
	return &gcalProvider{manager: manager}
}

func (p *gcalProvider) ForConsultant(ctx context.Context, consultant *database.Consultant) (Calendar, error) {
	client, err := p.manager.ForConsultant(ctx, consultant)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// ConfirmationSender delivers the booking confirmation email.
type ConfirmationSender interface {
	SendConfirmationEmail(ctx context.Context, consultant *database.Consultant, booking *database.Booking, meetLink string) notify.Result
}

// Clock returns the current time.
type Clock func() time.Time

// Request carries one cleared action and the conversation it belongs to.
// Booking is nil for CREATE and required for every other action.
type Request struct {
	Consultant       *database.Consultant
	Conversation     *database.Conversation
	Booking          *database.Booking
	Action           Action
	TriggerMessageID int64
}

// Result is the outcome of an executed action.
type Result struct {
	Intent    Intent
	Booking   *database.Booking
	MeetLink  string
	Message   string
	MessageID int64
}

// Executor performs calendar and storage side effects for cleared actions
// and stores the confirmation message in the conversation history.
type Executor struct {
	db        *database.DB
	calendars CalendarProvider
	notifier  ConfirmationSender
	metrics   *Metrics
	logger    *zap.Logger
	now       Clock
}

// NewExecutor creates an executor. calendars and notifier may be nil.
func NewExecutor(db *database.DB, calendars CalendarProvider, notifier ConfirmationSender, metrics *Metrics, logger *zap.Logger) *Executor {
	return &Executor{
		db:        db,
		calendars: calendars,
		notifier:  notifier,
		metrics:   metrics,
		logger:    logging.OrNop(logger),
		now:       time.Now,
	}
}

// WithClock replaces the executor's time source.
func (e *Executor) WithClock(now Clock) *Executor {
	e.now = now
	return e
}

// Execute runs the action in req. Errors for which IsRecoverable is true
// leave every booking untouched.
func (e *Executor) Execute(ctx context.Context, req Request) (*Result, error) {
	if req.Consultant == nil || req.Conversation == nil {
		return nil, fmt.Errorf("execute requires a consultant and a conversation")
	}

	var (
		result *Result
		err    error
	)
	switch a := req.Action.(type) {
	case CreateAction:
		result, err = e.create(ctx, req, a)
	case ModifyAction:
		result, err = e.modify(ctx, req, a)
	case CancelAction:
		result, err = e.cancel(ctx, req)
	case AddAttendeesAction:
		result, err = e.addAttendees(ctx, req, a)
	default:
		return nil, fmt.Errorf("unsupported action %T", req.Action)
	}
	if err != nil {
		return nil, err
	}

	msg, err := e.db.AppendMessage(req.Conversation.ID, database.SenderAI, result.Message)
	if err != nil {
		return nil, fmt.Errorf("failed to store confirmation message: %w", err)
	}
	result.MessageID = msg.ID
	e.metrics.ActionExecuted(result.Intent)

	e.logger.Info("Booking action executed",
		zap.String("conversation_id", req.Conversation.ID),
		zap.Int64("consultant_id", req.Consultant.ID),
		zap.String("intent", string(result.Intent)),
		zap.Int64("booking_id", result.Booking.ID))
	return result, nil
}

// calendarFor returns the consultant calendar or nil when none is usable.
func (e *Executor) calendarFor(ctx context.Context, consultant *database.Consultant, stage string) Calendar {
	if e.calendars == nil {
		return nil
	}
	cal, err := e.calendars.ForConsultant(ctx, consultant)
	if err != nil {
		if errors.Is(err, gcal.ErrNotConnected) {
			e.logger.Debug("Consultant has no connected calendar",
				zap.Int64("consultant_id", consultant.ID), zap.String("stage", stage))
		} else {
			e.logger.Warn("Failed to load consultant calendar",
				zap.Int64("consultant_id", consultant.ID), zap.String("stage", stage), zap.Error(err))
		}
		return nil
	}
	return cal
}

func (e *Executor) calendarFailed(req Request, operation string, err error) {
	e.metrics.CalendarFailure(operation)
	fields := []zap.Field{
		zap.String("conversation_id", req.Conversation.ID),
		zap.String("stage", operation),
		zap.Error(err),
	}
	if req.Booking != nil {
		fields = append(fields, zap.Int64("booking_id", req.Booking.ID))
	}
	e.logger.Warn("Calendar operation failed", fields...)
}

func (e *Executor) completed(req Request, t database.ActionType, details database.CompletedDetails) *database.CompletedAction {
	return &database.CompletedAction{
		Type:             t,
		CompletedAt:      e.now().UTC(),
		ConversationID:   req.Conversation.ID,
		TriggerMessageID: req.TriggerMessageID,
		Details:          details,
	}
}

func (e *Executor) audit(bookingID int64, action *database.CompletedAction) {
	entry := &database.BookingActionEntry{
		BookingID:        bookingID,
		ActionType:       action.Type,
		Details:          action.Details,
		ConversationID:   action.ConversationID,
		TriggerMessageID: action.TriggerMessageID,
		CreatedAt:        action.CompletedAt,
	}
	if err := e.db.AppendBookingAction(entry); err != nil {
		e.logger.Warn("Failed to append booking action",
			zap.Int64("booking_id", bookingID), zap.String("intent", string(action.Type)), zap.Error(err))
	}
}

func (e *Executor) create(ctx context.Context, req Request, a CreateAction) (*Result, error) {
	ref := req.Conversation.Ref()
	now := e.now()

	existing, err := e.db.GetConfirmedBooking(ref)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing booking: %w", err)
	}
	if existing != nil {
		return nil, database.ErrBookingExists
	}

	cancelled, err := e.db.FindRecentlyCancelledBooking(ref, now.Add(-RecentCancellationWindow))
	if err != nil {
		e.logger.Warn("Failed to look up cancelled booking",
			zap.String("conversation_id", req.Conversation.ID), zap.Error(err))
	}
	a = fillFromCancelled(a, cancelled)

	start, a, err := validateCreate(a, req.Conversation.Origin, req.Consultant.Timezone, now)
	if err != nil {
		return nil, err
	}
	duration := req.Consultant.AppointmentDuration()
	end := start.Add(duration)

	tz := req.Consultant.Timezone
	if tz == "" {
		tz = timeutil.DefaultTimezone
	}

	cal := e.calendarFor(ctx, req.Consultant, "create")
	if cal != nil {
		free, err := cal.IsSlotFree(ctx, start, end)
		switch {
		case err != nil:
			e.calendarFailed(req, "freebusy", err)
		case !free:
			return nil, ErrSlotConflict
		}
	}

	b := &database.Booking{
		ConsultantID:       req.Consultant.ID,
		AppointmentDate:    a.Date,
		AppointmentTime:    a.Time,
		AppointmentEndTime: timeutil.EndClock(start, duration),
		ClientName:         a.Name,
		ClientEmail:        a.Email,
		ClientPhone:        a.Phone,
		ConfirmedAt:        now.UTC(),
	}
	b.SetRef(ref)
	action := e.completed(req, database.ActionCreate, database.CompletedDetails{NewDate: a.Date, NewTime: a.Time})
	b.LastCompletedAction = action

	created, err := e.db.CreateBooking(b)
	if err != nil {
		if database.IsBookingExists(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create booking: %w", err)
	}

	calendarFailed := false
	if cal != nil {
		summary := fmt.Sprintf("Consulenza con %s", valueOr(created.ClientName, created.ClientEmail))
		event, err := cal.CreateEvent(ctx, gcal.EventInput{
			Summary:     summary,
			Description: bookingDescription(created),
			StartTime:   start,
			EndTime:     end,
			Timezone:    tz,
			Attendees:   []string{created.ClientEmail},
			WithMeet:    true,
		})
		if err != nil {
			calendarFailed = true
			e.calendarFailed(req, "create", err)
		} else {
			if err := e.db.SetBookingCalendarEvent(created.ID, event.EventID, event.MeetLink); err != nil {
				e.logger.Warn("Failed to store calendar event id",
					zap.Int64("booking_id", created.ID), zap.Error(err))
			}
			created.GoogleEventID = database.StringPtr(event.EventID)
			created.MeetLink = event.MeetLink
		}
	}

	if e.notifier != nil {
		if res := e.notifier.SendConfirmationEmail(ctx, req.Consultant, created, created.MeetLink); !res.Success {
			e.logger.Info("Confirmation email not sent",
				zap.Int64("booking_id", created.ID), zap.String("reason", res.ErrorMessage))
		}
	}

	if err := e.db.ClearAccumulator(req.Conversation.ID); err != nil {
		e.logger.Warn("Failed to clear accumulator",
			zap.String("conversation_id", req.Conversation.ID), zap.Error(err))
	}
	e.audit(created.ID, action)

	return &Result{
		Intent:   IntentCreate,
		Booking:  created,
		MeetLink: created.MeetLink,
		Message:  createdMessage(created.AppointmentDate, created.AppointmentTime, int(duration/time.Minute), created.ClientEmail, created.MeetLink, calendarFailed),
	}, nil
}

func bookingDescription(b *database.Booking) string {
	var lines []string
	if b.ClientName != "" {
		lines = append(lines, "Cliente: "+b.ClientName)
	}
	lines = append(lines, "Email: "+b.ClientEmail)
	if b.ClientPhone != "" {
		lines = append(lines, "Telefono: "+b.ClientPhone)
	}
	return strings.Join(lines, "\n")
}

func requireBooking(req Request) error {
	if req.Booking == nil {
		return fmt.Errorf("%s requires an existing booking", req.Action.Intent())
	}
	return nil
}

func (e *Executor) modify(ctx context.Context, req Request, a ModifyAction) (*Result, error) {
	if err := requireBooking(req); err != nil {
		return nil, err
	}
	b := req.Booking

	newDate := valueOr(strings.TrimSpace(a.NewDate), b.AppointmentDate)
	newTime := valueOr(strings.TrimSpace(a.NewTime), b.AppointmentTime)
	start, clock, err := validSlot(newDate, newTime, req.Consultant.Timezone, e.now())
	if err != nil {
		return nil, err
	}
	duration := req.Consultant.AppointmentDuration()

	calendarFailed := false
	if b.HasCalendarEvent() {
		if cal := e.calendarFor(ctx, req.Consultant, "modify"); cal == nil {
			calendarFailed = true
			e.metrics.CalendarFailure("update")
		} else if err := cal.UpdateEvent(ctx, *b.GoogleEventID, start, duration, req.Consultant.Timezone); err != nil {
			calendarFailed = true
			e.calendarFailed(req, "update", err)
		}
	}

	action := e.completed(req, database.ActionModify, database.CompletedDetails{
		OldDate: b.AppointmentDate,
		OldTime: b.AppointmentTime,
		NewDate: newDate,
		NewTime: clock,
	})
	endClock := timeutil.EndClock(start, duration)
	if err := e.db.RescheduleBooking(b.ID, newDate, clock, endClock, action); err != nil {
		return nil, fmt.Errorf("failed to reschedule booking: %w", err)
	}
	e.audit(b.ID, action)

	updated := *b
	updated.AppointmentDate = newDate
	updated.AppointmentTime = clock
	updated.AppointmentEndTime = endClock
	updated.LastCompletedAction = action

	return &Result{
		Intent:   IntentModify,
		Booking:  &updated,
		MeetLink: b.MeetLink,
		Message:  modifiedMessage(newDate, clock, b.HasCalendarEvent(), calendarFailed),
	}, nil
}

func (e *Executor) cancel(ctx context.Context, req Request) (*Result, error) {
	if err := requireBooking(req); err != nil {
		return nil, err
	}
	b := req.Booking

	calendarFailed := false
	if b.HasCalendarEvent() {
		if cal := e.calendarFor(ctx, req.Consultant, "cancel"); cal == nil {
			calendarFailed = true
			e.metrics.CalendarFailure("delete")
		} else if err := cal.DeleteEvent(ctx, *b.GoogleEventID); err != nil && !gcal.IsEventNotFound(err) {
			calendarFailed = true
			e.calendarFailed(req, "delete", err)
		}
	}

	now := e.now().UTC()
	action := e.completed(req, database.ActionCancel, database.CompletedDetails{
		OldDate: b.AppointmentDate,
		OldTime: b.AppointmentTime,
	})
	if err := e.db.CancelBooking(b.ID, now, action); err != nil {
		return nil, fmt.Errorf("failed to cancel booking: %w", err)
	}
	e.audit(b.ID, action)

	updated := *b
	updated.Status = database.BookingStatusCancelled
	updated.CancelledAt = &now
	updated.LastCompletedAction = action

	return &Result{
		Intent:  IntentCancel,
		Booking: &updated,
		Message: cancelledMessage(b.AppointmentDate, b.AppointmentTime, calendarFailed),
	}, nil
}

func (e *Executor) addAttendees(ctx context.Context, req Request, a AddAttendeesAction) (*Result, error) {
	if err := requireBooking(req); err != nil {
		return nil, err
	}
	b := req.Booking
	if !b.HasCalendarEvent() {
		return nil, ErrNoCalendarEvent
	}

	var emails []string
	for _, raw := range a.Attendees {
		email := strings.TrimSpace(raw)
		if emailPattern.MatchString(email) {
			emails = append(emails, email)
		}
	}
	if len(emails) == 0 {
		return nil, invalid("attendees", "no valid email address")
	}

	calendarFailed := false
	added := len(emails)
	if cal := e.calendarFor(ctx, req.Consultant, "add_attendees"); cal == nil {
		calendarFailed = true
		e.metrics.CalendarFailure("add_attendees")
	} else if res, err := cal.AddAttendees(ctx, *b.GoogleEventID, emails); err != nil {
		calendarFailed = true
		e.calendarFailed(req, "add_attendees", err)
	} else {
		added = res.Added
	}

	action := e.completed(req, database.ActionAddAttendees, database.CompletedDetails{AttendeesAdded: a.Attendees})
	if err := e.db.SetLastCompletedAction(b.ID, action); err != nil {
		return nil, fmt.Errorf("failed to record attendees: %w", err)
	}
	e.audit(b.ID, action)

	updated := *b
	updated.LastCompletedAction = action

	return &Result{
		Intent:   IntentAddAttendees,
		Booking:  &updated,
		MeetLink: b.MeetLink,
		Message:  attendeesMessage(emails, added, calendarFailed),
	}, nil
}
