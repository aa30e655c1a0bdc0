package extractor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/consultdesk/bookingagent/internal/agent"
	"github.com/consultdesk/bookingagent/internal/booking"
)

// ReportBookingIntentTool reports what the client wants to do with an existing booking
var ReportBookingIntentTool = agent.Tool{
	Name: "report_booking_intent",
	Description: `Reports the client's intent regarding their existing confirmed appointment.
Use MODIFY when the client wants a different date or time, CANCEL when they want to cancel,
ADD_ATTENDEES when they ask to invite other people by email, and NONE for anything else.
Count confirmed_times as the number of distinct client messages that explicitly affirmed
this same request after the assistant asked for confirmation.`,
	InputSchema: agent.ObjectSchema(map[string]agent.Property{
		"intent": agent.Enum("Detected intent",
			string(booking.IntentNone),
			string(booking.IntentModify),
			string(booking.IntentCancel),
			string(booking.IntentAddAttendees),
		),
		"new_date":        agent.String("New date YYYY-MM-DD for MODIFY. Empty if unchanged."),
		"new_time":        agent.String("New time HH:MM (24h) for MODIFY. Empty if unchanged."),
		"attendees":       agent.ArrayOf("Email addresses to invite for ADD_ATTENDEES", agent.String("Email address")),
		"confirmed_times": agent.Integer("Distinct affirming client turns for this request, 0 if none"),
		"reasoning":       agent.String("Brief explanation"),
	}, "intent", "confirmed_times", "reasoning"),
}

// ReportBookingDataTool reports booking data gathered for a new appointment
var ReportBookingDataTool = agent.Tool{
	Name: "report_booking_data",
	Description: `Reports the appointment details the client has provided so far for a new booking.
Only include values the client actually stated or accepted; never invent them. Resolve
relative dates ("domani", "venerdì") against the current date given in the prompt.
Set has_all_data when date, time and email are known (and phone when the channel requires it).
Set is_confirming only when the latest client message explicitly agrees to book the recap
the assistant proposed.`,
	InputSchema: agent.ObjectSchema(map[string]agent.Property{
		"has_all_data":  agent.Boolean("All required fields are known"),
		"is_confirming": agent.Boolean("The latest client message confirms the booking"),
		"date":          agent.String("Appointment date YYYY-MM-DD"),
		"time":          agent.String("Appointment time HH:MM (24h)"),
		"email":         agent.String("Client email"),
		"phone":         agent.String("Client phone number"),
		"name":          agent.String("Client name"),
	}, "has_all_data", "is_confirming"),
}

// ClassifyBookingRelevanceTool answers whether a message concerns an existing booking
var ClassifyBookingRelevanceTool = agent.Tool{
	Name: "classify_booking_relevance",
	Description: `Classifies whether a single client message may confirm, modify, cancel or add
attendees to an existing appointment. Answer true for affirmations ("ok", "va bene", "confermo"),
cancellation or rescheduling verbs, any email address and any date or time mention. Answer false
for bare greetings and generic questions.`,
	InputSchema: agent.ObjectSchema(map[string]agent.Property{
		"is_booking_related": agent.Boolean("The message may act on the booking"),
		"reasoning":          agent.String("Brief explanation"),
	}, "is_booking_related"),
}

// IntentInput represents parsed input for report_booking_intent
type IntentInput struct {
	Intent         booking.Intent `json:"intent"`
	NewDate        string         `json:"new_date,omitempty"`
	NewTime        string         `json:"new_time,omitempty"`
	Attendees      []string       `json:"attendees,omitempty"`
	ConfirmedTimes int            `json:"confirmed_times"`
	Reasoning      string         `json:"reasoning,omitempty"`
}

// BookingDataInput represents parsed input for report_booking_data
type BookingDataInput struct {
	HasAllData   bool   `json:"has_all_data"`
	IsConfirming bool   `json:"is_confirming"`
	Date         string `json:"date,omitempty"`
	Time         string `json:"time,omitempty"`
	Email        string `json:"email,omitempty"`
	Phone        string `json:"phone,omitempty"`
	Name         string `json:"name,omitempty"`
}

// RelevanceInput represents parsed input for classify_booking_relevance
type RelevanceInput struct {
	IsBookingRelated bool   `json:"is_booking_related"`
	Reasoning        string `json:"reasoning,omitempty"`
}

func marshalResult(v any) (string, error) {
	result, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal result: %w", err)
	}
	return string(result), nil
}

// HandleReportBookingIntent processes the report_booking_intent tool call
func HandleReportBookingIntent(_ context.Context, input map[string]any) (string, error) {
	parsed := IntentInput{
		Intent:         booking.Intent(strings.ToUpper(agent.StringInput(input, "intent"))),
		NewDate:        agent.StringInput(input, "new_date"),
		NewTime:        agent.StringInput(input, "new_time"),
		Attendees:      agent.StringSliceInput(input, "attendees"),
		ConfirmedTimes: agent.IntInput(input, "confirmed_times"),
		Reasoning:      agent.StringInput(input, "reasoning"),
	}

	switch parsed.Intent {
	case booking.IntentNone, booking.IntentModify, booking.IntentCancel, booking.IntentAddAttendees:
	case "":
		parsed.Intent = booking.IntentNone
	default:
		return "", fmt.Errorf("unknown intent: %s", parsed.Intent)
	}
	if parsed.ConfirmedTimes < 0 {
		parsed.ConfirmedTimes = 0
	}
	return marshalResult(parsed)
}

// HandleReportBookingData processes the report_booking_data tool call
func HandleReportBookingData(_ context.Context, input map[string]any) (string, error) {
	return marshalResult(BookingDataInput{
		HasAllData:   agent.BoolInput(input, "has_all_data"),
		IsConfirming: agent.BoolInput(input, "is_confirming"),
		Date:         agent.StringInput(input, "date"),
		Time:         agent.StringInput(input, "time"),
		Email:        agent.StringInput(input, "email"),
		Phone:        agent.StringInput(input, "phone"),
		Name:         agent.StringInput(input, "name"),
	})
}

// HandleClassifyBookingRelevance processes the classify_booking_relevance tool call
func HandleClassifyBookingRelevance(_ context.Context, input map[string]any) (string, error) {
	if _, ok := input["is_booking_related"].(bool); !ok {
		return "", fmt.Errorf("is_booking_related is required")
	}
	return marshalResult(RelevanceInput{
		IsBookingRelated: agent.BoolInput(input, "is_booking_related"),
		Reasoning:        agent.StringInput(input, "reasoning"),
	})
}
