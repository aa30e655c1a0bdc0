// Package extractor implements booking intent extraction and the pre-filter
// classifier on top of the Anthropic tool-calling agent.
package extractor

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/consultdesk/bookingagent/internal/agent"
	"github.com/consultdesk/bookingagent/internal/booking"
	"github.com/consultdesk/bookingagent/internal/database"
	"github.com/consultdesk/bookingagent/internal/logging"
	"github.com/consultdesk/bookingagent/internal/timeutil"
)

// Config configures the extractor agents
type Config struct {
	APIKey      string
	Model       string
	Temperature float64
	Timezone    string
	APIURL      string
}

// Extractor implements booking.Extractor and booking.Classifier
type Extractor struct {
	modification *agent.Agent
	newBooking   *agent.Agent
	relevance    *agent.Agent
	location     *time.Location
	now          func() time.Time
	logger       *zap.Logger
}

var (
	_ booking.Extractor  = (*Extractor)(nil)
	_ booking.Classifier = (*Extractor)(nil)
)

func newToolAgent(cfg Config, logger *zap.Logger, name, system string, tool agent.Tool, handler agent.ToolHandler, maxTokens int) *agent.Agent {
	a := agent.NewAgent(agent.AgentConfig{
		Name:         name,
		APIKey:       cfg.APIKey,
		Model:        cfg.Model,
		Temperature:  cfg.Temperature,
		SystemPrompt: system,
		ToolChoice:   tool.Name,
		MaxTokens:    maxTokens,
		APIURL:       cfg.APIURL,
		Logger:       logger,
	})
	a.MustRegisterTool(tool, handler)
	return a
}

// New creates the extractor agents
func New(cfg Config, logger *zap.Logger) *Extractor {
	loc, _ := timeutil.ResolveLocation(cfg.Timezone)
	logger = logging.OrNop(logger)
	return &Extractor{
		modification: newToolAgent(cfg, logger, "booking-intent", ModificationSystemPrompt, ReportBookingIntentTool, HandleReportBookingIntent, 1024),
		newBooking:   newToolAgent(cfg, logger, "booking-data", NewBookingSystemPrompt, ReportBookingDataTool, HandleReportBookingData, 1024),
		relevance:    newToolAgent(cfg, logger, "booking-relevance", RelevanceSystemPrompt, ClassifyBookingRelevanceTool, HandleClassifyBookingRelevance, 256),
		location:     loc,
		now:          time.Now,
		logger:       logger,
	}
}

// IsConfigured returns true if the agents have an API key
func (e *Extractor) IsConfigured() bool {
	return e.modification.IsConfigured()
}

// localNow is the current time in the consultant's timezone. An empty or
// unknown zone falls back to the configured one.
func (e *Extractor) localNow(timezone string) time.Time {
	loc := e.location
	if timezone != "" {
		if resolved, fallback := timeutil.ResolveLocation(timezone); !fallback {
			loc = resolved
		}
	}
	return e.now().In(loc)
}

func (e *Extractor) run(ctx context.Context, a *agent.Agent, prompt, toolName string, out any) (bool, error) {
	call, err := a.ExecuteTool(ctx, agent.AgentInput{
		Messages: []agent.Message{agent.NewTextMessage("user", prompt)},
	}, toolName)
	if err != nil {
		return false, fmt.Errorf("%s failed: %w", a.Name(), err)
	}
	if call == nil {
		e.logger.Warn("Extractor returned no tool call", zap.String("agent", a.Name()))
		return false, nil
	}
	if call.Error != nil {
		return false, fmt.Errorf("%s tool failed: %w", a.Name(), call.Error)
	}
	if err := json.Unmarshal([]byte(call.Output), out); err != nil {
		return false, fmt.Errorf("failed to parse %s output: %w", toolName, err)
	}
	return true, nil
}

// ExtractModification detects MODIFY, CANCEL or ADD_ATTENDEES for a client with a booking
func (e *Extractor) ExtractModification(ctx context.Context, history []database.ConversationMessage, existing booking.ExistingBooking) (*booking.ModificationExtraction, error) {
	var parsed IntentInput
	ok, err := e.run(ctx, e.modification, buildModificationPrompt(history, existing, e.localNow(existing.Timezone)), ReportBookingIntentTool.Name, &parsed)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &booking.ModificationExtraction{Intent: booking.IntentNone}, nil
	}

	e.logger.Debug("Booking intent extracted",
		zap.String("intent", string(parsed.Intent)),
		zap.Int("confirmed_times", parsed.ConfirmedTimes),
		zap.String("reasoning", parsed.Reasoning))

	return &booking.ModificationExtraction{
		Intent:         parsed.Intent,
		NewDate:        parsed.NewDate,
		NewTime:        parsed.NewTime,
		Attendees:      parsed.Attendees,
		ConfirmedTimes: parsed.ConfirmedTimes,
	}, nil
}

// ExtractNewBooking gathers booking data for a client without a booking
func (e *Extractor) ExtractNewBooking(ctx context.Context, history []database.ConversationMessage, acc *database.ExtractionAccumulator, timezone string) (*booking.NewBookingExtraction, error) {
	var parsed BookingDataInput
	ok, err := e.run(ctx, e.newBooking, buildNewBookingPrompt(history, acc, e.localNow(timezone)), ReportBookingDataTool.Name, &parsed)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &booking.NewBookingExtraction{}, nil
	}

	return &booking.NewBookingExtraction{
		HasAllData:   parsed.HasAllData,
		IsConfirming: parsed.IsConfirming,
		Date:         parsed.Date,
		Time:         parsed.Time,
		Email:        parsed.Email,
		Phone:        parsed.Phone,
		Name:         parsed.Name,
	}, nil
}

// IsBookingRelated classifies one client message for the pre-filter
func (e *Extractor) IsBookingRelated(ctx context.Context, message string) (bool, error) {
	var parsed RelevanceInput
	ok, err := e.run(ctx, e.relevance, "## Client Message\n\n"+message, ClassifyBookingRelevanceTool.Name, &parsed)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, fmt.Errorf("classifier returned no answer")
	}
	return parsed.IsBookingRelated, nil
}
