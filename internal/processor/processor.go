package processor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/consultdesk/bookingagent/internal/agent/chat"
	"github.com/consultdesk/bookingagent/internal/booking"
	"github.com/consultdesk/bookingagent/internal/database"
	"github.com/consultdesk/bookingagent/internal/gcal"
	"github.com/consultdesk/bookingagent/internal/logging"
	"github.com/consultdesk/bookingagent/internal/slotcache"
	"github.com/consultdesk/bookingagent/internal/source"
	"github.com/consultdesk/bookingagent/internal/timeutil"
)

const (
	defaultHistorySize = 30
	defaultWorkerCount = 2
	slotWindowDays     = 14
	maxOfferedSlots    = 20
)

// ErrEmptyMessage is returned when the inbound text is blank.
var ErrEmptyMessage = errors.New("message text is empty")

// Replier delivers a finished reply back to the channel a message came from.
type Replier interface {
	SendText(ctx context.Context, identifier, text string) error
}

// Dependencies are the collaborators a Processor drives. Calendars, Slots
// and Replier may be nil.
type Dependencies struct {
	DB        *database.DB
	Extractor booking.Extractor
	PreFilter *booking.PreFilter
	Executor  *booking.Executor
	Generator chat.Generator
	Calendars booking.CalendarProvider
	Slots     slotcache.Cache
	Metrics   *booking.Metrics
	Replier   Replier
	Logger    *zap.Logger
}

// Options tune the orchestration.
type Options struct {
	HistorySize int
	WorkerCount int

	// ClassifyWithBooking gates extraction on conversations that already
	// hold a booking behind the pre-filter classifier. Off, every turn on
	// such a conversation is extracted.
	ClassifyWithBooking bool
}

// Inbound is one client message addressed to a conversation.
type Inbound struct {
	ConversationID string
	Text           string
}

// Reply is the outcome of one handled message.
type Reply struct {
	Text      string
	Intent    booking.Intent
	BookingID int64
	Executed  bool
}

// Processor runs the booking orchestration for every inbound client message.
type Processor struct {
	db        *database.DB
	extractor booking.Extractor
	prefilter *booking.PreFilter
	executor  *booking.Executor
	generator chat.Generator
	calendars booking.CalendarProvider
	slots     slotcache.Cache
	metrics   *booking.Metrics
	replier   Replier
	logger    *zap.Logger
	now       booking.Clock

	historySize         int
	workerCount         int
	classifyWithBooking bool

	msgChan <-chan source.Message
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a processor. msgChan may be nil when messages only arrive
// through HandleMessage.
func New(deps Dependencies, opts Options, msgChan <-chan source.Message) *Processor {
	if opts.HistorySize <= 0 {
		opts.HistorySize = defaultHistorySize
	}
	if opts.WorkerCount <= 0 {
		opts.WorkerCount = defaultWorkerCount
	}
	prefilter := deps.PreFilter
	if prefilter == nil {
		prefilter = booking.NewPreFilter(nil, deps.Metrics, deps.Logger)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Processor{
		db:                  deps.DB,
		extractor:           deps.Extractor,
		prefilter:           prefilter,
		executor:            deps.Executor,
		generator:           deps.Generator,
		calendars:           deps.Calendars,
		slots:               deps.Slots,
		metrics:             deps.Metrics,
		replier:             deps.Replier,
		logger:              logging.OrNop(deps.Logger),
		now:                 time.Now,
		historySize:         opts.HistorySize,
		workerCount:         opts.WorkerCount,
		classifyWithBooking: opts.ClassifyWithBooking,
		msgChan:             msgChan,
		ctx:                 ctx,
		cancel:              cancel,
	}
}

// WithClock replaces the processor's time source.
func (p *Processor) WithClock(now booking.Clock) *Processor {
	p.now = now
	return p
}

// Start begins processing messages from the channel
func (p *Processor) Start() error {
	if p.msgChan == nil {
		return nil
	}
	p.logger.Info("Message processor started", zap.Int("workers", p.workerCount))

	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.processLoop()
	}
	return nil
}

// Stop gracefully shuts down the processor
func (p *Processor) Stop() {
	p.cancel()
	p.wg.Wait()
	p.logger.Info("Message processor stopped")
}

func (p *Processor) processLoop() {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case msg, ok := <-p.msgChan:
			if !ok {
				p.logger.Info("Message processor: channel closed")
				return
			}
			if err := p.processMessage(p.ctx, msg); err != nil {
				p.logger.Error("Failed to process message",
					zap.String("source", string(msg.SourceType)),
					zap.Int64("consultant_id", msg.ConsultantID),
					zap.Error(err))
			}
		}
	}
}

// processMessage handles a channel message end to end and sends the reply.
func (p *Processor) processMessage(ctx context.Context, msg source.Message) error {
	conv, err := p.db.GetOrCreateClientConversation(msg.ConsultantID, msg.SourceType.Origin(), msg.ClientIdentifier(), msg.SenderName)
	if err != nil {
		return fmt.Errorf("failed to resolve conversation: %w", err)
	}

	reply, err := p.HandleMessage(ctx, Inbound{ConversationID: conv.ID, Text: msg.Text}, nil)
	if err != nil {
		return err
	}
	if p.replier == nil || reply.Text == "" {
		return nil
	}
	if err := p.replier.SendText(ctx, msg.Identifier, reply.Text); err != nil {
		return fmt.Errorf("failed to send reply: %w", err)
	}
	return nil
}

// turn carries the state of one HandleMessage call.
type turn struct {
	consultant   *database.Consultant
	conversation *database.Conversation
	message      *database.ConversationMessage
	history      []database.ConversationMessage
	chat         chat.Request
	now          time.Time
}

func (t *turn) fields() []zap.Field {
	return []zap.Field{
		zap.String("conversation_id", t.conversation.ID),
		zap.Int64("consultant_id", t.consultant.ID),
	}
}

// HandleMessage runs one client message through the booking engine. When
// an action executes, its confirmation is the whole reply; otherwise the
// reply generator streams an answer through onChunk.
func (p *Processor) HandleMessage(ctx context.Context, in Inbound, onChunk chat.ChunkFunc) (*Reply, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return nil, ErrEmptyMessage
	}

	// Both lookups wrap database.ErrNotFound for unknown ids.
	conv, err := p.db.GetConversation(in.ConversationID)
	if err != nil {
		return nil, err
	}
	consultant, err := p.db.GetConsultant(conv.ConsultantID)
	if err != nil {
		return nil, err
	}

	stored, err := p.db.AppendMessage(conv.ID, database.SenderClient, text)
	if err != nil {
		return nil, fmt.Errorf("failed to store message: %w", err)
	}
	history, err := p.db.GetHistory(conv.ID, p.historySize)
	if err != nil {
		return nil, fmt.Errorf("failed to get history: %w", err)
	}

	t := &turn{
		consultant:   consultant,
		conversation: conv,
		message:      stored,
		history:      history,
		now:          p.now(),
	}
	t.chat = chat.Request{
		Consultant:   consultant,
		Conversation: conv,
		History:      history,
		Now:          t.now,
	}

	if consultant.BookingEnabled && p.executor != nil && p.extractor != nil {
		existing, err := p.db.GetConfirmedBooking(conv.Ref())
		if err != nil {
			return nil, fmt.Errorf("failed to get confirmed booking: %w", err)
		}

		var reply *Reply
		if existing != nil {
			reply = p.handleExistingBooking(ctx, t, existing)
		} else {
			reply = p.handleNewBooking(ctx, t)
		}
		if reply != nil {
			return reply, nil
		}
	}

	return p.generate(ctx, t, onChunk)
}

// handleExistingBooking extracts a MODIFY, CANCEL or ADD_ATTENDEES intent
// and executes it once confirmed. A nil reply means the turn continues to
// the reply generator.
func (p *Processor) handleExistingBooking(ctx context.Context, t *turn, existing *database.Booking) *Reply {
	t.chat.Booking = existing
	if p.classifyWithBooking && !p.prefilter.ShouldAnalyzeForBooking(ctx, t.message.Text, true) {
		return nil
	}

	snapshot := booking.NewExistingBooking(existing)
	snapshot.Timezone = t.consultant.Timezone
	ext, err := p.extractor.ExtractModification(ctx, t.history, snapshot)
	if err != nil {
		p.logger.Warn("Modification extraction failed, treating as no intent",
			append(t.fields(), zap.String("stage", "extract"), zap.Error(err))...)
		return nil
	}
	action := ext.Action()
	if action == nil {
		return nil
	}

	if booking.IsActionAlreadyCompleted(existing.LastCompletedAction, action, t.now) {
		p.metrics.ActionDeduplicated(action.Intent())
		p.logger.Info("Skipping action already completed",
			append(t.fields(), zap.String("stage", "dedup"), zap.String("intent", string(action.Intent())))...)
		return nil
	}

	decision := booking.EvaluateConfirmation(action, ext.ConfirmedTimes, snapshot)
	if !decision.Cleared {
		p.metrics.ConfirmationPending(action.Intent())
		t.chat.Pending = decision.Pending
		return nil
	}

	return p.execute(ctx, t, existing, action)
}

// handleNewBooking accumulates CREATE data across turns and books once the
// client has given everything and confirmed.
func (p *Processor) handleNewBooking(ctx context.Context, t *turn) *Reply {
	t.chat.Slots = p.availableSlots(ctx, t)

	acc, err := p.db.GetAccumulator(t.conversation.ID)
	if err != nil {
		p.logger.Warn("Failed to load accumulator", append(t.fields(), zap.Error(err))...)
	}
	t.chat.Accumulated = acc

	// A conversation that is already collecting booking data goes straight
	// to the extractor so short replies like "sì" still confirm.
	if acc.IsEmpty() && !p.prefilter.ShouldAnalyzeForBooking(ctx, t.message.Text, false) {
		return nil
	}
	acc = p.seedFromCancelled(t, acc)

	ext, err := p.extractor.ExtractNewBooking(ctx, t.history, acc, t.consultant.Timezone)
	if err != nil {
		p.logger.Warn("Booking extraction failed, treating as no intent",
			append(t.fields(), zap.String("stage", "extract"), zap.Error(err))...)
		return nil
	}
	if ext == nil {
		return nil
	}

	acc = booking.MergeAccumulator(acc, t.conversation.ID, ext)
	if !acc.IsEmpty() {
		if err := p.db.SaveAccumulator(acc); err != nil {
			p.logger.Warn("Failed to save accumulator", append(t.fields(), zap.Error(err))...)
		}
		t.chat.Accumulated = acc
	}

	if !ext.HasAllData || !ext.IsConfirming {
		return nil
	}
	return p.execute(ctx, t, nil, booking.CreateActionFrom(acc))
}

// seedFromCancelled lets a client who cancelled within the last day rebook
// without repeating their contact details.
func (p *Processor) seedFromCancelled(t *turn, acc *database.ExtractionAccumulator) *database.ExtractionAccumulator {
	cancelled, err := p.db.FindRecentlyCancelledBooking(t.conversation.Ref(), t.now.Add(-booking.RecentCancellationWindow))
	if err != nil {
		p.logger.Warn("Failed to look up cancelled booking", append(t.fields(), zap.Error(err))...)
		return acc
	}
	if cancelled == nil {
		return acc
	}
	return booking.SeedFromCancelled(acc, t.conversation.ID, cancelled)
}

func (p *Processor) execute(ctx context.Context, t *turn, existing *database.Booking, action booking.Action) *Reply {
	result, err := p.executor.Execute(ctx, booking.Request{
		Consultant:       t.consultant,
		Conversation:     t.conversation,
		Booking:          existing,
		Action:           action,
		TriggerMessageID: t.message.ID,
	})
	if err == nil {
		p.invalidateSlots(ctx, t, result.Intent)
		return &Reply{
			Text:      result.Message,
			Intent:    result.Intent,
			BookingID: result.Booking.ID,
			Executed:  true,
		}
	}

	fields := append(t.fields(), zap.String("stage", "execute"), zap.String("intent", string(action.Intent())), zap.Error(err))
	if !booking.IsRecoverable(err) {
		p.logger.Error("Booking action failed", fields...)
		return nil
	}

	p.logger.Info("Booking action rejected", fields...)
	t.chat.Clarification = clarificationFor(err)
	if database.IsBookingExists(err) {
		current, lookupErr := p.db.GetConfirmedBooking(t.conversation.Ref())
		if lookupErr != nil {
			p.logger.Warn("Failed to reload confirmed booking", append(t.fields(), zap.Error(lookupErr))...)
		}
		if current != nil {
			t.chat.Booking = current
			t.chat.Slots = nil
			t.chat.Accumulated = nil
		}
	}
	return nil
}

// invalidateSlots drops the cached slots once an action took or freed one.
func (p *Processor) invalidateSlots(ctx context.Context, t *turn, intent booking.Intent) {
	if p.slots == nil || intent == booking.IntentAddAttendees {
		return
	}
	if err := p.slots.Invalidate(ctx, t.conversation.ID); err != nil {
		p.logger.Warn("Failed to invalidate slot cache", append(t.fields(), zap.Error(err))...)
	}
}

// availableSlots returns the consultant's free slots for the conversation,
// from the cache when possible. Failures leave the prompt without slots.
func (p *Processor) availableSlots(ctx context.Context, t *turn) []gcal.Slot {
	if p.slots != nil {
		slots, ok, err := p.slots.Get(ctx, t.conversation.ID)
		if err != nil {
			p.logger.Warn("Failed to read slot cache", append(t.fields(), zap.Error(err))...)
		}
		if ok {
			return slots
		}
	}
	if p.calendars == nil {
		return nil
	}

	cal, err := p.calendars.ForConsultant(ctx, t.consultant)
	if err != nil {
		if !errors.Is(err, gcal.ErrNotConnected) {
			p.logger.Warn("Calendar unavailable for slots", append(t.fields(), zap.Error(err))...)
		}
		return nil
	}
	if cal == nil {
		return nil
	}

	loc, _ := timeutil.ResolveLocation(t.consultant.Timezone)
	from := t.now.In(loc)
	slots, err := cal.ListAvailableSlots(ctx, gcal.SlotQuery{
		From:          from,
		To:            from.AddDate(0, 0, slotWindowDays),
		Duration:      t.consultant.AppointmentDuration(),
		WorkStartHour: t.consultant.WorkingHoursStart,
		WorkEndHour:   t.consultant.WorkingHoursEnd,
		Location:      loc,
		Limit:         maxOfferedSlots,
	})
	if err != nil {
		p.logger.Warn("Failed to list available slots",
			append(t.fields(), zap.String("stage", "slots"), zap.Error(err))...)
		return nil
	}

	if p.slots != nil {
		if err := p.slots.Set(ctx, t.conversation.ID, slots); err != nil {
			p.logger.Warn("Failed to cache slots", append(t.fields(), zap.Error(err))...)
		}
	}
	return slots
}

func (p *Processor) generate(ctx context.Context, t *turn, onChunk chat.ChunkFunc) (*Reply, error) {
	if p.generator == nil {
		return nil, fmt.Errorf("no reply generator configured")
	}
	text, err := p.generator.Generate(ctx, t.chat, onChunk)
	if err != nil {
		return nil, fmt.Errorf("failed to generate reply: %w", err)
	}
	text = strings.TrimSpace(text)
	if text != "" {
		if _, err := p.db.AppendMessage(t.conversation.ID, database.SenderAI, text); err != nil {
			return nil, fmt.Errorf("failed to store reply: %w", err)
		}
	}

	reply := &Reply{Text: text, Intent: booking.IntentNone}
	if t.chat.Pending != nil {
		reply.Intent = t.chat.Pending.Intent
	}
	if t.chat.Booking != nil {
		reply.BookingID = t.chat.Booking.ID
	}
	return reply, nil
}

// ResetConversation drops the partial booking data and cached slots of a
// conversation. History and bookings are kept.
func (p *Processor) ResetConversation(ctx context.Context, conversationID string) error {
	if err := p.db.ClearAccumulator(conversationID); err != nil {
		return err
	}
	if p.slots != nil {
		if err := p.slots.Invalidate(ctx, conversationID); err != nil {
			return fmt.Errorf("failed to invalidate slots: %w", err)
		}
	}
	return nil
}
