package booking

import (
	"context"
	"regexp"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/consultdesk/bookingagent/internal/logging"
)

// classifierFailOpen is the pre-filter answer when the classifier errors:
// the turn goes to the extractor instead of being dropped.
const classifierFailOpen = true

const (
	minMessageLength   = 2
	shortMessageLength = 10
)

var (
	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	phonePattern = regexp.MustCompile(`\+?\d(?:[\s\-./]?\d){7,}`)

	dateTimePatterns = []*regexp.Regexp{
		regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`),
		regexp.MustCompile(`\b\d{1,2}[/\-.]\d{1,2}(?:[/\-.]\d{2,4})?\b`),
		regexp.MustCompile(`\b(?:[01]?\d|2[0-3])[:.][0-5]\d\b`),
		regexp.MustCompile(`(?i)\b(?:alle|dalle|ore)\s+\d{1,2}\b`),
		regexp.MustCompile(`(?i)\b(?:luned|marted|mercoled|gioved|venerd)[iì]`),
		regexp.MustCompile(`(?i)\b(?:sabato|domenica)\b`),
		regexp.MustCompile(`(?i)\b(?:domani|dopodomani)\b`),
	}

	notBookingPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)^(?:ciao|salve|buongiorno|buonasera|hey|hi|hello)[\s!.,]*$`),
		regexp.MustCompile(`(?i)\b(?:dimmi di pi[uù]|raccontami|come funziona|cosa fate|di cosa ti occupi)`),
		regexp.MustCompile(`(?i)\b(?:tell me more|how does it work|what do you do)\b`),
	}
)

// PreFilter decides cheaply whether a turn is worth sending to the extractor.
type PreFilter struct {
	classifier Classifier
	metrics    *Metrics
	logger     *zap.Logger
}

// NewPreFilter creates a pre-filter. classifier may be nil, in which case
// turns on conversations with a booking are always analyzed.
func NewPreFilter(classifier Classifier, metrics *Metrics, logger *zap.Logger) *PreFilter {
	return &PreFilter{classifier: classifier, metrics: metrics, logger: logging.OrNop(logger)}
}

// ShouldAnalyzeForBooking applies the pre-filter rules to one client message.
func (f *PreFilter) ShouldAnalyzeForBooking(ctx context.Context, message string, hasExistingBooking bool) bool {
	decision, reason := f.decide(ctx, message, hasExistingBooking)
	if decision {
		f.metrics.PrefilterDecision("analyze")
	} else {
		f.metrics.PrefilterDecision("skip")
	}
	f.logger.Debug("prefilter decision",
		zap.String("stage", "prefilter"),
		zap.Bool("analyze", decision),
		zap.String("reason", reason))
	return decision
}

func (f *PreFilter) decide(ctx context.Context, message string, hasExistingBooking bool) (bool, string) {
	text := strings.TrimSpace(message)
	length := utf8.RuneCountInString(text)
	if length < minMessageLength {
		return false, "too_short"
	}

	if hasExistingBooking {
		if f.classifier == nil {
			return classifierFailOpen, "no_classifier"
		}
		related, err := f.classifier.IsBookingRelated(ctx, text)
		if err != nil {
			f.metrics.PrefilterDecision("classifier_error")
			f.logger.Warn("booking classifier failed, analyzing anyway",
				zap.String("stage", "prefilter"), zap.Error(err))
			return classifierFailOpen, "classifier_error"
		}
		return related, "classifier"
	}

	if HasBookingSignal(text) {
		return true, "signal"
	}
	if IsSmallTalk(text) {
		return false, "small_talk"
	}
	if length < shortMessageLength {
		return false, "short"
	}
	return false, "no_signal"
}

// HasBookingSignal reports whether text contains an email, a phone number
// or a date/time mention.
func HasBookingSignal(text string) bool {
	if emailPattern.MatchString(text) || phonePattern.MatchString(text) {
		return true
	}
	for _, p := range dateTimePatterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}

// IsSmallTalk reports whether text is a greeting or a generic question.
func IsSmallTalk(text string) bool {
	text = strings.TrimSpace(text)
	for _, p := range notBookingPatterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}
