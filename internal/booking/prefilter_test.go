package booking

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type stubClassifier struct {
	related bool
	err     error
	calls   int
}

func (s *stubClassifier) IsBookingRelated(_ context.Context, _ string) (bool, error) {
	s.calls++
	return s.related, s.err
}

func TestShouldAnalyzeForBookingWithoutBooking(t *testing.T) {
	classifier := &stubClassifier{related: true}
	f := NewPreFilter(classifier, nil, zap.NewNop())

	tests := []struct {
		message string
		want    bool
	}{
		{"", false},
		{"k", false},
		{"ok", false},
		{"ciao", false},
		{"Buongiorno!", false},
		{"mario@test.com", true},
		{"la mia mail è mario@test.com, grazie mille per la disponibilità", true},
		{"333 123 4567", true},
		{"domani", true},
		{"vorrei prenotare per domani alle 15", true},
		{"va bene lunedì?", true},
		{"il 12/06 sarebbe perfetto", true},
		{"ci vediamo alle 15:30", true},
		{"2030-05-10", true},
		{"dimmi di più sul percorso", false},
		{"come funziona la consulenza?", false},
		{"vorrei sapere qualcosa sui vostri servizi", false},
	}

	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			assert.Equal(t, tt.want, f.ShouldAnalyzeForBooking(context.Background(), tt.message, false))
		})
	}
	assert.Zero(t, classifier.calls, "classifier is only used when a booking exists")
}

func TestShouldAnalyzeForBookingWithBooking(t *testing.T) {
	t.Run("classifier says yes", func(t *testing.T) {
		f := NewPreFilter(&stubClassifier{related: true}, nil, nil)
		assert.True(t, f.ShouldAnalyzeForBooking(context.Background(), "va bene", true))
	})

	t.Run("classifier says no", func(t *testing.T) {
		f := NewPreFilter(&stubClassifier{related: false}, nil, nil)
		assert.False(t, f.ShouldAnalyzeForBooking(context.Background(), "grazie del consiglio", true))
	})

	t.Run("classifier error fails open", func(t *testing.T) {
		f := NewPreFilter(&stubClassifier{err: errors.New("timeout")}, nil, nil)
		assert.Equal(t, classifierFailOpen, f.ShouldAnalyzeForBooking(context.Background(), "forse", true))
	})

	t.Run("no classifier", func(t *testing.T) {
		f := NewPreFilter(nil, nil, nil)
		assert.True(t, f.ShouldAnalyzeForBooking(context.Background(), "forse", true))
	})

	t.Run("too short skips classifier", func(t *testing.T) {
		classifier := &stubClassifier{related: true}
		f := NewPreFilter(classifier, nil, nil)
		assert.False(t, f.ShouldAnalyzeForBooking(context.Background(), " s ", true))
		assert.Zero(t, classifier.calls)
	})
}

func TestPrefilterMetrics(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	f := NewPreFilter(&stubClassifier{err: errors.New("boom")}, m, nil)

	f.ShouldAnalyzeForBooking(context.Background(), "ok", false)
	f.ShouldAnalyzeForBooking(context.Background(), "confermo", true)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.prefilterDecisions.WithLabelValues("skip")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.prefilterDecisions.WithLabelValues("analyze")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.prefilterDecisions.WithLabelValues("classifier_error")))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ActionExecuted(IntentCreate)
		m.ActionDeduplicated(IntentCancel)
		m.ConfirmationPending(IntentModify)
		m.PrefilterDecision("skip")
		m.CalendarFailure("delete")
	})
}
