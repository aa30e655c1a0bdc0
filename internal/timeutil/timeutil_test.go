package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeClock(t *testing.T) {
	tests := []struct {
		input    string
		expected string
		wantErr  bool
	}{
		{"15", "15:00", false},
		{"9.30", "09:30", false},
		{"09:30", "09:30", false},
		{" 18:05 ", "18:05", false},
		{"24:00", "", true},
		{"10:75", "", true},
		{"alle tre", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := NormalizeClock(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestParseSlot(t *testing.T) {
	got, err := ParseSlot("2024-05-10", "10", "Europe/Rome")
	require.NoError(t, err)

	rome, _ := time.LoadLocation("Europe/Rome")
	assert.True(t, got.Equal(time.Date(2024, 5, 10, 10, 0, 0, 0, rome)))

	_, err = ParseSlot("", "10:00", "Europe/Rome")
	assert.Error(t, err)

	_, err = ParseSlot("10/05/2024", "10:00", "Europe/Rome")
	assert.Error(t, err)
}

func TestResolveLocation(t *testing.T) {
	loc, fallback := ResolveLocation("Not/AZone")
	assert.True(t, fallback)
	assert.Equal(t, DefaultTimezone, loc.String())

	loc, fallback = ResolveLocation("America/New_York")
	assert.False(t, fallback)
	assert.Equal(t, "America/New_York", loc.String())
}

func TestFormatItalianDate(t *testing.T) {
	d := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "venerdì 10 maggio 2024", FormatItalianDate(d))
	assert.Equal(t, "venerdì 10 maggio 2024", HumanDate("2024-05-10"))
	assert.Equal(t, "domani", HumanDate("domani"))
}

func TestEndClock(t *testing.T) {
	start := time.Date(2024, 5, 10, 23, 30, 0, 0, time.UTC)
	assert.Equal(t, "00:30", EndClock(start, time.Hour))
}
