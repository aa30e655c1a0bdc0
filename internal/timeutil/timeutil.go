package timeutil

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"

	// DefaultTimezone applies to consultants without an explicit setting.
	DefaultTimezone = "Europe/Rome"
)

var defaultLocation = mustLoad(DefaultTimezone)

func mustLoad(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ResolveLocation returns the consultant's location, falling back to the
// default timezone. The bool reports whether the fallback was used.
func ResolveLocation(timezone string) (*time.Location, bool) {
	if timezone == "" {
		return defaultLocation, true
	}

	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return defaultLocation, true
	}
	return loc, false
}

var clockPattern = regexp.MustCompile(`^(\d{1,2})(?:[:.](\d{2}))?$`)

// NormalizeClock turns "15", "9.30" or "09:30" into HH:MM.
func NormalizeClock(value string) (string, error) {
	value = strings.TrimSpace(value)
	m := clockPattern.FindStringSubmatch(value)
	if m == nil {
		return "", fmt.Errorf("unable to parse time: %q", value)
	}

	hour, _ := strconv.Atoi(m[1])
	minute := 0
	if m[2] != "" {
		minute, _ = strconv.Atoi(m[2])
	}
	if hour > 23 || minute > 59 {
		return "", fmt.Errorf("time out of range: %q", value)
	}
	return fmt.Sprintf("%02d:%02d", hour, minute), nil
}

// ParseSlot combines a YYYY-MM-DD date and an HH:MM clock in the given timezone.
func ParseSlot(date, clock, timezone string) (time.Time, error) {
	if strings.TrimSpace(date) == "" {
		return time.Time{}, fmt.Errorf("date value is required")
	}
	normalized, err := NormalizeClock(clock)
	if err != nil {
		return time.Time{}, err
	}

	loc, _ := ResolveLocation(timezone)
	t, err := time.ParseInLocation(DateLayout+" "+ClockLayout, strings.TrimSpace(date)+" "+normalized, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("unable to parse date: %s", date)
	}
	return t, nil
}

// EndClock returns the HH:MM clock duration after start.
func EndClock(start time.Time, duration time.Duration) string {
	return start.Add(duration).Format(ClockLayout)
}

var italianWeekdays = [...]string{"domenica", "lunedì", "martedì", "mercoledì", "giovedì", "venerdì", "sabato"}

var italianMonths = [...]string{"gennaio", "febbraio", "marzo", "aprile", "maggio", "giugno",
	"luglio", "agosto", "settembre", "ottobre", "novembre", "dicembre"}

// FormatItalianDate renders t as "venerdì 10 maggio 2024".
func FormatItalianDate(t time.Time) string {
	return fmt.Sprintf("%s %d %s %d", italianWeekdays[t.Weekday()], t.Day(), italianMonths[t.Month()-1], t.Year())
}

// HumanDate formats a stored YYYY-MM-DD date for users, returning the raw
// value when it does not parse.
func HumanDate(date string) string {
	d, err := time.Parse(DateLayout, date)
	if err != nil {
		return date
	}
	return FormatItalianDate(d)
}
