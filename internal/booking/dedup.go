package booking

import (
	"sort"
	"strings"
	"time"

	"github.com/consultdesk/bookingagent/internal/database"
	"github.com/consultdesk/bookingagent/internal/timeutil"
)

// DedupCooldown is how long an identical repeat of a completed action is suppressed.
const DedupCooldown = 5 * time.Minute

// IsActionAlreadyCompleted reports whether action repeats last within the
// cooldown window and must not execute again.
func IsActionAlreadyCompleted(last *database.CompletedAction, action Action, now time.Time) bool {
	if last == nil || action == nil || last.Type != action.Intent().ActionType() {
		return false
	}
	if now.Sub(last.CompletedAt) >= DedupCooldown {
		return false
	}

	switch a := action.(type) {
	case ModifyAction:
		date, clock := resolvedModify(a, last.Details)
		return date == last.Details.NewDate && clock == last.Details.NewTime
	case AddAttendeesAction:
		return sameAttendeeSet(a.Attendees, last.Details.AttendeesAdded)
	case CancelAction:
		return true
	case CreateAction:
		// CREATE is guarded by the confirmed-booking uniqueness instead.
		return false
	default:
		return false
	}
}

// resolvedModify fills the fields a reschedule left empty from the slot the
// previous reschedule produced, which is where the booking sits now, and
// pads the clock the way the executor stores it.
func resolvedModify(a ModifyAction, last database.CompletedDetails) (string, string) {
	date := valueOr(strings.TrimSpace(a.NewDate), last.NewDate)
	clock := valueOr(strings.TrimSpace(a.NewTime), last.NewTime)
	if normalized, err := timeutil.NormalizeClock(clock); err == nil {
		clock = normalized
	}
	return date, clock
}

// sameAttendeeSet compares address lists ignoring order and case. A nil list
// only equals another nil list.
func sameAttendeeSet(a, b []string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if len(a) != len(b) {
		return false
	}

	na, nb := normalizedSorted(a), normalizedSorted(b)
	for i := range na {
		if na[i] != nb[i] {
			return false
		}
	}
	return true
}

func normalizedSorted(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strings.ToLower(strings.TrimSpace(v))
	}
	sort.Strings(out)
	return out
}
