package gcal

import (
	"sort"
	"time"
)

const (
	slotStep         = 30 * time.Minute
	defaultSlotLimit = 20
)

// Slot is a bookable interval on the consultant's calendar.
type Slot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// SlotQuery describes the window and shape of the slots to offer.
type SlotQuery struct {
	From          time.Time
	To            time.Time
	Duration      time.Duration
	WorkStartHour int
	WorkEndHour   int
	Location      *time.Location
	Limit         int
}

// FindFreeSlots generates half-hour aligned slots within working hours on
// weekdays and drops those overlapping a busy interval.
func FindFreeSlots(q SlotQuery, busy []Slot) []Slot {
	if q.Duration <= 0 || !q.To.After(q.From) {
		return nil
	}
	loc := q.Location
	if loc == nil {
		loc = time.UTC
	}
	limit := q.Limit
	if limit <= 0 {
		limit = defaultSlotLimit
	}

	merged := mergeBusy(busy)
	var free []Slot

	current := roundUpToStep(q.From.In(loc))
	for !current.Add(q.Duration).After(q.To) && len(free) < limit {
		if wd := current.Weekday(); wd == time.Saturday || wd == time.Sunday {
			current = nextWorkdayStart(current, q.WorkStartHour)
			continue
		}

		dayStart := time.Date(current.Year(), current.Month(), current.Day(), q.WorkStartHour, 0, 0, 0, loc)
		dayEnd := time.Date(current.Year(), current.Month(), current.Day(), q.WorkEndHour, 0, 0, 0, loc)
		if current.Before(dayStart) {
			current = dayStart
			continue
		}

		end := current.Add(q.Duration)
		if end.After(dayEnd) {
			current = nextWorkdayStart(current, q.WorkStartHour)
			continue
		}

		candidate := Slot{Start: current, End: end}
		if !overlapsAny(candidate, merged) {
			free = append(free, candidate)
		}
		current = current.Add(slotStep)
	}

	return free
}

// mergeBusy merges overlapping or adjacent busy intervals
func mergeBusy(slots []Slot) []Slot {
	if len(slots) == 0 {
		return nil
	}

	sorted := make([]Slot, len(slots))
	copy(sorted, slots)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Start.Before(sorted[j].Start)
	})

	merged := []Slot{sorted[0]}
	for _, current := range sorted[1:] {
		last := &merged[len(merged)-1]
		if !current.Start.After(last.End) {
			if current.End.After(last.End) {
				last.End = current.End
			}
			continue
		}
		merged = append(merged, current)
	}
	return merged
}

func overlaps(a, b Slot) bool {
	return a.Start.Before(b.End) && a.End.After(b.Start)
}

func overlapsAny(slot Slot, busy []Slot) bool {
	for _, b := range busy {
		if overlaps(slot, b) {
			return true
		}
	}
	return false
}

func roundUpToStep(t time.Time) time.Time {
	truncated := t.Truncate(slotStep)
	if truncated.Equal(t) {
		return t
	}
	return truncated.Add(slotStep)
}

func nextWorkdayStart(t time.Time, startHour int) time.Time {
	next := time.Date(t.Year(), t.Month(), t.Day()+1, startHour, 0, 0, 0, t.Location())
	for next.Weekday() == time.Saturday || next.Weekday() == time.Sunday {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
