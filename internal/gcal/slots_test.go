package gcal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindFreeSlots(t *testing.T) {
	rome, err := time.LoadLocation("Europe/Rome")
	require.NoError(t, err)

	// Friday 2030-05-10
	friday := func(h, m int) time.Time { return time.Date(2030, 5, 10, h, m, 0, 0, rome) }

	base := SlotQuery{
		Duration:      time.Hour,
		WorkStartHour: 9,
		WorkEndHour:   18,
		Location:      rome,
	}

	t.Run("slots align to half hours inside working hours", func(t *testing.T) {
		q := base
		q.From = friday(8, 10)
		q.To = friday(11, 0)

		slots := FindFreeSlots(q, nil)
		require.Len(t, slots, 3)
		assert.Equal(t, friday(9, 0), slots[0].Start)
		assert.Equal(t, friday(9, 30), slots[1].Start)
		assert.Equal(t, friday(10, 0), slots[2].Start)
		assert.Equal(t, friday(11, 0), slots[2].End)
	})

	t.Run("busy intervals are excluded", func(t *testing.T) {
		q := base
		q.From = friday(9, 0)
		q.To = friday(13, 0)

		busy := []Slot{
			{Start: friday(10, 0), End: friday(10, 45)},
			{Start: friday(10, 30), End: friday(11, 0)},
		}
		slots := FindFreeSlots(q, busy)

		starts := make([]time.Time, len(slots))
		for i, s := range slots {
			starts[i] = s.Start
		}
		assert.Equal(t, []time.Time{friday(9, 0), friday(11, 0), friday(11, 30), friday(12, 0)}, starts)
	})

	t.Run("weekend is skipped", func(t *testing.T) {
		q := base
		q.From = friday(17, 0)
		q.To = time.Date(2030, 5, 13, 10, 0, 0, 0, rome)

		slots := FindFreeSlots(q, nil)
		require.Len(t, slots, 2)
		assert.Equal(t, friday(17, 0), slots[0].Start)
		assert.Equal(t, time.Date(2030, 5, 13, 9, 0, 0, 0, rome), slots[1].Start)
	})

	t.Run("limit caps the result", func(t *testing.T) {
		q := base
		q.From = friday(9, 0)
		q.To = friday(18, 0)
		q.Limit = 4

		assert.Len(t, FindFreeSlots(q, nil), 4)
	})

	t.Run("empty range", func(t *testing.T) {
		q := base
		q.From = friday(12, 0)
		q.To = friday(12, 0)
		assert.Empty(t, FindFreeSlots(q, nil))
	})
}

func TestMergeBusy(t *testing.T) {
	at := func(h int) time.Time { return time.Date(2030, 1, 1, h, 0, 0, 0, time.UTC) }

	merged := mergeBusy([]Slot{
		{Start: at(14), End: at(15)},
		{Start: at(9), End: at(11)},
		{Start: at(10), End: at(12)},
		{Start: at(12), End: at(13)},
	})

	assert.Equal(t, []Slot{
		{Start: at(9), End: at(13)},
		{Start: at(14), End: at(15)},
	}, merged)
}
